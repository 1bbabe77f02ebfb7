package testcase

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/evergreen-ci/mskcreds"
	"github.com/evergreen-ci/mskcreds/internal/testutil"
	"github.com/evergreen-ci/utility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SecretsManagerClientTestCase represents a test case for a
// mskcreds.SecretsManagerClient.
type SecretsManagerClientTestCase func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient)

// SecretsManagerClientTests returns common test cases that a
// mskcreds.SecretsManagerClient should support.
func SecretsManagerClientTests() map[string]SecretsManagerClientTestCase {
	return map[string]SecretsManagerClientTestCase{
		"CreateSecretSucceeds": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			out, err := c.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
				Name:         aws.String(testutil.NewSecretName()),
				SecretString: aws.String(utility.RandomString()),
			})
			require.NoError(t, err)
			require.NotZero(t, out)

			cleanupSecret(ctx, t, c, out.ARN)
		},
		"CreateSecretFailsWithInvalidInput": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			out, err := c.CreateSecret(ctx, &secretsmanager.CreateSecretInput{})
			assert.Error(t, err)
			assert.Zero(t, out)
		},
		"CreateSecretFailsWithExistingName": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			name := testutil.NewSecretName()
			createOut := testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
				Name:         aws.String(name),
				SecretString: aws.String("foo"),
			})
			defer cleanupSecret(ctx, t, c, createOut.ARN)

			out, err := c.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
				Name:         aws.String(name),
				SecretString: aws.String("bar"),
			})
			assert.Error(t, err)
			assert.Zero(t, out)
			assert.Equal(t, mskcreds.ErrorKindAlreadyExists, mskcreds.ErrorKindOf(err))
		},
		"GetSecretValueSucceedsWithExistingSecret": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			secretName := testutil.NewSecretName()
			createOut := testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
				Name:         aws.String(secretName),
				SecretString: aws.String("foo"),
			})
			defer cleanupSecret(ctx, t, c, createOut.ARN)

			out, err := c.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
				SecretId: createOut.ARN,
			})
			require.NoError(t, err)
			require.NotZero(t, out)
			assert.Equal(t, "foo", utility.FromStringPtr(out.SecretString))
			assert.Equal(t, secretName, utility.FromStringPtr(out.Name))
		},
		"GetSecretValueSucceedsWithSecretName": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			secretName := testutil.NewSecretName()
			createOut := testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
				Name:         aws.String(secretName),
				SecretString: aws.String("foo"),
			})
			defer cleanupSecret(ctx, t, c, createOut.ARN)

			out, err := c.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
				SecretId: aws.String(secretName),
			})
			require.NoError(t, err)
			require.NotZero(t, out)
			assert.Equal(t, "foo", utility.FromStringPtr(out.SecretString))
			assert.Equal(t, utility.FromStringPtr(createOut.ARN), utility.FromStringPtr(out.ARN))
		},
		"GetSecretValueSucceedsWithBinarySecret": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			createOut := testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
				Name:         aws.String(testutil.NewSecretName()),
				SecretBinary: []byte("binary"),
			})
			defer cleanupSecret(ctx, t, c, createOut.ARN)

			out, err := c.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
				SecretId: createOut.ARN,
			})
			require.NoError(t, err)
			require.NotZero(t, out)
			assert.Nil(t, out.SecretString)
			assert.Equal(t, []byte("binary"), out.SecretBinary)
		},
		"GetSecretValueFailsWithInvalidInput": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			out, err := c.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{})
			assert.Error(t, err)
			assert.Zero(t, out)
		},
		"GetSecretValueFailsWithValidNonexistentSecret": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			out, err := c.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
				SecretId: aws.String(testutil.NewSecretName()),
			})
			assert.Error(t, err)
			assert.Zero(t, out)
			assert.True(t, mskcreds.IsSecretNotFoundError(err))
		},
		"GetSecretValueFailsWithSecretScheduledForDeletion": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			createOut := testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
				Name:         aws.String(testutil.NewSecretName()),
				SecretString: aws.String("foo"),
			})
			defer cleanupSecret(ctx, t, c, createOut.ARN)

			_, err := c.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
				SecretId:             createOut.ARN,
				RecoveryWindowInDays: aws.Int64(7),
			})
			require.NoError(t, err)

			out, err := c.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
				SecretId: createOut.ARN,
			})
			assert.Error(t, err)
			assert.Zero(t, out)
			assert.Equal(t, mskcreds.ErrorKindInvalidRequest, mskcreds.ErrorKindOf(err))
		},
		"PutSecretValueSucceedsWithExistingSecret": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			secretName := testutil.NewSecretName()
			createOut := testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
				Name:         aws.String(secretName),
				SecretString: aws.String("bar"),
			})
			defer cleanupSecret(ctx, t, c, createOut.ARN)

			putOut, err := c.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
				SecretId:     createOut.ARN,
				SecretString: aws.String("leaf"),
			})
			require.NoError(t, err)
			require.NotZero(t, putOut)
			assert.NotEqual(t, utility.FromStringPtr(createOut.VersionId), utility.FromStringPtr(putOut.VersionId))

			getOut, err := c.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
				SecretId: createOut.ARN,
			})
			require.NoError(t, err)
			require.NotZero(t, getOut)
			assert.Equal(t, "leaf", utility.FromStringPtr(getOut.SecretString))
			assert.Equal(t, secretName, utility.FromStringPtr(getOut.Name))
		},
		"PutSecretValueFailsWithInvalidInput": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			out, err := c.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{})
			assert.Error(t, err)
			assert.Zero(t, out)
		},
		"PutSecretValueFailsWithValidNonexistentSecret": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			out, err := c.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
				SecretId:     aws.String(testutil.NewSecretName()),
				SecretString: aws.String("hello"),
			})
			assert.Error(t, err)
			assert.Zero(t, out)
			assert.True(t, mskcreds.IsSecretNotFoundError(err))
		},
		"PutResourcePolicySucceedsWithExistingSecret": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			createOut := testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
				Name:         aws.String(testutil.NewSecretName()),
				SecretString: aws.String("foo"),
			})
			defer cleanupSecret(ctx, t, c, createOut.ARN)

			policy := mskReadPolicy(utility.FromStringPtr(createOut.ARN))
			putOut, err := c.PutResourcePolicy(ctx, &secretsmanager.PutResourcePolicyInput{
				SecretId:       createOut.ARN,
				ResourcePolicy: aws.String(policy),
			})
			require.NoError(t, err)
			require.NotZero(t, putOut)
			assert.Equal(t, utility.FromStringPtr(createOut.ARN), utility.FromStringPtr(putOut.ARN))

			getOut, err := c.GetResourcePolicy(ctx, &secretsmanager.GetResourcePolicyInput{
				SecretId: createOut.ARN,
			})
			require.NoError(t, err)
			require.NotZero(t, getOut)
			assert.JSONEq(t, policy, utility.FromStringPtr(getOut.ResourcePolicy))
		},
		"PutResourcePolicyFailsWithInvalidInput": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			out, err := c.PutResourcePolicy(ctx, &secretsmanager.PutResourcePolicyInput{})
			assert.Error(t, err)
			assert.Zero(t, out)
		},
		"PutResourcePolicyFailsWithValidNonexistentSecret": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			name := testutil.NewSecretName()
			out, err := c.PutResourcePolicy(ctx, &secretsmanager.PutResourcePolicyInput{
				SecretId:       aws.String(name),
				ResourcePolicy: aws.String(mskReadPolicy(name)),
			})
			assert.Error(t, err)
			assert.Zero(t, out)
			assert.True(t, mskcreds.IsSecretNotFoundError(err))
		},
		"GetResourcePolicyReturnsNoPolicyForNewSecret": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			createOut := testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
				Name:         aws.String(testutil.NewSecretName()),
				SecretString: aws.String("foo"),
			})
			defer cleanupSecret(ctx, t, c, createOut.ARN)

			out, err := c.GetResourcePolicy(ctx, &secretsmanager.GetResourcePolicyInput{
				SecretId: createOut.ARN,
			})
			require.NoError(t, err)
			require.NotZero(t, out)
			assert.Zero(t, utility.FromStringPtr(out.ResourcePolicy))
		},
		"DescribeSecretSucceeds": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			createOut := testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
				Name:         aws.String(testutil.NewSecretName()),
				Description:  aws.String("description"),
				SecretString: aws.String("bar"),
			})
			defer cleanupSecret(ctx, t, c, createOut.ARN)

			describeOut, err := c.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
				SecretId: createOut.ARN,
			})
			require.NoError(t, err)
			require.NotZero(t, describeOut)
			assert.Equal(t, utility.FromStringPtr(createOut.ARN), utility.FromStringPtr(describeOut.ARN))
			assert.Equal(t, "description", utility.FromStringPtr(describeOut.Description))
		},
		"DescribeSecretSucceedsAfterScheduledDeletion": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			createOut := testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
				Name:         aws.String(testutil.NewSecretName()),
				SecretString: aws.String("bar"),
			})
			defer cleanupSecret(ctx, t, c, createOut.ARN)

			deleteOut, err := c.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
				SecretId:             createOut.ARN,
				RecoveryWindowInDays: aws.Int64(7),
			})
			require.NoError(t, err)
			require.NotZero(t, deleteOut)

			describeOut, err := c.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
				SecretId: createOut.ARN,
			})
			require.NoError(t, err)
			require.NotZero(t, describeOut)
			assert.Equal(t, utility.FromStringPtr(createOut.ARN), utility.FromStringPtr(describeOut.ARN))
			assert.NotZero(t, utility.FromTimePtr(describeOut.DeletedDate))
		},
		"DescribeSecretFailsWithInvalidInput": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			out, err := c.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{})
			assert.Error(t, err)
			assert.Zero(t, out)
		},
		"DescribeSecretFailsWithValidNonexistentSecret": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			out, err := c.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
				SecretId: aws.String(testutil.NewSecretName()),
			})
			assert.Error(t, err)
			assert.Zero(t, out)
			assert.True(t, mskcreds.IsSecretNotFoundError(err))
		},
		"ListSecretsFindsSecretByNamePrefix": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			name := testutil.NewSecretName()
			createOut := testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
				Name:         aws.String(name),
				SecretString: aws.String("bar"),
			})
			defer cleanupSecret(ctx, t, c, createOut.ARN)

			out, err := c.ListSecrets(ctx, &secretsmanager.ListSecretsInput{
				Filters: []types.Filter{
					{
						Key:    types.FilterNameStringTypeName,
						Values: []string{name},
					},
				},
			})
			require.NoError(t, err)
			require.NotZero(t, out)
			require.Len(t, out.SecretList, 1)
			assert.Equal(t, utility.FromStringPtr(createOut.ARN), utility.FromStringPtr(out.SecretList[0].ARN))
		},
		"DeleteSecretFailsWithInvalidInput": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			out, err := c.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{})
			assert.Error(t, err)
			assert.Zero(t, out)
		},
		"DeleteSecretFailsWithForceAndRecoveryWindow": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			createOut := testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
				Name:         aws.String(testutil.NewSecretName()),
				SecretString: aws.String("hello"),
			})
			defer cleanupSecret(ctx, t, c, createOut.ARN)

			out, err := c.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
				SecretId:                   createOut.ARN,
				ForceDeleteWithoutRecovery: aws.Bool(true),
				RecoveryWindowInDays:       aws.Int64(7),
			})
			assert.Error(t, err)
			assert.Zero(t, out)
			assert.Equal(t, mskcreds.ErrorKindInvalidParameter, mskcreds.ErrorKindOf(err))
		},
		"DeleteSecretSucceeds": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			createOut := testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
				Name:         aws.String(testutil.NewSecretName()),
				SecretString: aws.String("hello"),
			})
			out, err := c.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
				ForceDeleteWithoutRecovery: aws.Bool(true),
				SecretId:                   createOut.ARN,
			})
			require.NoError(t, err)
			require.NotZero(t, out)
			assert.NotZero(t, utility.FromTimePtr(out.DeletionDate))
		},
		"TagResourceSucceeds": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			createOut := testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
				Name:         aws.String(testutil.NewSecretName()),
				SecretString: aws.String(utility.RandomString()),
			})
			defer cleanupSecret(ctx, t, c, createOut.ARN)

			tags := []types.Tag{
				{
					Key:   aws.String("some_key"),
					Value: aws.String("some_value"),
				},
			}
			_, err := c.TagResource(ctx, &secretsmanager.TagResourceInput{
				SecretId: createOut.ARN,
				Tags:     tags,
			})
			require.NoError(t, err)

			describeOut, err := c.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
				SecretId: createOut.ARN,
			})
			require.NoError(t, err)
			require.NotZero(t, describeOut)
			require.Len(t, describeOut.Tags, 1)
			assert.Equal(t, utility.FromStringPtr(tags[0].Key), utility.FromStringPtr(describeOut.Tags[0].Key))
			assert.Equal(t, utility.FromStringPtr(tags[0].Value), utility.FromStringPtr(describeOut.Tags[0].Value))
		},
		"TagResourceIsIdempotent": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			createOut := testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
				Name:         aws.String(testutil.NewSecretName()),
				SecretString: aws.String(utility.RandomString()),
			})
			defer cleanupSecret(ctx, t, c, createOut.ARN)

			tags := []types.Tag{
				{
					Key:   aws.String("some_key"),
					Value: aws.String("some_value"),
				},
			}
			for i := 0; i < 3; i++ {
				_, err := c.TagResource(ctx, &secretsmanager.TagResourceInput{
					SecretId: createOut.ARN,
					Tags:     tags,
				})
				require.NoError(t, err)
			}

			describeOut, err := c.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
				SecretId: createOut.ARN,
			})
			require.NoError(t, err)
			require.NotZero(t, describeOut)
			require.Len(t, describeOut.Tags, 1)
			assert.Equal(t, utility.FromStringPtr(tags[0].Key), utility.FromStringPtr(describeOut.Tags[0].Key))
			assert.Equal(t, utility.FromStringPtr(tags[0].Value), utility.FromStringPtr(describeOut.Tags[0].Value))
		},
		"TagResourceFailsWithZeroInput": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			_, err := c.TagResource(ctx, &secretsmanager.TagResourceInput{})
			assert.Error(t, err)
		},
		"TagResourceFailsWithNonexistentResource": func(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
			_, err := c.TagResource(ctx, &secretsmanager.TagResourceInput{SecretId: aws.String(testutil.NewSecretName())})
			assert.Error(t, err)
		},
	}
}

// mskReadPolicy returns a minimal policy document that grants MSK read access
// to the secret.
func mskReadPolicy(secretID string) string {
	return `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"Service":"kafka.amazonaws.com"},"Action":"secretsmanager:getSecretValue","Resource":"` + secretID + `"}]}`
}

// cleanupSecret cleans up an existing secret.
func cleanupSecret(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient, arn *string) {
	if utility.FromStringPtr(arn) == "" {
		return
	}

	out, err := c.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		ForceDeleteWithoutRecovery: aws.Bool(true),
		SecretId:                   arn,
	})
	require.NoError(t, err)
	require.NotZero(t, out)
}
