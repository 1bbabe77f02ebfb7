package testcase

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/evergreen-ci/mskcreds"
	"github.com/evergreen-ci/mskcreds/internal/testutil"
	"github.com/evergreen-ci/utility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// CredentialVaultTestCase represents a test case for a mskcreds.CredentialVault.
// The Secrets Manager client must be the one backing the vault so that test
// cases can inspect the stored secrets directly.
type CredentialVaultTestCase func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient)

// CredentialVaultTests returns common test cases that a
// mskcreds.CredentialVault should support.
func CredentialVaultTests() map[string]CredentialVaultTestCase {
	return map[string]CredentialVaultTestCase{
		"CreateSecretStoresCredentialsForMSK": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			username := testutil.NewUsername()
			arn, err := v.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials(username, "p@ss"), testutil.KMSKeyID())
			require.NoError(t, err)
			defer cleanupVaultSecret(ctx, t, v, arn)

			assert.Contains(t, arn, ":secret:AmazonMSK_"+username+"-")

			val, err := v.GetValue(ctx, arn)
			require.NoError(t, err)
			assert.JSONEq(t, `{"username":"`+username+`","password":"p@ss"}`, val)

			out, err := c.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{SecretId: aws.String(arn)})
			require.NoError(t, err)
			require.NotZero(t, out)
			assert.Equal(t, "AmazonMSK_"+username, utility.FromStringPtr(out.Name))
			assert.Equal(t, "Amazon MSK secret for user "+username, utility.FromStringPtr(out.Description))

			var taggedUsername string
			for _, tag := range out.Tags {
				if utility.FromStringPtr(tag.Key) == "mskcreds:username" {
					taggedUsername = utility.FromStringPtr(tag.Value)
				}
			}
			assert.Equal(t, username, taggedUsername)
		},
		"CreateSecretAttachesDefaultResourcePolicy": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			arn, err := v.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials(testutil.NewUsername(), "p@ss"), testutil.KMSKeyID())
			require.NoError(t, err)
			defer cleanupVaultSecret(ctx, t, v, arn)

			checkDefaultResourcePolicy(ctx, t, c, arn)
		},
		"CreateSecretFailsWithInvalidCredentials": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			arn, err := v.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials(testutil.NewUsername(), ""), testutil.KMSKeyID())
			assert.Error(t, err)
			assert.Zero(t, arn)
			assert.Equal(t, mskcreds.ErrorKindInvalidParameter, mskcreds.ErrorKindOf(err))
		},
		"CreateSecretFailsForExistingUser": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			creds := mskcreds.NewSCRAMCredentials(testutil.NewUsername(), "p@ss")
			arn, err := v.CreateSecret(ctx, *creds, testutil.KMSKeyID())
			require.NoError(t, err)
			defer cleanupVaultSecret(ctx, t, v, arn)

			dupARN, err := v.CreateSecret(ctx, *creds, testutil.KMSKeyID())
			assert.Error(t, err)
			assert.Zero(t, dupARN)
			assert.Equal(t, mskcreds.ErrorKindAlreadyExists, mskcreds.ErrorKindOf(err))
		},
		"GetValueSucceedsWithSecretName": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			username := testutil.NewUsername()
			arn, err := v.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials(username, "p@ss"), testutil.KMSKeyID())
			require.NoError(t, err)
			defer cleanupVaultSecret(ctx, t, v, arn)

			val, err := v.GetValue(ctx, "AmazonMSK_"+username)
			require.NoError(t, err)
			assert.JSONEq(t, `{"username":"`+username+`","password":"p@ss"}`, val)
		},
		"GetValueFailsWithNonexistentSecret": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			val, err := v.GetValue(ctx, testutil.NewSecretName())
			assert.Error(t, err)
			assert.Zero(t, val)
			assert.True(t, mskcreds.IsSecretNotFoundError(err))
		},
		"GetValueFailsWithEmptyID": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			val, err := v.GetValue(ctx, "")
			assert.Error(t, err)
			assert.Zero(t, val)
			assert.Equal(t, mskcreds.ErrorKindInvalidParameter, mskcreds.ErrorKindOf(err))
		},
		"UpdateValueFailsWithEmptyID": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			err := v.UpdateValue(ctx, "", *mskcreds.NewSCRAMCredentials(testutil.NewUsername(), "p@ss"))
			assert.Error(t, err)
			assert.Equal(t, mskcreds.ErrorKindInvalidParameter, mskcreds.ErrorKindOf(err))
		},
		"PutResourcePolicyFailsWithEmptyID": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			err := v.PutResourcePolicy(ctx, "", nil)
			assert.Error(t, err)
			assert.Equal(t, mskcreds.ErrorKindInvalidParameter, mskcreds.ErrorKindOf(err))
		},
		"DeleteSecretFailsWithEmptyID": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			deletionDate, err := v.DeleteSecret(ctx, "", true)
			assert.Error(t, err)
			assert.Zero(t, deletionDate)
			assert.Equal(t, mskcreds.ErrorKindInvalidParameter, mskcreds.ErrorKindOf(err))
		},
		"UpdateValueReplacesCredentials": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			username := testutil.NewUsername()
			arn, err := v.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials(username, "p@ss"), testutil.KMSKeyID())
			require.NoError(t, err)
			defer cleanupVaultSecret(ctx, t, v, arn)

			require.NoError(t, v.UpdateValue(ctx, arn, *mskcreds.NewSCRAMCredentials(username, "n3w")))

			val, err := v.GetValue(ctx, arn)
			require.NoError(t, err)
			assert.JSONEq(t, `{"username":"`+username+`","password":"n3w"}`, val)
		},
		"UpdateValueFailsWithNonexistentSecret": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			err := v.UpdateValue(ctx, testutil.NewSecretName(), *mskcreds.NewSCRAMCredentials("bob", "p@ss"))
			assert.Error(t, err)
			assert.True(t, mskcreds.IsSecretNotFoundError(err))
		},
		"UpdateValueFailsWithInvalidCredentials": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			username := testutil.NewUsername()
			arn, err := v.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials(username, "p@ss"), testutil.KMSKeyID())
			require.NoError(t, err)
			defer cleanupVaultSecret(ctx, t, v, arn)

			err = v.UpdateValue(ctx, arn, *mskcreds.NewSCRAMCredentials("", "n3w"))
			assert.Error(t, err)
			assert.Equal(t, mskcreds.ErrorKindInvalidParameter, mskcreds.ErrorKindOf(err))

			val, err := v.GetValue(ctx, arn)
			require.NoError(t, err)
			assert.JSONEq(t, `{"username":"`+username+`","password":"p@ss"}`, val, "value should be unchanged")
		},
		"PutResourcePolicySucceedsWithCustomPolicy": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			arn, err := v.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials(testutil.NewUsername(), "p@ss"), testutil.KMSKeyID())
			require.NoError(t, err)
			defer cleanupVaultSecret(ctx, t, v, arn)

			policy := `{"Version":"2012-10-17","Statement":[{"Sid":"custom","Effect":"Allow","Principal":{"Service":"kafka.amazonaws.com"},"Action":"secretsmanager:getSecretValue","Resource":"` + arn + `"}]}`
			require.NoError(t, v.PutResourcePolicy(ctx, arn, &policy))

			out, err := c.GetResourcePolicy(ctx, &secretsmanager.GetResourcePolicyInput{SecretId: aws.String(arn)})
			require.NoError(t, err)
			require.NotZero(t, out)
			assert.JSONEq(t, policy, utility.FromStringPtr(out.ResourcePolicy))
		},
		"PutResourcePolicyRestoresDefaultPolicy": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			arn, err := v.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials(testutil.NewUsername(), "p@ss"), testutil.KMSKeyID())
			require.NoError(t, err)
			defer cleanupVaultSecret(ctx, t, v, arn)

			policy := `{"Version":"2012-10-17","Statement":[{"Sid":"custom","Effect":"Allow","Principal":{"Service":"kafka.amazonaws.com"},"Action":"secretsmanager:getSecretValue","Resource":"` + arn + `"}]}`
			require.NoError(t, v.PutResourcePolicy(ctx, arn, &policy))
			require.NoError(t, v.PutResourcePolicy(ctx, arn, nil))

			checkDefaultResourcePolicy(ctx, t, c, arn)
		},
		"PutResourcePolicyFailsWithNonexistentSecret": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			err := v.PutResourcePolicy(ctx, testutil.NewSecretName(), nil)
			assert.Error(t, err)
			assert.True(t, mskcreds.IsSecretNotFoundError(err))
		},
		"DeleteSecretImmediatelyPurgesSecret": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			arn, err := v.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials(testutil.NewUsername(), "p@ss"), testutil.KMSKeyID())
			require.NoError(t, err)

			before := time.Now().Truncate(time.Second)
			deletionDate, err := v.DeleteSecret(ctx, arn, true)
			require.NoError(t, err)
			assert.False(t, deletionDate.Before(before))
			assert.True(t, deletionDate.Before(before.AddDate(0, 0, 1)))

			val, err := v.GetValue(ctx, arn)
			assert.Error(t, err)
			assert.Zero(t, val)
			assert.True(t, mskcreds.IsSecretNotFoundError(err))
		},
		"DeleteSecretSchedulesDeletionAfterRecoveryWindow": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			arn, err := v.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials(testutil.NewUsername(), "p@ss"), testutil.KMSKeyID())
			require.NoError(t, err)
			defer cleanupVaultSecret(ctx, t, v, arn)

			before := time.Now().Truncate(time.Second)
			deletionDate, err := v.DeleteSecret(ctx, arn, false)
			require.NoError(t, err)
			assert.False(t, deletionDate.Before(before.AddDate(0, 0, 7)), "deletion date should be at least 7 days away")
			assert.True(t, deletionDate.Before(before.AddDate(0, 0, 8)), "deletion date should use the 7 day recovery window")

			val, err := v.GetValue(ctx, arn)
			assert.Error(t, err)
			assert.Zero(t, val)
			assert.Equal(t, mskcreds.ErrorKindInvalidRequest, mskcreds.ErrorKindOf(err))
		},
		"DeleteSecretFailsWithNonexistentSecret": func(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, c mskcreds.SecretsManagerClient) {
			deletionDate, err := v.DeleteSecret(ctx, testutil.NewSecretName(), false)
			assert.Error(t, err)
			assert.Zero(t, deletionDate)
			assert.True(t, mskcreds.IsSecretNotFoundError(err))
		},
	}
}

// checkDefaultResourcePolicy checks that the secret's resource policy only
// allows MSK to read the secret.
func checkDefaultResourcePolicy(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient, arn string) {
	out, err := c.GetResourcePolicy(ctx, &secretsmanager.GetResourcePolicyInput{SecretId: aws.String(arn)})
	require.NoError(t, err)
	require.NotZero(t, out)

	var policy struct {
		Version   string
		Statement []struct {
			Effect    string
			Principal map[string]string
			Action    string
			Resource  string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(utility.FromStringPtr(out.ResourcePolicy)), &policy))
	assert.Equal(t, "2012-10-17", policy.Version)
	require.Len(t, policy.Statement, 1)
	assert.Equal(t, "Allow", policy.Statement[0].Effect)
	assert.Equal(t, map[string]string{"Service": "kafka.amazonaws.com"}, policy.Statement[0].Principal)
	assert.True(t, strings.EqualFold("secretsmanager:GetSecretValue", policy.Statement[0].Action))
	assert.Equal(t, arn, policy.Statement[0].Resource)
}

// cleanupVaultSecret immediately deletes a secret created by the vault.
func cleanupVaultSecret(ctx context.Context, t *testing.T, v mskcreds.CredentialVault, arn string) {
	if arn == "" {
		return
	}
	_, err := v.DeleteSecret(ctx, arn, true)
	assert.NoError(t, err)
}
