package testutil

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/evergreen-ci/mskcreds"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	projectName = "mskcreds"
	// mskSecretNamePrefix is the name prefix that MSK requires for SCRAM
	// secrets.
	mskSecretNamePrefix = "AmazonMSK_"
)

// NewUsername creates a new SCRAM username that is unique to this test
// runtime.
func NewUsername() string {
	return strings.Join([]string{usernamePrefix(), utility.RandomString()[:12]}, "-")
}

func usernamePrefix() string {
	return strings.Join([]string{projectName, runtimeNamespace[:12]}, "-")
}

// NewSecretName creates a new test secret name with the MSK prefix that is
// unique to this test runtime.
func NewSecretName() string {
	return mskSecretNamePrefix + NewUsername()
}

// CleanupSecrets cleans up all existing secrets created in this test runtime.
func CleanupSecrets(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient) {
	for token := cleanupSecretsWithToken(ctx, t, c, nil); token != nil; token = cleanupSecretsWithToken(ctx, t, c, token) {
	}
}

// cleanupSecretsWithToken cleans up existing secrets created in this test
// runtime based on the results from the pagination token.
func cleanupSecretsWithToken(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient, token *string) (nextToken *string) {
	out, err := c.ListSecrets(ctx, &secretsmanager.ListSecretsInput{
		NextToken: token,
		Filters: []types.Filter{
			{
				// Ignore secrets that were not generated within this runtime.
				Key:    types.FilterNameStringTypeName,
				Values: []string{mskSecretNamePrefix + usernamePrefix()},
			},
		},
	})
	if !assert.NoError(t, err) {
		return nil
	}
	if !assert.NotZero(t, out) {
		return nil
	}

	for _, secret := range out.SecretList {
		arn := utility.FromStringPtr(secret.ARN)
		if arn == "" {
			continue
		}

		_, err := c.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
			ForceDeleteWithoutRecovery: aws.Bool(true),
			SecretId:                   aws.String(arn),
		})
		if assert.NoError(t, err) {
			grip.Info(message.Fields{
				"message": "cleaned up leftover secret",
				"arn":     arn,
				"test":    t.Name(),
			})
		}
	}

	return out.NextToken
}

// CreateSecret is a convenience function for creating a Secrets Manager secret
// and verifying that the result is successful and populates the secret ARN.
func CreateSecret(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient, in secretsmanager.CreateSecretInput) secretsmanager.CreateSecretOutput {
	out, err := c.CreateSecret(ctx, &in)
	require.NoError(t, err)
	require.NotZero(t, out)
	require.NotZero(t, out.ARN)
	return *out
}
