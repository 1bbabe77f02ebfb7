package testutil

import (
	"os"
	"testing"
)

// CheckAWSEnvVarsForSecretsManager checks that the required environment
// variables are defined for testing against Secrets Manager.
func CheckAWSEnvVarsForSecretsManager(t *testing.T) {
	CheckEnvVars(t,
		"AWS_ACCESS_KEY_ID",
		"AWS_SECRET_ACCESS_KEY",
		"AWS_REGION",
	)
}

// CheckAWSEnvVarsForSecretsManagerAndKMS checks that the required environment
// variables are defined for testing credential secrets encrypted with a
// customer-managed KMS key.
func CheckAWSEnvVarsForSecretsManagerAndKMS(t *testing.T) {
	CheckEnvVars(t,
		"AWS_ACCESS_KEY_ID",
		"AWS_SECRET_ACCESS_KEY",
		"AWS_REGION",
		"AWS_KMS_KEY_ID",
	)
}

// CheckEnvVars skips the test unless all the required environment variables
// are set, since the test would otherwise make requests without valid
// credentials.
func CheckEnvVars(t *testing.T, envVars ...string) {
	var missing []string

	for _, envVar := range envVars {
		if os.Getenv(envVar) == "" {
			missing = append(missing, envVar)
		}
	}

	if len(missing) > 0 {
		t.Skipf("missing required AWS environment variables: %s", missing)
	}
}

// KMSKeyID returns the KMS key ID used to encrypt secrets from the environment
// variable.
func KMSKeyID() string {
	return os.Getenv("AWS_KMS_KEY_ID")
}
