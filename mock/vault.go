package mock

import (
	"context"
	"time"

	"github.com/evergreen-ci/mskcreds"
)

// CredentialVault provides a mock implementation of a mskcreds.CredentialVault
// backed by another credential vault implementation. This makes it possible to
// introspect on inputs to the vault and control the vault's output.
type CredentialVault struct {
	mskcreds.CredentialVault

	CreateSecretInput    *mskcreds.SCRAMCredentials
	CreateSecretKMSKeyID *string
	CreateSecretOutput   *string
	CreateSecretError    error

	GetValueInput  *string
	GetValueOutput *string
	GetValueError  error

	UpdateValueInput *mskcreds.SCRAMCredentials
	UpdateValueID    *string
	UpdateValueError error

	PutResourcePolicyID    *string
	PutResourcePolicyInput *string
	PutResourcePolicyError error

	DeleteSecretInput     *string
	DeleteSecretImmediate *bool
	DeleteSecretOutput    *time.Time
	DeleteSecretError     error

	FindSecretsInput  []string
	FindSecretsOutput []string
	FindSecretsError  error
}

// NewCredentialVault creates a mock credential vault backed by the given vault.
func NewCredentialVault(v mskcreds.CredentialVault) *CredentialVault {
	return &CredentialVault{
		CredentialVault: v,
	}
}

// CreateSecret saves the input and creates the secret. The mock output can be
// customized. By default, it will return the result of creating the secret in
// the backing vault.
func (v *CredentialVault) CreateSecret(ctx context.Context, creds mskcreds.SCRAMCredentials, kmsKeyID string) (string, error) {
	v.CreateSecretInput = &creds
	v.CreateSecretKMSKeyID = &kmsKeyID

	if v.CreateSecretOutput != nil || v.CreateSecretError != nil {
		var arn string
		if v.CreateSecretOutput != nil {
			arn = *v.CreateSecretOutput
		}
		return arn, v.CreateSecretError
	}

	return v.CredentialVault.CreateSecret(ctx, creds, kmsKeyID)
}

// GetValue saves the input and gets the secret value. The mock output can be
// customized. By default, it will return the result of getting the value from
// the backing vault.
func (v *CredentialVault) GetValue(ctx context.Context, id string) (string, error) {
	v.GetValueInput = &id

	if v.GetValueOutput != nil || v.GetValueError != nil {
		var val string
		if v.GetValueOutput != nil {
			val = *v.GetValueOutput
		}
		return val, v.GetValueError
	}

	return v.CredentialVault.GetValue(ctx, id)
}

// UpdateValue saves the input and updates the secret value. The mock output
// can be customized. By default, it will return the result of updating the
// value in the backing vault.
func (v *CredentialVault) UpdateValue(ctx context.Context, id string, creds mskcreds.SCRAMCredentials) error {
	v.UpdateValueID = &id
	v.UpdateValueInput = &creds

	if v.UpdateValueError != nil {
		return v.UpdateValueError
	}

	return v.CredentialVault.UpdateValue(ctx, id, creds)
}

// PutResourcePolicy saves the input and replaces the secret's resource policy.
// The mock output can be customized. By default, it will return the result of
// putting the policy in the backing vault.
func (v *CredentialVault) PutResourcePolicy(ctx context.Context, id string, policy *string) error {
	v.PutResourcePolicyID = &id
	v.PutResourcePolicyInput = policy

	if v.PutResourcePolicyError != nil {
		return v.PutResourcePolicyError
	}

	return v.CredentialVault.PutResourcePolicy(ctx, id, policy)
}

// DeleteSecret saves the input and deletes the secret. The mock output can be
// customized. By default, it will return the result of deleting the secret
// from the backing vault.
func (v *CredentialVault) DeleteSecret(ctx context.Context, id string, immediate bool) (time.Time, error) {
	v.DeleteSecretInput = &id
	v.DeleteSecretImmediate = &immediate

	if v.DeleteSecretOutput != nil || v.DeleteSecretError != nil {
		var ts time.Time
		if v.DeleteSecretOutput != nil {
			ts = *v.DeleteSecretOutput
		}
		return ts, v.DeleteSecretError
	}

	return v.CredentialVault.DeleteSecret(ctx, id, immediate)
}

// FindSecrets saves the input and finds the vault's secrets. The mock output
// can be customized. By default, it will return the result of finding the
// secrets in the backing vault.
func (v *CredentialVault) FindSecrets(ctx context.Context, usernames ...string) ([]string, error) {
	v.FindSecretsInput = usernames

	if v.FindSecretsOutput != nil || v.FindSecretsError != nil {
		return v.FindSecretsOutput, v.FindSecretsError
	}

	return v.CredentialVault.FindSecrets(ctx, usernames...)
}
