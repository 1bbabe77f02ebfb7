package mskcreds

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mongodb/grip"
	"github.com/pkg/errors"
)

// CredentialVault allows you to manage SCRAM credential secrets for Amazon MSK.
type CredentialVault interface {
	// CreateSecret creates a new secret holding the credentials, encrypted with
	// the given KMS key, and grants the MSK service permission to read it. It
	// returns the ARN of the new secret.
	CreateSecret(ctx context.Context, creds SCRAMCredentials, kmsKeyID string) (arn string, err error)
	// GetValue returns the current value of the secret identified by ID.
	GetValue(ctx context.Context, id string) (val string, err error)
	// UpdateValue replaces the current value of an existing secret with the
	// given credentials.
	UpdateValue(ctx context.Context, id string, creds SCRAMCredentials) error
	// PutResourcePolicy replaces the resource policy of the secret. If policy
	// is nil, a policy that lets the MSK service read the secret is used.
	PutResourcePolicy(ctx context.Context, id string, policy *string) error
	// DeleteSecret deletes the secret, either immediately or after the
	// recovery window has passed. It returns the date when the secret is
	// deleted.
	DeleteSecret(ctx context.Context, id string, immediate bool) (time.Time, error)
	// FindSecrets returns the ARNs of the secrets created by the vault. If
	// usernames are given, only the secrets for those users are returned.
	FindSecrets(ctx context.Context, usernames ...string) ([]string, error)
}

// SCRAMCredentials are the username and password of a SASL/SCRAM user.
type SCRAMCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// NewSCRAMCredentials returns new credentials for the given user.
func NewSCRAMCredentials(username, password string) *SCRAMCredentials {
	return &SCRAMCredentials{
		Username: username,
		Password: password,
	}
}

// Validate checks that the username and password are both set.
func (c *SCRAMCredentials) Validate() error {
	catcher := grip.NewBasicCatcher()
	catcher.NewWhen(c.Username == "", "must specify a username")
	catcher.NewWhen(c.Password == "", "must specify a password")
	return catcher.Resolve()
}

// SecretString returns the credentials in the JSON format that MSK expects to
// find in the secret.
func (c *SCRAMCredentials) SecretString() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", errors.Wrap(err, "marshalling credentials")
	}
	return string(b), nil
}

// ParseSCRAMCredentials parses credentials from a secret value.
func ParseSCRAMCredentials(val string) (*SCRAMCredentials, error) {
	var creds SCRAMCredentials
	if err := json.Unmarshal([]byte(val), &creds); err != nil {
		return nil, errors.Wrap(err, "unmarshalling credentials")
	}
	return &creds, nil
}
