package mock

import (
	"testing"
	"time"

	"github.com/evergreen-ci/mskcreds"
	"github.com/stretchr/testify/assert"
)

const defaultTestTimeout = 30 * time.Second

func TestInterfaces(t *testing.T) {
	assert.Implements(t, (*mskcreds.SecretsManagerClient)(nil), &SecretsManagerClient{})
	assert.Implements(t, (*mskcreds.TagClient)(nil), &TagClient{})
	assert.Implements(t, (*mskcreds.SecretTracker)(nil), &SecretTracker{})
	assert.Implements(t, (*mskcreds.CredentialVault)(nil), &CredentialVault{})
}
