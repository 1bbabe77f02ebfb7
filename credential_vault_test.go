package mskcreds

import (
	"encoding/json"
	"testing"

	"github.com/mongodb/grip/logging"
	"github.com/mongodb/grip/send"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSCRAMCredentials(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		t.Run("SucceedsWithAllFieldsPopulated", func(t *testing.T) {
			assert.NoError(t, NewSCRAMCredentials("alice", "p@ss").Validate())
		})
		t.Run("FailsWithoutUsername", func(t *testing.T) {
			assert.Error(t, NewSCRAMCredentials("", "p@ss").Validate())
		})
		t.Run("FailsWithoutPassword", func(t *testing.T) {
			assert.Error(t, NewSCRAMCredentials("alice", "").Validate())
		})
		t.Run("FailsWithZeroValue", func(t *testing.T) {
			creds := SCRAMCredentials{}
			assert.Error(t, creds.Validate())
		})
	})
	t.Run("SecretString", func(t *testing.T) {
		t.Run("ProducesUsernameAndPasswordObject", func(t *testing.T) {
			val, err := NewSCRAMCredentials("alice", "p@ss").SecretString()
			require.NoError(t, err)
			assert.JSONEq(t, `{"username":"alice","password":"p@ss"}`, val)
		})
		t.Run("EscapesSpecialCharacters", func(t *testing.T) {
			val, err := NewSCRAMCredentials("bob", `pa"ss\word`).SecretString()
			require.NoError(t, err)

			var parsed map[string]string
			require.NoError(t, json.Unmarshal([]byte(val), &parsed))
			assert.Equal(t, "bob", parsed["username"])
			assert.Equal(t, `pa"ss\word`, parsed["password"])
		})
	})
	t.Run("ParseSCRAMCredentials", func(t *testing.T) {
		t.Run("SucceedsWithSecretString", func(t *testing.T) {
			val, err := NewSCRAMCredentials("alice", "new").SecretString()
			require.NoError(t, err)
			creds, err := ParseSCRAMCredentials(val)
			require.NoError(t, err)
			assert.Equal(t, "alice", creds.Username)
			assert.Equal(t, "new", creds.Password)
		})
		t.Run("FailsWithInvalidJSON", func(t *testing.T) {
			creds, err := ParseSCRAMCredentials("not json")
			assert.Error(t, err)
			assert.Zero(t, creds)
		})
	})
}

func TestDefaultLogger(t *testing.T) {
	assert.Implements(t, (*Logger)(nil), NewDefaultLogger())
	assert.Implements(t, (*Logger)(nil), logging.MakeGrip(send.MakeInternalLogger()))
}
