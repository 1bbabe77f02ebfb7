package secret

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/evergreen-ci/mskcreds"
	"github.com/evergreen-ci/mskcreds/internal/testcase"
	"github.com/evergreen-ci/mskcreds/internal/testutil"
	"github.com/evergreen-ci/utility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicCredentialVaultOptions(t *testing.T) {
	t.Run("SetClient", func(t *testing.T) {
		c := &BasicSecretsManagerClient{}
		opts := NewBasicCredentialVaultOptions().SetClient(c)
		assert.Equal(t, c, opts.Client)
	})
	t.Run("SetTracker", func(t *testing.T) {
		tr := &testutil.NoopSecretTracker{}
		opts := NewBasicCredentialVaultOptions().SetTracker(tr)
		assert.Equal(t, tr, opts.Tracker)
	})
	t.Run("SetLogger", func(t *testing.T) {
		l := &testutil.RecordingLogger{}
		opts := NewBasicCredentialVaultOptions().SetLogger(l)
		assert.Equal(t, l, opts.Logger)
	})
	t.Run("ValidateFailsWithoutClient", func(t *testing.T) {
		assert.Error(t, NewBasicCredentialVaultOptions().Validate())
	})
	t.Run("ValidateDefaultsLogger", func(t *testing.T) {
		opts := NewBasicCredentialVaultOptions().SetClient(&BasicSecretsManagerClient{})
		require.NoError(t, opts.Validate())
		assert.Equal(t, mskcreds.NewDefaultLogger(), opts.Logger)
		assert.Nil(t, opts.TagClient)
		assert.Nil(t, opts.Tracker)
	})
	t.Run("NewBasicCredentialVaultFailsWithInvalidOptions", func(t *testing.T) {
		v, err := NewBasicCredentialVault(*NewBasicCredentialVaultOptions())
		assert.Error(t, err)
		assert.Zero(t, v)
	})
}

func TestSecretName(t *testing.T) {
	assert.Equal(t, "AmazonMSK_alice", SecretName("alice"))
}

func TestBasicCredentialVaultWithStubbedSecretsManager(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const arn = "arn:aws:secretsmanager:us-east-1:000000000000:secret:AmazonMSK_alice-a1b2c3"
	var mu sync.Mutex
	requests := map[string]map[string]interface{}{}
	c := newStubbedClient(ctx, t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		in := map[string]interface{}{}
		assert.NoError(t, json.Unmarshal(body, &in))

		mu.Lock()
		requests[r.Header.Get("X-Amz-Target")] = in
		mu.Unlock()

		w.Header().Set("Content-Type", "application/x-amz-json-1.1")
		_, _ = w.Write([]byte(`{"ARN":"` + arn + `","Name":"AmazonMSK_alice"}`))
	})
	defer func() {
		assert.NoError(t, c.Close(ctx))
	}()

	v, err := NewBasicCredentialVault(*NewBasicCredentialVaultOptions().
		SetClient(c).
		SetLogger(&testutil.RecordingLogger{}))
	require.NoError(t, err)

	createdARN, err := v.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("alice", "p@ss"), "kms-1")
	require.NoError(t, err)
	assert.Equal(t, arn, createdARN)

	mu.Lock()
	defer mu.Unlock()

	createIn, ok := requests["secretsmanager.CreateSecret"]
	require.True(t, ok)
	assert.Equal(t, "AmazonMSK_alice", createIn["Name"])
	assert.Equal(t, "kms-1", createIn["KmsKeyId"])
	assert.Equal(t, "Amazon MSK secret for user alice", createIn["Description"])
	assert.JSONEq(t, `{"username":"alice","password":"p@ss"}`, createIn["SecretString"].(string))

	policyIn, ok := requests["secretsmanager.PutResourcePolicy"]
	require.True(t, ok)
	assert.Equal(t, arn, policyIn["SecretId"])
	policy, err := ParseResourcePolicy(policyIn["ResourcePolicy"].(string))
	require.NoError(t, err)
	assert.Equal(t, NewDefaultResourcePolicy(arn), *policy)
}

func TestBasicCredentialVault(t *testing.T) {
	assert.Implements(t, (*mskcreds.CredentialVault)(nil), &BasicCredentialVault{})

	testutil.CheckAWSEnvVarsForSecretsManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hc := utility.GetHTTPClient()
	defer utility.PutHTTPClient(hc)

	c, err := NewBasicSecretsManagerClient(ctx, testutil.ValidIntegrationAWSOptions(hc))
	require.NoError(t, err)
	defer func() {
		testutil.CleanupSecrets(ctx, t, c)

		assert.NoError(t, c.Close(ctx))
	}()

	v, err := NewBasicCredentialVault(*NewBasicCredentialVaultOptions().SetClient(c))
	require.NoError(t, err)

	for tName, tCase := range testcase.CredentialVaultTests() {
		t.Run(tName, func(t *testing.T) {
			tctx, tcancel := context.WithTimeout(ctx, defaultTestTimeout)
			defer tcancel()

			tCase(tctx, t, v, c)
		})
	}
}
