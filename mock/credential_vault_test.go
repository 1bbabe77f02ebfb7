package mock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/evergreen-ci/mskcreds"
	"github.com/evergreen-ci/mskcreds/internal/testcase"
	"github.com/evergreen-ci/mskcreds/internal/testutil"
	"github.com/evergreen-ci/mskcreds/secret"
	"github.com/evergreen-ci/utility"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type vaultFixture struct {
	vault   *CredentialVault
	client  *SecretsManagerClient
	tracker *SecretTracker
	tracked *testutil.MemorySecretTracker
	logger  *testutil.RecordingLogger
}

func newVaultFixture(t *testing.T) vaultFixture {
	f := vaultFixture{
		client:  &SecretsManagerClient{},
		tracked: testutil.NewMemorySecretTracker(),
		logger:  &testutil.RecordingLogger{},
	}
	f.tracker = NewSecretTracker(f.tracked)

	opts := secret.NewBasicCredentialVaultOptions().
		SetClient(f.client).
		SetTagClient(&TagClient{}).
		SetTracker(f.tracker).
		SetLogger(f.logger)
	v, err := secret.NewBasicCredentialVault(*opts)
	require.NoError(t, err)
	f.vault = NewCredentialVault(v)

	return f
}

func TestCredentialVaultWithSecretsManager(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	defer ResetGlobalSecretCache()

	for tName, tCase := range testcase.CredentialVaultTests() {
		t.Run(tName, func(t *testing.T) {
			tctx, tcancel := context.WithTimeout(ctx, defaultTestTimeout)
			defer tcancel()

			ResetGlobalSecretCache()

			f := newVaultFixture(t)

			tCase(tctx, t, f.vault, f.client)
		})
	}

	for tName, tCase := range map[string]func(ctx context.Context, t *testing.T, f vaultFixture){
		"EmptyIDIsRejectedWithoutRequests": func(ctx context.Context, t *testing.T, f vaultFixture) {
			_, err := f.vault.GetValue(ctx, "")
			assert.Equal(t, mskcreds.ErrorKindInvalidParameter, mskcreds.ErrorKindOf(err))
			err = f.vault.UpdateValue(ctx, "", *mskcreds.NewSCRAMCredentials("alice", "p@ss"))
			assert.Equal(t, mskcreds.ErrorKindInvalidParameter, mskcreds.ErrorKindOf(err))
			err = f.vault.PutResourcePolicy(ctx, "", nil)
			assert.Equal(t, mskcreds.ErrorKindInvalidParameter, mskcreds.ErrorKindOf(err))
			_, err = f.vault.DeleteSecret(ctx, "", false)
			assert.Equal(t, mskcreds.ErrorKindInvalidParameter, mskcreds.ErrorKindOf(err))

			assert.Nil(t, f.client.GetSecretValueInput)
			assert.Nil(t, f.client.PutSecretValueInput)
			assert.Nil(t, f.client.PutResourcePolicyInput)
			assert.Nil(t, f.client.DeleteSecretInput)
			assert.Len(t, f.logger.Errors(), 4)
		},
		"CreateSecretSendsMSKSecretRequest": func(ctx context.Context, t *testing.T, f vaultFixture) {
			arn, err := f.vault.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("alice", "p@ss"), "kms-1")
			require.NoError(t, err)

			in := f.client.CreateSecretInput
			require.NotZero(t, in)
			assert.Equal(t, "AmazonMSK_alice", utility.FromStringPtr(in.Name))
			assert.Equal(t, "Amazon MSK secret for user alice", utility.FromStringPtr(in.Description))
			assert.Equal(t, "kms-1", utility.FromStringPtr(in.KmsKeyId))
			assert.JSONEq(t, `{"username":"alice","password":"p@ss"}`, utility.FromStringPtr(in.SecretString))
			assert.Nil(t, in.SecretBinary)

			assert.Equal(t, "kms-1", GlobalSecretCache[arn].KMSKeyID)

			require.NotZero(t, f.client.PutResourcePolicyInput)
			assert.Equal(t, arn, utility.FromStringPtr(f.client.PutResourcePolicyInput.SecretId))

			require.NotZero(t, f.vault.CreateSecretInput)
			assert.Equal(t, "alice", f.vault.CreateSecretInput.Username)
			assert.Equal(t, "kms-1", utility.FromStringPtr(f.vault.CreateSecretKMSKeyID))
		},
		"CredentialLifecycle": func(ctx context.Context, t *testing.T, f vaultFixture) {
			arn, err := f.vault.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("alice", "p@ss"), "kms-1")
			require.NoError(t, err)
			assert.Regexp(t, `^arn:aws:secretsmanager:us-east-1:000000000000:secret:AmazonMSK_alice-[A-Za-z0-9]{6}$`, arn)

			val, err := f.vault.GetValue(ctx, arn)
			require.NoError(t, err)
			assert.JSONEq(t, `{"username":"alice","password":"p@ss"}`, val)

			require.NoError(t, f.vault.UpdateValue(ctx, arn, *mskcreds.NewSCRAMCredentials("alice", "new")))
			val, err = f.vault.GetValue(ctx, arn)
			require.NoError(t, err)
			assert.JSONEq(t, `{"username":"alice","password":"new"}`, val)

			_, err = f.vault.DeleteSecret(ctx, arn, true)
			require.NoError(t, err)
			val, err = f.vault.GetValue(ctx, arn)
			assert.Zero(t, val)
			assert.True(t, mskcreds.IsSecretNotFoundError(err))
		},
		"CreateSecretTracksNewSecret": func(ctx context.Context, t *testing.T, f vaultFixture) {
			arn, err := f.vault.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("alice", "p@ss"), "")
			require.NoError(t, err)

			item, ok := f.tracked.Get(arn)
			require.True(t, ok)
			assert.Equal(t, arn, item.ID)
			assert.Equal(t, "AmazonMSK_alice", item.Name)
			assert.Equal(t, "alice", item.Username)
		},
		"CreateSecretOmitsEmptyKMSKey": func(ctx context.Context, t *testing.T, f vaultFixture) {
			_, err := f.vault.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("alice", "p@ss"), "")
			require.NoError(t, err)

			require.NotZero(t, f.client.CreateSecretInput)
			assert.Nil(t, f.client.CreateSecretInput.KmsKeyId)
		},
		"CreateSecretReturnsARNWhenResourcePolicyFails": func(ctx context.Context, t *testing.T, f vaultFixture) {
			f.client.PutResourcePolicyError = errors.New("access denied")

			arn, err := f.vault.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("alice", "p@ss"), "kms-1")
			assert.Error(t, err)
			require.NotZero(t, arn)
			assert.Equal(t, mskcreds.ErrorKindTransport, mskcreds.ErrorKindOf(err))

			s, ok := GlobalSecretCache[arn]
			require.True(t, ok, "secret should not be rolled back")
			assert.False(t, s.IsDeleted)
			assert.Zero(t, s.ResourcePolicy)

			assert.Nil(t, f.tracker.PutInput, "secret should not be tracked")

			require.NotEmpty(t, f.logger.Errors())
			for _, msg := range f.logger.Errors() {
				assert.NotContains(t, msg, "p@ss")
			}
		},
		"CreateSecretFailsWithoutARN": func(ctx context.Context, t *testing.T, f vaultFixture) {
			f.client.CreateSecretOutput = &secretsmanager.CreateSecretOutput{}

			arn, err := f.vault.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("alice", "p@ss"), "")
			assert.Error(t, err)
			assert.Zero(t, arn)
			assert.Equal(t, mskcreds.ErrorKindNullResponse, mskcreds.ErrorKindOf(err))
			assert.Nil(t, f.client.PutResourcePolicyInput)
		},
		"CreateSecretFailsWithInvalidCredentialsBeforeRemoteCall": func(ctx context.Context, t *testing.T, f vaultFixture) {
			arn, err := f.vault.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("", "p@ss"), "")
			assert.Error(t, err)
			assert.Zero(t, arn)
			assert.Nil(t, f.client.CreateSecretInput)
		},
		"CreateSecretReturnsTrackerError": func(ctx context.Context, t *testing.T, f vaultFixture) {
			f.tracker.PutError = errors.New("tracker failure")

			arn, err := f.vault.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("alice", "p@ss"), "")
			assert.Error(t, err)
			assert.NotZero(t, arn)
			assert.Contains(t, GlobalSecretCache, arn)
		},
		"GetValuePinsCurrentVersion": func(ctx context.Context, t *testing.T, f vaultFixture) {
			arn, err := f.vault.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("alice", "p@ss"), "")
			require.NoError(t, err)

			_, err = f.vault.GetValue(ctx, arn)
			require.NoError(t, err)

			require.NotZero(t, f.client.GetSecretValueInput)
			assert.Equal(t, arn, utility.FromStringPtr(f.client.GetSecretValueInput.SecretId))
			assert.Equal(t, "AWSCURRENT", utility.FromStringPtr(f.client.GetSecretValueInput.VersionStage))
		},
		"GetValueReturnsBinaryPayloadAsRawString": func(ctx context.Context, t *testing.T, f vaultFixture) {
			f.client.GetSecretValueOutput = &secretsmanager.GetSecretValueOutput{
				SecretBinary: []byte(`{"username":"alice","password":"p@ss"}`),
			}

			val, err := f.vault.GetValue(ctx, "id")
			require.NoError(t, err)
			assert.Equal(t, `{"username":"alice","password":"p@ss"}`, val)
		},
		"GetValueFailsWithoutPayload": func(ctx context.Context, t *testing.T, f vaultFixture) {
			f.client.GetSecretValueOutput = &secretsmanager.GetSecretValueOutput{ARN: aws.String("id")}

			val, err := f.vault.GetValue(ctx, "id")
			assert.Error(t, err)
			assert.Zero(t, val)
			assert.Equal(t, mskcreds.ErrorKindNullResponse, mskcreds.ErrorKindOf(err))
		},
		"GetValueClassifiesUnknownErrorsAsTransport": func(ctx context.Context, t *testing.T, f vaultFixture) {
			f.client.GetSecretValueError = errors.New("connection reset")

			val, err := f.vault.GetValue(ctx, "id")
			assert.Error(t, err)
			assert.Zero(t, val)
			assert.Equal(t, mskcreds.ErrorKindTransport, mskcreds.ErrorKindOf(err))
			assert.Contains(t, err.Error(), "connection reset")
		},
		"UpdateValueSendsCredentialsAsJSON": func(ctx context.Context, t *testing.T, f vaultFixture) {
			arn, err := f.vault.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("alice", "p@ss"), "")
			require.NoError(t, err)

			require.NoError(t, f.vault.UpdateValue(ctx, arn, *mskcreds.NewSCRAMCredentials("alice", "n3w")))

			in := f.client.PutSecretValueInput
			require.NotZero(t, in)
			assert.Equal(t, arn, utility.FromStringPtr(in.SecretId))
			assert.JSONEq(t, `{"username":"alice","password":"n3w"}`, utility.FromStringPtr(in.SecretString))
			assert.Equal(t, arn, utility.FromStringPtr(f.vault.UpdateValueID))
		},
		"PutResourcePolicyPassesCustomPolicyThrough": func(ctx context.Context, t *testing.T, f vaultFixture) {
			policy := `{"Version":"2012-10-17","Statement":[]}`
			f.client.PutResourcePolicyOutput = &secretsmanager.PutResourcePolicyOutput{}

			require.NoError(t, f.vault.PutResourcePolicy(ctx, "id", &policy))

			require.NotZero(t, f.client.PutResourcePolicyInput)
			assert.Equal(t, policy, utility.FromStringPtr(f.client.PutResourcePolicyInput.ResourcePolicy))
		},
		"DeleteSecretImmediatelyForcesDeletionWithoutRecoveryWindow": func(ctx context.Context, t *testing.T, f vaultFixture) {
			arn, err := f.vault.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("alice", "p@ss"), "")
			require.NoError(t, err)

			_, err = f.vault.DeleteSecret(ctx, arn, true)
			require.NoError(t, err)

			in := f.client.DeleteSecretInput
			require.NotZero(t, in)
			assert.True(t, utility.FromBoolPtr(in.ForceDeleteWithoutRecovery))
			assert.Nil(t, in.RecoveryWindowInDays)

			assert.NotContains(t, GlobalSecretCache, arn)
			_, tracked := f.tracked.Get(arn)
			assert.False(t, tracked)
		},
		"DeleteSecretWithRecoveryUsesSevenDayWindow": func(ctx context.Context, t *testing.T, f vaultFixture) {
			arn, err := f.vault.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("alice", "p@ss"), "")
			require.NoError(t, err)

			_, err = f.vault.DeleteSecret(ctx, arn, false)
			require.NoError(t, err)

			in := f.client.DeleteSecretInput
			require.NotZero(t, in)
			assert.Nil(t, in.ForceDeleteWithoutRecovery)
			assert.EqualValues(t, 7, utility.FromInt64Ptr(in.RecoveryWindowInDays))

			assert.True(t, GlobalSecretCache[arn].IsDeleted)
			require.NotZero(t, f.tracker.DeleteInput)
			assert.Equal(t, arn, *f.tracker.DeleteInput)
		},
		"DeleteSecretFailsWithoutDeletionDate": func(ctx context.Context, t *testing.T, f vaultFixture) {
			f.client.DeleteSecretOutput = &secretsmanager.DeleteSecretOutput{ARN: aws.String("id")}

			deletionDate, err := f.vault.DeleteSecret(ctx, "id", true)
			assert.Error(t, err)
			assert.Zero(t, deletionDate)
			assert.Equal(t, mskcreds.ErrorKindNullResponse, mskcreds.ErrorKindOf(err))
			assert.Nil(t, f.tracker.DeleteInput)
		},
		"NeverLogsPasswords": func(ctx context.Context, t *testing.T, f vaultFixture) {
			const password = "sup3r-s3cret"
			arn, err := f.vault.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("alice", password), "")
			require.NoError(t, err)
			require.NoError(t, f.vault.UpdateValue(ctx, arn, *mskcreds.NewSCRAMCredentials("alice", password)))
			_, err = f.vault.GetValue(ctx, arn)
			require.NoError(t, err)
			f.client.PutSecretValueError = errors.New("throttled")
			assert.Error(t, f.vault.UpdateValue(ctx, arn, *mskcreds.NewSCRAMCredentials("alice", password)))

			require.NotEmpty(t, f.logger.Infos())
			require.NotEmpty(t, f.logger.Errors())
			for _, msg := range append(f.logger.Infos(), f.logger.Errors()...) {
				assert.NotContains(t, msg, password)
			}
		},
		"MockVaultReturnsCustomOutput": func(ctx context.Context, t *testing.T, f vaultFixture) {
			f.vault.GetValueOutput = utility.ToStringPtr("custom")

			val, err := f.vault.GetValue(ctx, "id")
			require.NoError(t, err)
			assert.Equal(t, "custom", val)
			assert.Nil(t, f.client.GetSecretValueInput, "backing vault should not be called")
		},
		"MockVaultFindSecretsUsesBackingVault": func(ctx context.Context, t *testing.T, f vaultFixture) {
			arn, err := f.vault.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("alice", "p@ss"), "")
			require.NoError(t, err)

			arns, err := f.vault.FindSecrets(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, []string{arn}, arns)
			assert.Equal(t, []string{"alice"}, f.vault.FindSecretsInput)
		},
		"MockVaultFindSecretsReturnsCustomOutput": func(ctx context.Context, t *testing.T, f vaultFixture) {
			f.vault.FindSecretsError = errors.New("fail")

			arns, err := f.vault.FindSecrets(ctx, "bob")
			assert.Error(t, err)
			assert.Empty(t, arns)
			assert.Equal(t, []string{"bob"}, f.vault.FindSecretsInput)
		},
	} {
		t.Run(tName, func(t *testing.T) {
			tctx, tcancel := context.WithTimeout(ctx, defaultTestTimeout)
			defer tcancel()

			ResetGlobalSecretCache()

			tCase(tctx, t, newVaultFixture(t))
		})
	}
}

func TestFindSecrets(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	ResetGlobalSecretCache()
	defer ResetGlobalSecretCache()

	c := &SecretsManagerClient{}
	v, err := secret.NewBasicCredentialVault(*secret.NewBasicCredentialVaultOptions().
		SetClient(c).
		SetTagClient(&TagClient{}).
		SetLogger(&testutil.RecordingLogger{}))
	require.NoError(t, err)

	aliceARN, err := v.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("alice", "p@ss"), "")
	require.NoError(t, err)
	bobARN, err := v.CreateSecret(ctx, *mskcreds.NewSCRAMCredentials("bob", "p@ss"), "")
	require.NoError(t, err)
	testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
		Name:         aws.String("unmanaged"),
		SecretString: aws.String("foo"),
	})

	t.Run("ReturnsAllVaultSecrets", func(t *testing.T) {
		arns, err := v.FindSecrets(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{aliceARN, bobARN}, arns)
	})
	t.Run("FiltersByUsername", func(t *testing.T) {
		arns, err := v.FindSecrets(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, []string{bobARN}, arns)
	})
	t.Run("ReturnsNoResultsForUnknownUser", func(t *testing.T) {
		arns, err := v.FindSecrets(ctx, "carol")
		require.NoError(t, err)
		assert.Empty(t, arns)
	})
	t.Run("OmitsSecretsScheduledForDeletion", func(t *testing.T) {
		_, err := v.DeleteSecret(ctx, bobARN, false)
		require.NoError(t, err)

		arns, err := v.FindSecrets(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{aliceARN}, arns)
	})
	t.Run("FailsWithTagClientError", func(t *testing.T) {
		tc := &TagClient{GetResourcesError: errors.New("fail")}
		v, err := secret.NewBasicCredentialVault(*secret.NewBasicCredentialVaultOptions().
			SetClient(c).
			SetTagClient(tc).
			SetLogger(&testutil.RecordingLogger{}))
		require.NoError(t, err)

		arns, err := v.FindSecrets(ctx)
		assert.Error(t, err)
		assert.Empty(t, arns)
	})
	t.Run("FailsWithoutTagClient", func(t *testing.T) {
		v, err := secret.NewBasicCredentialVault(*secret.NewBasicCredentialVaultOptions().SetClient(c))
		require.NoError(t, err)

		arns, err := v.FindSecrets(ctx)
		assert.Error(t, err)
		assert.Empty(t, arns)
	})
}
