package secret

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	tagtypes "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/evergreen-ci/mskcreds"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

const (
	// SecretNamePrefix is the prefix that MSK requires for the names of
	// secrets associated with a cluster.
	SecretNamePrefix = "AmazonMSK_"
	// RecoveryWindowInDays is the number of days that a secret can still be
	// restored after a non-immediate deletion.
	RecoveryWindowInDays = 7
	// UsernameTagKey is the tag key that identifies the SCRAM user of a secret
	// created by the vault.
	UsernameTagKey = "mskcreds:username"

	currentVersionStage = "AWSCURRENT"
	secretResourceType  = "secretsmanager:secret"
)

// SecretName returns the name of the secret that holds the credentials for
// the given user.
func SecretName(username string) string {
	return SecretNamePrefix + username
}

// BasicCredentialVault provides a mskcreds.CredentialVault implementation
// backed by Secrets Manager.
type BasicCredentialVault struct {
	client    mskcreds.SecretsManagerClient
	tagClient mskcreds.TagClient
	tracker   mskcreds.SecretTracker
	logger    mskcreds.Logger
}

// BasicCredentialVaultOptions are options to create a basic credential vault.
type BasicCredentialVaultOptions struct {
	Client mskcreds.SecretsManagerClient
	// TagClient is used to find the secrets created by the vault. It is only
	// required for FindSecrets.
	TagClient mskcreds.TagClient
	// Tracker records the identifiers of created and deleted secrets.
	Tracker mskcreds.SecretTracker
	// Logger receives the vault's log messages. Defaults to the global grip
	// logger.
	Logger mskcreds.Logger
}

// NewBasicCredentialVaultOptions returns new uninitialized options to create a
// basic credential vault.
func NewBasicCredentialVaultOptions() *BasicCredentialVaultOptions {
	return &BasicCredentialVaultOptions{}
}

// SetClient sets the client the vault uses to communicate with Secrets
// Manager.
func (o *BasicCredentialVaultOptions) SetClient(c mskcreds.SecretsManagerClient) *BasicCredentialVaultOptions {
	o.Client = c
	return o
}

// SetTagClient sets the client the vault uses to find its secrets.
func (o *BasicCredentialVaultOptions) SetTagClient(c mskcreds.TagClient) *BasicCredentialVaultOptions {
	o.TagClient = c
	return o
}

// SetTracker sets the tracker that records the vault's secrets.
func (o *BasicCredentialVaultOptions) SetTracker(t mskcreds.SecretTracker) *BasicCredentialVaultOptions {
	o.Tracker = t
	return o
}

// SetLogger sets the logger for the vault.
func (o *BasicCredentialVaultOptions) SetLogger(l mskcreds.Logger) *BasicCredentialVaultOptions {
	o.Logger = l
	return o
}

// Validate checks that the required parameters to initialize a credential
// vault are given and sets defaults for unspecified options.
func (o *BasicCredentialVaultOptions) Validate() error {
	catcher := grip.NewBasicCatcher()
	catcher.NewWhen(o.Client == nil, "must specify a client")
	if catcher.HasErrors() {
		return catcher.Resolve()
	}

	if o.Logger == nil {
		o.Logger = mskcreds.NewDefaultLogger()
	}

	return nil
}

// NewBasicCredentialVault creates a new credential vault backed by Secrets
// Manager.
func NewBasicCredentialVault(opts BasicCredentialVaultOptions) (*BasicCredentialVault, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid options")
	}
	return &BasicCredentialVault{
		client:    opts.Client,
		tagClient: opts.TagClient,
		tracker:   opts.Tracker,
		logger:    opts.Logger,
	}, nil
}

// GetValue returns the current value of the secret. If the secret has a binary
// value instead of a string value, the raw bytes are returned as a string.
func (v *BasicCredentialVault) GetValue(ctx context.Context, id string) (string, error) {
	const op = "GetSecretValue"
	if err := v.checkID(op, id); err != nil {
		return "", v.fail(op, id, err, "retrieving secret")
	}

	v.logger.Info(message.Fields{
		"message":   "retrieving secret value",
		"secret_id": id,
	})

	out, err := v.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(id),
		VersionStage: aws.String(currentVersionStage),
	})
	if err != nil {
		return "", v.fail(op, id, err, "retrieving secret")
	}
	if out == nil || (out.SecretString == nil && out.SecretBinary == nil) {
		return "", v.fail(op, id, mskcreds.NewSecretsManagerError(mskcreds.ErrorKindNullResponse, op, id, errors.New("secret has neither a string nor a binary value")), "retrieving secret")
	}

	v.logger.Info(message.Fields{
		"message":   "successfully retrieved secret value",
		"secret_id": id,
	})

	if out.SecretString != nil {
		return *out.SecretString, nil
	}
	return string(out.SecretBinary), nil
}

// CreateSecret creates a new secret for the user's credentials encrypted with
// the given KMS key, then attaches the default resource policy to it so that
// MSK can read it. The secret is not deleted if attaching the policy fails; in
// that case, the ARN is returned along with the error.
func (v *BasicCredentialVault) CreateSecret(ctx context.Context, creds mskcreds.SCRAMCredentials, kmsKeyID string) (arn string, err error) {
	const op = "CreateSecret"
	name := SecretName(creds.Username)

	if err := creds.Validate(); err != nil {
		return "", v.fail(op, name, mskcreds.NewSecretsManagerError(mskcreds.ErrorKindInvalidParameter, op, name, err), "invalid credentials")
	}
	val, err := creds.SecretString()
	if err != nil {
		return "", v.fail(op, name, mskcreds.NewSecretsManagerError(mskcreds.ErrorKindInvalidParameter, op, name, err), "encoding credentials")
	}

	in := &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		Description:  aws.String("Amazon MSK secret for user " + creds.Username),
		SecretString: aws.String(val),
		Tags: []types.Tag{
			{
				Key:   aws.String(UsernameTagKey),
				Value: aws.String(creds.Username),
			},
		},
	}
	if kmsKeyID != "" {
		in.KmsKeyId = aws.String(kmsKeyID)
	}

	v.logger.Info(message.Fields{
		"message":  "creating secret",
		"name":     name,
		"username": creds.Username,
	})

	out, err := v.client.CreateSecret(ctx, in)
	if err != nil {
		return "", v.fail(op, name, err, "creating secret")
	}
	if out == nil || utility.FromStringPtr(out.ARN) == "" {
		return "", v.fail(op, name, mskcreds.NewSecretsManagerError(mskcreds.ErrorKindNullResponse, op, name, errors.New("created secret is missing its ARN")), "creating secret")
	}
	arn = *out.ARN

	v.logger.Info(message.Fields{
		"message": "adding resource policy to allow MSK to access the secret",
		"name":    name,
		"arn":     arn,
	})
	if err := v.PutResourcePolicy(ctx, arn, nil); err != nil {
		v.logger.Error(message.WrapError(err, message.Fields{
			"message": "secret was created but its resource policy could not be attached",
			"name":    name,
			"arn":     arn,
		}))
		return arn, errors.Wrapf(err, "attaching resource policy to newly-created secret '%s'", arn)
	}

	if v.tracker != nil {
		if err := v.tracker.Put(ctx, mskcreds.SecretTrackerItem{
			ID:       arn,
			Name:     name,
			Username: creds.Username,
		}); err != nil {
			v.logger.Error(message.WrapError(err, message.Fields{
				"message": "could not track newly-created secret",
				"name":    name,
				"arn":     arn,
			}))
			return arn, errors.Wrapf(err, "tracking newly-created secret '%s'", arn)
		}
	}

	return arn, nil
}

// UpdateValue replaces the current value of the secret with the given
// credentials.
func (v *BasicCredentialVault) UpdateValue(ctx context.Context, id string, creds mskcreds.SCRAMCredentials) error {
	const op = "PutSecretValue"
	if err := v.checkID(op, id); err != nil {
		return v.fail(op, id, err, "updating secret value")
	}
	if err := creds.Validate(); err != nil {
		return v.fail(op, id, mskcreds.NewSecretsManagerError(mskcreds.ErrorKindInvalidParameter, op, id, err), "invalid credentials")
	}
	val, err := creds.SecretString()
	if err != nil {
		return v.fail(op, id, mskcreds.NewSecretsManagerError(mskcreds.ErrorKindInvalidParameter, op, id, err), "encoding credentials")
	}

	v.logger.Info(message.Fields{
		"message":   "updating secret value",
		"secret_id": id,
	})

	if _, err := v.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(id),
		SecretString: aws.String(val),
	}); err != nil {
		return v.fail(op, id, err, "updating secret value")
	}

	return nil
}

// PutResourcePolicy replaces the resource policy on the secret. If policy is
// nil, the default policy allowing MSK to read the secret is used.
func (v *BasicCredentialVault) PutResourcePolicy(ctx context.Context, id string, policy *string) error {
	const op = "PutResourcePolicy"
	if err := v.checkID(op, id); err != nil {
		return v.fail(op, id, err, "putting resource policy")
	}

	var doc string
	if policy != nil {
		doc = *policy
	} else {
		var err error
		doc, err = NewDefaultResourcePolicy(id).JSON()
		if err != nil {
			return v.fail(op, id, mskcreds.NewSecretsManagerError(mskcreds.ErrorKindInvalidParameter, op, id, err), "building default resource policy")
		}
	}

	v.logger.Info(message.Fields{
		"message":        "adding resource policy to secret",
		"secret_id":      id,
		"default_policy": policy == nil,
	})

	if _, err := v.client.PutResourcePolicy(ctx, &secretsmanager.PutResourcePolicyInput{
		SecretId:       aws.String(id),
		ResourcePolicy: aws.String(doc),
	}); err != nil {
		return v.fail(op, id, err, "putting resource policy")
	}

	return nil
}

// DeleteSecret deletes the secret. If immediate is true, the secret is deleted
// without any chance of recovery; otherwise, it is scheduled for deletion after
// the recovery window. It returns the date when the secret is deleted.
func (v *BasicCredentialVault) DeleteSecret(ctx context.Context, id string, immediate bool) (time.Time, error) {
	const op = "DeleteSecret"
	if err := v.checkID(op, id); err != nil {
		return time.Time{}, v.fail(op, id, err, "deleting secret")
	}

	in := &secretsmanager.DeleteSecretInput{
		SecretId: aws.String(id),
	}
	if immediate {
		in.ForceDeleteWithoutRecovery = aws.Bool(true)
	} else {
		in.RecoveryWindowInDays = aws.Int64(RecoveryWindowInDays)
	}

	v.logger.Info(message.Fields{
		"message":   "deleting secret",
		"secret_id": id,
		"immediate": immediate,
	})

	out, err := v.client.DeleteSecret(ctx, in)
	if err != nil {
		return time.Time{}, v.fail(op, id, err, "deleting secret")
	}
	if out == nil || out.DeletionDate == nil {
		return time.Time{}, v.fail(op, id, mskcreds.NewSecretsManagerError(mskcreds.ErrorKindNullResponse, op, id, errors.New("deleted secret is missing its deletion date")), "deleting secret")
	}

	if v.tracker != nil {
		if err := v.tracker.Delete(ctx, id); err != nil {
			v.logger.Error(message.WrapError(err, message.Fields{
				"message":   "could not remove deleted secret from tracker",
				"secret_id": id,
			}))
			return *out.DeletionDate, errors.Wrapf(err, "untracking deleted secret '%s'", id)
		}
	}

	return *out.DeletionDate, nil
}

// FindSecrets returns the ARNs of all the secrets created by a vault. If
// usernames are given, only the secrets for those users are returned.
func (v *BasicCredentialVault) FindSecrets(ctx context.Context, usernames ...string) ([]string, error) {
	if v.tagClient == nil {
		return nil, errors.New("cannot find secrets without a tag client")
	}

	var arns []string
	var token *string
	for {
		out, err := v.tagClient.GetResources(ctx, &resourcegroupstaggingapi.GetResourcesInput{
			ResourceTypeFilters: []string{secretResourceType},
			TagFilters: []tagtypes.TagFilter{
				{
					Key:    aws.String(UsernameTagKey),
					Values: usernames,
				},
			},
			PaginationToken: token,
		})
		if err != nil {
			v.logger.Error(message.WrapError(err, message.Fields{
				"message":   "could not find secrets",
				"usernames": usernames,
			}))
			return nil, errors.Wrap(err, "getting tagged secrets")
		}
		if out == nil {
			break
		}

		for _, res := range out.ResourceTagMappingList {
			if arn := utility.FromStringPtr(res.ResourceARN); arn != "" {
				arns = append(arns, arn)
			}
		}

		if utility.FromStringPtr(out.PaginationToken) == "" {
			break
		}
		token = out.PaginationToken
	}

	return arns, nil
}

// checkID rejects an empty secret ID before any request is made.
func (v *BasicCredentialVault) checkID(op, id string) error {
	if id == "" {
		return mskcreds.NewSecretsManagerError(mskcreds.ErrorKindInvalidParameter, op, id, errors.New("must specify a secret ID"))
	}
	return nil
}

// fail logs the failed operation and returns its error with the given context.
// Errors that were not categorized by the client are treated as transport
// failures.
func (v *BasicCredentialVault) fail(op, id string, err error, msg string) error {
	if mskcreds.ErrorKindOf(err) == "" {
		err = mskcreds.NewSecretsManagerError(mskcreds.ErrorKindTransport, op, id, err)
	}

	v.logger.Error(message.WrapError(err, message.Fields{
		"message":   msg,
		"op":        op,
		"secret_id": id,
		"kind":      mskcreds.ErrorKindOf(err),
	}))

	if id == "" {
		return errors.Wrap(err, msg)
	}
	return errors.Wrapf(err, "%s '%s'", msg, id)
}
