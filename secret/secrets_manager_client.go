package secret

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/evergreen-ci/mskcreds"
	"github.com/evergreen-ci/mskcreds/awsutil"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// BasicSecretsManagerClient provides a mskcreds.SecretsManagerClient
// implementation that wraps the Secrets Manager API. Each method issues exactly
// one request, and any failure is returned as a *mskcreds.SecretsManagerError.
// It is safe for concurrent use.
type BasicSecretsManagerClient struct {
	awsutil.BaseClient
	sm *secretsmanager.Client
}

// NewBasicSecretsManagerClient creates a new Secrets Manager client from the
// given options.
func NewBasicSecretsManagerClient(ctx context.Context, opts awsutil.ClientOptions) (*BasicSecretsManagerClient, error) {
	c := &BasicSecretsManagerClient{
		BaseClient: awsutil.NewBaseClient(opts),
	}
	if err := c.setup(ctx); err != nil {
		return nil, errors.Wrap(err, "setting up client")
	}

	return c, nil
}

// NewSecretsManagerClientForRegion creates a new Secrets Manager client for
// the given region. It authenticates with the default credential chain and
// refreshes the credentials before they expire. The region is not validated
// until the first request is made.
func NewSecretsManagerClientForRegion(ctx context.Context, region string) (*BasicSecretsManagerClient, error) {
	return NewBasicSecretsManagerClient(ctx, *awsutil.NewClientOptions().SetRegion(region))
}

func (c *BasicSecretsManagerClient) setup(ctx context.Context) error {
	if c.sm != nil {
		return nil
	}

	cfg, err := c.GetConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "initializing config")
	}

	c.sm = secretsmanager.NewFromConfig(*cfg)

	return nil
}

// CreateSecret creates a new secret.
func (c *BasicSecretsManagerClient) CreateSecret(ctx context.Context, in *secretsmanager.CreateSecretInput) (*secretsmanager.CreateSecretOutput, error) {
	return doRequest(ctx, c, "CreateSecret", utility.FromStringPtr(in.Name), func() (*secretsmanager.CreateSecretOutput, error) {
		return c.sm.CreateSecret(ctx, in)
	})
}

// GetSecretValue gets the decrypted value of an existing secret.
func (c *BasicSecretsManagerClient) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
	return doRequest(ctx, c, "GetSecretValue", utility.FromStringPtr(in.SecretId), func() (*secretsmanager.GetSecretValueOutput, error) {
		return c.sm.GetSecretValue(ctx, in)
	})
}

// PutSecretValue stores a new value for an existing secret.
func (c *BasicSecretsManagerClient) PutSecretValue(ctx context.Context, in *secretsmanager.PutSecretValueInput) (*secretsmanager.PutSecretValueOutput, error) {
	return doRequest(ctx, c, "PutSecretValue", utility.FromStringPtr(in.SecretId), func() (*secretsmanager.PutSecretValueOutput, error) {
		return c.sm.PutSecretValue(ctx, in)
	})
}

// PutResourcePolicy attaches a resource policy to an existing secret.
func (c *BasicSecretsManagerClient) PutResourcePolicy(ctx context.Context, in *secretsmanager.PutResourcePolicyInput) (*secretsmanager.PutResourcePolicyOutput, error) {
	return doRequest(ctx, c, "PutResourcePolicy", utility.FromStringPtr(in.SecretId), func() (*secretsmanager.PutResourcePolicyOutput, error) {
		return c.sm.PutResourcePolicy(ctx, in)
	})
}

// GetResourcePolicy gets the resource policy attached to an existing secret.
func (c *BasicSecretsManagerClient) GetResourcePolicy(ctx context.Context, in *secretsmanager.GetResourcePolicyInput) (*secretsmanager.GetResourcePolicyOutput, error) {
	return doRequest(ctx, c, "GetResourcePolicy", utility.FromStringPtr(in.SecretId), func() (*secretsmanager.GetResourcePolicyOutput, error) {
		return c.sm.GetResourcePolicy(ctx, in)
	})
}

// DescribeSecret gets the metadata information about an existing secret.
func (c *BasicSecretsManagerClient) DescribeSecret(ctx context.Context, in *secretsmanager.DescribeSecretInput) (*secretsmanager.DescribeSecretOutput, error) {
	return doRequest(ctx, c, "DescribeSecret", utility.FromStringPtr(in.SecretId), func() (*secretsmanager.DescribeSecretOutput, error) {
		return c.sm.DescribeSecret(ctx, in)
	})
}

// ListSecrets lists the metadata information for secrets matching the filters.
func (c *BasicSecretsManagerClient) ListSecrets(ctx context.Context, in *secretsmanager.ListSecretsInput) (*secretsmanager.ListSecretsOutput, error) {
	return doRequest(ctx, c, "ListSecrets", "", func() (*secretsmanager.ListSecretsOutput, error) {
		return c.sm.ListSecrets(ctx, in)
	})
}

// DeleteSecret deletes an existing secret.
func (c *BasicSecretsManagerClient) DeleteSecret(ctx context.Context, in *secretsmanager.DeleteSecretInput) (*secretsmanager.DeleteSecretOutput, error) {
	return doRequest(ctx, c, "DeleteSecret", utility.FromStringPtr(in.SecretId), func() (*secretsmanager.DeleteSecretOutput, error) {
		return c.sm.DeleteSecret(ctx, in)
	})
}

// TagResource adds tags to an existing secret.
func (c *BasicSecretsManagerClient) TagResource(ctx context.Context, in *secretsmanager.TagResourceInput) (*secretsmanager.TagResourceOutput, error) {
	return doRequest(ctx, c, "TagResource", utility.FromStringPtr(in.SecretId), func() (*secretsmanager.TagResourceOutput, error) {
		return c.sm.TagResource(ctx, in)
	})
}

// Close closes the client and cleans up its resources.
func (c *BasicSecretsManagerClient) Close(ctx context.Context) error {
	return c.BaseClient.Close(ctx)
}

// doRequest performs a single API request and translates its failure into a
// categorized error.
func doRequest[Out any](ctx context.Context, c *BasicSecretsManagerClient, op, secretID string, request func() (*Out, error)) (*Out, error) {
	if err := c.setup(ctx); err != nil {
		return nil, mskcreds.NewSecretsManagerError(mskcreds.ErrorKindTransport, op, secretID, errors.Wrap(err, "setting up client"))
	}

	out, err := request()
	if err != nil {
		c.Logger().Debug(message.WrapError(err, awsutil.MakeAPILogMessage(op, secretID)))
		return nil, classifyError(op, secretID, err)
	}
	if out == nil {
		return nil, mskcreds.NewSecretsManagerError(mskcreds.ErrorKindNullResponse, op, secretID, nil)
	}

	return out, nil
}

// classifyError categorizes a failed request based on the Secrets Manager
// exception it returned.
func classifyError(op, secretID string, err error) *mskcreds.SecretsManagerError {
	kind := mskcreds.ErrorKindTransport

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case (&types.ResourceNotFoundException{}).ErrorCode():
			kind = mskcreds.ErrorKindNotFound
		case (&types.InvalidRequestException{}).ErrorCode():
			kind = mskcreds.ErrorKindInvalidRequest
		case (&types.InvalidParameterException{}).ErrorCode():
			kind = mskcreds.ErrorKindInvalidParameter
		case (&types.ResourceExistsException{}).ErrorCode():
			kind = mskcreds.ErrorKindAlreadyExists
		}
	}

	return mskcreds.NewSecretsManagerError(kind, op, secretID, err)
}
