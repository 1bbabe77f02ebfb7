package tag

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	"github.com/evergreen-ci/mskcreds/awsutil"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"
)

// BasicTagClient provides a mskcreds.TagClient implementation that wraps the
// AWS Resource Groups Tagging API.
type BasicTagClient struct {
	awsutil.BaseClient
	rgt *resourcegroupstaggingapi.Client
}

// NewBasicTagClient creates a new AWS Resource Groups Tagging API client from
// the given options.
func NewBasicTagClient(ctx context.Context, opts awsutil.ClientOptions) (*BasicTagClient, error) {
	c := &BasicTagClient{
		BaseClient: awsutil.NewBaseClient(opts),
	}
	if err := c.setup(ctx); err != nil {
		return nil, errors.Wrap(err, "setting up client")
	}

	return c, nil
}

func (c *BasicTagClient) setup(ctx context.Context) error {
	if c.rgt != nil {
		return nil
	}

	cfg, err := c.GetConfig(ctx)
	if err != nil {
		return errors.Wrap(err, "initializing config")
	}

	c.rgt = resourcegroupstaggingapi.NewFromConfig(*cfg)

	return nil
}

// GetResources finds arbitrary AWS resources that match the input filters.
func (c *BasicTagClient) GetResources(ctx context.Context, in *resourcegroupstaggingapi.GetResourcesInput) (*resourcegroupstaggingapi.GetResourcesOutput, error) {
	if err := c.setup(ctx); err != nil {
		return nil, errors.Wrap(err, "setting up client")
	}

	out, err := c.rgt.GetResources(ctx, in)
	if err != nil {
		c.Logger().Debug(message.WrapError(err, awsutil.MakeAPILogMessage("GetResources", "")))
		return nil, errors.Wrap(err, "getting resources")
	}
	return out, nil
}

// Close cleans up all resources owned by the client.
func (c *BasicTagClient) Close(ctx context.Context) error {
	return c.BaseClient.Close(ctx)
}
