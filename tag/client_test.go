package tag

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	"github.com/evergreen-ci/mskcreds"
	"github.com/evergreen-ci/mskcreds/awsutil"
	"github.com/evergreen-ci/mskcreds/internal/testcase"
	"github.com/evergreen-ci/mskcreds/internal/testutil"
	"github.com/evergreen-ci/mskcreds/secret"
	"github.com/evergreen-ci/utility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// defaultTestTimeout is the standard timeout for integration tests against
// the Resource Groups Tagging API.
const defaultTestTimeout = time.Minute

func TestNewBasicTagClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("SucceedsWithValidOptions", func(t *testing.T) {
		c, err := NewBasicTagClient(ctx, testutil.ValidNonIntegrationAWSOptions())
		require.NoError(t, err)
		assert.NotZero(t, c.rgt)
		assert.NoError(t, c.Close(ctx))
	})
	t.Run("FailsWithInvalidOptions", func(t *testing.T) {
		c, err := NewBasicTagClient(ctx, *awsutil.NewClientOptions())
		assert.Error(t, err)
		assert.Zero(t, c)
	})
}

func TestBasicTagClientRequests(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newStubbedClient := func(t *testing.T, h http.HandlerFunc) (*BasicTagClient, *testutil.RecordingLogger) {
		srv := httptest.NewServer(h)
		t.Cleanup(srv.Close)

		logger := &testutil.RecordingLogger{}
		opts := testutil.ValidNonIntegrationAWSOptions()
		opts.SetLogger(logger)
		c, err := NewBasicTagClient(ctx, opts)
		require.NoError(t, err)

		cfg, err := c.GetConfig(ctx)
		require.NoError(t, err)
		c.rgt = resourcegroupstaggingapi.NewFromConfig(*cfg, func(o *resourcegroupstaggingapi.Options) {
			o.BaseEndpoint = aws.String(srv.URL)
			o.RetryMaxAttempts = 1
		})

		return c, logger
	}

	t.Run("GetResourcesReturnsOutput", func(t *testing.T) {
		var target string
		c, logger := newStubbedClient(t, func(w http.ResponseWriter, r *http.Request) {
			target = r.Header.Get("X-Amz-Target")
			w.Header().Set("Content-Type", "application/x-amz-json-1.1")
			_, _ = w.Write([]byte(`{"ResourceTagMappingList":[{"ResourceARN":"arn"}]}`))
		})
		defer func() {
			assert.NoError(t, c.Close(ctx))
		}()

		out, err := c.GetResources(ctx, &resourcegroupstaggingapi.GetResourcesInput{})
		require.NoError(t, err)
		require.Len(t, out.ResourceTagMappingList, 1)
		assert.Equal(t, "arn", utility.FromStringPtr(out.ResourceTagMappingList[0].ResourceARN))
		assert.Equal(t, "ResourceGroupsTaggingAPI_20170126.GetResources", target)
		assert.Empty(t, logger.Debugs())
	})
	t.Run("GetResourcesLogsFailureToLogger", func(t *testing.T) {
		c, logger := newStubbedClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/x-amz-json-1.1")
			w.Header().Set("X-Amzn-ErrorType", "InvalidParameterException")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"__type":"InvalidParameterException","Message":"stubbed failure"}`))
		})
		defer func() {
			assert.NoError(t, c.Close(ctx))
		}()

		out, err := c.GetResources(ctx, &resourcegroupstaggingapi.GetResourcesInput{})
		assert.Error(t, err)
		assert.Zero(t, out)

		debugs := logger.Debugs()
		require.Len(t, debugs, 1)
		assert.Contains(t, debugs[0], "GetResources")
		assert.Contains(t, debugs[0], "InvalidParameterException")
	})
}

func TestBasicTagClient(t *testing.T) {
	assert.Implements(t, (*mskcreds.TagClient)(nil), &BasicTagClient{})

	testutil.CheckAWSEnvVarsForSecretsManager(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hc := utility.GetHTTPClient()
	defer utility.PutHTTPClient(hc)

	awsOpts := testutil.ValidIntegrationAWSOptions(hc)

	c, err := NewBasicTagClient(ctx, awsOpts)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, c.Close(ctx))
	}()

	for tName, tCase := range testcase.TagClientTests() {
		t.Run(tName, func(t *testing.T) {
			tctx, tcancel := context.WithTimeout(ctx, defaultTestTimeout)
			defer tcancel()

			tCase(tctx, t, c)
		})
	}

	smClient, err := secret.NewBasicSecretsManagerClient(ctx, awsOpts)
	require.NoError(t, err)
	defer func() {
		testutil.CleanupSecrets(ctx, t, smClient)

		assert.NoError(t, smClient.Close(ctx))
	}()

	for tName, tCase := range testcase.TagClientSecretTests() {
		t.Run(tName, func(t *testing.T) {
			tctx, tcancel := context.WithTimeout(ctx, defaultTestTimeout)
			defer tcancel()

			tCase(tctx, t, c, smClient)
		})
	}
}
