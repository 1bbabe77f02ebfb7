package testutil

import (
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/evergreen-ci/mskcreds/awsutil"
	"github.com/evergreen-ci/utility"
)

// runtimeNamespace is a random string generated during testing runtime that
// acts as a namespace for this particular runtime's tests. It is used to
// namespace AWS resources (e.g. secrets). This avoids an issue where the tests
// can be running concurrently on different machines and may interfere with
// each other due to the way AWS resources are cleaned up at the end of tests.
var runtimeNamespace = utility.RandomString()

// AWSRole returns the AWS IAM role from the environment variable.
func AWSRole() string {
	return os.Getenv("AWS_ROLE")
}

// AWSRegion returns the AWS region from the environment variable.
func AWSRegion() string {
	return os.Getenv("AWS_REGION")
}

// ValidIntegrationAWSOptions returns valid options to create an AWS client that
// can make actual requests to AWS for integration testing. Credentials are
// resolved from the default credential chain. The HTTP client is not used if
// a custom CA bundle is configured, since the SDK must build its own client to
// trust the bundle.
func ValidIntegrationAWSOptions(hc *http.Client) awsutil.ClientOptions {
	opts := awsutil.NewClientOptions().SetRegion(AWSRegion())
	if os.Getenv("AWS_CA_BUNDLE") == "" {
		opts.SetHTTPClient(hc)
	}
	if role := AWSRole(); role != "" {
		opts.SetRole(role)
	}
	return *opts
}

// ValidNonIntegrationAWSOptions returns valid options to create an AWS client
// that doesn't make any actual requests to AWS.
func ValidNonIntegrationAWSOptions() awsutil.ClientOptions {
	return *awsutil.NewClientOptions().
		SetCredentialsProvider(credentials.NewStaticCredentialsProvider("access_key", "secret_key", "")).
		SetRegion("us-east-1")
}
