package awsutil

import (
	"context"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/evergreen-ci/mskcreds"
	"github.com/evergreen-ci/utility"
	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
)

// DefaultCredentialsExpiryWindow is how long before expiration cached
// credentials are refreshed if no window is explicitly set.
const DefaultCredentialsExpiryWindow = 5 * time.Minute

// ClientOptions represent AWS client options such as authentication and making
// requests.
type ClientOptions struct {
	// Config is a preconfigured AWS config to use instead of constructing one from the
	// rest of the options. If Config is specified the rest of the options are ignored.
	Config *aws.Config
	// CredsProvider is a credentials provider, which may be used to either connect to
	// the AWS API directly, or authenticate to STS to retrieve temporary
	// credentials to access the API (if Role is specified). If it is not
	// specified, the default credential chain from the environment, shared
	// configuration files or instance role is used.
	CredsProvider *aws.CredentialsProvider
	// Role is the STS role that should be used to perform authorized actions.
	// If specified, the credentials will be used to retrieve temporary
	// credentials from STS.
	Role *string
	// Region is the geographical region where API calls should be made.
	Region *string
	// CredentialsExpiryWindow is how long before the credentials expire that
	// they are considered stale. The first request made inside the window
	// refreshes them before it is sent. Defaults to
	// DefaultCredentialsExpiryWindow.
	CredentialsExpiryWindow *time.Duration
	// Tracing enables OpenTelemetry instrumentation of API requests.
	Tracing bool
	// HTTPClient is the HTTP client to use to make requests. It cannot be
	// combined with a custom CA bundle. If it is not specified, a pooled
	// client is used unless a custom CA bundle is configured, in which case
	// the SDK builds its own client.
	HTTPClient *http.Client
	// Logger receives the log messages for failed API requests. Defaults to
	// the global grip logger.
	Logger mskcreds.Logger

	stsClient   *sts.Client
	stsProvider *stscreds.AssumeRoleProvider

	ownsHTTPClient bool
}

// NewClientOptions returns new unconfigured client options.
func NewClientOptions() *ClientOptions {
	return &ClientOptions{}
}

// SetConfig sets a preconfigured AWS config that takes precedence over all
// other options.
func (o *ClientOptions) SetConfig(cfg aws.Config) *ClientOptions {
	o.Config = &cfg
	return o
}

// SetCredentialsProvider sets the client's credentials provider.
func (o *ClientOptions) SetCredentialsProvider(creds aws.CredentialsProvider) *ClientOptions {
	o.CredsProvider = &creds
	return o
}

// SetRole sets the client's role to assume.
func (o *ClientOptions) SetRole(role string) *ClientOptions {
	o.Role = &role
	return o
}

// SetRegion sets the client's geographical region.
func (o *ClientOptions) SetRegion(region string) *ClientOptions {
	o.Region = &region
	return o
}

// SetCredentialsExpiryWindow sets how long before expiration the credentials
// are refreshed.
func (o *ClientOptions) SetCredentialsExpiryWindow(window time.Duration) *ClientOptions {
	o.CredentialsExpiryWindow = &window
	return o
}

// SetTracing sets whether or not API requests are traced.
func (o *ClientOptions) SetTracing(enabled bool) *ClientOptions {
	o.Tracing = enabled
	return o
}

// SetLogger sets the logger for API requests.
func (o *ClientOptions) SetLogger(l mskcreds.Logger) *ClientOptions {
	o.Logger = l
	return o
}

// GetLogger returns the logger for API requests.
func (o *ClientOptions) GetLogger() mskcreds.Logger {
	if o.Logger == nil {
		return mskcreds.NewDefaultLogger()
	}
	return o.Logger
}

// SetHTTPClient sets the HTTP client to use.
func (o *ClientOptions) SetHTTPClient(hc *http.Client) *ClientOptions {
	o.HTTPClient = hc
	return o
}

// Validate checks that all required fields are given and sets defaults for
// unspecified options.
func (o *ClientOptions) Validate() error {
	if o.Config != nil {
		return nil
	}

	catcher := grip.NewBasicCatcher()
	catcher.NewWhen(o.Region == nil || *o.Region == "", "must provide geographical region")
	catcher.NewWhen(o.Role != nil && *o.Role == "", "role to assume cannot be empty if specified")
	catcher.NewWhen(o.CredentialsExpiryWindow != nil && *o.CredentialsExpiryWindow < 0, "credentials expiry window cannot be negative")

	if catcher.HasErrors() {
		return catcher.Resolve()
	}

	if o.CredentialsExpiryWindow == nil {
		window := DefaultCredentialsExpiryWindow
		o.CredentialsExpiryWindow = &window
	}

	if o.Logger == nil {
		o.Logger = mskcreds.NewDefaultLogger()
	}

	if o.HTTPClient == nil && !hasCustomCABundle() {
		o.HTTPClient = utility.GetHTTPClient()
		o.ownsHTTPClient = true
	}

	return nil
}

// hasCustomCABundle returns whether the environment configures a custom CA
// bundle. The SDK can only add the bundle's certificates to an HTTP client it
// builds itself, so the pooled client cannot be used.
func hasCustomCABundle() bool {
	env, err := config.NewEnvConfig()
	if err != nil {
		return false
	}
	return env.CustomCABundle != ""
}

// GetCredentialsProvider retrieves the appropriate credentials provider to use
// for the client. If it returns nil, the default credential chain should be
// used.
func (o *ClientOptions) GetCredentialsProvider(ctx context.Context) (aws.CredentialsProvider, error) {
	if o.Role == nil {
		if o.CredsProvider == nil {
			return nil, nil
		}
		return *o.CredsProvider, nil
	}

	if o.stsProvider != nil {
		return o.stsProvider, nil
	}

	if o.stsClient == nil {
		loadOpts := o.baseLoadOptions()
		if o.CredsProvider != nil {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(*o.CredsProvider))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, errors.Wrap(err, "creating STS config")
		}

		o.stsClient = sts.NewFromConfig(cfg)
	}

	o.stsProvider = stscreds.NewAssumeRoleProvider(o.stsClient, *o.Role)

	return o.stsProvider, nil
}

// GetConfig gets the authenticated config to perform authorized API actions.
func (o *ClientOptions) GetConfig(ctx context.Context) (*aws.Config, error) {
	if o.Config != nil {
		return o.Config, nil
	}

	if err := o.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid options")
	}

	creds, err := o.GetCredentialsProvider(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting credentials")
	}

	loadOpts := o.baseLoadOptions()
	if creds != nil {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(creds))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating config")
	}

	if o.Tracing {
		otelaws.AppendMiddlewares(&cfg.APIOptions)
	}

	o.Config = &cfg

	return o.Config, nil
}

func (o *ClientOptions) baseLoadOptions() []func(*config.LoadOptions) error {
	window := DefaultCredentialsExpiryWindow
	if o.CredentialsExpiryWindow != nil {
		window = *o.CredentialsExpiryWindow
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(utility.FromStringPtr(o.Region)),
		config.WithCredentialsCacheOptions(func(opts *aws.CredentialsCacheOptions) {
			opts.ExpiryWindow = window
		}),
	}
	if o.HTTPClient != nil {
		loadOpts = append(loadOpts, config.WithHTTPClient(o.HTTPClient))
	}

	return loadOpts
}

// Close cleans up the HTTP client if it is owned by this client.
func (o *ClientOptions) Close() {
	if o.ownsHTTPClient {
		utility.PutHTTPClient(o.HTTPClient)
		o.HTTPClient = nil
		o.ownsHTTPClient = false
	}
}
