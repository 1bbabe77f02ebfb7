package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/evergreen-ci/mskcreds"
	"github.com/evergreen-ci/utility"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	// Region is the region used in the ARNs of mock secrets.
	Region = "us-east-1"
	// AccountID is the account ID used in the ARNs of mock secrets.
	AccountID = "000000000000"

	currentVersionStage = "AWSCURRENT"
)

// StoredSecret is a representation of a secret kept in the global secret
// storage cache.
type StoredSecret struct {
	ARN            string
	Name           string
	Description    string
	KMSKeyID       string
	Value          string
	BinaryValue    []byte
	VersionID      string
	ResourcePolicy string
	IsDeleted      bool
	Created        time.Time
	LastUpdated    time.Time
	LastAccessed   time.Time
	Deleted        time.Time
	Tags           map[string]string
}

func newStoredSecret(in *secretsmanager.CreateSecretInput, ts time.Time) StoredSecret {
	name := utility.FromStringPtr(in.Name)
	return StoredSecret{
		ARN:          newSecretARN(name),
		Name:         name,
		Description:  utility.FromStringPtr(in.Description),
		KMSKeyID:     utility.FromStringPtr(in.KmsKeyId),
		Value:        utility.FromStringPtr(in.SecretString),
		BinaryValue:  in.SecretBinary,
		VersionID:    newVersionID(in.ClientRequestToken),
		Created:      ts,
		LastAccessed: ts,
		Tags:         newSecretsManagerTags(in.Tags),
	}
}

// newSecretARN returns an ARN for the secret name in the same format as
// Secrets Manager, which appends six random characters to the name.
func newSecretARN(name string) string {
	return fmt.Sprintf("arn:aws:secretsmanager:%s:%s:secret:%s-%s", Region, AccountID, name, utility.RandomString()[:6])
}

// newVersionID returns the ID of a new secret version. Like Secrets Manager,
// the client request token becomes the version ID if one is given.
func newVersionID(token *string) string {
	if id := utility.FromStringPtr(token); id != "" {
		return id
	}
	return uuid.NewString()
}

func (s StoredSecret) exportSecretString() *string {
	if s.BinaryValue != nil {
		return nil
	}
	return utility.ToStringPtr(s.Value)
}

func exportSecretListEntry(s StoredSecret) types.SecretListEntry {
	return types.SecretListEntry{
		ARN:              utility.ToStringPtr(s.ARN),
		Name:             utility.ToStringPtr(s.Name),
		Description:      utility.ToStringPtr(s.Description),
		KmsKeyId:         utility.ToStringPtr(s.KMSKeyID),
		CreatedDate:      utility.ToTimePtr(s.Created),
		LastAccessedDate: utility.ToTimePtr(s.LastAccessed),
		LastChangedDate:  utility.ToTimePtr(s.LastUpdated),
		DeletedDate:      utility.ToTimePtr(s.Deleted),
		Tags:             exportSecretsManagerTags(s.Tags),
	}
}

func newSecretsManagerTags(tags []types.Tag) map[string]string {
	converted := map[string]string{}
	for _, t := range tags {
		converted[utility.FromStringPtr(t.Key)] = utility.FromStringPtr(t.Value)
	}
	return converted
}

func exportSecretsManagerTags(tags map[string]string) []types.Tag {
	var exported []types.Tag
	for k, v := range tags {
		exported = append(exported, types.Tag{
			Key:   utility.ToStringPtr(k),
			Value: utility.ToStringPtr(v),
		})
	}
	return exported
}

// GlobalSecretCache is a global secret storage cache that provides a simplified
// in-memory implementation of a secrets storage service. This can be used
// indirectly with the SecretsManagerClient to access and modify secrets, or
// used directly. Secrets are keyed by ARN.
var GlobalSecretCache map[string]StoredSecret

var globalSecretCacheMu sync.Mutex

func init() {
	ResetGlobalSecretCache()
}

// ResetGlobalSecretCache resets the global fake secret storage cache to an
// initialized but clean state.
func ResetGlobalSecretCache() {
	globalSecretCacheMu.Lock()
	defer globalSecretCacheMu.Unlock()

	GlobalSecretCache = map[string]StoredSecret{}
}

// getSecret finds a secret by either its ARN or its name. The caller must hold
// the global lock.
func getSecret(id string) (StoredSecret, bool) {
	if s, ok := GlobalSecretCache[id]; ok {
		return s, true
	}
	for _, s := range GlobalSecretCache {
		if s.Name == id {
			return s, true
		}
	}
	return StoredSecret{}, false
}

// SecretsManagerClient provides a mock implementation of a
// mskcreds.SecretsManagerClient. This makes it possible to introspect on inputs
// to the client and control the client's output. It provides some default
// implementations where possible. By default, it will issue the API calls to
// the fake GlobalSecretCache.
type SecretsManagerClient struct {
	CreateSecretInput  *secretsmanager.CreateSecretInput
	CreateSecretOutput *secretsmanager.CreateSecretOutput
	CreateSecretError  error

	GetSecretValueInput  *secretsmanager.GetSecretValueInput
	GetSecretValueOutput *secretsmanager.GetSecretValueOutput
	GetSecretValueError  error

	PutSecretValueInput  *secretsmanager.PutSecretValueInput
	PutSecretValueOutput *secretsmanager.PutSecretValueOutput
	PutSecretValueError  error

	PutResourcePolicyInput  *secretsmanager.PutResourcePolicyInput
	PutResourcePolicyOutput *secretsmanager.PutResourcePolicyOutput
	PutResourcePolicyError  error

	GetResourcePolicyInput  *secretsmanager.GetResourcePolicyInput
	GetResourcePolicyOutput *secretsmanager.GetResourcePolicyOutput
	GetResourcePolicyError  error

	DescribeSecretInput  *secretsmanager.DescribeSecretInput
	DescribeSecretOutput *secretsmanager.DescribeSecretOutput
	DescribeSecretError  error

	ListSecretsInput  *secretsmanager.ListSecretsInput
	ListSecretsOutput *secretsmanager.ListSecretsOutput
	ListSecretsError  error

	DeleteSecretInput  *secretsmanager.DeleteSecretInput
	DeleteSecretOutput *secretsmanager.DeleteSecretOutput
	DeleteSecretError  error

	TagResourceInput  *secretsmanager.TagResourceInput
	TagResourceOutput *secretsmanager.TagResourceOutput
	TagResourceError  error

	CloseError error
}

// CreateSecret saves the input options and returns a new mock secret. The mock
// output can be customized. By default, it will create and save a cached mock
// secret based on the input in the global secret cache.
func (c *SecretsManagerClient) CreateSecret(ctx context.Context, in *secretsmanager.CreateSecretInput) (*secretsmanager.CreateSecretOutput, error) {
	const op = "CreateSecret"
	c.CreateSecretInput = in

	if c.CreateSecretOutput != nil || c.CreateSecretError != nil {
		return c.CreateSecretOutput, c.CreateSecretError
	}

	name := utility.FromStringPtr(in.Name)
	if name == "" {
		return nil, invalidParameter(op, name, "missing secret name")
	}
	if in.SecretBinary != nil && in.SecretString != nil {
		return nil, invalidParameter(op, name, "cannot specify both secret binary and secret string")
	}
	if in.SecretBinary == nil && in.SecretString == nil {
		return nil, invalidParameter(op, name, "must specify either secret binary or secret string")
	}

	globalSecretCacheMu.Lock()
	defer globalSecretCacheMu.Unlock()

	if s, ok := getSecret(name); ok {
		if s.IsDeleted {
			return nil, invalidRequest(op, name, "secret with the same name is scheduled for deletion")
		}
		return nil, mskcreds.NewSecretsManagerError(mskcreds.ErrorKindAlreadyExists, op, name, errors.New("secret already exists"))
	}

	newSecret := newStoredSecret(in, time.Now())
	GlobalSecretCache[newSecret.ARN] = newSecret

	return &secretsmanager.CreateSecretOutput{
		ARN:       utility.ToStringPtr(newSecret.ARN),
		Name:      utility.ToStringPtr(newSecret.Name),
		VersionId: utility.ToStringPtr(newSecret.VersionID),
	}, nil
}

// GetSecretValue saves the input options and returns an existing mock secret's
// value. The mock output can be customized. By default, it will return a cached
// mock secret if it exists in the global secret cache.
func (c *SecretsManagerClient) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput) (*secretsmanager.GetSecretValueOutput, error) {
	const op = "GetSecretValue"
	c.GetSecretValueInput = in

	if c.GetSecretValueOutput != nil || c.GetSecretValueError != nil {
		return c.GetSecretValueOutput, c.GetSecretValueError
	}

	id := utility.FromStringPtr(in.SecretId)
	if id == "" {
		return nil, invalidParameter(op, id, "missing secret ID")
	}

	globalSecretCacheMu.Lock()
	defer globalSecretCacheMu.Unlock()

	s, ok := getSecret(id)
	if !ok {
		return nil, notFound(op, id)
	}
	if s.IsDeleted {
		return nil, invalidRequest(op, id, "secret is scheduled for deletion")
	}
	if stage := utility.FromStringPtr(in.VersionStage); stage != "" && stage != currentVersionStage {
		return nil, mskcreds.NewSecretsManagerError(mskcreds.ErrorKindNotFound, op, id, errors.Errorf("version stage '%s' not found", stage))
	}

	s.LastAccessed = time.Now()
	GlobalSecretCache[s.ARN] = s

	return &secretsmanager.GetSecretValueOutput{
		ARN:           utility.ToStringPtr(s.ARN),
		Name:          utility.ToStringPtr(s.Name),
		SecretString:  s.exportSecretString(),
		SecretBinary:  s.BinaryValue,
		VersionId:     utility.ToStringPtr(s.VersionID),
		VersionStages: []string{currentVersionStage},
		CreatedDate:   utility.ToTimePtr(s.Created),
	}, nil
}

// PutSecretValue saves the input options and stores a new value in an existing
// mock secret. The mock output can be customized. By default, it will replace
// the value of a cached mock secret if it exists in the global secret cache.
func (c *SecretsManagerClient) PutSecretValue(ctx context.Context, in *secretsmanager.PutSecretValueInput) (*secretsmanager.PutSecretValueOutput, error) {
	const op = "PutSecretValue"
	c.PutSecretValueInput = in

	if c.PutSecretValueOutput != nil || c.PutSecretValueError != nil {
		return c.PutSecretValueOutput, c.PutSecretValueError
	}

	id := utility.FromStringPtr(in.SecretId)
	if id == "" {
		return nil, invalidParameter(op, id, "missing secret ID")
	}
	if in.SecretBinary != nil && in.SecretString != nil {
		return nil, invalidParameter(op, id, "cannot specify both secret binary and secret string")
	}
	if in.SecretBinary == nil && in.SecretString == nil {
		return nil, invalidParameter(op, id, "must specify either secret binary or secret string")
	}

	globalSecretCacheMu.Lock()
	defer globalSecretCacheMu.Unlock()

	s, ok := getSecret(id)
	if !ok {
		return nil, notFound(op, id)
	}
	if s.IsDeleted {
		return nil, invalidRequest(op, id, "secret is scheduled for deletion")
	}

	if in.SecretBinary != nil {
		s.BinaryValue = in.SecretBinary
		s.Value = ""
	} else {
		s.Value = *in.SecretString
		s.BinaryValue = nil
	}

	ts := time.Now()
	s.VersionID = newVersionID(in.ClientRequestToken)
	s.LastAccessed = ts
	s.LastUpdated = ts
	GlobalSecretCache[s.ARN] = s

	return &secretsmanager.PutSecretValueOutput{
		ARN:           utility.ToStringPtr(s.ARN),
		Name:          utility.ToStringPtr(s.Name),
		VersionId:     utility.ToStringPtr(s.VersionID),
		VersionStages: []string{currentVersionStage},
	}, nil
}

// PutResourcePolicy saves the input options and attaches a resource policy to
// an existing mock secret. The mock output can be customized. By default, it
// will replace the resource policy of a cached mock secret if it exists in the
// global secret cache.
func (c *SecretsManagerClient) PutResourcePolicy(ctx context.Context, in *secretsmanager.PutResourcePolicyInput) (*secretsmanager.PutResourcePolicyOutput, error) {
	const op = "PutResourcePolicy"
	c.PutResourcePolicyInput = in

	if c.PutResourcePolicyOutput != nil || c.PutResourcePolicyError != nil {
		return c.PutResourcePolicyOutput, c.PutResourcePolicyError
	}

	id := utility.FromStringPtr(in.SecretId)
	if id == "" {
		return nil, invalidParameter(op, id, "missing secret ID")
	}
	policy := utility.FromStringPtr(in.ResourcePolicy)
	if policy == "" {
		return nil, invalidParameter(op, id, "missing resource policy")
	}
	if !json.Valid([]byte(policy)) {
		return nil, invalidParameter(op, id, "resource policy is not a valid JSON document")
	}

	globalSecretCacheMu.Lock()
	defer globalSecretCacheMu.Unlock()

	s, ok := getSecret(id)
	if !ok {
		return nil, notFound(op, id)
	}
	if s.IsDeleted {
		return nil, invalidRequest(op, id, "secret is scheduled for deletion")
	}

	s.ResourcePolicy = policy
	s.LastUpdated = time.Now()
	GlobalSecretCache[s.ARN] = s

	return &secretsmanager.PutResourcePolicyOutput{
		ARN:  utility.ToStringPtr(s.ARN),
		Name: utility.ToStringPtr(s.Name),
	}, nil
}

// GetResourcePolicy saves the input options and returns the resource policy of
// an existing mock secret. The mock output can be customized. By default, it
// will return the resource policy of a cached mock secret if it exists in the
// global secret cache.
func (c *SecretsManagerClient) GetResourcePolicy(ctx context.Context, in *secretsmanager.GetResourcePolicyInput) (*secretsmanager.GetResourcePolicyOutput, error) {
	const op = "GetResourcePolicy"
	c.GetResourcePolicyInput = in

	if c.GetResourcePolicyOutput != nil || c.GetResourcePolicyError != nil {
		return c.GetResourcePolicyOutput, c.GetResourcePolicyError
	}

	id := utility.FromStringPtr(in.SecretId)
	if id == "" {
		return nil, invalidParameter(op, id, "missing secret ID")
	}

	globalSecretCacheMu.Lock()
	defer globalSecretCacheMu.Unlock()

	s, ok := getSecret(id)
	if !ok {
		return nil, notFound(op, id)
	}

	out := &secretsmanager.GetResourcePolicyOutput{
		ARN:  utility.ToStringPtr(s.ARN),
		Name: utility.ToStringPtr(s.Name),
	}
	if s.ResourcePolicy != "" {
		out.ResourcePolicy = utility.ToStringPtr(s.ResourcePolicy)
	}
	return out, nil
}

// DescribeSecret saves the input options and returns an existing mock secret's
// metadata information. The mock output can be customized. By default, it will
// return information about the cached mock secret if it exists in the global
// secret cache.
func (c *SecretsManagerClient) DescribeSecret(ctx context.Context, in *secretsmanager.DescribeSecretInput) (*secretsmanager.DescribeSecretOutput, error) {
	const op = "DescribeSecret"
	c.DescribeSecretInput = in

	if c.DescribeSecretOutput != nil || c.DescribeSecretError != nil {
		return c.DescribeSecretOutput, c.DescribeSecretError
	}

	id := utility.FromStringPtr(in.SecretId)
	if id == "" {
		return nil, invalidParameter(op, id, "missing secret ID")
	}

	globalSecretCacheMu.Lock()
	defer globalSecretCacheMu.Unlock()

	s, ok := getSecret(id)
	if !ok {
		return nil, notFound(op, id)
	}

	return &secretsmanager.DescribeSecretOutput{
		ARN:              utility.ToStringPtr(s.ARN),
		Name:             utility.ToStringPtr(s.Name),
		Description:      utility.ToStringPtr(s.Description),
		KmsKeyId:         utility.ToStringPtr(s.KMSKeyID),
		CreatedDate:      utility.ToTimePtr(s.Created),
		LastAccessedDate: utility.ToTimePtr(s.LastAccessed),
		LastChangedDate:  utility.ToTimePtr(s.LastUpdated),
		DeletedDate:      utility.ToTimePtr(s.Deleted),
		Tags:             exportSecretsManagerTags(s.Tags),
	}, nil
}

// ListSecrets saves the input options and returns all matching mock secrets'
// metadata information. The mock output can be customized. By default, it will
// return any matching cached mock secrets in the global secret cache that are
// not scheduled for deletion.
func (c *SecretsManagerClient) ListSecrets(ctx context.Context, in *secretsmanager.ListSecretsInput) (*secretsmanager.ListSecretsOutput, error) {
	const op = "ListSecrets"
	c.ListSecretsInput = in

	if c.ListSecretsOutput != nil || c.ListSecretsError != nil {
		return c.ListSecretsOutput, c.ListSecretsError
	}

	globalSecretCacheMu.Lock()
	defer globalSecretCacheMu.Unlock()

	// Get the subset of secrets that match each and every one of the filters.
	var matchingAllFilters map[string]StoredSecret
	for _, f := range in.Filters {
		var matchingValues map[string]StoredSecret
		switch f.Key {
		case types.FilterNameStringTypeName:
			matchingValues = secretsMatchingAnyNamePrefix(f.Values)
		// This could support other filter keys, but it's not worth it unless
		// the need arises.
		default:
			return nil, invalidParameter(op, "", "unsupported filter")
		}

		if matchingAllFilters == nil {
			matchingAllFilters = matchingValues
		} else {
			matchingAllFilters = getSetIntersection(matchingAllFilters, matchingValues)
		}
	}
	if len(in.Filters) == 0 {
		matchingAllFilters = map[string]StoredSecret{}
		for arn, s := range GlobalSecretCache {
			if !s.IsDeleted {
				matchingAllFilters[arn] = s
			}
		}
	}

	var converted []types.SecretListEntry
	for _, s := range matchingAllFilters {
		converted = append(converted, exportSecretListEntry(s))
	}

	return &secretsmanager.ListSecretsOutput{
		SecretList: converted,
	}, nil
}

func getSetIntersection(a, b map[string]StoredSecret) map[string]StoredSecret {
	intersection := map[string]StoredSecret{}
	for arn, s := range a {
		if _, ok := b[arn]; ok {
			intersection[arn] = s
		}
	}
	return intersection
}

// secretsMatchingAnyNamePrefix returns all secrets whose names begin with any
// of the given values. If the value begins with a "!", the match is negated.
func secretsMatchingAnyNamePrefix(vals []string) map[string]StoredSecret {
	secrets := map[string]StoredSecret{}
	for arn, s := range GlobalSecretCache {
		if s.IsDeleted {
			continue
		}

		for _, val := range vals {
			if strings.HasPrefix(val, "!") && !strings.HasPrefix(s.Name, val[1:]) {
				secrets[arn] = s
			}
			if !strings.HasPrefix(val, "!") && strings.HasPrefix(s.Name, val) {
				secrets[arn] = s
			}
		}
	}
	return secrets
}

// DeleteSecret saves the input options and deletes an existing mock secret. The
// mock output can be customized. By default, a forced deletion removes the
// cached mock secret immediately, while any other deletion schedules it to be
// deleted after the recovery window.
func (c *SecretsManagerClient) DeleteSecret(ctx context.Context, in *secretsmanager.DeleteSecretInput) (*secretsmanager.DeleteSecretOutput, error) {
	const op = "DeleteSecret"
	c.DeleteSecretInput = in

	if c.DeleteSecretOutput != nil || c.DeleteSecretError != nil {
		return c.DeleteSecretOutput, c.DeleteSecretError
	}

	id := utility.FromStringPtr(in.SecretId)
	if id == "" {
		return nil, invalidParameter(op, id, "missing secret ID")
	}

	force := utility.FromBoolPtr(in.ForceDeleteWithoutRecovery)
	if force && in.RecoveryWindowInDays != nil {
		return nil, invalidParameter(op, id, "cannot force delete without recovery and also schedule a recovery window")
	}

	window := int(utility.FromInt64Ptr(in.RecoveryWindowInDays))
	if in.RecoveryWindowInDays != nil && (window < 7 || window > 30) {
		return nil, invalidParameter(op, id, "recovery window must be between 7 and 30 days")
	}
	if window == 0 {
		window = 30
	}

	globalSecretCacheMu.Lock()
	defer globalSecretCacheMu.Unlock()

	ts := time.Now()
	s, ok := getSecret(id)
	if force {
		// Secrets Manager does not check that the secret exists when
		// forcing deletion.
		if ok {
			delete(GlobalSecretCache, s.ARN)
		} else {
			s.ARN = id
			s.Name = id
		}
		return &secretsmanager.DeleteSecretOutput{
			ARN:          utility.ToStringPtr(s.ARN),
			Name:         utility.ToStringPtr(s.Name),
			DeletionDate: utility.ToTimePtr(ts),
		}, nil
	}

	if !ok {
		return nil, notFound(op, id)
	}
	if s.IsDeleted {
		return nil, invalidRequest(op, id, "secret is already scheduled for deletion")
	}

	s.LastAccessed = ts
	s.LastUpdated = ts
	s.Deleted = ts.AddDate(0, 0, window)
	s.IsDeleted = true
	GlobalSecretCache[s.ARN] = s

	return &secretsmanager.DeleteSecretOutput{
		ARN:          utility.ToStringPtr(s.ARN),
		Name:         utility.ToStringPtr(s.Name),
		DeletionDate: utility.ToTimePtr(s.Deleted),
	}, nil
}

// TagResource saves the input options and tags an existing mock secret. The
// mock output can be customized. By default, it will tag the cached mock
// secret if it exists.
func (c *SecretsManagerClient) TagResource(ctx context.Context, in *secretsmanager.TagResourceInput) (*secretsmanager.TagResourceOutput, error) {
	const op = "TagResource"
	c.TagResourceInput = in

	if c.TagResourceOutput != nil || c.TagResourceError != nil {
		return c.TagResourceOutput, c.TagResourceError
	}

	id := utility.FromStringPtr(in.SecretId)
	if id == "" {
		return nil, invalidParameter(op, id, "missing secret ID")
	}

	globalSecretCacheMu.Lock()
	defer globalSecretCacheMu.Unlock()

	s, ok := getSecret(id)
	if !ok {
		return nil, notFound(op, id)
	}
	if s.IsDeleted {
		return nil, invalidRequest(op, id, "secret is scheduled for deletion")
	}

	for k, v := range newSecretsManagerTags(in.Tags) {
		s.Tags[k] = v
	}
	GlobalSecretCache[s.ARN] = s

	return &secretsmanager.TagResourceOutput{}, nil
}

// Close closes the mock client. The mock output can be customized. By default,
// it is a no-op that returns no error.
func (c *SecretsManagerClient) Close(ctx context.Context) error {
	if c.CloseError != nil {
		return c.CloseError
	}
	return nil
}

func notFound(op, id string) error {
	return mskcreds.NewSecretsManagerError(mskcreds.ErrorKindNotFound, op, id, errors.New("secret not found"))
}

func invalidRequest(op, id, msg string) error {
	return mskcreds.NewSecretsManagerError(mskcreds.ErrorKindInvalidRequest, op, id, errors.New(msg))
}

func invalidParameter(op, id, msg string) error {
	return mskcreds.NewSecretsManagerError(mskcreds.ErrorKindInvalidParameter, op, id, errors.New(msg))
}
