package testcase

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	tagtypes "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/evergreen-ci/mskcreds"
	"github.com/evergreen-ci/mskcreds/internal/testutil"
	"github.com/evergreen-ci/utility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secretResourceType = "secretsmanager:secret"

// TagClientTestCase represents a test case for a mskcreds.TagClient.
type TagClientTestCase func(ctx context.Context, t *testing.T, c mskcreds.TagClient)

// TagClientTests returns common test cases that a mskcreds.TagClient should
// support.
func TagClientTests() map[string]TagClientTestCase {
	return map[string]TagClientTestCase{
		"GetResourcesFailsWithTagFilterMissingKey": func(ctx context.Context, t *testing.T, c mskcreds.TagClient) {
			out, err := c.GetResources(ctx, &resourcegroupstaggingapi.GetResourcesInput{
				TagFilters: []tagtypes.TagFilter{
					{
						Values: []string{"value"},
					},
				},
			})
			assert.Error(t, err)
			assert.Zero(t, out)
		},
		"GetResourcesFailsWithInvalidResourceType": func(ctx context.Context, t *testing.T, c mskcreds.TagClient) {
			out, err := c.GetResources(ctx, &resourcegroupstaggingapi.GetResourcesInput{
				ResourceTypeFilters: []string{"nonexistent"},
			})
			assert.Error(t, err)
			assert.Zero(t, out)
		},
		"GetResourcesSucceedsWithNoResults": func(ctx context.Context, t *testing.T, c mskcreds.TagClient) {
			out, err := c.GetResources(ctx, &resourcegroupstaggingapi.GetResourcesInput{
				ResourceTypeFilters: []string{"secretsmanager"},
				TagFilters: []tagtypes.TagFilter{
					{
						Key:    aws.String(utility.RandomString()),
						Values: []string{"nonexistent"},
					},
				},
			})
			require.NoError(t, err)
			require.NotZero(t, out)
			assert.Empty(t, out.ResourceTagMappingList)
		},
	}
}

// TagClientSecretTestCase represents a test case for a mskcreds.TagClient with
// a mskcreds.SecretsManagerClient.
type TagClientSecretTestCase func(ctx context.Context, t *testing.T, tagClient mskcreds.TagClient, smClient mskcreds.SecretsManagerClient)

// TagClientSecretTests returns common test cases that rely on Secrets Manager
// that a mskcreds.TagClient should support.
func TagClientSecretTests() map[string]TagClientSecretTestCase {
	return map[string]TagClientSecretTestCase{
		"GetResourcesMatchesSingleTagForSingleSecret": func(ctx context.Context, t *testing.T, tagClient mskcreds.TagClient, smClient mskcreds.SecretsManagerClient) {
			tags := newRandomTags(1)
			arn := createTaggedSecret(ctx, t, smClient, tags)
			defer cleanupSecret(ctx, t, smClient, aws.String(arn))

			out, err := tagClient.GetResources(ctx, &resourcegroupstaggingapi.GetResourcesInput{
				ResourceTypeFilters: []string{secretResourceType},
				TagFilters:          []tagtypes.TagFilter{tagFilter(tags[0])},
			})
			require.NoError(t, err)
			checkResources(t, out, []string{arn})
		},
		"GetResourcesMatchesSingleTagForMultipleSecrets": func(ctx context.Context, t *testing.T, tagClient mskcreds.TagClient, smClient mskcreds.SecretsManagerClient) {
			tags := newRandomTags(1)
			var arns []string
			for i := 0; i < 3; i++ {
				arn := createTaggedSecret(ctx, t, smClient, tags)
				defer cleanupSecret(ctx, t, smClient, aws.String(arn))
				arns = append(arns, arn)
			}

			out, err := tagClient.GetResources(ctx, &resourcegroupstaggingapi.GetResourcesInput{
				ResourceTypeFilters: []string{secretResourceType},
				TagFilters:          []tagtypes.TagFilter{tagFilter(tags[0])},
			})
			require.NoError(t, err)
			checkResources(t, out, arns)
		},
		"GetResourcesMatchesOneOfMultipleTagValues": func(ctx context.Context, t *testing.T, tagClient mskcreds.TagClient, smClient mskcreds.SecretsManagerClient) {
			tags := newRandomTags(1)
			arn := createTaggedSecret(ctx, t, smClient, tags)
			defer cleanupSecret(ctx, t, smClient, aws.String(arn))

			out, err := tagClient.GetResources(ctx, &resourcegroupstaggingapi.GetResourcesInput{
				ResourceTypeFilters: []string{secretResourceType},
				TagFilters: []tagtypes.TagFilter{
					{
						Key:    tags[0].Key,
						Values: []string{"foo", utility.FromStringPtr(tags[0].Value), "bar"},
					},
				},
			})
			require.NoError(t, err)
			checkResources(t, out, []string{arn})
		},
		"GetResourcesMatchesTagKeysWithoutValues": func(ctx context.Context, t *testing.T, tagClient mskcreds.TagClient, smClient mskcreds.SecretsManagerClient) {
			tags := newRandomTags(2)
			arn := createTaggedSecret(ctx, t, smClient, tags)
			defer cleanupSecret(ctx, t, smClient, aws.String(arn))

			out, err := tagClient.GetResources(ctx, &resourcegroupstaggingapi.GetResourcesInput{
				ResourceTypeFilters: []string{secretResourceType},
				TagFilters: []tagtypes.TagFilter{
					{Key: tags[0].Key},
					{Key: tags[1].Key},
				},
			})
			require.NoError(t, err)
			checkResources(t, out, []string{arn})
		},
		"GetResourcesReturnsNoResultsForUnmatchedResourceType": func(ctx context.Context, t *testing.T, tagClient mskcreds.TagClient, smClient mskcreds.SecretsManagerClient) {
			tags := newRandomTags(1)
			arn := createTaggedSecret(ctx, t, smClient, tags)
			defer cleanupSecret(ctx, t, smClient, aws.String(arn))

			out, err := tagClient.GetResources(ctx, &resourcegroupstaggingapi.GetResourcesInput{
				ResourceTypeFilters: []string{"kafka:cluster"},
				TagFilters:          []tagtypes.TagFilter{tagFilter(tags[0])},
			})
			require.NoError(t, err)
			require.NotZero(t, out)
			assert.Empty(t, out.ResourceTagMappingList)
		},
		"GetResourcesOmitsSecretsMissingAnyTag": func(ctx context.Context, t *testing.T, tagClient mskcreds.TagClient, smClient mskcreds.SecretsManagerClient) {
			tags := newRandomTags(1)
			arn := createTaggedSecret(ctx, t, smClient, tags)
			defer cleanupSecret(ctx, t, smClient, aws.String(arn))

			out, err := tagClient.GetResources(ctx, &resourcegroupstaggingapi.GetResourcesInput{
				ResourceTypeFilters: []string{secretResourceType},
				TagFilters: []tagtypes.TagFilter{
					tagFilter(tags[0]),
					{Key: aws.String(utility.RandomString())},
				},
			})
			require.NoError(t, err)
			require.NotZero(t, out)
			assert.Empty(t, out.ResourceTagMappingList)
		},
		"GetResourcesOmitsSecretsWithUnmatchedTagValue": func(ctx context.Context, t *testing.T, tagClient mskcreds.TagClient, smClient mskcreds.SecretsManagerClient) {
			tags := newRandomTags(1)
			arn := createTaggedSecret(ctx, t, smClient, tags)
			defer cleanupSecret(ctx, t, smClient, aws.String(arn))

			out, err := tagClient.GetResources(ctx, &resourcegroupstaggingapi.GetResourcesInput{
				ResourceTypeFilters: []string{secretResourceType},
				TagFilters: []tagtypes.TagFilter{
					{
						Key:    tags[0].Key,
						Values: []string{"nonexistent"},
					},
				},
			})
			require.NoError(t, err)
			require.NotZero(t, out)
			assert.Empty(t, out.ResourceTagMappingList)
		},
	}
}

func newRandomTags(n int) []types.Tag {
	var tags []types.Tag
	for i := 0; i < n; i++ {
		tags = append(tags, types.Tag{
			Key:   aws.String(utility.RandomString()),
			Value: aws.String(utility.RandomString()),
		})
	}
	return tags
}

func tagFilter(tag types.Tag) tagtypes.TagFilter {
	return tagtypes.TagFilter{
		Key:    tag.Key,
		Values: []string{utility.FromStringPtr(tag.Value)},
	}
}

func createTaggedSecret(ctx context.Context, t *testing.T, c mskcreds.SecretsManagerClient, tags []types.Tag) string {
	out := testutil.CreateSecret(ctx, t, c, secretsmanager.CreateSecretInput{
		Name:         aws.String(testutil.NewSecretName()),
		SecretString: aws.String(utility.RandomString()),
		Tags:         tags,
	})
	return utility.FromStringPtr(out.ARN)
}

func checkResources(t *testing.T, out *resourcegroupstaggingapi.GetResourcesOutput, expected []string) {
	require.NotZero(t, out)
	require.Len(t, out.ResourceTagMappingList, len(expected), "number of results should match expected")
	for _, res := range out.ResourceTagMappingList {
		arn := utility.FromStringPtr(res.ResourceARN)
		assert.True(t, utility.StringSliceContains(expected, arn), "unexpected resource '%s' in results", arn)
	}
}
