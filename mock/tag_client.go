package mock

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"
	"github.com/evergreen-ci/utility"
)

const secretResourceType = "secretsmanager:secret"

// taggedResource represents an arbitrary AWS resource with its tags.
type taggedResource struct {
	ID   string
	Tags map[string]string
}

func exportTagMapping(res taggedResource) types.ResourceTagMapping {
	return types.ResourceTagMapping{
		ResourceARN: utility.ToStringPtr(res.ID),
		Tags:        exportResourceTags(res.Tags),
	}
}

func exportResourceTags(tags map[string]string) []types.Tag {
	var exported []types.Tag
	for k, v := range tags {
		exported = append(exported, types.Tag{
			Key:   utility.ToStringPtr(k),
			Value: utility.ToStringPtr(v),
		})
	}
	return exported
}

// TagClient provides a mock implementation of a mskcreds.TagClient. This makes
// it possible to introspect on inputs to the client and control the client's
// output. It provides some default implementations where possible. By default,
// it will search the fake GlobalSecretCache for Secrets Manager.
type TagClient struct {
	GetResourcesInput  *resourcegroupstaggingapi.GetResourcesInput
	GetResourcesOutput *resourcegroupstaggingapi.GetResourcesOutput
	GetResourcesError  error

	CloseError error
}

// GetResources saves the input and filters for the resources matching the
// input filters. The mock output can be customized. By default, it will search
// for matching secrets in Secrets Manager. Tag filters are logically ANDed
// together, while the values within a single tag filter are logically ORed.
func (c *TagClient) GetResources(ctx context.Context, in *resourcegroupstaggingapi.GetResourcesInput) (*resourcegroupstaggingapi.GetResourcesOutput, error) {
	c.GetResourcesInput = in

	if c.GetResourcesOutput != nil || c.GetResourcesError != nil {
		return c.GetResourcesOutput, c.GetResourcesError
	}

	searchSecrets := len(in.ResourceTypeFilters) == 0
	for _, filter := range in.ResourceTypeFilters {
		if filter == "" {
			return nil, &types.InvalidParameterException{Message: utility.ToStringPtr("empty resource type filter")}
		}
		if filter == "secretsmanager" || filter == secretResourceType {
			searchSecrets = true
			continue
		}
		if !strings.Contains(filter, ":") {
			return nil, &types.InvalidParameterException{Message: utility.ToStringPtr("unsupported service")}
		}
	}
	for _, f := range in.TagFilters {
		if utility.FromStringPtr(f.Key) == "" {
			return nil, &types.InvalidParameterException{Message: utility.ToStringPtr("tag filter must have a key")}
		}
	}

	out := &resourcegroupstaggingapi.GetResourcesOutput{}
	if !searchSecrets {
		return out, nil
	}

	globalSecretCacheMu.Lock()
	defer globalSecretCacheMu.Unlock()

	var matchingAllTags map[string]taggedResource
	for _, f := range in.TagFilters {
		matchingTag := c.secretsMatchingTag(utility.FromStringPtr(f.Key), f.Values)

		if matchingAllTags == nil {
			// Initialize the candidate set of matching secrets.
			matchingAllTags = matchingTag
		} else {
			// Each matching secret must match all the given tag filters.
			matchingAllTags = c.getSetIntersection(matchingAllTags, matchingTag)
		}
	}
	if len(in.TagFilters) == 0 {
		matchingAllTags = map[string]taggedResource{}
		for _, s := range GlobalSecretCache {
			if s.IsDeleted {
				continue
			}
			matchingAllTags[s.ARN] = c.exportSecretTaggedResource(s)
		}
	}

	for _, res := range matchingAllTags {
		out.ResourceTagMappingList = append(out.ResourceTagMappingList, exportTagMapping(res))
	}

	return out, nil
}

func (c *TagClient) getSetIntersection(a, b map[string]taggedResource) map[string]taggedResource {
	intersection := map[string]taggedResource{}
	for k, v := range a {
		if _, ok := b[k]; ok {
			intersection[k] = v
		}
	}
	return intersection
}

// secretsMatchingTag returns the tagged resources for all secrets containing a
// matching tag key and matching one of the tag values.
func (c *TagClient) secretsMatchingTag(key string, values []string) map[string]taggedResource {
	res := map[string]taggedResource{}
	for _, s := range GlobalSecretCache {
		if s.IsDeleted {
			continue
		}

		v, ok := s.Tags[key]
		if !ok {
			continue
		}

		if len(values) != 0 && !utility.StringSliceContains(values, v) {
			continue
		}

		res[s.ARN] = c.exportSecretTaggedResource(s)
	}
	return res
}

func (c *TagClient) exportSecretTaggedResource(s StoredSecret) taggedResource {
	return taggedResource{
		ID:   s.ARN,
		Tags: s.Tags,
	}
}

// Close closes the mock client. The mock output can be customized. By default,
// it is a no-op that returns no error.
func (c *TagClient) Close(ctx context.Context) error {
	if c.CloseError != nil {
		return c.CloseError
	}

	return nil
}
