package secret

import (
	"encoding/json"

	"github.com/pkg/errors"
)

const (
	// policyVersion is the IAM policy language version.
	policyVersion = "2012-10-17"
	// MSKServicePrincipal is the service principal that Amazon MSK uses to
	// read SCRAM secrets.
	MSKServicePrincipal = "kafka.amazonaws.com"
	// GetSecretValueAction is the action that allows reading a secret's value.
	GetSecretValueAction = "secretsmanager:getSecretValue"
)

// ResourcePolicy is an IAM resource policy document attached to a secret.
type ResourcePolicy struct {
	Version   string                    `json:"Version"`
	Statement []ResourcePolicyStatement `json:"Statement"`
}

// ResourcePolicyStatement is a single statement in a ResourcePolicy.
type ResourcePolicyStatement struct {
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal"`
	Action    string            `json:"Action"`
	Resource  string            `json:"Resource"`
}

// NewDefaultResourcePolicy returns a policy that lets the MSK service read the
// value of the secret identified by secretID.
func NewDefaultResourcePolicy(secretID string) ResourcePolicy {
	return ResourcePolicy{
		Version: policyVersion,
		Statement: []ResourcePolicyStatement{
			{
				Effect:    "Allow",
				Principal: map[string]string{"Service": MSKServicePrincipal},
				Action:    GetSecretValueAction,
				Resource:  secretID,
			},
		},
	}
}

// JSON returns the JSON policy document.
func (p ResourcePolicy) JSON() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "marshalling resource policy")
	}
	return string(b), nil
}

// ParseResourcePolicy parses a JSON policy document.
func ParseResourcePolicy(doc string) (*ResourcePolicy, error) {
	var p ResourcePolicy
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, errors.Wrap(err, "unmarshalling resource policy")
	}
	return &p, nil
}
