package mock

import (
	"context"

	"github.com/evergreen-ci/mskcreds"
)

// SecretTracker provides a mock implementation of a mskcreds.SecretTracker
// backed by another secret tracker implementation.
type SecretTracker struct {
	mskcreds.SecretTracker

	PutInput *mskcreds.SecretTrackerItem
	PutError error

	DeleteInput *string
	DeleteError error
}

// NewSecretTracker creates a mock secret tracker backed by the given secret
// tracker.
func NewSecretTracker(st mskcreds.SecretTracker) *SecretTracker {
	return &SecretTracker{
		SecretTracker: st,
	}
}

// Put records the secret in the mock tracker. The mock output can be
// customized. By default, it will return the result of putting the secret in
// the backing secret tracker.
func (t *SecretTracker) Put(ctx context.Context, item mskcreds.SecretTrackerItem) error {
	t.PutInput = &item

	if t.PutError != nil {
		return t.PutError
	}

	return t.SecretTracker.Put(ctx, item)
}

// Delete removes the secret from the mock tracker. The mock output can be
// customized. By default, it will return the result of deleting the secret
// from the backing secret tracker.
func (t *SecretTracker) Delete(ctx context.Context, id string) error {
	t.DeleteInput = &id

	if t.DeleteError != nil {
		return t.DeleteError
	}

	return t.SecretTracker.Delete(ctx, id)
}
