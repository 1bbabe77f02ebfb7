package mskcreds

import "context"

// SecretTracker represents an external record of the credential secrets that
// have been created. It only tracks identifiers and never holds secret values.
type SecretTracker interface {
	// Put records a new secret with the given name and external resource
	// identifier.
	Put(ctx context.Context, item SecretTrackerItem) error
	// Delete removes the record of the secret with the given external resource
	// identifier.
	Delete(ctx context.Context, id string) error
}

// SecretTrackerItem represents an item that can be recorded in a
// SecretTracker.
type SecretTrackerItem struct {
	// ID is the unique resource identifier for the stored secret.
	ID string
	// Name is the friendly name of the secret.
	Name string
	// Username is the SCRAM user that the secret holds credentials for.
	Username string
}
