package mskcreds

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind categorizes a failed Secrets Manager request.
type ErrorKind string

const (
	// ErrorKindNotFound indicates that the requested secret does not exist.
	ErrorKindNotFound ErrorKind = "not-found"
	// ErrorKindInvalidRequest indicates that the request cannot be performed
	// given the current state of the secret (e.g. it is scheduled for
	// deletion).
	ErrorKindInvalidRequest ErrorKind = "invalid-request"
	// ErrorKindInvalidParameter indicates that one of the request fields
	// failed validation.
	ErrorKindInvalidParameter ErrorKind = "invalid-parameter"
	// ErrorKindAlreadyExists indicates that a secret with the requested name
	// already exists.
	ErrorKindAlreadyExists ErrorKind = "already-exists"
	// ErrorKindNullResponse indicates that the request succeeded but returned
	// no usable response.
	ErrorKindNullResponse ErrorKind = "null-response"
	// ErrorKindTransport indicates any other failure while waiting on the
	// request, including cancellation.
	ErrorKindTransport ErrorKind = "transport"
)

// SecretsManagerError is returned by a SecretsManagerClient when a request
// fails. The Kind is decided by the client when the request fails.
type SecretsManagerError struct {
	Kind     ErrorKind
	Op       string
	SecretID string
	Err      error
}

// NewSecretsManagerError returns a new error of the given kind for the
// operation on the secret. The cause may be nil.
func NewSecretsManagerError(kind ErrorKind, op, secretID string, cause error) *SecretsManagerError {
	return &SecretsManagerError{
		Kind:     kind,
		Op:       op,
		SecretID: secretID,
		Err:      cause,
	}
}

// Error returns the formatted error message.
func (e *SecretsManagerError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.SecretID != "" {
		msg = fmt.Sprintf("%s for secret '%s'", msg, e.SecretID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	return msg
}

// Unwrap returns the underlying cause of the error, if any.
func (e *SecretsManagerError) Unwrap() error {
	return e.Err
}

// ErrorKindOf returns the kind of the SecretsManagerError in the error chain.
// If there is none, it returns the empty kind.
func ErrorKindOf(err error) ErrorKind {
	var smErr *SecretsManagerError
	if errors.As(err, &smErr) {
		return smErr.Kind
	}
	return ""
}

// IsSecretNotFoundError returns whether or not the error is due to a secret
// that does not exist.
func IsSecretNotFoundError(err error) bool {
	return ErrorKindOf(err) == ErrorKindNotFound
}
