package errors

import "fmt"

// Authentication failures. Each of them terminates the connection after an
// authenticationFailed event has been emitted to the client.
var (
	ErrCredentialMissing       = fmt.Errorf("no credential provided")
	ErrInvalidCredential       = fmt.Errorf("invalid credential")
	ErrIncompleteIdentity      = fmt.Errorf("verified identity is missing required claims")
	ErrProfileResolutionFailed = fmt.Errorf("user profile could not be resolved")
	ErrSessionAlreadyBound     = fmt.Errorf("session is already bound to an identity")
)

// Authorization and validation failures. The connection stays open and no
// persistence side effect occurs.
var (
	ErrUnauthorized     = fmt.Errorf("connection is not authenticated")
	ErrMalformedMessage = fmt.Errorf("malformed message payload")
	ErrInvalidFormat    = fmt.Errorf("invalid profile payload")
	ErrUsernameTooLong  = fmt.Errorf("username exceeds the maximum length")
)

// Persistence failures.
var (
	ErrProfileNotFound          = fmt.Errorf("no profile row for authenticated identity")
	ErrMessagePersistenceFailed = fmt.Errorf("message could not be persisted")
)

// Moderation setup failures.
var ErrEmptyWords = fmt.Errorf("no words have been found")
