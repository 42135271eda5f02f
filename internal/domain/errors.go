package domain

import "errors"

// Sentinel errors for the synchronization engine. These provide consistent,
// checkable errors for the failure domains each operation can hit.
var (
	// ErrAuthenticationRequired indicates an operation that needs a
	// credential was attempted without one. Fatal to a channel open;
	// recoverable by the surrounding session flow.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrPresignRejected indicates the server declined to issue an upload
	// descriptor, e.g. for an unsupported content type.
	ErrPresignRejected = errors.New("upload presign rejected")

	// ErrFinalizeRejected indicates the server declined the message that
	// would have made an uploaded attachment visible, e.g. because the
	// conversation no longer admits the sender.
	ErrFinalizeRejected = errors.New("attachment finalize rejected")

	// ErrChannelClosed indicates an operation was attempted on a push
	// channel that has already been closed or has dropped.
	ErrChannelClosed = errors.New("push channel closed")

	// ErrEmptyMessage indicates a send was attempted with neither body text
	// nor attachments.
	ErrEmptyMessage = errors.New("message has no content")

	// ErrViewClosed indicates an operation was attempted on a conversation
	// view after its teardown.
	ErrViewClosed = errors.New("conversation view closed")
)

// TransportError wraps a network-level failure of a REST call or a direct
// upload transfer. The engine never retries these; retry policy belongs to
// the surrounding collaborator.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "transport error during " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
