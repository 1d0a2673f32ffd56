package process

import "fmt"

// CorruptStoreError reports a store whose artifacts cannot reproduce a
// valid history: a broken hash chain, a missing referenced component, or an
// unparsable record or reduction. Fatal during restore; never retried
// automatically.
type CorruptStoreError struct {
	Detail string
	Err    error
}

func (e *CorruptStoreError) Error() string {
	if e.Err != nil {
		return "store corruption: " + e.Detail + ": " + e.Err.Error()
	}
	return "store corruption: " + e.Detail
}

func (e *CorruptStoreError) Unwrap() error { return e.Err }

func corruptf(format string, args ...interface{}) error {
	return &CorruptStoreError{Detail: fmt.Sprintf(format, args...)}
}

func corruptWrap(err error, format string, args ...interface{}) error {
	return &CorruptStoreError{Detail: fmt.Sprintf(format, args...), Err: err}
}

// HandlerError reports that the hosted application's handler failed or
// answered with an unexpected shape. Fatal during restore (the store is
// incompatible with the handler); local to one request during live
// operation, where the event is simply not appended.
type HandlerError struct {
	Op     string
	Detail string
}

func (e *HandlerError) Error() string {
	return "application handler " + e.Op + " failed: " + e.Detail
}

// DeploymentValidationError reports a malformed application bundle,
// rejected before any store mutation.
type DeploymentValidationError struct {
	Detail string
}

func (e *DeploymentValidationError) Error() string {
	return "invalid deployment bundle: " + e.Detail
}
