package dispatch

import (
	"errors"
	"fmt"

	"github.com/zjrosen/multidispatch/internal/signature"
	"github.com/zjrosen/multidispatch/internal/typetag"
)

// Dispatch errors
var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnresolved       = errors.New("could not find signature")
	// ErrNotHandled is returned by a variant that matched but declines the
	// call; the registry then tries the next matching signature.
	ErrNotHandled       = errors.New("variant declined call")
	ErrNilVariant       = errors.New("variant function is nil")
	ErrNoClassifier     = errors.New("registry has no classifier for call arguments")
	ErrMissingReceiver  = errors.New("method call without receiver")
	ErrUnknownVariant   = errors.New("variant name not in catalog")
	ErrUnknownOperation = errors.New("operation not registered")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// InvalidSignatureError reports a rejected registration. The registry is
// left unchanged.
type InvalidSignatureError struct {
	Operation string
	Signature signature.Signature
	Err       error
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("%s: %s [%s]: %v", ErrInvalidSignature, e.Operation, e.Signature, e.Err)
}

func (e *InvalidSignatureError) Unwrap() []error {
	return []error{ErrInvalidSignature, e.Err}
}

// UnresolvedError reports that no registered signature accepts a call.
type UnresolvedError struct {
	Operation string
	Types     []typetag.Tag
	// Declined counts variants that matched but returned ErrNotHandled.
	Declined int
}

func (e *UnresolvedError) Error() string {
	msg := fmt.Sprintf("%s for %s: <%s>", ErrUnresolved, e.Operation, typetag.Join(e.Types))
	if e.Declined > 0 {
		msg += fmt.Sprintf(" (%d matching variants declined)", e.Declined)
	}
	return msg
}

func (e *UnresolvedError) Unwrap() error {
	return ErrUnresolved
}
