package verify

import "fmt"

// ErrorKind is the per-instruction verifier error taxonomy.
type ErrorKind int

const (
	ErrInvalidType ErrorKind = iota
	ErrInvalidWidth
	ErrInvalidIndex
	ErrEmptyStack
	ErrNotLoadableConstant
	ErrMissingConstant
	ErrBadDescriptorInConstant

	// branch-only kinds
	ErrReturnTypeMismatch
	ErrThrowableCheckFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidType:
		return "invalid type"
	case ErrInvalidWidth:
		return "invalid width"
	case ErrInvalidIndex:
		return "invalid local index"
	case ErrEmptyStack:
		return "empty stack"
	case ErrNotLoadableConstant:
		return "not loadable constant"
	case ErrMissingConstant:
		return "missing constant"
	case ErrBadDescriptorInConstant:
		return "bad descriptor in constant"
	case ErrReturnTypeMismatch:
		return "return type mismatch"
	case ErrThrowableCheckFailed:
		return "throwable check failed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a single verifier failure. Width is meaningful only when Kind is
// ErrInvalidWidth, holding the width that was found where a different one
// was required. Callers that have more context (the offending instruction,
// its block label) are expected to wrap this, not replace it — see the
// code builder's BuilderError.
type Error struct {
	Kind  ErrorKind
	Width int
}

func (e *Error) Error() string {
	if e.Kind == ErrInvalidWidth {
		return fmt.Sprintf("verify: %s (found width %d)", e.Kind, e.Width)
	}
	return fmt.Sprintf("verify: %s", e.Kind)
}
