package code

import (
	"fmt"

	"github.com/harpocrates/wasm2jar/internal/jvm/insn"
)

// BuilderErrorKind is the code builder's own error taxonomy, layered on top
// of (and distinct from) the per-instruction verifier errors it wraps.
type BuilderErrorKind int

const (
	// MethodCodeNotFinished is returned by Result when a block was opened
	// (by PlaceLabel or a fallthrough) but never closed with a branch.
	MethodCodeNotFinished BuilderErrorKind = iota

	// IncompatibleFrames is returned when a jump targets a label whose
	// recorded frame does not exactly equal the frame live at the jump —
	// the builder never merges frames, so any mismatch is an error.
	IncompatibleFrames

	// DuplicateLabel is returned when PlaceLabel/PlaceLabelWithFrame is
	// called twice for the same label.
	DuplicateLabel

	// PlacingLabelBeforeReference is returned when PlaceLabel is called in a
	// dead-code position for a label no earlier jump has referenced: with
	// neither a fallthrough nor a recorded expected frame, the new block's
	// entry state is unknowable (PlaceLabelWithFrame supplies one instead).
	PlacingLabelBeforeReference

	// UnresolvedLabel is returned by Result when a jump's target label was
	// never placed.
	UnresolvedLabel
)

func (k BuilderErrorKind) String() string {
	switch k {
	case MethodCodeNotFinished:
		return "method code not finished"
	case IncompatibleFrames:
		return "incompatible frames"
	case DuplicateLabel:
		return "duplicate label"
	case PlacingLabelBeforeReference:
		return "placing label before reference"
	case UnresolvedLabel:
		return "unresolved label"
	default:
		return fmt.Sprintf("BuilderErrorKind(%d)", int(k))
	}
}

// BuilderError is a code-builder-level failure not tied to one instruction.
type BuilderError struct {
	Kind  BuilderErrorKind
	Label insn.Label
}

func (e *BuilderError) Error() string {
	return fmt.Sprintf("code: %s (label %d)", e.Kind, e.Label)
}

// SizeOverflowError is returned when a method body outgrows one of the
// class-file format's hard limits: max-locals and max-stack are u2 fields,
// and a Code attribute's code array must stay under 65536 bytes (JVMS
// 4.7.3).
type SizeOverflowError struct {
	Quantity string // "max-locals", "max-stack", or "code size"
	Amount   int
}

func (e *SizeOverflowError) Error() string {
	return fmt.Sprintf("code: %s overflow: %d exceeds 65535", e.Quantity, e.Amount)
}

// VerifierError wraps a *verify.Error raised while interpreting a
// straight-line instruction, adding the block and offset it occurred at.
type VerifierError struct {
	Block  insn.Label
	Offset int
	Err    error
}

func (e *VerifierError) Error() string {
	return fmt.Sprintf("code: verifying block %d at offset %d: %v", e.Block, e.Offset, e.Err)
}

func (e *VerifierError) Unwrap() error { return e.Err }

// VerifierBranchingError wraps a *verify.Error raised while interpreting a
// block's closing branch instruction.
type VerifierBranchingError struct {
	Block insn.Label
	Err   error
}

func (e *VerifierBranchingError) Error() string {
	return fmt.Sprintf("code: verifying branch closing block %d: %v", e.Block, e.Err)
}

func (e *VerifierBranchingError) Unwrap() error { return e.Err }
