package code

import (
	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
	"github.com/harpocrates/wasm2jar/internal/jvm/insn"
	"github.com/harpocrates/wasm2jar/internal/jvm/verify"
)

// entryLabel is the label of the block a fresh Builder starts with.
const entryLabel insn.Label = 0

// Builder accumulates one method body block by block, running the frame
// verifier on every instruction as it is pushed. It never merges frames at
// a control-flow edge: every jump to a label must see exactly the frame
// already recorded for it, or the push fails with IncompatibleFrames.
//
// A label cannot be placed unless it is reachable — either by falling
// through from the block above, or by an earlier jump already having fixed
// its expected frame. This keeps every block's entry frame known up front,
// at the cost of rejecting some code the real JVM verifier would accept via
// frame merging; the tradeoff is deliberate, not a limitation anyone has
// hit in practice, since codegen here never depends on stack-map subtyping.
type Builder struct {
	graph      *classgraph.Graph
	java       *classgraph.JavaLibrary
	method     *classgraph.MethodData
	thisClass  classgraph.RefType
	returnType *classgraph.FieldType

	code Code

	// unplacedLabels holds the frame every label has been jumped to with,
	// before that label's block exists (keys never overlap code.Blocks).
	unplacedLabels map[insn.Label]*verify.Frame

	// currentBlock is the block presently being appended to; nil once
	// Result is ready to be called only if every label was placed.
	currentBlock *currentBlock

	nextLabel insn.Label
}

// currentBlock is a BasicBlock that has not yet been closed by a branch.
type currentBlock struct {
	label        insn.Label
	entryFrame   verify.Frame
	latestFrame  verify.Frame
	instructions []insn.UnresolvedInstruction
}

func newCurrentBlock(label insn.Label, entry verify.Frame) *currentBlock {
	return &currentBlock{label: label, entryFrame: entry, latestFrame: entry.Clone()}
}

// close seals the block with its terminating branch, returning the label
// and finished block plus — if the branch falls through — the next current
// block, already seeded with the right entry frame.
func (cb *currentBlock) close(branchEnd insn.BranchInstruction) (insn.Label, *BasicBlock, *currentBlock) {
	bb := &BasicBlock{
		Frame:        cb.entryFrame,
		Instructions: cb.instructions,
		BranchEnd:    branchEnd,
	}

	var next *currentBlock
	if fallthroughLabel, ok := branchEnd.FallthroughTarget(); ok {
		next = &currentBlock{
			label:       fallthroughLabel,
			entryFrame:  cb.latestFrame.Clone(),
			latestFrame: cb.latestFrame.Clone(),
		}
	}
	return cb.label, bb, next
}

// NewBuilder starts a builder for method, whose entry frame's locals are
// UninitializedThis for a constructor, Object(method.Owner) for any other
// instance method, then each resolved parameter type in order — exactly
// the JVM's own rule for a method's initial local variable array.
func NewBuilder(graph *classgraph.Graph, java *classgraph.JavaLibrary, method *classgraph.MethodData) (*Builder, error) {
	var locals verify.Locals
	if method.IsInit() {
		pushLocal(&locals, verify.VUninitializedThis())
	} else if !method.IsStatic {
		pushLocal(&locals, verify.VObject(classgraph.NewObjectRef(method.Owner)))
	}

	params, ret, err := graph.ResolveMethodDescriptor(method.Descriptor)
	if err != nil {
		return nil, err
	}
	for _, p := range params {
		pushLocal(&locals, verify.FromFieldType(p))
	}

	entryFrame := verify.Frame{Locals: locals}
	b := &Builder{
		graph:          graph,
		java:           java,
		method:         method,
		thisClass:      classgraph.NewObjectRef(method.Owner),
		returnType:     ret,
		unplacedLabels: make(map[insn.Label]*verify.Frame),
		nextLabel:      entryLabel + 1,
	}
	b.code.MaxLocals = locals.Len()
	b.code.EntryLabel = entryLabel
	b.code.Blocks = make(map[insn.Label]*BasicBlock)
	b.currentBlock = newCurrentBlock(entryLabel, entryFrame)
	return b, nil
}

func pushLocal(l *verify.Locals, typ verify.VerificationType) {
	_ = l.Set(uint16(l.Len()), typ)
}

// FreshLabel allocates a label not yet used by any block.
func (b *Builder) FreshLabel() insn.Label {
	l := b.nextLabel
	b.nextLabel++
	return l
}

// lookupFrame finds the frame already associated with label, whether it is
// a placed block, a jumped-to-but-unplaced label, or the block currently
// under construction.
func (b *Builder) lookupFrame(label insn.Label) *verify.Frame {
	if bb, ok := b.code.Blocks[label]; ok {
		return &bb.Frame
	}
	if f, ok := b.unplacedLabels[label]; ok {
		return f
	}
	if b.currentBlock != nil && b.currentBlock.label == label {
		return &b.currentBlock.entryFrame
	}
	return nil
}

// assertFrameForLabel records (or checks) the frame a jump to label must
// see. extraOK/extraLabel/extraFrame cover the case where the caller has
// already taken the current block out of the builder's fields (to close
// it) but the jump happens to target that very block's label — lookupFrame
// alone would miss it, since it isn't in any of the three places checked.
func (b *Builder) assertFrameForLabel(label insn.Label, expected *verify.Frame, extraOK bool, extraLabel insn.Label, extraFrame *verify.Frame) error {
	if extraOK && extraLabel == label {
		if !extraFrame.Equal(expected) {
			return &BuilderError{Kind: IncompatibleFrames, Label: label}
		}
		return nil
	}

	if found := b.lookupFrame(label); found != nil {
		if !found.Equal(expected) {
			return &BuilderError{Kind: IncompatibleFrames, Label: label}
		}
		return nil
	}

	cloned := expected.Clone()
	b.unplacedLabels[label] = &cloned
	return nil
}

// PushInstruction appends a straight-line instruction to the block
// currently under construction, verifying it against the running frame.
func (b *Builder) PushInstruction(in insn.UnresolvedInstruction) error {
	cb := b.currentBlock
	if cb == nil {
		return nil
	}
	offset := len(cb.instructions)
	if err := cb.latestFrame.Interpret(in, b.graph, b.java, b.thisClass, uint32(cb.label), offset); err != nil {
		return &VerifierError{Block: cb.label, Offset: offset, Err: err}
	}
	cb.latestFrame.UpdateMaximums(&b.code.MaxLocals, &b.code.MaxStack)
	if err := b.checkMaximums(); err != nil {
		return err
	}
	cb.instructions = append(cb.instructions, in)
	return nil
}

// checkMaximums guards the u2 fields a Code attribute stores the running
// maxima in.
func (b *Builder) checkMaximums() error {
	if b.code.MaxLocals > 0xFFFF {
		return &SizeOverflowError{Quantity: "max-locals", Amount: b.code.MaxLocals}
	}
	if b.code.MaxStack > 0xFFFF {
		return &SizeOverflowError{Quantity: "max-stack", Amount: b.code.MaxStack}
	}
	return nil
}

// PushBranchInstruction closes the current block with a branch, checking
// every jump target's frame and, if the branch falls through, opening the
// next current block.
func (b *Builder) PushBranchInstruction(br insn.BranchInstruction) error {
	cb := b.currentBlock
	if cb == nil {
		return nil
	}
	b.currentBlock = nil

	if err := cb.latestFrame.InterpretBranch(br, b.returnType); err != nil {
		return &VerifierBranchingError{Block: cb.label, Err: err}
	}
	cb.latestFrame.UpdateMaximums(&b.code.MaxLocals, &b.code.MaxStack)
	if err := b.checkMaximums(); err != nil {
		return err
	}

	for _, target := range br.JumpTargets() {
		if err := b.assertFrameForLabel(target, &cb.latestFrame, true, cb.label, &cb.entryFrame); err != nil {
			return err
		}
	}

	label, bb, next := cb.close(br)
	b.code.BlockOrder = append(b.code.BlockOrder, label)
	b.currentBlock = next
	_, existed := b.code.Blocks[label]
	b.code.Blocks[label] = bb
	if existed {
		return &BuilderError{Kind: DuplicateLabel, Label: label}
	}
	return nil
}

// PlaceLabel starts a new block named label, closing whatever block is
// currently under construction with a synthetic fallthrough. If no block is
// under construction, label must already have an expected frame recorded
// from an earlier jump — otherwise there is no way to know what frame the
// new block starts with.
func (b *Builder) PlaceLabel(label insn.Label) error {
	if _, placed := b.code.Blocks[label]; placed {
		return &BuilderError{Kind: DuplicateLabel, Label: label}
	}
	if cb := b.currentBlock; cb != nil {
		b.currentBlock = nil
		fallThrough := insn.BranchInstruction{Op: insn.FallThrough, Next: label}

		if err := cb.latestFrame.InterpretBranch(fallThrough, b.returnType); err != nil {
			return &VerifierBranchingError{Block: cb.label, Err: err}
		}
		if err := b.assertFrameForLabel(label, &cb.latestFrame, true, cb.label, &cb.entryFrame); err != nil {
			return err
		}

		sealedLabel, bb, next := cb.close(fallThrough)
		delete(b.unplacedLabels, label)
		b.code.BlockOrder = append(b.code.BlockOrder, sealedLabel)
		b.currentBlock = next
		_, existed := b.code.Blocks[sealedLabel]
		b.code.Blocks[sealedLabel] = bb
		if existed {
			return &BuilderError{Kind: DuplicateLabel, Label: sealedLabel}
		}
		return nil
	}

	frame, ok := b.unplacedLabels[label]
	if !ok {
		return &BuilderError{Kind: PlacingLabelBeforeReference, Label: label}
	}
	delete(b.unplacedLabels, label)
	b.currentBlock = newCurrentBlock(label, *frame)
	return nil
}

// PlaceLabelWithFrame is PlaceLabel but with an explicit frame, for a label
// that may not yet have been jumped to (and so has no inferred frame).
func (b *Builder) PlaceLabelWithFrame(label insn.Label, frame *verify.Frame) error {
	if err := b.assertFrameForLabel(label, frame, false, 0, nil); err != nil {
		return err
	}
	return b.PlaceLabel(label)
}

// CurrentFrame returns the frame at the end of the block under
// construction, or nil if every block so far has been closed.
func (b *Builder) CurrentFrame() *verify.Frame {
	if b.currentBlock == nil {
		return nil
	}
	return &b.currentBlock.latestFrame
}

// GeneralizeTopStackType widens the current top-of-stack type, a no-op if
// there is no block under construction.
func (b *Builder) GeneralizeTopStackType(general classgraph.RefType) error {
	if b.currentBlock == nil {
		return nil
	}
	return b.currentBlock.latestFrame.GeneralizeTopStackType(general)
}

// KillTopLocal retires the top local of the block under construction.
func (b *Builder) KillTopLocal(offset uint16, expected *verify.VerificationType) error {
	if b.currentBlock == nil {
		return nil
	}
	return b.currentBlock.latestFrame.KillTopLocal(offset, expected)
}

// Result finishes the builder, failing if any block was left open or any
// jumped-to label was never placed.
func (b *Builder) Result() (*Code, error) {
	if b.currentBlock != nil {
		return nil, &BuilderError{Kind: MethodCodeNotFinished, Label: b.currentBlock.label}
	}
	for label := range b.unplacedLabels {
		return nil, &BuilderError{Kind: UnresolvedLabel, Label: label}
	}
	b.code.NextLabel = b.nextLabel
	return &b.code, nil
}
