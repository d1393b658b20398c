package mvlc

import (
	"fmt"
	"strings"
)

// TargetPlatform selects which op table and calling convention a Program
// targets. It is the only axis of configuration the core pipeline
// exposes; every stage threads it as an explicit parameter rather than
// reading it from global state.
type TargetPlatform int

const (
	Raw_X86_64 TargetPlatform = iota
	Linux_X86_64
)

func (t TargetPlatform) String() string {
	switch t {
	case Raw_X86_64:
		return "raw-x86_64"
	case Linux_X86_64:
		return "linux-x86_64"
	default:
		return "unknown"
	}
}

// ReservedProcNames lists procedure names push_proc must reject for the
// given target because the code generator wraps them with a fixed
// meaning (the SysV entry trampoline on Linux). Raw has none.
func ReservedProcNames(target TargetPlatform) []string {
	switch target {
	case Linux_X86_64:
		return []string{"_start"}
	default:
		return nil
	}
}

// Param is a formal parameter: a name and the kind of value callers must
// supply for it.
type Param struct {
	Name string
	Kind Kind
}

// StaticSegment is a named, pre-initialized block of static storage, laid
// out byte-for-byte as given.
type StaticSegment struct {
	Name  string
	Bytes []byte
}

// Procedure is a named sequence of instructions plus its formal parameter
// list and return kind. Ctx is populated by pkg/proc.BuildContext; it is
// opaque here (an `any`) so that this package does not need to import
// pkg/proc, which itself imports pkg/mvlc — storing it as an untyped slot
// is the mirror of the original C library's forward-declared
// `ProcedureContext*` opaque pointer.
type Procedure struct {
	Name       string
	Params     []Param
	ReturnKind Kind
	Instrs     []*Node
	Ctx        any

	// IsUsed and HasCallee are set by pkg/check: IsUsed marks the
	// procedure reachable from the entry procedure (Program.Procs[0]);
	// HasCallee marks that it contains at least one Call/CallAssign,
	// which forces its parameters out of incoming registers in codegen.
	IsUsed    bool
	HasCallee bool
}

// Program is the top-level compilation unit: a target platform, an
// ordered list of procedures, and an ordered list of static data
// segments. Both lists are referenced by name elsewhere in the pipeline,
// but the Builder API never allows removal or reordering — only
// append — so indices assigned during construction remain stable.
type Program struct {
	Target   TargetPlatform
	Procs    []*Procedure
	Statics  []*StaticSegment
	procByName map[string]*Procedure
	staticByName map[string]*StaticSegment
}

// NewProgram constructs an empty program targeting the given platform.
func NewProgram(target TargetPlatform) *Program {
	return &Program{
		Target:       target,
		procByName:   make(map[string]*Procedure),
		staticByName: make(map[string]*StaticSegment),
	}
}

func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("mvlc: %s name must not be empty", kind)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("mvlc: %s name %q must not start with '.' (reserved for synthetic names)", kind, name)
	}
	return nil
}

// Proc looks up a procedure by name.
func (p *Program) Proc(name string) (*Procedure, bool) {
	proc, ok := p.procByName[name]
	return proc, ok
}

// Static looks up a static segment by name.
func (p *Program) Static(name string) (*StaticSegment, bool) {
	seg, ok := p.staticByName[name]
	return seg, ok
}

// PushProc appends a new, empty procedure to the program and returns it
// for further construction via its Push* methods. Fails fast when name is
// empty, dot-prefixed, or names a reserved target procedure. Duplicate
// procedure names are deliberately NOT rejected here — enforcing
// procedure uniqueness is pkg/check's job (it resolves by first
// occurrence), so the builder stays a thin, syntax-only append layer.
func (p *Program) PushProc(name string, params []Param, returnKind Kind) (*Procedure, error) {
	if err := validateName("procedure", name); err != nil {
		return nil, err
	}
	for _, reserved := range ReservedProcNames(p.Target) {
		if name == reserved {
			return nil, fmt.Errorf("mvlc: procedure name %q is reserved on target %s", name, p.Target)
		}
	}
	for _, param := range params {
		if err := validateName("parameter", param.Name); err != nil {
			return nil, err
		}
	}
	proc := &Procedure{Name: name, Params: append([]Param(nil), params...), ReturnKind: returnKind}
	p.Procs = append(p.Procs, proc)
	if _, exists := p.procByName[name]; !exists {
		p.procByName[name] = proc
	}
	return proc, nil
}

// PushStaticSegment appends a named, pre-initialized static data segment.
func (p *Program) PushStaticSegment(name string, bytes []byte) (*StaticSegment, error) {
	if err := validateName("static segment", name); err != nil {
		return nil, err
	}
	seg := &StaticSegment{Name: name, Bytes: append([]byte(nil), bytes...)}
	p.Statics = append(p.Statics, seg)
	if _, exists := p.staticByName[name]; !exists {
		p.staticByName[name] = seg
	}
	return seg, nil
}

// PushStaticVar is a convenience wrapper over PushStaticSegment that lays
// out a single S64 value as its byte buffer, little-endian, matching the
// original library's program_push_static_var helper.
func (p *Program) PushStaticVar(name string, value int64) (*StaticSegment, error) {
	buf := make([]byte, KindS64.Size())
	for i := range buf {
		buf[i] = byte(value >> (8 * uint(i)))
	}
	return p.PushStaticSegment(name, buf)
}

func (proc *Procedure) push(instr Instruction) *Node {
	node := &Node{Index: len(proc.Instrs), Instr: instr}
	proc.Instrs = append(proc.Instrs, node)
	return node
}

// PushOp appends an application of a primitive op, with an optional dest
// (empty string means the result, if any, is discarded).
func (proc *Procedure) PushOp(name, dest string, args ...Arg) *Node {
	return proc.push(OpInstr{Name: name, Dest: dest, Args: args})
}

// PushCall appends a call whose result, if any, is discarded.
func (proc *Procedure) PushCall(callee string, args ...Arg) *Node {
	return proc.push(CallInstr{Callee: callee, Args: args})
}

// PushCallAssign appends a call that binds its result to dest.
func (proc *Procedure) PushCallAssign(dest, callee string, args ...Arg) *Node {
	return proc.push(CallAssignInstr{Dest: dest, Callee: callee, Args: args})
}

// PushReturn appends a value-less return.
func (proc *Procedure) PushReturn() *Node {
	return proc.push(ReturnInstr{})
}

// PushReturnValue appends a return of arg's value.
func (proc *Procedure) PushReturnValue(arg Arg) *Node {
	return proc.push(ReturnValueInstr{Arg: arg})
}

// PushJump appends an unconditional jump to label.
func (proc *Procedure) PushJump(label string) *Node {
	return proc.push(JumpInstr{Label: label})
}

// PushCondJump appends a conditional jump to label, taken when
// arg0 op arg1 holds.
func (proc *Procedure) PushCondJump(op RelOp, arg0, arg1 Arg, label string) *Node {
	return proc.push(CondJumpInstr{Op: op, Arg0: arg0, Arg1: arg1, Label: label})
}

// PushLabel appends a label declaration. name must not start with '.'.
func (proc *Procedure) PushLabel(name string) (*Node, error) {
	if err := validateName("label", name); err != nil {
		return nil, err
	}
	return proc.push(LabelInstr{Name: name}), nil
}

// PushAlloc appends a stack allocation of size bytes, binding its address
// to dest.
func (proc *Procedure) PushAlloc(dest string, size uint32) *Node {
	return proc.push(AllocInstr{Dest: dest, Size: size})
}

// PrependLabel inserts a synthetic label (name starting with '.') at the
// head of the procedure's instruction list, used by the tail-recursion
// optimizer to create a loop-back target. Synthetic labels carry no
// liveness or use semantics, so no reindexing of subsequent nodes is
// required; Index values after the insertion point are left as they were
// when the nodes were created and are not read positionally by later
// passes, only via each Node's own Index field recorded at push time.
func (proc *Procedure) PrependLabel(name string) *Node {
	node := &Node{Index: -1, Instr: LabelInstr{Name: name}}
	proc.Instrs = append([]*Node{node}, proc.Instrs...)
	return node
}
