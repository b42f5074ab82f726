package ir

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

/*
Intermediate representation for calcc: a single function in LLVM's textual
IR. Every value is a 32-bit integer. Virtual registers are numbered from 1 in
the order they are defined, which is what LLVM requires of unnamed values in
a function without arguments. Source identifiers live in named stack slots.

Supported operations:
 * Alloca(Slot) - reserve a stack slot for an identifier.
 * Load(Result, Slot) - read a slot into a fresh register.
 * Store(Value, Slot) - write a value into a slot.
 * BinaryOp(Result, Operation, Left, Right) - add, sub, mul or udiv.
 * Return(Value) - return from the function. Terminates the only basic block.
*/

const IntType = "i32"

// PointerStyle selects how slot pointers are spelled.
type PointerStyle int

const (
	// PointersOpaque spells pointers as "ptr" (LLVM 15 and later).
	PointersOpaque PointerStyle = iota
	// PointersTyped spells pointers as "i32*" (LLVM 14 and earlier).
	PointersTyped
)

func ParsePointerStyle(s string) (PointerStyle, error) {
	switch strings.ToLower(s) {
	case "", "opaque":
		return PointersOpaque, nil
	case "typed":
		return PointersTyped, nil
	}
	return 0, errors.Errorf("unknown pointer style %q", s)
}

func (s PointerStyle) String() string {
	if s == PointersTyped {
		return "typed"
	}
	return "opaque"
}

func (s PointerStyle) pointerType() string {
	if s == PointersTyped {
		return IntType + "*"
	}
	return "ptr"
}

// Value is an instruction operand: a virtual register, an immediate or a slot.
type Value struct {
	Register  int
	Immediate string
	Slot      string
}

func RegisterValue(n int) Value {
	return Value{Register: n}
}

func ImmediateValue(digits string) Value {
	return Value{Immediate: digits}
}

func SlotValue(name string) Value {
	return Value{Slot: name}
}

func (v Value) IsSlot() bool {
	return v.Slot != ""
}

func (v Value) IsZero() bool {
	return v == Value{}
}

func (v Value) String() string {
	if v.Register > 0 {
		return fmt.Sprintf("%%%d", v.Register)
	} else if v.Immediate != "" {
		return v.Immediate
	} else if v.Slot != "" {
		return "%" + v.Slot
	}
	panic(fmt.Sprintf("invalid value: %#v", v))
}

type Op interface {
	fmt.Stringer
	// Format renders the instruction with the given pointer spelling.
	Format(style PointerStyle) string
	// Returns the register defined by the Op or 0.
	GetTarget() int
	// GetArgs returns all Values read by the op.
	GetArgs() []Value
}

type Alloca struct {
	Slot string
}

func (a Alloca) Format(PointerStyle) string {
	return fmt.Sprintf("%%%s = alloca %s", a.Slot, IntType)
}

func (a Alloca) String() string {
	return a.Format(PointersOpaque)
}

func (a Alloca) GetTarget() int {
	return 0
}

func (a Alloca) GetArgs() []Value {
	return []Value{}
}

type Load struct {
	Result int
	Slot   string
}

func (l Load) Format(style PointerStyle) string {
	return fmt.Sprintf("%%%d = load %s, %s %%%s", l.Result, IntType, style.pointerType(), l.Slot)
}

func (l Load) String() string {
	return l.Format(PointersOpaque)
}

func (l Load) GetTarget() int {
	return l.Result
}

func (l Load) GetArgs() []Value {
	return []Value{SlotValue(l.Slot)}
}

type Store struct {
	Value Value
	Slot  string
}

func (s Store) Format(style PointerStyle) string {
	return fmt.Sprintf("store %s %s, %s %%%s", IntType, s.Value, style.pointerType(), s.Slot)
}

func (s Store) String() string {
	return s.Format(PointersOpaque)
}

func (s Store) GetTarget() int {
	return 0
}

func (s Store) GetArgs() []Value {
	return []Value{s.Value, SlotValue(s.Slot)}
}

type BinaryOp struct {
	Result    int
	Operation string
	Left      Value
	Right     Value
}

func (o BinaryOp) Format(PointerStyle) string {
	return fmt.Sprintf("%%%d = %s %s %s, %s", o.Result, o.Operation, IntType, o.Left, o.Right)
}

func (o BinaryOp) String() string {
	return o.Format(PointersOpaque)
}

func (o BinaryOp) GetTarget() int {
	return o.Result
}

func (o BinaryOp) GetArgs() []Value {
	return []Value{o.Left, o.Right}
}

type Return struct {
	Value Value
}

func (r Return) Format(PointerStyle) string {
	return fmt.Sprintf("ret %s %s", IntType, r.Value)
}

func (r Return) String() string {
	return r.Format(PointersOpaque)
}

func (r Return) GetTarget() int {
	return 0
}

func (r Return) GetArgs() []Value {
	return []Value{r.Value}
}

type IrFunction struct {
	Name string
	Ops  []Op
	// Registers is the number of virtual registers defined by Ops.
	Registers int
}

// Print writes the function definition: prologue, one instruction per line, epilogue.
func (irf IrFunction) Print(writer io.Writer, style PointerStyle) error {
	if _, err := fmt.Fprintf(writer, "define %s @%s() {\n", IntType, irf.Name); err != nil {
		return errors.Wrap(err, "writing function header")
	}
	for _, op := range irf.Ops {
		if _, err := fmt.Fprintf(writer, "  %s\n", op.Format(style)); err != nil {
			return errors.Wrap(err, "writing instruction")
		}
	}
	if _, err := fmt.Fprintln(writer, "}"); err != nil {
		return errors.Wrap(err, "writing function footer")
	}
	return nil
}

func (irf IrFunction) String() string {
	var sb strings.Builder
	// Writes to a strings.Builder do not fail.
	_ = irf.Print(&sb, PointersOpaque)
	return sb.String()
}
