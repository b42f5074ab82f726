package ir

import (
	"fmt"

	"github.com/iley/calcc/internal/ast"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrIncompleteTree is returned when a Hole reaches the generator.
var ErrIncompleteTree = errors.New("expression contains an unfilled operand")

// ErrUnassignedVariable is returned when a variable is read before its slot
// has been allocated by an assignment.
var ErrUnassignedVariable = errors.New("variable read before assignment")

// FirstRegister is the number of the first virtual register. %0 is taken by
// the entry block.
const FirstRegister = 1

var operations = map[ast.Operator]string{
	ast.OpAdd: "add",
	ast.OpSub: "sub",
	ast.OpMul: "mul",
	ast.OpDiv: "udiv",
}

type Generator struct {
	log *zap.SugaredLogger
	// Slots allocated so far. Every identifier owns exactly one slot which
	// later assignments overwrite.
	slots map[string]bool
}

func NewGenerator(log *zap.SugaredLogger) *Generator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Generator{
		log:   log,
		slots: make(map[string]bool),
	}
}

// Generate lowers the statements of program in order into a single function.
// Unless a statement returns explicitly, the function returns the value of
// the last statement, or 0 for an empty program. Statements after an
// explicit return are not lowered.
func (g *Generator) Generate(program *ast.Program, name string) (IrFunction, error) {
	g.slots = make(map[string]bool)
	irf := IrFunction{Name: name, Ops: []Op{}}

	next := FirstRegister
	last := ImmediateValue("0")
	returned := false
	for i, stmt := range program.Statements {
		if returned {
			g.log.Warnw("statements after return are not lowered", "skipped", len(program.Statements)-i)
			break
		}
		ops, value, n, err := g.Lower(stmt, next)
		if err != nil {
			if stmt == nil {
				return IrFunction{}, errors.WithMessagef(err, "statement %d", i+1)
			}
			return IrFunction{}, errors.WithMessagef(err, "statement %d at %s", i+1, stmt.GetLocation())
		}
		irf.Ops = append(irf.Ops, ops...)
		next = n
		last = value
		_, returned = stmt.(*ast.Return)
	}

	if !returned {
		ops, value, n := g.read(last, next)
		irf.Ops = append(irf.Ops, ops...)
		irf.Ops = append(irf.Ops, Return{Value: value})
		next = n
	}
	irf.Registers = next - FirstRegister
	return irf, nil
}

// Lower generates the ops for a single expression in post order. next is the
// first free register number. Returns the ops, the Value holding the result
// and the next free register number after the ops. A return statement yields
// the zero Value.
//
// The set of allocated slots persists across calls until the next Generate:
// lowering the same assignment twice emits an alloca only the first time, and
// a variable can only be read once an earlier call has assigned it.
func (g *Generator) Lower(node ast.Expression, next int) ([]Op, Value, int, error) {
	switch node := node.(type) {
	case nil:
		return nil, Value{}, next, errors.WithStack(ErrIncompleteTree)
	case *ast.Literal:
		return []Op{}, ImmediateValue(node.Value), next, nil
	case *ast.Variable:
		if !g.slots[node.Name] {
			return nil, Value{}, next, errors.Wrapf(ErrUnassignedVariable, "%s at %s", node.Name, node.GetLocation())
		}
		return []Op{Load{Result: next, Slot: node.Name}}, RegisterValue(next), next + 1, nil
	case *ast.BinaryOperation:
		return g.lowerBinaryOperation(node, next)
	case *ast.Assignment:
		return g.lowerAssignment(node, next)
	case *ast.Return:
		ops, value, next, err := g.lowerOperand(node.Value, next)
		if err != nil {
			return nil, Value{}, next, err
		}
		return append(ops, Return{Value: value}), Value{}, next, nil
	case *ast.Group:
		return g.Lower(node.Inner, next)
	}
	panic(fmt.Errorf("unknown expression type: %T", node))
}

func (g *Generator) lowerBinaryOperation(node *ast.BinaryOperation, next int) ([]Op, Value, int, error) {
	ops, left, next, err := g.lowerOperand(node.Left, next)
	if err != nil {
		return nil, Value{}, next, err
	}
	rightOps, right, next, err := g.lowerOperand(node.Right, next)
	if err != nil {
		return nil, Value{}, next, err
	}
	operation, ok := operations[node.Operator]
	if !ok {
		panic(fmt.Errorf("unknown operator: %s", node.Operator))
	}
	ops = append(ops, rightOps...)
	ops = append(ops, BinaryOp{Result: next, Operation: operation, Left: left, Right: right})
	return ops, RegisterValue(next), next + 1, nil
}

func (g *Generator) lowerAssignment(node *ast.Assignment, next int) ([]Op, Value, int, error) {
	ops, value, next, err := g.lowerOperand(node.Value, next)
	if err != nil {
		return nil, Value{}, next, err
	}
	if !g.slots[node.Name] {
		ops = append(ops, Alloca{Slot: node.Name})
		g.slots[node.Name] = true
	}
	ops = append(ops, Store{Value: value, Slot: node.Name})
	return ops, SlotValue(node.Name), next, nil
}

// lowerOperand lowers node and makes sure the result can be used as an
// instruction operand.
func (g *Generator) lowerOperand(node ast.Expression, next int) ([]Op, Value, int, error) {
	ops, value, next, err := g.Lower(node, next)
	if err != nil {
		return nil, Value{}, next, err
	}
	if value.IsZero() {
		return nil, Value{}, next, errors.Errorf("%s has no value", ast.Format(node))
	}
	readOps, value, next := g.read(value, next)
	return append(ops, readOps...), value, next, nil
}

// read loads a slot into a fresh register. Other values are returned as is.
func (g *Generator) read(value Value, next int) ([]Op, Value, int) {
	if !value.IsSlot() {
		return nil, value, next
	}
	return []Op{Load{Result: next, Slot: value.Slot}}, RegisterValue(next), next + 1
}
