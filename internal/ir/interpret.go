package ir

import (
	"strconv"

	"github.com/pkg/errors"
)

// machine is the state of an interpreted function.
type machine struct {
	registers map[int]uint32
	slots     map[string]*uint32
	// Next register number that may be defined.
	nextRegister int
}

func newMachine() *machine {
	return &machine{
		registers:    make(map[int]uint32),
		slots:        make(map[string]*uint32),
		nextRegister: FirstRegister,
	}
}

// Interpret executes irf and returns the value of its return instruction.
// Arithmetic wraps at 32 bits and division is unsigned, as in the emitted IR.
// The function is also checked for the properties an LLVM assembler would
// reject: registers defined out of order or twice, reads of undefined values
// and instructions after the return.
func Interpret(irf IrFunction) (int32, error) {
	m := newMachine()
	for i, op := range irf.Ops {
		if err := m.checkArgs(op); err != nil {
			return 0, errors.WithMessagef(err, "op %d (%s)", i, op)
		}
		if target := op.GetTarget(); target != 0 {
			if target != m.nextRegister {
				return 0, errors.Errorf("op %d (%s): expected register %%%d to be defined next", i, op, m.nextRegister)
			}
			m.nextRegister++
		}

		switch op := op.(type) {
		case Alloca:
			if _, ok := m.slots[op.Slot]; ok {
				return 0, errors.Errorf("op %d (%s): slot %%%s allocated twice", i, op, op.Slot)
			}
			m.slots[op.Slot] = new(uint32)
		case Load:
			m.registers[op.Result] = *m.slots[op.Slot]
		case Store:
			value, err := m.eval(op.Value)
			if err != nil {
				return 0, errors.WithMessagef(err, "op %d (%s)", i, op)
			}
			*m.slots[op.Slot] = value
		case BinaryOp:
			result, err := m.evalBinaryOp(op)
			if err != nil {
				return 0, errors.WithMessagef(err, "op %d (%s)", i, op)
			}
			m.registers[op.Result] = result
		case Return:
			if i != len(irf.Ops)-1 {
				return 0, errors.Errorf("op %d (%s): instructions after return", i, op)
			}
			value, err := m.eval(op.Value)
			if err != nil {
				return 0, errors.WithMessagef(err, "op %d (%s)", i, op)
			}
			return int32(value), nil
		default:
			return 0, errors.Errorf("op %d: unknown op %T", i, op)
		}
	}
	return 0, errors.New("function does not return")
}

// checkArgs makes sure every register op reads is defined and every slot it
// touches is allocated.
func (m *machine) checkArgs(op Op) error {
	for _, arg := range op.GetArgs() {
		if arg.Register > 0 {
			if _, ok := m.registers[arg.Register]; !ok {
				return errors.Errorf("register %s is not defined", arg)
			}
		} else if arg.IsSlot() {
			if _, ok := m.slots[arg.Slot]; !ok {
				return errors.Errorf("slot %s is not allocated", arg)
			}
		}
	}
	return nil
}

func (m *machine) eval(value Value) (uint32, error) {
	if value.Register > 0 {
		result, ok := m.registers[value.Register]
		if !ok {
			return 0, errors.Errorf("register %s is not defined", value)
		}
		return result, nil
	} else if value.Immediate != "" {
		parsed, err := strconv.ParseUint(value.Immediate, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid immediate %s", value.Immediate)
		}
		return uint32(parsed), nil
	} else if value.Slot != "" {
		return 0, errors.Errorf("slot %s used as a value", value)
	}
	return 0, errors.New("empty value")
}

func (m *machine) evalBinaryOp(op BinaryOp) (uint32, error) {
	left, err := m.eval(op.Left)
	if err != nil {
		return 0, err
	}
	right, err := m.eval(op.Right)
	if err != nil {
		return 0, err
	}
	switch op.Operation {
	case "add":
		return left + right, nil
	case "sub":
		return left - right, nil
	case "mul":
		return left * right, nil
	case "udiv":
		if right == 0 {
			return 0, errors.New("division by zero")
		}
		return left / right, nil
	}
	return 0, errors.Errorf("unknown operation %q", op.Operation)
}
