package ast

import "fmt"

type Operator int

const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
)

// Precedence classes.
const (
	RankAdditive       = 0
	RankMultiplicative = 1
)

var operatorsByString = map[string]Operator{
	"+": OpAdd,
	"-": OpSub,
	"*": OpMul,
	"/": OpDiv,
}

// OperatorFromString maps "+", "-", "*" and "/" to their Operator.
func OperatorFromString(s string) (Operator, bool) {
	op, ok := operatorsByString[s]
	return op, ok
}

// Rank returns the precedence class of the operator. Operators of the same
// class compare equal for precedence purposes only.
func (o Operator) Rank() int {
	switch o {
	case OpAdd, OpSub:
		return RankAdditive
	case OpMul, OpDiv:
		return RankMultiplicative
	}
	panic(fmt.Sprintf("unknown operator: %d", int(o)))
}

func (o Operator) String() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}
