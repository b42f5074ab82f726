package builder

import (
	"fmt"

	"github.com/iley/calcc/internal/lexer"
	"github.com/pkg/errors"
)

// Kind distinguishes the ways building a program can fail.
type Kind int

const (
	// UnknownOperator is punctuation outside + - * / = ; ( ).
	UnknownOperator Kind = iota + 1
	// UnexpectedOperand is an operand arriving when no Hole is open, e.g. "1 1".
	UnexpectedOperand
	// EmptyLeadingOperator is an operator with no left operand.
	EmptyLeadingOperator
	// UnsupportedConstruct is a recognised but unimplemented construct such as "if".
	UnsupportedConstruct
	// StructuralInvariantViolation covers impossible shapes such as unbalanced parentheses.
	StructuralInvariantViolation
	// IncompleteExpression is a statement or group that ends with a Hole still open.
	IncompleteExpression
)

func (k Kind) String() string {
	switch k {
	case UnknownOperator:
		return "unknown operator"
	case UnexpectedOperand:
		return "unexpected operand"
	case EmptyLeadingOperator:
		return "operator without left operand"
	case UnsupportedConstruct:
		return "unsupported construct"
	case StructuralInvariantViolation:
		return "structural invariant violation"
	case IncompleteExpression:
		return "incomplete expression"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

type Error struct {
	Kind   Kind
	Lexeme lexer.Lexeme
	Detail string
}

func (e *Error) Error() string {
	var where string
	if e.Lexeme.Type == lexer.LEX_EOF {
		where = "end of input"
	} else {
		where = fmt.Sprintf("%s %s", e.Lexeme.Loc, e.Lexeme)
	}
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", where, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", where, e.Kind, e.Detail)
}

func newError(kind Kind, lexeme lexer.Lexeme, format string, args ...interface{}) error {
	return errors.WithStack(&Error{Kind: kind, Lexeme: lexeme, Detail: fmt.Sprintf(format, args...)})
}

// KindOf returns the Kind of a builder error, looking through any wrapping.
func KindOf(err error) (Kind, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return 0, false
}
