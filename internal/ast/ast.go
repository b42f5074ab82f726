package ast

import (
	"fmt"
	"strings"

	"github.com/iley/calcc/internal/lexer"
)

type Location = lexer.Location

// HoleString is how an unfilled operand position is rendered.
const HoleString = "_"

type AstNode interface {
	fmt.Stringer
	GetLocation() Location
}

// Program is the ordered forest of top-level statements, one per ';'-separated statement.
type Program struct {
	Statements []Expression
}

func (p *Program) String() string {
	var sb strings.Builder
	sb.WriteString("(program")
	for _, stmt := range p.Statements {
		sb.WriteString(" ")
		sb.WriteString(Format(stmt))
	}
	sb.WriteString(")")
	return sb.String()
}

// Expression types.
//
// A nil Expression in a child position is a Hole: the operand that the next
// token is expected to provide. Holes never survive into a finished Program.

type Expression interface {
	AstNode
	isExpression()
}

// Format renders e, printing a Hole for nil.
func Format(e Expression) string {
	if e == nil {
		return HoleString
	}
	return e.String()
}

// Complete reports whether e contains no Holes.
func Complete(e Expression) bool {
	switch e := e.(type) {
	case nil:
		return false
	case *Literal, *Variable:
		return true
	case *BinaryOperation:
		return Complete(e.Left) && Complete(e.Right)
	case *Assignment:
		return Complete(e.Value)
	case *Return:
		return Complete(e.Value)
	case *Group:
		return Complete(e.Inner)
	}
	panic(fmt.Sprintf("unknown expression type: %T", e))
}

type Literal struct {
	Loc   Location
	Value string // unevaluated digit string
}

func (l *Literal) GetLocation() Location {
	return l.Loc
}

func (l *Literal) isExpression() {}

func (l *Literal) String() string {
	return l.Value
}

type Variable struct {
	Loc  Location
	Name string
}

func (v *Variable) GetLocation() Location {
	return v.Loc
}

func (v *Variable) isExpression() {}

func (v *Variable) String() string {
	return v.Name
}

type BinaryOperation struct {
	Loc      Location
	Left     Expression
	Operator Operator
	Right    Expression
}

func (b *BinaryOperation) GetLocation() Location {
	return b.Loc
}

func (b *BinaryOperation) isExpression() {}

func (b *BinaryOperation) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Operator, Format(b.Left), Format(b.Right))
}

type Assignment struct {
	Loc   Location
	Name  string
	Value Expression
}

func (a *Assignment) GetLocation() Location {
	return a.Loc
}

func (a *Assignment) isExpression() {}

func (a *Assignment) String() string {
	return fmt.Sprintf("(= %s %s)", a.Name, Format(a.Value))
}

type Return struct {
	Loc   Location
	Value Expression
}

func (r *Return) GetLocation() Location {
	return r.Loc
}

func (r *Return) isExpression() {}

func (r *Return) String() string {
	return fmt.Sprintf("(return %s)", Format(r.Value))
}

// Group is a parenthesised sub-expression. Once closed it is an opaque operand.
type Group struct {
	Loc   Location
	Inner Expression
}

func (g *Group) GetLocation() Location {
	return g.Loc
}

func (g *Group) isExpression() {}

func (g *Group) String() string {
	return fmt.Sprintf("(group %s)", Format(g.Inner))
}
