// Package builder turns a lexeme stream into a program forest one lexeme at a
// time, without lookahead or backtracking.
//
// Each statement under construction is an owned mutable tree together with a
// cursor: the slots along its right spine, root first, and the slot of the
// currently open Hole. Along the spine Return and Assignment nodes come first,
// binary operations follow with strictly increasing precedence rank, and a
// complete operand sits at the bottom. An operator therefore never has to walk
// more than the part of the spine it takes off, which keeps each lexeme
// amortized constant.
package builder

import (
	"github.com/iley/calcc/internal/ast"
	"github.com/iley/calcc/internal/lexer"
	"go.uber.org/zap"
)

// partial is a statement or parenthesised group under construction.
type partial struct {
	loc   ast.Location
	root  ast.Expression
	spine []*ast.Expression
	hole  *ast.Expression // nil when no operand is expected
}

func newPartial(loc ast.Location) *partial {
	p := &partial{loc: loc}
	p.hole = &p.root
	return p
}

func (p *partial) empty() bool {
	return p.root == nil
}

func (p *partial) complete() bool {
	return p.root != nil && p.hole == nil
}

// attach fills the open Hole with a complete operand.
func (p *partial) attach(node ast.Expression) bool {
	if p.hole == nil {
		return false
	}
	*p.hole = node
	p.spine = append(p.spine, p.hole)
	p.hole = nil
	return true
}

// descends reports whether an incoming op must be inserted below node rather
// than wrap it.
func descends(node ast.Expression, op ast.Operator) bool {
	switch n := node.(type) {
	case *ast.Assignment, *ast.Return:
		return true
	case *ast.BinaryOperation:
		return n.Operator.Rank() < op.Rank()
	}
	return false
}

// rewrite inserts a binary operation for op with a fresh Hole on its right.
// The new node takes over the topmost spine slot that op does not descend
// past, keeping that slot's subtree as its left operand.
func (p *partial) rewrite(op ast.Operator, loc ast.Location) bool {
	if p.hole != nil {
		return false
	}
	i := len(p.spine) - 1
	for i > 0 && !descends(*p.spine[i-1], op) {
		i--
	}
	slot := p.spine[i]
	node := &ast.BinaryOperation{Loc: loc, Left: *slot, Operator: op}
	*slot = node
	p.spine = p.spine[:i+1]
	p.hole = &node.Right
	return true
}

// assign turns a bare variable into an assignment awaiting its value.
func (p *partial) assign(loc ast.Location) bool {
	v, ok := p.root.(*ast.Variable)
	if !ok || p.hole != nil {
		return false
	}
	a := &ast.Assignment{Loc: loc, Name: v.Name}
	p.root = a
	p.spine = []*ast.Expression{&p.root}
	p.hole = &a.Value
	return true
}

// startReturn replaces whatever was under construction with a return awaiting its operand.
func (p *partial) startReturn(loc ast.Location) {
	r := &ast.Return{Loc: loc}
	p.root = r
	p.spine = []*ast.Expression{&p.root}
	p.hole = &r.Value
}

type Builder struct {
	log     *zap.SugaredLogger
	program *ast.Program
	current *partial
	groups  []*partial
	err     error
}

func New(log *zap.SugaredLogger) *Builder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Builder{
		log:     log,
		program: &ast.Program{},
		current: newPartial(ast.Location{Line: 1, Col: 1}),
	}
}

// Build runs a fresh Builder over lexemes.
func Build(lexemes []lexer.Lexeme, log *zap.SugaredLogger) (*ast.Program, error) {
	b := New(log)
	for _, lexeme := range lexemes {
		if err := b.Push(lexeme); err != nil {
			return nil, err
		}
	}
	return b.Finish()
}

// Push consumes a single lexeme. After the first error the Builder keeps
// returning it.
func (b *Builder) Push(lexeme lexer.Lexeme) error {
	if b.err != nil {
		return b.err
	}
	b.err = b.push(lexeme)
	if b.err == nil {
		b.log.Debugw("consumed lexeme", "lexeme", lexeme.String(), "current", ast.Format(b.current.root), "groups", len(b.groups))
	}
	return b.err
}

func (b *Builder) push(lexeme lexer.Lexeme) error {
	switch lexeme.Type {
	case lexer.LEX_NUMBER:
		return b.operand(lexeme, &ast.Literal{Loc: lexeme.Loc, Value: lexeme.Str})
	case lexer.LEX_IDENT:
		return b.operand(lexeme, &ast.Variable{Loc: lexeme.Loc, Name: lexeme.Str})
	case lexer.LEX_OPERATOR:
		return b.operator(lexeme)
	case lexer.LEX_LPAREN:
		b.groups = append(b.groups, b.current)
		b.current = newPartial(lexeme.Loc)
		return nil
	case lexer.LEX_RPAREN:
		return b.closeGroup(lexeme)
	case lexer.LEX_KEYWORD:
		return b.keyword(lexeme)
	case lexer.LEX_EOF:
		return newError(StructuralInvariantViolation, lexeme, "end of input pushed as a lexeme")
	}
	return newError(StructuralInvariantViolation, lexeme, "unknown lexeme type %d", int(lexeme.Type))
}

func (b *Builder) operand(lexeme lexer.Lexeme, node ast.Expression) error {
	if !b.current.attach(node) {
		return newError(UnexpectedOperand, lexeme, "after %s", ast.Format(b.current.root))
	}
	return nil
}

func (b *Builder) operator(lexeme lexer.Lexeme) error {
	switch lexeme.Str {
	case ";":
		if len(b.groups) > 0 {
			return newError(StructuralInvariantViolation, lexeme, "unclosed '(' at %s", b.current.loc)
		}
		return b.finishStatement(lexeme)
	case "=":
		if !b.current.assign(lexeme.Loc) {
			b.log.Warnw("ignoring '=' not preceded by a bare variable", "location", lexeme.Loc.String(), "current", ast.Format(b.current.root))
		}
		return nil
	}

	op, ok := ast.OperatorFromString(lexeme.Str)
	if !ok {
		return newError(UnknownOperator, lexeme, "")
	}
	if !b.current.rewrite(op, lexeme.Loc) {
		return newError(EmptyLeadingOperator, lexeme, "")
	}
	return nil
}

func (b *Builder) keyword(lexeme lexer.Lexeme) error {
	switch lexeme.Str {
	case lexer.KeywordReturn:
		if len(b.groups) > 0 {
			return newError(UnsupportedConstruct, lexeme, "return inside parentheses")
		}
		if !b.current.empty() {
			b.log.Warnw("return discards the expression before it", "location", lexeme.Loc.String(), "discarded", ast.Format(b.current.root))
		}
		b.current.startReturn(lexeme.Loc)
		return nil
	case lexer.KeywordIf:
		return newError(UnsupportedConstruct, lexeme, "if statements are not implemented")
	}
	return newError(StructuralInvariantViolation, lexeme, "unknown keyword")
}

func (b *Builder) closeGroup(lexeme lexer.Lexeme) error {
	if len(b.groups) == 0 {
		return newError(StructuralInvariantViolation, lexeme, "unmatched ')'")
	}
	inner := b.current
	if !inner.complete() {
		return newError(IncompleteExpression, lexeme, "group opened at %s is %s", inner.loc, ast.Format(inner.root))
	}
	parent := b.groups[len(b.groups)-1]
	b.groups = b.groups[:len(b.groups)-1]
	if !parent.attach(&ast.Group{Loc: inner.loc, Inner: inner.root}) {
		return newError(UnexpectedOperand, lexeme, "group opened at %s follows %s", inner.loc, ast.Format(parent.root))
	}
	b.current = parent
	return nil
}

// finishStatement moves the current statement into the program. Empty
// statements are skipped.
func (b *Builder) finishStatement(lexeme lexer.Lexeme) error {
	cur := b.current
	if cur.empty() {
		return nil
	}
	if !cur.complete() {
		return newError(IncompleteExpression, lexeme, "statement %s", ast.Format(cur.root))
	}
	b.program.Statements = append(b.program.Statements, cur.root)
	b.current = newPartial(lexeme.Loc)
	return nil
}

// Finish finalizes the trailing statement and returns the program.
func (b *Builder) Finish() (*ast.Program, error) {
	if b.err != nil {
		return nil, b.err
	}
	eof := lexer.Lexeme{Type: lexer.LEX_EOF}
	if len(b.groups) > 0 {
		b.err = newError(StructuralInvariantViolation, eof, "unclosed '(' at %s", b.current.loc)
		return nil, b.err
	}
	if b.err = b.finishStatement(eof); b.err != nil {
		return nil, b.err
	}
	return b.program, nil
}
