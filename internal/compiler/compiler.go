// Package compiler wires the pipeline together: tokenize, build the program
// forest, lower it to IR and emit the IR text.
package compiler

import (
	"fmt"
	"strings"

	"github.com/iley/calcc/internal/ast"
	"github.com/iley/calcc/internal/builder"
	"github.com/iley/calcc/internal/ir"
	"github.com/iley/calcc/internal/lexer"
	"github.com/kr/pretty"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DumpMode controls whether the parsed program is prepended to the IR as comments.
type DumpMode int

const (
	DumpNone DumpMode = iota
	// DumpSexpr prints one S-expression per statement.
	DumpSexpr
	// DumpPretty prints the Go structure of the program.
	DumpPretty
)

func ParseDumpMode(s string) (DumpMode, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return DumpNone, nil
	case "sexpr":
		return DumpSexpr, nil
	case "pretty":
		return DumpPretty, nil
	}
	return 0, errors.Errorf("unknown tree dump mode %q", s)
}

func (m DumpMode) String() string {
	switch m {
	case DumpSexpr:
		return "sexpr"
	case DumpPretty:
		return "pretty"
	}
	return "none"
}

const DefaultFunctionName = "main"

type Options struct {
	FunctionName string
	Pointers     ir.PointerStyle
	Dump         DumpMode
}

type Compiler struct {
	opts Options
	log  *zap.SugaredLogger
}

func New(opts Options, log *zap.SugaredLogger) *Compiler {
	if opts.FunctionName == "" {
		opts.FunctionName = DefaultFunctionName
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Compiler{opts: opts, log: log}
}

// Parse tokenizes input and builds the program forest.
func (c *Compiler) Parse(input string) (*ast.Program, error) {
	lexemes, err := lexer.Tokenize(input)
	if err != nil {
		return nil, err
	}
	program, err := builder.Build(lexemes, c.log.Named("builder"))
	if err != nil {
		return nil, errors.WithMessage(err, "parsing program")
	}
	c.log.Debugw("parsed program", "lexemes", len(lexemes), "statements", len(program.Statements))
	return program, nil
}

// Generate parses input and lowers it into a single IR function.
func (c *Compiler) Generate(input string) (*ast.Program, ir.IrFunction, error) {
	program, err := c.Parse(input)
	if err != nil {
		return nil, ir.IrFunction{}, err
	}
	irf, err := ir.NewGenerator(c.log.Named("ir")).Generate(program, c.opts.FunctionName)
	if err != nil {
		return nil, ir.IrFunction{}, errors.WithMessage(err, "generating IR")
	}
	c.log.Debugw("generated IR", "ops", len(irf.Ops), "registers", irf.Registers)
	return program, irf, nil
}

// Compile turns source text into IR text. Nothing is returned unless the whole
// input compiles.
func (c *Compiler) Compile(input string) (string, error) {
	program, irf, err := c.Generate(input)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	writeComments(&sb, DumpTree(program, c.opts.Dump))
	if err := irf.Print(&sb, c.opts.Pointers); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// DumpTree renders program according to mode. Returns an empty string for DumpNone.
func DumpTree(program *ast.Program, mode DumpMode) string {
	switch mode {
	case DumpSexpr:
		var sb strings.Builder
		for i, stmt := range program.Statements {
			fmt.Fprintf(&sb, "statement %d: %s\n", i+1, ast.Format(stmt))
		}
		return sb.String()
	case DumpPretty:
		return fmt.Sprintf("%# v\n", pretty.Formatter(program))
	}
	return ""
}

// writeComments prefixes every line of text with "; ", the IR comment marker.
func writeComments(sb *strings.Builder, text string) {
	if text == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		sb.WriteString("; ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
}
