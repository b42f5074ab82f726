package lexer

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

type TokenType int

// Token types
const (
	LEX_EOF TokenType = iota
	LEX_NUMBER
	LEX_IDENT
	LEX_OPERATOR
	LEX_LPAREN
	LEX_RPAREN
	LEX_KEYWORD
)

func (t TokenType) String() string {
	switch t {
	case LEX_EOF:
		return "EOF"
	case LEX_NUMBER:
		return "NUMBER"
	case LEX_IDENT:
		return "IDENT"
	case LEX_OPERATOR:
		return "OPERATOR"
	case LEX_LPAREN:
		return "LPAREN"
	case LEX_RPAREN:
		return "RPAREN"
	case LEX_KEYWORD:
		return "KEYWORD"
	default:
		return "UNKNOWN"
	}
}

const (
	KeywordReturn = "return"
	KeywordIf     = "if"
)

var keywords = map[string]bool{
	KeywordReturn: true,
	KeywordIf:     true,
}

type Location struct {
	Line int
	Col  int
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Col)
}

type Lexeme struct {
	Type TokenType
	Str  string
	Loc  Location
}

func (l Lexeme) String() string {
	if l.Str == "" {
		return fmt.Sprintf("<%s>", l.Type)
	}
	return fmt.Sprintf("<%s %q>", l.Type, l.Str)
}

func (l Lexeme) IsKeyword(kw string) bool {
	return l.Type == LEX_KEYWORD && l.Str == kw
}

func (l Lexeme) IsOperator(op string) bool {
	return l.Type == LEX_OPERATOR && l.Str == op
}

type Lexer struct {
	input     *bufio.Reader
	line      int
	col       int
	prevCol   int
	lastRune  rune
	hasUnread bool
}

func New(inputReader io.Reader) *Lexer {
	return &Lexer{
		input:   bufio.NewReader(inputReader),
		line:    1,
		col:     1,
		prevCol: 1,
	}
}

// Tokenize trims the input and returns all of its lexemes, excluding the final EOF.
func Tokenize(input string) ([]Lexeme, error) {
	lex := New(strings.NewReader(strings.TrimSpace(input)))
	var lexemes []Lexeme
	for {
		lexeme, err := lex.Next()
		if err != nil {
			return nil, errors.Wrap(err, "tokenizing input")
		}
		if lexeme.Type == LEX_EOF {
			return lexemes, nil
		}
		lexemes = append(lexemes, lexeme)
	}
}

// readRune reads the next rune from the input
func (l *Lexer) readRune() (rune, error) {
	var r rune
	var err error

	if l.hasUnread {
		l.hasUnread = false
		r = l.lastRune
	} else {
		l.prevCol = l.col
		r, _, err = l.input.ReadRune()
	}

	if err != nil {
		return 0, err
	}

	l.lastRune = r
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r, nil
}

// unreadRune puts back the last read rune.
// Should be called at most once per readRune.
func (l *Lexer) unreadRune() {
	l.hasUnread = true
	if l.lastRune == '\n' {
		l.line--
	}
	l.col = l.prevCol
}

func (l *Lexer) skipSpace() error {
	for {
		r, err := l.readRune()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if !unicode.IsSpace(r) {
			l.unreadRune()
			return nil
		}
	}
}

// Next returns the next lexeme from the input
func (l *Lexer) Next() (Lexeme, error) {
	if err := l.skipSpace(); err != nil {
		return Lexeme{Type: LEX_EOF}, err
	}
	loc := Location{Line: l.line, Col: l.col}
	r, err := l.readRune()
	if err != nil {
		if err == io.EOF {
			return Lexeme{Type: LEX_EOF, Loc: loc}, nil
		}
		return Lexeme{Type: LEX_EOF}, err
	}

	switch {
	case isDigit(r):
		l.unreadRune()
		return l.lexRun(loc, LEX_NUMBER, isDigit)
	case isLetter(r):
		l.unreadRune()
		lexeme, err := l.lexRun(loc, LEX_IDENT, isLetter)
		if err == nil && keywords[lexeme.Str] {
			lexeme.Type = LEX_KEYWORD
		}
		return lexeme, err
	case r == '(':
		return Lexeme{Type: LEX_LPAREN, Str: "(", Loc: loc}, nil
	case r == ')':
		return Lexeme{Type: LEX_RPAREN, Str: ")", Loc: loc}, nil
	default:
		// Every other character is a single-character operator. Whether it is
		// a known one is decided by the consumer.
		return Lexeme{Type: LEX_OPERATOR, Str: string(r), Loc: loc}, nil
	}
}

// Numbers and identifiers are ASCII only: they are copied into the IR as
// immediates and slot names, which LLVM accepts only in that form.
func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func isLetter(r rune) bool {
	return ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z')
}

// lexRun reads a maximal run of runes accepted by class.
func (l *Lexer) lexRun(loc Location, tokenType TokenType, class func(rune) bool) (Lexeme, error) {
	var sb strings.Builder
	for {
		r, err := l.readRune()
		if err != nil {
			if err == io.EOF {
				break
			}
			return Lexeme{}, err
		}
		if !class(r) {
			l.unreadRune()
			break
		}
		sb.WriteRune(r)
	}
	return Lexeme{Type: tokenType, Str: sb.String(), Loc: loc}, nil
}
