package script

import (
	"fmt"
	"strconv"

	"github.com/hqge/sparkle/internal/vm"
)

// header holds the two metacommands every script must open with, per
// spec.md §6: "%sparkle;" followed by "%bufcount <N>;" and "%matcount <M>;".
type header struct {
	bufCount int
	matCount int
}

// Interpreter runs one Sparkle script body against a freshly constructed VM.
type Interpreter struct {
	lex   *Lexer
	stack Stack
	vm    *vm.VM
}

// NewInterpreter lexes src's header, builds a VM with the declared register
// counts, and returns an Interpreter ready to Run the remainder of the
// script. The caller may override VM.Stderr before calling Run.
func NewInterpreter(src []byte) (*Interpreter, error) {
	lex := NewLexer(src)
	h, err := parseHeader(lex)
	if err != nil {
		return nil, err
	}
	v, err := vm.New(h.bufCount, h.matCount)
	if err != nil {
		return nil, err
	}
	return &Interpreter{lex: lex, vm: v}, nil
}

// VM exposes the interpreter's underlying virtual machine, primarily so
// callers can redirect diagnostic output before Run.
func (it *Interpreter) VM() *vm.VM { return it.vm }

// parseHeader consumes "%sparkle; %bufcount <N>; %matcount <M>;" from the
// front of the token stream.
func parseHeader(lex *Lexer) (header, error) {
	if err := expectDirective(lex, "%sparkle"); err != nil {
		return header{}, err
	}
	if err := expectSemicolon(lex); err != nil {
		return header{}, err
	}

	bufCount, err := expectCountDirective(lex, "%bufcount")
	if err != nil {
		return header{}, err
	}
	matCount, err := expectCountDirective(lex, "%matcount")
	if err != nil {
		return header{}, err
	}
	return header{bufCount: bufCount, matCount: matCount}, nil
}

func expectDirective(lex *Lexer, word string) error {
	tok, err := lex.Next()
	if err != nil {
		return err
	}
	if tok == nil || tok.Kind != TDirective || tok.Word != word {
		return &LexError{Line: lineOf(tok), Msg: fmt.Sprintf("expected %q directive", word)}
	}
	return nil
}

func expectSemicolon(lex *Lexer) error {
	tok, err := lex.Next()
	if err != nil {
		return err
	}
	if tok == nil || tok.Kind != TSemicolon {
		return &LexError{Line: lineOf(tok), Msg: "expected ';'"}
	}
	return nil
}

// expectCountDirective consumes "<word> <int>;" and returns the integer.
func expectCountDirective(lex *Lexer, word string) (int, error) {
	if err := expectDirective(lex, word); err != nil {
		return 0, err
	}
	tok, err := lex.Next()
	if err != nil {
		return 0, err
	}
	if tok == nil || tok.Kind != TNumberInt {
		return 0, &LexError{Line: lineOf(tok), Msg: fmt.Sprintf("%s expects an integer argument", word)}
	}
	n, convErr := strconv.Atoi(strconv.FormatFloat(tok.Num, 'f', 0, 64))
	if convErr != nil {
		return 0, &LexError{Line: tok.Line, Msg: fmt.Sprintf("%s argument out of range", word)}
	}
	if err := expectSemicolon(lex); err != nil {
		return 0, err
	}
	return n, nil
}

func lineOf(tok *Token) int {
	if tok == nil {
		return 0
	}
	return tok.Line
}

// Run executes the script body following the header, statement by
// statement, until end of input. A well-formed script leaves the
// interpreter stack empty at EOF (spec.md §6); a non-empty stack at EOF is
// reported as a recoverable error. Run returns the first recoverable error
// encountered; fatal faults from the VM propagate as panics, per spec.md
// §7, and are not caught here.
func (it *Interpreter) Run() error {
	for {
		tok, err := it.lex.Next()
		if err != nil {
			return err
		}
		if tok == nil {
			break
		}
		if err := it.step(tok); err != nil {
			return err
		}
	}
	if it.stack.Len() != 0 {
		return &RuntimeError{Msg: fmt.Sprintf("script left %d value(s) on the stack at end of file", it.stack.Len())}
	}
	return nil
}

// step dispatches a single token: literals push a cell, a bare word invokes
// the matching operator, and a semicolon is a no-op statement separator.
func (it *Interpreter) step(tok *Token) error {
	switch tok.Kind {
	case TSemicolon:
		return nil
	case TNumberInt:
		return it.stack.Push(tok.Line, IntCell(int32(tok.Num)))
	case TNumberFloat:
		return it.stack.Push(tok.Line, FloatCell(tok.Num))
	case TString:
		return it.stack.Push(tok.Line, StringCell(tok.Str))
	case TDirective:
		return &RuntimeError{Line: tok.Line, Msg: fmt.Sprintf("unexpected directive %q in script body", tok.Word)}
	case TWord:
		op, ok := operators[tok.Word]
		if !ok {
			return &RuntimeError{Line: tok.Line, Msg: fmt.Sprintf("unknown operator %q", tok.Word)}
		}
		return op(&it.stack, it.vm, tok.Line)
	default:
		return &RuntimeError{Line: tok.Line, Msg: "unrecognized token"}
	}
}
