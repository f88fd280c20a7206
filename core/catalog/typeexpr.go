package catalog

import (
	"fmt"
	"strings"
)

// Expr is a parsed type expression such as Map<String, Foo[]>[].
type Expr struct {
	Name string
	Args []Expr
	// Dims is the number of trailing [] suffixes.
	Dims int
}

// String renders the expression in canonical spacing.
func (e Expr) String() string {
	var b strings.Builder
	b.WriteString(e.Name)
	if len(e.Args) > 0 {
		b.WriteByte('<')
		for i, a := range e.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteByte('>')
	}
	for i := 0; i < e.Dims; i++ {
		b.WriteString("[]")
	}
	return b.String()
}

// Walk calls fn for e and every nested argument, depth first.
func (e Expr) Walk(fn func(Expr)) {
	fn(e)
	for _, a := range e.Args {
		a.Walk(fn)
	}
}

// ParseExpr parses a type expression.
//
//	expr  = ident [ "<" expr { "," expr } ">" ] { "[" "]" }
//	ident = letter { letter | digit | "_" | "." }
func ParseExpr(s string) (Expr, error) {
	p := &exprParser{src: s}
	e, err := p.expr()
	if err != nil {
		return Expr{}, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return Expr{}, p.errorf("unexpected %q", p.src[p.pos])
	}
	return e, nil
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) expr() (Expr, error) {
	name, err := p.ident()
	if err != nil {
		return Expr{}, err
	}
	e := Expr{Name: name}

	if p.accept('<') {
		for {
			arg, err := p.expr()
			if err != nil {
				return Expr{}, err
			}
			e.Args = append(e.Args, arg)
			if p.accept(',') {
				continue
			}
			if p.accept('>') {
				break
			}
			return Expr{}, p.errorf("expected ',' or '>'")
		}
	}

	for p.accept('[') {
		if !p.accept(']') {
			return Expr{}, p.errorf("expected ']'")
		}
		e.Dims++
	}
	return e, nil
}

func (p *exprParser) ident() (string, error) {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if isLetter(c) || c == '_' || (p.pos > start && (isDigit(c) || c == '.')) {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		if p.pos >= len(p.src) {
			return "", p.errorf("expected type name, got end of input")
		}
		return "", p.errorf("expected type name, got %q", p.src[p.pos])
	}
	return p.src[start:p.pos], nil
}

func (p *exprParser) accept(c byte) bool {
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == c {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) errorf(format string, args ...any) error {
	return fmt.Errorf("type expression %q at offset %d: %s", p.src, p.pos, fmt.Sprintf(format, args...))
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else if !isLetter(c) && !isDigit(c) && c != '_' {
			return false
		}
	}
	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}
