// Package condition evaluates the small boolean expressions attached to
// fields (for example `handover_reason == "other"`). Identifiers resolve
// against the current field values.
//
// Supported forms:
//   - truthiness: `has_vehicles`
//   - comparisons: `status == "OPEN"`, `count != 0`, `flag == true`, `x == null`
//   - composition: `a == "x" && !b`, `a || (b && c)`
package condition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// Expr is a compiled condition.
type Expr interface {
	Eval(values model.Values) (bool, error)
}

// Compile parses an expression. An empty expression compiles to one that is
// always true.
func Compile(source string) (Expr, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return always{}, nil
	}
	toks, err := lex(trimmed)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	node, err := p.or()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("condition: unexpected %q", p.peek().text)
	}
	return node, nil
}

// MustCompile panics when the expression is invalid.
func MustCompile(source string) Expr {
	expr, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return expr
}

// Eval compiles and evaluates in one call.
func Eval(source string, values model.Values) (bool, error) {
	expr, err := Compile(source)
	if err != nil {
		return false, err
	}
	return expr.Eval(values)
}

type always struct{}

func (always) Eval(model.Values) (bool, error) { return true, nil }

type kind int

const (
	kIdent kind = iota
	kString
	kNumber
	kBool
	kNull
	kEq
	kNeq
	kAnd
	kOr
	kNot
	kOpen
	kClose
)

type tok struct {
	kind kind
	text string
}

func lex(input string) ([]tok, error) {
	var out []tok
	for i := 0; i < len(input); {
		ch := input[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case ch == '(':
			out = append(out, tok{kOpen, "("})
			i++
		case ch == ')':
			out = append(out, tok{kClose, ")"})
			i++
		case strings.HasPrefix(input[i:], "=="):
			out = append(out, tok{kEq, "=="})
			i += 2
		case strings.HasPrefix(input[i:], "!="):
			out = append(out, tok{kNeq, "!="})
			i += 2
		case strings.HasPrefix(input[i:], "&&"):
			out = append(out, tok{kAnd, "&&"})
			i += 2
		case strings.HasPrefix(input[i:], "||"):
			out = append(out, tok{kOr, "||"})
			i += 2
		case ch == '!':
			out = append(out, tok{kNot, "!"})
			i++
		case ch == '"' || ch == '\'':
			end := i + 1
			for end < len(input) && input[end] != ch {
				if input[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(input) {
				return nil, errors.New("condition: unterminated string literal")
			}
			raw := input[i+1 : end]
			if ch == '"' {
				unquoted, err := strconv.Unquote(`"` + raw + `"`)
				if err != nil {
					return nil, fmt.Errorf("condition: invalid string literal: %w", err)
				}
				raw = unquoted
			}
			out = append(out, tok{kString, raw})
			i = end + 1
		case ch == '=' || ch == '&' || ch == '|':
			return nil, fmt.Errorf("condition: unexpected %q at offset %d", ch, i)
		default:
			start := i
			for i < len(input) && !strings.ContainsRune(" \t\r\n()!=&|\"'", rune(input[i])) {
				i++
			}
			word := input[start:i]
			switch strings.ToLower(word) {
			case "true", "false":
				out = append(out, tok{kBool, strings.ToLower(word)})
			case "null", "nil":
				out = append(out, tok{kNull, "null"})
			default:
				if _, err := strconv.ParseFloat(word, 64); err == nil {
					out = append(out, tok{kNumber, word})
				} else {
					out = append(out, tok{kIdent, word})
				}
			}
		}
	}
	return out, nil
}

type parser struct {
	toks []tok
	pos  int
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() tok {
	if p.done() {
		return tok{}
	}
	return p.toks[p.pos]
}

func (p *parser) accept(k kind) bool {
	if p.done() || p.toks[p.pos].kind != k {
		return false
	}
	p.pos++
	return true
}

func (p *parser) or() (Expr, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.accept(kOr) {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = orExpr{left, right}
	}
	return left, nil
}

func (p *parser) and() (Expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.accept(kAnd) {
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = andExpr{left, right}
	}
	return left, nil
}

func (p *parser) unary() (Expr, error) {
	if p.accept(kNot) {
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return notExpr{inner}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Expr, error) {
	if p.accept(kOpen) {
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		if !p.accept(kClose) {
			return nil, errors.New("condition: missing closing ')'")
		}
		return inner, nil
	}
	if p.done() {
		return nil, errors.New("condition: unexpected end of expression")
	}
	ident := p.peek()
	if ident.kind != kIdent {
		return nil, fmt.Errorf("condition: expected field name, got %q", ident.text)
	}
	p.pos++

	var negate bool
	switch {
	case p.accept(kEq):
	case p.accept(kNeq):
		negate = true
	default:
		return truthyExpr{model.FieldName(ident.text)}, nil
	}
	if p.done() {
		return nil, errors.New("condition: missing literal")
	}
	lit := p.peek()
	p.pos++
	switch lit.kind {
	case kString, kNumber, kBool, kNull:
	case kIdent:
		// Bare words compare as strings so `status == OPEN` reads naturally.
		lit.kind = kString
	default:
		return nil, fmt.Errorf("condition: expected literal, got %q", lit.text)
	}
	return compareExpr{field: model.FieldName(ident.text), lit: lit, negate: negate}, nil
}

type orExpr struct{ left, right Expr }

func (e orExpr) Eval(values model.Values) (bool, error) {
	ok, err := e.left.Eval(values)
	if err != nil || ok {
		return ok, err
	}
	return e.right.Eval(values)
}

type andExpr struct{ left, right Expr }

func (e andExpr) Eval(values model.Values) (bool, error) {
	ok, err := e.left.Eval(values)
	if err != nil || !ok {
		return false, err
	}
	return e.right.Eval(values)
}

type notExpr struct{ inner Expr }

func (e notExpr) Eval(values model.Values) (bool, error) {
	ok, err := e.inner.Eval(values)
	return !ok, err
}

type truthyExpr struct{ field model.FieldName }

func (e truthyExpr) Eval(values model.Values) (bool, error) {
	value, _ := values.Get(e.field)
	return truthy(value), nil
}

type compareExpr struct {
	field  model.FieldName
	lit    tok
	negate bool
}

func (e compareExpr) Eval(values model.Values) (bool, error) {
	value, _ := values.Get(e.field)
	var equal bool
	switch e.lit.kind {
	case kNull:
		equal = model.IsEmpty(value, "")
	case kBool:
		equal = truthy(value) == (e.lit.text == "true")
	case kNumber:
		want, _ := strconv.ParseFloat(e.lit.text, 64)
		got, ok := number(value)
		equal = ok && got == want
	default:
		equal = fmt.Sprint(valueOrEmpty(value)) == e.lit.text
	}
	if e.negate {
		return !equal, nil
	}
	return equal, nil
}

func valueOrEmpty(value any) any {
	if value == nil {
		return ""
	}
	return value
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		trimmed := strings.TrimSpace(v)
		if b, err := strconv.ParseBool(trimmed); err == nil {
			return b
		}
		return trimmed != ""
	default:
		n, ok := number(value)
		return !ok || n != 0
	}
}

func number(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
