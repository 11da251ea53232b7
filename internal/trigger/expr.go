package trigger

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

const (
	MaxExprLen   = 1024
	MaxExprDepth = 32
)

// Expr is a compiled trigger expression. The grammar has no function calls,
// assignments or loops, so evaluation cannot reach anything outside the
// context map it is given.
//
//	expr  := or
//	or    := and ( ("||" | "or") and )*
//	and   := not ( ("&&" | "and") not )*
//	not   := ("!" | "not") not | cmp
//	cmp   := sum ( ("=="|"!="|"<"|"<="|">"|">=") sum )?
//	sum   := term ( ("+"|"-") term )*
//	term  := unary ( ("*"|"/") unary )*
//	unary := "-" unary | atom
//	atom  := number | string | true | false | ident("." ident)* | "(" expr ")"
type Expr struct {
	src  string
	root node
}

// Compile parses expr without evaluating it.
func Compile(expr string) (*Expr, error) {
	if len(expr) > MaxExprLen {
		return nil, fmt.Errorf("expression is %d bytes, limit is %d", len(expr), MaxExprLen)
	}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}

	p := &parser{input: expr}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.pos < len(p.input) {
		return nil, fmt.Errorf("unexpected character at position %d: %c", p.pos, p.input[p.pos])
	}
	return &Expr{src: expr, root: root}, nil
}

func (e *Expr) String() string { return e.src }

// Eval evaluates the expression against ctx. Identifiers resolve against
// ctx, with dotted paths walking nested maps.
func (e *Expr) Eval(ctx map[string]any) (any, error) {
	return e.root.eval(ctx)
}

// EvalBool evaluates the expression and requires a boolean result.
func (e *Expr) EvalBool(ctx map[string]any) (bool, error) {
	v, err := e.Eval(ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("expression yields %s, want bool", typeName(v))
	}
	return b, nil
}

// Identifiers returns the distinct identifier paths referenced, sorted.
func (e *Expr) Identifiers() []string {
	seen := map[string]bool{}
	e.root.idents(seen)
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// --- AST ---

type node interface {
	eval(ctx map[string]any) (any, error)
	idents(seen map[string]bool)
}

type literal struct{ v any }

type ident struct{ path []string }

type unaryOp struct {
	op string
	x  node
}

type binaryOp struct {
	op   string
	l, r node
}

func (n literal) eval(map[string]any) (any, error) { return n.v, nil }
func (literal) idents(map[string]bool)             {}

func (n ident) idents(seen map[string]bool)   { seen[strings.Join(n.path, ".")] = true }
func (n unaryOp) idents(seen map[string]bool) { n.x.idents(seen) }
func (n binaryOp) idents(seen map[string]bool) {
	n.l.idents(seen)
	n.r.idents(seen)
}

func (n ident) eval(ctx map[string]any) (any, error) {
	var cur any = ctx
	for i, seg := range n.path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s is not an object", strings.Join(n.path[:i], "."))
		}
		v, ok := m[seg]
		if !ok {
			return nil, fmt.Errorf("undefined variable: %s", strings.Join(n.path[:i+1], "."))
		}
		cur = v
	}
	v, err := scalar(cur)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", strings.Join(n.path, "."), err)
	}
	return v, nil
}

func (n unaryOp) eval(ctx map[string]any) (any, error) {
	v, err := n.x.eval(ctx)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "!":
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("operator not needs bool, got %s", typeName(v))
		}
		return !b, nil
	default:
		f, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("unary minus needs number, got %s", typeName(v))
		}
		return -f, nil
	}
}

func (n binaryOp) eval(ctx map[string]any) (any, error) {
	l, err := n.l.eval(ctx)
	if err != nil {
		return nil, err
	}

	if n.op == "&&" || n.op == "||" {
		lb, ok := l.(bool)
		if !ok {
			return nil, fmt.Errorf("operator %s needs bool operands, got %s", n.op, typeName(l))
		}
		if (n.op == "&&" && !lb) || (n.op == "||" && lb) {
			return lb, nil
		}
		r, err := n.r.eval(ctx)
		if err != nil {
			return nil, err
		}
		rb, ok := r.(bool)
		if !ok {
			return nil, fmt.Errorf("operator %s needs bool operands, got %s", n.op, typeName(r))
		}
		return rb, nil
	}

	r, err := n.r.eval(ctx)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==", "!=":
		if typeName(l) != typeName(r) {
			return nil, fmt.Errorf("cannot compare %s with %s", typeName(l), typeName(r))
		}
		eq := l == r
		if n.op == "!=" {
			return !eq, nil
		}
		return eq, nil
	case "<", "<=", ">", ">=":
		return compare(n.op, l, r)
	default:
		return arith(n.op, l, r)
	}
}

func compare(op string, l, r any) (any, error) {
	var c int
	switch lv := l.(type) {
	case float64:
		rv, ok := r.(float64)
		if !ok {
			return nil, fmt.Errorf("cannot compare %s with %s", typeName(l), typeName(r))
		}
		switch {
		case lv < rv:
			c = -1
		case lv > rv:
			c = 1
		}
	case string:
		rv, ok := r.(string)
		if !ok {
			return nil, fmt.Errorf("cannot compare %s with %s", typeName(l), typeName(r))
		}
		c = strings.Compare(lv, rv)
	default:
		return nil, fmt.Errorf("operator %s not defined on %s", op, typeName(l))
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	default:
		return c >= 0, nil
	}
}

func arith(op string, l, r any) (any, error) {
	lf, lok := l.(float64)
	rf, rok := r.(float64)
	if !lok || !rok {
		return nil, fmt.Errorf("operator %s needs numbers, got %s and %s", op, typeName(l), typeName(r))
	}
	var out float64
	switch op {
	case "+":
		out = lf + rf
	case "-":
		out = lf - rf
	case "*":
		out = lf * rf
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		out = lf / rf
	}
	if math.IsInf(out, 0) || math.IsNaN(out) {
		return nil, fmt.Errorf("arithmetic result out of range")
	}
	return out, nil
}

// scalar normalises a context value to float64, string or bool.
func scalar(v any) (any, error) {
	switch x := v.(type) {
	case bool, string:
		return x, nil
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	case nil:
		return nil, fmt.Errorf("value is null")
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}

func typeName(v any) string {
	switch v.(type) {
	case float64:
		return "number"
	case string:
		return "string"
	case bool:
		return "bool"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// --- parser ---

type parser struct {
	input string
	pos   int
	depth int
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > MaxExprDepth {
		return fmt.Errorf("expression nested deeper than %d", MaxExprDepth)
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.matchOp("||") || p.matchWord("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binaryOp{op: "||", l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.matchOp("&&") || p.matchWord("and") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = binaryOp{op: "&&", l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	p.skipSpaces()
	if (p.peek("!") && !p.peek("!=")) || p.peekWord("not") {
		if p.peek("!") {
			p.pos++
		} else {
			p.pos += len("not")
		}
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return unaryOp{op: "!", x: x}, nil
	}
	return p.parseCmp()
}

func (p *parser) parseCmp() (node, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	for _, op := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		if p.matchOp(op) {
			right, err := p.parseSum()
			if err != nil {
				return nil, err
			}
			return binaryOp{op: op, l: left, r: right}, nil
		}
	}
	return left, nil
}

func (p *parser) parseSum() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.matchOp("+"):
			op = "+"
		case p.matchOp("-"):
			op = "-"
		default:
			return left, nil
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryOp{op: op, l: left, r: right}
	}
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch {
		case p.matchOp("*"):
			op = "*"
		case p.matchOp("/"):
			op = "/"
		default:
			return left, nil
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryOp{op: op, l: left, r: right}
	}
}

func (p *parser) parseUnary() (node, error) {
	if p.matchOp("-") {
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unaryOp{op: "-", x: x}, nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (node, error) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("unexpected end of expression")
	}

	ch := p.input[p.pos]

	if ch == '(' {
		p.pos++
		if err := p.enter(); err != nil {
			return nil, err
		}
		val, err := p.parseOr()
		p.leave()
		if err != nil {
			return nil, err
		}
		if !p.matchOp(")") {
			return nil, fmt.Errorf("expected ')' at position %d", p.pos)
		}
		return val, nil
	}

	if ch == '"' || ch == '\'' {
		s, err := p.parseString(ch)
		if err != nil {
			return nil, err
		}
		return literal{v: s}, nil
	}

	if isDigit(ch) {
		start := p.pos
		for p.pos < len(p.input) && isDigit(p.input[p.pos]) {
			p.pos++
		}
		if p.pos < len(p.input) && p.input[p.pos] == '.' {
			p.pos++
			if p.pos >= len(p.input) || !isDigit(p.input[p.pos]) {
				return nil, fmt.Errorf("malformed number at position %d", start)
			}
			for p.pos < len(p.input) && isDigit(p.input[p.pos]) {
				p.pos++
			}
		}
		f, err := strconv.ParseFloat(p.input[start:p.pos], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed number at position %d: %w", start, err)
		}
		return literal{v: f}, nil
	}

	if isIdentStart(ch) {
		var path []string
		for {
			seg := p.readIdent()
			if seg == "" {
				return nil, fmt.Errorf("expected identifier at position %d", p.pos)
			}
			path = append(path, seg)
			if p.pos < len(p.input) && p.input[p.pos] == '.' {
				p.pos++
				continue
			}
			break
		}
		if len(path) == 1 {
			switch path[0] {
			case "true":
				return literal{v: true}, nil
			case "false":
				return literal{v: false}, nil
			case "and", "or", "not":
				return nil, fmt.Errorf("unexpected keyword %q at position %d", path[0], p.pos-len(path[0]))
			}
		}
		return ident{path: path}, nil
	}

	return nil, fmt.Errorf("unexpected character '%c' at position %d", ch, p.pos)
}

func (p *parser) parseString(quote byte) (string, error) {
	start := p.pos
	p.pos++
	var sb strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch {
		case c == quote:
			p.pos++
			return sb.String(), nil
		case c == '\\' && p.pos+1 < len(p.input):
			sb.WriteByte(p.input[p.pos+1])
			p.pos += 2
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
	return "", fmt.Errorf("unterminated string starting at position %d", start)
}

func (p *parser) readIdent() string {
	start := p.pos
	if p.pos < len(p.input) && isIdentStart(p.input[p.pos]) {
		p.pos++
		for p.pos < len(p.input) && (isIdentStart(p.input[p.pos]) || isDigit(p.input[p.pos])) {
			p.pos++
		}
	}
	return p.input[start:p.pos]
}

func (p *parser) peek(s string) bool {
	return strings.HasPrefix(p.input[p.pos:], s)
}

// peekWord matches a keyword only when it is not the prefix of a longer
// identifier.
func (p *parser) peekWord(w string) bool {
	if !p.peek(w) {
		return false
	}
	end := p.pos + len(w)
	return end >= len(p.input) || !(isIdentStart(p.input[end]) || isDigit(p.input[end]) || p.input[end] == '.')
}

func (p *parser) matchOp(op string) bool {
	p.skipSpaces()
	if !p.peek(op) {
		return false
	}
	// "<" must not swallow the first half of "<=" etc.
	if len(op) == 1 && (op == "<" || op == ">") && p.peek(op+"=") {
		return false
	}
	p.pos += len(op)
	return true
}

func (p *parser) matchWord(w string) bool {
	p.skipSpaces()
	if !p.peekWord(w) {
		return false
	}
	p.pos += len(w)
	return true
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.input) && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// IdentKey maps an arbitrary id onto an identifier expressions can address.
// Bytes outside [A-Za-z0-9_] become '_' and a leading digit gains a '_'
// prefix, so "gen-1" is gen_1 and "7c9e-..." is _7c9e_...
func IdentKey(id string) string {
	b := []byte(id)
	for i, c := range b {
		if !isIdentStart(c) && !isDigit(c) {
			b[i] = '_'
		}
	}
	if len(b) == 0 || isDigit(b[0]) {
		return "_" + string(b)
	}
	return string(b)
}
