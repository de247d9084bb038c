// Package evalexpr implements the small side-effect-free expression
// language used by metavariable-comparison conditions: comparisons,
// boolean connectives and arithmetic over the values bound in one range's
// metavariable environment.
//
// Evaluation either produces a value or fails with ErrUnevaluable; the
// caller treats an unevaluable expression as "condition not satisfied",
// never as a fatal error.
package evalexpr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrUnevaluable signals that the expression cannot be evaluated against
// the given environment: an unbound variable, a type mismatch, or a value
// outside the language's domain.
var ErrUnevaluable = errors.New("expression cannot be evaluated")

// Env supplies variable values. Keys include the metavariable sigil
// ("$X"). Values are int64, float64, string or bool.
type Env map[string]interface{}

// Eval evaluates a boolean expression. A non-boolean result is
// unevaluable: comparison conditions are predicates by contract.
func Eval(expr string, env Env) (bool, error) {
	v, err := EvalValue(expr, env)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: result is %T, not bool", ErrUnevaluable, v)
	}
	return b, nil
}

// EvalValue evaluates an expression to its value.
func EvalValue(expr string, env Env) (interface{}, error) {
	toks, err := lex(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	node, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("%w: trailing input at %q", ErrUnevaluable, p.peek().text)
	}
	return node.eval(env)
}

// --- lexer ---

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokEOF
)

type token struct {
	kind tokenKind
	text string
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n':
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(src) && src[j] != quote {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(src) {
				return nil, fmt.Errorf("%w: unterminated string", ErrUnevaluable)
			}
			body := strings.NewReplacer(`\`+string(quote), string(quote), `\\`, `\`).
				Replace(src[i+1 : j])
			toks = append(toks, token{tokString, body})
			i = j + 1
		case c >= '0' && c <= '9':
			j := i
			for j < len(src) && (isNumChar(src[j])) {
				j++
			}
			toks = append(toks, token{tokNumber, src[i:j]})
			i = j
		case c == '$' || c == '_' || unicode.IsLetter(rune(c)):
			j := i
			if c == '$' {
				j++
			}
			for j < len(src) && (src[j] == '_' || unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j]))) {
				j++
			}
			toks = append(toks, token{tokIdent, src[i:j]})
			i = j
		default:
			for _, op := range []string{"==", "!=", "<=", ">=", "&&", "||", "<", ">", "+", "-", "*", "/", "%", "!"} {
				if strings.HasPrefix(src[i:], op) {
					toks = append(toks, token{tokOp, op})
					i += len(op)
					goto next
				}
			}
			return nil, fmt.Errorf("%w: unexpected character %q", ErrUnevaluable, c)
		next:
		}
	}
	toks = append(toks, token{tokEOF, ""})
	return toks, nil
}

func isNumChar(c byte) bool {
	return c >= '0' && c <= '9' || c == '.' || c == 'x' || c == 'X' ||
		c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

// --- AST ---

type node interface {
	eval(env Env) (interface{}, error)
}

type literal struct{ value interface{} }

func (n literal) eval(Env) (interface{}, error) { return n.value, nil }

type variable struct{ name string }

func (n variable) eval(env Env) (interface{}, error) {
	if v, ok := env[n.name]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("%w: unbound variable %s", ErrUnevaluable, n.name)
}

type unary struct {
	op    string
	child node
}

func (n unary) eval(env Env) (interface{}, error) {
	v, err := n.child.eval(env)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "not", "!":
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: not applied to %T", ErrUnevaluable, v)
		}
		return !b, nil
	case "-":
		switch x := v.(type) {
		case int64:
			return -x, nil
		case float64:
			return -x, nil
		}
		return nil, fmt.Errorf("%w: negation of %T", ErrUnevaluable, v)
	}
	return nil, fmt.Errorf("%w: unknown unary %s", ErrUnevaluable, n.op)
}

type binary struct {
	op          string
	left, right node
}

func (n binary) eval(env Env) (interface{}, error) {
	// Short-circuit the connectives before evaluating the right side.
	if n.op == "and" || n.op == "&&" || n.op == "or" || n.op == "||" {
		l, err := n.left.eval(env)
		if err != nil {
			return nil, err
		}
		lb, ok := l.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s applied to %T", ErrUnevaluable, n.op, l)
		}
		if (n.op == "and" || n.op == "&&") && !lb {
			return false, nil
		}
		if (n.op == "or" || n.op == "||") && lb {
			return true, nil
		}
		r, err := n.right.eval(env)
		if err != nil {
			return nil, err
		}
		rb, ok := r.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s applied to %T", ErrUnevaluable, n.op, r)
		}
		return rb, nil
	}

	l, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}
	return applyBinary(n.op, l, r)
}

type call struct {
	name string
	args []node
}

func (n call) eval(env Env) (interface{}, error) {
	vals := make([]interface{}, len(n.args))
	for i, a := range n.args {
		v, err := a.eval(env)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("%w: %s takes one argument", ErrUnevaluable, n.name)
	}
	switch n.name {
	case "str":
		return toString(vals[0]), nil
	case "int":
		switch x := vals[0].(type) {
		case int64:
			return x, nil
		case float64:
			return int64(x), nil
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(x), 0, 64); err == nil {
				return i, nil
			}
		}
		return nil, fmt.Errorf("%w: int(%v)", ErrUnevaluable, vals[0])
	case "len":
		if s, ok := vals[0].(string); ok {
			return int64(len(s)), nil
		}
		return nil, fmt.Errorf("%w: len of %T", ErrUnevaluable, vals[0])
	case "lower":
		return strings.ToLower(toString(vals[0])), nil
	case "upper":
		return strings.ToUpper(toString(vals[0])), nil
	}
	return nil, fmt.Errorf("%w: unknown function %s", ErrUnevaluable, n.name)
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprintf("%v", v)
}

func applyBinary(op string, l, r interface{}) (interface{}, error) {
	switch op {
	case "in", "not in":
		ls, lok := l.(string)
		rs, rok := r.(string)
		if !lok || !rok {
			return nil, fmt.Errorf("%w: in over %T and %T", ErrUnevaluable, l, r)
		}
		found := strings.Contains(rs, ls)
		if op == "not in" {
			return !found, nil
		}
		return found, nil
	case "==", "!=":
		eq, err := equalValues(l, r)
		if err != nil {
			return nil, err
		}
		if op == "!=" {
			return !eq, nil
		}
		return eq, nil
	}

	// Remaining operators are numeric (with + also on strings).
	if op == "+" {
		if ls, ok := l.(string); ok {
			if rs, ok := r.(string); ok {
				return ls + rs, nil
			}
		}
	}
	lf, lInt, lIsInt, err := toNumber(l)
	if err != nil {
		return nil, err
	}
	rf, rInt, rIsInt, err := toNumber(r)
	if err != nil {
		return nil, err
	}
	bothInt := lIsInt && rIsInt

	switch op {
	case "<":
		return lf < rf, nil
	case "<=":
		return lf <= rf, nil
	case ">":
		return lf > rf, nil
	case ">=":
		return lf >= rf, nil
	case "+":
		if bothInt {
			return lInt + rInt, nil
		}
		return lf + rf, nil
	case "-":
		if bothInt {
			return lInt - rInt, nil
		}
		return lf - rf, nil
	case "*":
		if bothInt {
			return lInt * rInt, nil
		}
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("%w: division by zero", ErrUnevaluable)
		}
		if bothInt && lInt%rInt == 0 {
			return lInt / rInt, nil
		}
		return lf / rf, nil
	case "%":
		if !bothInt || rInt == 0 {
			return nil, fmt.Errorf("%w: invalid modulo", ErrUnevaluable)
		}
		return lInt % rInt, nil
	}
	return nil, fmt.Errorf("%w: unknown operator %s", ErrUnevaluable, op)
}

func equalValues(l, r interface{}) (bool, error) {
	// Numbers compare across int/float; everything else must match types.
	lf, _, _, lerr := toNumber(l)
	rf, _, _, rerr := toNumber(r)
	if lerr == nil && rerr == nil {
		return lf == rf, nil
	}
	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		return ls == rs, nil
	}
	lb, lok := l.(bool)
	rb, rok := r.(bool)
	if lok && rok {
		return lb == rb, nil
	}
	return false, fmt.Errorf("%w: comparing %T and %T", ErrUnevaluable, l, r)
}

func toNumber(v interface{}) (f float64, i int64, isInt bool, err error) {
	switch x := v.(type) {
	case int64:
		return float64(x), x, true, nil
	case float64:
		return x, 0, false, nil
	case string:
		// Strings holding numeric source text participate in numeric
		// comparisons; this is how raw bindings compare without
		// constant propagation.
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 0, 64); err == nil {
			return float64(n), n, true, nil
		}
		if fl, err := strconv.ParseFloat(s, 64); err == nil {
			return fl, 0, false, nil
		}
	}
	return 0, 0, false, fmt.Errorf("%w: %v is not numeric", ErrUnevaluable, v)
}

// --- parser (precedence climbing) ---

var precedence = map[string]int{
	"or": 1, "||": 1,
	"and": 2, "&&": 2,
	"in": 3, "not in": 3,
	"==": 4, "!=": 4, "<": 4, "<=": 4, ">": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }
func (p *parser) next() token { t := p.toks[p.pos]; p.pos++; return t }
func (p *parser) atEnd() bool { return p.peek().kind == tokEOF }

func (p *parser) parseExpr(minPrec int) (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.peekOperator()
		if !ok {
			return left, nil
		}
		prec := precedence[op]
		if prec < minPrec {
			return left, nil
		}
		p.consumeOperator(op)
		right, err := p.parseExpr(prec + 1)
		if err != nil {
			return nil, err
		}
		left = binary{op: op, left: left, right: right}
	}
}

// peekOperator recognizes both symbolic and word operators, including the
// two-word "not in".
func (p *parser) peekOperator() (string, bool) {
	t := p.peek()
	if t.kind == tokOp {
		return t.text, true
	}
	if t.kind == tokIdent {
		switch t.text {
		case "and", "or", "in":
			return t.text, true
		case "not":
			if p.toks[p.pos+1].kind == tokIdent && p.toks[p.pos+1].text == "in" {
				return "not in", true
			}
		}
	}
	return "", false
}

func (p *parser) consumeOperator(op string) {
	if op == "not in" {
		p.pos += 2
		return
	}
	p.pos++
}

func (p *parser) parseUnary() (node, error) {
	t := p.peek()
	if t.kind == tokOp && (t.text == "!" || t.text == "-") {
		p.next()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unary{op: t.text, child: child}, nil
	}
	if t.kind == tokIdent && t.text == "not" {
		// "not in" is handled as a binary operator; a leading "not" here
		// is logical negation.
		p.next()
		child, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return unary{op: "not", child: child}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		if i, err := strconv.ParseInt(t.text, 0, 64); err == nil {
			return literal{i}, nil
		}
		if f, err := strconv.ParseFloat(t.text, 64); err == nil {
			return literal{f}, nil
		}
		return nil, fmt.Errorf("%w: bad number %q", ErrUnevaluable, t.text)
	case tokString:
		return literal{t.text}, nil
	case tokIdent:
		switch t.text {
		case "true", "True":
			return literal{true}, nil
		case "false", "False":
			return literal{false}, nil
		}
		if p.peek().kind == tokLParen {
			p.next()
			var args []node
			for p.peek().kind != tokRParen {
				arg, err := p.parseExpr(0)
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.peek().kind == tokComma {
					p.next()
				}
			}
			p.next() // ')'
			return call{name: t.text, args: args}, nil
		}
		return variable{name: t.text}, nil
	case tokLParen:
		inner, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("%w: missing )", ErrUnevaluable)
		}
		p.next()
		return inner, nil
	}
	return nil, fmt.Errorf("%w: unexpected token %q", ErrUnevaluable, t.text)
}
