// AngelaMos | 2026
// parser.go

package rules

import (
	"fmt"
	"strings"
)

type node interface {
	String() string
}

type logicalNode struct {
	and         bool
	left, right node
}

func (n *logicalNode) String() string {
	op := "||"
	if n.and {
		op = "&&"
	}
	return fmt.Sprintf("(%s %s %s)", n.left, op, n.right)
}

type compareNode struct {
	op          string
	anyOf       bool
	left, right operand
}

func (n *compareNode) String() string {
	op := n.op
	if n.anyOf {
		op = "?" + op
	}
	return fmt.Sprintf("%s %s %s", n.left, op, n.right)
}

type sourceKind int

const (
	srcLiteral sourceKind = iota
	srcRecord
	srcAuth
	srcBody
	srcQuery
	srcMethod
	srcCollection
)

type operand struct {
	kind    sourceKind
	literal string
	// collection and alias identify an @collection binding.
	collection string
	alias      string
	segments   []string
	raw        string
}

func (o operand) String() string {
	if o.kind == srcLiteral {
		return fmt.Sprintf("%q", o.literal)
	}
	return o.raw
}

func (o operand) bindingKey() string {
	return o.collection + ":" + o.alias
}

// Expr is a parsed rule expression. It is immutable and safe for
// concurrent evaluation.
type Expr struct {
	src      string
	root     node
	bindings []binding
}

type binding struct {
	key        string
	collection string
}

func (e *Expr) String() string {
	return e.root.String()
}

func (e *Expr) Source() string {
	return e.src
}

// Collections lists the collections referenced through @collection.
func (e *Expr) Collections() []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range e.bindings {
		if !seen[b.collection] {
			seen[b.collection] = true
			out = append(out, b.collection)
		}
	}
	return out
}

func Parse(src string) (*Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks, bindings: make(map[string]string)}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.peek().kind != tokEOF {
		return nil, p.errorf("unexpected %s", p.peek())
	}

	expr := &Expr{src: src, root: root}
	for _, key := range p.order {
		expr.bindings = append(expr.bindings, binding{key: key, collection: p.bindings[key]})
	}
	return expr, nil
}

type parser struct {
	toks     []token
	pos      int
	bindings map[string]string
	order    []string
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Pos: p.peek().pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{and: false, left: left, right: right}
	}

	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{and: true, left: left, right: right}
	}

	return left, nil
}

func (p *parser) parsePrimary() (node, error) {
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, p.errorf("expected ), got %s", p.peek())
		}
		p.next()
		return inner, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	opTok := p.next()
	if opTok.kind != tokOp {
		return nil, &SyntaxError{Pos: opTok.pos, Msg: fmt.Sprintf("expected operator, got %s", opTok)}
	}

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	op := opTok.text
	anyOf := strings.HasPrefix(op, "?")
	return &compareNode{
		op:    strings.TrimPrefix(op, "?"),
		anyOf: anyOf,
		left:  left,
		right: right,
	}, nil
}

func (p *parser) parseOperand() (operand, error) {
	t := p.next()

	switch t.kind {
	case tokString, tokNumber:
		return operand{kind: srcLiteral, literal: t.text, raw: t.text}, nil
	case tokPath:
		return p.parsePath(t)
	default:
		return operand{}, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected operand, got %s", t)}
	}
}

func (p *parser) parsePath(t token) (operand, error) {
	switch t.text {
	case "true", "false":
		return operand{kind: srcLiteral, literal: t.text, raw: t.text}, nil
	case "null":
		return operand{kind: srcLiteral, literal: "", raw: t.text}, nil
	}

	parts := strings.Split(t.text, ".")
	for _, part := range parts {
		if part == "" {
			return operand{}, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("empty path segment in %q", t.text)}
		}
	}

	if !strings.HasPrefix(t.text, "@") {
		if strings.Contains(t.text, ":") || strings.Contains(t.text, "@") {
			return operand{}, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("invalid field path %q", t.text)}
		}
		return operand{kind: srcRecord, segments: parts, raw: t.text}, nil
	}

	bad := func(msg string) (operand, error) {
		return operand{}, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("%s in %q", msg, t.text)}
	}

	switch parts[0] {
	case "@request":
		if len(parts) < 2 {
			return bad("incomplete @request reference")
		}
		switch parts[1] {
		case "method":
			if len(parts) != 2 {
				return bad("@request.method takes no path")
			}
			return operand{kind: srcMethod, raw: t.text}, nil
		case "auth":
			if len(parts) < 3 {
				return bad("missing field")
			}
			return operand{kind: srcAuth, segments: parts[2:], raw: t.text}, nil
		case "body":
			if len(parts) < 3 {
				return bad("missing field")
			}
			return operand{kind: srcBody, segments: parts[2:], raw: t.text}, nil
		case "query":
			if len(parts) != 3 {
				return bad("@request.query takes one key")
			}
			return operand{kind: srcQuery, segments: parts[2:], raw: t.text}, nil
		default:
			return bad("unknown @request field")
		}

	case "@collection":
		if len(parts) < 3 {
			return bad("incomplete @collection reference")
		}
		name, alias, _ := strings.Cut(parts[1], ":")
		if name == "" {
			return bad("missing collection name")
		}
		op := operand{
			kind:       srcCollection,
			collection: name,
			alias:      alias,
			segments:   parts[2:],
			raw:        t.text,
		}
		key := op.bindingKey()
		if _, ok := p.bindings[key]; !ok {
			p.bindings[key] = name
			p.order = append(p.order, key)
		}
		return op, nil

	default:
		return bad("unknown macro")
	}
}
