// AngelaMos | 2026
// lexer.go

package rules

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrSyntax = errors.New("rule syntax error")

type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("rule syntax error at %d: %s", e.Pos, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokPath
	tokString
	tokNumber
	tokOp
	tokAnd
	tokOr
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of rule"
	}
	return fmt.Sprintf("%q", t.text)
}

// comparison operators, longest first so "?!~" wins over "?!" prefixes.
var operators = []string{
	"?!=", "?>=", "?<=", "?!~",
	"!=", ">=", "<=", "!~",
	"?=", "?>", "?<", "?~",
	"=", ">", "<", "~",
}

func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0

	for i < len(src) {
		c := src[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++

		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++

		case strings.HasPrefix(src[i:], "&&"):
			toks = append(toks, token{kind: tokAnd, text: "&&", pos: i})
			i += 2

		case strings.HasPrefix(src[i:], "||"):
			toks = append(toks, token{kind: tokOr, text: "||", pos: i})
			i += 2

		case c == '\'' || c == '"':
			text, next, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: text, pos: i})
			i = next

		case isDigit(c) || (c == '-' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			i++
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], pos: start})

		case c == '@' || c == '_' || unicode.IsLetter(rune(c)):
			start := i
			i++
			for i < len(src) && isPathChar(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokPath, text: src[start:i], pos: start})

		default:
			op := matchOperator(src[i:])
			if op == "" {
				return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		}
	}

	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func scanString(src string, start int) (string, int, error) {
	quote := src[start]
	var b strings.Builder

	for i := start + 1; i < len(src); i++ {
		c := src[i]
		if c == '\\' && i+1 < len(src) {
			b.WriteByte(src[i+1])
			i++
			continue
		}
		if c == quote {
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
	}

	return "", 0, &SyntaxError{Pos: start, Msg: "unterminated string"}
}

func matchOperator(s string) string {
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isPathChar(c byte) bool {
	return c == '_' || c == '.' || c == ':' || c == '@' ||
		isDigit(c) || unicode.IsLetter(rune(c))
}
