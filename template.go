// Copyright (C) 2022  Shanhu Tech Inc.
//
// This program is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the
// Free Software Foundation, either version 3 of the License, or (at your
// option) any later version.
//
// This program is distributed in the hope that it will be useful, but WITHOUT
// ANY WARRANTY; without even the implied warranty of MERCHANTABILITY or
// FITNESS FOR A PARTICULAR PURPOSE.  See the GNU Affero General Public License
// for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package kiln

import (
	"strings"

	"shanhu.io/misc/errcode"
)

const (
	tokenOpen  = "<%="
	tokenClose = "%>"
)

func hasTemplate(s string) bool { return strings.Contains(s, tokenOpen) }

// expr is a parsed token expression: *pathExpr, *stringExpr or *callExpr.
type expr interface{}

type pathExpr struct {
	path string
}

type stringExpr struct {
	s string
}

type callExpr struct {
	name string
	args []expr
}

// tmplPart is either literal text or a token expression.
type tmplPart struct {
	text string
	expr expr
}

func parseTemplate(s string) ([]*tmplPart, error) {
	var parts []*tmplPart
	for len(s) > 0 {
		start := strings.Index(s, tokenOpen)
		if start < 0 {
			parts = append(parts, &tmplPart{text: s})
			break
		}
		if start > 0 {
			parts = append(parts, &tmplPart{text: s[:start]})
		}
		rest := s[start+len(tokenOpen):]
		end := tokenEnd(rest)
		if end < 0 {
			return nil, errcode.InvalidArgf("unterminated token in %q", s)
		}
		e, err := parseExpr(rest[:end])
		if err != nil {
			return nil, err
		}
		parts = append(parts, &tmplPart{expr: e})
		s = rest[end+len(tokenClose):]
	}
	return parts, nil
}

// tokenEnd returns the index of the closing delimiter in s, skipping
// quoted strings the same way the expression parser reads them.
func tokenEnd(s string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case strings.HasPrefix(s[i:], tokenClose):
			return i
		}
	}
	return -1
}

type exprParser struct {
	s   string
	pos int
}

func parseExpr(s string) (expr, error) {
	p := &exprParser{s: s}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return nil, errcode.InvalidArgf(
			"unexpected %q in token %q", p.s[p.pos:], s,
		)
	}
	return e, nil
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *exprParser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func isIdentByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '$', c == '-':
		return true
	}
	return false
}

func (p *exprParser) ident() string {
	start := p.pos
	for p.pos < len(p.s) && isIdentByte(p.s[p.pos]) {
		p.pos++
	}
	return p.s[start:p.pos]
}

func (p *exprParser) expr() (expr, error) {
	p.skipSpace()
	if c := p.peek(); c == '"' || c == '\'' {
		return p.str(c)
	}

	var segs []string
	for {
		id := p.ident()
		if id == "" {
			return nil, errcode.InvalidArgf("expect a name in token %q", p.s)
		}
		segs = append(segs, id)
		if p.peek() != '.' {
			break
		}
		p.pos++
	}
	name := strings.Join(segs, ".")

	p.skipSpace()
	if p.peek() != '(' {
		return &pathExpr{path: name}, nil
	}
	p.pos++

	call := &callExpr{name: name}
	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
		return call, nil
	}
	for {
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		call.args = append(call.args, arg)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return call, nil
		default:
			return nil, errcode.InvalidArgf("unclosed call in token %q", p.s)
		}
	}
}

func (p *exprParser) str(quote byte) (expr, error) {
	p.pos++ // opening quote
	var sb strings.Builder
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		p.pos++
		switch c {
		case quote:
			return &stringExpr{s: sb.String()}, nil
		case '\\':
			if p.pos < len(p.s) {
				sb.WriteByte(p.s[p.pos])
				p.pos++
			}
		default:
			sb.WriteByte(c)
		}
	}
	return nil, errcode.InvalidArgf("unterminated string in token %q", p.s)
}
