// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgsl

import (
	"fmt"
	"strconv"
	"strings"
)

// typeExpr is an unresolved type expression such as array<vec4<f32>, 16>.
type typeExpr struct {
	name   string
	params []typeExpr
	line   int
}

func (t typeExpr) String() string {
	if len(t.params) == 0 {
		return t.name
	}
	ps := make([]string, len(t.params))
	for i, p := range t.params {
		ps[i] = p.String()
	}
	return t.name + "<" + strings.Join(ps, ", ") + ">"
}

type attribute struct {
	name string
	args []string
}

type memberDecl struct {
	name  string
	typ   typeExpr
	align uint64
	size  uint64
}

type structDecl struct {
	name    string
	members []memberDecl
	line    int
}

type globalDecl struct {
	name    string
	space   string
	access  string
	typ     typeExpr
	group   uint32
	binding uint32
	bound   bool
	line    int
}

type fnDecl struct {
	name   string
	attrs  []attribute
	idents map[string]struct{}
	line   int
}

func (f *fnDecl) attr(name string) (attribute, bool) {
	for _, a := range f.attrs {
		if a.name == name {
			return a, true
		}
	}
	return attribute{}, false
}

// parser walks module-scope declarations. Function bodies are not parsed;
// only the identifiers they mention are recorded.
type parser struct {
	toks []token
	pos  int

	structs map[string]*structDecl
	aliases map[string]typeExpr
	consts  map[string]string
	globals []*globalDecl
	fns     []*fnDecl
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &ParseError{Line: t.line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(text string) (token, error) {
	t := p.next()
	if t.text != text || t.kind == tokEOF {
		return t, p.errorf(t, "expected %q, found %v", text, t)
	}
	return t, nil
}

func (p *parser) accept(text string) bool {
	if t := p.peek(); t.kind == tokPunct && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) ident() (token, error) {
	t := p.next()
	if t.kind != tokIdent {
		return t, p.errorf(t, "expected identifier, found %v", t)
	}
	return t, nil
}

// skipPast consumes tokens up to and including the first top-level text.
func (p *parser) skipPast(text string) error {
	depth := 0
	for {
		t := p.next()
		switch {
		case t.kind == tokEOF:
			return p.errorf(t, "expected %q", text)
		case depth == 0 && t.text == text:
			return nil
		case t.text == "(" || t.text == "[" || t.text == "{":
			depth++
		case t.text == ")" || t.text == "]" || t.text == "}":
			depth--
		}
	}
}

func (p *parser) parseModule() error {
	for p.peek().kind != tokEOF {
		attrs, err := p.attributes()
		if err != nil {
			return err
		}
		t := p.peek()
		switch {
		case t.kind == tokPunct && t.text == ";":
			p.pos++
		case t.text == "struct":
			if err := p.structDecl(); err != nil {
				return err
			}
		case t.text == "alias" || t.text == "type":
			if err := p.aliasDecl(); err != nil {
				return err
			}
		case t.text == "const" || t.text == "override" || t.text == "let":
			if err := p.constDecl(); err != nil {
				return err
			}
		case t.text == "var":
			if err := p.varDecl(attrs); err != nil {
				return err
			}
		case t.text == "fn":
			if err := p.fnDecl(attrs); err != nil {
				return err
			}
		case t.text == "enable" || t.text == "requires" || t.text == "diagnostic" || t.text == "const_assert":
			if err := p.skipPast(";"); err != nil {
				return err
			}
		default:
			return p.errorf(t, "unexpected %v at module scope", t)
		}
	}
	return nil
}

func (p *parser) attributes() ([]attribute, error) {
	var attrs []attribute
	for p.accept("@") {
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		a := attribute{name: name.text}
		if p.accept("(") {
			var cur []string
			depth := 0
			for {
				t := p.next()
				if t.kind == tokEOF {
					return nil, p.errorf(t, "unterminated attribute @%s", a.name)
				}
				if depth == 0 && (t.text == "," || t.text == ")") {
					if len(cur) > 0 {
						a.args = append(a.args, strings.Join(cur, ""))
						cur = cur[:0]
					}
					if t.text == ")" {
						break
					}
					continue
				}
				if t.text == "(" {
					depth++
				} else if t.text == ")" {
					depth--
				}
				cur = append(cur, t.text)
			}
		}
		attrs = append(attrs, a)
	}
	return attrs, nil
}

func (p *parser) typeExpr() (typeExpr, error) {
	t := p.next()
	if t.kind != tokIdent && t.kind != tokNumber {
		return typeExpr{}, p.errorf(t, "expected type, found %v", t)
	}
	te := typeExpr{name: t.text, line: t.line}
	if t.kind == tokIdent && p.accept("<") {
		for {
			param, err := p.typeExpr()
			if err != nil {
				return typeExpr{}, err
			}
			te.params = append(te.params, param)
			if p.accept(",") {
				if p.accept(">") {
					break
				}
				continue
			}
			if _, err := p.expect(">"); err != nil {
				return typeExpr{}, err
			}
			break
		}
	}
	return te, nil
}

func (p *parser) structDecl() error {
	p.next()
	name, err := p.ident()
	if err != nil {
		return err
	}
	sd := &structDecl{name: name.text, line: name.line}
	if _, err := p.expect("{"); err != nil {
		return err
	}
	for !p.accept("}") {
		attrs, err := p.attributes()
		if err != nil {
			return err
		}
		mname, err := p.ident()
		if err != nil {
			return err
		}
		if _, err := p.expect(":"); err != nil {
			return err
		}
		typ, err := p.typeExpr()
		if err != nil {
			return err
		}
		m := memberDecl{name: mname.text, typ: typ}
		for _, a := range attrs {
			switch a.name {
			case "align":
				m.align, err = p.attrUint(a, mname)
			case "size":
				m.size, err = p.attrUint(a, mname)
			}
			if err != nil {
				return err
			}
		}
		sd.members = append(sd.members, m)
		if !p.accept(",") && !p.accept(";") {
			if t := p.peek(); t.text != "}" {
				return p.errorf(t, "expected \",\" or \"}\" in struct %s, found %v", sd.name, t)
			}
		}
	}
	p.accept(";")
	if _, dup := p.structs[sd.name]; dup {
		return p.errorf(name, "struct %s redeclared", sd.name)
	}
	p.structs[sd.name] = sd
	return nil
}

func (p *parser) aliasDecl() error {
	p.next()
	name, err := p.ident()
	if err != nil {
		return err
	}
	if _, err := p.expect("="); err != nil {
		return err
	}
	typ, err := p.typeExpr()
	if err != nil {
		return err
	}
	if _, err := p.expect(";"); err != nil {
		return err
	}
	p.aliases[name.text] = typ
	return nil
}

func (p *parser) constDecl() error {
	p.next()
	name, err := p.ident()
	if err != nil {
		return err
	}
	if p.accept(":") {
		if _, err := p.typeExpr(); err != nil {
			return err
		}
	}
	if !p.accept("=") {
		// override without initializer
		_, err := p.expect(";")
		return err
	}
	start := p.pos
	if err := p.skipPast(";"); err != nil {
		return err
	}
	if p.pos-start == 2 && p.toks[start].kind == tokNumber {
		p.consts[name.text] = p.toks[start].text
	}
	return nil
}

func (p *parser) varDecl(attrs []attribute) error {
	kw := p.next()
	g := &globalDecl{line: kw.line}
	if p.accept("<") {
		space, err := p.ident()
		if err != nil {
			return err
		}
		g.space = space.text
		if p.accept(",") {
			access, err := p.ident()
			if err != nil {
				return err
			}
			g.access = access.text
		}
		if _, err := p.expect(">"); err != nil {
			return err
		}
	}
	name, err := p.ident()
	if err != nil {
		return err
	}
	g.name = name.text
	if p.accept(":") {
		if g.typ, err = p.typeExpr(); err != nil {
			return err
		}
	}
	if err := p.skipPast(";"); err != nil {
		return err
	}

	for _, a := range attrs {
		var v uint64
		switch a.name {
		case "group":
			v, err = p.attrUint(a, name)
			g.group = uint32(v) //nolint:gosec // G115: bind group indices are small
		case "binding":
			v, err = p.attrUint(a, name)
			g.binding = uint32(v) //nolint:gosec // G115: binding indices are small
			g.bound = true
		}
		if err != nil {
			return err
		}
	}
	p.globals = append(p.globals, g)
	return nil
}

func (p *parser) fnDecl(attrs []attribute) error {
	p.next()
	name, err := p.ident()
	if err != nil {
		return err
	}
	fn := &fnDecl{name: name.text, attrs: attrs, idents: make(map[string]struct{}), line: name.line}
	if _, err := p.expect("("); err != nil {
		return err
	}
	if err := p.skipPast(")"); err != nil {
		return err
	}
	if p.accept("->") {
		if _, err := p.attributes(); err != nil {
			return err
		}
		if _, err := p.typeExpr(); err != nil {
			return err
		}
	}
	if _, err := p.expect("{"); err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		t := p.next()
		switch {
		case t.kind == tokEOF:
			return p.errorf(t, "unterminated body of fn %s", fn.name)
		case t.kind == tokIdent:
			fn.idents[t.text] = struct{}{}
		case t.text == "{":
			depth++
		case t.text == "}":
			depth--
		}
	}
	p.fns = append(p.fns, fn)
	return nil
}

func (p *parser) attrUint(a attribute, at token) (uint64, error) {
	if len(a.args) != 1 {
		return 0, p.errorf(at, "@%s expects one argument", a.name)
	}
	v, ok := p.evalUint(a.args[0])
	if !ok {
		return 0, p.errorf(at, "@%s(%s) is not a constant integer", a.name, a.args[0])
	}
	return v, nil
}

// evalUint resolves an integer literal or the name of an integer constant.
func (p *parser) evalUint(s string) (uint64, bool) {
	for range 8 {
		v, ok := p.consts[s]
		if !ok {
			break
		}
		s = v
	}
	s = strings.TrimRight(s, "uUiI")
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
