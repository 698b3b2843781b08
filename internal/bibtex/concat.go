// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bibtex

import (
	"fmt"
	"strings"
)

// monthMacros are the month abbreviations BibTeX predefines.
var monthMacros = map[string]string{
	"jan": "January", "feb": "February", "mar": "March",
	"apr": "April", "may": "May", "jun": "June",
	"jul": "July", "aug": "August", "sep": "September",
	"oct": "October", "nov": "November", "dec": "December",
}

// expandValues rewrites every field value that uses the "#" concatenation
// operator or a @string macro into a single braced literal. The nickng parser
// keeps only the first operand of a concatenation and exits the process on an
// undefined macro, so values reach it as plain literals only.
// Everything outside those values is copied unchanged.
func expandValues(src string) (string, error) {
	x := &expander{src: src, macros: make(map[string]string)}
	if err := x.run(); err != nil {
		return "", err
	}
	x.out.WriteString(x.src[x.done:])
	return x.out.String(), nil
}

type expander struct {
	src    string
	pos    int
	done   int // src[:done] has been written to out
	out    strings.Builder
	macros map[string]string
}

func (x *expander) run() error {
	for {
		at := strings.IndexByte(x.src[x.pos:], '@')
		if at < 0 {
			return nil
		}
		x.pos += at + 1
		x.skipSpace()
		kind := strings.ToLower(x.word())
		if kind == "comment" || kind == "preamble" {
			continue
		}
		x.skipSpace()
		if x.pos >= len(x.src) {
			return nil
		}
		var closer byte
		switch x.src[x.pos] {
		case '{':
			closer = '}'
		case '(':
			closer = ')'
		default:
			continue
		}
		x.pos++

		var err error
		if kind == "string" {
			err = x.stringDef(closer)
		} else {
			err = x.entry(closer)
		}
		if err != nil {
			return err
		}
	}
}

// stringDef reads "@string{name = value}" and records the macro.
func (x *expander) stringDef(closer byte) error {
	x.skipSpace()
	name := x.word()
	x.skipSpace()
	if name == "" || !x.consume('=') {
		return nil
	}
	v, ok, err := x.value()
	if err != nil || !ok {
		return err
	}
	x.macros[strings.ToLower(name)] = v
	x.skipSpace()
	x.consume(closer)
	return nil
}

// entry walks the fields of a regular entry. Malformed input stops the walk
// and is left for the parser to report.
func (x *expander) entry(closer byte) error {
	i := strings.IndexAny(x.src[x.pos:], ","+string(closer))
	if i < 0 {
		x.pos = len(x.src)
		return nil
	}
	x.pos += i + 1
	if x.src[x.pos-1] == closer {
		return nil
	}

	for {
		x.skipSpace()
		if x.pos >= len(x.src) {
			return nil
		}
		switch x.src[x.pos] {
		case closer:
			x.pos++
			return nil
		case ',':
			x.pos++
			continue
		}
		if x.word() == "" {
			return nil
		}
		x.skipSpace()
		if !x.consume('=') {
			return nil
		}
		if _, ok, err := x.value(); err != nil || !ok {
			return err
		}
	}
}

// value reads "operand (# operand)*" and returns its expanded text. When the
// expression is more than a single literal it is replaced in the output by
// the expanded text in braces. ok is false for input that is not a value.
func (x *expander) value() (v string, ok bool, err error) {
	x.skipSpace()
	start, end := x.pos, x.pos
	var (
		parts   []string
		rewrite bool
	)
	for {
		x.skipSpace()
		part, isMacro, ok, err := x.operand()
		if err != nil || !ok {
			return "", false, err
		}
		parts = append(parts, part)
		rewrite = rewrite || isMacro
		end = x.pos
		x.skipSpace()
		if x.pos < len(x.src) && x.src[x.pos] == '#' {
			x.pos++
			rewrite = true
			continue
		}
		x.pos = end
		break
	}

	v = strings.Join(parts, "")
	if rewrite {
		x.out.WriteString(x.src[x.done:start])
		x.out.WriteString("{" + v + "}")
		x.done = end
	}
	return v, true, nil
}

// operand reads one braced, quoted, numeric or macro operand.
func (x *expander) operand() (s string, isMacro, ok bool, err error) {
	if x.pos >= len(x.src) {
		return "", false, false, nil
	}
	switch x.src[x.pos] {
	case '{':
		s, ok = x.braced()
		return s, false, ok, nil
	case '"':
		s, ok = x.quoted()
		return s, false, ok, nil
	}

	w := x.word()
	switch {
	case w == "":
		return "", false, false, nil
	case isNumber(w):
		return w, false, true, nil
	}
	if v, found := x.macros[strings.ToLower(w)]; found {
		return v, true, true, nil
	}
	if v, found := monthMacros[strings.ToLower(w)]; found {
		return v, true, true, nil
	}
	return "", false, false, fmt.Errorf("undefined string macro %q", w)
}

// braced reads a brace-balanced group and returns its contents.
func (x *expander) braced() (string, bool) {
	depth := 0
	for i := x.pos; i < len(x.src); i++ {
		switch x.src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				s := x.src[x.pos+1 : i]
				x.pos = i + 1
				return s, true
			}
		}
	}
	return "", false
}

// quoted reads a double-quoted string. Quotes inside braces do not end it.
func (x *expander) quoted() (string, bool) {
	depth := 0
	for i := x.pos + 1; i < len(x.src); i++ {
		switch x.src[i] {
		case '{':
			depth++
		case '}':
			depth--
		case '"':
			if depth == 0 {
				s := x.src[x.pos+1 : i]
				x.pos = i + 1
				return s, true
			}
		}
	}
	return "", false
}

// word reads a bare identifier: field names, entry types and macro names.
func (x *expander) word() string {
	start := x.pos
	for x.pos < len(x.src) && !isSpace(x.src[x.pos]) && !strings.ContainsRune(`{}()",=#@`, rune(x.src[x.pos])) {
		x.pos++
	}
	return x.src[start:x.pos]
}

func (x *expander) consume(c byte) bool {
	if x.pos < len(x.src) && x.src[x.pos] == c {
		x.pos++
		return true
	}
	return false
}

func (x *expander) skipSpace() {
	for x.pos < len(x.src) && isSpace(x.src[x.pos]) {
		x.pos++
	}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

func isNumber(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
