// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// parser decodes the subset of Python literal syntax found in manifests:
// dicts, lists, tuples, strings (with implicit concatenation), numbers,
// True, False and None.
type parser struct {
	src []rune
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() rune {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) fail(format string, args ...any) error {
	return &InvalidManifestError{Offset: p.pos, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) skipSpace() {
	for !p.eof() {
		r := p.src[p.pos]
		switch {
		case unicode.IsSpace(r):
			p.pos++
		case r == '#':
			for !p.eof() && p.src[p.pos] != '\n' {
				p.pos++
			}
		case r == '\\' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '\n':
			p.pos += 2
		default:
			return
		}
	}
}

func (p *parser) value() (any, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.fail("unexpected end of input")
	}

	r := p.peek()
	switch {
	case r == '{':
		return p.dict()
	case r == '[':
		return p.sequence('[', ']')
	case r == '(':
		return p.sequence('(', ')')
	case r == '"' || r == '\'' || p.atStringPrefix():
		return p.stringValue()
	case r == '-' || r == '+' || r == '.' || unicode.IsDigit(r):
		return p.number()
	case unicode.IsLetter(r) || r == '_':
		return p.constant()
	default:
		return nil, p.fail("unexpected character %q", r)
	}
}

func (p *parser) dict() (any, error) {
	p.pos++ // {
	out := make(map[string]any)
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return out, nil
		}
		key, err := p.value()
		if err != nil {
			return nil, err
		}
		k, ok := key.(string)
		if !ok {
			return nil, p.fail("dict keys must be strings, got %T", key)
		}
		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.fail("expected ':' after key %q", k)
		}
		p.pos++
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out[k] = v
		if err := p.separator('}'); err != nil {
			return nil, err
		}
	}
}

func (p *parser) sequence(open, closing rune) (any, error) {
	p.pos++ // open
	out := make([]any, 0)
	for {
		p.skipSpace()
		if p.peek() == closing {
			p.pos++
			return out, nil
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if err := p.separator(closing); err != nil {
			return nil, fmt.Errorf("in %c...%c: %w", open, closing, err)
		}
	}
}

// separator consumes a ',' or leaves the closing delimiter for the caller.
func (p *parser) separator(closing rune) error {
	p.skipSpace()
	switch p.peek() {
	case ',':
		p.pos++
		return nil
	case closing:
		return nil
	default:
		return p.fail("expected ',' or %q", closing)
	}
}

func (p *parser) atStringPrefix() bool {
	for i := p.pos; i < len(p.src) && i < p.pos+3; i++ {
		switch unicode.ToLower(p.src[i]) {
		case 'r', 'u', 'b':
			continue
		case '"', '\'':
			return i > p.pos
		default:
			return false
		}
	}
	return false
}

// stringValue reads one or more adjacent string literals and concatenates them.
func (p *parser) stringValue() (any, error) {
	var sb strings.Builder
	for {
		s, err := p.stringLiteral()
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
		p.skipSpace()
		if r := p.peek(); r != '"' && r != '\'' && !p.atStringPrefix() {
			return sb.String(), nil
		}
	}
}

func (p *parser) stringLiteral() (string, error) {
	raw := false
	for !p.eof() && p.peek() != '"' && p.peek() != '\'' {
		if unicode.ToLower(p.peek()) == 'r' {
			raw = true
		}
		p.pos++
	}
	if p.eof() {
		return "", p.fail("unterminated string")
	}

	quote := p.peek()
	triple := p.pos+2 < len(p.src) && p.src[p.pos+1] == quote && p.src[p.pos+2] == quote
	if triple {
		p.pos += 3
	} else {
		p.pos++
	}

	var sb strings.Builder
	for {
		if p.eof() {
			return "", p.fail("unterminated string")
		}
		r := p.src[p.pos]
		switch {
		case r == '\\' && p.pos+1 < len(p.src):
			next := p.src[p.pos+1]
			p.pos += 2
			if raw {
				sb.WriteRune('\\')
				sb.WriteRune(next)
				continue
			}
			sb.WriteString(unescape(next))
		case r == quote && !triple:
			p.pos++
			return sb.String(), nil
		case r == quote && triple && p.pos+2 < len(p.src) && p.src[p.pos+1] == quote && p.src[p.pos+2] == quote:
			p.pos += 3
			return sb.String(), nil
		case r == '\n' && !triple:
			return "", p.fail("newline in single-quoted string")
		default:
			sb.WriteRune(r)
			p.pos++
		}
	}
}

func unescape(r rune) string {
	switch r {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case '\\', '\'', '"':
		return string(r)
	case '\n':
		return ""
	default:
		return "\\" + string(r)
	}
}

func (p *parser) number() (any, error) {
	start := p.pos
	for !p.eof() {
		r := p.peek()
		if unicode.IsDigit(r) || strings.ContainsRune("+-._eExXabcdefABCDEF", r) {
			p.pos++
			continue
		}
		break
	}
	text := strings.ReplaceAll(string(p.src[start:p.pos]), "_", "")
	if i, err := strconv.ParseInt(text, 0, 64); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return f, nil
	}
	p.pos = start
	return nil, p.fail("invalid number %q", text)
}

func (p *parser) constant() (any, error) {
	start := p.pos
	for !p.eof() && (unicode.IsLetter(p.peek()) || unicode.IsDigit(p.peek()) || p.peek() == '_') {
		p.pos++
	}
	switch word := string(p.src[start:p.pos]); word {
	case "True":
		return true, nil
	case "False":
		return false, nil
	case "None":
		return nil, nil
	default:
		p.pos = start
		return nil, p.fail("unsupported identifier %q", word)
	}
}
