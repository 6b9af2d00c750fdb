package reporter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// fmtSuffix matches the flags, width, precision and verb of a fmt directive.
var fmtSuffix = regexp.MustCompile(`^[+\- #0]*[0-9]*(\.[0-9]*)?[vTtbcdoOqxXUeEfFgGsp]?$`)

// Args are the named values substituted into a stage's description template
// and handed unchanged to callbacks.
type Args map[string]any

// render substitutes {name} placeholders in tmpl with values from args. A
// placeholder may carry a format suffix, {rate:.2f}, which is applied as the
// fmt verb %.2f. Doubled braces escape a literal brace.
func render(tmpl string, args Args) (string, error) {
	if !strings.ContainsAny(tmpl, "{}") {
		return tmpl, nil
	}
	var b strings.Builder
	b.Grow(len(tmpl))
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed placeholder in %q", ErrTemplate, tmpl)
			}
			field := tmpl[i+1 : i+1+end]
			out, err := formatField(field, args)
			if err != nil {
				return "", fmt.Errorf("%w: %q: %v", ErrTemplate, tmpl, err)
			}
			b.WriteString(out)
			i += end + 1
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("%w: single '}' in %q", ErrTemplate, tmpl)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func formatField(field string, args Args) (string, error) {
	name, spec, hasSpec := strings.Cut(field, ":")
	if name == "" {
		return "", fmt.Errorf("empty placeholder")
	}
	val, ok := args[name]
	if !ok {
		return "", fmt.Errorf("no value for placeholder %q", name)
	}
	if !hasSpec || spec == "" {
		return fmt.Sprint(val), nil
	}
	if !fmtSuffix.MatchString(spec) {
		return "", fmt.Errorf("unsupported format %q for placeholder %q", spec, name)
	}
	verb := "%" + spec
	if last := rune(spec[len(spec)-1]); !unicode.IsLetter(last) {
		verb += "v"
	}
	return fmt.Sprintf(verb, val), nil
}
