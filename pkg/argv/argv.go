// Package argv parses already-tokenized command arguments into flags and
// positionals without a declared flag set.
package argv

import (
	"strconv"
	"strings"
)

// PositionalKey holds the positional arguments in a parsed Args.
const PositionalKey = "_"

// Args maps flag names to values. Positionals live under "_" as []string.
type Args map[string]any

// Positionals returns the positional arguments.
func (a Args) Positionals() []string {
	p, _ := a[PositionalKey].([]string)

	return p
}

// HasPrefix reports whether the positionals of prefix lead a's positionals.
func (a Args) HasPrefix(prefix Args) bool {
	want := prefix.Positionals()
	got := a.Positionals()

	if len(want) > len(got) {
		return false
	}

	for i := range want {
		if want[i] != got[i] {
			return false
		}
	}

	return true
}

// Parse interprets tokens the way minimist-style parsers do:
// "--k v", "--k=v", "--no-k", "-abc", and "--" ending flag parsing.
// Numeric flag values become float64; repeated flags collect into a slice.
func Parse(tokens []string) Args {
	out := Args{PositionalKey: []string{}}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		switch {
		case tok == "--":
			out[PositionalKey] = append(out.Positionals(), tokens[i+1:]...)

			return out
		case strings.HasPrefix(tok, "--") && len(tok) > 2:
			name := tok[2:]

			if k, v, ok := strings.Cut(name, "="); ok {
				out.set(k, convert(v))

				continue
			}

			if strings.HasPrefix(name, "no-") {
				out.set(name[3:], false)

				continue
			}

			if i+1 < len(tokens) && !isFlag(tokens[i+1]) {
				i++
				out.set(name, convert(tokens[i]))

				continue
			}

			out.set(name, true)
		case strings.HasPrefix(tok, "-") && len(tok) > 1 && !isNumber(tok):
			shorts := tok[1:]

			if k, v, ok := strings.Cut(shorts, "="); ok {
				if k == "" {
					out[PositionalKey] = append(out.Positionals(), tok)

					continue
				}

				for _, c := range k[:len(k)-1] {
					out.set(string(c), true)
				}

				out.set(k[len(k)-1:], convert(v))

				continue
			}

			for _, c := range shorts[:len(shorts)-1] {
				out.set(string(c), true)
			}

			last := shorts[len(shorts)-1:]
			if i+1 < len(tokens) && !isFlag(tokens[i+1]) {
				i++
				out.set(last, convert(tokens[i]))

				continue
			}

			out.set(last, true)
		default:
			out[PositionalKey] = append(out.Positionals(), tok)
		}
	}

	return out
}

func (a Args) set(key string, value any) {
	old, ok := a[key]
	if !ok {
		a[key] = value

		return
	}

	if list, isList := old.([]any); isList {
		a[key] = append(list, value)

		return
	}

	a[key] = []any{old, value}
}

func isFlag(tok string) bool {
	return strings.HasPrefix(tok, "-") && len(tok) > 1 && !isNumber(tok)
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)

	return err == nil
}

func convert(v string) any {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}

	return v
}
