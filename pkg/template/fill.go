package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/dukex/renflow/pkg/models"
)

// ErrUnresolvedPlaceholder is returned by Fill in strict mode.
var ErrUnresolvedPlaceholder = errors.New("unresolved template placeholder")

var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// Scope is what placeholders resolve against. A single-segment placeholder
// such as {text} reads Input; {nodeId.field} reads the node's entry in State.
type Scope struct {
	Input any
	State *models.GlobalState
}

type fillOptions struct {
	strict       bool
	emptyMissing bool
}

type FillOption func(*fillOptions)

// Strict makes an unresolved placeholder an error.
func Strict() FillOption {
	return func(o *fillOptions) { o.strict = true }
}

// EmptyMissing replaces unresolved placeholders with "" instead of leaving them.
func EmptyMissing() FillOption {
	return func(o *fillOptions) { o.emptyMissing = true }
}

// Fill substitutes {path} placeholders in tpl.
func Fill(tpl string, scope Scope, opts ...FillOption) (string, error) {
	var o fillOptions
	for _, opt := range opts {
		opt(&o)
	}

	var firstErr error

	out := placeholderPattern.ReplaceAllStringFunc(tpl, func(placeholder string) string {
		path := strings.TrimSpace(placeholder[1 : len(placeholder)-1])

		value, ok := scope.resolve(path)
		if ok {
			return Stringify(value)
		}

		if o.strict && firstErr == nil {
			firstErr = fmt.Errorf("%w: %s", ErrUnresolvedPlaceholder, placeholder)
		}

		if o.emptyMissing {
			return ""
		}

		return placeholder
	})

	if firstErr != nil {
		return "", firstErr
	}

	return out, nil
}

func (s Scope) resolve(path string) (any, bool) {
	segments := strings.Split(path, ".")

	if len(segments) > 1 && s.State != nil {
		if root, ok := s.State.Get(segments[0]); ok {
			return Lookup(root, segments[1:])
		}
	}

	return Lookup(s.Input, segments)
}

// LookupPath resolves a dotted path such as "a.b.0.c" inside value.
func LookupPath(value any, path string) (any, bool) {
	if path == "" {
		return value, value != nil
	}

	return Lookup(value, strings.Split(path, "."))
}

// Lookup walks maps, slices and exported struct fields (by json tag) along segments.
func Lookup(value any, segments []string) (any, bool) {
	cur := value

	for _, seg := range segments {
		if cur == nil {
			return nil, false
		}

		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}

			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}

			cur = v[i]
		default:
			next, ok := lookupReflect(v, seg)
			if !ok {
				return nil, false
			}

			cur = next
		}
	}

	return cur, cur != nil
}

func lookupReflect(value any, seg string) (any, bool) {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}

		item := rv.MapIndex(reflect.ValueOf(seg).Convert(rv.Type().Key()))
		if !item.IsValid() {
			return nil, false
		}

		return item.Interface(), true
	case reflect.Slice, reflect.Array:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= rv.Len() {
			return nil, false
		}

		return rv.Index(i).Interface(), true
	case reflect.Struct:
		t := rv.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}

			name := strings.Split(f.Tag.Get("json"), ",")[0]
			if name == seg || (name == "" && f.Name == seg) {
				fv := rv.Field(i)
				if fv.Kind() == reflect.Pointer && fv.IsNil() {
					return nil, false
				}

				return fv.Interface(), true
			}
		}
	}

	return nil, false
}

// Stringify renders a placeholder value: scalars as text, everything else as JSON.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v)
	case *int64:
		if v == nil {
			return ""
		}

		return strconv.FormatInt(*v, 10)
	case fmt.Stringer:
		return v.String()
	}

	if rv := reflect.ValueOf(value); rv.Kind() == reflect.String {
		return rv.String()
	}

	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}

	return string(b)
}
