// Package docmatch runs MongoDB-style queries and update operators over
// bson.M documents for the backends that cannot push them down to their
// engine (sqlite, postgres). Matching and modification are done by gedb's
// matcher and modifier; this package converts between bson values and the
// plain values gedb works on.
package docmatch

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/vinicius-lino-figueiredo/gedb"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Clone deep-copies a document so that stored state never aliases caller
// state. bson.D values are normalized to bson.M and slices to bson.A.
func Clone(doc bson.M) bson.M {
	if doc == nil {
		return nil
	}
	out := make(bson.M, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	if d, ok := asDocument(v); ok {
		return Clone(d)
	}
	if a, ok := asArray(v); ok {
		out := make(bson.A, len(a))
		for i := range a {
			out[i] = cloneValue(a[i])
		}
		return out
	}
	return v
}

// Plain converts a bson value into the representation gedb operates on.
// Documents become map[string]any, arrays []any, datetimes time.Time and
// regular expressions *regexp.Regexp. ObjectIDs are carried as their hex
// form.
func Plain(v any) any {
	switch t := v.(type) {
	case bson.DateTime:
		return t.Time().UTC()
	case bson.ObjectID:
		return t.Hex()
	case bson.Regex:
		return compileRegex(t.Pattern, t.Options)
	case *regexp.Regexp, time.Time, string, []byte:
		return v
	}
	if d, ok := asDocument(v); ok {
		out := make(map[string]any, len(d))
		for k, e := range d {
			out[k] = Plain(e)
		}
		return out
	}
	if a, ok := asArray(v); ok {
		out := make([]any, len(a))
		for i := range a {
			out[i] = Plain(a[i])
		}
		return out
	}
	return v
}

// Document converts a value produced by gedb back into a bson document.
// Nested documents become bson.M and arrays bson.A.
func Document(v any) bson.M {
	out, _ := fromPlain(v).(bson.M)
	return out
}

func fromPlain(v any) any {
	switch t := v.(type) {
	case gedb.Document:
		out := make(bson.M, t.Len())
		for k, e := range t.Iter() {
			out[k] = fromPlain(e)
		}
		return out
	case map[string]any:
		out := make(bson.M, len(t))
		for k, e := range t {
			out[k] = fromPlain(e)
		}
		return out
	case bson.M:
		return fromPlain(map[string]any(t))
	case []any:
		out := make(bson.A, len(t))
		for i := range t {
			out[i] = fromPlain(t[i])
		}
		return out
	}
	return v
}

func compileRegex(pattern, options string) any {
	var flags strings.Builder
	for _, r := range options {
		if strings.ContainsRune("ims", r) {
			flags.WriteRune(r)
		}
	}
	if flags.Len() > 0 {
		pattern = "(?" + flags.String() + ")" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return pattern
	}
	return re
}

func asDocument(v any) (bson.M, bool) {
	switch d := v.(type) {
	case bson.M:
		return d, true
	case map[string]any:
		return bson.M(d), true
	case bson.D:
		m := make(bson.M, len(d))
		for _, e := range d {
			m[e.Key] = e.Value
		}
		return m, true
	}
	return nil, false
}

func asArray(v any) ([]any, bool) {
	switch a := v.(type) {
	case bson.A:
		return a, true
	case []any:
		return a, true
	case []byte, bson.D, nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
