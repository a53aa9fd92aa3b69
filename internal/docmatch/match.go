package docmatch

import (
	"fmt"
	"strings"

	"github.com/vinicius-lino-figueiredo/gedb"
	"github.com/vinicius-lino-figueiredo/gedb/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedb/adapter/matcher"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Filter is a compiled query. A Filter is not safe for concurrent use.
type Filter struct {
	m gedb.Matcher
}

// Compile prepares query for matching. An empty query matches every
// document.
func Compile(query bson.M) (*Filter, error) {
	m := matcher.NewMatcher()
	if err := m.SetQuery(Query(query)); err != nil {
		return nil, fmt.Errorf("docmatch: query: %w", err)
	}
	return &Filter{m: m}, nil
}

// Match reports whether doc satisfies the filter.
func (f *Filter) Match(doc bson.M) (bool, error) {
	d, err := data.NewDocument(Plain(doc))
	if err != nil {
		return false, fmt.Errorf("docmatch: document: %w", err)
	}
	ok, err := f.m.Match(d)
	if err != nil {
		return false, fmt.Errorf("docmatch: match: %w", err)
	}
	return ok, nil
}

// Match reports whether doc satisfies query.
func Match(doc, query bson.M) (bool, error) {
	f, err := Compile(query)
	if err != nil {
		return false, err
	}
	return f.Match(doc)
}

// Query reshapes a MongoDB-style filter into the form gedb's matcher
// accepts: field conditions and logical clauses never share a level, at
// most one logical operator appears per level, $nor is expressed as a
// negated $or and single $eq conditions become plain equality.
func Query(q bson.M) map[string]any {
	fields := make(map[string]any, len(q))
	var clauses []any
	for k, v := range q {
		switch k {
		case "$and":
			for _, c := range subQueries(v) {
				clauses = append(clauses, c)
			}
		case "$or":
			clauses = append(clauses, map[string]any{"$or": subQueries(v)})
		case "$nor":
			clauses = append(clauses, map[string]any{
				"$not": map[string]any{"$or": subQueries(v)},
			})
		default:
			fields[k] = condition(v)
		}
	}
	if len(clauses) == 0 {
		return fields
	}
	if len(fields) > 0 {
		clauses = append([]any{fields}, clauses...)
	}
	if len(clauses) == 1 {
		return clauses[0].(map[string]any)
	}
	return map[string]any{"$and": clauses}
}

func subQueries(v any) []any {
	items, ok := asArray(v)
	if !ok {
		// Let the matcher report the malformed clause.
		return nil
	}
	out := make([]any, 0, len(items))
	for _, item := range items {
		d, ok := asDocument(item)
		if !ok {
			out = append(out, Plain(item))
			continue
		}
		out = append(out, Query(d))
	}
	return out
}

func condition(v any) any {
	ops, ok := asDocument(v)
	if !ok || !isOperatorDoc(ops) {
		return Plain(v)
	}
	if eq, ok := ops["$eq"]; ok && len(ops) == 1 {
		return Plain(eq)
	}
	if pattern, ok := ops["$regex"].(string); ok {
		opts, _ := ops["$options"].(string)
		out := plainOps(ops, "$regex", "$options")
		out["$regex"] = compileRegex(pattern, opts)
		return out
	}
	return plainOps(ops)
}

func plainOps(ops bson.M, skip ...string) map[string]any {
	out := make(map[string]any, len(ops))
outer:
	for k, v := range ops {
		for _, s := range skip {
			if k == s {
				continue outer
			}
		}
		out[k] = Plain(v)
	}
	return out
}

func isOperatorDoc(d bson.M) bool {
	if len(d) == 0 {
		return false
	}
	for k := range d {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}
