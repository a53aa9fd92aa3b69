package mantle

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/mantle/store"
)

// toDocument renders an instance as a store document without identity or
// discriminator.
func toDocument(inst any, discriminator string) (bson.M, error) {
	raw, err := bson.Marshal(inst)
	if err != nil {
		return nil, fmt.Errorf("encode instance: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode instance: %w", err)
	}
	delete(doc, publicIDField)
	delete(doc, store.IDField)
	delete(doc, discriminator)
	return doc, nil
}

// publicDocument surfaces the store identity as the public identity and
// drops the discriminator. The input is not modified.
func publicDocument(doc bson.M, discriminator string) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		switch k {
		case store.IDField, discriminator:
			continue
		}
		out[k] = v
	}
	if v, ok := doc[store.IDField]; ok && v != nil {
		out[publicIDField] = identityString(v)
	}
	return out
}

func identityString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case bson.ObjectID:
		return id.Hex()
	case fmt.Stringer:
		return id.String()
	}
	return fmt.Sprint(v)
}

// decodeInto replaces the fields of inst with those of a store document.
func decodeInto(doc bson.M, discriminator string, inst any) error {
	raw, err := bson.Marshal(publicDocument(doc, discriminator))
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := bson.Unmarshal(raw, inst); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// immutableTarget returns the field an update would change but may not,
// or "" when it leaves both alone. For replacements, current is the
// identity the payload may repeat unchanged; pass "" to reject any
// identity key. Replacements get the discriminator re-injected, so only
// operator payloads are checked against it. Operator payloads may never
// name the identity or the discriminator.
func immutableTarget(u Update, current, discriminator string) string {
	if !store.IsOperatorUpdate(u) {
		for _, k := range []string{publicIDField, store.IDField} {
			v, ok := u[k]
			if !ok {
				continue
			}
			if current == "" || identityString(v) != current {
				return k
			}
		}
		return ""
	}
	for _, path := range operatorPaths(u) {
		if isIdentityPath(path) || onPath(path, discriminator) {
			return path
		}
	}
	return ""
}

// operatorPaths lists the field paths named by an operator payload.
func operatorPaths(u Update) []string {
	var out []string
	for _, arg := range u {
		switch fields := arg.(type) {
		case bson.M:
			for path := range fields {
				out = append(out, path)
			}
		case bson.D:
			for _, e := range fields {
				out = append(out, e.Key)
			}
		case map[string]any:
			for path := range fields {
				out = append(out, path)
			}
		}
	}
	return out
}

func isIdentityPath(path string) bool {
	return onPath(path, publicIDField) || onPath(path, store.IDField)
}

// onPath reports whether path is field or one of its subpaths.
func onPath(path, field string) bool {
	return field != "" && (path == field || strings.HasPrefix(path, field+"."))
}

// stripIdentity removes identity keys from a replacement that repeats the
// instance's own identity.
func stripIdentity(u Update) Update {
	if store.IsOperatorUpdate(u) {
		return u
	}
	out := make(Update, len(u))
	for k, v := range u {
		if k == publicIDField || k == store.IDField {
			continue
		}
		out[k] = v
	}
	return out
}
