package mantle

import (
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/mantle/store"
)

// Query selects documents of a type. Keys are stored field names; "id"
// refers to the identity. The discriminator is added by mantle.
type Query = bson.M

// Update is either a replacement document or an operator document using
// the operators in store.UpdateOperators.
type Update = bson.M

// publicIDField is the identity key as models and queries see it.
const publicIDField = "id"

// tagQuery copies q, translates the public identity key and sets the
// discriminator to the type name, overwriting any caller value.
func tagQuery(q Query, discriminator, typeName string) bson.M {
	out := translateIdentity(q)
	out[discriminator] = typeName
	return out
}

func translateIdentity(q bson.M) bson.M {
	out := make(bson.M, len(q)+1)
	for k, v := range q {
		switch k {
		case publicIDField:
			out[store.IDField] = v
		case "$and", "$or", "$nor":
			out[k] = translateClauses(v)
		default:
			out[k] = v
		}
	}
	return out
}

func translateClauses(v any) any {
	var clauses []bson.M
	switch c := v.(type) {
	case bson.A:
		for _, el := range c {
			m, ok := el.(bson.M)
			if !ok {
				return v
			}
			clauses = append(clauses, m)
		}
	case []bson.M:
		clauses = c
	case []any:
		return translateClauses(bson.A(c))
	default:
		return v
	}
	out := make(bson.A, len(clauses))
	for i, m := range clauses {
		out[i] = translateIdentity(m)
	}
	return out
}

// tagUpdate shapes an update payload for the store. Replacements get the
// discriminator re-injected; operator payloads are copied untouched.
func tagUpdate(u Update, discriminator, typeName string) bson.M {
	out := make(bson.M, len(u)+1)
	for k, v := range u {
		out[k] = v
	}
	if !store.IsOperatorUpdate(u) {
		out[discriminator] = typeName
	}
	return out
}
