package docmatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vinicius-lino-figueiredo/gedb"
	"github.com/vinicius-lino-figueiredo/gedb/adapter/comparer"
	"github.com/vinicius-lino-figueiredo/gedb/adapter/data"
	"github.com/vinicius-lino-figueiredo/gedb/adapter/fieldnavigator"
	"github.com/vinicius-lino-figueiredo/gedb/adapter/matcher"
	"github.com/vinicius-lino-figueiredo/gedb/adapter/modifier"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/mantle/store"
)

func newModifier() gedb.Modifier {
	return modifier.NewModifier(
		data.NewDocument,
		comparer.NewComparer(),
		fieldnavigator.NewFieldNavigator(data.NewDocument),
		matcher.NewMatcher(),
	)
}

// Apply computes the document that results from applying update to doc.
// Operator payloads modify a copy of doc; any other payload replaces it
// while keeping the original _id. doc itself is never mutated.
func Apply(doc, update bson.M) (bson.M, error) {
	if store.IsOperatorUpdate(update) && TouchesID(update, nil) {
		return nil, store.ErrImmutableID
	}
	base, err := data.NewDocument(Plain(doc))
	if err != nil {
		return nil, fmt.Errorf("docmatch: document: %w", err)
	}
	mod, err := data.NewDocument(Plain(update))
	if err != nil {
		return nil, fmt.Errorf("docmatch: update: %w", err)
	}
	out, err := newModifier().Modify(base, mod)
	if err != nil {
		return nil, modifyError(err)
	}
	return Document(out), nil
}

func modifyError(err error) error {
	var unknown modifier.ErrUnknownModifier
	switch {
	case errors.Is(err, gedb.ErrCannotModifyID):
		return store.ErrImmutableID
	case errors.As(err, &unknown):
		return fmt.Errorf("%w: %s", store.ErrUnknownOperator, unknown.Name)
	}
	return fmt.Errorf("docmatch: update: %w", err)
}

// Seed builds the base document for an upsert from the equality conditions
// of a query. Operator conditions and logical clauses are skipped.
func Seed(query bson.M) (bson.M, error) {
	eq := bson.M{}
	for k, v := range query {
		if strings.HasPrefix(k, "$") {
			continue
		}
		if d, ok := asDocument(v); ok && isOperatorDoc(d) {
			if val, ok := d["$eq"]; ok {
				eq[k] = val
			}
			continue
		}
		eq[k] = v
	}
	key, hasKey := eq[store.IDField]
	delete(eq, store.IDField)

	out := bson.M{}
	if len(eq) > 0 {
		var err error
		if out, err = Apply(out, bson.M{"$set": eq}); err != nil {
			return nil, err
		}
	}
	if hasKey {
		out[store.IDField] = key
	}
	return out, nil
}

// Upserted builds the document inserted by an upsert that matched nothing.
// Operator updates apply to the query's equality seed; replacements are
// taken as is.
func Upserted(query, update bson.M) (bson.M, error) {
	if !store.IsOperatorUpdate(update) {
		return Clone(update), nil
	}
	seed, err := Seed(query)
	if err != nil {
		return nil, err
	}
	return Apply(seed, update)
}

// TouchesID reports whether an update would modify _id: either a
// replacement carrying a different _id than current, or an operator
// targeting _id or one of its subpaths.
func TouchesID(update bson.M, current any) bool {
	if !store.IsOperatorUpdate(update) {
		newID, ok := update[store.IDField]
		if !ok {
			return false
		}
		c, err := comparer.NewComparer().Compare(Plain(newID), Plain(current))
		return err != nil || c != 0
	}
	for _, arg := range update {
		fields, ok := asDocument(arg)
		if !ok {
			continue
		}
		for path := range fields {
			if path == store.IDField || strings.HasPrefix(path, store.IDField+".") {
				return true
			}
		}
	}
	return false
}
