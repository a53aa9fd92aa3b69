// Package docjson encodes documents for the relational backends. Bodies are
// stored as canonical MongoDB extended JSON so numeric widths, dates and
// binary values survive the round trip.
package docjson

import (
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/mantle/internal/docmatch"
	"github.com/xraph/mantle/store"
)

// Encode renders doc as canonical extended JSON.
func Encode(doc bson.M) (string, error) {
	b, err := bson.MarshalExtJSON(doc, true, false)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(b), nil
}

// Decode parses a stored body back into a document.
func Decode(body string) (bson.M, error) {
	var doc bson.M
	if err := bson.UnmarshalExtJSON([]byte(body), true, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return docmatch.Clone(doc), nil
}

// TypeOf returns the discriminator value of doc, or nil when the document
// carries none. The result feeds a nullable column.
func TypeOf(doc bson.M, discriminator string) *string {
	v, ok := doc[discriminator].(string)
	if !ok {
		return nil
	}
	return &v
}

// Prefilter extracts the identity and discriminator equality conditions of
// a query. Backends narrow their candidate rows with them before running
// the full matcher.
func Prefilter(query bson.M, discriminator string) (key, typeName string) {
	key, _ = query[store.IDField].(string)
	typeName, _ = query[discriminator].(string)
	return key, typeName
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)

// ValidField reports whether field is safe to interpolate into an index
// expression.
func ValidField(field string) bool {
	return fieldPattern.MatchString(field)
}
