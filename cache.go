package mantle

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Cache provides caching for stored documents read by Get and Reload.
// Entries hold the raw store document; callers must not mutate them.
type Cache interface {
	// Get returns a cached document, if available.
	Get(ctx context.Context, typeName, id string) (bson.M, bool)

	// Set stores a document in the cache.
	Set(ctx context.Context, typeName, id string, doc bson.M)

	// Invalidate removes one cached document.
	Invalidate(ctx context.Context, typeName, id string)

	// InvalidateType removes all cached documents of a type.
	InvalidateType(ctx context.Context, typeName string)
}
