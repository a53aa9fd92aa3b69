package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestFilterOf(t *testing.T) {
	if f := filterOf(nil); f == nil || len(f) != 0 {
		t.Fatalf("expected empty filter, got %v", f)
	}
	q := bson.M{"a": 1}
	if f := filterOf(q); f["a"] != 1 {
		t.Fatalf("expected query unchanged, got %v", f)
	}
}

func TestMigrationIndexes(t *testing.T) {
	idx := migrationIndexes("kind")
	if len(idx) != 1 {
		t.Fatalf("expected 1 index, got %d", len(idx))
	}
	keys, ok := idx[0].Keys.(bson.D)
	if !ok || len(keys) != 1 || keys[0].Key != "kind" {
		t.Fatalf("unexpected keys %v", idx[0].Keys)
	}
}
