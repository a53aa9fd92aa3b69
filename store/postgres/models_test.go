package postgres

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestDocumentModelRoundTrip(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := bson.M{"_id": "user_1", "_type": "User", "name": "a", "tags": bson.A{"x", "y"}}

	m, err := documentToModel(doc, "_type", created)
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != "user_1" || m.Type == nil || *m.Type != "User" || !m.CreatedAt.Equal(created) {
		t.Fatalf("unexpected row %+v", m)
	}

	back, err := documentFromModel(m)
	if err != nil {
		t.Fatal(err)
	}
	if back["_id"] != "user_1" || back["_type"] != "User" || back["name"] != "a" {
		t.Fatalf("unexpected document %v", back)
	}
}

func TestDocumentModelWithoutType(t *testing.T) {
	m, err := documentToModel(bson.M{"_id": "doc_1", "n": 1}, "_type", time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if m.Type != nil {
		t.Fatalf("expected NULL type for untyped document, got %q", *m.Type)
	}
}

func TestDocumentModelRequiresID(t *testing.T) {
	if _, err := documentToModel(bson.M{"n": 1}, "_type", time.Now()); err == nil {
		t.Fatal("expected error for document without identity")
	}
}

func TestFilters(t *testing.T) {
	s := &Store{discriminator: "_type"}

	f := s.filters(bson.M{"_id": "user_1", "_type": "User"})
	if len(f) != 2 || f[0].arg != "user_1" || f[1].arg != "User" {
		t.Fatalf("unexpected filters %+v", f)
	}
	if !s.prefilterOnly(bson.M{"_type": "User"}) {
		t.Fatal("expected type-only query answered by columns")
	}
	if s.prefilterOnly(bson.M{"_type": "User", "name": "a"}) {
		t.Fatal("expected body field to need matching")
	}
	if f := s.filters(bson.M{"_type": bson.M{"$in": bson.A{"A", "B"}}}); len(f) != 0 {
		t.Fatalf("expected operator values left to the matcher, got %+v", f)
	}
}
