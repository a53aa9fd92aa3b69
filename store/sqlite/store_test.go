package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/mantle/store"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	sdb := sqlitedriver.New()
	// Every connection to :memory: opens a separate database.
	if err := sdb.Open(ctx, ":memory:", driver.WithPoolSize(1)); err != nil {
		t.Fatal(err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		t.Fatal(err)
	}
	s := New(db)
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestInsertAndFindOne(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	doc, err := s.Insert(ctx, bson.M{"_type": "User", "name": "ada"})
	if err != nil {
		t.Fatal(err)
	}
	key, _ := doc["_id"].(string)
	if !strings.HasPrefix(key, "user_") {
		t.Fatalf("expected user_ identity, got %v", doc["_id"])
	}

	got, err := s.FindOne(ctx, bson.M{"_id": key})
	if err != nil {
		t.Fatal(err)
	}
	if got["name"] != "ada" || got["_type"] != "User" {
		t.Fatalf("unexpected document %v", got)
	}

	if _, err := s.FindOne(ctx, bson.M{"name": "nobody"}); !errors.Is(err, store.ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
	if _, err := s.Insert(ctx, bson.M{"_id": key, "name": "again"}); !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestFindOrderAndCount(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for _, doc := range []bson.M{
		{"_id": "user_c", "_type": "User", "name": "c"},
		{"_id": "user_a", "_type": "User", "name": "a"},
		{"_id": "note_1", "_type": "Note", "name": "a"},
		{"_id": "user_b", "_type": "User", "name": "b"},
	} {
		if _, err := s.Insert(ctx, doc); err != nil {
			t.Fatal(err)
		}
	}

	users, err := s.Find(ctx, bson.M{"_type": "User"})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, u := range users {
		names = append(names, u["name"].(string))
	}
	if strings.Join(names, ",") != "c,a,b" {
		t.Fatalf("expected insertion order, got %v", names)
	}

	tests := []struct {
		name  string
		query bson.M
		want  int64
	}{
		{"type column only", bson.M{"_type": "User"}, 3},
		{"everything", bson.M{}, 4},
		{"body field", bson.M{"name": "a"}, 2},
		{"type and body", bson.M{"_type": "User", "name": "a"}, 1},
		{"or beside type", bson.M{"_type": "User", "$or": bson.A{bson.M{"name": "a"}, bson.M{"name": "b"}}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := s.Count(ctx, tt.query)
			if err != nil {
				t.Fatal(err)
			}
			if n != tt.want {
				t.Fatalf("Count(%v) = %d, want %d", tt.query, n, tt.want)
			}
		})
	}
}

func TestUpdateOperators(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for i := range 3 {
		if _, err := s.Insert(ctx, bson.M{"_type": "Counter", "n": i % 2}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.Update(ctx, bson.M{"n": 0}, bson.M{"$inc": bson.M{"n": 1}}, store.UpdateOptions{})
	if err != nil || n != 1 {
		t.Fatalf("expected single update, got %d (%v)", n, err)
	}
	n, err = s.Update(ctx, bson.M{"n": 1}, bson.M{"$set": bson.M{"seen": true}}, store.UpdateOptions{Multi: true})
	if err != nil || n != 2 {
		t.Fatalf("expected multi update of 2, got %d (%v)", n, err)
	}
	if c, _ := s.Count(ctx, bson.M{"seen": true, "_type": "Counter"}); c != 2 {
		t.Fatalf("expected 2 seen counters, got %d", c)
	}

	if _, err := s.Update(ctx, bson.M{}, bson.M{"$set": bson.M{"_id": "x"}}, store.UpdateOptions{}); !errors.Is(err, store.ErrImmutableID) {
		t.Fatalf("expected ErrImmutableID, got %v", err)
	}
	if _, err := s.Update(ctx, bson.M{}, bson.M{"$bogus": bson.M{"n": 1}}, store.UpdateOptions{}); !errors.Is(err, store.ErrUnknownOperator) {
		t.Fatalf("expected ErrUnknownOperator, got %v", err)
	}
}

func TestUpdateReplacement(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	doc, err := s.Insert(ctx, bson.M{"_type": "User", "name": "a", "age": 3})
	if err != nil {
		t.Fatal(err)
	}
	key := doc["_id"]

	n, err := s.Update(ctx, bson.M{"_id": key}, bson.M{"_type": "Admin", "name": "z"}, store.UpdateOptions{})
	if err != nil || n != 1 {
		t.Fatalf("expected 1 replaced, got %d (%v)", n, err)
	}
	got, err := s.FindOne(ctx, bson.M{"_id": key})
	if err != nil {
		t.Fatal(err)
	}
	if got["name"] != "z" || got["_type"] != "Admin" {
		t.Fatalf("unexpected replacement %v", got)
	}
	if _, ok := got["age"]; ok {
		t.Fatalf("replacement kept old fields: %v", got)
	}
	// The type column follows the replaced discriminator.
	if c, _ := s.Count(ctx, bson.M{"_type": "Admin"}); c != 1 {
		t.Fatalf("expected type column updated, got %d", c)
	}
}

func TestUpdateUpsert(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	n, err := s.Update(ctx, bson.M{"_type": "Counter", "key": "hits"}, bson.M{"$inc": bson.M{"n": 1}}, store.UpdateOptions{Upsert: true})
	if err != nil || n != 1 {
		t.Fatalf("expected upsert to report 1, got %d (%v)", n, err)
	}
	got, err := s.FindOne(ctx, bson.M{"key": "hits"})
	if err != nil {
		t.Fatal(err)
	}
	if key, _ := got["_id"].(string); !strings.HasPrefix(key, "counter_") {
		t.Fatalf("expected counter_ identity, got %v", got["_id"])
	}
	if c, _ := s.Count(ctx, bson.M{"n": 1}); c != 1 {
		t.Fatalf("expected upserted counter at 1, got %v", got)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for range 3 {
		if _, err := s.Insert(ctx, bson.M{"_type": "Note", "draft": true}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.Remove(ctx, bson.M{"draft": true}, store.RemoveOptions{})
	if err != nil || n != 1 {
		t.Fatalf("expected single remove, got %d (%v)", n, err)
	}
	n, err = s.Remove(ctx, bson.M{"draft": true}, store.RemoveOptions{Multi: true})
	if err != nil || n != 2 {
		t.Fatalf("expected 2 removed, got %d (%v)", n, err)
	}
	n, err = s.Remove(ctx, bson.M{"draft": true}, store.RemoveOptions{Multi: true})
	if err != nil || n != 0 {
		t.Fatalf("expected nothing left to remove, got %d (%v)", n, err)
	}
}

func TestSetDiscriminator(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	s.SetDiscriminator("kind")

	doc, err := s.Insert(ctx, bson.M{"kind": "Invoice", "_type": "ignored"})
	if err != nil {
		t.Fatal(err)
	}
	if key, _ := doc["_id"].(string); !strings.HasPrefix(key, "invoice_") {
		t.Fatalf("expected invoice_ identity, got %v", doc["_id"])
	}
	if c, _ := s.Count(ctx, bson.M{"kind": "Invoice"}); c != 1 {
		t.Fatalf("expected the kind field in the type column, got %d", c)
	}
}

func TestEnsureIndex(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if err := s.EnsureIndex(ctx, store.IndexSpec{Field: "_type", Sparse: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureIndex(ctx, store.IndexSpec{Field: "email", Unique: true}); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureIndex(ctx, store.IndexSpec{Field: "bad field;"}); err == nil {
		t.Fatal("expected invalid field rejected")
	}

	if _, err := s.Insert(ctx, bson.M{"email": "a@example.com"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Insert(ctx, bson.M{"email": "a@example.com"}); err == nil {
		t.Fatal("expected unique index violation")
	}
}
