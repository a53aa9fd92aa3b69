package bridge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/mantle/store"
	"github.com/xraph/mantle/store/gedb"
)

func newStore(t *testing.T) *gedb.Store {
	t.Helper()
	s, err := gedb.New()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestBindEnsuresDiscriminatorIndex(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	b, err := Bind(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if b.Discriminator() != store.DefaultDiscriminator {
		t.Fatalf("expected default discriminator, got %q", b.Discriminator())
	}

	idx := s.Indexes()
	if len(idx) != 1 {
		t.Fatalf("expected 1 index, got %d", len(idx))
	}
	if idx[0].Field != "_type" || !idx[0].Sparse {
		t.Fatalf("expected sparse _type index, got %+v", idx[0])
	}
}

func TestBindCustomDiscriminator(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	b, err := Bind(ctx, s, WithDiscriminator("kind"), WithoutMigrate())
	if err != nil {
		t.Fatal(err)
	}
	if b.Discriminator() != "kind" {
		t.Fatalf("expected kind, got %q", b.Discriminator())
	}
	if idx := s.Indexes(); len(idx) != 1 || idx[0].Field != "kind" {
		t.Fatalf("unexpected indexes %+v", idx)
	}
}

func TestBindHandsDiscriminatorToStore(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	b, err := Bind(ctx, s, WithDiscriminator("kind"))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := b.Insert(ctx, bson.M{"kind": "Invoice", "_type": "Ignored"})
	if err != nil {
		t.Fatal(err)
	}
	if key, _ := doc["_id"].(string); !strings.HasPrefix(key, "invoice_") {
		t.Fatalf("expected the store to derive the prefix from kind, got %v", doc["_id"])
	}
}

type failingStore struct {
	store.Store
	migrateErr error
}

func (f *failingStore) Migrate(context.Context) error { return f.migrateErr }

func TestBindFailsAtomically(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	b, err := Bind(ctx, &failingStore{Store: newStore(t), migrateErr: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("expected migrate error, got %v", err)
	}
	if b != nil {
		t.Fatal("expected no bridge on failure")
	}

	if _, err := Bind(ctx, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
}

func TestBridgePassesThrough(t *testing.T) {
	ctx := context.Background()
	b, err := Bind(ctx, newStore(t))
	if err != nil {
		t.Fatal(err)
	}

	doc, err := b.Insert(ctx, bson.M{"_type": "User", "name": "ada"})
	if err != nil {
		t.Fatal(err)
	}
	got, err := b.FindOne(ctx, bson.M{"_id": doc["_id"]})
	if err != nil {
		t.Fatal(err)
	}
	if got["name"] != "ada" {
		t.Fatalf("expected ada, got %v", got["name"])
	}
	if _, err := b.FindOne(ctx, bson.M{"name": "nobody"}); !errors.Is(err, store.ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument unmodified, got %v", err)
	}
	n, err := b.Remove(ctx, bson.M{"_id": doc["_id"]}, store.RemoveOptions{})
	if err != nil || n != 1 {
		t.Fatalf("expected 1 removed, got %d (%v)", n, err)
	}
}

func TestFuture(t *testing.T) {
	ctx := context.Background()

	f := Go(ctx, func(context.Context) (int, error) { return 42, nil })
	v, err := f.Await()
	if err != nil || v != 42 {
		t.Fatalf("expected 42, got %d (%v)", v, err)
	}
	<-f.Done()

	boom := errors.New("boom")
	g := Go(ctx, func(context.Context) (string, error) { return "", boom })
	if _, err := g.Await(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	h := newFuture[int]()
	h.resolve(1, nil)
	h.resolve(2, boom)
	if v, err := h.Await(); v != 1 || err != nil {
		t.Fatalf("future must resolve once, got %d (%v)", v, err)
	}
}

// asyncStore exposes an embedded store through completion callbacks fired on
// separate goroutines.
type asyncStore struct {
	s      *gedb.Store
	closed bool
}

func (a *asyncStore) Insert(doc bson.M, done func(bson.M, error)) {
	go func() { done(a.s.Insert(context.Background(), doc)) }()
}

func (a *asyncStore) FindOne(query bson.M, done func(bson.M, error)) {
	go func() {
		doc, err := a.s.FindOne(context.Background(), query)
		if errors.Is(err, store.ErrNoDocument) {
			done(nil, nil)
			return
		}
		done(doc, err)
	}()
}

func (a *asyncStore) Find(query bson.M, done func([]bson.M, error)) {
	go func() { done(a.s.Find(context.Background(), query)) }()
}

func (a *asyncStore) Count(query bson.M, done func(int64, error)) {
	go func() { done(a.s.Count(context.Background(), query)) }()
}

func (a *asyncStore) Update(query, update bson.M, opts store.UpdateOptions, done func(int64, error)) {
	go func() { done(a.s.Update(context.Background(), query, update, opts)) }()
}

func (a *asyncStore) Remove(query bson.M, opts store.RemoveOptions, done func(int64, error)) {
	go func() { done(a.s.Remove(context.Background(), query, opts)) }()
}

func (a *asyncStore) EnsureIndex(spec store.IndexSpec, done func(error)) {
	go func() { done(a.s.EnsureIndex(context.Background(), spec)) }()
}

func (a *asyncStore) Close() error {
	a.closed = true
	return nil
}

func TestFromCallbacks(t *testing.T) {
	ctx := context.Background()
	mem := newStore(t)
	cs := &asyncStore{s: mem}

	b, err := Bind(ctx, FromCallbacks(cs))
	if err != nil {
		t.Fatal(err)
	}
	if len(mem.Indexes()) != 1 {
		t.Fatal("expected discriminator index through the callback adapter")
	}

	doc, err := b.Insert(ctx, bson.M{"_type": "Note", "n": 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Insert(ctx, bson.M{"_type": "Note", "n": 2}); err != nil {
		t.Fatal(err)
	}

	if _, err := b.FindOne(ctx, bson.M{"n": 99}); !errors.Is(err, store.ErrNoDocument) {
		t.Fatalf("expected nil document mapped to ErrNoDocument, got %v", err)
	}
	docs, err := b.Find(ctx, bson.M{"_type": "Note"})
	if err != nil || len(docs) != 2 {
		t.Fatalf("expected 2 notes, got %d (%v)", len(docs), err)
	}
	n, err := b.Update(ctx, bson.M{"_id": doc["_id"]}, bson.M{"$inc": bson.M{"n": 1}}, store.UpdateOptions{})
	if err != nil || n != 1 {
		t.Fatalf("expected 1 updated, got %d (%v)", n, err)
	}
	count, err := b.Count(ctx, bson.M{"n": 2})
	if err != nil || count != 2 {
		t.Fatalf("expected 2 documents with n=2, got %d (%v)", count, err)
	}
	if _, err := b.Remove(ctx, bson.M{}, store.RemoveOptions{Multi: true}); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if !cs.closed {
		t.Fatal("expected Close to reach the callback store")
	}
}
