package bridge

import (
	"context"
	"io"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/mantle/store"
)

// CallbackStore is a store whose operations report completion through a
// callback instead of returning. FindOne signals "no match" with a nil
// document and a nil error.
type CallbackStore interface {
	Insert(doc bson.M, done func(bson.M, error))
	FindOne(query bson.M, done func(bson.M, error))
	Find(query bson.M, done func([]bson.M, error))
	Count(query bson.M, done func(int64, error))
	Update(query, update bson.M, opts store.UpdateOptions, done func(int64, error))
	Remove(query bson.M, opts store.RemoveOptions, done func(int64, error))
	EnsureIndex(spec store.IndexSpec, done func(error))
}

// FromCallbacks adapts a callback-style store to store.Store. Each call
// parks until its callback fires. Once issued, an operation runs to
// completion; context cancellation is not observed.
func FromCallbacks(cs CallbackStore) store.Store {
	return &callbackStore{cs: cs}
}

// Compile-time interface check.
var _ store.Store = (*callbackStore)(nil)

type callbackStore struct {
	cs CallbackStore
}

func (c *callbackStore) Insert(_ context.Context, doc bson.M) (bson.M, error) {
	f := newFuture[bson.M]()
	c.cs.Insert(doc, f.resolve)
	return f.Await()
}

func (c *callbackStore) FindOne(_ context.Context, query bson.M) (bson.M, error) {
	f := newFuture[bson.M]()
	c.cs.FindOne(query, f.resolve)
	doc, err := f.Await()
	if err == nil && doc == nil {
		return nil, store.ErrNoDocument
	}
	return doc, err
}

func (c *callbackStore) Find(_ context.Context, query bson.M) ([]bson.M, error) {
	f := newFuture[[]bson.M]()
	c.cs.Find(query, f.resolve)
	return f.Await()
}

func (c *callbackStore) Count(_ context.Context, query bson.M) (int64, error) {
	f := newFuture[int64]()
	c.cs.Count(query, f.resolve)
	return f.Await()
}

func (c *callbackStore) Update(_ context.Context, query, update bson.M, opts store.UpdateOptions) (int64, error) {
	f := newFuture[int64]()
	c.cs.Update(query, update, opts, f.resolve)
	return f.Await()
}

func (c *callbackStore) Remove(_ context.Context, query bson.M, opts store.RemoveOptions) (int64, error) {
	f := newFuture[int64]()
	c.cs.Remove(query, opts, f.resolve)
	return f.Await()
}

func (c *callbackStore) EnsureIndex(_ context.Context, spec store.IndexSpec) error {
	f := newFuture[struct{}]()
	c.cs.EnsureIndex(spec, func(err error) { f.resolve(struct{}{}, err) })
	_, err := f.Await()
	return err
}

func (c *callbackStore) Migrate(_ context.Context) error { return nil }

func (c *callbackStore) Ping(_ context.Context) error { return nil }

func (c *callbackStore) Close() error {
	if closer, ok := c.cs.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
