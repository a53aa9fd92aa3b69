package mantle

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/mantle/bridge"
	"github.com/xraph/mantle/store"
)

// ──────────────────────────────────────────────────
// Mutations
// ──────────────────────────────────────────────────

// Save validates inst, runs pre:save listeners, inserts it and assigns the
// store identity. The instance is then refreshed from the stored document,
// validated again and handed to post:save listeners.
//
// A *HookError from the post stage or a *CommittedError means the
// document was saved.
func (t *Type[U, T]) Save(ctx context.Context, inst T) error {
	b, err := t.bound()
	if err != nil {
		return t.fail(ctx, opSave.name, err)
	}
	if inst == nil {
		return t.fail(ctx, opSave.name, fmt.Errorf("mantle: %s: save: nil instance", t.name))
	}
	if err := t.validate(ctx, inst); err != nil {
		return t.fail(ctx, opSave.name, err)
	}

	err = t.run(ctx, opSave, inst, func(ctx context.Context) error {
		disc := b.Discriminator()
		doc, err := toDocument(inst, disc)
		if err != nil {
			return fmt.Errorf("mantle: %s: save: %w", t.name, err)
		}
		if key := inst.Identity(); key != "" {
			doc[store.IDField] = key
		}
		doc[disc] = t.name

		stored, err := b.Insert(ctx, doc)
		if err != nil {
			return err
		}
		t.invalidate(ctx, identityString(stored[store.IDField]))
		if err := t.hydrate(inst, stored, disc); err != nil {
			return &CommittedError{Type: t.name, Op: opSave.name, Cause: err}
		}
		if err := t.validate(ctx, inst); err != nil {
			return &CommittedError{Type: t.name, Op: opSave.name, Cause: err}
		}
		return nil
	})
	return t.fail(ctx, opSave.name, err)
}

// Remove runs pre:remove listeners, deletes the instance's document and
// runs post:remove listeners. On full success the instance is zeroed.
// Removing a document that is already gone is not an error.
func (t *Type[U, T]) Remove(ctx context.Context, inst T) error {
	b, err := t.bound()
	if err != nil {
		return t.fail(ctx, opRemove.name, err)
	}
	if inst == nil || inst.Identity() == "" {
		return t.fail(ctx, opRemove.name, fmt.Errorf("mantle: %s: remove: %w", t.name, ErrUnsaved))
	}

	key := inst.Identity()
	err = t.run(ctx, opRemove, inst, func(ctx context.Context) error {
		query := bson.M{store.IDField: key, b.Discriminator(): t.name}
		if _, err := b.Remove(ctx, query, store.RemoveOptions{}); err != nil {
			return err
		}
		t.invalidate(ctx, key)
		return nil
	})
	if err != nil {
		return t.fail(ctx, opRemove.name, err)
	}

	var zero U
	*inst = zero
	return nil
}

// Update applies u to the documents of this type matching q and returns
// how many were matched. Replacement payloads get the discriminator
// re-injected. Operator payloads naming the discriminator and payloads
// naming the identity are rejected before the store is called.
func (t *Type[U, T]) Update(ctx context.Context, q Query, u Update, opts ...UpdateOption) (int64, error) {
	b, err := t.bound()
	if err != nil {
		return 0, t.fail(ctx, opUpdate.name, err)
	}
	disc := b.Discriminator()
	if field := immutableTarget(u, "", disc); field != "" {
		return 0, t.fail(ctx, opUpdate.name, &ImmutableFieldError{Type: t.name, Field: field})
	}

	n, err := b.Update(ctx, tagQuery(q, disc, t.name), tagUpdate(u, disc, t.name), updateOptions(opts))
	if err != nil {
		return 0, t.fail(ctx, opUpdate.name, err)
	}
	if t.engine.cache != nil {
		t.engine.cache.InvalidateType(ctx, t.name)
	}
	return n, nil
}

// UpdateInstance applies u to inst's document, then reloads inst from the
// store and returns it. pre:update and post:update listeners run around
// the write. A replacement may repeat the instance's own identity; any
// other identity change, and any operator on the discriminator, is
// rejected before the store is called.
func (t *Type[U, T]) UpdateInstance(ctx context.Context, inst T, u Update, opts ...UpdateOption) (T, error) {
	b, err := t.bound()
	if err != nil {
		return inst, t.fail(ctx, opUpdate.name, err)
	}
	if inst == nil || inst.Identity() == "" {
		return inst, t.fail(ctx, opUpdate.name, fmt.Errorf("mantle: %s: update: %w", t.name, ErrUnsaved))
	}
	key := inst.Identity()
	disc := b.Discriminator()
	if field := immutableTarget(u, key, disc); field != "" {
		return inst, t.fail(ctx, opUpdate.name, &ImmutableFieldError{Type: t.name, Field: field})
	}

	err = t.run(ctx, opUpdate, inst, func(ctx context.Context) error {
		selector := bson.M{store.IDField: key, disc: t.name}
		o := updateOptions(opts)
		o.Multi = false
		if _, err := b.Update(ctx, selector, tagUpdate(stripIdentity(u), disc, t.name), o); err != nil {
			return err
		}
		t.invalidate(ctx, key)

		doc, err := b.FindOne(ctx, selector)
		if err != nil {
			if errors.Is(err, store.ErrNoDocument) {
				err = &NotFoundError{Type: t.name, ID: key}
			}
			return &CommittedError{Type: t.name, Op: opUpdate.name, Cause: err}
		}
		if err := t.hydrate(inst, doc, disc); err != nil {
			return &CommittedError{Type: t.name, Op: opUpdate.name, Cause: err}
		}
		if err := t.validate(ctx, inst); err != nil {
			return &CommittedError{Type: t.name, Op: opUpdate.name, Cause: err}
		}
		return nil
	})
	return inst, t.fail(ctx, opUpdate.name, err)
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// Get loads the instance with the given identity.
func (t *Type[U, T]) Get(ctx context.Context, id string) (T, error) {
	inst := T(new(U))
	if err := t.load(ctx, id, inst); err != nil {
		return nil, t.fail(ctx, "get", err)
	}
	return inst, nil
}

// Reload refreshes inst from its stored document.
func (t *Type[U, T]) Reload(ctx context.Context, inst T) error {
	if inst == nil || inst.Identity() == "" {
		return t.fail(ctx, "get", fmt.Errorf("mantle: %s: reload: %w", t.name, ErrUnsaved))
	}
	return t.fail(ctx, "get", t.load(ctx, inst.Identity(), inst))
}

func (t *Type[U, T]) load(ctx context.Context, id string, inst T) error {
	b, err := t.bound()
	if err != nil {
		return err
	}
	disc := b.Discriminator()

	doc, cached := t.cached(ctx, id)
	if !cached {
		doc, err = b.FindOne(ctx, bson.M{store.IDField: id, disc: t.name})
		if err != nil {
			if errors.Is(err, store.ErrNoDocument) {
				return &NotFoundError{Type: t.name, ID: id}
			}
			return err
		}
		if t.engine.cache != nil {
			t.engine.cache.Set(ctx, t.name, id, doc)
		}
	}
	if err := t.hydrate(inst, doc, disc); err != nil {
		return err
	}
	return t.validate(ctx, inst)
}

// FindOne returns the first instance matching q.
func (t *Type[U, T]) FindOne(ctx context.Context, q Query) (T, error) {
	b, err := t.bound()
	if err != nil {
		return nil, t.fail(ctx, "find", err)
	}
	disc := b.Discriminator()
	doc, err := b.FindOne(ctx, tagQuery(q, disc, t.name))
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			err = &NotFoundError{Type: t.name, Query: q}
		}
		return nil, t.fail(ctx, "find", err)
	}
	inst := T(new(U))
	if err := t.hydrate(inst, doc, disc); err != nil {
		return nil, t.fail(ctx, "find", err)
	}
	if err := t.validate(ctx, inst); err != nil {
		return nil, t.fail(ctx, "find", err)
	}
	return inst, nil
}

// Find returns every instance matching q in store order.
func (t *Type[U, T]) Find(ctx context.Context, q Query) ([]T, error) {
	b, err := t.bound()
	if err != nil {
		return nil, t.fail(ctx, "find", err)
	}
	disc := b.Discriminator()
	docs, err := b.Find(ctx, tagQuery(q, disc, t.name))
	if err != nil {
		return nil, t.fail(ctx, "find", err)
	}
	out := make([]T, len(docs))
	for i, doc := range docs {
		inst := T(new(U))
		if err := t.hydrate(inst, doc, disc); err != nil {
			return nil, t.fail(ctx, "find", err)
		}
		if err := t.validate(ctx, inst); err != nil {
			return nil, t.fail(ctx, "find", err)
		}
		out[i] = inst
	}
	return out, nil
}

// Count returns how many documents of this type match q.
func (t *Type[U, T]) Count(ctx context.Context, q Query) (int64, error) {
	b, err := t.bound()
	if err != nil {
		return 0, t.fail(ctx, "count", err)
	}
	n, err := b.Count(ctx, tagQuery(q, b.Discriminator(), t.name))
	if err != nil {
		return 0, t.fail(ctx, "count", err)
	}
	return n, nil
}

// Async runs fn against the type on its own goroutine.
func Async[R any](ctx context.Context, fn func(context.Context) (R, error)) *bridge.Future[R] {
	return bridge.Go(ctx, fn)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// hydrate replaces every field of inst with the stored document. inst is
// left as it was when decoding fails.
func (t *Type[U, T]) hydrate(inst T, doc bson.M, discriminator string) error {
	fresh := T(new(U))
	if err := decodeInto(doc, discriminator, fresh); err != nil {
		return fmt.Errorf("mantle: %s: %w", t.name, err)
	}
	*inst = *fresh
	return nil
}

func (t *Type[U, T]) cached(ctx context.Context, id string) (bson.M, bool) {
	if t.engine.cache == nil {
		return nil, false
	}
	return t.engine.cache.Get(ctx, t.name, id)
}

func (t *Type[U, T]) invalidate(ctx context.Context, id string) {
	if t.engine.cache != nil && id != "" {
		t.engine.cache.Invalidate(ctx, t.name, id)
	}
}

// fail reports err to plugins and returns it unchanged.
func (t *Type[U, T]) fail(ctx context.Context, op string, err error) error {
	if err != nil {
		t.engine.operationFailed(ctx, t.name, op, err)
	}
	return err
}
