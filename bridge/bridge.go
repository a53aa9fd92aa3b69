// Package bridge binds a document store to mantle. Binding wraps the store
// behind one uniform calling contract and makes sure the discriminator
// index exists, in a single construction step.
package bridge

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/mantle/store"
)

// Bridge is a bound, indexed store handle. Values and errors from the
// underlying store pass through unmodified; there are no retries and no
// timeouts beyond what the caller's context carries.
type Bridge struct {
	store         store.Store
	logger        *slog.Logger
	discriminator string
}

// Option configures Bind.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	discriminator string
	migrate       bool
}

// WithLogger sets the logger used while binding.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDiscriminator sets the discriminator field to index.
// Defaults to store.DefaultDiscriminator.
func WithDiscriminator(field string) Option {
	return func(o *options) { o.discriminator = field }
}

// WithoutMigrate skips the store's Migrate step, for stores whose schema
// is managed elsewhere.
func WithoutMigrate() Option {
	return func(o *options) { o.migrate = false }
}

// Bind configures s with the discriminator when it reads the field itself,
// migrates it, ensures the sparse discriminator index and returns the
// bound handle. A failure at any step leaves nothing bound.
func Bind(ctx context.Context, s store.Store, opts ...Option) (*Bridge, error) {
	if s == nil {
		return nil, fmt.Errorf("mantle/bridge: bind: nil store")
	}
	o := &options{
		logger:        slog.Default(),
		discriminator: store.DefaultDiscriminator,
		migrate:       true,
	}
	for _, opt := range opts {
		opt(o)
	}

	if da, ok := s.(store.DiscriminatorAware); ok {
		da.SetDiscriminator(o.discriminator)
	}
	if o.migrate {
		if err := s.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("mantle/bridge: bind: %w", err)
		}
	}
	spec := store.IndexSpec{Field: o.discriminator, Sparse: true}
	if err := s.EnsureIndex(ctx, spec); err != nil {
		return nil, fmt.Errorf("mantle/bridge: bind: ensure discriminator index: %w", err)
	}

	o.logger.Debug("mantle: store bound",
		slog.String("discriminator", o.discriminator),
		slog.String("store", fmt.Sprintf("%T", s)),
	)
	return &Bridge{
		store:         s,
		logger:        o.logger,
		discriminator: o.discriminator,
	}, nil
}

// Discriminator returns the field the bound store is indexed on.
func (b *Bridge) Discriminator() string { return b.discriminator }

// Store returns the underlying store.
func (b *Bridge) Store() store.Store { return b.store }

func (b *Bridge) Insert(ctx context.Context, doc bson.M) (bson.M, error) {
	return b.store.Insert(ctx, doc)
}

// FindOne returns store.ErrNoDocument when nothing matches.
func (b *Bridge) FindOne(ctx context.Context, query bson.M) (bson.M, error) {
	return b.store.FindOne(ctx, query)
}

func (b *Bridge) Find(ctx context.Context, query bson.M) ([]bson.M, error) {
	return b.store.Find(ctx, query)
}

func (b *Bridge) Count(ctx context.Context, query bson.M) (int64, error) {
	return b.store.Count(ctx, query)
}

func (b *Bridge) Update(ctx context.Context, query, update bson.M, opts store.UpdateOptions) (int64, error) {
	return b.store.Update(ctx, query, update, opts)
}

func (b *Bridge) Remove(ctx context.Context, query bson.M, opts store.RemoveOptions) (int64, error) {
	return b.store.Remove(ctx, query, opts)
}

func (b *Bridge) EnsureIndex(ctx context.Context, spec store.IndexSpec) error {
	return b.store.EnsureIndex(ctx, spec)
}

// Ping verifies the bound store is reachable.
func (b *Bridge) Ping(ctx context.Context) error {
	return b.store.Ping(ctx)
}

// Close closes the bound store.
func (b *Bridge) Close() error {
	return b.store.Close()
}
