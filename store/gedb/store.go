// Package gedb provides an embedded implementation of the mantle document
// store on top of gedb, a MongoDB-compatible embedded database. Stores are
// in-memory by default; WithFilename persists documents to an append-only
// datafile that Migrate loads.
package gedb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	gdb "github.com/vinicius-lino-figueiredo/gedb"
	"github.com/vinicius-lino-figueiredo/gedb/adapter/modifier"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/mantle/id"
	"github.com/xraph/mantle/internal/docmatch"
	"github.com/xraph/mantle/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a thread-safe embedded document collection. Find returns
// documents in identity order, which follows insertion for the identities
// the store generates.
type Store struct {
	db gdb.GEDB

	filename string

	mu            sync.RWMutex
	discriminator string
	indexes       map[string]store.IndexSpec
	loaded        bool
	closed        bool
}

// Option configures the gedb store.
type Option func(*config)

type config struct {
	filename string
}

// WithFilename persists the collection to the given datafile. Without it
// the store keeps documents in memory only.
func WithFilename(name string) Option {
	return func(c *config) { c.filename = name }
}

// New creates a new gedb store.
func New(opts ...Option) (*Store, error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	db, err := gdb.NewDB(
		gdb.WithFilename(cfg.filename),
		gdb.WithInMemoryOnly(cfg.filename == ""),
	)
	if err != nil {
		return nil, fmt.Errorf("mantle/gedb: open: %w", err)
	}
	return &Store{
		db:            db,
		filename:      cfg.filename,
		discriminator: store.DefaultDiscriminator,
		indexes:       make(map[string]store.IndexSpec),
	}, nil
}

// SetDiscriminator sets the field used to derive identity prefixes.
// bridge.Bind calls it with the field the bridge was bound with.
func (s *Store) SetDiscriminator(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discriminator = field
}

// Migrate loads the datafile of a persistent store. It runs once; later
// calls and in-memory stores are no-ops.
func (s *Store) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filename == "" || s.loaded {
		return nil
	}
	if err := s.db.LoadDatabase(ctx); err != nil {
		return fmt.Errorf("mantle/gedb: load %s: %w", s.filename, err)
	}
	s.loaded = true
	return nil
}

// Ping reports whether the store is still open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// Close compacts the datafile of a persistent store and marks the store
// closed. Further operations fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.filename == "" {
		return nil
	}
	if err := s.db.CompactDatafile(context.Background()); err != nil {
		return fmt.Errorf("mantle/gedb: compact: %w", err)
	}
	return nil
}

// Indexes returns the index specs ensured so far.
func (s *Store) Indexes() []store.IndexSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.IndexSpec, 0, len(s.indexes))
	for _, spec := range s.indexes {
		out = append(out, spec)
	}
	return out
}

var errClosed = errors.New("mantle/gedb: store is closed")

// open returns the discriminator, or errClosed.
func (s *Store) open() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", errClosed
	}
	return s.discriminator, nil
}

// ──────────────────────────────────────────────────
// Document operations
// ──────────────────────────────────────────────────

func (s *Store) Insert(ctx context.Context, doc bson.M) (bson.M, error) {
	disc, err := s.open()
	if err != nil {
		return nil, err
	}
	d := docmatch.Clone(doc)
	if d == nil {
		d = bson.M{}
	}
	out, err := s.insert(ctx, d, disc)
	if err != nil {
		return nil, fmt.Errorf("mantle/gedb: insert: %w", err)
	}
	return out, nil
}

// insert assigns an identity when missing and writes the document.
func (s *Store) insert(ctx context.Context, d bson.M, disc string) (bson.M, error) {
	key, ok := d[store.IDField].(string)
	if !ok || key == "" {
		typeName, _ := d[disc].(string)
		key = id.NewDocumentID(typeName).String()
		d[store.IDField] = key
	}
	cur, err := s.db.Insert(ctx, docmatch.Plain(d))
	if err != nil {
		if errors.Is(err, gdb.ErrConstraintViolated) && s.exists(ctx, key) {
			return nil, fmt.Errorf("%s: %w", key, store.ErrDuplicateID)
		}
		return nil, err
	}
	docs, err := scanAll(ctx, cur)
	if err != nil {
		return nil, err
	}
	if len(docs) != 1 {
		return nil, fmt.Errorf("expected 1 inserted document, got %d", len(docs))
	}
	return docs[0], nil
}

func (s *Store) exists(ctx context.Context, key string) bool {
	n, err := s.db.Count(ctx, map[string]any{store.IDField: key})
	return err == nil && n > 0
}

func (s *Store) FindOne(ctx context.Context, query bson.M) (bson.M, error) {
	if _, err := s.open(); err != nil {
		return nil, err
	}
	var out map[string]any
	if err := s.db.FindOne(ctx, docmatch.Query(query), &out); err != nil {
		if errors.Is(err, gdb.ErrNotFound) {
			return nil, store.ErrNoDocument
		}
		return nil, fmt.Errorf("mantle/gedb: find one: %w", err)
	}
	return docmatch.Document(out), nil
}

func (s *Store) Find(ctx context.Context, query bson.M) ([]bson.M, error) {
	if _, err := s.open(); err != nil {
		return nil, err
	}
	cur, err := s.db.Find(ctx, docmatch.Query(query))
	if err != nil {
		return nil, fmt.Errorf("mantle/gedb: find: %w", err)
	}
	docs, err := scanAll(ctx, cur)
	if err != nil {
		return nil, fmt.Errorf("mantle/gedb: find: %w", err)
	}
	return docs, nil
}

func (s *Store) Count(ctx context.Context, query bson.M) (int64, error) {
	if _, err := s.open(); err != nil {
		return 0, err
	}
	n, err := s.db.Count(ctx, docmatch.Query(query))
	if err != nil {
		return 0, fmt.Errorf("mantle/gedb: count: %w", err)
	}
	return n, nil
}

func (s *Store) Update(ctx context.Context, query, update bson.M, opts store.UpdateOptions) (int64, error) {
	disc, err := s.open()
	if err != nil {
		return 0, err
	}
	if store.IsOperatorUpdate(update) && docmatch.TouchesID(update, nil) {
		return 0, fmt.Errorf("mantle/gedb: update: %w", store.ErrImmutableID)
	}
	cur, err := s.db.Update(ctx, docmatch.Query(query), docmatch.Plain(update),
		gdb.WithUpdateMulti(opts.Multi),
	)
	if err != nil {
		return 0, fmt.Errorf("mantle/gedb: update: %w", updateError(err))
	}
	docs, err := scanAll(ctx, cur)
	if err != nil {
		return 0, fmt.Errorf("mantle/gedb: update: %w", err)
	}
	if len(docs) > 0 || !opts.Upsert {
		return int64(len(docs)), nil
	}

	// Upserts go through Insert so the new document gets a typed identity.
	d, err := docmatch.Upserted(query, update)
	if err != nil {
		return 0, fmt.Errorf("mantle/gedb: upsert: %w", err)
	}
	if _, err := s.insert(ctx, d, disc); err != nil {
		return 0, fmt.Errorf("mantle/gedb: upsert: %w", err)
	}
	return 1, nil
}

func updateError(err error) error {
	if errors.Is(err, gdb.ErrCannotModifyID) {
		return store.ErrImmutableID
	}
	var unknown modifier.ErrUnknownModifier
	if errors.As(err, &unknown) {
		return fmt.Errorf("%w: %s", store.ErrUnknownOperator, unknown.Name)
	}
	return err
}

func (s *Store) Remove(ctx context.Context, query bson.M, opts store.RemoveOptions) (int64, error) {
	if _, err := s.open(); err != nil {
		return 0, err
	}
	n, err := s.db.Remove(ctx, docmatch.Query(query), gdb.WithRemoveMulti(opts.Multi))
	if err != nil {
		return 0, fmt.Errorf("mantle/gedb: remove: %w", err)
	}
	return n, nil
}

func (s *Store) EnsureIndex(ctx context.Context, spec store.IndexSpec) error {
	if spec.Field == "" {
		return errors.New("mantle/gedb: ensure index: empty field name")
	}
	if _, err := s.open(); err != nil {
		return err
	}
	err := s.db.EnsureIndex(ctx,
		gdb.WithFields(spec.Field),
		gdb.WithSparse(spec.Sparse),
		gdb.WithUnique(spec.Unique),
	)
	if err != nil {
		return fmt.Errorf("mantle/gedb: ensure index %q: %w", spec.Field, err)
	}
	s.mu.Lock()
	s.indexes[spec.Field] = spec
	s.mu.Unlock()
	return nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func scanAll(ctx context.Context, cur gdb.Cursor) ([]bson.M, error) {
	defer cur.Close()
	var out []bson.M
	for cur.Next() {
		var m map[string]any
		if err := cur.Scan(ctx, &m); err != nil {
			return nil, err
		}
		out = append(out, docmatch.Document(m))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
