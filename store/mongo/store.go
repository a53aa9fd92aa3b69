// Package mongo provides a MongoDB implementation of the mantle document
// store. Queries and update operators are passed through to the server;
// identities are TypeID strings assigned on insert.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/mantle/id"
	"github.com/xraph/mantle/internal/docmatch"
	"github.com/xraph/mantle/store"
)

// DefaultCollection is the collection every mapped type shares.
const DefaultCollection = "mantle_documents"

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the mantle document store.
type Store struct {
	db            *grove.DB
	mdb           *mongodriver.MongoDB
	collection    string
	discriminator string
}

// Option configures the MongoDB store.
type Option func(*Store)

// WithCollection overrides the shared collection name.
func WithCollection(name string) Option {
	return func(s *Store) { s.collection = name }
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:            db,
		mdb:           mongodriver.Unwrap(db),
		collection:    DefaultCollection,
		discriminator: store.DefaultDiscriminator,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetDiscriminator sets the field used to derive identity prefixes and
// indexed by Migrate. bridge.Bind calls it with the field the bridge was
// bound with, before the store is used.
func (s *Store) SetDiscriminator(field string) {
	s.discriminator = field
}

// Migrate creates the indexes of the document collection.
func (s *Store) Migrate(ctx context.Context) error {
	models := migrationIndexes(s.discriminator)
	if _, err := s.coll().Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("mantle/mongo: migrate %s indexes: %w", s.collection, err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) coll() *mongod.Collection {
	return s.mdb.Collection(s.collection)
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for the document collection.
func migrationIndexes(discriminator string) []mongod.IndexModel {
	return []mongod.IndexModel{
		{
			Keys:    bson.D{{Key: discriminator, Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
}

// ──────────────────────────────────────────────────
// Document operations
// ──────────────────────────────────────────────────

func (s *Store) Insert(ctx context.Context, doc bson.M) (bson.M, error) {
	d := docmatch.Clone(doc)
	if d == nil {
		d = bson.M{}
	}
	if err := s.insert(ctx, d); err != nil {
		return nil, fmt.Errorf("mantle/mongo: insert: %w", err)
	}
	return d, nil
}

func (s *Store) insert(ctx context.Context, d bson.M) error {
	key, ok := d[store.IDField].(string)
	if !ok || key == "" {
		typeName, _ := d[s.discriminator].(string)
		key = id.NewDocumentID(typeName).String()
		d[store.IDField] = key
	}
	if _, err := s.coll().InsertOne(ctx, d); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", key, store.ErrDuplicateID)
		}
		return err
	}
	return nil
}

func (s *Store) FindOne(ctx context.Context, query bson.M) (bson.M, error) {
	var doc bson.M
	if err := s.coll().FindOne(ctx, filterOf(query)).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, store.ErrNoDocument
		}
		return nil, fmt.Errorf("mantle/mongo: find one: %w", err)
	}
	return docmatch.Clone(doc), nil
}

func (s *Store) Find(ctx context.Context, query bson.M) ([]bson.M, error) {
	cur, err := s.coll().Find(ctx, filterOf(query))
	if err != nil {
		return nil, fmt.Errorf("mantle/mongo: find: %w", err)
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mantle/mongo: find: %w", err)
	}
	result := make([]bson.M, len(docs))
	for i := range docs {
		result[i] = docmatch.Clone(docs[i])
	}
	return result, nil
}

func (s *Store) Count(ctx context.Context, query bson.M) (int64, error) {
	n, err := s.coll().CountDocuments(ctx, filterOf(query))
	if err != nil {
		return 0, fmt.Errorf("mantle/mongo: count: %w", err)
	}
	return n, nil
}

func (s *Store) Update(ctx context.Context, query, update bson.M, opts store.UpdateOptions) (int64, error) {
	if store.IsOperatorUpdate(update) {
		if docmatch.TouchesID(update, nil) {
			return 0, fmt.Errorf("mantle/mongo: update: %w", store.ErrImmutableID)
		}
		n, err := s.updateOperators(ctx, query, update, opts.Multi)
		if err != nil {
			return 0, fmt.Errorf("mantle/mongo: update: %w", err)
		}
		if n > 0 || !opts.Upsert {
			return n, nil
		}
	} else {
		n, err := s.replace(ctx, query, update, opts.Multi)
		if err != nil {
			return 0, fmt.Errorf("mantle/mongo: update: %w", err)
		}
		if n > 0 || !opts.Upsert {
			return n, nil
		}
	}

	d, err := docmatch.Upserted(query, update)
	if err != nil {
		return 0, fmt.Errorf("mantle/mongo: upsert: %w", err)
	}
	if err := s.insert(ctx, d); err != nil {
		return 0, fmt.Errorf("mantle/mongo: upsert: %w", err)
	}
	return 1, nil
}

func (s *Store) updateOperators(ctx context.Context, query, update bson.M, multi bool) (int64, error) {
	var (
		res *mongod.UpdateResult
		err error
	)
	if multi {
		res, err = s.coll().UpdateMany(ctx, filterOf(query), update)
	} else {
		res, err = s.coll().UpdateOne(ctx, filterOf(query), update)
	}
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// replace swaps the body of each matched document while keeping its _id.
func (s *Store) replace(ctx context.Context, query, replacement bson.M, multi bool) (int64, error) {
	keys, err := s.matchedIDs(ctx, query, multi)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, key := range keys {
		if docmatch.TouchesID(replacement, key) {
			return n, store.ErrImmutableID
		}
		body := docmatch.Clone(replacement)
		delete(body, store.IDField)
		res, err := s.coll().ReplaceOne(ctx, bson.M{store.IDField: key}, body)
		if err != nil {
			return n, err
		}
		n += res.MatchedCount
	}
	return n, nil
}

func (s *Store) matchedIDs(ctx context.Context, query bson.M, multi bool) ([]any, error) {
	projection := bson.M{store.IDField: 1}
	if !multi {
		var doc bson.M
		err := s.coll().FindOne(ctx, filterOf(query), options.FindOne().SetProjection(projection)).Decode(&doc)
		if err != nil {
			if isNoDocuments(err) {
				return nil, nil
			}
			return nil, err
		}
		return []any{doc[store.IDField]}, nil
	}
	cur, err := s.coll().Find(ctx, filterOf(query), options.Find().SetProjection(projection))
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	keys := make([]any, len(docs))
	for i, d := range docs {
		keys[i] = d[store.IDField]
	}
	return keys, nil
}

func (s *Store) Remove(ctx context.Context, query bson.M, opts store.RemoveOptions) (int64, error) {
	var (
		res *mongod.DeleteResult
		err error
	)
	if opts.Multi {
		res, err = s.coll().DeleteMany(ctx, filterOf(query))
	} else {
		res, err = s.coll().DeleteOne(ctx, filterOf(query))
	}
	if err != nil {
		return 0, fmt.Errorf("mantle/mongo: remove: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *Store) EnsureIndex(ctx context.Context, spec store.IndexSpec) error {
	if spec.Field == "" {
		return fmt.Errorf("mantle/mongo: ensure index: empty field name")
	}
	model := mongod.IndexModel{
		Keys:    bson.D{{Key: spec.Field, Value: 1}},
		Options: options.Index().SetSparse(spec.Sparse).SetUnique(spec.Unique),
	}
	if _, err := s.coll().Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("mantle/mongo: ensure index %s: %w", spec.Field, err)
	}
	return nil
}

// filterOf substitutes an empty filter for nil; the driver rejects nil.
func filterOf(query bson.M) bson.M {
	if query == nil {
		return bson.M{}
	}
	return query
}
