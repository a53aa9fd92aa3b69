// Package postgres provides a PostgreSQL implementation of the mantle
// document store using grove ORM with Go-based migrations. Bodies are
// stored as JSONB.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the pg migration executor
	"github.com/xraph/grove/migrate"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/mantle/id"
	"github.com/xraph/mantle/internal/docjson"
	"github.com/xraph/mantle/internal/docmatch"
	"github.com/xraph/mantle/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a PostgreSQL implementation of the mantle document store.
type Store struct {
	db            *grove.DB
	pgdb          *pgdriver.PgDB
	discriminator string
}

// New creates a new PostgreSQL store.
func New(db *grove.DB) *Store {
	return &Store{
		db:            db,
		pgdb:          pgdriver.Unwrap(db),
		discriminator: store.DefaultDiscriminator,
	}
}

// SetDiscriminator sets the document field mirrored into the type column.
// bridge.Bind calls it with the field the bridge was bound with, before
// the store is used.
func (s *Store) SetDiscriminator(field string) {
	s.discriminator = field
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pgdb)
	if err != nil {
		return fmt.Errorf("mantle/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("mantle/postgres: migration failed: %w", err)
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

// ──────────────────────────────────────────────────
// Document operations
// ──────────────────────────────────────────────────

func (s *Store) Insert(ctx context.Context, doc bson.M) (bson.M, error) {
	d := docmatch.Clone(doc)
	if d == nil {
		d = bson.M{}
	}
	if err := s.insert(ctx, d); err != nil {
		return nil, fmt.Errorf("mantle/postgres: insert: %w", err)
	}
	return d, nil
}

// insert assigns an identity when missing and writes the row. d is
// updated in place with the assigned identity.
func (s *Store) insert(ctx context.Context, d bson.M) error {
	key, ok := d[store.IDField].(string)
	if !ok || key == "" {
		typeName, _ := d[s.discriminator].(string)
		key = id.NewDocumentID(typeName).String()
		d[store.IDField] = key
	}
	exists, err := s.pgdb.NewSelect((*documentModel)(nil)).Where("id = ?", key).Count(ctx)
	if err != nil {
		return err
	}
	if exists > 0 {
		return fmt.Errorf("%s: %w", key, store.ErrDuplicateID)
	}
	m, err := documentToModel(d, s.discriminator, time.Now().UTC())
	if err != nil {
		return err
	}
	_, err = s.pgdb.NewInsert(m).Exec(ctx)
	return err
}

func (s *Store) FindOne(ctx context.Context, query bson.M) (bson.M, error) {
	matched, err := s.candidates(ctx, query, 1)
	if err != nil {
		return nil, fmt.Errorf("mantle/postgres: find one: %w", err)
	}
	if len(matched) == 0 {
		return nil, store.ErrNoDocument
	}
	return matched[0].doc, nil
}

func (s *Store) Find(ctx context.Context, query bson.M) ([]bson.M, error) {
	matched, err := s.candidates(ctx, query, 0)
	if err != nil {
		return nil, fmt.Errorf("mantle/postgres: find: %w", err)
	}
	result := make([]bson.M, len(matched))
	for i := range matched {
		result[i] = matched[i].doc
	}
	return result, nil
}

func (s *Store) Count(ctx context.Context, query bson.M) (int64, error) {
	if s.prefilterOnly(query) {
		q := s.pgdb.NewSelect((*documentModel)(nil))
		for _, f := range s.filters(query) {
			q = q.Where(f.expr, f.arg)
		}
		count, err := q.Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("mantle/postgres: count: %w", err)
		}
		return count, nil
	}
	matched, err := s.candidates(ctx, query, 0)
	if err != nil {
		return 0, fmt.Errorf("mantle/postgres: count: %w", err)
	}
	return int64(len(matched)), nil
}

func (s *Store) Update(ctx context.Context, query, update bson.M, opts store.UpdateOptions) (int64, error) {
	limit := 1
	if opts.Multi {
		limit = 0
	}
	matched, err := s.candidates(ctx, query, limit)
	if err != nil {
		return 0, fmt.Errorf("mantle/postgres: update: %w", err)
	}

	if len(matched) == 0 {
		if !opts.Upsert {
			return 0, nil
		}
		d, err := docmatch.Upserted(query, update)
		if err != nil {
			return 0, fmt.Errorf("mantle/postgres: upsert: %w", err)
		}
		if err := s.insert(ctx, d); err != nil {
			return 0, fmt.Errorf("mantle/postgres: upsert: %w", err)
		}
		return 1, nil
	}

	models := make([]*documentModel, len(matched))
	for i, c := range matched {
		next, err := docmatch.Apply(c.doc, update)
		if err != nil {
			return 0, fmt.Errorf("mantle/postgres: update %s: %w", c.model.ID, err)
		}
		m, err := documentToModel(next, s.discriminator, c.model.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("mantle/postgres: update %s: %w", c.model.ID, err)
		}
		models[i] = m
	}

	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mantle/postgres: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	for _, m := range models {
		if _, err := tx.NewUpdate(m).WherePK().Exec(ctx); err != nil {
			return 0, fmt.Errorf("mantle/postgres: update %s: %w", m.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mantle/postgres: commit tx: %w", err)
	}
	return int64(len(models)), nil
}

func (s *Store) Remove(ctx context.Context, query bson.M, opts store.RemoveOptions) (int64, error) {
	limit := 1
	if opts.Multi {
		limit = 0
	}
	matched, err := s.candidates(ctx, query, limit)
	if err != nil {
		return 0, fmt.Errorf("mantle/postgres: remove: %w", err)
	}
	if len(matched) == 0 {
		return 0, nil
	}

	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mantle/postgres: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	var removed int64
	for _, c := range matched {
		res, err := tx.NewDelete((*documentModel)(nil)).
			Where("id = ?", c.model.ID).
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("mantle/postgres: remove %s: %w", c.model.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("mantle/postgres: remove rows: %w", err)
		}
		removed += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mantle/postgres: commit tx: %w", err)
	}
	return removed, nil
}

// EnsureIndex creates an index over a document field. The discriminator
// maps onto the type column; other fields index a JSON expression.
func (s *Store) EnsureIndex(ctx context.Context, spec store.IndexSpec) error {
	if !docjson.ValidField(spec.Field) {
		return fmt.Errorf("mantle/postgres: ensure index: invalid field %q", spec.Field)
	}
	executor, err := migrate.NewExecutorFor(s.pgdb)
	if err != nil {
		return fmt.Errorf("mantle/postgres: create executor: %w", err)
	}

	name := "idx_mantle_documents_" + strings.ReplaceAll(strings.TrimLeft(spec.Field, "_"), ".", "_")
	expr := fmt.Sprintf("(body #> '{%s}')", strings.ReplaceAll(spec.Field, ".", ","))
	if spec.Field == s.discriminator {
		name, expr = "idx_mantle_documents_type", "type"
	}
	kind := "INDEX"
	if spec.Unique {
		kind = "UNIQUE INDEX"
		name += "_unique"
	}
	stmt := fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON mantle_documents (%s)", kind, name, expr)
	if spec.Sparse {
		stmt += fmt.Sprintf(" WHERE %s IS NOT NULL", expr)
	}
	if _, err := executor.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("mantle/postgres: ensure index %s: %w", spec.Field, err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

type candidate struct {
	model *documentModel
	doc   bson.M
}

// candidates loads the rows narrowed by the id and type columns in
// insertion order and keeps those matching query. A limit of 0 means no
// limit.
func (s *Store) candidates(ctx context.Context, query bson.M, limit int) ([]candidate, error) {
	var models []documentModel
	q := s.pgdb.NewSelect(&models).OrderExpr("created_at ASC, id ASC")
	for _, f := range s.filters(query) {
		q = q.Where(f.expr, f.arg)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	f, err := docmatch.Compile(query)
	if err != nil {
		return nil, err
	}
	var out []candidate
	for i := range models {
		doc, err := documentFromModel(&models[i])
		if err != nil {
			return nil, err
		}
		ok, err := f.Match(doc)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, candidate{model: &models[i], doc: doc})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type filter struct {
	expr string
	arg  any
}

// filters returns the column conditions implied by query.
func (s *Store) filters(query bson.M) []filter {
	var out []filter
	key, typeName := docjson.Prefilter(query, s.discriminator)
	if key != "" {
		out = append(out, filter{"id = ?", key})
	}
	if typeName != "" {
		out = append(out, filter{"type = ?", typeName})
	}
	return out
}

// prefilterOnly reports whether the column filters alone answer query.
func (s *Store) prefilterOnly(query bson.M) bool {
	return len(s.filters(query)) == len(query)
}
