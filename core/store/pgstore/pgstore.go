// Package pgstore is a PostgreSQL storage driver. Each collection is a table holding
// the documents as jsonb, keyed by their identifier.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/lib/pq"

	"github.com/relabs-tech/docrest/core/csql"
	"github.com/relabs-tech/docrest/core/logger"
	"github.com/relabs-tech/docrest/core/store"
)

// Store is a PostgreSQL store.Store
type Store struct {
	db      *csql.DB
	mutex   sync.Mutex
	created map[string]*Collection
}

// New returns a store on db. Tables are created in the schema of db on first use.
func New(db *csql.DB) *Store {
	return &Store{db: db, created: make(map[string]*Collection)}
}

// Collection implements store.Store
func (s *Store) Collection(ctx context.Context, name string) (store.Collection, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if c, ok := s.created[name]; ok {
		return c, nil
	}
	c := &Collection{db: s.db, name: name, table: s.db.Table(name)}
	logger.FromContext(ctx).Debugln("create table:", c.table)
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+c.table+` (
		seq bigserial,
		id varchar PRIMARY KEY,
		document jsonb NOT NULL,
		created_at timestamp NOT NULL DEFAULT now(),
		updated_at timestamp NOT NULL DEFAULT now()
	);`)
	if err != nil {
		return nil, fmt.Errorf("cannot create table %s: %w", c.table, err)
	}
	s.created[name] = c
	return c, nil
}

// Close implements store.Store
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

// Collection is a PostgreSQL store.Collection
type Collection struct {
	db    *csql.DB
	name  string
	table string
}

// Name implements store.Collection
func (c *Collection) Name() string {
	return c.name
}

// Find implements store.Collection
func (c *Collection) Find(ctx context.Context, filter store.Filter, opts store.FindOptions) ([]store.Document, error) {
	q := query{}
	where, err := q.where(filter)
	if err != nil {
		return nil, err
	}
	sqlQuery := `SELECT document FROM ` + c.table + ` WHERE ` + where + q.orderBy(opts.Sort)
	if opts.Limit != nil && *opts.Limit > 0 {
		sqlQuery += ` LIMIT ` + q.arg(*opts.Limit)
	}
	if opts.Skip != nil {
		sqlQuery += ` OFFSET ` + q.arg(*opts.Skip)
	}
	rows, err := c.db.QueryContext(ctx, sqlQuery+`;`, q.args...)
	if err != nil {
		return nil, fmt.Errorf("cannot find in %s: %w", c.name, err)
	}
	defer rows.Close()
	docs := []store.Document{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("cannot scan %s: %w", c.name, err)
		}
		doc, err := decode(data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc.Project(opts.Projection))
	}
	return docs, rows.Err()
}

// FindOne implements store.Collection
func (c *Collection) FindOne(ctx context.Context, filter store.Filter, projection store.Projection) (store.Document, error) {
	q := query{}
	where, err := q.where(filter)
	if err != nil {
		return nil, err
	}
	doc, err := c.queryOne(ctx, `SELECT document FROM `+c.table+` WHERE `+where+` ORDER BY seq LIMIT 1;`, q.args...)
	if err != nil {
		return nil, err
	}
	return doc.Project(projection), nil
}

// FindByID implements store.Collection
func (c *Collection) FindByID(ctx context.Context, id string) (store.Document, error) {
	return c.queryOne(ctx, `SELECT document FROM `+c.table+` WHERE id = $1;`, id)
}

// FindOneAndRemove implements store.Collection
func (c *Collection) FindOneAndRemove(ctx context.Context, filter store.Filter) (store.Document, error) {
	q := query{}
	where, err := q.where(filter)
	if err != nil {
		return nil, err
	}
	return c.queryOne(ctx, `DELETE FROM `+c.table+` WHERE seq = (SELECT seq FROM `+c.table+
		` WHERE `+where+` ORDER BY seq LIMIT 1 FOR UPDATE) RETURNING document;`, q.args...)
}

func (c *Collection) queryOne(ctx context.Context, sqlQuery string, args ...interface{}) (store.Document, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&data)
	if errors.Is(err, csql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cannot query %s: %w", c.name, err)
	}
	return decode(data)
}

// Count implements store.Collection
func (c *Collection) Count(ctx context.Context, filter store.Filter) (int64, error) {
	q := query{}
	where, err := q.where(filter)
	if err != nil {
		return 0, err
	}
	var count int64
	err = c.db.QueryRowContext(ctx, `SELECT count(*) FROM `+c.table+` WHERE `+where+`;`, q.args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("cannot count %s: %w", c.name, err)
	}
	return count, nil
}

// Insert implements store.Collection
func (c *Collection) Insert(ctx context.Context, document store.Document) error {
	data, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("cannot marshal document: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `INSERT INTO `+c.table+` (id, document) VALUES ($1, $2);`, document.ID(), data)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("cannot insert into %s: %w", c.name, err)
	}
	return nil
}

// Save implements store.Collection
func (c *Collection) Save(ctx context.Context, document store.Document) error {
	data, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("cannot marshal document: %w", err)
	}
	_, err = c.db.ExecContext(ctx, `INSERT INTO `+c.table+` (id, document) VALUES ($1, $2)
	ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = now();`, document.ID(), data)
	if err != nil {
		return fmt.Errorf("cannot save into %s: %w", c.name, err)
	}
	return nil
}

func decode(data []byte) (store.Document, error) {
	var doc store.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("cannot unmarshal document: %w", err)
	}
	return doc, nil
}

// query collects the positional arguments while a statement is built
type query struct {
	args []interface{}
}

func (q *query) arg(v interface{}) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

func property(field string) string {
	return `document->` + pq.QuoteLiteral(field)
}

// where translates a filter into a SQL condition on the document column
func (q *query) where(filter store.Filter) (string, error) {
	switch f := filter.(type) {
	case nil:
		return "TRUE", nil
	case store.Eq:
		if f.Value == nil {
			return "(" + property(f.Field) + " IS NULL OR " + property(f.Field) + " = 'null'::jsonb)", nil
		}
		data, _ := json.Marshal(f.Value)
		return property(f.Field) + " = " + q.arg(string(data)) + "::jsonb", nil
	case store.In:
		values := make([]string, len(f.Values))
		for i, v := range f.Values {
			data, _ := json.Marshal(v)
			values[i] = string(data)
		}
		return property(f.Field) + " = ANY(" + q.arg(pq.Array(values)) + "::jsonb[])", nil
	case store.Contains:
		pattern := "%" + escapeLike(f.Value) + "%"
		return "(jsonb_typeof(" + property(f.Field) + ") = 'string' AND " +
			`document->>` + pq.QuoteLiteral(f.Field) + " ILIKE " + q.arg(pattern) + ")", nil
	case store.And:
		if len(f) == 0 {
			return "TRUE", nil
		}
		return q.join(f, " AND ")
	case store.Or:
		if len(f) == 0 {
			return "FALSE", nil
		}
		return q.join(f, " OR ")
	}
	return "", fmt.Errorf("%w %T", store.ErrUnsupportedFilter, filter)
}

func (q *query) join(filters []store.Filter, operator string) (string, error) {
	conditions := make([]string, len(filters))
	for i, sub := range filters {
		condition, err := q.where(sub)
		if err != nil {
			return "", err
		}
		conditions[i] = condition
	}
	return "(" + strings.Join(conditions, operator) + ")", nil
}

func (q *query) orderBy(sort []store.SortField) string {
	clauses := []string{}
	for _, f := range sort {
		direction := " ASC"
		if f.Descending {
			direction = " DESC"
		}
		clauses = append(clauses, property(f.Field)+direction)
	}
	clauses = append(clauses, "seq")
	return " ORDER BY " + strings.Join(clauses, ", ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

var _ store.Collection = (*Collection)(nil)
