// Package mongostore is a MongoDB storage driver. Identifiers are stored as strings
// in the _id property, embedded lists as BSON arrays.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/relabs-tech/docrest/core/logger"
	"github.com/relabs-tech/docrest/core/store"
)

// Store is a MongoDB store.Store
type Store struct {
	client   *mongo.Client
	database *mongo.Database
}

// Open connects to the MongoDB at uri and uses the named database
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("cannot ping mongo: %w", err)
	}
	logger.FromContext(ctx).Infoln("connected to mongo database", database)
	return &Store{client: client, database: client.Database(database)}, nil
}

// Collection implements store.Store
func (s *Store) Collection(ctx context.Context, name string) (store.Collection, error) {
	return &Collection{collection: s.database.Collection(name)}, nil
}

// Close implements store.Store
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Drop removes the whole database. Used by tests.
func (s *Store) Drop(ctx context.Context) error {
	return s.database.Drop(ctx)
}

// Collection is a MongoDB store.Collection
type Collection struct {
	collection *mongo.Collection
}

// Name implements store.Collection
func (c *Collection) Name() string {
	return c.collection.Name()
}

// Find implements store.Collection
func (c *Collection) Find(ctx context.Context, filter store.Filter, opts store.FindOptions) ([]store.Document, error) {
	findOptions := options.Find()
	if opts.Skip != nil {
		findOptions.SetSkip(*opts.Skip)
	}
	if opts.Limit != nil && *opts.Limit > 0 {
		findOptions.SetLimit(*opts.Limit)
	}
	if len(opts.Sort) > 0 {
		sort := bson.D{}
		for _, f := range opts.Sort {
			direction := 1
			if f.Descending {
				direction = -1
			}
			sort = append(sort, bson.E{Key: f.Field, Value: direction})
		}
		findOptions.SetSort(sort)
	}
	if len(opts.Projection) > 0 {
		findOptions.SetProjection(projection(opts.Projection))
	}

	query, err := translate(filter)
	if err != nil {
		return nil, err
	}
	cur, err := c.collection.Find(ctx, query, findOptions)
	if err != nil {
		return nil, fmt.Errorf("cannot find in %s: %w", c.Name(), err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("cannot decode from %s: %w", c.Name(), err)
	}
	docs := make([]store.Document, len(raw))
	for i, m := range raw {
		docs[i] = toDocument(m)
	}
	return docs, nil
}

// FindOne implements store.Collection
func (c *Collection) FindOne(ctx context.Context, filter store.Filter, p store.Projection) (store.Document, error) {
	findOptions := options.FindOne()
	if len(p) > 0 {
		findOptions.SetProjection(projection(p))
	}
	query, err := translate(filter)
	if err != nil {
		return nil, err
	}
	return c.decodeOne(c.collection.FindOne(ctx, query, findOptions))
}

// FindByID implements store.Collection
func (c *Collection) FindByID(ctx context.Context, id string) (store.Document, error) {
	return c.decodeOne(c.collection.FindOne(ctx, bson.M{store.IDField: id}))
}

// FindOneAndRemove implements store.Collection
func (c *Collection) FindOneAndRemove(ctx context.Context, filter store.Filter) (store.Document, error) {
	query, err := translate(filter)
	if err != nil {
		return nil, err
	}
	return c.decodeOne(c.collection.FindOneAndDelete(ctx, query))
}

func (c *Collection) decodeOne(result *mongo.SingleResult) (store.Document, error) {
	var m bson.M
	if err := result.Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("cannot decode from %s: %w", c.Name(), err)
	}
	return toDocument(m), nil
}

// Count implements store.Collection
func (c *Collection) Count(ctx context.Context, filter store.Filter) (int64, error) {
	query, err := translate(filter)
	if err != nil {
		return 0, err
	}
	count, err := c.collection.CountDocuments(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("cannot count %s: %w", c.Name(), err)
	}
	return count, nil
}

// Insert implements store.Collection
func (c *Collection) Insert(ctx context.Context, document store.Document) error {
	_, err := c.collection.InsertOne(ctx, map[string]interface{}(document))
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("cannot insert into %s: %w", c.Name(), err)
	}
	return nil
}

// Save implements store.Collection
func (c *Collection) Save(ctx context.Context, document store.Document) error {
	_, err := c.collection.ReplaceOne(ctx,
		bson.M{store.IDField: document.ID()},
		map[string]interface{}(document),
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("cannot save into %s: %w", c.Name(), err)
	}
	return nil
}

func projection(p store.Projection) bson.M {
	m := bson.M{}
	for _, field := range p {
		m[field] = 1
	}
	return m
}

// translate converts a filter into a MongoDB query document
func translate(filter store.Filter) (bson.M, error) {
	switch f := filter.(type) {
	case nil:
		return bson.M{}, nil
	case store.Eq:
		return bson.M{f.Field: f.Value}, nil
	case store.In:
		return bson.M{f.Field: bson.M{"$in": f.Values}}, nil
	case store.Contains:
		return bson.M{f.Field: primitive.Regex{Pattern: regexp.QuoteMeta(f.Value), Options: "i"}}, nil
	case store.And:
		if len(f) == 0 {
			return bson.M{}, nil
		}
		and, err := translateAll(f)
		if err != nil {
			return nil, err
		}
		return bson.M{"$and": and}, nil
	case store.Or:
		if len(f) == 0 {
			return bson.M{store.IDField: bson.M{"$in": bson.A{}}}, nil
		}
		or, err := translateAll(f)
		if err != nil {
			return nil, err
		}
		return bson.M{"$or": or}, nil
	}
	return nil, fmt.Errorf("%w %T", store.ErrUnsupportedFilter, filter)
}

func translateAll(filters []store.Filter) (bson.A, error) {
	a := bson.A{}
	for _, sub := range filters {
		m, err := translate(sub)
		if err != nil {
			return nil, err
		}
		a = append(a, m)
	}
	return a, nil
}

func toDocument(m bson.M) store.Document {
	return store.Document(normalize(m).(map[string]interface{}))
}

// normalize converts decoded BSON values into the plain maps and slices used by store.Document
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case bson.M:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = normalize(e)
		}
		return m
	case bson.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case bson.A:
		l := make([]interface{}, len(t))
		for i, e := range t {
			l[i] = normalize(e)
		}
		return l
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	}
	return v
}
