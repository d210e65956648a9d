// Package storetest contains a conformance test shared by all storage drivers.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/docrest/core/pointers"
	"github.com/relabs-tech/docrest/core/store"
)

// Run exercises all operations of store.Collection against s. The collection name
// should be unique per run, drivers do not clear existing data.
func Run(t *testing.T, s store.Store, collection string) {
	ctx := context.Background()
	c, err := s.Collection(ctx, collection)
	require.NoError(t, err)
	assert.Equal(t, collection, c.Name())

	houses := []store.Document{
		{"_id": "h1", "address": "Main Street 1", "floors": 1.0, "ownerId": "p1"},
		{"_id": "h2", "address": "Side Street 2", "floors": 3.0, "ownerId": "p2"},
		{"_id": "h3", "address": "main street 3", "floors": 2.0, "ownerId": "p1",
			"rooms": []interface{}{map[string]interface{}{"_id": "r1", "name": "Kitchen"}}},
	}
	for _, h := range houses {
		require.NoError(t, c.Insert(ctx, h))
	}
	assert.ErrorIs(t, c.Insert(ctx, store.Document{"_id": "h1"}), store.ErrDuplicate)

	t.Run("count", func(t *testing.T) {
		count, err := c.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)

		count, err = c.Count(ctx, store.Eq{Field: "ownerId", Value: "p1"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		count, err = c.Count(ctx, store.Or{})
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})

	t.Run("find", func(t *testing.T) {
		docs, err := c.Find(ctx, store.Or{
			store.Contains{Field: "address", Value: "MAIN"},
			store.Eq{Field: "_id", Value: "h2"},
		}, store.FindOptions{
			Sort:       []store.SortField{{Field: "floors", Descending: true}},
			Projection: store.Projection{"_id", "floors"},
		})
		require.NoError(t, err)
		require.Len(t, docs, 3)
		assert.Equal(t, []string{"h2", "h3", "h1"}, ids(docs))
		_, hasAddress := docs[0]["address"]
		assert.False(t, hasAddress)

		docs, err = c.Find(ctx, store.In{Field: "_id", Values: []interface{}{"h1", "h3", "h9"}}, store.FindOptions{
			Sort:  []store.SortField{{Field: "_id"}},
			Skip:  pointers.Int64Ptr(1),
			Limit: pointers.Int64Ptr(5),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"h3"}, ids(docs))
		rooms := docs[0].SubList("rooms")
		require.Len(t, rooms, 1)
		assert.Equal(t, "Kitchen", rooms[0]["name"])

		// a zero limit does not limit
		docs, err = c.Find(ctx, nil, store.FindOptions{
			Sort:  []store.SortField{{Field: "_id"}},
			Limit: pointers.Int64Ptr(0),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"h1", "h2", "h3"}, ids(docs))

		docs, err = c.Find(ctx, store.And{
			store.Eq{Field: "ownerId", Value: "p1"},
			store.Contains{Field: "address", Value: "street 1"},
		}, store.FindOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"h1"}, ids(docs))
	})

	t.Run("find one", func(t *testing.T) {
		doc, err := c.FindOne(ctx, store.Eq{Field: "_id", Value: "h2"}, store.Projection{"_id", "address"})
		require.NoError(t, err)
		assert.Equal(t, store.Document{"_id": "h2", "address": "Side Street 2"}, doc)

		_, err = c.FindOne(ctx, store.Eq{Field: "_id", Value: "h9"}, nil)
		assert.ErrorIs(t, err, store.ErrNotFound)

		_, err = c.FindByID(ctx, "h9")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("save", func(t *testing.T) {
		doc, err := c.FindByID(ctx, "h3")
		require.NoError(t, err)
		doc.AppendSub("rooms", store.Document{"_id": "r2", "name": "Bath"})
		doc["address"] = "Main Street 3a"
		require.NoError(t, c.Save(ctx, doc))

		saved, err := c.FindByID(ctx, "h3")
		require.NoError(t, err)
		assert.Equal(t, "Main Street 3a", saved["address"])
		assert.Len(t, saved.SubList("rooms"), 2)

		require.NoError(t, c.Save(ctx, store.Document{"_id": "h4", "address": "New Street 4"}))
		count, err := c.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(4), count)
	})

	t.Run("remove", func(t *testing.T) {
		removed, err := c.FindOneAndRemove(ctx, store.Eq{Field: "_id", Value: "h1"})
		require.NoError(t, err)
		assert.Equal(t, "h1", removed.ID())

		_, err = c.FindByID(ctx, "h1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = c.FindOneAndRemove(ctx, store.Eq{Field: "_id", Value: "h1"})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func ids(docs []store.Document) []string {
	result := []string{}
	for _, doc := range docs {
		result = append(result, doc.ID())
	}
	return result
}
