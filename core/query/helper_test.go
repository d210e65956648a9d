package query

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/docrest/core"
	"github.com/relabs-tech/docrest/core/apierror"
	"github.com/relabs-tech/docrest/core/pointers"
	"github.com/relabs-tech/docrest/core/schema"
	"github.com/relabs-tech/docrest/core/store"
)

var houseSchema = &schema.Schema{
	Name: "house",
	Fields: []schema.Field{
		{Name: "address", Type: schema.TypeString},
		{Name: "city", Type: schema.TypeString},
		{Name: "floors", Type: schema.TypeInteger},
		{Name: "ownerId", Kind: schema.KindReference, Ref: "person"},
	},
}

func values(t *testing.T, query string) url.Values {
	v, err := url.ParseQuery(query)
	require.NoError(t, err)
	return v
}

func TestQueryOptions(t *testing.T) {
	h := New(houseSchema)
	tests := []struct {
		name  string
		query string
		opts  store.FindOptions
	}{
		{"empty", "", store.FindOptions{}},
		{"paging", "start=20&length=10", store.FindOptions{Skip: pointers.Int64Ptr(20), Limit: pointers.Int64Ptr(10)}},
		{"zero", "start=0", store.FindOptions{Skip: pointers.Int64Ptr(0)}},
		{"all", "length=-1", store.FindOptions{}},
		{"order", "order[0][column]=1&order[0][dir]=desc&columns[0][data]=address&columns[1][data]=floors",
			store.FindOptions{Sort: []store.SortField{{Field: "floors", Descending: true}}}},
		{"dotted order", "order.0.column=0&columns.0.data=address",
			store.FindOptions{Sort: []store.SortField{{Field: "address"}}}},
		{"column name", "order[0][column]=0&columns[0][name]=city",
			store.FindOptions{Sort: []store.SortField{{Field: "city"}}}},
		{"multiple orders", "order[1][column]=0&order[0][column]=1&columns[0][data]=address&columns[1][data]=city",
			store.FindOptions{Sort: []store.SortField{{Field: "city"}, {Field: "address"}}}},
		{"unknown column", "order[0][column]=5&columns[0][data]=address", store.FindOptions{}},
		{"unknown field", "order[0][column]=0&columns[0][data]=color", store.FindOptions{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := h.QueryOptions(values(t, tt.query))
			require.NoError(t, err)
			assert.Equal(t, tt.opts, opts)
		})
	}

	for _, query := range []string{"start=x", "length=1.5", "start=-1", "length=-2"} {
		t.Run(query, func(t *testing.T) {
			_, err := h.QueryOptions(values(t, query))
			require.Error(t, err)
			assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
		})
	}
}

func TestQueryConstraints(t *testing.T) {
	h := New(houseSchema)
	tests := []struct {
		name   string
		query  string
		filter store.Filter
	}{
		{"no search", "columns[0][data]=address", nil},
		{"empty search", "search[value]=&columns[0][data]=address", nil},
		{"text columns", "search[value]=Main&columns[0][data]=address&columns[1][data]=floors&columns[2][data]=city",
			store.Or{store.Contains{Field: "address", Value: "Main"}, store.Contains{Field: "city", Value: "Main"}}},
		{"dotted", "search.value=Main&columns.0.data=city",
			store.Or{store.Contains{Field: "city", Value: "Main"}}},
		{"not searchable", "search[value]=Main&columns[0][data]=address&columns[0][searchable]=false", nil},
		{"no text column", "search[value]=3&columns[0][data]=floors&columns[1][data]=ownerId", nil},
		{"no columns", "search[value]=Main", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := h.QueryConstraints(values(t, tt.query))
			if tt.filter == nil {
				assert.Nil(t, filter)
				return
			}
			assert.Equal(t, tt.filter, filter)
		})
	}
}

func TestLimitOptions(t *testing.T) {
	h := New(houseSchema)
	tests := []struct {
		query      string
		projection store.Projection
	}{
		{"", nil},
		{"fields=address,color", store.Projection{"_id", "address"}},
		{"fields=address, city,address", store.Projection{"_id", "address", "city"}},
		{"fields=_id", store.Projection{"_id"}},
		{"fields=color", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.projection, h.LimitOptions(values(t, tt.query)))
		})
	}
}

func TestFormat(t *testing.T) {
	ctx := context.Background()
	h := New(houseSchema)
	docs := []store.Document{
		{"_id": "h1", "address": "Main Street 1", "city": "Berlin"},
		{"_id": "h2", "address": "Secret Street 2", "city": "Berlin"},
		{"_id": "h3", "address": "Side Street 3", "city": "Hamburg"},
	}

	// without hook only the projection applies
	formatted := h.Format(ctx, docs, store.Projection{"_id", "city"})
	assert.Equal(t, []store.Document{
		{"_id": "h1", "city": "Berlin"},
		{"_id": "h2", "city": "Berlin"},
		{"_id": "h3", "city": "Hamburg"},
	}, formatted)

	h.SetHooks(Hooks{Format: func(ctx context.Context, doc store.Document) store.Document {
		if doc["address"] == "Secret Street 2" {
			return nil
		}
		doc["label"] = doc["address"].(string) + ", " + doc["city"].(string)
		return doc
	}})
	formatted = h.Format(ctx, docs, store.Projection{"_id", "label"})
	assert.Equal(t, []store.Document{
		{"_id": "h1", "label": "Main Street 1, Berlin"},
		{"_id": "h3", "label": "Side Street 3, Hamburg"},
	}, formatted)

	assert.Nil(t, h.FormatOne(ctx, docs[1], nil))
	assert.NotNil(t, h.Format(ctx, nil, nil))
	assert.Len(t, h.Format(ctx, []store.Document{docs[1]}, nil), 0)
}

func TestFilterQuery(t *testing.T) {
	ctx := ContextWithRequest(context.Background(), Request{Resource: "houses", Operation: core.OperationList})
	h := New(houseSchema)
	base := store.Contains{Field: "address", Value: "main"}

	filter, err := h.FilterQuery(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, base, filter)

	h.SetHooks(Hooks{Query: func(ctx context.Context, filter store.Filter) (store.Filter, error) {
		request, ok := RequestFromContext(ctx)
		if !ok || request.Operation != core.OperationList {
			return nil, errors.New("only lists")
		}
		return store.AndFilters(filter, store.Eq{Field: "city", Value: "Berlin"}), nil
	}})
	filter, err = h.FilterQuery(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, store.And{base, store.Eq{Field: "city", Value: "Berlin"}}, filter)

	_, err = h.FilterQuery(context.Background(), base)
	require.Error(t, err)
	assert.Equal(t, apierror.KindForbidden, apierror.KindOf(err))
}

func TestParse(t *testing.T) {
	ctx := context.Background()
	h := New(houseSchema)
	data := store.Document{"address": "Main Street 1"}

	parsed, err := h.Parse(ctx, data, core.OperationCreate)
	require.NoError(t, err)
	assert.Equal(t, data, parsed)

	h.SetHooks(Hooks{Parse: func(ctx context.Context, data store.Document, op core.Operation) (store.Document, error) {
		switch data["address"] {
		case "invalid":
			return nil, errors.New("address is invalid")
		case "hidden":
			return nil, nil
		}
		data["city"] = "Berlin"
		return data, nil
	}})
	parsed, err = h.Parse(ctx, data, core.OperationCreate)
	require.NoError(t, err)
	assert.Equal(t, "Berlin", parsed["city"])

	_, err = h.Parse(ctx, store.Document{"address": "invalid"}, core.OperationCreate)
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
	assert.Equal(t, "address is invalid", err.Error())

	_, err = h.Parse(ctx, store.Document{"address": "hidden"}, core.OperationUpdate)
	assert.Equal(t, apierror.KindForbidden, apierror.KindOf(err))
}

func TestCheckParams(t *testing.T) {
	params, err := CheckParams(map[string]string{"houseId": "h1", "roomId": "r1"}, []string{"houseId", "roomId"})
	require.NoError(t, err)
	assert.Equal(t, []string{"h1", "r1"}, params)

	_, err = CheckParams(map[string]string{"houseId": "h1"}, []string{"houseId", "roomId"})
	require.Error(t, err)
	assert.Equal(t, "Parameter roomId is required", err.Error())
	assert.Equal(t, 400, apierror.StatusOf(err))
}
