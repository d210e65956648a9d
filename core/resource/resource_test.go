package resource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/docrest/core/apierror"
	"github.com/relabs-tech/docrest/core/query"
	"github.com/relabs-tech/docrest/core/registry"
	"github.com/relabs-tech/docrest/core/schema"
	"github.com/relabs-tech/docrest/core/store"
	"github.com/relabs-tech/docrest/core/store/memory"
)

var (
	itemSchema = &schema.Schema{Name: "item", Fields: []schema.Field{
		{Name: "label", Type: schema.TypeString},
	}}
	roomSchema = &schema.Schema{Name: "room", Fields: []schema.Field{
		{Name: "name", Type: schema.TypeString},
		{Name: "items", Kind: schema.KindEmbedded, Schema: itemSchema},
		{Name: "designerId", Kind: schema.KindReference, Ref: "person"},
	}}
	carSchema    = &schema.Schema{Name: "car", Fields: []schema.Field{{Name: "model", Type: schema.TypeString}}}
	personSchema = &schema.Schema{Name: "person", Fields: []schema.Field{
		{Name: "name", Type: schema.TypeString, Required: true},
		{Name: "cars", Kind: schema.KindEmbedded, Schema: carSchema},
	}}
	houseSchema = &schema.Schema{Name: "house", Fields: []schema.Field{
		{Name: "address", Type: schema.TypeString, Required: true},
		{Name: "rooms", Kind: schema.KindEmbedded, Schema: roomSchema},
		{Name: "ownerId", Kind: schema.KindReference, Ref: "person"},
		{Name: "tenantIds", Kind: schema.KindReferenceList, Ref: "person"},
	}}
)

type fixture struct {
	houses, rooms, items, designer, owner, cars, tenants, housesOfPerson *Resource
}

func newFixture(t *testing.T) *fixture {
	ctx := context.Background()
	reg := registry.New(memory.New())
	require.NoError(t, reg.Register(personSchema))
	require.NoError(t, reg.Register(houseSchema))
	person, err := reg.Resolve(ctx, "person")
	require.NoError(t, err)
	house, err := reg.Resolve(ctx, "house")
	require.NoError(t, err)
	validator, err := schema.NewDocumentValidator(map[string]*schema.Schema{"house": houseSchema, "person": personSchema})
	require.NoError(t, err)

	for _, doc := range []store.Document{
		{"_id": "p1", "name": "Ann", "cars": []interface{}{map[string]interface{}{"_id": "c1", "model": "Beetle"}}},
		{"_id": "p2", "name": "Bob"},
	} {
		require.NoError(t, person.Collection.Insert(ctx, doc))
	}
	for _, doc := range []store.Document{
		{"_id": "h1", "address": "Main Street 1", "ownerId": "p1", "tenantIds": []interface{}{"p1", "p2"},
			"rooms": []interface{}{map[string]interface{}{"_id": "r1", "name": "Kitchen", "designerId": "p2",
				"items": []interface{}{map[string]interface{}{"_id": "i1", "label": "Stove"}}}}},
		{"_id": "h2", "address": "Side Street 2", "ownerId": "p2"},
		{"_id": "h3", "address": "Lost Street 3", "ownerId": "p9"},
		{"_id": "h4", "address": "Empty Street 4"},
	} {
		require.NoError(t, house.Collection.Insert(ctx, doc))
	}

	f := &fixture{}
	must := func(r *Resource, err error) *Resource {
		require.NoError(t, err)
		return r
	}
	f.houses = must(New(Options{Kind: KindNormal, Model: house, Validator: validator}))
	f.rooms = must(New(Options{Kind: KindSub, Parent: f.houses, Schema: roomSchema, FieldName: "rooms"}))
	f.items = must(New(Options{Kind: KindSub, Parent: f.rooms, Schema: itemSchema, FieldName: "items"}))
	f.designer = must(New(Options{Kind: KindRef, Parent: f.rooms, Model: person, FieldName: "designerId", Segment: "designer"}))
	f.owner = must(New(Options{Kind: KindRef, Parent: f.houses, Model: person, FieldName: "ownerId", Segment: "owner", Validator: validator}))
	f.cars = must(New(Options{Kind: KindSub, Parent: f.owner, Schema: carSchema, FieldName: "cars"}))
	f.tenants = must(New(Options{Kind: KindSubRef, Parent: f.houses, Model: person, FieldName: "tenantIds", Segment: "tenants"}))
	f.housesOfPerson = must(New(Options{Kind: KindBackRef, Model: house, Referenced: person, RefName: "ownerId"}))
	return f
}

func TestAddressing(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name          string
		r             *Resource
		path          []string
		ids           []string
		required      int
		collectionIDs []string
		collection    string
		item          string
	}{
		{"houses", f.houses, []string{"houses"}, []string{"houseId"}, 1, nil,
			"/api/houses", "/api/houses/{houseId}"},
		{"rooms", f.rooms, []string{"houses", "rooms"}, []string{"houseId", "roomId"}, 1, []string{"houseId"},
			"/api/houses/{houseId}/rooms", "/api/houses/{houseId}/rooms/{roomId}"},
		{"items", f.items, []string{"houses", "rooms", "items"}, []string{"houseId", "roomId", "itemId"}, 2, []string{"houseId", "roomId"},
			"/api/houses/{houseId}/rooms/{roomId}/items", "/api/houses/{houseId}/rooms/{roomId}/items/{itemId}"},
		{"designer", f.designer, []string{"houses", "rooms", "designer"}, []string{"houseId", "roomId", "designerId"}, 2, []string{"houseId", "roomId"},
			"/api/houses/{houseId}/rooms/{roomId}/designer", "/api/houses/{houseId}/rooms/{roomId}/designer/{designerId}"},
		{"owner", f.owner, []string{"houses", "owner"}, []string{"houseId", "ownerId"}, 1, []string{"houseId"},
			"/api/houses/{houseId}/owner", "/api/houses/{houseId}/owner/{ownerId}"},
		{"cars", f.cars, []string{"houses", "owner", "cars"}, []string{"houseId", "ownerId", "carId"}, 1, []string{"houseId"},
			"/api/houses/{houseId}/owner/cars", "/api/houses/{houseId}/owner/cars/{carId}"},
		{"tenants", f.tenants, []string{"houses", "tenants"}, []string{"houseId", "tenantId"}, 1, []string{"houseId"},
			"/api/houses/{houseId}/tenants", "/api/houses/{houseId}/tenants/{tenantId}"},
		{"back reference", f.housesOfPerson, []string{"persons", "houses"}, []string{"personId", "houseId"}, 1, []string{"personId"},
			"/api/persons/{personId}/houses", "/api/persons/{personId}/houses/{houseId}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.path, tt.r.Path)
			assert.Equal(t, tt.ids, tt.r.IDs)
			assert.Equal(t, len(tt.r.Path), len(tt.r.IDs))
			assert.Equal(t, tt.required, tt.r.RequiredParamsCount)
			assert.Equal(t, tt.collectionIDs, tt.r.CollectionIDs())
			if tt.r.Kind != KindNormal {
				assert.Len(t, tt.r.CollectionIDs(), tt.r.RequiredParamsCount)
			}
			assert.Equal(t, tt.collection, tt.r.CollectionRoute("/api"))
			assert.Equal(t, tt.item, tt.r.ItemRoute("/api"))
		})
	}

	assert.Equal(t, []*Resource{f.rooms, f.owner, f.tenants}, f.houses.Children)
	assert.Equal(t, "houses/owner/cars", f.cars.Key())
	assert.Equal(t, "car", f.cars.Name())

	var keys []string
	f.houses.Walk(func(r *Resource) { keys = append(keys, r.Key()) })
	assert.Equal(t, []string{"houses", "houses/rooms", "houses/rooms/items", "houses/rooms/designer",
		"houses/owner", "houses/owner/cars", "houses/tenants"}, keys)
}

func TestClosestModelResource(t *testing.T) {
	f := newFixture(t)
	assert.Same(t, f.houses, f.houses.ClosestModelResource())
	assert.Same(t, f.houses, f.rooms.ClosestModelResource())
	assert.Same(t, f.houses, f.items.ClosestModelResource())
	assert.Same(t, f.designer, f.designer.ClosestModelResource())
	assert.Same(t, f.owner, f.cars.ClosestModelResource())

	assert.Nil(t, f.houses.ClosestParentModelResource())
	assert.Same(t, f.houses, f.items.ClosestParentModelResource())
	assert.Same(t, f.houses, f.designer.ClosestParentModelResource())
	assert.Same(t, f.owner, f.cars.ClosestParentModelResource())
}

func assertNotFound(t *testing.T, err error, message string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, apierror.KindNotFound, apierror.KindOf(err))
	assert.Equal(t, message, err.Error())
}

func TestGetOne(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	doc, err := f.houses.GetOne(ctx, []string{"h1"})
	require.NoError(t, err)
	assert.Equal(t, "Main Street 1", doc["address"])
	_, err = f.houses.GetOne(ctx, []string{"h9"})
	assertNotFound(t, err, "house not found")

	doc, err = f.rooms.GetOne(ctx, []string{"h1", "r1"})
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", doc["name"])
	_, err = f.rooms.GetOne(ctx, []string{"h1", "r9"})
	assertNotFound(t, err, "room not found")
	_, err = f.rooms.GetOne(ctx, []string{"h9", "r1"})
	assertNotFound(t, err, "house not found")
	_, err = f.rooms.GetOne(ctx, []string{"h2", "r1"})
	assertNotFound(t, err, "room not found")

	doc, err = f.items.GetOne(ctx, []string{"h1", "r1", "i1"})
	require.NoError(t, err)
	assert.Equal(t, "Stove", doc["label"])

	doc, err = f.designer.GetOne(ctx, []string{"h1", "r1"})
	require.NoError(t, err)
	assert.Equal(t, "Bob", doc["name"])

	doc, err = f.owner.GetOne(ctx, []string{"h2"})
	require.NoError(t, err)
	assert.Equal(t, "Bob", doc["name"])
	_, err = f.owner.GetOne(ctx, []string{"h3"})
	assertNotFound(t, err, "owner not found")
	_, err = f.owner.GetOne(ctx, []string{"h4"})
	assertNotFound(t, err, "owner not found")

	doc, err = f.cars.GetOne(ctx, []string{"h1", "c1"})
	require.NoError(t, err)
	assert.Equal(t, "Beetle", doc["model"])
}

func TestGetAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	docs, err := f.houses.GetAll(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, docs, 4)

	docs, err = f.rooms.GetAll(ctx, []string{"h1"})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	docs, err = f.rooms.GetAll(ctx, []string{"h2"})
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Len(t, docs, 0)

	docs, err = f.cars.GetAll(ctx, []string{"h2"})
	require.NoError(t, err)
	assert.Len(t, docs, 0)

	docs, err = f.tenants.GetAll(ctx, []string{"h1"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	docs, err = f.tenants.GetAll(ctx, []string{"h2"})
	require.NoError(t, err)
	assert.Len(t, docs, 0)
	_, err = f.tenants.GetAll(ctx, []string{"h9"})
	assertNotFound(t, err, "house not found")

	docs, err = f.housesOfPerson.GetAll(ctx, []string{"p1"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "h1", docs[0].ID())
}

func TestUnsupported(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for name, err := range map[string]error{
		"sub save":     second(f.rooms.SaveOne(ctx, store.Document{})),
		"ref all":      second(f.owner.GetAll(ctx, []string{"h1"})),
		"subRef one":   second(f.tenants.GetOne(ctx, []string{"h1"})),
		"backRef one":  second(f.housesOfPerson.GetOne(ctx, []string{"p1"})),
		"backRef save": second(f.housesOfPerson.SaveOne(ctx, store.Document{})),
		"subRef save":  second(f.tenants.SaveOne(ctx, store.Document{})),
		"ref save":     second(f.owner.SaveOne(ctx, store.Document{})),
	} {
		t.Run(name, func(t *testing.T) {
			require.Error(t, err)
			assert.Equal(t, apierror.KindInternal, apierror.KindOf(err))
		})
	}
}

func second[T any](_ T, err error) error {
	return err
}

func TestSaveOne(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	doc, err := f.houses.SaveOne(ctx, store.Document{"address": "New Street 5"})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID())
	count, _ := f.houses.Model.Collection.Count(ctx, nil)
	assert.Equal(t, int64(5), count)

	_, err = f.houses.SaveOne(ctx, store.Document{"floors": 3})
	require.Error(t, err)
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
	count, _ = f.houses.Model.Collection.Count(ctx, nil)
	assert.Equal(t, int64(5), count)

	doc["address"] = "Renamed Street 5"
	_, err = f.houses.SaveOne(ctx, doc)
	require.NoError(t, err)
	saved, _ := f.houses.GetOne(ctx, []string{doc.ID()})
	assert.Equal(t, "Renamed Street 5", saved["address"])
}

func TestOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	owner, ownerDoc, parentDoc, err := f.items.Owner(ctx, []string{"h1", "r1"})
	require.NoError(t, err)
	assert.Same(t, f.houses, owner)
	assert.Equal(t, "h1", ownerDoc.ID())
	assert.Equal(t, "r1", parentDoc.ID())

	// the parent document is part of the owner document
	parentDoc.AppendSub("items", store.Document{"_id": "i2", "label": "Sink"})
	room, _ := ownerDoc.FindSub("rooms", "r1")
	assert.Len(t, room.SubList("items"), 2)

	_, _, _, err = f.items.Owner(ctx, []string{"h1", "r9"})
	assertNotFound(t, err, "room not found")
	_, _, _, err = f.items.Owner(ctx, []string{"h9", "r1"})
	assertNotFound(t, err, "house not found")

	owner, ownerDoc, parentDoc, err = f.rooms.Owner(ctx, []string{"h2"})
	require.NoError(t, err)
	assert.Same(t, f.houses, owner)
	assert.Equal(t, "h2", parentDoc.ID())

	owner, ownerDoc, _, err = f.cars.Owner(ctx, []string{"h1"})
	require.NoError(t, err)
	assert.Same(t, f.owner, owner)
	assert.Equal(t, "p1", ownerDoc.ID())

	delete(ownerDoc, "name")
	err = owner.Persist(ctx, ownerDoc)
	assert.Equal(t, apierror.KindValidation, apierror.KindOf(err))
}

func TestQueryHook(t *testing.T) {
	f := newFixture(t)
	f.houses.Helper.SetHooks(query.Hooks{Query: func(ctx context.Context, filter store.Filter) (store.Filter, error) {
		if _, ok := query.RequestFromContext(ctx); !ok {
			return nil, errors.New("no request")
		}
		return store.Eq{Field: "ownerId", Value: "p1"}, nil
	}})

	_, err := f.houses.GetOne(context.Background(), []string{"h1"})
	assert.Equal(t, apierror.KindForbidden, apierror.KindOf(err))

	ctx := query.ContextWithRequest(context.Background(), query.Request{Resource: "houses"})
	doc, err := f.houses.GetOne(ctx, []string{"h1"})
	require.NoError(t, err)
	assert.Equal(t, "h1", doc.ID())

	// the hook narrows the query, it cannot widen it to another document
	_, err = f.houses.GetOne(ctx, []string{"h2"})
	assertNotFound(t, err, "house not found")

	// resolving sub documents goes through the parent hook
	_, err = f.rooms.GetOne(context.Background(), []string{"h1", "r1"})
	assert.Equal(t, apierror.KindForbidden, apierror.KindOf(err))
}

func TestInvalidOptions(t *testing.T) {
	f := newFixture(t)
	for name, opts := range map[string]Options{
		"unknown kind":       {Kind: "graph"},
		"normal with parent": {Kind: KindNormal, Parent: f.houses, Model: f.houses.Model},
		"normal no model":    {Kind: KindNormal},
		"sub no parent":      {Kind: KindSub, Schema: roomSchema, FieldName: "rooms"},
		"sub no schema":      {Kind: KindSub, Parent: f.houses, FieldName: "rooms"},
		"sub with model":     {Kind: KindSub, Parent: f.houses, FieldName: "rooms", Schema: roomSchema, Model: f.houses.Model},
		"ref no model":       {Kind: KindRef, Parent: f.houses, FieldName: "ownerId"},
		"ref no field":       {Kind: KindRef, Parent: f.houses, Model: f.owner.Model},
		"backRef no ref":     {Kind: KindBackRef, Model: f.houses.Model},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := New(opts)
			assert.Error(t, err)
		})
	}
}
