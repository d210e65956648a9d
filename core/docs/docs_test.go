package docs

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/docrest/core/controller"
	"github.com/relabs-tech/docrest/core/registry"
	"github.com/relabs-tech/docrest/core/resource"
	"github.com/relabs-tech/docrest/core/schema"
	"github.com/relabs-tech/docrest/core/store/memory"
)

type fixture struct {
	houses, rooms, items, owner, housesOfPerson *resource.Resource
}

func newFixture(t *testing.T) *fixture {
	ctx := context.Background()
	itemSchema := &schema.Schema{Name: "item", Fields: []schema.Field{{Name: "label", Type: schema.TypeString}}}
	roomSchema := &schema.Schema{Name: "room", Fields: []schema.Field{
		{Name: "name", Type: schema.TypeString, Required: true},
		{Name: "items", Kind: schema.KindEmbedded, Schema: itemSchema},
	}}
	reg := registry.New(memory.New())
	require.NoError(t, reg.Register(&schema.Schema{Name: "person", Fields: []schema.Field{{Name: "name", Type: schema.TypeString}}}))
	require.NoError(t, reg.Register(&schema.Schema{Name: "house", Fields: []schema.Field{
		{Name: "address", Type: schema.TypeString, Required: true},
		{Name: "rooms", Kind: schema.KindEmbedded, Schema: roomSchema},
		{Name: "ownerId", Kind: schema.KindReference, Ref: "person"},
	}}))
	person, err := reg.Resolve(ctx, "person")
	require.NoError(t, err)
	house, err := reg.Resolve(ctx, "house")
	require.NoError(t, err)

	f := &fixture{}
	must := func(r *resource.Resource, err error) *resource.Resource {
		require.NoError(t, err)
		return r
	}
	f.houses = must(resource.New(resource.Options{Kind: resource.KindNormal, Model: house}))
	f.rooms = must(resource.New(resource.Options{Kind: resource.KindSub, Parent: f.houses, Schema: roomSchema, FieldName: "rooms"}))
	f.items = must(resource.New(resource.Options{Kind: resource.KindSub, Parent: f.rooms, Schema: itemSchema, FieldName: "items"}))
	f.owner = must(resource.New(resource.Options{Kind: resource.KindRef, Parent: f.houses, Model: person, FieldName: "ownerId", Segment: "owner"}))
	f.housesOfPerson = must(resource.New(resource.Options{Kind: resource.KindBackRef, Model: house, Referenced: person, RefName: "ownerId"}))
	return f
}

func describe(r *resource.Resource) []API {
	return Describe(r, controller.New(r, controller.Options{}), "/api")
}

func TestDescribeNormal(t *testing.T) {
	f := newFixture(t)
	apis := describe(f.houses)
	require.Len(t, apis, 5)

	var summaries, nicknames, methods []string
	for _, api := range apis {
		require.Len(t, api.Operations, 1)
		summaries = append(summaries, api.Operations[0].Summary)
		nicknames = append(nicknames, api.Operations[0].Nickname)
		methods = append(methods, api.Operations[0].Method)
	}
	assert.Equal(t, []string{"Get all houses", "Create new house", "Get one house", "Save house", "Delete house"}, summaries)
	assert.Equal(t, []string{"api_houses_index", "api_houses_create", "api_houses_houseId_one",
		"api_houses_houseId_update", "api_houses_houseId_remove"}, nicknames)
	assert.Equal(t, []string{http.MethodGet, http.MethodPost, http.MethodGet, http.MethodPut, http.MethodDelete}, methods)

	assert.Equal(t, "/api/houses", apis[0].Path)
	assert.Equal(t, []Param{
		{Name: "fields", ParamType: ParamQuery},
		{Name: "start", ParamType: ParamQuery},
		{Name: "length", ParamType: ParamQuery},
	}, apis[0].Operations[0].Parameters)

	assert.Equal(t, []Param{
		{Name: "address", Required: true, ParamType: ParamForm},
		{Name: "rooms", ParamType: ParamForm},
		{Name: "ownerId", ParamType: ParamForm},
	}, apis[1].Operations[0].Parameters)

	assert.Equal(t, "/api/houses/{houseId}", apis[3].Path)
	assert.Equal(t, []Param{
		{Name: "houseId", Required: true, ParamType: ParamPath},
		{Name: "address", ParamType: ParamForm},
		{Name: "rooms", ParamType: ParamForm},
		{Name: "ownerId", ParamType: ParamForm},
	}, apis[3].Operations[0].Parameters)
}

func TestDescribeKinds(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name      string
		r         *resource.Resource
		summaries []string
	}{
		{"sub", f.items, []string{
			"Get all items from house as houses[houseId].rooms[roomId]",
			"Create new item in house as houses[houseId].rooms[roomId]",
			"Get one item in house as houses[houseId].rooms[roomId]",
			"Save item in house as houses[houseId].rooms[roomId]",
			"Delete items from house as houses[houseId].rooms[roomId]",
		}},
		{"ref", f.owner, []string{"Get owner referenced by house as houses[houseId]"}},
		{"backRef", f.housesOfPerson, []string{"Get all houses referenced by person as persons[personId]"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var summaries []string
			for _, api := range describe(tt.r) {
				summaries = append(summaries, api.Operations[0].Summary)
			}
			assert.Equal(t, tt.summaries, summaries)
		})
	}

	refIndex := describe(f.owner)[0].Operations[0]
	assert.Equal(t, []Param{
		{Name: "houseId", Required: true, ParamType: ParamPath},
		{Name: "fields", ParamType: ParamQuery},
	}, refIndex.Parameters)
	assert.Equal(t, "api_houses_houseId_owner_index", refIndex.Nickname)

	itemRemove := describe(f.items)[4].Operations[0]
	assert.Equal(t, "/api/houses/{houseId}/rooms/{roomId}/items/{itemId}", describe(f.items)[4].Path)
	assert.Equal(t, []Param{
		{Name: "houseId", Required: true, ParamType: ParamPath},
		{Name: "roomId", Required: true, ParamType: ParamPath},
		{Name: "itemId", Required: true, ParamType: ParamPath},
	}, itemRemove.Parameters)
}

func TestDescribeFollowsController(t *testing.T) {
	f := newFixture(t)
	c := controller.New(f.houses, controller.Options{})
	c.Create = nil
	c.Remove = nil
	for _, api := range Describe(f.houses, c, "") {
		for _, op := range api.Operations {
			assert.NotEqual(t, http.MethodPost, op.Method)
			assert.NotEqual(t, http.MethodDelete, op.Method)
		}
	}
	assert.Empty(t, Describe(f.houses, &controller.Controller{}, ""))
}
