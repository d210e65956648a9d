/*
Package backend builds a REST backend from a declarative JSON configuration.

The configuration lists the models. Each model is a schema of plain fields,
embedded lists, references and reference lists:

	{
	  "context": "/api",
	  "models": [
	    {
	      "name": "person",
	      "fields": [ { "name": "name", "type": "string", "required": true } ]
	    },
	    {
	      "name": "house",
	      "fields": [
	        { "name": "address", "type": "string", "required": true },
	        { "name": "rooms", "kind": "embedded", "schema": { "name": "room", "fields": [ { "name": "name", "type": "string" } ] } },
	        { "name": "ownerId", "kind": "reference", "ref": "person" },
	        { "name": "tenantIds", "kind": "reference_list", "ref": "person" }
	      ]
	    }
	  ]
	}

From this configuration the backend derives the resources

	/api/persons                       normal
	/api/houses                        normal
	/api/houses/{houseId}/rooms        sub, stored embedded in the house
	/api/houses/{houseId}/owner        ref, the person referenced by ownerId
	/api/houses/{houseId}/tenants      subRef, the persons referenced by tenantIds
	/api/persons/{personId}/houses     backRef, the houses referencing the person

and serves them together with

	GET /api/api-docs                  operation descriptors of all routes
	GET /api/statistics                document counts per model
	GET /version                       the build version
	GET /metrics                       prometheus metrics
*/
package backend

import (
	"context"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/docrest/core/bind"
	"github.com/relabs-tech/docrest/core/controller"
	"github.com/relabs-tech/docrest/core/docs"
	"github.com/relabs-tech/docrest/core/fixture"
	"github.com/relabs-tech/docrest/core/logger"
	"github.com/relabs-tech/docrest/core/metrics"
	"github.com/relabs-tech/docrest/core/notify"
	"github.com/relabs-tech/docrest/core/registry"
	"github.com/relabs-tech/docrest/core/resource"
	"github.com/relabs-tech/docrest/core/schema"
	"github.com/relabs-tech/docrest/core/store"
)

// Configuration is the JSON description of all models
type Configuration struct {
	// Context is the path prefix of all resource routes, e.g. "/api"
	Context string          `json:"context"`
	Models  []schema.Schema `json:"models"`
}

// Backend is the generic rest backend
type Backend struct {
	config      Configuration
	router      *mux.Router
	registry    *registry.Registry
	metrics     *metrics.Metrics
	resources   map[string]*resource.Resource
	ordered     []*resource.Resource
	controllers map[string]*controller.Controller
	hooks       map[string]bool
	routes      []bind.Route
	apis        []docs.API
}

// Builder is a builder helper for the Backend
type Builder struct {
	// Config is the JSON description of all models. This is mandatory.
	Config string
	// Store is the document store. It is mandatory unless Registry is set.
	Store store.Store
	// Registry resolves the models. If nil, a new registry on Store is created.
	Registry *registry.Registry
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// Notifier receives a notification after each successful change. This is optional.
	Notifier notify.Notifier
	// Controllers replace individual handlers of the resource with the given path,
	// e.g. "houses/rooms". This is optional.
	Controllers map[string]controller.Controller
	// CORS enables the CORS middleware
	CORS bool
	// RequestsPerSecond limits the rate of requests over all routes. 0 means no limit.
	RequestsPerSecond float64
	// Metrics collects the request metrics. If nil, new collectors are created.
	Metrics *metrics.Metrics
}

// New realizes the actual backend. It registers the models, walks their schemas
// to construct the resources and adds the routes to the router. Configuration
// errors panic.
func New(bb *Builder) *Backend {
	var config Configuration
	if err := json.Unmarshal([]byte(bb.Config), &config); err != nil {
		panic(fmt.Errorf("parse error in backend configuration: %s", err))
	}
	if bb.Router == nil {
		panic("Router is missing")
	}
	reg := bb.Registry
	if reg == nil {
		if bb.Store == nil {
			panic("Store is missing")
		}
		reg = registry.New(bb.Store)
	}
	m := bb.Metrics
	if m == nil {
		m = metrics.New()
	}

	b := &Backend{
		config:      config,
		router:      bb.Router,
		registry:    reg,
		metrics:     m,
		resources:   make(map[string]*resource.Resource),
		controllers: make(map[string]*controller.Controller),
		hooks:       make(map[string]bool),
	}

	ctx := context.Background()
	for i := range b.config.Models {
		s := &b.config.Models[i]
		if err := b.registry.Register(s); err != nil {
			panic(fmt.Errorf("cannot register model: %w", err))
		}
		if err := fixture.Check(s); err != nil {
			panic(err)
		}
	}
	for i := range b.config.Models {
		b.handleModel(ctx, &b.config.Models[i])
	}
	b.compileValidator()

	logger.AddRequestID(b.router)
	b.router.Use(b.metrics.Middleware)
	if bb.CORS {
		b.handleCORS()
	}
	if bb.RequestsPerSecond > 0 {
		b.handleRateLimit(bb.RequestsPerSecond)
	}

	var notifier notify.Notifier
	if bb.Notifier != nil {
		notifier = &countingNotifier{Notifier: bb.Notifier, metrics: b.metrics}
	}
	for _, r := range b.ordered {
		c := controller.New(r, controller.Options{Notifier: notifier})
		if override, ok := bb.Controllers[r.Key()]; ok {
			c.Override(override)
		}
		b.controllers[r.Key()] = c
		b.routes = append(b.routes, bind.Bind(b.router, b.config.Context, r, c)...)
		b.apis = append(b.apis, docs.Describe(r, c, b.config.Context)...)
	}
	for key := range bb.Controllers {
		if _, ok := b.resources[key]; !ok {
			panic(fmt.Errorf("controller for unknown resource %s", key))
		}
	}

	b.handleAPIDocs(b.router)
	b.handleStatistics(b.router)
	b.handleVersion(b.router)
	b.handleMetrics(b.router)
	return b
}

// handleModel creates the normal resource of a model and walks its schema
func (b *Backend) handleModel(ctx context.Context, s *schema.Schema) {
	model := b.resolve(ctx, s.Name)
	r, err := resource.New(resource.Options{Kind: resource.KindNormal, Model: model})
	if err != nil {
		panic(err)
	}
	b.add(r)
	b.walk(ctx, r, s, false)
}

// walk creates the child resources of parent for the fields of s. With embeddedOnly, references
// are not followed, which keeps the children of a ref resource finite.
func (b *Backend) walk(ctx context.Context, parent *resource.Resource, s *schema.Schema, embeddedOnly bool) {
	for i := range s.Fields {
		f := &s.Fields[i]
		switch f.FieldKind() {
		case schema.KindEmbedded:
			r, err := resource.New(resource.Options{
				Kind:      resource.KindSub,
				Parent:    parent,
				Schema:    f.Schema,
				Segment:   f.Segment(),
				FieldName: f.Name,
			})
			if err != nil {
				panic(fmt.Errorf("field %s of %s: %w", f.Name, s.Name, err))
			}
			b.add(r)
			b.walk(ctx, r, f.Schema, embeddedOnly)
		case schema.KindReference:
			if embeddedOnly {
				continue
			}
			model := b.resolve(ctx, f.Ref)
			r, err := resource.New(resource.Options{
				Kind:      resource.KindRef,
				Parent:    parent,
				Model:     model,
				Segment:   f.Segment(),
				FieldName: f.Name,
			})
			if err != nil {
				panic(fmt.Errorf("field %s of %s: %w", f.Name, s.Name, err))
			}
			b.add(r)
			b.walk(ctx, r, model.Schema, true)

			if parent.Kind == resource.KindNormal && f.HasBackReference() {
				// a second reference to the same model gets its own segment, e.g. persons/{personId}/houses-architect
				var segment string
				plural := parent.Model.Schema.PluralName()
				if _, ok := b.resources[model.Schema.PluralName()+"/"+plural]; ok {
					segment = plural + "-" + f.Segment()
					logger.Default().Debugf("back reference %s of %s is served as %s", f.Name, s.Name, segment)
				}
				backRef, err := resource.New(resource.Options{
					Kind:       resource.KindBackRef,
					Model:      parent.Model,
					Referenced: model,
					RefName:    f.Name,
					Segment:    segment,
				})
				if err != nil {
					panic(fmt.Errorf("field %s of %s: %w", f.Name, s.Name, err))
				}
				b.add(backRef)
			}
		case schema.KindReferenceList:
			if embeddedOnly {
				continue
			}
			r, err := resource.New(resource.Options{
				Kind:      resource.KindSubRef,
				Parent:    parent,
				Model:     b.resolve(ctx, f.Ref),
				Segment:   f.Segment(),
				FieldName: f.Name,
			})
			if err != nil {
				panic(fmt.Errorf("field %s of %s: %w", f.Name, s.Name, err))
			}
			b.add(r)
		}
	}
}

func (b *Backend) resolve(ctx context.Context, name string) *registry.Model {
	model, err := b.registry.Resolve(ctx, name)
	if err != nil {
		panic(err)
	}
	return model
}

// add registers r. Two resources with the same route are a configuration error.
func (b *Backend) add(r *resource.Resource) {
	route := r.ItemRoute(b.config.Context)
	for _, existing := range b.ordered {
		if existing.ItemRoute(b.config.Context) == route {
			panic(fmt.Errorf("resource %s (%s) duplicates the route %s of resource %s (%s)",
				r.Key(), r.Kind, route, existing.Key(), existing.Kind))
		}
	}
	if _, ok := b.resources[r.Key()]; ok {
		panic(fmt.Errorf("resource %s already exists", r.Key()))
	}
	b.resources[r.Key()] = r
	b.ordered = append(b.ordered, r)
}

// compileValidator compiles the schemas of all models, and of all sub resources
// under their key, into one validator shared by all resources
func (b *Backend) compileValidator() {
	schemas := make(map[string]*schema.Schema)
	for _, r := range b.ordered {
		if r.Kind == resource.KindNormal || r.Kind == resource.KindSub {
			schemas[r.SchemaID()] = r.Schema
		}
	}
	validator, err := schema.NewDocumentValidator(schemas)
	if err != nil {
		panic(fmt.Errorf("cannot compile schemas: %w", err))
	}
	for _, r := range b.ordered {
		r.Validator = validator
	}
}

// Router returns the router of the backend
func (b *Backend) Router() *mux.Router {
	return b.router
}

// Registry returns the model registry of the backend
func (b *Backend) Registry() *registry.Registry {
	return b.registry
}

// Metrics returns the metrics collectors of the backend
func (b *Backend) Metrics() *metrics.Metrics {
	return b.metrics
}

// Config returns the parsed configuration
func (b *Backend) Config() Configuration {
	return b.config
}

// Resource returns the resource with the given path, e.g. "houses/rooms"
func (b *Backend) Resource(path string) (*resource.Resource, bool) {
	r, ok := b.resources[path]
	return r, ok
}

// Resources returns the paths of all resources in alphabetical order
func (b *Backend) Resources() []string {
	keys := make([]string, 0, len(b.resources))
	for key := range b.resources {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Routes returns all registered resource routes in registration order
func (b *Backend) Routes() []bind.Route {
	return b.routes
}

// APIs returns the operation descriptors of all resource routes
func (b *Backend) APIs() []docs.API {
	return b.apis
}

// Seed generates count fixture documents for every model, in the order of the
// configuration. A count of 0 generates a random number of documents. It returns
// the number of generated documents per model.
func (b *Backend) Seed(ctx context.Context, seed int64, count int) (map[string]int, error) {
	generator := fixture.New(b.registry, seed)
	generated := make(map[string]int)
	for i := range b.config.Models {
		r := b.resources[b.config.Models[i].PluralName()]
		n, err := generator.Generate(ctx, r, count)
		generated[r.Key()] = n
		if err != nil {
			return generated, fmt.Errorf("cannot seed %s: %w", r.Key(), err)
		}
	}
	return generated, nil
}

// countingNotifier counts failed notifications
type countingNotifier struct {
	notify.Notifier
	metrics *metrics.Metrics
}

func (n *countingNotifier) Notify(ctx context.Context, notification notify.Notification) error {
	err := n.Notifier.Notify(ctx, notification)
	if err != nil {
		n.metrics.NotificationFailed()
	}
	return err
}
