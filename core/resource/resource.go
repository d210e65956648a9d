// Package resource contains the resource model: the addressable nodes derived from
// the declared schemas, their identifier chains and their data access.
package resource

import (
	"context"
	"fmt"
	"strings"

	"github.com/relabs-tech/docrest/core"
	"github.com/relabs-tech/docrest/core/apierror"
	"github.com/relabs-tech/docrest/core/logger"
	"github.com/relabs-tech/docrest/core/query"
	"github.com/relabs-tech/docrest/core/registry"
	"github.com/relabs-tech/docrest/core/schema"
	"github.com/relabs-tech/docrest/core/store"
)

// Kind is the relationship kind of a resource
type Kind string

// all resource kinds
const (
	// KindNormal is a top level collection
	KindNormal Kind = "normal"
	// KindSub is a list of documents embedded in the parent document
	KindSub Kind = "sub"
	// KindRef is a single reference from the parent document to a document of another collection
	KindRef Kind = "ref"
	// KindSubRef is a list of references from the parent document
	KindSubRef Kind = "subRef"
	// KindBackRef lists all documents of a collection referencing a document of another collection
	KindBackRef Kind = "backRef"
)

// DataAccess locates the documents addressed by a resource. params are the path identifier
// values of the request in route order.
type DataAccess interface {
	GetOne(ctx context.Context, params []string) (store.Document, error)
	GetAll(ctx context.Context, params []string) ([]store.Document, error)
	SaveOne(ctx context.Context, document store.Document) (store.Document, error)
}

// Resource is one addressable node of the schema graph
type Resource struct {
	Path  []string
	Names []string
	IDs   []string
	Kind  Kind

	// Parent is the resource one level up. It is nil for normal and backRef resources.
	Parent   *Resource
	Children []*Resource

	// Model is the collection the resource reads from. It is nil for sub resources.
	Model  *registry.Model
	Schema *schema.Schema

	// FieldName is the property of the parent document holding the embedded list, the
	// reference or the reference list.
	FieldName string
	// RefName is the name of the referenced model for ref and subRef resources, and the
	// referencing property of the owning collection for backRef resources.
	RefName string

	// RequiredParamsCount is the number of identifiers needed to locate the collection
	RequiredParamsCount int

	Helper    *query.Helper
	Validator *schema.Validator

	kinds  []Kind
	access DataAccess
}

// Options configure a new resource
type Options struct {
	Kind   Kind
	Parent *Resource
	// Model is the collection of normal, ref, subRef and backRef resources
	Model *registry.Model
	// Referenced is the referenced model of a backRef resource, it provides the first path segment
	Referenced *registry.Model
	// Schema is the schema of embedded documents of a sub resource
	Schema *schema.Schema
	// Segment is the path segment of sub, ref and subRef resources. For backRef resources it
	// replaces the plural of the model as second segment.
	Segment string
	// Name is the singular name of the last segment. It defaults to the schema name for normal and
	// sub resources, the segment for ref resources and the singular segment otherwise.
	Name      string
	FieldName string
	RefName   string
	Validator *schema.Validator
}

// New creates a resource. Sub, ref and subRef resources are added to the children of their parent.
func New(opts Options) (*Resource, error) {
	r := &Resource{
		Kind:      opts.Kind,
		Parent:    opts.Parent,
		Model:     opts.Model,
		FieldName: opts.FieldName,
		RefName:   opts.RefName,
		Validator: opts.Validator,
	}

	switch opts.Kind {
	case KindNormal, KindBackRef:
		if opts.Parent != nil {
			return nil, fmt.Errorf("%s resource cannot have a parent", opts.Kind)
		}
		if opts.Model == nil {
			return nil, fmt.Errorf("%s resource needs a model", opts.Kind)
		}
	case KindSub, KindRef, KindSubRef:
		if opts.Parent == nil {
			return nil, fmt.Errorf("%s resource needs a parent", opts.Kind)
		}
		if opts.FieldName == "" {
			return nil, fmt.Errorf("%s resource needs a field name", opts.Kind)
		}
		if opts.Segment == "" {
			opts.Segment = opts.FieldName
		}
	default:
		return nil, fmt.Errorf("unknown resource kind %s", opts.Kind)
	}

	switch opts.Kind {
	case KindNormal:
		r.Schema = opts.Model.Schema
		r.Path = []string{opts.Model.Schema.PluralName()}
		r.Names = []string{nameOr(opts.Name, opts.Model.Name)}
		r.kinds = []Kind{KindNormal}
		r.access = &normalAccess{r}
	case KindBackRef:
		if opts.Referenced == nil || opts.RefName == "" {
			return nil, fmt.Errorf("backRef resource needs a referenced model and a reference name")
		}
		segment := opts.Segment
		if segment == "" {
			segment = opts.Model.Schema.PluralName()
		}
		r.Schema = opts.Model.Schema
		r.Path = []string{opts.Referenced.Schema.PluralName(), segment}
		r.Names = []string{opts.Referenced.Name, nameOr(opts.Name, opts.Model.Name)}
		r.kinds = []Kind{KindNormal, KindBackRef}
		r.access = &backRefAccess{r}
	case KindSub:
		if opts.Model != nil {
			return nil, fmt.Errorf("sub resource cannot have a model")
		}
		if opts.Schema == nil {
			return nil, fmt.Errorf("sub resource needs a schema")
		}
		r.Schema = opts.Schema
		r.Path = append(copyOf(opts.Parent.Path), opts.Segment)
		r.Names = append(copyOf(opts.Parent.Names), nameOr(opts.Name, opts.Schema.Name))
		r.kinds = append(append([]Kind{}, opts.Parent.kinds...), KindSub)
		r.access = &subAccess{r}
	case KindRef, KindSubRef:
		if opts.Model == nil {
			return nil, fmt.Errorf("%s resource needs a model", opts.Kind)
		}
		if r.RefName == "" {
			r.RefName = opts.Model.Name
		}
		r.Schema = opts.Model.Schema
		r.Path = append(copyOf(opts.Parent.Path), opts.Segment)
		name := core.Singular(opts.Segment)
		if opts.Kind == KindRef {
			name = opts.Segment
		}
		r.Names = append(copyOf(opts.Parent.Names), nameOr(opts.Name, name))
		r.kinds = append(append([]Kind{}, opts.Parent.kinds...), opts.Kind)
		if opts.Kind == KindRef {
			r.access = &refAccess{r}
		} else {
			r.access = &subRefAccess{r}
		}
	}

	r.IDs = make([]string, len(r.Names))
	for i, name := range r.Names {
		r.IDs[i] = core.IDName(name)
	}

	r.RequiredParamsCount = 1
	for current := r.Parent; current != nil; current = current.Parent {
		if current.Kind == KindSub {
			r.RequiredParamsCount++
		}
	}

	if r.Kind == KindSub && r.ClosestParentModelResource() == nil {
		return nil, fmt.Errorf("sub resource %s has no storage backed ancestor", r.Key())
	}

	r.Helper = query.New(r.Schema)
	if r.Parent != nil {
		r.Parent.Children = append(r.Parent.Children, r)
	}
	logger.Default().Debugln("create resource:", r.Key(), "kind:", r.Kind)
	return r, nil
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

func copyOf(s []string) []string {
	return append([]string{}, s...)
}

// Key returns the path of the resource joined with slashes, e.g. "houses/rooms". It identifies
// the resource for hooks and overrides.
func (r *Resource) Key() string {
	return strings.Join(r.Path, "/")
}

// Name returns the singular name of the resource
func (r *Resource) Name() string {
	return r.Names[len(r.Names)-1]
}

// HasPlaceholder returns true if segment i is addressed with an identifier. A ref resource
// on a non root position reuses the identifier of its parent.
func (r *Resource) HasPlaceholder(i int) bool {
	return i == 0 || r.kinds[i] != KindRef
}

func (r *Resource) placeholders(segments int) []string {
	var ids []string
	for i := 0; i < segments; i++ {
		if r.HasPlaceholder(i) {
			ids = append(ids, r.IDs[i])
		}
	}
	return ids
}

// CollectionIDs returns the identifier parameters needed to address the collection
func (r *Resource) CollectionIDs() []string {
	return r.placeholders(len(r.Path) - 1)
}

// ItemIDs returns the identifier parameters needed to address a single document
func (r *Resource) ItemIDs() []string {
	return r.placeholders(len(r.Path))
}

// CollectionRoute returns the route of the collection below context, with identifier
// placeholders in braces: /houses/{houseId}/rooms
func (r *Resource) CollectionRoute(context string) string {
	route := context
	last := len(r.Path) - 1
	for i := 0; i < last; i++ {
		route += "/" + r.Path[i]
		if r.HasPlaceholder(i) {
			route += "/{" + r.IDs[i] + "}"
		}
	}
	return route + "/" + r.Path[last]
}

// ItemRoute returns the route of a single document below context: /houses/{houseId}/rooms/{roomId}
func (r *Resource) ItemRoute(context string) string {
	return r.CollectionRoute(context) + "/{" + r.IDs[len(r.IDs)-1] + "}"
}

// SchemaID returns the ID of the JSON schema validating documents of the resource
func (r *Resource) SchemaID() string {
	if r.Model != nil {
		return r.Model.Name
	}
	return r.Key()
}

// ClosestModelResource returns the resource itself or its nearest ancestor with a model.
// Documents of sub resources are persisted through this resource.
func (r *Resource) ClosestModelResource() *Resource {
	current := r
	for current.Parent != nil && current.Model == nil {
		current = current.Parent
	}
	return current
}

// ClosestParentModelResource is like ClosestModelResource but starts at the parent. It returns
// nil for resources without parent.
func (r *Resource) ClosestParentModelResource() *Resource {
	if r.Parent == nil {
		return nil
	}
	return r.Parent.ClosestModelResource()
}

// Walk calls fn for the resource and all its descendants, depth first
func (r *Resource) Walk(fn func(*Resource)) {
	fn(r)
	for _, child := range r.Children {
		child.Walk(fn)
	}
}

// GetOne returns the document addressed by params
func (r *Resource) GetOne(ctx context.Context, params []string) (store.Document, error) {
	return r.access.GetOne(ctx, params)
}

// GetAll returns all documents of the collection addressed by params
func (r *Resource) GetAll(ctx context.Context, params []string) ([]store.Document, error) {
	return r.access.GetAll(ctx, params)
}

// SaveOne validates and stores a new document
func (r *Resource) SaveOne(ctx context.Context, document store.Document) (store.Document, error) {
	return r.access.SaveOne(ctx, document)
}

// Validate validates document against the schema of the resource
func (r *Resource) Validate(document store.Document) error {
	if r.Validator == nil || !r.Validator.HasSchema(r.SchemaID()) {
		return nil
	}
	err := r.Validator.ValidateDocument(map[string]interface{}(document), r.SchemaID())
	if schema.IsValidationError(err) {
		return apierror.Validation("%s", err.Error())
	}
	if err != nil {
		return apierror.Internal(err)
	}
	return nil
}

// Persist validates document and stores it as a whole in the collection of the resource
func (r *Resource) Persist(ctx context.Context, document store.Document) error {
	if r.Model == nil {
		return apierror.Internalf("resource %s has no model", r.Key())
	}
	if err := r.Validate(document); err != nil {
		return err
	}
	if err := r.Model.Collection.Save(ctx, document); err != nil {
		return apierror.Internal(err)
	}
	return nil
}

// Owner resolves the storage document of a sub resource and the document inside it which
// holds the embedded list. params are the identifiers of the collection. A missing document
// on the way is reported as not found.
func (r *Resource) Owner(ctx context.Context, params []string) (owner *Resource, ownerDocument, parentDocument store.Document, err error) {
	owner = r.ClosestParentModelResource()
	if owner == nil {
		return nil, nil, nil, apierror.Internalf("resource %s has no owner", r.Key())
	}
	var chain []*Resource
	for current := r.Parent; current != owner; current = current.Parent {
		chain = append([]*Resource{current}, chain...)
	}

	n := len(owner.ItemIDs())
	if len(params) < n+len(chain) {
		return nil, nil, nil, apierror.Internalf("resource %s: expected %d parameters, got %d", r.Key(), n+len(chain), len(params))
	}
	ownerDocument, err = owner.GetOne(ctx, params[:n])
	if err != nil {
		return nil, nil, nil, err
	}
	parentDocument = ownerDocument
	for i, sub := range chain {
		var ok bool
		parentDocument, ok = parentDocument.FindSub(sub.FieldName, params[n+i])
		if !ok {
			return nil, nil, nil, apierror.NotFound(sub.Name())
		}
	}
	return owner, ownerDocument, parentDocument, nil
}

// ItemFilter returns the filter selecting the document with the given identifier, narrowed
// by the query hook
func (r *Resource) ItemFilter(ctx context.Context, id string) (store.Filter, error) {
	var filter store.Filter = store.Eq{Field: store.IDField, Value: id}
	if r.Helper.Hooks().Query == nil {
		return filter, nil
	}
	filtered, err := r.Helper.FilterQuery(ctx, filter)
	if err != nil {
		return nil, err
	}
	// the hook may narrow the query but never drop the identifier
	return store.AndFilters(filter, filtered), nil
}

// BackRefFilter returns the filter selecting the documents referencing the document identified
// by params[0]
func (r *Resource) BackRefFilter(params []string) store.Filter {
	return store.Eq{Field: r.RefName, Value: params[0]}
}
