// Package query translates request query parameters into storage filters, sort
// orders and projections, and shapes the documents returned to clients.
//
// Query parameters follow the conventions of DataTables:
//
//	fields=name,size                      projection
//	start=20&length=10                    paging, length=-1 means all
//	order[0][column]=1&order[0][dir]=desc sort by the second column
//	columns[1][data]=size                 the field of the second column
//	search[value]=kit                     case insensitive search over text columns
//	draw=3                                echoed back unchanged
//
// Dotted keys like order.0.column are accepted as well.
package query

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/relabs-tech/docrest/core"
	"github.com/relabs-tech/docrest/core/apierror"
	"github.com/relabs-tech/docrest/core/logger"
	"github.com/relabs-tech/docrest/core/schema"
	"github.com/relabs-tech/docrest/core/store"
)

// Helper builds queries for documents of one schema and applies the resource hooks
type Helper struct {
	schema *schema.Schema
	hooks  Hooks
}

// New returns a helper for documents following s
func New(s *schema.Schema) *Helper {
	return &Helper{schema: s}
}

// SetHooks installs the resource hooks. Must be called before requests are served.
func (h *Helper) SetHooks(hooks Hooks) {
	h.hooks = hooks
}

// Hooks returns the installed hooks
func (h *Helper) Hooks() Hooks {
	return h.hooks
}

// Schema returns the schema of the helper
func (h *Helper) Schema() *schema.Schema {
	return h.schema
}

type column struct {
	data       string
	name       string
	searchable string
}

// field returns the document property shown in the column
func (c *column) field() string {
	if c.data != "" {
		return c.data
	}
	return c.name
}

type order struct {
	column string
	dir    string
}

type tableParameters struct {
	columns map[int]*column
	orders  map[int]*order
	search  string
}

// splitKey splits "columns[0][data]" and "columns.0.data" alike into its parts
func splitKey(key string) []string {
	key = strings.NewReplacer("][", ".", "[", ".", "]", "").Replace(key)
	return strings.Split(key, ".")
}

func parseTableParameters(values url.Values) tableParameters {
	p := tableParameters{columns: map[int]*column{}, orders: map[int]*order{}}
	for key, vs := range values {
		if len(vs) == 0 {
			continue
		}
		value := vs[0]
		parts := splitKey(key)
		switch {
		case len(parts) == 2 && parts[0] == "search" && parts[1] == "value":
			p.search = value
		case len(parts) == 3 && parts[0] == "columns":
			i, err := strconv.Atoi(parts[1])
			if err != nil {
				continue
			}
			c, ok := p.columns[i]
			if !ok {
				c = &column{}
				p.columns[i] = c
			}
			switch parts[2] {
			case "data":
				c.data = value
			case "name":
				c.name = value
			case "searchable":
				c.searchable = value
			}
		case len(parts) == 3 && parts[0] == "order":
			i, err := strconv.Atoi(parts[1])
			if err != nil {
				continue
			}
			o, ok := p.orders[i]
			if !ok {
				o = &order{}
				p.orders[i] = o
			}
			switch parts[2] {
			case "column":
				o.column = value
			case "dir":
				o.dir = value
			}
		}
	}
	return p
}

func sortedKeys[T any](m map[int]T) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func parseInt64(values url.Values, name string) (*int64, error) {
	s := values.Get(name)
	if s == "" {
		return nil, nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, apierror.Validation("Parameter %s must be an integer", name)
	}
	if i < 0 {
		if name == "length" && i == -1 {
			return nil, nil
		}
		return nil, apierror.Validation("Parameter %s must not be negative", name)
	}
	return &i, nil
}

// QueryOptions returns skip, limit and sort order requested by values. Absent parameters
// leave the corresponding option unset.
func (h *Helper) QueryOptions(values url.Values) (store.FindOptions, error) {
	var opts store.FindOptions
	var err error
	if opts.Skip, err = parseInt64(values, "start"); err != nil {
		return opts, err
	}
	if opts.Limit, err = parseInt64(values, "length"); err != nil {
		return opts, err
	}

	p := parseTableParameters(values)
	for _, i := range sortedKeys(p.orders) {
		o := p.orders[i]
		index, err := strconv.Atoi(o.column)
		if err != nil {
			continue
		}
		c, ok := p.columns[index]
		if !ok || !h.schema.HasPath(c.field()) {
			continue
		}
		opts.Sort = append(opts.Sort, store.SortField{
			Field:      c.field(),
			Descending: strings.EqualFold(o.dir, "desc"),
		})
	}
	return opts, nil
}

// QueryConstraints returns the search filter requested by values. It is a case insensitive
// match of the search value against all text columns. It returns nil if there is no search
// value or no text column.
func (h *Helper) QueryConstraints(values url.Values) store.Filter {
	p := parseTableParameters(values)
	if p.search == "" {
		return nil
	}
	var or store.Or
	for _, i := range sortedKeys(p.columns) {
		c := p.columns[i]
		if c.searchable == "false" || !h.schema.IsText(c.field()) {
			continue
		}
		or = append(or, store.Contains{Field: c.field(), Value: p.search})
	}
	if len(or) == 0 {
		return nil
	}
	return or
}

// LimitOptions returns the projection requested with the fields parameter. Unknown fields
// are dropped, _id is always included. It returns nil if no known field was requested.
func (h *Helper) LimitOptions(values url.Values) store.Projection {
	fields := values.Get("fields")
	if fields == "" {
		return nil
	}
	projection := store.Projection{store.IDField}
	seen := map[string]bool{store.IDField: true}
	for _, field := range strings.Split(fields, ",") {
		field = strings.TrimSpace(field)
		if seen[field] || !h.schema.HasPath(field) {
			continue
		}
		seen[field] = true
		projection = append(projection, field)
	}
	if len(projection) == 1 && !strings.Contains(","+fields+",", ","+store.IDField+",") {
		return nil
	}
	return projection
}

// FilterQuery passes filter through the query hook. Any error of the hook is reported
// as forbidden.
func (h *Helper) FilterQuery(ctx context.Context, filter store.Filter) (store.Filter, error) {
	if h.hooks.Query == nil {
		return filter, nil
	}
	filtered, err := h.hooks.Query(ctx, filter)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Debugln("query rejected")
		return nil, apierror.Forbidden()
	}
	return filtered, nil
}

// Format passes all documents through the format hook and applies the projection. Documents
// for which the hook returns nil are dropped. The result is never nil.
func (h *Helper) Format(ctx context.Context, documents []store.Document, projection store.Projection) []store.Document {
	result := make([]store.Document, 0, len(documents))
	for _, doc := range documents {
		if formatted := h.FormatOne(ctx, doc, projection); formatted != nil {
			result = append(result, formatted)
		}
	}
	return result
}

// FormatOne passes a document through the format hook and applies the projection. It returns
// nil if the hook drops the document.
func (h *Helper) FormatOne(ctx context.Context, document store.Document, projection store.Projection) store.Document {
	if document == nil {
		return nil
	}
	if h.hooks.Format != nil {
		document = h.hooks.Format(ctx, document)
		if document == nil {
			return nil
		}
	}
	return document.Project(projection)
}

// Parse passes a request body through the parse hook. A hook error is reported as
// invalid input, a nil result as forbidden.
func (h *Helper) Parse(ctx context.Context, data store.Document, operation core.Operation) (store.Document, error) {
	if h.hooks.Parse == nil {
		return data, nil
	}
	parsed, err := h.hooks.Parse(ctx, data, operation)
	if err != nil {
		return nil, apierror.Validation("%s", err.Error())
	}
	if parsed == nil {
		return nil, apierror.Forbidden()
	}
	return parsed, nil
}

// CheckParams returns the values of the given identifier parameters from vars. A missing
// parameter is reported as invalid input.
func CheckParams(vars map[string]string, ids []string) ([]string, error) {
	params := make([]string, len(ids))
	for i, id := range ids {
		v := vars[id]
		if v == "" {
			return nil, apierror.Validation("Parameter %s is required", id)
		}
		params[i] = v
	}
	return params, nil
}
