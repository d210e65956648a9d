// Package controller implements the REST handlers of a resource. The handler set
// depends on the kind of the resource:
//
//	normal   index, one, create, update, remove on the collection
//	sub      index, one, create, update, remove on the list embedded in the parent
//	ref      index, returns the single referenced document
//	subRef   index, lists the referenced documents
//	backRef  index, lists the documents referencing the parent
//
// All handlers answer with the envelope of package envelope.
package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/docrest/core"
	"github.com/relabs-tech/docrest/core/apierror"
	"github.com/relabs-tech/docrest/core/envelope"
	"github.com/relabs-tech/docrest/core/logger"
	"github.com/relabs-tech/docrest/core/notify"
	"github.com/relabs-tech/docrest/core/query"
	"github.com/relabs-tech/docrest/core/resource"
	"github.com/relabs-tech/docrest/core/store"
)

// Controller holds the handlers of a resource. A nil handler is not routed.
type Controller struct {
	// Index handles GET on the collection
	Index http.HandlerFunc
	// One handles GET on a single document
	One http.HandlerFunc
	// Create handles POST on the collection
	Create http.HandlerFunc
	// Update handles PUT on a single document
	Update http.HandlerFunc
	// Remove handles DELETE on a single document
	Remove http.HandlerFunc
}

// Options configure the handlers of a controller
type Options struct {
	// Notifier receives a notification after each successful change. Optional.
	Notifier notify.Notifier
}

// Override replaces the handlers of c with the non nil handlers of o
func (c *Controller) Override(o Controller) {
	if o.Index != nil {
		c.Index = o.Index
	}
	if o.One != nil {
		c.One = o.One
	}
	if o.Create != nil {
		c.Create = o.Create
	}
	if o.Update != nil {
		c.Update = o.Update
	}
	if o.Remove != nil {
		c.Remove = o.Remove
	}
}

type controller struct {
	r        *resource.Resource
	notifier notify.Notifier
}

// New returns the controller for r
func New(r *resource.Resource, opts Options) *Controller {
	c := &controller{r: r, notifier: opts.Notifier}
	collection := r.CollectionIDs()
	item := r.ItemIDs()

	switch r.Kind {
	case resource.KindNormal:
		return &Controller{
			Index:  c.wrap(core.OperationList, collection, c.normalIndex),
			One:    c.wrap(core.OperationRead, item, c.normalOne),
			Create: c.wrap(core.OperationCreate, collection, c.normalCreate),
			Update: c.wrap(core.OperationUpdate, item, c.normalUpdate),
			Remove: c.wrap(core.OperationDelete, item, c.normalRemove),
		}
	case resource.KindSub:
		return &Controller{
			Index:  c.wrap(core.OperationList, collection, c.listIndex),
			One:    c.wrap(core.OperationRead, item, c.subOne),
			Create: c.wrap(core.OperationCreate, collection, c.subCreate),
			Update: c.wrap(core.OperationUpdate, item, c.subUpdate),
			Remove: c.wrap(core.OperationDelete, item, c.subRemove),
		}
	case resource.KindRef:
		return &Controller{
			Index: c.wrap(core.OperationRead, collection, c.refIndex),
		}
	case resource.KindSubRef:
		return &Controller{
			Index: c.wrap(core.OperationList, collection, c.listIndex),
		}
	case resource.KindBackRef:
		return &Controller{
			Index: c.wrap(core.OperationList, collection, c.backRefIndex),
		}
	}
	return &Controller{}
}

type handlerFunc func(w http.ResponseWriter, req *http.Request, params []string) error

// wrap collects the identifier parameters ids, puts the request into the context and translates
// the error of h into an envelope
func (c *controller) wrap(operation core.Operation, ids []string, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		params, err := query.CheckParams(mux.Vars(req), ids)
		if err != nil {
			envelope.Error(w, req, err)
			return
		}
		ctx, rlog := logger.ContextWithResource(req.Context(), c.r.Key())
		ctx = query.ContextWithRequest(ctx, query.Request{
			Resource:  c.r.Key(),
			Operation: operation,
			Params:    params,
			Values:    req.URL.Query(),
		})
		rlog.Debugln(operation, req.URL.Path)
		req = req.WithContext(ctx)
		if err := h(w, req, params); err != nil {
			envelope.Error(w, req, err)
		}
	}
}

// decodeBody reads the JSON object of the request body
func decodeBody(req *http.Request) (store.Document, error) {
	var body store.Document
	err := json.NewDecoder(req.Body).Decode(&body)
	if errors.Is(err, io.EOF) {
		return nil, apierror.Validation("Request body is empty")
	}
	if err != nil {
		return nil, apierror.Validation("Invalid JSON: %s", err.Error())
	}
	if body == nil {
		return nil, apierror.Validation("Request body must be a JSON object")
	}
	return body, nil
}

// storeError maps store.ErrNotFound to a not found error of the resource
func (c *controller) storeError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierror.NotFound(c.r.Name())
	}
	return apierror.Internal(err)
}

// pageExtra returns the counts of a list response and echoes the draw parameter
func pageExtra(req *http.Request, total, filtered int64) envelope.Extra {
	extra := envelope.Extra{
		"recordsTotal":    total,
		"recordsFiltered": filtered,
	}
	if draw, ok := req.URL.Query()["draw"]; ok && len(draw) > 0 {
		extra["draw"] = draw[0]
	}
	return extra
}

// visible checks that document passes the query hook of the resource. Documents of sub
// resources are not read through a collection, so the hook is evaluated in memory.
func (c *controller) visible(req *http.Request, document store.Document) error {
	if c.r.Helper.Hooks().Query == nil {
		return nil
	}
	filter, err := c.r.ItemFilter(req.Context(), document.ID())
	if err != nil {
		return err
	}
	if !store.Matches(filter, document) {
		return apierror.NotFound(c.r.Name())
	}
	return nil
}

func (c *controller) notify(req *http.Request, operation core.Operation, params []string, document store.Document) {
	notify.Send(req.Context(), c.notifier, notify.Notification{
		Resource:  c.r.Key(),
		Operation: operation,
		ID:        document.ID(),
		Params:    params,
		Document:  document,
	})
}

// respondOne formats document and writes it. A document dropped by the format hook is forbidden.
func (c *controller) respondOne(w http.ResponseWriter, req *http.Request, document store.Document, projection store.Projection) error {
	data := c.r.Helper.FormatOne(req.Context(), document, projection)
	if data == nil {
		return apierror.Forbidden()
	}
	envelope.Success(w, req, data, nil)
	return nil
}
