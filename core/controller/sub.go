package controller

import (
	"net/http"

	"github.com/relabs-tech/docrest/core"
	"github.com/relabs-tech/docrest/core/apierror"
	"github.com/relabs-tech/docrest/core/envelope"
	"github.com/relabs-tech/docrest/core/resource"
	"github.com/relabs-tech/docrest/core/store"
)

// ownedDocument is an embedded document together with the storage document containing it.
// All documents share memory, changes to document are persisted with the owner.
type ownedDocument struct {
	owner          *resource.Resource
	ownerDocument  store.Document
	parentDocument store.Document
	document       store.Document
}

// listIndex lists the documents of sub and subRef resources. The list is loaded as a whole,
// search, sort and paging happen in memory.
func (c *controller) listIndex(w http.ResponseWriter, req *http.Request, params []string) error {
	ctx := req.Context()
	helper := c.r.Helper
	values := req.URL.Query()

	opts, err := helper.QueryOptions(values)
	if err != nil {
		return err
	}
	opts.Projection = helper.LimitOptions(values)
	filter, err := helper.FilterQuery(ctx, helper.QueryConstraints(values))
	if err != nil {
		return err
	}
	documents, err := c.r.GetAll(ctx, params)
	if err != nil {
		return err
	}
	page, filtered := store.Apply(documents, filter, opts)
	envelope.Success(w, req, helper.Format(ctx, page, opts.Projection), pageExtra(req, int64(len(documents)), int64(filtered)))
	return nil
}

func (c *controller) subOne(w http.ResponseWriter, req *http.Request, params []string) error {
	document, err := c.r.GetOne(req.Context(), params)
	if err != nil {
		return err
	}
	if err := c.visible(req, document); err != nil {
		return err
	}
	return c.respondOne(w, req, document, c.r.Helper.LimitOptions(req.URL.Query()))
}

func (c *controller) subCreate(w http.ResponseWriter, req *http.Request, params []string) error {
	ctx := req.Context()
	body, err := decodeBody(req)
	if err != nil {
		return err
	}
	owner, ownerDocument, parentDocument, err := c.r.Owner(ctx, params)
	if err != nil {
		return err
	}
	parsed, err := c.r.Helper.Parse(ctx, body, core.OperationCreate)
	if err != nil {
		return err
	}
	parsed[store.IDField] = store.NewID()
	if err := c.r.Validate(parsed); err != nil {
		return err
	}
	parentDocument.AppendSub(c.r.FieldName, parsed)
	if err := owner.Persist(ctx, ownerDocument); err != nil {
		return err
	}
	c.notify(req, core.OperationCreate, params, parsed)
	envelope.Success(w, req, c.r.Helper.FormatOne(ctx, parsed, nil), nil)
	return nil
}

// leaf resolves the owner of the embedded document addressed by params and the document itself
func (c *controller) leaf(req *http.Request, params []string) (*ownedDocument, error) {
	last := len(params) - 1
	owner, ownerDocument, parentDocument, err := c.r.Owner(req.Context(), params[:last])
	if err != nil {
		return nil, err
	}
	document, ok := parentDocument.FindSub(c.r.FieldName, params[last])
	if !ok {
		return nil, apierror.NotFound(c.r.Name())
	}
	if err := c.visible(req, document); err != nil {
		return nil, err
	}
	return &ownedDocument{
		owner:          owner,
		ownerDocument:  ownerDocument,
		parentDocument: parentDocument,
		document:       document,
	}, nil
}

func (c *controller) subUpdate(w http.ResponseWriter, req *http.Request, params []string) error {
	ctx := req.Context()
	body, err := decodeBody(req)
	if err != nil {
		return err
	}
	leaf, err := c.leaf(req, params)
	if err != nil {
		return err
	}
	parsed, err := c.r.Helper.Parse(ctx, body, core.OperationUpdate)
	if err != nil {
		return err
	}
	leaf.document.Merge(parsed)
	if err := c.r.Validate(leaf.document); err != nil {
		return err
	}
	if err := leaf.owner.Persist(ctx, leaf.ownerDocument); err != nil {
		return err
	}
	c.notify(req, core.OperationUpdate, params, leaf.document)
	envelope.Success(w, req, c.r.Helper.FormatOne(ctx, leaf.document, nil), nil)
	return nil
}

func (c *controller) subRemove(w http.ResponseWriter, req *http.Request, params []string) error {
	leaf, err := c.leaf(req, params)
	if err != nil {
		return err
	}
	leaf.parentDocument.RemoveSub(c.r.FieldName, leaf.document.ID())
	if err := leaf.owner.Persist(req.Context(), leaf.ownerDocument); err != nil {
		return err
	}
	c.notify(req, core.OperationDelete, params, leaf.document)
	envelope.Success(w, req, nil, nil)
	return nil
}
