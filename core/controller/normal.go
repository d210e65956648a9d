package controller

import (
	"errors"
	"net/http"

	"github.com/relabs-tech/docrest/core"
	"github.com/relabs-tech/docrest/core/apierror"
	"github.com/relabs-tech/docrest/core/envelope"
	"github.com/relabs-tech/docrest/core/store"
)

func (c *controller) normalIndex(w http.ResponseWriter, req *http.Request, params []string) error {
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

	collection := c.r.Model.Collection
	documents, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return apierror.Internal(err)
	}
	total, err := collection.Count(ctx, nil)
	if err != nil {
		return apierror.Internal(err)
	}
	filtered, err := collection.Count(ctx, filter)
	if err != nil {
		return apierror.Internal(err)
	}
	envelope.Success(w, req, helper.Format(ctx, documents, opts.Projection), pageExtra(req, total, filtered))
	return nil
}

func (c *controller) normalOne(w http.ResponseWriter, req *http.Request, params []string) error {
	ctx := req.Context()
	filter, err := c.r.ItemFilter(ctx, params[0])
	if err != nil {
		return err
	}
	projection := c.r.Helper.LimitOptions(req.URL.Query())
	document, err := c.r.Model.Collection.FindOne(ctx, filter, projection)
	if err != nil {
		return c.storeError(err)
	}
	return c.respondOne(w, req, document, projection)
}

func (c *controller) normalCreate(w http.ResponseWriter, req *http.Request, params []string) error {
	ctx := req.Context()
	body, err := decodeBody(req)
	if err != nil {
		return err
	}
	parsed, err := c.r.Helper.Parse(ctx, body, core.OperationCreate)
	if err != nil {
		return err
	}
	delete(parsed, store.IDField)
	document, err := c.r.SaveOne(ctx, parsed)
	if err != nil {
		return err
	}
	c.notify(req, core.OperationCreate, params, document)
	envelope.Success(w, req, c.r.Helper.FormatOne(ctx, document, nil), nil)
	return nil
}

func (c *controller) normalUpdate(w http.ResponseWriter, req *http.Request, params []string) error {
	ctx := req.Context()
	body, err := decodeBody(req)
	if err != nil {
		return err
	}
	document, err := c.r.GetOne(ctx, params)
	if err != nil {
		return err
	}
	parsed, err := c.r.Helper.Parse(ctx, body, core.OperationUpdate)
	if err != nil {
		return err
	}
	document.Merge(parsed)
	if err := c.r.Persist(ctx, document); err != nil {
		return err
	}
	c.notify(req, core.OperationUpdate, params, document)
	envelope.Success(w, req, c.r.Helper.FormatOne(ctx, document, nil), nil)
	return nil
}

func (c *controller) normalRemove(w http.ResponseWriter, req *http.Request, params []string) error {
	ctx := req.Context()
	filter, err := c.r.ItemFilter(ctx, params[0])
	if err != nil {
		return err
	}
	document, err := c.r.Model.Collection.FindOneAndRemove(ctx, filter)
	if errors.Is(err, store.ErrNotFound) {
		return apierror.NotFound(c.r.Name())
	}
	if err != nil {
		return apierror.Internal(err)
	}
	c.notify(req, core.OperationDelete, params, document)
	envelope.Success(w, req, nil, nil)
	return nil
}
