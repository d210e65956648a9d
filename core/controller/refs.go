package controller

import (
	"net/http"

	"github.com/relabs-tech/docrest/core/apierror"
	"github.com/relabs-tech/docrest/core/envelope"
	"github.com/relabs-tech/docrest/core/store"
)

func (c *controller) refIndex(w http.ResponseWriter, req *http.Request, params []string) error {
	document, err := c.r.GetOne(req.Context(), params)
	if err != nil {
		return err
	}
	if err := c.visible(req, document); err != nil {
		return err
	}
	return c.respondOne(w, req, document, c.r.Helper.LimitOptions(req.URL.Query()))
}

// backRefIndex lists the documents referencing params[0]. recordsTotal counts all referencing
// documents, recordsFiltered those matching the search as well.
func (c *controller) backRefIndex(w http.ResponseWriter, req *http.Request, params []string) error {
	ctx := req.Context()
	helper := c.r.Helper
	values := req.URL.Query()

	opts, err := helper.QueryOptions(values)
	if err != nil {
		return err
	}
	opts.Projection = helper.LimitOptions(values)
	backRef := c.r.BackRefFilter(params)
	hooked, err := helper.FilterQuery(ctx, store.AndFilters(backRef, helper.QueryConstraints(values)))
	if err != nil {
		return err
	}
	filter := store.AndFilters(backRef, hooked)

	collection := c.r.Model.Collection
	documents, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return apierror.Internal(err)
	}
	total, err := collection.Count(ctx, backRef)
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
