package resource

import (
	"context"
	"errors"

	"github.com/relabs-tech/docrest/core/apierror"
	"github.com/relabs-tech/docrest/core/store"
)

func unsupported(r *Resource, operation string) error {
	return apierror.Internalf("%s resource %s does not support %s", r.Kind, r.Key(), operation)
}

// notFound maps store.ErrNotFound to a not found error named after the resource
func notFound(r *Resource, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierror.NotFound(r.Name())
	}
	return apierror.Internal(err)
}

type normalAccess struct {
	r *Resource
}

func (a *normalAccess) GetOne(ctx context.Context, params []string) (store.Document, error) {
	filter, err := a.r.ItemFilter(ctx, params[0])
	if err != nil {
		return nil, err
	}
	doc, err := a.r.Model.Collection.FindOne(ctx, filter, nil)
	if err != nil {
		return nil, notFound(a.r, err)
	}
	return doc, nil
}

func (a *normalAccess) GetAll(ctx context.Context, params []string) ([]store.Document, error) {
	filter, err := a.r.Helper.FilterQuery(ctx, nil)
	if err != nil {
		return nil, err
	}
	docs, err := a.r.Model.Collection.Find(ctx, filter, store.FindOptions{})
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return docs, nil
}

// SaveOne inserts documents without identifier under a new identifier, and replaces documents
// with identifier as a whole.
func (a *normalAccess) SaveOne(ctx context.Context, document store.Document) (store.Document, error) {
	if document.ID() != "" {
		if err := a.r.Persist(ctx, document); err != nil {
			return nil, err
		}
		return document, nil
	}
	document[store.IDField] = store.NewID()
	if err := a.r.Validate(document); err != nil {
		return nil, err
	}
	err := a.r.Model.Collection.Insert(ctx, document)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apierror.Validation("%s %s already exists", a.r.Name(), document.ID())
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return document, nil
}

type subAccess struct {
	r *Resource
}

func (a *subAccess) GetOne(ctx context.Context, params []string) (store.Document, error) {
	parent, err := a.r.Parent.GetOne(ctx, params[:len(params)-1])
	if err != nil {
		return nil, err
	}
	sub, ok := parent.FindSub(a.r.FieldName, params[len(params)-1])
	if !ok {
		return nil, apierror.NotFound(a.r.Name())
	}
	return sub, nil
}

func (a *subAccess) GetAll(ctx context.Context, params []string) ([]store.Document, error) {
	parent, err := a.r.Parent.GetOne(ctx, params)
	if err != nil {
		return nil, err
	}
	return parent.SubList(a.r.FieldName), nil
}

func (a *subAccess) SaveOne(ctx context.Context, document store.Document) (store.Document, error) {
	return nil, unsupported(a.r, "saveOne")
}

type refAccess struct {
	r *Resource
}

func (a *refAccess) GetOne(ctx context.Context, params []string) (store.Document, error) {
	parent, err := a.r.Parent.GetOne(ctx, params)
	if err != nil {
		return nil, err
	}
	id, _ := parent[a.r.FieldName].(string)
	if id == "" {
		return nil, apierror.NotFound(a.r.Name())
	}
	doc, err := a.r.Model.Collection.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(a.r, err)
	}
	return doc, nil
}

func (a *refAccess) GetAll(ctx context.Context, params []string) ([]store.Document, error) {
	return nil, unsupported(a.r, "getAll")
}

func (a *refAccess) SaveOne(ctx context.Context, document store.Document) (store.Document, error) {
	return nil, unsupported(a.r, "saveOne")
}

type subRefAccess struct {
	r *Resource
}

func (a *subRefAccess) GetOne(ctx context.Context, params []string) (store.Document, error) {
	return nil, unsupported(a.r, "getOne")
}

func (a *subRefAccess) GetAll(ctx context.Context, params []string) ([]store.Document, error) {
	parent, err := a.r.Parent.GetOne(ctx, params)
	if err != nil {
		return nil, err
	}
	ids, _ := parent[a.r.FieldName].([]interface{})
	if len(ids) == 0 {
		return []store.Document{}, nil
	}
	docs, err := a.r.Model.Collection.Find(ctx, store.In{Field: store.IDField, Values: ids}, store.FindOptions{})
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return docs, nil
}

// SaveOne is not implemented for reference lists: writes go through the parent document.
func (a *subRefAccess) SaveOne(ctx context.Context, document store.Document) (store.Document, error) {
	return nil, unsupported(a.r, "saveOne")
}

type backRefAccess struct {
	r *Resource
}

func (a *backRefAccess) GetOne(ctx context.Context, params []string) (store.Document, error) {
	return nil, unsupported(a.r, "getOne")
}

func (a *backRefAccess) GetAll(ctx context.Context, params []string) ([]store.Document, error) {
	docs, err := a.r.Model.Collection.Find(ctx, a.r.BackRefFilter(params), store.FindOptions{})
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return docs, nil
}

func (a *backRefAccess) SaveOne(ctx context.Context, document store.Document) (store.Document, error) {
	return nil, unsupported(a.r, "saveOne")
}
