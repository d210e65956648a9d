// Package bind registers the handlers of a controller on a router
package bind

import (
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/docrest/core/controller"
	"github.com/relabs-tech/docrest/core/logger"
	"github.com/relabs-tech/docrest/core/resource"
)

// Route is a registered route
type Route struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// Bind registers the non nil handlers of c for r below context and returns the registered routes:
//
//	GET    <collection>  Index
//	POST   <collection>  Create
//	GET    <item>        One
//	PUT    <item>        Update
//	DELETE <item>        Remove
func Bind(router *mux.Router, context string, r *resource.Resource, c *controller.Controller) []Route {
	collectionRoute := r.CollectionRoute(context)
	itemRoute := r.ItemRoute(context)

	var routes []Route
	for _, h := range []struct {
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{http.MethodGet, collectionRoute, c.Index},
		{http.MethodPost, collectionRoute, c.Create},
		{http.MethodGet, itemRoute, c.One},
		{http.MethodPut, itemRoute, c.Update},
		{http.MethodDelete, itemRoute, c.Remove},
	} {
		if h.handler == nil {
			continue
		}
		handler := h.handler
		logger.Default().Debugf("  handle route: %s %s", h.path, h.method)
		router.Handle(h.path, handlers.CompressHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// OPTIONS is routed for preflight requests, without CORS it gets an empty answer
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
			handler(w, r)
		}))).Methods(http.MethodOptions, h.method)
		routes = append(routes, Route{Method: h.method, Path: h.path})
	}
	return routes
}
