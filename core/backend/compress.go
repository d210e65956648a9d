package backend

import (
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/relabs-tech/docrest/core/logger"
)

// compressed wraps a handler of the backend's own routes the way the resource routes are
// wrapped: compressed responses and an info log line per call
func compressed(h http.HandlerFunc) http.Handler {
	return handlers.CompressHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		h(w, r)
	}))
}
