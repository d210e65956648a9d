package backend

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/docrest/core/logger"
)

var (
	// Version is the version of the curent build
	Version = "unset"
)

func (b *Backend) handleVersion(router *mux.Router) {
	logger.Default().Debugln("version")
	logger.Default().Debugln("  handle version route: /version GET")
	router.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		data, _ := json.Marshal(map[string]string{"version": Version})
		w.Write(data)
	}).Methods(http.MethodOptions, http.MethodGet)
}

func (b *Backend) handleMetrics(router *mux.Router) {
	logger.Default().Debugln("metrics")
	logger.Default().Debugln("  handle metrics route: /metrics GET")
	router.Handle("/metrics", b.metrics.Handler()).Methods(http.MethodOptions, http.MethodGet)
}
