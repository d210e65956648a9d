package backend

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/relabs-tech/docrest/core/docs"
	"github.com/relabs-tech/docrest/core/envelope"
	"github.com/relabs-tech/docrest/core/logger"
)

// APIDocs is the body of the api-docs route
type APIDocs struct {
	APIVersion     string     `json:"apiVersion"`
	SwaggerVersion string     `json:"swaggerVersion"`
	BasePath       string     `json:"basePath"`
	APIs           []docs.API `json:"apis"`
}

func (b *Backend) handleAPIDocs(router *mux.Router) {
	route := b.config.Context + "/api-docs"
	logger.Default().Debugln("api docs")
	logger.Default().Debugf("  handle api docs route: %s GET", route)
	router.Handle(route, compressed(func(w http.ResponseWriter, r *http.Request) {
		apis := b.apis
		if apis == nil {
			apis = []docs.API{}
		}
		envelope.Success(w, r, APIDocs{
			APIVersion:     Version,
			SwaggerVersion: "1.2",
			BasePath:       b.config.Context,
			APIs:           apis,
		}, nil)
	})).Methods(http.MethodOptions, http.MethodGet)
}
