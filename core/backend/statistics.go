// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/relabs-tech/docrest/core/apierror"
	"github.com/relabs-tech/docrest/core/envelope"
	"github.com/relabs-tech/docrest/core/logger"
)

// ModelStatistics represents information about the documents of one model
type ModelStatistics struct {
	Model    string `json:"model"`
	Resource string `json:"resource"`
	Count    int64  `json:"count"`
}

// StatisticsDetails represents information about the backend models
type StatisticsDetails struct {
	Models []ModelStatistics `json:"models"`
}

func (b *Backend) handleStatistics(router *mux.Router) {
	route := b.config.Context + "/statistics"
	logger.Default().Debugln("statistics")
	logger.Default().Debugf("  handle statistics route: %s GET", route)
	router.Handle(route, compressed(b.statistics)).Methods(http.MethodOptions, http.MethodGet)
}

func (b *Backend) statistics(w http.ResponseWriter, r *http.Request) {
	s := StatisticsDetails{Models: []ModelStatistics{}}

	// sorted by name, so the ETag does not depend on the order of the configuration
	for _, name := range b.registry.Names() {
		model, err := b.registry.Resolve(r.Context(), name)
		if err != nil {
			envelope.Error(w, r, apierror.Internal(err))
			return
		}
		count, err := model.Collection.Count(r.Context(), nil)
		if err != nil {
			envelope.Error(w, r, apierror.Internal(err))
			return
		}
		s.Models = append(s.Models, ModelStatistics{
			Model:    name,
			Resource: model.Schema.PluralName(),
			Count:    count,
		})
	}

	jsonData, _ := json.Marshal(s)
	etag := bytesToEtag(jsonData)
	w.Header().Set("Etag", etag)
	if ifNoneMatchFound(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write(jsonData)
}

// bytesToEtag returns a strong entity tag for data
func bytesToEtag(data []byte) string {
	sum := sha256.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func ifNoneMatchFound(ifNoneMatch, etag string) bool {
	ifNoneMatch = strings.Trim(ifNoneMatch, " ")
	if len(ifNoneMatch) == 0 {
		return false
	}
	if ifNoneMatch == "*" {
		return true
	}
	for _, s := range strings.Split(ifNoneMatch, ",") {
		s = strings.Trim(s, " \"")
		t := strings.Trim(etag, " \"")
		if s == t {
			return true
		}
	}
	return false
}
