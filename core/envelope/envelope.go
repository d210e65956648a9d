// Package envelope writes the uniform response body
//
//	{ "status": <int>, "message": <string>, "data": <any>, ...extra }
//
// and translates errors into it.
package envelope

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/docrest/core/apierror"
	"github.com/relabs-tech/docrest/core/logger"
)

// MessageSuccess is the message of all successful responses
const MessageSuccess = "success"

// MessageInternal is the message sent for all errors without a 4xx status code
const MessageInternal = "Server internal error"

// Extra holds additional top level properties of the envelope, like pagination counts
type Extra map[string]interface{}

// Success writes a 200 envelope. If data is nil, the data property is omitted.
func Success(w http.ResponseWriter, r *http.Request, data interface{}, extra Extra) {
	body := make(map[string]interface{}, len(extra)+3)
	for k, v := range extra {
		body[k] = v
	}
	body["status"] = http.StatusOK
	body["message"] = MessageSuccess
	if data != nil {
		body["data"] = data
	}
	write(w, r, http.StatusOK, body)
}

// Error is the single error translator. Errors with a 4xx status code are relayed with
// their message, everything else is logged and reported as an internal error.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := apierror.StatusOf(err)
	message := err.Error()
	if !apierror.IsClientError(err) {
		logger.FromContext(r.Context()).WithError(err).Errorf("Error 5000: %s %s", r.Method, r.URL)
		status = http.StatusInternalServerError
		message = MessageInternal
	}
	write(w, r, status, map[string]interface{}{
		"status":  status,
		"message": message,
	})
}

func write(w http.ResponseWriter, r *http.Request, status int, body map[string]interface{}) {
	jsonData, err := json.MarshalWithOption(body, json.DisableHTMLEscape())
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorln("Error 5001: cannot marshal response")
		status = http.StatusInternalServerError
		jsonData = []byte(`{"status":500,"message":"` + MessageInternal + `"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(jsonData)
}
