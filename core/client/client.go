// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package client provides easy and fast in-process access to a REST api

Instead of marshalling HTTP, the client talks directly to the mux router. The client
is the tool of choice if one request handler needs to call other handlers to fulfill
its task. It is also perfectly suited for unit tests.

All responses are expected in the envelope

	{ "status": 200, "message": "success", "data": ..., "recordsTotal": ..., "recordsFiltered": ... }
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

// Client provides easy access to the REST API.
type Client struct {
	router     *mux.Router
	httpClient *http.Client
	url        string
	prefix     string
	ctx        context.Context

	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the backend,
// through the mux router
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the backend
func NewWithURL(url string) Client {
	return Client{
		url:            strings.TrimSuffix(url, "/"),
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := make(map[string]string, len(c.defaultHeaders)+1)
	for k, v := range c.defaultHeaders {
		headers[k] = v
	}
	headers[key] = value
	c.defaultHeaders = headers
	return c
}

// WithPrefix returns a new client for resources below prefix, e.g. "/api"
func (c Client) WithPrefix(prefix string) Client {
	c.prefix = prefix
	return c
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the request context of the client
func (c Client) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Envelope is the response body of all resource routes
type Envelope struct {
	Status          int             `json:"status"`
	Message         string          `json:"message"`
	Data            json.RawMessage `json:"data,omitempty"`
	RecordsTotal    int64           `json:"recordsTotal"`
	RecordsFiltered int64           `json:"recordsFiltered"`
	Draw            string          `json:"draw,omitempty"`
}

// Error is returned for responses with a status other than 200
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("handler returned status %d: %s", e.Status, e.Message)
}

// Do sends a request with method to path and returns the status code, the response header and the
// raw response body. body is marshalled to JSON unless it is a []byte or nil.
func (c Client) Do(method, path string, header map[string]string, body interface{}) (int, http.Header, []byte, error) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		j, err := json.Marshal(body)
		if err != nil {
			return http.StatusBadRequest, nil, nil, fmt.Errorf("%s to %s: %w", method, path, err)
		}
		reader = bytes.NewReader(j)
	}

	r, err := http.NewRequestWithContext(c.Context(), method, c.url+path, reader)
	if err != nil {
		return http.StatusBadRequest, nil, nil, err
	}
	if reader != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}
	for key, value := range header {
		r.Header.Add(key, value)
	}

	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		res := rec.Result()
		return res.StatusCode, res.Header, rec.Body.Bytes(), nil
	}
	res, err := c.httpClient.Do(r)
	if err != nil {
		return http.StatusInternalServerError, nil, nil, err
	}
	defer res.Body.Close()
	resBody, err := io.ReadAll(res.Body)
	return res.StatusCode, res.Header, resBody, err
}

// RawGet gets path and unmarshals the raw response body into result. Expects http.StatusOK as
// response, otherwise it will flag an error.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	status, _, err := c.RawGetWithHeader(path, nil, result)
	return status, err
}

// RawGetWithHeader is like RawGet with additional request headers. It returns the response header
// as well. http.StatusNotModified is not an error.
func (c Client) RawGetWithHeader(path string, header map[string]string, result interface{}) (int, http.Header, error) {
	status, resHeader, resBody, err := c.Do(http.MethodGet, path, header, nil)
	if err != nil {
		return status, resHeader, err
	}
	if status == http.StatusNotModified {
		return status, resHeader, nil
	}
	if status != http.StatusOK {
		return status, resHeader, fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
			status, http.StatusOK, strings.TrimSpace(string(resBody)))
	}
	if len(resBody) > 0 && result != nil {
		if raw, ok := result.(*[]byte); ok {
			*raw = resBody
		} else {
			err = json.Unmarshal(resBody, result)
		}
	}
	return status, resHeader, err
}

// Envelope sends a request and decodes the response envelope. The data of a successful response
// is unmarshalled into result, which can be nil. A response other than 200 returns an *Error.
func (c Client) Envelope(method, path string, body interface{}, result interface{}) (Envelope, error) {
	var envelope Envelope
	status, _, resBody, err := c.Do(method, c.prefix+path, nil, body)
	if err != nil {
		return envelope, err
	}
	if err := json.Unmarshal(resBody, &envelope); err != nil {
		return envelope, fmt.Errorf("%s %s returned status %d and no envelope: %w", method, path, status, err)
	}
	if status != http.StatusOK {
		return envelope, &Error{Status: status, Message: envelope.Message}
	}
	if result != nil && len(envelope.Data) > 0 {
		err = json.Unmarshal(envelope.Data, result)
	}
	return envelope, err
}

// Collection is a collection of a resource, addressed by its path
type Collection struct {
	client     Client
	path       string
	parameters url.Values
}

// Collection returns a collection client for path, e.g. "houses/h1/rooms"
func (c Client) Collection(path string) Collection {
	return Collection{client: c, path: "/" + strings.Trim(path, "/"), parameters: url.Values{}}
}

// WithParameter returns a new collection with a query parameter added
func (r Collection) WithParameter(key string, value string) Collection {
	parameters := url.Values{}
	for k, v := range r.parameters {
		parameters[k] = append([]string{}, v...)
	}
	parameters.Add(key, value)
	r.parameters = parameters
	return r
}

// WithSearch returns a new collection searching value in the given fields
func (r Collection) WithSearch(value string, fields ...string) Collection {
	r = r.WithParameter("search[value]", value)
	for i, field := range fields {
		r = r.WithParameter(fmt.Sprintf("columns[%d][data]", i), field)
	}
	return r
}

// Path returns the path of the collection including the query parameters
func (r Collection) Path() string {
	if len(r.parameters) == 0 {
		return r.path
	}
	return r.path + "?" + r.parameters.Encode()
}

// List lists the collection into result and returns the envelope with the record counts
func (r Collection) List(result interface{}) (Envelope, error) {
	return r.client.Envelope(http.MethodGet, r.Path(), nil, result)
}

// Read reads a resource which addresses a single document, like a reference
func (r Collection) Read(result interface{}) error {
	_, err := r.client.Envelope(http.MethodGet, r.Path(), nil, result)
	return err
}

// Create posts body to the collection and unmarshals the created document into result
func (r Collection) Create(body interface{}, result interface{}) error {
	_, err := r.client.Envelope(http.MethodPost, r.path, body, result)
	return err
}

// Item returns the item with the given identifier
func (r Collection) Item(id string) Item {
	return Item{client: r.client, path: r.path + "/" + url.PathEscape(id)}
}

// Item is a single document
type Item struct {
	client Client
	path   string
}

// Path returns the path of the item
func (r Item) Path() string {
	return r.path
}

// Subcollection returns a collection below the item
func (r Item) Subcollection(segment string) Collection {
	return Collection{client: r.client, path: r.path + "/" + strings.Trim(segment, "/"), parameters: url.Values{}}
}

// Read reads the item into result
func (r Item) Read(result interface{}) error {
	_, err := r.client.Envelope(http.MethodGet, r.path, nil, result)
	return err
}

// Update puts body to the item and unmarshals the saved document into result
func (r Item) Update(body interface{}, result interface{}) error {
	_, err := r.client.Envelope(http.MethodPut, r.path, body, result)
	return err
}

// Delete deletes the item
func (r Item) Delete() error {
	_, err := r.client.Envelope(http.MethodDelete, r.path, nil, nil)
	return err
}

// StatusOf returns the status code of an error returned by the client, http.StatusOK for nil
// and http.StatusInternalServerError for errors not reported by the server
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if e, ok := err.(*Error); ok {
		return e.Status
	}
	return http.StatusInternalServerError
}
