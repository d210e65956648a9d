// Package docs describes the REST operations of resources for API documentation
package docs

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/relabs-tech/docrest/core/controller"
	"github.com/relabs-tech/docrest/core/resource"
)

// parameter types
const (
	ParamPath  = "path"
	ParamQuery = "query"
	ParamForm  = "form"
)

// Param is a parameter of an operation
type Param struct {
	Name      string `json:"name"`
	Required  bool   `json:"required,omitempty"`
	ParamType string `json:"paramType"`
}

// Operation describes a single HTTP operation
type Operation struct {
	Method     string  `json:"method"`
	Summary    string  `json:"summary"`
	Parameters []Param `json:"parameters"`
	Nickname   string  `json:"nickname"`
}

// API is a documented path with its operations
type API struct {
	Path       string      `json:"path"`
	Operations []Operation `json:"operations"`
}

var nonLetters = regexp.MustCompile(`[^a-zA-Z]+`)

// nickname returns a machine safe name for path
func nickname(path, suffix string) string {
	return strings.Trim(nonLetters.ReplaceAllString(path, "_"), "_") + suffix
}

// summaryPostfix describes the collection of r, e.g. "house as houses[houseId].rooms[roomId]"
func summaryPostfix(r *resource.Resource) string {
	last := len(r.Path) - 1
	postfix := r.Names[0] + " as "
	for i := 0; i < last; i++ {
		postfix += r.Path[i]
		if r.HasPlaceholder(i) {
			postfix += "[" + r.IDs[i] + "]"
		}
		if i < last-1 {
			postfix += "."
		}
	}
	return postfix
}

func pathParams(ids []string) []Param {
	params := make([]Param, 0, len(ids))
	for _, id := range ids {
		params = append(params, Param{Name: id, Required: true, ParamType: ParamPath})
	}
	return params
}

func queryParams(names ...string) []Param {
	params := make([]Param, 0, len(names))
	for _, name := range names {
		params = append(params, Param{Name: name, ParamType: ParamQuery})
	}
	return params
}

// formParams returns a form parameter for each schema field. Fields starting with an
// underscore are internal and not documented.
func formParams(r *resource.Resource, create bool) []Param {
	var params []Param
	for _, f := range r.Schema.Fields {
		if strings.HasPrefix(f.Name, "_") {
			continue
		}
		params = append(params, Param{Name: f.Name, Required: create && f.Required, ParamType: ParamForm})
	}
	return params
}

func concat(lists ...[]Param) []Param {
	result := []Param{}
	for _, l := range lists {
		result = append(result, l...)
	}
	return result
}

// Describe returns the documentation of all operations c implements for r below context. It
// does not access any data.
func Describe(r *resource.Resource, c *controller.Controller, context string) []API {
	last := r.Path[len(r.Path)-1]
	name := r.Name()
	postfix := summaryPostfix(r)
	collectionPath := r.CollectionRoute(context)
	itemPath := r.ItemRoute(context)
	collectionParams := pathParams(r.CollectionIDs())
	itemParams := pathParams(r.ItemIDs())
	sub := r.Kind == resource.KindSub

	var apis []API
	add := func(path, method, summary string, params []Param, suffix string) {
		apis = append(apis, API{
			Path: path,
			Operations: []Operation{{
				Method:     method,
				Summary:    summary,
				Parameters: params,
				Nickname:   nickname(path, suffix),
			}},
		})
	}

	if c.Index != nil {
		var summary string
		params := concat(collectionParams, queryParams("fields", "start", "length"))
		switch r.Kind {
		case resource.KindSub:
			summary = "Get all " + last + " from " + postfix
		case resource.KindRef:
			summary = "Get " + last + " referenced by " + postfix
			params = concat(collectionParams, queryParams("fields"))
		case resource.KindBackRef:
			summary = "Get all " + last + " referenced by " + postfix
		default:
			summary = "Get all " + last
		}
		add(collectionPath, http.MethodGet, summary, params, "_index")
	}
	if c.Create != nil {
		summary := "Create new " + name
		if sub {
			summary += " in " + postfix
		}
		add(collectionPath, http.MethodPost, summary, concat(collectionParams, formParams(r, true)), "_create")
	}
	if c.One != nil {
		summary := "Get one " + name
		if sub {
			summary += " in " + postfix
		}
		add(itemPath, http.MethodGet, summary, concat(itemParams, queryParams("fields")), "_one")
	}
	if c.Update != nil {
		summary := "Save " + name
		if sub {
			summary += " in " + postfix
		}
		add(itemPath, http.MethodPut, summary, concat(itemParams, formParams(r, false)), "_update")
	}
	if c.Remove != nil {
		summary := "Delete " + name
		if sub {
			summary = "Delete " + last + " from " + postfix
		}
		add(itemPath, http.MethodDelete, summary, concat(itemParams), "_remove")
	}
	return apis
}
