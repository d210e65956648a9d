package envelope

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/docrest/core/apierror"
)

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestSuccess(t *testing.T) {
	rr := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/houses", nil)
	Success(rr, r, []interface{}{}, Extra{"recordsTotal": 0, "draw": "3"})

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, float64(200), body["status"])
	assert.Equal(t, "success", body["message"])
	assert.Equal(t, []interface{}{}, body["data"])
	assert.Equal(t, float64(0), body["recordsTotal"])
	assert.Equal(t, "3", body["draw"])

	rr = httptest.NewRecorder()
	Success(rr, r, nil, nil)
	body = decode(t, rr)
	_, ok := body["data"]
	assert.False(t, ok, "data must be omitted")
}

func TestError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", apierror.NotFound("house"), 404, "house not found"},
		{"forbidden", apierror.Forbidden(), 403, "Forbidden"},
		{"validation", apierror.Validation("Parameter houseId is required"), 400, "Parameter houseId is required"},
		{"internal", apierror.Internal(errors.New("secret dsn")), 500, MessageInternal},
		{"uncoded", errors.New("secret dsn"), 500, MessageInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			Error(rr, httptest.NewRequest(http.MethodGet, "/houses/1", nil), tt.err)
			assert.Equal(t, tt.status, rr.Code)
			body := decode(t, rr)
			assert.Equal(t, float64(tt.status), body["status"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}
