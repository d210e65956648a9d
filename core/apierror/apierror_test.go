package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   Kind
		client bool
	}{
		{"not found", NotFound("house"), http.StatusNotFound, KindNotFound, true},
		{"forbidden", Forbidden(), http.StatusForbidden, KindForbidden, true},
		{"validation", Validation("Parameter %s is required", "houseId"), http.StatusBadRequest, KindValidation, true},
		{"too many", TooManyRequests(), http.StatusTooManyRequests, KindTooManyRequests, true},
		{"internal", Internal(errors.New("boom")), http.StatusInternalServerError, KindInternal, false},
		{"uncoded", errors.New("boom"), http.StatusInternalServerError, KindInternal, false},
		{"wrapped", fmt.Errorf("cannot load: %w", NotFound("room")), http.StatusNotFound, KindNotFound, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, StatusOf(tt.err))
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.client, IsClientError(tt.err))
		})
	}
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "house not found", NotFound("house").Error())
	assert.Equal(t, "Forbidden", Forbidden().Error())
	assert.Equal(t, "Parameter houseId is required", Validation("Parameter %s is required", "houseId").Error())

	cause := errors.New("connection refused")
	err := Internal(cause)
	assert.Equal(t, "connection refused", err.Error())
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", NotFound("x"))))
}
