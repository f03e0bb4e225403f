package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gespadel/gespadel/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapServiceErrorToHTTP(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"authorization", services.ErrAuthorization, http.StatusForbidden, "AUTHORIZATION"},
		{"not found", services.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"duplicate", services.ErrDuplicateRegistration, http.StatusConflict, "DUPLICATE_REGISTRATION"},
		{"wrapped self partner", fmt.Errorf("register: %w", services.ErrSelfPartner), http.StatusUnprocessableEntity, "SELF_PARTNER"},
		{"unauthenticated", errUnauthenticated, http.StatusUnauthorized, ""},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mapServiceErrorToHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
			if tt.kind != "" {
				assert.Equal(t, tt.kind, body["kind"])
			}
			if tt.status == http.StatusInternalServerError {
				assert.NotContains(t, body["error"], "boom")
			}
		})
	}
}

func TestReadJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"name":"Summer Cup"}`, ""},
		{"empty", ``, "must not be empty"},
		{"unknown field", `{"title":"x"}`, "unknown key"},
		{"two values", `{"name":"a"}{"name":"b"}`, "single JSON value"},
		{"bad type", `{"name":1}`, "incorrect JSON type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := readJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
