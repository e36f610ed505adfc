package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stelae/stelae/pkg/errs"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "ok")
}

func TestWriteErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"not found", errs.NotFound("record %s", "x"), http.StatusNotFound, "record x"},
		{"conflict", errs.Conflict("duplicate"), http.StatusConflict, "duplicate"},
		{"bad request", errs.BadRequest("no fields"), http.StatusBadRequest, "no fields"},
		{"forbidden", errs.Forbidden("nope"), http.StatusForbidden, "nope"},
		{"internal hidden", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest("GET", "/test", nil)

			WriteError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/test", nil)

	WriteError(w, r, errors.New("dial tcp 10.0.0.4:5432: timeout"))

	assert.NotContains(t, w.Body.String(), "10.0.0.4")
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteCreated(w, map[string]string{"iri": "http://stelae.io/permissions/abc"})

	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "http://stelae.io/permissions/abc")
}
