// Package httputil provides JSON request/response helpers and the HTTP
// middleware shared by the API server.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/stelae/stelae/pkg/errs"
	"github.com/stelae/stelae/pkg/observability"
)

// ErrorResponse is the wire shape of every error the API returns.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError maps err through the domain error taxonomy and writes the
// corresponding status. Server-side errors are not echoed to the client;
// the request ID lets operators correlate them with logs.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.HTTPStatus(err)
	resp := ErrorResponse{
		Error:     err.Error(),
		RequestID: observability.RequestID(r.Context()),
	}
	if status >= http.StatusInternalServerError {
		resp.Error = "internal server error"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// WriteErrorMessage writes an error response with an explicit status and
// message, bypassing the taxonomy.
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// WriteSuccess writes data with 200 OK.
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes data with 201 Created.
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}
