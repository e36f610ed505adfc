package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/stelae/stelae/pkg/errs"
)

const maxBodyBytes = 1 << 20 // permission payloads are small

// DecodeJSON decodes the request body into dest. Unknown fields are
// rejected so client typos surface as errors instead of silent no-ops.
func DecodeJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return errs.BadRequest("invalid JSON body: %v", err)
	}
	return nil
}

// PathVar extracts a required mux path variable.
func PathVar(r *http.Request, key string) (string, error) {
	v := mux.Vars(r)[key]
	if v == "" {
		return "", errs.BadRequest("missing path parameter %s", key)
	}
	return v, nil
}

// QueryString extracts a string query parameter with a default.
func QueryString(r *http.Request, key, defaultVal string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return defaultVal
}

// QueryInt extracts an integer query parameter with a default.
func QueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errs.BadRequest("invalid integer for query param %s: %s", key, raw)
	}
	return v, nil
}

// QueryBool extracts a boolean query parameter with a default.
func QueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultVal, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, errs.BadRequest("invalid boolean for query param %s: %s", key, raw)
	}
	return v, nil
}
