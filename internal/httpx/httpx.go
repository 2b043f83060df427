package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/antonminaichev/zion-orders/internal/logger"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, detail string) {
	WriteJSON(w, status, errorResponse{Detail: detail})
}

// Internal logs err and answers 500 without leaking it.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	logger.Log.ErrorContext(r.Context(), "internal error",
		"method", r.Method, "uri", r.RequestURI, "error", err)
	WriteError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

// IDParam parses a positive int64 URL parameter.
func IDParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

// FlexString accepts a JSON string or number and keeps its text form.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

func (s FlexString) String() string {
	return string(s)
}
