package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gogpu/ggmeme"
	"github.com/gogpu/ggmeme/api"
	"github.com/gogpu/ggmeme/composition"
	"github.com/gogpu/ggmeme/studio"
)

// errorBody is the failure envelope, shaped like the backend's.
type errorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeOK merges fields into a successful envelope.
func writeOK(w http.ResponseWriter, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["ok"] = true
	writeJSON(w, http.StatusOK, fields)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code >= http.StatusInternalServerError {
		ggmeme.Logger().Warn("server: request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		ggmeme.Logger().Debug("server: request rejected", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	writeJSON(w, code, errorBody{Error: api.Message(err)})
}

// statusOf maps an error onto an HTTP status by its taxonomy class.
func statusOf(err error) int {
	switch {
	case errors.Is(err, studio.ErrSessionNotFound), errors.Is(err, composition.ErrLayerNotFound), errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, studio.ErrSessionClosed):
		return http.StatusGone
	case errors.Is(err, ggmeme.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ggmeme.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ggmeme.ErrResource):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ggmeme.ErrNetwork):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
