// Package httpapi is the operator query API and the liveness endpoint of
// the process host.
package httpapi

import (
	"encoding/json"
	"net/http"

	errx "github.com/stock-monitor/server/internal/core/error"
)

type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text + "\n"))
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, jsonError{Error: message, Details: details})
}

// writeAppError maps err to its status and safe message. Details are only
// exposed for caller mistakes.
func writeAppError(w http.ResponseWriter, err error) {
	var details string
	if k := errx.KindOf(err); k == errx.KindInvalidArgument || k == errx.KindNotFound {
		details = err.Error()
	}
	WriteJSONError(w, errx.StatusOf(err), errx.MessageOf(err), details)
}
