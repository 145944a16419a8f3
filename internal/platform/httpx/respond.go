// Package httpx writes JSON responses in the shape the dashboard's clients
// expect: payloads as-is, failures as {"error": "..."}.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the error payload every JSON endpoint returns.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON sends data encoded as JSON with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Error sends {"error": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: message})
}

// Raw sends an already encoded JSON body. Statuses that forbid a body get
// headers only.
func Raw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if !bodyAllowed(status) {
		return
	}
	_, _ = w.Write(body)
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
