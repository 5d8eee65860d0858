// Package handlers - HTTP handlers операторского API.
package handlers

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse - унифицированный формат ошибки API
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeJSON сериализует тело ответа
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// writeError возвращает ошибку в унифицированном формате
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
