package res

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON shape for error replies.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode int    `json:"error_code,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// JsonResponse writes data as JSON with the given status.
func JsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
