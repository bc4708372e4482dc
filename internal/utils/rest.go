package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON error envelope every API handler returns. The
// message is merchant-facing; internal detail stays in the logs.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondWithError writes a merchant-facing error message as JSON.
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}

// RespondWithJSON writes the payload as a JSON response. The payload is
// marshalled before the status line goes out, so an encoding fault still
// produces a clean 500 instead of a truncated 200 body.
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, err = w.Write(body)
	return err
}
