package handlers

import (
	"encoding/json"
	"net/http"

	"gitlab.com/autoserver-2025.net/internal/handlers/response"
)

func ResponseWithJson(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func ResponseError(w http.ResponseWriter, message string, code int) {
	response.WriteError(w, response.ErrorMessage{
		Message:    message,
		StatusCode: code,
	})
}
