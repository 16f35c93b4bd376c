package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"transfer-hub/internal/errors"
	"transfer-hub/internal/query"
)

type Response struct {
	Message    string            `json:"message,omitempty"`
	Data       interface{}       `json:"data,omitempty"`
	Pagination *query.Pagination `json:"pagination,omitempty"`
	Error      *Error            `json:"error,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := Response{Message: message, Data: data}
	json.NewEncoder(w).Encode(response)
}

func writePage[T any](w http.ResponseWriter, message string, page *query.Page[T]) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	json.NewEncoder(w).Encode(Response{
		Message:    message,
		Data:       page.Data,
		Pagination: &page.Pagination,
	})
}

func writeError(w http.ResponseWriter, err error) {
	appErr := errors.As(err)
	w.Header().Set("Content-Type", "application/json")

	statusCode := appErr.HTTPStatus()
	errResponse := Error{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	}

	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{Error: &errResponse})
}

// pathID reads the {id} route variable. Ids that are not UUIDs cannot name
// a stored transaction, so they are reported as not found.
func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, errors.ErrTransactionNotFound
	}
	return id, nil
}
