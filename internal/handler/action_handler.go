package handler

import (
	"net/http"

	"transfer-hub/internal/query"
	"transfer-hub/internal/service"
)

type ActionHandler struct {
	actionService *service.ActionService
}

func NewActionHandler(actionService *service.ActionService) *ActionHandler {
	return &ActionHandler{
		actionService: actionService,
	}
}

func (h *ActionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.actionService.FindAll(r.Context(), query.FromURL(r.URL.Query()))
	if err != nil {
		writeError(w, err)
		return
	}

	writePage(w, "Action logs fetched successfully", page)
}
