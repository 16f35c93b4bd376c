package handler

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"

	"transfer-hub/internal/errors"
	"transfer-hub/internal/query"
	"transfer-hub/internal/service"
)

// MinAmount is the smallest amount accepted on creation, in minor units.
const MinAmount = 100

var phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

type TransactionHandler struct {
	transactionService *service.TransactionService
	transferService    *service.TransferService
	actionService      *service.ActionService
}

func NewTransactionHandler(
	transactionService *service.TransactionService,
	transferService *service.TransferService,
	actionService *service.ActionService,
) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		transferService:    transferService,
		actionService:      actionService,
	}
}

type RecipientRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type CreateTransactionRequest struct {
	Amount    json.Number      `json:"amount"`
	Channel   string           `json:"channel"`
	Currency  string           `json:"currency,omitempty"`
	Recipient RecipientRequest `json:"recipient"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

func (req *CreateTransactionRequest) validate() (int64, error) {
	var problems []string

	amount, err := req.Amount.Int64()
	switch {
	case err != nil:
		problems = append(problems, "amount must be an integer")
	case amount < MinAmount:
		problems = append(problems, "amount must not be less than 100")
	}
	if strings.TrimSpace(req.Channel) == "" {
		problems = append(problems, "channel is required")
	}
	if strings.TrimSpace(req.Recipient.Name) == "" {
		problems = append(problems, "recipient.name is required")
	}
	if !phonePattern.MatchString(req.Recipient.Phone) {
		problems = append(problems, "recipient.phone must be a valid phone number")
	}

	if len(problems) > 0 {
		return 0, errors.NewAppError(errors.ValidationError, "invalid request body").
			WithDetails(strings.Join(problems, "; "))
	}
	return amount, nil
}

func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.ValidationError, "invalid request body").WithDetails(err.Error()))
		return
	}

	amount, err := req.validate()
	if err != nil {
		writeError(w, err)
		return
	}

	transaction, err := h.transactionService.Create(r.Context(), &service.CreateTransactionRequest{
		Amount:      amount,
		ChannelCode: strings.TrimSpace(req.Channel),
		PayeeName:   strings.TrimSpace(req.Recipient.Name),
		PayeePhone:  req.Recipient.Phone,
		Currency:    req.Currency,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, "Transaction created successfully", transaction)
}

func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.transactionService.FindAll(r.Context(), query.FromURL(r.URL.Query()))
	if err != nil {
		writeError(w, err)
		return
	}

	writePage(w, "Transactions fetched successfully", page)
}

func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	transaction, err := h.transactionService.FindOne(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, "Transaction fetched successfully", transaction)
}

func (h *TransactionHandler) Actions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.actionService.ForTransaction(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, "Transaction actions fetched successfully", entries)
}

type ProcessResponse struct {
	TransactionID     string `json:"transactionId"`
	Message           string `json:"message"`
	ProviderReference string `json:"provider_ref"`
}

func (h *TransactionHandler) Process(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.transferService.Process(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, "Transaction processing started", ProcessResponse{
		TransactionID:     id.String(),
		Message:           resp.Message,
		ProviderReference: resp.ProviderReference,
	})
}

func (h *TransactionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	transaction, err := h.transactionService.Cancel(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, "Transaction canceled successfully", transaction)
}
