// Package http provides HTTP server and handler implementations.
//
// This file implements the Builder Pattern for JSON responses and the
// mapping from ledger errors to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"saldo/internal/core"
	applog "saldo/internal/log"
	"saldo/internal/services"
	"saldo/internal/tabular"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value to encode. A nil body writes no content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if err := json.NewEncoder(w).Encode(b.body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// writeError maps ledger errors to status codes. Client errors carry their
// message; anything else is reported as an opaque failure.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	logger := applog.NewStructuredLogger(applog.FromContext(ctx))
	rejected := func(errorType string) {
		applog.FromContext(ctx).DebugContext(ctx, "Request rejected",
			applog.FieldOperation, op,
			applog.FieldErrorType, errorType,
			applog.FieldError, err.Error())
	}

	switch {
	case core.IsValidationError(err):
		rejected(applog.ErrorTypeValidation)
		ErrorResponse(http.StatusBadRequest, err.Error()).Write(w)
	case errors.Is(err, core.ErrTransactionNotFound):
		rejected(applog.ErrorTypeNotFound)
		ErrorResponse(http.StatusNotFound, err.Error()).Write(w)
	case errors.Is(err, tabular.ErrUploadTooLarge):
		rejected(applog.ErrorTypeTooLarge)
		ErrorResponse(http.StatusRequestEntityTooLarge, err.Error()).Write(w)
	default:
		logger.LogError(ctx, "Request failed", err, applog.ErrorTypeInternal, op)
		ErrorResponse(http.StatusInternalServerError, "operation failed").Write(w)
	}
}

type categoryResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type transactionResponse struct {
	ID        string               `json:"id"`
	Title     string               `json:"title"`
	Value     core.Money           `json:"value"`
	Type      core.TransactionType `json:"type"`
	Category  *categoryResponse    `json:"category,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

type balanceResponse struct {
	Income  core.Money `json:"income"`
	Outcome core.Money `json:"outcome"`
	Total   core.Money `json:"total"`
}

type ledgerResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Balance      balanceResponse       `json:"balance"`
}

func toTransactionResponse(tx core.Transaction) transactionResponse {
	out := transactionResponse{
		ID:        tx.ID,
		Title:     tx.Title,
		Value:     tx.Value,
		Type:      tx.Type,
		CreatedAt: tx.CreatedAt,
	}
	if tx.Category != nil {
		out.Category = &categoryResponse{ID: tx.Category.ID, Title: tx.Category.Title}
	}
	return out
}

func toTransactionsResponse(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = toTransactionResponse(tx)
	}
	return out
}

func toLedgerResponse(l services.Ledger) ledgerResponse {
	return ledgerResponse{
		Transactions: toTransactionsResponse(l.Transactions),
		Balance: balanceResponse{
			Income:  l.Balance.Income,
			Outcome: l.Balance.Outcome,
			Total:   l.Balance.Total,
		},
	}
}
