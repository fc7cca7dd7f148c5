// Package handlers exposes the checkout ledger over HTTP.
//
// Two clients talk to it:
//
//   - the customer's page: POST /api/checkout, then polls
//     GET /api/checkout-status until the payment clears.
//   - the machine's embedded controller: polls GET /api/commands and reports
//     each dispense with POST /api/confirm-sale.
//
// POST /api/test-approve stands in for the payment provider's webhook until
// one is integrated and is only mounted when test routes are enabled.
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/arkantrust/vending-checkout/ledger"
	"github.com/arkantrust/vending-checkout/models"
	"github.com/arkantrust/vending-checkout/money"
)

// Handler holds the dependencies for all checkout HTTP handlers.
type Handler struct {
	ledger *ledger.Ledger
}

// New creates a new Handler over the given ledger.
func New(l *ledger.Ledger) *Handler {
	return &Handler{ledger: l}
}

// writeJSON serialises v as JSON and writes it to w with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// maxBodyBytes caps request bodies; every payload here is a couple of ids.
const maxBodyBytes = 16 << 10

// decodeBody decodes exactly one JSON value from a size-limited body.
// Oversized bodies and trailing data after the value are rejected.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// writeLedgerError maps ledger failures onto status codes. Unexpected errors
// are logged and hidden behind a generic 500.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, http.StatusNotFound, "checkout not found")
	case errors.Is(err, ledger.ErrMachineMismatch):
		writeError(w, http.StatusConflict, "machine does not match checkout")
	case errors.Is(err, ledger.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type createRequest struct {
	MachineID string          `json:"machineId"`
	Quantity  json.RawMessage `json:"quantity"`
}

type createResponse struct {
	CheckoutID       string        `json:"checkoutId"`
	MachineID        string        `json:"machineId"`
	Quantity         int           `json:"quantity"`
	AmountMinorUnits int64         `json:"amountMinorUnits"`
	FormattedAmount  string        `json:"formattedAmount"`
	PaymentReference string        `json:"paymentReference"`
	Status           models.Status `json:"status"`
	// ExpiresAt is reserved for payment references with a validity window.
	ExpiresAt *string `json:"expiresAt"`
}

type statusResponse struct {
	CheckoutID string        `json:"checkoutId"`
	Status     models.Status `json:"status"`
}

type commandResponse struct {
	HasCommand       bool   `json:"hasCommand"`
	CheckoutID       string `json:"checkoutId,omitempty"`
	Quantity         int    `json:"quantity,omitempty"`
	AmountMinorUnits int64  `json:"amountMinorUnits,omitempty"`
}

type confirmRequest struct {
	CheckoutID string `json:"checkoutId"`
	MachineID  string `json:"machineId"`
}

type approveRequest struct {
	CheckoutID string `json:"checkoutId"`
}

type approveResponse struct {
	OK         bool          `json:"ok"`
	CheckoutID string        `json:"checkoutId"`
	Status     models.Status `json:"status"`
}

// parseQuantity accepts a JSON number or a numeric string.
func parseQuantity(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		return ledger.ParseQuantity(s)
	}
	return ledger.ParseQuantity(string(raw))
}

// root handles GET /.
func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("vending checkout backend running\n")) //nolint:errcheck
}

// create handles POST /api/checkout.
func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var body createRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.MachineID == "" || len(body.Quantity) == 0 || string(body.Quantity) == "null" {
		writeError(w, http.StatusBadRequest, "machineId and quantity are required")
		return
	}

	qty, err := parseQuantity(body.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "quantity must be an integer between 1 and 20")
		return
	}

	c, err := h.ledger.Create(body.MachineID, qty)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createResponse{
		CheckoutID:       c.ID,
		MachineID:        c.MachineID,
		Quantity:         c.Quantity,
		AmountMinorUnits: c.AmountMinorUnits,
		FormattedAmount:  money.FormatBRL(c.AmountMinorUnits),
		PaymentReference: c.PaymentReference,
		Status:           c.Status,
	})
}

// status handles GET /api/checkout-status?checkoutId=.
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("checkoutId")
	st, err := h.ledger.Status(id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{CheckoutID: id, Status: st})
}

// commands handles GET /api/commands?machineId=.
//
// "Nothing to dispense" is the normal answer and comes back as 200 with
// hasCommand=false.
func (h *Handler) commands(w http.ResponseWriter, r *http.Request) {
	machineID := r.URL.Query().Get("machineId")
	if machineID == "" {
		writeError(w, http.StatusBadRequest, "machineId is required")
		return
	}

	c, err := h.ledger.FindPendingCommand(machineID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if c == nil {
		writeJSON(w, http.StatusOK, commandResponse{HasCommand: false})
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{
		HasCommand:       true,
		CheckoutID:       c.ID,
		Quantity:         c.Quantity,
		AmountMinorUnits: c.AmountMinorUnits,
	})
}

// confirm handles POST /api/confirm-sale. A repeated confirmation for the
// same checkout gets 409 and records nothing.
func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	var body confirmRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.CheckoutID == "" || body.MachineID == "" {
		writeError(w, http.StatusBadRequest, "checkoutId and machineId are required")
		return
	}

	if _, _, err := h.ledger.Consume(body.CheckoutID, body.MachineID); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// approve handles POST /api/test-approve.
func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	var body approveRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	c, err := h.ledger.Approve(body.CheckoutID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, approveResponse{OK: true, CheckoutID: c.ID, Status: c.Status})
}

// sales handles GET /api/sales. Pure read; always a JSON array.
func (h *Handler) sales(w http.ResponseWriter, r *http.Request) {
	items, err := h.ledger.Sales()
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// machines handles GET /api/machines.
func (h *Handler) machines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Machines())
}
