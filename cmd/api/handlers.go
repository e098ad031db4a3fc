package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/edupay/feepay/internal/helpers"
	"github.com/edupay/feepay/internal/method"
	"github.com/edupay/feepay/internal/model"
	"github.com/edupay/feepay/internal/repository"
	"github.com/edupay/feepay/internal/service"
)

// createPayment handles POST /api/payments
func (app *application) createPayment(w http.ResponseWriter, r *http.Request) {
	var req model.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		helpers.WriteError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}

	payment, err := app.paymentService.RecordPayment(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			helpers.WriteError(w, http.StatusBadRequest, "validation_error", err.Error())
		case errors.Is(err, method.ErrDeclined):
			helpers.WriteError(w, http.StatusUnprocessableEntity, "method_declined", err.Error())
		case errors.Is(err, repository.ErrPayerNotFound):
			helpers.WriteError(w, http.StatusNotFound, "payer_not_found", "payer not found")
		case errors.Is(err, repository.ErrInsufficientBalance):
			helpers.WriteError(w, http.StatusUnprocessableEntity, "insufficient_balance", "balance is insufficient for this payment")
		case errors.Is(err, repository.ErrDuplicatePayment):
			helpers.WriteError(w, http.StatusConflict, "duplicate_payment", "a payment for this payer already exists on this date")
		default:
			app.logger.Error("recordPayment failed", "payerID", req.PayerID, "error", err)
			helpers.WriteError(w, http.StatusInternalServerError, "storage_error", "internal server error")
		}
		return
	}

	helpers.WriteJSON(w, http.StatusCreated, payment)
}

// listPayments handles GET /api/payments
func (app *application) listPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := app.paymentService.ListPayments(r.Context())
	if err != nil {
		app.logger.Error("listPayments failed", "error", err)
		helpers.WriteError(w, http.StatusInternalServerError, "storage_error", "internal server error")
		return
	}

	helpers.WriteJSON(w, http.StatusOK, payments)
}

// getPayerBalance handles GET /api/payers/{payerId}/balance
func (app *application) getPayerBalance(w http.ResponseWriter, r *http.Request) {
	payerID, err := helpers.ParsePayerID(r)
	if err != nil {
		helpers.WriteError(w, http.StatusBadRequest, "validation_error", "invalid payer id")
		return
	}

	balance, err := app.userService.GetBalance(r.Context(), payerID)
	if err != nil {
		if errors.Is(err, repository.ErrPayerNotFound) {
			helpers.WriteError(w, http.StatusNotFound, "payer_not_found", "payer not found")
			return
		}
		app.logger.Error("getBalance failed", "payerID", payerID, "error", err)
		helpers.WriteError(w, http.StatusInternalServerError, "storage_error", "internal server error")
		return
	}

	helpers.WriteJSON(w, http.StatusOK, balance)
}

// getQueueStats handles GET /admin/queues — read-only monitoring of the
// finalization queue.
func (app *application) getQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := app.paymentService.QueueStats(r.Context())
	if err != nil {
		app.logger.Error("queueStats failed", "error", err)
		helpers.WriteError(w, http.StatusInternalServerError, "storage_error", "internal server error")
		return
	}

	helpers.WriteJSON(w, http.StatusOK, stats)
}

func (app *application) healthCheck(w http.ResponseWriter, r *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"env":    app.config.env,
	})
}
