package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edupay/feepay/internal/events"
	"github.com/edupay/feepay/internal/model"
	"github.com/edupay/feepay/internal/queue"
	"github.com/edupay/feepay/internal/repository"
	"github.com/edupay/feepay/internal/service"

	"github.com/shopspring/decimal"
)

// fakeStore backs both the payment and balance stores for handler tests.
type fakeStore struct {
	mu        sync.Mutex
	balances  map[int64]decimal.Decimal
	payments  []model.PaymentWithPayer
	paidToday map[int64]bool
	nextID    int64
}

func newHandlerStore() *fakeStore {
	return &fakeStore{
		balances:  map[int64]decimal.Decimal{1: decimal.NewFromInt(1000)},
		paidToday: make(map[int64]bool),
	}
}

func (s *fakeStore) Create(ctx context.Context, payerID int64, amount decimal.Decimal, methodName string) (model.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	balance, ok := s.balances[payerID]
	if !ok {
		return model.Payment{}, repository.ErrPayerNotFound
	}
	if balance.LessThan(amount) {
		return model.Payment{}, repository.ErrInsufficientBalance
	}
	if s.paidToday[payerID] {
		return model.Payment{}, repository.ErrDuplicatePayment
	}

	s.balances[payerID] = balance.Sub(amount)
	s.paidToday[payerID] = true
	s.nextID++
	p := model.Payment{
		ID:        s.nextID,
		PayerID:   payerID,
		Amount:    amount,
		Method:    methodName,
		Status:    model.StatusPending,
		PaidOn:    time.Now().UTC(),
		CreatedAt: time.Now().UTC(),
	}
	s.payments = append(s.payments, model.PaymentWithPayer{
		Payment: p, PayerName: "Amina Yusuf", PayerEmail: "amina@example.com",
	})
	return p, nil
}

func (s *fakeStore) ListWithPayers(ctx context.Context) ([]model.PaymentWithPayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.PaymentWithPayer{}, s.payments...), nil
}

func (s *fakeStore) GetBalance(ctx context.Context, payerID int64) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance, ok := s.balances[payerID]
	if !ok {
		return decimal.Decimal{}, repository.ErrPayerNotFound
	}
	return balance, nil
}

func newTestApp(t *testing.T) (*application, *fakeStore) {
	t.Helper()
	store := newHandlerStore()
	q := queue.NewMemory(queue.FinalizePayment)
	t.Cleanup(func() { q.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app := &application{
		config:         config{env: "test"},
		logger:         logger,
		paymentService: service.NewPaymentService(store, q, events.Nop{}, logger),
		userService:    service.NewUserService(store),
	}
	return app, store
}

func do(t *testing.T, app *application, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	app.routes().ServeHTTP(rec, req)
	return rec
}

func errKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp model.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error
}

func TestCreatePayment(t *testing.T) {
	app, store := newTestApp(t)

	rec := do(t, app, http.MethodPost, "/api/payments",
		`{"payerId": 1, "amount": 200, "method": "card"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var p model.Payment
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("invalid payment body: %v", err)
	}
	if p.ID == 0 || p.Status != model.StatusPending || !p.Amount.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("unexpected payment: %+v", p)
	}
	if got := store.balances[1]; !got.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("expected balance 800, got %s", got)
	}
}

func TestCreatePaymentErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantKind string
	}{
		{"invalid json", `{"payerId": `, http.StatusBadRequest, "validation_error"},
		{"missing payer", `{"amount": 10, "method": "card"}`, http.StatusBadRequest, "validation_error"},
		{"unknown method", `{"payerId": 1, "amount": 10, "method": "barter"}`, http.StatusBadRequest, "validation_error"},
		{"payer not found", `{"payerId": 42, "amount": 10, "method": "card"}`, http.StatusNotFound, "payer_not_found"},
		{"insufficient balance", `{"payerId": 1, "amount": 5000, "method": "card"}`, http.StatusUnprocessableEntity, "insufficient_balance"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newTestApp(t)
			rec := do(t, app, http.MethodPost, "/api/payments", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if kind := errKind(t, rec); kind != tt.wantKind {
				t.Fatalf("expected error kind %q, got %q", tt.wantKind, kind)
			}
		})
	}
}

func TestCreatePaymentDuplicateSameDay(t *testing.T) {
	app, store := newTestApp(t)
	body := `{"payerId": 1, "amount": 200, "method": "card"}`

	if rec := do(t, app, http.MethodPost, "/api/payments", body); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on first payment, got %d", rec.Code)
	}

	rec := do(t, app, http.MethodPost, "/api/payments", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d: %s", rec.Code, rec.Body.String())
	}
	if kind := errKind(t, rec); kind != "duplicate_payment" {
		t.Fatalf("expected duplicate_payment, got %q", kind)
	}
	if got := store.balances[1]; !got.Equal(decimal.NewFromInt(800)) {
		t.Fatalf("expected balance 800 after rejected duplicate, got %s", got)
	}
}

func TestListPayments(t *testing.T) {
	app, _ := newTestApp(t)
	do(t, app, http.MethodPost, "/api/payments", `{"payerId": 1, "amount": 50, "method": "bank_transfer"}`)

	rec := do(t, app, http.MethodGet, "/api/payments", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payments []model.PaymentWithPayer
	if err := json.Unmarshal(rec.Body.Bytes(), &payments); err != nil {
		t.Fatalf("invalid list body: %v", err)
	}
	if len(payments) != 1 || payments[0].PayerName != "Amina Yusuf" {
		t.Fatalf("unexpected payments: %+v", payments)
	}
}

func TestGetPayerBalance(t *testing.T) {
	app, _ := newTestApp(t)

	rec := do(t, app, http.MethodGet, "/api/payers/1/balance", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp model.BalanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid balance body: %v", err)
	}
	if resp.PayerID != 1 || resp.Balance != "1000.00" {
		t.Fatalf("unexpected balance: %+v", resp)
	}

	if rec := do(t, app, http.MethodGet, "/api/payers/42/balance", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(t, app, http.MethodGet, "/api/payers/abc/balance", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetQueueStats(t *testing.T) {
	app, _ := newTestApp(t)
	do(t, app, http.MethodPost, "/api/payments", `{"payerId": 1, "amount": 50, "method": "card"}`)

	rec := do(t, app, http.MethodGet, "/admin/queues", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats queue.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid stats body: %v", err)
	}
	if stats.Queue != queue.FinalizePayment || stats.Waiting != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestHealthCheck(t *testing.T) {
	app, _ := newTestApp(t)

	rec := do(t, app, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
