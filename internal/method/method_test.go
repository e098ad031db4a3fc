package method

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		m, ok := Lookup(name)
		if !ok {
			t.Fatalf("expected %q to be registered", name)
		}
		if m.Name() != name {
			t.Fatalf("expected name %q, got %q", name, m.Name())
		}
	}

	if _, ok := Lookup("crypto"); ok {
		t.Fatal("expected unknown method to be rejected")
	}
}

func TestCardProcess(t *testing.T) {
	m, _ := Lookup(Card)

	if err := m.Process(decimal.NewFromInt(200)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Process(decimal.NewFromInt(2_000_000)); !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected ErrDeclined above ceiling, got %v", err)
	}
}

func TestBankTransferProcess(t *testing.T) {
	m, _ := Lookup(BankTransfer)

	if err := m.Process(decimal.NewFromInt(50)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Process(decimal.RequireFromString("0.50")); !errors.Is(err, ErrDeclined) {
		t.Fatalf("expected ErrDeclined below floor, got %v", err)
	}
}
