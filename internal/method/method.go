// Package method holds the closed set of supported payment methods. The set
// is small and known, so variants are dispatched through one interface and
// a package registry rather than anything open-ended.
package method

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	Card         = "card"
	BankTransfer = "bank_transfer"
)

// ErrDeclined is returned when a method refuses to process the amount. The
// recorder surfaces it before any storage effect is applied.
var ErrDeclined = errors.New("payment method declined")

// Method is the contract every payment method variant satisfies.
type Method interface {
	Name() string
	Process(amount decimal.Decimal) error
}

var registry = map[string]Method{
	Card:         cardMethod{},
	BankTransfer: bankTransferMethod{},
}

// Lookup returns the variant for the given tag, or false for an
// unrecognized method.
func Lookup(name string) (Method, bool) {
	m, ok := registry[name]
	return m, ok
}

// Names lists the recognized method tags.
func Names() []string {
	return []string{Card, BankTransfer}
}

// cardMethod charges a card. Single charges above the network ceiling are
// declined up front.
type cardMethod struct{}

var cardCeiling = decimal.NewFromInt(1_000_000)

func (cardMethod) Name() string { return Card }

func (cardMethod) Process(amount decimal.Decimal) error {
	if amount.GreaterThan(cardCeiling) {
		return fmt.Errorf("%w: card charge above %s", ErrDeclined, cardCeiling.StringFixed(2))
	}
	return nil
}

// bankTransferMethod settles over bank transfer. Transfers below the
// clearing minimum are declined.
type bankTransferMethod struct{}

var transferFloor = decimal.NewFromInt(1)

func (bankTransferMethod) Name() string { return BankTransfer }

func (bankTransferMethod) Process(amount decimal.Decimal) error {
	if amount.LessThan(transferFloor) {
		return fmt.Errorf("%w: transfer below %s", ErrDeclined, transferFloor.StringFixed(2))
	}
	return nil
}
