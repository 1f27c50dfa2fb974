package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewPayment_Fingerprint(t *testing.T) {
	base := NewPayment{AccountIDFrom: 1, AccountIDTo: 2, Amount: decimal.RequireFromString("40.00"), GameID: 3, Message: "rent for the harbour"}

	same := base
	same.Amount = decimal.NewFromInt(40)
	assert.Equal(t, base.Fingerprint(), same.Fingerprint())
	assert.Len(t, base.Fingerprint(), 64)

	changes := map[string]func(*NewPayment){
		"payer":   func(p *NewPayment) { p.AccountIDFrom = 9 },
		"payee":   func(p *NewPayment) { p.AccountIDTo = 9 },
		"amount":  func(p *NewPayment) { p.Amount = decimal.RequireFromString("40.01") },
		"game":    func(p *NewPayment) { p.GameID = 9 },
		"message": func(p *NewPayment) { p.Message = "rent for the harbor" },
	}
	for name, change := range changes {
		t.Run(name, func(t *testing.T) {
			other := base
			change(&other)
			assert.NotEqual(t, base.Fingerprint(), other.Fingerprint())
		})
	}
}
