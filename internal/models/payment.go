package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/honeynil/game-payment-ledger/pkg/pagination"
)

// Payment is a committed ledger entry. Rows are never updated or deleted;
// a reversal is a new payment in the opposite direction.
type Payment struct {
	ID            int64           `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentOn     time.Time       `json:"payment_on"`
	AccountIDFrom int64           `json:"account_id_from"`
	AccountIDTo   int64           `json:"account_id_to"`
	Message       string          `json:"message"`
	GameID        int64           `json:"game_id"`
}

type NewPayment struct {
	AccountIDFrom int64
	AccountIDTo   int64
	Amount        decimal.Decimal
	GameID        int64
	Message       string
}

// Fingerprint identifies the request by content. Amounts that differ only in
// trailing zeros give the same fingerprint.
func (p NewPayment) Fingerprint() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%d|%s|%d|%s", p.AccountIDFrom, p.AccountIDTo, p.Amount.String(), p.GameID, p.Message)))
	return hex.EncodeToString(sum[:])
}

// LedgerTotals are the sums of an account's incoming and outgoing payments.
type LedgerTotals struct {
	Credits decimal.Decimal
	Debits  decimal.Decimal
}

func (t LedgerTotals) Balance(start decimal.Decimal) decimal.Decimal {
	return start.Add(t.Credits).Sub(t.Debits)
}

type StatementQuery struct {
	AccountID int64
	GameID    int64
	Offset    int
	Limit     int
	After     *pagination.Cursor
}

const (
	MessageMinLength = 5
	MessageMaxLength = 200
)
