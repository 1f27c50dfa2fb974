package kafka

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentCommittedType is carried in the event_type header of payment events.
const PaymentCommittedType = "payment.committed"

// PaymentCommitted is published after a payment is durably recorded.
type PaymentCommitted struct {
	EventID       string          `json:"event_id"`
	PaymentID     int64           `json:"payment_id"`
	GameID        int64           `json:"game_id"`
	AccountIDFrom int64           `json:"account_id_from"`
	AccountIDTo   int64           `json:"account_id_to"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentOn     time.Time       `json:"payment_on"`
}

// ParticipantJoined is consumed from the game service when a user joins a game.
type ParticipantJoined struct {
	GameID      int64  `json:"game_id"`
	UserID      int64  `json:"user_id"`
	AccountType string `json:"account_type,omitempty"`
}
