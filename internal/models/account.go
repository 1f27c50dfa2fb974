package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	GameID       int64           `json:"game_id"`
	Type         AccountType     `json:"type"`
	StartBalance decimal.Decimal `json:"start_balance"`
	CreatedOn    time.Time       `json:"created_on"`
}

// AccountKey is the natural key of an account: one per user, game and type.
type AccountKey struct {
	UserID int64
	GameID int64
	Type   AccountType
}

func (a *Account) Key() AccountKey {
	return AccountKey{UserID: a.UserID, GameID: a.GameID, Type: a.Type}
}

type AccountType string

const (
	AccountTypeGameBalance AccountType = "GAME_BALANCE"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeGameBalance:
		return true
	}
	return false
}
