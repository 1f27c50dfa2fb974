package service

import (
	"strings"
	"unicode/utf8"

	"github.com/honeynil/game-payment-ledger/internal/models"
	"github.com/honeynil/game-payment-ledger/pkg/money"
	pkgerrors "github.com/honeynil/game-payment-ledger/pkg/errors"
)

// ValidateNewPayment checks amount, message and self-transfer in that order.
// It touches no storage.
func ValidateNewPayment(req models.NewPayment) error {
	if err := money.Validate(req.Amount); err != nil {
		return err
	}
	if err := validateMessage(req.Message); err != nil {
		return err
	}
	if req.AccountIDFrom == req.AccountIDTo {
		return pkgerrors.ErrSelfTransfer
	}
	return nil
}

func validateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return pkgerrors.ErrInvalidMessage
	}
	n := utf8.RuneCountInString(message)
	if n < models.MessageMinLength || n > models.MessageMaxLength {
		return pkgerrors.ErrInvalidMessage
	}
	return nil
}
