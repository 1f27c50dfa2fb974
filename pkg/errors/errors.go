package errors

import (
	"errors"
	"fmt"
)

// Error classes. Handlers map these to HTTP status codes with errors.Is.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("conflict")
	ErrInternal          = errors.New("internal error")
)

var (
	ErrInvalidAmount      = fmt.Errorf("%w: amount must be positive with at most 10 integer and 2 fraction digits", ErrInvalidInput)
	ErrInvalidMessage     = fmt.Errorf("%w: message must be between 5 and 200 characters", ErrInvalidInput)
	ErrSelfTransfer       = fmt.Errorf("%w: payer and payee accounts must differ", ErrInvalidInput)
	ErrInvalidPagination  = fmt.Errorf("%w: offset must be >= 0 and limit >= 1", ErrInvalidInput)
	ErrInvalidCursor      = fmt.Errorf("%w: malformed statement cursor", ErrInvalidInput)
	ErrInvalidAccountType = fmt.Errorf("%w: unknown account type", ErrInvalidInput)
	ErrNilPayment         = fmt.Errorf("%w: payment is nil", ErrInvalidInput)
	ErrNilAccount         = fmt.Errorf("%w: account is nil", ErrInvalidInput)

	ErrAccountNotFound  = fmt.Errorf("account %w", ErrNotFound)
	ErrGameNotFound     = fmt.Errorf("game %w", ErrNotFound)
	ErrGameNotActive    = fmt.Errorf("active game %w", ErrNotFound)
	ErrUserNotInGame    = fmt.Errorf("game participant %w", ErrNotFound)
	ErrAccountNotInGame = fmt.Errorf("account in game %w", ErrNotFound)
	ErrPaymentNotFound  = fmt.Errorf("payment %w", ErrNotFound)

	ErrAccountAlreadyExists = fmt.Errorf("%w: account already exists", ErrConflict)
	ErrAccountConflict      = fmt.Errorf("%w: account creation did not settle, retry the request", ErrConflict)
	ErrRequestInProgress    = fmt.Errorf("%w: request with this idempotency key is in progress", ErrConflict)
	ErrIdempotencyKeyReused = fmt.Errorf("%w: idempotency key was used with a different request", ErrConflict)
)
