package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/honeynil/game-payment-ledger/internal/models"
	service "github.com/honeynil/game-payment-ledger/internal/services"
	pkgerrors "github.com/honeynil/game-payment-ledger/pkg/errors"
	"github.com/honeynil/game-payment-ledger/pkg/pagination"
)

const (
	timestampLayout      = "2006-01-02 15:04:05"
	idempotencyKeyHeader = "Idempotency-Key"
	nextCursorHeader     = "X-Next-Cursor"
)

type Handler struct {
	service  service.LedgerService
	validate *validator.Validate
}

func NewHandler(s service.LedgerService) *Handler {
	v := validator.New()
	// Ошибки валидации называют поля так же, как они приходят в JSON.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Handler{service: s, validate: v}
}

type errorResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type createPaymentRequest struct {
	AccountIDFrom int64           `json:"accountIdFrom" validate:"required,gt=0"`
	AccountIDTo   int64           `json:"accountIdTo" validate:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount"`
	GameID        int64           `json:"gameId" validate:"required,gt=0"`
	Message       string          `json:"message" validate:"required,min=5,max=200"`
}

type statementParams struct {
	From int `validate:"gte=0"`
	Size int `validate:"gte=1"`
}

type paymentDto struct {
	ID            int64  `json:"id"`
	Amount        string `json:"amount"`
	PaymentOn     string `json:"paymentOn"`
	AccountIDFrom int64  `json:"accountIdFrom"`
	AccountIDTo   int64  `json:"accountIdTo"`
	Message       string `json:"message"`
	GameID        int64  `json:"gameId"`
}

type accountDto struct {
	ID           int64  `json:"id"`
	UserID       int64  `json:"userId"`
	GameID       int64  `json:"gameId"`
	Type         string `json:"type"`
	StartBalance string `json:"startBalance"`
	CreatedOn    string `json:"createdOn"`
}

type balanceDto struct {
	AccountID int64  `json:"accountId"`
	GameID    int64  `json:"gameId"`
	Balance   string `json:"balance"`
}

func toPaymentDto(p *models.Payment) paymentDto {
	return paymentDto{
		ID:            p.ID,
		Amount:        p.Amount.StringFixed(2),
		PaymentOn:     p.PaymentOn.UTC().Format(timestampLayout),
		AccountIDFrom: p.AccountIDFrom,
		AccountIDTo:   p.AccountIDTo,
		Message:       p.Message,
		GameID:        p.GameID,
	}
}

func toAccountDto(a *models.Account) accountDto {
	return accountDto{
		ID:           a.ID,
		UserID:       a.UserID,
		GameID:       a.GameID,
		Type:         string(a.Type),
		StartBalance: a.StartBalance.StringFixed(2),
		CreatedOn:    a.CreatedOn.UTC().Format(timestampLayout),
	}
}

// statusFor maps error classes to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, pkgerrors.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, pkgerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pkgerrors.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		message = "internal server error"
	}
	h.writeJSON(w, status, errorResponse{
		Status:    strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_")),
		Message:   message,
		Timestamp: time.Now().UTC().Format(timestampLayout),
	})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.writeError(w, statusFor(err), err)
}

func (h *Handler) RegisterPublicRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", h.Healthz).Methods("GET")
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router) {
	r.HandleFunc("/payments", h.CreatePayment).Methods("POST")
	r.HandleFunc("/payments/statement/account/{accountId}/game/{gameId}", h.GetStatement).Methods("GET")
	r.HandleFunc("/payments/{paymentId}", h.GetPayment).Methods("GET")
	r.HandleFunc("/bank-accounts/users/{userId}/balance", h.GetBalanceByUser).Methods("GET")
	r.HandleFunc("/bank-accounts/{accountId}/balance", h.GetBalance).Methods("GET")
	r.HandleFunc("/games/{gameId}/participants/{userId}/accounts", h.ResolveAccount).Methods("PUT")
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, errors.New("malformed request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.fail(w, requestError(err))
		return
	}

	payment, replayed, err := h.service.CreatePayment(r.Context(), r.Header.Get(idempotencyKeyHeader), models.NewPayment{
		AccountIDFrom: req.AccountIDFrom,
		AccountIDTo:   req.AccountIDTo,
		Amount:        req.Amount,
		GameID:        req.GameID,
		Message:       req.Message,
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	status := http.StatusCreated
	if replayed {
		status = http.StatusOK
	}
	h.writeJSON(w, status, toPaymentDto(payment))
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "paymentId")
	if err != nil {
		h.fail(w, err)
		return
	}

	payment, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toPaymentDto(payment))
}

// GetStatement returns one page of the account's payments in the game. A full
// page carries the keyset cursor of its last row in X-Next-Cursor.
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountId")
	if err != nil {
		h.fail(w, err)
		return
	}
	gameID, err := pathID(r, "gameId")
	if err != nil {
		h.fail(w, err)
		return
	}

	params := statementParams{From: 0, Size: pagination.DefaultLimit}
	q := r.URL.Query()
	if params.From, err = queryInt(q.Get("from"), params.From); err != nil {
		h.fail(w, err)
		return
	}
	if params.Size, err = queryInt(q.Get("size"), params.Size); err != nil {
		h.fail(w, err)
		return
	}
	if err := h.validate.Struct(params); err != nil {
		h.writeError(w, http.StatusBadRequest, pkgerrors.ErrInvalidPagination)
		return
	}
	after, err := pagination.DecodeCursor(q.Get("after"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, pkgerrors.ErrInvalidCursor)
		return
	}

	payments, err := h.service.GetStatement(r.Context(), models.StatementQuery{
		AccountID: accountID,
		GameID:    gameID,
		Offset:    params.From,
		Limit:     params.Size,
		After:     after,
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	dtos := make([]paymentDto, 0, len(payments))
	for i := range payments {
		dtos = append(dtos, toPaymentDto(&payments[i]))
	}
	if n := len(payments); n > 0 && n == pagination.ClampLimit(params.Size) {
		last := payments[n-1]
		w.Header().Set(nextCursorHeader, pagination.EncodeCursor(last.PaymentOn, last.ID))
	}
	h.writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountId")
	if err != nil {
		h.fail(w, err)
		return
	}
	gameID, err := requiredQueryID(r, "gameId")
	if err != nil {
		h.fail(w, err)
		return
	}

	balance, err := h.service.GetBalance(r.Context(), accountID, gameID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balanceDto{AccountID: accountID, GameID: gameID, Balance: balance.StringFixed(2)})
}

func (h *Handler) GetBalanceByUser(w http.ResponseWriter, r *http.Request) {
	key, err := accountKey(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	account, balance, err := h.service.GetBalanceByUser(r.Context(), key)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balanceDto{AccountID: account.ID, GameID: account.GameID, Balance: balance.StringFixed(2)})
}

func (h *Handler) ResolveAccount(w http.ResponseWriter, r *http.Request) {
	key, err := accountKey(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	account, err := h.service.ResolveAccount(r.Context(), key)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toAccountDto(account))
}

// accountKey reads userId from the path, gameId from the path or query and
// the optional account type.
func accountKey(r *http.Request) (models.AccountKey, error) {
	userID, err := pathID(r, "userId")
	if err != nil {
		return models.AccountKey{}, err
	}
	var gameID int64
	if _, ok := mux.Vars(r)["gameId"]; ok {
		gameID, err = pathID(r, "gameId")
	} else {
		gameID, err = requiredQueryID(r, "gameId")
	}
	if err != nil {
		return models.AccountKey{}, err
	}

	accountType := models.AccountTypeGameBalance
	if t := r.URL.Query().Get("type"); t != "" {
		accountType = models.AccountType(strings.ToUpper(t))
	}
	return models.AccountKey{UserID: userID, GameID: gameID, Type: accountType}, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	return parseID(name, mux.Vars(r)[name])
}

func requiredQueryID(r *http.Request, name string) (int64, error) {
	return parseID(name, r.URL.Query().Get(name))
}

func parseID(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidParam(name)
	}
	return id, nil
}

func queryInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.ErrInvalidPagination
	}
	return n, nil
}

// requestError turns the first failed rule into the ledger error a client
// would get from the service for the same field.
func requestError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return pkgerrors.ErrInvalidInput
	}
	field := verrs[0].Field()
	if field == "message" {
		return pkgerrors.ErrInvalidMessage
	}
	return invalidParam(field)
}

func invalidParam(name string) error {
	return fmt.Errorf("%w: %s must be a positive integer", pkgerrors.ErrInvalidInput, name)
}
