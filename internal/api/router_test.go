package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/honeynil/game-payment-ledger/internal/handler"
	"github.com/honeynil/game-payment-ledger/internal/infrastructure/auth"
	servicemocks "github.com/honeynil/game-payment-ledger/internal/services/mocks"
)

const secret = "router-secret"

func TestSetupRouter(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := servicemocks.NewMockLedgerService(ctrl)
	router := SetupRouter(handler.NewHandler(svc), secret)

	t.Run("healthz is public", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("metrics is public", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ledger routes need a token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bank-accounts/1/balance?gameId=3", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("authorized request reaches handler", func(t *testing.T) {
		token, err := auth.GenerateJWT(secret, 7, time.Hour)
		require.NoError(t, err)
		svc.EXPECT().GetBalance(gomock.Any(), int64(1), int64(3)).Return(decimal.NewFromInt(60), nil)

		before := testutil.ToFloat64(RequestCounter.WithLabelValues("GET", "/bank-accounts/{accountId}/balance", "200"))

		req := httptest.NewRequest(http.MethodGet, "/bank-accounts/1/balance?gameId=3", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		after := testutil.ToFloat64(RequestCounter.WithLabelValues("GET", "/bank-accounts/{accountId}/balance", "200"))
		assert.Equal(t, before+1, after)
	})
}
