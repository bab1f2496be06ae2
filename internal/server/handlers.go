package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"swap-custodian/internal/domain"
	"swap-custodian/internal/observability"
	"swap-custodian/internal/quote"
	"swap-custodian/internal/session"
	"swap-custodian/internal/storage"
	"swap-custodian/internal/trading"
	"swap-custodian/internal/wallet"
)

// operatorKeyHeader carries the pre-shared secret for operator endpoints.
const operatorKeyHeader = "X-Auth-Key"

// Swapper is the trading surface the handlers depend on.
type Swapper interface {
	Buy(ctx context.Context, req domain.SwapRequest) (*domain.Trade, error)
	Sell(ctx context.Context, req domain.SwapRequest) (*domain.Trade, error)
	Approve(ctx context.Context, identity, tokenAddress string) (*domain.ApprovalResult, error)
}

// Handler holds the HTTP endpoint implementations.
type Handler struct {
	swapper     Swapper
	sessions    *session.Service
	vault       *wallet.Vault
	trades      storage.TradeStore
	operatorKey string
	logger      *slog.Logger
}

// NewHandler creates the endpoint handler set.
func NewHandler(
	swapper Swapper,
	sessions *session.Service,
	vault *wallet.Vault,
	trades storage.TradeStore,
	operatorKey string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		swapper:     swapper,
		sessions:    sessions,
		vault:       vault,
		trades:      trades,
		operatorKey: operatorKey,
		logger:      logger,
	}
}

type swapBody struct {
	TwitterID    string  `json:"twitterId" binding:"required"`
	TokenAddress string  `json:"tokenAddress" binding:"required"`
	Amount       string  `json:"amount" binding:"required"`
	Slippage     string  `json:"slippage" binding:"required"`
	Decimals     uint8   `json:"decimals"`
	TokenPrice   float64 `json:"tokenPrice"`
}

type approveBody struct {
	TwitterID    string `json:"twitterId" binding:"required"`
	TokenAddress string `json:"tokenAddress" binding:"required"`
}

type identityBody struct {
	TwitterID string `json:"twitterId" binding:"required"`
}

type transactionBody struct {
	TwitterID     string `json:"twitterId" binding:"required"`
	TransactionID string `json:"transactionId" binding:"required"`
}

type refreshBody struct {
	TwitterID    string `json:"twitterId" binding:"required"`
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type testTokenBody struct {
	TwitterID string `json:"twitterId" binding:"required"`
	Token     string `json:"token" binding:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Buy handles POST /buy. The amount is a decimal ether value.
func (h *Handler) Buy(c *gin.Context) {
	var body swapBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}
	if !h.authorizeBearer(c, body.TwitterID) {
		return
	}

	amountIn, err := parseDecimalAmount(body.Amount, 18)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	trade, err := h.swapper.Buy(c.Request.Context(), domain.SwapRequest{
		Identity:      body.TwitterID,
		TokenAddress:  body.TokenAddress,
		AmountIn:      amountIn,
		Slippage:      body.Slippage,
		TokenDecimals: body.Decimals,
		TokenPrice:    body.TokenPrice,
	})
	if err != nil {
		h.respondSwapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"txHash": trade.Hash})
}

// Sell handles POST /sell. The amount is a decimal token value scaled by
// the request's decimals.
func (h *Handler) Sell(c *gin.Context) {
	var body swapBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}
	if !h.authorizeBearer(c, body.TwitterID) {
		return
	}

	amountIn, err := parseDecimalAmount(body.Amount, body.Decimals)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	trade, err := h.swapper.Sell(c.Request.Context(), domain.SwapRequest{
		Identity:      body.TwitterID,
		TokenAddress:  body.TokenAddress,
		AmountIn:      amountIn,
		Slippage:      body.Slippage,
		TokenDecimals: body.Decimals,
		TokenPrice:    body.TokenPrice,
	})
	if err != nil {
		h.respondSwapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"txHash": trade.Hash})
}

// Approve handles POST /approve.
func (h *Handler) Approve(c *gin.Context) {
	var body approveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}
	if !h.authorizeBearer(c, body.TwitterID) {
		return
	}

	result, err := h.swapper.Approve(c.Request.Context(), body.TwitterID, body.TokenAddress)
	if err != nil {
		h.respondSwapError(c, err)
		return
	}
	if result.AlreadyApproved {
		c.JSON(http.StatusOK, gin.H{"alreadyApproved": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved", "txHash": result.TxHash})
}

// GetAddress handles POST /getAddress.
func (h *Handler) GetAddress(c *gin.Context) {
	var body identityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}
	if !h.authorizeBearer(c, body.TwitterID) {
		return
	}

	acct, err := h.vault.GetOrCreate(c.Request.Context(), body.TwitterID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load account"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": acct.Address().String()})
}

// GetTransaction handles POST /getTransaction (operator only).
func (h *Handler) GetTransaction(c *gin.Context) {
	if !h.authorizeOperator(c) {
		return
	}

	var body transactionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}

	trade, err := h.trades.GetByID(c.Request.Context(), body.TransactionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "transaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load transaction"})
		return
	}
	if trade.TwitterID != body.TwitterID {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "transaction does not belong to identity"})
		return
	}

	// The trade must also belong to the identity's current account; a stale
	// wallet address means the row is not theirs.
	acct, err := h.vault.Get(c.Request.Context(), body.TwitterID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse{Error: "identity has no account"})
			return
		}
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load account"})
		return
	}
	if !strings.EqualFold(trade.WalletAddress, acct.Address().String()) {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "transaction does not belong to identity"})
		return
	}
	c.JSON(http.StatusOK, trade)
}

// FetchAccessToken handles POST /fetchAccessToken (operator only).
// Provisions a signing key on first use.
func (h *Handler) FetchAccessToken(c *gin.Context) {
	if !h.authorizeOperator(c) {
		return
	}

	var body identityBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}

	pair, err := h.sessions.Issue(c.Request.Context(), body.TwitterID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to issue tokens"})
		return
	}
	observability.RecordTokensIssued()
	c.JSON(http.StatusOK, gin.H{"token": pair.AccessToken, "refreshToken": pair.RefreshToken})
}

// RefreshAccessToken handles POST /refreshAccessToken.
func (h *Handler) RefreshAccessToken(c *gin.Context) {
	var body refreshBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}

	pair, err := h.sessions.Refresh(c.Request.Context(), body.TwitterID, body.RefreshToken)
	if err != nil {
		c.JSON(http.StatusForbidden, errorResponse{Error: "refresh token rejected"})
		return
	}
	observability.RecordTokensRefreshed()
	c.JSON(http.StatusOK, gin.H{"token": pair.AccessToken, "refreshToken": pair.RefreshToken})
}

// TestAccessToken handles POST /testAccessToken.
func (h *Handler) TestAccessToken(c *gin.Context) {
	var body testTokenBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}

	err := h.sessions.Authorize(c.Request.Context(), body.TwitterID, body.Token)
	c.JSON(http.StatusOK, gin.H{"isValid": err == nil})
}

// authorizeBearer verifies the Authorization header's access token against
// the identity named in the request body. The token secret is derived from
// that identity's key, so this cannot run as global middleware: the body
// must be bound first.
func (h *Handler) authorizeBearer(c *gin.Context, identity string) bool {
	token := session.ExtractBearer(c.GetHeader("Authorization"))
	if err := h.sessions.Authorize(c.Request.Context(), identity, token); err != nil {
		observability.RecordAuthorizeFailed()
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return false
	}
	return true
}

// authorizeOperator checks the pre-shared operator key in constant time.
func (h *Handler) authorizeOperator(c *gin.Context) bool {
	key := c.GetHeader(operatorKeyHeader)
	if subtle.ConstantTimeCompare([]byte(key), []byte(h.operatorKey)) != 1 {
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return false
	}
	return true
}

// respondSwapError maps trading failures onto HTTP statuses.
func (h *Handler) respondSwapError(c *gin.Context, err error) {
	var recErr *trading.RecordingError
	var chainErr *trading.ChainError

	switch {
	case errors.Is(err, session.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	case errors.Is(err, quote.ErrInsufficientLiquidity):
		c.JSON(http.StatusBadRequest, errorResponse{Error: "insufficient liquidity"})
	case errors.Is(err, storage.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, trading.ErrTransferEventNotFound):
		// Confirmed on-chain but unverifiable; surfaced for manual
		// reconciliation.
		c.JSON(http.StatusBadGateway, errorResponse{Error: err.Error()})
	case errors.As(err, &recErr):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "trade confirmed but not recorded",
			"txHash": recErr.TxHash,
		})
	case errors.As(err, &chainErr):
		h.logger.Error("chain error", "stage", chainErr.Stage, "err", chainErr.Err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: chainErr.Error()})
	default:
		h.logger.Error("swap failed", "err", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
