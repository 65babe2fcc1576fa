// Package balancedelivery manages delivery layer of deposits, withdrawals and account history.
package balancedelivery

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
	"github.com/go-petr/pet-ledger/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Service provides service layer interface needed by balance delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package balancedelivery
type Service interface {
	Deposit(ctx context.Context, owner string, accountID int64, amount, description string) (domain.BalanceResult, error)
	Withdraw(ctx context.Context, owner string, accountID int64, amount, description string) (domain.BalanceResult, error)
	ListTransactions(ctx context.Context, owner string, arg domain.ListTransactionsParams) ([]domain.Transaction, error)
}

// Handler facilitates balance delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns balance handler.
func NewHandler(bs Service) *Handler {
	return &Handler{service: bs}
}

type uriRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

type balanceRequest struct {
	Amount      string `json:"amount" binding:"required,amount"`
	Description string `json:"description" binding:"max=255"`
}

type balanceData struct {
	Message     string             `json:"message"`
	NewBalance  decimal.Decimal    `json:"new_balance"`
	Transaction domain.Transaction `json:"transaction"`
}

type transactionsData struct {
	Transactions []domain.Transaction `json:"transactions"`
}

func bindError(gctx *gin.Context, err error) {
	zerolog.Ctx(gctx.Request.Context()).Info().Err(err).Send()

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		gctx.JSON(http.StatusBadRequest, web.Response{Error: web.GetErrorMsg(ve)})
		return
	}

	gctx.JSON(http.StatusBadRequest, web.Error(err))
}

func serviceError(gctx *gin.Context, err error) {
	switch err {
	case domain.ErrInvalidAmount,
		domain.ErrInsufficientFunds,
		domain.ErrBalanceLimit,
		domain.ErrInvalidDateRange:
		gctx.JSON(http.StatusBadRequest, web.Error(err))
	case domain.ErrAccountNotFound:
		gctx.JSON(http.StatusNotFound, web.Error(err))
	case domain.ErrAccountInactive:
		gctx.JSON(http.StatusUnprocessableEntity, web.Error(err))
	case domain.ErrConflict:
		gctx.JSON(http.StatusConflict, web.Error(err))
	case domain.ErrLockTimeout:
		gctx.JSON(http.StatusServiceUnavailable, web.Error(err))
	default:
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
	}
}

type mutation func(ctx context.Context, owner string, accountID int64, amount, description string) (domain.BalanceResult, error)

func (h *Handler) handle(gctx *gin.Context, apply mutation, message string) {
	ctx := gctx.Request.Context()

	var uri uriRequest
	if err := gctx.ShouldBindUri(&uri); err != nil {
		bindError(gctx, err)
		return
	}

	var req balanceRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		bindError(gctx, err)
		return
	}

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	result, err := apply(ctx, authPayload.Username, uri.ID, req.Amount, req.Description)
	if err != nil {
		serviceError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: balanceData{
		Message:     message,
		NewBalance:  result.Account.Balance,
		Transaction: result.Transaction,
	}})
}

// Deposit handles http request to deposit money to an account.
func (h *Handler) Deposit(gctx *gin.Context) {
	h.handle(gctx, h.service.Deposit, "Deposit successful")
}

// Withdraw handles http request to withdraw money from an account.
func (h *Handler) Withdraw(gctx *gin.Context) {
	h.handle(gctx, h.service.Withdraw, "Withdrawal successful")
}

type listRequest struct {
	Kind      string `form:"kind" binding:"omitempty,oneof=DEPOSIT WITHDRAWAL TRANSFER_IN TRANSFER_OUT"`
	StartDate string `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"end_date" binding:"omitempty,datetime=2006-01-02"`
	PageID    int32  `form:"page_id" binding:"omitempty,min=1"`
	PageSize  int32  `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Default page of the transaction list.
const (
	defaultPageID   = 1
	defaultPageSize = 20
)

// ListTransactions handles http request to list the history of an account.
func (h *Handler) ListTransactions(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var uri uriRequest
	if err := gctx.ShouldBindUri(&uri); err != nil {
		bindError(gctx, err)
		return
	}

	var req listRequest
	if err := gctx.ShouldBindQuery(&req); err != nil {
		bindError(gctx, err)
		return
	}

	if req.PageID == 0 {
		req.PageID = defaultPageID
	}

	if req.PageSize == 0 {
		req.PageSize = defaultPageSize
	}

	arg := domain.ListTransactionsParams{
		AccountID: uri.ID,
		Kind:      domain.TransactionKind(req.Kind),
		Limit:     req.PageSize,
		Offset:    (req.PageID - 1) * req.PageSize,
	}

	// Formats are enforced by the datetime binding.
	if req.StartDate != "" {
		arg.From, _ = time.Parse(domain.DateLayout, req.StartDate)
	}

	if req.EndDate != "" {
		arg.To, _ = time.Parse(domain.DateLayout, req.EndDate)
	}

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	txns, err := h.service.ListTransactions(ctx, authPayload.Username, arg)
	if err != nil {
		serviceError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: transactionsData{txns}})
}
