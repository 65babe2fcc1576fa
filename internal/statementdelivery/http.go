// Package statementdelivery manages delivery layer of account statements.
package statementdelivery

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
)

// Service provides service layer interface needed by statement delivery layer.
//
//go:generate mockgen -source http.go -destination http_mock.go -package statementdelivery
type Service interface {
	Generate(ctx context.Context, owner string, accountID int64, periodStart, periodEnd time.Time) (domain.Statement, error)
	List(ctx context.Context, owner string, accountID int64, pageSize, pageID int32) ([]domain.Statement, error)
}

// Handler facilitates statement delivery layer logic.
type Handler struct {
	service Service
}

// NewHandler returns statement handler.
func NewHandler(ss Service) *Handler {
	return &Handler{service: ss}
}

type uriRequest struct {
	ID int64 `uri:"id" binding:"required,min=1"`
}

type generateRequest struct {
	StartDate string `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" binding:"required,datetime=2006-01-02"`
}

type data struct {
	Statement domain.Statement `json:"statement"`
}

type dataStatements struct {
	Statements []domain.Statement `json:"statements"`
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
	case domain.ErrInvalidDateRange:
		gctx.JSON(http.StatusBadRequest, web.Error(err))
	case domain.ErrAccountNotFound:
		gctx.JSON(http.StatusNotFound, web.Error(err))
	case domain.ErrConflict:
		gctx.JSON(http.StatusConflict, web.Error(err))
	case domain.ErrLockTimeout:
		gctx.JSON(http.StatusServiceUnavailable, web.Error(err))
	default:
		gctx.JSON(http.StatusInternalServerError, web.Error(errorspkg.ErrInternal))
	}
}

// Generate handles http request to generate a statement of an account over a period.
func (h *Handler) Generate(gctx *gin.Context) {
	ctx := gctx.Request.Context()

	var uri uriRequest
	if err := gctx.ShouldBindUri(&uri); err != nil {
		bindError(gctx, err)
		return
	}

	var req generateRequest
	if err := gctx.ShouldBindJSON(&req); err != nil {
		bindError(gctx, err)
		return
	}

	// Formats are enforced by the datetime binding.
	start, _ := time.Parse(domain.DateLayout, req.StartDate)
	end, _ := time.Parse(domain.DateLayout, req.EndDate)

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	statement, err := h.service.Generate(ctx, authPayload.Username, uri.ID, start, end)
	if err != nil {
		serviceError(gctx, err)
		return
	}

	gctx.JSON(http.StatusCreated, web.Response{Data: data{statement}})
}

type listRequest struct {
	PageID   int32 `form:"page_id" binding:"required,min=1"`
	PageSize int32 `form:"page_size" binding:"required,min=1,max=100"`
}

// List handles http request to list statements of an account.
func (h *Handler) List(gctx *gin.Context) {
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

	authPayload := gctx.MustGet(middleware.AuthPayloadKey).(*tokenpkg.Payload)

	statements, err := h.service.List(ctx, authPayload.Username, uri.ID, req.PageSize, req.PageID)
	if err != nil {
		serviceError(gctx, err)
		return
	}

	gctx.JSON(http.StatusOK, web.Response{Data: dataStatements{statements}})
}
