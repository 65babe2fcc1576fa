package transferdelivery

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/errorspkg"
	"github.com/go-petr/pet-ledger/pkg/idpkg"
	"github.com/go-petr/pet-ledger/pkg/moneypkg"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/go-petr/pet-ledger/pkg/tokenpkg"
	"github.com/go-playground/validator/v10"
	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := v.RegisterValidation("amount", moneypkg.ValidAmount); err != nil {
			log.Fatal("cannot register amount validator:", err)
		}
	}

	os.Exit(m.Run())
}

func newTokenMaker(t *testing.T) tokenpkg.Maker {
	t.Helper()

	maker, err := tokenpkg.NewPasetoMaker(randompkg.String(32))
	require.NoError(t, err)

	return maker
}

func randomTransfer(fromID, toID int64) domain.MoneyTransfer {
	now := time.Now().UTC().Truncate(time.Second)

	return domain.MoneyTransfer{
		ID:            idpkg.TransferID(),
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        randompkg.MoneyAmountBetween(1, 100),
		Status:        domain.TransferCompleted,
		CreatedAt:     now,
		CompletedAt:   &now,
	}
}

type createResponse struct {
	Data  domain.MoneyTransfer `json:"data"`
	Error string               `json:"error"`
}

func TestCreateTransferAPI(t *testing.T) {
	username := randompkg.Owner()
	tokenMaker := newTokenMaker(t)

	var fromID, toID int64 = 11, 12

	transfer := randomTransfer(fromID, toID)
	amount := "100"

	arg := domain.CreateTransferParams{
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        amount,
		Description:   "rent",
	}

	body := gin.H{
		"from_account_id": fromID,
		"to_account_id":   toID,
		"amount":          amount,
		"description":     "rent",
	}

	failWith := func(err error) func(service *MockService) {
		return func(service *MockService) {
			service.EXPECT().
				Transfer(gomock.Any(), username, arg).
				Times(1).
				Return(domain.TransferResult{}, err)
		}
	}

	noCall := func(service *MockService) {
		service.EXPECT().Transfer(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	}

	testCases := []struct {
		name           string
		body           gin.H
		setupAuth      func(t *testing.T, r *http.Request)
		buildStubs     func(service *MockService)
		wantStatusCode int
		wantError      string
	}{
		{
			name: "OK",
			body: body,
			buildStubs: func(service *MockService) {
				service.EXPECT().
					Transfer(gomock.Any(), username, arg).
					Times(1).
					Return(domain.TransferResult{Transfer: transfer}, nil)
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name:           "NoAuthorization",
			body:           body,
			setupAuth:      func(t *testing.T, r *http.Request) {},
			buildStubs:     noCall,
			wantStatusCode: http.StatusUnauthorized,
			wantError:      middleware.ErrAuthHeaderNotFound.Error(),
		},
		{
			name:           "MissingFromAccountID",
			body:           gin.H{"to_account_id": toID, "amount": amount},
			buildStubs:     noCall,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "from_account_id field is required",
		},
		{
			name:           "NegativeToAccountID",
			body:           gin.H{"from_account_id": fromID, "to_account_id": -1, "amount": amount},
			buildStubs:     noCall,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "to_account_id field must be at least 1",
		},
		{
			name:           "NonNumericAmount",
			body:           gin.H{"from_account_id": fromID, "to_account_id": toID, "amount": "ten"},
			buildStubs:     noCall,
			wantStatusCode: http.StatusBadRequest,
			wantError:      "amount field must be a positive amount with at most 2 decimal places",
		},
		{
			name:           "SameAccount",
			body:           body,
			buildStubs:     failWith(domain.ErrInvalidTransfer),
			wantStatusCode: http.StatusBadRequest,
			wantError:      domain.ErrInvalidTransfer.Error(),
		},
		{
			name:           "InsufficientFunds",
			body:           body,
			buildStubs:     failWith(domain.ErrInsufficientFunds),
			wantStatusCode: http.StatusBadRequest,
			wantError:      domain.ErrInsufficientFunds.Error(),
		},
		{
			name:           "ForeignSourceLooksMissing",
			body:           body,
			buildStubs:     failWith(domain.ErrForbidden),
			wantStatusCode: http.StatusNotFound,
			wantError:      domain.ErrAccountNotFound.Error(),
		},
		{
			name:           "DestinationNotFound",
			body:           body,
			buildStubs:     failWith(domain.ErrAccountNotFound),
			wantStatusCode: http.StatusNotFound,
			wantError:      domain.ErrAccountNotFound.Error(),
		},
		{
			name:           "Inactive",
			body:           body,
			buildStubs:     failWith(domain.ErrAccountInactive),
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      domain.ErrAccountInactive.Error(),
		},
		{
			name:           "Conflict",
			body:           body,
			buildStubs:     failWith(domain.ErrConflict),
			wantStatusCode: http.StatusConflict,
			wantError:      domain.ErrConflict.Error(),
		},
		{
			name:           "LockTimeout",
			body:           body,
			buildStubs:     failWith(domain.ErrLockTimeout),
			wantStatusCode: http.StatusServiceUnavailable,
			wantError:      domain.ErrLockTimeout.Error(),
		},
		{
			name:           "InternalError",
			body:           body,
			buildStubs:     failWith(errorspkg.ErrInternal),
			wantStatusCode: http.StatusInternalServerError,
			wantError:      errorspkg.ErrInternal.Error(),
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			service := NewMockService(ctrl)
			tc.buildStubs(service)

			handler := NewHandler(service)
			server := gin.New()
			url := "/transfers"
			server.POST(url, middleware.AuthMiddleware(tokenMaker), handler.Create)

			data, err := json.Marshal(tc.body)
			require.NoError(t, err)

			request, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
			require.NoError(t, err)

			if tc.setupAuth != nil {
				tc.setupAuth(t, request)
			} else {
				require.NoError(t, middleware.AddAuthorization(request, tokenMaker, middleware.AuthTypeBearer, username, time.Minute))
			}

			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, request)

			require.Equal(t, tc.wantStatusCode, recorder.Code)

			var got createResponse
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&got))
			require.Equal(t, tc.wantError, got.Error)

			if tc.wantStatusCode == http.StatusCreated {
				if diff := cmp.Diff(transfer, got.Data); diff != "" {
					t.Errorf("POST %s returned unexpected transfer (-want +got):\n%s", url, diff)
				}
			}
		})
	}
}

func TestListTransfersAPI(t *testing.T) {
	username := randompkg.Owner()
	tokenMaker := newTokenMaker(t)

	transfers := []domain.MoneyTransfer{randomTransfer(1, 2), randomTransfer(2, 1)}

	testCases := []struct {
		name           string
		query          string
		buildStubs     func(service *MockService)
		wantStatusCode int
		wantError      string
	}{
		{
			name:  "OK",
			query: "?page_id=2&page_size=5",
			buildStubs: func(service *MockService) {
				service.EXPECT().
					List(gomock.Any(), username, int32(5), int32(2)).
					Times(1).
					Return(transfers, nil)
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:  "MissingPage",
			query: "?page_size=5",
			buildStubs: func(service *MockService) {
				service.EXPECT().List(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "page_id field is required",
		},
		{
			name:  "PageTooLarge",
			query: "?page_id=1&page_size=500",
			buildStubs: func(service *MockService) {
				service.EXPECT().List(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "page_size field must be at most 100",
		},
		{
			name:  "InternalError",
			query: "?page_id=1&page_size=5",
			buildStubs: func(service *MockService) {
				service.EXPECT().
					List(gomock.Any(), username, int32(5), int32(1)).
					Times(1).
					Return(nil, errorspkg.ErrInternal)
			},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      errorspkg.ErrInternal.Error(),
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			service := NewMockService(ctrl)
			tc.buildStubs(service)

			handler := NewHandler(service)
			server := gin.New()
			server.GET("/transfers", middleware.AuthMiddleware(tokenMaker), handler.List)

			request, err := http.NewRequest(http.MethodGet, "/transfers"+tc.query, nil)
			require.NoError(t, err)
			require.NoError(t, middleware.AddAuthorization(request, tokenMaker, middleware.AuthTypeBearer, username, time.Minute))

			recorder := httptest.NewRecorder()
			server.ServeHTTP(recorder, request)

			require.Equal(t, tc.wantStatusCode, recorder.Code)

			var got struct {
				Data struct {
					Transfers []domain.MoneyTransfer `json:"transfers"`
				} `json:"data"`
				Error string `json:"error"`
			}
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&got))
			require.Equal(t, tc.wantError, got.Error)

			if tc.wantStatusCode == http.StatusOK {
				if diff := cmp.Diff(transfers, got.Data.Transfers); diff != "" {
					t.Errorf("GET /transfers returned unexpected transfers (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestServiceErrorHidesForeignAccounts(t *testing.T) {
	t.Parallel()

	for _, err := range []error{domain.ErrForbidden, domain.ErrAccountNotFound} {
		recorder := httptest.NewRecorder()
		gctx, _ := gin.CreateTestContext(recorder)

		serviceError(gctx, err)

		require.Equal(t, http.StatusNotFound, recorder.Code)
		require.JSONEq(t, `{"error":"account not found"}`, recorder.Body.String())
	}
}
