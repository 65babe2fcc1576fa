//go:build integration

package httpserver_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-petr/pet-ledger/cmd/httpserver"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/integrationtest"
	"github.com/go-petr/pet-ledger/internal/middleware"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// do sends a JSON request to server and returns the status code and raw body.
func do(t *testing.T, server *httpserver.Server, method, url, token string, body any) (int, []byte) {
	t.Helper()

	var data []byte

	if body != nil {
		var err error

		data, err = json.Marshal(body)
		require.NoError(t, err)
	}

	request, err := http.NewRequest(method, url, bytes.NewReader(data))
	require.NoError(t, err)

	if token != "" {
		request.Header.Set(middleware.AuthHeaderKey, middleware.AuthTypeBearer+" "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, request)

	return recorder.Code, recorder.Body.Bytes()
}

func decodeData(t *testing.T, raw []byte, v any) {
	t.Helper()

	envelope := struct {
		Data any `json:"data"`
	}{Data: v}

	require.NoError(t, json.Unmarshal(raw, &envelope), string(raw))
}

func register(t *testing.T, server *httpserver.Server) string {
	t.Helper()

	code, raw := do(t, server, http.MethodPost, "/users", "", map[string]string{
		"username":      randompkg.Owner(),
		"password":      randompkg.String(10),
		"fullname":      randompkg.Owner(),
		"email":         randompkg.Email(),
		"date_of_birth": "1990-05-17",
	})
	require.Equal(t, http.StatusOK, code, string(raw))

	var res struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(raw, &res))

	return res.AccessToken
}

func openAccount(t *testing.T, server *httpserver.Server, token string) domain.Account {
	t.Helper()

	code, raw := do(t, server, http.MethodPost, "/accounts", token, map[string]string{"account_type": "CHECKING"})
	require.Equal(t, http.StatusCreated, code, string(raw))

	var data struct {
		Account domain.Account `json:"account"`
	}
	decodeData(t, raw, &data)

	return data.Account
}

func TestLedgerFlowAPI(t *testing.T) {
	server := integrationtest.SetupServer(t)

	alice := register(t, server)
	bob := register(t, server)

	a := openAccount(t, server, alice)
	b := openAccount(t, server, bob)

	require.Regexp(t, `^ACC[0-9A-Z]{10}$`, a.Number)
	require.True(t, a.Balance.IsZero())

	deposit := func(token string, id int64, amount string) (int, []byte) {
		return do(t, server, http.MethodPost, fmt.Sprintf("/accounts/%d/deposit", id), token,
			map[string]string{"amount": amount})
	}

	code, raw := deposit(alice, a.ID, "1000")
	require.Equal(t, http.StatusOK, code, string(raw))

	code, raw = deposit(alice, a.ID, "500")
	require.Equal(t, http.StatusOK, code, string(raw))

	var deposited struct {
		Message    string          `json:"message"`
		NewBalance decimal.Decimal `json:"new_balance"`
	}
	decodeData(t, raw, &deposited)
	require.Equal(t, "Deposit successful", deposited.Message)
	require.True(t, deposited.NewBalance.Equal(decimal.NewFromInt(1500)), deposited.NewBalance.String())

	code, raw = deposit(bob, b.ID, "500")
	require.Equal(t, http.StatusOK, code, string(raw))

	t.Run("ForeignAccountLooksMissing", func(t *testing.T) {
		code, raw := deposit(bob, a.ID, "10")
		require.Equal(t, http.StatusNotFound, code, string(raw))

		code, raw = do(t, server, http.MethodPost, "/transfers", bob, map[string]any{
			"from_account_id": a.ID,
			"to_account_id":   b.ID,
			"amount":          "10",
		})
		require.Equal(t, http.StatusNotFound, code, string(raw))
		require.JSONEq(t, `{"error":"account not found"}`, string(raw))
	})

	t.Run("OverdraftRejected", func(t *testing.T) {
		code, raw := do(t, server, http.MethodPost, fmt.Sprintf("/accounts/%d/withdraw", b.ID), bob,
			map[string]string{"amount": "500.01"})
		require.Equal(t, http.StatusBadRequest, code, string(raw))
		require.JSONEq(t, `{"error":"insufficient funds"}`, string(raw))
	})

	code, raw = do(t, server, http.MethodPost, "/transfers", alice, map[string]any{
		"from_account_id": a.ID,
		"to_account_id":   b.ID,
		"amount":          "300",
	})
	require.Equal(t, http.StatusCreated, code, string(raw))

	var transfer domain.MoneyTransfer
	decodeData(t, raw, &transfer)
	require.Equal(t, domain.TransferCompleted, transfer.Status)
	require.Regexp(t, `^TRF[0-9A-Z]{10}$`, transfer.ID)
	require.NotNil(t, transfer.CompletedAt)

	balanceOf := func(token string, id int64) decimal.Decimal {
		code, raw := do(t, server, http.MethodGet, fmt.Sprintf("/accounts/%d", id), token, nil)
		require.Equal(t, http.StatusOK, code, string(raw))

		var data struct {
			Account domain.Account `json:"account"`
		}
		decodeData(t, raw, &data)

		return data.Account.Balance
	}

	require.True(t, balanceOf(alice, a.ID).Equal(decimal.NewFromInt(1200)))
	require.True(t, balanceOf(bob, b.ID).Equal(decimal.NewFromInt(800)))

	code, raw = do(t, server, http.MethodGet, fmt.Sprintf("/accounts/%d/transactions", b.ID), bob, nil)
	require.Equal(t, http.StatusOK, code, string(raw))

	var history struct {
		Transactions []domain.Transaction `json:"transactions"`
	}
	decodeData(t, raw, &history)
	require.Len(t, history.Transactions, 2)
	require.Equal(t, domain.KindTransferIn, history.Transactions[0].Kind)
	require.Equal(t, transfer.ID, history.Transactions[0].Reference)
	require.Equal(t, "Transfer from "+a.Number, history.Transactions[0].Description)

	code, raw = do(t, server, http.MethodGet, "/transfers?page_id=1&page_size=10", bob, nil)
	require.Equal(t, http.StatusOK, code, string(raw))

	var transfers struct {
		Transfers []domain.MoneyTransfer `json:"transfers"`
	}
	decodeData(t, raw, &transfers)
	require.Len(t, transfers.Transfers, 1)
	require.Equal(t, transfer.ID, transfers.Transfers[0].ID)

	today := time.Now().UTC().Format(domain.DateLayout)

	code, raw = do(t, server, http.MethodPost, fmt.Sprintf("/accounts/%d/statements", a.ID), alice,
		map[string]string{"start_date": today, "end_date": today})
	require.Equal(t, http.StatusCreated, code, string(raw))

	var generated struct {
		Statement domain.Statement `json:"statement"`
	}
	decodeData(t, raw, &generated)
	require.True(t, generated.Statement.OpeningBalance.IsZero(), generated.Statement.OpeningBalance.String())
	require.True(t, generated.Statement.ClosingBalance.Equal(decimal.NewFromInt(1200)))
	require.True(t, generated.Statement.TotalDeposits.Equal(decimal.NewFromInt(1500)))
	require.True(t, generated.Statement.TotalWithdrawals.Equal(decimal.NewFromInt(300)))

	code, raw = do(t, server, http.MethodGet, fmt.Sprintf("/accounts/%d/statements?page_id=1&page_size=5", a.ID), alice, nil)
	require.Equal(t, http.StatusOK, code, string(raw))

	code, raw = do(t, server, http.MethodDelete, fmt.Sprintf("/accounts/%d", b.ID), bob, nil)
	require.Equal(t, http.StatusOK, code, string(raw))

	code, raw = deposit(bob, b.ID, "1")
	require.Equal(t, http.StatusUnprocessableEntity, code, string(raw))
}
