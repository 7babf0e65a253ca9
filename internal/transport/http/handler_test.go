package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotaledger/internal/model"
	"quotaledger/internal/service"
)

// stubEngine embeds the interface so each test only overrides what it
// needs; calling anything else panics, which is a test bug.
type stubEngine struct {
	service.Engine

	debitFn       func(req model.DebitRequest) (*model.MovementResult, error)
	transferFn    func(req model.TransferRequest) (*model.TransferResult, error)
	consumeSlotFn func(cohortID, accountID string) (*model.SlotGrant, error)
	poolsFn       func(accountID string) ([]model.Pool, error)
	entitleFn     func(req model.EntitlementConsumeRequest) (*model.EntitlementConsumeResult, error)
}

func (s *stubEngine) Debit(_ context.Context, req model.DebitRequest) (*model.MovementResult, error) {
	return s.debitFn(req)
}

func (s *stubEngine) Transfer(_ context.Context, req model.TransferRequest) (*model.TransferResult, error) {
	return s.transferFn(req)
}

func (s *stubEngine) ConsumeSlot(_ context.Context, cohortID, accountID string) (*model.SlotGrant, error) {
	return s.consumeSlotFn(cohortID, accountID)
}

func (s *stubEngine) GetPools(_ context.Context, accountID string) ([]model.Pool, error) {
	return s.poolsFn(accountID)
}

func (s *stubEngine) ConsumeEntitlement(_ context.Context, req model.EntitlementConsumeRequest) (*model.EntitlementConsumeResult, error) {
	return s.entitleFn(req)
}

func newTestServer(svc service.Engine) *httptest.Server {
	mux := http.NewServeMux()
	NewHandler(svc).Register(mux)
	return httptest.NewServer(mux)
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestDebit_Success(t *testing.T) {
	svc := &stubEngine{
		debitFn: func(req model.DebitRequest) (*model.MovementResult, error) {
			assert.Equal(t, "biz-1", req.AccountID)
			assert.Equal(t, model.PoolPoints, req.Pool)
			assert.Equal(t, int64(100), req.Amount)
			return &model.MovementResult{Balance: 400, TxID: "tx-1"}, nil
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/debit", model.DebitRequest{
		AccountID: "biz-1", Pool: model.PoolPoints, Amount: 100,
		Reason: "mission_funding", RelatedID: "m-42",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res model.MovementResult
	decodeBody(t, resp, &res)
	assert.Equal(t, int64(400), res.Balance)
	assert.Equal(t, "tx-1", res.TxID)
}

func TestDebit_InsufficientBalance(t *testing.T) {
	svc := &stubEngine{
		debitFn: func(req model.DebitRequest) (*model.MovementResult, error) {
			return nil, model.ErrInsufficientBalance
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/debit", model.DebitRequest{
		AccountID: "biz-1", Pool: model.PoolPoints, Amount: 100,
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "INSUFFICIENT_BALANCE", body["error"])
}

func TestDebit_InvalidJSON(t *testing.T) {
	svc := &stubEngine{}
	srv := newTestServer(svc)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/debit", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTransfer_PoolNotFound(t *testing.T) {
	svc := &stubEngine{
		transferFn: func(req model.TransferRequest) (*model.TransferResult, error) {
			return nil, model.ErrPoolNotFound
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/transfer", model.TransferRequest{
		FromAccountID: "a", ToAccountID: "b", Pool: model.PoolPoints, Amount: 10,
	})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "POOL_NOT_FOUND", body["error"])
}

func TestConsumeSlot_Grant(t *testing.T) {
	svc := &stubEngine{
		consumeSlotFn: func(cohortID, accountID string) (*model.SlotGrant, error) {
			assert.Equal(t, "c-1", cohortID)
			assert.Equal(t, "biz-9", accountID)
			return &model.SlotGrant{SlotNumber: 7, FoundingBadge: "Founding 50"}, nil
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/cohorts/consume", model.ConsumeSlotRequest{
		CohortID: "c-1", AccountID: "biz-9",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var grant model.SlotGrant
	decodeBody(t, resp, &grant)
	assert.Equal(t, 7, grant.SlotNumber)
	assert.Equal(t, "Founding 50", grant.FoundingBadge)
}

func TestConsumeSlot_Full(t *testing.T) {
	svc := &stubEngine{
		consumeSlotFn: func(cohortID, accountID string) (*model.SlotGrant, error) {
			return nil, model.ErrCohortFull
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/cohorts/consume", model.ConsumeSlotRequest{
		CohortID: "c-1", AccountID: "biz-9",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "COHORT_FULL", body["error"])
}

func TestConsumeSlot_NotOpen(t *testing.T) {
	svc := &stubEngine{
		consumeSlotFn: func(cohortID, accountID string) (*model.SlotGrant, error) {
			return nil, model.ErrCohortNotOpen
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/cohorts/consume", model.ConsumeSlotRequest{CohortID: "c-1", AccountID: "x"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "COHORT_NOT_OPEN", body["error"])
}

func TestGetPools(t *testing.T) {
	svc := &stubEngine{
		poolsFn: func(accountID string) ([]model.Pool, error) {
			assert.Equal(t, "biz-1", accountID)
			return []model.Pool{
				{AccountID: "biz-1", Kind: model.PoolPoints, Available: 250},
				{AccountID: "biz-1", Kind: model.PoolMissionEnergy, Available: 3},
			}, nil
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/accounts/biz-1/pools")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Pools []model.Pool `json:"pools"`
	}
	decodeBody(t, resp, &body)
	require.Len(t, body.Pools, 2)
	assert.Equal(t, int64(250), body.Pools[0].Available)
}

func TestGetPools_AccountMissing(t *testing.T) {
	svc := &stubEngine{
		poolsFn: func(accountID string) ([]model.Pool, error) {
			return nil, model.ErrAccountNotFound
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/accounts/ghost/pools")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConsumeEntitlement_Denied(t *testing.T) {
	svc := &stubEngine{
		entitleFn: func(req model.EntitlementConsumeRequest) (*model.EntitlementConsumeResult, error) {
			return &model.EntitlementConsumeResult{
				Consumed:  false,
				Remaining: model.EntitlementRemaining{Standard: 0, Premium: 1},
			}, nil
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/entitlements/consume", model.EntitlementConsumeRequest{
		AccountID: "biz-1", IsPremium: false, EntityID: "evt-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res model.EntitlementConsumeResult
	decodeBody(t, resp, &res)
	assert.False(t, res.Consumed)
	assert.Equal(t, 0, res.Remaining.Standard)
	assert.Equal(t, 1, res.Remaining.Premium)
}

func TestStorageUnavailable_MapsTo503(t *testing.T) {
	svc := &stubEngine{
		debitFn: func(req model.DebitRequest) (*model.MovementResult, error) {
			return nil, model.ErrStorageUnavailable
		},
	}
	srv := newTestServer(svc)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/debit", model.DebitRequest{AccountID: "a", Pool: model.PoolPoints, Amount: 1})
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]string
	decodeBody(t, resp, &body)
	assert.Equal(t, "STORAGE_UNAVAILABLE", body["error"])
}
