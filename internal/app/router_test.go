package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/koperasi/testing"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := &Config{
		AppEnv:          "test",
		StoreDriver:     DriverMemory,
		SyncAutoPost:    true,
		SyncConcurrency: 2,
		COASeedFile:     "../../configs/coa.yaml",
	}
	rt, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	return rt
}

func serveRequest(h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuildSeedsMemoryDriver(t *testing.T) {
	rt := newTestRuntime(t)
	acc, err := rt.Services.Accounts.GetByCode(context.Background(), "1-1000")
	require.NoError(t, err)
	require.Equal(t, "Kas", acc.Name)

	loan, err := rt.Stores.Directory.GetLoan(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, int64(2_000_000), loan.Principal)
	require.Nil(t, rt.Jobs)
}

func TestRouterServesLedgerAPI(t *testing.T) {
	rt := newTestRuntime(t)
	h := NewRouter(rt.Routes())

	rec := serveRequest(h, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = serveRequest(h, http.MethodGet, "/accounting/accounts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "1-1000")

	installment := `{"id":"TRX-1","type":"Angsuran","loan_id":1,"amount":100000,"date":"2024-03-05T00:00:00Z"}`
	rec = serveRequest(h, http.MethodPost, "/accounting/sync/transactions", installment, map[string]string{ActorHeader: "7"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = serveRequest(h, http.MethodPost, "/accounting/sync/transactions", installment, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serveRequest(h, http.MethodGet, "/accounting/reports/income-statement?period=2024-03", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), "75000")

	rec = serveRequest(h, http.MethodPost, "/accounting/sync/batch/async", `{"transactions":[`+installment+`]}`, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serveRequest(h, http.MethodGet, "/jobs/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serveRequest(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "koperasi_ledger_postings_total")
	require.Contains(t, rec.Body.String(), `koperasi_ledger_sync_total{result="duplicate",type="Angsuran"} 1`)
}

func TestActorHeaderMustBeNumeric(t *testing.T) {
	rt := newTestRuntime(t)
	h := NewRouter(rt.Routes())

	rec := serveRequest(h, http.MethodGet, "/accounting/accounts", "", map[string]string{ActorHeader: "admin"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "problem+json")
}
