package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/lot-ledger/internal/application/audit"
	"github.com/jhoicas/lot-ledger/internal/application/core"
	"github.com/jhoicas/lot-ledger/internal/application/dto"
	"github.com/jhoicas/lot-ledger/internal/application/inventory"
	"github.com/jhoicas/lot-ledger/internal/application/lock"
	"github.com/jhoicas/lot-ledger/internal/application/usecase"
	"github.com/jhoicas/lot-ledger/internal/infrastructure/memory"
	apphttp "github.com/jhoicas/lot-ledger/internal/interfaces/http"
	"github.com/jhoicas/lot-ledger/pkg/metrics"
)

// buildTestApp arma la API completa sobre el almacenamiento en memoria con bodegas PH y BG.
func buildTestApp(t *testing.T) *fiber.App {
	t.Helper()
	store := memory.NewStore(0, nil)
	prefixes := inventory.NewPrefixTable(map[string]string{"wh-ph": "PH", "wh-bg": "BG"})
	warehouseUC := usecase.NewWarehouseUseCase(store.Warehouses(), prefixes, nil)
	require.NoError(t, warehouseUC.Sync(context.Background()))

	m := metrics.New(metrics.Config{Namespace: "test", Service: "lot-ledger"})
	locks := lock.New(lock.Config{Timeout: time.Second})
	gen := inventory.NewCodeGenerator(store.Codes(), prefixes, locks,
		inventory.CodeGeneratorConfig{MaxAttempts: 3, Backoff: time.Millisecond}, nil, m)
	ledger := inventory.NewLedger(memory.NewTxRunner(store), locks, store.Stores(), gen, inventory.WithMetrics(m))
	svc := core.NewService(gen, ledger, audit.NewAuditor(store.Stores(), ledger), true)

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		Service:         svc,
		WarehouseUC:     warehouseUC,
		Metrics:         m,
		AuditAutoRepair: true,
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func generateCode(t *testing.T, app *fiber.App) string {
	t.Helper()
	status, body := doJSON(t, app, http.MethodPost, "/api/codes", dto.GenerateCodeRequest{
		WarehouseID: "wh-ph", CustomerName: "ACME", Plate: "ab-1234", OpType: "inbound", OpDate: "2025-07-01",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var code dto.CodeResponse
	require.NoError(t, json.Unmarshal(body, &code))
	return code.Code
}

func movement(kind, code, wh string, pallets, packages int64) dto.MovementRequest {
	return dto.MovementRequest{
		Kind: kind, Code: code, WarehouseID: wh,
		Quantity: dto.QuantityDTO{Pallets: pallets, Packages: packages},
	}
}

func TestRouter_CodigosYMovimientos(t *testing.T) {
	app := buildTestApp(t)

	code := generateCode(t, app)
	assert.Equal(t, "PH/ACME/AB1234/20250701/001", code)

	status, body := doJSON(t, app, http.MethodGet, "/api/codes/parse?code="+code, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var parsed dto.CodeResponse
	require.NoError(t, json.Unmarshal(body, &parsed))
	assert.Equal(t, "wh-ph", parsed.WarehouseID)
	assert.Equal(t, 1, parsed.Sequence)

	status, body = doJSON(t, app, http.MethodPost, "/api/movements", movement("INBOUND", code, "wh-ph", 5, 5))
	require.Equal(t, http.StatusCreated, status, string(body))
	var res inventory.MovementResult
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, int64(5), res.Balance.Quantity.Pallets)

	status, body = doJSON(t, app, http.MethodPost, "/api/movements", dto.MovementRequest{
		Kind: "OUTBOUND", Code: code, WarehouseID: "wh-ph", Counterpart: "cliente final",
		Quantity: dto.QuantityDTO{Pallets: 6, Packages: 6},
	})
	require.Equal(t, http.StatusConflict, status)
	var apiErr dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &apiErr))
	assert.Equal(t, "INSUFFICIENT_STOCK", apiErr.Code)

	status, body = doJSON(t, app, http.MethodGet, "/api/balances?code="+code+"&warehouse_id=wh-ph", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), `"pallets":5`)

	status, body = doJSON(t, app, http.MethodDelete, "/api/movements/"+res.Movement.ID+"?by=tester", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = doJSON(t, app, http.MethodGet, "/api/balances/theoretical?code="+code, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var theo dto.TheoreticalBalanceResponse
	require.NoError(t, json.Unmarshal(body, &theo))
	assert.Equal(t, int64(0), theo.Warehouses["wh-ph"].Pallets)
}

func TestRouter_Validacion(t *testing.T) {
	app := buildTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/api/codes", dto.GenerateCodeRequest{WarehouseID: "wh-ph"})
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	status, _ = doJSON(t, app, http.MethodGet, "/api/codes/parse?code=basura", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodGet, "/api/balances", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodGet, "/api/transits/no-existe", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRouter_TransitoCompleto(t *testing.T) {
	app := buildTestApp(t)
	code := generateCode(t, app)

	status, body := doJSON(t, app, http.MethodPost, "/api/movements", movement("INBOUND", code, "wh-ph", 10, 10))
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = doJSON(t, app, http.MethodPost, "/api/transits", dto.DepartTransitRequest{
		Code: code, WarehouseID: "wh-ph", DestinationWarehouseID: "wh-bg",
		Quantity: dto.QuantityDTO{Pallets: 4, Packages: 4},
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var dep inventory.MovementResult
	require.NoError(t, json.Unmarshal(body, &dep))
	require.NotNil(t, dep.Transit)
	transitID := dep.Transit.ID

	status, body = doJSON(t, app, http.MethodPost, "/api/transits/"+transitID+"/complete", nil)
	assert.Equal(t, http.StatusConflict, status, string(body))

	status, body = doJSON(t, app, http.MethodPost, "/api/transits/"+transitID+"/arrival", nil)
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = doJSON(t, app, http.MethodPost, "/api/transits/"+transitID+"/complete", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), `"status":"completed"`)

	status, body = doJSON(t, app, http.MethodGet, "/api/balances?code="+code, nil)
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), `"warehouse_id":"wh-bg"`)

	status, body = doJSON(t, app, http.MethodGet, "/api/movements?code="+code+"&limit=1", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var page dto.MovementListResponse
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 3, page.Page.Total)

	status, body = doJSON(t, app, http.MethodGet, "/api/audit/last", nil)
	assert.Equal(t, http.StatusNotFound, status, string(body))

	status, body = doJSON(t, app, http.MethodPost, "/api/audit/run", nil)
	require.Equal(t, http.StatusOK, status, string(body))
	var rep audit.Report
	require.NoError(t, json.Unmarshal(body, &rep))
	assert.Equal(t, 0, rep.Total)
	assert.Equal(t, 1, rep.Codes)

	status, _ = doJSON(t, app, http.MethodGet, "/api/audit/last", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestRouter_Bodegas(t *testing.T) {
	app := buildTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/api/warehouses", dto.CreateWarehouseRequest{ID: "wh-cl", Name: "Cali", Prefix: "CL"})
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = doJSON(t, app, http.MethodPost, "/api/warehouses", dto.CreateWarehouseRequest{ID: "wh-x", Name: "Otra", Prefix: "CL"})
	assert.Equal(t, http.StatusConflict, status, string(body))

	status, body = doJSON(t, app, http.MethodGet, "/api/warehouses", nil)
	require.Equal(t, http.StatusOK, status)
	var list dto.WarehouseListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list.Items, 3)

	status, _ = doJSON(t, app, http.MethodGet, "/api/warehouses/wh-cl", nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = doJSON(t, app, http.MethodGet, "/api/warehouses/no-existe", nil)
	assert.Equal(t, http.StatusNotFound, status)

	// El prefijo nuevo queda disponible para emitir códigos.
	status, body = doJSON(t, app, http.MethodPost, "/api/codes", dto.GenerateCodeRequest{
		WarehouseID: "wh-cl", CustomerName: "Acme", OpType: "inbound", OpDate: "2025-07-01",
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	assert.Contains(t, string(body), `"prefix":"CL"`)
}

func TestRouter_Metricas(t *testing.T) {
	app := buildTestApp(t)
	generateCode(t, app)

	status, body := doJSON(t, app, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `test_codes_generated_total{prefix="PH",service="lot-ledger"} 1`)
}
