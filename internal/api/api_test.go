package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/openvault/fund-engine/internal/access"
	"github.com/openvault/fund-engine/internal/api"
	"github.com/openvault/fund-engine/internal/custody"
	"github.com/openvault/fund-engine/internal/ledger"
	"github.com/openvault/fund-engine/internal/model"
	"github.com/openvault/fund-engine/internal/notify"
	"github.com/openvault/fund-engine/internal/pricing"
	"github.com/openvault/fund-engine/internal/store"
	"github.com/openvault/fund-engine/internal/valuation"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// newTestEnv wires a reported- or permissioned-variant engine over
// in-memory collaborators and mounts the handlers on a chi router.
func newTestEnv(t *testing.T, variant string) (chi.Router, *custody.MemoryBank) {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemoryStore()
	registry, err := access.NewRegistry(ctx, st, "admin")
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	bank := custody.NewMemoryBank("vault")
	coordinator := notify.NewCoordinator(st, nil)

	reported := valuation.NewReported(st, registry)
	svc, err := ledger.NewService(ledger.Config{
		Variant:  variant,
		Source:   reported,
		Reported: reported,
		Sink:     "portfolio",
	}, st, registry, bank, coordinator)
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	handler := api.NewHandler(svc, pricing.NewReporter(st, reported), coordinator)
	r := chi.NewRouter()
	r.Route("/api/v1", handler.Routes)
	return r, bank
}

func do(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestDepositEndpoint(t *testing.T) {
	router, bank := newTestEnv(t, model.VariantReported)
	bank.Credit("alice", d(500))

	w := do(t, router, "POST", "/api/v1/deposit", api.DepositRequest{
		Principal: "alice", Amount: d(100),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var receipt model.DepositReceipt
	json.Unmarshal(w.Body.Bytes(), &receipt)
	if !receipt.Shares.Equal(d(100)) {
		t.Errorf("expected 100 shares, got %s", receipt.Shares)
	}
}

func TestDepositEndpoint_TransferFailure(t *testing.T) {
	router, _ := newTestEnv(t, model.VariantReported)

	// alice holds nothing; the custody pull fails upstream.
	w := do(t, router, "POST", "/api/v1/deposit", api.DepositRequest{
		Principal: "alice", Amount: d(100),
	})
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDepositEndpoint_ZeroAmount(t *testing.T) {
	router, _ := newTestEnv(t, model.VariantReported)

	w := do(t, router, "POST", "/api/v1/deposit", api.DepositRequest{
		Principal: "alice", Amount: d(0),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestDepositEndpoint_PermissionedForbidden(t *testing.T) {
	router, bank := newTestEnv(t, model.VariantPermissioned)
	bank.Credit("alice", d(500))

	w := do(t, router, "POST", "/api/v1/deposit", api.DepositRequest{
		Principal: "alice", Amount: d(100),
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d: %s", w.Code, w.Body.String())
	}

	// Whitelist alice, then the same deposit passes.
	w = do(t, router, "POST", "/api/v1/whitelist", api.WhitelistRequest{
		Actor: "admin", Principal: "alice",
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("whitelist: expected 204, got %d", w.Code)
	}
	w = do(t, router, "POST", "/api/v1/deposit", api.DepositRequest{
		Principal: "alice", Amount: d(100),
	})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 after whitelisting, got %d: %s", w.Code, w.Body.String())
	}
}

func TestValuationEndpoint(t *testing.T) {
	router, _ := newTestEnv(t, model.VariantReported)

	w := do(t, router, "POST", "/api/v1/valuation", api.ValuationRequest{
		Actor: "admin", Value: d(1000),
	})
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// Zero value rejected.
	w = do(t, router, "POST", "/api/v1/valuation", api.ValuationRequest{
		Actor: "admin", Value: d(0),
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for zero value, got %d", w.Code)
	}

	// Non-admin rejected.
	w = do(t, router, "POST", "/api/v1/valuation", api.ValuationRequest{
		Actor: "mallory", Value: d(1000),
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for non-admin, got %d", w.Code)
	}
}

func TestWithdrawEndpoint(t *testing.T) {
	router, bank := newTestEnv(t, model.VariantReported)
	bank.Credit("alice", d(500))

	do(t, router, "POST", "/api/v1/valuation", api.ValuationRequest{Actor: "admin", Value: d(1000)})
	do(t, router, "POST", "/api/v1/deposit", api.DepositRequest{Principal: "alice", Amount: d(100)})

	w := do(t, router, "POST", "/api/v1/withdraw", api.WithdrawRequest{
		Principal: "alice", Shares: d(50),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var receipt model.WithdrawalReceipt
	json.Unmarshal(w.Body.Bytes(), &receipt)
	if receipt.EventID == "" {
		t.Error("expected an obligation event id")
	}
	if !receipt.OwedAmount.Equal(d(500)) {
		t.Errorf("expected 500 owed (100 shares of a 1000 pool, 50 burnt), got %s", receipt.OwedAmount)
	}

	// Over-withdrawing the remainder conflicts.
	w = do(t, router, "POST", "/api/v1/withdraw", api.WithdrawRequest{
		Principal: "alice", Shares: d(51),
	})
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestPriceEndpoint_Identity(t *testing.T) {
	router, _ := newTestEnv(t, model.VariantReported)

	w := do(t, router, "GET", "/api/v1/price", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["price_per_share"] != resp["unit"] {
		t.Errorf("zero-supply price should equal the unit, got %s vs %s",
			resp["price_per_share"], resp["unit"])
	}
}

func TestEventsEndpoint(t *testing.T) {
	router, bank := newTestEnv(t, model.VariantReported)
	bank.Credit("alice", d(500))

	do(t, router, "POST", "/api/v1/valuation", api.ValuationRequest{Actor: "admin", Value: d(1000)})
	do(t, router, "POST", "/api/v1/deposit", api.DepositRequest{Principal: "alice", Amount: d(100)})
	do(t, router, "POST", "/api/v1/withdraw", api.WithdrawRequest{Principal: "alice", Shares: d(10)})

	w := do(t, router, "GET", "/api/v1/events", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var events []model.Event
	json.Unmarshal(w.Body.Bytes(), &events)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].Sequence <= events[i-1].Sequence {
			t.Errorf("journal out of order at %d: %d then %d",
				i, events[i-1].Sequence, events[i].Sequence)
		}
	}
	if events[2].Type != model.EventWithdrawalRequested {
		t.Errorf("expected withdrawal_requested last, got %s", events[2].Type)
	}

	// Resume from a sequence cursor.
	w = do(t, router, "GET", "/api/v1/events?after="+jsonNum(events[1].Sequence), nil)
	var tail []model.Event
	json.Unmarshal(w.Body.Bytes(), &tail)
	if len(tail) != 1 || tail[0].Sequence != events[2].Sequence {
		t.Errorf("cursor read returned %d events", len(tail))
	}
}

func TestAdminEndpoint(t *testing.T) {
	router, _ := newTestEnv(t, model.VariantReported)

	w := do(t, router, "POST", "/api/v1/admins", api.AdminRequest{
		Actor: "admin", Principal: "bob", Enabled: true,
	})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	// bob can now report a valuation.
	w = do(t, router, "POST", "/api/v1/valuation", api.ValuationRequest{
		Actor: "bob", Value: d(500),
	})
	if w.Code != http.StatusOK {
		t.Errorf("new admin should report valuations, got %d", w.Code)
	}

	// Non-admin actor rejected.
	w = do(t, router, "POST", "/api/v1/admins", api.AdminRequest{
		Actor: "mallory", Principal: "mallory", Enabled: true,
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func jsonNum(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
