package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/flagdeck/flagdeck/flags"
)

func decodeEvaluateResponse(t *testing.T, body []byte) evaluateResponse {
	t.Helper()
	var resp evaluateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode evaluate response: %v", err)
	}
	return resp
}

func TestEvaluateAll(t *testing.T) {
	srv, _ := newTestServer(t,
		boolFlagRecord("checkout.flow", true),
		boolFlagRecord("billing.invoice_v2", false),
	)
	h := srv.Router()

	body := evaluateRequest{Context: flags.EvaluationContext{UserID: "user-1"}}
	rr := doJSON(t, h, http.MethodPost, "/v1/evaluate", testSDKKey, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decodeEvaluateResponse(t, rr.Body.Bytes())
	if len(resp.Flags) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(resp.Flags))
	}
	if resp.ETag == "" {
		t.Error("Expected etag in response")
	}

	byKey := map[string]flags.EvaluationResult{}
	for _, r := range resp.Flags {
		byKey[r.FlagKey] = r
	}
	if got := byKey["billing.invoice_v2"]; got.Reason != flags.ReasonDisabled {
		t.Errorf("Disabled flag: expected DISABLED, got %s", got.Reason)
	}
	if got := byKey["checkout.flow"]; got.Reason != flags.ReasonDefault || got.Variant != "off" {
		t.Errorf("Enabled flag without strategy: expected DEFAULT/off, got %s/%s", got.Reason, got.Variant)
	}
}

func TestEvaluateAll_SubsetKeys(t *testing.T) {
	srv, _ := newTestServer(t,
		boolFlagRecord("checkout.flow", true),
		boolFlagRecord("billing.invoice_v2", false),
	)

	body := evaluateRequest{
		Context: flags.EvaluationContext{UserID: "user-1"},
		Keys:    []string{"checkout.flow", "missing.flag"},
	}
	rr := doJSON(t, srv.Router(), http.MethodPost, "/v1/evaluate", testSDKKey, body)
	resp := decodeEvaluateResponse(t, rr.Body.Bytes())

	if len(resp.Flags) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(resp.Flags))
	}
	if resp.Flags[0].FlagKey != "checkout.flow" {
		t.Errorf("Expected requested order preserved, got %s first", resp.Flags[0].FlagKey)
	}
	if resp.Flags[1].Reason != flags.ReasonError {
		t.Errorf("Unknown key: expected ERROR, got %s", resp.Flags[1].Reason)
	}
}

func TestEvaluateAll_InvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	req := doJSON(t, srv.Router(), http.MethodPost, "/v1/evaluate", testSDKKey, nil)
	if req.Code != http.StatusBadRequest {
		t.Errorf("Empty body: expected 400, got %d", req.Code)
	}
}

func TestEvaluateFlag(t *testing.T) {
	srv, _ := newTestServer(t, boolFlagRecord("checkout.flow", true))
	h := srv.Router()

	body := evaluateRequest{Context: flags.EvaluationContext{UserID: "user-1"}}
	rr := doJSON(t, h, http.MethodPost, "/v1/flags/checkout.flow/evaluate", testSDKKey, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var result flags.EvaluationResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.FlagKey != "checkout.flow" {
		t.Errorf("Expected flag_key 'checkout.flow', got %q", result.FlagKey)
	}

	rr = doJSON(t, h, http.MethodPost, "/v1/flags/missing.flag/evaluate", testSDKKey, body)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Unknown flag: expected 404, got %d", rr.Code)
	}
}

func TestEvaluateFlag_KillSwitch(t *testing.T) {
	rec := boolFlagRecord("checkout.flow", true)
	hundred := 100
	rec.Strategy = &flags.Strategy{
		ID:            "strat-1",
		Percentage:    &hundred,
		PercentageKey: flags.PercentageKey{Kind: flags.PercentageKeyUserID},
	}
	rec.Config.StrategyID = &rec.Strategy.ID

	srv, st := newTestServer(t, rec)
	ctx := context.Background()

	ks := flags.KillSwitch{
		Key:            "payments_incident",
		LinkedFlagKeys: []string{"checkout.flow"},
		IsActive:       true,
	}
	if err := st.UpsertKillSwitch(ctx, ks); err != nil {
		t.Fatalf("UpsertKillSwitch failed: %v", err)
	}
	if _, err := srv.cache.Rebuild(ctx, st); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	body := evaluateRequest{Context: flags.EvaluationContext{UserID: "user-1"}}
	rr := doJSON(t, srv.Router(), http.MethodPost, "/v1/flags/checkout.flow/evaluate", testSDKKey, body)

	var result flags.EvaluationResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Reason != flags.ReasonKillSwitch {
		t.Errorf("Expected KILL_SWITCH, got %s", result.Reason)
	}
	if result.KillSwitchKey != "payments_incident" {
		t.Errorf("Expected kill_switch_key 'payments_incident', got %q", result.KillSwitchKey)
	}
	if result.Variant != "off" {
		t.Errorf("Expected default variant 'off', got %q", result.Variant)
	}
}

func TestEvaluate_PrerequisiteChain(t *testing.T) {
	// base serves "on" to everyone via a single non-default variant
	// strategy; dependent requires base=on.
	base := boolFlagRecord("platform.base", true)
	base.Flag.Variants = []flags.Variant{
		{Name: "off", Value: false},
		{Name: "on", Value: true, Weight: 1},
	}
	base.Strategy = &flags.Strategy{
		ID:            "base-strat",
		PercentageKey: flags.PercentageKey{Kind: flags.PercentageKeyUserID},
	}

	dependent := boolFlagRecord("checkout.flow", true)
	dependent.Flag.Prerequisites = []flags.Prerequisite{
		{FlagKey: "platform.base", RequiredVariant: "on"},
	}

	srv, _ := newTestServer(t, base, dependent)

	body := evaluateRequest{Context: flags.EvaluationContext{UserID: "user-1"}}
	rr := doJSON(t, srv.Router(), http.MethodPost, "/v1/flags/checkout.flow/evaluate", testSDKKey, body)

	var result flags.EvaluationResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	// base resolves to "on" (single weighted non-default variant), so
	// the prerequisite is met and the dependent evaluates normally.
	if result.Reason == flags.ReasonPrerequisite {
		t.Fatalf("Prerequisite should be met, got %+v", result)
	}
}

func TestEvaluate_UnmetPrerequisite(t *testing.T) {
	base := boolFlagRecord("platform.base", false) // disabled: serves default "off"
	dependent := boolFlagRecord("checkout.flow", true)
	dependent.Flag.Prerequisites = []flags.Prerequisite{
		{FlagKey: "platform.base", RequiredVariant: "on"},
	}

	srv, _ := newTestServer(t, base, dependent)

	body := evaluateRequest{Context: flags.EvaluationContext{UserID: "user-1"}}
	rr := doJSON(t, srv.Router(), http.MethodPost, "/v1/flags/checkout.flow/evaluate", testSDKKey, body)

	var result flags.EvaluationResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Reason != flags.ReasonPrerequisite {
		t.Fatalf("Expected PREREQUISITE, got %+v", result)
	}
	if result.MissingPrerequisite != "platform.base" {
		t.Errorf("Expected missing_prerequisite 'platform.base', got %q", result.MissingPrerequisite)
	}
	if result.Variant != "off" {
		t.Errorf("Expected default variant, got %q", result.Variant)
	}
}

func TestEvaluate_PrerequisiteCycle(t *testing.T) {
	a := boolFlagRecord("cycle.alpha", true)
	a.Flag.Prerequisites = []flags.Prerequisite{{FlagKey: "cycle.beta", RequiredVariant: "on"}}
	b := boolFlagRecord("cycle.beta", true)
	b.Flag.Prerequisites = []flags.Prerequisite{{FlagKey: "cycle.alpha", RequiredVariant: "on"}}

	srv, _ := newTestServer(t, a, b)

	body := evaluateRequest{Context: flags.EvaluationContext{UserID: "user-1"}}
	rr := doJSON(t, srv.Router(), http.MethodPost, "/v1/flags/cycle.alpha/evaluate", testSDKKey, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("Cycle must not hang or error the request, got %d", rr.Code)
	}

	var result flags.EvaluationResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	// The cycle resolves as an unmet prerequisite, never a crash.
	if result.Reason != flags.ReasonPrerequisite {
		t.Errorf("Expected PREREQUISITE for cyclic flags, got %s", result.Reason)
	}
}

func TestEvaluate_EnvironmentDefaulted(t *testing.T) {
	srv, _ := newTestServer(t, boolFlagRecord("checkout.flow", true))

	// No environment in the request context: the server's own
	// environment applies, so environment conditions still match.
	rec := boolFlagRecord("env.gated", true)
	rec.Strategy = &flags.Strategy{
		ID: "env-strat",
		Conditions: []flags.Condition{{
			Kind: flags.ConditionEnvironment,
			Env:  &flags.EnvCondition{Environments: []string{"production"}},
		}},
		PercentageKey: flags.PercentageKey{Kind: flags.PercentageKeyUserID},
	}
	if err := srv.store.UpsertFlag(context.Background(), "production", rec); err != nil {
		t.Fatalf("UpsertFlag failed: %v", err)
	}
	if _, err := srv.cache.Rebuild(context.Background(), srv.store); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	body := evaluateRequest{Context: flags.EvaluationContext{UserID: "user-1"}}
	rr := doJSON(t, srv.Router(), http.MethodPost, "/v1/flags/env.gated/evaluate", testSDKKey, body)

	var result flags.EvaluationResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Reason != flags.ReasonStrategy {
		t.Errorf("Expected STRATEGY with defaulted environment, got %+v", result)
	}
}
