package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/flagdeck/flagdeck/events"
	"github.com/flagdeck/flagdeck/flags"
)

func decodeAdminResponse(t *testing.T, body []byte) adminResponse {
	t.Helper()
	var resp adminResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode admin response: %v", err)
	}
	return resp
}

func TestAdminUpsertFlag(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()
	before := srv.cache.Load().ETag

	enabled := true
	req := upsertFlagRequest{
		Flag: flags.Flag{
			ID:  "flag-new",
			Key: "search.ranker_v3",
			Variants: []flags.Variant{
				{Name: "control", Value: false},
				{Name: "treatment", Value: true, Weight: 1},
			},
			DefaultVariant: "control",
		},
		Enabled: &enabled,
		Strategy: &flags.Strategy{
			ID:            "strat-ranker",
			PercentageKey: flags.PercentageKey{Kind: flags.PercentageKeyUserID},
		},
	}

	rr := doJSON(t, h, http.MethodPut, "/v1/admin/flags/search.ranker_v3", testAdminKey, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeAdminResponse(t, rr.Body.Bytes())
	if !resp.OK {
		t.Error("Expected ok=true")
	}
	if resp.ETag == before {
		t.Error("Expected etag to change after upsert")
	}

	rec := srv.cache.Load().Flag("search.ranker_v3")
	if rec == nil {
		t.Fatal("Upserted flag missing from snapshot")
	}
	if rec.Strategy == nil || rec.Strategy.ID != "strat-ranker" {
		t.Errorf("Expected strategy in snapshot, got %+v", rec.Strategy)
	}
}

func TestAdminUpsertFlag_MetadataOnlyKeepsEnabled(t *testing.T) {
	srv, _ := newTestServer(t, boolFlagRecord("checkout.flow", true))
	h := srv.Router()

	sub, unsub := srv.cache.Subscribe()
	defer unsub()

	// No enabled field in the body: only flag metadata changes, the
	// stored config must survive and the broadcast must agree with it.
	updated := boolFlagRecord("checkout.flow", true).Flag
	updated.Description = "new checkout funnel"
	req := upsertFlagRequest{Flag: updated}

	rr := doJSON(t, h, http.MethodPut, "/v1/admin/flags/checkout.flow", testAdminKey, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rec := srv.cache.Load().Flag("checkout.flow")
	if rec == nil || rec.Config == nil || !rec.Config.Enabled {
		t.Fatalf("Expected flag to stay enabled in snapshot, got %+v", rec)
	}
	if rec.Flag.Description != "new checkout funnel" {
		t.Errorf("Expected updated description, got %q", rec.Flag.Description)
	}

	e := <-sub
	fu, ok := e.(events.FlagUpdated)
	if !ok {
		t.Fatalf("Expected flag_updated event, got %s", e.EventType())
	}
	if !fu.Enabled {
		t.Error("Published event disagrees with snapshot: expected enabled=true")
	}
	if fu.DefaultVariant != "off" {
		t.Errorf("Expected default variant from snapshot, got %q", fu.DefaultVariant)
	}
}

func TestAdminUpsertFlag_Validation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Router()

	// Key mismatch between URL and body.
	req := upsertFlagRequest{Flag: flags.Flag{
		Key:            "other.key",
		Variants:       []flags.Variant{{Name: "on", Value: true}},
		DefaultVariant: "on",
	}}
	rr := doJSON(t, h, http.MethodPut, "/v1/admin/flags/search.ranker_v3", testAdminKey, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Key mismatch: expected 400, got %d", rr.Code)
	}

	// Default variant that does not resolve.
	req = upsertFlagRequest{Flag: flags.Flag{
		Key:            "search.ranker_v3",
		Variants:       []flags.Variant{{Name: "on", Value: true}},
		DefaultVariant: "missing",
	}}
	rr = doJSON(t, h, http.MethodPut, "/v1/admin/flags/search.ranker_v3", testAdminKey, req)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("Bad default variant: expected 400, got %d", rr.Code)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Code != ErrCodeValidation {
		t.Errorf("Expected VALIDATION_ERROR, got %s", errResp.Code)
	}
}

func TestAdminArchiveRestore(t *testing.T) {
	srv, _ := newTestServer(t, boolFlagRecord("checkout.flow", true))
	h := srv.Router()

	sub, unsub := srv.cache.Subscribe()
	defer unsub()

	rr := doJSON(t, h, http.MethodPost, "/v1/admin/flags/checkout.flow/archive", testAdminKey, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("archive: expected 200, got %d", rr.Code)
	}
	if rec := srv.cache.Load().Flag("checkout.flow"); rec == nil || !rec.Flag.Archived() {
		t.Error("Expected flag archived in snapshot")
	}
	if e := <-sub; e.EventType() != events.TypeFlagArchived {
		t.Errorf("Expected flag_archived event, got %s", e.EventType())
	}

	rr = doJSON(t, h, http.MethodPost, "/v1/admin/flags/checkout.flow/restore", testAdminKey, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("restore: expected 200, got %d", rr.Code)
	}
	if rec := srv.cache.Load().Flag("checkout.flow"); rec == nil || rec.Flag.Archived() {
		t.Error("Expected flag restored in snapshot")
	}
	e := <-sub
	restored, ok := e.(events.FlagRestored)
	if !ok {
		t.Fatalf("Expected flag_restored event, got %T", e)
	}
	if !restored.Enabled {
		t.Error("Expected restored event to carry enabled state")
	}

	rr = doJSON(t, h, http.MethodPost, "/v1/admin/flags/missing.flag/archive", testAdminKey, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Unknown flag: expected 404, got %d", rr.Code)
	}
}

func TestAdminKillSwitchLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, boolFlagRecord("checkout.flow", true))
	h := srv.Router()

	sub, unsub := srv.cache.Subscribe()
	defer unsub()

	req := killSwitchRequest{
		LinkedFlagKeys: []string{"checkout.flow"},
		Reason:         "gateway outage",
		ActivatedBy:    "oncall",
	}
	rr := doJSON(t, h, http.MethodPost, "/v1/admin/killswitches/payments_incident/activate", testAdminKey, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("activate: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	e := <-sub
	activated, ok := e.(events.KillSwitchActivated)
	if !ok {
		t.Fatalf("Expected kill_switch_activated, got %T", e)
	}
	if activated.Reason != "gateway outage" {
		t.Errorf("Expected reason in event, got %q", activated.Reason)
	}

	// The snapshot now carries the active switch, so evaluation flips.
	body := evaluateRequest{Context: flags.EvaluationContext{UserID: "user-1"}}
	er := doJSON(t, h, http.MethodPost, "/v1/flags/checkout.flow/evaluate", testSDKKey, body)
	var result flags.EvaluationResult
	if err := json.Unmarshal(er.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Reason != flags.ReasonKillSwitch {
		t.Errorf("Expected KILL_SWITCH after activation, got %s", result.Reason)
	}

	rr = doJSON(t, h, http.MethodPost, "/v1/admin/killswitches/payments_incident/deactivate", testAdminKey, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("deactivate: expected 200, got %d", rr.Code)
	}
	if e := <-sub; e.EventType() != events.TypeKillSwitchDeactivated {
		t.Errorf("Expected kill_switch_deactivated, got %s", e.EventType())
	}

	er = doJSON(t, h, http.MethodPost, "/v1/flags/checkout.flow/evaluate", testSDKKey, body)
	if err := json.Unmarshal(er.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Reason == flags.ReasonKillSwitch {
		t.Error("Kill switch still applied after deactivation")
	}

	rr = doJSON(t, h, http.MethodPost, "/v1/admin/killswitches/unknown_switch/deactivate", testAdminKey, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Unknown switch: expected 404, got %d", rr.Code)
	}
}

func TestAdminKillSwitch_ReactivateKeepsLinkage(t *testing.T) {
	srv, _ := newTestServer(t, boolFlagRecord("checkout.flow", true))
	h := srv.Router()

	first := killSwitchRequest{LinkedFlagKeys: []string{"checkout.flow"}}
	if rr := doJSON(t, h, http.MethodPost, "/v1/admin/killswitches/ks_a/activate", testAdminKey, first); rr.Code != http.StatusOK {
		t.Fatalf("first activate failed: %d", rr.Code)
	}
	if rr := doJSON(t, h, http.MethodPost, "/v1/admin/killswitches/ks_a/deactivate", testAdminKey, nil); rr.Code != http.StatusOK {
		t.Fatalf("deactivate failed: %d", rr.Code)
	}

	// Re-activate without repeating the linkage.
	if rr := doJSON(t, h, http.MethodPost, "/v1/admin/killswitches/ks_a/activate", testAdminKey, killSwitchRequest{}); rr.Code != http.StatusOK {
		t.Fatalf("re-activate failed: %d", rr.Code)
	}

	for _, ks := range srv.cache.Load().KillSwitches {
		if ks.Key == "ks_a" {
			if !ks.IsActive {
				t.Error("Expected ks_a active")
			}
			if len(ks.LinkedFlagKeys) != 1 || ks.LinkedFlagKeys[0] != "checkout.flow" {
				t.Errorf("Expected linkage preserved, got %v", ks.LinkedFlagKeys)
			}
			return
		}
	}
	t.Fatal("ks_a missing from snapshot")
}

func TestAdminListFlags(t *testing.T) {
	srv, _ := newTestServer(t,
		boolFlagRecord("checkout.flow", true),
		boolFlagRecord("search.ranking", false),
	)
	h := srv.Router()

	rr := doJSON(t, h, http.MethodGet, "/v1/admin/flags", testAdminKey, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp flagListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(resp.Flags) != 2 {
		t.Fatalf("Expected 2 flags, got %d", len(resp.Flags))
	}
	if resp.Flags[0].Flag.Key != "checkout.flow" {
		t.Errorf("Expected stable key order, got %q first", resp.Flags[0].Flag.Key)
	}
	if resp.ETag == "" {
		t.Error("Expected a snapshot etag")
	}
}

func TestAdminGetFlag(t *testing.T) {
	srv, _ := newTestServer(t, boolFlagRecord("checkout.flow", true))
	h := srv.Router()

	rr := doJSON(t, h, http.MethodGet, "/v1/admin/flags/checkout.flow", testAdminKey, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	var rec struct {
		Flag   flags.Flag        `json:"flag"`
		Config *flags.FlagConfig `json:"config"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode flag record: %v", err)
	}
	if rec.Flag.Key != "checkout.flow" {
		t.Errorf("Expected checkout.flow, got %q", rec.Flag.Key)
	}
	if rec.Config == nil || !rec.Config.Enabled {
		t.Error("Expected an enabled config in the record")
	}

	if rr := doJSON(t, h, http.MethodGet, "/v1/admin/flags/missing.flag", testAdminKey, nil); rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown flag, got %d", rr.Code)
	}
}
