package cli

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/flagdeck/flagdeck/flags"
	"github.com/flagdeck/flagdeck/internal/store"
)

// Client talks to the flagdeck admin API on behalf of the CLI.
type Client struct {
	rest *resty.Client
}

// NewClient creates an admin API client.
func NewClient(baseURL, adminKey string) *Client {
	rest := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", "Bearer "+adminKey)
	return &Client{rest: rest}
}

type apiErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func apiError(resp *resty.Response, body apiErrorBody) error {
	if body.Message != "" {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode(), body.Message)
	}
	return fmt.Errorf("API error (status %d)", resp.StatusCode())
}

// ListFlags returns every flag record in the server's environment.
func (c *Client) ListFlags(ctx context.Context) ([]store.FlagRecord, error) {
	var result struct {
		Flags []store.FlagRecord `json:"flags"`
	}
	var body apiErrorBody
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&body).
		Get("/v1/admin/flags")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp, body)
	}
	return result.Flags, nil
}

// GetFlag returns one flag record by key.
func (c *Client) GetFlag(ctx context.Context, key string) (*store.FlagRecord, error) {
	var result store.FlagRecord
	var body apiErrorBody
	resp, err := c.rest.R().
		SetContext(ctx).
		SetResult(&result).
		SetError(&body).
		Get("/v1/admin/flags/" + url.PathEscape(key))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp, body)
	}
	return &result, nil
}

// UpsertFlag creates or replaces a flag and its environment state.
func (c *Client) UpsertFlag(ctx context.Context, rec store.FlagRecord) error {
	payload := map[string]any{"flag": rec.Flag}
	if rec.Config != nil {
		payload["enabled"] = rec.Config.Enabled
	}
	if rec.Strategy != nil {
		payload["strategy"] = rec.Strategy
	}

	var body apiErrorBody
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(payload).
		SetError(&body).
		Put("/v1/admin/flags/" + url.PathEscape(rec.Flag.Key))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return apiError(resp, body)
	}
	return nil
}

// SetArchived archives or restores a flag.
func (c *Client) SetArchived(ctx context.Context, key string, archived bool) error {
	action := "restore"
	if archived {
		action = "archive"
	}

	var body apiErrorBody
	resp, err := c.rest.R().
		SetContext(ctx).
		SetError(&body).
		Post("/v1/admin/flags/" + url.PathEscape(key) + "/" + action)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return apiError(resp, body)
	}
	return nil
}

// ActivateKillSwitch activates a kill switch over the given flags.
func (c *Client) ActivateKillSwitch(ctx context.Context, key string, linked []string, reason, by string) error {
	var body apiErrorBody
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"linked_flag_keys": linked,
			"reason":           reason,
			"activated_by":     by,
		}).
		SetError(&body).
		Post("/v1/admin/killswitches/" + url.PathEscape(key) + "/activate")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return apiError(resp, body)
	}
	return nil
}

// DeactivateKillSwitch deactivates a kill switch.
func (c *Client) DeactivateKillSwitch(ctx context.Context, key string) error {
	var body apiErrorBody
	resp, err := c.rest.R().
		SetContext(ctx).
		SetError(&body).
		Post("/v1/admin/killswitches/" + url.PathEscape(key) + "/deactivate")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return apiError(resp, body)
	}
	return nil
}

// Evaluate runs a server-side evaluation of one flag with the SDK key.
func (c *Client) Evaluate(ctx context.Context, sdkKey, flagKey string, ectx flags.EvaluationContext) (*flags.EvaluationResult, error) {
	var result flags.EvaluationResult
	var body apiErrorBody
	req := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]any{"context": ectx}).
		SetResult(&result).
		SetError(&body)
	if sdkKey != "" {
		req.SetHeader("Authorization", "Bearer "+sdkKey)
	}
	resp, err := req.Post("/v1/flags/" + url.PathEscape(flagKey) + "/evaluate")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp, body)
	}
	return &result, nil
}

// EvaluateAll runs a server-side bulk evaluation with the SDK key.
func (c *Client) EvaluateAll(ctx context.Context, sdkKey string, ectx flags.EvaluationContext) ([]flags.EvaluationResult, error) {
	var result struct {
		Flags []flags.EvaluationResult `json:"flags"`
	}
	var body apiErrorBody
	req := c.rest.R().
		SetContext(ctx).
		SetBody(map[string]any{"context": ectx}).
		SetResult(&result).
		SetError(&body)
	if sdkKey != "" {
		req.SetHeader("Authorization", "Bearer "+sdkKey)
	}
	resp, err := req.Post("/v1/evaluate")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp, body)
	}
	return result.Flags, nil
}
