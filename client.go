// Package flagdeck is the client SDK for the flagdeck feature-flag
// platform. A Client caches flag state locally, keeps it current over
// the server's event stream, and answers from the cache when the
// server is unreachable and offline mode allows it.
package flagdeck

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-resty/resty/v2"

	"github.com/flagdeck/flagdeck/flags"
)

const sdkKeyPrefix = "fdk_"

// Client evaluates feature flags against a flagdeck server. It is safe
// for concurrent use by multiple goroutines; share one instance per
// process.
type Client struct {
	sdkKey string
	config config
	rest   *resty.Client
	cache  *flagCache
	hook   ExposureHook
	log    *slog.Logger

	stream *stream
	cancel context.CancelFunc
	closed atomic.Bool
}

// New builds a Client, seeds its cache with a bulk evaluation and, when
// streaming is enabled, starts the synchronizer. The SDK key and base
// URL are validated up front; violations return ErrInvalidConfig.
func New(sdkKey string, options ...Option) (*Client, error) {
	c := &Client{
		sdkKey: sdkKey,
		config: defaultConfig(),
		rest:   resty.New(),
		cache:  newFlagCache(),
		hook:   noopHook{},
		log:    slog.New(slog.DiscardHandler),
	}

	for _, opt := range options {
		opt(c)
	}

	if !validSDKKey(sdkKey) {
		return nil, fmt.Errorf("%w: malformed SDK key", ErrInvalidConfig)
	}
	if err := validateBaseURL(c.config.baseURL); err != nil {
		return nil, err
	}

	c.rest.
		SetBaseURL(strings.TrimSuffix(c.config.baseURL, "/")).
		SetTimeout(c.config.requestTimeout).
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", "Bearer "+c.sdkKey).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode() >= 500 || resp.StatusCode() == 429
		})

	initCtx, cancel := context.WithTimeout(context.Background(), c.config.initTimeout)
	defer cancel()

	c.checkServerVersion(initCtx)

	if err := c.seedCache(initCtx); err != nil {
		var authErr AuthenticationError
		if errors.As(err, &authErr) {
			return nil, authErr
		}
		c.log.Warn("initial cache seed failed, starting uninitialized", "error", err)
	}

	if c.config.streaming {
		streamCtx, streamCancel := context.WithCancel(context.Background())
		c.cancel = streamCancel
		c.stream = newStream(
			strings.TrimSuffix(c.config.baseURL, "/")+"/v1/stream",
			c.sdkKey, c.cache, c.log, c.config.inactivityTimeout,
		)
		go c.stream.run(streamCtx)
	}

	return c, nil
}

// Close stops the streaming synchronizer. Every call made afterwards
// fails with ErrClientClosed; in-flight calls finish but their results
// are discarded by callers.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// StreamState reports the synchronizer's connection state.
func (c *Client) StreamState() ConnState {
	if c.stream == nil {
		return StateDisconnected
	}
	return c.stream.State()
}

// GetBool evaluates a flag and returns its value as a bool. The
// default is returned on any error, and when the served value is not a
// bool.
func (c *Client) GetBool(ctx context.Context, flagKey string, ectx flags.EvaluationContext, def bool) (bool, error) {
	result, err := c.evaluateFlag(ctx, flagKey, ectx)
	if err != nil {
		return def, err
	}
	if v, ok := result.Value.(bool); ok {
		return v, nil
	}
	return def, nil
}

// GetString evaluates a flag and returns its value as a string.
func (c *Client) GetString(ctx context.Context, flagKey string, ectx flags.EvaluationContext, def string) (string, error) {
	result, err := c.evaluateFlag(ctx, flagKey, ectx)
	if err != nil {
		return def, err
	}
	if v, ok := result.Value.(string); ok {
		return v, nil
	}
	return def, nil
}

// GetJSON evaluates a flag and returns its value as decoded JSON.
func (c *Client) GetJSON(ctx context.Context, flagKey string, ectx flags.EvaluationContext, def any) (any, error) {
	result, err := c.evaluateFlag(ctx, flagKey, ectx)
	if err != nil {
		return def, err
	}
	if result.Value == nil {
		return def, nil
	}
	return result.Value, nil
}

// GetAll evaluates every flag for the context. On a recoverable
// failure with offline mode enabled the results come from the cache.
func (c *Client) GetAll(ctx context.Context, ectx flags.EvaluationContext) ([]flags.EvaluationResult, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	results, err := c.serverEvaluateAll(ctx, ectx)
	if err == nil {
		for _, result := range results {
			state, _ := c.cache.GetFlag(result.FlagKey)
			c.emitExposure(state.ID, ectx, result)
		}
		return results, nil
	}
	if !c.config.offline || !isRecoverable(err) {
		return nil, err
	}
	c.logFallback(err)
	return c.cacheEvaluateAll(ectx)
}

// evaluateFlag runs the per-call pipeline: kill-switch fast path, live
// server evaluation, then cache fallback when the error class and
// offline mode allow it. Exactly one exposure is emitted per
// successful evaluation.
func (c *Client) evaluateFlag(ctx context.Context, flagKey string, ectx flags.EvaluationContext) (flags.EvaluationResult, error) {
	if c.closed.Load() {
		return flags.EvaluationResult{}, ErrClientClosed
	}

	// The fast path needs the cached defaults; a killed but uncached
	// flag goes to the server, which enforces the switch itself.
	if switchKey, killed := c.cache.IsFlagKilled(flagKey); killed {
		if state, ok := c.cache.GetFlag(flagKey); ok {
			result := flags.EvaluationResult{
				FlagKey:       flagKey,
				Variant:       state.DefaultVariant,
				Value:         state.DefaultValue,
				Reason:        flags.ReasonKillSwitch,
				KillSwitchKey: switchKey,
			}
			c.emitExposure(state.ID, ectx, result)
			return result, nil
		}
	}

	result, err := c.serverEvaluate(ctx, flagKey, ectx)
	if err == nil {
		state, _ := c.cache.GetFlag(flagKey)
		c.emitExposure(state.ID, ectx, result)
		return result, nil
	}
	if !c.config.offline || !isRecoverable(err) {
		return flags.EvaluationResult{}, err
	}
	c.logFallback(err)
	return c.cacheEvaluate(flagKey, ectx)
}

// cacheEvaluate answers from the local cache only: enabled flags serve
// the default variant, disabled or archived flags serve it with the
// Disabled reason.
func (c *Client) cacheEvaluate(flagKey string, ectx flags.EvaluationContext) (flags.EvaluationResult, error) {
	if !c.cache.IsInitialized() {
		return flags.EvaluationResult{}, ErrCacheUnavailable
	}
	state, ok := c.cache.GetFlag(flagKey)
	if !ok {
		return flags.EvaluationResult{}, FlagNotFoundError{FlagKey: flagKey}
	}

	result := flags.EvaluationResult{
		FlagKey: flagKey,
		Variant: state.DefaultVariant,
		Value:   state.DefaultValue,
		Reason:  flags.ReasonDefault,
	}
	if state.Archived || !state.Enabled {
		result.Reason = flags.ReasonDisabled
	}
	c.emitExposure(state.ID, ectx, result)
	return result, nil
}

func (c *Client) cacheEvaluateAll(ectx flags.EvaluationContext) ([]flags.EvaluationResult, error) {
	if !c.cache.IsInitialized() {
		return nil, ErrCacheUnavailable
	}

	keys := c.cache.Keys()
	results := make([]flags.EvaluationResult, 0, len(keys))
	for _, key := range keys {
		result, err := c.cacheEvaluate(key, ectx)
		if err != nil {
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

type evaluateRequest struct {
	Context flags.EvaluationContext `json:"context"`
	Keys    []string                `json:"keys,omitempty"`
}

type evaluateResponse struct {
	Flags       []flags.EvaluationResult `json:"flags"`
	ETag        string                   `json:"etag"`
	EvaluatedAt string                   `json:"evaluated_at"`
}

type serverError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (c *Client) serverEvaluate(ctx context.Context, flagKey string, ectx flags.EvaluationContext) (flags.EvaluationResult, error) {
	var result flags.EvaluationResult
	var body serverError
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(evaluateRequest{Context: ectx}).
		SetResult(&result).
		SetError(&body).
		Post("/v1/flags/" + url.PathEscape(flagKey) + "/evaluate")
	if err := classifyResponse(resp, err, flagKey, body); err != nil {
		return flags.EvaluationResult{}, err
	}
	if result.FlagKey == "" {
		return flags.EvaluationResult{}, protocolError{err: fmt.Errorf("evaluation response missing flag key")}
	}
	return result, nil
}

func (c *Client) serverEvaluateAll(ctx context.Context, ectx flags.EvaluationContext) ([]flags.EvaluationResult, error) {
	var result evaluateResponse
	var body serverError
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(evaluateRequest{Context: ectx}).
		SetResult(&result).
		SetError(&body).
		Post("/v1/evaluate")
	if err := classifyResponse(resp, err, "", body); err != nil {
		return nil, err
	}
	return result.Flags, nil
}

// seedCache runs the initial bulk evaluation and derives per-flag
// cache state from it. The streaming init event later replaces this
// with the server's authoritative snapshot.
func (c *Client) seedCache(ctx context.Context) error {
	results, err := c.serverEvaluateAll(ctx, flags.EvaluationContext{})
	if err != nil {
		return err
	}

	states := make([]FlagState, 0, len(results))
	for _, result := range results {
		states = append(states, FlagState{
			Key:            result.FlagKey,
			Enabled:        result.Reason != flags.ReasonDisabled && result.Reason != flags.ReasonError,
			DefaultVariant: result.Variant,
			DefaultValue:   result.Value,
			Archived:       result.Reason == flags.ReasonError,
		})
	}
	c.cache.Initialize(states, nil)
	c.log.Debug("cache seeded", "flags", len(states))
	return nil
}

// checkServerVersion warns when the server is older than this client
// supports. Failures here never block construction.
func (c *Client) checkServerVersion(ctx context.Context) {
	var meta struct {
		Name        string `json:"name"`
		Version     string `json:"version"`
		Environment string `json:"environment"`
	}
	resp, err := c.rest.R().SetContext(ctx).SetResult(&meta).Get("/v1/meta")
	if err != nil || !resp.IsSuccess() {
		c.log.Debug("server version check skipped", "error", err)
		return
	}

	v, err := semver.NewVersion(meta.Version)
	if err != nil {
		c.log.Debug("server reported unparseable version", "version", meta.Version)
		return
	}
	if v.LessThan(semver.MustParse(minServerVersion)) {
		c.log.Warn("server is older than the minimum supported version",
			"server_version", meta.Version, "min_version", minServerVersion)
	}
}

func (c *Client) emitExposure(flagID string, ectx flags.EvaluationContext, result flags.EvaluationResult) {
	c.hook.Record(flags.NewExposureLog(flagID, &ectx, result))
}

func (c *Client) logFallback(err error) {
	var protoErr protocolError
	if errors.As(err, &protoErr) {
		c.log.Error("server response mismatch, falling back to cache", "error", err)
		return
	}
	c.log.Warn("server unreachable, falling back to cache", "error", err)
}

// classifyResponse maps a resty outcome onto the client error
// taxonomy.
func classifyResponse(resp *resty.Response, err error, flagKey string, body serverError) error {
	if err != nil {
		if resp != nil && resp.IsSuccess() {
			return protocolError{err: err}
		}
		return err
	}
	if resp.IsSuccess() {
		return nil
	}

	switch resp.StatusCode() {
	case 401, 403:
		msg := body.Message
		if msg == "" {
			msg = "authentication failed"
		}
		return AuthenticationError{msg: msg}
	case 404:
		return FlagNotFoundError{FlagKey: flagKey}
	case 429:
		return APIError{
			StatusCode: 429,
			Message:    body.Message,
			RetryAfter: parseRetryAfter(resp.Header().Get("Retry-After")),
		}
	default:
		return APIError{StatusCode: resp.StatusCode(), Message: body.Message}
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// validSDKKey checks the key's syntactic shape: the fdk_ prefix
// followed by at least 24 URL-safe base64 characters. The server
// validates the credential itself.
func validSDKKey(key string) bool {
	rest, ok := strings.CutPrefix(key, sdkKeyPrefix)
	if !ok || len(rest) < 24 {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(rest)
	return err == nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: base URL is required", ErrInvalidConfig)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: malformed base URL %q", ErrInvalidConfig, raw)
	}
	return nil
}
