// Package sandbox talks to the external sandboxed-execution service. Isolation
// is entirely the service's job; this client only shapes requests, bounds time
// and classifies failures.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"practice_mentor/internal/common"
	"practice_mentor/internal/domain/model"
	"practice_mentor/internal/platform/logger"
	"practice_mentor/internal/platform/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	// MaxTimeLimit caps every execution regardless of what the problem asks for.
	MaxTimeLimit     = 10 * time.Second
	defaultTimeLimit = 2 * time.Second
	timeoutGrace     = 2 * time.Second
	maxErrorBody     = 4 << 10
)

// ExecuteRequest is the wire format sent to the sandbox.
type ExecuteRequest struct {
	Language    model.Language `json:"language"`
	Source      string         `json:"source"`
	Stdin       string         `json:"stdin"`
	TimeLimitMs int64          `json:"time_limit_ms"`
}

// Result is the sandbox answer for one program run.
type Result struct {
	Stdout    string `json:"stdout"`
	Stderr    string `json:"stderr"`
	ExitCode  int    `json:"exit_code"`
	RuntimeMs int64  `json:"runtime_ms"`
	TimedOut  bool   `json:"timed_out"`
}

type Config struct {
	BaseURL          string
	MaxConcurrency   int
	DefaultTimeLimit time.Duration
	RetryBackoff     time.Duration
	HTTPClient       *http.Client
}

type Client struct {
	baseURL          string
	httpClient       *http.Client
	defaultTimeLimit time.Duration
	retryBackoff     time.Duration
	sem              *semaphore.Weighted
}

func NewClient(cfg Config) *Client {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	if cfg.DefaultTimeLimit <= 0 {
		cfg.DefaultTimeLimit = defaultTimeLimit
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:       httpClient,
		defaultTimeLimit: cfg.DefaultTimeLimit,
		retryBackoff:     cfg.RetryBackoff,
		sem:              semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
	}
}

// ClampTimeLimit applies the default for non-positive limits and the fixed ceiling.
func (c *Client) ClampTimeLimit(limit time.Duration) time.Duration {
	if limit <= 0 {
		limit = c.defaultTimeLimit
	}
	if limit > MaxTimeLimit {
		limit = MaxTimeLimit
	}
	return limit
}

// Execute runs source once against stdin. Unsupported languages fail without a
// network call. A transient failure is retried once after the backoff.
func (c *Client) Execute(ctx context.Context, lang model.Language, source, stdin string, timeLimit time.Duration) (*Result, error) {
	if !lang.IsSupported() {
		return nil, fmt.Errorf("language %q: %w", lang, common.ErrUnsupportedLanguage)
	}
	limit := c.ClampTimeLimit(timeLimit)
	req := ExecuteRequest{Language: lang, Source: source, Stdin: stdin, TimeLimitMs: limit.Milliseconds()}

	res, err := c.executeOnce(ctx, req, limit)
	if err == nil || !common.IsTransient(err) {
		return res, err
	}

	logger.Warn(ctx, "sandbox transient failure, retrying once", zap.Error(err), zap.Duration("backoff", c.retryBackoff))
	if c.retryBackoff > 0 {
		timer := time.NewTimer(c.retryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return c.executeOnce(ctx, req, limit)
}

func (c *Client) executeOnce(ctx context.Context, req ExecuteRequest, limit time.Duration) (*Result, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	started := time.Now()
	res, err := c.post(ctx, req, limit)
	metrics.SandboxLatency.Observe(time.Since(started).Seconds())
	metrics.SandboxCalls.WithLabelValues(resultLabel(res, err)).Inc()
	return res, err
}

func (c *Client) post(ctx context.Context, req ExecuteRequest, limit time.Duration) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &common.ExecutionError{Kind: common.ExecutionFatal, Err: fmt.Errorf("marshal request: %w", err)}
	}

	callCtx, cancel := context.WithTimeout(ctx, limit+timeoutGrace)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, &common.ExecutionError{Kind: common.ExecutionFatal, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("sandbox did not answer within %s: %w", limit+timeoutGrace, common.ErrTimeout)
		}
		return nil, &common.ExecutionError{Kind: common.ExecutionTransient, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		kind := common.ExecutionFatal
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			kind = common.ExecutionTransient
		}
		return nil, &common.ExecutionError{
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(msg))),
		}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("sandbox response cut off: %w", common.ErrTimeout)
		}
		return nil, &common.ExecutionError{Kind: common.ExecutionFatal, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if result.RuntimeMs > limit.Milliseconds() {
		result.TimedOut = true
	}
	return &result, nil
}

func resultLabel(res *Result, err error) string {
	switch {
	case err == nil && res.TimedOut:
		return "timeout"
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrTimeout):
		return "timeout"
	case common.IsTransient(err):
		return "transient"
	default:
		return "fatal"
	}
}
