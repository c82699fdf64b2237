package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"user-migrator/internal/domain"
)

const (
	createUserPath = "/local/user"
	maxErrorBody   = 512
	backoffCeiling = 30 * time.Minute
)

// Config controls how the account service is called.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
	Logger      logrus.FieldLogger
}

// AccountService creates accounts in the target system.
type AccountService interface {
	CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.CreatedUser, error)
}

// AccountClient talks to the target system's local user endpoint.
type AccountClient struct {
	cfg        Config
	httpClient *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewAccountClient(cfg Config) *AccountClient {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &AccountClient{
		cfg: cfg,
		// per-attempt timeouts are applied through the request context
		httpClient: &http.Client{},
		sleep:      sleepContext,
	}
}

// CreateUser posts the request, retrying transient failures with exponential backoff.
func (c *AccountClient) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.CreatedUser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode create user request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		user, err := c.post(ctx, body)
		if err == nil {
			return user, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !isRetryable(err) || attempt == c.cfg.MaxAttempts {
			break
		}

		wait := c.backoff(attempt)
		c.cfg.Logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"handle":  req.Handle,
			"wait":    wait,
		}).Warnf("create user failed, retrying: %v", err)

		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	if c.cfg.MaxAttempts > 1 && isRetryable(lastErr) {
		return nil, fmt.Errorf("create user after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
	}
	return nil, fmt.Errorf("create user: %w", lastErr)
}

func (c *AccountClient) post(ctx context.Context, body []byte) (*domain.CreatedUser, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+createUserPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build create user request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.cfg.Logger.WithField("duration", time.Since(start)).Debugf("create user request failed: %v", err)
		return nil, mapError(err)
	}
	defer resp.Body.Close()

	c.cfg.Logger.WithFields(logrus.Fields{
		"status":     resp.StatusCode,
		"duration":   time.Since(start),
		"request_id": httpReq.Header.Get("X-Request-ID"),
	}).Debug("create user request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	var user domain.CreatedUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: decode body: %v", domain.ErrInvalidResponse, err)
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	return &user, nil
}

// backoff doubles the base delay per attempt, bounded by MaxBackoff
// (or backoffCeiling when MaxBackoff is unset). The bound is applied before
// converting to a Duration so large attempt counts cannot overflow.
func (c *AccountClient) backoff(attempt int) time.Duration {
	if c.cfg.Backoff <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	limit := c.cfg.MaxBackoff
	if limit <= 0 {
		limit = backoffCeiling
	}
	f := float64(c.cfg.Backoff) * math.Pow(2, float64(attempt-1))
	if f >= float64(limit) {
		return limit
	}
	return time.Duration(f)
}

func mapError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ AccountService = (*AccountClient)(nil)
