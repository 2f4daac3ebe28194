package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"contractorium/observability/logging"
)

// EventType represents the logical webhook topic.
type EventType string

const (
	// EventClaimSettled is emitted once a claim has been paid out.
	EventClaimSettled EventType = "bounty.report.settled"
	// EventClaimRefunded is emitted when a settlement attempt returned the deposit.
	EventClaimRefunded EventType = "bounty.report.refunded"

	EventHeader     = "X-Contractorium-Event"
	SignatureHeader = "X-Contractorium-Signature"

	defaultMaxAttempts = 5
	defaultMinBackoff  = 2 * time.Second
	defaultMaxBackoff  = 30 * time.Second
)

// SettledPayload describes the webhook body for settlement events.
type SettledPayload struct {
	Type       EventType `json:"type"`
	ClaimID    uint64    `json:"claimId"`
	Reporter   string    `json:"reporter"`
	Program    string    `json:"program"`
	Gross      uint64    `json:"gross"`
	Payout     uint64    `json:"payout"`
	Revenue    uint64    `json:"revenue"`
	CutBps     uint32    `json:"cutBps"`
	Height     uint64    `json:"height"`
	TxHash     string    `json:"txHash"`
	SettledAt  time.Time `json:"settledAt"`
	DeliveryID string    `json:"deliveryId"`
}

// RefundedPayload describes the webhook body for refund events.
type RefundedPayload struct {
	Type       EventType `json:"type"`
	ClaimID    uint64    `json:"claimId"`
	Payer      string    `json:"payer"`
	Amount     uint64    `json:"amount"`
	Reason     string    `json:"reason"`
	Height     uint64    `json:"height"`
	TxHash     string    `json:"txHash"`
	RefundedAt time.Time `json:"refundedAt"`
	DeliveryID string    `json:"deliveryId"`
}

// Dispatcher orchestrates webhook deliveries with retry and exponential backoff.
type Dispatcher struct {
	endpoint    string
	secret      []byte
	client      *http.Client
	logger      *slog.Logger
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan delivery
	wg     sync.WaitGroup
}

type delivery struct {
	eventType EventType
	id        string
	body      []byte
}

// Option mutates dispatcher configuration.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for deliveries.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithRetryPolicy overrides the retry configuration.
func WithRetryPolicy(maxAttempts int, minBackoff, maxBackoff time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if minBackoff > 0 {
			d.minBackoff = minBackoff
		}
		if maxBackoff >= minBackoff && maxBackoff > 0 {
			d.maxBackoff = maxBackoff
		}
	}
}

// WithLogger routes delivery failures to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher constructs a dispatcher and spawns the worker goroutine.
func NewDispatcher(endpoint string, secret []byte, opts ...Option) (*Dispatcher, error) {
	endpoint = string(bytes.TrimSpace([]byte(endpoint)))
	if endpoint == "" {
		return nil, errors.New("webhook: endpoint required")
	}
	if len(secret) == 0 {
		return nil, errors.New("webhook: secret required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := &Dispatcher{
		endpoint:    endpoint,
		secret:      append([]byte(nil), secret...),
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      slog.Default(),
		maxAttempts: defaultMaxAttempts,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		ctx:         ctx,
		cancel:      cancel,
		queue:       make(chan delivery, 32),
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	dispatcher.wg.Add(1)
	go dispatcher.worker()
	return dispatcher, nil
}

// Close stops the dispatcher and waits for inflight deliveries to complete.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.cancel()
	d.wg.Wait()
}

// EnqueueSettled sends a settlement event asynchronously.
func (d *Dispatcher) EnqueueSettled(payload SettledPayload) error {
	payload.Type = EventClaimSettled
	if payload.SettledAt.IsZero() {
		payload.SettledAt = time.Now().UTC()
	}
	if payload.DeliveryID == "" {
		payload.DeliveryID = uuid.NewString()
	}
	return d.enqueue(payload.Type, payload.DeliveryID, payload)
}

// EnqueueRefunded sends a refund event asynchronously.
func (d *Dispatcher) EnqueueRefunded(payload RefundedPayload) error {
	payload.Type = EventClaimRefunded
	if payload.RefundedAt.IsZero() {
		payload.RefundedAt = time.Now().UTC()
	}
	if payload.DeliveryID == "" {
		payload.DeliveryID = uuid.NewString()
	}
	return d.enqueue(payload.Type, payload.DeliveryID, payload)
}

func (d *Dispatcher) enqueue(eventType EventType, id string, body interface{}) error {
	if d == nil {
		return errors.New("webhook: dispatcher not initialised")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	select {
	case d.queue <- delivery{eventType: eventType, id: id, body: data}:
		return nil
	case <-d.ctx.Done():
		return errors.New("webhook: dispatcher closed")
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.queue:
			d.process(job)
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) process(job delivery) {
	attempt := 0
	backoff := d.minBackoff
	for {
		attempt++
		ctx, cancel := context.WithTimeout(d.ctx, d.client.Timeout)
		err := d.send(ctx, job)
		cancel()
		if err == nil {
			return
		}
		if attempt >= d.maxAttempts {
			d.logger.Warn("webhook delivery abandoned",
				"event", string(job.eventType),
				logging.MaskField("endpoint", d.endpoint),
				"delivery_id", job.id,
				"attempts", attempt,
				"error", err)
			return
		}
		select {
		case <-time.After(backoff):
		case <-d.ctx.Done():
			return
		}
		backoff = nextBackoff(backoff, d.maxBackoff)
	}
}

func (d *Dispatcher) send(ctx context.Context, job delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(job.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, string(job.eventType))
	req.Header.Set(SignatureHeader, Sign(d.secret, job.body))
	resp, err := d.client.Do(req)
	if err != nil {
		// url.Error repeats the endpoint, which may carry credentials.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fmt.Errorf("webhook: %s: %w", urlErr.Op, urlErr.Err)
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook: delivery failed with status %d", resp.StatusCode)
}

// Sign returns the signature header value for body. Receivers recompute it
// with the shared secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	if next < current {
		return max
	}
	return next
}
