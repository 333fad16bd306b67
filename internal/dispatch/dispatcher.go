package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/sitelead-ai/internal/conversation"
	"github.com/wolfman30/sitelead-ai/internal/leads"
	"github.com/wolfman30/sitelead-ai/internal/observability/metrics"
	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

const (
	defaultWorkerCount   = 4
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	defaultMaxAttempts   = 3
	deleteTimeoutSeconds = 5
	drainPollInterval    = 10 * time.Millisecond
	retryEnqueueTimeout  = time.Second
	defaultOverflowLimit = 4096
)

// ErrQueueFull is returned when the queue buffer and the overflow spill are
// both full.
var ErrQueueFull = errors.New("dispatch: queue full")

type jobLedger interface {
	Completed(ctx context.Context, kind, jobID string) (bool, error)
	Complete(ctx context.Context, kind, jobID string, attempts int) (bool, error)
}

// trySender is implemented by queues that can refuse a message instead of
// blocking when their buffer is full.
type trySender interface {
	TrySend(body string) bool
}

type spilledJob struct {
	key  string
	body string
}

type dispatcherConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	maxAttempts      int
	overflowLimit    int
	ledger           jobLedger
	metrics          *metrics.ChatMetrics
	logger           *logging.Logger
}

// Option customizes a Dispatcher.
type Option func(*dispatcherConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) Option {
	return func(cfg *dispatcherConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) Option {
	return func(cfg *dispatcherConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages a worker pulls per receive.
func WithReceiveBatchSize(size int) Option {
	return func(cfg *dispatcherConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithMaxAttempts bounds how often a failing job is re-enqueued.
func WithMaxAttempts(n int) Option {
	return func(cfg *dispatcherConfig) {
		if n > 0 {
			cfg.maxAttempts = n
		}
	}
}

// WithJobLedger skips jobs that already completed once.
func WithJobLedger(ledger jobLedger) Option {
	return func(cfg *dispatcherConfig) {
		cfg.ledger = ledger
	}
}

// WithOverflowLimit bounds how many jobs are held in process while the queue
// buffer is full.
func WithOverflowLimit(n int) Option {
	return func(cfg *dispatcherConfig) {
		if n > 0 {
			cfg.overflowLimit = n
		}
	}
}

func WithMetrics(m *metrics.ChatMetrics) Option {
	return func(cfg *dispatcherConfig) {
		cfg.metrics = m
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(cfg *dispatcherConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Dispatcher turns conversation effects into queued jobs and runs the worker
// pool that applies them. It implements conversation.EffectSink.
type Dispatcher struct {
	queue   Queue
	handler *Handler
	cfg     dispatcherConfig
	logger  *logging.Logger

	// inflight counts jobs enqueued by this process that have not finished,
	// keyed by kind, id and attempt. Messages from other producers sharing
	// the queue are not tracked.
	mu       sync.Mutex
	inflight map[string]int
	wg       sync.WaitGroup

	// overflow holds jobs a full buffer refused, in arrival order. A single
	// forwarder goroutine moves them into the queue with a blocking Send.
	overflow   []spilledJob
	forwarding bool
	runCtx     context.Context
}

var _ conversation.EffectSink = (*Dispatcher)(nil)

func New(queue Queue, handler *Handler, opts ...Option) *Dispatcher {
	if queue == nil {
		panic("dispatch: queue required")
	}
	if handler == nil {
		panic("dispatch: handler required")
	}
	cfg := dispatcherConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		maxAttempts:      defaultMaxAttempts,
		overflowLimit:    defaultOverflowLimit,
		logger:           logging.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Dispatcher{
		queue:    queue,
		handler:  handler,
		cfg:      cfg,
		logger:   cfg.logger,
		inflight: make(map[string]int),
		runCtx:   context.Background(),
	}
}

func (d *Dispatcher) LeadCaptured(ctx context.Context, evt conversation.LeadCapturedEvent) error {
	return d.enqueue(ctx, Job{ID: evt.EventID, Kind: KindLead, BusinessID: evt.BusinessID, SessionID: evt.SessionID, Lead: &evt})
}

func (d *Dispatcher) EscalationRequested(ctx context.Context, evt conversation.EscalationEvent) error {
	return d.enqueue(ctx, Job{ID: evt.EventID, Kind: KindEscalation, BusinessID: evt.BusinessID, SessionID: evt.SessionID, Escalation: &evt})
}

func (d *Dispatcher) CallbackRequested(ctx context.Context, evt conversation.CallbackEvent) error {
	return d.enqueue(ctx, Job{ID: evt.EventID, Kind: KindCallback, BusinessID: evt.BusinessID, SessionID: evt.SessionID, Callback: &evt})
}

func (d *Dispatcher) TurnRecorded(ctx context.Context, rec conversation.TurnRecord) error {
	return d.enqueue(ctx, Job{ID: uuid.NewString(), Kind: KindTurn, BusinessID: rec.BusinessID, SessionID: rec.SessionID, Turn: &rec})
}

// LeadStored queues notifications for a lead saved outside a chat turn, such
// as a web form submission. It matches leads.CreatedHook.
func (d *Dispatcher) LeadStored(ctx context.Context, lead *leads.Lead) error {
	evt := conversation.LeadCapturedEvent{
		EventID:    lead.ID,
		BusinessID: lead.BusinessID,
		SessionID:  lead.SessionID,
		Lead: conversation.LeadInfo{
			Name:    lead.Name,
			Email:   lead.Email,
			Phone:   lead.Phone,
			Inquiry: lead.Inquiry,
		},
		Score:      lead.Score,
		Source:     lead.Source,
		CapturedAt: lead.CreatedAt,
	}
	return d.enqueue(ctx, Job{ID: lead.ID, Kind: KindStoredLead, BusinessID: lead.BusinessID, SessionID: lead.SessionID, Lead: &evt})
}

func (d *Dispatcher) enqueue(ctx context.Context, job Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	body, err := encodeJob(job)
	if err != nil {
		return err
	}
	key := inflightKey(job)
	d.track(key, 1)

	if ts, ok := d.queue.(trySender); ok {
		if !d.spilling() && ts.TrySend(body) {
			return nil
		}
		if err := d.spill(spilledJob{key: key, body: body}); err != nil {
			d.track(key, -1)
			return err
		}
		return nil
	}

	if err := d.queue.Send(ctx, body); err != nil {
		d.track(key, -1)
		return err
	}
	return nil
}

func (d *Dispatcher) spilling() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.forwarding || len(d.overflow) > 0
}

func (d *Dispatcher) spill(job spilledJob) error {
	d.mu.Lock()
	if len(d.overflow) >= d.cfg.overflowLimit {
		d.mu.Unlock()
		d.cfg.metrics.ObserveDispatchOverflow("dropped")
		return ErrQueueFull
	}
	d.overflow = append(d.overflow, job)
	startForwarder := !d.forwarding
	d.forwarding = true
	d.mu.Unlock()

	d.cfg.metrics.ObserveDispatchOverflow("spilled")
	if startForwarder {
		d.logger.Warn("dispatch queue full, spilling jobs in process")
		go d.forward()
	}
	return nil
}

// forward empties the overflow into the queue and exits once it is empty.
func (d *Dispatcher) forward() {
	for {
		d.mu.Lock()
		if len(d.overflow) == 0 {
			d.forwarding = false
			d.mu.Unlock()
			return
		}
		next := d.overflow[0]
		d.overflow = d.overflow[1:]
		ctx := d.runCtx
		d.mu.Unlock()

		if err := d.queue.Send(ctx, next.body); err != nil {
			d.track(next.key, -1)
			d.logger.Error("dropping spilled dispatch job", "job", next.key, "error", err)
		}
	}
}

func inflightKey(job Job) string {
	return fmt.Sprintf("%s/%s/%d", job.Kind, job.ID, job.Attempt)
}

func (d *Dispatcher) track(key string, delta int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.inflight[key] + delta
	if n <= 0 {
		delete(d.inflight, key)
		return
	}
	d.inflight[key] = n
}

// Start launches the worker goroutines. They stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info("starting dispatch workers", "count", d.cfg.workers)
	d.mu.Lock()
	d.runCtx = ctx
	d.mu.Unlock()
	for i := 0; i < d.cfg.workers; i++ {
		d.wg.Add(1)
		go d.run(ctx, i)
	}
}

// Wait blocks until all workers exit.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Pending reports jobs enqueued here that have not finished yet.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	total := 0
	for _, n := range d.inflight {
		total += n
	}
	return total
}

// Drain blocks until every job this process enqueued has finished or ctx is
// done. Retries re-enqueue before the original is counted off, so a job in
// backoff keeps Drain waiting.
func (d *Dispatcher) Drain(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for {
		if d.Pending() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, workerID int) {
	defer d.wg.Done()
	d.logger.Debug("dispatch worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("dispatch worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := d.queue.Receive(ctx, d.cfg.receiveBatchSize, d.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			d.logger.Error("failed to receive dispatch jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			d.handleMessage(ctx, msg)
		}
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg Message) {
	job, err := decodeJob(msg.Body)
	if err != nil {
		d.logger.Error("dropping undecodable dispatch job", "msg_id", msg.ID, "error", err)
		d.deleteMessage(msg.ReceiptHandle)
		return
	}
	defer d.track(inflightKey(job), -1)

	if d.cfg.ledger != nil {
		done, err := d.cfg.ledger.Completed(ctx, string(job.Kind), job.ID)
		if err != nil {
			d.logger.Warn("failed to check job ledger", "job_id", job.ID, "error", err)
		} else if done {
			d.logger.Debug("skipping duplicate dispatch job", "job_id", job.ID, "kind", job.Kind)
			d.deleteMessage(msg.ReceiptHandle)
			return
		}
	}

	err = d.handler.Handle(ctx, job)
	d.cfg.metrics.ObserveDispatch(string(job.Kind), err)
	if err == nil {
		if d.cfg.ledger != nil {
			first, markErr := d.cfg.ledger.Complete(ctx, string(job.Kind), job.ID, job.Attempt+1)
			if markErr != nil {
				d.logger.Warn("failed to record completed job", "job_id", job.ID, "error", markErr)
			} else if !first {
				d.logger.Debug("job completed concurrently elsewhere", "job_id", job.ID, "kind", job.Kind)
			}
		}
		d.deleteMessage(msg.ReceiptHandle)
		return
	}

	attempt := job.Attempt + 1
	if IsPermanent(err) || attempt >= d.cfg.maxAttempts || ctx.Err() != nil {
		d.logger.Error("dropping dispatch job",
			"job_id", job.ID,
			"kind", job.Kind,
			"business_id", job.BusinessID,
			"attempt", attempt,
			"error", err,
		)
		d.deleteMessage(msg.ReceiptHandle)
		return
	}

	d.logger.Warn("retrying dispatch job", "job_id", job.ID, "kind", job.Kind, "attempt", attempt, "error", err)
	job.Attempt = attempt
	retryCtx, cancel := context.WithTimeout(ctx, retryEnqueueTimeout)
	retryErr := d.enqueue(retryCtx, job)
	cancel()
	if retryErr != nil {
		// Leave the message in place so SQS redelivers it after the
		// visibility timeout.
		d.logger.Error("failed to re-enqueue dispatch job", "job_id", job.ID, "error", retryErr)
		return
	}
	d.deleteMessage(msg.ReceiptHandle)
}

func (d *Dispatcher) deleteMessage(receipt string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := d.queue.Delete(ctx, receipt); err != nil {
		d.logger.Error("failed to delete dispatch job", "error", err)
	}
}
