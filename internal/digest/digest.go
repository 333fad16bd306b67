// Package digest builds and sends the once-a-day summary each business
// receives: leads captured in the last day, escalations still open, and
// callbacks due in the next day.
package digest

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/sitelead-ai/internal/business"
	"github.com/wolfman30/sitelead-ai/internal/leads"
	"github.com/wolfman30/sitelead-ai/internal/notify"
	"github.com/wolfman30/sitelead-ai/internal/support"
	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

const (
	window          = 24 * time.Hour
	maxLeads        = 100
	maxConcurrent   = 4
	defaultJobLimit = 10 * time.Minute
)

// Sender delivers a digest over the channels a business enabled.
type Sender interface {
	SendDigest(ctx context.Context, cfg *business.Config, d notify.Digest) []string
}

// Runner assembles and sends digests.
type Runner struct {
	businesses business.Provider
	lister     business.Lister
	staticIDs  []string
	leads      leads.Repository
	support    *support.Service
	sender     Sender
	logger     *logging.Logger
	now        func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLister enumerates businesses from the config store.
func WithLister(l business.Lister) Option {
	return func(r *Runner) { r.lister = l }
}

// WithBusinessIDs always includes ids, even without a stored config.
func WithBusinessIDs(ids ...string) Option {
	return func(r *Runner) { r.staticIDs = append(r.staticIDs, ids...) }
}

func WithLogger(logger *logging.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewRunner(businesses business.Provider, repo leads.Repository, svc *support.Service, sender Sender, opts ...Option) *Runner {
	if businesses == nil || repo == nil || svc == nil || sender == nil {
		panic("digest: businesses, leads, support and sender are required")
	}
	r := &Runner{
		businesses: businesses,
		leads:      repo,
		support:    svc,
		sender:     sender,
		logger:     logging.Default(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce sends today's digest to every known business. A failure for one
// business is logged and does not stop the others.
func (r *Runner) RunOnce(ctx context.Context) error {
	ids, err := r.businessIDs(ctx)
	if err != nil {
		return err
	}
	now := r.now()

	var g errgroup.Group
	g.SetLimit(maxConcurrent)
	for _, id := range ids {
		g.Go(func() error {
			if err := r.sendFor(ctx, id, now); err != nil {
				r.logger.Warn("digest failed", "business_id", id, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) sendFor(ctx context.Context, businessID string, now time.Time) error {
	cfg, err := r.businesses.Get(ctx, businessID)
	if err != nil {
		return fmt.Errorf("digest: load config: %w", err)
	}
	if !cfg.Notifications.DailyDigest {
		return nil
	}
	d, err := r.Build(ctx, businessID, now)
	if err != nil {
		return err
	}
	if d.Empty() {
		r.logger.Debug("digest skipped, nothing to report", "business_id", businessID)
		return nil
	}
	channels := r.sender.SendDigest(ctx, cfg, d)
	r.logger.Info("digest sent",
		"business_id", businessID,
		"leads", len(d.NewLeads),
		"escalations", len(d.OpenEscalations),
		"callbacks", len(d.DueCallbacks),
		"channels", channels,
	)
	return nil
}

// Build collects the digest contents for one business as of now.
func (r *Runner) Build(ctx context.Context, businessID string, now time.Time) (notify.Digest, error) {
	d := notify.Digest{Date: now}

	recent, err := r.leads.List(ctx, businessID, leads.ListFilter{Since: now.Add(-window), Limit: maxLeads})
	if err != nil {
		return d, fmt.Errorf("digest: list leads: %w", err)
	}
	for _, l := range recent {
		d.NewLeads = append(d.NewLeads, notify.LeadNotice{
			ID:        l.ID,
			SessionID: l.SessionID,
			Name:      l.Name,
			Email:     l.Email,
			Phone:     l.Phone,
			Inquiry:   l.Inquiry,
			Source:    l.Source,
			Score:     l.Score,
		})
	}

	open, err := r.support.OpenEscalations(ctx, businessID)
	if err != nil {
		return d, fmt.Errorf("digest: list escalations: %w", err)
	}
	for _, e := range open {
		d.OpenEscalations = append(d.OpenEscalations, notify.EscalationNotice{
			ID:            e.ID.String(),
			SessionID:     e.ConversationID,
			Reason:        e.Reason,
			Priority:      e.Priority,
			Urgency:       e.Urgency,
			CustomerName:  e.CustomerName,
			CustomerPhone: e.CustomerPhone,
			CustomerEmail: e.CustomerEmail,
			Summary:       e.Summary,
			CreatedAt:     e.CreatedAt,
		})
	}

	tasks, err := r.support.ListTasks(ctx, businessID, support.TaskFilter{
		Status:    support.TaskPending,
		DueBefore: now.Add(window),
	})
	if err != nil {
		return d, fmt.Errorf("digest: list tasks: %w", err)
	}
	for _, t := range tasks {
		d.DueCallbacks = append(d.DueCallbacks, notify.CallbackNotice{
			ID:            t.ID.String(),
			SessionID:     t.ConversationID,
			CustomerName:  t.CustomerName,
			CustomerPhone: t.CustomerPhone,
			Summary:       t.Notes,
			DueAt:         t.DueAt,
		})
	}
	return d, nil
}

func (r *Runner) businessIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, id := range r.staticIDs {
		add(id)
	}
	if r.lister != nil {
		stored, err := r.lister.IDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("digest: list businesses: %w", err)
		}
		for _, id := range stored {
			add(id)
		}
	}
	return ids, nil
}
