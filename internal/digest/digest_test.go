package digest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/sitelead-ai/internal/business"
	"github.com/wolfman30/sitelead-ai/internal/leads"
	"github.com/wolfman30/sitelead-ai/internal/notify"
	"github.com/wolfman30/sitelead-ai/internal/support"
)

type sentDigest struct {
	cfg    *business.Config
	digest notify.Digest
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentDigest
}

func (f *fakeSender) SendDigest(_ context.Context, cfg *business.Config, d notify.Digest) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentDigest{cfg: cfg, digest: d})
	return []string{notify.ChannelEmail}
}

type fakeLister struct {
	ids []string
	err error
}

func (f fakeLister) IDs(context.Context) ([]string, error) { return f.ids, f.err }

func digestConfig() *business.Config {
	cfg := business.DefaultConfig("")
	cfg.Name = "Acme Web"
	cfg.Notifications.DailyDigest = true
	cfg.Notifications.EmailEnabled = true
	cfg.Notifications.EmailRecipients = []string{"owner@acme.test"}
	return cfg
}

func seed(t *testing.T, repo leads.Repository, svc *support.Service, businessID string, now time.Time) {
	t.Helper()
	ctx := context.Background()
	_, err := repo.Create(ctx, &leads.CreateLeadRequest{
		BusinessID: businessID,
		SessionID:  "s1",
		Name:       "Dana Lee",
		Email:      "dana@example.com",
		Inquiry:    "online store",
		Source:     "chat",
		Score:      75,
	})
	require.NoError(t, err)

	esc, err := svc.CreateEscalation(ctx, support.EscalationRequest{
		BusinessID:    businessID,
		Reason:        "wants a person",
		Priority:      "high",
		CustomerName:  "Sam",
		CustomerPhone: "555-123-4567",
	})
	require.NoError(t, err)
	resolved, err := svc.CreateEscalation(ctx, support.EscalationRequest{BusinessID: businessID, Reason: "done"})
	require.NoError(t, err)
	_, err = svc.Transition(ctx, businessID, resolved.ID, support.StatusResolved)
	require.NoError(t, err)
	require.NotEqual(t, esc.ID, resolved.ID)

	_, err = svc.ScheduleCallback(ctx, support.CallbackRequest{
		BusinessID:   businessID,
		CustomerName: "Lee",
		DueAt:        now.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	_, err = svc.ScheduleCallback(ctx, support.CallbackRequest{
		BusinessID:   businessID,
		CustomerName: "Later",
		DueAt:        now.Add(72 * time.Hour),
	})
	require.NoError(t, err)
}

func TestRunner_Build(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	svc := support.NewService(support.NewMemoryStore(), nil)
	now := time.Now().UTC()
	seed(t, repo, svc, "acme", now)

	r := NewRunner(business.StaticProvider{Base: digestConfig()}, repo, svc, &fakeSender{})
	d, err := r.Build(context.Background(), "acme", now)
	require.NoError(t, err)

	require.Len(t, d.NewLeads, 1)
	assert.Equal(t, "Dana Lee", d.NewLeads[0].Name)
	require.Len(t, d.OpenEscalations, 1)
	assert.Equal(t, "Sam", d.OpenEscalations[0].CustomerName)
	require.Len(t, d.DueCallbacks, 1)
	assert.Equal(t, "Lee", d.DueCallbacks[0].CustomerName)
}

func TestRunner_RunOnceSendsPerBusiness(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	svc := support.NewService(support.NewMemoryStore(), nil)
	now := time.Now().UTC()
	seed(t, repo, svc, "acme", now)
	seed(t, repo, svc, "zeta", now)

	sender := &fakeSender{}
	r := NewRunner(business.StaticProvider{Base: digestConfig()}, repo, svc, sender,
		WithBusinessIDs("acme"),
		WithLister(fakeLister{ids: []string{"acme", "zeta", "empty"}}),
	)
	require.NoError(t, r.RunOnce(context.Background()))

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 2)
	got := map[string]bool{}
	for _, s := range sender.sent {
		got[s.cfg.BusinessID] = true
		assert.False(t, s.digest.Empty())
	}
	assert.Equal(t, map[string]bool{"acme": true, "zeta": true}, got)
}

func TestRunner_SkipsBusinessesWithDigestDisabled(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	svc := support.NewService(support.NewMemoryStore(), nil)
	seed(t, repo, svc, "acme", time.Now().UTC())

	cfg := digestConfig()
	cfg.Notifications.DailyDigest = false
	sender := &fakeSender{}
	r := NewRunner(business.StaticProvider{Base: cfg}, repo, svc, sender, WithBusinessIDs("acme"))
	require.NoError(t, r.RunOnce(context.Background()))
	assert.Empty(t, sender.sent)
}

func TestRunner_ListerError(t *testing.T) {
	r := NewRunner(business.StaticProvider{}, leads.NewInMemoryRepository(),
		support.NewService(support.NewMemoryStore(), nil), &fakeSender{},
		WithLister(fakeLister{err: errors.New("redis down")}))
	err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

func TestScheduler_RejectsBadSchedule(t *testing.T) {
	r := NewRunner(business.StaticProvider{}, leads.NewInMemoryRepository(),
		support.NewService(support.NewMemoryStore(), nil), &fakeSender{})
	s := NewScheduler(r, "not a cron", nil)
	assert.Error(t, s.Run(context.Background()))
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	r := NewRunner(business.StaticProvider{}, leads.NewInMemoryRepository(),
		support.NewService(support.NewMemoryStore(), nil), &fakeSender{})
	s := NewScheduler(r, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
