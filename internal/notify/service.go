package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/sitelead-ai/internal/business"
	"github.com/wolfman30/sitelead-ai/internal/observability/metrics"
	"github.com/wolfman30/sitelead-ai/pkg/logging"
)

// Delivery channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelSlack = "slack"
)

// LeadNotice describes a freshly captured lead.
type LeadNotice struct {
	ID        string
	SessionID string
	Name      string
	Email     string
	Phone     string
	Inquiry   string
	Source    string
	Score     int
}

// EscalationNotice asks staff to contact a customer now.
type EscalationNotice struct {
	ID            string
	SessionID     string
	Reason        string
	Priority      string
	Urgency       string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Summary       string
	CreatedAt     time.Time
}

// CallbackNotice tells staff a callback is scheduled.
type CallbackNotice struct {
	ID            string
	SessionID     string
	CustomerName  string
	CustomerPhone string
	Reason        string
	Summary       string
	DueAt         time.Time
}

// Digest is the once-a-day roll-up for a business.
type Digest struct {
	Date            time.Time
	NewLeads        []LeadNotice
	OpenEscalations []EscalationNotice
	DueCallbacks    []CallbackNotice
}

// Empty reports whether there is nothing to report.
func (d Digest) Empty() bool {
	return len(d.NewLeads) == 0 && len(d.OpenEscalations) == 0 && len(d.DueCallbacks) == 0
}

// Service fans notifications out to the channels a business has enabled.
// Each channel and recipient fails independently; failures are logged and
// counted, never returned.
type Service struct {
	email   EmailSender
	sms     SMSSender
	chat    ChatPoster
	metrics *metrics.ChatMetrics
	logger  *logging.Logger
}

type Option func(*Service)

func WithMetrics(m *metrics.ChatMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService wires the senders. Any sender may be nil, which disables that
// channel.
func NewService(email EmailSender, sms SMSSender, chat ChatPoster, opts ...Option) *Service {
	s := &Service{
		email:  email,
		sms:    sms,
		chat:   chat,
		logger: logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type message struct {
	kind    string
	subject string
	body    string
	sms     string
	slack   string
}

// NotifyNewLead returns the channels that delivered at least once.
func (s *Service) NotifyNewLead(ctx context.Context, cfg *business.Config, n LeadNotice) []string {
	if cfg == nil || !cfg.Notifications.NotifyOnNewLead {
		return nil
	}
	contact := joinNonEmpty(", ", n.Phone, n.Email)
	body := fmt.Sprintf(`A new lead came in through %s.

Name: %s
Phone: %s
Email: %s
Source: %s
Lead score: %d
Inquiry: %s

Session: %s`, cfg.Name, n.Name, orDash(n.Phone), orDash(n.Email), n.Source, n.Score, orDash(n.Inquiry), n.SessionID)

	return s.fanOut(ctx, cfg.Notifications, message{
		kind:    "lead",
		subject: fmt.Sprintf("New lead - %s", n.Name),
		body:    body,
		sms:     fmt.Sprintf("New lead: %s (%s). Score %d.", n.Name, contact, n.Score),
		slack:   fmt.Sprintf(":sparkles: *New lead* %s (%s)\nScore %d | %s", n.Name, contact, n.Score, orDash(n.Inquiry)),
	})
}

// NotifyEscalation alerts staff that a customer wants a specialist now.
func (s *Service) NotifyEscalation(ctx context.Context, cfg *business.Config, n EscalationNotice) []string {
	if cfg == nil || !cfg.Notifications.NotifyOnEscalation {
		return nil
	}
	priority := strings.ToUpper(n.Priority)
	var b strings.Builder
	fmt.Fprintf(&b, "Escalation ID: %s\n\n", n.ID)
	fmt.Fprintf(&b, "Priority: %s\n", priority)
	if n.Urgency != "" {
		fmt.Fprintf(&b, "Urgency: %s\n", n.Urgency)
	}
	fmt.Fprintf(&b, "Customer: %s\n", orDash(n.CustomerName))
	fmt.Fprintf(&b, "Phone: %s\n", orDash(n.CustomerPhone))
	if n.CustomerEmail != "" {
		fmt.Fprintf(&b, "Email: %s\n", n.CustomerEmail)
	}
	b.WriteString("\n--- Reason ---\n")
	b.WriteString(orDash(n.Reason))
	b.WriteString("\n\n--- Summary ---\n")
	b.WriteString(n.Summary)
	b.WriteString("\n")

	return s.fanOut(ctx, cfg.Notifications, message{
		kind:    "escalation",
		subject: fmt.Sprintf("[%s] Customer asked for a specialist - %s", priority, orDash(n.CustomerName)),
		body:    b.String(),
		sms:     fmt.Sprintf("[%s] Call %s now at %s: %s", priority, orDash(n.CustomerName), orDash(n.CustomerPhone), truncate(n.Reason, 80)),
		slack:   fmt.Sprintf(":rotating_light: *%s escalation* %s (%s)\n%s", priority, orDash(n.CustomerName), orDash(n.CustomerPhone), n.Summary),
	})
}

// NotifyCallback tells staff a callback was booked.
func (s *Service) NotifyCallback(ctx context.Context, cfg *business.Config, n CallbackNotice) []string {
	if cfg == nil || !cfg.Notifications.NotifyOnEscalation {
		return nil
	}
	due := formatInZone(n.DueAt, cfg.Timezone, "Mon Jan 2 3:04 PM MST")
	body := fmt.Sprintf(`A customer asked for a callback.

Customer: %s
Phone: %s
Due: %s

--- Summary ---
%s
`, orDash(n.CustomerName), orDash(n.CustomerPhone), due, n.Summary)

	return s.fanOut(ctx, cfg.Notifications, message{
		kind:    "callback",
		subject: fmt.Sprintf("Callback due %s - %s", due, orDash(n.CustomerName)),
		body:    body,
		sms:     fmt.Sprintf("Callback: %s at %s by %s.", orDash(n.CustomerName), orDash(n.CustomerPhone), due),
		slack:   fmt.Sprintf(":telephone_receiver: *Callback* %s (%s) due %s", orDash(n.CustomerName), orDash(n.CustomerPhone), due),
	})
}

// SendDigest emails (and posts) the daily roll-up. SMS is skipped; the
// digest is too long for a text.
func (s *Service) SendDigest(ctx context.Context, cfg *business.Config, d Digest) []string {
	if cfg == nil || !cfg.Notifications.DailyDigest || d.Empty() {
		return nil
	}
	date := formatInZone(d.Date, cfg.Timezone, "Monday, January 2")

	var b strings.Builder
	fmt.Fprintf(&b, "Daily summary for %s (%s)\n\n", cfg.Name, date)
	fmt.Fprintf(&b, "New leads: %d\n", len(d.NewLeads))
	for _, l := range d.NewLeads {
		fmt.Fprintf(&b, "  - %s (%s) score %d: %s\n", l.Name, joinNonEmpty(", ", l.Phone, l.Email), l.Score, orDash(l.Inquiry))
	}
	fmt.Fprintf(&b, "\nOpen escalations: %d\n", len(d.OpenEscalations))
	for _, e := range d.OpenEscalations {
		fmt.Fprintf(&b, "  - [%s] %s (%s): %s\n", strings.ToUpper(e.Priority), orDash(e.CustomerName), orDash(e.CustomerPhone), orDash(e.Reason))
	}
	fmt.Fprintf(&b, "\nCallbacks due: %d\n", len(d.DueCallbacks))
	for _, c := range d.DueCallbacks {
		fmt.Fprintf(&b, "  - %s (%s) by %s\n", orDash(c.CustomerName), orDash(c.CustomerPhone), formatInZone(c.DueAt, cfg.Timezone, "3:04 PM"))
	}

	prefs := cfg.Notifications
	prefs.SMSEnabled = false
	return s.fanOut(ctx, prefs, message{
		kind:    "digest",
		subject: fmt.Sprintf("%s daily summary - %s", cfg.Name, date),
		body:    b.String(),
		slack: fmt.Sprintf(":bar_chart: *Daily summary* %d new leads, %d open escalations, %d callbacks due",
			len(d.NewLeads), len(d.OpenEscalations), len(d.DueCallbacks)),
	})
}

func (s *Service) fanOut(ctx context.Context, prefs business.NotificationPrefs, msg message) []string {
	// Channels are independent; one failing recipient never cancels the rest.
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered = map[string]bool{}
	)
	send := func(channel, target string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn()
			s.metrics.ObserveNotification(channel, err)
			if err != nil {
				s.logger.Warn("notify: delivery failed", "channel", channel, "kind", msg.kind, "to", target, "error", err)
				return
			}
			mu.Lock()
			delivered[channel] = true
			mu.Unlock()
		}()
	}

	if prefs.EmailEnabled && s.email != nil {
		for _, to := range prefs.Emails() {
			email := EmailMessage{To: to, Subject: msg.subject, Body: msg.body}
			send(ChannelEmail, to, func() error { return s.email.Send(ctx, email) })
		}
	}
	if prefs.SMSEnabled && s.sms != nil && msg.sms != "" {
		for _, to := range prefs.Recipients() {
			send(ChannelSMS, to, func() error { return s.sms.SendSMS(ctx, to, msg.sms) })
		}
	}
	if prefs.SlackEnabled && s.chat != nil && msg.slack != "" {
		channel := prefs.SlackChannel
		send(ChannelSlack, channel, func() error { return s.chat.Post(ctx, channel, msg.slack) })
	}
	wg.Wait()

	var out []string
	for _, channel := range []string{ChannelEmail, ChannelSMS, ChannelSlack} {
		if delivered[channel] {
			out = append(out, channel)
		}
	}
	if len(out) > 0 {
		s.logger.Info("notify: delivered", "kind", msg.kind, "channels", strings.Join(out, ","))
	}
	return out
}

func formatInZone(t time.Time, zone, layout string) string {
	if loc, err := time.LoadLocation(zone); err == nil && zone != "" {
		t = t.In(loc)
	}
	return t.Format(layout)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
