package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/sitelead-ai/internal/business"
	"github.com/wolfman30/sitelead-ai/internal/llm"
)

type fakeLLM struct {
	text  string
	err   error
	block bool
	calls int
	last  llm.Request
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.calls++
	f.last = req
	if f.block {
		<-ctx.Done()
		return llm.Response{}, ctx.Err()
	}
	if f.err != nil {
		return llm.Response{}, f.err
	}
	return llm.Response{Text: f.text}, nil
}

func receptionistTurn(r *Receptionist, session *Session, message string) (Outcome, error) {
	cls := NewClassifier(nil).Classify(message, session)
	return r.Handle(context.Background(), Turn{
		Message:        message,
		Session:        session,
		Business:       business.DefaultConfig("biz"),
		Classification: cls,
		Routing:        NewCoordinator().Route(session, cls),
		Now:            time.Now(),
	})
}

func TestReceptionist_UsesLLMWhenAvailable(t *testing.T) {
	client := &fakeLLM{text: "  We start with a short discovery call.  "}
	r := NewReceptionist(nil, WithLLM(client, time.Second))
	session := NewSession("biz", "s1")
	session.HasGreeted = true

	out, err := receptionistTurn(r, session, "tell me about your process")
	require.NoError(t, err)

	assert.Equal(t, "We start with a short discovery call.", out.Message)
	assert.Equal(t, sourceLLM, out.Source)
	assert.Equal(t, AgentReceptionist, out.Agent)
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, client.last.Model, "the client picks its own model")
	assert.Equal(t, "tell me about your process", client.last.Messages[len(client.last.Messages)-1].Content)
	assert.Equal(t, 1, session.ConsecutiveNonBusinessCount)
}

func TestReceptionist_FallsBackOnTimeout(t *testing.T) {
	client := &fakeLLM{block: true}
	r := NewReceptionist(nil, WithLLM(client, 20*time.Millisecond))
	session := NewSession("biz", "s1")
	session.HasGreeted = true

	start := time.Now()
	out, err := receptionistTurn(r, session, "how much does a website cost")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, sourceFallback, out.Source)
	assert.Contains(t, out.Message, "$500 - $1,500")
	assert.True(t, session.HasMadeBusinessInquiry)
}

func TestReceptionist_FallsBackOnErrorAndEmptyText(t *testing.T) {
	for _, client := range []*fakeLLM{{err: errors.New("boom")}, {text: "   "}} {
		r := NewReceptionist(nil, WithLLM(client, time.Second))
		session := NewSession("biz", "s1")
		session.HasGreeted = true

		out, err := receptionistTurn(r, session, "I need a website")
		require.NoError(t, err)
		assert.Equal(t, sourceFallback, out.Source)
		assert.Equal(t, replyGeneric, out.Message)
	}
}

func TestReceptionist_CannedRepliesSkipLLM(t *testing.T) {
	client := &fakeLLM{text: "should not be used"}
	r := NewReceptionist(nil, WithLLM(client, time.Second))
	session := NewSession("biz", "s1")

	out, err := receptionistTurn(r, session, "hello")
	require.NoError(t, err)
	assert.Equal(t, business.DefaultGreeting, out.Message)
	assert.Equal(t, 0, client.calls)
}

func TestReceptionist_TargetedFollowUps(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"name only", "my name is Dana", "Thanks, Dana! What's the best phone number or email to reach you?"},
		{"email only", "dana@example.com", "Thanks, I've got your email. And who am I speaking with?"},
		{"phone only", "555-123-4567", "Thanks, I've got your number. And who am I speaking with?"},
		{"email and phone", "dana@example.com 555-123-4567", replyAskForNameBoth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReceptionist(nil)
			session := NewSession("biz", "s1")
			session.HasGreeted = true
			session.HasMadeBusinessInquiry = true

			out, err := receptionistTurn(r, session, tt.message)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Message)
			assert.False(t, session.LeadCollected)
			assert.Empty(t, out.Actions)
		})
	}
}

func TestReceptionist_MergeNeverOverwrites(t *testing.T) {
	r := NewReceptionist(nil)
	session := NewSession("biz", "s1")
	session.HasMadeBusinessInquiry = true
	session.LeadInfo.Name = "Dana"

	out, err := receptionistTurn(r, session, "my name is Robin, robin@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Dana", session.LeadInfo.Name)
	assert.Equal(t, "robin@example.com", session.LeadInfo.Email)
	assert.True(t, session.LeadCollected)
	assert.Equal(t, []Action{ActionLeadCaptured}, out.Actions)
	assert.Contains(t, out.Message, "Dana")
}

func TestReceptionist_EscalationImmediate(t *testing.T) {
	r := NewReceptionist(nil)
	session := NewSession("biz", "s1")

	out, err := receptionistTurn(r, session, "I need a custom integration with my CRM")
	require.NoError(t, err)
	assert.Equal(t, replyEscalateContact, out.Message)
	assert.Equal(t, EscalationAwaitingContact, session.EscalationStep)
	assert.True(t, session.EscalationPending)
	assert.True(t, session.HasMadeBusinessInquiry)

	out, err = receptionistTurn(r, session, "my name is Dana and my number is 555-123-4567")
	require.NoError(t, err)
	assert.Equal(t, "Thanks, Dana. Would you like a specialist to call you right now, or would you prefer a callback later today?", out.Message)
	assert.Equal(t, []Action{ActionLeadCaptured}, out.Actions)
	assert.Equal(t, EscalationAwaitingPreference, session.EscalationStep)
	assert.True(t, session.LeadCollected)

	out, err = receptionistTurn(r, session, "hmm not sure")
	require.NoError(t, err)
	assert.Equal(t, replyPreferenceAgain, out.Message)
	assert.Equal(t, EscalationAwaitingPreference, session.EscalationStep)

	out, err = receptionistTurn(r, session, "right now please")
	require.NoError(t, err)
	assert.Equal(t, []Action{ActionImmediateEscalation}, out.Actions)
	assert.Equal(t, UrgencyImmediate, session.Urgency)
	assert.Equal(t, EscalationNone, session.EscalationStep)
	assert.False(t, session.EscalationPending)
	assert.Equal(t, StageUrgencyAssessed, session.Stage())
	assert.Contains(t, out.Message, "555-123-4567")
}

func TestReceptionist_EscalationCallback(t *testing.T) {
	r := NewReceptionist(nil)
	session := NewSession("biz", "s1")
	session.HasMadeBusinessInquiry = true
	session.LeadCollected = true
	session.LeadInfo = LeadInfo{Name: "Dana", Phone: "555-123-4567"}

	out, err := receptionistTurn(r, session, "I want to talk to a human")
	require.NoError(t, err)
	assert.Equal(t, EscalationAwaitingPreference, session.EscalationStep)
	assert.Contains(t, out.Message, "right now")

	out, err = receptionistTurn(r, session, "please call me back later")
	require.NoError(t, err)
	assert.Equal(t, []Action{ActionScheduleCallback}, out.Actions)
	assert.Equal(t, UrgencyCallback, session.Urgency)
	assert.Equal(t, EscalationNone, session.EscalationStep)
}

func TestReceptionist_EscalationAsksOnlyForMissingPhone(t *testing.T) {
	r := NewReceptionist(nil)
	session := NewSession("biz", "s1")
	session.LeadInfo = LeadInfo{Name: "Dana", Email: "dana@example.com"}

	out, err := receptionistTurn(r, session, "can I speak to someone about my existing site")
	require.NoError(t, err)
	assert.Equal(t, "Thanks, Dana. What's the best phone number for our specialist to reach you?", out.Message)
	assert.Equal(t, EscalationAwaitingContact, session.EscalationStep)
}

func TestReceptionist_UrgencyAfterLeadCollected(t *testing.T) {
	r := NewReceptionist(nil)
	session := NewSession("biz", "s1")
	session.HasGreeted = true
	session.HasMadeBusinessInquiry = true
	session.LeadCollected = true
	session.LeadInfo = LeadInfo{Name: "Dana", Email: "dana@example.com"}

	out, err := receptionistTurn(r, session, "we have a deadline next friday")
	require.NoError(t, err)
	assert.Equal(t, UrgencyUrgent, session.Urgency)
	assert.Equal(t, replyUrgent, out.Message)
}
