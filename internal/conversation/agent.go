package conversation

import (
	"context"
	"time"

	"github.com/wolfman30/sitelead-ai/internal/business"
)

// AgentType names an agent variant.
type AgentType string

const (
	AgentReceptionist AgentType = "receptionist"
	AgentSales        AgentType = "sales"
	AgentCoordinator  AgentType = "coordinator"
)

// Action is a side effect the engine performs after the session is saved.
type Action string

const (
	ActionLeadCaptured        Action = "lead_captured"
	ActionImmediateEscalation Action = "immediate_escalation"
	ActionScheduleCallback    Action = "schedule_callback"
)

// Turn is the input every agent receives.
type Turn struct {
	Message        string
	Session        *Session
	Business       *business.Config
	Classification Classification
	Routing        Routing
	Now            time.Time
}

// Outcome is what an agent proposes for a turn. Only the receptionist ever
// returns a non-empty Message.
type Outcome struct {
	Agent    AgentType
	Message  string
	Actions  []Action
	Analysis *SalesAnalysis
	// Source records how the message was produced ("canned", "llm", "fallback").
	Source string
}

// Agent handles one turn. Agents may mutate turn.Session.
type Agent interface {
	Type() AgentType
	Handle(ctx context.Context, turn Turn) (Outcome, error)
}
