// Package domain defines the core domain models for the SOP consultant.
package domain

// Role represents the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// EnvelopeType tags the variant of a ResponseEnvelope.
type EnvelopeType string

const (
	EnvelopeTypeChat EnvelopeType = "chat"
	EnvelopeTypeSOP  EnvelopeType = "sop"
)

// Phase is the advisory stage of the three-part dialogue protocol.
type Phase string

const (
	PhaseInquiry   Phase = "inquiry"
	PhaseBlueprint Phase = "blueprint"
	PhaseClosing   Phase = "closing"
)

// ParsePhase converts caller-supplied text into a Phase.
// An empty string means the conversation has not started yet.
func ParsePhase(s string) (Phase, bool) {
	switch Phase(s) {
	case "":
		return PhaseInquiry, true
	case PhaseInquiry, PhaseBlueprint, PhaseClosing:
		return Phase(s), true
	}
	return "", false
}

// EventType represents the type of a turn trace event.
type EventType string

const (
	EventTypeTurnReceived      EventType = "turn_received"
	EventTypeLLMCallDone       EventType = "llm_call_done"
	EventTypeEnvelopeDegraded  EventType = "envelope_degraded"
	EventTypePhaseViolation    EventType = "phase_violation"
	EventTypeBlueprintArchived EventType = "blueprint_archived"
)

const (
	// FallbackMessage is returned when the completion text is empty.
	FallbackMessage = "系统繁忙，请重试"
	// UpstreamApology is the only text shown to callers when the completion API fails.
	UpstreamApology = "抱歉，顾问暂时无法响应，请稍后重试"
)
