package domain

import (
	"encoding/json"
	"time"
)

// TurnRequest is one inbound dialogue turn. The caller owns the history
// and resends it, together with the last known phase, on every turn.
type TurnRequest struct {
	Message string `json:"message"`
	History []Turn `json:"history,omitempty"`
	Phase   string `json:"phase,omitempty"`
}

// TurnResult is the outcome of a dialogue turn.
type TurnResult struct {
	TurnID        string   `json:"turn_id"`
	Envelope      Envelope `json:"envelope"`
	Phase         Phase    `json:"phase"`
	Degraded      bool     `json:"degraded,omitempty"`
	DegradeReason string   `json:"degrade_reason,omitempty"`
	ArchiveID     string   `json:"archive_id,omitempty"`
}

// TurnResponse is the wire shape of a TurnResult.
type TurnResponse struct {
	Type      EnvelopeType `json:"type"`
	Message   string       `json:"message"`
	Blueprint *Blueprint   `json:"sop_data,omitempty"`
	Phase     Phase        `json:"phase"`
	TurnID    string       `json:"turn_id"`
	ArchiveID string       `json:"archive_id,omitempty"`
}

// Response flattens the result into its wire shape.
func (r *TurnResult) Response() TurnResponse {
	return TurnResponse{
		Type:      r.Envelope.Type,
		Message:   r.Envelope.Message,
		Blueprint: r.Envelope.Blueprint,
		Phase:     r.Phase,
		TurnID:    r.TurnID,
		ArchiveID: r.ArchiveID,
	}
}

// BlueprintRecord is an archived blueprint.
type BlueprintRecord struct {
	RecordID       string          `json:"record_id"`
	Title          string          `json:"title"`
	ContentJSON    json.RawMessage `json:"content_json"`
	CreatedAt      time.Time       `json:"created_at"`
	RemoteRecordID string          `json:"remote_record_id,omitempty"`
}

// Lead is contact information collected during the closing phase.
type Lead struct {
	LeadID         string    `json:"lead_id"`
	Name           string    `json:"name"`
	Contact        string    `json:"contact"`
	BlueprintID    string    `json:"blueprint_id,omitempty"`
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	RemoteRecordID string    `json:"remote_record_id,omitempty"`
}

// TurnEvent is a trace event recorded while handling a turn.
type TurnEvent struct {
	EventID string          `json:"event_id"`
	TurnID  string          `json:"turn_id"`
	Ts      int64           `json:"ts"` // Unix milliseconds
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// TurnReceivedPayload is the payload for turn_received.
type TurnReceivedPayload struct {
	Phase        Phase `json:"phase"`
	HistoryTurns int   `json:"history_turns"`
	WindowTurns  int   `json:"window_turns"`
}

// LLMCallDonePayload is the payload for llm_call_done.
type LLMCallDonePayload struct {
	Model            string `json:"model,omitempty"`
	LatencyMs        int64  `json:"latency_ms"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	TotalTokens      int    `json:"total_tokens,omitempty"`
	Error            string `json:"error,omitempty"`
}

// DegradedPayload is the payload for envelope_degraded and phase_violation.
type DegradedPayload struct {
	Reason       string       `json:"reason"`
	EnvelopeType EnvelopeType `json:"envelope_type,omitempty"`
	Phase        Phase        `json:"phase,omitempty"`
}

// BlueprintArchivedPayload is the payload for blueprint_archived.
type BlueprintArchivedPayload struct {
	RecordID       string `json:"record_id"`
	RemoteRecordID string `json:"remote_record_id,omitempty"`
}
