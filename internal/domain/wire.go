package domain

// WebSocket frame types for the turn socket.
const (
	FrameTurn       = "turn"
	FrameTurnResult = "turn_result"
	FrameError      = "error"
)

// Error codes carried by error frames and HTTP error bodies.
const (
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeUpstreamUnavailable = "upstream_unavailable"
	ErrorCodeNotFound            = "not_found"
	ErrorCodeInternal            = "internal_error"
)

// TurnFrame is a client frame asking for one dialogue turn.
type TurnFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	TurnRequest
}

// ResultFrame is a server frame answering a TurnFrame.
type ResultFrame struct {
	Type      string        `json:"type"`
	RequestID string        `json:"request_id,omitempty"`
	Result    *TurnResponse `json:"result,omitempty"`
	Code      string        `json:"code,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// SaveBlueprintRequest is the body of the save route. Browser clients of the
// /api alias send the blueprint as sopData.
type SaveBlueprintRequest struct {
	Blueprint *Blueprint `json:"sop_data,omitempty"`
	SopData   *Blueprint `json:"sopData,omitempty"`
}

// Payload returns the blueprint under either key, sop_data first.
func (r SaveBlueprintRequest) Payload() *Blueprint {
	if r.Blueprint != nil {
		return r.Blueprint
	}
	return r.SopData
}

// SaveBlueprintResponse reports an archived blueprint.
type SaveBlueprintResponse struct {
	Success        bool   `json:"success"`
	RecordID       string `json:"record_id"`
	RemoteRecordID string `json:"remote_record_id,omitempty"`
}
