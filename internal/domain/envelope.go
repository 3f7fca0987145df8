package domain

// Turn is a single conversation message. Turns are never mutated once created.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Envelope is the tagged union returned for every dialogue turn.
// Blueprint is set only when Type is EnvelopeTypeSOP.
type Envelope struct {
	Type      EnvelopeType `json:"type" jsonschema:"enum=chat,enum=sop"`
	Message   string       `json:"message" jsonschema:"minLength=1"`
	Blueprint *Blueprint   `json:"sop_data,omitempty"`
}

// Blueprint is the structured SOP synthesized once all required facts are known.
type Blueprint struct {
	Title     string    `json:"title" jsonschema:"minLength=1"`
	Summary   string    `json:"summary" jsonschema:"minLength=1"`
	Diagram   string    `json:"mermaid" jsonschema:"minLength=1"`
	Steps     []Step    `json:"steps" jsonschema:"minItems=1"`
	Diagnosis []Finding `json:"diagnosis"`
}

// Step is one row of the SOP table.
type Step struct {
	Role     string `json:"role" jsonschema:"minLength=1"`
	Action   string `json:"action" jsonschema:"minLength=1"`
	Standard string `json:"standard"`
	Risk     string `json:"risk,omitempty"`
}

// Finding is a diagnostic observation about the current process.
type Finding struct {
	Category    string `json:"type" jsonschema:"minLength=1"`
	Description string `json:"desc" jsonschema:"minLength=1"`
}

// Chat builds a chat envelope.
func Chat(message string) Envelope {
	return Envelope{Type: EnvelopeTypeChat, Message: message}
}

// SOP builds a blueprint envelope.
func SOP(message string, bp Blueprint) Envelope {
	return Envelope{Type: EnvelopeTypeSOP, Message: message, Blueprint: &bp}
}

// IsSOP reports whether the envelope carries a blueprint.
func (e Envelope) IsSOP() bool {
	return e.Type == EnvelopeTypeSOP && e.Blueprint != nil
}
