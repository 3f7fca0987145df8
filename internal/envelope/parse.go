// Package envelope turns raw completion text into a validated reply envelope.
package envelope

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

// Outcome reports how a completion was interpreted.
type Outcome int

const (
	// Parsed means the completion was a valid envelope.
	Parsed Outcome = iota
	// Degraded means the completion was replaced by a chat envelope.
	Degraded
)

func (o Outcome) String() string {
	if o == Parsed {
		return "parsed"
	}
	return "degraded"
}

// Result is the interpretation of one completion.
type Result struct {
	Outcome  Outcome
	Envelope domain.Envelope
	// Reason is set when Outcome is Degraded.
	Reason string
}

var (
	envelopeValidator  = sync.OnceValues(NewValidator)
	blueprintValidator = sync.OnceValues(NewBlueprintValidator)
)

// CheckBlueprint validates a blueprint supplied outside a completion, such as
// one posted for archiving. The diagram is repaired in place.
func CheckBlueprint(bp *domain.Blueprint) error {
	v, err := blueprintValidator()
	if err != nil {
		return err
	}
	doc, err := json.Marshal(bp)
	if err != nil {
		return fmt.Errorf("failed to marshal blueprint: %w", err)
	}
	if err := v.Validate(doc); err != nil {
		return err
	}
	diagram, err := RepairDiagram(bp.Diagram)
	if err != nil {
		return fmt.Errorf("invalid diagram: %w", err)
	}
	bp.Diagram = diagram
	return nil
}

// Parse interprets raw completion text. It never fails: anything that is not
// a well-formed envelope becomes a chat envelope carrying displayable text.
func Parse(raw string) Result {
	if strings.TrimSpace(raw) == "" {
		return degrade(domain.FallbackMessage, "empty completion")
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return degrade(raw, "no JSON object in completion")
	}
	doc := []byte(raw[start : end+1])

	var env domain.Envelope
	if err := json.Unmarshal(doc, &env); err != nil {
		return degrade(raw, fmt.Sprintf("invalid JSON: %v", err))
	}

	v, err := envelopeValidator()
	if err != nil {
		return degrade(fallbackText(env.Message, raw), err.Error())
	}
	if err := v.Validate(doc); err != nil {
		return degrade(fallbackText(env.Message, raw), err.Error())
	}

	switch env.Type {
	case domain.EnvelopeTypeChat:
		env.Blueprint = nil
		return Result{Outcome: Parsed, Envelope: env}
	case domain.EnvelopeTypeSOP:
		if env.Blueprint == nil {
			return degrade(env.Message, "sop envelope without sop_data")
		}
		diagram, err := RepairDiagram(env.Blueprint.Diagram)
		if err != nil {
			return degrade(env.Message, fmt.Sprintf("invalid diagram: %v", err))
		}
		env.Blueprint.Diagram = diagram
		return Result{Outcome: Parsed, Envelope: env}
	default:
		return degrade(fallbackText(env.Message, raw), fmt.Sprintf("unknown envelope type %q", env.Type))
	}
}

func degrade(message, reason string) Result {
	return Result{
		Outcome:  Degraded,
		Envelope: domain.Chat(message),
		Reason:   reason,
	}
}

func fallbackText(message, raw string) string {
	if strings.TrimSpace(message) != "" {
		return message
	}
	return raw
}
