package simulation

import (
	"context"
	"fmt"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/sopdesk/internal/adapter/llm"
	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

// Consultant runs dialogue turns. *sopclient.Client satisfies it.
type Consultant interface {
	Generate(ctx context.Context, req domain.TurnRequest) (*domain.TurnResponse, error)
}

// StopReason explains why a conversation ended.
type StopReason string

const (
	StopBlueprint       StopReason = "blueprint"
	StopMaxTurns        StopReason = "max_turns"
	StopScriptExhausted StopReason = "script_exhausted"
	StopError           StopReason = "error"
)

// Outcome is the result of one scenario.
type Outcome struct {
	Scenario   string
	Turns      int
	Stop       StopReason
	Phase      domain.Phase
	Blueprint  *domain.Blueprint
	ArchiveID  string
	Transcript []domain.Turn
	Err        error
}

// Completed reports whether the consultant produced a blueprint.
func (o Outcome) Completed() bool {
	return o.Stop == StopBlueprint
}

// TurnObserver is called after every consultant reply. It may be called
// from several goroutines at once.
type TurnObserver func(scenario string, turn int, message string, resp *domain.TurnResponse)

// Options configures a Runner.
type Options struct {
	// PersonaModel is the model name sent to the persona client.
	PersonaModel string
	Concurrency  int
	OnTurn       TurnObserver
}

// Runner plays scenarios against a consultant.
type Runner struct {
	consultant Consultant
	persona    llm.LLMClient
	opts       Options
	logger     *zap.Logger
}

// NewRunner creates a runner. persona may be nil when every scenario is scripted.
func NewRunner(consultant Consultant, persona llm.LLMClient, opts Options, logger *zap.Logger) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		consultant: consultant,
		persona:    persona,
		opts:       opts,
		logger:     logger,
	}
}

// Run plays all scenarios with bounded concurrency. Outcomes are returned in
// scenario order; per-scenario failures are reported in Outcome.Err.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) ([]Outcome, error) {
	for _, sc := range scenarios {
		if !sc.Scripted() && r.persona == nil {
			return nil, fmt.Errorf("scenario %q needs a persona model", sc.Name)
		}
	}

	outcomes := make([]Outcome, len(scenarios))
	p := pool.New().WithMaxGoroutines(r.opts.Concurrency).WithContext(ctx)
	for i, sc := range scenarios {
		p.Go(func(ctx context.Context) error {
			outcomes[i] = r.RunScenario(ctx, sc)
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, ctx.Err()
}

// RunScenario plays one conversation until a blueprint arrives, the turn
// budget is spent or the script runs out.
func (r *Runner) RunScenario(ctx context.Context, sc Scenario) Outcome {
	out := Outcome{Scenario: sc.Name, Stop: StopMaxTurns}
	maxTurns := sc.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	var history []domain.Turn
	var phase domain.Phase
	message := sc.Opening

	for turn := 1; turn <= maxTurns; turn++ {
		resp, err := r.consultant.Generate(ctx, domain.TurnRequest{
			Message: message,
			History: history,
			Phase:   string(phase),
		})
		if err != nil {
			out.Stop = StopError
			out.Err = fmt.Errorf("turn %d: %w", turn, err)
			break
		}

		out.Turns = turn
		phase = resp.Phase
		out.Phase = resp.Phase
		history = append(history,
			domain.Turn{Role: domain.RoleUser, Content: message},
			domain.Turn{Role: domain.RoleAssistant, Content: resp.Message},
		)
		if r.opts.OnTurn != nil {
			r.opts.OnTurn(sc.Name, turn, message, resp)
		}

		if resp.Type == domain.EnvelopeTypeSOP && resp.Blueprint != nil {
			out.Stop = StopBlueprint
			out.Blueprint = resp.Blueprint
			out.ArchiveID = resp.ArchiveID
			break
		}
		if turn == maxTurns {
			break
		}

		next, ok, err := r.nextReply(ctx, sc, history, turn)
		if err != nil {
			out.Stop = StopError
			out.Err = fmt.Errorf("persona turn %d: %w", turn, err)
			break
		}
		if !ok {
			out.Stop = StopScriptExhausted
			break
		}
		message = next
	}

	out.Transcript = history
	r.logger.Info("scenario finished",
		zap.String("scenario", sc.Name),
		zap.Int("turns", out.Turns),
		zap.String("stop", string(out.Stop)),
		zap.String("phase", string(out.Phase)),
		zap.Error(out.Err),
	)
	return out
}

func (r *Runner) nextReply(ctx context.Context, sc Scenario, history []domain.Turn, turn int) (string, bool, error) {
	if sc.Scripted() {
		if turn > len(sc.Replies) {
			return "", false, nil
		}
		return sc.Replies[turn-1], true, nil
	}

	resp, err := r.persona.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model:    r.opts.PersonaModel,
		Messages: personaMessages(sc.Persona, history),
	})
	if err != nil {
		return "", false, err
	}
	reply := strings.TrimSpace(resp.Content())
	if reply == "" {
		reply = "..."
	}
	return reply, true, nil
}

// personaMessages flips roles so the persona model speaks as the assistant.
func personaMessages(persona string, history []domain.Turn) []llm.ChatMessage {
	msgs := make([]llm.ChatMessage, 0, len(history)+1)
	msgs = append(msgs, llm.ChatMessage{Role: string(domain.RoleSystem), Content: persona})
	for _, t := range history {
		role := domain.RoleUser
		if t.Role == domain.RoleUser {
			role = domain.RoleAssistant
		}
		msgs = append(msgs, llm.ChatMessage{Role: string(role), Content: t.Content})
	}
	return msgs
}
