package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

func TestEnginePhaseTable(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, "")
	require.NoError(t, err)

	tests := []struct {
		phase    domain.Phase
		envType  domain.EnvelopeType
		degraded bool
		want     Decision
	}{
		{domain.PhaseInquiry, domain.EnvelopeTypeChat, false, Decision{Allow: true, Next: domain.PhaseInquiry}},
		{domain.PhaseInquiry, domain.EnvelopeTypeSOP, false, Decision{Allow: true, Next: domain.PhaseBlueprint}},
		{domain.PhaseBlueprint, domain.EnvelopeTypeChat, false, Decision{Allow: true, Next: domain.PhaseClosing}},
		{domain.PhaseBlueprint, domain.EnvelopeTypeSOP, false, Decision{Allow: false, Next: domain.PhaseBlueprint}},
		{domain.PhaseClosing, domain.EnvelopeTypeChat, false, Decision{Allow: true, Next: domain.PhaseClosing}},
		{domain.PhaseClosing, domain.EnvelopeTypeSOP, false, Decision{Allow: false, Next: domain.PhaseBlueprint}},
		{domain.PhaseInquiry, domain.EnvelopeTypeChat, true, Decision{Allow: true, Next: domain.PhaseInquiry}},
		{domain.PhaseBlueprint, domain.EnvelopeTypeChat, true, Decision{Allow: true, Next: domain.PhaseBlueprint}},
		{domain.PhaseClosing, domain.EnvelopeTypeChat, true, Decision{Allow: true, Next: domain.PhaseClosing}},
	}
	for _, tt := range tests {
		name := string(tt.phase) + "/" + string(tt.envType)
		if tt.degraded {
			name += "/degraded"
		}
		t.Run(name, func(t *testing.T) {
			got, err := engine.Evaluate(ctx, tt.phase, tt.envType, tt.degraded)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEngineUnknownType(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, "")
	require.NoError(t, err)

	_, err = engine.Evaluate(ctx, domain.PhaseInquiry, domain.EnvelopeType("memo"), false)
	assert.Error(t, err)
}

func TestNewEngineRejectsBadPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package broken\n\nallow {")
	assert.Error(t, err)
}
