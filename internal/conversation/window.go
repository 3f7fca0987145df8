// Package conversation bounds the history forwarded to the completion API.
package conversation

import "github.com/xiaot623/gogo/sopdesk/internal/domain"

// MaxWindowTurns caps the number of history turns sent upstream.
const MaxWindowTurns = 10

// Windowed returns at most the last MaxWindowTurns turns of history.
func Windowed(history []domain.Turn) []domain.Turn {
	return Window(history, MaxWindowTurns)
}

// Window returns the last n turns of history in their original order.
// The result never aliases history. A non-positive n yields an empty window.
func Window(history []domain.Turn, n int) []domain.Turn {
	if n <= 0 || len(history) == 0 {
		return []domain.Turn{}
	}
	start := 0
	if len(history) > n {
		start = len(history) - n
	}
	out := make([]domain.Turn, len(history)-start)
	copy(out, history[start:])
	return out
}
