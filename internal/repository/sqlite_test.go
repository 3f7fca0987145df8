package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreBlueprints(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"sop_a", "sop_b", "sop_c"} {
		err := store.CreateBlueprint(ctx, &domain.BlueprintRecord{
			RecordID:    id,
			Title:       "title " + id,
			ContentJSON: json.RawMessage(`{"title":"` + id + `"}`),
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	got, err := store.GetBlueprint(ctx, "sop_b")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "title sop_b", got.Title)
	assert.JSONEq(t, `{"title":"sop_b"}`, string(got.ContentJSON))
	assert.Empty(t, got.RemoteRecordID)
	assert.True(t, got.CreatedAt.Equal(base.Add(time.Minute)))

	require.NoError(t, store.UpdateBlueprintRemote(ctx, "sop_b", "rec_123"))
	got, err = store.GetBlueprint(ctx, "sop_b")
	require.NoError(t, err)
	assert.Equal(t, "rec_123", got.RemoteRecordID)

	missing, err := store.GetBlueprint(ctx, "sop_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	list, err := store.ListBlueprints(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "sop_c", list[0].RecordID)
	assert.Equal(t, "sop_b", list[1].RecordID)

	all, err := store.ListBlueprints(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteStoreLeads(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	lead := &domain.Lead{
		LeadID:    "lead_1",
		Name:      "王女士",
		Contact:   "13800000000",
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.CreateLead(ctx, lead))
	require.NoError(t, store.UpdateLeadRemote(ctx, "lead_1", "rec_9"))

	var remote string
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT remote_record_id FROM leads WHERE lead_id = ?`, "lead_1").Scan(&remote))
	assert.Equal(t, "rec_9", remote)

	assert.Error(t, store.CreateLead(ctx, lead), "duplicate lead id must fail")
}

func TestSQLiteStoreEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	events := []domain.TurnEvent{
		{EventID: "evt_1", TurnID: "turn_1", Ts: 100, Type: domain.EventTypeTurnReceived, Payload: json.RawMessage(`{"phase":"inquiry"}`)},
		{EventID: "evt_2", TurnID: "turn_1", Ts: 200, Type: domain.EventTypeLLMCallDone},
		{EventID: "evt_3", TurnID: "turn_2", Ts: 150, Type: domain.EventTypeTurnReceived},
		{EventID: "evt_4", TurnID: "turn_1", Ts: 300, Type: domain.EventTypeEnvelopeDegraded},
	}
	for i := range events {
		require.NoError(t, store.CreateEvent(ctx, &events[i]))
	}

	got, err := store.GetEvents(ctx, "turn_1", nil)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "evt_1", got[0].EventID)
	assert.JSONEq(t, `{"phase":"inquiry"}`, string(got[0].Payload))
	assert.Nil(t, got[1].Payload)
	assert.Equal(t, "evt_4", got[2].EventID)

	filtered, err := store.GetEvents(ctx, "turn_1", []string{string(domain.EventTypeLLMCallDone)})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "evt_2", filtered[0].EventID)

	none, err := store.GetEvents(ctx, "turn_missing", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNewSQLiteStoreIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "twice.db")

	first, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.CreateBlueprint(ctx, &domain.BlueprintRecord{
		RecordID: "sop_keep", Title: "t", ContentJSON: json.RawMessage(`{}`), CreatedAt: time.Now(),
	}))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.GetBlueprint(ctx, "sop_keep")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestNewSQLiteStoreInMemory(t *testing.T) {
	store, err := NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	defer store.Close()

	list, err := store.ListBlueprints(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}
