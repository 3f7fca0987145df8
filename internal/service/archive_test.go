package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/sopdesk/internal/adapter/bitable"
	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

func validBlueprint() domain.Blueprint {
	var env domain.Envelope
	if err := json.Unmarshal([]byte(sopReply("x")), &env); err != nil {
		panic(err)
	}
	return *env.Blueprint
}

func newFeishu(t *testing.T, failRecords bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/open-apis/auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"tenant_access_token":"t-1","expire":7200}`)
	})
	mux.HandleFunc("/open-apis/bitable/v1/apps/app/tables/", func(w http.ResponseWriter, r *http.Request) {
		if failRecords {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"code":0,"data":{"record":{"record_id":"rec_remote"}}}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestArchiveBlueprintLocalOnly(t *testing.T) {
	svc := newTestService(t, replyText(""), testConfig(), nil)

	record, err := svc.ArchiveBlueprint(context.Background(), validBlueprint())
	require.NoError(t, err)
	assert.Regexp(t, `^sop_`, record.RecordID)
	assert.Empty(t, record.RemoteRecordID)

	got, err := svc.GetBlueprint(context.Background(), record.RecordID)
	require.NoError(t, err)
	var bp domain.Blueprint
	require.NoError(t, json.Unmarshal(got.ContentJSON, &bp))
	assert.Equal(t, validBlueprint(), bp)
}

func TestArchiveBlueprintSyncsBitable(t *testing.T) {
	server := newFeishu(t, false)
	cfg := testConfig()
	cfg.FeishuBlueprintTableID = "tbl_sop"
	bt := bitable.NewClient(server.URL, "cli", "secret", "app", time.Second)
	svc := newTestService(t, replyText(""), cfg, bt)

	record, err := svc.ArchiveBlueprint(context.Background(), validBlueprint())
	require.NoError(t, err)
	assert.Equal(t, "rec_remote", record.RemoteRecordID)

	got, err := svc.GetBlueprint(context.Background(), record.RecordID)
	require.NoError(t, err)
	assert.Equal(t, "rec_remote", got.RemoteRecordID)
}

func TestArchiveBlueprintRemoteFailureKeepsLocal(t *testing.T) {
	server := newFeishu(t, true)
	cfg := testConfig()
	cfg.FeishuBlueprintTableID = "tbl_sop"
	bt := bitable.NewClient(server.URL, "cli", "secret", "app", time.Second)
	svc := newTestService(t, replyText(""), cfg, bt)

	record, err := svc.ArchiveBlueprint(context.Background(), validBlueprint())
	require.NoError(t, err)
	assert.Empty(t, record.RemoteRecordID)

	_, err = svc.GetBlueprint(context.Background(), record.RecordID)
	assert.NoError(t, err)
}

func TestArchiveBlueprintRejectsInvalid(t *testing.T) {
	svc := newTestService(t, replyText(""), testConfig(), nil)

	bp := validBlueprint()
	bp.Diagnosis = []domain.Finding{{Category: "risk", Description: ""}}
	_, err := svc.ArchiveBlueprint(context.Background(), bp)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	bp = validBlueprint()
	bp.Diagram = "graph TD\n开始 --> B"
	_, err = svc.ArchiveBlueprint(context.Background(), bp)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestGetAndListBlueprints(t *testing.T) {
	svc := newTestService(t, replyText(""), testConfig(), nil)
	ctx := context.Background()

	_, err := svc.GetBlueprint(ctx, "sop_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for i := 0; i < 3; i++ {
		_, err := svc.ArchiveBlueprint(ctx, validBlueprint())
		require.NoError(t, err)
	}
	list, err := svc.ListBlueprints(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	list, err = svc.ListBlueprints(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSaveLead(t *testing.T) {
	server := newFeishu(t, false)
	cfg := testConfig()
	cfg.FeishuLeadTableID = "tbl_leads"
	bt := bitable.NewClient(server.URL, "cli", "secret", "app", time.Second)
	svc := newTestService(t, replyText(""), cfg, bt)
	ctx := context.Background()

	_, err := svc.SaveLead(ctx, domain.Lead{Name: " ", Contact: "138"})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.SaveLead(ctx, domain.Lead{Name: "王女士", Contact: "138", BlueprintID: "sop_missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	record, err := svc.ArchiveBlueprint(ctx, validBlueprint())
	require.NoError(t, err)

	lead, err := svc.SaveLead(ctx, domain.Lead{Name: " 王女士 ", Contact: "wx_wang", BlueprintID: record.RecordID})
	require.NoError(t, err)
	assert.Regexp(t, `^lead_`, lead.LeadID)
	assert.Equal(t, "王女士", lead.Name)
	assert.Equal(t, "rec_remote", lead.RemoteRecordID)
	assert.False(t, lead.CreatedAt.IsZero())
}

func TestTurnEventsNotFound(t *testing.T) {
	svc := newTestService(t, replyText(""), testConfig(), nil)
	_, err := svc.TurnEvents(context.Background(), "turn_missing", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
