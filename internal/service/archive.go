package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
	"github.com/xiaot623/gogo/sopdesk/internal/envelope"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ArchiveBlueprint validates and stores a blueprint, then mirrors it to
// Bitable when configured. A failed remote write leaves the local record.
func (s *Service) ArchiveBlueprint(ctx context.Context, bp domain.Blueprint) (*domain.BlueprintRecord, error) {
	if err := envelope.CheckBlueprint(&bp); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	return s.archive(ctx, "", bp)
}

func (s *Service) archive(ctx context.Context, turnID string, bp domain.Blueprint) (*domain.BlueprintRecord, error) {
	content, err := json.Marshal(bp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal blueprint: %w", err)
	}

	record := &domain.BlueprintRecord{
		RecordID:    "sop_" + uuid.New().String()[:8],
		Title:       bp.Title,
		ContentJSON: content,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateBlueprint(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create blueprint: %w", err)
	}

	if s.bitableClient.Enabled() && s.config.FeishuBlueprintTableID != "" {
		remoteID, err := s.bitableClient.AddRecord(ctx, s.config.FeishuBlueprintTableID, map[string]interface{}{
			"title":        bp.Title,
			"content_json": string(content),
			"create_time":  record.CreatedAt.UnixMilli(),
		})
		if err != nil {
			s.logger.Warn("bitable sync failed", zap.String("record_id", record.RecordID), zap.Error(err))
		} else if err := s.store.UpdateBlueprintRemote(ctx, record.RecordID, remoteID); err != nil {
			s.logger.Warn("failed to store bitable record id", zap.String("record_id", record.RecordID), zap.Error(err))
		} else {
			record.RemoteRecordID = remoteID
		}
	}

	s.logger.Info("blueprint archived",
		zap.String("record_id", record.RecordID),
		zap.String("remote_record_id", record.RemoteRecordID))
	if turnID != "" {
		s.traceEvent(ctx, turnID, domain.EventTypeBlueprintArchived, domain.BlueprintArchivedPayload{
			RecordID:       record.RecordID,
			RemoteRecordID: record.RemoteRecordID,
		})
	}
	return record, nil
}

// GetBlueprint returns an archived blueprint.
func (s *Service) GetBlueprint(ctx context.Context, recordID string) (*domain.BlueprintRecord, error) {
	record, err := s.store.GetBlueprint(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to get blueprint: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: blueprint %s", domain.ErrNotFound, recordID)
	}
	return record, nil
}

// ListBlueprints returns recent blueprints, newest first.
func (s *Service) ListBlueprints(ctx context.Context, limit int) ([]domain.BlueprintRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	records, err := s.store.ListBlueprints(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list blueprints: %w", err)
	}
	return records, nil
}
