package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiaot623/gogo/sopdesk/internal/domain"
)

// SaveLead stores contact details collected in the closing phase.
func (s *Service) SaveLead(ctx context.Context, lead domain.Lead) (*domain.Lead, error) {
	lead.Name = strings.TrimSpace(lead.Name)
	lead.Contact = strings.TrimSpace(lead.Contact)
	lead.Note = strings.TrimSpace(lead.Note)
	if lead.Name == "" || lead.Contact == "" {
		return nil, fmt.Errorf("%w: name and contact are required", domain.ErrInvalidRequest)
	}
	if lead.BlueprintID != "" {
		if _, err := s.GetBlueprint(ctx, lead.BlueprintID); err != nil {
			return nil, err
		}
	}

	lead.LeadID = "lead_" + uuid.New().String()[:8]
	lead.CreatedAt = time.Now()
	lead.RemoteRecordID = ""
	if err := s.store.CreateLead(ctx, &lead); err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	if s.bitableClient.Enabled() && s.config.FeishuLeadTableID != "" {
		remoteID, err := s.bitableClient.AddRecord(ctx, s.config.FeishuLeadTableID, map[string]interface{}{
			"name":         lead.Name,
			"contact":      lead.Contact,
			"blueprint_id": lead.BlueprintID,
			"note":         lead.Note,
			"create_time":  lead.CreatedAt.UnixMilli(),
		})
		if err != nil {
			s.logger.Warn("bitable lead sync failed", zap.String("lead_id", lead.LeadID), zap.Error(err))
		} else if err := s.store.UpdateLeadRemote(ctx, lead.LeadID, remoteID); err != nil {
			s.logger.Warn("failed to store bitable lead id", zap.String("lead_id", lead.LeadID), zap.Error(err))
		} else {
			lead.RemoteRecordID = remoteID
		}
	}

	s.logger.Info("lead saved", zap.String("lead_id", lead.LeadID))
	return &lead, nil
}
