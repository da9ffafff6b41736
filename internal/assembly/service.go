package assembly

import (
	"context"
	"fmt"

	"fulfillment-backend/internal/batch"
	"fulfillment-backend/internal/models"

	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Line(ctx context.Context, batchID uint) ([]Item, error) {
	return BuildForBatch(s.db.WithContext(ctx), batchID)
}

func (s *Service) Position(ctx context.Context, batchID, lineItemID uint) (Nav, error) {
	line, err := s.Line(ctx, batchID)
	if err != nil {
		return Nav{}, err
	}
	return Position(line, lineItemID)
}

// BuildForBatch loads and builds the line through db.
func BuildForBatch(db *gorm.DB, batchID uint) ([]Item, error) {
	if _, err := batch.Load(db, batchID, false); err != nil {
		return nil, err
	}
	items, err := batch.LineItems(db, batchID)
	if err != nil {
		return nil, err
	}
	logs, err := latestPrintLogs(db, items)
	if err != nil {
		return nil, err
	}
	return Build(items, logs), nil
}

func latestPrintLogs(db *gorm.DB, items []models.LineItem) (map[uint]map[uint]bool, error) {
	out := map[uint]map[uint]bool{}
	if len(items) == 0 {
		return out, nil
	}
	ids := make([]uint, len(items))
	for i, li := range items {
		ids[i] = li.ID
	}

	var logs []models.PrintLog
	if err := db.Where("line_item_id IN ?", ids).Order("id ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("load print logs: %w", err)
	}
	for _, l := range logs {
		if out[l.LineItemID] == nil {
			out[l.LineItemID] = map[uint]bool{}
		}
		out[l.LineItemID][l.PrintID] = l.Active
	}
	return out, nil
}
