package audit

import (
	"encoding/json"
	"fmt"

	"fulfillment-backend/internal/models"

	"gorm.io/gorm"
)

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	BatchID     *uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog inserts a narrative row using db, which may be an open
// transaction so the log commits or rolls back with the change it describes.
func WriteLog(db *gorm.DB, opts LogOptions) (*models.AuditLog, error) {
	// jsonb rejects an empty string, "null" is a valid document
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	log := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		BatchID:     opts.BatchID,
		Action:      opts.Action,
		Description: truncate(opts.Description, 255),
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}

	if err := db.Create(&log).Error; err != nil {
		return nil, fmt.Errorf("write audit log: %w", err)
	}
	return &log, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
