// Package catalog maintains blanks, products, prints, orders and holds.
// On-hand quantities are never written here; stock moves through the ledger.
package catalog

import (
	"errors"
	"fmt"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/audit"
	"fulfillment-backend/internal/auth"
	"fulfillment-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func paramID(c *fiber.Ctx, key string) (uint, error) {
	id, err := c.ParamsInt(key)
	if err != nil || id <= 0 {
		return 0, apperror.BadRequest(fmt.Sprintf("invalid %s", key))
	}
	return uint(id), nil
}

// first loads dest by id or returns a 404 naming resource.
func first(db *gorm.DB, dest any, id uint, resource string) error {
	err := db.First(dest, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(resource)
	}
	if err != nil {
		return apperror.Internal("could not load "+resource, err)
	}
	return nil
}

func writeLog(tx *gorm.DB, actor auth.Actor, entity string, id uint, action models.AuditAction, desc string, before, after any) error {
	_, err := audit.WriteLog(tx, audit.LogOptions{
		UserID:      actor.ID,
		UserName:    actor.Name,
		EntityType:  entity,
		EntityID:    id,
		Action:      action,
		Description: desc,
		Before:      before,
		After:       after,
	})
	return err
}

func saveError(resource string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.New(apperror.CodeConflict, resource+" already exists", fiber.StatusConflict)
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.Internal("could not save "+resource, err)
}
