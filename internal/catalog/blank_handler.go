package catalog

import (
	"fmt"
	"strings"

	"fulfillment-backend/internal/auth"
	"fulfillment-backend/internal/models"
	"fulfillment-backend/internal/validate"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateBlankRequest struct {
	Company     string `json:"company" validate:"required,max=100"`
	GarmentType string `json:"garment_type" validate:"required,max=100"`
}

type BlankVariantRequest struct {
	Color     string  `json:"color" validate:"required,max=50"`
	Size      string  `json:"size" validate:"required,max=10"`
	WeightOz  float64 `json:"weight_oz" validate:"gte=0"`
	VolumeIn3 float64 `json:"volume_in3" validate:"gte=0"`
}

// POST /api/blanks
func CreateBlankHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBlankRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		blank := models.Blank{Company: strings.TrimSpace(body.Company), GarmentType: strings.TrimSpace(body.GarmentType)}
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&blank).Error; err != nil {
				return err
			}
			return writeLog(tx, actor, "blank", blank.ID, models.AuditActionCreate,
				fmt.Sprintf("blank created: %s %s", blank.Company, blank.GarmentType), nil, blank)
		})
		if err != nil {
			return saveError("blank", err)
		}
		return c.Status(fiber.StatusCreated).JSON(blank)
	}
}

// GET /api/blanks
func ListBlanksHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var blanks []models.Blank
		err := db.WithContext(c.UserContext()).
			Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("blank_variants.id ASC") }).
			Order("company ASC, garment_type ASC").
			Find(&blanks).Error
		if err != nil {
			return saveError("blanks", err)
		}
		return c.JSON(blanks)
	}
}

// POST /api/blanks/:id/variants
// New variants start at zero on hand; stock arrives through a restock entry.
func CreateBlankVariantHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		blankID, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var body BlankVariantRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		var blank models.Blank
		if err := first(db.WithContext(c.UserContext()), &blank, blankID, "blank"); err != nil {
			return err
		}

		v := models.BlankVariant{
			BlankID:   blank.ID,
			Color:     strings.ToLower(strings.TrimSpace(body.Color)),
			Size:      strings.ToLower(strings.TrimSpace(body.Size)),
			WeightOz:  body.WeightOz,
			VolumeIn3: body.VolumeIn3,
		}
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&v).Error; err != nil {
				return err
			}
			return writeLog(tx, actor, "blank_variant", v.ID, models.AuditActionCreate,
				fmt.Sprintf("blank variant created: %s %s / %s", blank.GarmentType, v.Color, v.Size), nil, v)
		})
		if err != nil {
			return saveError("blank variant", err)
		}
		return c.Status(fiber.StatusCreated).JSON(v)
	}
}

// PUT /api/blank-variants/:id
func UpdateBlankVariantHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var body BlankVariantRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		var v models.BlankVariant
		if err := first(db.WithContext(c.UserContext()), &v, id, "blank variant"); err != nil {
			return err
		}
		before := v

		updates := map[string]any{
			"color":      strings.ToLower(strings.TrimSpace(body.Color)),
			"size":       strings.ToLower(strings.TrimSpace(body.Size)),
			"weight_oz":  body.WeightOz,
			"volume_in3": body.VolumeIn3,
		}
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&v).Updates(updates).Error; err != nil {
				return err
			}
			return writeLog(tx, actor, "blank_variant", v.ID, models.AuditActionUpdate, "blank variant updated", before, updates)
		})
		if err != nil {
			return saveError("blank variant", err)
		}
		if err := first(db.WithContext(c.UserContext()), &v, id, "blank variant"); err != nil {
			return err
		}
		return c.JSON(v)
	}
}
