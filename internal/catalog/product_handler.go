package catalog

import (
	"fmt"
	"strings"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/auth"
	"fulfillment-backend/internal/models"
	"fulfillment-backend/internal/validate"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ProductRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	IsBlackLabel bool   `json:"is_black_label"`
}

type ProductVariantRequest struct {
	Title          string `json:"title" validate:"required,max=200"`
	SKU            string `json:"sku" validate:"max=100"`
	BlankVariantID *uint  `json:"blank_variant_id"`
	IsPremade      bool   `json:"is_premade"`
}

type PrintRequest struct {
	Location         string  `json:"location" validate:"required,max=50"`
	HeatTransferCode *string `json:"heat_transfer_code" validate:"omitempty,max=50"`
	FilePath         string  `json:"file_path" validate:"max=500"`
}

// POST /api/products
func CreateProductHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ProductRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		p := models.Product{Name: strings.TrimSpace(body.Name), IsBlackLabel: body.IsBlackLabel}
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			return writeLog(tx, actor, "product", p.ID, models.AuditActionCreate, "product created: "+p.Name, nil, p)
		})
		if err != nil {
			return saveError("product", err)
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	}
}

// GET /api/products
func ListProductsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var products []models.Product
		err := db.WithContext(c.UserContext()).
			Preload("Prints", func(db *gorm.DB) *gorm.DB { return db.Order("prints.id ASC") }).
			Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("product_variants.id ASC") }).
			Preload("Variants.BlankVariant.Blank").
			Order("name ASC").
			Find(&products).Error
		if err != nil {
			return saveError("products", err)
		}
		return c.JSON(products)
	}
}

// PUT /api/products/:id
func UpdateProductHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var body ProductRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		var p models.Product
		if err := first(db.WithContext(c.UserContext()), &p, id, "product"); err != nil {
			return err
		}
		before := p
		updates := map[string]any{"name": strings.TrimSpace(body.Name), "is_black_label": body.IsBlackLabel}
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&p).Updates(updates).Error; err != nil {
				return err
			}
			return writeLog(tx, actor, "product", p.ID, models.AuditActionUpdate, "product updated: "+p.Name, before, updates)
		})
		if err != nil {
			return saveError("product", err)
		}
		if err := first(db.WithContext(c.UserContext()), &p, id, "product"); err != nil {
			return err
		}
		return c.JSON(p)
	}
}

// POST /api/products/:id/variants
func CreateProductVariantHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		productID, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var body ProductVariantRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		var p models.Product
		if err := first(db.WithContext(c.UserContext()), &p, productID, "product"); err != nil {
			return err
		}
		if err := checkBlankVariant(db.WithContext(c.UserContext()), body.BlankVariantID); err != nil {
			return err
		}

		v := models.ProductVariant{
			ProductID:      p.ID,
			Title:          strings.TrimSpace(body.Title),
			SKU:            strings.TrimSpace(body.SKU),
			BlankVariantID: body.BlankVariantID,
			IsPremade:      body.IsPremade,
		}
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&v).Error; err != nil {
				return err
			}
			return writeLog(tx, actor, "product_variant", v.ID, models.AuditActionCreate,
				fmt.Sprintf("variant created: %s / %s", p.Name, v.Title), nil, v)
		})
		if err != nil {
			return saveError("product variant", err)
		}
		return c.Status(fiber.StatusCreated).JSON(v)
	}
}

// PUT /api/product-variants/:id
// A null blank_variant_id removes the blank sync.
func UpdateProductVariantHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var body ProductVariantRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		var v models.ProductVariant
		if err := first(db.WithContext(c.UserContext()), &v, id, "product variant"); err != nil {
			return err
		}
		if err := checkBlankVariant(db.WithContext(c.UserContext()), body.BlankVariantID); err != nil {
			return err
		}

		before := v
		updates := map[string]any{
			"title":            strings.TrimSpace(body.Title),
			"sku":              strings.TrimSpace(body.SKU),
			"blank_variant_id": body.BlankVariantID,
			"is_premade":       body.IsPremade,
		}
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&v).Updates(updates).Error; err != nil {
				return err
			}
			return writeLog(tx, actor, "product_variant", v.ID, models.AuditActionUpdate, "variant updated: "+v.Title, before, updates)
		})
		if err != nil {
			return saveError("product variant", err)
		}
		if err := first(db.WithContext(c.UserContext()), &v, id, "product variant"); err != nil {
			return err
		}
		return c.JSON(v)
	}
}

// POST /api/products/:id/prints
func CreatePrintHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		productID, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var body PrintRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		var p models.Product
		if err := first(db.WithContext(c.UserContext()), &p, productID, "product"); err != nil {
			return err
		}

		pr := models.Print{
			ProductID:        p.ID,
			Location:         strings.ToLower(strings.TrimSpace(body.Location)),
			HeatTransferCode: body.HeatTransferCode,
			FilePath:         strings.TrimSpace(body.FilePath),
		}
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&pr).Error; err != nil {
				return err
			}
			return writeLog(tx, actor, "print", pr.ID, models.AuditActionCreate,
				fmt.Sprintf("%s print added to %s", pr.Location, p.Name), nil, pr)
		})
		if err != nil {
			return saveError("print", err)
		}
		return c.Status(fiber.StatusCreated).JSON(pr)
	}
}

// DELETE /api/prints/:id
func DeletePrintHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		var pr models.Print
		if err := first(db.WithContext(c.UserContext()), &pr, id, "print"); err != nil {
			return err
		}
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&pr).Error; err != nil {
				return err
			}
			return writeLog(tx, actor, "print", pr.ID, models.AuditActionDelete, pr.Location+" print removed", pr, nil)
		})
		if err != nil {
			return saveError("print", err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func checkBlankVariant(db *gorm.DB, id *uint) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := db.Model(&models.BlankVariant{}).Where("id = ?", *id).Count(&count).Error; err != nil {
		return apperror.Internal("could not check blank variant", err)
	}
	if count == 0 {
		return apperror.NotFound("blank variant")
	}
	return nil
}
