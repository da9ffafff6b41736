package printbridge

import (
	"errors"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/models"
	"fulfillment-backend/internal/validate"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Either a print id or a raw path; the print's file path wins.
type FileRequest struct {
	PrintID *uint  `json:"print_id"`
	Path    string `json:"path" validate:"max=500"`
}

func resolvePath(c *fiber.Ctx, db *gorm.DB) (string, error) {
	var body FileRequest
	if err := validate.Body(c, &body); err != nil {
		return "", err
	}
	if body.PrintID != nil {
		var p models.Print
		err := db.WithContext(c.UserContext()).First(&p, *body.PrintID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperror.NotFound("print")
		}
		if err != nil {
			return "", apperror.Internal("could not load print", err)
		}
		if p.FilePath == "" {
			return "", apperror.BadRequest("print has no file path")
		}
		return p.FilePath, nil
	}
	if body.Path == "" {
		return "", apperror.Validation("validation failed", map[string]string{"path": "path or print_id is required"})
	}
	return body.Path, nil
}

// GET /api/print-bridge/status
func StatusHandler(b Bridge) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"connected": b.IsConnected(c.UserContext())})
	}
}

// POST /api/print-bridge/exists
func ExistsHandler(b Bridge, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path, err := resolvePath(c, db)
		if err != nil {
			return err
		}
		exists, err := b.CheckFileExists(c.UserContext(), path)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"path": path, "exists": exists})
	}
}

// POST /api/print-bridge/open
func OpenHandler(b Bridge, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path, err := resolvePath(c, db)
		if err != nil {
			return err
		}
		if err := b.OpenFile(c.UserContext(), path); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"path": path, "opened": true})
	}
}
