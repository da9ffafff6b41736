package assembly

import (
	"fulfillment-backend/internal/apperror"

	"github.com/gofiber/fiber/v2"
)

// GET /api/batches/:id/assembly-line
func LineHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.BadRequest("invalid batch id")
		}
		line, err := s.Line(c.UserContext(), uint(id))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"batch_id": id, "items": line, "total": len(line)})
	}
}

// GET /api/batches/:id/assembly-line/:lineItemId/position
func PositionHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.BadRequest("invalid batch id")
		}
		lineItemID, err := c.ParamsInt("lineItemId")
		if err != nil || lineItemID <= 0 {
			return apperror.BadRequest("invalid line item id")
		}
		nav, err := s.Position(c.UserContext(), uint(id), uint(lineItemID))
		if err != nil {
			return err
		}
		return c.JSON(nav)
	}
}
