package stock

import (
	"bytes"
	"fmt"
	"time"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// GET /api/batches/:id/stock-requirements
func RequirementsHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.BadRequest("invalid batch id")
		}
		req, err := s.Requirements(c.UserContext(), uint(id))
		if err != nil {
			return err
		}
		return c.JSON(req)
	}
}

// GET /api/batches/:id/blank-stock
func BlankStockHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.BadRequest("invalid batch id")
		}
		req, err := s.Requirements(c.UserContext(), uint(id))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"batch_id":        req.BatchID,
			"items":           req.Blanks,
			"shortages":       len(req.BlankShortages()),
			"filtered_items":  req.FilteredItems,
			"malformed_items": req.MalformedItems,
			"held_items":      req.HeldItems,
		})
	}
}

// GET /api/batches/:id/premade-stock
func PremadeStockHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.BadRequest("invalid batch id")
		}
		req, err := s.Requirements(c.UserContext(), uint(id))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"batch_id":        req.BatchID,
			"items":           req.Premade,
			"shortages":       len(req.PremadeShortages()),
			"filtered_items":  req.FilteredItems,
			"malformed_items": req.MalformedItems,
			"held_items":      req.HeldItems,
		})
	}
}

// POST /api/batches/:id/blank-stock/verify
func VerifyBlankHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.BadRequest("invalid batch id")
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}
		b, err := s.VerifyBlank(c.UserContext(), uint(id), actor)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"batch_id": b.ID, "blank_stock_verified_at": b.BlankStockVerifiedAt})
	}
}

// POST /api/batches/:id/premade-stock/verify
func VerifyPremadeHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.BadRequest("invalid batch id")
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}
		b, err := s.VerifyPremade(c.UserContext(), uint(id), actor)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"batch_id": b.ID, "premade_stock_verified_at": b.PremadeStockVerifiedAt})
	}
}

// GET /api/batches/:id/picking-list.xlsx
func PickingListHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.BadRequest("invalid batch id")
		}
		req, err := s.Requirements(c.UserContext(), uint(id))
		if err != nil {
			return err
		}

		var buf bytes.Buffer
		if err := WritePickingList(&buf, req); err != nil {
			return apperror.Internal("could not build picking list", err)
		}

		name := fmt.Sprintf("picking_list_batch_%d_%s.xlsx", id, time.Now().Format("20060102_150405"))
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
		return c.Send(buf.Bytes())
	}
}
