package settlement

import (
	"strconv"
	"strings"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/auth"
	"fulfillment-backend/internal/ledger"
	"fulfillment-backend/internal/models"
	"fulfillment-backend/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type StatusRequest struct {
	LineItemID uint                  `json:"line_item_id" validate:"required"`
	Status     models.LineItemStatus `json:"status" validate:"required,oneof=not_printed partially_printed printed in_stock oos_blank skipped ignore"`
	Notes      string                `json:"notes" validate:"max=255"`
}

type AdjustRequest struct {
	TargetKind   models.TargetKind `json:"target_kind" validate:"required,oneof=blank product"`
	TargetID     uint              `json:"target_id" validate:"required"`
	ChangeAmount *int              `json:"change_amount" validate:"omitempty,ne=0"`
	LineItemID   uint              `json:"line_item_id" validate:"required"`
	Notes        string            `json:"notes" validate:"max=255"`
}

type ReverseRequest struct {
	LineItemID uint   `json:"line_item_id" validate:"required"`
	Notes      string `json:"notes" validate:"max=255"`
}

// GET /api/batches/:id/settlement?acknowledged=3,7
func DataHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.BadRequest("invalid batch id")
		}
		acked, err := parseIDs(c.Query("acknowledged"))
		if err != nil {
			return err
		}

		items, err := s.Data(c.UserContext(), uint(id))
		if err != nil {
			return err
		}
		items = Acknowledge(items, acked)
		return c.JSON(fiber.Map{
			"batch_id": id,
			"items":    items,
			"summary":  Summarize(items),
		})
	}
}

// POST /api/batches/:id/settlement/status
func UpdateStatusHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.BadRequest("invalid batch id")
		}
		var body StatusRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		res, err := s.UpdateLineItemStatus(c.UserContext(), uint(id), body.LineItemID, body.Status, body.Notes, actor)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"line_item_id":          body.LineItemID,
			"previous_status":       res.PreviousStatus,
			"status":                res.Status,
			"skipped_line_item_ids": res.Skipped,
			"transactions":          ledger.ToResponses(res.Transactions),
		})
	}
}

// POST /api/batches/:id/settlement/adjust-inventory
func AdjustInventoryHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.BadRequest("invalid batch id")
		}
		var body AdjustRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		target := models.InventoryTarget{Kind: body.TargetKind, ID: body.TargetID}
		tx, err := s.AdjustInventory(c.UserContext(), uint(id), target, body.ChangeAmount, body.LineItemID, body.Notes, actor)
		if err != nil {
			return err
		}
		if tx == nil {
			return c.JSON(fiber.Map{"transaction": nil, "message": "nothing to correct"})
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"transaction": ledger.ToResponse(*tx)})
	}
}

// POST /api/batches/:id/settlement/reverse
func ReverseHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.BadRequest("invalid batch id")
		}
		var body ReverseRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		txs, err := s.Reverse(c.UserContext(), uint(id), body.LineItemID, body.Notes, actor)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"transactions": ledger.ToResponses(txs)})
	}
}

func parseIDs(raw string) ([]uint, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []uint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseUint(part, 10, 64)
		if err != nil || v == 0 {
			return nil, apperror.BadRequest("acknowledged must be a comma separated list of line item ids")
		}
		out = append(out, uint(v))
	}
	return out, nil
}
