package lineitem

import (
	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/auth"
	"fulfillment-backend/internal/ledger"
	"fulfillment-backend/internal/models"
	"fulfillment-backend/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type StatusRequest struct {
	Status  models.LineItemStatus `json:"status" validate:"required,oneof=not_printed partially_printed printed in_stock oos_blank skipped ignore"`
	BatchID *uint                 `json:"batch_id"`
	Notes   string                `json:"notes" validate:"max=255"`
}

type PrintToggleRequest struct {
	Active  *bool `json:"active" validate:"required"`
	BatchID *uint `json:"batch_id"`
}

type OptionsRequest struct {
	BatchID *uint  `json:"batch_id"`
	Notes   string `json:"notes" validate:"max=255"`
}

type ResultResponse struct {
	LineItemID     uint                         `json:"line_item_id"`
	PreviousStatus models.LineItemStatus        `json:"previous_status"`
	Status         models.LineItemStatus        `json:"status"`
	Skipped        []uint                       `json:"skipped_line_item_ids"`
	Transactions   []ledger.TransactionResponse `json:"transactions"`
}

func toResultResponse(r *Result) ResultResponse {
	return ResultResponse{
		LineItemID:     r.Item.ID,
		PreviousStatus: r.PreviousStatus,
		Status:         r.Status,
		Skipped:        r.Skipped,
		Transactions:   ledger.ToResponses(r.Transactions),
	}
}

// POST /api/line-items/:id/status
func TransitionHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.BadRequest("invalid line item id")
		}
		var body StatusRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		res, err := s.Transition(c.UserContext(), uint(id), body.Status, actor, Options{BatchID: body.BatchID, Notes: body.Notes})
		if err != nil {
			return err
		}
		return c.JSON(toResultResponse(res))
	}
}

// POST /api/line-items/:id/prints/:printId
func PrintToggleHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.BadRequest("invalid line item id")
		}
		printID, err := c.ParamsInt("printId")
		if err != nil || printID <= 0 {
			return apperror.BadRequest("invalid print id")
		}
		var body PrintToggleRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		res, err := s.SetPrintActive(c.UserContext(), uint(id), uint(printID), *body.Active, actor, Options{BatchID: body.BatchID})
		if err != nil {
			return err
		}
		return c.JSON(toResultResponse(res))
	}
}

// POST /api/line-items/:id/reset
func ResetHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.BadRequest("invalid line item id")
		}
		var body OptionsRequest
		if len(c.Body()) > 0 {
			if err := validate.Body(c, &body); err != nil {
				return err
			}
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		res, err := s.Reset(c.UserContext(), uint(id), actor, Options{BatchID: body.BatchID, Notes: body.Notes})
		if err != nil {
			return err
		}
		return c.JSON(toResultResponse(res))
	}
}

// POST /api/line-items/:id/reverse-inventory
func ReverseInventoryHandler(s *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.BadRequest("invalid line item id")
		}
		var body OptionsRequest
		if len(c.Body()) > 0 {
			if err := validate.Body(c, &body); err != nil {
				return err
			}
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		txs, err := s.ReverseInventory(c.UserContext(), uint(id), actor, Options{BatchID: body.BatchID, Notes: body.Notes})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"transactions": ledger.ToResponses(txs)})
	}
}
