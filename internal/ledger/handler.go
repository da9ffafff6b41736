package ledger

import (
	"fmt"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/auth"
	"fulfillment-backend/internal/models"
	"fulfillment-backend/internal/validate"

	"github.com/gofiber/fiber/v2"
)

// Reasons produced by the status machine are not accepted here.
type RecordRequest struct {
	TargetKind      models.TargetKind      `json:"target_kind" validate:"required,oneof=blank product"`
	TargetID        uint                   `json:"target_id" validate:"required"`
	Reason          models.InventoryReason `json:"reason" validate:"required,oneof=manual_adjustment restock return stock_take correction defected_item misprint"`
	ChangeAmount    int                    `json:"change_amount"`
	CountedQuantity *int                   `json:"counted_quantity" validate:"omitempty,gte=0"`
	LineItemID      *uint                  `json:"line_item_id"`
	BatchID         *uint                  `json:"batch_id"`
	Notes           string                 `json:"notes" validate:"max=255"`
}

type TransactionResponse struct {
	ID               uint                   `json:"id"`
	Target           models.InventoryTarget `json:"target"`
	ChangeAmount     int                    `json:"change_amount"`
	PreviousQuantity int                    `json:"previous_quantity"`
	NewQuantity      int                    `json:"new_quantity"`
	Reason           models.InventoryReason `json:"reason"`
	LineItemID       *uint                  `json:"line_item_id"`
	BatchID          *uint                  `json:"batch_id"`
	LogID            *uint                  `json:"log_id"`
	ProfileID        uint                   `json:"profile_id"`
	Notes            string                 `json:"notes"`
	CreatedAt        string                 `json:"created_at"`
}

func ToResponse(t models.InventoryTransaction) TransactionResponse {
	return TransactionResponse{
		ID:               t.ID,
		Target:           t.Target(),
		ChangeAmount:     t.ChangeAmount,
		PreviousQuantity: t.PreviousQuantity,
		NewQuantity:      t.NewQuantity,
		Reason:           t.Reason,
		LineItemID:       t.LineItemID,
		BatchID:          t.BatchID,
		LogID:            t.LogID,
		ProfileID:        t.ProfileID,
		Notes:            t.Notes,
		CreatedAt:        t.CreatedAt.Format("2006-01-02 15:04:05"),
	}
}

func ToResponses(txs []models.InventoryTransaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, ToResponse(t))
	}
	return out
}

// POST /api/inventory/transactions
func RecordHandler(l *Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RecordRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		target := models.InventoryTarget{Kind: body.TargetKind, ID: body.TargetID}
		rc := Context{
			LineItemID: body.LineItemID,
			BatchID:    body.BatchID,
			ProfileID:  actor.ID,
			UserName:   actor.Name,
			Notes:      body.Notes,
		}

		var tx *models.InventoryTransaction
		if body.Reason == models.ReasonStockTake {
			if body.CountedQuantity == nil {
				return apperror.Validation("validation failed", map[string]string{
					"counted_quantity": "counted_quantity is required for stock_take",
				})
			}
			tx, err = l.RecordStockTake(c.UserContext(), target, *body.CountedQuantity, rc)
		} else {
			if body.ChangeAmount == 0 {
				return apperror.Validation("validation failed", map[string]string{
					"change_amount": "change_amount must not be 0",
				})
			}
			rc.Narrative = fmt.Sprintf("%s %+d on %s", body.Reason, body.ChangeAmount, target)
			tx, err = l.RecordChange(c.UserContext(), target, body.ChangeAmount, body.Reason, rc)
		}
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(ToResponse(*tx))
	}
}

// GET /api/inventory/transactions?target_kind=blank&target_id=3&batch_id=1&line_item_id=9
func ListHandler(l *Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var f Filter

		kind := models.TargetKind(c.Query("target_kind"))
		if kind != "" {
			if kind != models.TargetBlank && kind != models.TargetProduct {
				return apperror.BadRequest("target_kind must be blank or product")
			}
			id, err := queryUint(c, "target_id")
			if err != nil || id == nil {
				return apperror.BadRequest("target_id is required with target_kind")
			}
			f.Target = &models.InventoryTarget{Kind: kind, ID: *id}
		}

		var err error
		if f.BatchID, err = queryUint(c, "batch_id"); err != nil {
			return err
		}
		if f.LineItemID, err = queryUint(c, "line_item_id"); err != nil {
			return err
		}
		f.Limit = c.QueryInt("limit", 500)

		txs, err := l.List(c.UserContext(), f)
		if err != nil {
			return apperror.Internal("could not list inventory transactions", err)
		}
		return c.JSON(ToResponses(txs))
	}
}

func queryUint(c *fiber.Ctx, key string) (*uint, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	var v uint
	if _, err := fmt.Sscan(raw, &v); err != nil || v == 0 {
		return nil, apperror.BadRequest(key + " is invalid")
	}
	return &v, nil
}
