package catalog

import (
	"fmt"
	"strings"
	"time"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/auth"
	"fulfillment-backend/internal/models"
	"fulfillment-backend/internal/validate"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type LineItemRequest struct {
	Name                string `json:"name" validate:"required,max=255"`
	ProductVariantID    *uint  `json:"product_variant_id"`
	Quantity            int    `json:"quantity" validate:"gte=0"`
	RequiresShipping    *bool  `json:"requires_shipping"`
	UnfulfilledQuantity *int   `json:"unfulfilled_quantity" validate:"omitempty,gte=0"`
}

type CreateOrderRequest struct {
	OrderNumber  string            `json:"order_number" validate:"required,max=50"`
	CustomerName string            `json:"customer_name" validate:"max=200"`
	LineItems    []LineItemRequest `json:"line_items" validate:"dive"`
}

// Status is not editable here; it moves through the line item endpoints.
type UpdateLineItemRequest struct {
	ProductVariantID    *uint `json:"product_variant_id"`
	Quantity            *int  `json:"quantity" validate:"omitempty,gte=0"`
	MarkedAsPackaged    *bool `json:"marked_as_packaged"`
	RequiresShipping    *bool `json:"requires_shipping"`
	UnfulfilledQuantity *int  `json:"unfulfilled_quantity" validate:"omitempty,gte=0"`
}

type HoldRequest struct {
	Cause models.HoldCause `json:"cause" validate:"required,oneof=stock_shortage address_issue customer_request other"`
	Notes string           `json:"notes" validate:"max=255"`
}

// POST /api/orders
func CreateOrderHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateOrderRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		order := models.Order{
			OrderNumber:  strings.TrimSpace(body.OrderNumber),
			CustomerName: strings.TrimSpace(body.CustomerName),
		}
		for _, li := range body.LineItems {
			order.LineItems = append(order.LineItems, newLineItem(li))
		}

		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			for _, li := range order.LineItems {
				if err := checkProductVariant(tx, li.ProductVariantID); err != nil {
					return err
				}
			}
			if err := tx.Create(&order).Error; err != nil {
				return err
			}
			return writeLog(tx, actor, "order", order.ID, models.AuditActionCreate,
				fmt.Sprintf("order %s created with %d line items", order.OrderNumber, len(order.LineItems)), nil, order)
		})
		if err != nil {
			return saveError("order", err)
		}
		return c.Status(fiber.StatusCreated).JSON(order)
	}
}

// GET /api/orders/:id
func GetOrderHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var order models.Order
		q := db.WithContext(c.UserContext()).
			Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("line_items.id ASC") }).
			Preload("LineItems.ProductVariant.Product").
			Preload("Holds", func(db *gorm.DB) *gorm.DB { return db.Order("order_holds.id ASC") })
		if err := first(q, &order, id, "order"); err != nil {
			return err
		}
		return c.JSON(order)
	}
}

// GET /api/orders?q=
func ListOrdersHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := db.WithContext(c.UserContext()).Model(&models.Order{}).
			Preload("Holds", "resolved_at IS NULL").
			Order("orders.id DESC")
		if term := strings.TrimSpace(c.Query("q")); term != "" {
			like := "%" + term + "%"
			q = q.Where("order_number LIKE ? OR customer_name LIKE ?", like, like)
		}
		limit := c.QueryInt("limit", 100)
		if limit <= 0 || limit > 500 {
			limit = 100
		}
		var orders []models.Order
		if err := q.Limit(limit).Find(&orders).Error; err != nil {
			return apperror.Internal("could not list orders", err)
		}
		return c.JSON(orders)
	}
}

// POST /api/orders/:id/line-items
func AddLineItemHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		orderID, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var body LineItemRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		var order models.Order
		if err := first(db.WithContext(c.UserContext()), &order, orderID, "order"); err != nil {
			return err
		}
		li := newLineItem(body)
		li.OrderID = order.ID

		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := checkProductVariant(tx, li.ProductVariantID); err != nil {
				return err
			}
			if err := tx.Create(&li).Error; err != nil {
				return err
			}
			return writeLog(tx, actor, "line_item", li.ID, models.AuditActionCreate,
				fmt.Sprintf("%s added to order %s", li.Name, order.OrderNumber), nil, li)
		})
		if err != nil {
			return saveError("line item", err)
		}
		return c.Status(fiber.StatusCreated).JSON(li)
	}
}

// PUT /api/line-items/:id
func UpdateLineItemHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateLineItemRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		var li models.LineItem
		if err := first(db.WithContext(c.UserContext()), &li, id, "line item"); err != nil {
			return err
		}
		before := li

		updates := map[string]any{}
		if body.ProductVariantID != nil {
			updates["product_variant_id"] = *body.ProductVariantID
		}
		if body.Quantity != nil {
			updates["quantity"] = *body.Quantity
		}
		if body.MarkedAsPackaged != nil {
			updates["marked_as_packaged"] = *body.MarkedAsPackaged
		}
		if body.RequiresShipping != nil {
			updates["requires_shipping"] = *body.RequiresShipping
		}
		if body.UnfulfilledQuantity != nil {
			updates["unfulfilled_quantity"] = *body.UnfulfilledQuantity
		}
		if len(updates) == 0 {
			return apperror.BadRequest("nothing to update")
		}

		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := checkProductVariant(tx, body.ProductVariantID); err != nil {
				return err
			}
			if err := tx.Model(&li).Updates(updates).Error; err != nil {
				return err
			}
			return writeLog(tx, actor, "line_item", li.ID, models.AuditActionUpdate, li.Name+" updated", before, updates)
		})
		if err != nil {
			return saveError("line item", err)
		}
		if err := first(db.WithContext(c.UserContext()), &li, id, "line item"); err != nil {
			return err
		}
		return c.JSON(li)
	}
}

// POST /api/orders/:id/holds
func PlaceHoldHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		orderID, err := paramID(c, "id")
		if err != nil {
			return err
		}
		var body HoldRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		var order models.Order
		if err := first(db.WithContext(c.UserContext()), &order, orderID, "order"); err != nil {
			return err
		}
		hold := models.OrderHold{OrderID: order.ID, Cause: body.Cause, Notes: strings.TrimSpace(body.Notes)}
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&hold).Error; err != nil {
				return err
			}
			return writeLog(tx, actor, "order", order.ID, models.AuditActionStatusChange,
				fmt.Sprintf("order %s held: %s", order.OrderNumber, hold.Cause), nil, hold)
		})
		if err != nil {
			return saveError("hold", err)
		}
		return c.Status(fiber.StatusCreated).JSON(hold)
	}
}

// POST /api/holds/:id/resolve
func ResolveHoldHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id")
		if err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}

		var hold models.OrderHold
		if err := first(db.WithContext(c.UserContext()), &hold, id, "hold"); err != nil {
			return err
		}
		if hold.ResolvedAt != nil {
			return c.JSON(hold)
		}

		now := time.Now()
		err = db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&hold).Update("resolved_at", now).Error; err != nil {
				return err
			}
			return writeLog(tx, actor, "order", hold.OrderID, models.AuditActionStatusChange,
				fmt.Sprintf("hold %d resolved", hold.ID), nil, map[string]time.Time{"resolved_at": now})
		})
		if err != nil {
			return saveError("hold", err)
		}
		hold.ResolvedAt = &now
		return c.JSON(hold)
	}
}

func newLineItem(r LineItemRequest) models.LineItem {
	li := models.LineItem{
		Name:                strings.TrimSpace(r.Name),
		ProductVariantID:    r.ProductVariantID,
		Quantity:            r.Quantity,
		Status:              models.StatusNotPrinted,
		RequiresShipping:    true,
		UnfulfilledQuantity: r.Quantity,
	}
	if r.RequiresShipping != nil {
		li.RequiresShipping = *r.RequiresShipping
	}
	if r.UnfulfilledQuantity != nil {
		li.UnfulfilledQuantity = *r.UnfulfilledQuantity
	}
	return li
}

func checkProductVariant(db *gorm.DB, id *uint) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := db.Model(&models.ProductVariant{}).Where("id = ?", *id).Count(&count).Error; err != nil {
		return apperror.Internal("could not check product variant", err)
	}
	if count == 0 {
		return apperror.NotFound("product variant")
	}
	return nil
}
