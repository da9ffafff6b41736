package batch

import (
	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/auth"
	"fulfillment-backend/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type CreateRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type AttachOrdersRequest struct {
	OrderIDs []uint `json:"order_ids" validate:"required,min=1,dive,gt=0"`
}

func batchID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperror.BadRequest("invalid batch id")
	}
	return uint(id), nil
}

// POST /api/batches
func CreateHandler(m *Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateRequest
		if err := validate.Body(c, &body); err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}
		b, err := m.Create(c.UserContext(), body.Name, actor)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(b)
	}
}

// GET /api/batches?active=true
func ListHandler(m *Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		batches, err := m.List(c.UserContext(), c.QueryBool("active", false))
		if err != nil {
			return err
		}
		return c.JSON(batches)
	}
}

// GET /api/batches/:id
func GetHandler(m *Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := batchID(c)
		if err != nil {
			return err
		}
		b, err := m.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(b)
	}
}

type actionFunc func(c *fiber.Ctx, id uint, actor auth.Actor) (any, error)

// action wraps the id and actor boilerplate shared by batch mutations.
func action(fn actionFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := batchID(c)
		if err != nil {
			return err
		}
		actor, err := auth.ActorFrom(c)
		if err != nil {
			return err
		}
		out, err := fn(c, id, actor)
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// POST /api/batches/:id/activate
func ActivateHandler(m *Manager) fiber.Handler {
	return action(func(c *fiber.Ctx, id uint, actor auth.Actor) (any, error) {
		return m.Activate(c.UserContext(), id, actor)
	})
}

// POST /api/batches/:id/deactivate
func DeactivateHandler(m *Manager) fiber.Handler {
	return action(func(c *fiber.Ctx, id uint, actor auth.Actor) (any, error) {
		return m.Deactivate(c.UserContext(), id, actor)
	})
}

// POST /api/batches/:id/orders
func AttachOrdersHandler(m *Manager) fiber.Handler {
	return action(func(c *fiber.Ctx, id uint, actor auth.Actor) (any, error) {
		var body AttachOrdersRequest
		if err := validate.Body(c, &body); err != nil {
			return nil, err
		}
		return m.AttachOrders(c.UserContext(), id, body.OrderIDs, actor)
	})
}

// DELETE /api/batches/:id/orders/:orderId
func DetachOrderHandler(m *Manager) fiber.Handler {
	return action(func(c *fiber.Ctx, id uint, actor auth.Actor) (any, error) {
		orderID, err := c.ParamsInt("orderId")
		if err != nil || orderID <= 0 {
			return nil, apperror.BadRequest("invalid order id")
		}
		return m.DetachOrder(c.UserContext(), id, uint(orderID), actor)
	})
}

// POST /api/batches/:id/verify/:kind  (item_sync or shipments)
func MarkVerifiedHandler(m *Manager) fiber.Handler {
	return action(func(c *fiber.Ctx, id uint, actor auth.Actor) (any, error) {
		return m.MarkVerified(c.UserContext(), id, VerificationKind(c.Params("kind")), actor)
	})
}

// DELETE /api/batches/:id/verify/:kind
func ResetVerificationHandler(m *Manager) fiber.Handler {
	return action(func(c *fiber.Ctx, id uint, actor auth.Actor) (any, error) {
		return m.ResetVerification(c.UserContext(), id, VerificationKind(c.Params("kind")), actor)
	})
}

// POST /api/batches/:id/settle
func SettleHandler(m *Manager) fiber.Handler {
	return action(func(c *fiber.Ctx, id uint, actor auth.Actor) (any, error) {
		return m.Settle(c.UserContext(), id, actor)
	})
}
