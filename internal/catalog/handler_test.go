package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/auth"
	"fulfillment-backend/internal/models"
	"fulfillment-backend/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "catalog-test-secret-that-is-long-enough"

type harness struct {
	t         *testing.T
	app       *fiber.App
	db        *gorm.DB
	admin     string
	warehouse string
}

func newHarness(t *testing.T) *harness {
	db := testutil.NewDB(t)

	app := fiber.New(fiber.Config{ErrorHandler: apperror.Handler(testutil.Logger())})
	api := app.Group("/api", auth.JWTMiddleware(testSecret))
	admin := auth.RequireRole(models.RoleAdmin, models.RoleSuperAdmin)
	write := auth.RequireRole(models.WriteRoles...)

	api.Post("/blanks", admin, CreateBlankHandler(db))
	api.Get("/blanks", ListBlanksHandler(db))
	api.Post("/blanks/:id/variants", admin, CreateBlankVariantHandler(db))
	api.Post("/products", admin, CreateProductHandler(db))
	api.Post("/products/:id/variants", admin, CreateProductVariantHandler(db))
	api.Post("/orders", write, CreateOrderHandler(db))
	api.Get("/orders/:id", GetOrderHandler(db))
	api.Put("/line-items/:id", write, UpdateLineItemHandler(db))
	api.Post("/orders/:id/holds", write, PlaceHoldHandler(db))
	api.Post("/holds/:id/resolve", write, ResolveHoldHandler(db))

	return &harness{
		t:         t,
		app:       app,
		db:        db,
		admin:     token(t, 1, models.RoleAdmin),
		warehouse: token(t, 2, models.RoleWarehouse),
	}
}

func token(t *testing.T, id uint, role models.UserRole) string {
	tok, err := auth.GenerateToken(testSecret, &models.User{ID: id, Name: "user", Role: role})
	require.NoError(t, err)
	return tok
}

// do sends a JSON request and decodes the response into out when given.
func (h *harness) do(method, path, tok string, body any, out any) int {
	h.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type errorBody struct {
	Error struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func TestCatalogToOrderFlow(t *testing.T) {
	h := newHarness(t)

	var blank models.Blank
	status := h.do(http.MethodPost, "/api/blanks", h.admin, map[string]string{"company": "Gildan", "garment_type": "tee"}, &blank)
	require.Equal(t, http.StatusCreated, status)

	var bv models.BlankVariant
	status = h.do(http.MethodPost, "/api/blanks/"+itoa(blank.ID)+"/variants", h.admin,
		map[string]any{"color": " Black ", "size": "M"}, &bv)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "black", bv.Color)
	assert.Equal(t, "m", bv.Size)
	assert.Equal(t, 0, bv.Quantity)

	var p models.Product
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/products", h.admin, map[string]any{"name": "Logo Tee"}, &p))

	var pv models.ProductVariant
	status = h.do(http.MethodPost, "/api/products/"+itoa(p.ID)+"/variants", h.admin,
		map[string]any{"title": "M", "blank_variant_id": bv.ID}, &pv)
	require.Equal(t, http.StatusCreated, status)

	var order models.Order
	status = h.do(http.MethodPost, "/api/orders", h.warehouse, map[string]any{
		"order_number": "1001",
		"line_items": []map[string]any{
			{"name": "Logo Tee", "product_variant_id": pv.ID, "quantity": 2},
			{"name": "Gift note", "quantity": 1, "requires_shipping": false},
		},
	}, &order)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, order.LineItems, 2)
	assert.Equal(t, models.StatusNotPrinted, order.LineItems[0].Status)
	assert.Equal(t, 2, order.LineItems[0].UnfulfilledQuantity)
	assert.False(t, order.LineItems[1].RequiresShipping)

	var loaded models.Order
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/orders/"+itoa(order.ID), h.warehouse, nil, &loaded))
	require.Len(t, loaded.LineItems, 2)
	require.NotNil(t, loaded.LineItems[0].ProductVariant)
	assert.Equal(t, "Logo Tee", loaded.LineItems[0].ProductVariant.Product.Name)

	var dup errorBody
	require.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/api/orders", h.warehouse, map[string]any{"order_number": "1001"}, &dup))
	assert.Equal(t, apperror.CodeConflict, dup.Error.Code)

	var logs int64
	require.NoError(t, h.db.Model(&models.AuditLog{}).Count(&logs).Error)
	assert.Equal(t, int64(5), logs)
}

func TestCatalogRolesAndValidation(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/blanks", "", nil, nil))
	assert.Equal(t, http.StatusForbidden,
		h.do(http.MethodPost, "/api/blanks", h.warehouse, map[string]string{"company": "Gildan", "garment_type": "tee"}, nil))

	var bad errorBody
	require.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/api/blanks", h.admin, map[string]string{"company": "Gildan"}, &bad))
	assert.Equal(t, apperror.CodeValidationError, bad.Error.Code)
	assert.Contains(t, bad.Error.Details, "garment_type")

	var missing errorBody
	status := h.do(http.MethodPost, "/api/orders", h.warehouse, map[string]any{
		"order_number": "2001",
		"line_items":   []map[string]any{{"name": "Ghost", "product_variant_id": 999, "quantity": 1}},
	}, &missing)
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, apperror.CodeNotFound, missing.Error.Code)
}

func TestLineItemUpdateAndHolds(t *testing.T) {
	h := newHarness(t)
	fx := testutil.NewFixtures(t, h.db)
	o := fx.Order("3001")
	li := fx.LineItem(o, nil, "Custom Tee", 3)

	var updated models.LineItem
	status := h.do(http.MethodPut, "/api/line-items/"+itoa(li.ID), h.warehouse,
		map[string]any{"unfulfilled_quantity": 0, "marked_as_packaged": true}, &updated)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, updated.UnfulfilledQuantity)
	assert.True(t, updated.MarkedAsPackaged)
	assert.Equal(t, models.StatusNotPrinted, updated.Status)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPut, "/api/line-items/"+itoa(li.ID), h.warehouse, map[string]any{}, nil))

	var hold models.OrderHold
	require.Equal(t, http.StatusBadRequest,
		h.do(http.MethodPost, "/api/orders/"+itoa(o.ID)+"/holds", h.warehouse, map[string]any{"cause": "weather"}, nil))
	require.Equal(t, http.StatusCreated,
		h.do(http.MethodPost, "/api/orders/"+itoa(o.ID)+"/holds", h.warehouse, map[string]any{"cause": "address_issue"}, &hold))
	assert.Nil(t, hold.ResolvedAt)

	var resolved models.OrderHold
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/holds/"+itoa(hold.ID)+"/resolve", h.warehouse, nil, &resolved))
	assert.NotNil(t, resolved.ResolvedAt)
}

func itoa(id uint) string {
	return fmt.Sprint(id)
}
