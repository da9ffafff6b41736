// Package testutil builds throwaway databases and fixtures for tests.
package testutil

import (
	"fmt"
	"testing"

	"fulfillment-backend/internal/auth"
	"fulfillment-backend/internal/database"
	"fulfillment-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory sqlite database with the full schema.
// A single connection keeps every statement on the same memory store, so
// code inside a transaction must use the transaction handle.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func Logger() *zap.Logger {
	return zap.NewNop()
}

// Actor is the default staff member tests act as.
var Actor = auth.Actor{ID: 1, Name: "Test Operator", Role: models.RoleWarehouse}

func UintPtr(v uint) *uint { return &v }

// Fixtures creates catalog and order rows with sensible defaults.
type Fixtures struct {
	T  *testing.T
	DB *gorm.DB
}

func NewFixtures(t *testing.T, db *gorm.DB) *Fixtures {
	return &Fixtures{T: t, DB: db}
}

func (f *Fixtures) create(v any) {
	f.T.Helper()
	require.NoError(f.T, f.DB.Create(v).Error)
}

// BlankVariant creates a blank and one variant with quantity on hand.
func (f *Fixtures) BlankVariant(company, garment, color, size string, quantity int) *models.BlankVariant {
	f.T.Helper()
	var blank models.Blank
	err := f.DB.Where("company = ? AND garment_type = ?", company, garment).First(&blank).Error
	if err != nil {
		blank = models.Blank{Company: company, GarmentType: garment}
		f.create(&blank)
	}
	bv := &models.BlankVariant{BlankID: blank.ID, Color: color, Size: size, Quantity: quantity}
	f.create(bv)
	return bv
}

// Product creates a product with the given number of prints.
func (f *Fixtures) Product(name string, prints int, blackLabel bool) *models.Product {
	f.T.Helper()
	p := &models.Product{Name: name, IsBlackLabel: blackLabel}
	f.create(p)
	locations := []string{"front", "back", "sleeve", "neck"}
	for i := 0; i < prints; i++ {
		pr := models.Print{ProductID: p.ID, Location: locations[i%len(locations)]}
		f.create(&pr)
		p.Prints = append(p.Prints, pr)
	}
	return p
}

// Variant creates a product variant printed on bv, or premade when bv is nil
// and premade is set.
func (f *Fixtures) Variant(p *models.Product, title string, bv *models.BlankVariant, premade bool, warehouse int) *models.ProductVariant {
	f.T.Helper()
	v := &models.ProductVariant{ProductID: p.ID, Title: title, IsPremade: premade, WarehouseInventory: warehouse}
	if bv != nil {
		v.BlankVariantID = &bv.ID
	}
	f.create(v)
	return v
}

func (f *Fixtures) Order(number string) *models.Order {
	f.T.Helper()
	o := &models.Order{OrderNumber: number, CustomerName: "Customer " + number}
	f.create(o)
	return o
}

// LineItem creates a shippable, unfulfilled line item in not_printed.
func (f *Fixtures) LineItem(o *models.Order, v *models.ProductVariant, name string, quantity int) *models.LineItem {
	f.T.Helper()
	li := &models.LineItem{
		OrderID:             o.ID,
		Name:                name,
		Quantity:            quantity,
		Status:              models.StatusNotPrinted,
		RequiresShipping:    true,
		UnfulfilledQuantity: quantity,
	}
	if v != nil {
		li.ProductVariantID = &v.ID
	}
	f.create(li)
	return li
}

// Batch creates an inactive batch holding orders.
func (f *Fixtures) Batch(name string, orders ...*models.Order) *models.Batch {
	f.T.Helper()
	b := &models.Batch{Name: name, CreatedByID: Actor.ID}
	f.create(b)
	for _, o := range orders {
		require.NoError(f.T, f.DB.Model(b).Association("Orders").Append(o))
	}
	return b
}

func (f *Fixtures) Status(li *models.LineItem) models.LineItemStatus {
	f.T.Helper()
	var row models.LineItem
	require.NoError(f.T, f.DB.First(&row, li.ID).Error)
	return row.Status
}

func (f *Fixtures) BlankQuantity(bv *models.BlankVariant) int {
	f.T.Helper()
	var row models.BlankVariant
	require.NoError(f.T, f.DB.First(&row, bv.ID).Error)
	return row.Quantity
}

func (f *Fixtures) WarehouseInventory(v *models.ProductVariant) int {
	f.T.Helper()
	var row models.ProductVariant
	require.NoError(f.T, f.DB.First(&row, v.ID).Error)
	return row.WarehouseInventory
}
