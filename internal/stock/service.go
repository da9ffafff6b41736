package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/audit"
	"fulfillment-backend/internal/auth"
	"fulfillment-backend/internal/batch"
	"fulfillment-backend/internal/ledger"
	"fulfillment-backend/internal/metrics"
	"fulfillment-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrShortageBlocksVerification = errors.New("stock shortages block verification")
	ErrAlreadyVerified            = errors.New("stock already verified for this batch, reset it first")
)

func init() {
	apperror.Register(ErrShortageBlocksVerification, apperror.CodeShortageBlocks, http.StatusUnprocessableEntity)
	apperror.Register(ErrAlreadyVerified, apperror.CodeAlreadyVerified, http.StatusConflict)
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

// Requirements computes the picking lists for a batch. Read only.
func (s *Service) Requirements(ctx context.Context, batchID uint) (*Requirements, error) {
	return compute(s.db.WithContext(ctx), batchID)
}

func compute(tx *gorm.DB, batchID uint) (*Requirements, error) {
	if _, err := batch.Load(tx, batchID, false); err != nil {
		return nil, err
	}
	items, err := batch.LineItems(tx, batchID)
	if err != nil {
		return nil, err
	}
	txs, err := ledger.List(tx, ledger.Filter{BatchID: &batchID})
	if err != nil {
		return nil, fmt.Errorf("load batch transactions: %w", err)
	}
	return Build(batchID, items, txs), nil
}

// VerifyBlank stamps blank_stock_verified_at and stores the blank picking
// list as it is right now. The shortage check runs inside the transaction
// with the counted variants locked.
func (s *Service) VerifyBlank(ctx context.Context, batchID uint, actor auth.Actor) (*models.Batch, error) {
	return s.verify(ctx, batchID, batch.KindBlank, actor)
}

// VerifyPremade is the premade counterpart. Black label rows never block.
func (s *Service) VerifyPremade(ctx context.Context, batchID uint, actor auth.Actor) (*models.Batch, error) {
	return s.verify(ctx, batchID, batch.KindPremade, actor)
}

func (s *Service) verify(ctx context.Context, batchID uint, kind batch.VerificationKind, actor auth.Actor) (*models.Batch, error) {
	var out *models.Batch
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := batch.Load(tx, batchID, true)
		if err != nil {
			return err
		}
		if b.IsSettled() {
			return batch.ErrBatchSettled
		}

		req, err := compute(tx, batchID)
		if err != nil {
			return err
		}

		var (
			snapshot  []byte
			shortages int
			data      any
			updates   map[string]any
			now       = time.Now()
		)
		switch kind {
		case batch.KindBlank:
			if b.BlankStockVerifiedAt != nil || hasSnapshot(b.BlankStockRequirementsJSON) {
				return ErrAlreadyVerified
			}
			if err := relockBlanks(tx, req); err != nil {
				return err
			}
			short := req.BlankShortages()
			shortages, data = len(short), short
			snapshot, err = json.Marshal(withoutTransactions(req.Blanks))
			updates = map[string]any{"blank_stock_verified_at": now, "blank_stock_requirements_json": datatypes.JSON(snapshot)}
		case batch.KindPremade:
			if b.PremadeStockVerifiedAt != nil || hasSnapshot(b.PremadeStockRequirementsJSON) {
				return ErrAlreadyVerified
			}
			if err := relockPremade(tx, req); err != nil {
				return err
			}
			short := req.PremadeShortages()
			shortages, data = len(short), short
			snapshot, err = json.Marshal(withoutPremadeTransactions(req.Premade))
			updates = map[string]any{"premade_stock_verified_at": now, "premade_stock_requirements_json": datatypes.JSON(snapshot)}
		default:
			return batch.ErrUnknownKind
		}
		if err != nil {
			return fmt.Errorf("encode %s snapshot: %w", kind, err)
		}

		if shortages > 0 {
			metrics.Verifications.WithLabelValues(string(kind), "shortage").Inc()
			return apperror.New(apperror.CodeShortageBlocks,
				fmt.Sprintf("%d %s stock rows are short", shortages, kind),
				http.StatusUnprocessableEntity).
				WithData(data).
				Wrap(ErrShortageBlocksVerification)
		}

		if err := tx.Model(b).Updates(updates).Error; err != nil {
			return fmt.Errorf("stamp %s verification: %w", kind, err)
		}
		if _, err := audit.WriteLog(tx, audit.LogOptions{
			UserID:      actor.ID,
			UserName:    actor.Name,
			EntityType:  "batch",
			EntityID:    b.ID,
			BatchID:     &b.ID,
			Action:      models.AuditActionStatusChange,
			Description: string(kind) + " stock verified",
			After:       map[string]time.Time{"verified_at": now},
		}); err != nil {
			return err
		}

		out, err = batch.Load(tx, batchID, false)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.Verifications.WithLabelValues(string(kind), "verified").Inc()
	s.log.Info("stock verified", zap.Uint("batch_id", batchID), zap.String("kind", string(kind)), zap.Uint("actor", actor.ID))
	return out, nil
}

// relockBlanks re-reads on-hand for every blank row under a row lock so a
// ledger write that landed after compute is seen before the gate decides.
func relockBlanks(tx *gorm.DB, req *Requirements) error {
	if len(req.Blanks) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(req.Blanks))
	for _, row := range req.Blanks {
		ids = append(ids, row.BlankVariantID)
	}
	var variants []models.BlankVariant
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "quantity").
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&variants).Error; err != nil {
		return fmt.Errorf("lock blank variants: %w", err)
	}
	onHand := make(map[uint]int, len(variants))
	for _, v := range variants {
		onHand[v.ID] = v.Quantity
	}
	for i := range req.Blanks {
		row := &req.Blanks[i]
		row.OnHand = onHand[row.BlankVariantID]
		row.ToPick = max(0, row.RequiredQuantity-row.OnHand)
		row.Shortage = row.OnHand < row.RequiredQuantity
	}
	return nil
}

func relockPremade(tx *gorm.DB, req *Requirements) error {
	ids := []uint{}
	for _, row := range req.Premade {
		if !row.IsBlackLabel {
			ids = append(ids, row.ProductVariantID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	var variants []models.ProductVariant
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "warehouse_inventory").
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&variants).Error; err != nil {
		return fmt.Errorf("lock product variants: %w", err)
	}
	onHand := make(map[uint]int, len(variants))
	for _, v := range variants {
		onHand[v.ID] = v.WarehouseInventory
	}
	for i := range req.Premade {
		row := &req.Premade[i]
		if row.IsBlackLabel {
			continue
		}
		n := onHand[row.ProductVariantID]
		row.OnHand = &n
		row.ToPick = max(0, row.RequiredQuantity-n)
		row.Shortage = n < row.RequiredQuantity
	}
	return nil
}

func hasSnapshot(raw datatypes.JSON) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func withoutTransactions(rows []BlankStockItem) []BlankStockItem {
	out := make([]BlankStockItem, len(rows))
	for i, r := range rows {
		r.Transactions = nil
		out[i] = r
	}
	return out
}

func withoutPremadeTransactions(rows []PremadeStockItem) []PremadeStockItem {
	out := make([]PremadeStockItem, len(rows))
	for i, r := range rows {
		r.Transactions = nil
		out[i] = r
	}
	return out
}

// DecodeBlankSnapshot reads the blank picking list stored at verification.
// A batch that was never verified yields nil.
func DecodeBlankSnapshot(raw datatypes.JSON) ([]BlankStockItem, error) {
	if !hasSnapshot(raw) {
		return nil, nil
	}
	var rows []BlankStockItem
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode blank snapshot: %w", err)
	}
	return rows, nil
}

func DecodePremadeSnapshot(raw datatypes.JSON) ([]PremadeStockItem, error) {
	if !hasSnapshot(raw) {
		return nil, nil
	}
	var rows []PremadeStockItem
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode premade snapshot: %w", err)
	}
	return rows, nil
}
