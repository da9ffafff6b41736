// Package lineitem owns line item status changes and the inventory they
// consume. Every change that touches stock goes through the ledger in the
// same transaction as the status write.
package lineitem

import (
	"errors"
	"fmt"
	"net/http"

	"fulfillment-backend/internal/apperror"
	"fulfillment-backend/internal/fulfillment"
	"fulfillment-backend/internal/models"
)

var (
	ErrStatusGuardViolation = errors.New("status change not allowed")
	ErrInvalidStatus        = errors.New("unknown line item status")
	ErrLineItemNotFound     = errors.New("line item not found")
	ErrPrintNotOnProduct    = errors.New("print does not belong to the line item's product")
)

func init() {
	apperror.Register(ErrStatusGuardViolation, apperror.CodeStatusGuardViolation, http.StatusUnprocessableEntity)
	apperror.Register(ErrInvalidStatus, apperror.CodeValidationError, http.StatusBadRequest)
	apperror.Register(ErrLineItemNotFound, apperror.CodeNotFound, http.StatusNotFound)
	apperror.Register(ErrPrintNotOnProduct, apperror.CodeBadRequest, http.StatusBadRequest)
}

// PrintState summarises the prints a line item's product declares and how
// many of them the latest print logs mark active.
type PrintState struct {
	Declared   int
	Active     int
	BlackLabel bool
}

// DerivedStatus is the status implied by the print logs alone.
func DerivedStatus(ps PrintState) models.LineItemStatus {
	switch {
	case ps.Declared == 0 || ps.Active == 0:
		return models.StatusNotPrinted
	case ps.Active >= ps.Declared:
		return models.StatusPrinted
	default:
		return models.StatusPartiallyPrinted
	}
}

// CheckGuard rejects entering a print-track status the prints cannot back.
func CheckGuard(to models.LineItemStatus, ps PrintState) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	switch to {
	case models.StatusPrinted:
		if ps.BlackLabel {
			return nil
		}
		if ps.Declared == 0 {
			return fmt.Errorf("%w: %s", ErrStatusGuardViolation, fulfillment.WarningNoSyncedPrints)
		}
		if ps.Active < ps.Declared {
			return fmt.Errorf("%w: %d of %d prints are marked active", ErrStatusGuardViolation, ps.Active, ps.Declared)
		}
	case models.StatusPartiallyPrinted:
		if ps.Declared == 0 {
			return fmt.Errorf("%w: %s", ErrStatusGuardViolation, fulfillment.WarningNoSyncedPrints)
		}
		if ps.Active == 0 && !ps.BlackLabel {
			return fmt.Errorf("%w: no prints are marked active", ErrStatusGuardViolation)
		}
		if ps.Active >= ps.Declared {
			return fmt.Errorf("%w: every print is marked active", ErrStatusGuardViolation)
		}
	}
	return nil
}

// Effect is one ledger entry a transition must write.
type Effect struct {
	Target models.InventoryTarget
	Change int
	Reason models.InventoryReason
}

// LedgerEffect returns the debit caused by moving from -> to, or nil.
// Leaving a status never credits stock back; that takes an explicit
// reversal.
func LedgerEffect(from, to models.LineItemStatus, plan fulfillment.Plan) *Effect {
	if from == to || plan.Target == nil || plan.Quantity <= 0 {
		return nil
	}
	switch to {
	case models.StatusPrinted:
		if plan.Kind != fulfillment.KindPrint {
			return nil
		}
		return &Effect{Target: *plan.Target, Change: -plan.Quantity, Reason: models.ReasonAssemblyUsage}
	case models.StatusInStock:
		return &Effect{Target: *plan.Target, Change: -plan.Quantity, Reason: models.ReasonManualPrint}
	}
	return nil
}

// Outstanding trims eff by what the ledger already holds against its target
// for the same line item, so a unit is debited once however often the item
// re-enters a debiting status. net is the item's current net change on
// eff.Target. Returns nil when nothing is left to debit.
func Outstanding(eff *Effect, net int) *Effect {
	if eff == nil || net <= eff.Change {
		return nil
	}
	if net >= 0 {
		return eff
	}
	rest := *eff
	rest.Change = eff.Change - net
	return &rest
}

// TriggersCascade reports whether entering status skips the rest of the order.
func TriggersCascade(status models.LineItemStatus) bool {
	return status == models.StatusInStock || status == models.StatusOOSBlank
}

// CascadeSkips picks the siblings that become skipped when trigger enters a
// cascading status. Items already past the print track keep their status.
func CascadeSkips(triggerID uint, siblings []models.LineItem) []uint {
	ids := []uint{}
	for _, s := range siblings {
		if s.ID == triggerID {
			continue
		}
		if s.Status == models.StatusNotPrinted || s.Status == models.StatusPartiallyPrinted {
			ids = append(ids, s.ID)
		}
	}
	return ids
}

// onPrintTrack reports whether print log toggles may move the status.
func onPrintTrack(s models.LineItemStatus) bool {
	return s == models.StatusNotPrinted || s == models.StatusPartiallyPrinted || s == models.StatusPrinted
}
