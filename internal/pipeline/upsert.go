package pipeline

import (
	"context"
	"fmt"
	"strings"

	"oficina/internal"
)

type Relations struct {
	CustomerID *int64
	DeviceID   *int64
	SupplierID *int64
}

type comparator func(existing internal.ServiceOrder, incoming internal.NormalizedOrderFields) bool

// comparators report whether a field is unchanged. Names match
// config.CompareFieldNames.
var comparators = map[string]comparator{
	"issue_description": func(e internal.ServiceOrder, in internal.NormalizedOrderFields) bool {
		return equalText(e.IssueDescription, in.IssueDescription)
	},
	"service_details": func(e internal.ServiceOrder, in internal.NormalizedOrderFields) bool {
		return equalText(e.ServiceDetails, in.ServiceDetails)
	},
	"total_amount": func(e internal.ServiceOrder, in internal.NormalizedOrderFields) bool {
		return e.TotalAmount.Equal(in.TotalAmount)
	},
	"status": func(e internal.ServiceOrder, in internal.NormalizedOrderFields) bool {
		return e.Status == in.Status
	},
	"opened_at": func(e internal.ServiceOrder, in internal.NormalizedOrderFields) bool {
		return equalText(e.OpenedAt, in.OpenedAt)
	},
	"closed_at": func(e internal.ServiceOrder, in internal.NormalizedOrderFields) bool {
		return equalText(e.ClosedAt, in.ClosedAt)
	},
	"parts_cost": func(e internal.ServiceOrder, in internal.NormalizedOrderFields) bool {
		return e.PartsCost.Equal(in.PartsCost)
	},
	"service_cost": func(e internal.ServiceOrder, in internal.NormalizedOrderFields) bool {
		return e.ServiceCost.Equal(in.ServiceCost)
	},
	"freight_cost": func(e internal.ServiceOrder, in internal.NormalizedOrderFields) bool {
		return e.FreightCost.Equal(in.FreightCost)
	},
	"guarantee_terms": func(e internal.ServiceOrder, in internal.NormalizedOrderFields) bool {
		return equalText(e.GuaranteeTerms, in.GuaranteeTerms)
	},
	"warranty_days": func(e internal.ServiceOrder, in internal.NormalizedOrderFields) bool {
		return e.WarrantyDays == in.WarrantyDays
	},
	"notes": func(e internal.ServiceOrder, in internal.NormalizedOrderFields) bool {
		return equalText(e.Notes, in.Notes)
	},
	"technician": func(e internal.ServiceOrder, in internal.NormalizedOrderFields) bool {
		return equalText(e.Technician, in.Technician)
	},
}

func equalText(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// UpsertEngine decides between create, update and skip for one order.
type UpsertEngine struct {
	store   Store
	compare []string
}

func NewUpsertEngine(store Store, compareFields []string) (*UpsertEngine, error) {
	if len(compareFields) == 0 {
		return nil, fmt.Errorf("upsert: at least one compare field is required")
	}
	for _, name := range compareFields {
		if _, ok := comparators[name]; !ok {
			return nil, fmt.Errorf("upsert: unknown compare field %q", name)
		}
	}
	return &UpsertEngine{store: store, compare: compareFields}, nil
}

// Upsert writes the order unless an existing one with the same number already
// matches on every compared field.
func (u *UpsertEngine) Upsert(ctx context.Context, accountID string, f internal.NormalizedOrderFields, rel Relations) (internal.Outcome, []string, error) {
	existing, err := u.store.FindOrder(ctx, accountID, f.ExternalOrderNumber)
	if err != nil {
		return internal.OutcomeFailed, nil, fmt.Errorf("find order: %w", err)
	}

	order := orderFromFields(accountID, f, rel)
	if existing == nil {
		if _, err := u.store.InsertOrder(ctx, order); err != nil {
			return internal.OutcomeFailed, nil, err
		}
		return internal.OutcomeCreated, nil, nil
	}

	var changed []string
	for _, name := range u.compare {
		if !comparators[name](*existing, f) {
			changed = append(changed, name)
		}
	}
	if len(changed) == 0 {
		return internal.OutcomeSkipped, nil, nil
	}

	if order.CustomerID == nil {
		order.CustomerID = existing.CustomerID
	}
	if order.DeviceID == nil {
		order.DeviceID = existing.DeviceID
	}
	if order.SupplierID == nil {
		order.SupplierID = existing.SupplierID
	}
	if _, err := u.store.UpdateOrder(ctx, existing.ID, order); err != nil {
		return internal.OutcomeFailed, nil, err
	}
	return internal.OutcomeUpdated, []string{"changed: " + strings.Join(changed, ", ")}, nil
}

func orderFromFields(accountID string, f internal.NormalizedOrderFields, rel Relations) internal.ServiceOrder {
	return internal.ServiceOrder{
		AccountID:           accountID,
		ExternalOrderNumber: f.ExternalOrderNumber,
		CustomerID:          rel.CustomerID,
		DeviceID:            rel.DeviceID,
		SupplierID:          rel.SupplierID,
		Status:              f.Status,
		OpenedAt:            f.OpenedAt,
		ClosedAt:            f.ClosedAt,
		IssueDescription:    f.IssueDescription,
		ServiceDetails:      f.ServiceDetails,
		PartsCost:           f.PartsCost,
		ServiceCost:         f.ServiceCost,
		FreightCost:         f.FreightCost,
		TotalAmount:         f.TotalAmount,
		Parts:               f.Parts,
		Payments:            f.Payments,
		GuaranteeTerms:      f.GuaranteeTerms,
		WarrantyDays:        f.WarrantyDays,
		Notes:               f.Notes,
		Technician:          f.Technician,
	}
}
