package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"oficina/internal"
)

// Store is the persistence the import core needs: find and insert per entity,
// plus in-place update for orders. *storage.DB implements it.
type Store interface {
	FindCustomerByName(ctx context.Context, accountID, name string) (*internal.Customer, error)
	InsertCustomer(ctx context.Context, accountID string, f internal.CustomerFields) (*internal.Customer, error)

	FindDevice(ctx context.Context, accountID string, key internal.DeviceKey) (*internal.Device, error)
	InsertDevice(ctx context.Context, accountID string, customerID *int64, f internal.DeviceFields) (*internal.Device, error)

	FindSupplierByName(ctx context.Context, accountID, name string) (*internal.Supplier, error)
	InsertSupplier(ctx context.Context, accountID, name string) (*internal.Supplier, error)

	FindOrder(ctx context.Context, accountID, externalOrderNumber string) (*internal.ServiceOrder, error)
	InsertOrder(ctx context.Context, o internal.ServiceOrder) (*internal.ServiceOrder, error)
	UpdateOrder(ctx context.Context, id int64, o internal.ServiceOrder) (*internal.ServiceOrder, error)
}

// Resolution is the outcome of one lookup-or-create. ID is nil when the
// record did not carry the natural key; Warning then says why.
type Resolution struct {
	ID      *int64
	Created bool
	Warning string
}

// Resolver maps loosely formatted identifiers onto existing entities and
// creates the ones it cannot find. Found entities are returned as they are:
// the import never overwrites attributes a person maintains.
type Resolver struct {
	store  Store
	logger *zap.Logger
}

func NewResolver(store Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger}
}

func (r *Resolver) ResolveCustomer(ctx context.Context, accountID string, f internal.CustomerFields) (Resolution, error) {
	if f.Name == nil {
		return Resolution{Warning: "missing customer name; order imported without customer"}, nil
	}
	existing, err := r.store.FindCustomerByName(ctx, accountID, *f.Name)
	if err != nil {
		return Resolution{}, fmt.Errorf("find customer %q: %w", *f.Name, err)
	}
	if existing != nil {
		return Resolution{ID: &existing.ID}, nil
	}
	created, err := r.store.InsertCustomer(ctx, accountID, f)
	if err != nil {
		return Resolution{}, fmt.Errorf("create customer %q: %w", *f.Name, err)
	}
	r.logger.Debug("customer created", zap.Int64("customer_id", created.ID), zap.String("name", created.Name))
	return Resolution{ID: &created.ID, Created: true}, nil
}

// ResolveDevice links newly created devices to customerID.
func (r *Resolver) ResolveDevice(ctx context.Context, accountID string, customerID *int64, f internal.DeviceFields) (Resolution, error) {
	if f.Brand == nil || f.Model == nil {
		return Resolution{Warning: "missing device brand/model; order imported without device"}, nil
	}
	key := internal.DeviceKey{Brand: *f.Brand, Model: *f.Model}
	if f.Serial != nil {
		key.Serial = *f.Serial
	}

	existing, err := r.store.FindDevice(ctx, accountID, key)
	if err != nil {
		return Resolution{}, fmt.Errorf("find device %s %s: %w", key.Brand, key.Model, err)
	}
	if existing != nil {
		return Resolution{ID: &existing.ID}, nil
	}
	created, err := r.store.InsertDevice(ctx, accountID, customerID, f)
	if err != nil {
		return Resolution{}, fmt.Errorf("create device %s %s: %w", key.Brand, key.Model, err)
	}
	r.logger.Debug("device created", zap.Int64("device_id", created.ID), zap.String("brand", created.Brand), zap.String("model", created.Model))
	return Resolution{ID: &created.ID, Created: true}, nil
}

// ResolveSupplier never fails the record: store errors come back as a
// warning and the order goes on without a supplier.
func (r *Resolver) ResolveSupplier(ctx context.Context, accountID string, f internal.SupplierFields) Resolution {
	if f.Name == nil {
		return Resolution{}
	}
	existing, err := r.store.FindSupplierByName(ctx, accountID, *f.Name)
	if err != nil {
		return Resolution{Warning: fmt.Sprintf("supplier %q lookup failed: %v", *f.Name, err)}
	}
	if existing != nil {
		return Resolution{ID: &existing.ID}
	}
	created, err := r.store.InsertSupplier(ctx, accountID, *f.Name)
	if err != nil {
		return Resolution{Warning: fmt.Sprintf("supplier %q could not be created: %v", *f.Name, err)}
	}
	return Resolution{ID: &created.ID, Created: true}
}
