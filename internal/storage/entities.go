package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"oficina/internal"
	"oficina/internal/normalize"
)

// Natural keys are stored next to the display value. Customer and supplier
// names match case-insensitively; device brand, model and serial are also
// accent folded. The unique indexes on those columns keep
// concurrent runs for the same account from inserting duplicates.

func (d *DB) FindCustomerByName(ctx context.Context, accountID, name string) (*internal.Customer, error) {
	var c internal.Customer
	err := d.conn.QueryRowContext(ctx, `
SELECT id, account_id, name, phone, email, address, tax_id, created_at
FROM customers WHERE account_id = ? AND name_key = ?
`, accountID, normalize.NameKey(name)).Scan(
		&c.ID, &c.AccountID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.TaxID, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (d *DB) InsertCustomer(ctx context.Context, accountID string, f internal.CustomerFields) (*internal.Customer, error) {
	if f.Name == nil {
		return nil, errors.New("customer name is required")
	}
	res, err := d.conn.ExecContext(ctx, `
INSERT INTO customers (account_id, name, name_key, phone, email, address, tax_id)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, accountID, *f.Name, normalize.NameKey(*f.Name), f.Phone, f.Email, f.Address, f.TaxID)
	if err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &internal.Customer{
		ID:        id,
		AccountID: accountID,
		Name:      *f.Name,
		Phone:     f.Phone,
		Email:     f.Email,
		Address:   f.Address,
		TaxID:     f.TaxID,
	}, nil
}

func deviceKeyArgs(key internal.DeviceKey) (string, string, string) {
	return normalize.Key(key.Brand), normalize.Key(key.Model), normalize.Key(key.Serial)
}

func (d *DB) FindDevice(ctx context.Context, accountID string, key internal.DeviceKey) (*internal.Device, error) {
	brand, model, serial := deviceKeyArgs(key)
	var dev internal.Device
	err := d.conn.QueryRowContext(ctx, `
SELECT id, account_id, customer_id, type, brand, model, serial, created_at
FROM devices WHERE account_id = ? AND brand_key = ? AND model_key = ? AND serial_key = ?
`, accountID, brand, model, serial).Scan(
		&dev.ID, &dev.AccountID, &dev.CustomerID, &dev.Type, &dev.Brand, &dev.Model, &dev.Serial, &dev.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dev, nil
}

func (d *DB) InsertDevice(ctx context.Context, accountID string, customerID *int64, f internal.DeviceFields) (*internal.Device, error) {
	if f.Brand == nil || f.Model == nil {
		return nil, errors.New("device brand and model are required")
	}
	key := internal.DeviceKey{Brand: *f.Brand, Model: *f.Model}
	if f.Serial != nil {
		key.Serial = *f.Serial
	}
	brand, model, serial := deviceKeyArgs(key)

	res, err := d.conn.ExecContext(ctx, `
INSERT INTO devices (account_id, customer_id, type, brand, model, serial, brand_key, model_key, serial_key)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`, accountID, customerID, f.Type, *f.Brand, *f.Model, f.Serial, brand, model, serial)
	if err != nil {
		return nil, fmt.Errorf("insert device: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &internal.Device{
		ID:         id,
		AccountID:  accountID,
		CustomerID: customerID,
		Type:       f.Type,
		Brand:      *f.Brand,
		Model:      *f.Model,
		Serial:     f.Serial,
	}, nil
}

func (d *DB) FindSupplierByName(ctx context.Context, accountID, name string) (*internal.Supplier, error) {
	var s internal.Supplier
	err := d.conn.QueryRowContext(ctx, `
SELECT id, account_id, name, created_at
FROM suppliers WHERE account_id = ? AND name_key = ?
`, accountID, normalize.NameKey(name)).Scan(&s.ID, &s.AccountID, &s.Name, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (d *DB) InsertSupplier(ctx context.Context, accountID, name string) (*internal.Supplier, error) {
	res, err := d.conn.ExecContext(ctx, `
INSERT INTO suppliers (account_id, name, name_key) VALUES (?, ?, ?)
`, accountID, name, normalize.NameKey(name))
	if err != nil {
		return nil, fmt.Errorf("insert supplier: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &internal.Supplier{ID: id, AccountID: accountID, Name: name}, nil
}

const orderColumns = `id, account_id, external_order_number, customer_id, device_id, supplier_id,
  status, opened_at, closed_at, issue_description, service_details,
  parts_cost, service_cost, freight_cost, total_amount, parts_json, payments_json,
  guarantee_terms, warranty_days, notes, technician, created_at, updated_at`

func (d *DB) FindOrder(ctx context.Context, accountID, externalOrderNumber string) (*internal.ServiceOrder, error) {
	var (
		o            internal.ServiceOrder
		partsJSON    string
		paymentsJSON string
	)
	err := d.conn.QueryRowContext(ctx, `SELECT `+orderColumns+`
FROM service_orders WHERE account_id = ? AND external_order_number = ?
`, accountID, externalOrderNumber).Scan(
		&o.ID, &o.AccountID, &o.ExternalOrderNumber, &o.CustomerID, &o.DeviceID, &o.SupplierID,
		&o.Status, &o.OpenedAt, &o.ClosedAt, &o.IssueDescription, &o.ServiceDetails,
		&o.PartsCost, &o.ServiceCost, &o.FreightCost, &o.TotalAmount, &partsJSON, &paymentsJSON,
		&o.GuaranteeTerms, &o.WarrantyDays, &o.Notes, &o.Technician, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(partsJSON), &o.Parts); err != nil {
		return nil, fmt.Errorf("decode parts of order %s: %w", externalOrderNumber, err)
	}
	if err := json.Unmarshal([]byte(paymentsJSON), &o.Payments); err != nil {
		return nil, fmt.Errorf("decode payments of order %s: %w", externalOrderNumber, err)
	}
	return &o, nil
}

func encodeLists(o internal.ServiceOrder) (string, string, error) {
	parts, err := json.Marshal(o.Parts)
	if err != nil {
		return "", "", err
	}
	payments, err := json.Marshal(o.Payments)
	if err != nil {
		return "", "", err
	}
	return string(parts), string(payments), nil
}

func (d *DB) InsertOrder(ctx context.Context, o internal.ServiceOrder) (*internal.ServiceOrder, error) {
	parts, payments, err := encodeLists(o)
	if err != nil {
		return nil, err
	}
	res, err := d.conn.ExecContext(ctx, `
INSERT INTO service_orders (
  account_id, external_order_number, customer_id, device_id, supplier_id,
  status, opened_at, closed_at, issue_description, service_details,
  parts_cost, service_cost, freight_cost, total_amount, parts_json, payments_json,
  guarantee_terms, warranty_days, notes, technician
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, o.AccountID, o.ExternalOrderNumber, o.CustomerID, o.DeviceID, o.SupplierID,
		string(o.Status), o.OpenedAt, o.ClosedAt, o.IssueDescription, o.ServiceDetails,
		o.PartsCost.String(), o.ServiceCost.String(), o.FreightCost.String(), o.TotalAmount.String(), parts, payments,
		o.GuaranteeTerms, o.WarrantyDays, o.Notes, o.Technician)
	if err != nil {
		return nil, fmt.Errorf("insert order %s: %w", o.ExternalOrderNumber, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	o.ID = id
	return &o, nil
}

func (d *DB) UpdateOrder(ctx context.Context, id int64, o internal.ServiceOrder) (*internal.ServiceOrder, error) {
	parts, payments, err := encodeLists(o)
	if err != nil {
		return nil, err
	}
	res, err := d.conn.ExecContext(ctx, `
UPDATE service_orders SET
  customer_id = ?, device_id = ?, supplier_id = ?,
  status = ?, opened_at = ?, closed_at = ?, issue_description = ?, service_details = ?,
  parts_cost = ?, service_cost = ?, freight_cost = ?, total_amount = ?, parts_json = ?, payments_json = ?,
  guarantee_terms = ?, warranty_days = ?, notes = ?, technician = ?,
  updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`, o.CustomerID, o.DeviceID, o.SupplierID,
		string(o.Status), o.OpenedAt, o.ClosedAt, o.IssueDescription, o.ServiceDetails,
		o.PartsCost.String(), o.ServiceCost.String(), o.FreightCost.String(), o.TotalAmount.String(), parts, payments,
		o.GuaranteeTerms, o.WarrantyDays, o.Notes, o.Technician, id)
	if err != nil {
		return nil, fmt.Errorf("update order %s: %w", o.ExternalOrderNumber, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("update order: id %d not found", id)
	}
	o.ID = id
	return &o, nil
}

// CountOrders is used by the CLI summary and by tests.
func (d *DB) CountOrders(ctx context.Context, accountID string) (int, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM service_orders WHERE account_id = ?`, accountID).Scan(&n)
	return n, err
}
