package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"oficina/internal"
	"oficina/internal/normalize"
)

// memStore is an in-memory Store that counts calls.
type memStore struct {
	mu sync.Mutex

	nextID    int64
	customers map[string]*internal.Customer
	devices   map[string]*internal.Device
	suppliers map[string]*internal.Supplier
	orders    map[string]*internal.ServiceOrder

	calls map[string]int

	supplierErr error
	orderErr    error
}

func newMemStore() *memStore {
	return &memStore{
		customers: map[string]*internal.Customer{},
		devices:   map[string]*internal.Device{},
		suppliers: map[string]*internal.Supplier{},
		orders:    map[string]*internal.ServiceOrder{},
		calls:     map[string]int{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *memStore) resolverCalls() int {
	return m.count("FindCustomerByName") + m.count("FindDevice") + m.count("FindSupplierByName")
}

func (m *memStore) FindCustomerByName(_ context.Context, accountID, name string) (*internal.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["FindCustomerByName"]++
	c, ok := m.customers[accountID+"|"+normalize.NameKey(name)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) InsertCustomer(_ context.Context, accountID string, f internal.CustomerFields) (*internal.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["InsertCustomer"]++
	key := accountID + "|" + normalize.NameKey(*f.Name)
	if _, ok := m.customers[key]; ok {
		return nil, fmt.Errorf("duplicate customer %q", *f.Name)
	}
	c := &internal.Customer{ID: m.id(), AccountID: accountID, Name: *f.Name, Phone: f.Phone, Email: f.Email, Address: f.Address, TaxID: f.TaxID}
	m.customers[key] = c
	cp := *c
	return &cp, nil
}

func deviceMemKey(accountID string, k internal.DeviceKey) string {
	return accountID + "|" + normalize.Key(k.Brand) + "|" + normalize.Key(k.Model) + "|" + normalize.Key(k.Serial)
}

func (m *memStore) FindDevice(_ context.Context, accountID string, key internal.DeviceKey) (*internal.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["FindDevice"]++
	d, ok := m.devices[deviceMemKey(accountID, key)]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) InsertDevice(_ context.Context, accountID string, customerID *int64, f internal.DeviceFields) (*internal.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["InsertDevice"]++
	key := internal.DeviceKey{Brand: *f.Brand, Model: *f.Model}
	if f.Serial != nil {
		key.Serial = *f.Serial
	}
	d := &internal.Device{ID: m.id(), AccountID: accountID, CustomerID: customerID, Type: f.Type, Brand: *f.Brand, Model: *f.Model, Serial: f.Serial}
	m.devices[deviceMemKey(accountID, key)] = d
	cp := *d
	return &cp, nil
}

func (m *memStore) FindSupplierByName(_ context.Context, accountID, name string) (*internal.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["FindSupplierByName"]++
	if m.supplierErr != nil {
		return nil, m.supplierErr
	}
	s, ok := m.suppliers[accountID+"|"+normalize.NameKey(name)]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) InsertSupplier(_ context.Context, accountID, name string) (*internal.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["InsertSupplier"]++
	s := &internal.Supplier{ID: m.id(), AccountID: accountID, Name: name}
	m.suppliers[accountID+"|"+normalize.NameKey(name)] = s
	cp := *s
	return &cp, nil
}

func (m *memStore) FindOrder(_ context.Context, accountID, number string) (*internal.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["FindOrder"]++
	o, ok := m.orders[accountID+"|"+number]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) InsertOrder(_ context.Context, o internal.ServiceOrder) (*internal.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["InsertOrder"]++
	if m.orderErr != nil {
		return nil, m.orderErr
	}
	key := o.AccountID + "|" + o.ExternalOrderNumber
	if _, ok := m.orders[key]; ok {
		return nil, errors.New("duplicate order")
	}
	o.ID = m.id()
	m.orders[key] = &o
	cp := o
	return &cp, nil
}

func (m *memStore) UpdateOrder(_ context.Context, id int64, o internal.ServiceOrder) (*internal.ServiceOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["UpdateOrder"]++
	for key, existing := range m.orders {
		if existing.ID == id {
			o.ID = id
			m.orders[key] = &o
			cp := o
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("order %d not found", id)
}

func (m *memStore) order(accountID, number string) *internal.ServiceOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[accountID+"|"+number]
}

func (m *memStore) customerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.customers)
}
