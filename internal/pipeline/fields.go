package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"oficina/internal"
	"oficina/internal/normalize"
)

// canonicalValues maps source column or label names onto field keys. Keys are
// visited in sorted order so that when two columns alias the same field the
// choice is stable across runs.
func canonicalValues(raw map[string]string) map[string]string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(raw))
	for _, k := range keys {
		field := fieldForHeader(k)
		if field == "" {
			continue
		}
		v := normalize.Spaces(raw[k])
		if v == "" {
			continue
		}
		if _, taken := out[field]; !taken {
			out[field] = v
		}
	}
	return out
}

func orderNumber(values map[string]string) string {
	return normalize.Spaces(values[internal.FieldOrderNumber])
}

// normalizeRecord runs every normalizer over one record. Only malformed money
// values are errors; everything else degrades to null or a default.
func (i *Importer) normalizeRecord(rec internal.ImportRecord, values map[string]string) (internal.NormalizedOrderFields, error) {
	f := internal.NormalizedOrderFields{
		ExternalOrderNumber: orderNumber(values),
		OpenedAt:            normalize.Timestamp(values[internal.FieldOpenedAt]),
		ClosedAt:            normalize.Timestamp(values[internal.FieldClosedAt]),
		Status:              normalize.Status(values[internal.FieldStatus]),
		IssueDescription:    normalize.Text(values[internal.FieldIssueDescription]),
		ServiceDetails:      normalize.Text(values[internal.FieldServiceDetails]),
		GuaranteeTerms:      normalize.Text(values[internal.FieldGuaranteeTerms]),
		Notes:               normalize.Text(values[internal.FieldNotes]),
		Technician:          normalize.Text(values[internal.FieldTechnician]),
		Customer: internal.CustomerFields{
			Name:    normalize.Text(values[internal.FieldCustomerName]),
			Phone:   normalize.Phone(values[internal.FieldCustomerPhone], i.opts.CountryCode),
			Email:   normalize.Email(values[internal.FieldCustomerEmail]),
			Address: normalize.Text(values[internal.FieldCustomerAddress]),
			TaxID:   normalize.Text(values[internal.FieldCustomerTaxID]),
		},
		Device: internal.DeviceFields{
			Type:   normalize.Text(values[internal.FieldDeviceType]),
			Brand:  normalize.Text(values[internal.FieldDeviceBrand]),
			Model:  normalize.Text(values[internal.FieldDeviceModel]),
			Serial: normalize.Text(values[internal.FieldDeviceSerial]),
		},
		Supplier: internal.SupplierFields{
			Name: normalize.Text(values[internal.FieldSupplierName]),
		},
	}

	f.Parts = rec.Parts
	if f.Parts == nil {
		f.Parts = normalize.Parts(values[internal.FieldParts])
	}
	f.Payments = rec.Payments
	if f.Payments == nil {
		f.Payments = normalize.Payments(values[internal.FieldPayments])
	}

	warrantyFallback := i.opts.DefaultWarrantyDays
	if f.GuaranteeTerms != nil && strings.Contains(normalize.Key(*f.GuaranteeTerms), "dia") {
		warrantyFallback = normalize.WarrantyDays(*f.GuaranteeTerms, warrantyFallback)
	}
	f.WarrantyDays = normalize.WarrantyDays(values[internal.FieldWarrantyDays], warrantyFallback)

	var err error
	money := []struct {
		field string
		dst   *decimal.Decimal
	}{
		{internal.FieldPartsCost, &f.PartsCost},
		{internal.FieldServiceCost, &f.ServiceCost},
		{internal.FieldFreightCost, &f.FreightCost},
		{internal.FieldTotalAmount, &f.TotalAmount},
	}
	for _, m := range money {
		raw := values[m.field]
		if raw == "" {
			continue
		}
		if *m.dst, err = normalize.Amount(raw); err != nil {
			return internal.NormalizedOrderFields{}, fmt.Errorf("invalid %s %q: %w", m.field, raw, err)
		}
	}

	if values[internal.FieldPartsCost] == "" && len(f.Parts) > 0 {
		for _, p := range f.Parts {
			f.PartsCost = f.PartsCost.Add(p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity))))
		}
	}
	if values[internal.FieldTotalAmount] == "" {
		f.TotalAmount = f.PartsCost.Add(f.ServiceCost).Add(f.FreightCost)
	}
	return f, nil
}
