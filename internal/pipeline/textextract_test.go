package pipeline

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oficina/internal"
)

func TestExtractFieldsLabels(t *testing.T) {
	rec := ExtractFields(scannedOrder)

	assert.Equal(t, "2024-117", rec.Values[internal.FieldOrderNumber])
	assert.Equal(t, "12/02/2024 14:30", rec.Values[internal.FieldOpenedAt])
	assert.Equal(t, "Maria Silva", rec.Values[internal.FieldCustomerName])
	assert.Equal(t, "(11) 98765-4321", rec.Values[internal.FieldCustomerPhone])
	assert.Equal(t, "Smartphone", rec.Values[internal.FieldDeviceType])
	assert.Equal(t, "Samsung", rec.Values[internal.FieldDeviceBrand])
	assert.Equal(t, "Galaxy A52", rec.Values[internal.FieldDeviceModel])
	assert.Equal(t, "356938035643809", rec.Values[internal.FieldDeviceSerial])
	assert.Equal(t, "Tela trincada", rec.Values[internal.FieldIssueDescription])
	assert.Equal(t, "Troca de display", rec.Values[internal.FieldServiceDetails])
	assert.Equal(t, "80,00", rec.Values[internal.FieldServiceCost])
	assert.Equal(t, "400,00", rec.Values[internal.FieldTotalAmount])
	assert.Equal(t, "Entregue", rec.Values[internal.FieldStatus])
	assert.Equal(t, "90 dias", rec.Values[internal.FieldGuaranteeTerms])
	assert.Empty(t, rec.Warnings)

	_, hasClosed := rec.Values[internal.FieldClosedAt]
	assert.False(t, hasClosed)
	_, hasParts := rec.Values[internal.FieldParts]
	assert.False(t, hasParts, "parts move to the structured field")
	_, hasPayments := rec.Values[internal.FieldPayments]
	assert.False(t, hasPayments)

	require.Len(t, rec.Parts, 1)
	assert.Equal(t, "Display", rec.Parts[0].Description)
	assert.True(t, rec.Parts[0].UnitPrice.Equal(decimal.RequireFromString("320")))
	require.Len(t, rec.Payments, 1)
	assert.Equal(t, "2024-02-15T00:00:00Z", *rec.Payments[0].PaidAt)
}

func TestExtractFieldsUnaccentedAndCase(t *testing.T) {
	text := "NUMERO DA OS: 55\nSERVICO: limpeza\nobservacoes: cliente volta amanha\nTECNICO: Rafa\n"
	rec := ExtractFields(text)
	assert.Equal(t, "55", rec.Values[internal.FieldOrderNumber])
	assert.Equal(t, "limpeza", rec.Values[internal.FieldServiceDetails])
	assert.Equal(t, "cliente volta amanha", rec.Values[internal.FieldNotes])
	assert.Equal(t, "Rafa", rec.Values[internal.FieldTechnician])
}

func TestExtractFieldsIgnoresEmptyLabels(t *testing.T) {
	rec := ExtractFields("OS: 9\nCliente:\nModelo: X1\n")
	_, ok := rec.Values[internal.FieldCustomerName]
	assert.False(t, ok)
	assert.Equal(t, "X1", rec.Values[internal.FieldDeviceModel])
}

func TestExtractFieldsWarnsOnSeveralOrders(t *testing.T) {
	rec := ExtractFields("OS: 100\nCliente: Ana\n\nOS: 101\nCliente: Bia\nOS: 100\n")
	assert.Equal(t, "100", rec.Values[internal.FieldOrderNumber])
	assert.Equal(t, "Ana", rec.Values[internal.FieldCustomerName])
	require.Len(t, rec.Warnings, 1)
	assert.Contains(t, rec.Warnings[0], "101")
	assert.NotContains(t, rec.Warnings[0], "100,")
}

func TestFieldForHeader(t *testing.T) {
	cases := map[string]string{
		"Número":           internal.FieldOrderNumber,
		"Nº OS":            internal.FieldOrderNumber,
		"order_number":     internal.FieldOrderNumber,
		"Número de série":  internal.FieldDeviceSerial,
		"Cliente":          internal.FieldCustomerName,
		"CPF/CNPJ":         internal.FieldCustomerTaxID,
		"E-mail":           internal.FieldCustomerEmail,
		"Valor total":      internal.FieldTotalAmount,
		"Total":            internal.FieldTotalAmount,
		"Valor das peças":  internal.FieldPartsCost,
		"Mão de obra":      internal.FieldServiceCost,
		"Garantia":         internal.FieldGuaranteeTerms,
		"Dias de garantia": internal.FieldWarrantyDays,
		"Situação":         internal.FieldStatus,
		"customer_phone":   internal.FieldCustomerPhone,
		"Cor":              "",
		"":                 "",
	}
	for header, want := range cases {
		assert.Equal(t, want, fieldForHeader(header), header)
	}
}

func TestCanonicalValuesIsStable(t *testing.T) {
	values := canonicalValues(map[string]string{
		"Valor":       "10",
		"Valor total": "20",
		"Cor":         "azul",
		"Cliente":     "  ",
	})
	assert.Equal(t, map[string]string{internal.FieldTotalAmount: "10"}, values)
}
