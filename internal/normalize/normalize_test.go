package normalize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oficina/internal"
)

func TestPhone(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  *string
	}{
		{name: "mobile with area code", input: "11987654321", want: sp("5511987654321")},
		{name: "formatted", input: "(11) 98765-4321", want: sp("5511987654321")},
		{name: "already international", input: "+55 11 98765-4321", want: sp("5511987654321")},
		{name: "trunk prefix", input: "011 3333-4444", want: sp("551133334444")},
		{name: "area code 55", input: "55 3333-4444", want: sp("555533334444")},
		{name: "too short", input: "98765-432", want: nil},
		{name: "garbage", input: "n/a", want: nil},
		{name: "empty", input: "", want: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Phone(tc.input, "55"))
		})
	}
}

func TestPhoneIdempotent(t *testing.T) {
	inputs := []string{"11987654321", "(21) 2222-3333", "+55 (11) 98765-4321", "5533334444", "0800 123 4567", "1234567890123"}
	for _, in := range inputs {
		first := Phone(in, "55")
		require.NotNil(t, first, in)
		second := Phone(*first, "55")
		require.NotNil(t, second, in)
		assert.Equal(t, *first, *second, in)
	}
}

func TestTimestamp(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{input: "05/03/2024", want: "2024-03-05T00:00:00Z"},
		{input: "5/3/2024 14:30", want: "2024-03-05T14:30:00Z"},
		{input: "05/03/2024 14:30:15", want: "2024-03-05T14:30:15Z"},
		{input: "2024-03-05", want: "2024-03-05T00:00:00Z"},
		{input: "2024-03-05 08:15", want: "2024-03-05T08:15:00Z"},
		{input: "2024-03-05T08:15:00", want: "2024-03-05T08:15:00Z"},
		{input: "2024-03-05T23:15:00-03:00", want: "2024-03-05T23:15:00-03:00"},
		{input: "45356", want: "2024-03-05T00:00:00Z"},
	}

	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got := Timestamp(tc.input)
			require.NotNil(t, got)
			assert.Equal(t, tc.want, *got)
		})
	}
}

func TestTimestampCalendarDate(t *testing.T) {
	inputs := map[string]string{
		"31/12/2023":                "2023-12-31",
		"31/12/2023 23:59":          "2023-12-31",
		"2023-12-31":                "2023-12-31",
		"2023-12-31 23:59:59":       "2023-12-31",
		"2023-12-31T23:59:59+05:00": "2023-12-31",
		"2023-12-31T00:30:00-03:00": "2023-12-31",
		"12/02/2024 02:30 PM":       "2024-02-12",
		"05/03/2024 10:00:00 -0300": "2024-03-05",
	}
	for in, date := range inputs {
		got := Timestamp(in)
		require.NotNil(t, got, in)
		assert.Equal(t, date, (*got)[:10], in)
		again := Timestamp(*got)
		require.NotNil(t, again, in)
		assert.Equal(t, *got, *again, in)
	}
}

func TestTimestampUnparseable(t *testing.T) {
	assert.Nil(t, Timestamp(""))
	assert.Nil(t, Timestamp("sem data"))
	assert.Nil(t, Timestamp("99/99/9999"))
}

func TestStatus(t *testing.T) {
	cases := map[string]internal.OrderStatus{
		"":                     internal.StatusPending,
		"Aberta":               internal.StatusPending,
		"Aguardando peça":      internal.StatusPending,
		"Em andamento":         internal.StatusInProgress,
		"Orçamento aprovado":   internal.StatusInProgress,
		"Aguardando aprovação": internal.StatusPendingApproval,
		"pending approval":     internal.StatusPendingApproval,
		"Concluída":            internal.StatusCompleted,
		"ENTREGUE":             internal.StatusCompleted,
		"Cancelada":            internal.StatusCancelled,
		"xyz":                  internal.StatusInProgress,
		"Novo":                 internal.StatusPending,
		"new":                  internal.StatusPending,
		"Aparelho renovado":    internal.StatusInProgress,
		"renewed":              internal.StatusInProgress,
	}
	for in, want := range cases {
		assert.Equal(t, want, Status(in), in)
	}
}

func TestAmount(t *testing.T) {
	cases := map[string]string{
		"150,00":      "150",
		"R$ 1.234,56": "1234.56",
		"R$100.00":    "100",
		"1,234.56":    "1234.56",
		"1.234":       "1234",
		"1.234.567":   "1234567",
		"-50,5":       "-50.5",
		"":            "0",
	}
	for in, want := range cases {
		got, err := Amount(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "%s: got %s want %s", in, got, want)
	}

	_, err := Amount("a combinar")
	assert.Error(t, err)
}

func TestParts(t *testing.T) {
	got := Parts("2x Tela - R$100.00; 1x Bateria - R$50.00")
	require.Len(t, got, 2)
	assert.Equal(t, "Tela", got[0].Description)
	assert.Equal(t, 2, got[0].Quantity)
	assert.True(t, got[0].UnitPrice.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "Bateria", got[1].Description)
	assert.Equal(t, 1, got[1].Quantity)
	assert.True(t, got[1].UnitPrice.Equal(decimal.NewFromInt(50)))
}

func TestPartsKeepsUnparsableItems(t *testing.T) {
	got := Parts("1x Cabo USB-C - R$ 25,90;  Mão de obra ; ")
	require.Len(t, got, 2)
	assert.Equal(t, "Cabo USB-C", got[0].Description)
	assert.True(t, got[0].UnitPrice.Equal(decimal.RequireFromString("25.90")))
	assert.Equal(t, "Mão de obra", got[1].Description)
	assert.Equal(t, 1, got[1].Quantity)
	assert.True(t, got[1].UnitPrice.IsZero())

	assert.Nil(t, Parts("  "))
}

func TestPayments(t *testing.T) {
	got := Payments("Pix - 100,00 - 01/02/2024; Cartão - 50,00; Dinheiro - 0; Boleto")
	require.Len(t, got, 2)
	assert.Equal(t, "Pix", got[0].Method)
	assert.True(t, got[0].Amount.Equal(decimal.NewFromInt(100)))
	require.NotNil(t, got[0].PaidAt)
	assert.Equal(t, "2024-02-01T00:00:00Z", *got[0].PaidAt)
	assert.Equal(t, "Cartão", got[1].Method)
	assert.Nil(t, got[1].PaidAt)
}

func TestPaymentsISODate(t *testing.T) {
	got := Payments("Pix - 80,00 - 2024-02-01")
	require.Len(t, got, 1)
	require.NotNil(t, got[0].PaidAt)
	assert.Equal(t, "2024-02-01T00:00:00Z", *got[0].PaidAt)
}

func TestKeyAndWarranty(t *testing.T) {
	assert.Equal(t, "maria silva", Key("  MARIA   Silva "))
	assert.Equal(t, "jose", Key("José"))
	assert.Equal(t, 180, WarrantyDays("180 dias", 90))
	assert.Equal(t, 90, WarrantyDays("sem garantia", 90))
}

func sp(v string) *string { return &v }
