package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"oficina/internal"
	"oficina/internal/metrics"
	"oficina/internal/storage"
)

const account = "acc-1"

func newTestImporter(t *testing.T, store Store, ocr TextExtractor) *Importer {
	t.Helper()
	imp, err := NewImporter(store, ocr, Options{CountryCode: "55"}, zap.NewNop(), nil)
	require.NoError(t, err)
	return imp
}

func importCSV(t *testing.T, imp *Importer, body string) internal.Report {
	t.Helper()
	report, err := imp.Import(context.Background(), ImportRequest{
		AccountID: account,
		FileName:  "ordens.csv",
		Content:   []byte(body),
	})
	require.NoError(t, err)
	return report
}

const mariaRow = "Número;Cliente;Telefone;Status;Total\nOS-001;Maria Silva;11987654321;Concluída;150,00\n"

func TestImportCreatesOrderAndCustomer(t *testing.T) {
	store := newMemStore()
	imp := newTestImporter(t, store, nil)

	report := importCSV(t, imp, mariaRow)
	require.Len(t, report.Entries, 1)
	entry := report.Entries[0]
	assert.Equal(t, "OS-001", entry.ExternalOrderNumber)
	assert.Equal(t, internal.OutcomeCreated, entry.Outcome)
	assert.Equal(t, "csv", report.Format)
	assert.NotEmpty(t, report.RunID)

	cust, err := store.FindCustomerByName(context.Background(), account, "maria silva")
	require.NoError(t, err)
	require.NotNil(t, cust)
	assert.Equal(t, "5511987654321", *cust.Phone)

	order := store.order(account, "OS-001")
	require.NotNil(t, order)
	assert.Equal(t, internal.StatusCompleted, order.Status)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("150.00")))
	assert.Equal(t, cust.ID, *order.CustomerID)
	assert.Equal(t, 90, order.WarrantyDays)
}

func TestCleanRecordHasEmptyMessageList(t *testing.T) {
	imp := newTestImporter(t, newMemStore(), nil)

	report := importCSV(t, imp, "OS;Cliente;Marca;Modelo;Total\n7;Ana;Apple;iPhone 11;10,00\n")
	require.Len(t, report.Entries, 1)
	assert.NotNil(t, report.Entries[0].Messages)
	assert.Empty(t, report.Entries[0].Messages)

	blob, err := json.Marshal(report.Entries[0])
	require.NoError(t, err)
	assert.Contains(t, string(blob), `"messages":[]`)
}

func TestImportUpdatesChangedTotal(t *testing.T) {
	store := newMemStore()
	imp := newTestImporter(t, store, nil)
	importCSV(t, imp, mariaRow)

	report := importCSV(t, imp, "Número;Cliente;Telefone;Status;Total\nOS-001;Maria Silva;(11) 90000-0000;Concluída;180,00\n")
	require.Len(t, report.Entries, 1)
	assert.Equal(t, internal.OutcomeUpdated, report.Entries[0].Outcome)
	assert.Contains(t, report.Entries[0].Messages, "changed: total_amount")

	order := store.order(account, "OS-001")
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("180")))

	assert.Equal(t, 1, store.customerCount())
	cust, _ := store.FindCustomerByName(context.Background(), account, "Maria Silva")
	assert.Equal(t, "5511987654321", *cust.Phone)
}

func TestImportTwiceSkips(t *testing.T) {
	store := newMemStore()
	imp := newTestImporter(t, store, nil)
	body := "OS,Cliente,Marca,Modelo,Defeito,Total\n" +
		"10,Ana,Samsung,A10,Tela quebrada,200\n" +
		"11,Ana,Samsung,A10,Bateria,90\n" +
		"12,Bruno,Apple,iPhone 8,Não liga,350.50\n"

	first := importCSV(t, imp, body)
	for _, e := range first.Entries {
		assert.Equal(t, internal.OutcomeCreated, e.Outcome, e.ExternalOrderNumber)
	}
	second := importCSV(t, imp, body)
	require.Len(t, second.Entries, 3)
	for _, e := range second.Entries {
		assert.Equal(t, internal.OutcomeSkipped, e.Outcome, e.ExternalOrderNumber)
	}
	assert.Equal(t, 0, store.count("UpdateOrder"))
	assert.Equal(t, 2, store.customerCount())
	assert.Equal(t, 2, store.count("InsertDevice"))
}

func TestMissingOrderNumberNeverResolves(t *testing.T) {
	store := newMemStore()
	imp := newTestImporter(t, store, nil)

	report := importCSV(t, imp, "Cliente;Telefone;Total\nMaria Silva;11987654321;150,00\n")
	require.Len(t, report.Entries, 1)
	assert.Equal(t, internal.OutcomeFailed, report.Entries[0].Outcome)
	assert.Contains(t, report.Entries[0].Messages[0], "missing order number")
	assert.Zero(t, store.resolverCalls())
	assert.Zero(t, store.count("InsertCustomer"))
}

func TestBadRecordDoesNotAbortRun(t *testing.T) {
	store := newMemStore()
	imp := newTestImporter(t, store, nil)

	report := importCSV(t, imp, "OS;Cliente;Total\n1;Ana;abc\n;Bruno;10\n3;Carla;25,00\n")
	require.Len(t, report.Entries, 3)
	assert.Equal(t, internal.OutcomeFailed, report.Entries[0].Outcome)
	assert.Contains(t, report.Entries[0].Messages[0], "total_amount")
	assert.Equal(t, internal.OutcomeFailed, report.Entries[1].Outcome)
	assert.Equal(t, internal.OutcomeCreated, report.Entries[2].Outcome)

	counts := report.Counts()
	assert.Equal(t, 2, counts[internal.OutcomeFailed])
	assert.Equal(t, 1, counts[internal.OutcomeCreated])
}

func TestStoreFailureIsPerRecord(t *testing.T) {
	store := newMemStore()
	store.orderErr = errors.New("disk full")
	imp := newTestImporter(t, store, nil)

	report := importCSV(t, imp, "OS;Cliente\n1;Ana\n2;Bruno\n")
	require.Len(t, report.Entries, 2)
	for _, e := range report.Entries {
		assert.Equal(t, internal.OutcomeFailed, e.Outcome)
		assert.Contains(t, e.Messages, "disk full")
	}
}

func TestMissingRelationsAreWarnings(t *testing.T) {
	store := newMemStore()
	store.supplierErr = errors.New("timeout")
	imp := newTestImporter(t, store, nil)

	report := importCSV(t, imp, "OS;Fornecedor;Total\n7;Peças Brasil;10\n")
	require.Len(t, report.Entries, 1)
	e := report.Entries[0]
	assert.Equal(t, internal.OutcomeCreated, e.Outcome)
	require.Len(t, e.Messages, 3)
	assert.Contains(t, e.Messages[0], "missing customer name")
	assert.Contains(t, e.Messages[1], "missing device brand/model")
	assert.Contains(t, e.Messages[2], "timeout")

	order := store.order(account, "7")
	assert.Nil(t, order.CustomerID)
	assert.Nil(t, order.SupplierID)
}

func TestSharedCustomerWithinRunCreatedOnce(t *testing.T) {
	store := newMemStore()
	imp := newTestImporter(t, store, nil)

	report := importCSV(t, imp, "OS;Cliente\n1;João Souza\n2;JOÃO SOUZA\n3; joão  souza \n4;Joao Souza\n")
	for _, e := range report.Entries {
		assert.Equal(t, internal.OutcomeCreated, e.Outcome)
	}
	assert.Equal(t, 2, store.count("InsertCustomer"), "an unaccented spelling is another customer")
	assert.Equal(t, 4, store.count("FindCustomerByName"))
	assert.Equal(t, *store.order(account, "1").CustomerID, *store.order(account, "3").CustomerID)
	assert.NotEqual(t, *store.order(account, "1").CustomerID, *store.order(account, "4").CustomerID)
}

func TestUpdateKeepsStoredRelations(t *testing.T) {
	store := newMemStore()
	imp := newTestImporter(t, store, nil)
	importCSV(t, imp, "OS;Cliente;Total\n5;Ana;10\n")
	before := store.order(account, "5").CustomerID

	report := importCSV(t, imp, "OS;Total\n5;20\n")
	assert.Equal(t, internal.OutcomeUpdated, report.Entries[0].Outcome)
	assert.Equal(t, *before, *store.order(account, "5").CustomerID)
}

func TestCompareFieldsAreConfigurable(t *testing.T) {
	store := newMemStore()
	imp, err := NewImporter(store, nil, Options{CompareFields: []string{"status"}}, nil, nil)
	require.NoError(t, err)

	body := "OS;Status;Total\n1;Aberta;10\n"
	importCSV(t, imp, body)

	report := importCSV(t, imp, "OS;Status;Total\n1;Aberta;99\n")
	assert.Equal(t, internal.OutcomeSkipped, report.Entries[0].Outcome)

	report = importCSV(t, imp, "OS;Status;Total\n1;Concluída;99\n")
	assert.Equal(t, internal.OutcomeUpdated, report.Entries[0].Outcome)

	_, err = NewImporter(store, nil, Options{CompareFields: []string{"colour"}}, nil, nil)
	require.Error(t, err)
}

func TestDerivedAmounts(t *testing.T) {
	store := newMemStore()
	imp := newTestImporter(t, store, nil)

	// tab separated: the parts cell itself contains ;
	importCSV(t, imp, "OS\tPeças\tMão de obra\tFrete\n9\t2x Tela - R$100.00; 1x Bateria - R$50.00\t80,00\t15\n")

	order := store.order(account, "9")
	require.NotNil(t, order)
	require.Len(t, order.Parts, 2)
	assert.True(t, order.PartsCost.Equal(decimal.RequireFromString("250")))
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("345")))
}

func TestImportFatalErrors(t *testing.T) {
	imp := newTestImporter(t, newMemStore(), nil)
	ctx := context.Background()

	_, err := imp.Import(ctx, ImportRequest{FileName: "a.csv", Content: []byte("OS\n1\n")})
	assert.ErrorIs(t, err, ErrMissingAccount)

	_, err = imp.Import(ctx, ImportRequest{AccountID: account, FileName: "a.csv", Content: []byte{}})
	assert.ErrorIs(t, err, ErrEmptyFile)

	_, err = imp.Import(ctx, ImportRequest{AccountID: account, FileName: "a.bin", Content: []byte{0x00, 0x01, 0x02, 0x03}})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = imp.Import(ctx, ImportRequest{AccountID: account, FileName: "a.xlsx", Content: []byte("not a zip")})
	require.Error(t, err)

	// documents need an OCR backend
	_, err = imp.Import(ctx, ImportRequest{AccountID: account, FileName: "scan.png", Content: []byte("\x89PNG\r\n\x1a\n")})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestImportXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Nº OS", "Cliente", "Data de abertura", "Marca", "Modelo", "Valor total"},
		{"A-1", "Maria Silva", "05/03/2024", "Motorola", "G8", 120.5},
		{},
		{"A-2", "Pedro", "2024-03-06", "LG", "K10", 80},
	}
	for r, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+1)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf := bytes.NewBuffer(nil)
	_, err := f.WriteTo(buf)
	require.NoError(t, err)

	store := newMemStore()
	reg := metrics.NewRegistry()
	imp, err := NewImporter(store, nil, Options{CountryCode: "55"}, nil, reg)
	require.NoError(t, err)

	report, err := imp.Import(context.Background(), ImportRequest{AccountID: account, FileName: "export.xlsx", Content: buf.Bytes()})
	require.NoError(t, err)
	require.Len(t, report.Entries, 2)
	assert.Equal(t, "xlsx", report.Format)

	order := store.order(account, "A-1")
	require.NotNil(t, order)
	assert.Equal(t, "2024-03-05T00:00:00Z", *order.OpenedAt)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("120.5")))
	assert.NotNil(t, order.DeviceID)

	assert.Equal(t, 2.0, testutil.ToFloat64(reg.Records.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.Runs.WithLabelValues("xlsx", "ok")))
}

func TestImportHTMLTable(t *testing.T) {
	html := `<html><body>
<table><tr><td>layout only</td></tr></table>
<table>
<tr><th>OS</th><th>Cliente</th><th>Situação</th></tr>
<tr><td>H-1</td><td>Ana</td><td>Aguardando aprovação</td></tr>
</table></body></html>`

	store := newMemStore()
	imp := newTestImporter(t, store, nil)
	report, err := imp.Import(context.Background(), ImportRequest{AccountID: account, FileName: "relatorio.html", Content: []byte(html)})
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, internal.StatusPendingApproval, store.order(account, "H-1").Status)
}

type stubOCR struct {
	text  string
	err   error
	mimes []string
}

func (s *stubOCR) ExtractText(_ context.Context, _ []byte, mime string) (string, error) {
	s.mimes = append(s.mimes, mime)
	return s.text, s.err
}

const scannedOrder = `ASSISTÊNCIA TÉCNICA
OS: 2024-117
Data de abertura: 12/02/2024 14:30
Cliente: Maria Silva
Telefone: (11) 98765-4321
Aparelho: Smartphone
Marca: Samsung
Modelo: Galaxy A52
IMEI: 356938035643809
Defeito: Tela trincada
Serviço realizado: Troca de display
Peças: 1x Display - R$ 320,00
Mão de obra: 80,00
Total: 400,00
Pagamento: Pix - 400,00 - 15/02/2024
Garantia: 90 dias
Status: Entregue
`

func TestImportScannedDocument(t *testing.T) {
	store := newMemStore()
	ocr := &stubOCR{text: scannedOrder}
	imp := newTestImporter(t, store, ocr)

	report, err := imp.Import(context.Background(), ImportRequest{AccountID: account, FileName: "os-117.pdf", Content: []byte("%PDF-1.4\n")})
	require.NoError(t, err)
	require.Len(t, report.Entries, 1)
	assert.Equal(t, internal.OutcomeCreated, report.Entries[0].Outcome)
	assert.Equal(t, []string{"application/pdf"}, ocr.mimes)

	order := store.order(account, "2024-117")
	require.NotNil(t, order)
	assert.Equal(t, internal.StatusCompleted, order.Status)
	assert.Equal(t, "2024-02-12T14:30:00Z", *order.OpenedAt)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("400")))
	assert.True(t, order.PartsCost.Equal(decimal.RequireFromString("320")))
	require.Len(t, order.Payments, 1)
	assert.Equal(t, "Pix", order.Payments[0].Method)
	assert.NotNil(t, order.DeviceID)
	assert.Equal(t, 90, order.WarrantyDays)
}

func TestImportDocumentWithoutText(t *testing.T) {
	imp := newTestImporter(t, newMemStore(), &stubOCR{text: "  \n"})
	_, err := imp.Import(context.Background(), ImportRequest{AccountID: account, FileName: "blank.png", Content: []byte("\x89PNG\r\n\x1a\n")})
	assert.ErrorIs(t, err, ErrNoExtractableText)

	imp = newTestImporter(t, newMemStore(), &stubOCR{err: errors.New("tesseract missing")})
	_, err = imp.Import(context.Background(), ImportRequest{AccountID: account, FileName: "scan.jpg", Content: []byte{0xff, 0xd8, 0xff}})
	assert.ErrorIs(t, err, ErrNoExtractableText)
}

func TestImportAgainstSQLite(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer db.Close()

	imp := newTestImporter(t, db, nil)
	first := importCSV(t, imp, mariaRow)
	assert.Equal(t, internal.OutcomeCreated, first.Entries[0].Outcome)

	second := importCSV(t, imp, mariaRow)
	assert.Equal(t, internal.OutcomeSkipped, second.Entries[0].Outcome)

	third := importCSV(t, imp, "Número;Cliente;Total\nOS-001;maria silva;180,00\n")
	assert.Equal(t, internal.OutcomeUpdated, third.Entries[0].Outcome)

	n, err := db.CountOrders(context.Background(), account)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cust, err := db.FindCustomerByName(context.Background(), account, "Maria Silva")
	require.NoError(t, err)
	assert.Equal(t, "5511987654321", *cust.Phone)
}
