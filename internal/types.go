package internal

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending         OrderStatus = "pending"
	StatusInProgress      OrderStatus = "in_progress"
	StatusPendingApproval OrderStatus = "pending_approval"
	StatusCompleted       OrderStatus = "completed"
	StatusCancelled       OrderStatus = "cancelled"
)

type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Canonical field keys shared by the tabular header aliases and the
// structured-text label table.
const (
	FieldOrderNumber      = "order_number"
	FieldOpenedAt         = "opened_at"
	FieldClosedAt         = "closed_at"
	FieldStatus           = "status"
	FieldCustomerName     = "customer_name"
	FieldCustomerPhone    = "customer_phone"
	FieldCustomerEmail    = "customer_email"
	FieldCustomerAddress  = "customer_address"
	FieldCustomerTaxID    = "customer_tax_id"
	FieldDeviceType       = "device_type"
	FieldDeviceBrand      = "device_brand"
	FieldDeviceModel      = "device_model"
	FieldDeviceSerial     = "device_serial"
	FieldSupplierName     = "supplier_name"
	FieldIssueDescription = "issue_description"
	FieldServiceDetails   = "service_details"
	FieldParts            = "parts"
	FieldPartsCost        = "parts_cost"
	FieldServiceCost      = "service_cost"
	FieldFreightCost      = "freight_cost"
	FieldTotalAmount      = "total_amount"
	FieldPayments         = "payments"
	FieldGuaranteeTerms   = "guarantee_terms"
	FieldWarrantyDays     = "warranty_days"
	FieldNotes            = "notes"
	FieldTechnician       = "technician"
)

// ImportRecord is one logical work order as read from the source file.
// Values is keyed by source column or label name; Parts and Payments are only
// set by adapters that already parsed them.
type ImportRecord struct {
	Line     int
	Values   map[string]string
	Parts    []PartItem
	Payments []Payment
	Warnings []string
}

type PartItem struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type Payment struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
	PaidAt *string         `json:"paid_at"`
}

type CustomerFields struct {
	Name    *string
	Phone   *string
	Email   *string
	Address *string
	TaxID   *string
}

type DeviceFields struct {
	Type   *string
	Brand  *string
	Model  *string
	Serial *string
}

type SupplierFields struct {
	Name *string
}

type NormalizedOrderFields struct {
	ExternalOrderNumber string
	OpenedAt            *string
	ClosedAt            *string
	Status              OrderStatus
	IssueDescription    *string
	ServiceDetails      *string
	PartsCost           decimal.Decimal
	ServiceCost         decimal.Decimal
	TotalAmount         decimal.Decimal
	FreightCost         decimal.Decimal
	Parts               []PartItem
	Payments            []Payment
	GuaranteeTerms      *string
	WarrantyDays        int
	Notes               *string
	Technician          *string

	Customer CustomerFields
	Device   DeviceFields
	Supplier SupplierFields
}

type Customer struct {
	ID        int64
	AccountID string
	Name      string
	Phone     *string
	Email     *string
	Address   *string
	TaxID     *string
	CreatedAt string
}

type DeviceKey struct {
	Brand  string
	Model  string
	Serial string
}

type Device struct {
	ID         int64
	AccountID  string
	CustomerID *int64
	Type       *string
	Brand      string
	Model      string
	Serial     *string
	CreatedAt  string
}

type Supplier struct {
	ID        int64
	AccountID string
	Name      string
	CreatedAt string
}

type ServiceOrder struct {
	ID                  int64
	AccountID           string
	ExternalOrderNumber string
	CustomerID          *int64
	DeviceID            *int64
	SupplierID          *int64
	Status              OrderStatus
	OpenedAt            *string
	ClosedAt            *string
	IssueDescription    *string
	ServiceDetails      *string
	PartsCost           decimal.Decimal
	ServiceCost         decimal.Decimal
	FreightCost         decimal.Decimal
	TotalAmount         decimal.Decimal
	Parts               []PartItem
	Payments            []Payment
	GuaranteeTerms      *string
	WarrantyDays        int
	Notes               *string
	Technician          *string
	CreatedAt           string
	UpdatedAt           string
}

type ReportEntry struct {
	ExternalOrderNumber string   `json:"external_order_number"`
	Outcome             Outcome  `json:"outcome"`
	Messages            []string `json:"messages"`
}

type Report struct {
	RunID      string        `json:"run_id"`
	AccountID  string        `json:"account_id"`
	FileName   string        `json:"file_name"`
	Format     string        `json:"format"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Entries    []ReportEntry `json:"entries"`
}

func (r Report) Counts() map[Outcome]int {
	out := map[Outcome]int{
		OutcomeCreated: 0,
		OutcomeUpdated: 0,
		OutcomeSkipped: 0,
		OutcomeFailed:  0,
	}
	for _, e := range r.Entries {
		out[e.Outcome]++
	}
	return out
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
