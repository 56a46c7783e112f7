package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"oficina/internal"
	"oficina/internal/normalize"
)

// labelRule maps a set of label synonyms to one canonical field. The same
// synonyms drive "Label: value" extraction from document text and the
// header aliasing of tabular files.
type labelRule struct {
	field  string
	labels string

	line   *regexp.Regexp
	header *regexp.Regexp
}

// Order matters only for header aliasing: the first rule whose labels match a
// header wins.
var labelRules = compileRules([]labelRule{
	{field: internal.FieldOrderNumber, labels: `n[uú]mero\s+da\s+os|n[º°o]\.?\s*(?:da\s+)?os|os\s*n[º°o]\.?|ordem\s+de\s+servi[cç]o(?:\s+n[º°o]\.?)?|os|n[uú]mero|order\s+(?:number|no\.?)|order`},
	{field: internal.FieldOpenedAt, labels: `data\s+(?:de\s+)?abertura|abertura|data\s+(?:de\s+)?entrada|entrada|data|opened(?:\s+at)?|open\s+date|date`},
	{field: internal.FieldClosedAt, labels: `data\s+(?:de\s+)?fechamento|fechamento|data\s+(?:de\s+)?entrega|entrega|data\s+(?:de\s+)?sa[ií]da|sa[ií]da|conclu[ií]da\s+em|closed(?:\s+at)?|close\s+date`},
	{field: internal.FieldStatus, labels: `status|situa[cç][aã]o|estado`},
	{field: internal.FieldCustomerName, labels: `nome\s+do\s+cliente|cliente|nome|customer(?:\s+name)?|client`},
	{field: internal.FieldCustomerPhone, labels: `telefone(?:\s+do\s+cliente)?|tel\.?|fone|celular|whats\s*app|phone`},
	{field: internal.FieldCustomerEmail, labels: `e-?mail(?:\s+do\s+cliente)?`},
	{field: internal.FieldCustomerAddress, labels: `endere[cç]o|address`},
	{field: internal.FieldCustomerTaxID, labels: `cpf\s*/\s*cnpj|cpf|cnpj|documento|tax\s+id`},
	{field: internal.FieldDeviceType, labels: `tipo(?:\s+de\s+aparelho)?|aparelho|equipamento|device(?:\s+type)?`},
	{field: internal.FieldDeviceBrand, labels: `marca|fabricante|brand`},
	{field: internal.FieldDeviceModel, labels: `modelo|model`},
	{field: internal.FieldDeviceSerial, labels: `n[uú]mero\s+de\s+s[eé]rie|n[º°o]\.?\s*(?:de\s+)?s[eé]rie|s[eé]rie|serial|imei|identificador`},
	{field: internal.FieldSupplierName, labels: `fornecedor|supplier`},
	{field: internal.FieldIssueDescription, labels: `defeito(?:\s+relatado)?|problema|descri[cç][aã]o\s+do\s+problema|reclama[cç][aã]o|issue|problem`},
	{field: internal.FieldServiceDetails, labels: `servi[cç]os?(?:\s+realizados?)?|laudo|solu[cç][aã]o|service(?:\s+details)?`},
	{field: internal.FieldParts, labels: `pe[cç]as(?:\s+utilizadas)?|itens|parts`},
	{field: internal.FieldPartsCost, labels: `valor\s+(?:das\s+)?pe[cç]as|custo\s+(?:das\s+)?pe[cç]as|parts\s+cost`},
	{field: internal.FieldServiceCost, labels: `m[aã]o\s+de\s+obra|valor\s+(?:do\s+)?servi[cç]o|service\s+cost|labou?r`},
	{field: internal.FieldFreightCost, labels: `frete|freight(?:\s+cost)?|shipping`},
	{field: internal.FieldTotalAmount, labels: `valor\s+total|total(?:\s+amount)?|valor|amount`},
	{field: internal.FieldPayments, labels: `pagamentos?|formas?\s+de\s+pagamento|payments?`},
	{field: internal.FieldWarrantyDays, labels: `dias\s+de\s+garantia|prazo\s+de\s+garantia|warranty\s+days`},
	{field: internal.FieldGuaranteeTerms, labels: `termos\s+de\s+garantia|garantia|guarantee|warranty`},
	{field: internal.FieldNotes, labels: `observa[cç](?:[aã]o|[oõ]es)|obs\.?|notas|notes`},
	{field: internal.FieldTechnician, labels: `t[eé]cnico(?:\s+respons[aá]vel)?|respons[aá]vel|technician`},
})

func compileRules(rules []labelRule) []labelRule {
	for i := range rules {
		labels := rules[i].labels + `|` + regexp.QuoteMeta(rules[i].field)
		rules[i].line = regexp.MustCompile(`(?im)^[ \t]*(?:` + labels + `)[ \t]*:[ \t]*(\S[^\r\n]*?)[ \t]*\r?$`)
		rules[i].header = regexp.MustCompile(`(?i)^\s*(?:` + labels + `)\s*:?\s*$`)
	}
	return rules
}

// fieldForHeader returns the canonical field key for a column header, or ""
// when the column is not recognised.
func fieldForHeader(header string) string {
	h := normalize.Spaces(strings.ReplaceAll(header, "_", " "))
	if h == "" {
		return ""
	}
	for _, r := range labelRules {
		if r.header.MatchString(h) || r.header.MatchString(strings.ReplaceAll(h, " ", "_")) {
			return r.field
		}
	}
	return ""
}

// ExtractFields reads "Label: value" lines from free text into one record.
// Fields without a matching line are absent. Parts and payments are parsed
// into their structured form and removed from the flat map.
func ExtractFields(text string) internal.ImportRecord {
	rec := internal.ImportRecord{Line: 1, Values: map[string]string{}}
	for _, r := range labelRules {
		matches := r.line.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		rec.Values[r.field] = normalize.Spaces(matches[0][1])

		if r.field == internal.FieldOrderNumber {
			if extra := extraOrderNumbers(matches); len(extra) > 0 {
				rec.Warnings = append(rec.Warnings, fmt.Sprintf(
					"document mentions more than one order number; only %s was imported, ignored: %s",
					rec.Values[r.field], strings.Join(extra, ", ")))
			}
		}
	}

	if raw, ok := rec.Values[internal.FieldParts]; ok {
		rec.Parts = normalize.Parts(raw)
		delete(rec.Values, internal.FieldParts)
	}
	if raw, ok := rec.Values[internal.FieldPayments]; ok {
		rec.Payments = normalize.Payments(raw)
		delete(rec.Values, internal.FieldPayments)
	}
	return rec
}

func extraOrderNumbers(matches [][]string) []string {
	first := normalize.Key(matches[0][1])
	seen := map[string]struct{}{first: {}}
	var out []string
	for _, m := range matches[1:] {
		k := normalize.Key(m[1])
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, normalize.Spaces(m[1]))
	}
	return out
}
