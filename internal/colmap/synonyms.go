package colmap

// Field is a logical column of the normalized record schema.
type Field string

const (
	FieldReference   Field = "reference"
	FieldTaxID       Field = "tax_id"
	FieldIssuerName  Field = "issuer_name"
	FieldPayerName   Field = "payer_name"
	FieldPeriodStart Field = "period_start"
	FieldPeriodEnd   Field = "period_end"
	FieldDate        Field = "date"
	FieldNetAmount   Field = "net_amount"
	FieldWithheld    Field = "withheld_amount"
	FieldGrossAmount Field = "gross_amount"
	FieldCategory    Field = "category"
	FieldRate        Field = "rate"
)

// FieldOrder is the claiming priority: identity fields first, then dates,
// then monetary fields. Net-amount and withheld synonyms MUST run before the
// gross-amount synonyms: "importância recebida" and "valor retido" would
// otherwise be captured by the looser "importância"/"valor" substrings and be
// misread as gross.
var FieldOrder = []Field{
	FieldReference,
	FieldTaxID,
	FieldIssuerName,
	FieldPayerName,
	FieldPeriodStart,
	FieldPeriodEnd,
	FieldDate,
	FieldNetAmount,
	FieldWithheld,
	FieldGrossAmount,
	FieldCategory,
	FieldRate,
}

// SynonymTable lists, per logical field, the header spellings seen across the
// known export layouts. Data-driven so a new layout is an additive change.
type SynonymTable map[Field][]string

// DefaultSynonyms covers the independent-worker receipt and rental-income
// receipt layouts.
func DefaultSynonyms() SynonymTable {
	return SynonymTable{
		FieldReference: {
			"referência", "nº do recibo", "n.º do recibo", "número do recibo",
			"nº do contrato", "contrato", "recibo", "documento",
		},
		FieldTaxID: {
			"nif do emitente", "nif do sujeito passivo", "nif", "nipc", "contribuinte",
		},
		FieldIssuerName: {
			"nome do emitente", "nome do sujeito passivo", "emitente",
			"senhorio", "locador",
		},
		FieldPayerName: {
			"nome do adquirente", "adquirente", "entidade pagadora",
			"arrendatário", "locatário", "pagador",
		},
		FieldPeriodStart: {
			"data de início", "início do período", "período de",
		},
		FieldPeriodEnd: {
			"data de fim", "fim do período", "período até",
		},
		FieldDate: {
			"data de emissão", "data do recibo", "data de pagamento",
			"data de recebimento", "data",
		},
		FieldNetAmount: {
			"importância recebida", "valor recebido", "montante recebido",
			"valor líquido", "líquido",
		},
		FieldWithheld: {
			"retenção na fonte", "valor retido", "irs retido", "imposto retido",
			"retenção",
		},
		FieldGrossAmount: {
			"valor bruto", "valor base", "valor do recibo", "importância",
			"montante", "renda", "valor",
		},
		FieldCategory: {
			"tipo de rendimento", "natureza", "categoria", "tipo",
		},
		FieldRate: {
			"taxa de retenção", "taxa irs", "% retenção", "taxa", "irs",
		},
	}
}
