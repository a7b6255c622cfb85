package extract

import (
	"context"
)

// Document points a recognition run at one uploaded file. The binary content
// stays behind the payload reference; it is never carried through the queue.
type Document struct {
	PayloadRef string
	Year       int
}

// Fields is the structured result of a recognition run. Monetary values stay
// as raw strings: the recognition service reads them off scans, so they go
// through the same normalizers and reconciler as spreadsheet cells.
type Fields struct {
	Reference  string `json:"reference,omitempty"`
	TaxID      string `json:"tax_id,omitempty"`
	IssuerName string `json:"issuer_name,omitempty"`
	PayerName  string `json:"payer_name,omitempty"`
	Date       string `json:"date,omitempty"`
	Gross      string `json:"gross_amount,omitempty"`
	Withheld   string `json:"withheld_amount,omitempty"`
	Net        string `json:"net_amount,omitempty"`
	Rate       string `json:"rate,omitempty"`
	Category   string `json:"category,omitempty"`
}

// Result carries the fields plus the run's own confidence score and the raw
// payload for auditing.
type Result struct {
	Fields     Fields
	Confidence float32
	Raw        []byte
}

// FieldExtractor is the external recognition collaborator: document in,
// structured fields plus confidence out. Its internals are out of scope; the
// queue treats it as an opaque, possibly slow, I/O-bound call.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, doc Document) (Result, error)
}
