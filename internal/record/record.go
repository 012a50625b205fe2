package record

import (
	"maps"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Column names used by the ranking stages. Upstream dumps carry many more; the
// rest travel through untouched.
const (
	ColumnRecordID             = "record_id"
	ColumnProcessID            = "processid"
	ColumnBIN                  = "bin_uri"
	ColumnSpecies              = "species"
	ColumnNucleotides          = "nuc"
	ColumnTaxonomyNotes        = "taxonomy_notes"
	ColumnVoucherType          = "voucher_type"
	ColumnIdentifiedBy         = "identified_by"
	ColumnIdentificationMethod = "identification_method"
	ColumnCollectors           = "collectors"
	ColumnCollectionDateStart  = "collection_date_start"
	ColumnCollectionDateEnd    = "collection_date_end"
	ColumnCountry              = "country/ocean"
	ColumnSite                 = "site"
	ColumnCoord                = "coord"
	ColumnInstitution          = "inst"
	ColumnMuseumID             = "museumid"
	ColumnRanking              = "ranking"
)

var naTokens = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"n/a":  {},
	"NULL": {},
	"null": {},
	"NaN":  {},
	"nan":  {},
	"<NA>": {},
}

// Placeholder is how BOLD dumps spell a field the provider left unset. It is
// kept as a value; Present reads it as null.
const Placeholder = "None"

// Record is one specimen row. Columns missing from fields are null.
type Record struct {
	ID     int64
	fields map[string]string
}

// New builds a record, dropping null values and normalizing the rest.
func New(id int64, fields map[string]string) Record {
	rec := Record{ID: id, fields: make(map[string]string, len(fields))}
	for column, value := range fields {
		if normalized, ok := NormalizeValue(value); ok {
			rec.fields[column] = normalized
		}
	}
	return rec
}

// Value returns the column value and whether it is non-null.
func (r Record) Value(column string) (string, bool) {
	value, ok := r.fields[column]
	return value, ok
}

// Has reports whether the column is non-null.
func (r Record) Has(column string) bool {
	_, ok := r.fields[column]
	return ok
}

// Present returns the column value unless it is null or the placeholder.
func (r Record) Present(column string) (string, bool) {
	value, ok := r.fields[column]
	if !ok || value == Placeholder {
		return "", false
	}
	return value, true
}

// String returns the column value or "" when null.
func (r Record) String(column string) string {
	return r.fields[column]
}

// Fields returns a copy of the non-null values.
func (r Record) Fields() map[string]string {
	return maps.Clone(r.fields)
}

// Len reports the number of non-null columns.
func (r Record) Len() int {
	return len(r.fields)
}

// NormalizeValue maps NA tokens to null and returns the NFC form of everything
// else.
func NormalizeValue(value string) (string, bool) {
	if _, na := naTokens[value]; na {
		return "", false
	}
	return norm.NFC.String(value), true
}

// CanonicalColumn normalizes a header cell. Producers spell the record id
// column in several ways (record_id, recordid, recordID, "Record ID"); they all
// map to ColumnRecordID. Other names are only trimmed.
func CanonicalColumn(name string) string {
	trimmed := strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
	folded := cases.Fold().String(trimmed)
	folded = strings.NewReplacer("_", "", "-", "", " ", "").Replace(folded)
	if folded == "recordid" {
		return ColumnRecordID
	}
	return trimmed
}
