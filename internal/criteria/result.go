package criteria

import "strconv"

// Name identifies a criterion.
type Name string

// Criterion names as they appear in TSV headers and the store.
const (
	SpeciesID      Name = "SPECIES_ID"
	TypeSpecimen   Name = "TYPE_SPECIMEN"
	SeqQuality     Name = "SEQ_QUALITY"
	PublicVoucher  Name = "PUBLIC_VOUCHER"
	HasImage       Name = "HAS_IMAGE"
	Identifier     Name = "IDENTIFIER"
	IDMethod       Name = "ID_METHOD"
	Collectors     Name = "COLLECTORS"
	CollectionDate Name = "COLLECTION_DATE"
	Country        Name = "COUNTRY"
	Site           Name = "SITE"
	Coord          Name = "COORD"
	Institution    Name = "INSTITUTION"
	MuseumID       Name = "MUSEUM_ID"
)

// Verdict is the outcome of one criterion for one record.
type Verdict int8

const (
	// Fail means the criterion was assessed and not satisfied.
	Fail Verdict = 0
	// Pass means the criterion was satisfied.
	Pass Verdict = 1
	// Unknown means the criterion could not be assessed.
	Unknown Verdict = -1
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "1"
	case Fail:
		return "0"
	default:
		return ""
	}
}

// ParseVerdict reads a TSV cell. Empty and unrecognised cells are Unknown;
// pandas-style floats ("1.0") are accepted.
func ParseVerdict(cell string) Verdict {
	switch cell {
	case "1", "1.0":
		return Pass
	case "0", "0.0":
		return Fail
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		switch f {
		case 1:
			return Pass
		case 0:
			return Fail
		}
	}
	return Unknown
}

// Result is one criterion verdict for one record.
type Result struct {
	RecordID  int64
	Criterion Name
	Verdict   Verdict
	Note      string
}

// ResultHeader is the header of long-format result files: one row per record
// and criterion.
var ResultHeader = []string{"record_id", "criterion", "status", "notes"}
