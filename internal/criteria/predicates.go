package criteria

import (
	"strings"
	"unicode/utf8"

	"boldrank/internal/record"
)

// Criterion is a named predicate over one record.
type Criterion interface {
	Name() Name
	// Columns lists the input columns the predicate reads.
	Columns() []string
	Assess(rec record.Record) (Verdict, string)
}

type predicate struct {
	name    Name
	columns []string
	assess  func(record.Record) (Verdict, string)
}

func (p predicate) Name() Name        { return p.name }
func (p predicate) Columns() []string { return append([]string(nil), p.columns...) }

func (p predicate) Assess(rec record.Record) (Verdict, string) {
	return p.assess(rec)
}

const minSequenceLength = 500

var (
	typeSpecimenTerms = newMatcher(
		"holotype", "lectotype", "isotype", "syntype", "paratype",
		"neotype", "allotype", "paralectotype", "hapantotype", "cotype",
	)

	voucherAllow = newMatcher(
		"herb", "museum", "registered", "type", "national", "CBG", "INHS",
		"deposit", "harbarium", "hebarium", "holot",
	)
	voucherDeny = newMatcher(
		"DNA", "e-vouch", "privat", "no voucher", "unvouchered", "destr", "lost",
		"missing", "no specimen", "none", "not vouchered", "person",
		"Photo Voucher Only", "not registered",
	)

	automatedIdentifiers = map[string]struct{}{
		"Kate Perez":     {},
		"Angela Telfer":  {},
		"BOLD ID Engine": {},
	}

	methodAllow = newMatcher(
		"descr", "det", "diss", "exam", "expert", "genit", "identifier", "key",
		"label", "literature", "micros", "mor", "taxonomic", "type", "vou",
		"guide", "flora", "specimen", "traditional", "visual", "wing", "logical",
		"knowledge", "photo", "verified",
	)
	methodDeny = newMatcher(
		"barco", "BOLD", "CO1", "COI", "COX", "DNA", "mole", "phylo", "sequ",
		"tree", "bin", "silva", "ncbi", "engine", "blast", "genbank", "genetic",
		"its",
	)

	institutionDeny = newMatcher(
		"genbank", "no voucher", "personal", "private", "research collection of",
		"unknown", "unvouchered",
	)
)

// matcher does case-insensitive substring containment against a fixed list.
type matcher struct {
	terms []string
}

func newMatcher(terms ...string) matcher {
	lowered := make([]string, len(terms))
	for i, term := range terms {
		lowered[i] = strings.ToLower(term)
	}
	return matcher{terms: lowered}
}

// find returns the first term contained in text.
func (m matcher) find(text string) (string, bool) {
	lowered := strings.ToLower(text)
	for _, term := range m.terms {
		if strings.Contains(lowered, term) {
			return term, true
		}
	}
	return "", false
}

func verdict(ok bool) Verdict {
	if ok {
		return Pass
	}
	return Fail
}

func assessSpecies(rec record.Record) (Verdict, string) {
	species, ok := rec.Present(record.ColumnSpecies)
	if !ok {
		return Fail, ""
	}
	if strings.Contains(species, "sp.") {
		return Fail, "open nomenclature"
	}
	return Pass, ""
}

func assessSequence(rec record.Record) (Verdict, string) {
	nuc, ok := rec.Present(record.ColumnNucleotides)
	if !ok {
		return Fail, ""
	}
	return verdict(utf8.RuneCountInString(strings.ReplaceAll(nuc, "-", "")) > minSequenceLength), ""
}

func assessTypeSpecimen(rec record.Record) (Verdict, string) {
	notes, ok := rec.Present(record.ColumnTaxonomyNotes)
	if !ok {
		return Fail, ""
	}
	term, found := typeSpecimenTerms.find(notes)
	return verdict(found), term
}

// allowUnlessDenied passes when value contains an allow term and no deny term.
// The note names the deciding term.
func allowUnlessDenied(value string, allow, deny matcher) (Verdict, string) {
	term, allowed := allow.find(value)
	if !allowed {
		return Fail, ""
	}
	if denied, hit := deny.find(value); hit {
		return Fail, denied
	}
	return Pass, term
}

func assessVoucher(rec record.Record) (Verdict, string) {
	value, ok := rec.Present(record.ColumnVoucherType)
	if !ok {
		return Fail, ""
	}
	return allowUnlessDenied(value, voucherAllow, voucherDeny)
}

func assessIdentifier(rec record.Record) (Verdict, string) {
	who, ok := rec.Present(record.ColumnIdentifiedBy)
	if !ok {
		return Fail, ""
	}
	if _, automated := automatedIdentifiers[who]; automated {
		return Fail, "automated identifier"
	}
	return Pass, ""
}

func assessMethod(rec record.Record) (Verdict, string) {
	value, ok := rec.Present(record.ColumnIdentificationMethod)
	if !ok {
		return Fail, ""
	}
	return allowUnlessDenied(value, methodAllow, methodDeny)
}

func assessInstitution(rec record.Record) (Verdict, string) {
	value, ok := rec.Present(record.ColumnInstitution)
	if !ok {
		return Fail, ""
	}
	if term, denied := institutionDeny.find(value); denied {
		return Fail, term
	}
	return Pass, ""
}

func filled(rec record.Record, column string) bool {
	_, ok := rec.Present(column)
	return ok
}

func assessCollectionDate(rec record.Record) (Verdict, string) {
	return verdict(filled(rec, record.ColumnCollectionDateStart) || filled(rec, record.ColumnCollectionDateEnd)), ""
}

func present(column string) func(record.Record) (Verdict, string) {
	return func(rec record.Record) (Verdict, string) {
		return verdict(filled(rec, column)), ""
	}
}

func delegated(record.Record) (Verdict, string) {
	return Unknown, "assessed by the image checker"
}
