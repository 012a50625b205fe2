package ranking

import (
	"strconv"

	"boldrank/internal/criteria"
)

// Tier is a data-quality rank: 1 is best, 6 is worst ranked, 0 is unranked.
type Tier int

// Tier bounds.
const (
	Unranked Tier = 0
	Best     Tier = 1
	Worst    Tier = 6
)

func (t Tier) String() string { return strconv.Itoa(int(t)) }

// Verdicts holds one verdict per criterion for a record. Missing entries are
// unassessed.
type Verdicts map[criteria.Name]criteria.Verdict

func (v Verdicts) pass(name criteria.Name) bool {
	return v[name] == criteria.Pass
}

func (v Verdicts) all(names ...criteria.Name) bool {
	for _, name := range names {
		if !v.pass(name) {
			return false
		}
	}
	return true
}

func (v Verdicts) any(names ...criteria.Name) bool {
	for _, name := range names {
		if v.pass(name) {
			return true
		}
	}
	return false
}

// Rule is one row of the decision table.
type Rule struct {
	Tier        Tier
	Description string
	Match       func(Verdicts) bool
}

var rules = []Rule{
	{
		Tier:        1,
		Description: "TYPE_SPECIMEN",
		Match: func(v Verdicts) bool {
			return v.pass(criteria.TypeSpecimen)
		},
	},
	{
		Tier: 2,
		Description: "SEQ_QUALITY, HAS_IMAGE, COLLECTORS, COLLECTION_DATE, COUNTRY, SITE, COORD, IDENTIFIER, " +
			"ID_METHOD or INSTITUTION, PUBLIC_VOUCHER or MUSEUM_ID",
		Match: func(v Verdicts) bool {
			return v.all(criteria.SeqQuality, criteria.HasImage, criteria.Collectors, criteria.CollectionDate,
				criteria.Country, criteria.Site, criteria.Coord, criteria.Identifier) &&
				v.any(criteria.IDMethod, criteria.Institution) &&
				v.any(criteria.PublicVoucher, criteria.MuseumID)
		},
	},
	{
		Tier:        3,
		Description: "SEQ_QUALITY, HAS_IMAGE, COUNTRY, IDENTIFIER or ID_METHOD, INSTITUTION or PUBLIC_VOUCHER or MUSEUM_ID",
		Match: func(v Verdicts) bool {
			return v.all(criteria.SeqQuality, criteria.HasImage, criteria.Country) &&
				v.any(criteria.Identifier, criteria.IDMethod) &&
				v.any(criteria.Institution, criteria.PublicVoucher, criteria.MuseumID)
		},
	},
	{
		Tier:        4,
		Description: "SEQ_QUALITY, HAS_IMAGE, COUNTRY",
		Match: func(v Verdicts) bool {
			return v.all(criteria.SeqQuality, criteria.HasImage, criteria.Country)
		},
	},
	{
		Tier:        5,
		Description: "SEQ_QUALITY, HAS_IMAGE",
		Match: func(v Verdicts) bool {
			return v.all(criteria.SeqQuality, criteria.HasImage)
		},
	},
	{
		Tier:        6,
		Description: "SEQ_QUALITY",
		Match: func(v Verdicts) bool {
			return v.pass(criteria.SeqQuality)
		},
	},
}

// Rules returns the decision table in evaluation order.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// Rank returns the tier for a record's verdicts. SPECIES_ID gates every rule.
func Rank(v Verdicts) Tier {
	if !v.pass(criteria.SpeciesID) {
		return Unranked
	}
	for _, rule := range rules {
		if rule.Match(v) {
			return rule.Tier
		}
	}
	return Unranked
}

// Distribution counts records per tier.
type Distribution [Worst + 1]int

// Add counts one record.
func (d *Distribution) Add(t Tier) {
	if t >= Unranked && t <= Worst {
		d[t]++
	}
}

// Total returns the number of counted records.
func (d Distribution) Total() int {
	var n int
	for _, c := range d {
		n += c
	}
	return n
}
