package criteria

import (
	"errors"
	"fmt"
	"strings"

	"boldrank/internal/record"
)

// ErrUnknownCriterion reports a selector naming no registered criterion.
var ErrUnknownCriterion = errors.New("unknown criterion")

var registry = map[Name]predicate{
	SpeciesID:      {name: SpeciesID, columns: []string{record.ColumnSpecies}, assess: assessSpecies},
	TypeSpecimen:   {name: TypeSpecimen, columns: []string{record.ColumnTaxonomyNotes}, assess: assessTypeSpecimen},
	SeqQuality:     {name: SeqQuality, columns: []string{record.ColumnNucleotides}, assess: assessSequence},
	PublicVoucher:  {name: PublicVoucher, columns: []string{record.ColumnVoucherType}, assess: assessVoucher},
	HasImage:       {name: HasImage, columns: []string{record.ColumnProcessID}, assess: delegated},
	Identifier:     {name: Identifier, columns: []string{record.ColumnIdentifiedBy}, assess: assessIdentifier},
	IDMethod:       {name: IDMethod, columns: []string{record.ColumnIdentificationMethod}, assess: assessMethod},
	Collectors:     {name: Collectors, columns: []string{record.ColumnCollectors}, assess: present(record.ColumnCollectors)},
	CollectionDate: {name: CollectionDate, columns: []string{record.ColumnCollectionDateStart, record.ColumnCollectionDateEnd}, assess: assessCollectionDate},
	Country:        {name: Country, columns: []string{record.ColumnCountry}, assess: present(record.ColumnCountry)},
	Site:           {name: Site, columns: []string{record.ColumnSite}, assess: present(record.ColumnSite)},
	Coord:          {name: Coord, columns: []string{record.ColumnCoord}, assess: present(record.ColumnCoord)},
	Institution:    {name: Institution, columns: []string{record.ColumnInstitution}, assess: assessInstitution},
	MuseumID:       {name: MuseumID, columns: []string{record.ColumnMuseumID}, assess: present(record.ColumnMuseumID)},
}

// All returns every criterion name in ranking-report order.
func All() []Name {
	return []Name{
		SpeciesID, TypeSpecimen, SeqQuality, PublicVoucher, HasImage,
		Identifier, IDMethod, Collectors, CollectionDate, Country,
		Site, Coord, Institution, MuseumID,
	}
}

// IsDelegated reports whether the criterion is assessed outside this package.
func IsDelegated(name Name) bool {
	return name == HasImage
}

// ParseName normalizes a selector such as "seq_quality" to its Name.
func ParseName(selector string) (Name, error) {
	name := Name(strings.ToUpper(strings.TrimSpace(selector)))
	if _, ok := registry[name]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCriterion, selector)
	}
	return name, nil
}

// Lookup resolves selectors to criteria, failing on the first unknown name.
// An empty selector list selects every criterion.
func Lookup(selectors ...string) ([]Criterion, error) {
	if len(selectors) == 0 {
		out := make([]Criterion, 0, len(registry))
		for _, name := range All() {
			out = append(out, registry[name])
		}
		return out, nil
	}
	seen := make(map[Name]struct{}, len(selectors))
	out := make([]Criterion, 0, len(selectors))
	for _, selector := range selectors {
		name, err := ParseName(selector)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, registry[name])
	}
	return out, nil
}
