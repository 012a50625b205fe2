package ranking

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"boldrank/internal/criteria"
	"boldrank/internal/record"
)

func passing(names ...criteria.Name) Verdicts {
	v := make(Verdicts)
	for _, name := range names {
		v[name] = criteria.Pass
	}
	return v
}

func everything() Verdicts {
	return passing(criteria.All()...)
}

func TestRankDecisionTable(t *testing.T) {
	tier2 := []criteria.Name{
		criteria.SpeciesID, criteria.SeqQuality, criteria.HasImage, criteria.Collectors, criteria.CollectionDate,
		criteria.Country, criteria.Site, criteria.Coord, criteria.Identifier, criteria.Institution, criteria.MuseumID,
	}
	tests := []struct {
		name string
		v    Verdicts
		want Tier
	}{
		{"empty", Verdicts{}, Unranked},
		{"species only", passing(criteria.SpeciesID), Unranked},
		{"type specimen", passing(criteria.SpeciesID, criteria.TypeSpecimen), 1},
		{"type specimen beats everything", everything(), 1},
		{"tier 2", passing(tier2...), 2},
		{"tier 3 via id method and voucher", passing(criteria.SpeciesID, criteria.SeqQuality, criteria.HasImage,
			criteria.Country, criteria.IDMethod, criteria.PublicVoucher), 3},
		{"tier 4", passing(criteria.SpeciesID, criteria.SeqQuality, criteria.HasImage, criteria.Country), 4},
		{"tier 5", passing(criteria.SpeciesID, criteria.SeqQuality, criteria.HasImage), 5},
		{"tier 6", passing(criteria.SpeciesID, criteria.SeqQuality), 6},
		{"no sequence", passing(criteria.SpeciesID, criteria.HasImage, criteria.Country), Unranked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rank(tt.v); got != tt.want {
				t.Fatalf("Rank = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRankGateOverridesEverything(t *testing.T) {
	v := everything()
	v[criteria.SpeciesID] = criteria.Fail
	if got := Rank(v); got != Unranked {
		t.Fatalf("failed species gate ranked %d", got)
	}
	delete(v, criteria.SpeciesID)
	if got := Rank(v); got != Unranked {
		t.Fatalf("missing species gate ranked %d", got)
	}
}

func TestUnknownCountsAsFailing(t *testing.T) {
	v := passing(criteria.SpeciesID, criteria.SeqQuality, criteria.Country)
	v[criteria.HasImage] = criteria.Unknown
	if got := Rank(v); got != 6 {
		t.Fatalf("unknown image ranked %d, want 6", got)
	}
}

// Every combination of the criteria the rules read must land on the first
// matching rule, and a tier above 0 implies the species gate passed.
func TestRankIsFirstMatchingRule(t *testing.T) {
	names := criteria.All()
	for mask := 0; mask < 1<<len(names); mask += 7 {
		v := make(Verdicts)
		for i, name := range names {
			if mask&(1<<i) != 0 {
				v[name] = criteria.Pass
			} else {
				v[name] = criteria.Fail
			}
		}
		want := Unranked
		if v[criteria.SpeciesID] == criteria.Pass {
			for _, rule := range Rules() {
				if rule.Match(v) {
					want = rule.Tier
					break
				}
			}
		}
		got := Rank(v)
		if got != want {
			t.Fatalf("mask %b: Rank = %d, want %d", mask, got, want)
		}
		if got < Unranked || got > Worst {
			t.Fatalf("mask %b: tier %d out of range", mask, got)
		}
		if got >= Best && v[criteria.SpeciesID] != criteria.Pass {
			t.Fatalf("mask %b: ranked without species", mask)
		}
	}
}

func TestIndexPrecedence(t *testing.T) {
	first := criteria.Result{RecordID: 1, Criterion: criteria.HasImage, Verdict: criteria.Fail}
	second := criteria.Result{RecordID: 1, Criterion: criteria.HasImage, Verdict: criteria.Pass}

	latest := NewIndex(PreferLatest)
	latest.Add(first)
	latest.Add(second)
	if v, _ := latest.Lookup(1); v[criteria.HasImage] != criteria.Pass {
		t.Fatalf("latest kept %v", v[criteria.HasImage])
	}
	if latest.Replaced() != 1 {
		t.Fatalf("replaced = %d", latest.Replaced())
	}

	earliest := NewIndex(PreferEarliest)
	earliest.Add(first)
	earliest.Add(second)
	if v, _ := earliest.Lookup(1); v[criteria.HasImage] != criteria.Fail {
		t.Fatalf("earliest kept %v", v[criteria.HasImage])
	}

	if _, err := ParsePrecedence("newest"); err == nil {
		t.Fatal("expected error for unknown precedence")
	}
}

func TestLoadLongAndWide(t *testing.T) {
	idx := NewIndex(PreferLatest)

	long := "record_id\tcriterion\tstatus\tnotes\n" +
		"1\tSPECIES_ID\t1\t\n" +
		"1\tSEQ_QUALITY\t1\t600 bases\n" +
		"2\tbogus\t1\t\n" +
		"x\tSPECIES_ID\t1\t\n"
	stats, err := idx.LoadLong(strings.NewReader(long))
	if err != nil {
		t.Fatalf("LoadLong: %v", err)
	}
	if stats.Results != 2 || len(stats.Skipped) != 2 {
		t.Fatalf("long stats = %+v", stats)
	}

	headerless := "1\tHAS_IMAGE\t0\t\n"
	if _, err := idx.LoadLong(strings.NewReader(headerless)); err != nil {
		t.Fatalf("LoadLong headerless: %v", err)
	}

	wide := "recordID\tHAS_IMAGE\tCOUNTRY\tother\n" +
		"1\t1.0\t\tx\n" +
		"3\t0\t1\ty\n"
	stats, err = idx.LoadWide(strings.NewReader(wide))
	if err != nil {
		t.Fatalf("LoadWide: %v", err)
	}
	if stats.Results != 3 {
		t.Fatalf("wide stats = %+v", stats)
	}

	v, ok := idx.Lookup(1)
	if !ok || v[criteria.HasImage] != criteria.Pass || v[criteria.SeqQuality] != criteria.Pass {
		t.Fatalf("record 1 = %v", v)
	}
	if _, has := v[criteria.Country]; has {
		t.Fatal("empty wide cell should add no verdict")
	}
	if got := idx.Criteria(); len(got) != 4 {
		t.Fatalf("criteria = %v", got)
	}

	if _, err := NewIndex(PreferLatest).LoadWide(strings.NewReader("record_id\tfoo\n1\t2\n")); err == nil {
		t.Fatal("expected error for wide file without criterion columns")
	}
}

func TestApplyLeftJoinsAndAppendsRanking(t *testing.T) {
	idx := NewIndex(PreferLatest)
	for _, res := range []criteria.Result{
		{RecordID: 1, Criterion: criteria.SpeciesID, Verdict: criteria.Pass},
		{RecordID: 1, Criterion: criteria.TypeSpecimen, Verdict: criteria.Pass},
		{RecordID: 2, Criterion: criteria.SpeciesID, Verdict: criteria.Pass},
		{RecordID: 2, Criterion: criteria.SeqQuality, Verdict: criteria.Pass},
		{RecordID: 2, Criterion: criteria.HasImage, Verdict: criteria.Unknown},
	} {
		idx.Add(res)
	}

	in := "record_id\tspecies\tHAS_IMAGE\tranking\n" +
		"1\tApis mellifera\t\t9\n" +
		"2\tBombus terrestris\t1\t\n" +
		"3\tNA\t1\t\n" +
		"4\tbroken row\n"
	var out bytes.Buffer
	var chunks []int
	summary, err := Apply(context.Background(), strings.NewReader(in), idx, &out, ApplyOptions{
		ChunkSize: 2,
		OnChunk:   func(rows int) { chunks = append(chunks, rows) },
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	wantHeader := "record_id\tspecies\tHAS_IMAGE\tranking\tSPECIES_ID\tTYPE_SPECIMEN\tSEQ_QUALITY"
	if lines[0] != wantHeader {
		t.Fatalf("header = %q\nwant     %q", lines[0], wantHeader)
	}
	want := []string{
		"1\tApis mellifera\t\t1\t1\t1\t",
		"2\tBombus terrestris\t\t6\t1\t\t1",
		"3\t\t1\t0\t\t\t",
	}
	if len(lines)-1 != len(want) {
		t.Fatalf("got %d rows: %q", len(lines)-1, lines)
	}
	for i, row := range want {
		if lines[i+1] != row {
			t.Fatalf("row %d = %q, want %q", i+1, lines[i+1], row)
		}
	}

	if summary.Unmatched != 1 || len(summary.BadRows) != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.Distribution[1] != 1 || summary.Distribution[6] != 1 || summary.Distribution[0] != 1 {
		t.Fatalf("distribution = %v", summary.Distribution)
	}
	if len(chunks) != 2 || chunks[0] != 2 || chunks[1] != 3 {
		t.Fatalf("chunks = %v", chunks)
	}
}

func TestEndToEndHolotypeIsTierOne(t *testing.T) {
	engine, err := criteria.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	rec := record.New(7, map[string]string{
		record.ColumnSpecies:       "Apis mellifera",
		record.ColumnNucleotides:   strings.Repeat("ACGT", 150),
		record.ColumnTaxonomyNotes: "holotype",
	})
	idx := NewIndex(PreferLatest)
	for _, res := range engine.Assess(rec) {
		idx.Add(res)
	}
	verdicts, _ := Merge(rec, idx)
	if got := Rank(verdicts); got != 1 {
		t.Fatalf("holotype ranked %d", got)
	}
}

func TestEndToEndMissingSpeciesIsUnranked(t *testing.T) {
	idx := NewIndex(PreferLatest)
	for _, name := range criteria.All() {
		idx.Add(criteria.Result{RecordID: 1, Criterion: name, Verdict: criteria.Pass})
	}
	engine, err := criteria.NewEngine(string(criteria.SpeciesID))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	rec := record.New(1, map[string]string{record.ColumnSpecies: "NA"})
	for _, res := range engine.Assess(rec) {
		idx.Add(res)
	}
	verdicts, _ := Merge(rec, idx)
	if got := Rank(verdicts); got != Unranked {
		t.Fatalf("record without species ranked %d", got)
	}
}

func TestEndToEndGenusOnlyIsUnranked(t *testing.T) {
	engine, err := criteria.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	rec := record.New(1, map[string]string{
		record.ColumnSpecies:      "None",
		"genus":                   "Apis",
		record.ColumnNucleotides:  strings.Repeat("ACGT", 150),
		record.ColumnCollectors:   "None",
		record.ColumnCountry:      "None",
		record.ColumnInstitution:  "None",
		record.ColumnIdentifiedBy: "None",
	})
	idx := NewIndex(PreferLatest)
	for _, res := range engine.Assess(rec) {
		if res.Criterion != criteria.SeqQuality && res.Verdict == criteria.Pass {
			t.Errorf("%s passed on placeholder values", res.Criterion)
		}
		idx.Add(res)
	}
	verdicts, _ := Merge(rec, idx)
	if got := Rank(verdicts); got != Unranked {
		t.Fatalf("genus-only record ranked %d", got)
	}
}

type recordSlice struct {
	records []record.Record
}

func (s *recordSlice) Next() (record.Record, error) {
	if len(s.records) == 0 {
		return record.Record{}, io.EOF
	}
	rec := s.records[0]
	s.records = s.records[1:]
	return rec, nil
}

func TestRankAllReportsEveryRecord(t *testing.T) {
	idx := NewIndex(PreferLatest)
	idx.Add(criteria.Result{RecordID: 1, Criterion: criteria.SpeciesID, Verdict: criteria.Pass})
	idx.Add(criteria.Result{RecordID: 1, Criterion: criteria.SeqQuality, Verdict: criteria.Pass})
	src := &recordSlice{records: []record.Record{record.New(1, nil), record.New(2, nil)}}

	tiers := map[int64]Tier{}
	summary, err := RankAll(context.Background(), src, idx, func(rec record.Record, tier Tier) error {
		tiers[rec.ID] = tier
		return nil
	})
	if err != nil {
		t.Fatalf("RankAll: %v", err)
	}
	if tiers[1] != 6 || tiers[2] != Unranked || summary.Unmatched != 1 || summary.Distribution.Total() != 2 {
		t.Fatalf("tiers = %v summary = %+v", tiers, summary)
	}
}
