package store_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"boldrank/internal/criteria"
	"boldrank/internal/record"
	"boldrank/internal/store"
	"boldrank/internal/taxonomy"
	"boldrank/internal/testsupport"
)

func TestCreateRefusesExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boldrank.db")
	st, err := store.Create(path, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	testsupport.InsertRecords(t, st, map[string]string{"processid": "P1"})
	st.Close()

	if _, err := store.Create(path, false); !errors.Is(err, store.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	st, err = store.Create(path, true)
	if err != nil {
		t.Fatalf("Create overwrite: %v", err)
	}
	defer st.Close()
	count, err := st.RecordCount(context.Background())
	if err != nil {
		t.Fatalf("RecordCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty database after overwrite, got %d records", count)
	}
}

func TestRecordsRoundTripThroughCursor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.SetColumns(ctx, []string{"record_id", "processid", "species"}); err != nil {
		t.Fatalf("SetColumns: %v", err)
	}
	columns, err := st.Columns(ctx)
	if err != nil || len(columns) != 3 || columns[2] != "species" {
		t.Fatalf("Columns = %v, %v", columns, err)
	}

	rows := make([]map[string]string, 25)
	for i := range rows {
		rows[i] = map[string]string{"processid": "P", "species": "Apis mellifera", "nuc": "NA"}
	}
	testsupport.InsertRecords(t, st, rows...)

	cursor := st.Records(ctx, store.PageSize(7))
	var seen int
	var lastID int64
	for {
		rec, err := cursor.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if rec.ID <= lastID {
			t.Fatalf("records out of order: %d after %d", rec.ID, lastID)
		}
		lastID = rec.ID
		if rec.String(record.ColumnSpecies) != "Apis mellifera" {
			t.Fatalf("species lost: %+v", rec.Fields())
		}
		if rec.Has(record.ColumnNucleotides) {
			t.Fatal("null value was stored")
		}
		seen++
	}
	if seen != 25 {
		t.Fatalf("cursor returned %d records, want 25", seen)
	}
}

func TestCreateTaxonReusesExistingNode(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	root := taxonomy.Key{Kingdom: "Animalia", Name: "Animalia", Level: 0}
	rootID, err := st.CreateTaxon(ctx, root)
	if err != nil {
		t.Fatalf("CreateTaxon: %v", err)
	}
	again, err := st.CreateTaxon(ctx, root)
	if err != nil {
		t.Fatalf("CreateTaxon again: %v", err)
	}
	if again != rootID {
		t.Fatalf("duplicate root node: %d vs %d", again, rootID)
	}

	child := taxonomy.Key{Kingdom: "Animalia", Name: "Arthropoda", Level: 1, Parent: rootID}
	childID, err := st.CreateTaxon(ctx, child)
	if err != nil {
		t.Fatalf("CreateTaxon child: %v", err)
	}
	if id, ok, err := st.FindTaxon(ctx, child); err != nil || !ok || id != childID {
		t.Fatalf("FindTaxon child = %d %v %v", id, ok, err)
	}

	orphan := child
	orphan.Parent = 0
	if _, ok, err := st.FindTaxon(ctx, orphan); err != nil || ok {
		t.Fatalf("parentless lookup must not match a child node (ok=%v err=%v)", ok, err)
	}

	key, err := st.Taxon(ctx, childID)
	if err != nil || key != child {
		t.Fatalf("Taxon = %+v, %v", key, err)
	}
}

func TestConcurrentCreateTaxonYieldsOneNode(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	key := taxonomy.Key{Kingdom: "Plantae", Name: "Plantae", Level: 0}

	const writers = 8
	ids := make([]int64, writers)
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids[i], errs[i] = st.CreateTaxon(ctx, key)
		}()
	}
	wg.Wait()

	for i := range writers {
		if errs[i] != nil {
			t.Fatalf("writer %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("writers saw different ids: %v", ids)
		}
	}
	if count, _ := st.TaxonCount(ctx); count != 1 {
		t.Fatalf("taxa = %d, want 1", count)
	}
}

func TestResolverAgainstStoreLinksRecords(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	records := testsupport.InsertRecords(t, st,
		map[string]string{"kingdom": "Animalia", "phylum": "Arthropoda", "genus": "Apis", "species": "Apis mellifera"},
		map[string]string{"kingdom": "Animalia", "phylum": "Arthropoda", "genus": "Apis", "species": "None"},
	)

	resolver := taxonomy.NewResolver(st)
	var links []store.TaxonLink
	for _, rec := range records {
		id, ok, err := resolver.Resolve(ctx, rec)
		if err != nil || !ok {
			t.Fatalf("Resolve(%d) = %d %v %v", rec.ID, id, ok, err)
		}
		links = append(links, store.TaxonLink{RecordID: rec.ID, TaxonID: id})
	}
	if err := st.SetTaxonIDs(ctx, links); err != nil {
		t.Fatalf("SetTaxonIDs: %v", err)
	}

	speciesKey, err := st.Taxon(ctx, links[0].TaxonID)
	if err != nil || speciesKey.Name != "Apis mellifera" || speciesKey.Level != 7 {
		t.Fatalf("record 1 taxon = %+v, %v", speciesKey, err)
	}
	genusKey, err := st.Taxon(ctx, links[1].TaxonID)
	if err != nil || genusKey.Name != "Apis" || genusKey.Level != 6 {
		t.Fatalf("record 2 taxon = %+v, %v", genusKey, err)
	}
	if linked, err := st.TaxonID(ctx, records[0].ID); err != nil || linked != links[0].TaxonID {
		t.Fatalf("TaxonID(%d) = %d, %v", records[0].ID, linked, err)
	}
	if speciesKey.Parent != links[1].TaxonID {
		t.Fatalf("species parent = %d, want genus %d", speciesKey.Parent, links[1].TaxonID)
	}
	if count, _ := st.TaxonCount(ctx); count != 4 {
		t.Fatalf("taxa = %d, want 4", count)
	}

	unlinked := st.Records(ctx, store.OnlyUnlinked())
	if _, err := unlinked.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected no unlinked records, got %v", err)
	}
}

func TestResultsKeepInsertionOrderAndUnknown(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.InsertRecords(t, st, map[string]string{"processid": "P1"})

	first := []criteria.Result{
		{RecordID: 1, Criterion: criteria.HasImage, Verdict: criteria.Unknown, Note: "retries exhausted"},
		{RecordID: 1, Criterion: criteria.SpeciesID, Verdict: criteria.Pass},
	}
	second := []criteria.Result{{RecordID: 1, Criterion: criteria.HasImage, Verdict: criteria.Pass, Note: "https://x/1"}}
	if err := st.SaveResults(ctx, "run-1", first); err != nil {
		t.Fatalf("SaveResults: %v", err)
	}
	if err := st.SaveResults(ctx, "run-2", second); err != nil {
		t.Fatalf("SaveResults: %v", err)
	}

	var got []criteria.Result
	if err := st.EachResult(ctx, func(res criteria.Result) error {
		got = append(got, res)
		return nil
	}); err != nil {
		t.Fatalf("EachResult: %v", err)
	}
	want := append(append([]criteria.Result(nil), first...), second...)
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("result %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	counts, err := st.ResultCounts(ctx)
	if err != nil {
		t.Fatalf("ResultCounts: %v", err)
	}
	if counts[criteria.HasImage][criteria.Unknown] != 1 || counts[criteria.HasImage][criteria.Pass] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestResultsRequireKnownRecord(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	err := st.SaveResults(context.Background(), "", []criteria.Result{{RecordID: 42, Criterion: criteria.Coord}})
	if err == nil {
		t.Fatal("expected foreign key violation for unknown record")
	}
}

func TestSaveTiersUpserts(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.InsertRecords(t, st, map[string]string{}, map[string]string{})

	if err := st.SaveTiers(ctx, "a", []store.Tier{{RecordID: 1, Tier: 3}, {RecordID: 2, Tier: 0}}); err != nil {
		t.Fatalf("SaveTiers: %v", err)
	}
	if err := st.SaveTiers(ctx, "b", []store.Tier{{RecordID: 1, Tier: 1}}); err != nil {
		t.Fatalf("SaveTiers: %v", err)
	}
	tier, ok, err := st.TierOf(ctx, 1)
	if err != nil || !ok || tier != 1 {
		t.Fatalf("TierOf(1) = %d %v %v", tier, ok, err)
	}
	counts, err := st.TierCounts(ctx)
	if err != nil {
		t.Fatalf("TierCounts: %v", err)
	}
	if counts[1] != 1 || counts[0] != 1 || counts[3] != 0 {
		t.Fatalf("counts = %v", counts)
	}
	if err := st.SaveTiers(ctx, "", []store.Tier{{RecordID: 2, Tier: 9}}); err == nil {
		t.Fatal("expected check constraint to reject tier 9")
	}
}

func TestLockWriterIsExclusive(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	unlock, err := st.LockWriter()
	if err != nil {
		t.Fatalf("LockWriter: %v", err)
	}

	other, err := store.Open(st.Path())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer other.Close()
	if _, err := other.LockWriter(); !errors.Is(err, store.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	if err := unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	unlockOther, err := other.LockWriter()
	if err != nil {
		t.Fatalf("LockWriter after unlock: %v", err)
	}
	_ = unlockOther()
}

func TestOpenRejectsOtherSchemaVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	st.Close()

	db, err := sql.Open("sqlite", cfg.Paths.Database)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("set user_version: %v", err)
	}
	db.Close()

	if _, err := store.Open(cfg.Paths.Database); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
