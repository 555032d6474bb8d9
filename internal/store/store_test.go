package store

import (
	"context"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "kazkar_test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGlossaryRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.AddTerm(ctx, "en", "uk", "Frozen Cloud", "Крижана Хмара"); err != nil {
		t.Fatalf("AddTerm: %v", err)
	}
	if err := s.AddTerm(ctx, "en", "uk", "dantian", "дантянь"); err != nil {
		t.Fatalf("AddTerm: %v", err)
	}

	entries, err := s.Entries(ctx, "en", "uk")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Original != "Frozen Cloud" || entries[0].Translated != "Крижана Хмара" {
		t.Errorf("unexpected first entry: %+v", entries[0])
	}

	// Other language pairs stay invisible.
	other, err := s.Entries(ctx, "en", "de")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("en->de should be empty, got %+v", other)
	}
}

func TestAddTerm_CaseInsensitiveReplace(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.AddTerm(ctx, "en", "uk", "dantian", "дань"); err != nil {
		t.Fatalf("AddTerm: %v", err)
	}
	if err := s.AddTerm(ctx, "en", "uk", "Dantian", "дантянь"); err != nil {
		t.Fatalf("AddTerm: %v", err)
	}

	entries, err := s.Entries(ctx, "en", "uk")
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("case-differing originals must collapse to one row, got %d", len(entries))
	}
	if entries[0].Translated != "дантянь" {
		t.Errorf("translated = %q, want the replacement", entries[0].Translated)
	}
}

func TestListAndDeleteTerms(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.AddTerm(ctx, "en", "uk", "sect", "секта"); err != nil {
		t.Fatalf("AddTerm: %v", err)
	}
	if err := s.AddTerm(ctx, "zh", "uk", "丹田", "дантянь"); err != nil {
		t.Fatalf("AddTerm: %v", err)
	}

	all, err := s.ListTerms(ctx, "", "")
	if err != nil {
		t.Fatalf("ListTerms: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d terms, want 2", len(all))
	}

	onlyZh, err := s.ListTerms(ctx, "zh", "")
	if err != nil {
		t.Fatalf("ListTerms: %v", err)
	}
	if len(onlyZh) != 1 || onlyZh[0].Original != "丹田" {
		t.Errorf("filter by source lang failed: %+v", onlyZh)
	}

	if err := s.DeleteTerm(ctx, onlyZh[0].ID); err != nil {
		t.Fatalf("DeleteTerm: %v", err)
	}
	if err := s.DeleteTerm(ctx, onlyZh[0].ID); err == nil {
		t.Error("deleting a missing term should error")
	}
}

func TestChapterMemory(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, hit, err := s.GetChapter(ctx, "source", "en", "uk", "standard"); err != nil || hit {
		t.Fatalf("empty store: hit=%v err=%v", hit, err)
	}

	if err := s.SaveChapter(ctx, "source", "en", "uk", "standard", "openai", "переклад"); err != nil {
		t.Fatalf("SaveChapter: %v", err)
	}

	got, hit, err := s.GetChapter(ctx, "source", "en", "uk", "standard")
	if err != nil {
		t.Fatalf("GetChapter: %v", err)
	}
	if !hit || got != "переклад" {
		t.Errorf("hit=%v got=%q", hit, got)
	}

	// Mode participates in the key: a two-pass result never shadows standard.
	if _, hit, err := s.GetChapter(ctx, "source", "en", "uk", "two_pass"); err != nil || hit {
		t.Errorf("different mode must miss: hit=%v err=%v", hit, err)
	}

	// Whitespace and NFC differences hit the same row.
	if _, hit, err := s.GetChapter(ctx, "  source \n", "en", "uk", "standard"); err != nil || !hit {
		t.Errorf("normalized key must hit: hit=%v err=%v", hit, err)
	}

	entries, err := s.ListChapters(ctx)
	if err != nil {
		t.Fatalf("ListChapters: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	// One save plus two hits.
	if entries[0].UsageCount != 3 {
		t.Errorf("usage count = %d, want 3", entries[0].UsageCount)
	}
	if entries[0].Provider != "openai" {
		t.Errorf("provider = %q", entries[0].Provider)
	}

	n, err := s.ClearChapters(ctx)
	if err != nil {
		t.Fatalf("ClearChapters: %v", err)
	}
	if n != 1 {
		t.Errorf("cleared %d rows, want 1", n)
	}
}

func TestCheckpointLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, err := s.CreateCheckpoint(ctx, "/in", "/out", "uk")
	if err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}

	cp, err := s.GetCheckpoint(ctx, id)
	if err != nil {
		t.Fatalf("GetCheckpoint: %v", err)
	}
	if cp.InputDir != "/in" || cp.OutputDir != "/out" || cp.TargetLang != "uk" {
		t.Errorf("unexpected checkpoint: %+v", cp)
	}
	if cp.Status != "running" {
		t.Errorf("status = %q, want running", cp.Status)
	}

	if err := s.MarkFileDone(ctx, id, "ch001.txt"); err != nil {
		t.Fatalf("MarkFileDone: %v", err)
	}
	if err := s.MarkFileDone(ctx, id, "ch002.txt"); err != nil {
		t.Fatalf("MarkFileDone: %v", err)
	}
	// Marking twice is harmless.
	if err := s.MarkFileDone(ctx, id, "ch001.txt"); err != nil {
		t.Fatalf("MarkFileDone repeat: %v", err)
	}

	done, err := s.DoneFiles(ctx, id)
	if err != nil {
		t.Fatalf("DoneFiles: %v", err)
	}
	if len(done) != 2 || !done["ch001.txt"] || !done["ch002.txt"] {
		t.Errorf("done set = %v", done)
	}

	if err := s.CompleteCheckpoint(ctx, id); err != nil {
		t.Fatalf("CompleteCheckpoint: %v", err)
	}
	cp, err = s.GetCheckpoint(ctx, id)
	if err != nil {
		t.Fatalf("GetCheckpoint: %v", err)
	}
	if cp.Status != "completed" {
		t.Errorf("status = %q, want completed", cp.Status)
	}

	if _, err := s.GetCheckpoint(ctx, "no-such-id"); err == nil {
		t.Error("missing checkpoint should error")
	}
}

func TestStats(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.AddTerm(ctx, "en", "uk", "sect", "секта"); err != nil {
		t.Fatalf("AddTerm: %v", err)
	}
	if err := s.SaveChapter(ctx, "a", "en", "uk", "standard", "openai", "а"); err != nil {
		t.Fatalf("SaveChapter: %v", err)
	}
	if err := s.SaveChapter(ctx, "b", "en", "uk", "standard", "openai", "б"); err != nil {
		t.Fatalf("SaveChapter: %v", err)
	}
	if _, _, err := s.GetChapter(ctx, "a", "en", "uk", "standard"); err != nil {
		t.Fatalf("GetChapter: %v", err)
	}
	if _, err := s.CreateCheckpoint(ctx, "/in", "/out", "uk"); err != nil {
		t.Fatalf("CreateCheckpoint: %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Chapters != 2 || st.GlossaryTerms != 1 || st.Checkpoints != 1 {
		t.Errorf("stats = %+v", st)
	}
	// Two saves at count 1 each, one bumped by a hit.
	if st.TotalUsage != 3 {
		t.Errorf("total usage = %d, want 3", st.TotalUsage)
	}
}
