package glossary

import "testing"

func TestNewIndex_Empty(t *testing.T) {
	idx := NewIndex(nil)

	if idx.Len() != 0 {
		t.Errorf("expected empty index, got %d entries", idx.Len())
	}
	if hits := idx.Relevant("any text with Cloud in it"); hits != nil {
		t.Errorf("empty index must match nothing, got %v", hits)
	}
}

func TestRelevant_Basic(t *testing.T) {
	idx := NewIndex([]Entry{
		{Original: "Qi", Translated: "Ці"},
		{Original: "sect", Translated: "секта"},
	})

	hits := idx.Relevant("He gathered Qi before entering the sect gates.")

	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d: %v", len(hits), hits)
	}
}

func TestRelevant_CaseInsensitive(t *testing.T) {
	idx := NewIndex([]Entry{{Original: "Frozen Cloud", Translated: "Замерзла Хмара"}})

	hits := idx.Relevant("the FROZEN cloud rose above them")

	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Translated != "Замерзла Хмара" {
		t.Errorf("wrong entry returned: %+v", hits[0])
	}
}

func TestRelevant_LongestTermPrecedence(t *testing.T) {
	// "Cloud" is a substring of "Frozen Cloud Asgard"; the longer term must
	// win and no spurious hit may be emitted for the shorter one inside the
	// same span.
	idx := NewIndex([]Entry{
		{Original: "Cloud", Translated: "Хмара"},
		{Original: "Frozen Cloud Asgard", Translated: "Замерзлий Хмарний Асгард"},
	})

	hits := idx.Relevant("She returned to Frozen Cloud Asgard at dawn.")

	if len(hits) != 1 {
		t.Fatalf("expected exactly 1 hit, got %d: %v", len(hits), hits)
	}
	if hits[0].Original != "Frozen Cloud Asgard" {
		t.Errorf("expected the longer term to win, got %q", hits[0].Original)
	}
}

func TestRelevant_BothTermsWhenSeparate(t *testing.T) {
	idx := NewIndex([]Entry{
		{Original: "Cloud", Translated: "Хмара"},
		{Original: "Frozen Cloud Asgard", Translated: "Замерзлий Хмарний Асгард"},
	})

	hits := idx.Relevant("A lone cloud drifted past Frozen Cloud Asgard.")

	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d: %v", len(hits), hits)
	}
}

func TestRelevant_Deduplication(t *testing.T) {
	idx := NewIndex([]Entry{{Original: "sword", Translated: "меч"}})

	hits := idx.Relevant("sword against sword, Sword against SWORD")

	if len(hits) != 1 {
		t.Fatalf("expected repeated matches collapsed to 1, got %d", len(hits))
	}
}

func TestNewIndex_DuplicateOriginals(t *testing.T) {
	idx := NewIndex([]Entry{
		{Original: "Elder", Translated: "Старійшина"},
		{Original: "elder", Translated: "старший"},
	})

	if idx.Len() != 1 {
		t.Fatalf("case-insensitive duplicates must collapse, got %d entries", idx.Len())
	}
	hits := idx.Relevant("the Elder spoke")
	if len(hits) != 1 || hits[0].Translated != "Старійшина" {
		t.Errorf("first occurrence must win, got %v", hits)
	}
}

func TestNewIndex_EscapesMetaCharacters(t *testing.T) {
	idx := NewIndex([]Entry{{Original: "A.I. Core", Translated: "ядро ШІ"}})

	if hits := idx.Relevant("the AxIy Core hummed"); len(hits) != 0 {
		t.Errorf("dot must be literal, got %v", hits)
	}
	if hits := idx.Relevant("the A.I. Core hummed"); len(hits) != 1 {
		t.Errorf("literal match failed, got %v", hits)
	}
}
