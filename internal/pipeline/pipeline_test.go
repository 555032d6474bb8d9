package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/valpere/kazkar/internal/errclass"
	"github.com/valpere/kazkar/internal/glossary"
	"github.com/valpere/kazkar/internal/orchestrator"
	"github.com/valpere/kazkar/internal/provider"
)

// echoProvider prefixes each chunk so tests can tell translated output from
// source text. Calls are recorded in order; pipeline runs are sequential so
// no locking is needed.
type echoProvider struct {
	systems      []string
	texts        []string
	generateFunc func(system, text string) (string, error)
}

func (e *echoProvider) Name() string { return "echo" }

func (e *echoProvider) SupportsStreaming() bool { return true }

func (e *echoProvider) Generate(ctx context.Context, system, text string) (string, error) {
	e.systems = append(e.systems, system)
	e.texts = append(e.texts, text)
	if e.generateFunc != nil {
		return e.generateFunc(system, text)
	}
	return "[translated] " + text, nil
}

func (e *echoProvider) GenerateStream(ctx context.Context, system, text string, onDelta func(string)) (string, error) {
	out, err := e.Generate(ctx, system, text)
	if err != nil {
		return "", err
	}
	for _, w := range strings.SplitAfter(out, " ") {
		if onDelta != nil {
			onDelta(w)
		}
	}
	return out, nil
}

func testOptions(tokenBudget int) Options {
	return Options{
		TokenBudget: tokenBudget,
		ChunkPause:  time.Millisecond,
		Orchestrator: orchestrator.Config{
			MaxAttempts: 3,
			BackoffBase: time.Millisecond,
		},
	}
}

func TestRun_SingleChunk(t *testing.T) {
	p := &echoProvider{}
	pipe := New(p, testOptions(0))

	var deltas []string
	got, err := pipe.Run(context.Background(), Request{
		SourceText: "Hello world.\nIt was a dark night.",
		SourceLang: "en",
		TargetLang: "uk",
	}, func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "[translated] Hello world.\nIt was a dark night."
	if got != want {
		t.Errorf("result = %q, want %q", got, want)
	}
	if joined := strings.Join(deltas, ""); joined != got {
		t.Errorf("concatenated deltas = %q, want %q", joined, got)
	}
	if len(p.texts) != 1 {
		t.Fatalf("provider called %d times, want 1", len(p.texts))
	}
	if p.texts[0] != "Hello world.\nIt was a dark night." {
		t.Errorf("chunk text = %q", p.texts[0])
	}
}

func TestRun_MultiChunkSequentialContext(t *testing.T) {
	// A 16-token budget is 56 chars, room for one paragraph at a time.
	first := "The hero entered the frozen valley at dawn."
	second := "Snow covered every stone of the old road."
	p := &echoProvider{}
	pipe := New(p, testOptions(16))

	var deltas []string
	got, err := pipe.Run(context.Background(), Request{
		SourceText: first + "\n" + second,
		SourceLang: "en",
		TargetLang: "uk",
	}, func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.texts) != 2 {
		t.Fatalf("provider called %d times, want 2: %q", len(p.texts), p.texts)
	}
	if p.texts[0] != first || p.texts[1] != second {
		t.Errorf("chunks out of order: %q", p.texts)
	}

	// Chunk 2's prompt must carry chunk 1's source tail, not the other way
	// round, and chunk 1 has no preceding context at all.
	if !strings.Contains(p.systems[1], first) {
		t.Errorf("second prompt lacks the preceding source tail:\n%s", p.systems[1])
	}
	if strings.Contains(p.systems[0], second) {
		t.Errorf("first prompt must not see later text:\n%s", p.systems[0])
	}

	want := "[translated] " + first + "\n\n[translated] " + second
	if got != want {
		t.Errorf("result = %q, want %q", got, want)
	}
	if joined := strings.Join(deltas, ""); joined != got {
		t.Errorf("concatenated deltas = %q, want %q", joined, got)
	}
}

func TestRun_TrailingWhitespaceTrimmedFromResult(t *testing.T) {
	p := &echoProvider{
		generateFunc: func(system, text string) (string, error) {
			return "[translated] " + text + "\n", nil
		},
	}
	pipe := New(p, testOptions(0))

	var deltas []string
	got, err := pipe.Run(context.Background(), Request{
		SourceText: "One paragraph.",
		SourceLang: "en",
		TargetLang: "uk",
	}, func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "[translated] One paragraph." {
		t.Errorf("result = %q, want trailing newline trimmed", got)
	}
	// Deltas arrive before the trim and may differ from the result only by
	// that surrounding whitespace.
	if joined := strings.Join(deltas, ""); strings.TrimSpace(joined) != got {
		t.Errorf("trimmed deltas = %q, want %q", strings.TrimSpace(joined), got)
	}
}

func TestRun_GlossaryFiltering(t *testing.T) {
	p := &echoProvider{}
	pipe := New(p, testOptions(0))

	_, err := pipe.Run(context.Background(), Request{
		SourceText: "The Frozen Cloud sect gathered.",
		SourceLang: "en",
		TargetLang: "uk",
		Glossary: []glossary.Entry{
			{Original: "Frozen Cloud", Translated: "Крижана Хмара"},
			{Original: "Azure Dragon", Translated: "Лазуровий Дракон"},
		},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(p.systems[0], "Крижана Хмара") {
		t.Errorf("prompt lacks the matching glossary term:\n%s", p.systems[0])
	}
	if strings.Contains(p.systems[0], "Azure Dragon") {
		t.Errorf("prompt carries a term absent from the chunk:\n%s", p.systems[0])
	}
}

func TestRun_PreviousChapterTail(t *testing.T) {
	p := &echoProvider{}
	pipe := New(p, testOptions(0))

	_, err := pipe.Run(context.Background(), Request{
		SourceText:          "The next morning came.",
		SourceLang:          "en",
		TargetLang:          "uk",
		PreviousChapterTail: "So ended the seventh chapter.",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(p.systems[0], "So ended the seventh chapter.") {
		t.Errorf("first chunk prompt lacks the previous chapter tail:\n%s", p.systems[0])
	}
}

func TestRun_TwoPass(t *testing.T) {
	p := &echoProvider{}
	pipe := New(p, testOptions(0))

	got, err := pipe.Run(context.Background(), Request{
		SourceText: "One short paragraph.",
		SourceLang: "en",
		TargetLang: "uk",
		Mode:       ModeTwoPass,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(p.texts) != 2 {
		t.Fatalf("two-pass mode must call twice per chunk, got %d", len(p.texts))
	}
	// Draft sees the raw chunk, polish sees original plus draft.
	if p.texts[0] != "One short paragraph." {
		t.Errorf("draft text = %q", p.texts[0])
	}
	if !strings.Contains(p.texts[1], "[translated] One short paragraph.") {
		t.Errorf("polish text lacks the draft: %q", p.texts[1])
	}
	if !strings.HasPrefix(got, "[translated] ORIGINAL:") {
		t.Errorf("result must be the polish output, got %q", got)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &echoProvider{}
	pipe := New(p, testOptions(0))

	_, err := pipe.Run(ctx, Request{SourceText: "text", SourceLang: "en", TargetLang: "uk"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := errclass.Classify(err); got != errclass.UserAborted {
		t.Errorf("Classify(%v) = %v, want UserAborted", err, got)
	}
	if len(p.texts) != 0 {
		t.Errorf("no provider call expected, got %d", len(p.texts))
	}
}

func TestRun_FatalErrorPropagatesClassified(t *testing.T) {
	p := &echoProvider{
		generateFunc: func(system, text string) (string, error) {
			return "", &provider.Error{Provider: "echo", StatusCode: 401, Message: "bad key"}
		},
	}
	pipe := New(p, testOptions(0))

	_, err := pipe.Run(context.Background(), Request{SourceText: "text", SourceLang: "en", TargetLang: "uk"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := errclass.Classify(err); got != errclass.InvalidCredential {
		t.Errorf("Classify(%v) = %v, want InvalidCredential", err, got)
	}
	if !strings.Contains(err.Error(), "chunk 1 of 1") {
		t.Errorf("error lacks chunk position: %v", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeStandard, false},
		{"standard", ModeStandard, false},
		{"two_pass", ModeTwoPass, false},
		{"fancy", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParagraphSeparator(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ends mid line", "\n\n"},
		{"one newline\n", "\n"},
		{"already separated\n\n", ""},
	}
	for _, tt := range tests {
		if got := paragraphSeparator(tt.in); got != tt.want {
			t.Errorf("paragraphSeparator(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
