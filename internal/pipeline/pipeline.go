// Package pipeline turns one long source text plus project configuration
// into a sequence of orchestrated model calls whose outputs are stitched
// back into a single continuous translation, streamed incrementally to the
// caller.
//
// Chunks are processed strictly in order: each chunk's prompt depends on the
// previous chunk's source text for continuity, and streamed output must
// match reading order. Invocations share no mutable state, so callers may
// run independent pipeline runs concurrently.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valpere/kazkar/internal/chunker"
	"github.com/valpere/kazkar/internal/glossary"
	"github.com/valpere/kazkar/internal/orchestrator"
	"github.com/valpere/kazkar/internal/prompt"
	"github.com/valpere/kazkar/internal/provider"
)

// Mode selects the translation strategy.
type Mode string

const (
	// ModeStandard translates each chunk with one streamed call.
	ModeStandard Mode = "standard"
	// ModeTwoPass runs a literal draft call then a streamed polish call per
	// chunk, trading latency and cost for prose quality.
	ModeTwoPass Mode = "two_pass"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStandard, ModeTwoPass:
		return Mode(s), nil
	case "":
		return ModeStandard, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeStandard, ModeTwoPass)
	}
}

const (
	// maxChapterTailChars bounds the previous-chapter context injected into
	// chunk 0's prompt.
	maxChapterTailChars = 1500
	// chunkContextChars bounds the previous-chunk source tail injected into
	// every later chunk's prompt.
	chunkContextChars = 300
	// defaultChunkPause is the courtesy delay between chunks, a rate-limit
	// kindness rather than a functional requirement.
	defaultChunkPause = 500 * time.Millisecond
)

// Request is the immutable input of one pipeline run.
type Request struct {
	SourceText          string
	SourceLang          string
	TargetLang          string
	Style               string
	Glossary            []glossary.Entry
	Mode                Mode
	PreviousChapterTail string
}

// Options tunes a pipeline. The zero value uses sensible defaults.
type Options struct {
	TokenBudget  int
	ChunkPause   time.Duration
	Orchestrator orchestrator.Config
}

type Pipeline struct {
	orch     *orchestrator.Orchestrator
	maxChars int
	pause    time.Duration
}

func New(p provider.Provider, opts Options) *Pipeline {
	pause := opts.ChunkPause
	if pause <= 0 {
		pause = defaultChunkPause
	}
	return &Pipeline{
		orch:     orchestrator.New(p, opts.Orchestrator),
		maxChars: chunker.MaxChars(opts.TokenBudget),
		pause:    pause,
	}
}

// Run translates req.SourceText, invoking onDelta for every output fragment
// in reading order, and returns the concatenation of all chunk outputs
// trimmed of surrounding whitespace. Deltas are delivered as they arrive, so
// when the model ends its output with whitespace the delta stream carries it
// and the returned result does not; the two are otherwise identical. On
// failure the classified error is returned and nothing already delivered
// through onDelta is taken back. onDelta may be nil.
func (p *Pipeline) Run(ctx context.Context, req Request, onDelta func(string)) (string, error) {
	chunks := chunker.Split(req.SourceText, p.maxChars)
	index := glossary.NewIndex(req.Glossary)

	snapshot := chunker.Tail(req.PreviousChapterTail, maxChapterTailChars)
	contextKind := prompt.PreviousChapter

	var out strings.Builder
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("translation aborted before chunk %d of %d: %w", i+1, len(chunks), err)
		}

		terms := index.Relevant(chunk)
		job := orchestrator.Job{
			Index:      i,
			SourceText: chunk,
			TwoPass:    req.Mode == ModeTwoPass,
			OnDelta:    onDelta,
		}
		if req.Mode == ModeTwoPass {
			job.DraftSystem = prompt.DraftSystem(req.SourceLang, req.TargetLang, terms, snapshot, contextKind)
			job.System = prompt.PolishSystem(req.TargetLang, req.Style, terms)
		} else {
			job.System = prompt.System(req.SourceLang, req.TargetLang, req.Style, terms, snapshot, contextKind)
		}

		res, err := p.orch.Translate(ctx, job)
		if err != nil {
			return "", fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err)
		}
		out.WriteString(res.Text)

		if i == len(chunks)-1 {
			break
		}

		// Keep chunk boundaries from merging two paragraphs into one
		// run-on line, without stacking blank lines when the model already
		// emitted one.
		if sep := paragraphSeparator(res.Text); sep != "" {
			out.WriteString(sep)
			if onDelta != nil {
				onDelta(sep)
			}
		}

		snapshot = chunker.Tail(chunk, chunkContextChars)
		contextKind = prompt.PreviousChunk

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("translation aborted after chunk %d of %d: %w", i+1, len(chunks), ctx.Err())
		case <-time.After(p.pause):
		}
	}

	return strings.TrimSpace(out.String()), nil
}

// paragraphSeparator returns what must be appended to chunk output so it
// ends with exactly one blank line.
func paragraphSeparator(s string) string {
	switch {
	case strings.HasSuffix(s, "\n\n"):
		return ""
	case strings.HasSuffix(s, "\n"):
		return "\n"
	default:
		return "\n\n"
	}
}
