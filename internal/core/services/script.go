package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven"
	"github.com/custodia-labs/podtutor/internal/stageexec"
)

const (
	scriptSystemPrompt = "You are a school tutor. Convert the content into a short dialogue."
	scriptUserPrompt   = "Convert this into a short Tutor-Student dialogue (6-8 turns):\n\n%s"

	// DefaultScriptWorkers is the number of chunks converted concurrently
	DefaultScriptWorkers = 4
)

var errNoDialogue = errors.New("response contained no dialogue lines")

// ScriptGenerator converts chunks into dialogue segments via the LLM.
type ScriptGenerator struct {
	llm         driven.LLMService
	workers     int
	callTimeout time.Duration
	logger      *slog.Logger
}

// ScriptGeneratorConfig holds dependencies for ScriptGenerator.
type ScriptGeneratorConfig struct {
	LLM         driven.LLMService
	Workers     int
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// NewScriptGenerator creates a new script generator.
func NewScriptGenerator(cfg ScriptGeneratorConfig) *ScriptGenerator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultScriptWorkers
	}
	return &ScriptGenerator{
		llm:         cfg.LLM,
		workers:     workers,
		callTimeout: cfg.CallTimeout,
		logger:      logger,
	}
}

// Generate converts every chunk into dialogue lines and returns them as one
// ordered script. Segments follow chunk order and are numbered 0..n-1.
// A chunk whose LLM call fails, or whose reply has no dialogue lines,
// contributes nothing and is reported as a failure.
func (g *ScriptGenerator) Generate(ctx context.Context, chunks []domain.Chunk) ([]domain.DialogueSegment, []domain.ItemFailure) {
	out := stageexec.Run(ctx, chunks, stageexec.Options{
		Workers:     g.workers,
		ItemTimeout: g.callTimeout,
	}, func(ctx context.Context, _ int, chunk domain.Chunk) ([]domain.DialogueSegment, error) {
		reply, err := g.llm.ChatCompletion(ctx, scriptSystemPrompt, fmt.Sprintf(scriptUserPrompt, chunk.Content))
		if err != nil {
			return nil, err
		}
		lines := ParseDialogue(reply)
		if len(lines) == 0 {
			return nil, errNoDialogue
		}
		for i := range lines {
			lines[i].ChunkIndex = chunk.Position
		}
		return lines, nil
	})

	var segments []domain.DialogueSegment
	for _, lines := range out.Values() {
		segments = append(segments, lines...)
	}
	for i := range segments {
		segments[i].Order = i
	}

	failures := make([]domain.ItemFailure, 0, len(out.Failures))
	for _, f := range out.Failures {
		g.logger.Warn("script generation failed for chunk", "chunk", f.Index, "error", f.Err)
		failures = append(failures, domain.ItemFailure{
			Stage: domain.StageScript,
			Index: chunks[f.Index].Position,
			Error: f.Err.Error(),
		})
	}
	return segments, failures
}

// ParseDialogue splits an LLM reply into speaker/text pairs. Each line is
// split on its first colon; lines without a colon or with an empty speaker
// or text are skipped. Markdown emphasis around the speaker is removed.
func ParseDialogue(reply string) []domain.DialogueSegment {
	var segments []domain.DialogueSegment
	for _, line := range strings.Split(reply, "\n") {
		speaker, text, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		speaker = strings.Trim(strings.TrimSpace(speaker), "*_ ")
		text = strings.TrimSpace(strings.TrimLeft(text, "*_"))
		if speaker == "" || text == "" {
			continue
		}
		segments = append(segments, domain.DialogueSegment{Speaker: speaker, Text: text})
	}
	return segments
}
