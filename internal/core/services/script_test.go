package services

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven/mocks"
)

// chunkFromPrompt recovers the chunk text from a script prompt
func chunkFromPrompt(user string) string {
	_, content, _ := strings.Cut(user, "\n\n")
	return content
}

// echoDialogue replies with two lines that quote the chunk
func echoDialogue(ctx context.Context, system, user string) (string, error) {
	c := chunkFromPrompt(user)
	return "Tutor: About " + c + "\nStudent: Got it " + c, nil
}

func TestParseDialogue(t *testing.T) {
	reply := "Tutor: Hi there\n" +
		"a line without a colon\n" +
		"Student: What is a cell?\n" +
		"**Tutor**: It's: a unit\n" +
		": no speaker\n" +
		"Student:   \n"

	got := ParseDialogue(reply)

	require.Len(t, got, 3)
	assert.Equal(t, domain.DialogueSegment{Speaker: "Tutor", Text: "Hi there"}, got[0])
	assert.Equal(t, domain.DialogueSegment{Speaker: "Student", Text: "What is a cell?"}, got[1])
	assert.Equal(t, domain.DialogueSegment{Speaker: "Tutor", Text: "It's: a unit"}, got[2])
}

func TestParseDialogue_Empty(t *testing.T) {
	assert.Empty(t, ParseDialogue(""))
	assert.Empty(t, ParseDialogue("no dialogue here"))
}

func TestScriptGenerator_OrdersByChunk(t *testing.T) {
	llm := mocks.NewMockLLMService()
	llm.CompleteFn = func(ctx context.Context, system, user string) (string, error) {
		time.Sleep(time.Duration(rand.Intn(4)) * time.Millisecond)
		return echoDialogue(ctx, system, user)
	}
	gen := NewScriptGenerator(ScriptGeneratorConfig{LLM: llm})

	chunks := make([]domain.Chunk, 10)
	for i := range chunks {
		chunks[i] = domain.Chunk{Position: i, Content: string(rune('a' + i))}
	}

	segments, failures := gen.Generate(context.Background(), chunks)

	assert.Empty(t, failures)
	require.Len(t, segments, 20)
	for i, seg := range segments {
		assert.Equal(t, i, seg.Order)
		assert.Equal(t, i/2, seg.ChunkIndex)
		assert.Contains(t, seg.Text, chunks[i/2].Content)
	}
	assert.Equal(t, 10, llm.CallCount())
	assert.Equal(t, scriptSystemPrompt, llm.Calls()[0].System)
}

func TestScriptGenerator_BoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	llm := mocks.NewMockLLMService()
	llm.CompleteFn = func(ctx context.Context, system, user string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(3 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return echoDialogue(ctx, system, user)
	}
	gen := NewScriptGenerator(ScriptGeneratorConfig{LLM: llm})

	chunks := make([]domain.Chunk, 16)
	for i := range chunks {
		chunks[i] = domain.Chunk{Position: i, Content: "x"}
	}
	gen.Generate(context.Background(), chunks)

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(DefaultScriptWorkers))
}

func TestScriptGenerator_DropsFailedChunks(t *testing.T) {
	llm := mocks.NewMockLLMService()
	llm.CompleteFn = func(ctx context.Context, system, user string) (string, error) {
		switch chunkFromPrompt(user) {
		case "broken":
			return "", errors.New("rate limited")
		case "chatty":
			return "I cannot turn this into a dialogue.", nil
		}
		return echoDialogue(ctx, system, user)
	}
	gen := NewScriptGenerator(ScriptGeneratorConfig{LLM: llm, Workers: 2})

	chunks := []domain.Chunk{
		{Position: 0, Content: "first"},
		{Position: 1, Content: "broken"},
		{Position: 2, Content: "chatty"},
		{Position: 3, Content: "last"},
	}
	segments, failures := gen.Generate(context.Background(), chunks)

	require.Len(t, segments, 4)
	assert.Equal(t, "About first", segments[0].Text)
	assert.Equal(t, "About last", segments[2].Text)
	assert.Equal(t, 3, segments[3].Order)
	assert.Equal(t, 3, segments[3].ChunkIndex)

	require.Len(t, failures, 2)
	assert.Equal(t, domain.ItemFailure{Stage: domain.StageScript, Index: 1, Error: "rate limited"}, failures[0])
	assert.Equal(t, 2, failures[1].Index)
	assert.Equal(t, errNoDialogue.Error(), failures[1].Error)
}

func TestScriptGenerator_CallTimeout(t *testing.T) {
	llm := mocks.NewMockLLMService()
	llm.CompleteFn = func(ctx context.Context, system, user string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}
	gen := NewScriptGenerator(ScriptGeneratorConfig{LLM: llm, CallTimeout: 5 * time.Millisecond})

	segments, failures := gen.Generate(context.Background(), []domain.Chunk{{Content: "slow"}})

	assert.Empty(t, segments)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Error, "deadline exceeded")
}
