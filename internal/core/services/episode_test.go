package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/podtutor/internal/core/domain"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven/mocks"
)

type episodeFixture struct {
	svc    *EpisodeService
	store  *mocks.MockEpisodeStore
	status *mocks.MockStatusStore
	queue  *mocks.MockTaskQueue
	index  *mocks.MockRetrievalIndex
	llm    *mocks.MockLLMService
	speech *mocks.MockSpeechSynthesizer
}

func newEpisodeFixture(t *testing.T) *episodeFixture {
	t.Helper()
	f := &episodeFixture{
		store:  mocks.NewMockEpisodeStore(),
		status: mocks.NewMockStatusStore(),
		queue:  mocks.NewMockTaskQueue(),
		index:  mocks.NewMockRetrievalIndex(),
		llm:    mocks.NewMockLLMService(),
		speech: mocks.NewMockSpeechSynthesizer(),
	}
	f.llm.CompleteFn = func(ctx context.Context, system, user string) (string, error) {
		return "Photosynthesis turns light into food.", nil
	}
	rag := NewRAGService(RAGServiceConfig{Index: f.index, LLM: f.llm, Store: f.store})
	f.svc = NewEpisodeService(EpisodeServiceConfig{
		Store:          f.store,
		Status:         f.status,
		Queue:          f.queue,
		RAG:            rag,
		Speech:         f.speech,
		MaxUploadBytes: 1024,
	})
	return f
}

func TestEpisodeService_Submit(t *testing.T) {
	f := newEpisodeFixture(t)

	res, err := f.svc.Submit(context.Background(), "Biology.PDF", []byte("%PDF-1.4"))
	require.NoError(t, err)

	_, err = uuid.Parse(res.EpisodeID)
	assert.NoError(t, err)
	assert.Equal(t, domain.EpisodeProcessing, res.Status)

	name, content, err := f.store.LoadSource(context.Background(), res.EpisodeID)
	require.NoError(t, err)
	assert.Equal(t, "Biology.PDF", name)
	assert.Equal(t, []byte("%PDF-1.4"), content)

	status, err := f.status.Get(context.Background(), res.EpisodeID)
	require.NoError(t, err)
	assert.Equal(t, domain.EpisodePending, status.State)

	tasks := f.queue.Enqueued()
	require.Len(t, tasks, 1)
	assert.Equal(t, domain.TaskTypeProcessEpisode, tasks[0].Type)
	assert.Equal(t, res.EpisodeID, tasks[0].EpisodeID())
}

func TestEpisodeService_Submit_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
	}{
		{"empty file", "doc.pdf", nil},
		{"unsupported type", "doc.docx", []byte("x")},
		{"no extension", "README", []byte("x")},
		{"too large", "doc.txt", make([]byte, 2048)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEpisodeFixture(t)
			_, err := f.svc.Submit(context.Background(), tt.filename, tt.content)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Empty(t, f.queue.Enqueued())
		})
	}
}

func TestEpisodeService_Submit_EnqueueFails(t *testing.T) {
	f := newEpisodeFixture(t)
	f.queue.EnqueueFn = func(task *domain.Task) error {
		return errors.New("redis down")
	}

	_, err := f.svc.Submit(context.Background(), "doc.txt", []byte("text"))
	require.Error(t, err)

	tasks := f.queue.Enqueued()
	assert.Empty(t, tasks)
}

func TestEpisodeService_Submit_EnqueueFailsLogsStatusError(t *testing.T) {
	f := newEpisodeFixture(t)
	var logs bytes.Buffer
	f.svc.logger = slog.New(slog.NewTextHandler(&logs, nil))
	f.queue.EnqueueFn = func(task *domain.Task) error {
		return errors.New("redis down")
	}
	f.status.SaveFn = func(status *domain.EpisodeStatus) error {
		if status.State == domain.EpisodeFailed {
			return errors.New("status store down")
		}
		return nil
	}

	_, err := f.svc.Submit(context.Background(), "doc.txt", []byte("text"))
	require.Error(t, err)

	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "status store down")
}

func TestEpisodeService_Status(t *testing.T) {
	f := newEpisodeFixture(t)
	ctx := context.Background()

	_, err := f.svc.Status(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.status.Save(ctx, domain.NewEpisodeStatus("ep", domain.EpisodeProcessing)))
	status, err := f.svc.Status(ctx, "ep")
	require.NoError(t, err)
	assert.Equal(t, domain.EpisodeProcessing, status.State)

	// a manifest is authoritative even if the status record lags behind
	f.store.SetManifest(&domain.Manifest{EpisodeID: "ep"})
	status, err = f.svc.Status(ctx, "ep")
	require.NoError(t, err)
	assert.Equal(t, domain.EpisodeReady, status.State)

	f.store.SetManifest(&domain.Manifest{EpisodeID: "orphan"})
	status, err = f.svc.Status(ctx, "orphan")
	require.NoError(t, err)
	assert.Equal(t, domain.EpisodeReady, status.State)
}

func TestEpisodeService_Status_ExpiredRecordWithSource(t *testing.T) {
	f := newEpisodeFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.SaveSource(ctx, "ep", "doc.txt", []byte("x")))

	status, err := f.svc.Status(ctx, "ep")
	require.NoError(t, err)
	assert.Equal(t, "ep", status.EpisodeID)
	assert.Equal(t, domain.EpisodePending, status.State)
}

func TestEpisodeService_Manifest(t *testing.T) {
	f := newEpisodeFixture(t)
	ctx := context.Background()

	_, err := f.svc.Manifest(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, f.store.SaveSource(ctx, "ep", "doc.txt", []byte("x")))
	_, err = f.svc.Manifest(ctx, "ep")
	assert.ErrorIs(t, err, domain.ErrNotReady)

	f.store.SetManifest(&domain.Manifest{EpisodeID: "ep", Segments: []domain.AudioResult{{Duration: 2, End: 2}}})
	m, err := f.svc.Manifest(ctx, "ep")
	require.NoError(t, err)
	assert.Len(t, m.Segments, 1)
}

func TestEpisodeService_Reprocess(t *testing.T) {
	f := newEpisodeFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Reprocess(ctx, "missing"), domain.ErrNotFound)

	require.NoError(t, f.store.SaveSource(ctx, "ep", "doc.txt", []byte("x")))
	require.NoError(t, f.svc.Reprocess(ctx, "ep"))
	require.Len(t, f.queue.Enqueued(), 1)
	assert.Equal(t, "ep", f.queue.Enqueued()[0].EpisodeID())
}

func TestEpisodeService_Ask(t *testing.T) {
	f := newEpisodeFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveSource(ctx, "ep", "doc.txt", []byte("x")))
	require.NoError(t, f.index.Build(ctx, "ep", []domain.Chunk{{Position: 0, Content: "Leaves capture light."}}))

	answer, err := f.svc.Ask(ctx, "ep", "What do leaves do?", nil)
	require.NoError(t, err)

	assert.Equal(t, "Photosynthesis turns light into food.", answer.Text)
	assert.Equal(t, []string{"Leaves capture light."}, answer.Context)
	assert.True(t, strings.HasPrefix(answer.AudioURL, "/static/episodes/ep/question_"), answer.AudioURL)
	assert.True(t, strings.HasSuffix(answer.AudioURL, ".mp3"))

	calls := f.speech.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, answer.Text, calls[0].Text)
	assert.Equal(t, domain.DefaultVoice, calls[0].Voice)
}

func TestEpisodeService_Ask_UniqueAudioNames(t *testing.T) {
	f := newEpisodeFixture(t)
	ctx := context.Background()
	require.NoError(t, f.index.Build(ctx, "ep", []domain.Chunk{{Content: "x"}}))

	a1, err := f.svc.Ask(ctx, "ep", "one?", nil)
	require.NoError(t, err)
	a2, err := f.svc.Ask(ctx, "ep", "two?", nil)
	require.NoError(t, err)
	assert.NotEqual(t, a1.AudioURL, a2.AudioURL)
}

func TestEpisodeService_Ask_SpeechFailureIsNotFatal(t *testing.T) {
	f := newEpisodeFixture(t)
	ctx := context.Background()
	require.NoError(t, f.index.Build(ctx, "ep", []domain.Chunk{{Content: "x"}}))
	f.speech.SynthesizeFn = func(ctx context.Context, text string, voice domain.VoiceParams) ([]byte, error) {
		return nil, errors.New("tts down")
	}

	answer, err := f.svc.Ask(ctx, "ep", "why?", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Text)
	assert.Empty(t, answer.AudioURL)
}

func TestEpisodeService_Chat(t *testing.T) {
	f := newEpisodeFixture(t)
	ctx := context.Background()
	require.NoError(t, f.index.Build(ctx, "ep", []domain.Chunk{{Content: "x"}}))

	reply, err := f.svc.Chat(ctx, "ep", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis turns light into food.", reply)
	assert.Zero(t, f.speech.CallCount())
}
