package acceptance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/custodia-labs/podtutor/internal/adapters/driven/filestore"
	"github.com/custodia-labs/podtutor/internal/adapters/driven/memory"
	"github.com/custodia-labs/podtutor/internal/adapters/driven/vector"
	httpadapter "github.com/custodia-labs/podtutor/internal/adapters/driving/http"
	"github.com/custodia-labs/podtutor/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/podtutor/internal/core/services"
	"github.com/custodia-labs/podtutor/internal/extractors"
	"github.com/custodia-labs/podtutor/internal/postprocessors"
	"github.com/custodia-labs/podtutor/internal/worker"
)

// world is the per-scenario system under test: the real services over
// in-memory adapters, with the LLM, embeddings and speech mocked.
type world struct {
	dir    string
	logger *slog.Logger

	files    *filestore.Store
	queue    *memory.TaskQueue
	status   *memory.StatusStore
	index    *vector.Index
	llm      *mocks.MockLLMService
	embedder *mocks.MockEmbeddingService
	speech   *mocks.MockSpeechSynthesizer
	topK     int

	pipeline *services.EpisodePipeline
	worker   *worker.Worker
	server   *httptest.Server
	cancel   context.CancelFunc

	episodeID string
	code      int
	body      []byte
}

func (w *world) setUp() error {
	dir, err := os.MkdirTemp("", "podtutor-acceptance-*")
	if err != nil {
		return err
	}
	w.dir = dir
	w.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	w.files, err = filestore.New(filestore.Config{Root: dir, Logger: w.logger})
	if err != nil {
		return err
	}
	w.queue = memory.NewTaskQueue()
	w.status = memory.NewStatusStore()
	w.llm = mocks.NewMockLLMService()
	w.speech = mocks.NewMockSpeechSynthesizer()
	w.embedder = mocks.NewMockEmbeddingService()
	w.embedder.SetDimensions(256)

	w.index, err = vector.NewIndex(vector.Config{
		Embedder: w.embedder,
		Store:    memory.NewVectorStore(),
		Logger:   w.logger,
	})
	return err
}

// start wires the services and starts the worker and HTTP server. It runs
// on the first request so that Given steps can adjust the mocks first.
func (w *world) start() error {
	if w.server != nil {
		return nil
	}

	rag := services.NewRAGService(services.RAGServiceConfig{
		Index:  w.index,
		LLM:    w.llm,
		Store:  w.files,
		TopK:   w.topK,
		Logger: w.logger,
	})
	episodes := services.NewEpisodeService(services.EpisodeServiceConfig{
		Store:  w.files,
		Status: w.status,
		Queue:  w.queue,
		RAG:    rag,
		Speech: w.speech,
		Logger: w.logger,
	})
	w.pipeline = services.NewEpisodePipeline(services.EpisodePipelineConfig{
		Store:     w.files,
		Status:    w.status,
		Extractor: extractors.DefaultRegistry(),
		Chunker:   postprocessors.DefaultPipeline(postprocessors.DefaultMaxChunkSize),
		Index:     w.index,
		Script:    services.NewScriptGenerator(services.ScriptGeneratorConfig{LLM: w.llm, Logger: w.logger}),
		Audio:     services.NewAudioSynthesizer(services.AudioSynthesizerConfig{Speech: w.speech, Store: w.files, Logger: w.logger}),
		Lock:      memory.NewLock(),
		Logger:    w.logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.worker = worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      w.queue,
		Pipeline:       w.pipeline,
		Logger:         w.logger,
		Concurrency:    1,
		DequeueTimeout: 1,
	})
	if err := w.worker.Start(ctx); err != nil {
		return err
	}

	cfg := httpadapter.DefaultConfig()
	cfg.StaticDir = w.files.EpisodesDir()
	cfg.Logger = w.logger
	server := httpadapter.NewServer(cfg, episodes, episodes, map[string]httpadapter.Pinger{"queue": w.queue})
	w.server = httptest.NewServer(server.Handler())
	return nil
}

func (w *world) tearDown() {
	if w.server != nil {
		w.server.Close()
	}
	if w.cancel != nil {
		w.cancel()
	}
	if w.worker != nil {
		w.worker.Stop()
	}
	if w.pipeline != nil {
		w.pipeline.WaitIndexing()
	}
	if w.queue != nil {
		w.queue.Close()
	}
	if w.dir != "" {
		os.RemoveAll(w.dir)
	}
}

func (w *world) do(req *http.Request) error {
	resp, err := w.server.Client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	w.code = resp.StatusCode
	w.body, err = io.ReadAll(resp.Body)
	return err
}

func (w *world) get(path string) error {
	if err := w.start(); err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodGet, w.server.URL+path, nil)
	if err != nil {
		return err
	}
	return w.do(req)
}

func (w *world) postJSON(path string, payload any) error {
	if err := w.start(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, w.server.URL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return w.do(req)
}

func (w *world) upload(filename string, content []byte) error {
	if err := w.start(); err != nil {
		return err
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, w.server.URL+"/api/episodes/upload", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return w.do(req)
}

func (w *world) decode(v any) error {
	if err := json.Unmarshal(w.body, v); err != nil {
		return fmt.Errorf("decode %s: %w", strings.TrimSpace(string(w.body)), err)
	}
	return nil
}

func (w *world) waitFor(timeout time.Duration, check func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("condition not met within %s", timeout)
		}
		time.Sleep(25 * time.Millisecond)
	}
}
