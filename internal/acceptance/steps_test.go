package acceptance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/custodia-labs/podtutor/internal/core/domain"
)

func initializeScenario(sc *godog.ScenarioContext) {
	w := &world{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return ctx, w.setUp()
	})
	sc.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		w.tearDown()
		return ctx, nil
	})

	sc.Step(`^a running podtutor service$`, w.aRunningService)
	sc.Step(`^the language model echoes its context$`, w.theLanguageModelEchoesItsContext)
	sc.Step(`^retrieval returns at most (\d+) chunks?$`, w.retrievalReturnsAtMost)
	sc.Step(`^episode "([^"]*)" is indexed from the chunks:$`, w.episodeIsIndexedFrom)

	sc.Step(`^I upload "([^"]*)" with (\d+) paragraphs of (\d+) words in total$`, w.iUploadDocument)
	sc.Step(`^I ask "([^"]*)" about episode "([^"]*)"$`, w.iAskAbout)

	sc.Step(`^the response code is (\d+)$`, w.theResponseCodeIs)
	sc.Step(`^the reported episode status is "([^"]*)"$`, w.theReportedStatusIs)
	sc.Step(`^the episode becomes "([^"]*)" within (\d+) seconds$`, w.theEpisodeBecomes)
	sc.Step(`^the manifest ends after (\d+) seconds$`, w.theManifestEndsAfter)
	sc.Step(`^no manifest segment has a negative or overlapping interval$`, w.noSegmentOverlaps)
	sc.Step(`^the context chunks are exactly:$`, w.theContextChunksAre)
	sc.Step(`^the answer text is not empty$`, w.theAnswerTextIsNotEmpty)
}

func (w *world) aRunningService() error {
	if w.files == nil {
		return fmt.Errorf("service was not set up")
	}
	return nil
}

func (w *world) theLanguageModelEchoesItsContext() error {
	w.llm.CompleteFn = func(_ context.Context, _, user string) (string, error) {
		return user, nil
	}
	return nil
}

func (w *world) retrievalReturnsAtMost(n int) error {
	w.topK = n
	return nil
}

func (w *world) episodeIsIndexedFrom(episodeID string, table *godog.Table) error {
	chunks := make([]domain.Chunk, 0, len(table.Rows))
	for i, row := range table.Rows {
		chunks = append(chunks, domain.Chunk{Position: i, Content: strings.TrimSpace(row.Cells[0].Value)})
	}
	return w.index.Build(context.Background(), episodeID, chunks)
}

// sampleDocument returns paragraphs separated by blank lines with the word
// total spread as evenly as possible.
func sampleDocument(paragraphs, words int) string {
	out := make([]string, paragraphs)
	n := 0
	for p := range out {
		count := words / paragraphs
		if p < words%paragraphs {
			count++
		}
		fields := make([]string, count)
		for i := range fields {
			fields[i] = fmt.Sprintf("word%d", n)
			n++
		}
		out[p] = strings.Join(fields, " ") + "."
	}
	return strings.Join(out, "\n\n")
}

func (w *world) iUploadDocument(filename string, paragraphs, words int) error {
	if err := w.upload(filename, []byte(sampleDocument(paragraphs, words))); err != nil {
		return err
	}
	var result domain.SubmitResult
	if w.code == 202 {
		if err := w.decode(&result); err != nil {
			return err
		}
		w.episodeID = result.EpisodeID
	}
	return nil
}

func (w *world) iAskAbout(question, episodeID string) error {
	return w.postJSON("/api/episodes/"+episodeID+"/question", map[string]any{"question": question})
}

func (w *world) theResponseCodeIs(code int) error {
	if w.code != code {
		return fmt.Errorf("expected response code %d, got %d: %s", code, w.code, strings.TrimSpace(string(w.body)))
	}
	return nil
}

func (w *world) theReportedStatusIs(state string) error {
	var result domain.SubmitResult
	if err := w.decode(&result); err != nil {
		return err
	}
	if string(result.Status) != state {
		return fmt.Errorf("expected status %q, got %q", state, result.Status)
	}
	if result.EpisodeID == "" {
		return fmt.Errorf("no episode id returned")
	}
	return nil
}

func (w *world) theEpisodeBecomes(state string, seconds int) error {
	return w.waitFor(time.Duration(seconds)*time.Second, func() (bool, error) {
		if err := w.get("/api/episodes/" + w.episodeID + "/status"); err != nil {
			return false, err
		}
		if w.code != 200 {
			return false, fmt.Errorf("status request returned %d", w.code)
		}
		var status domain.EpisodeStatus
		if err := w.decode(&status); err != nil {
			return false, err
		}
		if status.State == domain.EpisodeFailed && state != string(domain.EpisodeFailed) {
			return false, fmt.Errorf("episode failed: %s", status.Reason)
		}
		return string(status.State) == state, nil
	})
}

func (w *world) manifest() (*domain.Manifest, error) {
	if err := w.get("/api/episodes/" + w.episodeID + "/manifest"); err != nil {
		return nil, err
	}
	if w.code != 200 {
		return nil, fmt.Errorf("manifest request returned %d", w.code)
	}
	var m domain.Manifest
	if err := w.decode(&m); err != nil {
		return nil, err
	}
	if len(m.Segments) == 0 {
		return nil, fmt.Errorf("manifest has no segments")
	}
	return &m, nil
}

func (w *world) theManifestEndsAfter(seconds int) error {
	m, err := w.manifest()
	if err != nil {
		return err
	}
	if end := m.Segments[len(m.Segments)-1].End; end <= float64(seconds) {
		return fmt.Errorf("last segment ends at %v", end)
	}
	return nil
}

func (w *world) noSegmentOverlaps() error {
	m, err := w.manifest()
	if err != nil {
		return err
	}
	prevEnd := 0.0
	for _, seg := range m.Segments {
		if seg.Start < 0 || seg.End < seg.Start {
			return fmt.Errorf("segment %d has interval [%v, %v]", seg.SegmentID, seg.Start, seg.End)
		}
		if seg.Start < prevEnd {
			return fmt.Errorf("segment %d starts at %v before previous end %v", seg.SegmentID, seg.Start, prevEnd)
		}
		prevEnd = seg.End
	}
	return nil
}

type questionResponse struct {
	AnswerText string   `json:"answer_text"`
	Context    []string `json:"context"`
}

func (w *world) theContextChunksAre(table *godog.Table) error {
	var resp questionResponse
	if err := w.decode(&resp); err != nil {
		return err
	}
	want := make([]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		want = append(want, strings.TrimSpace(row.Cells[0].Value))
	}
	if strings.Join(resp.Context, "|") != strings.Join(want, "|") {
		return fmt.Errorf("expected context %q, got %q", want, resp.Context)
	}
	return nil
}

func (w *world) theAnswerTextIsNotEmpty() error {
	var resp questionResponse
	if err := w.decode(&resp); err != nil {
		return err
	}
	if strings.TrimSpace(resp.AnswerText) == "" {
		return fmt.Errorf("answer text is empty")
	}
	return nil
}
