package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EpisodeState is the lifecycle state of an episode
type EpisodeState string

const (
	EpisodePending    EpisodeState = "pending"
	EpisodeProcessing EpisodeState = "processing"
	EpisodeReady      EpisodeState = "ready"
	EpisodeFailed     EpisodeState = "failed"
)

// IsTerminal returns true if no further transitions are expected
func (s EpisodeState) IsTerminal() bool {
	return s == EpisodeReady || s == EpisodeFailed
}

// Stage names used in per-item failure reports
const (
	StageScript = "script"
	StageAudio  = "audio"
	StageIndex  = "index"
)

// ItemFailure records a single item dropped by a pipeline stage.
// The item is omitted from the stage output; the run continues.
type ItemFailure struct {
	Stage string `json:"stage"`
	Index int    `json:"index"`
	Error string `json:"error"`
}

// EpisodeStatus is the status record of an episode.
// Reason is set only when State is failed.
type EpisodeStatus struct {
	EpisodeID string        `json:"episode_id"`
	State     EpisodeState  `json:"status"`
	Reason    string        `json:"error,omitempty"`
	Failures  []ItemFailure `json:"failures,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewEpisodeStatus creates a status record in the given state
func NewEpisodeStatus(episodeID string, state EpisodeState) *EpisodeStatus {
	return &EpisodeStatus{
		EpisodeID: episodeID,
		State:     state,
		UpdatedAt: time.Now(),
	}
}

// FailedStatus creates a failed status record carrying the reason
func FailedStatus(episodeID, reason string) *EpisodeStatus {
	s := NewEpisodeStatus(episodeID, EpisodeFailed)
	s.Reason = reason
	return s
}

// DialogueSegment is one turn of the generated dialogue.
// Order is gapless over the whole episode and follows chunk order.
type DialogueSegment struct {
	Speaker    string `json:"speaker"`
	Text       string `json:"text"`
	Order      int    `json:"order"`
	ChunkIndex int    `json:"chunk_index"`
}

// AudioResult is a synthesized segment. Start and End are zero until the
// manifest is built.
type AudioResult struct {
	SegmentID  int     `json:"segment_id"`
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	AudioURL   string  `json:"audio_url"`
	Duration   float64 `json:"duration"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	ChunkIndex int     `json:"chunk_index"`
}

// Manifest is the ordered, timed list of audio segments of a finished episode.
// It encodes as a bare JSON array of segments; EpisodeID and CreatedAt come
// from where and when the manifest was stored.
type Manifest struct {
	EpisodeID string
	Segments  []AudioResult
	CreatedAt time.Time
}

func (m Manifest) MarshalJSON() ([]byte, error) {
	if m.Segments == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(m.Segments)
}

func (m *Manifest) UnmarshalJSON(data []byte) error {
	var segments []AudioResult
	if err := json.Unmarshal(data, &segments); err != nil {
		return err
	}
	m.Segments = segments
	return nil
}

// Duration returns the total playback time in seconds
func (m *Manifest) Duration() float64 {
	if m == nil || len(m.Segments) == 0 {
		return 0
	}
	return m.Segments[len(m.Segments)-1].End
}

// ChunkBound returns the highest chunk index among segments that start at or
// before t. The second return value is false when no segment starts by t.
func (m *Manifest) ChunkBound(t float64) (int, bool) {
	bound, found := -1, false
	for _, seg := range m.Segments {
		if seg.Start > t {
			continue
		}
		if seg.ChunkIndex > bound {
			bound = seg.ChunkIndex
		}
		found = true
	}
	return bound, found
}

// SegmentFileName returns the audio file name for a segment index
func SegmentFileName(index int) string {
	return fmt.Sprintf("seg_%d.mp3", index)
}

// SubmitResult is returned when a document is accepted for processing
type SubmitResult struct {
	EpisodeID string       `json:"episode_id"`
	Status    EpisodeState `json:"status"`
}

// Answer is the result of a question about an episode
type Answer struct {
	Text     string   `json:"answer_text"`
	AudioURL string   `json:"answer_audio_url"`
	Context  []string `json:"context"`
}

// Chunk is an ordered fragment of a source document. Position is zero-based
// and doubles as the chunk's identity within the episode.
type Chunk struct {
	Position int    `json:"position"`
	Content  string `json:"content"`
}

// ScoredChunk is a retrieval hit, most relevant first
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}
