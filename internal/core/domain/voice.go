package domain

import "strings"

// VoiceParams selects how a speaker sounds
type VoiceParams struct {
	Language string  `json:"language"`
	Accent   string  `json:"accent"`
	Speed    float64 `json:"speed"`
	Voice    string  `json:"voice"`
}

// Known speakers
const (
	SpeakerTutor   = "tutor"
	SpeakerStudent = "student"
)

var (
	// DefaultVoice is used for the tutor and for any unknown speaker
	DefaultVoice = VoiceParams{Language: "en", Accent: "us", Speed: 1.0, Voice: "alloy"}

	// StudentVoice is slightly faster with a different accent
	StudentVoice = VoiceParams{Language: "en", Accent: "gb", Speed: 1.1, Voice: "nova"}
)

// VoiceFor maps a speaker name to its voice. Matching is case-insensitive.
func VoiceFor(speaker string) VoiceParams {
	switch strings.ToLower(strings.TrimSpace(speaker)) {
	case SpeakerStudent:
		return StudentVoice
	default:
		return DefaultVoice
	}
}
