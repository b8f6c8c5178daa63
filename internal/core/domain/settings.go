package domain

// AIProvider identifies the AI/embedding/speech provider
type AIProvider string

const (
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAnthropic AIProvider = "anthropic"
	AIProviderOllama    AIProvider = "ollama"
)

// RequiresAPIKey returns true if this provider requires an API key
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOllama:
		return false // Self-hosted, no API key needed
	default:
		return true
	}
}

// IsValid returns true if this is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOpenAI, AIProviderAnthropic, AIProviderOllama:
		return true
	default:
		return false
	}
}

// EmbeddingSettings configures the embedding service
type EmbeddingSettings struct {
	Provider AIProvider `json:"provider" toml:"provider"`
	Model    string     `json:"model" toml:"model"`
	APIKey   string     `json:"-" toml:"api_key"`
	BaseURL  string     `json:"base_url,omitempty" toml:"base_url"`
}

// IsConfigured returns true if embedding settings are properly configured
func (e *EmbeddingSettings) IsConfigured() bool {
	return isConfigured(e.Provider, e.APIKey)
}

// LLMSettings configures the LLM service
type LLMSettings struct {
	Provider AIProvider `json:"provider" toml:"provider"`
	Model    string     `json:"model" toml:"model"`
	APIKey   string     `json:"-" toml:"api_key"`
	BaseURL  string     `json:"base_url,omitempty" toml:"base_url"`
}

// IsConfigured returns true if LLM settings are properly configured
func (l *LLMSettings) IsConfigured() bool {
	return isConfigured(l.Provider, l.APIKey)
}

// SpeechSettings configures the speech synthesis service
type SpeechSettings struct {
	Provider AIProvider `json:"provider" toml:"provider"`
	Model    string     `json:"model" toml:"model"`
	APIKey   string     `json:"-" toml:"api_key"`
	BaseURL  string     `json:"base_url,omitempty" toml:"base_url"`
}

// IsConfigured returns true if speech settings are properly configured
func (s *SpeechSettings) IsConfigured() bool {
	return isConfigured(s.Provider, s.APIKey)
}

func isConfigured(p AIProvider, apiKey string) bool {
	if p == "" {
		return false
	}
	if p.RequiresAPIKey() && apiKey == "" {
		return false
	}
	return true
}
