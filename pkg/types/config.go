package types

// Config is the merged application configuration.
type Config struct {
	// Model is the default model identifier, e.g. "anthropic/claude-sonnet-4".
	Model string `json:"model,omitempty"`

	Provider ProviderConfig `json:"provider,omitempty"`

	// Agent maps agent names to capability profiles.
	Agent map[string]AgentConfig `json:"agent,omitempty"`

	Server ServerConfig `json:"server,omitempty"`

	// DataDir overrides where sessions and messages are stored.
	DataDir string `json:"dataDir,omitempty"`

	LogLevel string `json:"logLevel,omitempty"`
}

// ProviderConfig configures the chat-completion endpoint.
type ProviderConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`

	// MaxTokens caps completion length per iteration. Zero means provider default.
	MaxTokens int `json:"maxTokens,omitempty"`

	Temperature float64 `json:"temperature,omitempty"`
}

// AgentConfig is the on-disk capability profile for one agent.
type AgentConfig struct {
	// Prompt is the base system instructions for this agent.
	Prompt string `json:"prompt,omitempty"`

	// Tools maps tool id patterns (doublestar wildcards allowed) to
	// enabled/disabled. Unmatched tools default to enabled.
	Tools map[string]bool `json:"tools,omitempty"`

	// MaxIterations bounds the tool-calling loop for this agent.
	MaxIterations int `json:"maxIterations,omitempty"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port       int  `json:"port,omitempty"`
	EnableCORS bool `json:"enableCORS,omitempty"`
}
