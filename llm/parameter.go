package llm

// Parameters holds the optional sampling settings forwarded to a completion backend. Nil fields
// are left to the provider default.
//
// Each client forwards only the fields its API understands: OpenRouter takes all of them, Ollama
// maps them to model options, and Anthropic uses Temperature, TopK, TopP and Stop. The names
// follow https://openrouter.ai/docs/api-reference/parameters.
type Parameters struct {
	Temperature       *float32       `yaml:"temperature" toml:"temperature"`
	TopP              *float32       `yaml:"topP" toml:"topP"`
	TopK              *int           `yaml:"topK" toml:"topK"`
	FrequencyPenalty  *float32       `yaml:"frequencyPenalty" toml:"frequencyPenalty"`
	PresencePenalty   *float32       `yaml:"presencePenalty" toml:"presencePenalty"`
	RepetitionPenalty *float32       `yaml:"repetitionPenalty" toml:"repetitionPenalty"`
	MinP              *float32       `yaml:"minP" toml:"minP"`
	TopA              *float32       `yaml:"topA" toml:"topA"`
	Seed              *int           `yaml:"seed" toml:"seed"`
	MaxTokens         *int           `yaml:"maxTokens" toml:"maxTokens"`
	LogitBias         map[string]int `yaml:"logitBias" toml:"logitBias"`
	Logprobs          *bool          `yaml:"logprobs" toml:"logprobs"`
	TopLogprobs       *int           `yaml:"topLogprobs" toml:"topLogprobs"`
	Stop              []string       `yaml:"stop" toml:"stop"`
	IncludeReasoning  *bool          `yaml:"includeReasoning" toml:"includeReasoning"`
}
