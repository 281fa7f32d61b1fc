package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GenAIEmbedderConfig holds configuration for the Gemini embedder.
type GenAIEmbedderConfig struct {
	APIKeyEnv  string `yaml:"api_key_env"`
	Model      string `yaml:"model"`
	TaskType   string `yaml:"task_type"`
	Dimensions int    `yaml:"dimensions"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	GenAI  *GenAIEmbedderConfig  `yaml:"genai,omitempty"`
}

// VectorStoreConfig selects and configures the dense index backend.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	Distance    string `yaml:"distance"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IndexConfig locates the glossary source and the built index artifacts.
type IndexConfig struct {
	Dir         string `yaml:"dir"`
	MetaFile    string `yaml:"meta_file"`
	VectorsFile string `yaml:"vectors_file"`
	Glossary    string `yaml:"glossary"`
}

// MetaPath returns the metadata artifact path.
func (c IndexConfig) MetaPath() string { return filepath.Join(c.Dir, c.MetaFile) }

// VectorsPath returns the dense vectors artifact path.
func (c IndexConfig) VectorsPath() string { return filepath.Join(c.Dir, c.VectorsFile) }

// RetrieverConfig tunes hybrid retrieval.
type RetrieverConfig struct {
	TopK          int     `yaml:"top_k"`
	LexicalWeight *float64 `yaml:"lexical_weight,omitempty"`
	Tokenizer     string  `yaml:"tokenizer"`
	K1            float64 `yaml:"k1"`
	B             float64 `yaml:"b"`
}

// OpenAILLMConfig configures an OpenAI-compatible chat completions endpoint.
type OpenAILLMConfig struct {
	BaseURL     string   `yaml:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature,omitempty"`
}

// GenAILLMConfig configures the Gemini generate-content client.
type GenAILLMConfig struct {
	APIKeyEnv   string   `yaml:"api_key_env"`
	Model       string   `yaml:"model"`
	Temperature *float32 `yaml:"temperature,omitempty"`
}

// LLMConfig selects the model client and bounds calls into it.
type LLMConfig struct {
	Type          string           `yaml:"type"`
	TimeoutSecs   int              `yaml:"timeout_secs"`
	MaxConcurrent int              `yaml:"max_concurrent"`
	OpenAI        *OpenAILLMConfig `yaml:"openai,omitempty"`
	GenAI         *GenAILLMConfig  `yaml:"genai,omitempty"`
}

// TaskTemplate is the typed prompt configuration of one task. Both fields may
// reference the placeholders listed in Placeholders.
type TaskTemplate struct {
	System       string `yaml:"system"`
	Instructions string `yaml:"instructions"`
}

// PromptsConfig holds the per-task templates and their shared parameters.
type PromptsConfig struct {
	Delimiter      string                  `yaml:"delimiter"`
	FewShotFile    string                  `yaml:"few_shot_file"`
	Categories     []string                `yaml:"categories"`
	SourceLanguage string                  `yaml:"source_language"`
	TargetLanguage string                  `yaml:"target_language"`
	Tasks          map[string]TaskTemplate `yaml:"tasks"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Index       IndexConfig       `yaml:"index"`
	Retriever   RetrieverConfig   `yaml:"retriever"`
	LLM         LLMConfig         `yaml:"llm"`
	Prompts     PromptsConfig     `yaml:"prompts"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// Placeholders are the only substitutable fields a task template may use.
var Placeholders = []string{"timestamp", "categories", "delimiter", "source_language", "target_language"}

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// TemplateFields returns the placeholder names referenced by s, in order.
func TemplateFields(s string) []string {
	var out []string
	for _, m := range placeholderRe.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./postrag.yaml first, then ~/.config/postrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/postrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "postrag.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configurations that cannot serve requests: unknown task
// keys, templates referencing unknown placeholders, and out-of-range knobs.
func Validate(cfg *AppConfig) error {
	allowed := make(map[string]struct{}, len(Placeholders))
	for _, p := range Placeholders {
		allowed[p] = struct{}{}
	}
	names := make([]string, 0, len(cfg.Prompts.Tasks))
	for name := range cfg.Prompts.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !isTask(name) {
			return fmt.Errorf("prompts: unknown task %q", name)
		}
		tpl := cfg.Prompts.Tasks[name]
		for _, field := range append(TemplateFields(tpl.System), TemplateFields(tpl.Instructions)...) {
			if _, ok := allowed[field]; !ok {
				return fmt.Errorf("prompts: task %q: unknown placeholder {%s}", name, field)
			}
		}
	}
	if strings.TrimSpace(cfg.Prompts.Delimiter) == "" {
		return errors.New("prompts: empty delimiter")
	}
	if w := cfg.Retriever.LexicalWeight; w != nil && *w < 0 {
		return fmt.Errorf("retriever: negative lexical_weight %v", *w)
	}
	return nil
}

func isTask(name string) bool {
	for _, t := range taskNames {
		if t == name {
			return true
		}
	}
	return false
}

// taskNames mirrors domain.Tasks; config stays free of domain imports.
var taskNames = []string{"translate", "classify", "schedule", "reply"}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "postrag", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig { return defaultConfig() }

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "tfidf"},
		VectorStore: VectorStoreConfig{Type: "memory"},
		LLM:         LLMConfig{Type: "openai"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		o := cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
	}
	if cfg.Embedder.Type == "genai" && cfg.Embedder.GenAI != nil && cfg.Embedder.GenAI.APIKeyEnv == "" {
		cfg.Embedder.GenAI.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil {
		q := cfg.VectorStore.Qdrant
		if q.Collection == "" {
			q.Collection = "glossary"
		}
		if q.Distance == "" {
			q.Distance = "Cosine"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 15
		}
	}

	if cfg.Index.Dir == "" {
		cfg.Index.Dir = "index"
	}
	if cfg.Index.MetaFile == "" {
		cfg.Index.MetaFile = "meta.json"
	}
	if cfg.Index.VectorsFile == "" {
		cfg.Index.VectorsFile = "vectors.bin"
	}
	if cfg.Index.Glossary == "" {
		cfg.Index.Glossary = "glossary.yaml"
	}

	if cfg.Retriever.TopK <= 0 {
		cfg.Retriever.TopK = 5
	}
	// an explicit 0 selects pure dense ranking
	if cfg.Retriever.LexicalWeight == nil {
		w := 0.6
		cfg.Retriever.LexicalWeight = &w
	}
	if cfg.Retriever.Tokenizer == "" {
		cfg.Retriever.Tokenizer = "word"
	}
	if cfg.Retriever.K1 == 0 {
		cfg.Retriever.K1 = 1.5
	}
	if cfg.Retriever.B == 0 {
		cfg.Retriever.B = 0.75
	}

	if cfg.LLM.TimeoutSecs <= 0 {
		cfg.LLM.TimeoutSecs = 120
	}
	if cfg.LLM.MaxConcurrent <= 0 {
		cfg.LLM.MaxConcurrent = 8
	}
	switch cfg.LLM.Type {
	case "openai", "":
		if cfg.LLM.OpenAI == nil {
			cfg.LLM.OpenAI = &OpenAILLMConfig{}
		}
		if cfg.LLM.OpenAI.BaseURL == "" {
			cfg.LLM.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.LLM.OpenAI.APIKeyEnv == "" {
			cfg.LLM.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.LLM.OpenAI.Model == "" {
			cfg.LLM.OpenAI.Model = "gpt-4.1-mini"
		}
	case "genai":
		if cfg.LLM.GenAI == nil {
			cfg.LLM.GenAI = &GenAILLMConfig{}
		}
		if cfg.LLM.GenAI.APIKeyEnv == "" {
			cfg.LLM.GenAI.APIKeyEnv = "GEMINI_API_KEY"
		}
		if cfg.LLM.GenAI.Model == "" {
			cfg.LLM.GenAI.Model = "gemini-2.5-flash"
		}
	}

	p := &cfg.Prompts
	if p.Delimiter == "" {
		p.Delimiter = "|||"
	}
	if p.FewShotFile == "" {
		p.FewShotFile = "few_shot.yaml"
	}
	if len(p.Categories) == 0 {
		p.Categories = []string{"event", "release", "media", "goods", "ticket", "general"}
	}
	if p.SourceLanguage == "" {
		p.SourceLanguage = "Japanese"
	}
	if p.TargetLanguage == "" {
		p.TargetLanguage = "English"
	}
	if p.Tasks == nil {
		p.Tasks = make(map[string]TaskTemplate)
	}
	for name, tpl := range defaultTemplates {
		cur, ok := p.Tasks[name]
		if !ok {
			p.Tasks[name] = tpl
			continue
		}
		if cur.System == "" {
			cur.System = tpl.System
		}
		if cur.Instructions == "" {
			cur.Instructions = tpl.Instructions
		}
		p.Tasks[name] = cur
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}
