package agent

import (
	"fmt"

	"dealflow/pkg/core/llm"
)

// Task names used by the analysis adapter when resolving a provider.
const (
	TaskAnalysis   = "analysis"
	TaskQuickScore = "quick_score"
)

type Config struct {
	ActiveProvider string                `yaml:"active_provider"`
	Tasks          map[string]TaskConfig `yaml:"tasks"`
}

type TaskConfig struct {
	Provider    string `yaml:"provider"` // Optional override
	Model       string `yaml:"model"`    // Optional model override
	Description string `yaml:"description"`
}

// Manager routes each task to a configured LLM provider. Tasks without an
// override use the global active provider.
type Manager struct {
	config    Config
	providers map[string]llm.Provider
}

func NewManager(config Config) *Manager {
	if config.ActiveProvider == "" {
		config.ActiveProvider = "gemini"
	}
	return &Manager{
		config: config,
		providers: map[string]llm.Provider{
			"gemini":      &llm.GeminiProvider{},
			"gemini-lite": &llm.GeminiLiteProvider{},
			"deepseek":    &llm.DeepSeekProvider{},
		},
	}
}

// GetProvider resolves the provider for a task.
func (m *Manager) GetProvider(task string) llm.Provider {
	if taskCfg, ok := m.config.Tasks[task]; ok && taskCfg.Provider != "" {
		if p, ok := m.providers[taskCfg.Provider]; ok {
			return p
		}
	}
	if p, ok := m.providers[m.config.ActiveProvider]; ok {
		return p
	}
	// The quick tier defaults to the lite model when unconfigured.
	if task == TaskQuickScore {
		return m.providers["gemini-lite"]
	}
	return m.providers["gemini"]
}

// ModelOverride returns the per-task model override, if any.
func (m *Manager) ModelOverride(task string) string {
	if taskCfg, ok := m.config.Tasks[task]; ok {
		return taskCfg.Model
	}
	return ""
}

func (m *Manager) SetGlobalProvider(name string) error {
	if _, ok := m.providers[name]; !ok {
		return fmt.Errorf("provider %s not found", name)
	}
	m.config.ActiveProvider = name
	return nil
}

func (m *Manager) GetActiveProvider() string {
	return m.config.ActiveProvider
}

// ProviderNames lists the registered providers, for the config API.
func (m *Manager) ProviderNames() []string {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	return names
}
