// Package config loads crew definitions from YAML and credentials from the
// environment, and turns them into runnable crews.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model/provider"
)

// Tool types accepted in the tools section.
const (
	ToolSerper = "serper"
	ToolTavily = "tavily"
	ToolScrape = "scrape"
	ToolMemory = "memory"
)

// Environment overrides applied after the YAML file.
const (
	EnvLogLevel   = "AGENTCREW_LOG_LEVEL"
	EnvLogFormat  = "AGENTCREW_LOG_FORMAT"
	EnvOutputFile = "AGENTCREW_OUTPUT_FILE"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is a crew definition.
type Config struct {
	LLMs   map[string]provider.Config `yaml:"llms" validate:"required,min=1,dive"`
	Tools  map[string]ToolConfig      `yaml:"tools" validate:"dive"`
	Agents []AgentConfig              `yaml:"agents" validate:"required,min=1,dive"`
	Tasks  []TaskConfig               `yaml:"tasks" validate:"required,min=1,dive"`
	Crew   CrewConfig                 `yaml:"crew"`
	Inputs map[string]string          `yaml:"inputs"`
	Log    LogConfig                  `yaml:"log"`
}

type ToolConfig struct {
	Type             string `yaml:"type" validate:"required,oneof=serper tavily scrape memory"`
	MaxResults       int    `yaml:"max_results" validate:"gte=0"`
	Country          string `yaml:"country"`
	Locale           string `yaml:"locale"`
	SearchDepth      string `yaml:"search_depth" validate:"omitempty,oneof=basic advanced"`
	MaxContentLength int    `yaml:"max_content_length" validate:"gte=0"`
	SaveArtifacts    bool   `yaml:"save_artifacts"`
}

type AgentConfig struct {
	Name            string   `yaml:"name" validate:"required"`
	Role            string   `yaml:"role" validate:"required"`
	Goal            string   `yaml:"goal" validate:"required"`
	Backstory       string   `yaml:"backstory"`
	LLM             string   `yaml:"llm" validate:"required"`
	Tools           []string `yaml:"tools"`
	AllowDelegation bool     `yaml:"allow_delegation"`
	Verbose         bool     `yaml:"verbose"`
	MaxIter         int      `yaml:"max_iter" validate:"gte=0"`
	MaxRPM          int      `yaml:"max_rpm" validate:"gte=0"`
}

type TaskConfig struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description" validate:"required"`
	ExpectedOutput string   `yaml:"expected_output" validate:"required"`
	Agent          string   `yaml:"agent"`
	Tools          []string `yaml:"tools"`
	Context        []string `yaml:"context"`
	AsyncExecution bool     `yaml:"async_execution"`
	OutputFile     string   `yaml:"output_file"`
}

type CrewConfig struct {
	Process    string `yaml:"process" validate:"omitempty,oneof=sequential hierarchical"`
	ManagerLLM string `yaml:"manager_llm"`
	Verbose    bool   `yaml:"verbose"`
	Memory     bool   `yaml:"memory"`
	MaxRPM     int    `yaml:"max_rpm" validate:"gte=0"`
	// OutputFile receives the final raw output of a kickoff.
	OutputFile string `yaml:"output_file"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json zap"`
}

func defaults() Config {
	return Config{
		Crew: CrewConfig{Process: "sequential"},
		Log:  LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads and validates the definition at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML definition on top of the defaults, applies
// environment overrides and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
	if v := os.Getenv(EnvOutputFile); v != "" {
		c.Crew.OutputFile = v
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that every reference resolves.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var problems []string
	fail := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	agents := map[string]bool{}
	for _, a := range c.Agents {
		if agents[a.Name] {
			fail("duplicate agent %q", a.Name)
		}
		agents[a.Name] = true

		if _, ok := c.LLMs[a.LLM]; !ok {
			fail("agent %q uses unknown llm %q", a.Name, a.LLM)
		}
		for _, t := range a.Tools {
			if _, ok := c.Tools[t]; !ok {
				fail("agent %q uses unknown tool %q", a.Name, t)
			}
		}
	}

	hierarchical := c.Crew.Process == "hierarchical"
	if hierarchical {
		if _, ok := c.LLMs[c.Crew.ManagerLLM]; !ok {
			fail("hierarchical crew needs a known manager_llm, got %q", c.Crew.ManagerLLM)
		}
	}

	tasks := map[string]bool{}
	for i, t := range c.Tasks {
		name := taskName(t, i)
		if tasks[name] {
			fail("duplicate task %q", name)
		}

		switch {
		case t.Agent == "" && !hierarchical:
			fail("task %q has no agent", name)
		case t.Agent != "" && !agents[t.Agent]:
			fail("task %q uses unknown agent %q", name, t.Agent)
		}

		for _, tool := range t.Tools {
			if _, ok := c.Tools[tool]; !ok {
				fail("task %q uses unknown tool %q", name, tool)
			}
		}
		for _, dep := range t.Context {
			if !tasks[dep] {
				fail("task %q uses context %q which is not an earlier task", name, dep)
			}
		}

		tasks[name] = true
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}

	return nil
}

// RequiredCredentials lists the environment variables the definition needs,
// sorted and without duplicates.
func (c *Config) RequiredCredentials() []string {
	var names []string

	for _, l := range c.LLMs {
		if n := providerCredential(l.Provider); n != "" {
			names = append(names, n)
		}
	}
	for _, t := range c.Tools {
		if n := toolCredential(t.Type); n != "" {
			names = append(names, n)
		}
	}

	sort.Strings(names)
	return slices.Compact(names)
}

// Logger builds the logger described by the log section.
func (c *Config) Logger() (logging.Logger, error) {
	return NewLogger(c.Log.Level, c.Log.Format)
}

// NewLogger builds a stderr logger from textual level and format.
func NewLogger(level, format string) (logging.Logger, error) {
	lvl := logging.LogLevelInfo
	if level != "" {
		var err error
		if lvl, err = logging.ParseLevel(level); err != nil {
			return nil, err
		}
	}

	cfg := logging.DefaultConfig()
	cfg.Level = lvl
	if format != "" {
		cfg.Format = format
	}

	return logging.New(cfg), nil
}

func taskName(t TaskConfig, i int) string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("task-%d", i+1)
}
