package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables holding credentials.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvGoogleKey    = "GOOGLE_API_KEY"
	EnvGeminiKey    = "GEMINI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvSerperKey    = "SERPER_API_KEY"
	EnvTavilyKey    = "TAVILY_API_KEY"
)

// ErrMissingCredential is returned when a required credential is unset.
var ErrMissingCredential = errors.New("missing credential")

// LoadEnv loads .env files into the process environment. Variables already
// set win over file values, and files that do not exist are skipped.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}

	return nil
}

// Lookup returns a non-empty credential. GOOGLE_API_KEY falls back to
// GEMINI_API_KEY.
func Lookup(name string) (string, bool) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v, true
	}
	if name == EnvGoogleKey {
		return Lookup(EnvGeminiKey)
	}
	return "", false
}

// Require checks that every named credential is set. The error names all
// missing variables.
func Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := Lookup(n); !ok {
			missing = append(missing, n)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(missing, ", "))
	}

	return nil
}

// providerCredential maps a model provider to its credential variable.
func providerCredential(provider string) string {
	switch strings.ToLower(provider) {
	case "openai":
		return EnvOpenAIKey
	case "anthropic":
		return EnvAnthropicKey
	case "gemini":
		return EnvGoogleKey
	default:
		return ""
	}
}

// toolCredential maps a tool type to its credential variable.
func toolCredential(toolType string) string {
	switch toolType {
	case ToolSerper:
		return EnvSerperKey
	case ToolTavily:
		return EnvTavilyKey
	default:
		return ""
	}
}
