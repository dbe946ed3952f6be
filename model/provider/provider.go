// Package provider constructs a model.Model from a provider name and model id.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/agentcrew/model"
	anthropicmodel "github.com/hupe1980/agentcrew/model/anthropic"
	"github.com/hupe1980/agentcrew/model/gemini"
	"github.com/hupe1980/agentcrew/model/openai"
)

// Provider names accepted by New.
const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Gemini    = "gemini"
	Mock      = "mock"
)

// ErrUnknownProvider is returned for an unsupported provider name.
var ErrUnknownProvider = errors.New("unknown model provider")

// Config selects and parameterizes a model.
type Config struct {
	Provider    string  `yaml:"provider" validate:"required,oneof=openai anthropic gemini mock"`
	Model       string  `yaml:"model" validate:"required"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `yaml:"max_tokens" validate:"gte=0"`
	APIKey      string  `yaml:"-"`
	BaseURL     string  `yaml:"base_url,omitempty"`
}

// New builds the model described by cfg.
func New(ctx context.Context, cfg Config) (model.Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case OpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.Model = cfg.Model
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = int64(cfg.MaxTokens)
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		}), nil
	case Anthropic:
		return anthropicModel(cfg), nil
	case Gemini:
		return gemini.NewModel(ctx, func(o *gemini.Options) {
			o.Model = cfg.Model
			o.Temperature = cfg.Temperature
			o.MaxOutputTokens = int32(cfg.MaxTokens)
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
		})
	case Mock:
		return model.NewMockModel(cfg.Model, Mock), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

func anthropicModel(cfg Config) model.Model {
	return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
		o.Model = anthropic.Model(cfg.Model)
		o.Temperature = cfg.Temperature
		if cfg.MaxTokens > 0 {
			o.MaxTokens = int64(cfg.MaxTokens)
		}
		o.APIKey = cfg.APIKey
		o.BaseURL = cfg.BaseURL
	})
}
