// Package claude adjudicates drug pairs that no curated source covers,
// using the Anthropic API as a last-resort knowledge source.
package claude

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 1024
)

// Messenger is the single Anthropic API operation the adjudicator
// needs, split out so tests can stub the transport.
type Messenger interface {
	CreateMessage(ctx context.Context, system, user string) (string, error)
}

type sdkMessenger struct {
	client    sdk.Client
	model     string
	maxTokens int64
}

// MessengerOption configures the SDK-backed messenger.
type MessengerOption func(*sdkMessenger)

// WithModel overrides the default model.
func WithModel(model string) MessengerOption {
	return func(m *sdkMessenger) {
		if model != "" {
			m.model = model
		}
	}
}

// NewMessenger creates a Messenger backed by the official SDK.
func NewMessenger(apiKey string, opts ...MessengerOption) Messenger {
	m := &sdkMessenger{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *sdkMessenger) CreateMessage(ctx context.Context, system, user string) (string, error) {
	msg, err := m.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(m.model),
		MaxTokens: m.maxTokens,
		System:    []sdk.TextBlockParam{{Text: system}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(user)),
		},
		Temperature: sdk.Float(0),
	})
	if err != nil {
		return "", eris.Wrap(err, "claude: create message")
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
