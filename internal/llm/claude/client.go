// Package claude adapts the Anthropic messages API to the triage
// Classifier interface. One alert, one single-turn call, raw text out.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/sift/internal/triage"
)

const responseTokens = 1024

// Client implements triage.Classifier against the Claude API.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a Claude classifier with the given API key and model name.
func New(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Classify sends one classification request and returns the concatenated
// text content verbatim. No parsing happens here; the triage validator
// owns that boundary.
func (c *Client) Classify(ctx context.Context, req *triage.ClassifyRequest) ([]byte, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: responseTokens,
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude: %w", err)
	}

	return textContent(msg), nil
}

// textContent concatenates the text blocks of a response, skipping any
// non-text content.
func textContent(msg *anthropic.Message) []byte {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return []byte(sb.String())
}
