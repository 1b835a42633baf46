// Package advisor produces a one-shot AI commentary on a portfolio
// report. The rendered markdown is sent to Gemini and the model's
// answer comes back as plain text.
//
// The API key is read by the genai client from the environment
// (GEMINI_API_KEY or GOOGLE_API_KEY); a missing key is a clean error,
// never a crash.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultModel = "gemini-2.5-flash"

const systemPrompt = `You are a pragmatic portfolio advisor reviewing a private
investor's self-managed portfolio. You receive a markdown report with the
current holdings, valuation and recent transactions.

Comment briefly on concentration, unrealized and realized performance, and
anything unusual in the transaction log. Prices flagged as stale could not be
refreshed; treat them with caution. Do not invent market data you were not
given, and never present your commentary as financial advice.`

// Advisor asks a generative model to comment on portfolio reports.
type Advisor struct {
	model  string
	client *genai.Client
}

// Option configures the Advisor.
type Option func(*Advisor)

// WithModel overrides the default model name.
func WithModel(name string) Option {
	return func(a *Advisor) { a.model = name }
}

// New creates an Advisor. Fails when no API key is configured in the
// environment.
func New(ctx context.Context, opts ...Option) (*Advisor, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	a := &Advisor{model: defaultModel, client: client}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// Comment sends the rendered report to the model and returns its
// commentary as markdown.
func (a *Advisor) Comment(ctx context.Context, report string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}},
	}
	chat, err := a.client.Chats.Create(ctx, a.model, config, nil)
	if err != nil {
		return "", fmt.Errorf("starting advisor chat: %w", err)
	}
	resp, err := chat.Send(ctx, &genai.Part{Text: report})
	if err != nil {
		return "", fmt.Errorf("asking the advisor: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("advisor returned no content")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}
