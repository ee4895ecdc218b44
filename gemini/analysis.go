package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"node.town/callsense/llm"
)

func (c *Client) ClassifySentiment(ctx context.Context, text string) (llm.Sentiment, error) {
	resp, err := c.api.Generate(ctx, generateRequest{
		SystemPrompt:     llm.SentimentPrompt,
		ResponseMIMEType: "application/json",
		Parts:            []genai.Part{genai.Text(text)},
	})
	if err != nil {
		return llm.Sentiment{}, fmt.Errorf("gemini sentiment error: %w", err)
	}
	return llm.ParseSentiment(getResponseText(resp))
}

func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := c.api.Generate(ctx, generateRequest{
		SystemPrompt: llm.SummaryPrompt,
		Temperature:  0.2,
		Parts:        []genai.Part{genai.Text(text)},
	})
	if err != nil {
		return "", fmt.Errorf("gemini summary error: %w", err)
	}
	return strings.TrimSpace(getResponseText(resp)), nil
}

var _ llm.LanguageModel = (*Client)(nil)
