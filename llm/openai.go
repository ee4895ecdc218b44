package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const DefaultOpenAIModel = "gpt-4o-mini"

var ErrAPIKeyNotSet = errors.New("API key not set")

// OpenAILanguageModel classifies and summarizes with chat completions.
type OpenAILanguageModel struct {
	client openai.Client
	model  string
}

func NewOpenAILanguageModel(
	apiKey string,
	model string,
	opts ...option.RequestOption,
) (*OpenAILanguageModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrAPIKeyNotSet)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAILanguageModel{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (o *OpenAILanguageModel) ClassifySentiment(
	ctx context.Context,
	text string,
) (Sentiment, error) {
	content, err := o.complete(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SentimentPrompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	})
	if err != nil {
		return Sentiment{}, err
	}
	return ParseSentiment(content)
}

func (o *OpenAILanguageModel) Summarize(ctx context.Context, text string) (string, error) {
	return o.complete(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(SummaryPrompt),
			openai.UserMessage(text),
		},
		MaxTokens:   openai.Int(200),
		Temperature: openai.Float(0.2),
	})
}

func (o *OpenAILanguageModel) complete(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
) (string, error) {
	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API error: no completion choices returned")
	}
	return completion.Choices[0].Message.Content, nil
}

var _ LanguageModel = (*OpenAILanguageModel)(nil)
