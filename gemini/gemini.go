package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-1.5-flash"

var ErrAPIKeyNotSet = errors.New("gemini: API key not set")

type generateRequest struct {
	SystemPrompt     string
	Temperature      float32
	ResponseMIMEType string
	Parts            []genai.Part
}

// api is the part of the Gemini API the client needs.
type api interface {
	UploadFile(ctx context.Context, name string, r io.Reader, opts *genai.UploadFileOptions) (*genai.File, error)
	GetFile(ctx context.Context, name string) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
	Generate(ctx context.Context, req generateRequest) (*genai.GenerateContentResponse, error)
	Close() error
}

// Client serves as both a transcriber and a language model.
type Client struct {
	api          api
	logger       *log.Logger
	pollInterval time.Duration
}

func New(
	ctx context.Context,
	apiKey string,
	model string,
	logger *log.Logger,
) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return newClient(&genaiAPI{Client: client, model: model}, logger), nil
}

func newClient(a api, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		api:          a,
		logger:       logger,
		pollInterval: fileStatePollInterval,
	}
}

func (c *Client) Close() error {
	return c.api.Close()
}

// genaiAPI adapts *genai.Client, building a configured model per request.
type genaiAPI struct {
	*genai.Client
	model string
}

func (g *genaiAPI) Generate(
	ctx context.Context,
	req generateRequest,
) (*genai.GenerateContentResponse, error) {
	model := g.GenerativeModel(g.model)
	model.GenerationConfig.SetMaxOutputTokens(8192)
	model.GenerationConfig.SetTemperature(req.Temperature)
	model.GenerationConfig.SetTopP(1.0)
	model.GenerationConfig.ResponseMIMEType = req.ResponseMIMEType
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{
			genai.Text(req.SystemPrompt),
		},
	}
	model.SafetySettings = []*genai.SafetySetting{
		{
			Category:  genai.HarmCategoryHarassment,
			Threshold: genai.HarmBlockOnlyHigh,
		},
		{
			Category:  genai.HarmCategoryHateSpeech,
			Threshold: genai.HarmBlockOnlyHigh,
		},
		{
			Category:  genai.HarmCategorySexuallyExplicit,
			Threshold: genai.HarmBlockOnlyHigh,
		},
		{
			Category:  genai.HarmCategoryDangerousContent,
			Threshold: genai.HarmBlockOnlyHigh,
		},
	}
	return model.GenerateContent(ctx, req.Parts...)
}

func getResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
