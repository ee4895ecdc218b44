package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"node.town/callsense/config"
	"node.town/callsense/gemini"
	"node.town/callsense/llm"
	"node.town/callsense/speechmatics"
	"node.town/callsense/stt"
)

// backends holds the model adapters selected by configuration.
type backends struct {
	transcriber stt.Transcriber
	analyzer    llm.Analyzer
	gemini      *gemini.Client
}

func newBackends(
	ctx context.Context,
	cfg config.Config,
	hearLogger, talkLogger *log.Logger,
) (*backends, error) {
	b := &backends{}

	if cfg.Transcriber == config.BackendGemini || cfg.Analyzer == config.BackendGemini {
		client, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, hearLogger)
		if err != nil {
			return nil, err
		}
		b.gemini = client
	}

	transcriber, err := b.newTranscriber(cfg, hearLogger)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.transcriber = transcriber

	analyzer, err := b.newAnalyzer(cfg, talkLogger)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.analyzer = analyzer

	return b, nil
}

func (b *backends) newTranscriber(cfg config.Config, logger *log.Logger) (stt.Transcriber, error) {
	switch cfg.Transcriber {
	case config.BackendOpenAI:
		transcriber, err := stt.NewOpenAITranscriber(
			cfg.OpenAIAPIKey,
			cfg.OpenAITranscriptionModel,
			logger,
		)
		if err != nil {
			return nil, err
		}
		return transcriber, nil
	case config.BackendGemini:
		return b.gemini, nil
	case config.BackendSpeechmatics:
		transcriber, err := stt.NewSpeechmaticsTranscriber(
			speechmatics.NewClient(cfg.SpeechmaticsAPIKey, logger),
			cfg.SpeechmaticsLanguage,
			speechmatics.DefaultPollInterval,
		)
		if err != nil {
			return nil, err
		}
		return transcriber, nil
	}
	return nil, fmt.Errorf("%w: transcriber %q", config.ErrUnknownBackend, cfg.Transcriber)
}

func (b *backends) newAnalyzer(cfg config.Config, logger *log.Logger) (llm.Analyzer, error) {
	switch cfg.Analyzer {
	case config.BackendOpenAI:
		model, err := llm.NewOpenAILanguageModel(cfg.OpenAIAPIKey, cfg.OpenAIAnalysisModel)
		if err != nil {
			return nil, err
		}
		return llm.NewTextAnalyzer(model, logger), nil
	case config.BackendGemini:
		return llm.NewTextAnalyzer(b.gemini, logger), nil
	}
	return nil, fmt.Errorf("%w: analyzer %q", config.ErrUnknownBackend, cfg.Analyzer)
}

func (b *backends) Close() error {
	var errs []error
	if b.gemini != nil {
		errs = append(errs, b.gemini.Close())
	}
	return errors.Join(errs...)
}
