package main

import (
	"context"
	"fmt"
	"time"

	"github.com/lokutor-ai/lokutor-callstream/internal/config"
	"github.com/lokutor-ai/lokutor-callstream/pkg/orchestrator"
	llmProvider "github.com/lokutor-ai/lokutor-callstream/pkg/providers/llm"
	sttProvider "github.com/lokutor-ai/lokutor-callstream/pkg/providers/stt"
	ttsProvider "github.com/lokutor-ai/lokutor-callstream/pkg/providers/tts"
)

type providers struct {
	stt    orchestrator.StreamingSTTProvider
	engine orchestrator.DialogueEngine
	tts    orchestrator.TTSProvider
	// closers release pooled connections at shutdown.
	closers []func() error
}

// buildProviders selects the mock or live implementation of every engine.
func buildProviders(ctx context.Context, cfg config.Config) (*providers, error) {
	if cfg.Mode == config.ModeMock {
		return &providers{
			stt:    sttProvider.NewMockSTT(cfg.Mock.Utterances, cfg.Mock.Interval),
			engine: llmProvider.NewMockDialogue(),
			tts:    ttsProvider.NewMockTTS(20 * time.Millisecond),
		}, nil
	}

	p := &providers{}

	switch cfg.STT.Provider {
	case "deepgram":
		p.stt = sttProvider.NewDeepgramSTT(cfg.Keys.Deepgram)
	default:
		batch, err := batchSTT(cfg)
		if err != nil {
			return nil, err
		}
		vad := orchestrator.NewRMSVAD(cfg.STT.VADThreshold, cfg.STT.VADSilence)
		p.stt = sttProvider.NewSegmented(batch, vad, cfg.STT.MaxUtteranceMs)
	}

	var chat orchestrator.LLMProvider
	switch cfg.LLM.Provider {
	case "openai":
		chat = llmProvider.NewOpenAILLM(cfg.Keys.OpenAI, cfg.LLM.Model)
	case "groq":
		chat = llmProvider.NewGroqLLM(cfg.Keys.Groq, cfg.LLM.Model)
	case "anthropic":
		chat = llmProvider.NewAnthropicLLM(cfg.Keys.Anthropic, cfg.LLM.Model)
	case "gemini":
		gemini, err := llmProvider.NewGeminiLLM(ctx, cfg.Keys.Google, cfg.LLM.Model)
		if err != nil {
			return nil, err
		}
		chat = gemini
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	business := llmProvider.DefaultBusiness()
	if cfg.LLM.BusinessName != "" {
		business.Name = cfg.LLM.BusinessName
	}
	p.engine = llmProvider.NewStructuredDialogue(chat, business, cfg.LLM.SystemPrompt)

	switch cfg.TTS.Provider {
	case "lokutor":
		lokutor := ttsProvider.NewLokutorTTS(cfg.Keys.Lokutor)
		p.tts = lokutor
		p.closers = append(p.closers, lokutor.Close)
	case "openai":
		p.tts = ttsProvider.NewOpenAITTS(cfg.Keys.OpenAI, cfg.TTS.Model)
	default:
		return nil, fmt.Errorf("unknown tts provider %q", cfg.TTS.Provider)
	}
	return p, nil
}

func batchSTT(cfg config.Config) (orchestrator.STTProvider, error) {
	switch cfg.STT.Provider {
	case "openai":
		return sttProvider.NewOpenAISTT(cfg.Keys.OpenAI, cfg.STT.Model), nil
	case "groq":
		model := cfg.STT.Model
		if model == "" {
			model = "whisper-large-v3-turbo"
		}
		return sttProvider.NewGroqSTT(cfg.Keys.Groq, model), nil
	case "assemblyai":
		return sttProvider.NewAssemblyAISTT(cfg.Keys.AssemblyAI), nil
	default:
		return nil, fmt.Errorf("unknown stt provider %q", cfg.STT.Provider)
	}
}

func (p *providers) close() {
	for _, c := range p.closers {
		_ = c()
	}
}
