package llmservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"manual-rag/internal/config"
	"manual-rag/internal/errs"
)

// GenerateContent calls the configured chat-completion model.
func GenerateContent(ctx context.Context, llmConfig *config.LLMConfig, tools []llms.Tool, messages []llms.MessageContent) (*llms.ContentResponse, error) {
	log.Debug().Str("model", llmConfig.Model).Str("base_url", llmConfig.BaseURL).Msg("Generating content")
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(llmConfig.Key, "Bearer ")),
		openai.WithModel(llmConfig.Model),
	}
	if llmConfig.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}

	var res *llms.ContentResponse
	if len(tools) > 0 {
		res, err = llm.GenerateContent(ctx, messages, llms.WithTools(tools))
	} else {
		res, err = llm.GenerateContent(ctx, messages)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: completion call failed: %v", errs.ErrTransient, err)
	}
	return res, nil
}
