// Package rag is the answer-synthesis layer on top of the retriever: it
// formats retrieved chunks into a system prompt and asks the inference
// model for a final answer. This is the only layer allowed to turn
// pipeline errors into user-facing output.
package rag

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"manual-rag/internal/config"
	"manual-rag/internal/errs"
	"manual-rag/internal/llmservice"
	"manual-rag/internal/models"
	"manual-rag/internal/retriever"
)

type RAG struct {
	retriever *retriever.Retriever
	cfg       *config.Config
}

func NewRAG(r *retriever.Retriever, cfg *config.Config) *RAG {
	return &RAG{retriever: r, cfg: cfg}
}

// Answer retrieves the top chunks for the tenant and synthesizes a
// response. The tenant name doubles as the equipment name in the
// prompt, matching how tenants are derived from manual filenames.
func (r *RAG) Answer(ctx context.Context, query string, k int, class, tenant string) (*models.PromptResponse, error) {
	results, err := r.retriever.Query(ctx, query, k, class, tenant)
	if err != nil {
		return nil, err
	}

	source := FormatSources(results)
	messages := []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextContent{Text: buildSystemPrompt(source, tenant)}},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextContent{Text: models.Delimiter + query + models.Delimiter}},
		},
	}

	res, err := llmservice.GenerateContent(ctx, &r.cfg.InferLLM, nil, messages)
	if err != nil {
		return nil, err
	}
	if len(res.Choices) == 0 {
		return nil, fmt.Errorf("%w: completion returned no choices", errs.ErrTransient)
	}

	return &models.PromptResponse{
		Query:   query,
		Source:  source,
		Content: res.Choices[0].Content,
	}, nil
}

// Stream is the streaming variant against an OpenRouter-style
// /v1/chat/completions endpoint. The full response is accumulated and
// returned once the stream ends.
func (r *RAG) Stream(ctx context.Context, query string, k int, class, tenant string) (*models.PromptResponse, error) {
	results, err := r.retriever.Query(ctx, query, k, class, tenant)
	if err != nil {
		return nil, err
	}
	source := FormatSources(results)

	payload := struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Stream bool `json:"stream"`
	}{
		Model: r.cfg.InferLLM.Model,
		Messages: []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		}{
			{Role: "system", Content: buildSystemPrompt(source, tenant)},
			{Role: "user", Content: models.Delimiter + query + models.Delimiter},
		},
		Stream: true,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.InferLLM.BaseURL+"/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimPrefix(r.cfg.InferLLM.Key, "Bearer "))
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: completion request failed: %v", errs.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: completion request failed: %d, %s", errs.ErrTransient, resp.StatusCode, string(body))
	}

	var response strings.Builder
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("%w: reading completion stream: %v", errs.ErrTransient, err)
		}

		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if line == "data: [DONE]" {
			break
		}

		if strings.HasPrefix(line, "data: ") {
			data := strings.TrimPrefix(line, "data: ")
			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				response.WriteString(chunk.Choices[0].Delta.Content)
			}
		}
	}

	return &models.PromptResponse{
		Query:   query,
		Source:  source,
		Content: response.String(),
	}, nil
}

// FormatSources renders retrieved chunks for the prompt and for showing
// the user where an answer came from.
func FormatSources(results []models.QueryResult) string {
	parts := make([]string, len(results))
	for i, res := range results {
		parts[i] = fmt.Sprintf("Page Number: %d --- Text: %s", res.PageNumber, res.Content)
	}
	return strings.Join(parts, models.SourceSeparator)
}

func buildSystemPrompt(source, equipment string) string {
	return fmt.Sprintf(models.SystemPromptTemplate, models.Delimiter, source, equipment, models.Delimiter)
}
