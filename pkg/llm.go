package pkg

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// LLMClient wraps the OpenAI-compatible chat/embedding API. The base URL is
// configurable so a local inference server (e.g. Ollama's /v1 endpoint) can be used
// in place of the hosted API; one model id serves generation, another embeddings.
type LLMClient struct {
	client     *openai.Client
	chatModel  string
	embedModel string
}

func NewLLMClient(baseURL, apiKey, chatModel, embedModel string) *LLMClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &LLMClient{
		client:     openai.NewClientWithConfig(cfg),
		chatModel:  chatModel,
		embedModel: embedModel,
	}
}

// GenerateText sends one system+user turn and returns the raw completion text.
// No streaming; callers parse the free text themselves.
func (slf *LLMClient) GenerateText(ctx context.Context, system, user string, temperature float32) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	resp, err := slf.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       slf.chatModel,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Ping verifies the inference service is reachable.
func (slf *LLMClient) Ping(ctx context.Context) error {
	_, err := slf.client.ListModels(ctx)
	return err
}

// Embed returns the embedding vector for a single text.
func (slf *LLMClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := slf.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(slf.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return resp.Data[0].Embedding, nil
}
