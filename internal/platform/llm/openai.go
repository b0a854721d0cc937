package llm

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
)

var ErrUnauthed = errors.New("unauthenticated to language model endpoint")

const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

type Message struct {
	Role    string
	Content string
}

type Config struct {
	APIKey      string
	BaseURL     string // empty means the public OpenAI endpoint
	Model       string
	Temperature float32
	MaxTokens   int
}

// Client is an OpenAI-compatible chat client. Output is streamed from the
// endpoint but only returned once the stream is complete.
type Client struct {
	client      *openai.Client
	hasToken    bool
	model       string
	temperature float32
	maxTokens   int
}

func NewClient(cfg Config) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &Client{
		client:      openai.NewClientWithConfig(oc),
		hasToken:    len(cfg.APIKey) >= 2,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

// Complete sends the conversation and returns the full buffered reply.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if !c.hasToken {
		return "", ErrUnauthed
	}
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Stream:      true,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		for _, choice := range chunk.Choices {
			sb.WriteString(choice.Delta.Content)
		}
	}
	return sb.String(), nil
}
