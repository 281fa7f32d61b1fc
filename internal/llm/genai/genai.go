// Package genai calls Gemini generate-content models.
package genai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// Config configures the Gemini chat client.
type Config struct {
	APIKey      string
	Model       string
	Temperature *float32
}

// Client implements domain.LLMClient with the Gemini API.
type Client struct {
	client *genai.Client
	model  string
	temp   *float32
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GenAI API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Client{client: client, model: cfg.Model, temp: cfg.Temperature}, nil
}

// Invoke sends user with system as the system instruction.
func (c *Client) Invoke(ctx context.Context, system, user string) (string, error) {
	cfg := &genai.GenerateContentConfig{Temperature: c.temp}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(user), cfg)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("GenAI returned no text")
	}
	return text, nil
}
