// Package mock provides an offline LLM client for local runs and tests.
package mock

import (
	"context"
	"strings"
	"sync"
)

// inputMarker starts the input block of an assembled prompt.
const inputMarker = "\n\nInput:\n"

// Client answers without any network access. With no canned reply it echoes
// the prompt's input block.
type Client struct {
	mu      sync.Mutex
	reply   func(system, user string) (string, error)
	calls   int
	prompts []string
}

// New creates an echoing mock.
func New() *Client { return &Client{} }

// NewStatic returns a mock that always answers reply.
func NewStatic(reply string) *Client {
	return &Client{reply: func(string, string) (string, error) { return reply, nil }}
}

// NewFunc returns a mock that delegates to fn.
func NewFunc(fn func(system, user string) (string, error)) *Client {
	return &Client{reply: fn}
}

func (c *Client) Invoke(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.calls++
	c.prompts = append(c.prompts, user)
	fn := c.reply
	c.mu.Unlock()
	if fn != nil {
		return fn(system, user)
	}
	if i := strings.LastIndex(user, inputMarker); i >= 0 {
		return user[i+len(inputMarker):], nil
	}
	return user, nil
}

// Calls returns the number of Invoke calls so far.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Prompts returns a copy of the user prompts received.
func (c *Client) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.prompts...)
}
