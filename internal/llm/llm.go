// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llm talks to the chat model that classifies and answers citizen
// questions.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUpstream marks any failure talking to the model endpoint
var ErrUpstream = errors.New("language model unavailable")

// Roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a chat completion request
type Request struct {
	Messages    []Message
	Temperature float64
	// JSON asks the model to emit a single JSON object
	JSON bool
}

// Provider is a chat model endpoint
type Provider interface {
	// Complete returns the full answer to req
	Complete(ctx context.Context, req Request) (string, error)
	// Stream starts a streamed answer. The returned stream must be closed.
	Stream(ctx context.Context, req Request) (*Stream, error)
	// Model returns the model identifier
	Model() string
}

// EndpointConfig holds the configuration for a model endpoint
type EndpointConfig struct {
	Provider string // ollama, openai
	BaseURL  string // e.g. http://localhost:11434
	Model    string
	Token    string // bearer token, empty for none
	Timeout  time.Duration
}

// NewProvider builds the provider named by cfg.Provider
func NewProvider(cfg EndpointConfig) (Provider, error) {
	client := newHTTPClient(cfg.Timeout)
	switch cfg.Provider {
	case "ollama", "":
		return NewOllamaProvider(cfg, client), nil
	case "openai":
		return NewOpenAIProvider(cfg, client), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

// newHTTPClient bounds the wait for response headers but not the body, so
// long streams are limited only by the caller's context.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		transport.ResponseHeaderTimeout = timeout
	}
	return &http.Client{Transport: transport}
}

// post sends payload as JSON to baseURL+path and returns the open response.
// Non-200 answers are closed and reported as ErrUpstream.
func post(ctx context.Context, client *http.Client, cfg EndpointConfig, path string, payload any) (*http.Response, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := strings.TrimRight(cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}
