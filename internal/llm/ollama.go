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

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// OllamaProvider implements Provider using the Ollama /api/chat endpoint
type OllamaProvider struct {
	cfg        EndpointConfig
	httpClient *http.Client
}

// NewOllamaProvider creates a new Ollama-backed provider
func NewOllamaProvider(cfg EndpointConfig, client *http.Client) *OllamaProvider {
	if client == nil {
		client = newHTTPClient(cfg.Timeout)
	}
	return &OllamaProvider{cfg: cfg, httpClient: client}
}

// Model returns the chat model identifier
func (o *OllamaProvider) Model() string {
	return o.cfg.Model
}

type ollamaChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error"`
}

func (o *OllamaProvider) payload(req Request, stream bool) map[string]any {
	payload := map[string]any{
		"model":    o.cfg.Model,
		"messages": req.Messages,
		"stream":   stream,
		"options":  map[string]any{"temperature": req.Temperature},
	}
	if req.JSON {
		payload["format"] = "json"
	}
	return payload
}

// Complete sends the messages and returns the complete response
func (o *OllamaProvider) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := post(ctx, o.httpClient, o.cfg, "/api/chat", o.payload(req, false))
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	defer resp.Body.Close()

	var chunk ollamaChunk
	if err := json.NewDecoder(resp.Body).Decode(&chunk); err != nil {
		return "", fmt.Errorf("%w: ollama chat decode: %v", ErrUpstream, err)
	}
	if chunk.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrUpstream, chunk.Error)
	}
	return chunk.Message.Content, nil
}

// Stream sends the messages and streams the response token by token. Ollama
// answers with one JSON object per line.
func (o *OllamaProvider) Stream(ctx context.Context, req Request) (*Stream, error) {
	resp, err := post(ctx, o.httpClient, o.cfg, "/api/chat", o.payload(req, true))
	if err != nil {
		return nil, fmt.Errorf("ollama stream: %w", err)
	}

	decoder := json.NewDecoder(resp.Body)
	finished := false
	return NewStream(resp.Body, func() (string, error) {
		if finished {
			return "", io.EOF
		}
		var chunk ollamaChunk
		if err := decoder.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("%w: stream ended before done", ErrUpstream)
			}
			return "", fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("%w: %s", ErrUpstream, chunk.Error)
		}
		if chunk.Done {
			finished = true
		}
		if chunk.Message.Content == "" && finished {
			return "", io.EOF
		}
		return chunk.Message.Content, nil
	}), nil
}
