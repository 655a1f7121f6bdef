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
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAIProvider implements Provider against an OpenAI-compatible
// /v1/chat/completions endpoint
type OpenAIProvider struct {
	cfg        EndpointConfig
	httpClient *http.Client
}

// NewOpenAIProvider creates a provider for OpenAI-compatible servers
func NewOpenAIProvider(cfg EndpointConfig, client *http.Client) *OpenAIProvider {
	if client == nil {
		client = newHTTPClient(cfg.Timeout)
	}
	return &OpenAIProvider{cfg: cfg, httpClient: client}
}

// Model returns the chat model identifier
func (o *OpenAIProvider) Model() string {
	return o.cfg.Model
}

type openAIError struct {
	Message string `json:"message"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *openAIError `json:"error"`
}

func (o *OpenAIProvider) payload(req Request, stream bool) map[string]any {
	payload := map[string]any{
		"model":       o.cfg.Model,
		"messages":    req.Messages,
		"stream":      stream,
		"temperature": req.Temperature,
	}
	if req.JSON {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}
	return payload
}

// Complete sends the messages and returns the complete response
func (o *OpenAIProvider) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := post(ctx, o.httpClient, o.cfg, "/v1/chat/completions", o.payload(req, false))
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	defer resp.Body.Close()

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: openai chat decode: %v", ErrUpstream, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrUpstream, out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrUpstream)
	}
	return out.Choices[0].Message.Content, nil
}

// Stream sends the messages and reads the server-sent event stream
func (o *OpenAIProvider) Stream(ctx context.Context, req Request) (*Stream, error) {
	resp, err := post(ctx, o.httpClient, o.cfg, "/v1/chat/completions", o.payload(req, true))
	if err != nil {
		return nil, fmt.Errorf("openai stream: %w", err)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return NewStream(resp.Body, func() (string, error) {
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
			data = strings.TrimSpace(data)
			if data == "[DONE]" {
				return "", io.EOF
			}

			var chunk openAIResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return "", fmt.Errorf("%w: %v", ErrUpstream, err)
			}
			if chunk.Error != nil {
				return "", fmt.Errorf("%w: %s", ErrUpstream, chunk.Error.Message)
			}
			if len(chunk.Choices) == 0 {
				return "", nil
			}
			return chunk.Choices[0].Delta.Content, nil
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		return "", fmt.Errorf("%w: stream ended before [DONE]", ErrUpstream)
	}), nil
}
