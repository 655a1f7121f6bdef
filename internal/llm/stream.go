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
	"io"
	"sync"
)

// Stream yields the text chunks of a streamed answer
type Stream struct {
	body io.Closer
	// next returns the next chunk, io.EOF once the model signals completion
	next func() (string, error)
	once sync.Once
	done bool
}

// NewStream wraps a chunk source. next returns io.EOF once the answer is
// complete; body, when non-nil, is closed by Close.
func NewStream(body io.Closer, next func() (string, error)) *Stream {
	return &Stream{body: body, next: next}
}

// Recv returns the next non-empty chunk. It returns io.EOF after the last
// chunk and an error wrapping ErrUpstream when the stream breaks.
func (s *Stream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		chunk, err := s.next()
		if err != nil {
			s.done = true
			return "", err
		}
		if chunk != "" {
			return chunk, nil
		}
	}
}

// Close releases the underlying connection
func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		if s.body != nil {
			err = s.body.Close()
		}
	})
	return err
}
