// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/go-a2a/agentd/a2a"
	"github.com/go-a2a/agentd/internal/jsonrpc2"
)

// maxFrame bounds a single SSE data frame.
const maxFrame = 4 << 20

// Stream reads the task events of a message/stream call.
type Stream struct {
	id     jsontext.Value
	body   io.ReadCloser
	reader *bufio.Reader

	mu     sync.Mutex
	closed bool
	final  bool
}

func newStream(body io.ReadCloser, id jsontext.Value) *Stream {
	return &Stream{
		id:     id,
		body:   body,
		reader: bufio.NewReaderSize(body, 64<<10),
	}
}

// Recv returns the next event. After the final status update it returns [io.EOF].
func (s *Stream) Recv() (a2a.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.final || s.closed {
		return nil, io.EOF
	}

	data, err := s.readFrame()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	var frame struct {
		ID     jsontext.Value      `json:"id"`
		Result jsontext.Value      `json:"result"`
		Error  *jsonrpc2.WireError `json:"error"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("decode stream frame: %w", err)
	}
	if frame.Error != nil {
		return nil, frame.Error
	}
	if !bytes.Equal(frame.ID, s.id) {
		return nil, fmt.Errorf("stream frame id %s does not match request id %s", frame.ID, s.id)
	}

	ev, err := decodeEvent(frame.Result)
	if err != nil {
		return nil, err
	}
	if a2a.IsFinal(ev) {
		s.final = true
	}
	return ev, nil
}

// Close releases the connection. It is safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// readFrame returns the joined data lines of the next non-empty SSE event.
func (s *Stream) readFrame() ([]byte, error) {
	var data []byte
	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil && (len(line) == 0 || !errors.Is(err, io.EOF)) {
			return nil, err
		}
		line = bytes.TrimRight(line, "\r\n")

		switch {
		case len(line) == 0:
			if len(data) > 0 {
				return data, nil
			}
		case bytes.HasPrefix(line, []byte("data:")):
			data = append(data, bytes.TrimSpace(line[len("data:"):])...)
			if len(data) > maxFrame {
				return nil, fmt.Errorf("stream frame exceeds %d bytes", maxFrame)
			}
		}
		// Other fields (event, id, retry) and comments are ignored.

		if err != nil {
			if len(data) > 0 {
				return data, nil
			}
			return nil, err
		}
	}
}

func decodeEvent(raw jsontext.Value) (a2a.Event, error) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	var ev a2a.Event
	switch head.Kind {
	case a2a.KindTask:
		ev = new(a2a.Task)
	case a2a.KindStatusUpdate:
		ev = new(a2a.TaskStatusUpdateEvent)
	case a2a.KindArtifactUpdate:
		ev = new(a2a.TaskArtifactUpdateEvent)
	default:
		return nil, fmt.Errorf("unknown event kind %q", head.Kind)
	}
	if err := json.Unmarshal(raw, ev); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", head.Kind, err)
	}
	return ev, nil
}
