package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestStream_Chunks(t *testing.T) {
	text := strings.Repeat("a", 50) + strings.Repeat("b", 50) + "tail"
	gen := &recordingGenerator{text: text}
	e := newTestEngine(t, coderProfile(), gen, nil, WithStreaming(50, 0))

	var chunks []Chunk
	resp, err := e.Stream(context.Background(), "go", RequestContext{}, func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}
	if resp.Text != text {
		t.Errorf("Response text changed by streaming")
	}
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	if chunks[2].Text != "tail" || !chunks[2].Finished {
		t.Errorf("Unexpected last chunk %+v", chunks[2])
	}
	for i, c := range chunks[:2] {
		if c.Finished || c.Error || c.Index != i || len([]rune(c.Text)) != 50 {
			t.Errorf("Unexpected chunk %d: %+v", i, c)
		}
	}
}

func TestStream_MultibyteRunes(t *testing.T) {
	gen := &recordingGenerator{text: strings.Repeat("é", 60)}
	e := newTestEngine(t, coderProfile(), gen, nil, WithStreaming(50, 0))

	var got []string
	if _, err := e.Stream(context.Background(), "go", RequestContext{}, func(c Chunk) error {
		got = append(got, c.Text)
		return nil
	}); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(got) != 2 || got[1] != strings.Repeat("é", 10) {
		t.Errorf("Unexpected chunks %q", got)
	}
}

func TestStream_Failure(t *testing.T) {
	gen := &recordingGenerator{fail: "backend request timed out"}
	e := newTestEngine(t, coderProfile(), gen, nil, WithStreaming(50, 0))

	var chunks []Chunk
	resp, err := e.Stream(context.Background(), "go", RequestContext{}, func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}
	if resp.Success {
		t.Fatal("Expected failed response")
	}
	if len(chunks) != 1 || !chunks[0].Error || !chunks[0].Finished {
		t.Fatalf("Expected a single error chunk, got %+v", chunks)
	}
	if chunks[0].Text != resp.Text {
		t.Error("Error chunk should carry the apology")
	}
}

func TestStream_EmptyText(t *testing.T) {
	gen := &recordingGenerator{text: "   "}
	e := newTestEngine(t, coderProfile(), gen, nil, WithStreaming(50, 0))

	var chunks []Chunk
	if _, err := e.Stream(context.Background(), "go", RequestContext{}, func(c Chunk) error {
		chunks = append(chunks, c)
		return nil
	}); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(chunks) != 1 || !chunks[0].Finished || chunks[0].Text != "" {
		t.Errorf("Expected one empty finished chunk, got %+v", chunks)
	}
}

func TestStream_CancelledDuringPacing(t *testing.T) {
	gen := &recordingGenerator{text: strings.Repeat("z", 200)}
	e := newTestEngine(t, coderProfile(), gen, nil, WithStreaming(50, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	received := 0
	go func() {
		_, err := e.Stream(ctx, "go", RequestContext{}, func(Chunk) error {
			received++
			cancel()
			return nil
		})
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
		if received != 1 {
			t.Errorf("Expected 1 chunk before cancellation, got %d", received)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stream did not stop after cancellation")
	}
}

func TestStream_CallbackError(t *testing.T) {
	gen := &recordingGenerator{text: strings.Repeat("z", 120)}
	e := newTestEngine(t, coderProfile(), gen, nil, WithStreaming(50, 0))

	stop := errors.New("client went away")
	calls := 0
	_, err := e.Stream(context.Background(), "go", RequestContext{}, func(Chunk) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("Expected callback error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected streaming to stop after first chunk, got %d calls", calls)
	}
}
