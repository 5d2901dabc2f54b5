package agent

import (
	"context"
	"time"
)

// Chunk is one piece of a re-chunked response.
type Chunk struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	Finished bool   `json:"finished"`
	Error    bool   `json:"error,omitempty"`
}

// Stream computes the full response with Process and then delivers it to
// onChunk in fixed-size rune chunks, pausing between chunks. A failed
// response is delivered as a single chunk with Error and Finished set.
// Stream stops early if ctx is cancelled or onChunk returns an error.
func (e *Engine) Stream(ctx context.Context, input string, rc RequestContext, onChunk func(Chunk) error) (*Response, error) {
	resp, err := e.Process(ctx, input, rc)
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		return resp, onChunk(Chunk{Text: resp.Text, Finished: true, Error: true})
	}

	chunks := splitRunes(resp.Text, e.chunkSize)
	for i, text := range chunks {
		if i > 0 {
			if err := sleepContext(ctx, e.pacing); err != nil {
				return resp, err
			}
		}
		if err := onChunk(Chunk{Index: i, Text: text, Finished: i == len(chunks)-1}); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

// splitRunes cuts s into pieces of at most size runes. An empty s yields one
// empty piece.
func splitRunes(s string, size int) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return []string{""}
	}
	out := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
