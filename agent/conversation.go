package agent

import (
	"crypto/rand"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// MaxTurns is the number of turns an engine keeps in memory.
const MaxTurns = 10

// Exchange is one prior user/agent pair supplied by the caller.
type Exchange struct {
	Input    string `json:"input"`
	Response string `json:"response"`
}

// RequestContext carries per-request inputs beyond the user's message.
type RequestContext struct {
	History  []Exchange        `json:"history,omitempty"`
	Note     string            `json:"note,omitempty"`      // free-text additional context
	TaskType string            `json:"task_type,omitempty"` // overrides the profile's task type
	Values   map[string]string `json:"values,omitempty"`
}

func (rc RequestContext) clone() RequestContext {
	rc.History = slices.Clone(rc.History)
	rc.Values = maps.Clone(rc.Values)
	return rc
}

// Turn is a completed exchange held in the conversation log.
type Turn struct {
	Key       ulid.ULID      `json:"key"`
	Timestamp time.Time      `json:"timestamp"`
	Input     string         `json:"input"`
	Response  string         `json:"response"`
	Context   RequestContext `json:"context"`
}

// ConversationLog is a bounded FIFO of turns safe for concurrent use.
type ConversationLog struct {
	mu       sync.Mutex
	turns    []Turn
	capacity int
	entropy  *ulid.MonotonicEntropy
}

// NewConversationLog creates a log holding at most capacity turns.
func NewConversationLog(capacity int) *ConversationLog {
	if capacity < 1 {
		capacity = MaxTurns
	}
	return &ConversationLog{
		turns:    make([]Turn, 0, capacity),
		capacity: capacity,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
}

// Append records a turn with a snapshot of rc, evicting the oldest one when
// the log is full.
// Keys are monotonic, so turns appended within the same millisecond never collide.
func (l *ConversationLog) Append(ts time.Time, input, response string, rc RequestContext) Turn {
	l.mu.Lock()
	defer l.mu.Unlock()

	turn := Turn{
		Key:       ulid.MustNew(ulid.Timestamp(ts), l.entropy),
		Timestamp: ts,
		Input:     input,
		Response:  response,
		Context:   rc.clone(),
	}
	if len(l.turns) == l.capacity {
		copy(l.turns, l.turns[1:])
		l.turns = l.turns[:len(l.turns)-1]
	}
	l.turns = append(l.turns, turn)
	turn.Context = turn.Context.clone()
	return turn
}

// Turns returns copies of the logged turns, oldest first.
func (l *ConversationLog) Turns() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	turns := make([]Turn, len(l.turns))
	for i, t := range l.turns {
		t.Context = t.Context.clone()
		turns[i] = t
	}
	return turns
}

func (l *ConversationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}
