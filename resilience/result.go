package resilience

import (
	"time"

	"github.com/agmgroups/fluffy-space-garbanzo-sub000/records"
)

// FallbackReason explains why a synthetic record was returned.
type FallbackReason string

const (
	ReasonStoreUnavailable FallbackReason = "store_unavailable"
	ReasonStoreAuth        FallbackReason = "store_auth"
	ReasonStoreUnknown     FallbackReason = "store_unknown"
	ReasonCreateFailed     FallbackReason = "create_failed"
	ReasonCancelled        FallbackReason = "cancelled"
)

// Result is either a *LiveRecord or a *FallbackRecord.
type Result interface {
	// AsRecord returns a usable record in both cases.
	AsRecord() records.Record
	// IsFallback reports whether the record is synthetic.
	IsFallback() bool

	isResult()
}

// LiveRecord wraps a record read from or written to the store.
type LiveRecord struct {
	records.Record
	Attempts int `json:"attempts"`
}

// AsRecord implements Result.
func (l *LiveRecord) AsRecord() records.Record { return l.Record }

// IsFallback implements Result.
func (*LiveRecord) IsFallback() bool { return false }

func (*LiveRecord) isResult() {}

// FallbackRecord is a synthetic stand-in returned when the store could not
// produce a record. Fallback is always true so callers can branch on it.
type FallbackRecord struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	Fallback  bool           `json:"fallback"`
	Reason    FallbackReason `json:"reason"`
	Error     string         `json:"error,omitempty"`
	Attempts  int            `json:"attempts"`
	CreatedAt time.Time      `json:"created_at"`
}

// AsRecord implements Result.
func (f *FallbackRecord) AsRecord() records.Record {
	return records.Record{
		ID:        f.ID,
		Type:      f.Type,
		Name:      f.Name,
		Status:    f.Status,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.CreatedAt,
	}
}

// IsFallback implements Result.
func (*FallbackRecord) IsFallback() bool { return true }

func (*FallbackRecord) isResult() {}
