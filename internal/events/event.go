package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nao1215/a11yscan/internal/model"
)

// Type identifies the kind of an event.
type Type string

const (
	// TypeDiscoveryProgress is emitted after each crawled page.
	TypeDiscoveryProgress Type = "discovery_progress"
	// TypeDiscoveryComplete is emitted when a discovery session completes.
	TypeDiscoveryComplete Type = "discovery_complete"
	// TypeScanProgress is emitted after every adapter state change and page completion.
	TypeScanProgress Type = "scan_progress"
	// TypePageComplete is emitted when every adapter of a page is terminal.
	TypePageComplete Type = "page_complete"
	// TypeScanComplete is emitted when a scan session completes.
	TypeScanComplete Type = "scan_complete"
	// TypeAdapterError is emitted after every failed adapter attempt.
	TypeAdapterError Type = "adapter_error"
	// TypeStatusChange is emitted on every session state transition.
	TypeStatusChange Type = "status_change"
)

// Adapter error actions.
const (
	ActionRetry = "retry"
	ActionSkip  = "skip"
)

// Payload is the type specific part of an event.
type Payload interface {
	EventType() Type
}

// DiscoveryProgress reports crawl progress.
type DiscoveryProgress struct {
	PagesDiscovered int     `json:"pagesDiscovered"`
	ProgressPercent float64 `json:"progressPercent"`
	CurrentURL      string  `json:"currentUrl"`
}

// DiscoveryComplete reports the outcome of a discovery session.
type DiscoveryComplete struct {
	PagesDiscovered   int `json:"pagesDiscovered"`
	TemplatesDetected int `json:"templatesDetected"`
}

// ScanProgress carries running scan aggregates.
type ScanProgress struct {
	PagesCompleted   int                  `json:"pagesCompleted"`
	PagesTotal       int                  `json:"pagesTotal"`
	CurrentURL       string               `json:"currentUrl"`
	CurrentAdapter   string               `json:"currentAdapter,omitempty"`
	AdapterStatus    model.AdapterStatus  `json:"adapterStatus,omitempty"`
	IssuesBySeverity model.SeverityCounts `json:"issuesBySeverity"`
}

// PageComplete reports a finished page.
type PageComplete struct {
	URL         string           `json:"url"`
	Status      model.TaskStatus `json:"status"`
	IssuesFound int              `json:"issuesFound"`
	DurationMs  int64            `json:"durationMs"`
}

// ScanComplete reports the outcome of a scan session.
type ScanComplete struct {
	OverallScore     float64              `json:"overallScore"`
	IssuesBySeverity model.SeverityCounts `json:"issuesBySeverity"`
	PagesTotal       int                  `json:"pagesTotal"`
}

// AdapterError reports one failed adapter attempt.
type AdapterError struct {
	URL         string `json:"url"`
	Adapter     string `json:"adapter"`
	Error       string `json:"error"`
	Action      string `json:"action"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"maxAttempts"`
}

// StatusChange reports a session state transition.
type StatusChange struct {
	From   model.SessionStatus `json:"from"`
	To     model.SessionStatus `json:"to"`
	Reason string              `json:"reason,omitempty"`
}

func (DiscoveryProgress) EventType() Type { return TypeDiscoveryProgress }
func (DiscoveryComplete) EventType() Type { return TypeDiscoveryComplete }
func (ScanProgress) EventType() Type      { return TypeScanProgress }
func (PageComplete) EventType() Type      { return TypePageComplete }
func (ScanComplete) EventType() Type      { return TypeScanComplete }
func (AdapterError) EventType() Type      { return TypeAdapterError }
func (StatusChange) EventType() Type      { return TypeStatusChange }

// Event is one entry of a session's event log.
type Event struct {
	ID        string
	SessionID string
	Sequence  int
	Type      Type
	Timestamp time.Time
	Payload   Payload
}

// header holds the fields shared by every event.
type header struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sequence  int       `json:"sequence"`
	Type      Type      `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
}

// MarshalJSON writes the header and payload fields as one object.
func (e Event) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage)
	if e.Payload != nil {
		data, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", e.Type, err)
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("failed to flatten %s payload: %w", e.Type, err)
		}
	}
	h, err := json.Marshal(header{ID: e.ID, SessionID: e.SessionID, Sequence: e.Sequence, Type: e.Type, Timestamp: e.Timestamp})
	if err != nil {
		return nil, err
	}
	var hf map[string]json.RawMessage
	if err := json.Unmarshal(h, &hf); err != nil {
		return nil, err
	}
	for k, v := range hf {
		fields[k] = v
	}
	return json.Marshal(fields)
}

// UnmarshalJSON reads a flat event object, decoding the payload by type.
func (e *Event) UnmarshalJSON(data []byte) error {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	p, err := NewPayload(h.Type)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", h.Type, err)
	}
	*e = Event{
		ID:        h.ID,
		SessionID: h.SessionID,
		Sequence:  h.Sequence,
		Type:      h.Type,
		Timestamp: h.Timestamp,
		Payload:   derefPayload(p),
	}
	return nil
}

// NewPayload returns a pointer to an empty payload of the given type.
func NewPayload(t Type) (Payload, error) {
	switch t {
	case TypeDiscoveryProgress:
		return &DiscoveryProgress{}, nil
	case TypeDiscoveryComplete:
		return &DiscoveryComplete{}, nil
	case TypeScanProgress:
		return &ScanProgress{}, nil
	case TypePageComplete:
		return &PageComplete{}, nil
	case TypeScanComplete:
		return &ScanComplete{}, nil
	case TypeAdapterError:
		return &AdapterError{}, nil
	case TypeStatusChange:
		return &StatusChange{}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
}

// derefPayload turns a decoded payload pointer back into a value so that
// decoded events compare equal to published ones.
func derefPayload(p Payload) Payload {
	switch v := p.(type) {
	case *DiscoveryProgress:
		return *v
	case *DiscoveryComplete:
		return *v
	case *ScanProgress:
		return *v
	case *PageComplete:
		return *v
	case *ScanComplete:
		return *v
	case *AdapterError:
		return *v
	case *StatusChange:
		return *v
	}
	return p
}
