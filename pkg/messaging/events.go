package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Fee configuration events
	EventFeeWindowApplied = "fees.window.applied"

	// Payroll events
	EventStructureChanged = "payroll.structure.changed"
	EventSalaryGenerated  = "payroll.salary.generated"
	EventSalaryApproved   = "payroll.salary.approved"
	EventSalaryRejected   = "payroll.salary.rejected"
	EventSalaryPaid       = "payroll.salary.paid"
)

// Exchange names
const (
	ExchangeFeeEvents     = "fees.events"
	ExchangePayrollEvents = "payroll.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Fee events

// FeeWindowAppliedEvent is published after a fee configuration change has
// closed the student's previous window and opened a new one.
type FeeWindowAppliedEvent struct {
	StudentID     string `json:"student_id"`
	SchoolID      string `json:"school_id"`
	EffectiveFrom string `json:"effective_from"` // YYYY-MM-DD
	OverrideCount int    `json:"override_count"`
	AppliedBy     string `json:"applied_by"`
}

// Payroll events

// StructureChangedEvent is published when a teacher's salary structure is
// superseded by a new open window.
type StructureChangedEvent struct {
	TeacherID     string `json:"teacher_id"`
	SchoolID      string `json:"school_id"`
	StructureID   string `json:"structure_id"`
	EffectiveFrom string `json:"effective_from"` // YYYY-MM-DD
}

// SalaryGeneratedEvent is published when a monthly salary record is created.
type SalaryGeneratedEvent struct {
	RecordID  string `json:"record_id"`
	TeacherID string `json:"teacher_id"`
	SchoolID  string `json:"school_id"`
	Month     int    `json:"month"`
	Year      int    `json:"year"`
	NetSalary string `json:"net_salary"`
}

// SalaryStatusEvent is published on approve/reject/paid transitions.
type SalaryStatusEvent struct {
	RecordID  string `json:"record_id"`
	TeacherID string `json:"teacher_id"`
	SchoolID  string `json:"school_id"`
	Status    string `json:"status"`
	Actor     string `json:"actor"`
	Reason    string `json:"reason,omitempty"`
}
