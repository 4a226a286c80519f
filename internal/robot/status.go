package robot

import "fmt"

// Status is the orchestrator's operational state.
type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusNavigating Status = "NAVIGATING"
	StatusRetrieving Status = "RETRIEVING"
	StatusPacking    Status = "PACKING"
	StatusCharging   Status = "CHARGING"
	StatusError      Status = "ERROR"
)

// Event triggers a status transition. Charging interrupts carry a resume
// event naming the step they return to, so the table stays flat data.
type Event string

const (
	EventTaskStarted      Event = "task_started"
	EventArrived          Event = "arrived"
	EventItemSecured      Event = "item_secured"
	EventPacked           Event = "packed"
	EventBatteryLow       Event = "battery_low"
	EventResumeIdle       Event = "resume_idle"
	EventResumeNavigating Event = "resume_navigating"
	EventResumeRetrieving Event = "resume_retrieving"
	EventResumePacking    Event = "resume_packing"
	EventFault            Event = "fault"
	EventRecovered        Event = "recovered"
)

var transitions = map[Status]map[Event]Status{
	StatusIdle: {
		EventTaskStarted: StatusNavigating,
		EventBatteryLow:  StatusCharging,
	},
	StatusNavigating: {
		EventArrived:    StatusRetrieving,
		EventBatteryLow: StatusCharging,
		EventFault:      StatusError,
	},
	StatusRetrieving: {
		EventItemSecured: StatusPacking,
		EventBatteryLow:  StatusCharging,
		EventFault:       StatusError,
	},
	StatusPacking: {
		EventPacked:     StatusIdle,
		EventBatteryLow: StatusCharging,
		EventFault:      StatusError,
	},
	StatusCharging: {
		EventResumeIdle:       StatusIdle,
		EventResumeNavigating: StatusNavigating,
		EventResumeRetrieving: StatusRetrieving,
		EventResumePacking:    StatusPacking,
	},
	StatusError: {
		EventRecovered: StatusIdle,
	},
}

// Next is the pure transition function over the table above. Undefined
// pairs are errors.
func Next(s Status, ev Event) (Status, error) {
	if next, ok := transitions[s][ev]; ok {
		return next, nil
	}
	return s, fmt.Errorf("invalid robot transition: %s on %s", ev, s)
}
