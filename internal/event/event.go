package event

import (
	"image"
	"time"

	"github.com/google/uuid"
)

type Event interface {
	ID() string
	Message() string
	Image() image.Image
	OccurredAt() time.Time
	// Source names what emitted the event, "bot" or a client id.
	Source() string
}

type BaseEvent struct {
	id         string
	message    string
	image      image.Image
	occurredAt time.Time
	source     string
}

func (b BaseEvent) ID() string            { return b.id }
func (b BaseEvent) Message() string       { return b.message }
func (b BaseEvent) Image() image.Image    { return b.image }
func (b BaseEvent) OccurredAt() time.Time { return b.occurredAt }
func (b BaseEvent) Source() string        { return b.source }

func Text(source, message string) BaseEvent {
	return BaseEvent{
		id:         uuid.NewString(),
		message:    message,
		occurredAt: time.Now(),
		source:     source,
	}
}

func WithScreenshot(source, message string, img image.Image) BaseEvent {
	be := Text(source, message)
	be.image = img
	return be
}

type StateChangedEvent struct {
	BaseEvent
	State string
}

func StateChanged(be BaseEvent, state string) StateChangedEvent {
	return StateChangedEvent{BaseEvent: be, State: state}
}

type CycleFailedEvent struct {
	BaseEvent
	ConsecutiveErrors int
}

func CycleFailed(be BaseEvent, consecutive int) CycleFailedEvent {
	return CycleFailedEvent{BaseEvent: be, ConsecutiveErrors: consecutive}
}

type ErrorThresholdReachedEvent struct {
	BaseEvent
	Errors    int
	Threshold int
}

func ErrorThresholdReached(be BaseEvent, errors, threshold int) ErrorThresholdReachedEvent {
	return ErrorThresholdReachedEvent{BaseEvent: be, Errors: errors, Threshold: threshold}
}

type ClientsChangedEvent struct {
	BaseEvent
	Active []string
}

func ClientsChanged(be BaseEvent, active []string) ClientsChangedEvent {
	return ClientsChangedEvent{BaseEvent: be, Active: active}
}

type TaskFinishedEvent struct {
	BaseEvent
	Client  string
	Task    string
	Success bool
}

func TaskFinished(be BaseEvent, client, task string, success bool) TaskFinishedEvent {
	return TaskFinishedEvent{BaseEvent: be, Client: client, Task: task, Success: success}
}

type ProcessExitedEvent struct {
	BaseEvent
	PID int
}

func ProcessExited(be BaseEvent, pid int) ProcessExitedEvent {
	return ProcessExitedEvent{BaseEvent: be, PID: pid}
}

type NgrokTunnelEvent struct {
	BaseEvent
	URL string
}

func NgrokTunnel(url string) NgrokTunnelEvent {
	return NgrokTunnelEvent{BaseEvent: Text("ngrok", "Remote access available at "+url), URL: url}
}
