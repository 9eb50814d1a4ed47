package events

import "golang.org/x/xerrors"

var (
	// ErrUnsupportedEvent is returned by On/OnInternal when the host's
	// registration callback rejects the event name outright.
	ErrUnsupportedEvent = xerrors.New("events: unsupported event name")
	// ErrEventHandlingDisabled is returned by HandleEvent when the host's
	// enabled callback currently refuses dispatch.
	ErrEventHandlingDisabled = xerrors.New("events: event handling disabled by host")
)
