package wire

// Status represents a response status code.
type Status uint8

const (
	// StatusSuccess indicates the operation completed successfully.
	StatusSuccess Status = 0

	// StatusInvalidRequest indicates a malformed request or payload.
	StatusInvalidRequest Status = 1

	// StatusNotFound indicates the zone or output doesn't exist.
	StatusNotFound Status = 2

	// StatusInvalidItemKey indicates a browse item key the core no longer knows.
	StatusInvalidItemKey Status = 3

	// StatusUnsupported indicates the operation is not supported.
	StatusUnsupported Status = 4

	// StatusBusy indicates the core is busy; try again later.
	StatusBusy Status = 5

	// StatusTimeout indicates the operation timed out.
	StatusTimeout Status = 6

	// StatusNotRegistered indicates a request before OpRegister.
	StatusNotRegistered Status = 7
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusInvalidRequest:
		return "INVALID_REQUEST"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusInvalidItemKey:
		return "INVALID_ITEM_KEY"
	case StatusUnsupported:
		return "UNSUPPORTED"
	case StatusBusy:
		return "BUSY"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusNotRegistered:
		return "NOT_REGISTERED"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}
