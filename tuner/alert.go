package tuner

import "fmt"

type (
	// Alert is sent to the model when something happened that the user
	// should know about. Name identifies the kind of alert, so that a newer
	// alert of the same kind can replace an older one.
	Alert struct {
		Name     string
		Priority AlertPriority
		Message  string
	}

	AlertPriority int
)

const (
	Info AlertPriority = iota
	Warning
	Error
)

func (a Alert) String() string {
	return fmt.Sprintf("%v %s: %s", a.Priority, a.Name, a.Message)
}

func (p AlertPriority) String() string {
	switch p {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return fmt.Sprintf("AlertPriority(%d)", int(p))
}
