package core

import "github.com/dkeye/Publisher/internal/domain"

// Host is the lifecycle glue around a publishing session.
type Host interface {
	SetLastError(msg string)
	// SignalStop is called once per failed or finished attempt.
	SignalStop(code domain.StopCode)
	BeginCapture()
	EndCapture()
}
