package loginflow

import "time"

// Timer es un temporizador cancelable.
type Timer interface {
	Stop() bool
}

// Scheduler programa callbacks diferidos. Los tests lo reemplazan por un reloj manual.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
