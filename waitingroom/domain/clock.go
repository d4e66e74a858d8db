package domain

import "time"

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapta uma função simples (útil em testes).
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
