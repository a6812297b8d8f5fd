package arq

import "time"

// Options holds the protocol constants fixed at construction. The sequence
// space is always WindowSize+1 and is derived, never set.
type Options struct {
	WindowSize int
	Timeout    time.Duration
}

func NewDefaultOptions() *Options {
	return &Options{
		WindowSize: defaultWindowSize,
		Timeout:    defaultRetransmissionTimeout,
	}
}

func WithWindowSize(size int) func(*Options) {
	return func(o *Options) {
		o.WindowSize = size
	}
}

func WithTimeout(timeout time.Duration) func(*Options) {
	return func(o *Options) {
		o.Timeout = timeout
	}
}

func (o *Options) seqSpace() int {
	return o.WindowSize + 1
}
