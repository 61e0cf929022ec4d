package view

import (
	"fmt"
	"io"
	"sync"
)

// Notifier shows short-lived success and error messages.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Toasts writes notifications as single prefixed lines.
type Toasts struct {
	mu sync.Mutex
	w  io.Writer
}

func NewToasts(w io.Writer) *Toasts {
	return &Toasts{w: w}
}

func (t *Toasts) Success(msg string) { t.write("✔", msg) }

func (t *Toasts) Error(msg string) { t.write("✖", msg) }

func (t *Toasts) write(mark, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "%s %s\n", mark, msg)
}
