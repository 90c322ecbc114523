package sim

import (
	"errors"

	"botd/internal/hostinfo"
)

// ErrNoApplication is returned when no title is running.
var ErrNoApplication = errors.New("sim: no application running")

type resolver struct{ h *Host }

func (r resolver) ApplicationPID() (uint64, error) {
	t, ok := r.h.foreground()
	if !ok {
		return 0, ErrNoApplication
	}
	return t.Meta.PID, nil
}

func (r resolver) Describe(pid uint64) (hostinfo.Metadata, error) {
	r.h.mu.Lock()
	defer r.h.mu.Unlock()
	t, ok := r.h.titles[pid]
	if !ok {
		return hostinfo.Metadata{}, ErrNoApplication
	}
	return t.Meta, nil
}
