// Package controller drives the virtual input device.
//
// Files by concern:
//   - state.go:      controller state and timed command, hex wire codec
//   - buttons.go:    button and stick name tables
//   - device.go:     Device driver interface and the aligned work arena
//   - controller.go: Controller, the input capability used by command handlers
//   - scheduler.go:  Scheduler, the timed command sequencer
//   - errors.go:     sentinel errors
package controller
