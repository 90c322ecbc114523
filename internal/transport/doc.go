// Package transport serves the line protocol over a TCP socket or a USB
// gadget device.
//
// Each connected client gets a Session with three goroutines: the receive
// loop frames input lines, the worker dispatches them through a
// command.Handler and the sender writes replies. They share nothing but two
// lock-free queues and a done channel; any fault closes done and all three
// unwind. A controller command scheduler runs as a fourth goroutine while
// sequencing is enabled.
//
// Server accepts one client at a time and builds a fresh Session for each.
package transport
