// Command botd is the remote-control agent. It serves one client at a time
// over TCP or a USB gadget endpoint and executes text commands against the
// host platform.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "botd:", err)
		os.Exit(1)
	}
}
