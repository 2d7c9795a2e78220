// sensorctl is the command-line client for sensord.
//
// Connection settings come from flags or the environment:
//
//	--url      SENSORCTL_URL      (default http://127.0.0.1:8000)
//	--pin      SENSORCTL_PIN
//	--timeout  SENSORCTL_TIMEOUT  (default 5s)
package main

import (
	"fmt"
	"os"
)

// Commit is set at build time via ldflags.
var Commit = "unknown"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
