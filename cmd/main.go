// agentforge turns a project description into a compiled, running and
// probed backend by chaining generation agents.
package main

import (
	"os"

	"agentforge/internal/logging"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		os.Exit(1)
	}
}
