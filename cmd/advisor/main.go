// Command advisor is the command-line front end: recommend, filter,
// estimate, seed and history.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(&cli{}).Execute(); err != nil {
		os.Exit(1)
	}
}
