// Command printfleetctl is fleetctl, the ops CLI surface.
package main

import "github.com/printfleet/printfleet/internal/adapters/cli"

func main() {
	cli.Execute()
}
