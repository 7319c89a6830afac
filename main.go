// The main package for the harvest executable.
package main

import (
	// Run dates are decided in Alaska time; embed the zone database for
	// minimal container images.
	_ "time/tzdata"

	"github.com/JakeFAU/salmon-harvest-scraper/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
