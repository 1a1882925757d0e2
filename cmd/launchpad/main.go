// Package main is the launchpad CLI: it builds a runtime image from a
// deploy recipe and runs the single app container bound to the advertised
// port.
package main

func main() {
	Execute()
}
