// SPDX-License-Identifier: MPL-2.0

// Command modhostd runs the module host daemon and provides operator
// commands for inspecting and nudging it.
package main

func main() {
	Execute()
}
