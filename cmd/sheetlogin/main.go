// Command sheetlogin serves a student login page backed by a spreadsheet.
package main

import "github.com/gaepo/sheetlogin/cmd/sheetlogin/cmd"

func main() {
	cmd.Execute()
}
