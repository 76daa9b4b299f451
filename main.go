// main.go
//
// Entry point for the scheduler server and its test client; CLI handling lives in cmd/.

package main

import (
	"github.com/ossim/ossim/cmd"
)

func main() {
	cmd.Execute()
}
