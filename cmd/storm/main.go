// cmd/storm/main.go
package main

import (
	"github.com/FairForge/storm/cmd/storm/cmd"
)

func main() {
	cmd.Execute()
}
