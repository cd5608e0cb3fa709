package main

import (
	"github.com/dkovalq/pagepilot-cli/cmd"
)

func main() {
	cmd.Execute()
}
