package main

import (
	"os"

	"gtd/cmd/gtd/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, nil))
}
