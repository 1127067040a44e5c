package main

import (
	"os"

	"todokeep/cmd/todokeep/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, nil))
}
