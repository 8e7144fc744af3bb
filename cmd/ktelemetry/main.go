package main

import (
	"fmt"
	"os"

	"github.com/yairfalse/ktelemetry/internal/cli"

	// Sources register themselves via init().
	_ "github.com/yairfalse/ktelemetry/internal/observers/network"
	_ "github.com/yairfalse/ktelemetry/internal/observers/scheduler"
)

func main() {
	err := cli.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.ExitCode(err))
}
