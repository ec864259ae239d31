package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/attendant/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	// Development aid: re-exec when the binary is rebuilt.
	if os.Getenv("ATTENDANT_AUTORESTART") == "1" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "attendant:", err)
		os.Exit(1)
	}
}
