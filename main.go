package main

import (
	"os"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
