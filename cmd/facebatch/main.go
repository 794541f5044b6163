package main

import (
	"os"

	"github.com/storenstra/facebatch/cmd/facebatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
