package main

import (
	"os"

	"github.com/tepihealth/ucsuploader/internal/exitcode"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.UsageError)
	}
}
