package main

import (
	"fmt"
	"os"

	"github.com/platinummonkey/fieldscan/internal/logger"
)

func main() {
	if err := Execute(); err != nil {
		logger.WithError(err).Error("Command failed")
		_ = logger.Sync()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
