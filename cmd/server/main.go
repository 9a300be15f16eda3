package main

import (
	"os"

	"github.com/ichi0g0y/slot-roulette/internal/shared/logger"
)

func main() {
	logger.Init(false)
	defer logger.Sync()

	if err := newRootCommand().Execute(); err != nil {
		logger.Sync()
		os.Exit(1)
	}
}
