package main

import (
	"fmt"
	"os"

	"github.com/intakeplan/internal/config"
	"github.com/intakeplan/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, cfg.Environment)

	if err := newRootCmd(newEnv(cfg)).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
