package main

import (
	"flag"
	"os"

	"vigil-ird/config"
	"vigil-ird/core/appbootstrap"
	"vigil-ird/core/utils"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the config file")
	flag.Parse()

	logger := utils.NewLogger()
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}
	if err := appbootstrap.Run(cfg, logger); err != nil {
		logger.Errorf("fatal: %v", err)
		os.Exit(1)
	}
}
