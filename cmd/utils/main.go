package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/appetiteclub/apt"

	"github.com/savoria/savoria/cmd/utils/internal/commands"
)

const (
	appName    = "savoria-utils"
	appVersion = "0.1.0"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	config, err := apt.LoadConfig("UTILS", os.Args[2:])
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	logLevel, _ := config.GetString("log.level")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := apt.NewLogger(logLevel)

	ctx := context.Background()
	command := os.Args[1]

	switch command {
	case "seed-demo":
		if err := commands.SeedDemo(ctx, config, logger); err != nil {
			log.Fatalf("❌ Demo seeding failed: %v", err)
		}
		logger.Info("✅ Demo seeding completed successfully")

	case "clear-demo":
		if err := commands.ClearDemo(ctx, config, logger); err != nil {
			log.Fatalf("❌ Clear demo data failed: %v", err)
		}
		logger.Info("✅ Demo data cleared successfully")

	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`%s - Savoria utility commands

Usage:
  %s <command> [options]

Commands:
  seed-demo    Create demo branches through the platform API
  clear-demo   Delete the branches created by seed-demo
  version      Print version information
  help         Show this help message

Environment Variables:
  UTILS_SERVICES_CORE_URL   Platform API base URL (required)
  UTILS_API_TOKEN           Bearer token for API calls
  UTILS_LOG_LEVEL           Log level: debug, info, warn, error (default: info)

Examples:
  UTILS_SERVICES_CORE_URL=http://localhost:8080/api %s seed-demo
  UTILS_SERVICES_CORE_URL=http://localhost:8080/api %s clear-demo

`, appName, appName, appName, appName)
}
