// Package cmd contains the command-line entry points for the ai-chat server.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JuneJin9655/ai-chat/internal/log"
)

// Version information (injected at build time via ldflags).
// These variables are set by the build system and should not be modified directly.
var (
	AppVersion = "0.0.1"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the ai-chat application.
// It handles command routing and all initialization.
//
// Design: Following the pattern used by standard Go server tools, all
// application logic is contained in the cmd package, leaving main.go as a
// minimal entry point.
func Execute() error {
	// Handle special commands before full initialization so --version and
	// --help work even when config is invalid.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			return printVersionInfo()
		case "help", "--help", "-h":
			printHelp()
			return nil
		case "migrate":
			return runMigrate()
		case "serve":
			// Fall through to the default below.
		default:
			printHelp()
			return fmt.Errorf("unknown command %q", os.Args[1])
		}
	}

	logger := initLogger()
	slog.SetDefault(logger)

	return runServe()
}

// initLogger initializes the structured logger with appropriate log level.
//
// Log level is controlled by the DEBUG environment variable:
//   - DEBUG set (any value): debug level logging
//   - DEBUG not set: info level logging
func initLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: true})
}

// printVersionInfo displays version information.
func printVersionInfo() error {
	fmt.Printf("ai-chat v%s\n", AppVersion)
	fmt.Printf("Build: %s\n", BuildTime)
	fmt.Printf("Commit: %s\n", GitCommit)
	return nil
}

// printHelp displays the help message.
func printHelp() {
	fmt.Println("ai-chat - conversational AI chat server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ai-chat [serve]      Start the HTTP API server (default)")
	fmt.Println("  ai-chat migrate      Apply pending database migrations and exit")
	fmt.Println("  ai-chat version      Show version information")
	fmt.Println("  ai-chat help         Show this help")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  OPENAI_API_KEY       Required. OpenAI API key")
	fmt.Println("  DATABASE_URL         Optional. Overrides postgres_* config values")
	fmt.Println("  REDIS_URL            Optional. Redis connection URL")
	fmt.Println("  DEBUG                Optional. Enable debug logging")
	fmt.Println()
	fmt.Println("Configuration is read from ~/.ai-chat/config.yaml or ./config.yaml.")
}
