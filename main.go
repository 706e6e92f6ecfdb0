// Command nhi-hospitals classifies NHI hospitals by city and region, downloads new
// nurse-to-patient ratio releases, and serves the classification over HTTP.
//
// Usage:
//
//	nhi-hospitals classify   classify the spreadsheets on disk and write the artifacts
//	nhi-hospitals fetch      download releases that changed since the last run
//	nhi-hospitals serve      fetch and classify on a schedule and serve the results
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/giygas/nhi-hospitals/config"
	"github.com/giygas/nhi-hospitals/logging"
	"github.com/joho/godotenv"
)

const usage = `usage: nhi-hospitals <command>

commands:
  classify   classify the spreadsheets matching SOURCE_GLOB
  fetch      download changed releases from LISTING_URL into TARGET_DIR
  serve      run fetch and classify on UPDATE_TIMES and serve the HTTP API
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var command func(*config.Config, io.Writer) int
	switch args[0] {
	case "classify":
		command = runClassify
	case "fetch":
		command = runFetch
	case "serve":
		command = runServe
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	// A missing .env is fine, the environment may already be set
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}

	console := stdout
	if args[0] != "serve" {
		// Batch commands print their report on stdout
		console = stderr
	}
	logging.InitLogger(logging.Options{
		Level:          logging.ParseLevel(cfg.LogLevel),
		Color:          cfg.LogColor,
		LogDir:         cfg.LogDir,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
		Console:        console,
	})
	defer func() {
		if err := logging.Close(); err != nil {
			fmt.Fprintf(stderr, "failed to close log file: %v\n", err)
		}
	}()

	if envErr != nil {
		logging.Debug("No .env file loaded", "error", envErr)
	}
	logging.Info("Configuration loaded", "command", args[0], "env", cfg.Env.String())

	return command(cfg, stdout)
}
