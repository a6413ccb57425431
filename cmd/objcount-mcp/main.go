package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ironsheep/objcount-mcp/internal/config"
	"github.com/ironsheep/objcount-mcp/internal/detection"
	"github.com/ironsheep/objcount-mcp/internal/logger"
	"github.com/ironsheep/objcount-mcp/internal/pipeline"
	"github.com/ironsheep/objcount-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("objcount-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			fmt.Printf("  Backends:   %s\n", strings.Join(detection.Backends(), ", "))
			return
		case "--help", "-h", "help":
			printHelp()
			return
		case "count":
			os.Exit(runCount(os.Args[2:]))
		}
	}

	fs := flag.NewFlagSet("objcount-mcp", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	logs, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer logs.Close()
	logs.Debug("objcount-mcp v%s (built %s, commit %s)", Version, BuildTime, GitCommit)

	p, err := pipeline.New(pipeline.FromConfig(cfg), pipeline.WithLogger(logs))
	if err != nil {
		logs.Error("Pipeline error: %v", err)
		os.Exit(1)
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(p, logs, Version)
	if cfg.Server.Listen != "" {
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.Server.Listen); err != nil {
				logs.Error("WebSocket transport error: %v", err)
			}
		}()
	}

	logs.Info("Serving MCP over stdio with the %s backend", p.Backend())
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logs.Error("Server error: %v", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("objcount-mcp - MCP server that counts objects with cascade classifiers")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  objcount-mcp [-config FILE]")
	fmt.Println("  objcount-mcp count -model PATH [-config FILE] [-image FILE]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println("  -config FILE     Load settings from a YAML file")
	fmt.Println()
	fmt.Println("count prints the number of objects in FILE, or in the hex image text read")
	fmt.Println("from stdin when -image is not given. Bad input prints 0.")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  OBJCOUNT_BACKEND=pigo            Detector backend (pigo, opencv)")
	fmt.Println("  OBJCOUNT_LOG_LEVEL=debug         Log level (debug, info, warning, error)")
	fmt.Println("  OBJCOUNT_LOG_DIR=DIR             Also write per-level log files to DIR")
	fmt.Println("  OBJCOUNT_LISTEN=127.0.0.1:8765   Serve the WebSocket transport on /ws")
	fmt.Println("  OBJCOUNT_SCAN_SOURCE=normalized  Raster to scan (normalized, raw)")
	fmt.Println("  OBJCOUNT_TIMEOUT=30s             Deadline for one count")
	fmt.Println()
	fmt.Println("Without a subcommand the server communicates via MCP protocol over")
	fmt.Println("stdin/stdout. Configure it in your MCP client.")
}

// newLogger writes to stderr (stdout is for MCP protocol), mirrored into
// per-level files when a log directory is configured.
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	level := logger.ParseLevel(cfg.Log.Level)
	if cfg.Log.Dir != "" {
		return logger.NewWithDir(os.Stderr, level, cfg.Log.Dir)
	}
	return logger.New(os.Stderr, level), nil
}

// runCount implements the count subcommand and returns the exit code.
func runCount(args []string) int {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	modelPath := fs.String("model", "", "path to the cascade model file")
	imagePath := fs.String("image", "", "image file to count in (default: hex text on stdin)")
	fs.Parse(args)

	if *modelPath == "" {
		fmt.Fprintln(os.Stderr, "count: -model is required")
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		return 1
	}
	logs, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		return 1
	}
	defer logs.Close()

	p, err := pipeline.New(pipeline.FromConfig(cfg), pipeline.WithLogger(logs))
	if err != nil {
		logs.Error("Pipeline error: %v", err)
		return 1
	}
	defer p.Close()

	var imageHex string
	if *imagePath != "" {
		data, err := os.ReadFile(*imagePath)
		if err != nil {
			logs.Error("Failed to read image: %v", err)
			return 1
		}
		imageHex = hex.EncodeToString(data)
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			logs.Error("Failed to read stdin: %v", err)
			return 1
		}
		imageHex = strings.TrimSpace(string(data))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println(p.CountObjects(ctx, imageHex, *modelPath))
	return 0
}
