package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/crossgate-ci/crossgate/internal/domain"
	"github.com/crossgate-ci/crossgate/internal/runneragent"
	"github.com/crossgate-ci/crossgate/internal/runnerpool"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

var (
	configPath string
	serverURL  string
	runnerID   string
	platform   string
	maxJobs    int
	workDir    string
	debug      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "crossgate-runner",
		Short: "Step runner agent that connects to a crossgate coordinator",
		RunE:  run,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.Flags().StringVar(&serverURL, "server", "", "Coordinator WebSocket URL")
	rootCmd.Flags().StringVar(&runnerID, "id", "", "Runner ID")
	rootCmd.Flags().StringVar(&platform, "platform", "", "Platform this runner serves (linux or windows)")
	rootCmd.Flags().IntVar(&maxJobs, "jobs", 2, "Maximum concurrent step jobs")
	rootCmd.Flags().StringVar(&workDir, "workdir", "", "Working directory for step commands")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable verbose logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Config defines the crossgate-runner configuration file format
type Config struct {
	Server struct {
		URL string `toml:"url"`
	} `toml:"server"`
	Runner struct {
		ID       string `toml:"id"`
		Platform string `toml:"platform"`
		MaxJobs  int    `toml:"max_jobs"`
		WorkDir  string `toml:"work_dir"`
	} `toml:"runner"`
}

// Default config file locations (checked in order)
var defaultConfigPaths = []string{
	"/etc/crossgate-runner/config.toml",
	"/etc/crossgate-runner.toml",
}

func run(cmd *cobra.Command, args []string) error {
	var cfg Config

	cfgPath := configPath
	if cfgPath == "" {
		for _, p := range defaultConfigPaths {
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
				break
			}
		}
	}

	if cfgPath != "" {
		data, err := os.ReadFile(cfgPath)
		if err != nil {
			return fmt.Errorf("reading config %s: %w", cfgPath, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parsing config %s: %w", cfgPath, err)
		}
		fmt.Printf("Loaded config from %s\n", cfgPath)
	}

	// CLI flags override config (only if explicitly set)
	if serverURL != "" {
		cfg.Server.URL = serverURL
	}
	if runnerID != "" {
		cfg.Runner.ID = runnerID
	}
	if platform != "" {
		cfg.Runner.Platform = platform
	}
	if cmd.Flags().Changed("jobs") {
		cfg.Runner.MaxJobs = maxJobs
	}
	if workDir != "" {
		cfg.Runner.WorkDir = workDir
	}

	// Defaults
	if cfg.Runner.MaxJobs == 0 {
		cfg.Runner.MaxJobs = 2
	}
	if cfg.Runner.ID == "" {
		hostname, _ := os.Hostname()
		cfg.Runner.ID = hostname
	}
	if cfg.Runner.Platform == "" {
		cfg.Runner.Platform = string(runnerpool.LocalPlatform())
	}

	runner, err := runneragent.NewRunner(runneragent.RunnerConfig{
		ServerURL: cfg.Server.URL,
		RunnerID:  cfg.Runner.ID,
		Platform:  domain.Platform(cfg.Runner.Platform),
		MaxJobs:   cfg.Runner.MaxJobs,
		WorkDir:   cfg.Runner.WorkDir,
		Debug:     debug,
	})
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		runner.Stop()
	}()

	fmt.Printf("Starting runner %s (%s) connecting to %s (max_jobs=%d)...\n",
		cfg.Runner.ID, cfg.Runner.Platform, cfg.Server.URL, cfg.Runner.MaxJobs)

	// Run with automatic reconnection (blocks until stopped)
	return runner.RunWithReconnect()
}
