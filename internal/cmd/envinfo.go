package cmd

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/evalgate/evalgate/internal/config"
	"github.com/evalgate/evalgate/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display comprehensive environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()

		identity := GetAppIdentity()
		appName := "evalgate"
		if identity != nil && identity.BinaryName != "" {
			appName = identity.BinaryName
		}

		observability.CLILogger.Info("=== " + appName + " Environment Information ===")
		observability.CLILogger.Info("")

		// Application Info
		observability.CLILogger.Info("Application:")
		observability.CLILogger.Info("  Name:       " + appName)
		observability.CLILogger.Info("  Version:    " + versionInfo.Version)
		observability.CLILogger.Info("  Commit:     " + versionInfo.Commit)
		observability.CLILogger.Info("  Built:      " + versionInfo.BuildDate)
		observability.CLILogger.Info("")

		// SSOT Info
		observability.CLILogger.Info("SSOT:")
		observability.CLILogger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		observability.CLILogger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		observability.CLILogger.Info("")

		// Runtime Info
		observability.CLILogger.Info("Runtime:")
		observability.CLILogger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		observability.CLILogger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		observability.CLILogger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		observability.CLILogger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		observability.CLILogger.Info("")

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			observability.CLILogger.Warn("Config load failed", zap.Error(err))
			return
		}

		// Configuration
		observability.CLILogger.Info("Configuration:")
		observability.CLILogger.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		observability.CLILogger.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		observability.CLILogger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		observability.CLILogger.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		observability.CLILogger.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		observability.CLILogger.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		observability.CLILogger.Info("")

		// Gateway Configuration
		observability.CLILogger.Info("Gateway:")
		defaultProvider := strings.TrimSpace(cfg.Gateway.DefaultProvider)
		if defaultProvider == "" {
			defaultProvider = "(unset)"
		}
		observability.CLILogger.Info("  Default Provider: " + defaultProvider)
		observability.CLILogger.Info(fmt.Sprintf("  Retry Attempts:   %d", cfg.Gateway.Retry.MaxAttempts))
		observability.CLILogger.Info("  Base Delay:       " + cfg.Gateway.Retry.BaseDelay.String())
		observability.CLILogger.Info(fmt.Sprintf("  Rate Limit:       %.1f req/s (burst %.0f)", cfg.Gateway.Limits.RequestsPerSecond, cfg.Gateway.Limits.BurstCapacity))

		names := make([]string, 0, len(cfg.Gateway.Providers))
		for name := range cfg.Gateway.Providers {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) == 0 {
			observability.CLILogger.Info("  Providers:        (none configured)")
		}
		for _, name := range names {
			p := cfg.Gateway.Providers[name]
			observability.CLILogger.Info(fmt.Sprintf("  %s.enabled: %t", name, p.Enabled))
			observability.CLILogger.Info(fmt.Sprintf("  %s.type: %s", name, p.Type))
			observability.CLILogger.Info(fmt.Sprintf("  %s.base_url: %s", name, p.BaseURL))
			observability.CLILogger.Info(fmt.Sprintf("  %s.model: %s", name, p.Model))
			if strings.TrimSpace(p.APIKey) != "" {
				observability.CLILogger.Info(fmt.Sprintf("  %s.api_key: (set)", name))
			} else {
				observability.CLILogger.Info(fmt.Sprintf("  %s.api_key: (not set)", name))
			}
		}
		observability.CLILogger.Info("")

		observability.CLILogger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
