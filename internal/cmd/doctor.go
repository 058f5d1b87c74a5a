package cmd

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/evalgate/evalgate/internal/config"
	errwrap "github.com/evalgate/evalgate/internal/errors"
	"github.com/evalgate/evalgate/internal/gateway"
	"github.com/evalgate/evalgate/internal/observability"
)

var doctorConnect bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the system and suggest fixes for common issues.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		identity := GetAppIdentity()
		bannerName := "doctor"
		if identity != nil && identity.BinaryName != "" {
			bannerName = identity.BinaryName + " doctor"
		}
		observability.CLILogger.Info("=== " + bannerName + " ===")
		observability.CLILogger.Info("")
		observability.CLILogger.Info("Running diagnostic checks...")
		observability.CLILogger.Info("")

		allChecks := true
		totalChecks := 7

		// Check 1: Go version
		goVersion := runtime.Version()
		if goVersion >= "go1.23" {
			observability.CLILogger.Info(fmt.Sprintf("[1/%d] Checking Go version... ✅ %s", totalChecks, goVersion), zap.String("go_version", goVersion))
		} else {
			observability.CLILogger.Warn(fmt.Sprintf("[1/%d] Checking Go version... ⚠️  %s (recommended: go1.23+)", totalChecks, goVersion), zap.String("go_version", goVersion))
			allChecks = false
		}

		// Check 2: Crucible access
		version := crucible.GetVersion()
		if version.Crucible != "" {
			observability.CLILogger.Info(fmt.Sprintf("[2/%d] Checking Crucible access... ✅ v%s", totalChecks, version.Crucible), zap.String("crucible_version", version.Crucible))
		} else {
			observability.CLILogger.Error(fmt.Sprintf("[2/%d] Checking Crucible access... ❌ Cannot access Crucible", totalChecks))
			ExitWithCode(observability.CLILogger, foundry.ExitExternalServiceUnavailable, "Cannot access Crucible", errwrap.NewUpstreamError("Crucible service unavailable"))
			allChecks = false
		}

		// Check 3: Gofulmen access
		if version.Gofulmen != "" {
			observability.CLILogger.Info(fmt.Sprintf("[3/%d] Checking Gofulmen access... ✅ v%s", totalChecks, version.Gofulmen), zap.String("gofulmen_version", version.Gofulmen))
		} else {
			observability.CLILogger.Error(fmt.Sprintf("[3/%d] Checking Gofulmen access... ❌ Cannot access Gofulmen", totalChecks))
			allChecks = false
		}

		// Check 4: Config directory
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			observability.CLILogger.Error(fmt.Sprintf("[4/%d] Checking config directory... ❌ Cannot resolve config directory", totalChecks))
			ExitWithCode(observability.CLILogger, foundry.ExitFileNotFound, "Cannot resolve config directory", errwrap.NewInternalError("config directory not resolved"))
			allChecks = false
		} else {
			configDir := filepath.Dir(configPath)
			observability.CLILogger.Info(fmt.Sprintf("[4/%d] Checking config directory... ✅ %s", totalChecks, configDir), zap.String("config_dir", configDir))
		}

		// Check 5: Environment
		observability.CLILogger.Info(fmt.Sprintf("[5/%d] Checking environment... ✅ %s/%s", totalChecks, runtime.GOOS, runtime.GOARCH),
			zap.String("os", runtime.GOOS),
			zap.String("arch", runtime.GOARCH))

		// Check 6: Gateway configuration
		cfg, cfgErr := config.Load(ctx)
		var enabled []string
		if cfgErr != nil {
			observability.CLILogger.Warn(fmt.Sprintf("[6/%d] Checking gateway config... ⚠️  config not loaded", totalChecks), zap.Error(cfgErr))
			allChecks = false
		} else if err := cfg.Gateway.Validate(); err != nil {
			observability.CLILogger.Warn(fmt.Sprintf("[6/%d] Checking gateway config... ⚠️  invalid: %v", totalChecks, err), zap.Error(err))
			allChecks = false
		} else {
			for name, p := range cfg.Gateway.Providers {
				if p.Enabled {
					enabled = append(enabled, name)
				}
			}
			sort.Strings(enabled)
			if len(enabled) == 0 {
				observability.CLILogger.Warn(fmt.Sprintf("[6/%d] Checking gateway config... ⚠️  no providers enabled (completions fall back to synthesized payloads)", totalChecks))
			} else {
				observability.CLILogger.Info(fmt.Sprintf("[6/%d] Checking gateway config... ✅ %d provider(s): %s", totalChecks, len(enabled), strings.Join(enabled, ", ")),
					zap.Strings("providers", enabled))
			}
		}

		// Check 7: Provider credentials
		if cfgErr != nil || len(enabled) == 0 {
			observability.CLILogger.Warn(fmt.Sprintf("[7/%d] Checking provider credentials... ⚠️  skipped (no enabled providers)", totalChecks))
		} else {
			missing := []string{}
			for _, name := range enabled {
				if strings.TrimSpace(cfg.Gateway.Providers[name].APIKey) == "" {
					missing = append(missing, name)
				}
			}
			if len(missing) == 0 {
				observability.CLILogger.Info(fmt.Sprintf("[7/%d] Checking provider credentials... ✅ api keys set", totalChecks))
			} else {
				observability.CLILogger.Warn(fmt.Sprintf("[7/%d] Checking provider credentials... ⚠️  missing api key: %s", totalChecks, strings.Join(missing, ", ")),
					zap.Strings("missing", missing))
				observability.CLILogger.Info("       Set " + credentialEnvHint(missing[0]) + " or add api_key to the config file.")
				allChecks = false
			}
		}

		if doctorConnect && cfgErr == nil && len(enabled) > 0 {
			observability.CLILogger.Info("")
			observability.CLILogger.Info("Checking backend reachability...")
			for _, name := range enabled {
				checkProviderReachable(name, cfg.Gateway.Providers[name])
			}
		}

		observability.CLILogger.Info("")
		if allChecks {
			appName := "evalgate"
			if identity != nil && identity.BinaryName != "" {
				appName = identity.BinaryName
			}
			observability.CLILogger.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", appName))
		} else {
			observability.CLILogger.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
		observability.CLILogger.Info("")
		observability.CLILogger.Info("=== End Diagnostics ===")
	},
}

// checkProviderReachable issues an unauthenticated GET to the provider base
// URL. Any HTTP response counts as reachable; only transport errors fail.
func checkProviderReachable(name string, p gateway.ProviderConfig) {
	base := strings.TrimSpace(p.BaseURL)
	if base == "" {
		observability.CLILogger.Warn(fmt.Sprintf("  %s... ⚠️  no base_url configured", name))
		return
	}

	client := &http.Client{Timeout: 5 * time.Second}
	started := time.Now()
	resp, err := client.Get(base)
	if err != nil {
		observability.CLILogger.Warn(fmt.Sprintf("  %s... ❌ %v", name, err), zap.Error(err))
		return
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	observability.CLILogger.Info(fmt.Sprintf("  %s... ✅ reachable (%d, %s)", name, resp.StatusCode, time.Since(started).Round(time.Millisecond)),
		zap.Int("status", resp.StatusCode))
}

func credentialEnvHint(provider string) string {
	prefix := "EVALGATE_"
	if identity := GetAppIdentity(); identity != nil && identity.EnvPrefix != "" {
		prefix = identity.EnvPrefix
	}
	slug := strings.ToUpper(strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, provider))
	return prefix + slug + "_API_KEY"
}

var (
	doctorInitForce  bool
	doctorInitAPIKey string
)

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		apiKey := strings.TrimSpace(doctorInitAPIKey)
		if strings.EqualFold(apiKey, "prompt") {
			key, err := promptForValue("Enter OpenAI API key (leave blank to skip): ")
			if err != nil {
				return err
			}
			apiKey = key
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(configPath, []byte(buildInitConfig(apiKey)), 0o600); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config file created", zap.String("path", configPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)

	doctorCmd.Flags().BoolVar(&doctorConnect, "connect", false, "probe enabled backends over the network")
	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitAPIKey, "api-key", "", "API key for the default provider ('prompt' to enter interactively)")
}

func buildInitConfig(apiKey string) string {
	lines := []string{
		"# evalgate config - created by 'evalgate doctor init'",
		"server:",
		"  host: localhost",
		"  port: 8080",
		"gateway:",
		"  default_provider: openai",
		"  providers:",
		"    openai:",
		"      type: openai",
		"      base_url: https://api.openai.com/v1",
		"      model: gpt-4o-mini",
		"      enabled: true",
	}

	if apiKey != "" {
		lines = append(lines, fmt.Sprintf("      api_key: %q", apiKey))
	} else {
		lines = append(lines, "      # api_key: \"\"  # Set via EVALGATE_OPENAI_API_KEY or OPENAI_API_KEY, or uncomment")
	}

	lines = append(lines,
		"  retry:",
		"    max_attempts: 5",
		"    base_delay: 500ms",
		"    backoff_factor: 2",
		"    max_delay: 30s",
		"  limits:",
		"    requests_per_second: 2",
		"    burst_capacity: 4",
	)

	return strings.Join(lines, "\n") + "\n"
}

func promptForValue(prompt string) (string, error) {
	if _, err := fmt.Fprint(os.Stdout, prompt); err != nil {
		return "", err
	}
	reader := bufio.NewReader(os.Stdin)
	value, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(value), nil
}
