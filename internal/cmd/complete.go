package cmd

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/evalgate/evalgate/internal/config"
	"github.com/evalgate/evalgate/internal/gateway"
	"github.com/evalgate/evalgate/internal/gateway/contract"
	"github.com/evalgate/evalgate/internal/observability"
	"github.com/evalgate/evalgate/internal/output"
)

var completeCmd = &cobra.Command{
	Use:   "complete <prompt>",
	Short: "Run a single prompt through the gateway",
	Long:  "Send one prompt to a configured backend with contract enhancement, rate limiting, and response normalization applied. Pass '-' to read the prompt from stdin.",
	Args:  cobra.ExactArgs(1),
	RunE:  runComplete,
}

func init() {
	rootCmd.AddCommand(completeCmd)

	completeCmd.Flags().String("provider", "", "Provider to use (defaults to configured default)")
	completeCmd.Flags().String("contract", "", "Pin a metric contract instead of classifying the prompt")
	completeCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
	completeCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	completeCmd.Flags().String("out-dir", "", "Write output to a directory")
}

func runComplete(cmd *cobra.Command, args []string) error {
	prompt := args[0]
	if prompt == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read prompt from stdin: %w", err)
		}
		prompt = string(data)
	}
	if strings.TrimSpace(prompt) == "" {
		return errors.New("prompt must not be empty")
	}

	providerName, err := cmd.Flags().GetString("provider")
	if err != nil {
		return err
	}
	contractName, err := cmd.Flags().GetString("contract")
	if err != nil {
		return err
	}
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	outPath, outDir, err := resolveOutputTargets(cmd)
	if err != nil {
		return err
	}

	var pinned contract.Name
	if trimmed := strings.TrimSpace(contractName); trimmed != "" {
		c, err := contract.Get(contract.Name(trimmed))
		if err != nil {
			return err
		}
		pinned = c.Name
	}

	ctx := cmd.Context()
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	svc, err := gateway.NewService(cfg.Gateway, nil, observability.CLILogger)
	if err != nil {
		return err
	}

	res := svc.Run(ctx, gateway.Request{
		Prompt:   prompt,
		Provider: strings.TrimSpace(providerName),
		Contract: pinned,
	})

	if res.Fallback {
		observability.CLILogger.Warn("Backend unavailable, returning fallback payload",
			zap.String("contract", string(res.Contract)),
			zap.Int("attempts", res.Attempts))
	}

	rendered, err := output.Completion(format, res)
	if err != nil {
		return err
	}

	if outDir != "" {
		outDir, err = ensureOutDir(outDir)
		if err != nil {
			return err
		}
		name := sanitizeFilename(string(res.Contract))
		outPath = filepath.Join(outDir, fmt.Sprintf("%s.%s", name, outputExtension(format)))
	}

	sink, err := openSink(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	_, err = fmt.Fprintln(sink.writer, rendered)
	return err
}
