package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"bulletin-scraper/internal/app"
	"bulletin-scraper/internal/config"
	"bulletin-scraper/internal/manifest"
	"bulletin-scraper/internal/observability"
)

const defaultConfigPath = "configs/config.yaml"

type options struct {
	configPath string
	output     string
	source     string
	noConsole  bool
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var (
		opts    options
		exitErr error
	)

	cmd := &cobra.Command{
		Use:   "bulletin-scraper [url]",
		Short: "Extract per-section link listings from a security bulletin page",
		Long: `bulletin-scraper renders a bulletin page, pairs each table with the
heading before it in order, and writes the second-column links of every
table to a manifest grouped by heading. The URL is prompted for when it is
not given as an argument.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			exitErr = run(cmd.Context(), opts, args, stdin, stdout, stderr)
			return exitErr
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", defaultConfigPath, "path to config YAML (defaults apply when the default path is absent)")
	flags.StringVarP(&opts.output, "output", "o", "", "manifest path (overrides output.path)")
	flags.StringVar(&opts.source, "source", "", "document source: rod, http or file (overrides source.kind)")
	flags.BoolVar(&opts.noConsole, "no-console", false, "do not mirror the manifest to stdout")

	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if exitErr == nil {
			return 2 // usage
		}
		return app.ExitCode(exitErr)
	}
	return 0
}

func run(ctx context.Context, opts options, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.LoadConfig(opts.configPath, opts.configPath == defaultConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.output != "" {
		cfg.Output.Path = opts.output
	}
	if opts.source != "" {
		cfg.Source.Kind = opts.source
	}
	if opts.noConsole {
		cfg.Output.Console = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	logger, err := observability.NewLogger(observability.Options{
		Path:       cfg.Observability.LogPath,
		Level:      cfg.Observability.LogLevel,
		MaxSizeMB:  cfg.Observability.LogMaxSizeMB,
		MaxBackups: cfg.Observability.LogMaxBackups,
		MaxAgeDays: cfg.Observability.LogMaxAgeDays,
		Console:    stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	url, err := targetURL(args, stdin, stderr)
	if err != nil {
		return err
	}

	ctx, stop := app.GracefulShutdown(ctx, logger)
	defer stop()

	sinks := []manifest.Sink{manifest.NewFileSink(cfg.Output.Path)}
	if cfg.Output.Console {
		sinks = append(sinks, manifest.NewConsoleSink(stdout))
	}

	orchestrator := app.NewOrchestrator(cfg, logger, app.NewSourceFactory(cfg, logger), sinks...)
	if _, err := orchestrator.Run(ctx, url); err != nil {
		return err
	}
	return nil
}

// targetURL takes the URL argument or asks for it on stdin.
func targetURL(args []string, stdin io.Reader, prompt io.Writer) (string, error) {
	if len(args) == 1 {
		if u := strings.TrimSpace(args[0]); u != "" {
			return u, nil
		}
	}

	fmt.Fprint(prompt, "Enter bulletin page URL: ")
	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read URL: %w", err)
	}
	u := strings.TrimSpace(line)
	if u == "" {
		return "", fmt.Errorf("a bulletin page URL is required")
	}
	return u, nil
}
