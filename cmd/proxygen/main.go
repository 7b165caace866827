package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vk/proxyforge/internal/cli"
	"github.com/vk/proxyforge/internal/ctxlog"
	"github.com/vk/proxyforge/internal/emit"
	"github.com/vk/proxyforge/internal/fsutil"
	"github.com/vk/proxyforge/internal/registry"
	"github.com/vk/proxyforge/internal/synth"
)

// main is the entrypoint for the proxygen tool.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling.
func run(outW io.Writer, args []string) error {
	cfg, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := newLogger(cfg)
	ctx := ctxlog.WithLogger(context.Background(), logger)

	paths, err := definitionPaths(cfg.DefsPath)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		logger.Warn("No .hcl definition files found in path", "path", cfg.DefsPath)
		return nil
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	reg := registry.New()
	for _, path := range paths {
		def, err := reg.GetDefinition(ctx, path)
		if err != nil {
			return err
		}

		prog, err := synth.Synthesize(ctx, def, synth.Options{PreserveNames: cfg.PreserveNames})
		if err != nil {
			return err
		}

		src, err := emit.File(prog)
		if err != nil {
			return err
		}

		outPath := filepath.Join(cfg.OutDir, emit.PackageName(prog.Surface)+".gen.go")
		if err := os.WriteFile(outPath, src, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
		logger.Info("Generated proxy source.", "definition", path, "service", def.Name, "out", outPath)
	}

	return nil
}

func definitionPaths(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{root}, nil
	}
	return fsutil.FindFilesByExtension(root, ".hcl")
}

func newLogger(cfg *cli.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
