package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codeberg.org/snonux/studycards/internal/cli"
	"codeberg.org/snonux/studycards/internal/logging"
	"codeberg.org/snonux/studycards/internal/processor"
)

func main() {
	flags := cli.NewFlags()

	rootCmd := cli.CreateRootCommand(flags)

	cobra.OnInitialize(func() {
		cli.InitConfig(flags.CfgFile)
	})

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd, flags)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCommand(cmd *cobra.Command, flags *cli.Flags) error {
	settings := cli.ResolveSettings(flags)

	logger := logging.New(logging.Options{
		Debug: settings.Debug,
		File:  settings.LogFile,
	})
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proc, err := processor.NewProcessor(settings, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := proc.Close(); err != nil {
			logger.Warn("failed to remove spooled audio", zap.Error(err))
		}
	}()

	switch {
	case flags.ListModels:
		return proc.ListModels(ctx)
	case flags.ListDecks:
		return proc.ListDecks(ctx)
	case flags.GenerateAnki:
		return generateAnki(ctx, proc, flags.AnkiCSV, logger)
	default:
		// No export requested - launch GUI mode by default
		return proc.RunGUIMode(ctx)
	}
}

func generateAnki(ctx context.Context, proc *processor.Processor, csv bool, logger *zap.Logger) error {
	fmt.Printf("Generating Anki import file...\n")
	outputPath, err := proc.GenerateAnkiFile(ctx, csv)
	if err != nil {
		logger.Error("anki export failed", zap.Error(err))
		return err
	}
	if csv {
		fmt.Printf("Anki CSV created: %s\n", outputPath)
	} else {
		fmt.Printf("Anki package created: %s\n", outputPath)
	}
	return nil
}
