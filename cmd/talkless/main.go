package main

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

		if errors.Is(err, context.Canceled) {
			logger.Info().Msg("pipeline stopped")
			return
		}

		logger.Fatal().Err(err).Msg("talkless failed")
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "talkless",
		Short:         "Multi-source news processing pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd())

	return root
}
