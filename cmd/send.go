package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/wa-notifier/internal/logger"
	"github.com/jmehdipour/wa-notifier/internal/service/broadcast"
	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <file>",
	Short: "Send one sheet from the terminal and print the batch result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Sync()

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// the file belongs to the user here; it is never removed
		res, err := a.svc.Process(ctx, args[0])
		if err != nil && !errors.Is(err, broadcast.ErrAborted) && !errors.Is(err, broadcast.ErrCancelled) {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(res); encErr != nil {
			return encErr
		}
		if err != nil {
			return fmt.Errorf("%w (%d of %d sent)", err, res.SentCount, res.Total)
		}
		return nil
	},
}
