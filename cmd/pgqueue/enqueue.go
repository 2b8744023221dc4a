package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	pgqueue "github.com/unionlabs/pg-queue"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <json>",
	Short: "Enqueue a JSON payload as a new job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := json.RawMessage(args[0])
		if !json.Valid(raw) {
			return fmt.Errorf("payload is not valid JSON: %q", args[0])
		}

		q := pgqueue.New(st, pgqueue.WithLogger(logger))
		id, err := q.Enqueue(cmd.Context(), raw)
		if err != nil {
			return err
		}

		logger.Info("enqueued", slog.Int64("id", id))
		fmt.Println(id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
}
