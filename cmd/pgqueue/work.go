package main

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	pgqueue "github.com/unionlabs/pg-queue"
	"github.com/unionlabs/pg-queue/job"
	"github.com/unionlabs/pg-queue/worker"
)

var workExec string

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "Run workers that pipe each job's payload to a shell command",
	Long: `Run a worker pool against the queue. Each claimed job's JSON payload
is written to the command's stdin. Exit status decides the job's fate:
0 completes the job, anything else fails it permanently with the
command's stderr as the message.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		q := pgqueue.New(st, pgqueue.WithLogger(logger))
		pool := worker.NewPool(q, execHandler(workExec),
			worker.WithConcurrency(cfg.Worker.Concurrency),
			worker.WithPollInterval(cfg.Worker.PollInterval),
			worker.WithRateLimit(cfg.Worker.RateLimit, cfg.Worker.Concurrency),
			worker.WithLogger(logger),
		)

		if err := pool.Start(ctx); err != nil {
			return err
		}
		logger.Info("workers running, Ctrl+C to stop")

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return pool.Stop(shutdownCtx)
	},
}

// execHandler resolves a job by running command with the payload on
// stdin. Exit 0 completes the job; a non-zero exit fails it permanently
// with the tail of stderr as the message.
func execHandler(command string) pgqueue.ProcessFunc {
	return func(ctx context.Context, j *job.Job) (pgqueue.Flow, error) {
		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Stdin = bytes.NewReader(j.Item)

		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if ctx.Err() != nil {
				// Shutdown, not a verdict on the job.
				return pgqueue.Requeue(), nil
			}
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = err.Error()
			}
			return pgqueue.Fail(truncate(msg, 4096)), nil
		}
		return pgqueue.Success(), nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func init() {
	workCmd.Flags().StringVar(&workExec, "exec", "", "Shell command run per job (payload on stdin)")
	if err := workCmd.MarkFlagRequired("exec"); err != nil {
		panic(fmt.Sprintf("mark exec required: %v", err))
	}
	rootCmd.AddCommand(workCmd)
}
