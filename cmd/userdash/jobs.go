package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/userdash/cmd/userdash/cli"
	"github.com/odyssey-erp/userdash/jobs"
)

var redisAddr string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Enqueue and inspect background jobs",
}

var jobsTriggerCmd = &cobra.Command{
	Use:   "trigger [dataset...]",
	Short: "Enqueue a dataset cache warmup (all datasets when none are named)",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := cli.NewJobsCLI(redisAddr)
		if err != nil {
			return err
		}
		defer c.Close()
		info, err := c.Trigger(cmd.Context(), jobs.TaskDatasetsWarm, args...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil
	},
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := cli.NewJobsCLI(redisAddr)
		if err != nil {
			return err
		}
		defer c.Close()
		stats, err := c.InspectQueue(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	},
}

func init() {
	defaultAddr := os.Getenv("REDIS_ADDR")
	if defaultAddr == "" {
		defaultAddr = "127.0.0.1:6379"
	}
	jobsCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", defaultAddr, "Redis address for the job queue")
	jobsCmd.AddCommand(jobsTriggerCmd, jobsStatsCmd)
}
