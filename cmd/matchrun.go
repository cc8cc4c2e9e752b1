package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var matchrunSchedule string

var matchrunCmd = &cobra.Command{
	Use:   "matchrun",
	Short: "Run the daily match job",
	Long:  "Scores all pairs of completed-onboarding users and inserts today's match candidates. With --schedule it keeps running on a cron expression instead of exiting.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if matchrunSchedule == "" {
			result, err := env.Runner.RunDaily(ctx, time.Now())
			if err != nil {
				return err
			}
			zap.L().Info("match run finished",
				zap.String("date", result.Date),
				zap.Int("inserted", result.Inserted),
			)
			return nil
		}

		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		sched, err := parser.Parse(matchrunSchedule)
		if err != nil {
			return eris.Wrapf(err, "invalid schedule %q", matchrunSchedule)
		}
		zap.L().Info("match job scheduled", zap.String("cron", matchrunSchedule))

		for {
			now := time.Now()
			next := sched.Next(now)
			zap.L().Info("next match run", zap.Time("at", next))

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(next.Sub(now)):
			}

			result, err := env.Runner.RunDaily(ctx, time.Now())
			if err != nil {
				zap.L().Error("match run failed", zap.Error(err))
				continue
			}
			zap.L().Info("match run finished",
				zap.String("date", result.Date),
				zap.Int("inserted", result.Inserted),
			)
		}
	},
}

func init() {
	matchrunCmd.Flags().StringVar(&matchrunSchedule, "schedule", "", "cron expression; run the job on a schedule instead of once")
	rootCmd.AddCommand(matchrunCmd)
}
