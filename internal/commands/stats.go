package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ghaaf-labs/Activity-tracker-discord-bot/config"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/calendar"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/chart"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/db"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/parse"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/stats"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show daily voice time for a member",
	Long: `Show daily voice time for a member as a bar chart.

Examples:
  voicestats stats --member 80351110224678912
  voicestats stats --member 80351110224678912 --days 30
  voicestats stats --member 80351110224678912 --from 2024-01-01 --to 2024-01-31`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
		}

		gormDB, err := db.Init(&cfg.Database, zap.NewNop())
		if err != nil {
			return err
		}
		if sqlDB, err := gormDB.DB(); err == nil {
			defer sqlDB.Close()
		}

		st := store.NewGormStore(gormDB)
		return runStats(cmd, st, stats.NewService(st, cfg.Tracker.Location), time.Now())
	},
}

// runStats renders the chart for the flags on cmd.
func runStats(cmd *cobra.Command, s store.Store, svc *stats.Service, now time.Time) error {
	flags := cmd.Flags()
	rawMember, _ := flags.GetString("member")
	days, _ := flags.GetString("days")
	from, _ := flags.GetString("from")
	to, _ := flags.GetString("to")

	memberID, err := parse.MemberID(rawMember)
	if err != nil {
		return err
	}
	start, end, err := parse.StatsRange(days, from, to, svc.Today(now))
	if err != nil {
		return err
	}

	ctx := context.Background()
	name := memberID.String()
	member, err := s.FindMember(ctx, memberID)
	switch {
	case err == nil && member.Bot:
		return errors.New("cannot generate stats for bots")
	case err == nil && member.DisplayName != "":
		name = member.DisplayName
	case err != nil && !errors.Is(err, store.ErrMemberNotFound):
		return err
	}

	series, err := svc.Daily(ctx, memberID, start, end)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	total := calendar.Total(series)
	if total == 0 {
		fmt.Fprintf(out, "No voice activity recorded for %s from %s to %s.\n", name, start, end)
		return nil
	}

	title := fmt.Sprintf("%s: %s to %s", name, start, end)
	fmt.Fprintln(out, chart.Render(title, series, chart.DefaultWidth))
	fmt.Fprintf(out, "Total: %s\n", stats.FormatTotal(total))
	return nil
}

func init() {
	statsCmd.Flags().StringP("member", "m", "", "member ID")
	statsCmd.Flags().StringP("days", "d", "", "number of days before today to include (default 7)")
	statsCmd.Flags().String("from", "", "first day, YYYY-MM-DD")
	statsCmd.Flags().String("to", "", "last day, YYYY-MM-DD")
	_ = statsCmd.MarkFlagRequired("member")
}
