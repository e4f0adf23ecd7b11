// Command insightctl inspects the engine-owned trust and intelligence
// tables: member reports, history tails, and group configuration. It is
// a read-only ops tool; all score mutation goes through the engine API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	gormlog "gorm.io/gorm/logger"

	"github.com/guildkeeper/insight/internal/config"
	db "github.com/guildkeeper/insight/internal/db/gorm"
	"github.com/guildkeeper/insight/pkg/models"
)

var Version = "dev"

var (
	flagDSN   string
	flagGroup int64
	flagUser  int64
	flagLimit int
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	root := &cobra.Command{
		Use:           "insightctl",
		Short:         "Inspect trust scores and intelligence profiles",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagDSN, "dsn", "", "database DSN (defaults to settings/env)")

	report := &cobra.Command{
		Use:   "report",
		Short: "Show a member's trust standing",
		RunE:  runReport,
	}
	history := &cobra.Command{
		Use:   "history",
		Short: "Show a member's recent trust score changes",
		RunE:  runHistory,
	}
	trustCfg := &cobra.Command{
		Use:   "trust-config",
		Short: "Dump a group's trust configuration",
		RunE:  runTrustConfig,
	}
	intelCfg := &cobra.Command{
		Use:   "intel-config",
		Short: "Dump a group's intelligence configuration",
		RunE:  runIntelConfig,
	}

	for _, cmd := range []*cobra.Command{report, history, trustCfg, intelCfg} {
		cmd.Flags().Int64Var(&flagGroup, "group", 0, "group id")
		_ = cmd.MarkFlagRequired("group")
		root.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{report, history} {
		cmd.Flags().Int64Var(&flagUser, "user", 0, "user id")
		_ = cmd.MarkFlagRequired("user")
	}
	history.Flags().IntVar(&flagLimit, "limit", 20, "number of rows")

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func openStore() (*db.Store, error) {
	dsn := flagDSN
	if dsn == "" {
		dsn = config.Get().DSN
	}
	return db.NewStore(db.Config{
		DSN:      dsn,
		MaxConns: config.Get().MaxConns,
		LogLevel: gormlog.Silent,
	})
}

func runReport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	trustStore := db.NewTrustStore(store)

	score, exists, err := trustStore.CurrentScore(ctx, flagGroup, flagUser)
	if err != nil {
		return err
	}
	if !exists {
		score = models.NeutralScore
	}

	now := time.Now()
	change7d, err := trustStore.ChangeSince(ctx, flagGroup, flagUser, now.Add(-7*24*time.Hour))
	if err != nil {
		return err
	}
	change30d, err := trustStore.ChangeSince(ctx, flagGroup, flagUser, now.Add(-30*24*time.Hour))
	if err != nil {
		return err
	}

	fmt.Printf("member %d in group %d\n", flagUser, flagGroup)
	fmt.Printf("  score: %.1f (%s)\n", score, models.TierForScore(score))
	fmt.Printf("  change: %+.1f over 7d, %+.1f over 30d\n", change7d, change30d)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := db.NewTrustStore(store).RecentHistory(context.Background(), flagGroup, flagUser, flagLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("no history")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %-20s  %+6.1f  %.1f -> %.1f  %s\n",
			e.CreatedAt.Format(time.RFC3339), e.EventType, e.Delta, e.OldScore, e.NewScore, e.Reason)
	}
	return nil
}

func runTrustConfig(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	cfg, err := db.NewTrustStore(store).GetOrCreateConfig(context.Background(), flagGroup)
	if err != nil {
		return err
	}
	return dumpJSON(cfg)
}

func runIntelConfig(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	cfg, err := db.NewIntelligenceStore(store).GetOrCreateConfig(context.Background(), flagGroup)
	if err != nil {
		return err
	}
	return dumpJSON(cfg)
}

func dumpJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
