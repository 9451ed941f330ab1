package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ugobe007/pythh-sub021/internal/config"
	"github.com/ugobe007/pythh-sub021/internal/store"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "godctl",
	Short: "Operate the GOD score service",
	Long:  "Manages weight versions, previews scores, inspects k-anonymity risk and tails scoring events.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		c, err := config.Load(path)
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		level := slog.LevelWarn
		if v, _ := cmd.Flags().GetBool("verbose"); v {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to config file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log debug output to stderr")
}

// openStore connects to the configured database. The CLI never runs on the
// in-memory store.
func openStore(ctx context.Context) (*store.PostgresStore, error) {
	if cfg.Database.URL == "" {
		return nil, eris.New("database url is not configured (set GODSCORE_DATABASE_URL)")
	}
	pg, err := store.NewPostgresStore(ctx, cfg.Database.URL)
	if err != nil {
		return nil, eris.Wrap(err, "connect to database")
	}
	return pg, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
