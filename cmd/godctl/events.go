package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ugobe007/pythh-sub021/internal/hermes"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect scoring events on the bus",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print events as they are published",
	RunE: func(cmd *cobra.Command, _ []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		if cfg.Hermes.URL == "" {
			return eris.New("hermes url is not configured (set GODSCORE_HERMES_URL)")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		hc, err := hermes.NewNATSClient(ctx, cfg.Hermes.URL, logger)
		if err != nil {
			return eris.Wrap(err, "connect to hermes")
		}
		defer hc.Close()

		out := cmd.OutOrStdout()
		lines := make(chan string, 64)
		err = hc.Subscribe(subject, func(subj string, data []byte) {
			select {
			case lines <- fmt.Sprintf("%s %s", subj, data):
			default:
				logger.Warn("tail output behind, dropping event", "subject", subj)
			}
		})
		if err != nil {
			return eris.Wrapf(err, "subscribe %s", subject)
		}

		for {
			select {
			case <-ctx.Done():
				return nil
			case l := <-lines:
				fmt.Fprintln(out, l)
			}
		}
	},
}

func init() {
	eventsTailCmd.Flags().String("subject", hermes.SubjectAll, "subject filter")
	eventsCmd.AddCommand(eventsTailCmd)
	rootCmd.AddCommand(eventsCmd)
}
