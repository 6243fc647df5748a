package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/functree/modules/functionality"
	"github.com/iota-uz/functree/pkg/configuration"
	"github.com/iota-uz/functree/pkg/eventbus"
	"github.com/iota-uz/functree/pkg/logging"
)

func newOutboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect stored node events",
	}
	cmd.AddCommand(newOutboxStatusCmd())
	return cmd
}

func newOutboxStatusCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Count pending, dead and published outbox events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := logging.ConsoleLogger(logrus.WarnLevel)
			relay, err := functionality.NewOutboxRelay(pool, eventbus.NewEventPublisher(logger), configuration.Use().Outbox, logrus.NewEntry(logger))
			if err != nil {
				return err
			}
			st, err := relay.Stats(ctx)
			if err != nil {
				return err
			}
			if format == formatText {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "pending=%d dead=%d published=%d\n", st.Pending, st.Dead, st.Published)
				return err
			}
			return encode(cmd.OutOrStdout(), format, st)
		},
	}
	cmd.Flags().StringVar(&format, "format", formatText, "output format: text|json|yaml")
	return cmd
}
