package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veridag/veridag/pkg/stores"
)

func newEventsCommand() *cobra.Command {
	var (
		journalPath string
		runID       string
		stream      string
		from        int64
		count       int
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Read run events from an event journal",
		Long: `Read the append-only event journal written by 'run --journal'.

Each run appends its lifecycle events (run, stage, and node transitions)
to a stream keyed by run ID.`,
		Example: `  # Read all events of one run
  veridag events --journal events.db --run 2f9c...

  # Read an arbitrary stream from a given version
  veridag events --journal events.db --stream run:2f9c... --from 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if runID == "" && stream == "" {
				return fmt.Errorf("either --run or --stream is required")
			}
			streamID := stream
			if streamID == "" {
				streamID = stores.RunStreamID(runID)
			}

			eventLog, err := stores.NewEventLog(stores.Config{Path: journalPath})
			if err != nil {
				return err
			}
			if err := eventLog.Init(ctx); err != nil {
				return err
			}
			defer eventLog.Close()
			if err := eventLog.Migrate(ctx); err != nil {
				return err
			}

			events, err := eventLog.Read(ctx, streamID, from, count)
			if err != nil {
				return err
			}

			for _, ev := range events {
				if jsonOutput {
					fmt.Printf(`{"version":%d,"type":%q,"recorded_at":%q,"data":%s}`+"\n",
						ev.Version, ev.Type, ev.RecordedAt.Format("2006-01-02T15:04:05.000Z07:00"), ev.Data)
					continue
				}
				fmt.Printf("%4d  %-16s  %s  %s\n",
					ev.Version, ev.Type, ev.RecordedAt.Format("15:04:05.000"), ev.Data)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&journalPath, "journal", "", "SQLite event journal path")
	cmd.Flags().StringVar(&runID, "run", "", "run ID whose events to read")
	cmd.Flags().StringVar(&stream, "stream", "", "raw stream ID to read")
	cmd.Flags().Int64Var(&from, "from", 0, "read events after this version")
	cmd.Flags().IntVar(&count, "count", 0, "maximum events to read (0 = all)")
	_ = cmd.MarkFlagRequired("journal")

	return cmd
}
