package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/wildguard/config"
	"github.com/kilianp07/wildguard/core/eventlog"
	_ "github.com/kilianp07/wildguard/infra/eventlog"
	"github.com/kilianp07/wildguard/pkg/export"
)

var timelineFlags struct {
	format string
	stats  bool
	since  time.Duration
}

var timelineCmd = &cobra.Command{
	Use:   "timeline [incident-id]",
	Short: "Print an incident timeline or per-topic statistics from the event log",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTimeline,
}

func init() {
	f := timelineCmd.Flags()
	f.StringVarP(&timelineFlags.format, "output", "o", "table", "table, json or csv")
	f.BoolVar(&timelineFlags.stats, "stats", false, "print per-topic counts instead of records")
	f.DurationVar(&timelineFlags.since, "since", 0, "only records newer than this")
	rootCmd.AddCommand(timelineCmd)
}

func runTimeline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := eventlog.NewStore(cfg.EventLog.Store)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	q := eventlog.Query{}
	if len(args) == 1 {
		q.IncidentID = args[0]
	}
	if timelineFlags.since > 0 {
		q.Start = time.Now().Add(-timelineFlags.since)
	}
	out := cmd.OutOrStdout()
	ctx := background(cmd)

	if timelineFlags.stats {
		st, err := eventlog.Summarize(ctx, store, q)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	}
	if q.IncidentID == "" {
		return fmt.Errorf("timeline: incident id required without --stats")
	}
	recs, err := store.Query(ctx, q)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("no events for incident %s", q.IncidentID)
	}
	if timelineFlags.format != "table" {
		return export.Write(out, timelineFlags.format, recs)
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SEQ\tTIME\tTOPIC\tSENDER")
	for _, r := range recs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", r.Seq, r.Timestamp.Format(time.RFC3339Nano), r.Topic, r.Sender)
	}
	return w.Flush()
}
