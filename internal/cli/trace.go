package cli

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/registrar/internal/model"
	"github.com/roach88/registrar/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Collection string
	From       int64
	Limit      int
	Flow       string
}

// TraceReport is a slice of the change log.
type TraceReport struct {
	Events []model.ChangeEvent `json:"events"`
	Next   int64               `json:"next"`
}

func (r TraceReport) Text(w io.Writer) {
	if len(r.Events) == 0 {
		fmt.Fprintln(w, "No changes found.")
		return
	}
	for _, ev := range r.Events {
		fmt.Fprintf(w, "[%d] %s %s %s", ev.Seq, ev.Collection, ev.Op, ev.EntityID)
		if len(ev.Changed) > 0 {
			fmt.Fprintf(w, " changed=%s", strings.Join(ev.Changed, ","))
		}
		if ev.Origin != "" {
			fmt.Fprintf(w, " origin=%s", ev.Origin)
		}
		if ev.Reason != "" {
			fmt.Fprintf(w, " reason=%q", ev.Reason)
		}
		fmt.Fprintf(w, " flow=%s depth=%d\n", ev.Flow, ev.Depth)
	}
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the change log",
		Long: `Show committed change events in seq order.

Without --collection every collection is read. --flow shows every event
of one flow, the user operation and the cascade it caused.

Examples:
  registrar trace
  registrar trace --collection enrollment --from 120 --limit 20
  registrar trace --flow 0192f0c4-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Collection, "collection", "", "collection to read (default all)")
	cmd.Flags().Int64Var(&opts.From, "from", 0, "show events after this seq")
	cmd.Flags().IntVar(&opts.Limit, "limit", 100, "maximum number of events")
	cmd.Flags().StringVar(&opts.Flow, "flow", "", "show the events of one flow")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	if opts.Limit <= 0 {
		return NewExitError(ExitCommandError, "--limit must be positive")
	}
	collections := model.Collections()
	if opts.Collection != "" {
		c, err := model.ParseCollection(opts.Collection)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --collection", err)
		}
		collections = []model.Collection{c}
	}

	a, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	var events []model.ChangeEvent
	if opts.Flow != "" {
		events, err = a.store.ChangesByFlow(ctx, opts.Flow)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read flow", err)
		}
	} else {
		for _, c := range collections {
			batch, err := a.changes.Read(ctx, c, opts.From, opts.Limit)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read change log", err)
			}
			events = append(events, batch...)
		}
		slices.SortFunc(events, func(x, y model.ChangeEvent) int {
			return cmp.Compare(x.Seq, y.Seq)
		})
		if len(events) > opts.Limit {
			events = events[:opts.Limit]
		}
	}

	report := TraceReport{Events: events, Next: opts.From}
	if events == nil {
		report.Events = []model.ChangeEvent{}
	}
	if n := len(events); n > 0 {
		report.Next = events[n-1].Seq
	}
	return opts.formatter(cmd).Success(report)
}

// CursorReport lists subscriber positions.
type CursorReport struct {
	Cursors []store.CursorState `json:"cursors"`
}

func (r CursorReport) Text(w io.Writer) {
	if len(r.Cursors) == 0 {
		fmt.Fprintln(w, "No cursors recorded.")
		return
	}
	for _, c := range r.Cursors {
		fmt.Fprintf(w, "%-14s %-11s %d\n", c.Subscriber, c.Collection, c.Position)
	}
}

// NewCursorsCommand creates the cursors command.
func NewCursorsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "cursors",
		Short:         "List trigger cursor positions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			cursors, err := a.store.Cursors(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read cursors", err)
			}
			if cursors == nil {
				cursors = []store.CursorState{}
			}
			return rootOpts.formatter(cmd).Success(CursorReport{Cursors: cursors})
		},
	}
}

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Collection string
	To         int64
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <subscriber>",
		Short: "Rewind a trigger cursor for redelivery",
		Long: `Move a trigger's cursor back so the engine redelivers every event after
the given seq on its next start. Triggers are idempotent, so replayed
events that were already handled change nothing.

Examples:
  registrar replay audit --collection student --to 0
  registrar replay capacity --collection enrollment --to 120`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := model.ParseCollection(opts.Collection)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --collection", err)
			}
			if opts.To < 0 {
				return NewExitError(ExitCommandError, "--to must not be negative")
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			from, err := a.store.Cursor(ctx, args[0], c)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read cursor", err)
			}
			if err := a.store.ResetCursor(ctx, args[0], c, opts.To); err != nil {
				return WrapExitError(ExitCommandError, "failed to reset cursor", err)
			}
			a.logger.Info("cursor rewound", "trigger", args[0], "collection", c, "from", from, "to", opts.To)
			return opts.formatter(cmd).Success(ReplayReport{Subscriber: args[0], Collection: c, From: from, To: opts.To})
		},
	}

	cmd.Flags().StringVar(&opts.Collection, "collection", "", "collection of the cursor (required)")
	cmd.Flags().Int64Var(&opts.To, "to", 0, "new cursor position; events after it are redelivered")
	_ = cmd.MarkFlagRequired("collection")

	return cmd
}

// ReplayReport describes a cursor rewind.
type ReplayReport struct {
	Subscriber string           `json:"subscriber"`
	Collection model.Collection `json:"collection"`
	From       int64            `json:"from"`
	To         int64            `json:"to"`
}

func (r ReplayReport) Text(w io.Writer) {
	fmt.Fprintf(w, "Cursor %s/%s moved from %d to %d\n", r.Subscriber, r.Collection, r.From, r.To)
}
