package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/retention/core/protocol"
	"github.com/tailored-agentic-units/retention/observability"
	"github.com/tailored-agentic-units/retention/reconcile"
	"github.com/tailored-agentic-units/retention/retention"
	"github.com/tailored-agentic-units/retention/session"
)

type simulateOptions struct {
	conversation string
	messages     int
	retain       string
	appends      int
	userEvery    int
	asJSON       bool
}

func newSimulateCmd() *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run reconciliation passes over a synthetic conversation",
		Long: `Opens a conversation (the configured session seed, or a synthetic one),
applies a retention count, then appends messages one at a time and prints
every pass.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.conversation, "conversation", "simulation", "Conversation ID")
	cmd.Flags().IntVar(&opts.messages, "messages", 25, "Synthetic messages when the config has no session seed")
	cmd.Flags().StringVar(&opts.retain, "retain", "10", "Retention count; blank or 0 hides nothing")
	cmd.Flags().IntVar(&opts.appends, "appends", 3, "Messages to append after the retention count is set")
	cmd.Flags().IntVar(&opts.userEvery, "user-every", 0, "Make every nth synthetic message a protected user message")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print pass results as JSON lines")
	return cmd
}

func runSimulate(ctx context.Context, out io.Writer, opts *simulateOptions) error {
	n, err := retention.ParseRetention(opts.retain)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	seq, err := session.New(&cfg.Session)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if seq.Len() == 0 {
		for i := range opts.messages {
			seq.AddMessage(syntheticMessage(i, opts.userEvery))
		}
	}

	presenter := reconcile.PresenterFunc(func(ctx context.Context, id string, indices []int) error {
		logger.Debug("refresh", "conversation", id, "indices", indices)
		return nil
	})

	d, err := reconcile.New(cfg,
		reconcile.WithObserver(observability.NewSlogObserver(logger)),
		reconcile.WithPresenter(presenter),
	)
	if err != nil {
		return fmt.Errorf("failed to create driver: %w", err)
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	report := resultPrinter(out, opts.asJSON)

	conv, res, err := d.Open(ctx, opts.conversation, seq)
	if err := report("open", res, err); err != nil {
		return err
	}

	res, err = d.SetRetention(ctx, conv, n)
	if err := report("retain", res, err); err != nil {
		return err
	}

	for i := range opts.appends {
		seq.AddMessage(syntheticMessage(seq.Len(), opts.userEvery))
		res, err = d.Handle(ctx, conv, reconcile.TriggerAppended)
		if err := report(fmt.Sprintf("append %d", i+1), res, err); err != nil {
			return err
		}
	}

	if !opts.asJSON {
		p := retention.Project(seq)
		fmt.Fprintf(out, "\nmessages: %d  hidden: %d  visible: %d  retain: %d\n",
			len(p), p.HiddenCount(), len(seq.Visible()), conv.Setting())
	}
	return nil
}

func syntheticMessage(i, userEvery int) protocol.Message {
	if userEvery > 0 && i%userEvery == 0 {
		return protocol.NewMessage(protocol.RoleUser, fmt.Sprintf("question %d", i))
	}
	return protocol.NewMessage(protocol.RoleAssistant, fmt.Sprintf("answer %d", i))
}

// resultPrinter returns a function that prints one pass. A pass that
// returned a result alongside an error is printed before the error is
// logged; only a pass without a result stops the simulation.
func resultPrinter(out io.Writer, asJSON bool) func(step string, res *reconcile.Result, err error) error {
	enc := json.NewEncoder(out)
	return func(step string, res *reconcile.Result, err error) error {
		if res == nil {
			return fmt.Errorf("%s: %w", step, err)
		}
		if err != nil {
			slog.Warn("pass completed with errors", "step", step, "error", err)
		}

		if asJSON {
			return enc.Encode(struct {
				Step string `json:"step"`
				*reconcile.Result
			}{step, res})
		}

		fmt.Fprintf(out, "%-10s %-20s %-12s transitions=%-3d overrides=%-2d provider=%s",
			step, res.Trigger, res.Strategy, len(res.Transitions), res.Overrides, res.Provider)
		if res.Fallback != "" {
			fmt.Fprintf(out, " fallback=%q", res.Fallback)
		}
		if len(res.Affected) > 0 {
			fmt.Fprintf(out, " affected=%v", res.Affected)
		}
		fmt.Fprintln(out)
		return nil
	}
}
