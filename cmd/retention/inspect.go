package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/retention/core/codec"
	"github.com/tailored-agentic-units/retention/settings"
)

type recordView struct {
	Conversation        string `json:"conversation"`
	HideLastN           int    `json:"hide_last_n"`
	LastProcessedLength int    `json:"last_processed_length"`
	CacheLength         int    `json:"cache_length"`
	CacheValid          bool   `json:"cache_valid"`
	// Raw is the stored record in CBOR diagnostic notation.
	Raw string `json:"raw,omitempty"`
}

func newInspectCmd() *cobra.Command {
	var asJSON, raw bool
	cmd := &cobra.Command{
		Use:   "inspect [conversation...]",
		Short: "List persisted conversation settings",
		Long: `Reads the configured settings store and prints each conversation's
retention count and cache summary. Records that fail to decode are skipped.
The memory backend is always empty here.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger()

			store, err := settings.NewStore(&cfg.Settings, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			views, err := collectRecords(cmd.Context(), store, args, raw, logger)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}
			return printRecords(cmd.OutOrStdout(), views)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	cmd.Flags().BoolVar(&raw, "raw", false, "Include each stored record in CBOR diagnostic notation")
	return cmd
}

// collectRecords summarizes the records of ids, or of every conversation in
// store when ids is empty.
func collectRecords(ctx context.Context, store settings.Store, ids []string, raw bool, logger *slog.Logger) ([]recordView, error) {
	cache := settings.NewCache(store)
	if err := cache.Bootstrap(ctx); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		ids = cache.Conversations()
	}

	views := make([]recordView, 0, len(ids))
	for _, id := range ids {
		rec, err := cache.Load(ctx, id)
		if err != nil {
			logger.Warn("skipping record", "conversation", id, "error", err)
			continue
		}
		view := recordView{
			Conversation:        id,
			HideLastN:           rec.HideLastN,
			LastProcessedLength: rec.LastProcessedLength,
			CacheLength:         rec.Cache.Length,
			CacheValid:          rec.Cache.Valid() && rec.Cache.Length > 0,
		}

		if raw {
			entries, err := store.Load(ctx, settings.Key(id))
			if err != nil {
				logger.Warn("no stored record", "conversation", id, "error", err)
			} else if view.Raw, err = codec.Diagnose(entries[0].Value); err != nil {
				return nil, fmt.Errorf("failed to diagnose %s: %w", id, err)
			}
		}
		views = append(views, view)
	}
	return views, nil
}

func printRecords(out io.Writer, views []recordView) error {
	if len(views) == 0 {
		_, err := fmt.Fprintln(out, "no conversation settings")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CONVERSATION\tRETAIN\tLAST LENGTH\tCACHE")
	for _, v := range views {
		retain := "none"
		if v.HideLastN > 0 {
			retain = fmt.Sprint(v.HideLastN)
		}
		cache := "stale"
		if v.CacheValid {
			cache = fmt.Sprintf("%d positions", v.CacheLength)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", v.Conversation, retain, v.LastProcessedLength, cache)
		if v.Raw != "" {
			fmt.Fprintf(w, "  %s\n", v.Raw)
		}
	}
	return w.Flush()
}
