package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/topoview/internal/card"
	"github.com/ziadkadry99/topoview/internal/config"
	"github.com/ziadkadry99/topoview/internal/panel"
	"github.com/ziadkadry99/topoview/internal/progress"
)

var (
	inspectTheme   string
	inspectJSON    bool
	inspectTimeout time.Duration
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [entry_id...]",
	Short: "Load a diagram headlessly and list what it can select",
	Long: `Fetches the diagram and payload for each entry (or the configured source
when none is given), sanitizes and augments the diagram the way the card
does, and lists every clickable node and edge with its payload details.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if inspectTheme != "" {
			cfg.Theme = config.Theme(inspectTheme)
		}

		entries := args
		if len(entries) == 0 {
			entries = []string{cfg.EntryID}
		}

		configs := make([]*config.Config, len(entries))
		for i, entry := range entries {
			c := *cfg
			c.EntryID = entry
			c.Normalize()
			if err := c.Validate(); err != nil {
				return err
			}
			configs[i] = &c
		}

		var reporter progress.Reporter
		if len(configs) > 1 && !inspectJSON {
			reporter = progress.NewReporter(os.Stderr)
			reporter.Start(len(configs))
		}
		results := make([]inspection, len(configs))
		for i, c := range configs {
			results[i] = inspectEntry(cmd.Context(), c)
			if reporter != nil {
				reporter.Update(i+1, c.EntryID)
			}
		}
		if reporter != nil {
			reporter.Finish()
		}

		failed := 0
		for _, r := range results {
			if r.Snapshot.Message != "" {
				failed++
			}
			if inspectJSON {
				printJSON(r)
			} else {
				printInspection(r)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d entries failed to load", failed, len(results))
		}
		return nil
	},
}

type inspection struct {
	Entry    string        `json:"entry_id,omitempty"`
	Source   string        `json:"svg_url"`
	Snapshot card.Snapshot `json:"snapshot"`
	Targets  []string      `json:"targets"`
}

// inspectEntry loads one entry the way a card would.
func inspectEntry(ctx context.Context, cfg *config.Config) inspection {
	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	defer cancel()

	c := card.New(cfg, card.Deps{})
	defer c.Close()
	c.Refresh(ctx)
	return inspection{
		Entry:    cfg.EntryID,
		Source:   cfg.SVGURL,
		Snapshot: c.Snapshot(),
		Targets:  c.Targets(),
	}
}

func printJSON(r inspection) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(r)
}

func printInspection(r inspection) {
	snap := r.Snapshot
	name := r.Entry
	if name == "" {
		name = r.Source
	}
	fmt.Printf("%s %s\n", brand.Sprint("network map"), name)
	subtle.Printf("  %s\n", r.Source)

	if snap.Message != "" {
		if snap.MissingAuth {
			warn.Printf("  %s\n\n", snap.Message)
		} else {
			bad.Printf("  %s\n\n", snap.Message)
		}
		return
	}

	edges := 0
	if snap.Payload != nil {
		edges = len(snap.Payload.Edges)
	}
	fmt.Printf("  %d targets, %d payload edges\n\n", len(r.Targets), edges)

	rows := make([][]string, 0, len(r.Targets))
	for _, id := range r.Targets {
		d := panel.Describe(snap.Payload, id)
		state := ""
		if d.Status != nil {
			state = d.Status.State
		}
		rows = append(rows, []string{id, d.Type, d.EntityID, state, d.MAC, foundLabel(d.Found)})
	}
	printTable([]string{"TARGET", "TYPE", "ENTITY", "STATE", "MAC", "IN PAYLOAD"}, rows)
	fmt.Println()
}

func foundLabel(found bool) string {
	if found {
		return good.Sprint("yes")
	}
	return warn.Sprint("no")
}

// printTable prints an aligned table. Cells may carry colour codes, so
// widths are measured on the plain text of the header and first columns.
func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		subtle.Println("  (no clickable targets)")
		return
	}
	last := len(headers) - 1
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i := 0; i < last; i++ {
			widths[i] = max(widths[i], len(row[i]))
		}
	}

	header := "  "
	sep := "  "
	for i, h := range headers {
		header += fmt.Sprintf("%-*s  ", widths[i], h)
		sep += strings.Repeat("─", widths[i]) + "  "
	}
	subtle.Println(header)
	subtle.Println(sep)
	for _, row := range rows {
		line := "  "
		for i, cell := range row {
			if i == last {
				line += cell
				continue
			}
			line += fmt.Sprintf("%-*s  ", widths[i], cell)
		}
		fmt.Println(line)
	}
}

func init() {
	inspectCmd.Flags().StringVar(&inspectTheme, "theme", "", "Diagram theme (auto, light or dark)")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Print the card snapshot as JSON")
	inspectCmd.Flags().DurationVar(&inspectTimeout, "timeout", 30*time.Second, "Per-entry load timeout")
	rootCmd.AddCommand(inspectCmd)
}
