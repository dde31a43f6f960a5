package commands

import (
	"fmt"
	"io"

	"tender-scraper/scraper"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var probeURLs []string

func init() {
	probeCmd.Flags().StringSliceVar(&probeURLs, "url", nil, "Probe these URLs instead of the configured portal paths.")
	rootCmd.AddCommand(probeCmd)
}

var probeCmd = &cobra.Command{
	Use:   "probe [--url <url>]...",
	Short: "Fetches every candidate page and reports which one looks like the tender listing.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		urls, err := candidateURLs(cfg, probeURLs)
		if err != nil {
			return err
		}

		a, err := newApp(ctx, cfg, logger, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.newRunner().Probe(ctx, urls)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		renderProbe(out, results)
		if best, ok := scraper.Best(results); ok {
			fmt.Fprintf(out, "Best candidate: %s\n", best.URL)
		} else {
			fmt.Fprintln(out, "No usable candidate found.")
		}
		return nil
	},
}

func renderProbe(w io.Writer, results []scraper.ProbeResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"URL", "Method", "Title", "Tables", "Containers", "Search", "Tenders", "Session", "Error"})
	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		session := "ok"
		if r.Info.SessionInvalid {
			session = "invalid"
		}
		t.AppendRow(table.Row{
			r.URL, r.Method, r.Info.Title, r.Info.Tables, r.Info.Containers,
			r.Info.HasSearchInterface(), r.Info.HasDomainContent, session, errText,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
