package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"surveydash/internal/aggregate"
	"surveydash/internal/export"
	"surveydash/internal/pipeline"
	"surveydash/internal/secrets"
	"surveydash/internal/source/airtable"
	"surveydash/internal/source/util"
)

type exportOpts struct {
	format  string
	query   string
	showIDs bool
	count   int
	sort    string
}

func exportCmd(opts *globalOpts) *cobra.Command {
	eo := &exportOpts{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Fetch once and write the company summary to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), opts, eo, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&eo.format, "format", "csv", "Output format: csv, md or json")
	cmd.Flags().StringVar(&eo.query, "q", "", "Only companies or experts containing this text")
	cmd.Flags().BoolVar(&eo.showIDs, "show-ids", false, "Append company ids to names")
	cmd.Flags().IntVar(&eo.count, "count", 0, "Only companies with exactly this many completions")
	cmd.Flags().StringVar(&eo.sort, "sort", aggregate.SortName, "Sort order: name or count_desc")
	return cmd
}

func runExport(ctx context.Context, opts *globalOpts, eo *exportOpts, out io.Writer) error {
	switch eo.format {
	case "csv", "md", "json":
	default:
		return fmt.Errorf("unknown format %q (want csv, md or json)", eo.format)
	}
	if eo.sort != aggregate.SortName && eo.sort != aggregate.SortCountDesc {
		return fmt.Errorf("unknown sort %q", eo.sort)
	}

	path, err := opts.userConfigPath()
	if err != nil {
		return err
	}
	cfg, _, err := opts.loadConfig(path)
	if err != nil {
		return err
	}

	tok, err := secrets.APIToken(cfg)
	if err != nil && !errors.Is(err, secrets.ErrTokenNotFound) {
		return err
	}

	res, err := pipeline.NewAirtableFetcher(cfg, tok).FetchAll(ctx)
	if err != nil {
		if fe, ok := airtable.AsFetchError(err); ok {
			return fmt.Errorf("upstream returned %d: %s", fe.StatusCode, util.Truncate(fe.Body, 2048))
		}
		return err
	}

	snap := pipeline.Build(res)
	view := aggregate.View{
		Query:      util.CleanText(eo.query),
		ShowIDs:    eo.showIDs,
		ExactCount: eo.count,
		Sort:       eo.sort,
	}
	rows := view.Filter(snap.Summaries(aggregate.Options{
		ShowIDs:           eo.showIDs,
		ExpertURLTemplate: cfg.Dashboard.ExpertURLTemplate,
	}))

	switch eo.format {
	case "md":
		s, err := export.NewMarkdown(cfg.Dashboard.ExpertURLTemplate).Render(rows)
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, s)
		return err
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	default:
		return export.WriteCSV(out, rows)
	}
}
