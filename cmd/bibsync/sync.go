// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bibsync/internal/bibtex"
	"github.com/pdiddy/bibsync/internal/doiurl"
	"github.com/pdiddy/bibsync/internal/engine"
	"github.com/pdiddy/bibsync/internal/history"
	"github.com/pdiddy/bibsync/internal/httputil"
	"github.com/pdiddy/bibsync/internal/journal"
	"github.com/pdiddy/bibsync/internal/metrics"
	"github.com/pdiddy/bibsync/internal/secrets"
	"github.com/pdiddy/bibsync/internal/source"
	"github.com/pdiddy/bibsync/internal/title"
	"github.com/pdiddy/bibsync/pkg/types"
)

const defaultUserAgent = "bibsync/0.1"

var syncCmd = &cobra.Command{
	Use:   "sync [infile] [outfile]",
	Short: "Sync a BibTeX file with an online source",
	Long: `Sync reads a BibTeX file (default: stdin), looks up every entry in the
chosen source, merges confident matches into the entries and writes the
result (default: stdout). After the lookup the DOI URLs, titles and journal
names are normalized.

A summary of matched, unmatched, failed and not-attempted entries is printed
on stderr. Lookup failures never abort the run.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runSync,
}

func init() {
	f := syncCmd.Flags()
	f.BoolP("in-place", "i", false, "modify infile in place")
	f.StringP("source", "s", string(source.Crossref), "data source: crossref, dblp or openalex")
	f.BoolP("long-journal-names", "l", false, "prefer long journal names")
	f.String("extra-abbrev-file", "", "custom journal abbreviations, as JSON or YAML file")
	f.IntP("num-concurrent-requests", "c", engine.DefaultConcurrency, "number of concurrent lookups")
	f.BoolP("sort-by-bibkey", "b", false, "sort entries by BibTeX key")
	f.BoolP("tab-indent", "t", false, "use tabs for indentation")
	f.StringP("delimiter-type", "d", string(types.DelimiterBraces), "value delimiters: braces or quotes")
	f.StringP("doi-url-type", "u", string(types.DOIURLNew), "DOI URL style: unchanged, new (https://doi.org/<DOI>) or short")
	f.Duration("timeout", source.DefaultTimeout, "per-lookup deadline")
	f.Int("retries", 0, "extra attempts for transient lookup failures")
	f.Float64("requests-per-second", 0, "shared request rate budget (0 = unlimited)")
	f.String("mailto", "", "polite-pool contact address (default: from .secrets/)")
	f.Bool("details", false, "print a per-entry table on stderr")
	f.String("metrics-file", "", "write Prometheus textfile metrics to this path")
	f.String("history-db", "", "record the run in this SQLite history ledger")

	for key, flag := range map[string]string{
		"source":              "source",
		"long_journal_names":  "long-journal-names",
		"extra_abbrev_file":   "extra-abbrev-file",
		"concurrency":         "num-concurrent-requests",
		"sort_by_bibkey":      "sort-by-bibkey",
		"tab_indent":          "tab-indent",
		"delimiter_type":      "delimiter-type",
		"doi_url_type":        "doi-url-type",
		"timeout":             "timeout",
		"retries":             "retries",
		"requests_per_second": "requests-per-second",
		"mailto":              "mailto",
		"metrics_file":        "metrics-file",
		"history_db":          "history-db",
	} {
		viper.BindPFlag(key, f.Lookup(flag))
	}

	rootCmd.AddCommand(syncCmd)
}

// syncJob is one sync invocation with its resolved configuration.
type syncJob struct {
	cfg     types.SyncConfig
	out     types.OutputConfig
	details bool
	input   string

	// newClient builds the source client; tests substitute fakes.
	newClient func(source.Kind, source.Config) (source.Client, error)
}

func runSync(cmd *cobra.Command, args []string) error {
	var cfg types.SyncConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}
	var outCfg types.OutputConfig
	if err := viper.Unmarshal(&outCfg); err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}
	if cfg.Mailto == "" {
		cfg.Mailto = secrets.Contact(loadedSecrets)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	inPlace, _ := cmd.Flags().GetBool("in-place")
	details, _ := cmd.Flags().GetBool("details")

	inPath, outPath := "-", "-"
	if len(args) > 0 {
		inPath = args[0]
	}
	if len(args) > 1 {
		outPath = args[1]
	}
	if inPlace {
		if inPath == "-" {
			return fmt.Errorf("--in-place needs an input file")
		}
		if len(args) > 1 {
			return fmt.Errorf("--in-place cannot be combined with an output file")
		}
		outPath = inPath
	}

	in := io.Reader(cmd.InOrStdin())
	if inPath != "-" {
		f, err := os.Open(inPath)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := syncJob{cfg: cfg, out: outCfg, details: details, input: inPath, newClient: source.New}
	var buf bytes.Buffer
	if _, err := job.run(ctx, in, &buf, cmd.ErrOrStderr()); err != nil {
		return err
	}

	if outPath == "-" {
		_, err := io.Copy(cmd.OutOrStdout(), &buf)
		return err
	}
	return os.WriteFile(outPath, buf.Bytes(), 0o644)
}

// run parses in, synchronizes the entries, post-processes them and writes
// the result to out. Diagnostics go to errw.
func (j syncJob) run(ctx context.Context, in io.Reader, out, errw io.Writer) (types.SyncResults, error) {
	if j.cfg.Source == "" {
		j.cfg.Source = string(source.Crossref)
	}
	if j.cfg.DOIURLType == "" {
		j.cfg.DOIURLType = types.DOIURLNew
	}
	kind, err := source.ParseKind(j.cfg.Source)
	if err != nil {
		return nil, err
	}
	style, err := doiurl.ParseStyle(string(j.cfg.DOIURLType))
	if err != nil {
		return nil, err
	}
	switch j.out.Delimiter {
	case "", types.DelimiterBraces, types.DelimiterQuotes:
	default:
		return nil, fmt.Errorf("unknown delimiter type %q (want braces or quotes)", j.out.Delimiter)
	}
	abbrev, err := journal.Load(j.cfg.ExtraAbbrevFile)
	if err != nil {
		return nil, err
	}

	timeout := j.cfg.Timeout
	if timeout <= 0 {
		timeout = source.DefaultTimeout
	}
	fetcher := httputil.NewFetcher(j.cfg.HTTPConfig)
	client, err := j.newClient(kind, source.Config{Fetcher: fetcher, Timeout: timeout, Mailto: j.cfg.Mailto, Logger: logger})
	if err != nil {
		return nil, err
	}

	doc, err := bibtex.Parse(in)
	if err != nil {
		return nil, err
	}
	for _, key := range doc.Duplicates {
		logger.Warn("duplicate citation key, keeping first entry", "key", key)
	}

	recorder := metrics.New()
	eng := engine.New([]source.Client{client}, engine.WithLogger(logger), engine.WithObserver(recorder))

	start := time.Now()
	results, err := eng.Synchronize(ctx, doc.Entries, kind, engine.Options{
		Concurrency:            j.cfg.Concurrency,
		PreferLongJournalNames: j.cfg.LongJournalNames,
		Retries:                j.cfg.Retries,
	})
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	entries := results.Entries()
	formatter := &doiurl.Formatter{Fetcher: fetcher, Timeout: timeout, Logger: logger}
	formatter.Apply(ctx, entries, style)
	title.Apply(entries)
	abbrev.Apply(entries, j.cfg.LongJournalNames)
	doc.Update(entries)

	if err := bibtex.Write(out, doc, bibtex.FormatFromConfig(j.out)); err != nil {
		return nil, fmt.Errorf("writing BibTeX: %w", err)
	}

	if j.details {
		if err := writeDetails(errw, results); err != nil {
			return nil, err
		}
	}
	fmt.Fprintln(errw, results.Summary().String())

	if j.cfg.MetricsFile != "" {
		if err := recorder.WriteTextfile(j.cfg.MetricsFile); err != nil {
			logger.Warn("metrics not written", "err", err)
		}
	}
	if j.cfg.HistoryDB != "" {
		if err := recordHistory(j.cfg.HistoryDB, history.Run{
			Source: string(kind), Input: j.input, StartedAt: start, Duration: elapsed,
		}, results); err != nil {
			logger.Warn("history not recorded", "err", err)
		}
	}
	return results, nil
}

func recordHistory(path string, run history.Run, results types.SyncResults) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	// The run context may already be cancelled; the ledger row is still wanted.
	id, err := store.Record(context.Background(), run, results)
	if err != nil {
		return err
	}
	logger.Debug("run recorded", "id", id)
	return nil
}

// writeDetails prints one row per entry: key, outcome and changed fields.
func writeDetails(w io.Writer, results types.SyncResults) error {
	rows := make([][]string, 0, len(results))
	for _, key := range results.Keys() {
		res := results[key]
		rows = append(rows, []string{key, res.Outcome.String(), strings.Join(res.Changed, ", ")})
	}

	table := tablewriter.NewWriter(w)
	table.Header("Key", "Outcome", "Changed")
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
