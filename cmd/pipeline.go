package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"

	"github.com/btraven00/linkscan/internal/config"
	"github.com/btraven00/linkscan/internal/extractor"
	"github.com/btraven00/linkscan/internal/log"
	"github.com/btraven00/linkscan/internal/report"
	"github.com/btraven00/linkscan/internal/verifier"
)

// pipeline carries everything one command invocation needs, so the commands
// can be exercised without the process-wide flags.
type pipeline struct {
	cfg        config.Config
	fs         afero.Fs
	out        io.Writer
	errOut     io.Writer
	format     string
	exportPath string
	quiet      bool
	progress   bool
	engineOpts []verifier.Option
}

func newPipeline(cfg config.Config, exportPath string) *pipeline {
	return &pipeline{
		cfg:        cfg,
		fs:         afero.NewOsFs(),
		out:        os.Stdout,
		errOut:     os.Stderr,
		format:     strings.ToLower(output),
		exportPath: exportPath,
		quiet:      quiet,
		progress:   !quiet && isTerminal(os.Stderr),
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *pipeline) validateFormat() error {
	switch p.format {
	case "human", "json", "csv":
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", p.format)
	}
}

func (p *pipeline) newExtractor() *extractor.Extractor {
	return extractor.NewExtractor(extractor.ExtractionOptions{
		Fs:        p.fs,
		CacheSize: p.cfg.CacheSize,
	})
}

func (p *pipeline) notice(format string, args ...any) {
	if p.quiet {
		return
	}

	fmt.Fprintf(p.errOut, format, args...)
}

// extractFiles reads every file under roots with the worker pool. Files that
// cannot be read are reported and skipped.
func (p *pipeline) extractFiles(ctx context.Context, ex *extractor.Extractor, stats *report.Stats, roots []string) ([]extractor.CandidateURL, error) {
	if len(roots) == 0 {
		return nil, nil
	}

	paths, err := extractor.CollectFiles(p.fs, roots...)
	if err != nil {
		return nil, err
	}

	p.notice("🚀 Scanning %d files with %d workers...\n", len(paths), p.cfg.Workers)

	tracker := extractor.NewProgressTracker()

	results := extractor.ExtractAll(ctx, ex, p.cfg.Workers, paths, func(update extractor.ProgressUpdate) {
		tracker.Update(update)

		if p.progress && (update.Status == extractor.TaskStatusCompleted || update.Status == extractor.TaskStatusFailed) {
			tracker.PrintProgress(p.errOut)
		}
	})

	if p.progress {
		fmt.Fprintln(p.errOut)
	}

	var candidates []extractor.CandidateURL

	for _, result := range results {
		switch {
		case result.Task.ID == "":
			// never reached before cancellation
		case result.Error != nil:
			p.notice("❌ Failed to read %s: %v\n", result.Task.Path, result.Error)
		default:
			stats.AddFile(len(result.Candidates))
			candidates = append(candidates, result.Candidates...)
		}
	}

	return candidates, ctx.Err()
}

// verify runs the engine over candidates, streaming human output batch by
// batch, then writes the final report and the optional export.
func (p *pipeline) verify(ctx context.Context, candidates []extractor.CandidateURL, stats *report.Stats) error {
	engine, err := verifier.NewEngine(p.cfg, p.engineOpts...)
	if err != nil {
		return err
	}

	batches, err := engine.Verify(ctx, candidates)
	if err != nil {
		return err
	}

	p.notice("🔍 Verifying %d links (%d at a time)...\n", len(candidates), p.cfg.EffectiveConcurrency())

	results := make([]verifier.Result, 0, len(candidates))

	for batch := range batches {
		stats.ApplyBatch(batch)
		results = append(results, batch.Results...)

		if p.format == "human" {
			for _, r := range batch.Results {
				report.WriteResult(p.out, r)
			}
		}

		if p.progress && p.format != "human" {
			s := stats.Snapshot()
			fmt.Fprintf(p.errOut, "\r🔍 Verified %d/%d (%d reachable)", s.URLsVerified, len(candidates), s.SuccessCount)
		}
	}

	if p.progress && p.format != "human" {
		fmt.Fprintln(p.errOut)
	}

	interrupted := ctx.Err()
	if interrupted != nil {
		p.notice("⚠️  Interrupted: %d of %d links verified\n", len(results), len(candidates))
	}

	summary := stats.Snapshot()

	if err := p.writeResults(results, summary); err != nil {
		return err
	}

	if p.exportPath != "" {
		if err := report.Export(p.fs, p.exportPath, results, summary); err != nil {
			return err
		}

		p.notice("💾 Results exported to %s\n", p.exportPath)
	}

	if interrupted != nil {
		return fmt.Errorf("verification interrupted: %w", interrupted)
	}

	return nil
}

func (p *pipeline) writeResults(results []verifier.Result, summary report.Summary) error {
	switch p.format {
	case "json":
		return report.WriteJSON(p.out, results, summary)
	case "csv":
		return report.WriteCSV(p.out, results)
	default:
		report.WriteSummary(p.out, summary)
		return nil
	}
}

// readStdinText returns the text piped to the command, or "" for a terminal.
func readStdinText(in *os.File) (string, error) {
	if isTerminal(in) {
		return "", nil
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}

	log.Debug("read links from stdin", "bytes", len(data))

	return string(data), nil
}
