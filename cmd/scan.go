package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/btraven00/linkscan/internal/extractor"
	"github.com/btraven00/linkscan/internal/report"
)

var (
	scanText       string
	scanExportPath string
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan [file-or-folder...]",
	Short: "Extract links from documents and verify them",
	Long: `Scan reads every given file, and every file below every given folder,
extracts the http(s) links it contains and probes each one.

Files are read in parallel. Text, HTML, PDF, Office documents and
spreadsheets are understood; anything else is scanned as raw bytes.
Links typed with --text are checked alongside those found in files.

Press Ctrl-C to stop: the batch in flight finishes and is reported.

Examples:
  linkscan scan paper.pdf
  linkscan scan ./docs --export results.xlsx
  linkscan scan notes.md --text "also https://example.com/page"
  linkscan scan ./site --concurrency 20 --output json`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanText, "text", "", "additional text to extract links from")
	scanCmd.Flags().StringVarP(&scanExportPath, "export", "e", "", "write results to a .csv, .xlsx or .json file")
}

func runScan(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && scanText == "" {
		return fmt.Errorf("nothing to scan: give at least one file or folder, or --text")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newPipeline(cfg, scanExportPath).scan(ctx, args, scanText)
}

// scan extracts candidates from roots and text, then verifies them.
func (p *pipeline) scan(ctx context.Context, roots []string, text string) error {
	if err := p.validateFormat(); err != nil {
		return err
	}

	stats := report.NewStats()
	ex := p.newExtractor()

	candidates, err := p.extractFiles(ctx, ex, stats, roots)
	if err != nil {
		return err
	}

	if text != "" {
		manual := ex.ExtractFromText(text)
		stats.AddFound(len(manual))
		candidates = append(candidates, manual...)
	}

	if len(candidates) == 0 {
		p.notice("⚠️  No links found\n")
		return p.writeResults(nil, stats.Snapshot())
	}

	p.notice("🔗 Found %d links in %d sources\n", len(candidates), countSources(candidates))

	return p.verify(ctx, candidates, stats)
}

func countSources(candidates []extractor.CandidateURL) int {
	sources := make(map[string]struct{})
	for _, c := range candidates {
		sources[c.SourceID] = struct{}{}
	}

	return len(sources)
}
