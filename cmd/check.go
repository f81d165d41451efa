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
	checkText       string
	checkExportPath string
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [url...]",
	Short: "Verify links given on the command line or in text",
	Long: `Check probes each URL given as an argument, every link found in the
--text value, and every link in text piped on standard input.

Arguments are normalized before probing: the host is lower-cased and the
query and fragment are dropped. An argument that is not an http(s) URL
is reported as invalid without being probed.

Examples:
  linkscan check https://example.com/page
  linkscan check example.com/a example.com/b --output json
  linkscan check --text "see https://example.com and http://example.org"
  cat links.txt | linkscan check`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkText, "text", "", "text to extract links from")
	checkCmd.Flags().StringVarP(&checkExportPath, "export", "e", "", "write results to a .csv, .xlsx or .json file")
}

func runCheck(cmd *cobra.Command, args []string) error {
	text := checkText

	if len(args) == 0 && text == "" {
		piped, err := readStdinText(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read standard input: %w", err)
		}

		text = piped
	}

	if len(args) == 0 && text == "" {
		return fmt.Errorf("nothing to check: give URLs, --text, or pipe text on standard input")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newPipeline(cfg, checkExportPath).check(ctx, args, text)
}

// check verifies the URLs in args followed by the links found in text.
func (p *pipeline) check(ctx context.Context, args []string, text string) error {
	if err := p.validateFormat(); err != nil {
		return err
	}

	ex := p.newExtractor()

	candidates := argCandidates(ex, args)
	if text != "" {
		candidates = append(candidates, ex.ExtractFromText(text)...)
	}

	if len(candidates) == 0 {
		p.notice("⚠️  No links found\n")
		return p.writeResults(nil, report.NewStats().Snapshot())
	}

	stats := report.NewStats()
	stats.AddFound(len(candidates))

	return p.verify(ctx, candidates, stats)
}

// argCandidates turns URLs typed as arguments into candidates. Repeats are
// dropped; an argument that does not normalize keeps an empty Normalized
// form and is reported as invalid by the engine.
func argCandidates(ex *extractor.Extractor, args []string) []extractor.CandidateURL {
	seen := make(map[string]struct{}, len(args))
	candidates := make([]extractor.CandidateURL, 0, len(args))

	for _, arg := range args {
		normalized, _ := ex.Normalizer().Normalize(arg)

		key := normalized
		if key == "" {
			key = "\x00" + arg
		}

		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}

		candidates = append(candidates, extractor.CandidateURL{
			Original:   arg,
			Normalized: normalized,
			SourceID:   extractor.ManualSourceID,
		})
	}

	return candidates
}
