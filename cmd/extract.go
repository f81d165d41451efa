package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/btraven00/linkscan/internal/extractor"
	"github.com/btraven00/linkscan/internal/report"
)

var extractText string

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [file-or-folder...]",
	Short: "List the links found in documents without probing them",
	Long: `Extract runs the same document readers as scan but stops before
verification, printing each normalized link with its original form and
the file it came from.

Examples:
  linkscan extract paper.pdf
  linkscan extract ./docs --output csv > links.csv
  linkscan extract --text "see https://Example.com/Page?x=1"`,
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&extractText, "text", "", "additional text to extract links from")
}

func runExtract(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && extractText == "" {
		return fmt.Errorf("nothing to extract: give at least one file or folder, or --text")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newPipeline(cfg, "").extract(ctx, args, extractText)
}

func (p *pipeline) extract(ctx context.Context, roots []string, text string) error {
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
		candidates = append(candidates, ex.ExtractFromText(text)...)
	}

	return p.writeCandidates(candidates)
}

func (p *pipeline) writeCandidates(candidates []extractor.CandidateURL) error {
	switch p.format {
	case "json":
		if candidates == nil {
			candidates = []extractor.CandidateURL{}
		}

		encoder := json.NewEncoder(p.out)
		encoder.SetIndent("", "  ")

		return encoder.Encode(candidates)
	case "csv":
		writer := csv.NewWriter(p.out)
		if err := writer.Write([]string{"URL", "Original URL", "Source"}); err != nil {
			return err
		}

		for _, c := range candidates {
			if err := writer.Write([]string{c.Normalized, c.Original, c.SourceID}); err != nil {
				return err
			}
		}

		writer.Flush()

		return writer.Error()
	default:
		for _, c := range candidates {
			fmt.Fprintf(p.out, "🔗 %s\n", c.Normalized)

			if c.Original != c.Normalized {
				fmt.Fprintf(p.out, "   original: %s\n", c.Original)
			}

			fmt.Fprintf(p.out, "   source:   %s\n", c.SourceID)
		}

		p.notice("\n📊 %d links found\n", len(candidates))

		return nil
	}
}
