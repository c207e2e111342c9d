package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/falllog/pkg/output"
	"github.com/ccollicutt/falllog/pkg/parser"
)

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	opts := &SessionOptions{}

	cmd := &cobra.Command{
		Use:   "parse <transcript>...",
		Short: "Replay captured serial transcripts",
		Long: `Parse transcripts captured from the logger's serial output and report
them exactly as a live read would. Each file is one session. Glob patterns
are accepted.

Exit codes:
  0 - Samples collected from every transcript
  1 - At least one transcript had no valid data
  2 - Configuration or runtime error`,
		Example: `  falllog parse capture.txt
  falllog parse 'captures/*.txt' -o json
  falllog parse capture.txt --range 8 --save-csv --csv-extended`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args, opts)
		},
	}

	addSessionFlags(cmd, opts)

	return cmd
}

func runParse(cmd *cobra.Command, args []string, opts *SessionOptions) error {
	ctx := commandContext(cmd)

	files, err := parser.ExpandTranscripts(args)
	if err != nil {
		return fmt.Errorf("expanding transcripts: %w", err)
	}

	cfg, err := loadSessionConfig(ctx, opts)
	if err != nil {
		return err
	}

	p, err := newPipeline(cmd, cfg, opts)
	if err != nil {
		return err
	}

	reports := make([]*output.Report, 0, len(files))
	for _, file := range files {
		report, err := parseFile(cmd, p, file)
		if err != nil {
			return err
		}
		reports = append(reports, report)
	}

	return p.finish(reports)
}

func parseFile(cmd *cobra.Command, p *pipeline, path string) (*output.Report, error) {
	src, err := parser.NewFileSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	return p.process(commandContext(cmd), path, src)
}
