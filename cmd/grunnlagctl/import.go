package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"grunnlag/internal/app"
	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/requestcontext"
)

type importFlags struct {
	actor     string
	batchSize int
	dryRun    bool
}

func newImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import <case-id> <file.jsonl>",
		Short: "Append facts from a JSON lines file to a case",
		Long: "Reads one fact per line and appends them to the case in file order. " +
			"Facts without an id get a fresh one. Use - to read from stdin.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], args[1], flags)
		},
	}

	cmd.Flags().StringVar(&flags.actor, "actor", "grunnlagctl", "Actor recorded on notifications")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "Facts per append batch (0 = one batch)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Validate without appending")

	return cmd
}

func runImport(cmd *cobra.Command, rawCaseID, path string, flags importFlags) error {
	caseID, err := domain.ParseCaseID(rawCaseID)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		in = f
	}

	facts, err := readFacts(in)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if flags.dryRun {
		fmt.Fprintf(out, "Dry run: %d facts valid for case %s\n", len(facts), caseID)
		return nil
	}

	ctx := requestcontext.WithActor(cmd.Context(), flags.actor)
	return withApp(ctx, func(a *app.App) error {
		agg, err := a.Factory.LoadOrCreate(ctx, caseID)
		if err != nil {
			return err
		}
		for _, batch := range batches(facts, flags.batchSize) {
			if err := agg.Append(ctx, batch); err != nil {
				return fmt.Errorf("appending to case %s: %w", caseID, err)
			}
		}
		fmt.Fprintf(out, "Appended %d facts to case %s (version %d)\n", len(facts), caseID, agg.Version())
		return nil
	})
}

// readFacts decodes and validates one fact per non-blank line.
func readFacts(r io.Reader) ([]models.Fact, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var facts []models.Fact
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var f models.Fact
		if err := json.Unmarshal([]byte(text), &f); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if f.ID.IsNil() {
			f.ID = domain.NewFactID()
		}
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		facts = append(facts, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading facts: %w", err)
	}
	return facts, nil
}

func batches(facts []models.Fact, size int) [][]models.Fact {
	if size <= 0 || size >= len(facts) {
		return [][]models.Fact{facts}
	}
	var out [][]models.Fact
	for start := 0; start < len(facts); start += size {
		end := min(start+size, len(facts))
		out = append(out, facts[start:end])
	}
	return out
}

func newAbortCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "abort <case-id>",
		Short: "Announce that a case was aborted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caseID, err := domain.ParseCaseID(args[0])
			if err != nil {
				return err
			}
			ctx := requestcontext.WithActor(cmd.Context(), actor)
			return withApp(ctx, func(a *app.App) error {
				agg, err := a.Factory.LoadOrCreate(ctx, caseID)
				if err != nil {
					return err
				}
				if err := agg.Abort(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Case %s aborted\n", caseID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "grunnlagctl", "Actor recorded on the notification")
	return cmd
}
