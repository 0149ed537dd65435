// Command prdc is the requirements compiler CLI: it canonicalizes PRD
// documents, checks snapshot transitions for structural drift, repairs
// malformed feature blocks, and drives the model-backed workflows.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hanno79/prdc/internal/assemble"
	"github.com/hanno79/prdc/internal/client"
	"github.com/hanno79/prdc/internal/config"
	"github.com/hanno79/prdc/internal/document"
	"github.com/hanno79/prdc/internal/drift"
	"github.com/hanno79/prdc/internal/integrity"
	"github.com/hanno79/prdc/internal/logger"
	"github.com/hanno79/prdc/internal/orchestrate"
	"github.com/hanno79/prdc/internal/parser"
	"github.com/hanno79/prdc/internal/repair"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

// codeError returns an exitErr for the given code.
func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

func main() {
	var (
		configPath string
		verbose    bool
	)

	root := &cobra.Command{
		Use:     "prdc",
		Short:   "Compile and defend structured requirements documents",
		Long:    "prdc keeps a PRD internally consistent across AI-driven rewrites: canonical round-trip formatting, integrity validation, drift detection, and repair.",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.SetVerbose(verbose)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "prdc.yaml", "Configuration file")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Print processing steps to stderr")

	root.AddCommand(
		compileCmd(&configPath),
		checkCmd(&configPath),
		repairCmd(),
		regenCmd(&configPath),
		generateCmd(&configPath),
		refineCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		// cobra already printed the error
		os.Exit(1)
	}
}

func compileCmd(configPath *string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "compile <file>",
		Short: "Parse a document and emit its canonical form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return codeError(3, "loading config: %s", err)
			}
			text, err := os.ReadFile(args[0])
			if err != nil {
				return codeError(3, "reading document: %s", err)
			}
			doc := parser.Parse(string(text))
			logger.Info("parsed %d feature(s)", len(doc.Features))
			return writeOutput(out, assemble.AssembleWith(doc, cfg.Thresholds.StructuredFieldMin))
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write output to file instead of stdout")
	return cmd
}

func checkCmd(configPath *string) *cobra.Command {
	var failOnDrift bool
	cmd := &cobra.Command{
		Use:   "check <previous> <current>",
		Short: "Report integrity violations and drift between two snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return codeError(3, "loading config: %s", err)
			}
			prev, cur, err := loadPair(args[0], args[1])
			if err != nil {
				return codeError(3, "%s", err)
			}

			for _, f := range cur.Features {
				before, ok := prev.FeatureByID(f.ID)
				if !ok {
					continue
				}
				res := integrity.ValidateFeature(before, f, cfg.Thresholds)
				for _, reason := range res.Reasons() {
					fmt.Fprintf(os.Stderr, "WARN: %s: %s\n", f.ID, reason)
				}
			}

			report := drift.Report(prev, cur)
			fmt.Print(report)

			if failOnDrift && !drift.Compare(prev, cur).Empty() {
				return codeError(2, "structural drift detected between %s and %s", args[0], args[1])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failOnDrift, "fail-on-drift", false, "Exit 2 when structural drift is detected")
	return cmd
}

func repairCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "repair <file>",
		Short: "Deterministically repair every feature block (no model calls)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return codeError(3, "reading document: %s", err)
			}
			doc := parser.Parse(string(text))
			for i, f := range doc.Features {
				outcome := repair.Repair(cmd.Context(), nil, f.RawContent)
				if len(outcome.Repaired) > 0 {
					logger.Info("%s: repaired %s", f.ID, strings.Join(outcome.Repaired, ", "))
				}
				if len(outcome.StillFailing) > 0 {
					fmt.Fprintf(os.Stderr, "WARN: %s: unresolved %s\n", f.ID, strings.Join(outcome.StillFailing, ", "))
				}
				fixed := document.Feature{ID: f.ID, Name: f.Name, RawContent: outcome.Content}
				parser.ExtractFields(&fixed, outcome.Content)
				doc.Features[i] = fixed
			}
			return writeOutput(out, assemble.Assemble(doc))
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write output to file instead of stdout")
	return cmd
}

func regenCmd(configPath *string) *cobra.Command {
	var (
		section      string
		instructions string
		out          string
	)
	cmd := &cobra.Command{
		Use:   "regen <file>",
		Short: "Regenerate one section through the configured model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return codeError(3, "loading config: %s", err)
			}
			key := document.SectionKey(section)
			if !document.IsValidSectionKey(key) {
				return codeError(3, "unknown section %q", section)
			}
			text, err := os.ReadFile(args[0])
			if err != nil {
				return codeError(3, "reading document: %s", err)
			}
			doc := parser.Parse(string(text))

			c := client.New(cfg, client.FromConfig(cfg), nil)
			updated, res, err := orchestrate.RegenerateSection(context.Background(), c, cfg, doc, key, instructions)
			if err != nil {
				return codeError(5, "%s", err)
			}
			logger.Info("regenerated %s in %d attempt(s), repair applied: %v", key, res.AttemptsUsed, res.RepairApplied)
			return writeOutput(out, assemble.AssembleWith(updated, cfg.Thresholds.StructuredFieldMin))
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "Canonical section key (e.g. systemVision)")
	cmd.Flags().StringVar(&instructions, "instructions", "", "What to change in the section")
	cmd.Flags().StringVar(&out, "out", "", "Write output to file instead of stdout")
	_ = cmd.MarkFlagRequired("section")
	_ = cmd.MarkFlagRequired("instructions")
	return cmd
}

func generateCmd(configPath *string) *cobra.Command {
	var (
		brief string
		out   string
		diag  string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Draft a new document from a brief",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(*configPath, orchestrate.Input{Mode: orchestrate.ModeGenerate, Feedback: brief}, out, diag)
		},
	}
	cmd.Flags().StringVar(&brief, "brief", "", "Short description of the product")
	cmd.Flags().StringVar(&out, "out", "", "Write the document to file instead of stdout")
	cmd.Flags().StringVar(&diag, "diagnostics", "", "Write run diagnostics as JSON to this file")
	_ = cmd.MarkFlagRequired("brief")
	return cmd
}

func refineCmd(configPath *string) *cobra.Command {
	var (
		feedback string
		out      string
		diag     string
	)
	cmd := &cobra.Command{
		Use:   "refine <file>",
		Short: "Revise an existing document against feedback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return codeError(3, "reading document: %s", err)
			}
			in := orchestrate.Input{
				Mode:         orchestrate.ModeRefine,
				ExistingText: string(text),
				Feedback:     feedback,
			}
			return runWorkflow(*configPath, in, out, diag)
		},
	}
	cmd.Flags().StringVar(&feedback, "feedback", "", "Requested changes")
	cmd.Flags().StringVar(&out, "out", "", "Write the document to file instead of stdout")
	cmd.Flags().StringVar(&diag, "diagnostics", "", "Write run diagnostics as JSON to this file")
	_ = cmd.MarkFlagRequired("feedback")
	return cmd
}

// runWorkflow executes an orchestration run and writes document + diagnostics.
func runWorkflow(configPath string, in orchestrate.Input, out, diag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return codeError(3, "loading config: %s", err)
	}

	c := client.New(cfg, client.FromConfig(cfg), nil)
	outcome, err := orchestrate.Run(context.Background(), c, cfg, in)
	if err != nil {
		return codeError(5, "%s", err)
	}

	logger.Info("run %s: %d feature(s), models %s, %d token(s)",
		outcome.Diagnostics.RunID, outcome.Diagnostics.TotalFeatureCount,
		strings.Join(outcome.ModelsUsed, ", "), outcome.Usage.TotalTokens)

	if diag != "" {
		data, err := json.MarshalIndent(struct {
			Diagnostics orchestrate.Diagnostics      `json:"diagnostics"`
			Steps       []orchestrate.StepDiagnostic `json:"steps"`
			ModelsUsed  []string                     `json:"modelsUsed"`
		}{outcome.Diagnostics, outcome.Steps, outcome.ModelsUsed}, "", "  ")
		if err != nil {
			return codeError(3, "rendering diagnostics: %s", err)
		}
		if err := os.WriteFile(diag, data, 0o644); err != nil {
			return codeError(3, "writing diagnostics: %s", err)
		}
	}

	return writeOutput(out, outcome.FinalContent)
}

func loadPair(prevPath, curPath string) (*document.Document, *document.Document, error) {
	prevText, err := os.ReadFile(prevPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading previous snapshot: %w", err)
	}
	curText, err := os.ReadFile(curPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading current snapshot: %w", err)
	}
	return parser.Parse(string(prevText)), parser.Parse(string(curText)), nil
}

func writeOutput(path, content string) error {
	if path == "" {
		_, err := os.Stdout.WriteString(content)
		if err == nil && len(content) > 0 && content[len(content)-1] != '\n' {
			fmt.Fprintln(os.Stdout)
		}
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return codeError(3, "writing output file: %s", err)
	}
	return nil
}
