package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dm/esfixer/internal/model"
	"github.com/dm/esfixer/internal/validator"
)

var (
	historyLimit   int
	cycleBenchmark bool
	applyFile      string
)

func init() {
	rootCmd.AddCommand(diagnoseCmd)
	rootCmd.AddCommand(cycleCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(seedDemoCmd)
	rootCmd.AddCommand(versionCmd)

	cycleCmd.Flags().BoolVar(&cycleBenchmark, "benchmark", false, "benchmark the proposed fix")
	applyCmd.Flags().StringVarP(&applyFile, "file", "f", "-", "proposal JSON file, - for stdin")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "number of records (default from config)")
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Scan the cluster and list detected issues",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		issues, err := a.agent.Diagnose(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			if issues == nil {
				issues = []model.Issue{}
			}
			return writeJSON(cmd.OutOrStdout(), issues)
		}
		renderIssues(cmd.OutOrStdout(), issues)
		return nil
	},
}

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run one diagnose, propose and record cycle",
	Long: `Run one cycle: scan, select the most urgent issue, propose a fix and
record the proposal in the history log. Nothing is changed on the cluster.

Examples:
  esfixer cycle
  esfixer cycle --benchmark --json > proposal.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.agent.RunCycle(cmd.Context())

		var bench *model.BenchmarkResult
		if cycleBenchmark && res.Proposal != nil {
			b := a.agent.Benchmark(cmd.Context(), *res.Proposal)
			bench = &b
		}

		if jsonOutput {
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		} else {
			renderCycle(cmd.OutOrStdout(), res, bench)
		}
		if res.Status == model.CycleError {
			return errors.New(res.Message)
		}
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Validate, back up and apply a fix proposal",
	Long: `Apply a fix proposal produced by "cycle --json" or the HTTP API.
The proposal may be a bare FixProposal or a full cycle result.

Examples:
  esfixer cycle --json > cycle.json && esfixer apply -f cycle.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fix, err := readProposal(cmd.InOrStdin(), applyFile)
		if err != nil {
			return err
		}

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.agent.ApplyFix(cmd.Context(), fix)
		if err != nil {
			if errors.Is(err, validator.ErrInvalidSyntax) {
				return fmt.Errorf("proposal rejected: %w", err)
			}
			return err
		}

		if jsonOutput {
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", statusStyle(string(res.Status)).Render(string(res.Status)), res.Message)
		}
		if res.Status == model.ApplyError {
			return errors.New(res.Message)
		}
		return nil
	},
}

// readProposal reads a FixProposal, unwrapping a cycle result if that is what
// the input holds.
func readProposal(stdin io.Reader, path string) (model.FixProposal, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return model.FixProposal{}, fmt.Errorf("read proposal: %w", err)
	}

	var envelope struct {
		Proposal *model.FixProposal `json:"proposal"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return model.FixProposal{}, fmt.Errorf("decode proposal: %w", err)
	}
	fix := model.FixProposal{}
	if envelope.Proposal != nil {
		fix = *envelope.Proposal
	} else if err := json.Unmarshal(raw, &fix); err != nil {
		return model.FixProposal{}, fmt.Errorf("decode proposal: %w", err)
	}
	if err := fix.Validate(); err != nil {
		return model.FixProposal{}, fmt.Errorf("invalid proposal: %w", err)
	}
	return fix, nil
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the agent history log, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit := historyLimit
		if limit <= 0 {
			limit = cfg.Agent.HistoryLimit
		}

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		records := a.agent.History(cmd.Context(), limit)
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), records)
		}
		renderHistory(cmd.OutOrStdout(), records)
		return nil
	},
}

var seedDemoCmd = &cobra.Command{
	Use:   "seed-demo",
	Short: "Create demo indices that trigger each detection rule",
	Long: `Delete and recreate bad-mapping-logs (1500 fields) and
bad-ilm-logs-000001 (no lifecycle policy). Intended for local clusters only.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := seedDemo(cmd.Context(), a.es, time.Now(), logger); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), styleOK.Render("Demo indices created: "+demoMappingIndex+", "+demoILMIndex))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "esfixer "+version)
	},
}
