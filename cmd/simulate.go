package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/sopdesk/internal/adapter/llm"
	"github.com/xiaot623/gogo/sopdesk/internal/adapter/sopclient"
	"github.com/xiaot623/gogo/sopdesk/internal/domain"
	"github.com/xiaot623/gogo/sopdesk/internal/simulation"
)

var (
	simulateScenarioFile string
	simulateOnly         []string
	simulateServer       string
	simulateConcurrency  int
	simulateTimeout      time.Duration
)

func GetSimulateCommand() *cobra.Command {
	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Play simulated customers against a running consultant",
		Long: `Runs scenarios in which a scripted or LLM-played customer talks to the
consultant until a blueprint is drafted or the turn budget is spent. The
persona model uses the same provider settings as the server.

Example:
  sopdesk simulate                                  # built-in scenarios
  sopdesk simulate -f scenarios.yaml --only finance-invoices`,
		Args: cobra.NoArgs,
		RunE: runSimulate,
	}
	simulateCmd.Flags().StringVarP(&simulateScenarioFile, "file", "f", "", "YAML scenario file (defaults to the built-in scenarios)")
	simulateCmd.Flags().StringSliceVar(&simulateOnly, "only", nil, "Run only the named scenarios")
	simulateCmd.Flags().StringVarP(&simulateServer, "server", "s", "", "Server base URL (defaults to SERVER_URL)")
	simulateCmd.Flags().IntVar(&simulateConcurrency, "concurrency", 0, "Scenarios run at once (defaults to SIMULATION_CONCURRENCY)")
	simulateCmd.Flags().DurationVar(&simulateTimeout, "timeout", 60*time.Second, "Timeout for a single consultant turn")
	return simulateCmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	scenarios := simulation.DefaultScenarios()
	if simulateScenarioFile != "" {
		var err error
		if scenarios, err = simulation.LoadScenarios(simulateScenarioFile); err != nil {
			return err
		}
	}
	scenarios, err := simulation.Select(scenarios, simulateOnly)
	if err != nil {
		return err
	}

	serverURL := simulateServer
	if serverURL == "" {
		serverURL = cfg.ServerURL
	}
	concurrency := simulateConcurrency
	if concurrency <= 0 {
		concurrency = cfg.SimulationConcurrency
	}

	persona, err := llm.NewLLMClient(ctx, llmOptions(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize persona model: %w", err)
	}

	out := cmd.OutOrStdout()
	var mu sync.Mutex
	runner := simulation.NewRunner(sopclient.NewClient(serverURL, simulateTimeout), persona, simulation.Options{
		PersonaModel: cfg.LLMModel,
		Concurrency:  concurrency,
		OnTurn: func(scenario string, turn int, message string, resp *domain.TurnResponse) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "%s %s\n", color.CyanString("[%s #%d] customer>", scenario, turn), message)
			renderReply(out, resp)
		},
	}, logger)

	outcomes, err := runner.Run(ctx, scenarios)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "\n"+color.CyanString("--- Simulation Summary ---"))
	failed := 0
	for _, o := range outcomes {
		if o.Completed() {
			fmt.Fprintf(out, "%s %s: blueprint %q after %d turns\n", color.GreenString("✓"), o.Scenario, o.Blueprint.Title, o.Turns)
			continue
		}
		failed++
		detail := string(o.Stop)
		if o.Err != nil {
			detail = o.Err.Error()
		}
		fmt.Fprintf(out, "%s %s: no blueprint after %d turns (%s)\n", color.RedString("✗"), o.Scenario, o.Turns, detail)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios did not reach a blueprint", failed, len(outcomes))
	}
	return nil
}
