// ABOUTME: Command-line benchmark runner for scripted consultations
// ABOUTME: Runs scenarios against a knowledge base and outputs JSON results

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/harper/dermacheck/benchmarks/scenarios"
	"github.com/harper/dermacheck/internal/knowledge"
	"github.com/harper/dermacheck/internal/logging"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// Command-line flags
	scenarioID := flag.String("scenario", "", "Run a specific scenario by ID. If empty, runs all scenarios.")
	scenarioFile := flag.String("scenarios", "", "YAML file with scenarios (default: built-in scenarios)")
	knowledgeFile := flag.String("knowledge", "", "Knowledge file (default: built-in knowledge base)")
	outputPath := flag.String("output", "benchmark_results.json", "Output path for JSON results")
	parallel := flag.Int("parallel", 4, "Number of scenarios to run concurrently")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	flag.Parse()

	// Load .env file
	_ = godotenv.Load()

	logger := zap.NewNop()
	if *verbose {
		l, err := logging.New("debug")
		if err != nil {
			log.Fatalf("Failed to create logger: %v", err)
		}
		logger = l
		defer func() { _ = logger.Sync() }()
	}

	kb, err := knowledge.Load(*knowledgeFile)
	if err != nil {
		log.Fatalf("Failed to load knowledge base: %v", err)
	}

	list := scenarios.Builtin()
	if *scenarioFile != "" {
		if list, err = scenarios.LoadFile(*scenarioFile); err != nil {
			log.Fatalf("Failed to load scenarios: %v", err)
		}
	}
	if *scenarioID != "" {
		s, ok := scenarios.Find(list, *scenarioID)
		if !ok {
			ids := make([]string, 0, len(list))
			for _, s := range list {
				ids = append(ids, s.ID)
			}
			log.Fatalf("Unknown scenario ID: %s (valid options: %s)", *scenarioID, strings.Join(ids, ", "))
		}
		list = []scenarios.Scenario{s}
	}

	// Print header
	fmt.Println("========================================")
	fmt.Println("Dermacheck Consultation Benchmarks")
	fmt.Println("========================================")
	fmt.Printf("Running %d scenario(s), each twice...\n", len(list))

	runner := scenarios.NewRunner(kb, logger, *parallel)
	results, err := runner.RunAll(context.Background(), list)
	if err != nil {
		log.Fatalf("Benchmark failed: %v", err)
	}

	// Print per-scenario results
	fmt.Println("\n========================================")
	fmt.Println("BENCHMARK RESULTS")
	fmt.Println("========================================")

	for _, result := range results {
		fmt.Printf("\n%s: %s\n", result.ScenarioID, result.Name)
		if result.Error != "" {
			fmt.Printf("  Error: %s\n", result.Error)
		} else {
			outcome := "no diagnosis"
			if result.Disease != "" {
				outcome = fmt.Sprintf("%s (CF %.4f)", result.Disease, result.CF)
			}
			fmt.Printf("  Outcome: %s\n", outcome)
			fmt.Printf("  Questions: %d, firings: %d\n", len(result.Questions), result.Firings)
			fmt.Printf("  Deterministic: %t\n", result.Deterministic)
		}
		for _, d := range result.Details {
			fmt.Printf("  - %s\n", d)
		}
		fmt.Printf("  Status: %s\n", result.Status)
	}

	sum := scenarios.Summarize(results)
	fmt.Println("\n========================================")
	fmt.Printf("Total Scenarios: %d\n", sum.Total)
	fmt.Printf("Passed: %d\n", sum.Passed)
	fmt.Printf("Failed: %d\n", sum.Failed)
	fmt.Printf("Accuracy: %.2f\n", sum.Accuracy)
	fmt.Printf("Mean CF: %.4f\n", sum.MeanCF)
	fmt.Printf("Mean Questions: %.1f\n", sum.MeanQuestions)
	fmt.Printf("Deterministic: %t\n", sum.Deterministic)
	fmt.Println("========================================")

	// Export results
	if err := scenarios.ExportResults(results, *outputPath); err != nil {
		log.Fatalf("Failed to export results: %v", err)
	}
	fmt.Printf("✓ Results exported to: %s\n", *outputPath)

	// Exit with error code if any scenario failed
	if sum.Failed > 0 {
		os.Exit(1)
	}
}
