// Command rulecheck runs the automated validation rules against an analysis
// document and prints the persisted results. It is the operator tool for
// verifying rule configuration before analyses reach the live workflow.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"clinicore/internal/config"
	"clinicore/internal/core"
	"clinicore/internal/infra/analysisfeed"
	"clinicore/internal/infra/roster"
	"clinicore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	analysisPath := flag.String("analysis", "", "path to a JSON file holding the analysis to evaluate")
	rulesPath := flag.String("rules", "", "optional path to a JSON array of rule definitions to seed")
	asJSON := flag.Bool("json", false, "print results as JSON instead of a table")
	flag.Parse()

	if *analysisPath == "" {
		fmt.Fprintln(os.Stderr, "usage: rulecheck -analysis <file> [-rules <file>] [-json]")
		exitFunc(2)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		exitFunc(1)
		return
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		exitFunc(1)
		return
	}
	logger := zap.L()
	defer func() { _ = logger.Sync() }()

	if err := run(context.Background(), cfg, logger, *analysisPath, *rulesPath, *asJSON); err != nil {
		logger.Error("rulecheck failed", zap.Error(err))
		exitFunc(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, analysisPath, rulesPath string, asJSON bool) error {
	store, err := core.OpenStore(core.StorageConfig{
		Driver:      core.StorageDriver(cfg.Store.Driver),
		SQLitePath:  cfg.Store.SQLitePath,
		PostgresDSN: cfg.Store.DatabaseURL,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	analysis, err := loadAnalysis(analysisPath)
	if err != nil {
		return err
	}
	feed := analysisfeed.NewProvider()
	feed.Put(analysis)

	if rulesPath != "" {
		rules, err := loadRules(rulesPath)
		if err != nil {
			return err
		}
		for _, rule := range rules {
			if _, err := store.PutRule(ctx, rule); err != nil {
				return fmt.Errorf("seed rule %s: %w", rule.Name, err)
			}
		}
	}

	engine := core.NewDefaultRuleEngine()
	if cfg.Rules.TimeoutSecs > 0 {
		engine = engine.WithRuleTimeout(time.Duration(cfg.Rules.TimeoutSecs) * time.Second)
	}

	service := core.NewService(store, feed, roster.NewDirectory(), nil, core.Policy{
		MinExperienceYearsCritical:      cfg.Policy.MinExperienceYearsCritical,
		RequireDoubleValidationCritical: cfg.Policy.RequireDoubleValidationCritical,
	},
		core.WithRuleEngine(engine),
		core.WithLogger(core.NewZapLogger(logger)),
	)

	results, err := service.RunAutomatedRules(ctx, analysis.ID)
	if err != nil {
		return fmt.Errorf("run automated rules: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	printTable(results)
	return nil
}

func loadAnalysis(path string) (domain.Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("read analysis file: %w", err)
	}
	var analysis domain.Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return domain.Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	if analysis.ID == "" {
		return domain.Analysis{}, fmt.Errorf("analysis file has no id")
	}
	return analysis, nil
}

func loadRules(path string) ([]domain.ValidationRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var rules []domain.ValidationRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return rules, nil
}

func printTable(results []domain.ValidationResult) {
	if len(results) == 0 {
		fmt.Println("no rules evaluated")
		return
	}
	fmt.Printf("%-38s %-6s %-8s %s\n", "RULE", "PASS", "TIME(MS)", "MESSAGE")
	for _, r := range results {
		verdict := "FAIL"
		if r.Passed {
			verdict = "ok"
		}
		fmt.Printf("%-38s %-6s %-8.2f %s\n", r.RuleID, verdict, r.ExecutionTimeMS, r.Message)
	}
}
