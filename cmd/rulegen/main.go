package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"rulegen/internal/config"
	"rulegen/internal/emit"
	"rulegen/internal/llm"
	"rulegen/internal/logging"
	"rulegen/internal/pipeline"
	"rulegen/internal/rules"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "rulegen",
		Short: "Generate static-analysis migration rules from documentation",
	}
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the config file")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(lintCmd)
}

var (
	genSourceTech  string
	genTargetTech  string
	genOutput      string
	genDepth       int
	genProvider    string
	genChunkTokens int
	genWorkers     int
	genAlign       bool
)

func init() {
	generateCmd.Flags().StringVar(&genSourceTech, "source-tech", "", "Technology being migrated from (required)")
	generateCmd.Flags().StringVar(&genTargetTech, "target-tech", "", "Technology being migrated to (required)")
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Output directory for rule files")
	generateCmd.Flags().IntVar(&genDepth, "depth", 0, "How many link hops to follow from a URL source")
	generateCmd.Flags().StringVar(&genProvider, "provider", "", "Oracle provider (openai or gemini)")
	generateCmd.Flags().IntVar(&genChunkTokens, "chunk-tokens", 0, "Maximum tokens per chunk")
	generateCmd.Flags().IntVar(&genWorkers, "workers", 0, "Concurrent extraction workers")
	generateCmd.Flags().BoolVar(&genAlign, "align-descriptions", false, "Ask the oracle to verify rule descriptions match their conditions")
	_ = generateCmd.MarkFlagRequired("source-tech")
	_ = generateCmd.MarkFlagRequired("target-tech")
}

var generateCmd = &cobra.Command{
	Use:   "generate [source]",
	Short: "Run the full pipeline: ingest docs, extract patterns, emit rules",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		source := args[0]

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if genProvider != "" {
			cfg.AI.Provider = genProvider
		}
		if genChunkTokens > 0 {
			cfg.Chunking.MaxTokens = genChunkTokens
		}
		if genWorkers > 0 {
			cfg.Extraction.Workers = genWorkers
		}
		outputDir := cfg.Output.Dir
		if genOutput != "" {
			outputDir = genOutput
		}

		logger := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)

		ctx := context.Background()
		oracle, err := llm.NewOracle(ctx, cfg)
		if err != nil {
			log.Fatalf("Setup failed: %v\nCheck your config.yaml and API keys.", err)
		}

		fmt.Printf("📖 Reading migration guide: %s\n", source)
		fmt.Printf("🚀 Generating %s → %s rules with %s...\n", genSourceTech, genTargetTech, oracle.Name())

		start := time.Now()
		result, err := pipeline.Run(ctx, pipeline.Options{
			Source:            source,
			SourceTech:        genSourceTech,
			TargetTech:        genTargetTech,
			Depth:             genDepth,
			OutputDir:         outputDir,
			AlignDescriptions: genAlign,
			Config:            cfg,
			Oracle:            oracle,
			Log:               logger,
		})
		if err != nil {
			log.Fatalf("Generation failed: %v", err)
		}

		fmt.Printf("📊 %d documents, %d chunks, %d patterns, %d rules in %v.\n",
			result.Documents, result.Chunks, result.Patterns, result.Rules, time.Since(start).Round(time.Millisecond))
		for _, f := range result.Files {
			fmt.Printf("  -> %s\n", f)
		}
		if skipped := result.Report.Summary.ChunksSkipped; skipped > 0 {
			fmt.Printf("⚠️  %d chunks skipped; see the run report for details.\n", skipped)
		}
		fmt.Printf("🎉 Done! Rules written to %s\n", outputDir)
	},
}

var (
	lintUseOracle bool
	lintWrite     bool
)

func init() {
	lintCmd.Flags().BoolVar(&lintUseOracle, "oracle", false, "Use the configured oracle for description alignment checks")
	lintCmd.Flags().BoolVar(&lintWrite, "write", false, "Write repaired rules back to the directory")
}

var lintCmd = &cobra.Command{
	Use:   "lint [dir]",
	Short: "Validate and repair an existing rules directory",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dir := args[0]

		loaded, err := emit.LoadRules(dir)
		if err != nil {
			log.Fatalf("Failed to load rules: %v", err)
		}
		if len(loaded) == 0 {
			log.Fatalf("No rules found in %s", dir)
		}
		fmt.Printf("🔍 Linting %d rules in %s...\n", len(loaded), dir)

		ctx := context.Background()
		rep := newLintReport(dir)
		val := rules.NewValidator(rep)

		if lintUseOracle {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				log.Fatalf("Failed to load config: %v", err)
			}
			oracle, err := llm.NewOracle(ctx, cfg)
			if err != nil {
				log.Fatalf("Setup failed: %v", err)
			}
			val = val.WithOracle(oracle)
		}

		checked := val.Validate(loaded)
		if lintUseOracle {
			val.AlignDescriptions(ctx, checked)
		}

		printDecisions(rep)
		fmt.Printf("📊 %d rules checked, %d repairs applied.\n", len(checked), val.Repairs())

		if lintWrite && val.Repairs() > 0 {
			if err := rewriteRules(dir, checked); err != nil {
				log.Fatalf("Failed to write repaired rules: %v", err)
			}
			fmt.Printf("✅ Repaired rules written back to %s\n", dir)
		}
	},
}
