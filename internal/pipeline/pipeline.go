package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"rulegen/internal/chunk"
	"rulegen/internal/config"
	"rulegen/internal/emit"
	"rulegen/internal/extract"
	"rulegen/internal/ingest"
	"rulegen/internal/llm"
	"rulegen/internal/logging"
	"rulegen/internal/pattern"
	"rulegen/internal/report"
	"rulegen/internal/rules"
)

// ErrNoPatterns is the one condition that fails an otherwise best-effort
// run: nothing was extracted from any chunk after all retries.
var ErrNoPatterns = errors.New("no migration patterns extracted from source")

type Options struct {
	Source     string
	SourceTech string
	TargetTech string
	Depth      int
	OutputDir  string

	// AlignDescriptions enables the oracle-assisted description check.
	AlignDescriptions bool

	Config *config.Config
	Oracle llm.Oracle
	Log    logging.Logger
}

type Result struct {
	Documents int
	Chunks    int
	Patterns  int
	Rules     int
	Files     []string
	Report    *report.RunReport
}

// Run executes the whole pipeline: ingest, chunk, extract (the only
// concurrent stage), normalize, synthesize, validate, emit. Every stage
// after extraction operates on the fully materialized output of the
// previous one. The run report is saved even when the run fails.
func Run(ctx context.Context, opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Log
	if log == nil {
		log = logging.Nop()
	}
	rep := report.NewRunReport(opts.Source)
	reportPath := filepath.Join(opts.OutputDir, "run-report.json")

	// Ingest.
	h := rep.BeginStage("ingest")
	ing := ingest.NewIngester(cfg.Ingest.RequestTimeout, cfg.Ingest.MaxPages, log)
	root, err := ing.Fetch(ctx, opts.Source)
	if err != nil {
		rep.EndStage(h, nil, err)
		saveReport(rep, reportPath, log)
		return nil, fmt.Errorf("reading source: %w", err)
	}
	docs := ing.FollowLinks(ctx, root, opts.Depth)
	rep.EndStage(h, map[string]float64{"documents": float64(len(docs))}, nil)
	log.Info("ingested %d documents from %s", len(docs), opts.Source)

	// Chunk. Chunk indices run across documents in discovery order so
	// rule IDs stay reproducible.
	h = rep.BeginStage("chunk")
	var jobs []extract.Job
	for _, doc := range docs {
		var origin pattern.Link
		if strings.HasPrefix(doc.Source, "http://") || strings.HasPrefix(doc.Source, "https://") {
			origin = pattern.Link{URL: doc.Source, Title: doc.Title}
		}
		for _, c := range chunk.Split(doc.Text, cfg.Chunking.MaxTokens) {
			c.Index = len(jobs)
			jobs = append(jobs, extract.Job{Chunk: c, Origin: origin})
		}
	}
	rep.EndStage(h, map[string]float64{"chunks": float64(len(jobs))}, nil)

	// Extract across a bounded worker pool; joined before returning.
	h = rep.BeginStage("extract")
	policy := extract.RetryPolicy{
		MaxAttempts:    cfg.Extraction.MaxAttempts,
		ShrinkFactor:   cfg.Extraction.ShrinkFactor,
		InitialBackoff: cfg.Extraction.InitialBackoff,
		MaxBackoff:     cfg.Extraction.MaxBackoff,
		RequestTimeout: cfg.Extraction.RequestTimeout,
	}
	ex := extract.New(opts.Oracle, policy, cfg.Extraction.Workers, opts.SourceTech, opts.TargetTech, log, rep)
	patterns := ex.ExtractAll(ctx, jobs)
	rep.EndStage(h, map[string]float64{"patterns": float64(len(patterns))}, nil)
	log.Info("extracted %d patterns from %d chunks", len(patterns), len(jobs))

	if len(patterns) == 0 {
		rep.Finalize(0, 0, 0, 0)
		saveReport(rep, reportPath, log)
		return nil, ErrNoPatterns
	}

	// Normalize.
	h = rep.BeginStage("normalize")
	normalized := pattern.Normalize(patterns)
	if dropped := len(patterns) - len(normalized); dropped > 0 {
		rep.AddDecision("patterns_deduplicated", "normalize", opts.Source,
			fmt.Sprintf("%d near-duplicate patterns merged", dropped), "info")
	}
	rep.EndStage(h, map[string]float64{"patterns": float64(len(normalized))}, nil)

	// Synthesize.
	h = rep.BeginStage("synthesize")
	syn := rules.NewSynthesizer(opts.SourceTech, opts.TargetTech, rep)
	ruleSet := syn.Synthesize(normalized)
	rep.EndStage(h, map[string]float64{"rules": float64(len(ruleSet))}, nil)

	// Validate and repair.
	h = rep.BeginStage("validate")
	val := rules.NewValidator(rep)
	if opts.AlignDescriptions && opts.Oracle != nil {
		val = val.WithOracle(opts.Oracle)
	}
	validated := val.Validate(ruleSet)
	if opts.AlignDescriptions {
		val.AlignDescriptions(ctx, validated)
	}
	rep.EndStage(h, map[string]float64{"rules": float64(len(validated)), "repairs": float64(val.Repairs())}, nil)

	// Emit.
	h = rep.BeginStage("emit")
	em := emit.NewEmitter(opts.OutputDir, opts.SourceTech, opts.TargetTech, syn.RulePrefix(), syn.SymbolicLanguage())
	files, err := em.Emit(validated)
	rep.EndStage(h, map[string]float64{"files": float64(len(files))}, err)
	if err != nil {
		saveReport(rep, reportPath, log)
		return nil, fmt.Errorf("writing rules: %w", err)
	}

	rep.Finalize(len(patterns), len(normalized), len(validated), val.Repairs())
	saveReport(rep, reportPath, log)

	return &Result{
		Documents: len(docs),
		Chunks:    len(jobs),
		Patterns:  len(normalized),
		Rules:     len(validated),
		Files:     files,
		Report:    rep,
	}, nil
}

func saveReport(rep *report.RunReport, path string, log logging.Logger) {
	if err := rep.Save(path); err != nil {
		log.Warn("failed to save run report: %v", err)
	}
}
