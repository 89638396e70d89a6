package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"rulegen/internal/chunk"
	"rulegen/internal/llm"
	"rulegen/internal/logging"
	"rulegen/internal/pattern"
	"rulegen/internal/report"
	"rulegen/internal/snippet"
)

// Job pairs a chunk with the document it came from, so extracted
// patterns carry provenance.
type Job struct {
	Chunk  chunk.Chunk
	Origin pattern.Link
}

// Extractor drives the oracle once per chunk and validates what comes
// back. The oracle is untrusted: responses may be malformed or
// truncated, and the extractor recovers by retrying the same content at
// a fraction of its size.
type Extractor struct {
	oracle     llm.Oracle
	policy     RetryPolicy
	workers    int
	sourceTech string
	targetTech string
	prompts    PromptBuilder
	classifier *snippet.Classifier
	log        logging.Logger
	rep        *report.RunReport
}

func New(oracle llm.Oracle, policy RetryPolicy, workers int, sourceTech, targetTech string, log logging.Logger, rep *report.RunReport) *Extractor {
	if workers <= 0 {
		workers = 4
	}
	return &Extractor{
		oracle:     oracle,
		policy:     policy.normalized(),
		workers:    workers,
		sourceTech: sourceTech,
		targetTech: targetTech,
		classifier: snippet.NewClassifier(),
		log:        log,
		rep:        rep,
	}
}

// ExtractAll runs the jobs through a bounded worker pool and joins
// before returning, so downstream stages always see the complete list.
// Output order follows job order regardless of completion order. A
// failed chunk contributes zero patterns; it never fails the run.
func (e *Extractor) ExtractAll(ctx context.Context, jobs []Job) []pattern.MigrationPattern {
	results := make([][]pattern.MigrationPattern, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = e.extractChunk(gctx, job)
			return nil
		})
	}
	_ = g.Wait()

	var out []pattern.MigrationPattern
	for _, patterns := range results {
		out = append(out, patterns...)
	}
	return out
}

func (e *Extractor) extractChunk(ctx context.Context, job Job) []pattern.MigrationPattern {
	subject := fmt.Sprintf("chunk %d", job.Chunk.Index)
	text := job.Chunk.Text

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		// A hung completion call must not stall the worker; a timed-out
		// call is retryable like any other transport failure.
		callCtx, cancel := context.WithTimeout(ctx, e.policy.RequestTimeout)
		resp, err := e.oracle.Complete(callCtx, llm.CompletionRequest{
			System:    extractionSystemPrompt,
			Prompt:    e.prompts.BuildExtractionPrompt(e.sourceTech, e.targetTech, text),
			ForceJSON: true,
		})
		cancel()
		if err != nil {
			if llm.IsRetryable(err) && attempt < e.policy.MaxAttempts {
				wait := e.policy.BackoffFor(attempt)
				e.rep.AddDecision("oracle_retry", "extract", subject,
					fmt.Sprintf("attempt %d failed (%v), backing off %s", attempt, err, wait), "info")
				sleepCtx(ctx, wait)
				continue
			}
			e.skipChunk(job, attempt, text, fmt.Sprintf("oracle error after %d attempts: %v", attempt, err))
			return nil
		}

		records, perr := decodeRecords(llm.CleanJSONOutput(resp))
		if perr != nil {
			reason := "malformed JSON"
			if looksTruncated(resp) {
				reason = "truncated JSON"
			}
			if attempt < e.policy.MaxAttempts {
				text = shrink(text, e.policy.ShrinkFactor)
				e.rep.AddDecision("retry_shrunk", "extract", subject,
					fmt.Sprintf("%s on attempt %d (%v), retrying at 1/%d size", reason, attempt, perr, e.policy.ShrinkFactor), "info")
				continue
			}
			e.skipChunk(job, attempt, text, fmt.Sprintf("%s after %d attempts: %v", reason, attempt, perr))
			return nil
		}

		accepted, rejected := e.parseRecords(records, job)
		e.rep.AddChunkMetric(report.ChunkMetric{
			Index:       job.Chunk.Index,
			Attempts:    attempt,
			FinalTokens: chunk.CountTokens(text),
			Accepted:    len(accepted),
			Rejected:    rejected,
		})
		e.log.Info("chunk %d: %d patterns accepted, %d rejected (attempt %d)",
			job.Chunk.Index, len(accepted), rejected, attempt)
		return accepted
	}
	return nil
}

// parseRecords applies the partial-failure policy: one malformed record
// never invalidates its siblings.
func (e *Extractor) parseRecords(records []json.RawMessage, job Job) ([]pattern.MigrationPattern, int) {
	var accepted []pattern.MigrationPattern
	rejected := 0
	for i, rec := range records {
		subject := fmt.Sprintf("chunk %d record %d", job.Chunk.Index, i)

		var raw pattern.RawRecord
		if err := json.Unmarshal(rec, &raw); err != nil {
			e.rep.AddDecision("pattern_rejected", "extract", subject,
				"skipping invalid pattern: "+err.Error(), "warning")
			rejected++
			continue
		}
		p, err := pattern.ParseRecord(raw)
		if err != nil {
			e.rep.AddDecision("pattern_rejected", "extract", subject,
				"skipping invalid pattern: "+err.Error(), "warning")
			rejected++
			continue
		}

		if p.LocationHint == "" {
			p.LocationHint = e.classifier.Classify(p.ExampleBefore)
			e.rep.AddDecision("hint_inferred", "extract", subject,
				fmt.Sprintf("location hint missing, classified example as %s", p.LocationHint), "info")
		}
		if job.Origin.URL != "" {
			p.SourceReferences = withOrigin(p.SourceReferences, job.Origin)
		}
		p.ChunkIndex = job.Chunk.Index
		p.Ordinal = len(accepted)
		accepted = append(accepted, p)
	}
	return accepted, rejected
}

func (e *Extractor) skipChunk(job Job, attempts int, text, rationale string) {
	e.rep.AddDecision("chunk_skipped", "extract", fmt.Sprintf("chunk %d", job.Chunk.Index), rationale, "warning")
	e.rep.AddChunkMetric(report.ChunkMetric{
		Index:       job.Chunk.Index,
		Attempts:    attempts,
		FinalTokens: chunk.CountTokens(text),
		Skipped:     true,
	})
	e.log.Warn("chunk %d skipped: %s", job.Chunk.Index, rationale)
}

// decodeRecords accepts either the requested {"patterns": [...]} wrapper
// or a bare top-level array.
func decodeRecords(s string) ([]json.RawMessage, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty response")
	}
	if strings.HasPrefix(s, "[") {
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(s), &arr); err != nil {
			return nil, err
		}
		return arr, nil
	}
	var wrapper struct {
		Patterns []json.RawMessage `json:"patterns"`
	}
	if err := json.Unmarshal([]byte(s), &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Patterns == nil {
		return nil, errors.New("response has no patterns array")
	}
	return wrapper.Patterns, nil
}

// looksTruncated detects the signature of a response cut off mid-stream:
// an unterminated string or unbalanced brackets.
func looksTruncated(s string) bool {
	depth := 0
	inStr := false
	esc := false
	for _, r := range s {
		if esc {
			esc = false
			continue
		}
		switch r {
		case '\\':
			if inStr {
				esc = true
			}
		case '"':
			inStr = !inStr
		case '[', '{':
			if !inStr {
				depth++
			}
		case ']', '}':
			if !inStr {
				depth--
			}
		}
	}
	return inStr || depth > 0
}

// shrink keeps the leading 1/factor of the text, cut back to the last
// word boundary.
func shrink(text string, factor int) string {
	runes := []rune(text)
	cut := len(runes) / factor
	if cut <= 0 {
		return text
	}
	s := string(runes[:cut])
	if i := strings.LastIndexAny(s, " \n\t"); i > 0 {
		s = s[:i]
	}
	return s
}

func withOrigin(refs []pattern.Link, origin pattern.Link) []pattern.Link {
	for _, r := range refs {
		if r.URL == origin.URL {
			return refs
		}
	}
	return append(refs, origin)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
