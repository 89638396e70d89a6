package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Decision is one recorded choice the pipeline made: what was tried,
// what was chosen, and why. Decisions are the operator-visible trail for
// partial failures, since the pipeline otherwise emits best-effort output.
type Decision struct {
	Kind      string `json:"kind"`
	Stage     string `json:"stage"`
	Subject   string `json:"subject"`
	Rationale string `json:"rationale"`
	Severity  string `json:"severity"`
}

type StageMetric struct {
	Name       string             `json:"name"`
	Status     string             `json:"status"`
	StartedAt  string             `json:"started_at"`
	FinishedAt string             `json:"finished_at"`
	DurationMS int64              `json:"duration_ms"`
	Counters   map[string]float64 `json:"counters,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type ChunkMetric struct {
	Index       int  `json:"index"`
	Attempts    int  `json:"attempts"`
	FinalTokens int  `json:"final_tokens"`
	Accepted    int  `json:"accepted"`
	Rejected    int  `json:"rejected"`
	Skipped     bool `json:"skipped"`
}

type Summary struct {
	StageCount          int            `json:"stage_count"`
	FailedStages        int            `json:"failed_stages"`
	ChunksTotal         int            `json:"chunks_total"`
	ChunksSkipped       int            `json:"chunks_skipped"`
	PatternsExtracted   int            `json:"patterns_extracted"`
	PatternsAfterDedup  int            `json:"patterns_after_dedup"`
	RulesEmitted        int            `json:"rules_emitted"`
	Repairs             int            `json:"repairs"`
	DecisionsBySeverity map[string]int `json:"decisions_by_severity"`
}

type RunReport struct {
	Version     string        `json:"version"`
	GeneratedAt string        `json:"generated_at"`
	Source      string        `json:"source"`
	Stages      []StageMetric `json:"stages"`
	Chunks      []ChunkMetric `json:"chunks,omitempty"`
	Decisions   []Decision    `json:"decisions,omitempty"`
	Summary     Summary       `json:"summary"`

	mu sync.Mutex
}

type StageHandle struct {
	name    string
	started time.Time
}

func NewRunReport(source string) *RunReport {
	return &RunReport{
		Version:     "v1",
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Source:      source,
		Stages:      []StageMetric{},
		Chunks:      []ChunkMetric{},
		Decisions:   []Decision{},
	}
}

func (r *RunReport) BeginStage(name string) StageHandle {
	return StageHandle{name: strings.TrimSpace(name), started: time.Now().UTC()}
}

func (r *RunReport) EndStage(h StageHandle, counters map[string]float64, err error) {
	if r == nil || h.name == "" {
		return
	}
	finished := time.Now().UTC()
	m := StageMetric{
		Name:       h.name,
		Status:     "ok",
		StartedAt:  h.started.Format(time.RFC3339Nano),
		FinishedAt: finished.Format(time.RFC3339Nano),
		DurationMS: finished.Sub(h.started).Milliseconds(),
		Counters:   cleanCounters(counters),
	}
	if err != nil {
		m.Status = "error"
		m.Error = err.Error()
	}
	r.mu.Lock()
	r.Stages = append(r.Stages, m)
	r.mu.Unlock()
}

// AddDecision is safe to call from concurrent extraction workers.
func (r *RunReport) AddDecision(kind, stage, subject, rationale, severity string) {
	if r == nil {
		return
	}
	d := Decision{
		Kind:      strings.TrimSpace(kind),
		Stage:     strings.TrimSpace(stage),
		Subject:   strings.TrimSpace(subject),
		Rationale: strings.TrimSpace(rationale),
		Severity:  strings.ToLower(strings.TrimSpace(severity)),
	}
	if d.Kind == "" || d.Stage == "" {
		return
	}
	if d.Severity == "" {
		d.Severity = "info"
	}
	r.mu.Lock()
	r.Decisions = append(r.Decisions, d)
	r.mu.Unlock()
}

func (r *RunReport) AddChunkMetric(m ChunkMetric) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.Chunks = append(r.Chunks, m)
	r.mu.Unlock()
}

// CountDecisions returns how many recorded decisions carry the given kind.
func (r *RunReport) CountDecisions(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.Decisions {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

func (r *RunReport) Finalize(patternsExtracted, patternsAfterDedup, rulesEmitted, repairs int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.GeneratedAt = time.Now().UTC().Format(time.RFC3339)

	sort.SliceStable(r.Chunks, func(i, j int) bool { return r.Chunks[i].Index < r.Chunks[j].Index })

	severityCount := map[string]int{}
	for _, d := range r.Decisions {
		severityCount[d.Severity]++
	}
	failed := 0
	for _, st := range r.Stages {
		if st.Status != "ok" {
			failed++
		}
	}
	skipped := 0
	for _, c := range r.Chunks {
		if c.Skipped {
			skipped++
		}
	}

	r.Summary = Summary{
		StageCount:          len(r.Stages),
		FailedStages:        failed,
		ChunksTotal:         len(r.Chunks),
		ChunksSkipped:       skipped,
		PatternsExtracted:   patternsExtracted,
		PatternsAfterDedup:  patternsAfterDedup,
		RulesEmitted:        rulesEmitted,
		Repairs:             repairs,
		DecisionsBySeverity: severityCount,
	}
}

func (r *RunReport) Save(path string) error {
	if r == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	r.mu.Lock()
	data, err := json.MarshalIndent(r, "", "  ")
	r.mu.Unlock()
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

func cleanCounters(raw map[string]float64) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
