// Package orchestrator runs the staged retrieval pipeline. It fetches the
// target issue and log evidence, ranks similar historical issues, falls back
// to external search when local evidence is weak, and aggregates a report and
// root-cause analysis.
//
// Stages run as fork/join groups on a worker pool shared by all runs.
// Concurrent requests with the same idempotency key share one execution.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/mellobo05/Ai-Assisted-Debug/internal/analysis"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/classifier"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/config"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/embeddings"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/external"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/issues"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/logsignals"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/metrics"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/rcaerr"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/report"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/runs"
	"github.com/mellobo05/Ai-Assisted-Debug/internal/similarity"
)

// payloadTailLines is how much of the raw log text the analysis sees.
const payloadTailLines = 120

// IssueStore reads issues and their stored embeddings.
type IssueStore interface {
	Fetch(ctx context.Context, key string) (*issues.Document, error)
	Corpus(ctx context.Context) ([]issues.Record, error)
	AppendRelated(ctx context.Context, key string, related []string) error
}

// LogSignalExtractor turns raw log text into error signatures.
type LogSignalExtractor interface {
	Extract(ctx context.Context, text string) (logsignals.Result, error)
}

// ExternalKnowledge searches outside the issue database. It reports failures
// inside the response.
type ExternalKnowledge interface {
	Search(ctx context.Context, query string, maxResults int) external.Response
}

// RunStore persists analysis runs.
type RunStore interface {
	FindByIdempotencyKey(ctx context.Context, key string) (*runs.Record, error)
	Save(ctx context.Context, rec runs.Record) (*runs.Record, error)
}

// Deps are the collaborators of an Orchestrator. Issues and Embedder are
// required. A nil External disables external search and a nil Runs disables
// persistence.
type Deps struct {
	Issues   IssueStore
	Embedder similarity.QueryEmbedder
	Logs     LogSignalExtractor
	External ExternalKnowledge
	Renderer analysis.Renderer
	Runs     RunStore
	Logger   *zap.Logger
}

// Request is one analysis request.
type Request struct {
	IssueKey string
	// Summary is the reporter's own summary, when it differs from the
	// stored one.
	Summary   string
	Component string
	Domain    string
	OS        string
	LogText   string
	LogPath   string
	Notes     string
	// Limit and MinLocalScore fall back to the pipeline configuration when
	// not positive.
	Limit         int
	MinLocalScore float64
	External      bool
	SaveRun       bool

	// Observer receives state transitions. It only fires for the request
	// that actually executes the pipeline.
	Observer func(Event)
}

// Result is the outcome of a run. Results are shared between callers with
// the same idempotency key and must not be modified.
type Result struct {
	IssueKey       string                 `json:"issue_key"`
	IdempotencyKey string                 `json:"idempotency_key"`
	Issue          *issues.Document       `json:"issue"`
	Matches        []issues.Match         `json:"matches"`
	LogSignals     *logsignals.Result     `json:"log_signals,omitempty"`
	External       *external.Response     `json:"external,omitempty"`
	Prefilter      classifier.Diagnostics `json:"prefilter"`
	Report         string                 `json:"report"`
	Analysis       string                 `json:"analysis"`
	Meta           Meta                   `json:"meta"`
}

// Bundle collects what a rendered report page shows.
func (r *Result) Bundle() report.Bundle {
	b := report.Bundle{
		IssueKey: r.IssueKey,
		Report:   r.Report,
		Analysis: r.Analysis,
		Matches:  r.Matches,
	}
	if r.Issue != nil {
		b.Summary = r.Issue.Summary
	}
	if r.LogSignals != nil {
		b.Signatures = r.LogSignals.Signatures
	}
	if r.External != nil {
		b.External = r.External.Results
	}
	for _, d := range r.Meta.Degraded {
		b.Degraded = append(b.Degraded, d.Stage+": "+d.Reason)
	}
	return b
}

// Meta describes how a result was produced.
type Meta struct {
	State            State         `json:"state"`
	Limit            int           `json:"limit"`
	MinLocalScore    float64       `json:"min_local_score"`
	TopScore         float64       `json:"top_score"`
	CorpusSize       int           `json:"corpus_size"`
	Embedding        EmbeddingInfo `json:"embedding"`
	ExternalEnabled  bool          `json:"external_enabled"`
	ExternalFired    bool          `json:"external_fired"`
	ExternalReason   string        `json:"external_reason,omitempty"`
	AnalysisFallback bool          `json:"analysis_fallback"`
	AnalysisReason   string        `json:"analysis_reason,omitempty"`
	Reused           string        `json:"reused,omitempty"`
	RunID            string        `json:"run_id,omitempty"`
	Degraded         []Degradation `json:"degraded,omitempty"`
	Elapsed          time.Duration `json:"elapsed"`
}

// Orchestrator runs analysis requests.
type Orchestrator struct {
	cfg        config.PipelineConfig
	issues     IssueStore
	embedder   similarity.QueryEmbedder
	logs       LogSignalExtractor
	external   ExternalKnowledge
	renderer   analysis.Renderer
	runs       RunStore
	classifier *classifier.Classifier
	sem        *semaphore.Weighted
	flight     singleflight.Group
	results    *expirable.LRU[string, *Result]
	logger     *zap.Logger
}

// New creates an orchestrator. Unset pipeline settings take their defaults.
func New(cfg config.PipelineConfig, deps Deps) (*Orchestrator, error) {
	if deps.Issues == nil {
		return nil, errors.New("orchestrator: issue store is required")
	}
	if deps.Embedder == nil {
		return nil, errors.New("orchestrator: embedder is required")
	}

	def := config.DefaultConfig().Pipeline
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = def.MaxWorkers
	}
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.MinLocalScore <= 0 {
		cfg.MinLocalScore = def.MinLocalScore
	}
	if cfg.ExternalMaxResults <= 0 {
		cfg.ExternalMaxResults = def.ExternalMaxResults
	}
	if cfg.ExternalTimeout <= 0 {
		cfg.ExternalTimeout = def.ExternalTimeout
	}
	if cfg.PrefilterMinCandidates <= 0 {
		cfg.PrefilterMinCandidates = def.PrefilterMinCandidates
	}
	if cfg.ClassifierThreshold <= 0 {
		cfg.ClassifierThreshold = def.ClassifierThreshold
	}
	if cfg.ResultCacheSize <= 0 {
		cfg.ResultCacheSize = def.ResultCacheSize
	}
	if cfg.ResultCacheTTL <= 0 {
		cfg.ResultCacheTTL = def.ResultCacheTTL
	}

	o := &Orchestrator{
		cfg:        cfg,
		issues:     deps.Issues,
		embedder:   deps.Embedder,
		logs:       deps.Logs,
		external:   deps.External,
		renderer:   deps.Renderer,
		runs:       deps.Runs,
		classifier: classifier.New(cfg.ClassifierThreshold, cfg.PrefilterMinCandidates),
		sem:        semaphore.NewWeighted(int64(cfg.MaxWorkers)),
		results:    expirable.NewLRU[string, *Result](cfg.ResultCacheSize, nil, cfg.ResultCacheTTL),
		logger:     deps.Logger,
	}
	if o.logs == nil {
		o.logs = logsignals.NewExtractor()
	}
	if o.renderer == nil {
		o.renderer = analysis.OfflineRenderer{Reason: "LLM is disabled (llm.enabled=false)."}
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o, nil
}

// Key returns the idempotency key the request would run under.
func (o *Orchestrator) Key(req Request) (string, error) {
	req, err := o.normalize(req)
	if err != nil {
		return "", err
	}
	return IdempotencyKey(o.keyInputs(req)), nil
}

func (o *Orchestrator) normalize(req Request) (Request, error) {
	key, err := issues.NormalizeKey(req.IssueKey)
	if err != nil {
		return req, err
	}
	req.IssueKey = key
	if req.Limit <= 0 {
		req.Limit = o.cfg.Limit
	}
	if req.MinLocalScore <= 0 {
		req.MinLocalScore = o.cfg.MinLocalScore
	}
	if req.MinLocalScore > 1 {
		return req, rcaerr.Newf(rcaerr.KindInvalidInput, "min local score", "must be in (0, 1], got %g", req.MinLocalScore)
	}
	req.External = req.External && o.external != nil
	return req, nil
}

// Run executes the pipeline for req. Cancelling ctx after the run has
// started does not interrupt it. Failures of required stages are returned as
// a *StageError wrapping the typed cause.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	req, err := o.normalize(req)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("failed").Inc()
		return nil, &StageError{Stage: StateInit, Err: err}
	}
	inputs := o.keyInputs(req)
	key := IdempotencyKey(inputs)

	led := false
	v, err, _ := o.flight.Do(key, func() (any, error) {
		led = true
		return o.run(context.WithoutCancel(ctx), req, key, inputs)
	})
	if err != nil {
		return nil, err
	}
	if !led {
		metrics.IdempotencyHitsTotal.WithLabelValues("inflight").Inc()
	}
	return v.(*Result), nil
}

// prior is a reusable analysis from an earlier run with the same key. Runs
// whose analysis fell back to the offline summary are never reused, so a
// transient LLM failure is retried on the next request.
type prior struct {
	source   string
	analysis string
	external *external.Response
	runID    string
}

func (o *Orchestrator) run(ctx context.Context, req Request, key string, inputs KeyInputs) (*Result, error) {
	tr := newTracker(req.Observer)
	log := o.logger.With(zap.String("issue", req.IssueKey), zap.String("idempotency_key", key[:12]))

	res := &Result{
		IssueKey:       req.IssueKey,
		IdempotencyKey: key,
		Meta: Meta{
			Limit:           req.Limit,
			MinLocalScore:   req.MinLocalScore,
			ExternalEnabled: req.External,
		},
	}
	degrade := func(stage, reason string) {
		log.Warn("stage degraded", zap.String("stage", stage), zap.String("reason", reason))
		res.Meta.Degraded = append(res.Meta.Degraded, Degradation{Stage: stage, Reason: reason})
	}
	fail := func(stage State, err error) (*Result, error) {
		metrics.PipelineRunsTotal.WithLabelValues("failed").Inc()
		log.Warn("pipeline failed", zap.Stringer("stage", stage), zap.Error(err))
		tr.enter(StateFailed, err.Error())
		return nil, &StageError{Stage: stage, Err: err}
	}

	tr.enter(StateFetching, "")
	fetch, logs := o.fetchStage(ctx, req)
	if fetch.Status == StatusFatal {
		return fail(StateFetching, fetch.Err)
	}
	if logs.Status == StatusDegraded {
		degrade("logs", logs.Reason)
	}
	doc := fetch.Value.Issue
	res.Issue = doc
	res.LogSignals = logs.Value.Signals

	tr.enter(StateSimilarity, "")
	sim := o.similarityStage(ctx, req, doc, logs.Value)
	if sim.Status == StatusFatal {
		return fail(StateSimilarity, sim.Err)
	}
	if sim.Status == StatusDegraded {
		degrade("similarity", sim.Reason)
	}
	res.Matches = sim.Value.Matches
	res.Prefilter = sim.Value.Prefilter
	res.Meta.TopScore = sim.Value.TopScore
	res.Meta.CorpusSize = sim.Value.Corpus
	res.Meta.Embedding = sim.Value.Embedding

	reuse := o.lookupPrior(ctx, key)

	tr.enter(StateFallbackCheck, fmt.Sprintf("top_score=%.3f", sim.Value.TopScore))
	ext := o.externalStage(ctx, req, doc, logs.Value, sim.Value, reuse != nil)
	if ext.Status == StatusDegraded {
		degrade("external", ext.Reason)
	}
	res.External = ext.Value.Response
	res.Meta.ExternalFired = ext.Value.Fired
	res.Meta.ExternalReason = ext.Value.Reason

	tr.enter(StateAggregating, "")
	res.Report = report.IssueSummary(doc, res.Matches, report.Options{MaxItems: req.Limit})
	header := report.SourcesHeader(sim.Value.TopScore, req.MinLocalScore, ext.Value.Response, ext.Value.Reason)

	if reuse != nil {
		res.Analysis = reuse.analysis
		if res.External == nil {
			res.External = reuse.external
		}
		res.Meta.Reused = reuse.source
		res.Meta.RunID = reuse.runID
	} else {
		out := o.analyze(ctx, req, res, header, logs.Value.Tail)
		res.Analysis = report.EnsureSources(header, out.Text)
		res.Meta.AnalysisFallback = out.Fallback
		res.Meta.AnalysisReason = out.Reason
	}

	if len(res.Matches) > 0 {
		related := make([]string, 0, len(res.Matches))
		for _, m := range res.Matches {
			related = append(related, m.Key)
		}
		if err := o.issues.AppendRelated(ctx, doc.Key, related); err != nil {
			degrade("related", err.Error())
		}
	}

	if req.SaveRun && o.runs != nil && res.Meta.Reused != "store" {
		domain := req.Domain
		if domain == "" {
			domain = string(res.Prefilter.Domain)
		}
		saved, err := o.runs.Save(ctx, runs.Record{
			IssueKey:        doc.Key,
			IdempotencyKey:  key,
			Domain:          domain,
			OS:              req.OS,
			LogsFingerprint: inputs.LogsFingerprint,
			Inputs:          inputs.Canonical(),
			Report:          res.Report,
			Analysis:        res.Analysis,
			Fallback:        res.Meta.AnalysisFallback,
			FallbackReason:  res.Meta.AnalysisReason,
		})
		if err != nil {
			degrade("persist", err.Error())
		} else {
			res.Meta.RunID = saved.ID
		}
	}

	res.Meta.State = StateDone
	res.Meta.Elapsed = tr.enter(StateDone, "")
	if !res.Meta.AnalysisFallback {
		o.results.Add(key, res)
	}

	status := "done"
	if len(res.Meta.Degraded) > 0 {
		status = "degraded"
	}
	metrics.PipelineRunsTotal.WithLabelValues(status).Inc()
	log.Info("pipeline complete",
		zap.String("status", status),
		zap.Int("matches", len(res.Matches)),
		zap.Float64("top_score", res.Meta.TopScore),
		zap.Bool("external", res.Meta.ExternalFired),
		zap.String("reused", res.Meta.Reused),
		zap.Duration("elapsed", res.Meta.Elapsed))
	return res, nil
}

// fetchStage fetches the issue and extracts log signals in parallel.
func (o *Orchestrator) fetchStage(ctx context.Context, req Request) (Outcome[FetchResult], Outcome[LogResult]) {
	var (
		fetch Outcome[FetchResult]
		logs  Outcome[LogResult]
		g     errgroup.Group
	)
	g.Go(func() error {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			fetch = Fatal[FetchResult](err)
			return err
		}
		defer o.sem.Release(1)

		doc, err := o.issues.Fetch(ctx, req.IssueKey)
		if err != nil {
			fetch = Fatal[FetchResult](err)
			return err
		}
		fetch = Ok(FetchResult{Issue: doc})
		return nil
	})
	g.Go(func() error {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			logs = Degraded(LogResult{}, err.Error())
			return nil
		}
		defer o.sem.Release(1)

		logs = o.extractLogs(ctx, req)
		return nil
	})
	_ = g.Wait()
	return fetch, logs
}

func (o *Orchestrator) extractLogs(ctx context.Context, req Request) Outcome[LogResult] {
	text := req.LogText
	var (
		truncated bool
		problem   string
	)
	if req.LogPath != "" {
		tail, trunc, err := logsignals.ReadTail(req.LogPath, 0, 0)
		if err != nil {
			problem = err.Error()
		} else {
			text = strings.TrimSpace(text + "\n" + tail)
			truncated = trunc
		}
	}
	if strings.TrimSpace(text) == "" {
		if problem != "" {
			return Degraded(LogResult{}, problem)
		}
		return Ok(LogResult{})
	}

	lr := LogResult{Tail: lastLines(text, payloadTailLines), Truncated: truncated}
	sig, err := o.logs.Extract(ctx, text)
	if err != nil {
		return Degraded(lr, fmt.Sprintf("log signal extraction failed: %v", err))
	}
	lr.Signals = &sig
	if problem != "" {
		return Degraded(lr, problem)
	}
	return Ok(lr)
}

// similarityStage embeds the query while the corpus loads, then applies the
// prefilter and ranks.
func (o *Orchestrator) similarityStage(ctx context.Context, req Request, doc *issues.Document, lr LogResult) Outcome[SimilarityResult] {
	query := QueryText(doc, lr.Signals, req.Summary, req.Notes)

	var (
		vec     embeddings.Vector
		records []issues.Record
		g       errgroup.Group
	)
	g.Go(func() error {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer o.sem.Release(1)
		var err error
		vec, err = o.embedder.Embed(ctx, query, embeddings.TaskRetrievalQuery)
		return err
	})
	g.Go(func() error {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer o.sem.Release(1)
		var err error
		records, err = o.issues.Corpus(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Fatal[SimilarityResult](err)
	}

	entries := make([]similarity.Entry, 0, len(records))
	pool := make([]classifier.Candidate, 0, len(records))
	docs := make(map[string]*issues.Document, len(records))
	comparable := 0
	for i := range records {
		d := &records[i].Document
		if d.Key == doc.Key {
			continue
		}
		docs[d.Key] = d
		entries = append(entries, similarity.Entry{Key: d.Key, Vector: records[i].Vector})
		pool = append(pool, candidate(d))
		if vec.Comparable(records[i].Vector) {
			comparable++
		}
	}

	pf := o.classifier.Resolve(classifier.Target{
		ComponentHint: req.Component,
		DomainHint:    req.Domain,
		Issue:         candidate(doc),
	}, pool)
	metrics.PrefilterModeTotal.WithLabelValues(string(pf.Diagnostics.Mode)).Inc()

	hits := similarity.Search(vec, entries, req.Limit, similarity.Options{Include: pf.Include, Exclude: []string{doc.Key}})
	matches := make([]issues.Match, 0, len(hits))
	for _, h := range hits {
		matches = append(matches, docs[h.Key].ToMatch(h.Score))
	}

	out := SimilarityResult{
		Query:     query,
		Matches:   matches,
		TopScore:  similarity.TopScore(hits),
		Prefilter: pf.Diagnostics,
		Embedding: EmbeddingInfo{Provider: vec.Provider, Model: vec.Model, Dimensions: len(vec.Values)},
		Corpus:    len(entries),
	}
	if len(entries) > 0 && comparable == 0 {
		return Degraded(out, fmt.Sprintf("no stored embeddings are comparable with %s/%d; re-embed the corpus", vec.Provider, len(vec.Values)))
	}
	return Ok(out)
}

// externalStage searches externally only when enabled, not reusing an
// earlier analysis, and the best local score is below the threshold.
func (o *Orchestrator) externalStage(ctx context.Context, req Request, doc *issues.Document, lr LogResult, sim SimilarityResult, reused bool) Outcome[ExternalResult] {
	switch {
	case !req.External:
		return Ok(ExternalResult{Reason: "not enabled"})
	case reused:
		return Ok(ExternalResult{Reason: "reusing earlier analysis"})
	case sim.TopScore >= req.MinLocalScore:
		return Ok(ExternalResult{Reason: fmt.Sprintf("local evidence sufficient (top_score=%.3f)", sim.TopScore)})
	}

	q := ExternalQuery(doc, lr.Signals)
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return Degraded(ExternalResult{Reason: err.Error()}, err.Error())
	}
	defer o.sem.Release(1)

	sctx, cancel := context.WithTimeout(ctx, o.cfg.ExternalTimeout)
	defer cancel()
	resp := o.external.Search(sctx, q, o.cfg.ExternalMaxResults)

	r := ExternalResult{Fired: true, Query: q, Response: &resp}
	if resp.Error != "" {
		metrics.ExternalFallbacksTotal.WithLabelValues("error").Inc()
		return Degraded(r, "external search failed: "+resp.Error)
	}
	metrics.ExternalFallbacksTotal.WithLabelValues("ok").Inc()
	return Ok(r)
}

func (o *Orchestrator) analyze(ctx context.Context, req Request, res *Result, header, tail string) analysis.Output {
	payload := analysis.Payload{
		SourcesHeader: header,
		Issue:         res.Issue,
		Matches:       res.Matches,
		LogSignals:    res.LogSignals,
		LogsTail:      tail,
		External:      res.External,
		TopScore:      res.Meta.TopScore,
		MinLocalScore: req.MinLocalScore,
		Notes:         strings.TrimSpace(req.Notes),
	}
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return analysis.Output{Text: analysis.Offline(payload, err.Error()), Fallback: true, Reason: err.Error()}
	}
	defer o.sem.Release(1)
	return o.renderer.Run(ctx, analysis.Prompts, payload)
}

func (o *Orchestrator) lookupPrior(ctx context.Context, key string) *prior {
	if r, ok := o.results.Get(key); ok && !r.Meta.AnalysisFallback {
		metrics.IdempotencyHitsTotal.WithLabelValues("cache").Inc()
		return &prior{
			source:   "cache",
			analysis: r.Analysis,
			external: r.External,
			runID:    r.Meta.RunID,
		}
	}
	if o.runs == nil {
		return nil
	}
	rec, err := o.runs.FindByIdempotencyKey(ctx, key)
	if err != nil {
		o.logger.Warn("run lookup failed", zap.Error(err))
		return nil
	}
	if rec == nil || strings.TrimSpace(rec.Analysis) == "" {
		return nil
	}
	if rec.Fallback {
		o.logger.Debug("stored run used the offline analysis, not reusing",
			zap.String("run_id", rec.ID), zap.String("reason", rec.FallbackReason))
		return nil
	}
	metrics.IdempotencyHitsTotal.WithLabelValues("store").Inc()
	return &prior{source: "store", analysis: rec.Analysis, runID: rec.ID}
}

// Search ranks stored issues against free text. Component and domain hints
// narrow the pool the same way a full run does.
func (o *Orchestrator) Search(ctx context.Context, query, component, domain string, limit int, exclude ...string) ([]issues.Match, classifier.Diagnostics, error) {
	if strings.TrimSpace(query) == "" {
		return nil, classifier.Diagnostics{}, rcaerr.Newf(rcaerr.KindInvalidInput, "search", "query is required")
	}
	if limit <= 0 {
		limit = o.cfg.Limit
	}
	records, err := o.issues.Corpus(ctx)
	if err != nil {
		return nil, classifier.Diagnostics{}, err
	}

	entries := make([]similarity.Entry, 0, len(records))
	pool := make([]classifier.Candidate, 0, len(records))
	docs := make(map[string]*issues.Document, len(records))
	for i := range records {
		d := &records[i].Document
		docs[d.Key] = d
		entries = append(entries, similarity.Entry{Key: d.Key, Vector: records[i].Vector})
		pool = append(pool, candidate(d))
	}
	pf := o.classifier.Resolve(classifier.Target{ComponentHint: component, DomainHint: domain}, pool)
	metrics.PrefilterModeTotal.WithLabelValues(string(pf.Diagnostics.Mode)).Inc()

	hits, _, err := similarity.NewIndex(o.embedder).Query(ctx, query, entries, limit, similarity.Options{Include: pf.Include, Exclude: exclude})
	if err != nil {
		return nil, pf.Diagnostics, err
	}
	matches := make([]issues.Match, 0, len(hits))
	for _, h := range hits {
		matches = append(matches, docs[h.Key].ToMatch(h.Score))
	}
	return matches, pf.Diagnostics, nil
}

// QueryText is the text embedded for a run: the issue layout followed by
// the reporter's summary, notes and log signatures when present.
func QueryText(doc *issues.Document, sig *logsignals.Result, summary, notes string) string {
	var b strings.Builder
	b.WriteString(doc.EmbeddingText())
	if s := strings.TrimSpace(summary); s != "" && s != strings.TrimSpace(doc.Summary) {
		b.WriteString("\n\nREPORTED_SUMMARY:\n")
		b.WriteString(s)
	}
	if n := strings.TrimSpace(notes); n != "" {
		b.WriteString("\n\nNOTES:\n")
		b.WriteString(n)
	}
	if sig != nil && sig.QueryText != "" {
		b.WriteString("\n\nLOG_ERROR_SIGNATURES:\n")
		b.WriteString(sig.QueryText)
	}
	return b.String()
}

// ExternalQuery prefers the log query text, then the collapsed issue text.
func ExternalQuery(doc *issues.Document, sig *logsignals.Result) string {
	if sig != nil && strings.TrimSpace(sig.QueryText) != "" {
		return sig.QueryText
	}
	return head(strings.Join(strings.Fields(doc.EmbeddingText()), " "), 300)
}

func candidate(d *issues.Document) classifier.Candidate {
	return classifier.Candidate{
		Key:         d.Key,
		Summary:     d.Summary,
		Description: d.Description,
		Components:  d.Components,
		Labels:      d.Labels,
	}
}

func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// tracker records stage durations and notifies the observer.
type tracker struct {
	observe func(Event)
	start   time.Time
	last    time.Time
	state   State
}

func newTracker(observe func(Event)) *tracker {
	now := time.Now()
	t := &tracker{observe: observe, start: now, last: now, state: StateInit}
	if observe != nil {
		observe(Event{State: StateInit})
	}
	return t
}

// enter closes the current state and returns the total elapsed time.
func (t *tracker) enter(s State, detail string) time.Duration {
	now := time.Now()
	metrics.StageDuration.WithLabelValues(t.state.String()).Observe(now.Sub(t.last).Seconds())
	t.state, t.last = s, now
	elapsed := now.Sub(t.start)
	if t.observe != nil {
		t.observe(Event{State: s, Elapsed: elapsed, Detail: detail})
	}
	return elapsed
}
