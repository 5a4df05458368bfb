package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/lexicon"
	"github.com/cloo-solutions/nutrirag/internal/logger"
	"github.com/cloo-solutions/nutrirag/internal/metrics"
	"github.com/cloo-solutions/nutrirag/internal/telemetry"
)

// Generator produces an answer from a composed prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RouterConfig wires a Router
type RouterConfig struct {
	Lexicon           *lexicon.Lexicon
	MinK              int
	MaxK              int
	OnNoMatch         domain.OnNoMatchPolicy
	HistoryWindow     int
	DisclaimerMode    domain.DisclaimerMode
	RetrievalTimeout  time.Duration
	GenerationTimeout time.Duration
	Indexes           map[domain.Domain]Index
	Generator         Generator
}

// Router answers a query by classifying it, retrieving from the matching
// domains, composing a grounded prompt and calling the generator once.
type Router struct {
	lex        *lexicon.Lexicon
	classifier *Classifier
	allocator  *BudgetAllocator
	retriever  *Retriever
	composer   *Composer
	generator  Generator
	genTimeout time.Duration
	disclaimer domain.DisclaimerMode
}

// Outcome describes how a query was handled
type Outcome struct {
	Answer         string
	State          domain.RouteState
	Classification domain.ClassificationResult
	Budget         domain.RetrievalBudget
	// Domains that contributed at least one passage, in prompt order
	Domains []domain.Domain
	// Trace lists every state entered, starting with StateReceived
	Trace []domain.RouteState
}

func (o *Outcome) advance(s domain.RouteState) {
	o.State = s
	o.Trace = append(o.Trace, s)
}

// NewRouter validates cfg and builds the pipeline. Every lexicon domain needs an index.
func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.Lexicon == nil {
		cfg.Lexicon = lexicon.Default()
	}
	if cfg.MinK == 0 && cfg.MaxK == 0 {
		cfg.MinK, cfg.MaxK = DefaultMinK, DefaultMaxK
	}
	if cfg.Generator == nil {
		return nil, domain.NewDomainError(domain.ErrCodeConfig, "router requires a generator")
	}
	for _, d := range cfg.Lexicon.Domains() {
		if cfg.Indexes[d] == nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeConfig, "domain "+string(d), domain.ErrMissingIndex)
		}
	}

	classifier, err := NewClassifier(cfg.Lexicon, cfg.OnNoMatch)
	if err != nil {
		return nil, err
	}
	allocator, err := NewBudgetAllocator(cfg.Lexicon, cfg.MinK, cfg.MaxK)
	if err != nil {
		return nil, err
	}

	mode := cfg.DisclaimerMode
	if mode == "" {
		mode = domain.DisclaimerModel
	}

	return &Router{
		lex:        cfg.Lexicon,
		classifier: classifier,
		allocator:  allocator,
		retriever:  NewRetriever(cfg.Indexes, cfg.RetrievalTimeout),
		composer:   NewComposer(cfg.Lexicon, cfg.HistoryWindow, mode),
		generator:  cfg.Generator,
		genTimeout: cfg.GenerationTimeout,
		disclaimer: mode,
	}, nil
}

// Lexicon returns the lexicon shared by the classifier and allocator
func (r *Router) Lexicon() *lexicon.Lexicon { return r.lex }

// Classifier exposes the router's classifier
func (r *Router) Classifier() *Classifier { return r.classifier }

// Allocator exposes the router's budget allocator
func (r *Router) Allocator() *BudgetAllocator { return r.allocator }

// Answer runs the routing pipeline. Out-of-domain queries under the reject
// policy get RefusalText without any retrieval or generation. On error the
// returned Outcome is in StateErrored.
func (r *Router) Answer(ctx context.Context, query string, history []domain.ConversationTurn) (*Outcome, error) {
	ctx, span := telemetry.StartSpan(ctx, "route.answer", telemetry.SpanAttributes{Operation: "answer"})
	defer span.End()

	log := logger.FromContext(ctx)
	out := &Outcome{}
	out.advance(domain.StateReceived)

	out.Classification = r.classifier.Classify(query)
	out.advance(domain.StateClassified)
	metrics.ClassificationsTotal.WithLabelValues(string(out.Classification.Kind)).Inc()
	span.SetTag("classification", string(out.Classification.Kind))
	telemetry.AddBreadcrumb(ctx, "route", "classified as "+out.Classification.String())

	if out.Classification.Kind == domain.ClassificationNoMatch {
		out.Answer = RefusalText
		out.advance(domain.StateRejected)
		log.Info("query rejected", zap.String("classification", out.Classification.String()))
		out.advance(domain.StateDone)
		return out, nil
	}

	full := r.allocator.Allocate(query)
	out.Budget = make(domain.RetrievalBudget, len(out.Classification.Domains))
	for _, d := range out.Classification.Domains {
		out.Budget[d] = full[d]
		metrics.RetrievalBudget.WithLabelValues(string(d)).Observe(float64(full[d]))
	}
	out.advance(domain.StateBudgetAllocated)

	results, err := r.retriever.RetrieveAll(ctx, query, out.Classification.Domains, out.Budget)
	if err != nil {
		return r.fail(ctx, span, out, err)
	}
	out.advance(domain.StateRetrieved)

	passages := make(map[domain.Domain][]domain.Passage, len(results))
	for _, res := range results {
		if res.Err == nil {
			passages[res.Domain] = res.Passages
		}
	}
	prompt := r.composer.Compose(query, history, passages)
	out.Domains = r.composer.ParseDomainBlocks(prompt)
	out.advance(domain.StateComposed)

	answer, err := r.generate(ctx, prompt)
	if err != nil {
		return r.fail(ctx, span, out, err)
	}
	out.advance(domain.StateGenerated)

	if r.disclaimer == domain.DisclaimerAppend && !strings.Contains(answer, Disclaimer) {
		answer = strings.TrimRight(answer, " \n") + "\n\n" + Disclaimer
	}
	out.Answer = answer

	log.Info("query answered",
		zap.String("classification", out.Classification.String()),
		zap.Any("budget", out.Budget),
		zap.Int("blocks", len(out.Domains)),
	)
	out.advance(domain.StateDone)
	return out, nil
}

func (r *Router) generate(ctx context.Context, prompt string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "route.generate", telemetry.SpanAttributes{Operation: "generate"})
	defer span.End()

	start := time.Now()
	answer, err := callWithTimeout(ctx, r.genTimeout, func(ctx context.Context) (string, error) {
		return r.generator.Generate(ctx, prompt)
	})
	metrics.GenerationDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		metrics.GenerationRequestsTotal.WithLabelValues("success").Inc()
		return answer, nil
	case isTimeout(err):
		metrics.GenerationRequestsTotal.WithLabelValues("timeout").Inc()
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeGenerationTimeout, "generation timed out", err)
	default:
		metrics.GenerationRequestsTotal.WithLabelValues("error").Inc()
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeGenerationFailure, "generation failed", err)
	}
}

func (r *Router) fail(ctx context.Context, span *telemetry.Span, out *Outcome, err error) (*Outcome, error) {
	logger.FromContext(ctx).Error("query failed",
		zap.String("state", string(out.State)),
		zap.String("code", domain.CodeOf(err)),
		zap.Error(err),
	)
	span.SetError(err)
	telemetry.CaptureError(ctx, err)
	out.advance(domain.StateErrored)
	return out, err
}
