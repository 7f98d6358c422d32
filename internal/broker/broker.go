// Package broker coordinates loan assessments. It prefers the remote credit
// tool server and falls back to the in-process bureau and risk model when the
// remote path fails, so a dead tool process degrades service instead of
// stopping it. The underwriting decision is stamped locally on both paths.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/mikopo/internal/credit"
	"github.com/jkaninda/mikopo/internal/domain"
	"github.com/jkaninda/mikopo/internal/engine"
	"github.com/jkaninda/mikopo/internal/observability"
	"github.com/jkaninda/mikopo/internal/toolserver"
	"github.com/jkaninda/mikopo/internal/workspace"
)

// Remote is the tool-server session the broker calls on the primary path.
type Remote interface {
	ComprehensiveAssessment(ctx context.Context, app domain.ApplicantSnapshot) (domain.AssessmentBundle, error)
	Close() error
}

// DialFunc opens a fresh remote session. The broker dials per assessment and
// closes the session when done.
type DialFunc func(ctx context.Context) (Remote, error)

// Broker runs assessments with remote-first, local-fallback semantics.
type Broker struct {
	dial    DialFunc
	bureau  *credit.Bureau
	model   *credit.Model
	journal *workspace.Workspace // nil = decision records not written
	logger  *slog.Logger
	metrics *observability.MetricsCollector // nil when metrics are disabled
}

// New creates a Broker. dial may be nil, in which case every assessment runs
// on the local path.
func New(dial DialFunc, logger *slog.Logger, metrics *observability.MetricsCollector) *Broker {
	return &Broker{
		dial:    dial,
		bureau:  credit.NewBureau(),
		model:   credit.NewModel(),
		logger:  logger,
		metrics: metrics,
	}
}

// WithJournal makes the broker write each completed assessment to the
// workspace's decisions directory.
func (b *Broker) WithJournal(ws *workspace.Workspace) *Broker {
	b.journal = ws
	return b
}

// Assess validates the application, obtains the assessment bundle remotely or
// locally, and renders the final decision.
func (b *Broker) Assess(ctx context.Context, app domain.ApplicantSnapshot) (domain.Assessment, error) {
	if err := engine.ValidateSnapshot(app); err != nil {
		return domain.Assessment{}, err
	}

	bundle, source := b.obtainBundle(ctx, app)

	// The decision and the stored metrics come from the same local
	// derivation, so a remote bundle with divergent metrics can never make
	// the record disagree with its own decision.
	metrics := engine.Metrics(app)
	decision, flags := engine.Decide(metrics, bundle.Credit)

	assessment := domain.Assessment{
		ID:            uuid.NewString(),
		ApplicantName: app.Name,
		Credit:        bundle.Credit,
		Risk:          bundle.Risk,
		Metrics:       metrics,
		Decision:      decision,
		Flags:         flags,
		Source:        source,
		AssessedAt:    time.Now().UTC(),
	}

	if b.metrics != nil {
		b.metrics.AssessmentsTotal.WithLabelValues(string(source), "success").Inc()
		b.metrics.DecisionsTotal.WithLabelValues(string(decision)).Inc()
	}

	b.logger.InfoContext(ctx, "assessment completed",
		slog.String("assessment_id", assessment.ID),
		slog.String("decision", string(decision)),
		slog.String("source", string(source)),
		slog.Int("credit_score", bundle.Credit.Score),
	)

	if b.journal != nil {
		if err := b.writeRecord(assessment); err != nil {
			b.logger.WarnContext(ctx, "writing decision record failed",
				slog.String("assessment_id", assessment.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return assessment, nil
}

// writeRecord persists one assessment as a JSON decision record. Journal
// failures never fail the assessment itself.
func (b *Broker) writeRecord(assessment domain.Assessment) error {
	data, err := json.MarshalIndent(assessment, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(b.journal.DecisionPath(assessment.ID), data, 0640)
}

// AssessLocal runs the assessment entirely in-process, bypassing the remote
// tool server. Used by the CLI's --local flag and by the routing agent.
func (b *Broker) AssessLocal(ctx context.Context, app domain.ApplicantSnapshot) (domain.Assessment, error) {
	local := *b
	local.dial = nil
	return local.Assess(ctx, app)
}

// obtainBundle tries the remote tool server first and falls back to the
// in-process assessment on any failure.
func (b *Broker) obtainBundle(ctx context.Context, app domain.ApplicantSnapshot) (domain.AssessmentBundle, domain.Source) {
	if b.dial != nil {
		bundle, err := b.tryRemote(ctx, app)
		if err == nil {
			return bundle, domain.SourceRemote
		}
		b.logger.WarnContext(ctx, "remote assessment failed, falling back to local engine",
			slog.String("applicant", app.Name),
			slog.String("error", err.Error()),
		)
		if b.metrics != nil {
			b.metrics.AssessmentsTotal.WithLabelValues(string(domain.SourceRemote), "error").Inc()
		}
	}

	bundle := toolserver.Assess(b.bureau, b.model, app)
	if b.dial != nil {
		b.logger.InfoContext(ctx, "local fallback succeeded",
			slog.String("applicant", app.Name),
		)
	}
	return bundle, domain.SourceLocal
}

func (b *Broker) tryRemote(ctx context.Context, app domain.ApplicantSnapshot) (domain.AssessmentBundle, error) {
	session, err := b.dial(ctx)
	if err != nil {
		return domain.AssessmentBundle{}, fmt.Errorf("dialing tool server: %w", err)
	}
	defer func() { _ = session.Close() }()

	start := time.Now()
	bundle, err := session.ComprehensiveAssessment(ctx, app)
	if b.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		b.metrics.ToolCallsTotal.WithLabelValues(toolserver.ToolComprehensive, status).Inc()
		b.metrics.ToolCallDuration.WithLabelValues(toolserver.ToolComprehensive).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return domain.AssessmentBundle{}, err
	}
	return bundle, nil
}
