package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"compliance-agent/internal/classifier"
	"compliance-agent/internal/llm"
	"compliance-agent/internal/metrics"
	"compliance-agent/internal/models"
	"compliance-agent/internal/parser"
	"compliance-agent/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Translator turns a policy document into raw "REASON: / SQL:" text
type Translator interface {
	Translate(ctx context.Context, doc models.Document) (string, error)
	GetModelInfo() map[string]interface{}
}

// Executor runs a generated query; failures come back as an empty result
type Executor interface {
	ExecuteQuery(ctx context.Context, query string) repository.ResultSet
}

// Options are fixed at startup and shared by every request.
// A nil Classifier means scoring runs offline.
type Options struct {
	Classifier classifier.Classifier
	Features   *classifier.FeatureSchema
}

// State is a step of the audit pipeline
type State string

const (
	StateReceived    State = "received"
	StateTranslating State = "translating"
	StateParsing     State = "parsing"
	StateExecuting   State = "executing"
	StateScoring     State = "filtering_scoring"
	StateDone        State = "done"
)

// Synthetic violation reported when the translator is out of quota
const (
	QuotaSubjectID = "API_QUOTA_EXCEEDED"
	QuotaEventType = "API Limit Reached"
	QuotaReason    = "Translator API quota exceeded. Please wait or upgrade your plan."
	QuotaSource    = "System"
)

// Fallbacks used when shaping a result row into a violation
const (
	defaultReason = "Policy Violation"
	unknownSource = "Unknown"
)

// Auditor runs one policy document through translate, parse, execute, filter and score
type Auditor struct {
	translator Translator
	executor   Executor
	opts       Options
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewAuditor creates a new audit orchestrator
func NewAuditor(
	translator Translator,
	executor Executor,
	opts Options,
	m *metrics.Metrics,
	logger *zap.Logger,
) (*Auditor, error) {
	if translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}

	if opts.Features == nil {
		schema, err := classifier.NewFeatureSchema(classifier.DefaultFeatures)
		if err != nil {
			return nil, fmt.Errorf("failed to build default feature schema: %w", err)
		}
		opts.Features = schema
	}

	if m == nil {
		m = metrics.New(nil)
	}

	return &Auditor{
		translator: translator,
		executor:   executor,
		opts:       opts,
		metrics:    m,
		logger:     logger.Named("auditor"),
	}, nil
}

// ClassifierLoaded reports whether violations get a real risk label
func (a *Auditor) ClassifierLoaded() bool {
	return a.opts.Classifier != nil
}

// Engine describes the translator and scoring pair, e.g. "gemini/gemini-2.0-flash + ML Fusion"
func (a *Auditor) Engine() string {
	info := a.translator.GetModelInfo()
	return fmt.Sprintf("%v/%v + ML Fusion", info["provider"], info["model"])
}

// Audit processes one document. Only translator failures other than quota
// exhaustion are returned as errors; every later stage degrades instead.
func (a *Auditor) Audit(ctx context.Context, doc models.Document) (*models.AuditReport, error) {
	start := time.Now()
	defer func() {
		a.metrics.AuditDuration.Observe(time.Since(start).Seconds())
	}()

	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	log := a.logger.With(
		zap.String("request_id", requestID),
		zap.String("policy", doc.Name))

	transition(log, StateReceived)

	transition(log, StateTranslating)
	raw, err := a.translator.Translate(ctx, doc)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			a.metrics.AuditsTotal.WithLabelValues("failed").Inc()
			log.Warn("Audit cancelled during translation", zap.Error(err))
			return nil, fmt.Errorf("translation aborted: %w", ctxErr)
		}
		if llm.IsQuotaError(err) {
			log.Warn("Translator quota exceeded", zap.Error(err))
			a.metrics.AuditsTotal.WithLabelValues("quota_exceeded").Inc()
			a.metrics.ViolationsTotal.WithLabelValues(string(models.RiskManualReviewRequired)).Inc()
			transition(log, StateDone)
			return models.NewAuditReport(doc.Name, []models.Violation{QuotaViolation()}), nil
		}
		a.metrics.AuditsTotal.WithLabelValues("failed").Inc()
		log.Error("Translation failed", zap.Error(err))
		return nil, fmt.Errorf("translation failed: %w", err)
	}

	transition(log, StateParsing)
	parsed := parser.Parse(raw)
	a.metrics.ParseOutcomes.WithLabelValues(parsed.Outcome.String()).Inc()
	if parsed.Outcome == parser.Defaulted {
		log.Warn("Translator response missing markers, using default query",
			zap.String("response", raw))
	}
	log.Debug("Translator response parsed",
		zap.String("reason", parsed.Reason),
		zap.String("sql", parsed.SQL))

	transition(log, StateExecuting)
	rs := a.executor.ExecuteQuery(ctx, parsed.SQL)
	if rs.Empty() {
		return a.finish(log, doc, nil), nil
	}

	transition(log, StateScoring)
	rows := FilterFlagged(rs)
	if len(rows) == 0 {
		return a.finish(log, doc, nil), nil
	}

	labels := a.score(ctx, rows, log)

	violations := make([]models.Violation, len(rows))
	for i, row := range rows {
		violations[i] = ShapeViolation(row, parsed.Reason, labels[i])
		a.metrics.ViolationsTotal.WithLabelValues(string(labels[i])).Inc()
	}

	return a.finish(log, doc, violations), nil
}

func (a *Auditor) finish(log *zap.Logger, doc models.Document, violations []models.Violation) *models.AuditReport {
	outcome := "completed"
	if len(violations) == 0 {
		outcome = "empty"
	}
	a.metrics.AuditsTotal.WithLabelValues(outcome).Inc()

	transition(log, StateDone)
	log.Info("Audit completed", zap.Int("violations", len(violations)))

	return models.NewAuditReport(doc.Name, violations)
}

// score labels every row, or none: one failure sends the whole batch to manual review
func (a *Auditor) score(ctx context.Context, rows []repository.Row, log *zap.Logger) []models.RiskLabel {
	labels := make([]models.RiskLabel, len(rows))

	if a.opts.Classifier == nil {
		fill(labels, models.RiskModelOffline)
		return labels
	}

	input := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		input[i] = row
	}

	predictions, err := a.predict(ctx, input)
	if err != nil {
		a.metrics.ClassifierErrors.Inc()
		log.Warn("ML scoring failed, rows need manual review", zap.Error(err))
		fill(labels, models.RiskManualReviewRequired)
		return labels
	}

	for i, p := range predictions {
		if p == 1 {
			labels[i] = models.RiskHigh
		} else {
			labels[i] = models.RiskLow
		}
	}
	return labels
}

func (a *Auditor) predict(ctx context.Context, rows []map[string]interface{}) ([]float64, error) {
	matrix, err := a.opts.Features.Matrix(rows)
	if err != nil {
		return nil, fmt.Errorf("feature alignment: %w", err)
	}

	predictions, err := a.opts.Classifier.Predict(ctx, matrix)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	if len(predictions) != len(rows) {
		return nil, fmt.Errorf("%w: got %d predictions for %d rows",
			classifier.ErrFeatureMismatch, len(predictions), len(rows))
	}
	return predictions, nil
}

func fill(labels []models.RiskLabel, label models.RiskLabel) {
	for i := range labels {
		labels[i] = label
	}
}

func transition(log *zap.Logger, s State) {
	log.Debug("Audit state", zap.String("state", string(s)))
}

// QuotaViolation is the single record returned when the translator is out of quota
func QuotaViolation() models.Violation {
	return models.Violation{
		SubjectID: QuotaSubjectID,
		EventType: QuotaEventType,
		Val:       0,
		Reason:    QuotaReason,
		Source:    QuotaSource,
		RiskLabel: models.RiskManualReviewRequired,
	}
}

// FilterFlagged keeps rows whose is_violation flag is set. When the query did
// not return the flag column every row is kept.
func FilterFlagged(rs repository.ResultSet) []repository.Row {
	if rs.Empty() {
		return nil
	}
	if !rs.HasColumn(models.ColumnIsViolation) {
		return rs.Rows
	}

	var out []repository.Row
	for _, row := range rs.Rows {
		if isFlagged(row[models.ColumnIsViolation]) {
			out = append(out, row)
		}
	}
	return out
}

func isFlagged(v interface{}) bool {
	switch t := v.(type) {
	case int64:
		return t == 1
	case int:
		return t == 1
	case int32:
		return t == 1
	case float64:
		return t == 1
	case float32:
		return t == 1
	case bool:
		return t
	case string:
		return strings.TrimSpace(t) == "1"
	default:
		return false
	}
}

// ShapeViolation converts a retained row into the response record
func ShapeViolation(row repository.Row, reason string, label models.RiskLabel) models.Violation {
	if strings.TrimSpace(reason) == "" {
		reason = defaultReason
	}
	return models.Violation{
		SubjectID: stringField(row, models.ColumnSubjectID, ""),
		EventType: stringField(row, models.ColumnEventType, ""),
		Val:       floatField(row, models.ColumnValue),
		Reason:    reason,
		Source:    stringField(row, models.ColumnSource, unknownSource),
		RiskLabel: label,
	}
}

func stringField(row repository.Row, key, def string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return def
	}
	return fmt.Sprint(v)
}

func floatField(row repository.Row, key string) float64 {
	switch t := row[key].(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
