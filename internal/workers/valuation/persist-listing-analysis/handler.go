// internal/workers/valuation/persist-listing-analysis/handler.go
package persistlistinganalysis

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/listings"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/common/metrics"
	"dealflow-workers/internal/common/observability"
	"dealflow-workers/internal/models"
	"dealflow-workers/internal/valuation"
)

const (
	TaskType = "persist-listing-analysis"
)

type Handler struct {
	config       *Config
	store        listings.Store
	db           *sql.DB
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	now          func() time.Time
}

// NewHandler wires the analysis store. db is only used for the audit log and
// may be nil.
func NewHandler(config *Config, store listings.Store, db *sql.DB, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		store:        store,
		db:           db,
		logger:       scoped,
		errorHandler: errors.NewErrorHandler(scoped),
		now:          time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, span := observability.StartJobSpan(context.Background(), TaskType, job.Key)
	timer := metrics.StartJob(TaskType)

	output, err := h.run(ctx, job)
	if err != nil {
		stdErr := errors.FromValuationError(err)
		timer.Fail(string(stdErr.Code))
		span.End(ctx, stdErr)
		h.errorHandler.HandleJobError(ctx, client, job, stdErr)
		return
	}

	h.completeJob(ctx, client, job, output)
	timer.Complete()
	span.End(ctx, nil)
}

func (h *Handler) run(ctx context.Context, job entities.Job) (*Output, error) {
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()
	return h.execute(ctx, &input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ListingID == "" {
		return nil, errors.NewInvalidInputError("listingId is required")
	}
	if input.Valuation == nil {
		return nil, errors.NewInvalidInputError("valuation is required")
	}

	computedAt := h.now()
	if input.ComputedAt != "" {
		t, err := time.Parse(time.RFC3339, input.ComputedAt)
		if err != nil {
			return nil, errors.NewInvalidInputError(fmt.Sprintf("computedAt: %v", err))
		}
		computedAt = t
	}

	analysis := models.NewListingAnalysis(input.ListingID, &valuation.Estimate{
		Valuation: input.Valuation,
		Financing: input.Financing,
	}, computedAt)
	if input.Narrative != nil && input.Narrative.Summary != "" {
		summary := input.Narrative.Summary
		analysis.Narrative = &summary
	}

	persistedAt := h.now().UTC().Format(time.RFC3339)

	created, err := h.store.UpsertAnalysis(ctx, analysis)
	if stderrors.Is(err, listings.ErrStaleAnalysis) {
		h.logger.Warn("newer analysis already stored, skipping", map[string]interface{}{
			"listingId":  input.ListingID,
			"computedAt": analysis.ComputedAt,
		})
		return &Output{Superseded: true, PersistedAt: persistedAt}, nil
	}
	if err != nil {
		return nil, errors.NewAnalysisPersistFailedError(input.ListingID, err)
	}

	h.writeAuditLog(ctx, analysis, created, persistedAt)

	h.logger.Info("listing analysis persisted", map[string]interface{}{
		"analysisId":    analysis.ID,
		"listingId":     input.ListingID,
		"created":       created,
		"valuationLow":  analysis.ValuationLow,
		"valuationHigh": analysis.ValuationHigh,
	})

	return &Output{
		AnalysisID:  analysis.ID,
		Created:     created,
		PersistedAt: persistedAt,
	}, nil
}

// writeAuditLog is best effort; a failed insert is logged and ignored.
func (h *Handler) writeAuditLog(ctx context.Context, a *models.ListingAnalysis, created bool, at string) {
	if h.db == nil || !h.config.AuditLog {
		return
	}

	eventType := "listing_analysis_updated"
	if created {
		eventType = "listing_analysis_created"
	}
	details, err := json.Marshal(map[string]interface{}{
		"listingId":     a.ListingID,
		"valuationLow":  a.ValuationLow,
		"valuationHigh": a.ValuationHigh,
		"basis":         a.Basis,
		"confidence":    a.Confidence,
	})
	if err != nil {
		h.logger.Warn("failed to marshal audit log details", map[string]interface{}{
			"error": err,
		})
		details = []byte("{}")
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		eventType,
		"listing_analysis",
		a.ID,
		details,
		at,
	)
	if err != nil {
		h.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":      err,
			"analysisId": a.ID,
		})
	}
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.Key,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
