// internal/workers/valuation/generate-valuation-narrative/handler.go
package generatevaluationnarrative

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/listings"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/common/metrics"
	"dealflow-workers/internal/common/narrative"
	"dealflow-workers/internal/common/observability"
	"dealflow-workers/internal/models"
)

const (
	TaskType = "generate-valuation-narrative"
)

const (
	reasonDisabled  = "disabled"
	reasonTimeout   = "timeout"
	reasonError     = "error"
	reasonMalformed = "malformed"
)

type Handler struct {
	config       *Config
	generator    narrative.Generator
	store        listings.Store
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

// NewHandler accepts a nil generator when no model is configured; every job
// then completes without a narrative.
func NewHandler(config *Config, generator narrative.Generator, store listings.Store, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		generator:    generator,
		store:        store,
		logger:       scoped,
		errorHandler: errors.NewErrorHandler(scoped),
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
	if input.Valuation == nil {
		return nil, errors.NewInvalidInputError("valuation is required")
	}
	if h.generator == nil {
		return h.unavailable(input, reasonDisabled, nil), nil
	}

	listing := h.loadListing(ctx, input.ListingID)

	genCtx := ctx
	if h.config.NarrativeTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, h.config.NarrativeTimeout)
		defer cancel()
	}

	n, err := h.generator.Generate(genCtx, listing, input.Valuation)
	if err != nil {
		return h.unavailable(input, failureReason(err), err), nil
	}

	h.logger.Info("narrative generated", map[string]interface{}{
		"listingId":  input.ListingID,
		"highlights": len(n.Highlights),
	})
	if len(n.AdvisoryNumbers) > 0 {
		h.logger.Debug("model returned advisory figures; computed valuation kept", map[string]interface{}{
			"listingId": input.ListingID,
			"advisory":  n.AdvisoryNumbers,
		})
	}
	return &Output{NarrativeAvailable: true, Narrative: n}, nil
}

// loadListing enriches the prompt when the listing is stored. A lookup
// failure only costs prompt detail.
func (h *Handler) loadListing(ctx context.Context, listingID string) *models.Listing {
	if listingID == "" || h.store == nil {
		return nil
	}
	listing, err := h.store.GetFinancials(ctx, listingID)
	if err != nil {
		h.logger.Warn("listing lookup for narrative failed", map[string]interface{}{
			"listingId": listingID,
			"error":     err,
		})
		return nil
	}
	return listing
}

func (h *Handler) unavailable(input *Input, reason string, err error) *Output {
	metrics.NarrativeFailures.WithLabelValues(reason).Inc()

	fields := map[string]interface{}{
		"listingId": input.ListingID,
		"reason":    reason,
	}
	out := &Output{NarrativeAvailable: false, NarrativeError: reason}
	if err != nil {
		fields["error"] = err.Error()
	}
	h.logger.Warn("narrative unavailable, continuing with numeric valuation", fields)
	return out
}

func failureReason(err error) string {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return reasonTimeout
	case stderrors.Is(err, narrative.ErrEmptyResponse), stderrors.Is(err, narrative.ErrMissingSummary):
		return reasonMalformed
	default:
		return reasonError
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
