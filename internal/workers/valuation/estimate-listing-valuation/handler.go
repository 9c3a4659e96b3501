// internal/workers/valuation/estimate-listing-valuation/handler.go
package estimatelistingvaluation

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/format"
	"dealflow-workers/internal/common/listings"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/common/metrics"
	"dealflow-workers/internal/common/observability"
	"dealflow-workers/internal/models"
	"dealflow-workers/internal/valuation"
)

const (
	TaskType = "estimate-listing-valuation"
)

type Handler struct {
	config       *Config
	store        listings.Store
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	now          func() time.Time
}

func NewHandler(config *Config, store listings.Store, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		store:        store,
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
	listing, err := h.resolveListing(ctx, input)
	if err != nil {
		return nil, err
	}

	slug := listing.VerticalSlug
	if input.Vertical != "" {
		slug = input.Vertical
	}
	vertical, ok := valuation.ParseVertical(slug)
	table := h.config.Tables[vertical]
	if !ok || table == nil {
		return nil, errors.NewUnsupportedVerticalError(slug)
	}

	for _, s := range input.Signals {
		if !valuation.KnownFactor(s.Factor) {
			h.logger.Warn("ignoring unknown adjustment factor", map[string]interface{}{
				"factor":    string(s.Factor),
				"listingId": listing.ID,
			})
		}
	}

	fin := listing.Financials()
	fin.VerticalSlug = vertical
	signals := valuation.MergeSignals(input.Signals, valuation.DeriveSignals(fin))
	financing := h.financingFor(input.Financing)

	est, err := valuation.EstimateListing(fin, table, signals, &financing, h.config.Options...)
	if err != nil {
		return nil, errors.FromValuationError(err)
	}

	metrics.RecordValuation(string(vertical), string(est.Valuation.Basis), est.Valuation.Confidence)

	h.logger.Info("valuation estimated", map[string]interface{}{
		"listingId":        listing.ID,
		"vertical":         string(vertical),
		"basis":            string(est.Valuation.Basis),
		"valuationLow":     est.Valuation.ValuationLow,
		"valuationHigh":    est.Valuation.ValuationHigh,
		"adjustedMultiple": est.Valuation.AdjustedMultiple,
		"confidence":       est.Valuation.Confidence,
	})

	return &Output{
		ListingID:      listing.ID,
		Vertical:       string(vertical),
		Valuation:      est.Valuation,
		Financing:      est.Financing,
		FinancingPrice: est.FinancingPrice,
		Projection:     format.ProjectEstimate(est),
		ComputedAt:     h.now().UTC().Format(time.RFC3339Nano),
	}, nil
}

func (h *Handler) resolveListing(ctx context.Context, input *Input) (*models.Listing, error) {
	listingID := strings.TrimSpace(input.ListingID)
	if listingID != "" {
		listing, err := h.store.GetFinancials(ctx, listingID)
		if stderrors.Is(err, listings.ErrListingNotFound) {
			return nil, errors.NewListingNotFoundError(listingID)
		}
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("get_listing_financials", err)
		}
		return listing, nil
	}

	if len(input.Financials) == 0 {
		return nil, errors.NewInvalidInputError("listingId or financials is required")
	}
	listing, err := models.ListingFromRow(input.Financials)
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("financials: %v", err))
	}
	return listing, nil
}

func (h *Handler) financingFor(o *FinancingOverrides) valuation.FinancingConfig {
	cfg := h.config.Financing
	if o == nil {
		return cfg
	}
	if o.DownPaymentFraction != nil {
		cfg.DownPaymentFraction = *o.DownPaymentFraction
	}
	if o.AnnualInterestRate != nil {
		cfg.AnnualInterestRate = *o.AnnualInterestRate
	}
	if o.TermMonths != nil {
		cfg.TermMonths = *o.TermMonths
	}
	return cfg
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
