// internal/workers/leads/calculate-financing/handler.go
package calculatefinancing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/format"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/common/metrics"
	"dealflow-workers/internal/common/observability"
	"dealflow-workers/internal/common/validation"
	"dealflow-workers/internal/valuation"
)

const (
	TaskType = "calculate-financing"
)

type Handler struct {
	config       *Config
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
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

	var input Input
	var output *Output
	err := json.Unmarshal([]byte(job.Variables), &input)
	if err != nil {
		err = errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	} else {
		output, err = h.execute(ctx, &input)
	}
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := validation.FinancingRequestSchema.Validate(input)
	if err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewInvalidInputError(strings.Join(result.GetErrorMessages(), "; "))
	}

	cfg := h.config.Financing
	if o := input.Financing; o != nil {
		if o.DownPaymentFraction != nil {
			cfg.DownPaymentFraction = *o.DownPaymentFraction
		}
		if o.AnnualInterestRate != nil {
			cfg.AnnualInterestRate = *o.AnnualInterestRate
		}
		if o.TermMonths != nil {
			cfg.TermMonths = *o.TermMonths
		}
	}

	sde := 0.0
	if input.SDE != nil {
		sde = *input.SDE
	}

	scenario, err := valuation.ComputeFinancing(*input.Price, sde, &cfg)
	if err != nil {
		return nil, errors.FromValuationError(err)
	}

	h.logger.Info("financing calculated", map[string]interface{}{
		"listingId":         input.ListingID,
		"price":             scenario.Price,
		"monthlyPayment":    scenario.MonthlyPayment,
		"cashFlowAfterDebt": scenario.CashFlowAfterDebt,
		"multiple":          scenario.Multiple.String(),
	})

	return &Output{
		ListingID:  input.ListingID,
		Financing:  scenario,
		Projection: format.ProjectFinancing(scenario),
	}, nil
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
