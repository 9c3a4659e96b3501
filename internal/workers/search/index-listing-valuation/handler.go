// internal/workers/search/index-listing-valuation/handler.go
package indexlistingvaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/common/metrics"
	"dealflow-workers/internal/common/observability"
)

const (
	TaskType = "index-listing-valuation"
)

const (
	indexNotFoundException   = "index_not_found_exception"
	documentMissingException = "document_missing_exception"
	resultDocumentMissing    = "document_missing"
)

type Handler struct {
	config       *Config
	client       *elasticsearch.Client
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	now          func() time.Time
}

func NewHandler(config *Config, client *elasticsearch.Client, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		client:       client,
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

	now := h.now().UTC()
	updatedAt := input.ComputedAt
	if updatedAt == "" {
		updatedAt = now.Format(time.RFC3339)
	} else if _, err := time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("computedAt: %v", err))
	}

	v := input.Valuation
	body, err := json.Marshal(updateRequest{Doc: valuationDoc{
		ValuationLow:       v.ValuationLow,
		ValuationHigh:      v.ValuationHigh,
		AdjustedMultiple:   v.AdjustedMultiple,
		Confidence:         v.Confidence,
		ValuationBasis:     string(v.Basis),
		ValuationUpdatedAt: updatedAt,
	}})
	if err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("encode document: %v", err))
	}

	req := esapi.UpdateRequest{
		Index:      h.config.Index,
		DocumentID: input.ListingID,
		Body:       bytes.NewReader(body),
		Refresh:    h.config.Refresh,
	}
	if h.config.RetryOnConflict > 0 {
		retries := h.config.RetryOnConflict
		req.RetryOnConflict = &retries
	}

	res, err := req.Do(ctx, h.client)
	if err != nil {
		return nil, errors.NewSearchIndexFailedError(input.ListingID, err)
	}
	defer res.Body.Close()

	output := &Output{
		ListingID: input.ListingID,
		Index:     h.config.Index,
		IndexedAt: now.Format(time.RFC3339),
	}

	if res.IsError() {
		return h.handleErrorResponse(input.ListingID, res, output)
	}

	var ur updateResponse
	if err := json.NewDecoder(res.Body).Decode(&ur); err != nil {
		return nil, errors.NewSearchIndexFailedError(input.ListingID, fmt.Errorf("decode response: %w", err))
	}
	output.Indexed = true
	output.Result = ur.Result
	output.Version = ur.Version

	h.logger.Info("listing valuation indexed", map[string]interface{}{
		"listingId": input.ListingID,
		"index":     h.config.Index,
		"result":    ur.Result,
		"version":   ur.Version,
	})
	return output, nil
}

// handleErrorResponse maps a missing index to a non-retryable failure. A
// listing not yet in the index completes unindexed.
func (h *Handler) handleErrorResponse(listingID string, res *esapi.Response, output *Output) (*Output, error) {
	raw, _ := io.ReadAll(res.Body)

	var er errorResponse
	_ = json.Unmarshal(raw, &er)

	if res.StatusCode == http.StatusNotFound {
		switch er.Error.Type {
		case indexNotFoundException:
			return nil, errors.NewIndexNotFoundError(h.config.Index)
		case documentMissingException:
			h.logger.Warn("listing missing from search index", map[string]interface{}{
				"listingId": listingID,
				"index":     h.config.Index,
			})
			output.Result = resultDocumentMissing
			return output, nil
		}
	}

	reason := er.Error.Reason
	if reason == "" {
		reason = string(raw)
	}
	return nil, errors.NewSearchIndexFailedError(listingID, fmt.Errorf("%s: %s", res.Status(), reason))
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
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
