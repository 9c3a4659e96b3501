// internal/workers/leads/capture-valuation-lead/handler.go
package capturevaluationlead

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/format"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/common/metrics"
	"dealflow-workers/internal/common/observability"
	"dealflow-workers/internal/common/validation"
	"dealflow-workers/internal/common/zoho"
	"dealflow-workers/internal/models"
	"dealflow-workers/internal/valuation"
)

const (
	TaskType = "capture-valuation-lead"
)

const (
	duplicateLeadQuery = `
		SELECT id FROM leads
		WHERE lower(email) = $1 AND COALESCE(listing_id, '') = $2 AND created_at > $3
		ORDER BY created_at DESC
		LIMIT 1`

	insertLeadQuery = `
		INSERT INTO leads (
			id, listing_id, email, name, phone, company, vertical, revenue, sde,
			valuation_low, valuation_high, confidence, source, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	updateCRMIDQuery = `UPDATE leads SET crm_id = $1 WHERE id = $2`
)

// CRMClient is the part of the Zoho client used for lead sync.
type CRMClient interface {
	SearchLeadsByEmail(ctx context.Context, email string) ([]zoho.Lead, error)
	CreateLead(ctx context.Context, lead *zoho.Lead) (string, error)
}

type Handler struct {
	config       *Config
	db           *sql.DB
	crm          CRMClient
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	now          func() time.Time
}

// NewHandler accepts a nil crm; leads are then stored locally only.
func NewHandler(config *Config, db *sql.DB, crm CRMClient, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
		crm:          crm,
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
		return nil, errors.NewLeadValidationFailedError(fmt.Sprintf("parse input: %v", err))
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()
	return h.execute(ctx, &input)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := validation.LeadCaptureSchema.Validate(input)
	if err != nil {
		return nil, errors.NewLeadValidationFailedError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewLeadValidationFailedError(strings.Join(result.GetErrorMessages(), "; "))
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	now := h.now().UTC()

	if err := h.checkDuplicate(ctx, email, input.ListingID, now); err != nil {
		return nil, err
	}

	vertical, _ := valuation.ParseVertical(input.Vertical)
	table := h.config.Tables[vertical]
	if table == nil {
		return nil, errors.NewUnsupportedVerticalError(input.Vertical)
	}

	fin := input.Financials.toValuation(vertical)
	est, err := valuation.EstimateListing(fin, table, valuation.DeriveSignals(fin), &h.config.Financing, h.config.Options...)
	if err != nil {
		return nil, errors.FromValuationError(err)
	}
	metrics.RecordValuation(string(vertical), string(est.Valuation.Basis), est.Valuation.Confidence)

	lead := &models.ValuationLead{
		ID:            uuid.New().String(),
		Email:         email,
		Name:          strings.TrimSpace(input.Name),
		Phone:         input.Phone,
		Company:       input.Company,
		Vertical:      string(vertical),
		Revenue:       fin.Revenue,
		SDE:           fin.SDE,
		ValuationLow:  est.Valuation.ValuationLow,
		ValuationHigh: est.Valuation.ValuationHigh,
		Confidence:    est.Valuation.Confidence,
		Source:        models.LeadSourceValuationForm,
		CreatedAt:     now,
	}
	if input.ListingID != "" {
		lead.ListingID = &input.ListingID
	}

	if err := h.insertLead(ctx, lead); err != nil {
		return nil, err
	}

	h.logger.Info("valuation lead captured", map[string]interface{}{
		"leadId":        lead.ID,
		"vertical":      lead.Vertical,
		"valuationLow":  lead.ValuationLow,
		"valuationHigh": lead.ValuationHigh,
	})

	out := &Output{
		LeadID:     lead.ID,
		Valuation:  est.Valuation,
		Projection: format.ProjectEstimate(est),
		CreatedAt:  now.Format(time.RFC3339),
	}
	if crmID := h.syncCRM(ctx, lead, input.Financials.Description); crmID != "" {
		out.CRMID = crmID
		out.CRMSynced = true
	}
	return out, nil
}

func (h *Handler) checkDuplicate(ctx context.Context, email, listingID string, now time.Time) error {
	var existingID string
	err := h.db.QueryRowContext(ctx, duplicateLeadQuery, email, listingID, now.Add(-h.config.DuplicateWindow)).Scan(&existingID)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return errors.NewQueryExecutionFailedError("find_duplicate_lead", err)
	}

	h.logger.Info("duplicate lead rejected", map[string]interface{}{
		"existingLeadId": existingID,
		"listingId":      listingID,
	})
	return errors.NewDuplicateLeadError(existingID)
}

func (h *Handler) insertLead(ctx context.Context, lead *models.ValuationLead) error {
	_, err := h.db.ExecContext(ctx, insertLeadQuery,
		lead.ID,
		nullString(lead.ListingID),
		lead.Email,
		lead.Name,
		lead.Phone,
		lead.Company,
		lead.Vertical,
		nullFloat(lead.Revenue),
		nullFloat(lead.SDE),
		lead.ValuationLow,
		lead.ValuationHigh,
		lead.Confidence,
		lead.Source,
		lead.CreatedAt,
	)
	if err != nil {
		return errors.NewQueryExecutionFailedError("insert_lead", err)
	}
	return nil
}

// syncCRM returns the CRM record id, or "" when sync is off or failed.
// An existing CRM lead with the same email is reused.
func (h *Handler) syncCRM(ctx context.Context, lead *models.ValuationLead, description string) string {
	if !h.config.SyncCRM || h.crm == nil {
		return ""
	}

	crmID, err := h.findOrCreateCRMLead(ctx, lead, description)
	if err != nil {
		h.logger.Warn("crm lead sync failed", map[string]interface{}{
			"leadId": lead.ID,
			"error":  err.Error(),
		})
		return ""
	}

	if _, err := h.db.ExecContext(ctx, updateCRMIDQuery, crmID, lead.ID); err != nil {
		h.logger.Warn("failed to record crm id", map[string]interface{}{
			"leadId": lead.ID,
			"crmId":  crmID,
			"error":  err.Error(),
		})
	}
	lead.CRMID = &crmID
	return crmID
}

func (h *Handler) findOrCreateCRMLead(ctx context.Context, lead *models.ValuationLead, description string) (string, error) {
	existing, err := h.crm.SearchLeadsByEmail(ctx, lead.Email)
	if err != nil {
		return "", err
	}
	for _, l := range existing {
		if l.ID != "" {
			return l.ID, nil
		}
	}
	return h.crm.CreateLead(ctx, toCRMLead(lead, description))
}

func toCRMLead(lead *models.ValuationLead, description string) *zoho.Lead {
	first, last := splitName(lead.Name)
	l := &zoho.Lead{
		Email:         lead.Email,
		FirstName:     first,
		LastName:      last,
		Phone:         lead.Phone,
		Company:       lead.Company,
		Source:        models.LeadSourceValuationForm,
		Industry:      lead.Vertical,
		Description:   description,
		ValuationLow:  lead.ValuationLow,
		ValuationHigh: lead.ValuationHigh,
	}
	if lead.Revenue != nil {
		l.AnnualRevenue = *lead.Revenue
	}
	if lead.ListingID != nil {
		l.ListingID = *lead.ListingID
	}
	return l
}

// splitName puts everything but the last word in the first name. Zoho
// requires Last_Name, so a single word goes there.
func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
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
		"jobKey":    job.Key,
		"leadId":    output.LeadID,
		"crmSynced": output.CRMSynced,
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
