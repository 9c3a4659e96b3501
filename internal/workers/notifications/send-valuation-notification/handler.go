// internal/workers/notifications/send-valuation-notification/handler.go
package sendvaluationnotification

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"dealflow-workers/internal/common/aws"
	"dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/format"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/common/metrics"
	"dealflow-workers/internal/common/observability"
	"dealflow-workers/internal/models"
)

const (
	TaskType = "send-valuation-notification"
)

// Define interfaces for mocking
type EmailSender interface {
	SendEmail(ctx context.Context, msg aws.EmailMessage) (string, error)
}

type TopicPublisher interface {
	Publish(ctx context.Context, subject, message string, attrs map[string]string) (string, error)
}

type ChatPoster interface {
	PostJSON(ctx context.Context, url string, headers map[string]string, payload, out interface{}) error
}

type Handler struct {
	config       *Config
	email        EmailSender
	sms          TopicPublisher
	chat         ChatPoster
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
	templateMap  map[string]map[string]string
	now          func() time.Time
}

// NewHandler treats a nil sender as a disabled channel.
func NewHandler(config *Config, email EmailSender, sms TopicPublisher, chat ChatPoster, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		email:        email,
		sms:          sms,
		chat:         chat,
		logger:       scoped,
		errorHandler: errors.NewErrorHandler(scoped),
		templateMap:  loadTemplates(),
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

	data := h.templateData(input)
	hotDeal := input.Valuation.ValuationHigh >= h.config.HotDealThreshold

	notification := &models.ValuationNotification{
		ID:        uuid.New().String(),
		ListingID: input.ListingID,
		SentAt:    h.now().UTC().Format(time.RFC3339),
	}
	notification.Deliveries = []models.ChannelDelivery{
		h.sendEmail(ctx, data),
		h.postChat(ctx, data),
		h.publishAlert(ctx, data, hotDeal),
	}

	var failed []string
	var lastErr string
	attempted := 0
	for _, d := range notification.Deliveries {
		metrics.NotificationsSent.WithLabelValues(d.Channel, d.Status).Inc()
		switch d.Status {
		case models.DeliverySent:
			attempted++
		case models.DeliveryFailed:
			attempted++
			failed = append(failed, d.Channel)
			lastErr = d.Error
		}
	}

	// A job fails only when every attempted channel failed.
	if attempted > 0 && !notification.Delivered() {
		return nil, errors.NewNotificationSendFailedError(strings.Join(failed, ","), stderrors.New(lastErr))
	}

	status := models.DeliveryDisabled
	if notification.Delivered() {
		status = models.DeliverySent
	}

	h.logger.Info("valuation notification processed", map[string]interface{}{
		"listingId":      input.ListingID,
		"notificationId": notification.ID,
		"status":         status,
		"failedChannels": failed,
		"hotDeal":        hotDeal,
	})

	return &Output{
		NotificationID: notification.ID,
		ListingID:      notification.ListingID,
		Status:         status,
		HotDeal:        hotDeal,
		Deliveries:     notification.Deliveries,
		SentAt:         notification.SentAt,
	}, nil
}

func (h *Handler) templateData(input *Input) map[string]string {
	p := format.Project(input.Valuation, input.Financing)

	title := input.Title
	if title == "" {
		title = "Listing " + input.ListingID
	}
	summary := ""
	if input.Narrative != nil {
		summary = input.Narrative.Summary
	}
	link := ""
	if h.config.SiteURL != "" {
		link = strings.TrimRight(h.config.SiteURL, "/") + "/listings/" + input.ListingID
	}

	return map[string]string{
		"title":             title,
		"listingId":         input.ListingID,
		"valuationRange":    p.ValuationRange,
		"confidence":        p.Confidence,
		"adjustedMultiple":  p.AdjustedMultiple,
		"price":             p.Price,
		"downPayment":       p.DownPayment,
		"monthlyPayment":    p.MonthlyPayment,
		"cashFlowAfterDebt": p.CashFlowAfterDebt,
		"priceToSde":        p.PriceToSDE,
		"summary":           summary,
		"link":              link,
	}
}

func (h *Handler) sendEmail(ctx context.Context, data map[string]string) models.ChannelDelivery {
	d := models.ChannelDelivery{Channel: models.ChannelEmail}
	if !h.config.EmailEnabled || h.email == nil {
		d.Status = models.DeliveryDisabled
		return d
	}
	if len(h.config.BrokerEmails) == 0 {
		d.Status = models.DeliverySkipped
		d.Error = "no broker recipients configured"
		return d
	}

	tmpl := h.templateMap[templateEmail]
	escaped := make(map[string]string, len(data))
	for k, v := range data {
		escaped[k] = html.EscapeString(v)
	}

	id, err := h.email.SendEmail(ctx, aws.EmailMessage{
		To:       h.config.BrokerEmails,
		Subject:  renderTemplate(tmpl["subject"], data),
		TextBody: renderTemplate(tmpl["text"], data),
		HTMLBody: renderTemplate(tmpl["html"], escaped),
	})
	return h.finish(d, id, err)
}

func (h *Handler) postChat(ctx context.Context, data map[string]string) models.ChannelDelivery {
	d := models.ChannelDelivery{Channel: models.ChannelChat}
	if !h.config.ChatEnabled || h.chat == nil {
		d.Status = models.DeliveryDisabled
		return d
	}

	msg := chatMessage{Text: renderTemplate(h.templateMap[templateChat]["text"], data)}
	err := h.chat.PostJSON(ctx, h.config.ChatWebhookURL, nil, msg, nil)
	return h.finish(d, "", err)
}

func (h *Handler) publishAlert(ctx context.Context, data map[string]string, hotDeal bool) models.ChannelDelivery {
	d := models.ChannelDelivery{Channel: models.ChannelSMS}
	if !h.config.SMSEnabled || h.sms == nil {
		d.Status = models.DeliveryDisabled
		return d
	}
	if !hotDeal {
		d.Status = models.DeliverySkipped
		return d
	}

	tmpl := h.templateMap[templateSMS]
	id, err := h.sms.Publish(ctx, renderTemplate(tmpl["subject"], data), renderTemplate(tmpl["text"], data),
		map[string]string{"listingId": data["listingId"], "event": "hot_deal"})
	return h.finish(d, id, err)
}

func (h *Handler) finish(d models.ChannelDelivery, messageID string, err error) models.ChannelDelivery {
	if err != nil {
		h.logger.Error("notification channel failed", map[string]interface{}{
			"channel": d.Channel,
			"error":   err,
		})
		d.Status = models.DeliveryFailed
		d.Error = err.Error()
		return d
	}
	d.Status = models.DeliverySent
	d.MessageID = messageID
	return d
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

// renderTemplate replaces {{key}} placeholders in one pass over the template
// and drops unknown ones. Substituted values are copied verbatim, so braces
// inside a listing title are never expanded or stripped.
func renderTemplate(tmpl string, data map[string]string) string {
	var b strings.Builder
	b.Grow(len(tmpl))
	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(rest[start+2:], "}}")
		if end == -1 {
			break
		}
		b.WriteString(rest[:start])
		b.WriteString(data[rest[start+2:start+2+end]])
		rest = rest[start+2+end+2:]
	}
	b.WriteString(rest)
	return b.String()
}

func loadTemplates() map[string]map[string]string {
	return map[string]map[string]string{
		templateEmail: {
			"subject": "Valuation ready: {{title}} ({{valuationRange}})",
			"text": "{{title}}\n\n" +
				"Estimated value: {{valuationRange}}\n" +
				"Adjusted multiple: {{adjustedMultiple}}\n" +
				"Confidence: {{confidence}}\n\n" +
				"Price: {{price}}\n" +
				"Down payment: {{downPayment}}\n" +
				"Monthly payment: {{monthlyPayment}}\n" +
				"Cash flow after debt: {{cashFlowAfterDebt}}\n" +
				"Price to SDE: {{priceToSde}}\n\n" +
				"{{summary}}\n{{link}}",
			"html": "<h2>{{title}}</h2>" +
				"<p><strong>Estimated value:</strong> {{valuationRange}}<br>" +
				"<strong>Adjusted multiple:</strong> {{adjustedMultiple}}<br>" +
				"<strong>Confidence:</strong> {{confidence}}</p>" +
				"<table>" +
				"<tr><td>Price</td><td>{{price}}</td></tr>" +
				"<tr><td>Down payment</td><td>{{downPayment}}</td></tr>" +
				"<tr><td>Monthly payment</td><td>{{monthlyPayment}}</td></tr>" +
				"<tr><td>Cash flow after debt</td><td>{{cashFlowAfterDebt}}</td></tr>" +
				"<tr><td>Price to SDE</td><td>{{priceToSde}}</td></tr>" +
				"</table><p>{{summary}}</p><p>{{link}}</p>",
		},
		templateChat: {
			"text": "*{{title}}* valued at {{valuationRange}} ({{adjustedMultiple}}, {{confidence}} confidence). " +
				"Monthly payment {{monthlyPayment}}. {{link}}",
		},
		templateSMS: {
			"subject": "Hot deal: {{title}}",
			"text":    "Hot deal {{title}}: {{valuationRange}}, {{priceToSde}} SDE. {{link}}",
		},
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
