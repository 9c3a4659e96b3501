// internal/common/aws/ses.go
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailMessage is a rendered email ready to hand to SES.
type EmailMessage struct {
	To       []string
	Subject  string
	HTMLBody string
	TextBody string
}

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESClient struct {
	client    sesAPI
	fromEmail string
}

func NewSESClient(ctx context.Context, region, fromEmail string) (*SESClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return &SESClient{client: ses.NewFromConfig(cfg), fromEmail: fromEmail}, nil
}

// SendEmail delivers msg and returns the SES message id.
func (s *SESClient) SendEmail(ctx context.Context, msg EmailMessage) (string, error) {
	if len(msg.To) == 0 {
		return "", fmt.Errorf("email has no recipients")
	}

	body := &types.Body{}
	if msg.HTMLBody != "" {
		body.Html = &types.Content{Charset: awssdk.String("UTF-8"), Data: awssdk.String(msg.HTMLBody)}
	}
	if msg.TextBody != "" {
		body.Text = &types.Content{Charset: awssdk.String("UTF-8"), Data: awssdk.String(msg.TextBody)}
	}

	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      awssdk.String(s.fromEmail),
		Destination: &types.Destination{ToAddresses: msg.To},
		Message: &types.Message{
			Subject: &types.Content{Charset: awssdk.String("UTF-8"), Data: awssdk.String(msg.Subject)},
			Body:    body,
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send failed: %w", err)
	}
	return awssdk.ToString(out.MessageId), nil
}
