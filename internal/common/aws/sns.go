// internal/common/aws/sns.go
package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/smithy-go"
)

// SNSAPI is the slice of the SNS client used here; *sns.Client satisfies it.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSClient struct {
	client   SNSAPI
	senderID string
	smsType  string
}

func NewSNSClient(ctx context.Context, region, senderID, smsType string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return NewSNSClientFromAPI(sns.NewFromConfig(cfg), senderID, smsType), nil
}

func NewSNSClientFromAPI(api SNSAPI, senderID, smsType string) *SNSClient {
	if smsType == "" {
		smsType = "Transactional"
	}
	return &SNSClient{client: api, senderID: senderID, smsType: smsType}
}

// SendSMS publishes body directly to an E.164 number and returns the SNS message id.
func (s *SNSClient) SendSMS(ctx context.Context, to, body string) (string, error) {
	attrs := map[string]snstypes.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    awssdk.String("String"),
			StringValue: awssdk.String(s.smsType),
		},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = snstypes.MessageAttributeValue{
			DataType:    awssdk.String("String"),
			StringValue: awssdk.String(s.senderID),
		}
	}

	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       awssdk.String(to),
		Message:           awssdk.String(body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return "", fmt.Errorf("sns publish: %w", err)
	}
	return awssdk.ToString(out.MessageId), nil
}

// IsInvalidPhoneNumber reports whether SNS rejected the destination number
// itself rather than failing to send.
func IsInvalidPhoneNumber(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "InvalidParameter", "InvalidParameterValue":
		// also returned for sender and message errors
		return strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "phonenumber")
	}
	return false
}
