package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{FromEmail: "test@example.com"}, nil)
	if sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "test@example.com"}, nil)
	if sender == nil {
		t.Fatal("expected non-nil sender")
	}
	if sender.fromName != "SiteLead" {
		t.Errorf("expected default from name 'SiteLead', got %q", sender.fromName)
	}
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}
	err := sender.Send(context.Background(), EmailMessage{To: "recipient@example.com", Subject: "Test", Body: "Test body"})
	if err == nil {
		t.Error("expected error when client is nil")
	}
}

func TestNewEmailSender_FallsBackToStub(t *testing.T) {
	tests := []EmailConfig{
		{Provider: "sendgrid"},
		{Provider: "ses"},
		{Provider: ""},
		{Provider: "carrier-pigeon"},
	}
	for _, cfg := range tests {
		if _, ok := NewEmailSender(cfg, nil, nil).(*StubEmailSender); !ok {
			t.Errorf("provider %q: expected stub sender", cfg.Provider)
		}
	}
	if _, ok := NewEmailSender(EmailConfig{Provider: "SendGrid", SendGridAPIKey: "k"}, nil, nil).(*SendGridSender); !ok {
		t.Error("expected sendgrid sender when key is set")
	}
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_BuildsMessage(t *testing.T) {
	client := &fakeSES{}
	sender := newSESSender(client, SESConfig{FromEmail: "hello@studio.test", ConfigurationSet: "alerts"}, nil)

	err := sender.Send(context.Background(), EmailMessage{To: "owner@studio.test", Subject: "Hi", Body: "plain", HTML: "<p>html</p>"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	in := client.input
	if got := aws.ToString(in.FromEmailAddress); got != "SiteLead <hello@studio.test>" {
		t.Errorf("unexpected from %q", got)
	}
	if aws.ToString(in.ConfigurationSetName) != "alerts" {
		t.Errorf("expected configuration set to be applied")
	}
	if in.Destination.ToAddresses[0] != "owner@studio.test" {
		t.Errorf("unexpected destination %v", in.Destination.ToAddresses)
	}
	if aws.ToString(in.Content.Simple.Body.Text.Data) != "plain" || aws.ToString(in.Content.Simple.Body.Html.Data) != "<p>html</p>" {
		t.Errorf("unexpected body %+v", in.Content.Simple.Body)
	}
}

func TestSESSender_WrapsErrors(t *testing.T) {
	boom := errors.New("throttled")
	sender := newSESSender(&fakeSES{err: boom}, SESConfig{FromEmail: "a@b.test"}, nil)
	if err := sender.Send(context.Background(), EmailMessage{To: "x@y.test", Subject: "s", Body: "b"}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestStubEmailSender_Send(t *testing.T) {
	if err := NewStubEmailSender(nil).Send(context.Background(), EmailMessage{To: "r@example.com", Subject: "s"}); err != nil {
		t.Errorf("stub sender should not return error, got: %v", err)
	}
}
