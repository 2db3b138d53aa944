package notify

import (
	"context"
	"errors"
	"testing"
)

type fakeTextSender struct {
	err   error
	calls int
}

func (f *fakeTextSender) SendMessage(_ context.Context, _, _ string) error {
	f.calls++
	return f.err
}

type fakeEmailSender struct {
	err   error
	calls int
}

func (f *fakeEmailSender) SendMessage(_ context.Context, _, _, _ string) error {
	f.calls++
	return f.err
}

func TestDispatchChannelPriority(t *testing.T) {
	sendFailed := errors.New("send failed")

	tests := []struct {
		name          string
		chatErr       error
		smsErr        error
		emailErr      error
		rcpt          Recipient
		wantChannel   string
		wantDelivered bool
		wantAttempted []string
	}{
		{
			name:          "whatsapp succeeds first",
			rcpt:          Recipient{Name: "Amina", Phone: "+254712345678", Email: "amina@example.com"},
			wantChannel:   ChannelWhatsApp,
			wantDelivered: true,
			wantAttempted: []string{ChannelWhatsApp},
		},
		{
			name:          "falls back to sms when whatsapp fails",
			chatErr:       sendFailed,
			rcpt:          Recipient{Name: "Amina", Phone: "+254712345678", Email: "amina@example.com"},
			wantChannel:   ChannelSMS,
			wantDelivered: true,
			wantAttempted: []string{ChannelWhatsApp, ChannelSMS},
		},
		{
			name:          "falls back to email when both text channels fail",
			chatErr:       sendFailed,
			smsErr:        sendFailed,
			rcpt:          Recipient{Name: "Amina", Phone: "+254712345678", Email: "amina@example.com"},
			wantChannel:   ChannelEmail,
			wantDelivered: true,
			wantAttempted: []string{ChannelWhatsApp, ChannelSMS, ChannelEmail},
		},
		{
			name:          "skips text channels without a phone number",
			rcpt:          Recipient{Name: "Amina", Email: "amina@example.com"},
			wantChannel:   ChannelEmail,
			wantDelivered: true,
			wantAttempted: []string{ChannelEmail},
		},
		{
			name:          "all channels fail",
			chatErr:       sendFailed,
			smsErr:        sendFailed,
			emailErr:      sendFailed,
			rcpt:          Recipient{Name: "Amina", Phone: "+254712345678", Email: "amina@example.com"},
			wantDelivered: false,
			wantAttempted: []string{ChannelWhatsApp, ChannelSMS, ChannelEmail},
		},
		{
			name:          "no contact information",
			rcpt:          Recipient{Name: "Amina"},
			wantDelivered: false,
			wantAttempted: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := &fakeTextSender{err: tt.chatErr}
			smsSender := &fakeTextSender{err: tt.smsErr}
			emailSender := &fakeEmailSender{err: tt.emailErr}

			d := NewDispatcher(chat, smsSender, emailSender, nil)
			result := d.Dispatch(context.Background(), tt.rcpt, Message{Subject: "Hello", Body: "World"})

			if result.Delivered != tt.wantDelivered {
				t.Errorf("Delivered = %v, want %v", result.Delivered, tt.wantDelivered)
			}
			if result.Channel != tt.wantChannel {
				t.Errorf("Channel = %q, want %q", result.Channel, tt.wantChannel)
			}
			if len(result.Attempted) != len(tt.wantAttempted) {
				t.Fatalf("Attempted = %v, want %v", result.Attempted, tt.wantAttempted)
			}
			for i, channel := range tt.wantAttempted {
				if result.Attempted[i] != channel {
					t.Errorf("Attempted[%d] = %q, want %q", i, result.Attempted[i], channel)
				}
			}
		})
	}
}

func TestDispatchStopsAfterFirstSuccess(t *testing.T) {
	chat := &fakeTextSender{}
	smsSender := &fakeTextSender{}
	emailSender := &fakeEmailSender{}

	d := NewDispatcher(chat, smsSender, emailSender, nil)
	d.Dispatch(context.Background(), Recipient{Phone: "+254712345678", Email: "a@b.co"}, Message{Body: "hi"})

	if chat.calls != 1 {
		t.Errorf("chat calls = %d, want 1", chat.calls)
	}
	if smsSender.calls != 0 {
		t.Errorf("sms calls = %d, want 0", smsSender.calls)
	}
	if emailSender.calls != 0 {
		t.Errorf("email calls = %d, want 0", emailSender.calls)
	}
}

func TestDispatchSkipsUnconfiguredChannels(t *testing.T) {
	emailSender := &fakeEmailSender{}

	d := NewDispatcher(nil, nil, emailSender, nil)
	result := d.Dispatch(context.Background(), Recipient{Phone: "+254712345678", Email: "a@b.co"}, Message{Body: "hi"})

	if !result.Delivered || result.Channel != ChannelEmail {
		t.Errorf("result = %+v, want delivery via email", result)
	}
}
