package whatsapp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mamadbah2/pantry/internal/config"
	"github.com/mamadbah2/pantry/internal/domain/models"
	"github.com/mamadbah2/pantry/internal/service/commands"
	client "github.com/mamadbah2/pantry/pkg/clients/whatsapp"
)

type fakeClient struct {
	sent []client.SendTextMessageRequest
}

func (f *fakeClient) SendTextMessage(_ context.Context, req client.SendTextMessageRequest) (*client.SendTextMessageResponse, error) {
	f.sent = append(f.sent, req)
	return &client.SendTextMessageResponse{}, nil
}

type fakeDispatcher struct {
	got   []models.Command
	reply string
	err   error
}

func (f *fakeDispatcher) HandleCommand(_ context.Context, cmd models.Command, _ string) (string, error) {
	f.got = append(f.got, cmd)
	return f.reply, f.err
}

type fakeAI struct {
	out string
	err error
}

func (f fakeAI) TranslateToCommand(context.Context, string) (string, error) { return f.out, f.err }

func payload(body string) models.WebhookPayload {
	return models.WebhookPayload{Entry: []models.WebhookEntry{{Changes: []models.WebhookChange{{
		Value: models.WebhookValue{Messages: []models.InboundMessage{{From: "224622350064", ID: "wamid.1", Text: &models.TextContent{Body: body}}}},
	}}}}}
}

func TestVerifyWebhookToken(t *testing.T) {
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{VerifyToken: "secret"}, nil, nil, nil, nil)

	challenge, err := svc.VerifyWebhookToken("subscribe", "secret", "42")
	require.NoError(t, err)
	assert.Equal(t, "42", challenge)

	_, err = svc.VerifyWebhookToken("subscribe", "wrong", "42")
	assert.Error(t, err)
	_, err = svc.VerifyWebhookToken("unsubscribe", "secret", "42")
	assert.Error(t, err)
}

// TestHandleWebhook_SlashCommand dispatches and replies to the sender.
func TestHandleWebhook_SlashCommand(t *testing.T) {
	wa := &fakeClient{}
	dispatcher := &fakeDispatcher{reply: "Your stock:"}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, nil, dispatcher, nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), payload("/stock")))
	require.Len(t, dispatcher.got, 1)
	assert.Equal(t, models.CommandStock, dispatcher.got[0].Type)
	require.Len(t, wa.sent, 1)
	assert.Equal(t, "224622350064", wa.sent[0].To)
	assert.Equal(t, "Your stock:", wa.sent[0].Body)
}

// TestHandleWebhook_FreeText goes through the AI translation when configured.
func TestHandleWebhook_FreeText(t *testing.T) {
	wa := &fakeClient{}
	dispatcher := &fakeDispatcher{reply: "ok"}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, fakeAI{out: "/consume 17 200"}, dispatcher, nil)

	require.NoError(t, svc.HandleWebhook(context.Background(), payload("used 200g of item 17")))
	assert.Equal(t, models.CommandConsume, dispatcher.got[0].Type)
	assert.Equal(t, []string{"17", "200"}, dispatcher.got[0].Args)

	svc = NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, fakeAI{err: errors.New("down")}, dispatcher, nil)
	require.NoError(t, svc.HandleWebhook(context.Background(), payload("hello")))
	assert.Equal(t, models.CommandHelp, dispatcher.got[1].Type)
}

func TestHandleWebhook_ErrorReplies(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{commands.ErrUnknownSender, "not linked"},
		{commands.ErrInvalidArguments, "could not read"},
		{models.ErrNotFound, "No product with that id"},
		{&models.RemoteError{Op: "consume", Outcome: models.OutcomeReverted, Err: errors.New("x")}, "Saving failed"},
	}

	for _, tt := range tests {
		wa := &fakeClient{}
		svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, nil, &fakeDispatcher{err: tt.err}, nil)

		require.NoError(t, svc.HandleWebhook(context.Background(), payload("/consume 1 2")))
		require.Len(t, wa.sent, 1)
		assert.Contains(t, wa.sent[0].Body, tt.want)
	}
}

func TestHandleWebhook_IgnoresStatuses(t *testing.T) {
	wa := &fakeClient{}
	svc := NewMetaWhatsAppService(config.WhatsAppConfig{}, wa, nil, &fakeDispatcher{}, nil)

	p := models.WebhookPayload{Entry: []models.WebhookEntry{{Changes: []models.WebhookChange{{
		Value: models.WebhookValue{Statuses: []models.MessageStatus{{ID: "wamid.1", Status: "read"}}},
	}}}}}
	require.NoError(t, svc.HandleWebhook(context.Background(), p))
	assert.Empty(t, wa.sent)
}
