package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailproxy/backend/internal/mailtm"
	"mailproxy/backend/internal/storage"
)

func TestMessageService_RefreshSyncsInbox(t *testing.T) {
	provider := newFakeProvider()
	accounts, messages, _, _ := newTestServices(provider)

	account, err := accounts.Generate(context.Background(), GenerateInput{Username: "inbox"})
	require.NoError(t, err)

	now := time.Now().UTC()
	provider.inbox[account.Token] = []mailtm.MessageSummary{
		{
			ID:        "msg-old",
			From:      mailtm.Address{Address: "first@example.com"},
			Subject:   "第一封",
			Intro:     "早到的邮件",
			CreatedAt: now.Add(-time.Hour),
		},
		{
			ID:        "msg-new",
			From:      mailtm.Address{Address: "second@example.com"},
			Subject:   "第二封",
			CreatedAt: now,
		},
	}

	list, err := messages.Refresh(context.Background(), account.Email)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// 倒序排列
	assert.Equal(t, "msg-new", list[0].MessageID)
	assert.Equal(t, "msg-old", list[1].MessageID)
	assert.Equal(t, "first@example.com", list[1].Sender)
	assert.False(t, list[0].IsRead)
}

func TestMessageService_RefreshMergesReadState(t *testing.T) {
	provider := newFakeProvider()
	accounts, messages, _, store := newTestServices(provider)

	account, err := accounts.Generate(context.Background(), GenerateInput{Username: "merge"})
	require.NoError(t, err)

	provider.inbox[account.Token] = []mailtm.MessageSummary{
		{ID: "msg-1", Subject: "原始主题", Seen: false, CreatedAt: time.Now().UTC()},
	}
	_, err = messages.Refresh(context.Background(), account.Email)
	require.NoError(t, err)

	// 上游状态变为已读，重复同步仅更新已读标记
	provider.inbox[account.Token][0].Seen = true
	provider.inbox[account.Token][0].Subject = "被改掉的主题"

	list, err := messages.Refresh(context.Background(), account.Email)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsRead)
	assert.Equal(t, "原始主题", list[0].Subject)

	stored, err := store.GetMessage(account.Email, "msg-1")
	require.NoError(t, err)
	assert.True(t, stored.IsRead)
}

func TestMessageService_GetFetchesBodyAndMarksRead(t *testing.T) {
	provider := newFakeProvider()
	accounts, messages, _, store := newTestServices(provider)

	account, err := accounts.Generate(context.Background(), GenerateInput{Username: "reader"})
	require.NoError(t, err)

	createdAt := time.Now().UTC()
	provider.inbox[account.Token] = []mailtm.MessageSummary{
		{ID: "msg-1", From: mailtm.Address{Address: "sender@example.com"}, Subject: "正文测试", CreatedAt: createdAt},
	}
	provider.details["msg-1"] = &mailtm.MessageDetail{
		ID:        "msg-1",
		From:      mailtm.Address{Address: "sender@example.com"},
		Subject:   "正文测试",
		Text:      "plain body",
		HTML:      []string{"<p>html body</p>"},
		CreatedAt: createdAt,
	}

	_, err = messages.Refresh(context.Background(), account.Email)
	require.NoError(t, err)

	message, err := messages.Get(context.Background(), account.Email, "msg-1")
	require.NoError(t, err)

	assert.Equal(t, "plain body", message.TextBody)
	assert.Equal(t, "<p>html body</p>", message.HTMLBody)
	assert.True(t, message.IsRead)

	// 本地已标记已读，上游同步了已读状态
	stored, err := store.GetMessage(account.Email, "msg-1")
	require.NoError(t, err)
	assert.True(t, stored.IsRead)
	assert.Contains(t, provider.seenMessages, "msg-1")
}

func TestMessageService_GetUnknownMessageFromProvider(t *testing.T) {
	provider := newFakeProvider()
	accounts, messages, _, _ := newTestServices(provider)

	account, err := accounts.Generate(context.Background(), GenerateInput{Username: "missing"})
	require.NoError(t, err)

	_, err = messages.Get(context.Background(), account.Email, "no-such-message")
	assert.ErrorIs(t, err, storage.ErrMessageNotFound)
}

func TestMessageService_GetDirectFromProvider(t *testing.T) {
	provider := newFakeProvider()
	accounts, messages, _, store := newTestServices(provider)

	account, err := accounts.Generate(context.Background(), GenerateInput{Username: "direct"})
	require.NoError(t, err)

	// 未经过列表同步，直接按 ID 读取
	provider.details["msg-x"] = &mailtm.MessageDetail{
		ID:        "msg-x",
		From:      mailtm.Address{Address: "sender@example.com"},
		Subject:   "直接读取",
		Text:      "body",
		CreatedAt: time.Now().UTC(),
	}

	message, err := messages.Get(context.Background(), account.Email, "msg-x")
	require.NoError(t, err)
	assert.Equal(t, "body", message.TextBody)
	assert.True(t, message.IsRead)

	// 抓取结果落库
	_, err = store.GetMessage(account.Email, "msg-x")
	require.NoError(t, err)
}

func TestMessageService_Delete(t *testing.T) {
	provider := newFakeProvider()
	accounts, messages, _, store := newTestServices(provider)

	account, err := accounts.Generate(context.Background(), GenerateInput{Username: "deleter"})
	require.NoError(t, err)

	provider.inbox[account.Token] = []mailtm.MessageSummary{
		{ID: "msg-1", Subject: "待删除", CreatedAt: time.Now().UTC()},
	}
	_, err = messages.Refresh(context.Background(), account.Email)
	require.NoError(t, err)

	require.NoError(t, messages.Delete(context.Background(), account.Email, "msg-1"))

	assert.Contains(t, provider.deletedMessages, "msg-1")
	_, err = store.GetMessage(account.Email, "msg-1")
	assert.ErrorIs(t, err, storage.ErrMessageNotFound)
}

func TestMessageService_RefreshProviderFailure(t *testing.T) {
	provider := newFakeProvider()
	accounts, messages, _, _ := newTestServices(provider)

	account, err := accounts.Generate(context.Background(), GenerateInput{Username: "broken"})
	require.NoError(t, err)

	provider.listErr = &mailtm.APIError{StatusCode: 500, Body: "upstream down"}

	_, err = messages.Refresh(context.Background(), account.Email)
	require.Error(t, err)

	var apiErr *mailtm.APIError
	assert.ErrorAs(t, err, &apiErr)
}
