package memory

import (
	"testing"
	"time"

	"mailproxy/backend/internal/domain"
	"mailproxy/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(email string) *domain.Account {
	return &domain.Account{
		Email:      email,
		ProviderID: "provider-1",
		Token:      "token-1",
		Password:   "secret",
		DomainType: "mail_tm",
		Status:     domain.StatusActive,
		CreatedAt:  time.Now().UTC(),
	}
}

func newMessage(owner, id string) *domain.Message {
	return &domain.Message{
		MessageID:  id,
		OwnerEmail: owner,
		Sender:     "sender@example.com",
		Recipient:  owner,
		Subject:    "Test Subject",
		Intro:      "preview",
		TextBody:   "body",
		CreatedAt:  time.Now().UTC(),
	}
}

func TestMemoryStore_AccountRoundTrip(t *testing.T) {
	store := NewStore(24 * time.Hour)

	account := newAccount("a@x.com")
	require.NoError(t, store.AddAccount(account))

	got, err := store.GetAccount("a@x.com")
	require.NoError(t, err)
	assert.Equal(t, account.ProviderID, got.ProviderID)
	assert.Equal(t, account.Token, got.Token)
	assert.Equal(t, domain.StatusActive, got.Status)
}

func TestMemoryStore_DuplicateActiveAccount(t *testing.T) {
	store := NewStore(24 * time.Hour)

	require.NoError(t, store.AddAccount(newAccount("dup@x.com")))

	err := store.AddAccount(newAccount("dup@x.com"))
	assert.ErrorIs(t, err, storage.ErrAccountExists)

	// 删除后允许重新注册同一地址
	existed, err := store.RemoveAccount("dup@x.com")
	require.NoError(t, err)
	require.True(t, existed)
	assert.NoError(t, store.AddAccount(newAccount("dup@x.com")))
}

func TestMemoryStore_LazyExpiry(t *testing.T) {
	store := NewStore(24 * time.Hour)

	account := newAccount("old@x.com")
	account.CreatedAt = time.Now().Add(-24*time.Hour - time.Second)
	require.NoError(t, store.AddAccount(account))

	_, err := store.GetAccount("old@x.com")
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)

	// 重复读幂等，不崩溃、结果一致
	_, err = store.GetAccount("old@x.com")
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)
}

func TestMemoryStore_CleanupSweep(t *testing.T) {
	store := NewStore(24 * time.Hour)

	fresh := newAccount("fresh@x.com")
	require.NoError(t, store.AddAccount(fresh))

	stale := newAccount("stale@x.com")
	stale.CreatedAt = time.Now().Add(-25 * time.Hour)
	require.NoError(t, store.AddAccount(stale))

	count, err := store.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// 清扫幂等
	count, err = store.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = store.GetAccount("fresh@x.com")
	assert.NoError(t, err)
}

func TestMemoryStore_RemoveAccount(t *testing.T) {
	store := NewStore(24 * time.Hour)

	existed, err := store.RemoveAccount("ghost@x.com")
	require.NoError(t, err)
	assert.False(t, existed)

	require.NoError(t, store.AddAccount(newAccount("r@x.com")))
	existed, err = store.RemoveAccount("r@x.com")
	require.NoError(t, err)
	assert.True(t, existed)

	_, err = store.GetAccount("r@x.com")
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)
}

func TestMemoryStore_SaveMessageMerge(t *testing.T) {
	store := NewStore(24 * time.Hour)
	require.NoError(t, store.AddAccount(newAccount("m@x.com")))

	first := newMessage("m@x.com", "msg-1")
	first.Subject = "original subject"
	first.IsRead = false
	require.NoError(t, store.SaveMessage(first))

	// 重复抓取：主题变了、已读状态变了，只有已读状态被合并
	second := newMessage("m@x.com", "msg-1")
	second.Subject = "changed subject"
	second.IsRead = true
	require.NoError(t, store.SaveMessage(second))

	got, err := store.GetMessage("m@x.com", "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "original subject", got.Subject)
	assert.True(t, got.IsRead)
}

func TestMemoryStore_SaveMessageOwnerMissing(t *testing.T) {
	store := NewStore(24 * time.Hour)

	err := store.SaveMessage(newMessage("nobody@x.com", "msg-1"))
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)
}

func TestMemoryStore_ListMessagesOrdering(t *testing.T) {
	store := NewStore(24 * time.Hour)
	require.NoError(t, store.AddAccount(newAccount("l@x.com")))

	base := time.Now().UTC()
	for i, id := range []string{"oldest", "middle", "newest"} {
		msg := newMessage("l@x.com", id)
		msg.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveMessage(msg))
	}

	messages, err := store.ListMessages("l@x.com")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "newest", messages[0].MessageID)
	assert.Equal(t, "middle", messages[1].MessageID)
	assert.Equal(t, "oldest", messages[2].MessageID)
}

func TestMemoryStore_MarkRead(t *testing.T) {
	store := NewStore(24 * time.Hour)
	require.NoError(t, store.AddAccount(newAccount("rd@x.com")))
	require.NoError(t, store.SaveMessage(newMessage("rd@x.com", "msg-1")))

	require.NoError(t, store.MarkMessageRead("rd@x.com", "msg-1"))

	got, err := store.GetMessage("rd@x.com", "msg-1")
	require.NoError(t, err)
	assert.True(t, got.IsRead)

	err = store.MarkMessageRead("rd@x.com", "missing")
	assert.ErrorIs(t, err, storage.ErrMessageNotFound)
}

func TestMemoryStore_DeleteCascade(t *testing.T) {
	store := NewStore(24 * time.Hour)
	require.NoError(t, store.AddAccount(newAccount("c@x.com")))
	require.NoError(t, store.SaveMessage(newMessage("c@x.com", "msg-1")))
	require.NoError(t, store.SaveMessage(newMessage("c@x.com", "msg-2")))

	existed, err := store.RemoveAccount("c@x.com")
	require.NoError(t, err)
	require.True(t, existed)

	messages, err := store.ListMessages("c@x.com")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestMemoryStore_ExpiredAccountHidesMessages(t *testing.T) {
	store := NewStore(24 * time.Hour)

	account := newAccount("exp@x.com")
	require.NoError(t, store.AddAccount(account))
	require.NoError(t, store.SaveMessage(newMessage("exp@x.com", "msg-1")))

	// 把账户拨到过期线之后
	store.mu.Lock()
	store.accounts["exp@x.com"].CreatedAt = time.Now().Add(-25 * time.Hour)
	store.mu.Unlock()

	messages, err := store.ListMessages("exp@x.com")
	require.NoError(t, err)
	assert.Empty(t, messages)

	_, err = store.GetMessage("exp@x.com", "msg-1")
	assert.ErrorIs(t, err, storage.ErrMessageNotFound)
}

func TestMemoryStore_DomainEntries(t *testing.T) {
	store := NewStore(24 * time.Hour)

	md := &domain.MailDomain{
		ID:          "d-1",
		Domain:      "example.org",
		DisplayName: "Example",
		Kind:        domain.DomainKindCustom,
		IsActive:    true,
	}
	require.NoError(t, store.SaveDomain(md))

	err := store.SaveDomain(&domain.MailDomain{ID: "d-2", Domain: "example.org"})
	assert.ErrorIs(t, err, storage.ErrDomainExists)

	got, err := store.GetDomainByID("d-1")
	require.NoError(t, err)
	assert.Equal(t, "Example", got.DisplayName)

	require.NoError(t, store.SetDomainActive("d-1", false))
	got, err = store.GetDomainByID("d-1")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}
