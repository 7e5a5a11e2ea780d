package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailproxy/backend/internal/domain"
	"mailproxy/backend/internal/storage"
)

func TestDomainService_ListCombinesSources(t *testing.T) {
	provider := newFakeProvider()
	_, _, domains, _ := newTestServices(provider)
	require.NoError(t, domains.SeedPopular())

	options, err := domains.List(context.Background())
	require.NoError(t, err)

	// 1 个上游域名 + 8 个常见域名
	require.Len(t, options, 9)
	assert.Equal(t, "mail_tm_d1", options[0].ID)
	assert.Equal(t, "temp.example", options[0].Domain)
	assert.Equal(t, "Mail.tm (temp.example)", options[0].DisplayName)

	kinds := make(map[string]int)
	for _, opt := range options {
		kinds[opt.Kind]++
	}
	assert.Equal(t, 1, kinds[string(domain.DomainKindProvider)])
	assert.Equal(t, 8, kinds[string(domain.DomainKindPopular)])
}

func TestDomainService_SeedPopularIdempotent(t *testing.T) {
	provider := newFakeProvider()
	_, _, domains, _ := newTestServices(provider)

	require.NoError(t, domains.SeedPopular())
	require.NoError(t, domains.SeedPopular())

	options, err := domains.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, options, 9)
}

func TestDomainService_ForGeneration(t *testing.T) {
	provider := newFakeProvider()
	_, _, domains, _ := newTestServices(provider)
	require.NoError(t, domains.SeedPopular())

	t.Run("默认使用第一个上游域名", func(t *testing.T) {
		name, kind, err := domains.ForGeneration(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, "temp.example", name)
		assert.Equal(t, domain.DomainKindProvider, kind)
	})

	t.Run("按上游域名 ID 解析", func(t *testing.T) {
		name, kind, err := domains.ForGeneration(context.Background(), "mail_tm_d1")
		require.NoError(t, err)
		assert.Equal(t, "temp.example", name)
		assert.Equal(t, domain.DomainKindProvider, kind)
	})

	t.Run("未知 ID 返回错误", func(t *testing.T) {
		_, _, err := domains.ForGeneration(context.Background(), "mail_tm_bogus")
		assert.ErrorIs(t, err, ErrDomainUnavailable)

		_, _, err = domains.ForGeneration(context.Background(), "garbage")
		assert.ErrorIs(t, err, ErrDomainUnavailable)
	})
}

func TestDomainService_AddCustomDomain(t *testing.T) {
	provider := newFakeProvider()
	_, _, domains, _ := newTestServices(provider)

	md, err := domains.AddCustomDomain("Example.ORG", "Example")
	require.NoError(t, err)
	assert.Equal(t, "example.org", md.Domain)
	assert.Equal(t, domain.DomainKindCustom, md.Kind)
	assert.True(t, md.IsActive)

	_, err = domains.AddCustomDomain("example.org", "重复")
	assert.ErrorIs(t, err, storage.ErrDomainExists)

	_, err = domains.AddCustomDomain("not-a-domain", "")
	assert.ErrorIs(t, err, ErrDomainInvalid)

	name, kind, err := domains.ForGeneration(context.Background(), "custom_"+md.ID)
	require.NoError(t, err)
	assert.Equal(t, "example.org", name)
	assert.Equal(t, domain.DomainKindCustom, kind)
}

func TestDomainService_SetDomainStatus(t *testing.T) {
	provider := newFakeProvider()
	_, _, domains, _ := newTestServices(provider)

	md, err := domains.AddCustomDomain("toggle.example", "Toggle")
	require.NoError(t, err)

	require.NoError(t, domains.SetDomainStatus("custom_"+md.ID, false))

	// 停用后不可再用于生成
	_, _, err = domains.ForGeneration(context.Background(), "custom_"+md.ID)
	assert.ErrorIs(t, err, ErrDomainUnavailable)

	options, err := domains.List(context.Background())
	require.NoError(t, err)
	for _, opt := range options {
		assert.NotEqual(t, "toggle.example", opt.Domain)
	}

	// 上游域名不可修改
	err = domains.SetDomainStatus("mail_tm_d1", false)
	assert.ErrorIs(t, err, ErrDomainReadOnly)

	err = domains.SetDomainStatus("custom_unknown", true)
	assert.ErrorIs(t, err, ErrDomainUnavailable)
}
