package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mailproxy/backend/internal/domain"
	"mailproxy/backend/internal/storage"
)

const queryTimeout = 5 * time.Second

// Store 基于 pgx 连接池的 PostgreSQL 存储实现
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewStore 基于已有客户端创建存储实例
func NewStore(client *Client, ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = domain.DefaultAccountTTL
	}

	s := &Store{pool: client.Pool(), ttl: ttl}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			email       VARCHAR(255) PRIMARY KEY,
			provider_id VARCHAR(100) NOT NULL DEFAULT '',
			token       TEXT NOT NULL DEFAULT '',
			password    VARCHAR(100) NOT NULL DEFAULT '',
			domain_type VARCHAR(20) NOT NULL DEFAULT 'mail_tm',
			status      VARCHAR(10) NOT NULL DEFAULT 'active',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_status ON accounts (status)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id  VARCHAR(100) NOT NULL,
			owner_email VARCHAR(255) NOT NULL,
			sender      VARCHAR(255) NOT NULL DEFAULT '',
			recipient   VARCHAR(255) NOT NULL DEFAULT '',
			subject     TEXT NOT NULL DEFAULT '',
			intro       TEXT NOT NULL DEFAULT '',
			html_body   TEXT NOT NULL DEFAULT '',
			text_body   TEXT NOT NULL DEFAULT '',
			is_read     BOOLEAN NOT NULL DEFAULT FALSE,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT idx_owner_message UNIQUE (owner_email, message_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_owner ON messages (owner_email)`,
		`CREATE TABLE IF NOT EXISTS mail_domains (
			id           VARCHAR(36) PRIMARY KEY,
			domain       VARCHAR(255) NOT NULL UNIQUE,
			display_name VARCHAR(255) NOT NULL DEFAULT '',
			kind         VARCHAR(20) NOT NULL DEFAULT 'mail_tm',
			is_active    BOOLEAN NOT NULL DEFAULT TRUE,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), queryTimeout)
}

// ========== Account Repository ==========

// AddAccount 保存新账户。地址上已有活跃账户时返回 ErrAccountExists，
// 非活跃的旧行会被复用。
func (s *Store) AddAccount(account *domain.Account) error {
	if account.Status == "" {
		account.Status = domain.StatusActive
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := s.opContext()
	defer cancel()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var status domain.AccountStatus
		err := tx.QueryRow(ctx, `SELECT status FROM accounts WHERE email = $1`, account.Email).Scan(&status)

		switch {
		case err == nil:
			if status == domain.StatusActive {
				return storage.ErrAccountExists
			}
			if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE owner_email = $1`, account.Email); err != nil {
				return fmt.Errorf("failed to drop stale messages: %w", err)
			}
			_, err := tx.Exec(ctx, `
				UPDATE accounts
				SET provider_id = $1, token = $2, password = $3, domain_type = $4, status = $5, created_at = $6
				WHERE email = $7
			`, account.ProviderID, account.Token, account.Password, account.DomainType, account.Status, account.CreatedAt, account.Email)
			return err
		case errors.Is(err, pgx.ErrNoRows):
			_, err := tx.Exec(ctx, `
				INSERT INTO accounts (email, provider_id, token, password, domain_type, status, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, account.Email, account.ProviderID, account.Token, account.Password, account.DomainType, account.Status, account.CreatedAt)
			return err
		default:
			return fmt.Errorf("failed to query account: %w", err)
		}
	})
	if err != nil {
		return err
	}

	// 顺带清理过期账户
	if _, err := s.CleanupExpired(); err != nil {
		return fmt.Errorf("cleanup after add failed: %w", err)
	}
	return nil
}

// GetAccount 获取活跃账户，读取时惰性过期。
func (s *Store) GetAccount(email string) (*domain.Account, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	var account domain.Account
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT email, provider_id, token, password, domain_type, status, created_at
			FROM accounts
			WHERE email = $1 AND status = $2
		`, email, domain.StatusActive).Scan(
			&account.Email,
			&account.ProviderID,
			&account.Token,
			&account.Password,
			&account.DomainType,
			&account.Status,
			&account.CreatedAt,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to query account: %w", err)
		}

		if account.ExpiredAt(time.Now().UTC(), s.ttl) {
			if _, err := tx.Exec(ctx, `UPDATE accounts SET status = $1 WHERE email = $2`,
				domain.StatusExpired, email); err != nil {
				return fmt.Errorf("failed to expire account: %w", err)
			}
			return storage.ErrAccountNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// RemoveAccount 软删除账户并级联删除其邮件。
func (s *Store) RemoveAccount(email string) (bool, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	var removed bool
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE accounts SET status = $1 WHERE email = $2 AND status <> $1`,
			domain.StatusDeleted, email)
		if err != nil {
			return fmt.Errorf("failed to delete account: %w", err)
		}
		removed = tag.RowsAffected() > 0

		if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE owner_email = $1`, email); err != nil {
			return fmt.Errorf("failed to cascade messages: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// CleanupExpired 标记所有超过 TTL 的活跃账户为过期，返回数量。
func (s *Store) CleanupExpired() (int, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	cutoff := time.Now().UTC().Add(-s.ttl)
	tag, err := s.pool.Exec(ctx, `UPDATE accounts SET status = $1 WHERE status = $2 AND created_at < $3`,
		domain.StatusExpired, domain.StatusActive, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup accounts: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) activeOwnerTx(ctx context.Context, tx pgx.Tx, email string) (bool, error) {
	var status domain.AccountStatus
	var createdAt time.Time
	err := tx.QueryRow(ctx, `SELECT status, created_at FROM accounts WHERE email = $1`, email).
		Scan(&status, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query owner: %w", err)
	}
	if status != domain.StatusActive {
		return false, nil
	}
	if time.Now().UTC().Sub(createdAt) > s.ttl {
		if _, err := tx.Exec(ctx, `UPDATE accounts SET status = $1 WHERE email = $2`,
			domain.StatusExpired, email); err != nil {
			return false, fmt.Errorf("failed to expire owner: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// ========== Message Repository ==========

// SaveMessage 保存邮件，重复保存仅合并已读状态。
func (s *Store) SaveMessage(message *domain.Message) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := s.opContext()
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		active, err := s.activeOwnerTx(ctx, tx, message.OwnerEmail)
		if err != nil {
			return err
		}
		if !active {
			return storage.ErrAccountNotFound
		}

		var isRead bool
		err = tx.QueryRow(ctx, `SELECT is_read FROM messages WHERE message_id = $1 AND owner_email = $2`,
			message.MessageID, message.OwnerEmail).Scan(&isRead)

		switch {
		case err == nil:
			if isRead != message.IsRead {
				_, err := tx.Exec(ctx, `UPDATE messages SET is_read = $1 WHERE message_id = $2 AND owner_email = $3`,
					message.IsRead, message.MessageID, message.OwnerEmail)
				return err
			}
			return nil
		case errors.Is(err, pgx.ErrNoRows):
			_, err := tx.Exec(ctx, `
				INSERT INTO messages (message_id, owner_email, sender, recipient, subject, intro, html_body, text_body, is_read, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`, message.MessageID, message.OwnerEmail, message.Sender, message.Recipient,
				message.Subject, message.Intro, message.HTMLBody, message.TextBody,
				message.IsRead, message.CreatedAt)
			return err
		default:
			return fmt.Errorf("failed to query message: %w", err)
		}
	})
}

// GetMessage 获取单封邮件。
func (s *Store) GetMessage(ownerEmail, messageID string) (*domain.Message, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	var message domain.Message
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		active, err := s.activeOwnerTx(ctx, tx, ownerEmail)
		if err != nil {
			return err
		}
		if !active {
			return storage.ErrMessageNotFound
		}

		err = tx.QueryRow(ctx, `
			SELECT message_id, owner_email, sender, recipient, subject, intro, html_body, text_body, is_read, created_at
			FROM messages
			WHERE message_id = $1 AND owner_email = $2
		`, messageID, ownerEmail).Scan(
			&message.MessageID,
			&message.OwnerEmail,
			&message.Sender,
			&message.Recipient,
			&message.Subject,
			&message.Intro,
			&message.HTMLBody,
			&message.TextBody,
			&message.IsRead,
			&message.CreatedAt,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.ErrMessageNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// ListMessages 按创建时间倒序返回属主的全部邮件。属主不存在时返回空列表。
func (s *Store) ListMessages(ownerEmail string) ([]domain.Message, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	messages := make([]domain.Message, 0)
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		active, err := s.activeOwnerTx(ctx, tx, ownerEmail)
		if err != nil {
			return err
		}
		if !active {
			return nil
		}

		rows, err := tx.Query(ctx, `
			SELECT message_id, owner_email, sender, recipient, subject, intro, html_body, text_body, is_read, created_at
			FROM messages
			WHERE owner_email = $1
			ORDER BY created_at DESC
		`, ownerEmail)
		if err != nil {
			return fmt.Errorf("failed to list messages: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var m domain.Message
			if err := rows.Scan(
				&m.MessageID,
				&m.OwnerEmail,
				&m.Sender,
				&m.Recipient,
				&m.Subject,
				&m.Intro,
				&m.HTMLBody,
				&m.TextBody,
				&m.IsRead,
				&m.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to scan message: %w", err)
			}
			messages = append(messages, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkMessageRead 将邮件标记为已读。
func (s *Store) MarkMessageRead(ownerEmail, messageID string) error {
	ctx, cancel := s.opContext()
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		active, err := s.activeOwnerTx(ctx, tx, ownerEmail)
		if err != nil {
			return err
		}
		if !active {
			return storage.ErrMessageNotFound
		}

		tag, err := tx.Exec(ctx, `UPDATE messages SET is_read = TRUE WHERE message_id = $1 AND owner_email = $2`,
			messageID, ownerEmail)
		if err != nil {
			return fmt.Errorf("failed to mark message read: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return storage.ErrMessageNotFound
		}
		return nil
	})
}

// DeleteMessage 删除单封邮件。
func (s *Store) DeleteMessage(ownerEmail, messageID string) error {
	ctx, cancel := s.opContext()
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE message_id = $1 AND owner_email = $2`,
		messageID, ownerEmail)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrMessageNotFound
	}
	return nil
}

// DeleteMessagesByOwner 删除属主的全部邮件。
func (s *Store) DeleteMessagesByOwner(ownerEmail string) (int, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE owner_email = $1`, ownerEmail)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ========== Domain Repository ==========

// SaveDomain 保存域名条目，域名重复时返回 ErrDomainExists。
func (s *Store) SaveDomain(md *domain.MailDomain) error {
	if md.CreatedAt.IsZero() {
		md.CreatedAt = time.Now().UTC()
	}

	ctx, cancel := s.opContext()
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO mail_domains (id, domain, display_name, kind, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (domain) DO NOTHING
	`, md.ID, md.Domain, md.DisplayName, md.Kind, md.IsActive, md.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert domain: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrDomainExists
	}
	return nil
}

// GetDomainByID 按 ID 获取域名条目。
func (s *Store) GetDomainByID(id string) (*domain.MailDomain, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	var md domain.MailDomain
	err := s.pool.QueryRow(ctx, `
		SELECT id, domain, display_name, kind, is_active, created_at
		FROM mail_domains
		WHERE id = $1
	`, id).Scan(&md.ID, &md.Domain, &md.DisplayName, &md.Kind, &md.IsActive, &md.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrDomainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query domain: %w", err)
	}
	return &md, nil
}

// ListDomains 返回全部域名条目。
func (s *Store) ListDomains() ([]domain.MailDomain, error) {
	ctx, cancel := s.opContext()
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, domain, display_name, kind, is_active, created_at
		FROM mail_domains
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	domains := make([]domain.MailDomain, 0)
	for rows.Next() {
		var md domain.MailDomain
		if err := rows.Scan(&md.ID, &md.Domain, &md.DisplayName, &md.Kind, &md.IsActive, &md.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan domain: %w", err)
		}
		domains = append(domains, md)
	}
	return domains, rows.Err()
}

// SetDomainActive 启用或停用域名。
func (s *Store) SetDomainActive(id string, active bool) error {
	ctx, cancel := s.opContext()
	defer cancel()

	var exists int
	err := s.pool.QueryRow(ctx, `SELECT 1 FROM mail_domains WHERE id = $1`, id).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrDomainNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check domain existence: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `UPDATE mail_domains SET is_active = $1 WHERE id = $2`, active, id); err != nil {
		return fmt.Errorf("failed to update domain: %w", err)
	}
	return nil
}

// ========== 生命周期 ==========

// Close 释放连接池。池由 Client 持有，但 storage.Store 接口要求可关闭。
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Health 检查数据库连通性。
func (s *Store) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
