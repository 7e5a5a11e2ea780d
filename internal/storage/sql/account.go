package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mailproxy/backend/internal/domain"
	"mailproxy/backend/internal/storage"
)

// ========== Account Repository ==========

// AddAccount 写入新的活跃账户。
//
// 同一邮箱至多保留一行记录，行内状态标记生命周期。旧记录非活跃时
// 原地复用该行并清掉遗留邮件，保证"同地址至多一个活跃账户"。
func (s *Store) AddAccount(account *domain.Account) error {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	if account.Status == "" {
		account.Status = domain.StatusActive
	}

	err := s.inTx(func(tx *sql.Tx) error {
		var status domain.AccountStatus
		query := s.rebind(`SELECT status FROM accounts WHERE email = ?`)
		err := tx.QueryRow(query, account.Email).Scan(&status)

		switch {
		case err == nil && status == domain.StatusActive:
			return storage.ErrAccountExists
		case err == nil:
			// 复用非活跃旧行，遗留邮件一并清除
			if _, err := tx.Exec(s.rebind(`DELETE FROM messages WHERE owner_email = ?`), account.Email); err != nil {
				return fmt.Errorf("failed to clear stale messages: %w", err)
			}
			update := s.rebind(`
				UPDATE accounts
				SET provider_id = ?, token = ?, password = ?, domain_type = ?, status = ?, created_at = ?
				WHERE email = ?
			`)
			if _, err := tx.Exec(update,
				account.ProviderID,
				account.Token,
				account.Password,
				account.DomainType,
				account.Status,
				account.CreatedAt,
				account.Email,
			); err != nil {
				return fmt.Errorf("failed to reactivate account row: %w", err)
			}
			return nil
		case errors.Is(err, sql.ErrNoRows):
			insert := s.rebind(`
				INSERT INTO accounts (email, provider_id, token, password, domain_type, status, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`)
			if _, err := tx.Exec(insert,
				account.Email,
				account.ProviderID,
				account.Token,
				account.Password,
				account.DomainType,
				account.Status,
				account.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to insert account: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("failed to query account: %w", err)
		}
	})
	if err != nil {
		return err
	}

	// 每次写入顺带触发一次过期清扫
	if _, err := s.CleanupExpired(); err != nil {
		return err
	}
	return nil
}

// GetAccount 返回活跃且未过期的账户。过期账户被顺手标记为过期。
func (s *Store) GetAccount(email string) (*domain.Account, error) {
	var account domain.Account

	err := s.inTx(func(tx *sql.Tx) error {
		query := s.rebind(`
			SELECT email, provider_id, token, password, domain_type, status, created_at
			FROM accounts
			WHERE email = ? AND status = ?
		`)
		err := tx.QueryRow(query, email, domain.StatusActive).Scan(
			&account.Email,
			&account.ProviderID,
			&account.Token,
			&account.Password,
			&account.DomainType,
			&account.Status,
			&account.CreatedAt,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to query account: %w", err)
		}

		if account.ExpiredAt(time.Now(), s.ttl) {
			update := s.rebind(`UPDATE accounts SET status = ? WHERE email = ? AND status = ?`)
			if _, err := tx.Exec(update, domain.StatusExpired, email, domain.StatusActive); err != nil {
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

// RemoveAccount 软删除账户并级联删除其全部邮件。
func (s *Store) RemoveAccount(email string) (bool, error) {
	existed := false

	err := s.inTx(func(tx *sql.Tx) error {
		update := s.rebind(`UPDATE accounts SET status = ? WHERE email = ? AND status <> ?`)
		result, err := tx.Exec(update, domain.StatusDeleted, email, domain.StatusDeleted)
		if err != nil {
			return fmt.Errorf("failed to mark account deleted: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			return nil
		}
		existed = true

		if _, err := tx.Exec(s.rebind(`DELETE FROM messages WHERE owner_email = ?`), email); err != nil {
			return fmt.Errorf("failed to cascade message delete: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

// CleanupExpired 将所有超过存活时间的活跃账户标记为过期。幂等。
func (s *Store) CleanupExpired() (int, error) {
	cutoff := time.Now().Add(-s.ttl)

	query := s.rebind(`UPDATE accounts SET status = ? WHERE status = ? AND created_at < ?`)
	result, err := s.db.Exec(query, domain.StatusExpired, domain.StatusActive, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired accounts: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(affected), nil
}

// activeOwnerTx 在事务内校验属主是否为活跃未过期账户。
func (s *Store) activeOwnerTx(tx *sql.Tx, email string) (bool, error) {
	var createdAt time.Time
	query := s.rebind(`SELECT created_at FROM accounts WHERE email = ? AND status = ?`)
	err := tx.QueryRow(query, email, domain.StatusActive).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query owner account: %w", err)
	}

	if time.Since(createdAt) > s.ttl {
		update := s.rebind(`UPDATE accounts SET status = ? WHERE email = ? AND status = ?`)
		if _, err := tx.Exec(update, domain.StatusExpired, email, domain.StatusActive); err != nil {
			return false, fmt.Errorf("failed to expire owner account: %w", err)
		}
		return false, nil
	}
	return true, nil
}
