package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mailproxy/backend/internal/domain"
	"mailproxy/backend/internal/storage"
)

// ========== Domain Repository ==========

// SaveDomain 保存域名条目，域名重复时返回 ErrDomainExists。
func (s *Store) SaveDomain(md *domain.MailDomain) error {
	if md.CreatedAt.IsZero() {
		md.CreatedAt = time.Now().UTC()
	}

	return s.inTx(func(tx *sql.Tx) error {
		var existing string
		query := s.rebind(`SELECT id FROM mail_domains WHERE domain = ?`)
		err := tx.QueryRow(query, md.Domain).Scan(&existing)
		if err == nil {
			return storage.ErrDomainExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to query domain: %w", err)
		}

		insert := s.rebind(`
			INSERT INTO mail_domains (id, domain, display_name, kind, is_active, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if _, err := tx.Exec(insert, md.ID, md.Domain, md.DisplayName, md.Kind, md.IsActive, md.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert domain: %w", err)
		}
		return nil
	})
}

// GetDomainByID 按 ID 获取域名条目。
func (s *Store) GetDomainByID(id string) (*domain.MailDomain, error) {
	var md domain.MailDomain

	query := s.rebind(`
		SELECT id, domain, display_name, kind, is_active, created_at
		FROM mail_domains
		WHERE id = ?
	`)
	err := s.db.QueryRow(query, id).Scan(&md.ID, &md.Domain, &md.DisplayName, &md.Kind, &md.IsActive, &md.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrDomainNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query domain: %w", err)
	}
	return &md, nil
}

// ListDomains 返回全部域名条目。
func (s *Store) ListDomains() ([]domain.MailDomain, error) {
	query := `
		SELECT id, domain, display_name, kind, is_active, created_at
		FROM mail_domains
		ORDER BY created_at ASC
	`
	rows, err := s.db.Query(query)
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return domains, nil
}

// SetDomainActive 启用或停用域名。
func (s *Store) SetDomainActive(id string, active bool) error {
	query := s.rebind(`UPDATE mail_domains SET is_active = ? WHERE id = ?`)
	result, err := s.db.Exec(query, active, id)
	if err != nil {
		return fmt.Errorf("failed to update domain: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// 值未变化时 MySQL 也返回 0，需区分
		var exists int
		check := s.rebind(`SELECT 1 FROM mail_domains WHERE id = ?`)
		if err := s.db.QueryRow(check, id).Scan(&exists); errors.Is(err, sql.ErrNoRows) {
			return storage.ErrDomainNotFound
		} else if err != nil {
			return fmt.Errorf("failed to check domain existence: %w", err)
		}
	}
	return nil
}
