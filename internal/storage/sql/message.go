package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mailproxy/backend/internal/domain"
	"mailproxy/backend/internal/storage"
)

// ========== Message Repository ==========

// SaveMessage 保存邮件，重复保存仅合并已读状态。
func (s *Store) SaveMessage(message *domain.Message) error {
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	return s.inTx(func(tx *sql.Tx) error {
		active, err := s.activeOwnerTx(tx, message.OwnerEmail)
		if err != nil {
			return err
		}
		if !active {
			return storage.ErrAccountNotFound
		}

		var isRead bool
		query := s.rebind(`SELECT is_read FROM messages WHERE message_id = ? AND owner_email = ?`)
		err = tx.QueryRow(query, message.MessageID, message.OwnerEmail).Scan(&isRead)

		switch {
		case err == nil:
			if isRead != message.IsRead {
				update := s.rebind(`UPDATE messages SET is_read = ? WHERE message_id = ? AND owner_email = ?`)
				if _, err := tx.Exec(update, message.IsRead, message.MessageID, message.OwnerEmail); err != nil {
					return fmt.Errorf("failed to merge read state: %w", err)
				}
			}
			return nil
		case errors.Is(err, sql.ErrNoRows):
			insert := s.rebind(`
				INSERT INTO messages (message_id, owner_email, sender, recipient, subject, intro, html_body, text_body, is_read, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`)
			if _, err := tx.Exec(insert,
				message.MessageID,
				message.OwnerEmail,
				message.Sender,
				message.Recipient,
				message.Subject,
				message.Intro,
				message.HTMLBody,
				message.TextBody,
				message.IsRead,
				message.CreatedAt,
			); err != nil {
				return fmt.Errorf("failed to insert message: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("failed to query message: %w", err)
		}
	})
}

// GetMessage 获取单封邮件。
func (s *Store) GetMessage(ownerEmail, messageID string) (*domain.Message, error) {
	var message domain.Message

	err := s.inTx(func(tx *sql.Tx) error {
		active, err := s.activeOwnerTx(tx, ownerEmail)
		if err != nil {
			return err
		}
		if !active {
			return storage.ErrMessageNotFound
		}

		query := s.rebind(`
			SELECT message_id, owner_email, sender, recipient, subject, intro, html_body, text_body, is_read, created_at
			FROM messages
			WHERE message_id = ? AND owner_email = ?
		`)
		err = tx.QueryRow(query, messageID, ownerEmail).Scan(
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
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrMessageNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to query message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// ListMessages 按创建时间倒序返回属主的全部邮件。属主不存在时返回空列表。
func (s *Store) ListMessages(ownerEmail string) ([]domain.Message, error) {
	messages := make([]domain.Message, 0)

	err := s.inTx(func(tx *sql.Tx) error {
		active, err := s.activeOwnerTx(tx, ownerEmail)
		if err != nil {
			return err
		}
		if !active {
			return nil
		}

		query := s.rebind(`
			SELECT message_id, owner_email, sender, recipient, subject, intro, html_body, text_body, is_read, created_at
			FROM messages
			WHERE owner_email = ?
			ORDER BY created_at DESC
		`)
		rows, err := tx.Query(query, ownerEmail)
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
	return s.inTx(func(tx *sql.Tx) error {
		active, err := s.activeOwnerTx(tx, ownerEmail)
		if err != nil {
			return err
		}
		if !active {
			return storage.ErrMessageNotFound
		}

		update := s.rebind(`UPDATE messages SET is_read = ? WHERE message_id = ? AND owner_email = ?`)
		result, err := tx.Exec(update, true, messageID, ownerEmail)
		if err != nil {
			return fmt.Errorf("failed to mark message read: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if affected == 0 {
			// 可能已经是已读，区分"不存在"与"无变化"
			var exists int
			check := s.rebind(`SELECT 1 FROM messages WHERE message_id = ? AND owner_email = ?`)
			if err := tx.QueryRow(check, messageID, ownerEmail).Scan(&exists); errors.Is(err, sql.ErrNoRows) {
				return storage.ErrMessageNotFound
			} else if err != nil {
				return fmt.Errorf("failed to check message existence: %w", err)
			}
		}
		return nil
	})
}

// DeleteMessage 删除单封邮件。
func (s *Store) DeleteMessage(ownerEmail, messageID string) error {
	query := s.rebind(`DELETE FROM messages WHERE message_id = ? AND owner_email = ?`)
	result, err := s.db.Exec(query, messageID, ownerEmail)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrMessageNotFound
	}
	return nil
}

// DeleteMessagesByOwner 删除属主的全部邮件。
func (s *Store) DeleteMessagesByOwner(ownerEmail string) (int, error) {
	query := s.rebind(`DELETE FROM messages WHERE owner_email = ?`)
	result, err := s.db.Exec(query, ownerEmail)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return int(affected), nil
}
