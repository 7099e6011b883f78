package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// PurgeExpired deletes completed rows finished before cutoff and sent records
// created before cutoff. failed_permanent rows are never deleted.
func (s *Store) PurgeExpired(ctx context.Context, cutoff time.Time) (PurgeResult, error) {
	ms := toMillis(cutoff)
	var result PurgeResult

	for _, kind := range kinds {
		res, err := s.execWithRetry(
			ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE status = ? AND completed_at IS NOT NULL AND completed_at < ?`, kind.table()),
			StatusCompleted,
			ms,
		)
		if err != nil {
			return result, fmt.Errorf("purge %s: %w", kind, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return result, fmt.Errorf("purge %s rows: %w", kind, err)
		}
		if kind == KindInbound {
			result.Inbound = affected
		} else {
			result.Outbound = affected
		}
	}

	res, err := s.execWithRetry(ctx, `DELETE FROM sent_records WHERE created_at < ?`, ms)
	if err != nil {
		return result, fmt.Errorf("purge sent records: %w", err)
	}
	if result.SentRecords, err = res.RowsAffected(); err != nil {
		return result, fmt.Errorf("purge sent records rows: %w", err)
	}
	return result, nil
}

// Stats counts rows per status in each queue, limited to rows created within
// the message TTL.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	stats := Stats{Path: s.path}
	since := toMillis(s.clock().Add(-s.policy.MessageTTL))

	for _, kind := range kinds {
		counts, err := s.countByStatus(ctx, kind, since)
		if err != nil {
			return stats, err
		}
		if kind == KindInbound {
			stats.Inbound = counts
		} else {
			stats.Outbound = counts
		}
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sent_records WHERE created_at >= ?`, since,
	).Scan(&stats.SentRecords); err != nil {
		return stats, fmt.Errorf("count sent records: %w", err)
	}
	return stats, nil
}

func (s *Store) countByStatus(ctx context.Context, kind Kind, since int64) (QueueCounts, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT status, COUNT(1) FROM %s WHERE created_at >= ? GROUP BY status`, kind.table()),
		since,
	)
	if err != nil {
		return QueueCounts{}, fmt.Errorf("%s stats: %w", kind, err)
	}
	defer rows.Close()

	var counts QueueCounts
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return QueueCounts{}, err
		}
		switch status {
		case StatusPending:
			counts.Pending += count
		case StatusProcessing:
			counts.Processing += count
		case StatusCompleted:
			counts.Completed += count
		case StatusFailedPermanent:
			counts.Failed += count
		}
	}
	return counts, rows.Err()
}

// ListFailed returns failed_permanent rows for manual review, newest first.
// An empty kind lists both queues.
func (s *Store) ListFailed(ctx context.Context, kind Kind) ([]FailedMessage, error) {
	ctx = ensureContext(ctx)
	selected := kinds
	if kind != "" {
		selected = []Kind{kind}
	}

	var failed []FailedMessage
	for _, k := range selected {
		body := "text"
		if k == KindOutbound {
			body = "content"
		}
		rows, err := s.db.QueryContext(ctx,
			fmt.Sprintf(`SELECT id, chat_id, %s, retries, last_error, created_at, updated_at
            FROM %s WHERE status = ? ORDER BY updated_at DESC, id DESC`, body, k.table()),
			StatusFailedPermanent,
		)
		if err != nil {
			return nil, fmt.Errorf("list failed %s: %w", k, err)
		}
		for rows.Next() {
			msg := FailedMessage{Kind: k}
			var (
				text      string
				lastError sql.NullString
				createdMs int64
				updatedMs int64
			)
			if err := rows.Scan(&msg.ID, &msg.ChatID, &text, &msg.Retries, &lastError, &createdMs, &updatedMs); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan failed %s: %w", k, err)
			}
			msg.Preview = preview(text, 80)
			msg.LastError = lastError.String
			msg.CreatedAt = fromMillis(createdMs)
			msg.UpdatedAt = fromMillis(updatedMs)
			failed = append(failed, msg)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterate failed %s: %w", k, err)
		}
	}
	return failed, nil
}

// ResendFailed queues a fresh copy of each failed_permanent outbound row. With
// no ids every failed outbound row is resent. The failed rows keep their
// status and retry count; copies go through EnqueueOutbound so a copy that is
// still pending is not queued twice. It returns the ids of the new rows.
func (s *Store) ResendFailed(ctx context.Context, ids ...int64) ([]int64, error) {
	query := `SELECT ` + outboundColumns + ` FROM outbound_messages WHERE status = ?`
	args := []any{StatusFailedPermanent}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list failed outbound: %w", err)
	}
	var failed []*OutboundMessage
	for rows.Next() {
		msg, err := scanOutbound(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan failed outbound: %w", err)
		}
		failed = append(failed, msg)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterate failed outbound: %w", err)
	}

	var resent []int64
	for _, msg := range failed {
		result, err := s.EnqueueOutbound(ctx, OutboundRequest{
			QueueType:  msg.QueueType,
			RunID:      msg.RunID,
			SessionKey: msg.SessionKey,
			ChatID:     msg.ChatID,
			Content:    msg.Content,
		})
		if err != nil {
			return resent, fmt.Errorf("resend outbound %d: %w", msg.ID, err)
		}
		if result.Enqueued {
			resent = append(resent, result.ID)
		}
	}
	return resent, nil
}

// CheckHealth returns diagnostic information about the queue database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat queue database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	var fs unix.Statfs_t
	if err := unix.Statfs(filepath.Dir(s.path), &fs); err == nil {
		health.FreeBytes = fs.Bavail * uint64(fs.Bsize)
	}

	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	present := make(map[string]struct{}, len(requiredTables))
	rows, err := s.db.QueryContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("list tables: %w", err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			health.Error = err.Error()
			return health, fmt.Errorf("scan table name: %w", err)
		}
		present[name] = struct{}{}
	}
	rows.Close()
	for _, table := range requiredTables {
		if _, ok := present[table]; ok {
			health.TablesPresent = append(health.TablesPresent, table)
		} else {
			health.MissingTables = append(health.MissingTables, table)
		}
	}

	if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}

	var integrityResult string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
