// Package sqlite implements a storage.Store backed by a SQLite database.
package sqlite

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // database/sql driver
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"github.com/listarchive/listarchive/pkg/config"
	"github.com/listarchive/listarchive/pkg/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	timeFormat = time.RFC3339Nano

	// maxQueryParams stays below SQLite's default host parameter limit.
	maxQueryParams = 500
)

// Store implements storage.Store on top of a single SQLite connection.
type Store struct {
	db   *sqlx.DB
	path string
}

var _ storage.Store = &Store{}

type emailRow struct {
	MID        string `db:"mid"`
	MessageID  string `db:"message_id"`
	ListRaw    string `db:"list_raw"`
	Private    bool   `db:"private"`
	From       string `db:"sender"`
	Subject    string `db:"subject"`
	Date       string `db:"date"`
	Epoch      int64  `db:"epoch"`
	Body       string `db:"body"`
	HTML       string `db:"html"`
	InReplyTo  string `db:"in_reply_to"`
	References string `db:"refs"`
}

type attachmentRefRow struct {
	MID         string `db:"mid"`
	Position    int    `db:"position"`
	Hash        string `db:"hash"`
	Filename    string `db:"filename"`
	ContentType string `db:"content_type"`
	Size        int64  `db:"size"`
}

type sourceRow struct {
	MID     string `db:"mid"`
	Source  []byte `db:"source"`
	Deleted bool   `db:"deleted"`
}

type attachmentRow struct {
	Hash        string `db:"hash"`
	Filename    string `db:"filename"`
	ContentType string `db:"content_type"`
	Content     []byte `db:"content"`
}

type auditRow struct {
	Seq       int64  `db:"seq"`
	ID        string `db:"id"`
	Action    string `db:"action"`
	Documents string `db:"documents"`
	Actor     string `db:"actor"`
	Timestamp string `db:"timestamp"`
	Affected  int    `db:"affected"`
	Outcome   string `db:"outcome"`
}

// New opens the database named by the "path" parameter and migrates it to the current schema.
// The path defaults to an in-memory database.
func New(cfg config.Storage) (storage.Store, error) {
	path := cfg.Params["path"]
	if path == "" {
		path = ":memory:"
	}
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// An in-memory database exists per connection, and SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	log.Debug().Str("module", "storage").Str("path", path).Msg("Opened SQLite store")
	return &Store{db: db, path: path}, nil
}

// GetEmail gets an email by mid.
func (s *Store) GetEmail(mid string) (*storage.Email, error) {
	var row emailRow
	err := s.db.Get(&row, "SELECT * FROM emails WHERE mid = ?", mid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	emails, err := s.withAttachments([]emailRow{row})
	if err != nil {
		return nil, err
	}
	return emails[0], nil
}

// FindEmails returns the emails matching q, ordered by date.
func (s *Store) FindEmails(q storage.Query) ([]*storage.Email, error) {
	var where []string
	var args []any
	if q.MessageID != "" {
		where = append(where, "message_id = ?")
		args = append(args, q.MessageID)
	}
	if q.ListRaw != "" {
		where = append(where, "list_raw = ?")
		args = append(args, q.ListRaw)
	}
	if q.Attachment != "" {
		where = append(where, "mid IN (SELECT mid FROM email_attachments WHERE hash = ?)")
		args = append(args, q.Attachment)
	}
	// epoch is the date truncated to seconds, so these bounds are loose; Match applies the
	// exact ones below.
	if !q.Since.IsZero() {
		where = append(where, "epoch >= ?")
		args = append(args, q.Since.Unix())
	}
	if !q.Until.IsZero() {
		where = append(where, "epoch <= ?")
		args = append(args, q.Until.Unix())
	}
	stmt := "SELECT * FROM emails"
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	var rows []emailRow
	if err := s.db.Select(&rows, stmt, args...); err != nil {
		return nil, err
	}
	emails, err := s.withAttachments(rows)
	if err != nil {
		return nil, err
	}
	result := make([]*storage.Email, 0, len(emails))
	for _, e := range emails {
		if q.Match(e) {
			result = append(result, e)
		}
	}
	storage.SortEmails(result)
	return result, nil
}

func (s *Store) withAttachments(rows []emailRow) ([]*storage.Email, error) {
	emails := make([]*storage.Email, len(rows))
	byMID := make(map[string]*storage.Email, len(rows))
	for i, row := range rows {
		date, err := time.Parse(timeFormat, row.Date)
		if err != nil {
			return nil, fmt.Errorf("email %s has invalid date %q: %w", row.MID, row.Date, err)
		}
		emails[i] = &storage.Email{
			MID:        row.MID,
			MessageID:  row.MessageID,
			ListRaw:    row.ListRaw,
			Private:    row.Private,
			From:       row.From,
			Subject:    row.Subject,
			Date:       date,
			Body:       row.Body,
			HTML:       row.HTML,
			InReplyTo:  row.InReplyTo,
			References: row.References,
		}
		byMID[row.MID] = emails[i]
	}
	if len(rows) == 0 {
		return emails, nil
	}
	var refs []attachmentRefRow
	for start := 0; start < len(rows); start += maxQueryParams {
		end := min(start+maxQueryParams, len(rows))
		mids := make([]string, 0, end-start)
		for _, row := range rows[start:end] {
			mids = append(mids, row.MID)
		}
		query, args, err := sqlx.In(
			"SELECT * FROM email_attachments WHERE mid IN (?) ORDER BY mid, position", mids)
		if err != nil {
			return nil, err
		}
		var chunk []attachmentRefRow
		if err := s.db.Select(&chunk, s.db.Rebind(query), args...); err != nil {
			return nil, err
		}
		refs = append(refs, chunk...)
	}
	for _, ref := range refs {
		if e := byMID[ref.MID]; e != nil {
			e.Attachments = append(e.Attachments, storage.AttachmentRef{
				Hash:        ref.Hash,
				Filename:    ref.Filename,
				ContentType: ref.ContentType,
				Size:        ref.Size,
			})
		}
	}
	return emails, nil
}

// GetSource gets the source document for a mid.
func (s *Store) GetSource(mid string) (*storage.Source, error) {
	var row sourceRow
	err := s.db.Get(&row, "SELECT * FROM sources WHERE mid = ?", mid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	return &storage.Source{MID: row.MID, Source: row.Source, Deleted: row.Deleted}, nil
}

// GetAttachment gets an attachment by content hash.
func (s *Store) GetAttachment(hash string) (*storage.Attachment, error) {
	var row attachmentRow
	err := s.db.Get(&row, "SELECT * FROM attachments WHERE hash = ?", hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotExist
	}
	if err != nil {
		return nil, err
	}
	return &storage.Attachment{
		Hash:        row.Hash,
		Filename:    row.Filename,
		ContentType: row.ContentType,
		Content:     row.Content,
	}, nil
}

// Apply writes the batch in a single transaction.
func (s *Store) Apply(b *storage.Batch) (err error) {
	if b.Empty() {
		return nil
	}
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				log.Error().Str("module", "storage").Err(rerr).Msg("Rollback failed")
			}
		}
	}()
	for _, e := range b.Emails {
		if err = putEmail(tx, e); err != nil {
			return err
		}
	}
	for _, src := range b.Sources {
		raw := src.Source
		if raw == nil {
			raw = []byte{}
		}
		if _, err = tx.Exec(
			"INSERT OR REPLACE INTO sources (mid, source, deleted) VALUES (?, ?, ?)",
			src.MID, raw, src.Deleted); err != nil {
			return err
		}
	}
	for _, a := range b.Attachments {
		content := a.Content
		if content == nil {
			content = []byte{}
		}
		if _, err = tx.Exec(
			"INSERT OR REPLACE INTO attachments (hash, filename, content_type, content) VALUES (?, ?, ?, ?)",
			a.Hash, a.Filename, a.ContentType, content); err != nil {
			return err
		}
	}
	for _, mid := range b.DeleteEmails {
		if _, err = tx.Exec("DELETE FROM emails WHERE mid = ?", mid); err != nil {
			return err
		}
		if _, err = tx.Exec("DELETE FROM email_attachments WHERE mid = ?", mid); err != nil {
			return err
		}
	}
	for _, mid := range b.DeleteSources {
		if _, err = tx.Exec("DELETE FROM sources WHERE mid = ?", mid); err != nil {
			return err
		}
	}
	for _, hash := range b.DeleteAttachments {
		if _, err = tx.Exec("DELETE FROM attachments WHERE hash = ?", hash); err != nil {
			return err
		}
	}
	for _, entry := range b.Audit {
		docs, jerr := json.Marshal(entry.Documents)
		if jerr != nil {
			err = jerr
			return err
		}
		if _, err = tx.Exec(
			`INSERT INTO audit (id, action, documents, actor, timestamp, affected, outcome)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			entry.ID, entry.Action, string(docs), entry.Actor,
			entry.Timestamp.UTC().Format(timeFormat), entry.Affected, entry.Outcome); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func putEmail(tx *sqlx.Tx, e *storage.Email) error {
	row := emailRow{
		MID:        e.MID,
		MessageID:  e.MessageID,
		ListRaw:    e.ListRaw,
		Private:    e.Private,
		From:       e.From,
		Subject:    e.Subject,
		Date:       e.Date.UTC().Format(timeFormat),
		Epoch:      e.Date.Unix(),
		Body:       e.Body,
		HTML:       e.HTML,
		InReplyTo:  e.InReplyTo,
		References: e.References,
	}
	if _, err := tx.NamedExec(
		`INSERT OR REPLACE INTO emails
		(mid, message_id, list_raw, private, sender, subject, date, epoch, body, html, in_reply_to, refs)
		VALUES
		(:mid, :message_id, :list_raw, :private, :sender, :subject, :date, :epoch, :body, :html,
		:in_reply_to, :refs)`, row); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM email_attachments WHERE mid = ?", e.MID); err != nil {
		return err
	}
	for i, a := range e.Attachments {
		if _, err := tx.NamedExec(
			`INSERT INTO email_attachments (mid, position, hash, filename, content_type, size)
			VALUES (:mid, :position, :hash, :filename, :content_type, :size)`,
			attachmentRefRow{
				MID:         e.MID,
				Position:    i,
				Hash:        a.Hash,
				Filename:    a.Filename,
				ContentType: a.ContentType,
				Size:        a.Size,
			}); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of stored emails.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.Get(&n, "SELECT COUNT(*) FROM emails"); err != nil {
		return 0, err
	}
	return n, nil
}

// AuditEntries returns the audit log, oldest first.
func (s *Store) AuditEntries() ([]*storage.AuditEntry, error) {
	var rows []auditRow
	if err := s.db.Select(&rows, "SELECT * FROM audit ORDER BY seq"); err != nil {
		return nil, err
	}
	entries := make([]*storage.AuditEntry, 0, len(rows))
	for _, row := range rows {
		ts, err := time.Parse(timeFormat, row.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("audit entry %s has invalid timestamp %q: %w", row.ID, row.Timestamp, err)
		}
		var docs []string
		if err := json.Unmarshal([]byte(row.Documents), &docs); err != nil {
			return nil, fmt.Errorf("audit entry %s has invalid documents: %w", row.ID, err)
		}
		entries = append(entries, &storage.AuditEntry{
			ID:        row.ID,
			Action:    row.Action,
			Documents: docs,
			Actor:     row.Actor,
			Timestamp: ts,
			Affected:  row.Affected,
			Outcome:   row.Outcome,
		})
	}
	return entries, nil
}

// Refresh is a no-op, committed transactions are visible to the next query.
func (s *Store) Refresh() error {
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	log.Debug().Str("module", "storage").Str("path", s.path).Msg("Closing SQLite store")
	return s.db.Close()
}

// gooseLogger routes migration output through zerolog.
type gooseLogger struct{}

func (gooseLogger) Fatal(v ...any) {
	log.Fatal().Str("module", "storage").Msg(fmt.Sprint(v...))
}

func (gooseLogger) Fatalf(format string, v ...any) {
	log.Fatal().Str("module", "storage").Msgf(format, v...)
}

func (gooseLogger) Print(v ...any) {
	log.Debug().Str("module", "storage").Msg(strings.TrimSpace(fmt.Sprint(v...)))
}

func (gooseLogger) Println(v ...any) {
	log.Debug().Str("module", "storage").Msg(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (gooseLogger) Printf(format string, v ...any) {
	log.Debug().Str("module", "storage").Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
