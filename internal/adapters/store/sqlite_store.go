package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/mailrisk/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the whitelist, learning and
// lead stores
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (and if needed initializes) a SQLite store
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS safe_senders (
			email TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			reason TEXT,
			times_marked INTEGER NOT NULL DEFAULT 1,
			last_seen TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_safe_senders_domain ON safe_senders(domain)`,
		`CREATE TABLE IF NOT EXISTS feedback_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			domain TEXT NOT NULL,
			original_score INTEGER NOT NULL,
			original_level TEXT NOT NULL,
			user_assessment TEXT NOT NULL,
			reason TEXT,
			signals TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS learned_patterns (
			pattern_type TEXT NOT NULL,
			pattern_value TEXT NOT NULL,
			risk_bucket TEXT NOT NULL,
			match_count INTEGER NOT NULL DEFAULT 0,
			correct_count INTEGER NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (pattern_type, pattern_value)
		)`,
		`CREATE TABLE IF NOT EXISTS leads (
			contact_email TEXT PRIMARY KEY,
			contact_name TEXT,
			company TEXT,
			lead_type TEXT NOT NULL,
			status TEXT NOT NULL,
			score INTEGER NOT NULL,
			confidence REAL NOT NULL,
			signals TEXT,
			deep_score INTEGER,
			deep_risk_level TEXT,
			next_action TEXT,
			conversation_count INTEGER NOT NULL DEFAULT 1,
			first_seen TIMESTAMP NOT NULL,
			last_seen TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS deleted_leads (
			contact_email TEXT PRIMARY KEY,
			reason TEXT,
			signals TEXT,
			lead_type TEXT,
			score INTEGER,
			deleted_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// IsSafe reports whether the exact sender address is whitelisted
func (s *SQLiteStore) IsSafe(ctx context.Context, senderEmail string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM safe_senders WHERE email = ?`,
		core.AddressOf(senderEmail)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query safe sender: %w", err)
	}
	return true, nil
}

// IsSafeDomain reports whether any whitelisted sender shares the domain
func (s *SQLiteStore) IsSafeDomain(ctx context.Context, domain string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM safe_senders WHERE domain = ? LIMIT 1`, domain).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query safe domain: %w", err)
	}
	return true, nil
}

// Add whitelists a sender, incrementing the counter on repeats
func (s *SQLiteStore) Add(ctx context.Context, senderEmail, reason string) error {
	email := core.AddressOf(senderEmail)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO safe_senders (email, domain, reason, times_marked, last_seen)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(email) DO UPDATE SET
			times_marked = times_marked + 1,
			last_seen = excluded.last_seen
	`, email, core.DomainOf(email), reason, time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to add safe sender: %w", err)
	}
	return nil
}

// Remove deletes a whitelist entry
func (s *SQLiteStore) Remove(ctx context.Context, senderEmail string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM safe_senders WHERE email = ?`, core.AddressOf(senderEmail))
	if err != nil {
		return fmt.Errorf("failed to remove safe sender: %w", err)
	}
	return nil
}

// List returns all whitelist entries
func (s *SQLiteStore) List(ctx context.Context) ([]*core.SafeSender, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT email, domain, reason, times_marked, last_seen
		FROM safe_senders ORDER BY email
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list safe senders: %w", err)
	}
	defer rows.Close()

	var out []*core.SafeSender
	for rows.Next() {
		var ss core.SafeSender
		var lastSeen string
		if err := rows.Scan(&ss.Email, &ss.Domain, &ss.Reason, &ss.TimesMarked, &lastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan safe sender: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, lastSeen); err == nil {
			ss.LastSeen = t
		}
		out = append(out, &ss)
	}
	return out, rows.Err()
}

// RecordFeedback appends the feedback record and updates the pattern
// counters in a single transaction, so concurrent feedback on the same
// domain never loses an increment
func (s *SQLiteStore) RecordFeedback(ctx context.Context, fb *core.FeedbackRecord) error {
	signals, err := json.Marshal(fb.Signals)
	if err != nil {
		return fmt.Errorf("failed to encode signals: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO feedback_log
			(email_id, sender, domain, original_score, original_level,
			 user_assessment, reason, signals, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, fb.EmailID, fb.Sender, fb.Domain, fb.OriginalScore, string(fb.OriginalLevel),
		string(fb.UserAssessment), fb.Reason, string(signals),
		fb.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	bucket := fb.UserAssessment.RiskBucket()
	if fb.Domain != "" {
		if err := upsertPatternTx(ctx, tx, core.PatternDomain, fb.Domain, bucket); err != nil {
			return err
		}
	}
	seen := make(map[string]struct{})
	for _, sig := range fb.Signals {
		key := core.SignalKey(sig)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if err := upsertPatternTx(ctx, tx, core.PatternSignal, key, bucket); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feedback: %w", err)
	}
	return nil
}

// upsertPatternTx increments the counters and recomputes confidence in
// one statement; the DO UPDATE arithmetic references the pre-update row
// so the recompute can never read a half-applied state
func upsertPatternTx(ctx context.Context, tx *sql.Tx, typ core.PatternType, value string, bucket core.RiskLevel) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO learned_patterns
			(pattern_type, pattern_value, risk_bucket, match_count, correct_count, confidence)
		VALUES (?, ?, ?, 1, 1, 1.0)
		ON CONFLICT(pattern_type, pattern_value) DO UPDATE SET
			risk_bucket = excluded.risk_bucket,
			match_count = match_count + 1,
			correct_count = correct_count + 1,
			confidence = CAST(correct_count + 1 AS REAL) / (match_count + 1)
	`, string(typ), value, string(bucket))
	if err != nil {
		return fmt.Errorf("failed to upsert pattern %s/%s: %w", typ, value, err)
	}
	return nil
}

// GetAdjustment computes the learned score adjustment, clamped to [-3, 3]
func (s *SQLiteStore) GetAdjustment(ctx context.Context, domain string, signals []string) (int, error) {
	adjustment := 0

	if domain != "" {
		var bucket string
		var matchCount int
		var confidence float64
		err := s.db.QueryRowContext(ctx, `
			SELECT risk_bucket, match_count, confidence
			FROM learned_patterns
			WHERE pattern_type = ? AND pattern_value = ?
		`, string(core.PatternDomain), domain).Scan(&bucket, &matchCount, &confidence)
		if err != nil && err != sql.ErrNoRows {
			return 0, fmt.Errorf("failed to query domain pattern: %w", err)
		}
		if err == nil && matchCount >= 3 && confidence > 0.7 {
			adjustment += bucketDirection(core.RiskLevel(bucket)) * 2
		}
	}

	var qualified []*core.LearnedPattern
	seen := make(map[string]struct{})
	for _, sig := range signals {
		key := core.SignalKey(sig)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		var p core.LearnedPattern
		var bucket string
		err := s.db.QueryRowContext(ctx, `
			SELECT risk_bucket, match_count, confidence
			FROM learned_patterns
			WHERE pattern_type = ? AND pattern_value = ?
		`, string(core.PatternSignal), key).Scan(&bucket, &p.MatchCount, &p.Confidence)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to query signal pattern: %w", err)
		}
		p.RiskBucket = core.RiskLevel(bucket)
		if p.MatchCount >= 2 && p.Confidence > 0.6 {
			qualified = append(qualified, &p)
		}
	}
	sort.Slice(qualified, func(i, j int) bool {
		if qualified[i].Confidence != qualified[j].Confidence {
			return qualified[i].Confidence > qualified[j].Confidence
		}
		return qualified[i].MatchCount > qualified[j].MatchCount
	})
	if len(qualified) > 3 {
		qualified = qualified[:3]
	}
	for _, p := range qualified {
		adjustment += bucketDirection(p.RiskBucket)
	}

	return clampAdjustment(adjustment), nil
}

// RecordDeletedLead adds a contact to the permanent suppression set
func (s *SQLiteStore) RecordDeletedLead(ctx context.Context, dl *core.DeletedLead) error {
	signals, err := json.Marshal(dl.Signals)
	if err != nil {
		return fmt.Errorf("failed to encode signals: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO deleted_leads (contact_email, reason, signals, lead_type, score, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(contact_email) DO UPDATE SET
			reason = excluded.reason,
			deleted_at = excluded.deleted_at
	`, core.AddressOf(dl.ContactEmail), dl.Reason, string(signals),
		string(dl.LeadType), dl.Score, dl.DeletedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record deleted lead: %w", err)
	}
	return nil
}

// WasLeadDeleted reports whether a contact is suppressed
func (s *SQLiteStore) WasLeadDeleted(ctx context.Context, contactEmail string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM deleted_leads WHERE contact_email = ?`,
		core.AddressOf(contactEmail)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query deleted lead: %w", err)
	}
	return true, nil
}

// UpsertLead inserts or merges a lead inside a transaction; the primary
// key on contact_email guarantees two concurrent first contacts cannot
// both insert
func (s *SQLiteStore) UpsertLead(ctx context.Context, lead *core.Lead) (*core.Lead, error) {
	email := core.AddressOf(lead.ContactEmail)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanLead(tx.QueryRowContext(ctx, leadSelect+` WHERE contact_email = ?`, email))
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query lead: %w", err)
	}

	final := lead
	if err == nil {
		final = core.MergeLead(existing, lead)
	}
	final.ContactEmail = email

	signals, err := json.Marshal(final.Signals)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signals: %w", err)
	}
	var deepScore interface{}
	if final.DeepScore != nil {
		deepScore = *final.DeepScore
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO leads
			(contact_email, contact_name, company, lead_type, status, score,
			 confidence, signals, deep_score, deep_risk_level, next_action,
			 conversation_count, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(contact_email) DO UPDATE SET
			contact_name = excluded.contact_name,
			company = excluded.company,
			lead_type = excluded.lead_type,
			status = excluded.status,
			score = excluded.score,
			confidence = excluded.confidence,
			signals = excluded.signals,
			deep_score = excluded.deep_score,
			deep_risk_level = excluded.deep_risk_level,
			next_action = excluded.next_action,
			conversation_count = excluded.conversation_count,
			last_seen = excluded.last_seen
	`, final.ContactEmail, final.ContactName, final.Company, string(final.Type),
		string(final.Status), final.Score, final.Confidence, string(signals),
		deepScore, string(final.DeepRiskLevel), final.NextAction,
		final.ConversationCount,
		final.FirstSeen.Format(time.RFC3339), final.LastSeen.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert lead: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit lead: %w", err)
	}

	cp := *final
	return &cp, nil
}

const leadSelect = `
	SELECT contact_email, contact_name, company, lead_type, status, score,
	       confidence, signals, deep_score, deep_risk_level, next_action,
	       conversation_count, first_seen, last_seen
	FROM leads`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLead(row rowScanner) (*core.Lead, error) {
	var lead core.Lead
	var leadType, status, deepRisk, signals, firstSeen, lastSeen string
	var deepScore sql.NullInt64

	err := row.Scan(&lead.ContactEmail, &lead.ContactName, &lead.Company,
		&leadType, &status, &lead.Score, &lead.Confidence, &signals,
		&deepScore, &deepRisk, &lead.NextAction, &lead.ConversationCount,
		&firstSeen, &lastSeen)
	if err != nil {
		return nil, err
	}

	lead.Type = core.LeadType(leadType)
	lead.Status = core.LeadStatus(status)
	lead.DeepRiskLevel = core.DeepRiskLevel(deepRisk)
	if deepScore.Valid {
		v := int(deepScore.Int64)
		lead.DeepScore = &v
	}
	if signals != "" {
		if err := json.Unmarshal([]byte(signals), &lead.Signals); err != nil {
			return nil, fmt.Errorf("failed to decode signals: %w", err)
		}
	}
	lead.FirstSeen = parseStoredTime(firstSeen)
	lead.LastSeen = parseStoredTime(lastSeen)
	return &lead, nil
}

// parseStoredTime accepts both the SQLite (RFC3339) and MySQL (DATETIME)
// column formats
func parseStoredTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, mysqlTimeFormat} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// GetLead returns the lead for a contact email
func (s *SQLiteStore) GetLead(ctx context.Context, contactEmail string) (*core.Lead, error) {
	lead, err := scanLead(s.db.QueryRowContext(ctx,
		leadSelect+` WHERE contact_email = ?`, core.AddressOf(contactEmail)))
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

// ListLeads returns all stored leads
func (s *SQLiteStore) ListLeads(ctx context.Context) ([]*core.Lead, error) {
	rows, err := s.db.QueryContext(ctx, leadSelect+` ORDER BY contact_email`)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var out []*core.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}
