package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/mailrisk/internal/core"
	"go.uber.org/zap"
)

const mysqlTimeFormat = "2006-01-02 15:04:05"

// MySQLStore is a MySQL implementation of the whitelist, learning and
// lead stores
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore opens a MySQL store and initializes its schema
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS safe_senders (
			email VARCHAR(255) PRIMARY KEY,
			domain VARCHAR(255) NOT NULL,
			reason TEXT,
			times_marked INT NOT NULL DEFAULT 1,
			last_seen DATETIME NOT NULL,
			INDEX idx_safe_senders_domain (domain)
		)`,
		`CREATE TABLE IF NOT EXISTS feedback_log (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			email_id VARCHAR(255) NOT NULL,
			sender VARCHAR(255) NOT NULL,
			domain VARCHAR(255) NOT NULL,
			original_score INT NOT NULL,
			original_level VARCHAR(16) NOT NULL,
			user_assessment VARCHAR(16) NOT NULL,
			reason TEXT,
			signals TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS learned_patterns (
			pattern_type VARCHAR(16) NOT NULL,
			pattern_value VARCHAR(255) NOT NULL,
			risk_bucket VARCHAR(16) NOT NULL,
			match_count INT NOT NULL DEFAULT 0,
			correct_count INT NOT NULL DEFAULT 0,
			confidence DOUBLE NOT NULL DEFAULT 0,
			PRIMARY KEY (pattern_type, pattern_value)
		)`,
		`CREATE TABLE IF NOT EXISTS leads (
			contact_email VARCHAR(255) PRIMARY KEY,
			contact_name VARCHAR(255),
			company VARCHAR(255),
			lead_type VARCHAR(16) NOT NULL,
			status VARCHAR(16) NOT NULL,
			score INT NOT NULL,
			confidence DOUBLE NOT NULL,
			signals TEXT,
			deep_score INT,
			deep_risk_level VARCHAR(16),
			next_action VARCHAR(255),
			conversation_count INT NOT NULL DEFAULT 1,
			first_seen DATETIME NOT NULL,
			last_seen DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS deleted_leads (
			contact_email VARCHAR(255) PRIMARY KEY,
			reason TEXT,
			signals TEXT,
			lead_type VARCHAR(16),
			score INT,
			deleted_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &MySQLStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// IsSafe reports whether the exact sender address is whitelisted
func (s *MySQLStore) IsSafe(ctx context.Context, senderEmail string) (bool, error) {
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
func (s *MySQLStore) IsSafeDomain(ctx context.Context, domain string) (bool, error) {
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
func (s *MySQLStore) Add(ctx context.Context, senderEmail, reason string) error {
	email := core.AddressOf(senderEmail)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO safe_senders (email, domain, reason, times_marked, last_seen)
		VALUES (?, ?, ?, 1, ?)
		ON DUPLICATE KEY UPDATE
			times_marked = times_marked + 1,
			last_seen = VALUES(last_seen)
	`, email, core.DomainOf(email), reason, time.Now().Format(mysqlTimeFormat))
	if err != nil {
		return fmt.Errorf("failed to add safe sender: %w", err)
	}
	return nil
}

// Remove deletes a whitelist entry
func (s *MySQLStore) Remove(ctx context.Context, senderEmail string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM safe_senders WHERE email = ?`, core.AddressOf(senderEmail))
	if err != nil {
		return fmt.Errorf("failed to remove safe sender: %w", err)
	}
	return nil
}

// List returns all whitelist entries
func (s *MySQLStore) List(ctx context.Context) ([]*core.SafeSender, error) {
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
		if t, err := time.Parse(mysqlTimeFormat, lastSeen); err == nil {
			ss.LastSeen = t
		}
		out = append(out, &ss)
	}
	return out, rows.Err()
}

// RecordFeedback appends the feedback record and updates the pattern
// counters in a single transaction
func (s *MySQLStore) RecordFeedback(ctx context.Context, fb *core.FeedbackRecord) error {
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
		fb.CreatedAt.Format(mysqlTimeFormat))
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}

	bucket := fb.UserAssessment.RiskBucket()
	upsert := func(typ core.PatternType, value string) error {
		// MySQL applies ON DUPLICATE KEY assignments left to right, so the
		// confidence recompute sees the already-incremented counters.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO learned_patterns
				(pattern_type, pattern_value, risk_bucket, match_count, correct_count, confidence)
			VALUES (?, ?, ?, 1, 1, 1.0)
			ON DUPLICATE KEY UPDATE
				risk_bucket = VALUES(risk_bucket),
				match_count = match_count + 1,
				correct_count = correct_count + 1,
				confidence = correct_count / match_count
		`, string(typ), value, string(bucket))
		if err != nil {
			return fmt.Errorf("failed to upsert pattern %s/%s: %w", typ, value, err)
		}
		return nil
	}

	if fb.Domain != "" {
		if err := upsert(core.PatternDomain, fb.Domain); err != nil {
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
		if err := upsert(core.PatternSignal, key); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feedback: %w", err)
	}
	return nil
}

// GetAdjustment computes the learned score adjustment, clamped to [-3, 3]
func (s *MySQLStore) GetAdjustment(ctx context.Context, domain string, signals []string) (int, error) {
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
func (s *MySQLStore) RecordDeletedLead(ctx context.Context, dl *core.DeletedLead) error {
	signals, err := json.Marshal(dl.Signals)
	if err != nil {
		return fmt.Errorf("failed to encode signals: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO deleted_leads (contact_email, reason, signals, lead_type, score, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			reason = VALUES(reason),
			deleted_at = VALUES(deleted_at)
	`, core.AddressOf(dl.ContactEmail), dl.Reason, string(signals),
		string(dl.LeadType), dl.Score, dl.DeletedAt.Format(mysqlTimeFormat))
	if err != nil {
		return fmt.Errorf("failed to record deleted lead: %w", err)
	}
	return nil
}

// WasLeadDeleted reports whether a contact is suppressed
func (s *MySQLStore) WasLeadDeleted(ctx context.Context, contactEmail string) (bool, error) {
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

// UpsertLead inserts or merges a lead; the row is locked for the duration
// of the transaction so concurrent saves for one contact serialize
func (s *MySQLStore) UpsertLead(ctx context.Context, lead *core.Lead) (*core.Lead, error) {
	email := core.AddressOf(lead.ContactEmail)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanLead(tx.QueryRowContext(ctx,
		mysqlLeadSelect+` WHERE contact_email = ? FOR UPDATE`, email))
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
		ON DUPLICATE KEY UPDATE
			contact_name = VALUES(contact_name),
			company = VALUES(company),
			lead_type = VALUES(lead_type),
			status = VALUES(status),
			score = VALUES(score),
			confidence = VALUES(confidence),
			signals = VALUES(signals),
			deep_score = VALUES(deep_score),
			deep_risk_level = VALUES(deep_risk_level),
			next_action = VALUES(next_action),
			conversation_count = VALUES(conversation_count),
			last_seen = VALUES(last_seen)
	`, final.ContactEmail, final.ContactName, final.Company, string(final.Type),
		string(final.Status), final.Score, final.Confidence, string(signals),
		deepScore, string(final.DeepRiskLevel), final.NextAction,
		final.ConversationCount,
		final.FirstSeen.Format(mysqlTimeFormat), final.LastSeen.Format(mysqlTimeFormat))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert lead: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit lead: %w", err)
	}

	cp := *final
	return &cp, nil
}

const mysqlLeadSelect = `
	SELECT contact_email, contact_name, company, lead_type, status, score,
	       confidence, signals, deep_score, deep_risk_level, next_action,
	       conversation_count, first_seen, last_seen
	FROM leads`

// GetLead returns the lead for a contact email
func (s *MySQLStore) GetLead(ctx context.Context, contactEmail string) (*core.Lead, error) {
	lead, err := scanLead(s.db.QueryRowContext(ctx,
		mysqlLeadSelect+` WHERE contact_email = ?`, core.AddressOf(contactEmail)))
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}

// ListLeads returns all stored leads
func (s *MySQLStore) ListLeads(ctx context.Context) ([]*core.Lead, error) {
	rows, err := s.db.QueryContext(ctx, mysqlLeadSelect+` ORDER BY contact_email`)
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
