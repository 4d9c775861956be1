package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mikey/mailrisk/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of the whitelist, learning
// and lead stores. Used for development and tests; state does not survive
// a restart.
type MemoryStore struct {
	mu           sync.RWMutex
	safeSenders  map[string]*core.SafeSender
	feedback     []*core.FeedbackRecord
	patterns     map[patternKey]*core.LearnedPattern
	leads        map[string]*core.Lead
	deletedLeads map[string]*core.DeletedLead
	logger       *zap.Logger
}

type patternKey struct {
	typ   core.PatternType
	value string
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		safeSenders:  make(map[string]*core.SafeSender),
		patterns:     make(map[patternKey]*core.LearnedPattern),
		leads:        make(map[string]*core.Lead),
		deletedLeads: make(map[string]*core.DeletedLead),
		logger:       logger,
	}
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}

// IsSafe reports whether the exact sender address is whitelisted
func (s *MemoryStore) IsSafe(ctx context.Context, senderEmail string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.safeSenders[core.AddressOf(senderEmail)]
	return ok, nil
}

// IsSafeDomain reports whether any whitelisted sender shares the domain
func (s *MemoryStore) IsSafeDomain(ctx context.Context, domain string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ss := range s.safeSenders {
		if ss.Domain == domain {
			return true, nil
		}
	}
	return false, nil
}

// Add whitelists a sender; repeated adds increment the counter and
// refresh the last-seen timestamp
func (s *MemoryStore) Add(ctx context.Context, senderEmail, reason string) error {
	email := core.AddressOf(senderEmail)
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.safeSenders[email]; ok {
		existing.TimesMarked++
		existing.LastSeen = time.Now()
		return nil
	}
	s.safeSenders[email] = &core.SafeSender{
		Email:       email,
		Domain:      core.DomainOf(email),
		Reason:      reason,
		TimesMarked: 1,
		LastSeen:    time.Now(),
	}
	return nil
}

// Remove deletes a whitelist entry
func (s *MemoryStore) Remove(ctx context.Context, senderEmail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.safeSenders, core.AddressOf(senderEmail))
	return nil
}

// List returns all whitelist entries
func (s *MemoryStore) List(ctx context.Context) ([]*core.SafeSender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.SafeSender, 0, len(s.safeSenders))
	for _, ss := range s.safeSenders {
		cp := *ss
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// RecordFeedback appends the feedback record and updates the pattern
// counters for the sender domain and each signal present, atomically
// under the store lock
func (s *MemoryStore) RecordFeedback(ctx context.Context, fb *core.FeedbackRecord) error {
	bucket := fb.UserAssessment.RiskBucket()

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *fb
	s.feedback = append(s.feedback, &cp)

	if fb.Domain != "" {
		s.upsertPattern(core.PatternDomain, fb.Domain, bucket)
	}
	for _, sig := range fb.Signals {
		s.upsertPattern(core.PatternSignal, core.SignalKey(sig), bucket)
	}
	return nil
}

// upsertPattern must be called with the write lock held
func (s *MemoryStore) upsertPattern(typ core.PatternType, value string, bucket core.RiskLevel) {
	key := patternKey{typ: typ, value: value}
	p, ok := s.patterns[key]
	if !ok {
		p = &core.LearnedPattern{Type: typ, Value: value}
		s.patterns[key] = p
	}
	p.RiskBucket = bucket
	p.MatchCount++
	p.CorrectCount++
	p.Recompute()
}

// GetAdjustment computes the learned score adjustment, clamped to [-3, 3]
func (s *MemoryStore) GetAdjustment(ctx context.Context, domain string, signals []string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adjustment := 0
	if domain != "" {
		if p, ok := s.patterns[patternKey{typ: core.PatternDomain, value: domain}]; ok {
			if p.MatchCount >= 3 && p.Confidence > 0.7 {
				adjustment += bucketDirection(p.RiskBucket) * 2
			}
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
		if p, ok := s.patterns[patternKey{typ: core.PatternSignal, value: key}]; ok {
			if p.MatchCount >= 2 && p.Confidence > 0.6 {
				qualified = append(qualified, p)
			}
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

// bucketDirection maps a learned risk bucket to the sign of its score
// contribution: safe pulls down, high/critical push up
func bucketDirection(bucket core.RiskLevel) int {
	switch bucket {
	case core.RiskLevelHigh, core.RiskLevelCritical:
		return 1
	case core.RiskLevelSafe:
		return -1
	default:
		return 0
	}
}

func clampAdjustment(adj int) int {
	if adj < -3 {
		return -3
	}
	if adj > 3 {
		return 3
	}
	return adj
}

// RecordDeletedLead adds a contact to the permanent suppression set
func (s *MemoryStore) RecordDeletedLead(ctx context.Context, dl *core.DeletedLead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *dl
	s.deletedLeads[core.AddressOf(dl.ContactEmail)] = &cp
	return nil
}

// WasLeadDeleted reports whether a contact is suppressed
func (s *MemoryStore) WasLeadDeleted(ctx context.Context, contactEmail string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.deletedLeads[core.AddressOf(contactEmail)]
	return ok, nil
}

// UpsertLead inserts or merges a lead, serialized under the store lock
func (s *MemoryStore) UpsertLead(ctx context.Context, lead *core.Lead) (*core.Lead, error) {
	email := core.AddressOf(lead.ContactEmail)
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.leads[email]; ok {
		merged := core.MergeLead(existing, lead)
		s.leads[email] = merged
		cp := *merged
		return &cp, nil
	}

	cp := *lead
	cp.ContactEmail = email
	s.leads[email] = &cp
	out := cp
	return &out, nil
}

// GetLead returns the lead for a contact email
func (s *MemoryStore) GetLead(ctx context.Context, contactEmail string) (*core.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lead, ok := s.leads[core.AddressOf(contactEmail)]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *lead
	return &cp, nil
}

// ListLeads returns all stored leads
func (s *MemoryStore) ListLeads(ctx context.Context) ([]*core.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Lead, 0, len(s.leads))
	for _, lead := range s.leads {
		cp := *lead
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContactEmail < out[j].ContactEmail })
	return out, nil
}
