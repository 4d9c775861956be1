package core

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when a looked-up row does not exist
var ErrNotFound = errors.New("not found")

// ErrDeepUnavailable is returned by deep analysis clients that are
// configured off; callers treat it like any other deep failure
var ErrDeepUnavailable = errors.New("deep analysis unavailable")

// WhitelistStore persists senders the user explicitly marked safe.
// Matching is case-insensitive; only an exact sender match short-circuits
// scoring, the domain check is a secondary signal.
type WhitelistStore interface {
	// IsSafe reports whether the exact sender address is whitelisted
	IsSafe(ctx context.Context, senderEmail string) (bool, error)

	// IsSafeDomain reports whether any whitelisted sender shares the domain
	IsSafeDomain(ctx context.Context, domain string) (bool, error)

	// Add whitelists a sender. Repeated adds increment the counter and
	// refresh the last-seen timestamp rather than erroring.
	Add(ctx context.Context, senderEmail, reason string) error

	// Remove deletes a whitelist entry
	Remove(ctx context.Context, senderEmail string) error

	// List returns all whitelist entries
	List(ctx context.Context) ([]*SafeSender, error)
}

// LearningStore persists user feedback and the per-pattern confidence
// counters derived from it, plus the deleted-lead suppression set.
type LearningStore interface {
	// RecordFeedback appends the feedback record and upserts one learned
	// pattern for the sender domain and one per signal present. Counter
	// increments and the confidence recompute happen atomically per key.
	RecordFeedback(ctx context.Context, fb *FeedbackRecord) error

	// GetAdjustment returns the learned score adjustment for a domain and
	// set of signal flags, always within [-3, 3].
	GetAdjustment(ctx context.Context, domain string, signals []string) (int, error)

	// RecordDeletedLead adds a contact to the permanent suppression set
	RecordDeletedLead(ctx context.Context, dl *DeletedLead) error

	// WasLeadDeleted reports whether a contact is suppressed
	WasLeadDeleted(ctx context.Context, contactEmail string) (bool, error)
}

// LeadStore persists leads keyed by contact email.
type LeadStore interface {
	// UpsertLead inserts a new lead or merges into the existing row for
	// the same contact email (MergeLead semantics), serialized per
	// contact, and returns the stored state.
	UpsertLead(ctx context.Context, lead *Lead) (*Lead, error)

	// GetLead returns the lead for a contact email, or ErrNotFound
	GetLead(ctx context.Context, contactEmail string) (*Lead, error)

	// ListLeads returns all stored leads
	ListLeads(ctx context.Context) ([]*Lead, error)
}

// DeepAnalysisClient is the external domain/authentication reputation
// check. It may time out or fail; callers must degrade to basic-only
// analysis rather than propagate the error.
type DeepAnalysisClient interface {
	// GenerateReport produces a trust report for a sender given the raw
	// message headers and body
	GenerateReport(ctx context.Context, senderEmail string, rawHeaders map[string][]string, rawBody string) (*DeepReport, error)
}
