package core

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RiskService is the engine's entry point for callers: message analysis,
// lead classification, and the feedback paths that drive learning.
type RiskService struct {
	analyzer   *CombinedAnalyzer
	classifier *LeadClassifier
	whitelist  WhitelistStore
	learning   LearningStore
	logger     *zap.Logger
}

// NewRiskService creates a new risk service
func NewRiskService(
	analyzer *CombinedAnalyzer,
	classifier *LeadClassifier,
	whitelist WhitelistStore,
	learning LearningStore,
	logger *zap.Logger,
) *RiskService {
	return &RiskService{
		analyzer:   analyzer,
		classifier: classifier,
		whitelist:  whitelist,
		learning:   learning,
		logger:     logger,
	}
}

// AnalyzeMessage runs the full risk pipeline on a message. It always
// returns an assessment; degraded dependencies only reduce its depth.
func (s *RiskService) AnalyzeMessage(ctx context.Context, msg *Message) *CombinedAssessment {
	return s.analyzer.Analyze(ctx, msg)
}

// ClassifyLead runs the lead pipeline on a message. A nil lead with nil
// error means the message yielded no lead.
func (s *RiskService) ClassifyLead(ctx context.Context, msg *Message) (*Lead, error) {
	return s.classifier.Classify(ctx, msg)
}

// RecordFeedback ingests the user's verdict on an assessment they were
// shown. Feedback is ground truth for the learning store; a sender the
// user calls safe is also whitelisted. Write failures are returned to the
// caller: silently dropping feedback would corrupt the learning signal.
func (s *RiskService) RecordFeedback(
	ctx context.Context,
	emailID string,
	sender string,
	shown *RiskAssessment,
	verdict UserAssessment,
	reason string,
) error {
	fb := &FeedbackRecord{
		EmailID:        emailID,
		Sender:         AddressOf(sender),
		Domain:         DomainOf(sender),
		OriginalScore:  shown.Score,
		OriginalLevel:  shown.Level,
		UserAssessment: verdict,
		Reason:         reason,
		Signals:        shown.Flags,
		CreatedAt:      time.Now(),
	}
	if err := s.learning.RecordFeedback(ctx, fb); err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}

	if verdict == AssessedSafe {
		if err := s.whitelist.Add(ctx, fb.Sender, "user marked safe"); err != nil {
			return fmt.Errorf("failed to whitelist sender: %w", err)
		}
	}

	s.logger.Info("Recorded feedback",
		zap.String("email_id", emailID),
		zap.String("sender", fb.Sender),
		zap.String("verdict", string(verdict)))
	return nil
}

// DeleteLead suppresses a contact permanently; it will never be
// re-surfaced as a new lead.
func (s *RiskService) DeleteLead(ctx context.Context, lead *Lead, reason string) error {
	dl := &DeletedLead{
		ContactEmail: lead.ContactEmail,
		Reason:       reason,
		Signals:      lead.Signals,
		LeadType:     lead.Type,
		Score:        lead.Score,
		DeletedAt:    time.Now(),
	}
	if err := s.learning.RecordDeletedLead(ctx, dl); err != nil {
		return fmt.Errorf("failed to record deleted lead: %w", err)
	}
	s.logger.Info("Suppressed lead", zap.String("contact", lead.ContactEmail))
	return nil
}

// MarkSenderSafe whitelists a sender on explicit user action
func (s *RiskService) MarkSenderSafe(ctx context.Context, senderEmail, reason string) error {
	return s.whitelist.Add(ctx, AddressOf(senderEmail), reason)
}

// RemoveSafeSender removes a sender from the whitelist
func (s *RiskService) RemoveSafeSender(ctx context.Context, senderEmail string) error {
	return s.whitelist.Remove(ctx, AddressOf(senderEmail))
}
