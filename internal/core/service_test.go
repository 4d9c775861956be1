package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(wl *stubWhitelist, learning *stubLearning) *RiskService {
	scorer := newTestScorer(nil, wl, learning)
	analyzer := NewCombinedAnalyzer(scorer, &stubDeep{err: ErrDeepUnavailable}, time.Second, zap.NewNop())
	classifier := NewLeadClassifier(DefaultLeadConfig(), learning, newStubLeadStore(), &stubDeep{err: ErrDeepUnavailable}, time.Second, zap.NewNop())
	return NewRiskService(analyzer, classifier, wl, learning, zap.NewNop())
}

func TestRiskService_RecordFeedbackSafeWhitelists(t *testing.T) {
	wl := &stubWhitelist{}
	learning := &stubLearning{}
	svc := newTestService(wl, learning)

	shown := NewRiskAssessment(7, []string{"suspicious TLD: .xyz"}, false)
	err := svc.RecordFeedback(context.Background(), "msg-1", "Jane <jane@startup.example>", shown, AssessedSafe, "known vendor")
	require.NoError(t, err)

	require.Len(t, learning.feedback, 1)
	fb := learning.feedback[0]
	assert.Equal(t, "jane@startup.example", fb.Sender)
	assert.Equal(t, "startup.example", fb.Domain)
	assert.Equal(t, 7, fb.OriginalScore)
	assert.Equal(t, AssessedSafe, fb.UserAssessment)
	assert.Equal(t, []string{"suspicious TLD: .xyz"}, fb.Signals)

	assert.True(t, wl.safe["jane@startup.example"])
}

func TestRiskService_RecordFeedbackSpamDoesNotWhitelist(t *testing.T) {
	wl := &stubWhitelist{}
	learning := &stubLearning{}
	svc := newTestService(wl, learning)

	shown := NewRiskAssessment(4, nil, false)
	err := svc.RecordFeedback(context.Background(), "msg-2", "spam@bad.example", shown, AssessedSpam, "")
	require.NoError(t, err)

	require.Len(t, learning.feedback, 1)
	assert.Empty(t, wl.safe)
}

func TestRiskService_DeleteLeadSuppresses(t *testing.T) {
	learning := &stubLearning{}
	svc := newTestService(&stubWhitelist{}, learning)

	lead := &Lead{
		ContactEmail: "fake@bad.example",
		Type:         LeadCustomer,
		Score:        70,
		Signals:      []string{"pricing"},
	}
	require.NoError(t, svc.DeleteLead(context.Background(), lead, "fake inquiry"))

	require.Len(t, learning.deletions, 1)
	dl := learning.deletions[0]
	assert.Equal(t, "fake@bad.example", dl.ContactEmail)
	assert.Equal(t, "fake inquiry", dl.Reason)
	assert.Equal(t, LeadCustomer, dl.LeadType)
	assert.Equal(t, 70, dl.Score)
}

func TestRiskService_MarkSenderSafe(t *testing.T) {
	wl := &stubWhitelist{}
	svc := newTestService(wl, &stubLearning{})

	require.NoError(t, svc.MarkSenderSafe(context.Background(), "Boss <boss@corp.example>", "manual"))
	assert.True(t, wl.safe["boss@corp.example"])

	require.NoError(t, svc.RemoveSafeSender(context.Background(), "boss@corp.example"))
	assert.Empty(t, wl.safe)
}
