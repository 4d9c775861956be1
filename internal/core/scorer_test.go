package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedExtractor struct {
	name string
	res  SignalResult
}

func (e *fixedExtractor) Name() string                 { return e.name }
func (e *fixedExtractor) Evaluate(_ *Message) SignalResult { return e.res }

type stubWhitelist struct {
	safe       map[string]bool
	safeDomain map[string]bool
}

func (s *stubWhitelist) IsSafe(_ context.Context, email string) (bool, error) {
	return s.safe[email], nil
}
func (s *stubWhitelist) IsSafeDomain(_ context.Context, domain string) (bool, error) {
	return s.safeDomain[domain], nil
}
func (s *stubWhitelist) Add(_ context.Context, email, _ string) error {
	if s.safe == nil {
		s.safe = make(map[string]bool)
	}
	s.safe[email] = true
	return nil
}
func (s *stubWhitelist) Remove(_ context.Context, email string) error {
	delete(s.safe, email)
	return nil
}
func (s *stubWhitelist) List(_ context.Context) ([]*SafeSender, error) { return nil, nil }

type stubLearning struct {
	adjustment int
	deleted    map[string]bool
	feedback   []*FeedbackRecord
	deletions  []*DeletedLead
}

func (s *stubLearning) RecordFeedback(_ context.Context, fb *FeedbackRecord) error {
	s.feedback = append(s.feedback, fb)
	return nil
}
func (s *stubLearning) GetAdjustment(_ context.Context, _ string, _ []string) (int, error) {
	return s.adjustment, nil
}
func (s *stubLearning) RecordDeletedLead(_ context.Context, dl *DeletedLead) error {
	s.deletions = append(s.deletions, dl)
	return nil
}
func (s *stubLearning) WasLeadDeleted(_ context.Context, email string) (bool, error) {
	return s.deleted[email], nil
}

func newTestScorer(extractors []SignalExtractor, wl *stubWhitelist, learning *stubLearning) *BaseRiskScorer {
	return NewBaseRiskScorer(extractors, wl, learning, DefaultScorerConfig(), zap.NewNop())
}

func TestBaseRiskScorer_WhitelistShortCircuits(t *testing.T) {
	wl := &stubWhitelist{safe: map[string]bool{"ceo@partner.com": true}}
	scorer := newTestScorer(
		[]SignalExtractor{&fixedExtractor{name: "noisy", res: SignalResult{Delta: 9, Flags: []string{"x"}}}},
		wl, &stubLearning{},
	)

	got := scorer.Assess(context.Background(), &Message{From: "CEO <ceo@partner.com>"})

	assert.Equal(t, 1, got.Score)
	assert.Equal(t, RiskLevelSafe, got.Level)
	assert.True(t, got.IsWhitelisted)
	assert.Equal(t, []string{"sender is whitelisted"}, got.Flags)
	assert.Equal(t, ActionNone, got.RecommendedAction)
}

func TestBaseRiskScorer_SumsExtractorDeltas(t *testing.T) {
	scorer := newTestScorer(
		[]SignalExtractor{
			&fixedExtractor{name: "a", res: SignalResult{Delta: 2, Flags: []string{"flag a"}}},
			&fixedExtractor{name: "b", res: SignalResult{Delta: 3, Flags: []string{"flag b"}}},
		},
		&stubWhitelist{}, &stubLearning{},
	)

	got := scorer.Assess(context.Background(), &Message{From: "x@example.com"})

	assert.Equal(t, 6, got.Score) // baseline 1 + 2 + 3
	assert.Equal(t, RiskLevelModerate, got.Level)
	assert.Equal(t, ActionReview, got.RecommendedAction)
	assert.Equal(t, []string{"flag a", "flag b"}, got.Flags)
	assert.False(t, got.IsWhitelisted)
}

func TestBaseRiskScorer_ClampsToTen(t *testing.T) {
	scorer := newTestScorer(
		[]SignalExtractor{&fixedExtractor{name: "a", res: SignalResult{Delta: 25}}},
		&stubWhitelist{}, &stubLearning{},
	)

	got := scorer.Assess(context.Background(), &Message{From: "x@example.com"})

	assert.Equal(t, 10, got.Score)
	assert.Equal(t, RiskLevelCritical, got.Level)
	assert.Equal(t, ActionDelete, got.RecommendedAction)
}

func TestBaseRiskScorer_SafeDomainDampens(t *testing.T) {
	wl := &stubWhitelist{safeDomain: map[string]bool{"example.com": true}}
	scorer := newTestScorer(
		[]SignalExtractor{&fixedExtractor{name: "a", res: SignalResult{Delta: 4}}},
		wl, &stubLearning{},
	)

	got := scorer.Assess(context.Background(), &Message{From: "x@example.com"})

	assert.Equal(t, 3, got.Score) // 1 + 4 - 2
	assert.Contains(t, got.Flags, "sender domain previously marked safe")
	assert.False(t, got.IsWhitelisted)
}

func TestBaseRiskScorer_LearnedAdjustment(t *testing.T) {
	tests := []struct {
		name       string
		delta      int
		adjustment int
		wantScore  int
		wantFlag   string
	}{
		{
			name:       "positive adjustment raises score",
			delta:      3,
			adjustment: 2,
			wantScore:  6,
			wantFlag:   "learned adjustment: +2",
		},
		{
			name:       "negative adjustment lowers score",
			delta:      4,
			adjustment: -3,
			wantScore:  2,
			wantFlag:   "learned adjustment: -3",
		},
		{
			name:       "adjustment applies before the clamp",
			delta:      12,
			adjustment: 3,
			wantScore:  10,
			wantFlag:   "learned adjustment: +3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := newTestScorer(
				[]SignalExtractor{&fixedExtractor{name: "a", res: SignalResult{Delta: tt.delta}}},
				&stubWhitelist{}, &stubLearning{adjustment: tt.adjustment},
			)

			got := scorer.Assess(context.Background(), &Message{From: "x@example.com"})

			assert.Equal(t, tt.wantScore, got.Score)
			assert.Contains(t, got.Flags, tt.wantFlag)
		})
	}
}

func TestBaseRiskScorer_Idempotent(t *testing.T) {
	scorer := newTestScorer(
		[]SignalExtractor{&fixedExtractor{name: "a", res: SignalResult{Delta: 5, Flags: []string{"f"}}}},
		&stubWhitelist{}, &stubLearning{},
	)
	msg := &Message{From: "x@example.com", Subject: "hello"}

	first := scorer.Assess(context.Background(), msg)
	second := scorer.Assess(context.Background(), msg)

	require.Equal(t, first.Score, second.Score)
	require.Equal(t, first.Level, second.Level)
	require.Equal(t, first.Flags, second.Flags)
}

func TestBaseRiskScorer_ShouldCreateTask(t *testing.T) {
	tests := []struct {
		name  string
		delta int
		msg   *Message
		want  bool
	}{
		{
			name:  "direct question",
			delta: 0,
			msg:   &Message{From: "ann@client.com", Subject: "Quick question", Body: "Could we move the date? Let me know."},
			want:  true,
		},
		{
			name:  "transactional no-reply",
			delta: 0,
			msg:   &Message{From: "no-reply@shop.example.com", Subject: "Your payment confirmation", Body: "Thanks for the order."},
			want:  true,
		},
		{
			name:  "non-transactional no-reply",
			delta: 0,
			msg:   &Message{From: "noreply@news.example.com", Subject: "What we shipped this month", Body: "All the highlights."},
			want:  false,
		},
		{
			name:  "promotional label",
			delta: 0,
			msg:   &Message{From: "ann@client.com", Subject: "Can you help?", Body: "please", Labels: []string{"CATEGORY_PROMOTIONS"}},
			want:  false,
		},
		{
			name:  "unsubscribe footer",
			delta: 0,
			msg:   &Message{From: "ann@client.com", Subject: "Monthly roundup", Body: "Could you read this? Click unsubscribe to stop."},
			want:  false,
		},
		{
			name:  "risky message never becomes a task",
			delta: 8,
			msg:   &Message{From: "ann@evil.example.com", Subject: "Can you wire money?", Body: "please"},
			want:  false,
		},
		{
			name:  "meeting wording",
			delta: 0,
			msg:   &Message{From: "bob@client.com", Subject: "Sync on Thursday", Body: "Moving our meeting to 3pm."},
			want:  true,
		},
		{
			name:  "plain statement",
			delta: 0,
			msg:   &Message{From: "bob@client.com", Subject: "Heads up", Body: "The office is closed next Saturday."},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := newTestScorer(
				[]SignalExtractor{&fixedExtractor{name: "a", res: SignalResult{Delta: tt.delta}}},
				&stubWhitelist{}, &stubLearning{},
			)
			got := scorer.Assess(context.Background(), tt.msg)
			assert.Equal(t, tt.want, got.ShouldCreateTask)
		})
	}
}
