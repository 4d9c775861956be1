package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubLeadStore struct {
	leads map[string]*Lead
}

func newStubLeadStore() *stubLeadStore {
	return &stubLeadStore{leads: make(map[string]*Lead)}
}

func (s *stubLeadStore) UpsertLead(_ context.Context, lead *Lead) (*Lead, error) {
	if existing, ok := s.leads[lead.ContactEmail]; ok {
		merged := MergeLead(existing, lead)
		s.leads[lead.ContactEmail] = merged
		return merged, nil
	}
	s.leads[lead.ContactEmail] = lead
	return lead, nil
}

func (s *stubLeadStore) GetLead(_ context.Context, email string) (*Lead, error) {
	lead, ok := s.leads[email]
	if !ok {
		return nil, ErrNotFound
	}
	return lead, nil
}

func (s *stubLeadStore) ListLeads(_ context.Context) ([]*Lead, error) {
	out := make([]*Lead, 0, len(s.leads))
	for _, l := range s.leads {
		out = append(out, l)
	}
	return out, nil
}

func newTestClassifier(learning *stubLearning, store *stubLeadStore, deep *stubDeep) *LeadClassifier {
	return NewLeadClassifier(DefaultLeadConfig(), learning, store, deep, time.Second, zap.NewNop())
}

func inquiryMessage() *Message {
	return &Message{
		From:       "Jane Smith <jane@acme-corp.com>",
		Subject:    "Pricing question",
		Body:       "Hi, we are interested in pricing for your platform. Can you share details?",
		ReceivedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestLeadClassifier_CustomerInquiry(t *testing.T) {
	classifier := newTestClassifier(&stubLearning{}, newStubLeadStore(), &stubDeep{err: ErrDeepUnavailable})

	lead, err := classifier.Classify(context.Background(), inquiryMessage())

	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, "jane@acme-corp.com", lead.ContactEmail)
	assert.Equal(t, LeadCustomer, lead.Type)
	assert.Equal(t, StatusPotential, lead.Status)
	// three matched signals: 40 + 3*15 = 85
	assert.Equal(t, 85, lead.Score)
	assert.ElementsMatch(t, []string{"interested in", "pricing", "your platform"}, lead.Signals)
	assert.InDelta(t, 0.6, lead.Confidence, 0.001)
	assert.Equal(t, "Jane Smith", lead.ContactName)
	assert.Equal(t, "Acme Corp", lead.Company)
	assert.Equal(t, "Reply within 24 hours", lead.NextAction)
	assert.Nil(t, lead.DeepScore)
}

func TestLeadClassifier_MatchBonusIsCapped(t *testing.T) {
	classifier := newTestClassifier(&stubLearning{}, newStubLeadStore(), &stubDeep{err: ErrDeepUnavailable})

	msg := inquiryMessage()
	msg.Body = "We are interested in pricing and budget for a demo, a quote, a free trial " +
		"and a subscription of your platform. How much does your product cost? We want to purchase."

	lead, err := classifier.Classify(context.Background(), msg)

	require.NoError(t, err)
	require.NotNil(t, lead)
	// bonus caps at 50 even with many matches: 40 + 50 = 90
	assert.Equal(t, 90, lead.Score)
	assert.Equal(t, 1.0, lead.Confidence)
}

func TestLeadClassifier_UrgencyBonus(t *testing.T) {
	classifier := newTestClassifier(&stubLearning{}, newStubLeadStore(), &stubDeep{err: ErrDeepUnavailable})

	msg := inquiryMessage()
	msg.Body = "We need pricing asap."

	lead, err := classifier.Classify(context.Background(), msg)

	require.NoError(t, err)
	require.NotNil(t, lead)
	// one signal plus the urgency bonus: 40 + 15 + 10
	assert.Equal(t, 65, lead.Score)
}

func TestLeadClassifier_InvestorBeatsCustomerOnMatches(t *testing.T) {
	classifier := newTestClassifier(&stubLearning{}, newStubLeadStore(), &stubDeep{err: ErrDeepUnavailable})

	msg := inquiryMessage()
	msg.From = "mark@fundvc.example.com"
	msg.Subject = "Seed round interest"
	msg.Body = "Our venture fund is doing due diligence for an investment in your space."

	lead, err := classifier.Classify(context.Background(), msg)

	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, LeadInvestor, lead.Type)
}

func TestLeadClassifier_NoSignalsNoLead(t *testing.T) {
	classifier := newTestClassifier(&stubLearning{}, newStubLeadStore(), &stubDeep{err: ErrDeepUnavailable})

	msg := inquiryMessage()
	msg.Subject = "Lunch on Friday"
	msg.Body = "Want to grab lunch?"

	lead, err := classifier.Classify(context.Background(), msg)

	require.NoError(t, err)
	assert.Nil(t, lead)
}

func TestLeadClassifier_RejectsBulkMail(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{
			name: "newsletter footer",
			msg: &Message{
				From: "updates@saas.example.com",
				Body: "We are interested in pricing feedback. Unsubscribe here.",
			},
		},
		{
			name: "no-reply sender",
			msg: &Message{
				From: "no-reply@saas.example.com",
				Body: "We are interested in pricing for your platform.",
			},
		},
		{
			name: "marketing sender",
			msg: &Message{
				From: "marketing@saas.example.com",
				Body: "Special pricing on your subscription!",
			},
		},
		{
			name: "platform spam label",
			msg: &Message{
				From:   "jane@acme-corp.com",
				Body:   "We are interested in pricing.",
				Labels: []string{"SPAM"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classifier := newTestClassifier(&stubLearning{}, newStubLeadStore(), &stubDeep{err: ErrDeepUnavailable})
			lead, err := classifier.Classify(context.Background(), tt.msg)
			require.NoError(t, err)
			assert.Nil(t, lead)
		})
	}
}

func TestLeadClassifier_SuppressedContactStaysGone(t *testing.T) {
	learning := &stubLearning{deleted: map[string]bool{"jane@acme-corp.com": true}}
	classifier := newTestClassifier(learning, newStubLeadStore(), &stubDeep{err: ErrDeepUnavailable})

	lead, err := classifier.Classify(context.Background(), inquiryMessage())

	require.NoError(t, err)
	assert.Nil(t, lead)
}

func TestLeadClassifier_DeepVeto(t *testing.T) {
	deep := &stubDeep{report: &DeepReport{Score: 10, RiskLevel: DeepHighRisk}}
	store := newStubLeadStore()
	classifier := newTestClassifier(&stubLearning{}, store, deep)

	lead, err := classifier.Classify(context.Background(), inquiryMessage())

	require.NoError(t, err)
	assert.Nil(t, lead)
	assert.Empty(t, store.leads)
}

func TestLeadClassifier_DeepCautionDampensScore(t *testing.T) {
	deep := &stubDeep{report: &DeepReport{Score: 55, RiskLevel: DeepCaution}}
	classifier := newTestClassifier(&stubLearning{}, newStubLeadStore(), deep)

	lead, err := classifier.Classify(context.Background(), inquiryMessage())

	require.NoError(t, err)
	require.NotNil(t, lead)
	// 85 * 0.7 = 59
	assert.Equal(t, 59, lead.Score)
	require.NotNil(t, lead.DeepScore)
	assert.Equal(t, 55, *lead.DeepScore)
	assert.Equal(t, DeepCaution, lead.DeepRiskLevel)
}

func TestLeadClassifier_RepeatContactMerges(t *testing.T) {
	store := newStubLeadStore()
	classifier := newTestClassifier(&stubLearning{}, store, &stubDeep{err: ErrDeepUnavailable})

	first, err := classifier.Classify(context.Background(), inquiryMessage())
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, 1, first.ConversationCount)

	second, err := classifier.Classify(context.Background(), inquiryMessage())
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, 2, second.ConversationCount)
	assert.Equal(t, first.Score, second.Score)
}

func TestLeadClassifier_CompanyFromSignatureForPersonalEmail(t *testing.T) {
	classifier := newTestClassifier(&stubLearning{}, newStubLeadStore(), &stubDeep{err: ErrDeepUnavailable})

	msg := inquiryMessage()
	msg.From = "Jane Smith <jane.smith@gmail.com>"
	msg.Body = "We are interested in pricing for your platform.\n\nBest,\nJane\nAcme Widgets Inc\n"

	lead, err := classifier.Classify(context.Background(), msg)

	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, "Acme Widgets Inc", lead.Company)
}

func TestSuggestNextAction(t *testing.T) {
	assert.Equal(t, "Reply within 24 hours", suggestNextAction(LeadCustomer, 85))
	assert.Equal(t, "Send product details and pricing", suggestNextAction(LeadCustomer, 55))
	assert.Equal(t, "Share pitch materials and schedule a call", suggestNextAction(LeadInvestor, 55))
	assert.Equal(t, "Schedule an introduction call", suggestNextAction(LeadPartner, 55))
}
