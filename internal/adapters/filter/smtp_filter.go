package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/mailrisk/internal/core"
	"go.uber.org/zap"
)

// SMTPFilter is a content filter that sits between an MTA and its
// delivery path. It accepts messages over SMTP, stamps risk and lead
// headers, and relays the result to the configured upstream.
type SMTPFilter struct {
	service         *core.RiskService
	logger          *zap.Logger
	listenAddr      string
	relayAddr       string
	server          *smtp.Server
	blockCritical   bool
	scoreHeader     string
	levelHeader     string
	flagsHeader     string
	leadTypeHeader  string
	leadScoreHeader string
	leadsEnabled    bool
}

// NewSMTPFilter creates a new SMTP content filter
func NewSMTPFilter(
	service *core.RiskService,
	logger *zap.Logger,
	listenAddr string,
	relayAddr string,
	blockCritical bool,
	scoreHeader string,
	levelHeader string,
	flagsHeader string,
	leadTypeHeader string,
	leadScoreHeader string,
	leadsEnabled bool,
) *SMTPFilter {
	return &SMTPFilter{
		service:         service,
		logger:          logger,
		listenAddr:      listenAddr,
		relayAddr:       relayAddr,
		blockCritical:   blockCritical,
		scoreHeader:     scoreHeader,
		levelHeader:     levelHeader,
		flagsHeader:     flagsHeader,
		leadTypeHeader:  leadTypeHeader,
		leadScoreHeader: leadScoreHeader,
		leadsEnabled:    leadsEnabled,
	}
}

// Start starts the SMTP filter service
func (f *SMTPFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.listenAddr
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("SMTP filter starting", zap.String("address", f.listenAddr))

	go func() {
		if err := f.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				f.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP filter service
func (f *SMTPFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessMessage analyzes a message directly, bypassing the SMTP path.
// This is mainly used for testing or direct API calls.
func (f *SMTPFilter) ProcessMessage(ctx context.Context, msg *core.Message) (*core.CombinedAssessment, error) {
	return f.service.AnalyzeMessage(ctx, msg), nil
}

// relayUpstream sends the stamped message to the upstream MTA
func (f *SMTPFilter) relayUpstream(sender string, recipients []string, messageData []byte) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", f.relayAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to upstream: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(messageData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *SMTPFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		filter:     b.filter,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *SMTPFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for the filter)
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data analyzes the message, stamps the result headers and relays the
// message upstream. Only a critical verdict with blocking enabled stops
// delivery; every other outcome, including analysis degradation, lets
// the message through annotated.
func (s *smtpSession) Data(r io.Reader) error {
	rawData, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(rawData))
	if err != nil {
		s.filter.logger.Error("Failed to parse message", zap.Error(err))
		return err
	}

	textContent, err := extractTextFromMessage(parsed)
	if err != nil {
		s.filter.logger.Error("Failed to extract text content", zap.Error(err))
		return err
	}

	msg := &core.Message{
		ID:         parsed.Header.Get("Message-Id"),
		From:       s.sender,
		To:         s.recipients,
		Subject:    subjectOf(parsed),
		Body:       textContent,
		Headers:    parsed.Header,
		ReceivedAt: time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	assessment := s.filter.service.AnalyzeMessage(ctx, msg)

	if s.filter.blockCritical && assessment.RiskLevel == core.RiskLevelCritical {
		s.filter.logger.Info("Rejecting critical-risk message",
			zap.String("from", msg.SenderAddress()),
			zap.String("sender_domain", msg.SenderDomain()),
			zap.Float64("score", assessment.CombinedScore))
		return fmt.Errorf("550 Rejected as high risk (score: %.1f)", assessment.CombinedScore)
	}

	var lead *core.Lead
	if s.filter.leadsEnabled {
		lead, err = s.filter.service.ClassifyLead(ctx, msg)
		if err != nil {
			s.filter.logger.Warn("Lead classification failed",
				zap.String("from", msg.SenderAddress()),
				zap.Error(err))
		}
	}

	stamped := s.stampHeaders(rawData, parsed, assessment, lead)
	if err := s.filter.relayUpstream(s.sender, s.recipients, stamped); err != nil {
		s.filter.logger.Error("Failed to relay message upstream",
			zap.Error(err),
			zap.String("sender", msg.SenderAddress()))
		return err
	}

	s.filter.logger.Info("Processed message",
		zap.String("from", msg.SenderAddress()),
		zap.String("sender_domain", msg.SenderDomain()),
		zap.Float64("score", assessment.CombinedScore),
		zap.String("level", string(assessment.RiskLevel)),
		zap.String("analysis", string(assessment.AnalysisType)),
		zap.Bool("lead", lead != nil))
	return nil
}

// stampHeaders rebuilds the message with the verdict headers prepended,
// preserving the original headers and raw body bytes
func (s *smtpSession) stampHeaders(rawData []byte, parsed *mail.Message, assessment *core.CombinedAssessment, lead *core.Lead) []byte {
	var out bytes.Buffer

	fmt.Fprintf(&out, "%s: %.1f\r\n", s.filter.scoreHeader, assessment.CombinedScore)
	fmt.Fprintf(&out, "%s: %s\r\n", s.filter.levelHeader, assessment.RiskLevel)
	if assessment.Base != nil && len(assessment.Base.Flags) > 0 {
		fmt.Fprintf(&out, "%s: %s\r\n", s.filter.flagsHeader, strings.Join(assessment.Base.Flags, "; "))
	}
	if lead != nil {
		fmt.Fprintf(&out, "%s: %s\r\n", s.filter.leadTypeHeader, lead.Type)
		fmt.Fprintf(&out, "%s: %d\r\n", s.filter.leadScoreHeader, lead.Score)
	}

	for key, values := range parsed.Header {
		for _, value := range values {
			fmt.Fprintf(&out, "%s: %s\r\n", key, value)
		}
	}
	fmt.Fprintf(&out, "\r\n")

	// Reuse the raw body bytes so MIME parts and attachments survive intact
	bodyStart := bytes.Index(rawData, []byte("\r\n\r\n"))
	if bodyStart >= 0 {
		out.Write(rawData[bodyStart+4:])
		return out.Bytes()
	}
	bodyStart = bytes.Index(rawData, []byte("\n\n"))
	if bodyStart >= 0 {
		out.Write(rawData[bodyStart+2:])
	}
	return out.Bytes()
}

// Logout handles SMTP logout (not needed for the filter)
func (s *smtpSession) Logout() error {
	return nil
}

func subjectOf(msg *mail.Message) string {
	subject := msg.Header.Get("Subject")
	if decoded, err := decodeEncodedHeader(subject); err == nil {
		return decoded
	}
	return subject
}
