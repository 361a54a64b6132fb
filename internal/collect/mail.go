package collect

import (
	"context"
	"fmt"
	"log"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/TobiSchelling/portfolio-necromancer/internal/config"
	"github.com/TobiSchelling/portfolio-necromancer/internal/model"
)

const mailQuery = "after:%s (has:attachment OR subject:(project OR portfolio OR work OR design OR code OR article))"

var mailKeywords = []string{
	"project", "portfolio", "work", "design", "code", "article",
	"website", "app", "development", "completed", "finished",
	"delivered", "client", "freelance", "proposal", "mockup",
	"prototype", "final", "draft",
}

var replyPrefix = regexp.MustCompile(`(?i)^(re|fwd?):\s*`)

// MailSource recovers projects from mail threads with attachments or
// project-sounding subjects.
type MailSource struct {
	enabled       bool
	maxMessages   int
	dateRangeDays int
	auth          GoogleAuth
	limiter       *RateLimiter
	newService    func(ctx context.Context) (*gmail.Service, error)
	now           func() time.Time
}

// NewMailSource creates the mail source.
func NewMailSource(cfg config.EmailScraping, auth GoogleAuth) *MailSource {
	m := &MailSource{
		enabled:       cfg.Enabled,
		maxMessages:   cfg.MaxMessages,
		dateRangeDays: cfg.DateRangeDays,
		auth:          auth,
		limiter:       newRateLimiter(gmailRate),
		now:           time.Now,
	}
	if m.maxMessages <= 0 {
		m.maxMessages = 100
	}
	if m.dateRangeDays <= 0 {
		m.dateRangeDays = 365
	}
	m.newService = func(ctx context.Context) (*gmail.Service, error) {
		ts, err := m.auth.TokenSource(ctx)
		if err != nil {
			return nil, err
		}
		return gmail.NewService(ctx, option.WithTokenSource(ts))
	}
	return m
}

func (m *MailSource) Name() string       { return "email" }
func (m *MailSource) Enabled() bool      { return m.enabled }
func (m *MailSource) IsConfigured() bool { return m.auth.Configured() }

// Scrape lists matching messages and keeps the project-related ones.
func (m *MailSource) Scrape(ctx context.Context) []*model.Project {
	svc, err := m.newService(ctx)
	if err != nil {
		log.Printf("Failed to authenticate with Gmail: %v", err)
		return nil
	}

	after := m.now().AddDate(0, 0, -m.dateRangeDays).Format("2006/01/02")
	query := fmt.Sprintf(mailQuery, after)

	if err := m.limiter.Wait(ctx); err != nil {
		return nil
	}
	list, err := svc.Users.Messages.List("me").Q(query).MaxResults(int64(m.maxMessages)).Context(ctx).Do()
	if err != nil {
		m.limiter.observe(err)
		log.Printf("Error scraping emails: %s", describeGoogleError(err))
		return nil
	}

	var projects []*model.Project
	for i, ref := range list.Messages {
		if i >= m.maxMessages {
			break
		}
		if err := m.limiter.Wait(ctx); err != nil {
			break
		}
		msg, err := svc.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			m.limiter.observe(err)
			log.Printf("Error processing message %s: %s", ref.Id, describeGoogleError(err))
			continue
		}
		if p := m.project(msg); p != nil {
			projects = append(projects, p)
		}
	}
	return projects
}

func (m *MailSource) project(msg *gmail.Message) *model.Project {
	if msg.Payload == nil {
		log.Printf("Warning: message %s has no payload", msg.Id)
		return nil
	}

	subject := header(msg.Payload, "Subject")
	if subject == "" {
		subject = "Untitled"
	}
	if !isProjectMail(subject, msg.Snippet) {
		return nil
	}

	var attachments []string
	for _, part := range msg.Payload.Parts {
		if part.Filename != "" {
			attachments = append(attachments, part.Filename)
		}
	}

	p := model.NewProject(cleanSubject(subject), ellipsize(msg.Snippet, 200), model.CategoryMisc, model.SourceEmail)
	p.Date = m.parseDate(header(msg.Payload, "Date"))
	p.Tags = []string{"email"}
	p.Raw = map[string]any{
		"message_id":  msg.Id,
		"subject":     subject,
		"attachments": attachments,
		"snippet":     msg.Snippet,
	}
	p.SetConfidence(0.6)
	return p
}

func (m *MailSource) parseDate(v string) time.Time {
	if v != "" {
		if t, err := mail.ParseDate(v); err == nil {
			return t
		}
	}
	return m.now()
}

func header(part *gmail.MessagePart, name string) string {
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func isProjectMail(subject, snippet string) bool {
	return containsAny(strings.ToLower(subject+" "+snippet), mailKeywords)
}

// cleanSubject drops one reply/forward prefix and caps the length at 100.
func cleanSubject(subject string) string {
	s := replyPrefix.ReplaceAllString(subject, "")
	s = strings.TrimSpace(truncate(s, 100))
	if s == "" {
		return "Untitled"
	}
	return s
}
