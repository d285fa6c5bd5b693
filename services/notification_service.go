package services

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"peer-review-api/config"
	"peer-review-api/models"
	"peer-review-api/storage"
)

// NotificationEvent is what the workflow emits after a committed change.
type NotificationEvent struct {
	Type       string
	Recipients []string
	PaperID    string
	HubID      string
	Title      string
	Content    string
	Priority   string
	Metadata   map[string]string
}

// Notifier delivers events without blocking or failing the caller.
type Notifier interface {
	Notify(ctx context.Context, ev NotificationEvent)
}

type notificationStore interface {
	storage.NotificationStore
	storage.UserStore
}

type NotificationService struct {
	store   notificationStore
	mailer  config.Mailer
	baseURL string
	log     *logrus.Entry
	now     func() time.Time

	wg sync.WaitGroup
}

var _ Notifier = (*NotificationService)(nil)

func NewNotificationService(store notificationStore, mailer config.Mailer, baseURL string) *NotificationService {
	return &NotificationService{
		store:   store,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logrus.WithField("component", "notifications"),
		now:     time.Now,
	}
}

// Notify stores one notification per recipient and emails it. Delivery runs
// in its own goroutine on a context detached from request cancellation.
func (s *NotificationService) Notify(ctx context.Context, ev NotificationEvent) {
	recipients := uniqueNonEmpty(ev.Recipients)
	if len(recipients) == 0 {
		return
	}
	if ev.Priority == "" {
		ev.Priority = models.PriorityNormal
	}

	s.wg.Add(1)
	go func(ctx context.Context) {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.WithField("type", ev.Type).Errorf("notification dispatch panicked: %v", r)
			}
		}()
		s.deliver(ctx, ev, recipients)
	}(persistentContext(ctx))
}

// Wait blocks until every dispatched notification has been handled.
func (s *NotificationService) Wait() {
	s.wg.Wait()
}

func (s *NotificationService) deliver(ctx context.Context, ev NotificationEvent, recipients []string) {
	entry := s.log.WithFields(logrus.Fields{"type": ev.Type, "paper_id": ev.PaperID})
	if len(ev.Metadata) > 0 {
		entry = entry.WithField("metadata", ev.Metadata)
	}

	for _, userID := range recipients {
		n := &models.Notification{
			ID:        uuid.NewString(),
			User:      userID,
			Type:      ev.Type,
			Title:     ev.Title,
			Content:   ev.Content,
			Priority:  ev.Priority,
			CreatedAt: s.now(),
		}
		if ev.PaperID != "" {
			id := ev.PaperID
			n.RelatedPaperID = &id
		}
		if ev.HubID != "" {
			id := ev.HubID
			n.RelatedHubID = &id
		}
		if err := s.store.CreateNotification(ctx, n); err != nil {
			entry.WithError(err).WithField("user_id", userID).Warn("failed to store notification")
		}
	}

	if s.mailer == nil {
		return
	}
	users, err := s.store.FindUsers(ctx, recipients)
	if err != nil {
		entry.WithError(err).Warn("failed to load notification recipients")
		return
	}
	for _, u := range users {
		if strings.TrimSpace(u.Email) == "" {
			continue
		}
		s.sendMailSafe(ctx, entry, u, ev)
	}
}

func (s *NotificationService) sendMailSafe(ctx context.Context, entry *logrus.Entry, u models.User, ev NotificationEvent) {
	body := buildEmailHTML(ev.Title, u.Name, ev.Content, s.paperLink(ev.PaperID))
	if err := s.mailer.Send(ctx, []string{u.Email}, ev.Title, body); err != nil {
		entry.WithError(err).WithField("to", u.Email).Warn("notification email send failed")
	}
}

func (s *NotificationService) paperLink(paperID string) string {
	if paperID == "" || s.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/papers/%s", s.baseURL, paperID)
}

func buildEmailHTML(subject, recipientName, message, link string) string {
	name := strings.TrimSpace(recipientName)
	if name == "" {
		name = "colleague"
	}

	escapedSubject := template.HTMLEscapeString(subject)
	escapedGreeting := template.HTMLEscapeString(fmt.Sprintf("Dear %s,", name))
	escapedMessage := template.HTMLEscapeString(strings.TrimSpace(message))
	escapedMessage = strings.ReplaceAll(strings.ReplaceAll(escapedMessage, "\r\n", "\n"), "\r", "\n")
	escapedMessage = strings.ReplaceAll(escapedMessage, "\n", "<br />")

	action := ""
	if link != "" {
		escapedLink := template.HTMLEscapeString(link)
		action = fmt.Sprintf(`<p style="margin:24px 0 0 0;"><a href="%s" style="color:#2563eb;">Open paper</a></p>`, escapedLink)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>%s</title>
</head>
<body style="margin:0;padding:0;background-color:#f9fafb;font-family:'Segoe UI',Tahoma,Arial,sans-serif;">
<div style="max-width:640px;margin:0 auto;padding:24px 20px;">
  <div style="background-color:#ffffff;border:1px solid #e5e7eb;border-radius:12px;padding:24px 24px 28px 24px;">
    <p style="margin:0 0 16px 0;font-size:16px;line-height:1.7;color:#111827;">%s</p>
    <p style="margin:0;font-size:16px;line-height:1.7;color:#111827;word-break:break-word;">%s</p>
    %s
  </div>
</div>
</body>
</html>`, escapedSubject, escapedGreeting, escapedMessage, action)
}

func uniqueNonEmpty(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}

/* ==========================
   Inbox
   ========================== */

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	items, err := s.store.ListNotifications(ctx, userID, unreadOnly, limit, offset)
	return items, storeErr(err, "notifications")
}

func (s *NotificationService) CountUnread(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.CountUnreadNotifications(ctx, userID)
	return n, storeErr(err, "notifications")
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	return storeErr(s.store.MarkNotificationRead(ctx, userID, id, s.now()), "notification")
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.MarkAllNotificationsRead(ctx, userID, s.now())
	return n, storeErr(err, "notifications")
}
