// internal/services/notification_service.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pactwise/pactwise-backend/internal/config"
	"github.com/pactwise/pactwise-backend/internal/models"
	"github.com/pactwise/pactwise-backend/internal/repository"
)

// Notification types
const (
	NotificationPaymentFailed   = "payment_failed"
	NotificationContractExpired = "contract_expired"
)

type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	config        *config.Config
	now           func() time.Time
	mailer        func(to, subject, body string) error
}

type EmailTemplate struct {
	Subject string
	Body    string
}

type NotificationInput struct {
	EnterpriseID uuid.UUID
	RecipientID  uuid.UUID
	Type         string
	Title        string
	Message      string
	Priority     models.NotificationPriority
	ContractID   *uuid.UUID
	VendorID     *uuid.UUID
	ActionURL    string
}

type NotificationListRequest struct {
	UnreadOnly bool   `form:"unread_only"`
	Type       string `form:"type"`
}

func NewNotificationService(repos *repository.Repositories, config *config.Config) *NotificationService {
	s := &NotificationService{
		notifications: repos.Notifications,
		users:         repos.Users,
		config:        config,
		now:           time.Now,
	}
	s.mailer = s.sendEmail
	return s
}

// Create stores an in-app notification. High and critical notifications are
// also emailed to the recipient in the background.
func (s *NotificationService) Create(ctx context.Context, input NotificationInput) (*models.Notification, error) {
	if input.RecipientID == uuid.Nil || input.Title == "" {
		return nil, invalidInput("notification needs a recipient and a title")
	}
	if input.Priority == "" {
		input.Priority = models.NotificationPriorityMedium
	}

	notification := &models.Notification{
		EnterpriseID: input.EnterpriseID,
		RecipientID:  input.RecipientID,
		Type:         input.Type,
		Title:        input.Title,
		Message:      input.Message,
		Priority:     input.Priority,
		ContractID:   input.ContractID,
		VendorID:     input.VendorID,
		ActionURL:    input.ActionURL,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	if input.Priority == models.NotificationPriorityHigh || input.Priority == models.NotificationPriorityCritical {
		go s.emailNotification(*notification)
	}

	return notification, nil
}

// NotifyRoles sends the same notification to every active user of the tenant
// holding one of roles. Failures for one recipient do not stop the others.
func (s *NotificationService) NotifyRoles(ctx context.Context, input NotificationInput, roles ...models.UserRole) (int, error) {
	users, err := s.users.ListByRoles(ctx, input.EnterpriseID, roles...)
	if err != nil {
		return 0, fmt.Errorf("failed to load recipients: %w", err)
	}

	sent := 0
	for _, u := range users {
		in := input
		in.RecipientID = u.ID
		if _, err := s.Create(ctx, in); err != nil {
			logrus.WithError(err).WithField("recipient_id", u.ID).Warn("Failed to notify user")
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *NotificationService) List(ctx context.Context, recipientID uuid.UUID, req NotificationListRequest, page repository.Page) ([]models.Notification, int64, error) {
	notifications, total, err := s.notifications.List(ctx, recipientID, repository.NotificationFilter{
		Page:       page,
		UnreadOnly: req.UnreadOnly,
		Type:       req.Type,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, total, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	return s.notifications.CountUnread(ctx, recipientID)
}

func (s *NotificationService) MarkRead(ctx context.Context, recipientID, id uuid.UUID) (*models.Notification, error) {
	notification, err := s.notifications.GetByID(ctx, recipientID, id)
	if err != nil {
		return nil, err
	}
	if notification.IsRead {
		return notification, nil
	}

	now := s.now().UTC()
	notification.IsRead = true
	notification.ReadAt = &now
	if err := s.notifications.Update(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to update notification: %w", err)
	}
	return notification, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID uuid.UUID) (int64, error) {
	n, err := s.notifications.MarkAllRead(ctx, recipientID, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}

func (s *NotificationService) Dismiss(ctx context.Context, recipientID, id uuid.UUID) error {
	notification, err := s.notifications.GetByID(ctx, recipientID, id)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	notification.IsDismissed = true
	notification.DismissedAt = &now
	if err := s.notifications.Update(ctx, notification); err != nil {
		return fmt.Errorf("failed to dismiss notification: %w", err)
	}
	return nil
}

// ArchiveOld archives read or dismissed notifications older than olderThan.
func (s *NotificationService) ArchiveOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := s.now().UTC()
	n, err := s.notifications.ArchiveBefore(ctx, now.Add(-olderThan), now)
	if err != nil {
		return 0, fmt.Errorf("failed to archive notifications: %w", err)
	}
	return n, nil
}

func (s *NotificationService) emailNotification(n models.Notification) {
	log := logrus.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"recipient_id":    n.RecipientID,
	})

	user, err := s.users.GetByID(context.Background(), n.EnterpriseID, n.RecipientID)
	if err != nil {
		log.WithError(err).Warn("Notification recipient not found, skipping email")
		return
	}

	tmpl := s.getEmailTemplate(n.Type)
	body, err := s.renderTemplate(tmpl.Body, map[string]interface{}{
		"Name":      user.Name,
		"Title":     n.Title,
		"Message":   n.Message,
		"ActionURL": s.actionURL(n),
	})
	if err != nil {
		log.WithError(err).Error("Failed to render notification email")
		return
	}

	if err := s.mailer(user.Email, fmt.Sprintf(tmpl.Subject, n.Title), body); err != nil {
		log.WithError(err).Error("Failed to send notification email")
	}
}

func (s *NotificationService) actionURL(n models.Notification) string {
	if n.ActionURL == "" || s.config == nil {
		return n.ActionURL
	}
	return s.config.Frontend.BaseURL + n.ActionURL
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config == nil || s.config.Email.SMTPHost == "" {
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("Email not configured, skipping send")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	from := s.config.Email.FromEmail
	if s.config.Email.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.Email.FromName, s.config.Email.FromEmail)
	}
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", from, to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(notificationType string) EmailTemplate {
	templates := map[string]EmailTemplate{
		NotificationPaymentFailed: {
			Subject: "Action required: %s",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>{{.Title}}</h2>
	<p>Hello {{.Name}},</p>
	<p>{{.Message}}</p>
	<p>Please update your payment method to keep your subscription active.</p>
	{{if .ActionURL}}<a href="{{.ActionURL}}">Manage billing</a>{{end}}
	<p>Pactwise</p>
</body>
</html>`,
		},
		NotificationContractExpired: {
			Subject: "Contract expired: %s",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>{{.Title}}</h2>
	<p>Hello {{.Name}},</p>
	<p>{{.Message}}</p>
	{{if .ActionURL}}<a href="{{.ActionURL}}">Review contract</a>{{end}}
	<p>Pactwise</p>
</body>
</html>`,
		},
	}

	if tmpl, ok := templates[notificationType]; ok {
		return tmpl
	}
	return EmailTemplate{
		Subject: "Pactwise: %s",
		Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>{{.Title}}</h2>
	<p>Hello {{.Name}},</p>
	<p>{{.Message}}</p>
	{{if .ActionURL}}<a href="{{.ActionURL}}">Open in Pactwise</a>{{end}}
</body>
</html>`,
	}
}
