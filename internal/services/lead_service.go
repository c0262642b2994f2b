package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/twelve20/pir-planet-new/internal/apperr"
	"github.com/twelve20/pir-planet-new/internal/model"

	"github.com/rs/zerolog"
)

const maxLeadCommentLen = 500

var phoneRegex = regexp.MustCompile(`^[\d\s()+-]+$`)

// LeadService validates contact-form submissions and forwards them to
// the manager chat. Leads are never persisted.
type LeadService struct {
	Notifier Notifier
	Log      zerolog.Logger
}

func NewLeadService(notifier Notifier, log zerolog.Logger) *LeadService {
	return &LeadService{Notifier: notifier, Log: log}
}

// Submit validates and forwards a lead. The returned bool reports
// whether the notification actually went out; a dead notifier is not an
// error for the caller.
func (s *LeadService) Submit(ctx context.Context, lead model.Lead) (bool, error) {
	lead.Name = strings.TrimSpace(lead.Name)
	lead.Phone = strings.TrimSpace(lead.Phone)
	lead.Comment = strings.TrimSpace(lead.Comment)

	if len([]rune(lead.Name)) < 2 {
		return false, apperr.Validation("name must be at least 2 characters")
	}
	if lead.Phone == "" || !phoneRegex.MatchString(lead.Phone) {
		return false, apperr.Validation("invalid phone format")
	}
	if len([]rune(lead.Comment)) > maxLeadCommentLen {
		return false, apperr.Validation("comment must not exceed 500 characters")
	}

	if err := s.Notifier.LeadSubmitted(ctx, lead); err != nil {
		s.Log.Warn().Err(err).Str("event", "lead_submitted").Msg("notification failed")
		return false, nil
	}
	return true, nil
}
