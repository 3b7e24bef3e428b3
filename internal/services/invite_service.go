package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/quddus-larik/taskel/internal/models"
	"github.com/quddus-larik/taskel/internal/permissions"
	"github.com/quddus-larik/taskel/pkg/crypto"
	apperrors "github.com/quddus-larik/taskel/pkg/errors"
	"github.com/quddus-larik/taskel/pkg/logger"
	"github.com/quddus-larik/taskel/pkg/mail"
)

const (
	inviteTokenLength = 32
	inviteTTL         = 72 * time.Hour
)

// InviteService issues team invitations and emails signup links.
type InviteService struct {
	db       *gorm.DB
	activity *ActivityService
	checker  *permissions.Checker
	mailer   mail.Mailer
	baseURL  string
}

// NewInviteService constructs an InviteService. The mailer may be nil, in
// which case invites are recorded but no email leaves the process.
func NewInviteService(db *gorm.DB, activity *ActivityService, checker *permissions.Checker, mailer mail.Mailer, baseURL string) (*InviteService, error) {
	if db == nil {
		return nil, errors.New("invite service: db is required")
	}
	if checker == nil {
		return nil, errors.New("invite service: permission checker is required")
	}
	return &InviteService{
		db:       db,
		activity: activity,
		checker:  checker,
		mailer:   mailer,
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}, nil
}

// Invite records an invitation for the email address and sends a signup link
// carrying the team and owner identifiers. Requires manage authority on the
// team. A disabled mailer does not fail the invite.
func (s *InviteService) Invite(ctx context.Context, actorID, teamID, email string) (*models.TeamInvite, error) {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if email == "" {
		return nil, apperrors.NewBadRequest("invite email is required")
	}

	var team models.Team
	err := s.db.WithContext(ctx).First(&team, "id = ?", strings.TrimSpace(teamID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invite service: load team: %w", err)
	}

	ok, err := s.checker.CanManageTeam(ctx, actorID, &team)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.ErrForbidden
	}

	token, err := crypto.GenerateToken(inviteTokenLength)
	if err != nil {
		return nil, fmt.Errorf("invite service: generate token: %w", err)
	}

	invite := &models.TeamInvite{
		Email:     email,
		TokenHash: crypto.TokenDigest(token),
		TeamID:    team.ID,
		InvitedBy: strings.TrimSpace(actorID),
		ExpiresAt: time.Now().Add(inviteTTL),
	}

	if err := s.db.WithContext(ctx).Create(invite).Error; err != nil {
		return nil, fmt.Errorf("invite service: create invite: %w", err)
	}

	if err := s.sendInviteMail(ctx, &team, email); err != nil {
		if !errors.Is(err, mail.ErrSMTPDisabled) {
			logger.Warn("invite email delivery failed",
				zap.String("team_id", team.ID),
				zap.String("email", email),
				zap.Error(err),
			)
		}
	}

	recordActivity(s.activity, ctx, ActivityEntry{
		Action:   "team.invite",
		Resource: team.ID,
		Result:   "success",
		Metadata: map[string]any{"email": email},
	})

	return invite, nil
}

// ListPending returns the team's invites that are neither accepted nor expired.
func (s *InviteService) ListPending(ctx context.Context, teamID string) ([]models.TeamInvite, error) {
	ctx = ensureContext(ctx)

	invites := []models.TeamInvite{}
	err := s.db.WithContext(ctx).
		Where("team_id = ? AND accepted_at IS NULL AND expires_at > ?", strings.TrimSpace(teamID), time.Now()).
		Order("created_at DESC").
		Find(&invites).Error
	if err != nil {
		return nil, fmt.Errorf("invite service: list pending: %w", err)
	}

	return invites, nil
}

// DeleteExpired removes invites past their expiry that were never accepted
// and reports how many rows were deleted.
func (s *InviteService) DeleteExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("accepted_at IS NULL AND expires_at <= ?", time.Now()).
		Delete(&models.TeamInvite{})
	if result.Error != nil {
		return 0, fmt.Errorf("invite service: delete expired: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func (s *InviteService) sendInviteMail(ctx context.Context, team *models.Team, email string) error {
	if s.mailer == nil {
		return mail.ErrSMTPDisabled
	}

	link := s.signupLink(team)
	body := fmt.Sprintf(
		"You have been invited to join the team %q on Taskel.\r\n\r\nCreate your account here: %s\r\n\r\nThe link expires in %d hours.",
		team.Name, link, int(inviteTTL.Hours()),
	)

	return s.mailer.Send(ctx, mail.Message{
		To:      []string{email},
		Subject: fmt.Sprintf("Invitation to join %s", team.Name),
		Body:    body,
	})
}

// signupLink builds the registration URL carrying the invite parameters that
// the signup form forwards on submit.
func (s *InviteService) signupLink(team *models.Team) string {
	base := s.baseURL
	if base == "" {
		base = "http://localhost:5173"
	}

	values := url.Values{}
	values.Set("team_id", team.ID)
	values.Set("owner_id", team.OwnerID)

	return fmt.Sprintf("%s/signup?%s", base, values.Encode())
}
