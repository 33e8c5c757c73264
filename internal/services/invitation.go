package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/pkg/logger"
	"github.com/huangang/taskboard/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvitationService issues and redeems expiring board invitations.
type InvitationService struct {
	db       *gorm.DB
	boards   *BoardService
	ttl      time.Duration
	now      func() time.Time
	notifier InvitationNotifier
}

func NewInvitationService(db *gorm.DB, boards *BoardService, ttlHours int) *InvitationService {
	if ttlHours <= 0 {
		ttlHours = 72
	}
	return &InvitationService{
		db:     db,
		boards: boards,
		ttl:    time.Duration(ttlHours) * time.Hour,
		now:    time.Now,
	}
}

// WithNotifier makes Invite tell the invitee about new invitations.
func (s *InvitationService) WithNotifier(n InvitationNotifier) *InvitationService {
	s.notifier = n
	return s
}

// Invite creates a fresh invitation for email, replacing any pending one for
// the same board and address.
func (s *InvitationService) Invite(ctx context.Context, actorID, boardID uint, email string) (*InvitationView, error) {
	db := s.db.WithContext(ctx)
	board, err := findBoard(db, boardID)
	if err != nil {
		return nil, err
	}
	if !CanManageBoardMembers(actorID, board) {
		return nil, response.NewForbidden("Only the board owner can invite members.")
	}

	email = models.NormalizeEmail(email)
	if email == "" {
		return nil, response.NewValidation("email", msgBlank)
	}

	inv := models.Invitation{
		BoardID:     boardID,
		Email:       email,
		Token:       uuid.NewString(),
		InvitedByID: actorID,
		ExpiresAt:   s.now().Add(s.ttl),
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("board_id = ? AND email = ? AND accepted_at IS NULL", boardID, email).
			Delete(&models.Invitation{}).Error; err != nil {
			return fmt.Errorf("replace pending invitation: %w", err)
		}
		if err := tx.Create(&inv).Error; err != nil {
			return fmt.Errorf("create invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, board, &inv)
	return NewInvitationView(&inv), nil
}

func (s *InvitationService) notify(ctx context.Context, board *models.Board, inv *models.Invitation) {
	if s.notifier == nil {
		return
	}

	var inviter models.User
	if err := s.db.WithContext(ctx).First(&inviter, inv.InvitedByID).Error; err != nil {
		logger.Warn().Err(err).Uint("invitation_id", inv.ID).Msg("load inviter for invitation email")
		return
	}
	notice := &InvitationNotice{
		Email:       inv.Email,
		Token:       inv.Token,
		BoardTitle:  board.Title,
		InviterName: inviter.DisplayName(),
		ExpiresAt:   inv.ExpiresAt,
	}
	if err := s.notifier.SendInvitation(ctx, notice); err != nil {
		logger.Warn().Err(err).Uint("invitation_id", inv.ID).Msg("invitation email failed")
	}
}

// Accept adds the actor to the invitation's board. The actor's email must
// match the invited address.
func (s *InvitationService) Accept(ctx context.Context, actorID uint, token string) (*BoardDetail, error) {
	db := s.db.WithContext(ctx)

	var inv models.Invitation
	if err := db.Where("token = ?", token).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("invitation")
		}
		return nil, fmt.Errorf("find invitation: %w", err)
	}
	if inv.AcceptedAt != nil {
		return nil, response.NewValidation("token", "Invitation has already been accepted.")
	}
	now := s.now()
	if inv.Expired(now) {
		return nil, response.NewValidation("token", "Invitation has expired.")
	}

	var actor models.User
	if err := db.First(&actor, actorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("User not found.")
		}
		return nil, fmt.Errorf("find user %d: %w", actorID, err)
	}
	if models.NormalizeEmail(actor.Email) != inv.Email {
		return nil, response.NewForbidden("This invitation was issued to a different email address.")
	}

	board, err := findBoard(db, inv.BoardID)
	if err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if actorID != board.OwnerID && !board.HasMember(actorID) {
			row := models.BoardMember{BoardID: board.ID, UserID: actorID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
				return fmt.Errorf("add invited member: %w", err)
			}
		}
		res := tx.Model(&models.Invitation{}).
			Where("id = ? AND accepted_at IS NULL", inv.ID).
			Update("accepted_at", now)
		if res.Error != nil {
			return fmt.Errorf("mark invitation accepted: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return response.NewValidation("token", "Invitation has already been accepted.")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.boards.detail(ctx, board.ID)
}

// PurgeExpired deletes invitations that were never accepted and have expired.
func (s *InvitationService) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("accepted_at IS NULL AND expires_at <= ?", s.now()).
		Delete(&models.Invitation{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge expired invitations: %w", res.Error)
	}
	return res.RowsAffected, nil
}
