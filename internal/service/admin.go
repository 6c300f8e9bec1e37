package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/forgo/marquee/api/internal/model"
)

// AdminService handles platform moderation and reporting
type AdminService struct {
	userRepo     UserRepository
	eventRepo    EventRepository
	statsRepo    StatsRepository
	tokenService *TokenService
	images       *ImageService
	now          func() time.Time
}

// AdminServiceConfig holds configuration for the admin service
type AdminServiceConfig struct {
	UserRepo     UserRepository
	EventRepo    EventRepository
	StatsRepo    StatsRepository
	TokenService *TokenService
	Images       *ImageService
}

// NewAdminService creates a new admin service
func NewAdminService(cfg AdminServiceConfig) *AdminService {
	return &AdminService{
		userRepo:     cfg.UserRepo,
		eventRepo:    cfg.EventRepo,
		statsRepo:    cfg.StatsRepo,
		tokenService: cfg.TokenService,
		images:       cfg.Images,
		now:          time.Now,
	}
}

// Stats returns platform totals, growth over the last 30 days compared with
// the 30 days before, daily revenue and events per category
func (s *AdminService) Stats(ctx context.Context) (*model.AdminStats, error) {
	now := s.now().UTC()
	since := now.Add(-statsWindow)
	prevSince := since.Add(-statsWindow)

	stats, current, previous, err := s.statsRepo.AdminStats(ctx, since, prevSince)
	if err != nil {
		return nil, err
	}

	stats.UserGrowth = model.GrowthPercent(float64(current.Users), float64(previous.Users))
	stats.EventGrowth = model.GrowthPercent(float64(current.Events), float64(previous.Events))
	stats.RevenueGrowth = model.GrowthPercent(current.Revenue, previous.Revenue)
	return stats, nil
}

// ListUsers returns a page of users, newest first
func (s *AdminService) ListUsers(ctx context.Context, filter model.UserFilter) (*model.UserPage, error) {
	if filter.Role != "" && !filter.Role.IsValid() {
		return nil, ErrInvalidRole
	}
	if filter.Status != "" && !isUserStatus(filter.Status) {
		return nil, ErrInvalidUserStatus
	}
	return s.userRepo.List(ctx, filter.WithPaging())
}

// SetUserStatus moderates an account. Suspending or banning signs the user
// out of every device.
func (s *AdminService) SetUserStatus(ctx context.Context, actor Actor, id string, status model.UserStatus) (*model.User, error) {
	if !isUserStatus(status) {
		return nil, ErrInvalidUserStatus
	}

	user, err := s.userRepo.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if status != model.UserStatusActive && s.tokenService != nil {
		if err := s.tokenService.RevokeAllUserTokens(ctx, user.ID); err != nil {
			return nil, err
		}
	}

	slog.Info("user status changed",
		slog.String("user_id", user.ID),
		slog.String("status", string(status)),
		slog.String("changed_by", actor.UserID),
	)
	return user, nil
}

// DeleteUser removes a user with their tickets, refresh tokens and organized
// events (including those events' tickets) in one transaction
func (s *AdminService) DeleteUser(ctx context.Context, actor Actor, id string) error {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.ID == actor.UserID {
		return ErrCannotDeleteSelf
	}

	organized, err := s.eventRepo.ListByOrganizer(ctx, user.ID)
	if err != nil {
		return err
	}

	if err := s.userRepo.DeleteCascade(ctx, user.ID); err != nil {
		return err
	}

	if s.images != nil {
		var urls []string
		for _, e := range organized {
			urls = append(urls, imageURLs(e.Images)...)
		}
		if user.ProfileImage != nil {
			urls = append(urls, *user.ProfileImage)
		}
		s.images.DeleteURLs(ctx, user.ID, urls...)
	}

	slog.Info("user deleted",
		slog.String("user_id", user.ID),
		slog.Int("events", len(organized)),
		slog.String("deleted_by", actor.UserID),
	)
	return nil
}

func isUserStatus(status model.UserStatus) bool {
	switch status {
	case model.UserStatusActive, model.UserStatusSuspended, model.UserStatusBanned:
		return true
	}
	return false
}
