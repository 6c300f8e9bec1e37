package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/internal/validation"
)

// statsWindow is the look-back period of dashboard activity
const statsWindow = 30 * 24 * time.Hour

// StatsRepository defines the interface for dashboard aggregations
type StatsRepository interface {
	UserStats(ctx context.Context, userID string, now, since time.Time) (*model.UserStats, error)
	AdminStats(ctx context.Context, since, prevSince time.Time) (*model.AdminStats, model.PeriodTotals, model.PeriodTotals, error)
}

// UserService handles the signed-in user's own account
type UserService struct {
	userRepo  UserRepository
	statsRepo StatsRepository
	images    *ImageService
	now       func() time.Time
}

// UserServiceConfig holds configuration for the user service
type UserServiceConfig struct {
	UserRepo  UserRepository
	StatsRepo StatsRepository
	Images    *ImageService
}

// NewUserService creates a new user service
func NewUserService(cfg UserServiceConfig) *UserService {
	return &UserService{
		userRepo:  cfg.UserRepo,
		statsRepo: cfg.StatsRepo,
		images:    cfg.Images,
		now:       time.Now,
	}
}

// Profile returns the user's profile
func (s *UserService) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile changes profile fields. When image is non-nil it is stored
// and becomes the profile image, replacing any profile_image in req.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req model.UpdateProfileRequest, image io.Reader) (*model.User, error) {
	trimPtr(req.FirstName)
	trimPtr(req.LastName)
	trimPtr(req.PhoneNumber)

	if err := validation.Struct(&req); err != nil {
		return nil, err
	}
	if req.IsEmpty() && image == nil {
		return nil, ErrNoChanges
	}

	current, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var uploaded *model.UploadedImage
	if image != nil {
		if s.images == nil {
			return nil, ErrImageStoreUnavailable
		}
		if uploaded, err = s.images.Upload(ctx, userID, image); err != nil {
			return nil, err
		}
		req.ProfileImage = &uploaded.URL
	}

	updated, err := s.userRepo.UpdateProfile(ctx, userID, &req)
	if err != nil || updated == nil {
		if uploaded != nil {
			s.images.DeleteURLs(ctx, userID, uploaded.URL)
		}
		if err == nil {
			err = ErrUserNotFound
		}
		return nil, err
	}

	s.dropReplacedImage(ctx, current, updated)
	return updated, nil
}

// UploadProfileImage stores an image and sets it as the profile image
func (s *UserService) UploadProfileImage(ctx context.Context, userID string, image io.Reader) (*model.UploadedImage, error) {
	if image == nil {
		return nil, ErrImageRequired
	}
	current, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.images == nil {
		return nil, ErrImageStoreUnavailable
	}

	uploaded, err := s.images.Upload(ctx, userID, image)
	if err != nil {
		return nil, err
	}

	updated, err := s.userRepo.UpdateProfile(ctx, userID, &model.UpdateProfileRequest{ProfileImage: &uploaded.URL})
	if err != nil || updated == nil {
		s.images.DeleteURLs(ctx, userID, uploaded.URL)
		if err == nil {
			err = ErrUserNotFound
		}
		return nil, err
	}

	s.dropReplacedImage(ctx, current, updated)
	return uploaded, nil
}

// Stats returns the user's dashboard counters and 30-day activity
func (s *UserService) Stats(ctx context.Context, userID string) (*model.UserStats, error) {
	now := s.now().UTC()
	return s.statsRepo.UserStats(ctx, userID, now, now.Add(-statsWindow))
}

func (s *UserService) dropReplacedImage(ctx context.Context, before, after *model.User) {
	if s.images == nil || before.ProfileImage == nil {
		return
	}
	if after.ProfileImage != nil && *after.ProfileImage == *before.ProfileImage {
		return
	}
	s.images.DeleteURLs(ctx, before.ID, *before.ProfileImage)
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}
