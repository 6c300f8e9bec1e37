package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/forgo/marquee/api/internal/model"
)

type stubStatsRepo struct {
	userStatsFunc  func(ctx context.Context, userID string, now, since time.Time) (*model.UserStats, error)
	adminStatsFunc func(ctx context.Context, since, prevSince time.Time) (*model.AdminStats, model.PeriodTotals, model.PeriodTotals, error)
}

func (s *stubStatsRepo) UserStats(ctx context.Context, userID string, now, since time.Time) (*model.UserStats, error) {
	if s.userStatsFunc != nil {
		return s.userStatsFunc(ctx, userID, now, since)
	}
	return &model.UserStats{}, nil
}

func (s *stubStatsRepo) AdminStats(ctx context.Context, since, prevSince time.Time) (*model.AdminStats, model.PeriodTotals, model.PeriodTotals, error) {
	if s.adminStatsFunc != nil {
		return s.adminStatsFunc(ctx, since, prevSince)
	}
	return &model.AdminStats{}, model.PeriodTotals{}, model.PeriodTotals{}, nil
}

type userFixture struct {
	svc   *UserService
	users *memUserRepo
	store *memImageStore
	stats *stubStatsRepo
	user  *model.User
}

func newUserFixture() *userFixture {
	f := &userFixture{
		users: newMemUserRepo(),
		store: newMemImageStore(),
		stats: &stubStatsRepo{},
	}
	f.svc = NewUserService(UserServiceConfig{
		UserRepo:  f.users,
		StatsRepo: f.stats,
		Images:    NewImageService(ImageServiceConfig{Store: f.store, BaseURL: testBaseURL}),
	})
	f.user = f.users.add(&model.User{Email: "kim@example.com", FirstName: "Kim", LastName: "Lee", Role: model.UserRoleAttendee})
	return f
}

func strPtr(s string) *string { return &s }

func TestProfile_Missing_ReturnsErrUserNotFound(t *testing.T) {
	t.Parallel()
	f := newUserFixture()

	if _, err := f.svc.Profile(context.Background(), "user:ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateProfile_Fields(t *testing.T) {
	t.Parallel()
	f := newUserFixture()

	updated, err := f.svc.UpdateProfile(context.Background(), f.user.ID, model.UpdateProfileRequest{
		FirstName:   strPtr("  Kimberly "),
		PhoneNumber: strPtr("+1 555 0100"),
	}, nil)
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.FirstName != "Kimberly" {
		t.Errorf("expected trimmed first name, got %q", updated.FirstName)
	}
	if updated.PhoneNumber == nil || *updated.PhoneNumber != "+1 555 0100" {
		t.Errorf("unexpected phone number %v", updated.PhoneNumber)
	}
}

func TestUpdateProfile_Empty_ReturnsErrNoChanges(t *testing.T) {
	t.Parallel()
	f := newUserFixture()

	if _, err := f.svc.UpdateProfile(context.Background(), f.user.ID, model.UpdateProfileRequest{}, nil); !errors.Is(err, ErrNoChanges) {
		t.Errorf("expected ErrNoChanges, got %v", err)
	}
}

func TestUpdateProfile_WithImage_ReplacesStoredImage(t *testing.T) {
	t.Parallel()
	f := newUserFixture()
	ctx := context.Background()

	first, err := f.svc.UpdateProfile(ctx, f.user.ID, model.UpdateProfileRequest{}, bytes.NewReader(pngBytes))
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if first.ProfileImage == nil {
		t.Fatal("expected profile image to be set")
	}

	second, err := f.svc.UpdateProfile(ctx, f.user.ID, model.UpdateProfileRequest{}, bytes.NewReader(pngBytes))
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if *second.ProfileImage == *first.ProfileImage {
		t.Error("expected a new profile image url")
	}
	if f.store.count() != 1 {
		t.Errorf("expected the old image to be deleted, %d stored", f.store.count())
	}
}

func TestUpdateProfile_ForeignImageSurvivesReplacement(t *testing.T) {
	t.Parallel()
	f := newUserFixture()
	ctx := context.Background()

	other := f.users.add(&model.User{Email: "lee@example.com", FirstName: "Lee", LastName: "Park", Role: model.UserRoleAttendee})
	theirs, err := f.svc.UploadProfileImage(ctx, other.ID, bytes.NewReader(pngBytes))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.UpdateProfile(ctx, f.user.ID, model.UpdateProfileRequest{ProfileImage: &theirs.URL}, nil); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if _, err := f.svc.UploadProfileImage(ctx, f.user.ID, bytes.NewReader(pngBytes)); err != nil {
		t.Fatalf("UploadProfileImage failed: %v", err)
	}

	if _, err := f.store.Get(ctx, theirs.ID); err != nil {
		t.Errorf("expected %s's image to survive, got %v", other.ID, err)
	}
}

func TestUploadProfileImage(t *testing.T) {
	t.Parallel()
	f := newUserFixture()

	uploaded, err := f.svc.UploadProfileImage(context.Background(), f.user.ID, bytes.NewReader(pngBytes))
	if err != nil {
		t.Fatalf("UploadProfileImage failed: %v", err)
	}
	if uploaded.ContentType != "image/png" {
		t.Errorf("expected image/png, got %q", uploaded.ContentType)
	}

	user, _ := f.users.GetByID(context.Background(), f.user.ID)
	if user.ProfileImage == nil || *user.ProfileImage != uploaded.URL {
		t.Errorf("expected profile image %q, got %v", uploaded.URL, user.ProfileImage)
	}
}

func TestUploadProfileImage_Rejections(t *testing.T) {
	t.Parallel()
	f := newUserFixture()
	ctx := context.Background()

	if _, err := f.svc.UploadProfileImage(ctx, f.user.ID, nil); !errors.Is(err, ErrImageRequired) {
		t.Errorf("expected ErrImageRequired, got %v", err)
	}
	if _, err := f.svc.UploadProfileImage(ctx, f.user.ID, bytes.NewReader([]byte("%PDF-1.4 not an image"))); !errors.Is(err, ErrUnsupportedImageType) {
		t.Errorf("expected ErrUnsupportedImageType, got %v", err)
	}
	if f.store.count() != 0 {
		t.Errorf("expected nothing stored, got %d", f.store.count())
	}
}

func TestUserStats_UsesThirtyDayWindow(t *testing.T) {
	t.Parallel()
	f := newUserFixture()
	fixed := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }

	var gotNow, gotSince time.Time
	f.stats.userStatsFunc = func(ctx context.Context, userID string, now, since time.Time) (*model.UserStats, error) {
		gotNow, gotSince = now, since
		return &model.UserStats{UpcomingEvents: 2}, nil
	}

	stats, err := f.svc.Stats(context.Background(), f.user.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.UpcomingEvents != 2 {
		t.Errorf("expected stats passed through, got %+v", stats)
	}
	if !gotNow.Equal(fixed) || !gotSince.Equal(fixed.AddDate(0, 0, -30)) {
		t.Errorf("unexpected window %v - %v", gotSince, gotNow)
	}
}
