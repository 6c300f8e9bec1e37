package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"

	"github.com/forgo/marquee/api/internal/config"
	"github.com/forgo/marquee/api/internal/database"
	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/internal/repository"
	"github.com/forgo/marquee/api/internal/service"
	"github.com/forgo/marquee/api/pkg/jwt"
)

func main() {
	email := flag.String("email", "admin@marquee.local", "Email of the admin account")
	userID := flag.String("user", "", "Sign for this user id without looking the account up")
	create := flag.Bool("create", false, "Create the admin account when it does not exist")
	password := flag.String("password", "", "Password for a newly created admin account")
	expMins := flag.Int("exp", 60*24*7, "Token expiration in minutes (default: 7 days)")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fail("reading .env", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fail("loading config", err)
	}

	id := *userID
	if id == "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		id, err = resolveAdmin(ctx, cfg, *email, *create, *password)
		if err != nil {
			fail("resolving admin account", err)
		}
	}

	jwtService, err := jwt.NewService(jwt.Config{
		Secret:         cfg.JWT.Secret,
		Issuer:         cfg.JWT.Issuer,
		ExpirationMins: *expMins,
	})
	if err != nil {
		fail("creating JWT service (is JWT_SECRET set?)", err)
	}

	expires := time.Now().Add(time.Duration(*expMins) * time.Minute)
	token, err := jwtService.Sign(jwt.Claims{
		UserID: id,
		Email:  *email,
		Role:   string(model.UserRoleAdmin),
		RegisteredClaims: gojwt.RegisteredClaims{
			ExpiresAt: gojwt.NewNumericDate(expires),
		},
	})
	if err != nil {
		fail("signing token", err)
	}

	if *outputJSON {
		output := map[string]any{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   *expMins * 60,
			"user_id":      id,
			"email":        *email,
			"role":         model.UserRoleAdmin,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(output)
		return
	}

	fmt.Println("Admin Token Generated")
	fmt.Println("=====================")
	fmt.Printf("User ID:  %s\n", id)
	fmt.Printf("Email:    %s\n", *email)
	fmt.Printf("Role:     admin\n")
	fmt.Printf("Expires:  %s\n", expires.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  curl -H 'Authorization: Bearer %s' %s/api/admin/stats\n", abbreviate(token), cfg.Server.PublicBaseURL)
}

// resolveAdmin returns the id of the admin account with email, creating it
// when allowed. The server reloads the account on every request, so a token
// for a missing or non-admin account would be rejected.
func resolveAdmin(ctx context.Context, cfg *config.Config, email string, create bool, password string) (string, error) {
	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})
	if err := db.Connect(ctx); err != nil {
		return "", err
	}
	defer func() { _ = db.Close() }()

	users := repository.NewUserRepository(db)
	user, err := users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	if user == nil {
		if !create {
			return "", fmt.Errorf("no account for %s (pass -create to add one)", email)
		}
		if len(password) < 8 {
			return "", errors.New("-password of at least 8 characters is required with -create")
		}
		hash, err := service.HashPassword(password)
		if err != nil {
			return "", err
		}
		user = &model.User{
			Email:     email,
			Hash:      &hash,
			FirstName: "Marquee",
			LastName:  "Admin",
			Role:      model.UserRoleAdmin,
			Status:    model.UserStatusActive,
		}
		if err := users.Create(ctx, user); err != nil {
			return "", err
		}
		fmt.Fprintf(os.Stderr, "Created admin account %s\n", user.ID)
	}

	if !user.IsAdmin() {
		return "", fmt.Errorf("%s has role %q, not admin", email, user.Role)
	}
	if !user.IsActive() {
		return "", fmt.Errorf("%s is %s", email, user.Status)
	}
	return user.ID, nil
}

func abbreviate(token string) string {
	if len(token) <= 50 {
		return token
	}
	return token[:50] + "..."
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", what, err)
	os.Exit(1)
}
