// Package jwt issues and verifies the HS256 access tokens used by the
// Marquee API.
//
//	svc, err := jwt.NewService(jwt.Config{
//	    Secret:         cfg.JWT.Secret,
//	    Issuer:         "marquee.forgo.software",
//	    ExpirationMins: 60,
//	})
//
//	token, err := svc.Sign(jwt.Claims{UserID: user.ID, Email: user.Email, Role: "organizer"})
//	claims, err := svc.Validate(token)
//
// Validation errors are normalized to the package sentinels (ErrTokenExpired,
// ErrInvalidSignature, ErrInvalidToken) so callers never depend on the
// underlying library's error types.
package jwt
