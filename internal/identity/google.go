package identity

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/api/idtoken"
)

// GoogleProfile is the subset of ID token claims the service relies on
type GoogleProfile struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// TokenValidator turns a Google ID token into a verified profile
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*GoogleProfile, error)
}

// GoogleVerifier checks signature, expiry and audience against Google's keys
type GoogleVerifier struct {
	clientID string
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{clientID: clientID}
}

func (g *GoogleVerifier) Validate(ctx context.Context, token string) (*GoogleProfile, error) {
	if g.clientID == "" {
		return nil, errors.New("google client id is not configured")
	}
	payload, err := idtoken.Validate(ctx, token, g.clientID)
	if err != nil {
		return nil, err
	}
	email, _ := payload.Claims["email"].(string)
	verified, _ := payload.Claims["email_verified"].(bool)
	name, _ := payload.Claims["name"].(string)
	if name == "" {
		given, _ := payload.Claims["given_name"].(string)
		family, _ := payload.Claims["family_name"].(string)
		name = strings.TrimSpace(given + " " + family)
	}
	return &GoogleProfile{
		Subject:       payload.Subject,
		Email:         strings.ToLower(email),
		EmailVerified: verified,
		Name:          name,
	}, nil
}
