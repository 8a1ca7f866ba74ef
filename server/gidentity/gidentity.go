package gidentity

import (
	"context"
	"fmt"

	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// ExternalIdentity is what the provider vouches for after a successful
// credential exchange.
type ExternalIdentity struct {
	Subject string
	Email   string
}

type TokenVerifierInterface interface {
	// VerifyIDToken checks the provider-issued ID token & returns the
	// identity it asserts.
	VerifyIDToken(idToken string) (*ExternalIdentity, error)
}

type GoogleTokenVerifier struct {
	service  *goauth2.Service
	clientID string
}

func NewGoogleTokenVerifier(clientID string) (*GoogleTokenVerifier, error) {
	service, err := goauth2.NewService(context.Background(), option.WithoutAuthentication())
	if err != nil {
		return nil, fmt.Errorf("NewGoogleTokenVerifier: %v", err)
	}

	return &GoogleTokenVerifier{service: service, clientID: clientID}, nil
}

func (verifier *GoogleTokenVerifier) VerifyIDToken(idToken string) (*ExternalIdentity, error) {
	tokenInfo, err := verifier.service.Tokeninfo().IdToken(idToken).Do()
	if err != nil {
		return nil, fmt.Errorf("VerifyIDToken: %v", err)
	}

	if verifier.clientID != "" && tokenInfo.Audience != verifier.clientID {
		return nil, fmt.Errorf("VerifyIDToken: token was not issued for this app")
	}

	if !tokenInfo.VerifiedEmail {
		return nil, fmt.Errorf("VerifyIDToken: provider account email is not verified")
	}

	return &ExternalIdentity{
		Subject: tokenInfo.UserId,
		Email:   tokenInfo.Email,
	}, nil
}
