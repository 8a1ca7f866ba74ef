package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/sheshield/sheshield/server/auth/key"
	"golang.org/x/crypto/bcrypt"
)

// SessionDuration is how long a session token stays valid after login.
const SessionDuration = 24 * time.Hour

type SheShieldTokenClaims struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsAdmin   bool   `json:"is_admin"`
	jwt.StandardClaims
}

// NewSessionClaims fills in the standard claims for a session issued now,
// with 'subject' set to the user's id.
func NewSessionClaims(subject, firstName, lastName string, isAdmin bool) SheShieldTokenClaims {
	now := time.Now()

	return SheShieldTokenClaims{
		FirstName: firstName,
		LastName:  lastName,
		IsAdmin:   isAdmin,
		StandardClaims: jwt.StandardClaims{
			Subject:   subject,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(SessionDuration).Unix(),
			Issuer:    "sheshield",
		},
	}
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func EncodeJWT(claims SheShieldTokenClaims, keyPair *key.KeyPair) (string, error) {
	token := jwt.NewWithClaims(jwt.GetSigningMethod("RS256"), claims)

	tokenString, err := token.SignedString(keyPair.PrivateKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func DecodeJWT(tokenString string, keyPair *key.KeyPair) (*SheShieldTokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SheShieldTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		// validate the alg is what you expect:
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		return keyPair.PublicKey, nil
	})

	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid jwt: %v", err)
	}

	tokenClaims, ok := token.Claims.(*SheShieldTokenClaims)
	if !ok {
		return nil, fmt.Errorf("unable to assert token.Claims to SheShieldTokenClaims")
	}

	return tokenClaims, nil
}
