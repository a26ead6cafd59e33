package service

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/lingua-api/internal/models"
	appErrors "github.com/noah-isme/lingua-api/pkg/errors"
)

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret   string
	Audience    string
	AdminEmails []string
}

// AuthService verifies access tokens minted by the identity provider and
// answers staff membership from a fixed allowlist.
type AuthService struct {
	secret   []byte
	audience string
	admins   map[string]struct{}
	logger   *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(cfg AuthConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	admins := make(map[string]struct{}, len(cfg.AdminEmails))
	for _, email := range cfg.AdminEmails {
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			admins[email] = struct{}{}
		}
	}
	return &AuthService{secret: []byte(cfg.JWTSecret), audience: cfg.Audience, admins: admins, logger: logger}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.NormalizedEmail() == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has no email")
	}
	return claims, nil
}

// IsAdmin reports whether the token belongs to a staff member.
func (s *AuthService) IsAdmin(claims *models.JWTClaims) bool {
	if claims == nil {
		return false
	}
	_, ok := s.admins[claims.NormalizedEmail()]
	return ok
}
