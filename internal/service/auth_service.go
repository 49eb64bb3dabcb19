package service

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/seatwatch/internal/models"
	appErrors "github.com/noah-isme/seatwatch/pkg/errors"
)

// AuthConfig defines how operator tokens are signed and verified.
type AuthConfig struct {
	Secret string
	Issuer string
}

// IssueTokenRequest describes a token minted from the CLI.
type IssueTokenRequest struct {
	Subject string        `validate:"required,max=64"`
	Role    string        `validate:"required,oneof=admin viewer"`
	TTL     time.Duration `validate:"gt=0"`
}

// AuthService verifies operator bearer tokens. There is no login flow; tokens
// are minted out of band with the token command.
type AuthService struct {
	validator *validator.Validate
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(validate *validator.Validate, config AuthConfig) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{validator: validate, config: config, now: time.Now}
}

// IssueToken signs an HS256 operator token.
func (s *AuthService) IssueToken(req IssueTokenRequest) (*models.IssuedToken, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrValidation, err, "invalid token request")
	}
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(req.TTL)
	claims := &models.OperatorClaims{
		Role: models.OperatorRole(req.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.config.Issuer,
			Subject:   req.Subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to sign token")
	}
	return &models.IssuedToken{AccessToken: signed, Subject: req.Subject, Role: req.Role, ExpiresAt: expiresAt}, nil
}

// ValidateToken parses and verifies an operator token.
func (s *AuthService) ValidateToken(tokenString string) (*models.OperatorClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrUnauthorized, err, "invalid token")
	}

	claims, ok := token.Claims.(*models.OperatorClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}
