// Package callurl derives the moderator and participant join URLs of a call.
package callurl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/virtualidentityag/caritas-rework-onlineBeratung-videoService/internal/domain"
)

// Config is the static part of every call URL
type Config struct {
	ServerURL string
	Secret    string
	Audience  string
	Issuer    string
}

// roomClaims carry no time-based fields so the same call id always yields the same token
type roomClaims struct {
	Room      string `json:"room"`
	Moderator bool   `json:"moderator"`
	jwt.RegisteredClaims
}

// Generator signs room tokens and assembles join URLs
type Generator struct {
	baseURL  string
	secret   []byte
	audience string
	issuer   string
}

// NewGenerator validates cfg and returns a generator
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("call url secret must not be empty")
	}
	if _, err := url.ParseRequestURI(cfg.ServerURL); err != nil {
		return nil, fmt.Errorf("invalid call server url: %w", err)
	}

	return &Generator{
		baseURL:  strings.TrimRight(cfg.ServerURL, "/"),
		secret:   []byte(cfg.Secret),
		audience: cfg.Audience,
		issuer:   cfg.Issuer,
	}, nil
}

// DeriveURLs returns both join URLs for callID or an error, never one of them alone
func (g *Generator) DeriveURLs(callID string) (domain.CallURLs, error) {
	if callID == "" {
		return domain.CallURLs{}, fmt.Errorf("call id must not be empty")
	}

	moderatorURL, err := g.joinURL(callID, true)
	if err != nil {
		return domain.CallURLs{}, err
	}
	userURL, err := g.joinURL(callID, false)
	if err != nil {
		return domain.CallURLs{}, err
	}

	return domain.CallURLs{
		ModeratorVideoURL: moderatorURL,
		UserVideoURL:      userURL,
	}, nil
}

func (g *Generator) joinURL(callID string, moderator bool) (string, error) {
	claims := &roomClaims{
		Room:      callID,
		Moderator: moderator,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   g.issuer,
			Subject:  callID,
			Audience: jwt.ClaimStrings{g.audience},
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign room token: %w", err)
	}

	return fmt.Sprintf("%s/%s?jwt=%s", g.baseURL, url.PathEscape(callID), token), nil
}
