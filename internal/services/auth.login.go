package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/joshuarp/branchdesk/internal/apiclient"
	"github.com/joshuarp/branchdesk/internal/domain"
	"github.com/joshuarp/branchdesk/internal/domain/vo"
	sharedjwt "github.com/joshuarp/branchdesk/internal/shared/jwt"
	"github.com/joshuarp/branchdesk/internal/shared/securestore"
)

type AuthService struct {
	client  APIClient
	store   securestore.Store
	session *apiclient.Session
}

func NewAuthService(client APIClient, store securestore.Store, session *apiclient.Session) *AuthService {
	return &AuthService{client: client, store: store, session: session}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (vo.AuthLogin, error) {
	normalizedEmail := strings.TrimSpace(strings.ToLower(email))
	if normalizedEmail == "" || strings.TrimSpace(password) == "" {
		return vo.AuthLogin{}, vo.ErrInvalidCredentials
	}

	resp, err := s.client.Do(ctx, apiclient.Request{
		Method:    http.MethodPost,
		Endpoint:  "auth/login",
		Body:      vo.LoginRequest{Email: normalizedEmail, Password: password},
		Anonymous: true,
		Quiet:     true,
	})
	if err != nil {
		switch apiclient.KindOf(err) {
		case apiclient.KindUnauthorized, apiclient.KindBadRequest:
			return vo.AuthLogin{}, s.client.Reclassify(ctx, err, apiclient.KindLoginError)
		default:
			return vo.AuthLogin{}, s.client.Surface(ctx, err)
		}
	}

	var login vo.AuthLogin
	if err := resp.Decode(&login); err != nil {
		return vo.AuthLogin{}, fmt.Errorf("service: failed to decode login response: %w", err)
	}
	if login.AccessToken == "" {
		return vo.AuthLogin{}, errors.New("service: login response carried no access token")
	}

	staff, err := json.Marshal(login.Staff)
	if err != nil {
		return vo.AuthLogin{}, fmt.Errorf("service: failed to encode staff record: %w", err)
	}
	if err := s.store.SetSecureData(ctx, securestore.TokenKey, login.AccessToken); err != nil {
		return vo.AuthLogin{}, fmt.Errorf("service: failed to store token: %w", err)
	}
	if err := s.store.SetSecureData(ctx, securestore.UserKey, string(staff)); err != nil {
		return vo.AuthLogin{}, fmt.Errorf("service: failed to store staff record: %w", err)
	}

	s.session.Reset()
	return login, nil
}

// Logout silences error propagation first so in-flight failures stay quiet.
func (s *AuthService) Logout(ctx context.Context) error {
	s.session.MarkLoggedOut()

	return errors.Join(
		s.store.DeleteItem(ctx, securestore.TokenKey),
		s.store.DeleteItem(ctx, securestore.UserKey),
	)
}

func (s *AuthService) CurrentStaff(ctx context.Context) (domain.Staff, bool, error) {
	raw, ok, err := s.store.GetSecureData(ctx, securestore.UserKey)
	if err != nil || !ok {
		return domain.Staff{}, false, err
	}

	var staff domain.Staff
	if err := json.Unmarshal([]byte(raw), &staff); err != nil {
		return domain.Staff{}, false, fmt.Errorf("service: stored staff record is corrupt: %w", err)
	}
	return staff, true, nil
}

// TokenExpiry reads exp from the stored token without verifying it; the
// backend remains the authority and answers 401 when it disagrees.
func (s *AuthService) TokenExpiry(ctx context.Context) (time.Time, bool, error) {
	token, ok, err := s.store.GetSecureData(ctx, securestore.TokenKey)
	if err != nil || !ok {
		return time.Time{}, false, err
	}

	claims, err := sharedjwt.ParseUnverified(token)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("service: stored token is unreadable: %w", err)
	}
	if claims.ExpiresAt.IsZero() {
		return time.Time{}, false, nil
	}
	return claims.ExpiresAt, true, nil
}
