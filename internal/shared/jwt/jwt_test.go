package jwt

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var testSecret = []byte(strings.Repeat("k", 32))

type HMACSuite struct {
	suite.Suite
	manager TokenManager
}

func (s *HMACSuite) SetupTest() {
	manager, err := New(Options{Strategy: StrategyHMAC, Secret: testSecret, Issuer: "branchdesk", TTL: time.Hour})
	require.NoError(s.T(), err)
	s.manager = manager
}

func (s *HMACSuite) TestNew_TableDriven() {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{name: "unknown strategy", opts: Options{Strategy: "rsa"}, wantErr: "unknown strategy"},
		{name: "short secret", opts: Options{Strategy: StrategyHMAC, Secret: []byte("short")}, wantErr: "at least 32 bytes"},
		{name: "bad algorithm", opts: Options{Strategy: StrategyHMAC, Secret: testSecret, Algorithm: "RS256"}, wantErr: "unsupported HMAC algorithm"},
		{name: "hs512", opts: Options{Strategy: StrategyHMAC, Secret: testSecret, Algorithm: "HS512"}},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			manager, err := New(tc.opts)
			if tc.wantErr != "" {
				assert.ErrorContains(s.T(), err, tc.wantErr)
				assert.Nil(s.T(), manager)
				return
			}
			assert.NoError(s.T(), err)
		})
	}
}

func (s *HMACSuite) TestSignVerify() {
	ctx := context.Background()
	token, err := s.manager.Sign(ctx, Claims{Subject: "staff-1", BranchID: "branch-9", Role: "manager"})
	require.NoError(s.T(), err)

	claims, err := s.manager.Verify(ctx, token)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "staff-1", claims.Subject)
	assert.Equal(s.T(), "branch-9", claims.BranchID)
	assert.Equal(s.T(), "manager", claims.Role)
	assert.Equal(s.T(), "branchdesk", claims.Issuer)
	assert.WithinDuration(s.T(), time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
	assert.False(s.T(), claims.Expired(time.Now()))
}

func (s *HMACSuite) TestVerifyRejects_TableDriven() {
	ctx := context.Background()
	expired, err := s.manager.Sign(ctx, Claims{Subject: "staff-1", ExpiresAt: time.Now().Add(-time.Minute)})
	require.NoError(s.T(), err)

	other, err := NewHMAC(Options{Secret: []byte(strings.Repeat("z", 32))})
	require.NoError(s.T(), err)
	foreign, err := other.Sign(ctx, Claims{Subject: "staff-1"})
	require.NoError(s.T(), err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "expired", token: expired},
		{name: "foreign signature", token: foreign},
		{name: "garbage", token: "not.a.token"},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			claims, err := s.manager.Verify(ctx, tc.token)
			assert.Error(s.T(), err)
			assert.Nil(s.T(), claims)
		})
	}
}

func (s *HMACSuite) TestParseUnverifiedReadsExpiry() {
	expiry := time.Now().Add(-time.Minute).Truncate(time.Second)
	token, err := s.manager.Sign(context.Background(), Claims{Subject: "staff-1", ExpiresAt: expiry})
	require.NoError(s.T(), err)

	claims, err := ParseUnverified(token)
	require.NoError(s.T(), err)
	assert.True(s.T(), claims.ExpiresAt.Equal(expiry))
	assert.True(s.T(), claims.Expired(time.Now()))

	_, err = ParseUnverified("garbage")
	assert.Error(s.T(), err)
}

func (s *HMACSuite) TestContextClaims() {
	ctx := SetClaims(context.Background(), &Claims{Subject: "staff-1"})
	claims, ok := GetClaims(ctx)
	require.True(s.T(), ok)
	assert.Equal(s.T(), "staff-1", claims.Subject)

	_, ok = GetClaims(context.Background())
	assert.False(s.T(), ok)
}

func TestHMACSuite(t *testing.T) {
	suite.Run(t, new(HMACSuite))
}
