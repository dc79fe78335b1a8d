package apiclient

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/joshuarp/branchdesk/internal/shared/i18n"
)

type mapTranslator map[string]string

func (m mapTranslator) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

type ClassifierSuite struct {
	suite.Suite

	dict       *i18n.Dictionary
	classifier *Classifier
}

func (s *ClassifierSuite) SetupTest() {
	dict, err := i18n.Load("en")
	require.NoError(s.T(), err)
	s.dict = dict

	s.classifier, err = NewClassifier(ClassifierOptions{Translator: dict})
	require.NoError(s.T(), err)
}

func (s *ClassifierSuite) TestClassify_TableDriven() {
	tests := []struct {
		name     string
		failure  Failure
		wantKind Kind
		wantShow bool
	}{
		{
			name:     "offline",
			failure:  TransportFailure{Code: TransportNetwork, URL: "https://api.test/orders", Err: ErrOffline},
			wantKind: KindNetworkError,
			wantShow: true,
		},
		{
			name:     "timeout",
			failure:  TransportFailure{Code: TransportTimeout, URL: "https://api.test/orders", Err: context.DeadlineExceeded},
			wantKind: KindRequestTimeout,
		},
		{
			name:     "aborted maps to timeout",
			failure:  TransportFailure{Code: TransportAborted, URL: "https://api.test/orders", Err: context.Canceled},
			wantKind: KindRequestTimeout,
		},
		{name: "400", failure: HTTPFailure{StatusCode: 400, Message: "bad"}, wantKind: KindBadRequest},
		{name: "401", failure: HTTPFailure{StatusCode: 401, Message: "expired"}, wantKind: KindUnauthorized},
		{name: "403", failure: HTTPFailure{StatusCode: 403, Message: "nope"}, wantKind: KindForbidden},
		{name: "404", failure: HTTPFailure{StatusCode: 404, Message: "Not Found"}, wantKind: KindNotFound, wantShow: true},
		{name: "422", failure: HTTPFailure{StatusCode: 422, Message: "invalid"}, wantKind: KindValidationError},
		{name: "500", failure: HTTPFailure{StatusCode: 500, Message: "boom"}, wantKind: KindServerError},
		{name: "502", failure: HTTPFailure{StatusCode: 502, URL: "https://api.example.com/x"}, wantKind: KindBadGateway},
		{name: "502 via tunnel", failure: HTTPFailure{StatusCode: 502, URL: "https://abc.ngrok-free.app/x"}, wantKind: KindNgrokError},
		{name: "503", failure: HTTPFailure{StatusCode: 503}, wantKind: KindServiceUnavailable},
		{name: "unmapped status", failure: HTTPFailure{StatusCode: 418, Message: "teapot"}, wantKind: KindUnknown},
		{
			name:     "application error",
			failure:  ApplicationFailure{StatusCode: 409, Message: "Order already accepted", Code: "invalid_transition"},
			wantKind: KindAPIError,
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			ce := s.classifier.Classify(tc.failure)
			assert.Equal(s.T(), tc.wantKind, ce.Kind)
			assert.Equal(s.T(), tc.wantShow, ce.ShowToUser)
			assert.Equal(s.T(), statusOf(tc.failure), ce.StatusCode)
			assert.NotEmpty(s.T(), ce.Message)
		})
	}
}

func (s *ClassifierSuite) TestClassifyIsIdempotent() {
	failure := HTTPFailure{StatusCode: 404, URL: "https://api.test/orders/9", Message: "Not Found"}

	first := s.classifier.Classify(failure)
	second := s.classifier.Classify(failure)

	assert.Equal(s.T(), first, second)
}

func (s *ClassifierSuite) TestMessageResolution_TableDriven() {
	tests := []struct {
		name       string
		translator Translator
		failure    Failure
		want       string
	}{
		{
			name:       "locale text wins over raw",
			translator: s.dict,
			failure:    HTTPFailure{StatusCode: 404, Message: "Not Found"},
			want:       "The requested item was not found.",
		},
		{
			name:       "raw message when locale has no key",
			translator: mapTranslator{},
			failure:    HTTPFailure{StatusCode: 404, Message: "Order 9 is gone"},
			want:       "Order 9 is gone",
		},
		{
			name:       "fallback when nothing else",
			translator: mapTranslator{"errors.GENERIC": "Try again later"},
			failure:    HTTPFailure{StatusCode: 404},
			want:       "Try again later",
		},
		{
			name:    "default fallback without translator",
			failure: HTTPFailure{StatusCode: 404},
			want:    DefaultFallbackMessage,
		},
		{
			name:       "api error keeps backend text verbatim",
			translator: mapTranslator{"errors.API_ERROR": "translated"},
			failure:    ApplicationFailure{StatusCode: 409, Message: "Order already accepted"},
			want:       "Order already accepted",
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			c, err := NewClassifier(ClassifierOptions{Translator: tc.translator})
			require.NoError(s.T(), err)
			assert.Equal(s.T(), tc.want, c.Classify(tc.failure).Message)
		})
	}
}

func (s *ClassifierSuite) TestNoiseGateHidesAllowedKinds() {
	c, err := NewClassifier(ClassifierOptions{})
	require.NoError(s.T(), err)

	ce := c.Classify(HTTPFailure{StatusCode: 404, Message: "Cannot read property 'id' of undefined"})
	assert.Equal(s.T(), KindNotFound, ce.Kind)
	assert.False(s.T(), ce.ShowToUser)

	ce = c.Classify(HTTPFailure{StatusCode: 404, Message: "Order not found"})
	assert.True(s.T(), ce.ShowToUser)
}

func (s *ClassifierSuite) TestExtendedPolicy() {
	failure := HTTPFailure{StatusCode: 422, Message: "prep time is required"}
	assert.False(s.T(), s.classifier.Classify(failure).ShowToUser)

	s.classifier.SetPolicy(ExtendedPolicy())
	assert.True(s.T(), s.classifier.Classify(failure).ShowToUser)
	assert.True(s.T(), s.classifier.Policy().Allows(KindSessionExpired))
	assert.False(s.T(), s.classifier.Policy().Allows(KindServerError))
}

func (s *ClassifierSuite) TestResolveServiceKinds() {
	s.classifier.SetPolicy(ExtendedPolicy())
	cause := errors.New("upstream")

	ce := s.classifier.Resolve(KindLoginError, http.StatusUnauthorized, "invalid email or password", cause)

	assert.Equal(s.T(), KindLoginError, ce.Kind)
	assert.Equal(s.T(), "Incorrect email or password.", ce.Message)
	assert.True(s.T(), ce.ShowToUser)
	assert.ErrorIs(s.T(), &ce, cause)
}

func (s *ClassifierSuite) TestInvalidPatterns() {
	_, err := NewPolicy(BaseAllowList(), []string{"("})
	assert.ErrorContains(s.T(), err, "invalid noise pattern")

	_, err = NewClassifier(ClassifierOptions{TunnelPatterns: []string{"["}})
	assert.ErrorContains(s.T(), err, "invalid tunnel pattern")
}

func (s *ClassifierSuite) TestCustomTunnelPattern() {
	c, err := NewClassifier(ClassifierOptions{TunnelPatterns: []string{`(?i)\.trycloudflare\.com`}})
	require.NoError(s.T(), err)

	assert.Equal(s.T(), KindNgrokError, c.KindOf(HTTPFailure{StatusCode: 502, URL: "https://x.trycloudflare.com/a"}))
	assert.Equal(s.T(), KindBadGateway, c.KindOf(HTTPFailure{StatusCode: 502, URL: "https://x.ngrok.io/a"}))
}

func TestClassifierSuite(t *testing.T) {
	suite.Run(t, new(ClassifierSuite))
}

func TestResponseFailure_TableDriven(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		assert func(t *testing.T, f Failure)
	}{
		{
			name:   "unmapped status with error field",
			status: 409,
			body:   `{"error":"Order already accepted","code":"invalid_transition"}`,
			assert: func(t *testing.T, f Failure) {
				app, ok := f.(ApplicationFailure)
				require.True(t, ok)
				assert.Equal(t, "Order already accepted", app.Message)
				assert.Equal(t, "invalid_transition", app.Code)
			},
		},
		{
			name:   "mapped status with error field stays http",
			status: 404,
			body:   `{"error":"order not found"}`,
			assert: func(t *testing.T, f Failure) {
				hf, ok := f.(HTTPFailure)
				require.True(t, ok)
				assert.Equal(t, "order not found", hf.Message)
			},
		},
		{
			name:   "message preferred over error",
			status: 500,
			body:   `{"message":"db down","error":"internal"}`,
			assert: func(t *testing.T, f Failure) {
				assert.Equal(t, "db down", f.(HTTPFailure).Message)
			},
		},
		{
			name:   "non json body uses status text",
			status: 502,
			body:   `<html>bad gateway</html>`,
			assert: func(t *testing.T, f Failure) {
				assert.Equal(t, "Bad Gateway", f.(HTTPFailure).Message)
			},
		},
		{
			name:   "empty error field on unmapped status",
			status: 418,
			body:   `{"error":""}`,
			assert: func(t *testing.T, f Failure) {
				assert.IsType(t, HTTPFailure{}, f)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.assert(t, responseFailure("https://api.test/x", tc.status, []byte(tc.body)))
		})
	}
}

func TestTransportFailure_TableDriven(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want TransportCode
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: TransportTimeout},
		{name: "canceled", err: context.Canceled, want: TransportAborted},
		{name: "refused", err: errors.New("dial tcp: connection refused"), want: TransportNetwork},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := transportFailure("https://api.test", tc.err)
			assert.Equal(t, tc.want, f.Code)
			assert.ErrorIs(t, f, tc.err)
		})
	}
}
