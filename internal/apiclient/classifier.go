package apiclient

import (
	"fmt"
	"regexp"
	"sync/atomic"
)

// DefaultFallbackMessage is used when neither the locale nor the failure
// provides any text.
const DefaultFallbackMessage = "Something went wrong. Please try again."

// DefaultNoisePatterns match implementation-leaking text that must never be
// shown to staff regardless of kind.
var DefaultNoisePatterns = []string{
	`(?i)\bundefined\b`,
	`(?i)\bnull\b`,
	`(?i)exception`,
	`(?i)\bstack\b`,
	`(?i)stack ?trace`,
	`(?i)syntax ?error`,
	`(?i)type ?error`,
	`(?i)reference ?error`,
	`(?i)cannot read propert`,
	`(?i)is not a function`,
	`(?i)unexpected token`,
	`(?i)\bjson\b`,
	`(?i)\bsql\b`,
	`(?i)goroutine`,
	`(?i)\bpanic\b`,
	`(?i)nil pointer`,
	`(?i)\baudio\b`,
	`(?i)\bsound\b`,
	`(?i)playback`,
	`(?i)expo-av`,
}

// DefaultTunnelPatterns identify development tunnels whose 502 means the
// tunnel itself is down.
var DefaultTunnelPatterns = []string{
	`(?i)ngrok`,
}

// Translator resolves locale keys such as "errors.NETWORK_ERROR".
type Translator interface {
	Lookup(key string) (string, bool)
}

// Policy decides which classified errors reach staff.
type Policy struct {
	allow map[Kind]struct{}
	noise []*regexp.Regexp
}

// NewPolicy compiles a policy. Patterns are Go regular expressions.
func NewPolicy(allow []Kind, noisePatterns []string) (Policy, error) {
	p := Policy{allow: make(map[Kind]struct{}, len(allow))}
	for _, k := range allow {
		p.allow[k] = struct{}{}
	}
	for _, pattern := range noisePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Policy{}, fmt.Errorf("apiclient: invalid noise pattern %q: %w", pattern, err)
		}
		p.noise = append(p.noise, re)
	}
	return p, nil
}

// BaseAllowList is the default set of kinds staff may see.
func BaseAllowList() []Kind {
	return []Kind{KindNetworkError, KindNotFound}
}

// ExtendedAllowList is used by screens that own login, forms and branch state.
func ExtendedAllowList() []Kind {
	return append(BaseAllowList(),
		KindLoginError,
		KindValidationError,
		KindBranchTemporarilyClosed,
		KindSessionExpired,
	)
}

func BasePolicy() Policy {
	return mustPolicy(BaseAllowList(), DefaultNoisePatterns)
}

func ExtendedPolicy() Policy {
	return mustPolicy(ExtendedAllowList(), DefaultNoisePatterns)
}

func mustPolicy(allow []Kind, noise []string) Policy {
	p, err := NewPolicy(allow, noise)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Policy) Allows(kind Kind) bool {
	_, ok := p.allow[kind]
	return ok
}

// Noisy reports whether message matches any technical-noise pattern.
func (p Policy) Noisy(message string) bool {
	for _, re := range p.noise {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}

// Visible is the dual gate: allowed kind and clean message.
func (p Policy) Visible(kind Kind, message string) bool {
	return p.Allows(kind) && !p.Noisy(message)
}

type ClassifierOptions struct {
	Policy     Policy
	Translator Translator
	// TunnelPatterns default to DefaultTunnelPatterns.
	TunnelPatterns []string
	// Fallback defaults to the translated "errors.GENERIC", then DefaultFallbackMessage.
	Fallback string
}

// Classifier maps failures to ClassifiedError. It holds no per-call state;
// the policy may be swapped at runtime (config reload) without locking callers.
type Classifier struct {
	policy     atomic.Pointer[Policy]
	translator Translator
	tunnels    []*regexp.Regexp
	fallback   string
}

func NewClassifier(opts ClassifierOptions) (*Classifier, error) {
	patterns := opts.TunnelPatterns
	if len(patterns) == 0 {
		patterns = DefaultTunnelPatterns
	}

	c := &Classifier{translator: opts.Translator, fallback: opts.Fallback}
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("apiclient: invalid tunnel pattern %q: %w", pattern, err)
		}
		c.tunnels = append(c.tunnels, re)
	}

	policy := opts.Policy
	if policy.allow == nil {
		policy = BasePolicy()
	}
	c.policy.Store(&policy)

	if c.fallback == "" {
		c.fallback = DefaultFallbackMessage
		if text, ok := c.translate("errors.GENERIC"); ok {
			c.fallback = text
		}
	}
	return c, nil
}

func (c *Classifier) SetPolicy(p Policy) {
	c.policy.Store(&p)
}

func (c *Classifier) Policy() Policy {
	return *c.policy.Load()
}

// KindOf maps a failure to its kind without resolving a message.
func (c *Classifier) KindOf(f Failure) Kind {
	switch v := f.(type) {
	case TransportFailure:
		if v.Code == TransportNetwork {
			return KindNetworkError
		}
		return KindRequestTimeout
	case ApplicationFailure:
		return KindAPIError
	case HTTPFailure:
		if v.StatusCode == 502 && c.tunneled(v.URL) {
			return KindNgrokError
		}
		if kind, ok := statusKinds[v.StatusCode]; ok {
			return kind
		}
		return KindUnknown
	default:
		return KindUnknown
	}
}

// Classify is pure: the same failure always yields the same result under the
// same policy.
func (c *Classifier) Classify(f Failure) ClassifiedError {
	ce := c.Resolve(c.KindOf(f), statusOf(f), rawMessage(f), f)
	if app, ok := f.(ApplicationFailure); ok {
		ce.Code = app.Code
	}
	return ce
}

// Resolve builds a ClassifiedError for kind, resolving the message through the
// locale and applying the visibility policy. API_ERROR keeps raw verbatim.
func (c *Classifier) Resolve(kind Kind, status int, raw string, cause error) ClassifiedError {
	message := c.message(kind, raw)
	return ClassifiedError{
		Kind:       kind,
		Message:    message,
		StatusCode: status,
		ShowToUser: c.policy.Load().Visible(kind, message),
		cause:      cause,
	}
}

func (c *Classifier) message(kind Kind, raw string) string {
	if kind == KindAPIError && raw != "" {
		return raw
	}
	if text, ok := c.translate("errors." + string(kind)); ok {
		return text
	}
	if raw != "" {
		return raw
	}
	return c.fallback
}

func (c *Classifier) translate(key string) (string, bool) {
	if c.translator == nil {
		return "", false
	}
	return c.translator.Lookup(key)
}

func (c *Classifier) tunneled(url string) bool {
	for _, re := range c.tunnels {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}
