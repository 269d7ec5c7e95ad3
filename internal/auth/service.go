package auth

import (
	"context"
	"time"

	"greenledger/internal/models"
	"greenledger/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventSink receives sign-up and sign-in events
type EventSink interface {
	PublishUserEvent(ctx context.Context, event *models.UserEvent) error
}

// Result is the uniform answer of every auth operation
type Result struct {
	User        *models.User    `json:"user,omitempty"`
	Session     *models.Session `json:"session,omitempty"`
	Source      string          `json:"source"`
	RemoteError string          `json:"remoteError,omitempty"`
}

// Service tries the remote provider first and falls back to the local one
// on any remote failure.
type Service struct {
	remote   Provider
	local    *LocalProvider
	sessions *SessionStore
	events   EventSink
	logger   *zap.Logger
}

// NewService creates the auth service. remote and events may be nil.
func NewService(remote Provider, local *LocalProvider, sessions *SessionStore, events EventSink) *Service {
	return &Service{
		remote:   remote,
		local:    local,
		sessions: sessions,
		events:   events,
		logger:   util.Named("auth"),
	}
}

// Local exposes the fallback provider
func (s *Service) Local() *LocalProvider {
	return s.local
}

// Sessions exposes the session store
func (s *Service) Sessions() *SessionStore {
	return s.sessions
}

// outcome records which provider served a call and the remote error the
// fallback masked, if any.
type outcome struct {
	source    string
	remoteErr error
}

// attempt runs remoteFn, then localFn if the remote call failed
func (s *Service) attempt(op string, remoteFn, localFn func(p Provider) error) (outcome, error) {
	var remoteErr error
	if s.remote != nil {
		remoteErr = remoteFn(s.remote)
		if remoteErr == nil {
			util.AuthAttemptsTotal.WithLabelValues(op, models.SourceRemote, "success").Inc()
			return outcome{source: models.SourceRemote}, nil
		}
	} else {
		remoteErr = ErrNotConfigured
	}

	reason := Classify(remoteErr)
	util.AuthFallbackTotal.WithLabelValues(op, reason).Inc()
	if reason != ReasonNotConfigured {
		s.logger.Warn("Identity service failed, using local fallback",
			zap.String("op", op),
			zap.String("reason", reason),
			zap.Error(remoteErr))
	}

	out := outcome{source: models.SourceFallback, remoteErr: remoteErr}
	if err := localFn(s.local); err != nil {
		util.AuthAttemptsTotal.WithLabelValues(op, models.SourceFallback, "failure").Inc()
		return out, err
	}
	util.AuthAttemptsTotal.WithLabelValues(op, models.SourceFallback, "success").Inc()
	return out, nil
}

func (s *Service) result(ctx context.Context, user *models.User, out outcome, withSession bool) (*Result, error) {
	res := &Result{User: user, Source: out.source}
	if out.remoteErr != nil {
		res.RemoteError = out.remoteErr.Error()
	}
	if withSession && user != nil {
		session, err := s.sessions.Create(ctx, user, out.source)
		if err != nil {
			return nil, err
		}
		res.Session = session
	}
	return res, nil
}

func (s *Service) publish(ctx context.Context, eventType string, user *models.User, source string) {
	if s.events == nil || user == nil {
		return
	}
	event := &models.UserEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now(),
		},
		UserID: user.ID,
		Role:   user.Role,
		Source: source,
	}
	if err := s.events.PublishUserEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish user event", zap.String("type", eventType), zap.Error(err))
	}
}

// SignUp registers an account and opens a session
func (s *Service) SignUp(ctx context.Context, email, password string, meta models.UserMetadata) (*Result, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.SignUp")
	defer span.End()

	var user *models.User
	out, err := s.attempt("signup",
		func(p Provider) (err error) { user, err = p.SignUp(ctx, email, password, meta); return },
		func(p Provider) (err error) { user, err = p.SignUp(ctx, email, password, meta); return },
	)
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	s.publish(ctx, models.EventTypeUserSignedUp, user, out.source)
	return s.result(ctx, user, out, true)
}

// SignIn checks an email/password pair and opens a session
func (s *Service) SignIn(ctx context.Context, email, password string) (*Result, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.SignIn")
	defer span.End()

	var user *models.User
	out, err := s.attempt("signin",
		func(p Provider) (err error) { user, err = p.SignIn(ctx, email, password); return },
		func(p Provider) (err error) { user, err = p.SignIn(ctx, email, password); return },
	)
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	s.publish(ctx, models.EventTypeUserSignedIn, user, out.source)
	return s.result(ctx, user, out, true)
}

// SendOTP sends a code to phone
func (s *Service) SendOTP(ctx context.Context, phone string) (*Result, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.SendOTP")
	defer span.End()

	send := func(p Provider) error { return p.SendOTP(ctx, phone) }
	out, err := s.attempt("otp_send", send, send)
	if err != nil {
		return nil, util.RecordError(span, err)
	}
	return s.result(ctx, nil, out, false)
}

// VerifyOTP checks a code and opens a session for the phone's account
func (s *Service) VerifyOTP(ctx context.Context, phone, code string) (*Result, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.VerifyOTP")
	defer span.End()

	var user *models.User
	verify := func(p Provider) (err error) { user, err = p.VerifyOTP(ctx, phone, code); return }
	out, err := s.attempt("otp_verify", verify, verify)
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	s.publish(ctx, models.EventTypeUserSignedIn, user, out.source)
	return s.result(ctx, user, out, true)
}

// VerifyAadhaar checks an Aadhaar number
func (s *Service) VerifyAadhaar(ctx context.Context, aadhaar string) (*AadhaarResult, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.VerifyAadhaar")
	defer span.End()

	var res *AadhaarResult
	verify := func(p Provider) (err error) { res, err = p.VerifyAadhaar(ctx, aadhaar); return }
	if _, err := s.attempt("aadhaar_verify", verify, verify); err != nil {
		return nil, util.RecordError(span, err)
	}
	return res, nil
}

// OAuthURL returns the provider redirect. There is no fallback for OAuth.
func (s *Service) OAuthURL(ctx context.Context, provider, redirectTo string) (string, error) {
	if s.remote == nil {
		return "", ErrOAuthUnavailable
	}
	u, err := s.remote.OAuthURL(ctx, provider, redirectTo)
	if err != nil {
		s.logger.Warn("OAuth unavailable", zap.String("provider", provider), zap.Error(err))
		return "", ErrOAuthUnavailable
	}
	return u, nil
}

// Session resolves a session token
func (s *Service) Session(ctx context.Context, token string) (*models.Session, *models.User, error) {
	return s.sessions.Lookup(ctx, token)
}

// SignOut ends a session
func (s *Service) SignOut(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// OpenSession opens a session for an already verified user
func (s *Service) OpenSession(ctx context.Context, user *models.User, source string) (*Result, error) {
	s.publish(ctx, models.EventTypeUserSignedIn, user, source)
	return s.result(ctx, user, outcome{source: source}, true)
}
