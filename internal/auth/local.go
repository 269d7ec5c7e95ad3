package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"greenledger/internal/kv"
	"greenledger/internal/models"
	"greenledger/internal/util"
	"greenledger/internal/validation"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultOTPTTL     = 5 * time.Minute
	maxOTPAttempts    = 5
	minPasswordLength = 6
)

// LocalOptions tunes the fallback provider. A zero OTPCooldown disables
// resend throttling.
type LocalOptions struct {
	AllowDemoOTP bool
	OTPTTL       time.Duration
	OTPCooldown  time.Duration
	BcryptCost   int
	Now          func() time.Time
}

// account is one entry of the greenledger-users map. Phone and Aadhaar
// accounts live under "phone:" and "aadhaar:" keys next to email ones.
type account struct {
	User         models.User `json:"user"`
	PasswordHash string      `json:"passwordHash,omitempty"`
	PINHash      string      `json:"pinHash,omitempty"`
}

type otpRecord struct {
	Code      string    `json:"code"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Attempts  int       `json:"attempts"`
}

// LocalProvider is the fallback account store kept in kv
type LocalProvider struct {
	store    kv.Store
	opts     LocalOptions
	validate *validator.Validate
	logger   *zap.Logger
}

var _ Provider = (*LocalProvider)(nil)

// NewLocalProvider creates the fallback provider
func NewLocalProvider(store kv.Store, opts LocalOptions) *LocalProvider {
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = defaultOTPTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	p := &LocalProvider{
		store:    store,
		opts:     opts,
		validate: validation.New(),
		logger:   util.Named("auth-fallback"),
	}
	if opts.AllowDemoOTP {
		p.logger.Warn("Demo OTP bypass is enabled, any phone can sign in with " + DemoOTP)
	}
	return p
}

func phoneKey(phone string) string     { return "phone:" + phone }
func aadhaarKey(aadhaar string) string { return "aadhaar:" + aadhaar }

func (p *LocalProvider) accounts(ctx context.Context) (map[string]*account, error) {
	accounts := map[string]*account{}
	_, err := kv.GetJSON(ctx, p.store, kv.KeyUsers, &accounts)
	if errors.Is(err, kv.ErrNotFound) {
		return accounts, nil
	}
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (p *LocalProvider) updateAccounts(ctx context.Context, fn func(accounts map[string]*account) error) error {
	return kv.UpdateJSON(ctx, p.store, kv.KeyUsers, func(v *map[string]*account, exists bool) error {
		if *v == nil {
			*v = map[string]*account{}
		}
		return fn(*v)
	})
}

func (p *LocalProvider) saveProfile(ctx context.Context, user *models.User) {
	if err := kv.PutJSON(ctx, p.store, kv.UserKey(user.ID), user); err != nil {
		p.logger.Error("Failed to store user profile", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func newLocalID() string {
	return "local-" + uuid.New().String()
}

// SignUp registers an email/password account. The role defaults to farmer.
func (p *LocalProvider) SignUp(ctx context.Context, email, password string, meta models.UserMetadata) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "LocalProvider.SignUp")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	if err := p.validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: email %q", ErrInvalidInput, email)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.opts.BcryptCost)
	if err != nil {
		return nil, util.RecordError(span, fmt.Errorf("failed to hash password: %w", err))
	}

	user := models.NewUser(newLocalID(), email, meta, p.opts.Now())
	err = p.updateAccounts(ctx, func(accounts map[string]*account) error {
		if _, ok := accounts[email]; ok {
			return ErrUserExists
		}
		accounts[email] = &account{User: *user, PasswordHash: string(hash)}
		return nil
	})
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	p.saveProfile(ctx, user)
	p.logger.Info("Fallback account created", zap.String("user_id", user.ID), zap.String("role", user.Role))
	return user, nil
}

// SignIn checks an email/password pair against the stored bcrypt hash
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "LocalProvider.SignIn")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	accounts, err := p.accounts(ctx)
	if err != nil {
		return nil, util.RecordError(span, err)
	}

	acc, ok := accounts[email]
	if !ok || acc.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	user := acc.User
	user.Role = models.NormalizeRole(user.Role)
	return &user, nil
}

// SendOTP issues a six digit code for phone. Nothing is texted: the code
// is only logged at debug level.
func (p *LocalProvider) SendOTP(ctx context.Context, phone string) error {
	ctx, span := util.StartSpan(ctx, "LocalProvider.SendOTP")
	defer span.End()

	if !validation.IsPhone(phone) {
		return fmt.Errorf("%w: phone must be 10 digits", ErrInvalidInput)
	}

	code, err := randomDigits(validation.OTPLength)
	if err != nil {
		return util.RecordError(span, err)
	}

	now := p.opts.Now()
	err = kv.UpdateJSON(ctx, p.store, kv.OTPKey(phone), func(rec *otpRecord, exists bool) error {
		if exists && now.Sub(rec.IssuedAt) < p.opts.OTPCooldown {
			return ErrOTPCooldown
		}
		*rec = otpRecord{Code: code, IssuedAt: now, ExpiresAt: now.Add(p.opts.OTPTTL)}
		return nil
	})
	if err != nil {
		return err
	}

	util.OTPSentTotal.Inc()
	p.logger.Debug("Fallback OTP issued", zap.String("phone", phone), zap.String("code", code))
	return nil
}

// VerifyOTP checks code against the pending OTP for phone and signs the
// phone's account in, creating a farmer account on first use.
func (p *LocalProvider) VerifyOTP(ctx context.Context, phone, code string) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "LocalProvider.VerifyOTP")
	defer span.End()

	code = validation.SanitizeOTP(code)
	if !validation.IsPhone(phone) || !validation.IsOTP(code) {
		return nil, fmt.Errorf("%w: phone must be 10 digits and otp 6 digits", ErrInvalidInput)
	}

	if p.opts.AllowDemoOTP && code == DemoOTP {
		util.AuthDemoOTPBypassTotal.Inc()
		p.logger.Warn("Demo OTP accepted", zap.String("phone", phone))
		if err := p.store.Delete(ctx, kv.OTPKey(phone)); err != nil {
			p.logger.Error("Failed to clear pending OTP", zap.Error(err))
		}
		return p.phoneAccount(ctx, phone)
	}

	if err := p.checkOTP(ctx, phone, code); err != nil {
		return nil, err
	}
	return p.phoneAccount(ctx, phone)
}

func (p *LocalProvider) checkOTP(ctx context.Context, phone, code string) error {
	now := p.opts.Now()
	var verdict error
	err := kv.Update(ctx, p.store, kv.OTPKey(phone), func(current []byte, exists bool) ([]byte, error) {
		verdict = nil
		if !exists {
			verdict = ErrOTPExpired
			return nil, kv.ErrSkip
		}
		var rec otpRecord
		if err := json.Unmarshal(current, &rec); err != nil {
			return nil, err
		}
		switch {
		case now.After(rec.ExpiresAt):
			verdict = ErrOTPExpired
		case rec.Attempts >= maxOTPAttempts:
			verdict = ErrTooManyAttempts
		case subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1:
			rec.Attempts++
			verdict = ErrInvalidOTP
			return json.Marshal(rec)
		default:
			// consumed
			rec.ExpiresAt = now.Add(-time.Second)
			return json.Marshal(rec)
		}
		return nil, kv.ErrSkip
	})
	if err != nil {
		return err
	}
	if verdict != nil {
		return verdict
	}
	if err := p.store.Delete(ctx, kv.OTPKey(phone)); err != nil {
		p.logger.Error("Failed to clear used OTP", zap.Error(err))
	}
	return nil
}

func (p *LocalProvider) phoneAccount(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	created := false
	err := p.updateAccounts(ctx, func(accounts map[string]*account) error {
		if acc, ok := accounts[phoneKey(phone)]; ok {
			user = acc.User
			return kv.ErrSkip
		}
		u := models.NewUser(newLocalID(), "", models.UserMetadata{Role: models.RoleFarmer, Phone: phone}, p.opts.Now())
		accounts[phoneKey(phone)] = &account{User: *u}
		user = *u
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		p.saveProfile(ctx, &user)
	}
	return &user, nil
}

// VerifyAadhaar only checks the format: the fallback has nothing to verify against
func (p *LocalProvider) VerifyAadhaar(ctx context.Context, aadhaar string) (*AadhaarResult, error) {
	if !validation.IsAadhaar(aadhaar) {
		return nil, fmt.Errorf("%w: aadhaar must be 12 digits", ErrInvalidInput)
	}
	return &AadhaarResult{
		Masked:   MaskAadhaar(aadhaar),
		Verified: true,
		Source:   models.SourceFallback,
	}, nil
}

// OAuthURL is unavailable without the identity service
func (p *LocalProvider) OAuthURL(ctx context.Context, provider, redirectTo string) (string, error) {
	return "", ErrOAuthUnavailable
}

// VerifyFarmerPIN checks the PIN registered for an Aadhaar number. The
// first PIN seen for a number registers it.
func (p *LocalProvider) VerifyFarmerPIN(ctx context.Context, aadhaar, pin string) (registered bool, err error) {
	ctx, span := util.StartSpan(ctx, "LocalProvider.VerifyFarmerPIN")
	defer span.End()

	if !validation.IsAadhaar(aadhaar) || !validation.IsPIN(pin) {
		return false, fmt.Errorf("%w: aadhaar must be 12 digits and pin 4 digits", ErrInvalidInput)
	}

	accounts, err := p.accounts(ctx)
	if err != nil {
		return false, util.RecordError(span, err)
	}
	if acc, ok := accounts[aadhaarKey(aadhaar)]; ok && acc.PINHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(acc.PINHash), []byte(pin)) != nil {
			return false, ErrInvalidPIN
		}
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), p.opts.BcryptCost)
	if err != nil {
		return false, util.RecordError(span, err)
	}
	err = p.updateAccounts(ctx, func(accounts map[string]*account) error {
		acc, ok := accounts[aadhaarKey(aadhaar)]
		if ok && acc.PINHash != "" {
			// registered concurrently
			if bcrypt.CompareHashAndPassword([]byte(acc.PINHash), []byte(pin)) != nil {
				return ErrInvalidPIN
			}
			return kv.ErrSkip
		}
		if !ok {
			u := models.NewUser(newLocalID(), "", models.UserMetadata{Role: models.RoleFarmer, Aadhaar: aadhaar}, p.opts.Now())
			acc = &account{User: *u}
			accounts[aadhaarKey(aadhaar)] = acc
		}
		acc.PINHash = string(hash)
		return nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// LinkFarmer attaches a verified Aadhaar number to a phone-verified user.
// user is only updated once the link is stored.
func (p *LocalProvider) LinkFarmer(ctx context.Context, user *models.User, aadhaar string) error {
	linked := *user
	linked.Aadhaar = aadhaar
	linked.Role = models.RoleFarmer
	err := p.updateAccounts(ctx, func(accounts map[string]*account) error {
		acc, ok := accounts[aadhaarKey(aadhaar)]
		if !ok {
			acc = &account{}
			accounts[aadhaarKey(aadhaar)] = acc
		}
		acc.User = linked
		if linked.Phone != "" {
			if byPhone, ok := accounts[phoneKey(linked.Phone)]; ok {
				byPhone.User = linked
			} else {
				accounts[phoneKey(linked.Phone)] = &account{User: linked}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	*user = linked
	p.saveProfile(ctx, user)
	return nil
}

// PurgeExpiredOTPs deletes pending codes past their TTL
func (p *LocalProvider) PurgeExpiredOTPs(ctx context.Context) (int, error) {
	keys, err := p.store.Keys(ctx, kv.KeyOTPPrefix)
	if err != nil {
		return 0, err
	}
	now := p.opts.Now()
	purged := 0
	for _, key := range keys {
		var rec otpRecord
		if _, err := kv.GetJSON(ctx, p.store, key, &rec); err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return purged, err
		}
		if now.Before(rec.ExpiresAt) {
			continue
		}
		if err := p.store.Delete(ctx, key); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to generate otp: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
