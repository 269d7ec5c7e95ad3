package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"greenledger/internal/kv"
	"greenledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T, remote Provider, allowDemo bool) (*Service, kv.Store, *clock) {
	t.Helper()
	store := kv.NewMemoryStore()
	clk := &clock{t: time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)}
	local := NewLocalProvider(store, LocalOptions{
		AllowDemoOTP: allowDemo,
		OTPTTL:       5 * time.Minute,
		OTPCooldown:  30 * time.Second,
		BcryptCost:   bcrypt.MinCost,
		Now:          clk.Now,
	})
	sessions := NewSessionStore(store, time.Hour, clk.Now)
	return NewService(remote, local, sessions, nil), store, clk
}

func issuedOTP(t *testing.T, store kv.Store, phone string) string {
	t.Helper()
	var rec otpRecord
	_, err := kv.GetJSON(context.Background(), store, kv.OTPKey(phone), &rec)
	require.NoError(t, err)
	return rec.Code
}

func TestFallbackSignUpSignInDefaultsRole(t *testing.T) {
	svc, _, _ := newTestService(t, NewRemoteProvider("", "", time.Second), false)
	ctx := context.Background()

	up, err := svc.SignUp(ctx, "Ravi@Example.com", "secret123", models.UserMetadata{Name: "Ravi"})
	require.NoError(t, err)
	assert.Equal(t, models.SourceFallback, up.Source)
	assert.Equal(t, models.RoleFarmer, up.User.Role)
	require.NotNil(t, up.Session)

	in, err := svc.SignIn(ctx, "ravi@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, models.SourceFallback, in.Source)
	assert.Equal(t, up.User.ID, in.User.ID)
	assert.Equal(t, models.RoleFarmer, in.User.Role)
	assert.Equal(t, "ravi@example.com", in.User.Email)

	_, err = svc.SignIn(ctx, "ravi@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignUp(ctx, "ravi@example.com", "another1", models.UserMetadata{})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestFallbackPasswordIsNotStoredInClear(t *testing.T) {
	svc, store, _ := newTestService(t, nil, false)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, "a@b.in", "secret123", models.UserMetadata{Role: "warehouse"})
	require.NoError(t, err)

	entry, err := store.Get(ctx, kv.KeyUsers)
	require.NoError(t, err)
	assert.NotContains(t, string(entry.Value), "secret123")

	var accounts map[string]*account
	require.NoError(t, json.Unmarshal(entry.Value, &accounts))
	assert.Equal(t, models.RoleWarehouse, accounts["a@b.in"].User.Role)
}

func TestSignUpRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestService(t, nil, false)

	_, err := svc.SignUp(context.Background(), "not-an-email", "secret123", models.UserMetadata{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.SignUp(context.Background(), "a@b.in", "123", models.UserMetadata{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDemoOTPBypass(t *testing.T) {
	ctx := context.Background()

	t.Run("enabled", func(t *testing.T) {
		svc, _, _ := newTestService(t, nil, true)
		_, err := svc.SendOTP(ctx, "9876543210")
		require.NoError(t, err)

		res, err := svc.VerifyOTP(ctx, "9876543210", DemoOTP)
		require.NoError(t, err)
		assert.Equal(t, "9876543210", res.User.Phone)
		assert.Equal(t, models.RoleFarmer, res.User.Role)
	})

	t.Run("disabled", func(t *testing.T) {
		svc, store, _ := newTestService(t, nil, false)
		_, err := svc.SendOTP(ctx, "9876543210")
		require.NoError(t, err)
		if issuedOTP(t, store, "9876543210") == DemoOTP {
			t.Skip("issued code collided with the demo code")
		}

		_, err = svc.VerifyOTP(ctx, "9876543210", DemoOTP)
		assert.ErrorIs(t, err, ErrInvalidOTP)
	})
}

func TestOTPFlow(t *testing.T) {
	svc, store, clk := newTestService(t, nil, false)
	ctx := context.Background()
	phone := "9123456780"

	_, err := svc.SendOTP(ctx, phone)
	require.NoError(t, err)

	_, err = svc.SendOTP(ctx, phone)
	assert.ErrorIs(t, err, ErrOTPCooldown)

	code := issuedOTP(t, store, phone)
	assert.Len(t, code, 6)

	first, err := svc.VerifyOTP(ctx, phone, code[:3]+"-"+code[3:])
	require.NoError(t, err)

	// single use
	_, err = svc.VerifyOTP(ctx, phone, code)
	assert.ErrorIs(t, err, ErrOTPExpired)

	clk.Advance(time.Minute)
	_, err = svc.SendOTP(ctx, phone)
	require.NoError(t, err)
	second, err := svc.VerifyOTP(ctx, phone, issuedOTP(t, store, phone))
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
}

func TestOTPExpiresAndLocksOut(t *testing.T) {
	svc, store, clk := newTestService(t, nil, false)
	ctx := context.Background()
	phone := "9000000001"

	_, err := svc.SendOTP(ctx, phone)
	require.NoError(t, err)
	code := issuedOTP(t, store, phone)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < maxOTPAttempts; i++ {
		_, err = svc.VerifyOTP(ctx, phone, wrong)
		assert.ErrorIs(t, err, ErrInvalidOTP)
	}
	_, err = svc.VerifyOTP(ctx, phone, code)
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	clk.Advance(time.Minute)
	_, err = svc.SendOTP(ctx, phone)
	require.NoError(t, err)
	clk.Advance(6 * time.Minute)
	_, err = svc.VerifyOTP(ctx, phone, issuedOTP(t, store, phone))
	assert.ErrorIs(t, err, ErrOTPExpired)

	purged, err := svc.Local().PurgeExpiredOTPs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
}

func TestRemoteSuccessAndFallback(t *testing.T) {
	var fail bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("apikey"))
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","user":{"id":"remote-1","email":"r@x.in","user_metadata":{"role":"consumer"}}}`))
	}))
	defer srv.Close()

	svc, _, _ := newTestService(t, NewRemoteProvider(srv.URL, "test-key", time.Second), false)
	ctx := context.Background()

	res, err := svc.SignUp(ctx, "r@x.in", "secret123", models.UserMetadata{})
	require.NoError(t, err)
	assert.Equal(t, models.SourceRemote, res.Source)
	assert.Equal(t, "remote-1", res.User.ID)
	assert.Equal(t, models.RoleConsumer, res.User.Role)
	assert.Empty(t, res.RemoteError)

	fail = true
	res, err = svc.SignUp(ctx, "r@x.in", "secret123", models.UserMetadata{})
	require.NoError(t, err)
	assert.Equal(t, models.SourceFallback, res.Source)
	assert.Contains(t, res.RemoteError, "502")
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ReasonNotConfigured, Classify(ErrNotConfigured))
	assert.Equal(t, ReasonRejected, Classify(&RemoteError{Status: 400}))
	assert.Equal(t, ReasonNetwork, Classify(&RemoteError{Status: 429}))
	assert.Equal(t, ReasonNetwork, Classify(&RemoteError{Status: 503}))
	assert.Equal(t, ReasonNetwork, Classify(context.DeadlineExceeded))
}

func TestOAuthWithoutRemote(t *testing.T) {
	svc, _, _ := newTestService(t, NewRemoteProvider("", "", time.Second), false)
	_, err := svc.OAuthURL(context.Background(), "google", "")
	assert.ErrorIs(t, err, ErrOAuthUnavailable)

	p := NewRemoteProvider("https://id.example.com", "k", time.Second)
	u, err := p.OAuthURL(context.Background(), "google", "https://app/cb")
	require.NoError(t, err)
	assert.Equal(t, "https://id.example.com/auth/v1/authorize?provider=google&redirect_to=https%3A%2F%2Fapp%2Fcb", u)
}

func TestSessions(t *testing.T) {
	svc, _, clk := newTestService(t, nil, false)
	ctx := context.Background()

	res, err := svc.SignUp(ctx, "s@x.in", "secret123", models.UserMetadata{})
	require.NoError(t, err)

	session, user, err := svc.Session(ctx, res.Session.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, user.ID)
	assert.Equal(t, models.SourceFallback, session.Source)

	require.NoError(t, svc.SignOut(ctx, res.Session.Token))
	_, _, err = svc.Session(ctx, res.Session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	res, err = svc.SignIn(ctx, "s@x.in", "secret123")
	require.NoError(t, err)
	clk.Advance(2 * time.Hour)
	purged, err := svc.Sessions().PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
	_, _, err = svc.Session(ctx, res.Session.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFarmerLoginWizard(t *testing.T) {
	svc, store, clk := newTestService(t, nil, true)
	wizard := NewFarmerLogin(store, svc, time.Minute, clk.Now)
	ctx := context.Background()

	_, err := wizard.Start(ctx, "12345")
	assert.ErrorIs(t, err, ErrInvalidInput)

	flow, err := wizard.Start(ctx, "1234 5678 9012")
	require.NoError(t, err)
	assert.Equal(t, StepPIN, flow.Step)
	assert.Equal(t, "XXXX-XXXX-9012", flow.AadhaarMasked)

	_, err = wizard.SubmitPhone(ctx, flow.ID, "9876543210")
	assert.ErrorIs(t, err, ErrWrongStep)

	flow, err = wizard.SubmitPIN(ctx, flow.ID, "4321")
	require.NoError(t, err)
	assert.Equal(t, StepPhone, flow.Step)
	assert.True(t, flow.NewPIN)

	_, err = wizard.SubmitPhone(ctx, flow.ID, "98765")
	assert.ErrorIs(t, err, ErrInvalidInput)
	current, err := wizard.Get(ctx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, StepPhone, current.Step)

	flow, err = wizard.SubmitPhone(ctx, flow.ID, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, StepOTP, flow.Step)

	flow, res, err := wizard.SubmitOTP(ctx, flow.ID, DemoOTP)
	require.NoError(t, err)
	assert.Equal(t, StepSuccess, flow.Step)
	assert.Equal(t, "123456789012", res.User.Aadhaar)
	assert.NotNil(t, res.Session)

	second, err := wizard.Start(ctx, "123456789012")
	require.NoError(t, err)
	_, err = wizard.SubmitPIN(ctx, second.ID, "0000")
	assert.ErrorIs(t, err, ErrInvalidPIN)
	second, err = wizard.SubmitPIN(ctx, second.ID, "4321")
	require.NoError(t, err)
	assert.False(t, second.NewPIN)

	clk.Advance(2 * time.Minute)
	purged, err := wizard.PurgeStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)
	_, err = wizard.Get(ctx, second.ID)
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestFarmerLoginLocksAfterRepeatedWrongPINs(t *testing.T) {
	svc, store, clk := newTestService(t, nil, true)
	wizard := NewFarmerLogin(store, svc, time.Minute, clk.Now)
	ctx := context.Background()

	first, err := wizard.Start(ctx, "123456789012")
	require.NoError(t, err)
	_, err = wizard.SubmitPIN(ctx, first.ID, "4321")
	require.NoError(t, err)

	flow, err := wizard.Start(ctx, "123456789012")
	require.NoError(t, err)

	// malformed input is not a guess
	_, err = wizard.SubmitPIN(ctx, flow.ID, "12")
	assert.ErrorIs(t, err, ErrInvalidInput)

	for i := 0; i < maxFlowFailures; i++ {
		_, err = wizard.SubmitPIN(ctx, flow.ID, "0000")
		assert.ErrorIs(t, err, ErrInvalidPIN)
	}

	_, err = wizard.SubmitPIN(ctx, flow.ID, "4321")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	locked, err := wizard.Get(ctx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, StepPIN, locked.Step)
	assert.Equal(t, maxFlowFailures, locked.Failures)
}

// usersWriteFailure fails every write to the account map
type usersWriteFailure struct {
	kv.Store
}

func (s usersWriteFailure) Put(ctx context.Context, key string, value []byte, expectedVersion int64) (int64, error) {
	if key == kv.KeyUsers {
		return 0, errors.New("disk full")
	}
	return s.Store.Put(ctx, key, value, expectedVersion)
}

func TestLinkFarmerLeavesUserUntouchedOnFailure(t *testing.T) {
	local := NewLocalProvider(usersWriteFailure{Store: kv.NewMemoryStore()}, LocalOptions{BcryptCost: bcrypt.MinCost})
	user := &models.User{ID: "local-1", Phone: "9876543210", Role: models.RoleConsumer}

	err := local.LinkFarmer(context.Background(), user, "123456789012")
	require.Error(t, err)
	assert.Empty(t, user.Aadhaar)
	assert.Equal(t, models.RoleConsumer, user.Role)
}
