package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"greenledger/internal/kv"
	"greenledger/internal/util"
	"greenledger/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Farmer login steps, in order
const (
	StepAadhaar = "aadhaar"
	StepPIN     = "pin"
	StepPhone   = "phone"
	StepOTP     = "otp"
	StepSuccess = "success"
)

// DefaultFlowTTL is how long an unfinished login flow is kept
const DefaultFlowTTL = 30 * time.Minute

// maxFlowFailures rejected PINs or OTPs lock a flow
const maxFlowFailures = maxOTPAttempts

// LoginFlow is the persisted state of one farmer login
type LoginFlow struct {
	ID            string    `json:"id"`
	Step          string    `json:"step"`
	Aadhaar       string    `json:"aadhaar,omitempty"`
	AadhaarMasked string    `json:"aadhaarMasked,omitempty"`
	NewPIN        bool      `json:"newPin"`
	Phone         string    `json:"phone,omitempty"`
	UserID        string    `json:"userId,omitempty"`
	Failures      int       `json:"failures"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// View hides the raw Aadhaar number
func (f *LoginFlow) View() *LoginFlow {
	v := *f
	v.Aadhaar = ""
	return &v
}

// FarmerLogin drives the aadhaar, pin, phone, otp wizard. A rejected step
// leaves the flow where it was so the farmer can re-enter and retry.
type FarmerLogin struct {
	store  kv.Store
	auth   *Service
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewFarmerLogin creates the wizard. now may be nil.
func NewFarmerLogin(store kv.Store, auth *Service, ttl time.Duration, now func() time.Time) *FarmerLogin {
	if ttl <= 0 {
		ttl = DefaultFlowTTL
	}
	if now == nil {
		now = time.Now
	}
	return &FarmerLogin{store: store, auth: auth, ttl: ttl, now: now, logger: util.Named("farmer-login")}
}

// Get returns a flow
func (w *FarmerLogin) Get(ctx context.Context, flowID string) (*LoginFlow, error) {
	var flow LoginFlow
	if _, err := kv.GetJSON(ctx, w.store, kv.FarmerLoginKey(flowID), &flow); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, ErrFlowNotFound
		}
		return nil, err
	}
	return &flow, nil
}

// Start checks the Aadhaar number and opens a flow at the pin step
func (w *FarmerLogin) Start(ctx context.Context, aadhaar string) (*LoginFlow, error) {
	ctx, span := util.StartSpan(ctx, "FarmerLogin.Start")
	defer span.End()

	aadhaar = validation.SanitizeDigits(aadhaar, 12)
	if !validation.IsAadhaar(aadhaar) {
		util.FarmerLoginStepsTotal.WithLabelValues(StepAadhaar, "invalid").Inc()
		return nil, fmt.Errorf("%w: aadhaar must be 12 digits", ErrInvalidInput)
	}

	res, err := w.auth.VerifyAadhaar(ctx, aadhaar)
	if err != nil {
		util.FarmerLoginStepsTotal.WithLabelValues(StepAadhaar, "rejected").Inc()
		return nil, util.RecordError(span, err)
	}
	if !res.Verified {
		util.FarmerLoginStepsTotal.WithLabelValues(StepAadhaar, "rejected").Inc()
		return nil, fmt.Errorf("%w: aadhaar not verified", ErrInvalidCredentials)
	}

	now := w.now()
	flow := &LoginFlow{
		ID:            uuid.New().String(),
		Step:          StepPIN,
		Aadhaar:       aadhaar,
		AadhaarMasked: res.Masked,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := kv.PutJSON(ctx, w.store, kv.FarmerLoginKey(flow.ID), flow); err != nil {
		return nil, util.RecordError(span, err)
	}

	util.FarmerLoginStepsTotal.WithLabelValues(StepAadhaar, "ok").Inc()
	w.logger.Info("Farmer login started", zap.String("flow_id", flow.ID), zap.String("aadhaar", res.Masked))
	return flow, nil
}

// SubmitPIN checks or registers the farmer PIN
func (w *FarmerLogin) SubmitPIN(ctx context.Context, flowID, pin string) (*LoginFlow, error) {
	ctx, span := util.StartSpan(ctx, "FarmerLogin.SubmitPIN")
	defer span.End()

	flow, err := w.expect(ctx, flowID, StepPIN)
	if err != nil {
		return nil, err
	}

	pin = validation.SanitizeDigits(pin, 4)
	registered, err := w.auth.Local().VerifyFarmerPIN(ctx, flow.Aadhaar, pin)
	if errors.Is(err, ErrInvalidPIN) {
		w.fail(ctx, flowID, StepPIN)
		return nil, util.RecordError(span, err)
	}
	if err != nil {
		util.FarmerLoginStepsTotal.WithLabelValues(StepPIN, "invalid").Inc()
		return nil, util.RecordError(span, err)
	}

	return w.advance(ctx, flowID, StepPIN, func(f *LoginFlow) {
		f.Step = StepPhone
		f.NewPIN = registered
	})
}

// SubmitPhone sends an OTP to the farmer's phone
func (w *FarmerLogin) SubmitPhone(ctx context.Context, flowID, phone string) (*LoginFlow, error) {
	ctx, span := util.StartSpan(ctx, "FarmerLogin.SubmitPhone")
	defer span.End()

	if _, err := w.expect(ctx, flowID, StepPhone); err != nil {
		return nil, err
	}

	phone = validation.SanitizeDigits(phone, 10)
	if !validation.IsPhone(phone) {
		util.FarmerLoginStepsTotal.WithLabelValues(StepPhone, "invalid").Inc()
		return nil, fmt.Errorf("%w: phone must be 10 digits", ErrInvalidInput)
	}
	if _, err := w.auth.SendOTP(ctx, phone); err != nil {
		util.FarmerLoginStepsTotal.WithLabelValues(StepPhone, "rejected").Inc()
		return nil, util.RecordError(span, err)
	}

	return w.advance(ctx, flowID, StepPhone, func(f *LoginFlow) {
		f.Step = StepOTP
		f.Phone = phone
	})
}

// SubmitOTP verifies the code, links the Aadhaar number to the phone's
// account and opens a session.
func (w *FarmerLogin) SubmitOTP(ctx context.Context, flowID, code string) (*LoginFlow, *Result, error) {
	ctx, span := util.StartSpan(ctx, "FarmerLogin.SubmitOTP")
	defer span.End()

	flow, err := w.expect(ctx, flowID, StepOTP)
	if err != nil {
		return nil, nil, err
	}

	res, err := w.auth.VerifyOTP(ctx, flow.Phone, code)
	if err != nil {
		w.fail(ctx, flowID, StepOTP)
		return nil, nil, util.RecordError(span, err)
	}
	if err := w.auth.Local().LinkFarmer(ctx, res.User, flow.Aadhaar); err != nil {
		return nil, nil, util.RecordError(span, err)
	}

	flow, err = w.advance(ctx, flowID, StepOTP, func(f *LoginFlow) {
		f.Step = StepSuccess
		f.UserID = res.User.ID
	})
	if err != nil {
		return nil, nil, err
	}
	w.logger.Info("Farmer login completed", zap.String("flow_id", flowID), zap.String("user_id", res.User.ID))
	return flow, res, nil
}

func (w *FarmerLogin) expect(ctx context.Context, flowID, step string) (*LoginFlow, error) {
	flow, err := w.Get(ctx, flowID)
	if err != nil {
		return nil, err
	}
	if flow.Step != step {
		util.FarmerLoginStepsTotal.WithLabelValues(step, "wrong_step").Inc()
		return nil, fmt.Errorf("%w: flow is at %s, not %s", ErrWrongStep, flow.Step, step)
	}
	if flow.Failures >= maxFlowFailures {
		util.FarmerLoginStepsTotal.WithLabelValues(step, "locked").Inc()
		return nil, fmt.Errorf("%w: flow %s is locked", ErrTooManyAttempts, flowID)
	}
	return flow, nil
}

func (w *FarmerLogin) advance(ctx context.Context, flowID, from string, fn func(f *LoginFlow)) (*LoginFlow, error) {
	var out LoginFlow
	err := kv.UpdateJSON(ctx, w.store, kv.FarmerLoginKey(flowID), func(f *LoginFlow, exists bool) error {
		if !exists {
			return ErrFlowNotFound
		}
		if f.Step != from {
			return fmt.Errorf("%w: flow is at %s, not %s", ErrWrongStep, f.Step, from)
		}
		if f.Failures >= maxFlowFailures {
			return fmt.Errorf("%w: flow %s is locked", ErrTooManyAttempts, flowID)
		}
		fn(f)
		f.UpdatedAt = w.now()
		out = *f
		return nil
	})
	if err != nil {
		return nil, err
	}
	util.FarmerLoginStepsTotal.WithLabelValues(from, "ok").Inc()
	return &out, nil
}

func (w *FarmerLogin) fail(ctx context.Context, flowID, step string) {
	util.FarmerLoginStepsTotal.WithLabelValues(step, "rejected").Inc()
	err := kv.UpdateJSON(ctx, w.store, kv.FarmerLoginKey(flowID), func(f *LoginFlow, exists bool) error {
		if !exists {
			return kv.ErrSkip
		}
		f.Failures++
		f.UpdatedAt = w.now()
		return nil
	})
	if err != nil {
		w.logger.Error("Failed to record login failure", zap.String("flow_id", flowID), zap.Error(err))
	}
}

// PurgeStale deletes flows idle for longer than the TTL
func (w *FarmerLogin) PurgeStale(ctx context.Context) (int, error) {
	keys, err := w.store.Keys(ctx, kv.KeyFarmerLogin+":")
	if err != nil {
		return 0, err
	}

	cutoff := w.now().Add(-w.ttl)
	purged := 0
	for _, key := range keys {
		var flow LoginFlow
		if _, err := kv.GetJSON(ctx, w.store, key, &flow); err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue
			}
			return purged, err
		}
		if flow.UpdatedAt.After(cutoff) {
			continue
		}
		if err := w.store.Delete(ctx, key); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}
