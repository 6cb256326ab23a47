package generator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/vanshika/quickpay/internal/domain"
	"github.com/vanshika/quickpay/internal/sampling"
)

// eventSynth carries the per-run state of the event synthesizer. It owns
// its RNG; nothing else draws from it.
type eventSynth struct {
	g *Generator
	r *rand.Rand

	// transferred marks users that already completed a transfer.
	transferred map[string]bool
}

// SynthesizeEvents emits the signup funnel and every daily session for each
// user and returns the stream ordered by event timestamp.
func (g *Generator) SynthesizeEvents(ctx context.Context, users []domain.User) ([]domain.Event, error) {
	s := &eventSynth{
		g:           g,
		r:           sampling.New(sampling.Derive(g.cfg.Seed, streamEvents)),
		transferred: make(map[string]bool),
	}

	events := make([]domain.Event, 0, len(users)*16)
	windowEnd := g.cfg.StartDate.AddDate(0, 0, g.cfg.Days)
	for i, user := range users {
		if i%500 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		funnel := s.signupFunnel(user)
		events = append(events, funnel...)
		notBefore := funnel[len(funnel)-1].EventTimestamp

		for day := user.SignupDate; day.Before(windowEnd); day = day.AddDate(0, 0, 1) {
			events = append(events, s.dailySession(user, day, notBefore)...)
		}
	}

	sortEvents(events)
	return events, nil
}

func (s *eventSynth) emit(user domain.User, sessionID, name string, ts time.Time, props map[string]any) domain.Event {
	delay := sampling.Between(s.r, 0.1, 2.0)
	if props == nil {
		props = map[string]any{}
	}
	return domain.Event{
		EventID:        sampling.UUID(s.r),
		EventName:      name,
		EventTimestamp: ts,
		ReceivedAt:     ts.Add(sampling.Seconds(delay)),
		UserID:         user.UserID,
		SessionID:      sessionID,
		DeviceID:       user.DeviceID,
		Platform:       user.Platform,
		AppVersion:     user.AppVersion,
		OSVersion:      user.OSVersion,
		DeviceModel:    user.DeviceModel,
		Properties:     props,
	}
}

func (s *eventSynth) minutes(lo, hi int) time.Duration {
	return time.Duration(sampling.IntBetween(s.r, lo, hi)) * time.Minute
}

func (s *eventSynth) seconds(lo, hi int) time.Duration {
	return time.Duration(sampling.IntBetween(s.r, lo, hi)) * time.Second
}

// signupFunnel always starts the funnel and advances through each further
// step with its conditional rate; a lost user never reaches a later step.
func (s *eventSynth) signupFunnel(user domain.User) []domain.Event {
	c := &s.g.catalog
	rates := s.g.cfg.Funnel
	session := sampling.ShortID(s.r, "sess_")
	ts := s.g.randomTimeInDay(s.r, user.SignupDate, true)

	events := []domain.Event{s.emit(user, session, domain.EventSignupStarted, ts, map[string]any{
		"device_type": string(user.Platform),
		"referrer":    sampling.Choice(s.r, c.signupReferrers),
	})}

	if !sampling.Bernoulli(s.r, rates.SubmitRate) {
		return events
	}
	ts = ts.Add(s.minutes(1, 5))
	events = append(events, s.emit(user, session, domain.EventSignupSubmitted, ts, map[string]any{
		"signup_method": string(user.SignupMethod),
		"step":          3,
		"total_steps":   5,
	}))

	if !sampling.Bernoulli(s.r, rates.CompleteRate) {
		return events
	}
	ts = ts.Add(s.minutes(1, 3))
	var referral any
	if sampling.Bernoulli(s.r, 0.3) {
		referral = fmt.Sprintf("REF%d", sampling.IntBetween(s.r, 1000, 9999))
	}
	events = append(events, s.emit(user, session, domain.EventSignupCompleted, ts, map[string]any{
		"signup_method":     string(user.SignupMethod),
		"referrer":          sampling.Choice(s.r, c.completeReferrers),
		"referral_code":     referral,
		"marketing_channel": sampling.Choice(s.r, c.channels),
		"step":              5,
		"total_steps":       5,
	}))

	if !sampling.Bernoulli(s.r, rates.VerifyRate) {
		return events
	}
	ts = ts.Add(s.minutes(2, 10))
	events = append(events, s.emit(user, session, domain.EventIdentityVerified, ts, map[string]any{
		"verification_type": sampling.Choice(s.r, c.verifications),
	}))
	return events
}

// dailySession emits at most one session for user on day. The session never
// starts at or before notBefore, and never spills its start into another day.
func (s *eventSynth) dailySession(user domain.User, day, notBefore time.Time) []domain.Event {
	cfg := s.g.cfg.Session
	boost := 1.0
	if isWeekend(day) {
		boost = cfg.WeekendBoost
	}
	if !sampling.Bernoulli(s.r, user.ActivityLevel*boost) {
		return nil
	}

	ts := s.g.randomTimeInDay(s.r, day, true)
	if !ts.After(notBefore) {
		ts = notBefore.Add(s.minutes(1, 30))
		if !domain.Day(ts).Equal(day) {
			return nil
		}
	}

	c := &s.g.catalog
	session := sampling.ShortID(s.r, "sess_")
	events := []domain.Event{s.emit(user, session, domain.EventLoginCompleted, ts, map[string]any{
		"login_method": sampling.Choice(s.r, c.loginMethods),
	})}

	events, ts = s.screenChain(user, session, ts, events)
	if sampling.Bernoulli(s.r, cfg.TransferRate) {
		events, ts = s.transferFlow(user, session, ts, events)
	}
	if sampling.Bernoulli(s.r, cfg.QRRate) {
		events, ts = s.qrFlow(user, session, ts, events)
	}
	if sampling.Bernoulli(s.r, cfg.ChargeRate) {
		events, ts = s.chargeFlow(user, session, ts, events)
	}
	if sampling.Bernoulli(s.r, cfg.BannerRate) {
		ts = ts.Add(s.minutes(1, 10))
		events = append(events, s.emit(user, session, domain.EventBannerClicked, ts, map[string]any{
			"banner_id": fmt.Sprintf("bnr_%03d", sampling.IntBetween(s.r, 1, 20)),
			"position":  sampling.IntBetween(s.r, 1, 5),
		}))
	}
	if sampling.Bernoulli(s.r, cfg.PushRate) {
		events, _ = s.pushFlow(user, session, ts, events)
	}
	return events
}

func (s *eventSynth) screenChain(user domain.User, session string, ts time.Time, events []domain.Event) ([]domain.Event, time.Time) {
	cfg := s.g.cfg.Session
	n := sampling.IntBetween(s.r, cfg.MinScreens, cfg.MaxScreens)
	var prev any
	for i := 0; i < n; i++ {
		ts = ts.Add(s.seconds(10, 120))
		screen := sampling.Choice(s.r, s.g.catalog.screens)
		events = append(events, s.emit(user, session, domain.EventScreenViewed, ts, map[string]any{
			"screen_name":     screen,
			"screen_class":    screenClass(screen),
			"previous_screen": prev,
			"referrer":        nil,
			"load_time_ms":    sampling.IntBetween(s.r, 80, 500),
		}))

		dwell := sampling.IntBetween(s.r, 3000, 60000)
		ts = ts.Add(time.Duration(dwell) * time.Millisecond)
		events = append(events, s.emit(user, session, domain.EventScreenExited, ts, map[string]any{
			"screen_name": screen,
			"duration_ms": dwell,
		}))
		prev = screen
	}
	return events, ts
}

func (s *eventSynth) transferFlow(user domain.User, session string, ts time.Time, events []domain.Event) ([]domain.Event, time.Time) {
	c := &s.g.catalog
	amount := sampling.Choice(s.r, c.transferAmounts)

	ts = ts.Add(s.minutes(1, 5))
	events = append(events, s.emit(user, session, domain.EventTransferStarted, ts, nil))

	ts = ts.Add(s.seconds(5, 30))
	events = append(events, s.emit(user, session, domain.EventTransferAmount, ts, map[string]any{
		"amount": amount,
	}))

	ts = ts.Add(s.seconds(3, 15))
	events = append(events, s.emit(user, session, domain.EventTransferConfirmed, ts, map[string]any{
		"amount":         amount,
		"recipient_type": sampling.Choice(s.r, c.recipientTypes),
	}))

	ts = ts.Add(time.Duration(sampling.IntBetween(s.r, 200, 2000)) * time.Millisecond)
	if sampling.Bernoulli(s.r, s.g.cfg.Session.TransferSuccessRate) {
		first := !s.transferred[user.UserID]
		s.transferred[user.UserID] = true
		events = append(events, s.emit(user, session, domain.EventTransferCompleted, ts, map[string]any{
			"amount":            amount,
			"currency":          domain.CurrencyKRW,
			"transfer_type":     sampling.Choice(s.r, c.transferTypes),
			"recipient_type":    sampling.Choice(s.r, c.recipientTypes[:2]),
			"fee":               s.g.cfg.Ledger.Fee(domain.TxnTransfer, int64(amount)),
			"bank_code":         sampling.Choice(s.r, c.transferBanks),
			"is_first_transfer": first,
			"error_code":        nil,
			"error_message":     nil,
			"latency_ms":        sampling.IntBetween(s.r, 150, 800),
		}))
		return events, ts
	}

	failure := sampling.Choice(s.r, c.failures)
	events = append(events, s.emit(user, session, domain.EventTransferFailed, ts, map[string]any{
		"error_code":    failure.Code,
		"error_type":    failure.Type,
		"error_message": failure.Message,
	}))
	return events, ts
}

func (s *eventSynth) qrFlow(user domain.User, session string, ts time.Time, events []domain.Event) ([]domain.Event, time.Time) {
	c := &s.g.catalog
	amount := sampling.Choice(s.r, c.qrAmounts)
	category := sampling.Choice(s.r, c.merchantCategory)
	merchantID := fmt.Sprintf("mrc_%s_%03d", category, sampling.IntBetween(s.r, 1, 100))

	ts = ts.Add(s.minutes(10, 120))
	events = append(events, s.emit(user, session, domain.EventQRScanned, ts, map[string]any{
		"merchant_id": merchantID,
	}))

	discount := 0
	if sampling.Bernoulli(s.r, 0.3) {
		discount = sampling.Choice(s.r, c.discounts)
	}
	ts = ts.Add(s.seconds(2, 10))
	events = append(events, s.emit(user, session, domain.EventQRCompleted, ts, map[string]any{
		"amount":            amount,
		"merchant_id":       merchantID,
		"merchant_name":     sampling.Choice(s.r, c.merchantBrands) + " " + sampling.Choice(s.r, c.merchantBranches),
		"merchant_category": category,
		"payment_method":    sampling.Choice(s.r, c.paymentMethods),
		"discount_amount":   discount,
		"point_earned":      amount / 100,
	}))
	return events, ts
}

func (s *eventSynth) chargeFlow(user domain.User, session string, ts time.Time, events []domain.Event) ([]domain.Event, time.Time) {
	c := &s.g.catalog
	amount := sampling.Choice(s.r, c.chargeAmounts)
	ts = ts.Add(s.minutes(1, 30))
	events = append(events, s.emit(user, session, domain.EventChargeCompleted, ts, map[string]any{
		"amount":         amount,
		"charge_method":  sampling.Choice(s.r, c.chargeMethods),
		"bank_code":      sampling.Choice(s.r, c.chargeBanks),
		"is_auto_charge": sampling.Bernoulli(s.r, 0.2),
		"balance_after":  amount + sampling.IntBetween(s.r, 0, 500000),
	}))
	return events, ts
}

func (s *eventSynth) pushFlow(user domain.User, session string, ts time.Time, events []domain.Event) ([]domain.Event, time.Time) {
	pushType := sampling.Choice(s.r, s.g.catalog.pushTypes)
	campaign := fmt.Sprintf("camp_%03d", sampling.IntBetween(s.r, 1, 50))

	ts = ts.Add(s.minutes(1, 120))
	events = append(events, s.emit(user, session, domain.EventPushReceived, ts, map[string]any{
		"push_type":   pushType,
		"campaign_id": campaign,
	}))
	if sampling.Bernoulli(s.r, s.g.cfg.Session.PushClickRate) {
		ts = ts.Add(s.minutes(1, 60))
		events = append(events, s.emit(user, session, domain.EventPushClicked, ts, map[string]any{
			"push_type":   pushType,
			"campaign_id": campaign,
		}))
	}
	return events, ts
}
