package generator

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanshika/quickpay/internal/domain"
	"github.com/vanshika/quickpay/internal/sampling"
)

const (
	streamUsers uint64 = iota
	streamEvents
	streamTransactions
)

// Generator produces the user population, event stream and ledger for one
// configuration. Output is a pure function of the config, seed included.
type Generator struct {
	cfg     Config
	tables  tables
	catalog catalog
}

type tables struct {
	platforms     *sampling.Weighted[string]
	appVersions   *sampling.Weighted[string]
	signupMethods *sampling.Weighted[string]
	hours         *sampling.Weighted[int]
	txnTypes      *sampling.Weighted[string]
	statuses      *sampling.Weighted[string]
}

// New validates cfg and compiles its weight tables.
func New(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.StartDate = domain.Day(cfg.StartDate)

	var t tables
	var err error
	if t.platforms, err = sampling.NewWeighted(cfg.Platforms); err != nil {
		return nil, fmt.Errorf("%w: platforms: %v", ErrInvalidConfig, err)
	}
	if t.appVersions, err = sampling.NewWeighted(cfg.AppVersions); err != nil {
		return nil, fmt.Errorf("%w: app_versions: %v", ErrInvalidConfig, err)
	}
	if t.signupMethods, err = sampling.NewWeighted(cfg.SignupMethods); err != nil {
		return nil, fmt.Errorf("%w: signup_methods: %v", ErrInvalidConfig, err)
	}
	if t.hours, err = sampling.NewWeighted(hourOptions(cfg.HourWeights)); err != nil {
		return nil, fmt.Errorf("%w: hour_weights: %v", ErrInvalidConfig, err)
	}
	if t.txnTypes, err = sampling.NewWeighted(cfg.Ledger.Types); err != nil {
		return nil, fmt.Errorf("%w: types: %v", ErrInvalidConfig, err)
	}
	if t.statuses, err = sampling.NewWeighted(cfg.Ledger.Statuses); err != nil {
		return nil, fmt.Errorf("%w: statuses: %v", ErrInvalidConfig, err)
	}

	return &Generator{cfg: cfg, tables: t, catalog: defaultCatalog()}, nil
}

// Config returns the validated configuration in use.
func (g *Generator) Config() Config { return g.cfg }

// Generate synthesises users first, then events and transactions
// concurrently from independent sub-streams of the seed. It respects
// context cancellation.
func (g *Generator) Generate(ctx context.Context) (domain.Dataset, error) {
	users, err := g.GenerateUsers(ctx)
	if err != nil {
		return domain.Dataset{}, err
	}

	var (
		events       []domain.Event
		transactions []domain.Transaction
	)
	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		var err error
		events, err = g.SynthesizeEvents(gctx, users)
		return err
	})
	grp.Go(func() error {
		var err error
		transactions, err = g.SynthesizeTransactions(gctx, users)
		return err
	})
	if err := grp.Wait(); err != nil {
		return domain.Dataset{}, err
	}

	return domain.Dataset{Users: users, Events: events, Transactions: transactions}, nil
}

// GenerateUsers builds the population.
func (g *Generator) GenerateUsers(ctx context.Context) ([]domain.User, error) {
	r := sampling.New(sampling.Derive(g.cfg.Seed, streamUsers))
	users := make([]domain.User, g.cfg.NumUsers)
	for i := range users {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		users[i] = g.randomUser(r)
	}
	return users, nil
}

func (g *Generator) randomUser(r *rand.Rand) domain.User {
	platform := domain.Platform(g.tables.platforms.Pick(r))
	model, osVersion := g.randomDevice(r, platform)
	signup := g.cfg.StartDate.AddDate(0, 0, r.Intn(g.cfg.Days))
	activity := sampling.Pareto(r, g.cfg.ParetoShape) * g.cfg.ParetoScale
	if activity > 1 {
		activity = 1
	}

	return domain.User{
		UserID:        sampling.ShortID(r, "usr_"),
		DeviceID:      sampling.ShortID(r, "dev_"),
		Platform:      platform,
		DeviceModel:   model,
		OSVersion:     osVersion,
		AppVersion:    g.tables.appVersions.Pick(r),
		SignupDate:    signup,
		SignupMethod:  domain.SignupMethod(g.tables.signupMethods.Pick(r)),
		ActivityLevel: activity,
	}
}

func (g *Generator) randomDevice(r *rand.Rand, platform domain.Platform) (string, string) {
	switch platform {
	case domain.PlatformIOS:
		return sampling.Choice(r, g.catalog.iosModels), "iOS " + sampling.Choice(r, g.catalog.iosVersions)
	case domain.PlatformAndroid:
		return sampling.Choice(r, g.catalog.androidModels), "Android " + sampling.Choice(r, g.catalog.androidVersions)
	default:
		return g.catalog.webModel, g.catalog.webVersion
	}
}

// randomTimeInDay places a moment inside day following the hour-of-day weights.
func (g *Generator) randomTimeInDay(r *rand.Rand, day time.Time, withMillis bool) time.Time {
	hour := g.tables.hours.Pick(r)
	minute := r.Intn(60)
	second := r.Intn(60)
	nanos := 0
	if withMillis {
		nanos = r.Intn(1000) * int(time.Millisecond)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, nanos, time.UTC)
}

func isWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func sortEvents(events []domain.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].EventTimestamp.Before(events[j].EventTimestamp)
	})
}

func sortTransactions(txns []domain.Transaction) {
	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].CreatedAt.Before(txns[j].CreatedAt)
	})
}
