package trial

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/TFVisualizer/app/models"
	"github.com/ManuelReschke/TFVisualizer/app/repository"
)

// Notifier delivers a trial expiry reminder.
type Notifier interface {
	TrialWarning(ctx context.Context, user *models.User, daysRemaining int) error
}

// Reconciler pulls the authoritative subscription state for one user.
type Reconciler interface {
	Reconcile(ctx context.Context, userID string) error
}

// Recorder observes sweep results, used for metrics.
type Recorder interface {
	TrialSweep(kind string, count int)
}

type nopRecorder struct{}

func (nopRecorder) TrialSweep(string, int) {}

// Result summarizes one run of all sweeps.
type Result struct {
	Expired  int `json:"expired"`
	Warnings int `json:"warnings"`
}

// Sweeper runs the idempotent trial jobs. It is invoked externally, e.g. by cron.
type Sweeper struct {
	users      repository.UserRepository
	warnings   repository.TrialWarningRepository
	notifier   Notifier
	reconciler Reconciler
	recorder   Recorder
	now        func() time.Time
}

func NewSweeper(users repository.UserRepository, warnings repository.TrialWarningRepository, notifier Notifier, reconciler Reconciler) *Sweeper {
	return &Sweeper{
		users:      users,
		warnings:   warnings,
		notifier:   notifier,
		reconciler: reconciler,
		recorder:   nopRecorder{},
		now:        time.Now,
	}
}

func (s *Sweeper) WithRecorder(r Recorder) *Sweeper {
	if r != nil {
		s.recorder = r
	}
	return s
}

// Expire clears the trial flag of every user whose window has closed. Users
// still mirrored as trialing are reconciled once against the gateway.
func (s *Sweeper) Expire(ctx context.Context) (int, error) {
	log.Info("[Trial] Running trial expiration check...")
	users, err := s.users.ListExpiredTrials(s.now())
	if err != nil {
		return 0, fmt.Errorf("list expired trials: %w", err)
	}

	count := 0
	for i := range users {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		u := &users[i]
		stillTrialing := u.SubscriptionStatus == models.STATUS_TRIALING

		u.EndTrial()
		if err := s.users.Update(u); err != nil {
			log.Errorf("[Trial] Error expiring trial for user %s: %v", u.ID, err)
			continue
		}
		count++
		log.Infof("[Trial] Trial expired for user %s", u.ID)

		if stillTrialing && s.reconciler != nil {
			log.Infof("[Trial] User %s still trialing after expiry, reconciling", u.ID)
			if err := s.reconciler.Reconcile(ctx, u.ID); err != nil {
				log.Errorf("[Trial] Error syncing subscription for user %s: %v", u.ID, err)
			}
		}
	}

	s.recorder.TrialSweep("expired", count)
	log.Infof("[Trial] Trial expiration check complete. Expired %d trial(s)", count)
	return count, nil
}

// Warnings sends one reminder per user, threshold and trial window. The marker
// row is written before sending and removed again when delivery fails.
func (s *Sweeper) Warnings(ctx context.Context) (int, error) {
	log.Info("[Trial] Running trial warning check...")
	now := s.now()
	users, err := s.users.ListActiveTrials(now)
	if err != nil {
		return 0, fmt.Errorf("list active trials: %w", err)
	}

	count := 0
	for i := range users {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		u := &users[i]
		days := u.DaysRemainingInTrial(now)
		if !models.IsWarningThreshold(days) || u.TrialEndDate == nil {
			continue
		}

		marker := &models.TrialWarning{
			UserID:        u.ID,
			ThresholdDays: days,
			TrialEndDate:  *u.TrialEndDate,
			SentAt:        now,
		}
		created, err := s.warnings.CreateIfNotExists(marker)
		if err != nil {
			log.Errorf("[Trial] Error recording warning for user %s: %v", u.ID, err)
			continue
		}
		if !created {
			continue
		}

		if err := s.notifier.TrialWarning(ctx, u, days); err != nil {
			log.Errorf("[Trial] Error sending trial warning to user %s: %v", u.ID, err)
			if err := s.warnings.Delete(marker.ID); err != nil {
				log.Errorf("[Trial] Error removing warning marker %s: %v", marker.ID, err)
			}
			continue
		}
		count++
		log.Infof("[Trial] Trial expiry warning for user %s: %d days remaining", u.ID, days)
	}

	s.recorder.TrialSweep("warnings", count)
	log.Infof("[Trial] Trial warning check complete. Sent %d warning(s)", count)
	return count, nil
}

// All expires trials first, then sends warnings.
func (s *Sweeper) All(ctx context.Context) (Result, error) {
	log.Info("[Trial] Running all trial tasks...")
	var res Result
	var err error

	if res.Expired, err = s.Expire(ctx); err != nil {
		return res, err
	}
	if res.Warnings, err = s.Warnings(ctx); err != nil {
		return res, err
	}
	log.Infof("[Trial] All trial tasks complete. Expired: %d, Warnings: %d", res.Expired, res.Warnings)
	return res, nil
}
