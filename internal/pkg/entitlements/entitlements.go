package entitlements

import (
	"time"

	"github.com/ManuelReschke/TFVisualizer/app/models"
)

type Plan string

const (
	PlanFree Plan = models.TierFree
	PlanPro  Plan = models.TierPro
)

// Unlimited marks a limit without an upper bound.
const Unlimited = -1

// Limits holds the configured per-tier project limits.
type Limits struct {
	FreeProjects int
	ProProjects  int
}

// EffectivePlan returns pro for pro accounts and for users inside an active trial.
func EffectivePlan(u *models.User, now time.Time) Plan {
	if u == nil {
		return PlanFree
	}
	if u.IsPro() || u.IsTrialActive(now) {
		return PlanPro
	}
	return PlanFree
}

// ProjectLimit returns the maximum number of projects for the user, or Unlimited.
func (l Limits) ProjectLimit(u *models.User, now time.Time) int {
	if EffectivePlan(u, now) == PlanPro {
		return l.ProProjects
	}
	return l.FreeProjects
}

// CanCreateProject reports whether one more project fits the user's limit.
func (l Limits) CanCreateProject(u *models.User, current int64, now time.Time) bool {
	limit := l.ProjectLimit(u, now)
	if limit < 0 {
		return true
	}
	return current < int64(limit)
}

// CanUseAI requires the pro tier with an entitling status.
func CanUseAI(u *models.User) bool {
	if u == nil || !u.IsPro() {
		return false
	}
	switch u.SubscriptionStatus {
	case models.STATUS_ACTIVE, models.STATUS_TRIALING:
		return true
	default:
		return false
	}
}
