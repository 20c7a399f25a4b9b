// Package policywindow implements the Policy-Window Tracker: deadline
// math, business-day arithmetic, and alert leveling for every claim
// type, per spec.md §4.A.
package policywindow

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

// AnomalyRepository is the storage dependency checkExpiringClaims and
// sendExpirationAlerts need. It is implemented by store/ — kept as an
// interface here so the tracker's windowing math stays testable
// without a database.
type AnomalyRepository interface {
	PendingForSeller(ctx context.Context, sellerID string) ([]model.ClaimWindowStatus, error)
	MarkAlerted(ctx context.Context, claimIDs []string) error
	MarkExpired(ctx context.Context, claimIDs []string) error
}

// Tracker is the Policy-Window Tracker. now is injected rather than
// read via time.Now() so that CalculatePolicyWindow stays a pure,
// testable function of its arguments.
type Tracker struct {
	repo AnomalyRepository
	now  func() time.Time
}

func NewTracker(repo AnomalyRepository) *Tracker {
	return &Tracker{repo: repo, now: time.Now}
}

// WithClock overrides the tracker's time source, for tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// CalculatePolicyWindow implements calculatePolicyWindow(claim_type,
// discovery_date) -> PolicyWindow from spec.md §4.A.
func (t *Tracker) CalculatePolicyWindow(claimType model.ClaimType, discoveryDate time.Time) model.PolicyWindow {
	cfg := configFor(claimType)
	now := t.now()

	var deadline time.Time
	if cfg.BusinessDaysOnly {
		deadline = addBusinessDays(discoveryDate, cfg.StandardDays)
	} else {
		deadline = discoveryDate.AddDate(0, 0, cfg.StandardDays)
	}

	daysRemaining := int(math.Ceil(deadline.Sub(now).Hours() / 24))
	businessDaysRemaining := businessDaysBetween(now, deadline)
	isExpired := daysRemaining < 0

	alertLevel, alertMessage := alertFor(daysRemaining, cfg, isExpired)
	isUrgent := !isExpired && daysRemaining <= cfg.UrgentThresholdDays
	isSafe := alertLevel == model.AlertNone

	filingBuffer := 3 * 24 * time.Hour
	if isSafe {
		filingBuffer = 7 * 24 * time.Hour
	}
	shouldFileBy := deadline.Add(-filingBuffer)

	recommendation := recommendationFor(alertLevel, isExpired)

	return model.PolicyWindow{
		ClaimType:             claimType,
		DiscoveryDate:         discoveryDate,
		DeadlineDate:          deadline,
		DaysRemaining:         daysRemaining,
		BusinessDaysRemaining: businessDaysRemaining,
		IsExpired:             isExpired,
		IsUrgent:              isUrgent,
		IsSafe:                isSafe,
		GracePeriodDays:       cfg.GracePeriodDays,
		FilingRecommendation:  recommendation,
		ShouldFileBy:          shouldFileBy,
		AlertLevel:            alertLevel,
		AlertMessage:          alertMessage,
	}
}

// alertFor implements the alert-leveling ladder from spec.md §4.A:
// expired -> critical; days_remaining <= urgent_threshold -> critical;
// <= safe_threshold -> warning; <= 30 -> info; otherwise none.
func alertFor(daysRemaining int, cfg model.PolicyConfig, isExpired bool) (model.AlertLevel, string) {
	switch {
	case isExpired:
		return model.AlertCritical, "filing window has expired"
	case daysRemaining <= cfg.UrgentThresholdDays:
		return model.AlertCritical, "file immediately"
	case daysRemaining <= cfg.SafeThresholdDays:
		return model.AlertWarning, "prioritize"
	case daysRemaining <= 30:
		return model.AlertInfo, "window closing within 30 days"
	default:
		return model.AlertNone, ""
	}
}

func recommendationFor(level model.AlertLevel, isExpired bool) model.FilingRecommendation {
	switch {
	case isExpired:
		return model.FileExpired
	case level == model.AlertCritical:
		return model.FileNow
	case level == model.AlertWarning:
		return model.FileSoon
	default:
		return model.SafeToWait
	}
}

// StatusFor implements statusFor(claim_id, seller_id, claim_type,
// discovery_date) -> ClaimWindowStatus from spec.md §4.A.
func (t *Tracker) StatusFor(claimID, sellerID string, claimType model.ClaimType, discoveryDate time.Time) model.ClaimWindowStatus {
	return model.ClaimWindowStatus{
		ClaimID:      claimID,
		SellerID:     sellerID,
		PolicyWindow: t.CalculatePolicyWindow(claimType, discoveryDate),
	}
}

// CheckExpiringClaims implements checkExpiringClaims(seller_id) ->
// {urgent, expiring_soon, expired, safe} from spec.md §4.A: scans all
// pending anomalies for a seller, computes windows, partitions into
// four buckets, and sorts urgent/expiring_soon ascending by
// days_remaining.
func (t *Tracker) CheckExpiringClaims(ctx context.Context, sellerID string) (model.ExpiringClaims, error) {
	claims, err := t.repo.PendingForSeller(ctx, sellerID)
	if err != nil {
		return model.ExpiringClaims{}, err
	}

	var result model.ExpiringClaims
	for _, c := range claims {
		window := t.CalculatePolicyWindow(c.ClaimType, c.DiscoveryDate)
		status := model.ClaimWindowStatus{ClaimID: c.ClaimID, SellerID: c.SellerID, PolicyWindow: window}

		switch {
		case window.IsExpired:
			result.Expired = append(result.Expired, status)
		case window.IsUrgent:
			result.Urgent = append(result.Urgent, status)
		case window.AlertLevel == model.AlertWarning || window.AlertLevel == model.AlertInfo:
			result.ExpiringSoon = append(result.ExpiringSoon, status)
		default:
			result.Safe = append(result.Safe, status)
		}
	}

	sortAscendingByDaysRemaining(result.Urgent)
	sortAscendingByDaysRemaining(result.ExpiringSoon)

	return result, nil
}

func sortAscendingByDaysRemaining(claims []model.ClaimWindowStatus) {
	sort.Slice(claims, func(i, j int) bool {
		return claims[i].DaysRemaining < claims[j].DaysRemaining
	})
}

// SendExpirationAlerts implements sendExpirationAlerts(seller_id) ->
// int from spec.md §4.A: marks alerted claims (urgent + expiring
// soon) and flips expired ones to status=expired, returning the
// number of claims alerted or expired.
func (t *Tracker) SendExpirationAlerts(ctx context.Context, sellerID string) (int, error) {
	buckets, err := t.CheckExpiringClaims(ctx, sellerID)
	if err != nil {
		return 0, err
	}

	var toAlert []string
	for _, c := range buckets.Urgent {
		toAlert = append(toAlert, c.ClaimID)
	}
	for _, c := range buckets.ExpiringSoon {
		toAlert = append(toAlert, c.ClaimID)
	}
	var toExpire []string
	for _, c := range buckets.Expired {
		toExpire = append(toExpire, c.ClaimID)
	}

	if len(toAlert) > 0 {
		if err := t.repo.MarkAlerted(ctx, toAlert); err != nil {
			return 0, err
		}
	}
	if len(toExpire) > 0 {
		if err := t.repo.MarkExpired(ctx, toExpire); err != nil {
			return 0, err
		}
	}

	return len(toAlert) + len(toExpire), nil
}
