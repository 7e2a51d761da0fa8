package profile

import (
	"math"
	"sort"
	"time"

	"myMarketplace/domain"
)

const (
	maxPreferences = 5

	// purchase_frequency is expressed as orders per day over a 30-day month.
	purchaseFrequencyDays = 30.0

	engagementSaturation = 100.0
	orderSaturation      = 10.0
)

// Aggregate reduces one user's activity window into a profile. The result has
// no UserID or LastActivityAt; the caller owns both. Aggregate is pure: the
// same events always yield the same profile.
func Aggregate(events []domain.ActivityEvent) domain.BehaviorProfile {
	ordered := make([]domain.ActivityEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OccurredAt.Before(ordered[j].OccurredAt)
	})

	var (
		categories = newRankedCounter()
		brands     = newRankedCounter()

		prices      []float64
		orderTimes  []time.Time
		totalSpent  float64
		timeSpent   []float64
		views       int
		clicks      int
		sessions    = make(map[string]struct{})
		hourCounts  [24]int
		weekendHits int
		weekdayHits int
	)

	for _, ev := range ordered {
		if ev.Category != nil && *ev.Category != "" {
			categories.add(*ev.Category)
		}
		if ev.Brand != nil && *ev.Brand != "" {
			brands.add(*ev.Brand)
		}
		if ev.Price != nil {
			prices = append(prices, *ev.Price)
		}
		if ev.OrderValue != nil {
			orderTimes = append(orderTimes, ev.OccurredAt)
			totalSpent += *ev.OrderValue
		}
		if ev.TimeSpent != nil {
			timeSpent = append(timeSpent, *ev.TimeSpent)
		}
		if ev.ActivityType.IsView() {
			views++
		}
		if ev.ActivityType.IsClick() {
			clicks++
		}
		if ev.SessionID != "" {
			sessions[ev.SessionID] = struct{}{}
		}
		if !ev.OccurredAt.IsZero() {
			at := ev.OccurredAt.UTC()
			hourCounts[at.Hour()]++
			if wd := at.Weekday(); wd == time.Saturday || wd == time.Sunday {
				weekendHits++
			} else {
				weekdayHits++
			}
		}
	}

	p := domain.BehaviorProfile{
		PreferredCategories:   categories.top(maxPreferences),
		PreferredBrands:       brands.top(maxPreferences),
		BrandLoyalty:          brandLoyalty(brands),
		PriceSensitivity:      clamp01(coefficientOfVariation(prices)),
		ShoppingFrequency:     shoppingFrequency(orderTimes),
		PreferredShoppingHour: modeHour(hourCounts),
		PreferredShoppingDay:  domain.ShoppingDayWeekday,
		AvgSessionDuration:    mean(timeSpent),
		TotalOrders:           len(orderTimes),
		TotalSpent:            totalSpent,
	}

	if weekendHits > weekdayHits {
		p.PreferredShoppingDay = domain.ShoppingDayWeekend
	}

	if len(sessions) > 0 {
		p.AvgPagesPerSession = float64(views) / float64(len(sessions))
	}
	if views > 0 {
		p.BounceRate = clamp01(1 - float64(clicks)/float64(views))
	}

	if p.TotalOrders > 0 {
		p.AvgOrderValue = totalSpent / float64(p.TotalOrders)
	}
	p.PurchaseFrequency = float64(p.TotalOrders) / purchaseFrequencyDays
	p.CustomerLifecycleStage = lifecycleStage(p.TotalOrders)
	p.CustomerLifetimeValue = totalSpent

	p.EngagementScore = clamp01(math.Min(1, float64(clicks+views)/engagementSaturation))
	orderScore := math.Min(1, float64(p.TotalOrders)/orderSaturation)
	p.PersonalizationScore = clamp01((p.EngagementScore + orderScore) / 2)

	return p
}

func lifecycleStage(orders int) domain.LifecycleStage {
	switch {
	case orders == 0:
		return domain.LifecycleNew
	case orders >= 10:
		return domain.LifecycleLoyal
	case orders >= 3:
		return domain.LifecycleActive
	default:
		return domain.LifecycleAtRisk
	}
}

func shoppingFrequency(orderTimes []time.Time) domain.ShoppingFrequency {
	if len(orderTimes) < 2 {
		return domain.FrequencyMonthly
	}

	span := orderTimes[len(orderTimes)-1].Sub(orderTimes[0])
	gapDays := span.Hours() / 24 / float64(len(orderTimes)-1)

	switch {
	case gapDays <= 7:
		return domain.FrequencyDaily
	case gapDays <= 30:
		return domain.FrequencyWeekly
	default:
		return domain.FrequencyMonthly
	}
}

func brandLoyalty(brands *rankedCounter) float64 {
	if brands.total < 2 {
		return 0
	}
	top := brands.top(1)
	return clamp01(float64(brands.counts[top[0]]) / float64(brands.total))
}

// modeHour returns the most frequent hour, the lowest hour on ties, or -1 when
// no event carried a timestamp.
func modeHour(counts [24]int) int {
	best, bestCount := -1, 0
	for h, c := range counts {
		if c > bestCount {
			best, bestCount = h, c
		}
	}
	return best
}

func coefficientOfVariation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := mean(values)
	if m <= 0 {
		return 0
	}

	var sq float64
	for _, v := range values {
		sq += (v - m) * (v - m)
	}
	return math.Sqrt(sq/float64(len(values))) / m
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// rankedCounter counts labels and remembers first-seen order for tie breaks.
type rankedCounter struct {
	counts map[string]int
	order  []string
	total  int
}

func newRankedCounter() *rankedCounter {
	return &rankedCounter{counts: make(map[string]int)}
}

func (c *rankedCounter) add(label string) {
	if _, ok := c.counts[label]; !ok {
		c.order = append(c.order, label)
	}
	c.counts[label]++
	c.total++
}

func (c *rankedCounter) top(n int) []string {
	ranked := make([]string, len(c.order))
	copy(ranked, c.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return c.counts[ranked[i]] > c.counts[ranked[j]]
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
