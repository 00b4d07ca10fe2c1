package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/radiusdt/printworks-analytics/internal/models"
)

// DailyBucket counts events on one UTC calendar day.
type DailyBucket struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// MonthlyBucket counts events in one UTC calendar month.
type MonthlyBucket struct {
	Month string `json:"month"` // Jan..Dec
	Year  int    `json:"year"`
	Count int    `json:"count"`
}

// Growth is the percentage change of a month's count against the same
// month of the previous observed year.
type Growth struct {
	Year   int     `json:"year"`
	Month  string  `json:"month"`
	Growth float64 `json:"growth"`
}

// GoalProgress summarizes a user's goals by status.
type GoalProgress struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	InProgress     int     `json:"in_progress"`
	Pending        int     `json:"pending"`
	Cancelled      int     `json:"cancelled"`
	CompletionRate float64 `json:"completion_rate"`
}

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

var monthIndex = func() map[string]int {
	m := make(map[string]int, len(monthNames))
	for i, name := range monthNames {
		m[name] = i
	}
	return m
}()

// DailyBuckets groups events by UTC day, ascending by date. Nil events and
// events without a timestamp are skipped.
func DailyBuckets(events []*models.Event) []DailyBucket {
	counts := make(map[string]int)
	for _, e := range events {
		if e == nil || e.Timestamp.IsZero() {
			continue
		}
		counts[e.Timestamp.UTC().Format("2006-01-02")]++
	}

	buckets := make([]DailyBucket, 0, len(counts))
	for date, n := range counts {
		buckets = append(buckets, DailyBucket{Date: date, Count: n})
	}
	// ISO dates sort chronologically as strings
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Date < buckets[j].Date })
	return buckets
}

type monthKey struct {
	year  int
	month time.Month
}

// MonthlyBuckets groups events by UTC calendar month, sorted by year and
// then calendar month.
func MonthlyBuckets(events []*models.Event) []MonthlyBucket {
	counts := make(map[monthKey]int)
	for _, e := range events {
		if e == nil || e.Timestamp.IsZero() {
			continue
		}
		ts := e.Timestamp.UTC()
		counts[monthKey{year: ts.Year(), month: ts.Month()}]++
	}

	keys := make([]monthKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})

	buckets := make([]MonthlyBucket, 0, len(keys))
	for _, k := range keys {
		buckets = append(buckets, MonthlyBucket{
			Month: monthNames[k.month-1],
			Year:  k.year,
			Count: counts[k],
		})
	}
	return buckets
}

// YearOverYearGrowth compares every month of each observed year with the
// same month of the previous observed year. All twelve months are emitted
// per compared year, in calendar order. A zero base with a nonzero current
// count is reported as exactly 100; two zeros as 0.
func YearOverYearGrowth(buckets []MonthlyBucket) []Growth {
	byYear := make(map[int]*[12]int)
	for _, b := range buckets {
		idx, ok := monthIndex[b.Month]
		if !ok {
			continue
		}
		counts, ok := byYear[b.Year]
		if !ok {
			counts = new([12]int)
			byYear[b.Year] = counts
		}
		counts[idx] += b.Count
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Ints(years)

	growth := make([]Growth, 0, 12*max(len(years)-1, 0))
	for i := 1; i < len(years); i++ {
		prev, cur := byYear[years[i-1]], byYear[years[i]]
		for m, name := range monthNames {
			growth = append(growth, Growth{
				Year:   years[i],
				Month:  name,
				Growth: growthPercent(prev[m], cur[m]),
			})
		}
	}
	return growth
}

func growthPercent(prev, cur int) float64 {
	switch {
	case prev > 0:
		return round1(float64(cur-prev) / float64(prev) * 100)
	case cur > 0:
		return 100
	default:
		return 0
	}
}

// GoalCompletion counts goals by status. The completion rate is the
// completed share in percent, rounded to one decimal.
func GoalCompletion(goals []*models.Goal) GoalProgress {
	var p GoalProgress
	for _, g := range goals {
		if g == nil {
			continue
		}
		p.Total++
		switch g.Status {
		case models.GoalCompleted:
			p.Completed++
		case models.GoalInProgress:
			p.InProgress++
		case models.GoalPending:
			p.Pending++
		case models.GoalCancelled:
			p.Cancelled++
		}
	}
	if p.Total > 0 {
		p.CompletionRate = round1(float64(p.Completed) / float64(p.Total) * 100)
	}
	return p
}

// round1 rounds half away from zero to one decimal place.
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
