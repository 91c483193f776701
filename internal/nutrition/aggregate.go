package nutrition

import (
	"math"
	"strings"
	"time"

	"NutriScan/internal/database"
)

const (
	DefaultCalorieTarget = 2200

	OverviewCalorieTarget = 2500
	OverviewProteinTarget = 100
	OverviewCarbsTarget   = 300
	OverviewFatTarget     = 80
)

// LastSevenDays returns the scan dates of the seven days ending on today, oldest first.
func LastSevenDays(today time.Time) []string {
	days := make([]string, 0, 7)
	for i := 6; i >= 0; i-- {
		days = append(days, ScanDate(today.AddDate(0, 0, -i)))
	}
	return days
}

func dayName(scanDate string) string {
	t, err := time.Parse(ScanDateLayout, scanDate)
	if err != nil {
		return ""
	}
	return t.Weekday().String()[:3]
}

/*=================================================================================
								WEEKLY TRACKER
=================================================================================*/

type CalorieDay struct {
	Date      string  `json:"date"`
	Day       string  `json:"day"`
	Calories  float64 `json:"calories"`
	Target    float64 `json:"target"`
	ScanCount int     `json:"scanCount"`
}

type WeeklyCalories struct {
	Days         []CalorieDay `json:"days"`
	WeeklyTotal  float64      `json:"weeklyTotal"`
	DailyAverage float64      `json:"dailyAverage"`
	MeanPerScan  float64      `json:"meanPerScan"`
	TotalScans   int          `json:"totalScans"`
	Target       float64      `json:"target"`
}

// WeeklyCalorieTracker sums scanned calories per day over the seven days ending today.
// Records with a non-positive caloriesNum still count as scans.
func WeeklyCalorieTracker(records []database.NutritionRecord, today time.Time, target float64) WeeklyCalories {
	if target <= 0 {
		target = DefaultCalorieTarget
	}

	dates := LastSevenDays(today)
	idx := make(map[string]int, len(dates))
	out := WeeklyCalories{Days: make([]CalorieDay, len(dates)), Target: target}
	for i, d := range dates {
		idx[d] = i
		out.Days[i] = CalorieDay{Date: d, Day: dayName(d), Target: target}
	}

	for _, r := range records {
		i, ok := idx[r.ScanDate]
		if !ok {
			continue
		}
		if r.CaloriesNum > 0 {
			out.Days[i].Calories += r.CaloriesNum
		}
		out.Days[i].ScanCount++
	}

	for _, d := range out.Days {
		out.WeeklyTotal += d.Calories
		out.TotalScans += d.ScanCount
	}
	out.DailyAverage = math.Round(out.WeeklyTotal / 7)
	if out.TotalScans > 0 {
		out.MeanPerScan = math.Round(out.WeeklyTotal / float64(out.TotalScans))
	}
	return out
}

/*=================================================================================
								NUTRITION OVERVIEW
=================================================================================*/

type MacroTotals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
	Sugar    float64 `json:"sugar"`
}

func (m *MacroTotals) add(r database.NutritionRecord) {
	m.Calories += r.CaloriesNum
	m.Protein += r.ProteinNum
	m.Carbs += r.CarbsNum
	m.Fat += r.FatNum
	m.Fiber += r.FiberNum
	m.Sugar += r.SugarNum
}

type OverviewDay struct {
	Date string `json:"date"`
	Day  string `json:"day"`
	MacroTotals
}

type Progress struct {
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
}

type TodayProgress struct {
	Calories Progress `json:"calories"`
	Protein  Progress `json:"protein"`
	Carbs    Progress `json:"carbs"`
	Fat      Progress `json:"fat"`
}

type Overview struct {
	Days  []OverviewDay `json:"days"`
	Today TodayProgress `json:"today"`
}

// NutritionOverview aggregates consumed records only, over the seven days ending today.
func NutritionOverview(records []database.NutritionRecord, today time.Time) Overview {
	dates := LastSevenDays(today)
	idx := make(map[string]int, len(dates))
	out := Overview{Days: make([]OverviewDay, len(dates))}
	for i, d := range dates {
		idx[d] = i
		out.Days[i] = OverviewDay{Date: d, Day: dayName(d)}
	}

	for _, r := range records {
		if !r.IsConsumed {
			continue
		}
		if i, ok := idx[r.ScanDate]; ok {
			out.Days[i].add(r)
		}
	}

	t := out.Days[len(out.Days)-1].MacroTotals
	out.Today = TodayProgress{
		Calories: Progress{Current: t.Calories, Target: OverviewCalorieTarget},
		Protein:  Progress{Current: t.Protein, Target: OverviewProteinTarget},
		Carbs:    Progress{Current: t.Carbs, Target: OverviewCarbsTarget},
		Fat:      Progress{Current: t.Fat, Target: OverviewFatTarget},
	}
	return out
}

/*=================================================================================
								DAILY SUMMARY
=================================================================================*/

type DailySummary struct {
	Date     string      `json:"date"`
	Scans    int         `json:"scans"`
	Scanned  MacroTotals `json:"scanned"`
	Consumed MacroTotals `json:"consumed"`
}

// Daily sums every record of one scan date, and separately the consumed ones.
func Daily(records []database.NutritionRecord, date string) DailySummary {
	out := DailySummary{Date: date}
	for _, r := range records {
		if r.ScanDate != date {
			continue
		}
		out.Scans++
		out.Scanned.add(r)
		if r.IsConsumed {
			out.Consumed.add(r)
		}
	}
	return out
}

/*=================================================================================
								HISTORY
=================================================================================*/

type HistoryFilter string

const (
	FilterAll         HistoryFilter = "all"
	FilterConsumed    HistoryFilter = "consumed"
	FilterHighProtein HistoryFilter = "high_protein"
	FilterLowCarb     HistoryFilter = "low_carb"
	FilterLowCalorie  HistoryFilter = "low_calorie"
)

type HistoryRange string

const (
	RangeAll   HistoryRange = "all"
	RangeToday HistoryRange = "today"
	RangeWeek  HistoryRange = "week"
	RangeMonth HistoryRange = "month"
)

func (f HistoryFilter) Valid() bool {
	switch f {
	case "", FilterAll, FilterConsumed, FilterHighProtein, FilterLowCarb, FilterLowCalorie:
		return true
	}
	return false
}

func (r HistoryRange) Valid() bool {
	switch r {
	case "", RangeAll, RangeToday, RangeWeek, RangeMonth:
		return true
	}
	return false
}

type HistoryQuery struct {
	Search string
	Filter HistoryFilter
	Range  HistoryRange
}

// FilterHistory applies the history screen's search, nutrition filter and date range.
func FilterHistory(records []database.NutritionRecord, q HistoryQuery, now time.Time) []database.NutritionRecord {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	today := ScanDate(now)
	weekAgo := now.AddDate(0, 0, -7)
	monthAgo := now.AddDate(0, -1, 0)

	out := []database.NutritionRecord{}
	for _, r := range records {
		if search != "" && !strings.Contains(strings.ToLower(r.FoodName), search) {
			continue
		}

		switch q.Filter {
		case FilterConsumed:
			if !r.IsConsumed {
				continue
			}
		case FilterHighProtein:
			if r.ProteinNum < 20 {
				continue
			}
		case FilterLowCarb:
			if r.CarbsNum > 15 {
				continue
			}
		case FilterLowCalorie:
			if r.CaloriesNum > 300 {
				continue
			}
		}

		switch q.Range {
		case RangeToday:
			if r.ScanDate != today {
				continue
			}
		case RangeWeek:
			if r.Timestamp.Before(weekAgo) {
				continue
			}
		case RangeMonth:
			if r.Timestamp.Before(monthAgo) {
				continue
			}
		}

		out = append(out, r)
	}
	return out
}
