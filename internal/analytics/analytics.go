// Package analytics derives cost and activity rollups from an index
// snapshot. Token and cost figures come from indexed session data wherever
// possible; the stats snapshot only fills in what sessions cannot provide
// (hour counts, per-model daily token splits, longest session).
package analytics

import (
	"sort"
	"strconv"

	"github.com/samber/lo"
	"golang.org/x/mod/semver"

	"github.com/janekbaraniewski/clarc/internal/index"
)

type DayCost struct {
	Date    string  `json:"date"`
	CostUSD float64 `json:"costUsd"`
}

type DayTokens struct {
	Date   string `json:"date"`
	Input  int    `json:"input"`
	Output int    `json:"output"`
}

type ProjectSummary struct {
	Name     string  `json:"name"`
	Sessions int     `json:"sessions"`
	Messages int     `json:"messages"`
	CostUSD  float64 `json:"cost"`
}

// HeatmapCell carries an hour-of-day activity count. The stats snapshot has
// no day-of-week dimension, so Day stays zero for now.
type HeatmapCell struct {
	Day   int `json:"day"`
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

type Report struct {
	TotalSessions    int                              `json:"totalSessions"`
	TotalMessages    int                              `json:"totalMessages"`
	FirstSessionDate string                           `json:"firstSessionDate,omitempty"`
	DailyActivity    []index.DailyActivity            `json:"dailyActivity"`
	CostByModel      map[string]float64               `json:"costByModel"`
	CostByDay        []DayCost                        `json:"costByDay"`
	CostByProject    map[string]float64               `json:"costByProject"`
	TokensByDay      []DayTokens                      `json:"tokensByDay"`
	TopProjects      []ProjectSummary                 `json:"topProjects"`
	ActivityHeatmap  []HeatmapCell                    `json:"activityHeatmap"`
	ModelUsage       map[string]index.ModelUsageEntry `json:"modelUsage"`
	HourCounts       map[string]int                   `json:"hourCounts,omitempty"`
	LongestSession   *index.LongestSession            `json:"longestSession,omitempty"`
	NewestCLIVersion string                           `json:"newestCliVersion,omitempty"`
}

// Compute builds a Report from one index snapshot. Sessions are the source
// of truth for totals, per-model usage and per-day cost; the Claude Code
// stats cache often tracks a different session population, so its numbers
// only back fields that cannot be derived from the index.
func Compute(idx *index.Index) *Report {
	report := &Report{
		CostByModel:   make(map[string]float64),
		CostByProject: make(map[string]float64),
		ModelUsage:    make(map[string]index.ModelUsageEntry),
	}

	if stats := idx.GlobalStats; stats != nil {
		report.FirstSessionDate = stats.FirstSessionDate
		report.HourCounts = stats.HourCounts
		report.LongestSession = stats.LongestSession
		report.TokensByDay = tokensByDayFromStats(stats)
		report.ActivityHeatmap = heatmapFromHourCounts(stats.HourCounts)
	}

	type dayBucket struct {
		sessions int
		messages int
		cost     float64
	}
	days := make(map[string]*dayBucket)

	for _, project := range idx.Projects {
		report.TotalSessions += len(project.Sessions)
		report.TotalMessages += project.MessageCount

		var projectCost float64
		for _, ref := range project.Sessions {
			if ref.Usage != nil && ref.Model != "" {
				usage := report.ModelUsage[ref.Model]
				usage.InputTokens += ref.Usage.InputTokens
				usage.OutputTokens += ref.Usage.OutputTokens
				usage.CacheReadInputTokens += ref.Usage.CacheReadTokens
				usage.CacheCreationInputTokens += ref.Usage.CacheCreateTokens
				report.ModelUsage[ref.Model] = usage
				report.CostByModel[ref.Model] += ref.EstimatedCostUSD
			}
			projectCost += ref.EstimatedCostUSD

			date := sessionDate(ref)
			bucket := days[date]
			if bucket == nil {
				bucket = &dayBucket{}
				days[date] = bucket
			}
			bucket.sessions++
			bucket.messages += ref.MessageCount
			bucket.cost += ref.EstimatedCostUSD

			report.NewestCLIVersion = newerVersion(report.NewestCLIVersion, ref.Version)
		}
		report.CostByProject[project.Name] += projectCost

		report.TopProjects = append(report.TopProjects, ProjectSummary{
			Name:     project.Name,
			Sessions: len(project.Sessions),
			Messages: project.MessageCount,
			CostUSD:  projectCost,
		})
	}

	for model, cost := range report.CostByModel {
		usage := report.ModelUsage[model]
		usage.CostUSD = cost
		report.ModelUsage[model] = usage
	}

	dates := lo.Keys(days)
	sort.Strings(dates)
	for _, date := range dates {
		bucket := days[date]
		report.DailyActivity = append(report.DailyActivity, index.DailyActivity{
			Date:         date,
			MessageCount: bucket.messages,
			SessionCount: bucket.sessions,
		})
		report.CostByDay = append(report.CostByDay, DayCost{Date: date, CostUSD: bucket.cost})
	}

	sort.SliceStable(report.TopProjects, func(a, b int) bool {
		return report.TopProjects[a].Sessions > report.TopProjects[b].Sessions
	})

	return report
}

// tokensByDayFromStats estimates per-day token splits from the stats cache.
// The snapshot records only totals per model, so the split assumes a rough
// 60% input / 40% output ratio.
func tokensByDayFromStats(stats *index.GlobalStats) []DayTokens {
	var tokens []DayTokens
	for _, day := range stats.DailyModelTokens {
		entry := DayTokens{Date: day.Date}
		for _, total := range day.TokensByModel {
			entry.Input += int(float64(total)*0.6 + 0.5)
			entry.Output += int(float64(total)*0.4 + 0.5)
		}
		tokens = append(tokens, entry)
	}
	return tokens
}

func heatmapFromHourCounts(hourCounts map[string]int) []HeatmapCell {
	var cells []HeatmapCell
	for hourStr, count := range hourCounts {
		hour, err := strconv.Atoi(hourStr)
		if err != nil {
			continue
		}
		cells = append(cells, HeatmapCell{Hour: hour, Count: count})
	}
	sort.Slice(cells, func(a, b int) bool { return cells[a].Hour < cells[b].Hour })
	return cells
}

func sessionDate(ref *index.SessionRef) string {
	if !ref.StartedAt.IsZero() {
		return ref.StartedAt.UTC().Format("2006-01-02")
	}
	return ref.ModifiedAt.UTC().Format("2006-01-02")
}

// newerVersion keeps the semantically newest CLI version seen across
// sessions. Logged versions carry no "v" prefix, so one is added for
// comparison.
func newerVersion(current, candidate string) string {
	if candidate == "" {
		return current
	}
	if !semver.IsValid("v" + candidate) {
		return current
	}
	if current == "" || semver.Compare("v"+candidate, "v"+current) > 0 {
		return candidate
	}
	return current
}

// Rollups flattens a report into per-day rows for the persistent store.
func Rollups(report *Report) []DailyRollup {
	byDate := make(map[string]*DailyRollup)
	var order []string
	get := func(date string) *DailyRollup {
		if r, ok := byDate[date]; ok {
			return r
		}
		r := &DailyRollup{Date: date}
		byDate[date] = r
		order = append(order, date)
		return r
	}

	for _, day := range report.DailyActivity {
		r := get(day.Date)
		r.Sessions = day.SessionCount
		r.Messages = day.MessageCount
	}
	for _, day := range report.CostByDay {
		get(day.Date).CostUSD = day.CostUSD
	}
	for _, day := range report.TokensByDay {
		r := get(day.Date)
		r.InputTokens = day.Input
		r.OutputTokens = day.Output
	}

	sort.Strings(order)
	return lo.Map(order, func(date string, _ int) DailyRollup { return *byDate[date] })
}
