package stats

import (
	"context"
	"sync"
	"time"

	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/goodtune/kfocus/internal/clock"
	"github.com/goodtune/kfocus/internal/streak"
	"github.com/rs/zerolog"
)

const (
	// SimulatedDays is how long every filter is assumed active in simulation mode
	SimulatedDays = 7

	// ChartPoints is the number of daily points in the chart series
	ChartPoints = 7

	daysPerWeek  = 7
	daysPerMonth = 30
)

// ToggleLister lists the externally owned filter toggle state
type ToggleLister interface {
	List(ctx context.Context) (map[string]bool, error)
}

// Publisher republishes the widget snapshot
type Publisher interface {
	Publish(ctx context.Context) error
}

// FilterStatistic is the derived "minutes saved" view of one filter
type FilterStatistic struct {
	Filter            catalog.FilterID `json:"filter"`
	Name              string           `json:"name"`
	Color             string           `json:"color"`
	DailyMinutesSaved int              `json:"daily_minutes_saved"`
	ActivationDate    time.Time        `json:"activation_date"`
	DaysActive        int              `json:"days_active"`
	TotalMinutesSaved int              `json:"total_minutes_saved"`
	IsSimulated       bool             `json:"is_simulated"`
}

// ChartPoint is one day of the minutes-saved chart
type ChartPoint struct {
	Date    string        `json:"date"`
	Weekday clock.Weekday `json:"weekday"`
	Minutes int           `json:"minutes"`
}

// Summary bundles every statistic the presentation layer shows at once
type Summary struct {
	Simulated           bool              `json:"simulated"`
	Filters             []FilterStatistic `json:"filters"`
	TotalMinutesSaved   int               `json:"total_minutes_saved"`
	WeeklyMinutesSaved  int               `json:"weekly_minutes_saved"`
	MonthlyMinutesSaved int               `json:"monthly_minutes_saved"`
	Chart               []ChartPoint      `json:"chart"`
	ShowChart           bool              `json:"show_chart"`
}

// Projector derives display statistics from the streak ledger and the
// toggle store. Its only state is the simulation flag.
type Projector struct {
	streaks   *streak.Ledger
	toggles   ToggleLister
	publisher Publisher
	clock     clock.Clock
	cal     clock.Calendar
	logger  zerolog.Logger

	mu         sync.Mutex
	simulation bool
}

// NewProjector creates a projector. publisher may be nil.
func NewProjector(streaks *streak.Ledger, toggles ToggleLister, publisher Publisher, clk clock.Clock, cal clock.Calendar, startInSimulation bool, logger zerolog.Logger) *Projector {
	return &Projector{
		streaks:    streaks,
		toggles:    toggles,
		publisher:  publisher,
		clock:      clk,
		cal:        cal,
		simulation: startInSimulation,
		logger:     logger.With().Str("component", "stats").Logger(),
	}
}

// view is one consistent evaluation of the projector's inputs
type view struct {
	now       time.Time
	simulated bool
	filters   []FilterStatistic
}

// evaluate reads the toggle store once and builds the current view. Enabled
// filters without a streak are stamped as activated now.
func (p *Projector) evaluate(ctx context.Context) view {
	now := p.clock.Now()
	enabled := p.realFilters(ctx)

	p.mu.Lock()
	simulated := p.simulation || len(enabled) == 0
	p.mu.Unlock()

	v := view{now: now, simulated: simulated}
	if simulated {
		v.filters = p.simulatedStatistics(now)
		return v
	}

	for _, id := range enabled {
		activation, ok := p.streaks.StartDate(id)
		if !ok {
			continue
		}
		info := id.Info()
		days := p.cal.DaysBetween(activation, now)
		if days < 0 {
			days = 0
		}
		v.filters = append(v.filters, FilterStatistic{
			Filter:            id,
			Name:              info.Name,
			Color:             info.Color,
			DailyMinutesSaved: info.DailyMinutesSaved,
			ActivationDate:    activation,
			DaysActive:        days,
			TotalMinutesSaved: days * info.DailyMinutesSaved,
		})
	}
	return v
}

// realFilters returns the enabled filters in definition order
func (p *Projector) realFilters(ctx context.Context) []catalog.FilterID {
	toggles, err := p.toggles.List(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to read filter toggles, treating as no real data")
		return nil
	}

	var enabled []catalog.FilterID
	stamped := false
	for _, id := range catalog.Filters() {
		if !toggles[id.String()] {
			continue
		}
		if p.streaks.Activate(id) {
			p.logger.Info().Str("filter", id.String()).Msg("Stamped activation date for enabled filter")
			stamped = true
		}
		enabled = append(enabled, id)
	}

	if stamped {
		p.flush(ctx)
	}
	return enabled
}

// flush persists newly stamped start dates and republishes the snapshot
func (p *Projector) flush(ctx context.Context) {
	if err := p.streaks.Persist(ctx); err != nil {
		p.logger.Error().Err(err).Msg("Failed to persist stamped activation date")
	}
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx); err != nil {
		p.logger.Error().Err(err).Msg("Failed to publish snapshot")
	}
}

func (p *Projector) simulatedStatistics(now time.Time) []FilterStatistic {
	activation := p.cal.StartOfDay(now).AddDate(0, 0, -SimulatedDays)
	out := make([]FilterStatistic, 0, catalog.NumFilters)
	for _, id := range catalog.Filters() {
		info := id.Info()
		out = append(out, FilterStatistic{
			Filter:            id,
			Name:              info.Name,
			Color:             info.Color,
			DailyMinutesSaved: info.DailyMinutesSaved,
			ActivationDate:    activation,
			DaysActive:        SimulatedDays,
			TotalMinutesSaved: SimulatedDays * info.DailyMinutesSaved,
			IsSimulated:       true,
		})
	}
	return out
}

// IsSimulationMode reports whether simulated data is shown. It is forced
// on while no filter is enabled.
func (p *Projector) IsSimulationMode(ctx context.Context) bool {
	return p.evaluate(ctx).simulated
}

// ToggleSimulationMode flips between simulated and real data and returns
// the resulting mode. Leaving simulation is refused while there is no real
// data.
func (p *Projector) ToggleSimulationMode(ctx context.Context) bool {
	hasReal := len(p.realFilters(ctx)) > 0

	p.mu.Lock()
	defer p.mu.Unlock()

	effective := p.simulation || !hasReal
	if effective && !hasReal {
		p.logger.Debug().Msg("No real data yet, staying in simulation mode")
		return true
	}
	p.simulation = !effective

	p.logger.Info().Bool("simulation", p.simulation).Msg("Simulation mode toggled")
	return p.simulation
}

// DisplayStatistics returns per-filter statistics, simulated or real
func (p *Projector) DisplayStatistics(ctx context.Context) []FilterStatistic {
	return p.evaluate(ctx).filters
}

// TotalMinutesSaved sums minutes saved since activation across displayed filters
func (p *Projector) TotalMinutesSaved(ctx context.Context) int {
	return totalMinutes(p.evaluate(ctx))
}

// DailyChartData returns seven points, oldest first, ending today
func (p *Projector) DailyChartData(ctx context.Context) []ChartPoint {
	return p.chart(p.evaluate(ctx))
}

// ShouldShowChart is true in simulation mode, and otherwise only once the
// latest chart point is positive.
func (p *Projector) ShouldShowChart(ctx context.Context) bool {
	v := p.evaluate(ctx)
	return showChart(v, p.chart(v))
}

// WeeklyMinutesSaved projects a week of savings for the displayed filters
func (p *Projector) WeeklyMinutesSaved(ctx context.Context) int {
	return dailyTotal(p.evaluate(ctx)) * daysPerWeek
}

// MonthlyMinutesSaved projects a month of savings for the displayed filters
func (p *Projector) MonthlyMinutesSaved(ctx context.Context) int {
	return dailyTotal(p.evaluate(ctx)) * daysPerMonth
}

// Summary evaluates every statistic against a single read of the inputs
func (p *Projector) Summary(ctx context.Context) Summary {
	v := p.evaluate(ctx)
	chart := p.chart(v)
	daily := dailyTotal(v)

	return Summary{
		Simulated:           v.simulated,
		Filters:             v.filters,
		TotalMinutesSaved:   totalMinutes(v),
		WeeklyMinutesSaved:  daily * daysPerWeek,
		MonthlyMinutesSaved: daily * daysPerMonth,
		Chart:               chart,
		ShowChart:           showChart(v, chart),
	}
}

func (p *Projector) chart(v view) []ChartPoint {
	today := p.cal.StartOfDay(v.now)
	daily := dailyTotal(v)

	points := make([]ChartPoint, ChartPoints)
	for i := range points {
		date := today.AddDate(0, 0, i-(ChartPoints-1))
		point := ChartPoint{Date: p.cal.DayKey(date), Weekday: p.cal.WeekdayLabel(date)}

		if v.simulated {
			point.Minutes = daily * (i + 1)
		} else {
			// Each point accrues independently from each activation date
			for _, f := range v.filters {
				days := p.cal.DaysBetween(f.ActivationDate, date)
				if days > 0 {
					point.Minutes += days * f.DailyMinutesSaved
				}
			}
		}
		points[i] = point
	}
	return points
}

func showChart(v view, chart []ChartPoint) bool {
	if v.simulated {
		return true
	}
	return len(chart) > 0 && chart[len(chart)-1].Minutes > 0
}

func dailyTotal(v view) int {
	total := 0
	for _, f := range v.filters {
		total += f.DailyMinutesSaved
	}
	return total
}

func totalMinutes(v view) int {
	total := 0
	for _, f := range v.filters {
		total += f.TotalMinutesSaved
	}
	return total
}
