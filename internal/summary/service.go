// Package summary recomputes daily and weekly KPI snapshots on demand.
package summary

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"example.com/godlife/internal/domain"
)

const (
	fallbackTimezone  = "Asia/Seoul"
	weekDays          = 7
	maxStreakLookback = 365
)

// Service aggregates exercise and reading activity into summary snapshots.
type Service struct {
	store domain.Store
}

// NewService constructs a Service.
func NewService(store domain.Store) *Service {
	return &Service{store: store}
}

// RecomputeDaily rebuilds and upserts the daily snapshot for the date.
func (s *Service) RecomputeDaily(ctx context.Context, userID uuid.UUID, date time.Time) (*domain.DailySummary, error) {
	var out *domain.DailySummary
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		var err error
		out, err = s.recomputeDailyTx(ctx, r, userID, domain.CivilDate(date))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecomputeWeekly rebuilds the 7 daily snapshots starting at startDate and
// upserts the weekly rollup keyed by (user, start date).
func (s *Service) RecomputeWeekly(ctx context.Context, userID uuid.UUID, startDate time.Time) (*domain.WeeklySummary, error) {
	var out *domain.WeeklySummary
	err := s.store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		start := domain.CivilDate(startDate)
		end := start.AddDate(0, 0, weekDays-1)
		timezone, err := s.resolveTimezone(ctx, r, userID)
		if err != nil {
			return err
		}

		points := make([]domain.WeeklyPoint, 0, weekDays)
		rates := make([]float64, 0, weekDays)
		for offset := 0; offset < weekDays; offset++ {
			day := start.AddDate(0, 0, offset)
			daily, err := s.recomputeDailyTx(ctx, r, userID, day)
			if err != nil {
				return err
			}
			rates = append(rates, daily.ExerciseCompletionRate)
			points = append(points, domain.WeeklyPoint{
				Date:                   day.Format(domain.DateLayout),
				ExerciseCompletionRate: daily.ExerciseCompletionRate,
				ReadingCompleted:       daily.ReadingCompleted,
			})
		}

		weekAvg := average(rates)
		previousAvg, err := s.previousWindowAverage(ctx, r, userID, start)
		if err != nil {
			return err
		}

		weekly := &domain.WeeklySummary{
			ID:                    uuid.New(),
			UserID:                userID,
			StartDate:             start,
			EndDate:               end,
			Timezone:              timezone,
			DailyPoints:           points,
			WeekAvgCompletionRate: weekAvg,
			Trend:                 trend(weekAvg, previousAvg),
			ComputedAt:            time.Now().UTC(),
		}
		lastDaily, err := r.Summaries.GetDaily(ctx, userID, end)
		if err != nil {
			return err
		}
		if lastDaily != nil {
			weekly.StreakDays = lastDaily.StreakDays
		}
		if err := r.Summaries.UpsertWeekly(ctx, weekly); err != nil {
			return err
		}
		out = weekly
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) recomputeDailyTx(ctx context.Context, r domain.Repositories, userID uuid.UUID, date time.Time) (*domain.DailySummary, error) {
	timezone, err := s.resolveTimezone(ctx, r, userID)
	if err != nil {
		return nil, err
	}

	total, done, err := r.Summaries.AggregateExerciseSets(ctx, userID, date)
	if err != nil {
		return nil, err
	}
	total, done = normalizeCounts(total, done)
	rate := completionRate(total, done)

	readingCompleted, err := s.hasReadingCompletion(ctx, r, userID, date, timezone)
	if err != nil {
		return nil, err
	}

	previousRate, err := s.rateForDate(ctx, r, userID, date.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	streak, err := s.streakDays(ctx, r, userID, date, timezone)
	if err != nil {
		return nil, err
	}

	daily := &domain.DailySummary{
		ID:                     uuid.New(),
		UserID:                 userID,
		SummaryDate:            date,
		Timezone:               timezone,
		ExerciseTotalSets:      total,
		ExerciseDoneSets:       done,
		ExerciseCompletionRate: rate,
		ReadingCompleted:       readingCompleted,
		StreakDays:             streak,
		Trend:                  trend(rate, previousRate),
		ComputedAt:             time.Now().UTC(),
	}
	if err := r.Summaries.UpsertDaily(ctx, daily); err != nil {
		return nil, err
	}
	return daily, nil
}

func (s *Service) resolveTimezone(ctx context.Context, r domain.Repositories, userID uuid.UUID) (string, error) {
	user, err := r.Users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil || user.Timezone == "" {
		return fallbackTimezone, nil
	}
	if _, err := time.LoadLocation(user.Timezone); err != nil {
		return fallbackTimezone, nil
	}
	return user.Timezone, nil
}

// hasReadingCompletion checks the local calendar day converted to UTC bounds.
func (s *Service) hasReadingCompletion(ctx context.Context, r domain.Repositories, userID uuid.UUID, date time.Time, timezone string) (bool, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	localStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	localEnd := localStart.AddDate(0, 0, 1).Add(-time.Millisecond)
	return r.Summaries.HasReadingCompletion(ctx, userID, localStart.UTC(), localEnd.UTC())
}

// streakDays walks backward from the basis date while each day has at least
// one completed set or a reading completion, capped at one year.
func (s *Service) streakDays(ctx context.Context, r domain.Repositories, userID uuid.UUID, basis time.Time, timezone string) (int, error) {
	streak := 0
	cursor := basis
	for i := 0; i < maxStreakLookback; i++ {
		total, done, err := r.Summaries.AggregateExerciseSets(ctx, userID, cursor)
		if err != nil {
			return 0, err
		}
		_, done = normalizeCounts(total, done)
		readingCompleted, err := s.hasReadingCompletion(ctx, r, userID, cursor, timezone)
		if err != nil {
			return 0, err
		}
		if done <= 0 && !readingCompleted {
			break
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak, nil
}

func (s *Service) rateForDate(ctx context.Context, r domain.Repositories, userID uuid.UUID, date time.Time) (float64, error) {
	total, done, err := r.Summaries.AggregateExerciseSets(ctx, userID, date)
	if err != nil {
		return 0, err
	}
	total, done = normalizeCounts(total, done)
	return completionRate(total, done), nil
}

func (s *Service) previousWindowAverage(ctx context.Context, r domain.Repositories, userID uuid.UUID, start time.Time) (float64, error) {
	previousStart := start.AddDate(0, 0, -weekDays)
	rates := make([]float64, 0, weekDays)
	for offset := 0; offset < weekDays; offset++ {
		rate, err := s.rateForDate(ctx, r, userID, previousStart.AddDate(0, 0, offset))
		if err != nil {
			return 0, err
		}
		rates = append(rates, rate)
	}
	return average(rates), nil
}

func normalizeCounts(total, done int) (int, int) {
	if total < 0 {
		total = 0
	}
	if done < 0 {
		done = 0
	}
	if done > total {
		done = total
	}
	return total, done
}

func completionRate(total, done int) float64 {
	if total <= 0 {
		return 0.0
	}
	return round4(float64(done) / float64(total))
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return round4(sum / float64(len(values)))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func trend(current, previous float64) string {
	switch {
	case current > previous:
		return "up"
	case current < previous:
		return "down"
	default:
		return "flat"
	}
}
