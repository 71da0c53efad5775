package registry

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"persinteret/backend/internal/person"
	apperrors "persinteret/backend/pkg/errors"
)

// Statistics is the dashboard summary. Youngest and NextTarget are empty when
// there is no data for them.
type Statistics struct {
	PeopleCount int64  `json:"peopleCount"`
	PhotoCount  int64  `json:"photoCount"`
	FreeRatio   int    `json:"freeRatio"`
	AverageAge  int    `json:"averageAge"`
	Youngest    string `json:"youngest"`
	NextTarget  string `json:"nextTarget"`
}

// GetPeopleCount returns the number of case files.
func (r *Registry) GetPeopleCount(ctx context.Context) (int64, error) {
	n, err := r.records.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("people count: %w", err)
	}
	return n, nil
}

// GetPhotoCount returns the number of stored photographs.
func (r *Registry) GetPhotoCount(ctx context.Context) (int64, error) {
	n, err := r.blobs.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("photo count: %w", err)
	}
	return n, nil
}

// GetFreeRatio returns the percentage (0-100, truncated) of persons whose
// status is Libre. An empty store gives 0.
func (r *Registry) GetFreeRatio(ctx context.Context) (int, error) {
	counts, err := r.records.CountByStatus(ctx)
	if err != nil {
		return 0, fmt.Errorf("free ratio: %w", err)
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return 0, nil
	}
	return int(100 * counts[person.StatusFree] / total), nil
}

// GetAverageAge returns the mean age rounded to whole years, halves away
// from zero. Dates of birth in the future are ignored; 0 when nothing
// qualifies.
func (r *Registry) GetAverageAge(ctx context.Context) (int, error) {
	dates, err := r.records.BirthDates(ctx)
	if err != nil {
		return 0, fmt.Errorf("average age: %w", err)
	}

	now := r.opts.Now().UTC()
	sum, n := 0, 0
	for _, ms := range dates {
		dob := person.FromEpochMillis(ms)
		if dob.After(now) {
			continue
		}
		sum += person.AgeAt(dob, now)
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return int(math.Round(float64(sum) / float64(n))), nil
}

// GetYoungestPerson returns the name of the most recently born person, the
// lowest ID winning ties. ErrNoData when the store is empty.
func (r *Registry) GetYoungestPerson(ctx context.Context) (string, error) {
	row, ok, err := r.records.Youngest(ctx)
	if err != nil {
		return "", fmt.Errorf("youngest person: %w", err)
	}
	if !ok {
		return "", apperrors.ErrNoData
	}
	return row.Name, nil
}

// GetNextTargetName returns the free person with the most direct connexions
// to missing or deceased persons, the lowest ID winning ties. ErrNoData when
// no free person has any such connexion.
func (r *Registry) GetNextTargetName(ctx context.Context) (string, error) {
	free, err := r.records.FindByStatus(ctx, person.StatusFree)
	if err != nil {
		return "", fmt.Errorf("next target: %w", err)
	}
	flaggedRows, err := r.records.FindByStatus(ctx, person.StatusMissing, person.StatusDeceased)
	if err != nil {
		return "", fmt.Errorf("next target: %w", err)
	}
	if len(free) == 0 || len(flaggedRows) == 0 {
		return "", apperrors.ErrNoData
	}

	flagged := make(map[int64]struct{}, len(flaggedRows))
	for _, row := range flaggedRows {
		flagged[row.ID] = struct{}{}
	}

	scores := make([]int, len(free))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i := range free {
		i := i
		g.Go(func() error {
			neighbors, err := r.graph.Neighbors(gctx, free[i].ID)
			if err != nil {
				return err
			}
			for _, n := range neighbors {
				if _, ok := flagged[n]; ok {
					scores[i]++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("next target: %w", err)
	}

	// free is in ascending id order, so the first maximum is the lowest id.
	best := -1
	for i, score := range scores {
		if score > 0 && (best < 0 || score > scores[best]) {
			best = i
		}
	}
	if best < 0 {
		return "", apperrors.ErrNoData
	}
	return free[best].Name, nil
}

// GetStatistics gathers every analytic at once.
func (r *Registry) GetStatistics(ctx context.Context) (Statistics, error) {
	var stats Statistics
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.PeopleCount, err = r.GetPeopleCount(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.PhotoCount, err = r.GetPhotoCount(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.FreeRatio, err = r.GetFreeRatio(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.AverageAge, err = r.GetAverageAge(gctx)
		return err
	})
	g.Go(func() error {
		name, err := r.GetYoungestPerson(gctx)
		if err != nil && !errors.Is(err, apperrors.ErrNoData) {
			return err
		}
		stats.Youngest = name
		return nil
	})
	g.Go(func() error {
		name, err := r.GetNextTargetName(gctx)
		if err != nil && !errors.Is(err, apperrors.ErrNoData) {
			return err
		}
		stats.NextTarget = name
		return nil
	})

	if err := g.Wait(); err != nil {
		return Statistics{}, err
	}
	return stats, nil
}
