package records

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"persinteret/backend/internal/person"
	apperrors "persinteret/backend/pkg/errors"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

var rowColumns = []string{"id", "name", "codeName", "status", `"dateOfBirth"`}

// CountByStatus returns how many rows carry each status.
func (s *Store) CountByStatus(ctx context.Context) (map[string]int64, error) {
	sqlStr, args, err := psql.Select("status", "COUNT(*) AS total").
		From(personsTable).
		GroupBy("status").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for CountByStatus: %w", err)
	}

	var counts []struct {
		Status string
		Total  int64
	}
	if err := s.db.WithContext(ctx).Raw(sqlStr, args...).Scan(&counts).Error; err != nil {
		return nil, apperrors.Classify(storeName, apperrors.StepCount,
			fmt.Errorf("failed to count persons by status: %w", err))
	}

	result := make(map[string]int64, len(counts))
	for _, c := range counts {
		result[c.Status] = c.Total
	}
	return result, nil
}

// FindByStatus lists rows whose status is one of statuses, in id order.
func (s *Store) FindByStatus(ctx context.Context, statuses ...string) ([]person.Row, error) {
	sqlStr, args, err := psql.Select(rowColumns...).
		From(personsTable).
		Where(sq.Eq{"status": statuses}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for FindByStatus: %w", err)
	}

	var models []personModel
	if err := s.db.WithContext(ctx).Raw(sqlStr, args...).Scan(&models).Error; err != nil {
		return nil, apperrors.Classify(storeName, apperrors.StepListRecords,
			fmt.Errorf("failed to list persons by status: %w", err))
	}
	return fromModels(models), nil
}

// Youngest returns the row with the most recent date of birth, lowest id on
// ties. ok is false on an empty store.
func (s *Store) Youngest(ctx context.Context) (person.Row, bool, error) {
	sqlStr, args, err := psql.Select(rowColumns...).
		From(personsTable).
		OrderBy(`"dateOfBirth" DESC`, "id ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return person.Row{}, false, fmt.Errorf("failed to build SQL for Youngest: %w", err)
	}

	var models []personModel
	if err := s.db.WithContext(ctx).Raw(sqlStr, args...).Scan(&models).Error; err != nil {
		return person.Row{}, false, apperrors.Classify(storeName, apperrors.StepListRecords,
			fmt.Errorf("failed to find youngest person: %w", err))
	}
	if len(models) == 0 {
		return person.Row{}, false, nil
	}
	return fromModel(models[0]), true, nil
}

// BirthDates returns every stored date of birth in epoch milliseconds.
func (s *Store) BirthDates(ctx context.Context) ([]int64, error) {
	sqlStr, args, err := psql.Select(`"dateOfBirth"`).From(personsTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for BirthDates: %w", err)
	}

	var dates []int64
	if err := s.db.WithContext(ctx).Raw(sqlStr, args...).Scan(&dates).Error; err != nil {
		return nil, apperrors.Classify(storeName, apperrors.StepListRecords,
			fmt.Errorf("failed to read dates of birth: %w", err))
	}
	return dates, nil
}
