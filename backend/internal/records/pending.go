package records

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm/clause"

	apperrors "persinteret/backend/pkg/errors"
)

// AddPending remembers that personID names target, which no person carries
// yet. Adding the same pair twice is a no-op.
func (s *Store) AddPending(ctx context.Context, personID int64, target string) error {
	row := pendingModel{PersonID: personID, Target: target}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return apperrors.Classify(storeName, apperrors.StepPending,
			fmt.Errorf("failed to record pending connexion %d -> %s: %w", personID, target, err))
	}
	return nil
}

// PendingFor returns the persons waiting on target, in id order.
func (s *Store) PendingFor(ctx context.Context, target string) ([]int64, error) {
	sqlStr, args, err := psql.Select("person_id").
		From(pendingTable).
		Where(sq.Eq{"target": target}).
		OrderBy("person_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for PendingFor: %w", err)
	}

	var ids []int64
	if err := s.db.WithContext(ctx).Raw(sqlStr, args...).Scan(&ids).Error; err != nil {
		return nil, apperrors.Classify(storeName, apperrors.StepPending,
			fmt.Errorf("failed to list pending connexions to %s: %w", target, err))
	}
	return ids, nil
}

// DeletePending forgets a single pending pair.
func (s *Store) DeletePending(ctx context.Context, personID int64, target string) error {
	err := s.db.WithContext(ctx).
		Where("person_id = ? AND target = ?", personID, target).
		Delete(&pendingModel{}).Error
	if err != nil {
		return apperrors.Classify(storeName, apperrors.StepPending,
			fmt.Errorf("failed to delete pending connexion %d -> %s: %w", personID, target, err))
	}
	return nil
}

// DeletePendingFrom forgets every pending connexion listed by personID.
func (s *Store) DeletePendingFrom(ctx context.Context, personID int64) error {
	err := s.db.WithContext(ctx).Where("person_id = ?", personID).Delete(&pendingModel{}).Error
	if err != nil {
		return apperrors.Classify(storeName, apperrors.StepPending,
			fmt.Errorf("failed to delete pending connexions of %d: %w", personID, err))
	}
	return nil
}
