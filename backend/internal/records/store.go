package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"persinteret/backend/internal/person"
	apperrors "persinteret/backend/pkg/errors"
	"persinteret/backend/pkg/logger"
)

const storeName = "record"

// Store handles all person-row operations against SQLite
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewStore wraps an opened database
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:     db,
		logger: logger.For("records"),
	}
}

// Close releases the underlying connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Allocate reserves the next identity. The read of the current maximum and
// the reservation happen in one UPDATE, so concurrent callers serialize on
// SQLite's write lock and can never receive the same value. The result is 0
// for an empty store, otherwise max(existing ids)+1, and never lower than
// an id handed out before.
func (s *Store) Allocate(ctx context.Context) (int64, error) {
	query := `
		UPDATE identity_sequences
		SET next_id = MAX(next_id, (SELECT COALESCE(MAX(id) + 1, 0) FROM persons)) + 1
		WHERE name = ?
		RETURNING next_id - 1
	`

	var id int64
	if err := s.db.WithContext(ctx).Raw(query, personSequence).Row().Scan(&id); err != nil {
		return 0, apperrors.Classify(storeName, apperrors.StepAllocate,
			fmt.Errorf("failed to allocate identity: %w", err))
	}

	s.logger.Debug("Identity allocated", zap.Int64("person_id", id))
	return id, nil
}

// Insert writes a new row. A name collision yields ErrDuplicateName.
func (s *Store) Insert(ctx context.Context, row person.Row) error {
	model := toModel(row)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isDuplicateName(err) {
			return apperrors.NewDuplicateName(apperrors.StepInsert, row.Name, err)
		}
		return apperrors.Classify(storeName, apperrors.StepInsert,
			fmt.Errorf("failed to insert person %s: %w", row.Name, err))
	}
	return nil
}

// UpdateByID rewrites the mutable columns of an existing row.
func (s *Store) UpdateByID(ctx context.Context, id int64, fields person.Fields) error {
	result := s.db.WithContext(ctx).Model(&personModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":        fields.Name,
		"nameKey":     nameKey(fields.Name),
		"codeName":    fields.CodeName,
		"status":      fields.Status,
		"dateOfBirth": fields.DateOfBirth,
	})
	if result.Error != nil {
		if isDuplicateName(result.Error) {
			return apperrors.NewDuplicateName(apperrors.StepUpdate, fields.Name, result.Error)
		}
		return apperrors.Classify(storeName, apperrors.StepUpdate,
			fmt.Errorf("failed to update person %d: %w", id, result.Error))
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFound(apperrors.StepUpdate, id)
	}
	return nil
}

// Delete removes the row for id along with the connexions it was still
// waiting on.
func (s *Store) Delete(ctx context.Context, id int64) error {
	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&personModel{}, id)
		if result.Error != nil {
			return result.Error
		}
		affected = result.RowsAffected
		return tx.Where("person_id = ?", id).Delete(&pendingModel{}).Error
	})
	if err != nil {
		return apperrors.Classify(storeName, apperrors.StepDeleteRow,
			fmt.Errorf("failed to delete person %d: %w", id, err))
	}
	if affected == 0 {
		return apperrors.NewNotFound(apperrors.StepDeleteRow, id)
	}
	return nil
}

// DeleteAll removes every row and pending connexion. The identity sequence
// is kept.
func (s *Store) DeleteAll(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&pendingModel{}).Error; err != nil {
			return err
		}
		return tx.Where("1 = 1").Delete(&personModel{}).Error
	})
	if err != nil {
		return apperrors.Classify(storeName, apperrors.StepDeleteRow,
			fmt.Errorf("failed to delete all persons: %w", err))
	}
	return nil
}

// FindByID returns the row for id; found is false when it does not exist.
func (s *Store) FindByID(ctx context.Context, id int64) (person.Row, bool, error) {
	return s.findOne(ctx, "id = ?", id)
}

// FindByName returns the row whose name equals name exactly.
func (s *Store) FindByName(ctx context.Context, name string) (person.Row, bool, error) {
	return s.findOne(ctx, "name = ?", name)
}

func (s *Store) findOne(ctx context.Context, where string, arg interface{}) (person.Row, bool, error) {
	var model personModel
	err := s.db.WithContext(ctx).Where(where, arg).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return person.Row{}, false, nil
		}
		return person.Row{}, false, apperrors.Classify(storeName, apperrors.StepFindRecord,
			fmt.Errorf("failed to find person (%s): %w", where, err))
	}
	return fromModel(model), true, nil
}

// FindByNamePrefix lists rows whose name starts with prefix, ignoring case,
// ordered by name, at most limit rows. An empty prefix matches everything.
func (s *Store) FindByNamePrefix(ctx context.Context, prefix string, limit int) ([]person.Row, error) {
	q := s.db.WithContext(ctx).Model(&personModel{})
	if prefix != "" {
		q = q.Where(`"nameKey" LIKE ? ESCAPE '\'`, escapeLike(nameKey(prefix))+"%")
	}

	var models []personModel
	if err := q.Order("name ASC").Limit(limit).Find(&models).Error; err != nil {
		return nil, apperrors.Classify(storeName, apperrors.StepListRecords,
			fmt.Errorf("failed to list persons by prefix %q: %w", prefix, err))
	}
	return fromModels(models), nil
}

// FindByIDs returns the rows for the given ids, in id order. Unknown ids are ignored.
func (s *Store) FindByIDs(ctx context.Context, ids []int64) ([]person.Row, error) {
	if len(ids) == 0 {
		return []person.Row{}, nil
	}
	var models []personModel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&models).Error; err != nil {
		return nil, apperrors.Classify(storeName, apperrors.StepFindRecord,
			fmt.Errorf("failed to find persons by ids: %w", err))
	}
	return fromModels(models), nil
}

// MaxID returns the largest stored id; ok is false on an empty store.
func (s *Store) MaxID(ctx context.Context) (int64, bool, error) {
	var max sql.NullInt64
	if err := s.db.WithContext(ctx).Model(&personModel{}).Select("MAX(id)").Row().Scan(&max); err != nil {
		return 0, false, apperrors.Classify(storeName, apperrors.StepAllocate,
			fmt.Errorf("failed to read max id: %w", err))
	}
	return max.Int64, max.Valid, nil
}

// Count returns the number of rows.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&personModel{}).Count(&n).Error; err != nil {
		return 0, apperrors.Classify(storeName, apperrors.StepCount,
			fmt.Errorf("failed to count persons: %w", err))
	}
	return n, nil
}

func toModel(r person.Row) personModel {
	return personModel{
		ID:          r.ID,
		Name:        r.Name,
		NameKey:     nameKey(r.Name),
		CodeName:    r.CodeName,
		Status:      r.Status,
		DateOfBirth: r.DateOfBirth,
	}
}

func fromModel(m personModel) person.Row {
	return person.Row{
		ID:          m.ID,
		Name:        m.Name,
		CodeName:    m.CodeName,
		Status:      m.Status,
		DateOfBirth: m.DateOfBirth,
	}
}

func fromModels(models []personModel) []person.Row {
	rows := make([]person.Row, 0, len(models))
	for _, m := range models {
		rows = append(rows, fromModel(m))
	}
	return rows
}

func nameKey(name string) string {
	return strings.ToLower(name)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func isDuplicateName(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed: persons.name")
}
