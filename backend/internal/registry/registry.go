// Package registry coordinates the record, blob and graph stores behind a
// single person-registry API. It is the only place that knows the write order
// across stores and how analytics combine their answers.
package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"persinteret/backend/internal/person"
	apperrors "persinteret/backend/pkg/errors"
	"persinteret/backend/pkg/logger"
)

// RecordStore persists denormalized person rows and allocates identities.
type RecordStore interface {
	Allocate(ctx context.Context) (int64, error)
	Insert(ctx context.Context, row person.Row) error
	UpdateByID(ctx context.Context, id int64, fields person.Fields) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
	FindByID(ctx context.Context, id int64) (person.Row, bool, error)
	FindByName(ctx context.Context, name string) (person.Row, bool, error)
	FindByNamePrefix(ctx context.Context, prefix string, limit int) ([]person.Row, error)
	FindByIDs(ctx context.Context, ids []int64) ([]person.Row, error)
	FindByStatus(ctx context.Context, statuses ...string) ([]person.Row, error)
	MaxID(ctx context.Context) (int64, bool, error)
	Count(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	Youngest(ctx context.Context) (person.Row, bool, error)
	BirthDates(ctx context.Context) ([]int64, error)

	AddPending(ctx context.Context, personID int64, target string) error
	PendingFor(ctx context.Context, target string) ([]int64, error)
	DeletePending(ctx context.Context, personID int64, target string) error
	DeletePendingFrom(ctx context.Context, personID int64) error
}

// BlobStore keeps one image per identity.
type BlobStore interface {
	Put(ctx context.Context, id int64, data []byte) error
	Get(ctx context.Context, id int64) ([]byte, bool, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
	DeleteAll(ctx context.Context) error
}

// GraphStore keeps one node per identity and undirected connexions.
type GraphStore interface {
	UpsertNode(ctx context.Context, id int64) error
	UpsertEdge(ctx context.Context, a, b int64) error
	DeleteEdge(ctx context.Context, a, b int64) error
	Neighbors(ctx context.Context, id int64) ([]int64, error)
	DeleteNode(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
}

// Options tunes registry behaviour.
type Options struct {
	// PruneEdges removes connexions that are no longer listed on save.
	PruneEdges bool
	// Concurrency bounds parallel blob fetches and graph lookups.
	Concurrency int
	// Now is the clock used for ages. Defaults to time.Now.
	Now func() time.Time
}

// Registry is safe for concurrent use; it holds no state beyond its stores.
type Registry struct {
	records RecordStore
	blobs   BlobStore
	graph   GraphStore
	opts    Options
	logger  *zap.Logger
}

// SaveResult describes a completed save.
type SaveResult struct {
	Person  person.Person
	Created bool
	// Skipped lists connexion names that did not resolve to a saved person.
	Skipped []string
}

// New builds a registry over the given stores.
func New(records RecordStore, blobs BlobStore, graph GraphStore, opts Options) *Registry {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		records: records,
		blobs:   blobs,
		graph:   graph,
		opts:    opts,
		logger:  logger.For("registry"),
	}
}

// Save inserts p when it has no ID, otherwise updates it. An empty ImageData
// leaves the person without an image. Steps run in the order record, image,
// graph and are not rolled back: a failure leaves the
// earlier steps applied, and calling Save again with the same input (and the
// ID from the result, for inserts) converges the rest. A graph failure after
// the record and image landed is reported as ErrPartialSync with the result
// still populated.
func (r *Registry) Save(ctx context.Context, p person.Person) (SaveResult, error) {
	if missing := p.MissingFields(); len(missing) > 0 {
		return SaveResult{}, apperrors.NewInvalidRecord(missing)
	}
	if p.HasID() && *p.ID < 0 {
		return SaveResult{}, apperrors.NewInvalidArgument("id", "must be non-negative")
	}

	res := SaveResult{Created: !p.HasID()}

	if res.Created {
		id, err := r.records.Allocate(ctx)
		if err != nil {
			return SaveResult{}, fmt.Errorf("save %q: %w", p.Name, err)
		}
		p = p.WithID(id)
		if err := r.records.Insert(ctx, p.ToRow()); err != nil {
			return SaveResult{}, fmt.Errorf("save %q: %w", p.Name, err)
		}
	} else {
		if err := r.records.UpdateByID(ctx, *p.ID, p.ToFields()); err != nil {
			return SaveResult{}, fmt.Errorf("save %q: %w", p.Name, err)
		}
		if err := r.blobs.Delete(ctx, *p.ID); err != nil {
			return SaveResult{}, fmt.Errorf("save %q: %w", p.Name, err)
		}
	}

	id := *p.ID
	res.Person = p

	if len(p.ImageData) > 0 {
		if err := r.blobs.Put(ctx, id, p.ImageData); err != nil {
			return res, fmt.Errorf("save %q: %w", p.Name, err)
		}
	}

	skipped, err := r.syncRelationships(ctx, id, p.Name, p.Connexions)
	res.Skipped = skipped
	if err != nil {
		r.logger.Error("Relationship sync failed after record commit",
			zap.Int64("person_id", id),
			zap.String("name", p.Name),
			zap.Error(err),
		)
		return res, apperrors.NewPartialSync(id, err)
	}

	r.logger.Info("Person saved",
		zap.Int64("person_id", id),
		zap.String("name", p.Name),
		zap.Bool("created", res.Created),
		zap.Int("connexions", len(p.Connexions)),
		zap.Int("skipped", len(skipped)),
	)
	return res, nil
}

// Repair re-runs relationship synchronization for an existing person, for use
// after a save reported ErrPartialSync.
func (r *Registry) Repair(ctx context.Context, id int64, connexions []string) ([]string, error) {
	row, found, err := r.records.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("repair %d: %w", id, err)
	}
	if !found {
		return nil, apperrors.NewNotFound(apperrors.StepFindRecord, id)
	}

	skipped, err := r.syncRelationships(ctx, id, row.Name, connexions)
	if err != nil {
		return skipped, apperrors.NewPartialSync(id, err)
	}
	return skipped, nil
}

// Delete removes the person's row, pending connexions, image and graph node.
// Connexions to it are detached; the neighbors themselves stay.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	if err := r.records.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %d: %w", id, err)
	}
	if err := r.blobs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %d: %w", id, err)
	}
	if err := r.graph.DeleteNode(ctx, id); err != nil {
		return apperrors.NewPartialSync(id, err)
	}

	r.logger.Info("Person deleted", zap.Int64("person_id", id))
	return nil
}

// DeleteAll wipes all three stores. Identities are not reset.
func (r *Registry) DeleteAll(ctx context.Context) error {
	if err := r.records.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	if err := r.blobs.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	if err := r.graph.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete all: %w", err)
	}

	r.logger.Warn("All case files deleted")
	return nil
}

// ListOptions controls GetPeopleListWith.
type ListOptions struct {
	Filter    string
	WithImage bool
	Limit     int
	// WithConnexions fills Connexions from the graph. Off by default so
	// listing never needs a traversal.
	WithConnexions bool
}

// GetPeopleList returns persons whose name starts with filterText (ignoring
// case), sorted by name, at most limit of them. Images are only read when
// withImage is set.
func (r *Registry) GetPeopleList(ctx context.Context, filterText string, withImage bool, limit int) ([]person.Person, error) {
	return r.GetPeopleListWith(ctx, ListOptions{Filter: filterText, WithImage: withImage, Limit: limit})
}

// GetPeopleListWith is GetPeopleList with the optional graph enrichment.
func (r *Registry) GetPeopleListWith(ctx context.Context, opts ListOptions) ([]person.Person, error) {
	if opts.Limit <= 0 {
		return nil, apperrors.NewInvalidArgument("limit", fmt.Sprintf("must be positive, got %d", opts.Limit))
	}

	rows, err := r.records.FindByNamePrefix(ctx, opts.Filter, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}

	people := make([]person.Person, len(rows))
	for i, row := range rows {
		people[i] = person.FromRow(row)
	}

	if opts.WithImage {
		if err := r.attachImages(ctx, people); err != nil {
			return nil, fmt.Errorf("list people: %w", err)
		}
	}
	if opts.WithConnexions {
		if err := r.attachConnexions(ctx, people); err != nil {
			return nil, fmt.Errorf("list people: %w", err)
		}
	}

	return people, nil
}

// GetPerson returns a single person, with image and connexions when asked.
func (r *Registry) GetPerson(ctx context.Context, id int64, withImage bool) (person.Person, error) {
	row, found, err := r.records.FindByID(ctx, id)
	if err != nil {
		return person.Person{}, fmt.Errorf("get %d: %w", id, err)
	}
	if !found {
		return person.Person{}, apperrors.NewNotFound(apperrors.StepFindRecord, id)
	}

	people := []person.Person{person.FromRow(row)}
	if withImage {
		if err := r.attachImages(ctx, people); err != nil {
			return person.Person{}, fmt.Errorf("get %d: %w", id, err)
		}
	}
	if err := r.attachConnexions(ctx, people); err != nil {
		return person.Person{}, fmt.Errorf("get %d: %w", id, err)
	}
	return people[0], nil
}

func (r *Registry) attachImages(ctx context.Context, people []person.Person) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for i := range people {
		i := i
		g.Go(func() error {
			data, found, err := r.blobs.Get(gctx, *people[i].ID)
			if err != nil {
				return err
			}
			if found && len(data) > 0 {
				people[i].ImageData = data
			}
			return nil
		})
	}
	return g.Wait()
}

func (r *Registry) attachConnexions(ctx context.Context, people []person.Person) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	for i := range people {
		i := i
		g.Go(func() error {
			ids, err := r.graph.Neighbors(gctx, *people[i].ID)
			if err != nil {
				return err
			}
			rows, err := r.records.FindByIDs(gctx, ids)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(rows))
			for _, row := range rows {
				names = append(names, row.Name)
			}
			sort.Strings(names)
			people[i].Connexions = names
			return nil
		})
	}
	return g.Wait()
}
