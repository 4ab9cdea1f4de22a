// Package store is the durable home for releases, pull requests, commits and
// categories. All natural-identity inserts are unique-constraint protected:
// "row already exists" is reported as inserted=false, never as an error, so
// concurrent redelivery of the same webhook cannot create duplicates.
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/relnotary/relnotary/internal/category"
	"github.com/relnotary/relnotary/internal/config"
	"github.com/relnotary/relnotary/internal/logging"
)

// ErrNotFound indicates a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the database handle.
type Store struct {
	db  *gorm.DB
	log *logging.Logger
}

// Open connects to the configured database and runs migrations.
func Open(cfg config.DatabaseConfig, log *logging.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := New(db, log)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle.
func New(db *gorm.DB, log *logging.Logger) *Store {
	return &Store{db: db, log: log.With("component", "store")}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&Release{}, &PullRequest{}, &Commit{}, &Category{}); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SeedCategories inserts the fixed taxonomy if the table is empty. Seeding is
// idempotent: name conflicts are ignored.
func (s *Store) SeedCategories(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Category{}).Count(&count).Error; err != nil {
		return fmt.Errorf("counting categories: %w", err)
	}
	if count > 0 {
		return nil
	}

	rows := make([]Category, len(category.Names))
	for i, name := range category.Names {
		rows[i] = Category{Name: name, DisplayOrder: i + 1}
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("seeding categories: %w", err)
	}

	s.log.Info("seeded category taxonomy", "count", len(rows))
	return nil
}

// ListCategories returns all categories in display order.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	err := s.db.WithContext(ctx).Order("display_order ASC").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return out, nil
}

// CategoryIDByName resolves a category name to its row id.
func (s *Store) CategoryIDByName(ctx context.Context, name string) (uint, error) {
	var cat Category
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("category %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("looking up category: %w", err)
	}
	return cat.ID, nil
}

// CreateRelease inserts a release unless its (repository, version) pair
// already exists. Returns false when the row was already present.
func (s *Store) CreateRelease(ctx context.Context, r *Release) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "repository"}, {Name: "version"}},
			DoNothing: true,
		}).
		Create(r)
	if res.Error != nil {
		return false, fmt.Errorf("creating release: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// GetRelease looks up a release by its (repository, version) identity.
func (s *Store) GetRelease(ctx context.Context, repository, version string) (*Release, error) {
	var rel Release
	err := s.db.WithContext(ctx).
		Where("repository = ? AND version = ?", repository, version).
		First(&rel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("release %s@%s: %w", repository, version, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching release: %w", err)
	}
	return &rel, nil
}

// GetReleaseByID looks up a release by row id.
func (s *Store) GetReleaseByID(ctx context.Context, id uint) (*Release, error) {
	var rel Release
	err := s.db.WithContext(ctx).First(&rel, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("release %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching release: %w", err)
	}
	return &rel, nil
}

// LatestRelease returns the most recent release for a repository, ordered by
// release date with row id as the tie-break for same-timestamp releases.
func (s *Store) LatestRelease(ctx context.Context, repository string) (*Release, error) {
	var rel Release
	err := s.db.WithContext(ctx).
		Where("repository = ?", repository).
		Order("released_at DESC, id DESC").
		First(&rel).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("latest release for %s: %w", repository, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching latest release: %w", err)
	}
	return &rel, nil
}

// ListReleases returns releases, newest first, optionally filtered by
// repository full name.
func (s *Store) ListReleases(ctx context.Context, repository string) ([]Release, error) {
	q := s.db.WithContext(ctx).Order("released_at DESC, id DESC")
	if repository != "" {
		q = q.Where("repository = ?", repository)
	}
	var out []Release
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing releases: %w", err)
	}
	return out, nil
}

// UpdateRelease applies column updates to a release.
func (s *Store) UpdateRelease(ctx context.Context, id uint, updates map[string]interface{}) error {
	err := s.db.WithContext(ctx).
		Model(&Release{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("updating release: %w", err)
	}
	return nil
}

// SaveGeneratedNotes overwrites the release's rendered changelog. The most
// recent render wins; no history is retained.
func (s *Store) SaveGeneratedNotes(ctx context.Context, id uint, notes string) error {
	return s.UpdateRelease(ctx, id, map[string]interface{}{"generated_notes": notes})
}

// InsertPullRequest inserts a pull request unless its (release_id, number)
// pair already exists. Returns false when the row was already present.
func (s *Store) InsertPullRequest(ctx context.Context, pr *PullRequest) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "release_id"}, {Name: "number"}},
			DoNothing: true,
		}).
		Create(pr)
	if res.Error != nil {
		return false, fmt.Errorf("inserting pull request: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// GetPullRequestByNumber looks up a pull request within a release.
func (s *Store) GetPullRequestByNumber(ctx context.Context, releaseID uint, number int) (*PullRequest, error) {
	var pr PullRequest
	err := s.db.WithContext(ctx).
		Where("release_id = ? AND number = ?", releaseID, number).
		First(&pr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("pull request #%d in release %d: %w", number, releaseID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching pull request: %w", err)
	}
	return &pr, nil
}

// ListPullRequests returns a release's pull requests ordered by merge time.
func (s *Store) ListPullRequests(ctx context.Context, releaseID uint) ([]PullRequest, error) {
	var out []PullRequest
	err := s.db.WithContext(ctx).
		Where("release_id = ?", releaseID).
		Order("merged_at ASC, number ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing pull requests: %w", err)
	}
	return out, nil
}

// InsertCommit inserts a commit unless its hash already exists. Returns false
// when the row was already present.
func (s *Store) InsertCommit(ctx context.Context, c *Commit) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoNothing: true,
		}).
		Create(c)
	if res.Error != nil {
		return false, fmt.Errorf("inserting commit: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListCommits returns a release's commits ordered by commit time.
func (s *Store) ListCommits(ctx context.Context, releaseID uint) ([]Commit, error) {
	var out []Commit
	err := s.db.WithContext(ctx).
		Where("release_id = ?", releaseID).
		Order("committed_at ASC, id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}
	return out, nil
}
