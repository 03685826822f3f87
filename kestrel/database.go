package kestrel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	dbTypeSQLite   = "sqlite"
	dbTypePostgres = "postgres"
)

var (
	dbOperationTimeout = 30 * time.Second
)

// ModelUnixTime is an embeddable model with Unix timestamps for
// creation, update, and deletion.
type ModelUnixTime struct {
	CreatedAt int64          `gorm:"autoCreateTime:milli" json:"created_at,omitempty"`
	UpdatedAt int64          `gorm:"autoUpdateTime:milli" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type ModelUintID struct {
	ID uint `gorm:"primaryKey" json:"id"`
}

// database wraps a GORM connection, an in-memory user cache, and the
// per-user locks that serialize progression read-modify-write cycles.
//
// When using SQLite, a single mutex guards all writes
// (enableConcurrentWrites=false); postgres permits concurrent writers.
// Progression updates are additionally serialized per user ID so two
// near-simultaneous messages from the same user can't both read the
// same XP value - that would lose an increment or double-fire a
// level-up announcement.
//
// database implements the DBI interface.
type database struct {
	db                     *gorm.DB
	mu                     sync.Mutex
	logger                 *slog.Logger
	userCache              map[string]*User
	userLocks              map[string]*sync.Mutex
	cacheMu                sync.Mutex
	enableConcurrentWrites bool
}

// NewDatabase initializes a new database instance.
func NewDatabase(
	db *gorm.DB,
	log *slog.Logger,
	enableConcurrentWrites bool,
) DBI {
	if log == nil {
		log = slog.Default()
	}
	d := &database{
		db:                     db,
		userCache:              map[string]*User{},
		userLocks:              map[string]*sync.Mutex{},
		logger:                 log.With(loggerNameKey, "writedb"),
		enableConcurrentWrites: enableConcurrentWrites,
	}
	return d
}

func (d *database) DB() *gorm.DB {
	return d.db
}

// userLock returns the mutex serializing transitions for the given
// user ID, creating it on first use. Contention scope is per-user only.
func (d *database) userLock(userID string) *sync.Mutex {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	lock := d.userLocks[userID]
	if lock == nil {
		lock = &sync.Mutex{}
		d.userLocks[userID] = lock
	}
	return lock
}

// LoadUsers primes the in-memory cache with all known [User] records.
func (d *database) LoadUsers() []User {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	d.userCache = map[string]*User{}

	var users []User
	_ = d.db.Find(&users)
	for i := 0; i < len(users); i++ {
		u := users[i]
		d.userCache[u.ID] = &u
	}
	return users
}

func (d *database) GetUser(userID string) *User {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	return d.userCache[userID]
}

func (d *database) ReloadUser(userID string) *User {
	d.cacheMu.Lock()
	defer d.cacheMu.Unlock()
	var user User
	if err := d.db.Where("id = ?", userID).Last(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			delete(d.userCache, userID)
		}
		return nil
	}
	d.userCache[userID] = &user

	return &user
}

// ApplyMessageEvent runs one progression transition with
// read-modify-write atomicity per user ID: the user's lock is held
// across the read, the pure transition, and the commit. The returned
// LevelUp is non-nil only when the commit succeeded and the level
// increased, so callers can announce it without re-checking.
func (d *database) ApplyMessageEvent(
	ctx context.Context,
	ev MessageEvent,
) (*User, *LevelUp, error) {
	lock := d.userLock(ev.UserID)
	lock.Lock()
	defer lock.Unlock()

	record := d.GetUser(ev.UserID)
	if record == nil {
		var u User
		err := d.db.WithContext(ctx).Where("id = ?", ev.UserID).Take(&u).Error
		switch {
		case err == nil:
			record = &u
		case errors.Is(err, gorm.ErrRecordNotFound):
			// first qualifying message from this user
		default:
			return nil, nil, fmt.Errorf("error loading user %s: %w", ev.UserID, err)
		}
	}

	next, levelUp := applyMessageEvent(record, ev)

	if record == nil {
		if _, err := d.Create(ctx, &next); err != nil {
			return nil, nil, fmt.Errorf("error creating user %s: %w", ev.UserID, err)
		}
		d.logger.InfoContext(ctx, "created new user", "user", &next)
	} else {
		updates := map[string]any{
			columnUserXP:           next.XP,
			columnUserLevel:        next.Level,
			columnUserMessageCount: next.MessageCount,
		}
		if _, err := d.Updates(ctx, &User{ID: next.ID}, updates); err != nil {
			return nil, nil, fmt.Errorf("error updating user %s: %w", ev.UserID, err)
		}
		if ev.Username != "" && record.userChangedDiscordUsername(
			discordgo.User{Username: ev.Username},
		) {
			// informational field, drift doesn't fail the transition
			if _, err := d.Update(
				ctx, &User{ID: next.ID}, columnUserUsername, next.Username,
			); err != nil {
				d.logger.WarnContext(
					ctx,
					"error updating username",
					tint.Err(err),
					"user", &next,
				)
			}
		}
	}

	d.cacheMu.Lock()
	d.userCache[next.ID] = &next
	d.cacheMu.Unlock()

	return &next, levelUp, nil
}

func (d *database) Create(ctx context.Context, value any, omit ...string) (
	rowsAffected int64,
	err error,
) {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	db := d.db
	_, ok := ctx.Deadline()
	if !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dbOperationTimeout)
		defer cancel()
	}
	db = db.WithContext(ctx)

	if len(omit) > 0 {
		rv := db.Omit(omit...).Create(value)
		return rv.RowsAffected, rv.Error
	}
	rv := db.Create(value)
	return rv.RowsAffected, rv.Error
}

func (d *database) Updates(ctx context.Context, model, values any) (
	rowsAffected int64,
	err error,
) {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	_, ok := ctx.Deadline()
	if !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dbOperationTimeout)
		defer cancel()
	}
	rv := d.db.WithContext(ctx).Model(model).Updates(values)
	return rv.RowsAffected, rv.Error
}

func (d *database) Update(
	ctx context.Context,
	model any,
	column string,
	value any,
) (rowsAffected int64, err error) {
	if !d.enableConcurrentWrites {
		d.mu.Lock()
		defer d.mu.Unlock()
	}
	_, ok := ctx.Deadline()
	if !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dbOperationTimeout)
		defer cancel()
	}

	rv := d.db.WithContext(ctx).Model(model).Update(column, value)
	return rv.RowsAffected, rv.Error
}

// DBI defines the interface for database operations. This is here primarily
// to enable mocking of the database operations for testing.
// [database] implements this interface for 'real' DB operations.
type DBI interface {
	DB() *gorm.DB
	LoadUsers() []User
	GetUser(userID string) *User
	ReloadUser(userID string) *User

	// ApplyMessageEvent commits one progression transition with
	// per-user read-modify-write atomicity
	ApplyMessageEvent(ctx context.Context, ev MessageEvent) (*User, *LevelUp, error)

	Create(ctx context.Context, value any, omit ...string) (rowsAffected int64, err error)
	Updates(ctx context.Context, model any, values any) (rowsAffected int64, err error)
	Update(ctx context.Context, model any, column string, value any) (
		rowsAffected int64,
		err error,
	)
}

// CreateDB initializes and returns a GORM database connection based on
// the configured database type, and migrates the bot's models. The
// configured database log level and slow-query threshold are applied to
// the connection's logger.
func CreateDB(ctx context.Context, config *Config) (*gorm.DB, error) {
	handler := tint.NewHandler(
		os.Stdout,
		&tint.Options{
			Level:     config.DatabaseLogLevel,
			AddSource: true,
		},
	)

	gormLogger := newGORMLogger(handler, config.DatabaseSlowThreshold)
	dbLogger := slog.New(handler)

	dbLogger.InfoContext(
		ctx,
		"Initializing database",
		"database_type", config.DatabaseType,
		"database", config.Database,
	)
	db, err := getDB(config.DatabaseType, config.Database, gormLogger)
	if err != nil {
		return db, err
	}

	txn := db.WithContext(ctx).Begin()

	mg := txn.Migrator()
	err = mg.AutoMigrate(
		&User{},
		&CommandLog{},
	)
	if err != nil {
		return db, err
	}

	if commitErr := txn.Commit().Error; commitErr != nil {
		return db, commitErr
	}

	return db, nil
}

// getDB initializes and returns a GORM database connection based on the
// specified database type.
func getDB(
	databaseType string,
	database string,
	gormLogger *gormStructuredLogger,
) (*gorm.DB, error) {
	switch databaseType {
	case dbTypeSQLite:
		parentDir := filepath.Dir(database)
		if parentDir != "" {
			if err := os.MkdirAll(parentDir, 0755); err != nil {
				if !errors.Is(err, os.ErrExist) {
					return nil, err
				}
			}
		}
		return gorm.Open(
			sqlite.Open(database),
			&gorm.Config{
				Logger: gormLogger,
				NowFunc: func() time.Time {
					return time.Now().UTC()
				},
			},
		)
	case dbTypePostgres:
		return gorm.Open(
			postgres.Open(database), &gorm.Config{
				Logger: gormLogger,
				NowFunc: func() time.Time {
					return time.Now().UTC()
				},
			},
		)
	default:
		return nil, fmt.Errorf(
			"unsupported database type: %s (must be %q or %q)",
			databaseType, dbTypeSQLite, dbTypePostgres,
		)
	}
}
