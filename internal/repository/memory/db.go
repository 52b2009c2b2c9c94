// Package memory is a process-local backend implementing the same contracts
// as the SQL repositories. A single mutex serialises writers; WithinTx holds
// it for the whole unit and restores a snapshot when the unit fails.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/course-swap-api/internal/models"
)

// DB holds every table of the in-memory backend.
type DB struct {
	mu sync.RWMutex

	courses  map[string]*models.Course
	users    map[string]*models.User
	enrolled map[string]map[string]time.Time
	requests map[string]*swapRow
	audit    []models.AuditLog

	seq uint64
	now func() time.Time
}

type swapRow struct {
	request models.SwapRequest
	seq     uint64
}

// Option customises a DB.
type Option func(*DB)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(db *DB) {
		if now != nil {
			db.now = now
		}
	}
}

// New creates an empty in-memory database.
func New(opts ...Option) *DB {
	db := &DB{
		courses:  make(map[string]*models.Course),
		users:    make(map[string]*models.User),
		enrolled: make(map[string]map[string]time.Time),
		requests: make(map[string]*swapRow),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(db)
		}
	}
	return db
}

type snapshot struct {
	courses  map[string]*models.Course
	enrolled map[string]map[string]time.Time
	requests map[string]*swapRow
}

// snapshotLocked copies the tables an approval can touch. Caller holds mu.
func (db *DB) snapshotLocked() snapshot {
	snap := snapshot{
		courses:  make(map[string]*models.Course, len(db.courses)),
		enrolled: make(map[string]map[string]time.Time, len(db.enrolled)),
		requests: make(map[string]*swapRow, len(db.requests)),
	}
	for id, course := range db.courses {
		c := cloneCourse(*course)
		snap.courses[id] = &c
	}
	for userID, set := range db.enrolled {
		copied := make(map[string]time.Time, len(set))
		for courseID, at := range set {
			copied[courseID] = at
		}
		snap.enrolled[userID] = copied
	}
	for id, row := range db.requests {
		r := *row
		snap.requests[id] = &r
	}
	return snap
}

func (db *DB) restoreLocked(snap snapshot) {
	db.courses = snap.courses
	db.enrolled = snap.enrolled
	db.requests = snap.requests
}

func (db *DB) nextSeq() uint64 {
	db.seq++
	return db.seq
}

func cloneCourse(c models.Course) models.Course {
	if c.Schedule != nil {
		c.Schedule = append(models.WeeklySchedule(nil), c.Schedule...)
	}
	return c
}

func pageWindow(total, page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return start, end
}

func sortedKeys(set map[string]time.Time) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
