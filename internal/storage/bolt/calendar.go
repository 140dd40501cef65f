// Package bolt keeps the holiday calendar in an embedded BoltDB file so it
// survives restarts without a database round trip per deadline.
package bolt

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	boltdb "github.com/boltdb/bolt"

	"github.com/dealmatch/groupbuy/services/api/internal/clock"
	"github.com/dealmatch/groupbuy/services/api/internal/domain"
)

const holidaysBucket = "holidays"

// CalendarStore persists holidays keyed by YYYY-MM-DD. Reads are served
// from an in-memory copy refreshed on every write, so IsHoliday never
// touches the file.
type CalendarStore struct {
	db *boltdb.DB

	mu    sync.RWMutex
	dates map[clock.Date]string
}

// Open opens (or creates) the calendar file at path and loads it.
func Open(path string) (*CalendarStore, error) {
	db, err := boltdb.Open(path, 0600, &boltdb.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open calendar: %w", err)
	}

	s := &CalendarStore{db: db, dates: make(map[clock.Date]string)}
	err = db.Update(func(tx *boltdb.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(holidaysBucket))
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			d, err := clock.ParseDate(string(k))
			if err != nil {
				return err
			}
			s.dates[d] = string(v)
			return nil
		})
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load calendar: %w", err)
	}
	return s, nil
}

func (s *CalendarStore) Close() error {
	return s.db.Close()
}

func (s *CalendarStore) IsHoliday(d clock.Date) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.dates[d]
	return ok
}

// AddHoliday stores d. Re-adding a date replaces its name.
func (s *CalendarStore) AddHoliday(d clock.Date, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *boltdb.Tx) error {
		return tx.Bucket([]byte(holidaysBucket)).Put([]byte(d.String()), []byte(name))
	})
	if err != nil {
		return fmt.Errorf("add holiday: %w", err)
	}
	s.dates[d] = name
	return nil
}

// RemoveHoliday deletes d. Removing an unknown date is not an error.
func (s *CalendarStore) RemoveHoliday(d clock.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *boltdb.Tx) error {
		return tx.Bucket([]byte(holidaysBucket)).Delete([]byte(d.String()))
	})
	if err != nil {
		return fmt.Errorf("remove holiday: %w", err)
	}
	delete(s.dates, d)
	return nil
}

// ListHolidays returns the holidays of year in date order.
func (s *CalendarStore) ListHolidays(year int) ([]clock.Holiday, error) {
	if year < 1 || year > 9999 {
		return nil, domain.ErrInvalidConfig.Withf("invalid year %d", year)
	}
	prefix := []byte(fmt.Sprintf("%04d-", year))

	holidays := []clock.Holiday{}
	err := s.db.View(func(tx *boltdb.Tx) error {
		c := tx.Bucket([]byte(holidaysBucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			d, err := clock.ParseDate(string(k))
			if err != nil {
				return err
			}
			holidays = append(holidays, clock.Holiday{Date: d, Name: string(v)})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holidays, nil
}
