package database

import (
	"github.com/tidwall/buntdb"
)

// Database persists scraping sessions (cookie jars plus the identity they
// were built with) in an embedded buntdb store, so a cleared challenge
// survives process restarts.
type Database struct {
	path string
	db   *buntdb.DB
}

func NewDatabase(path string) (*Database, error) {
	var err error
	d := &Database{
		path: path,
	}

	d.db, err = buntdb.Open(path)
	if err != nil {
		return nil, err
	}

	d.sessionsInit()

	d.db.Shrink()
	return d, nil
}

// SaveSession writes or overwrites the named session record.
func (d *Database) SaveSession(name string, cookies map[string]string, identity string, useragent string) error {
	return d.sessionsSave(name, cookies, identity, useragent)
}

// LoadSession returns the named session record, or nil when no session by
// that name has ever been saved - a missing record is not an error.
func (d *Database) LoadSession(name string) (*Session, error) {
	s, err := d.sessionsGet(name)
	if err == buntdb.ErrNotFound {
		return nil, nil
	}
	return s, err
}

// DeleteSession removes the named session record if present.
func (d *Database) DeleteSession(name string) error {
	err := d.sessionsDelete(name)
	if err == buntdb.ErrNotFound {
		return nil
	}
	return err
}

// ListSessions returns all stored session records.
func (d *Database) ListSessions() ([]*Session, error) {
	return d.sessionsList()
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) Flush() {
	d.db.Shrink()
}
