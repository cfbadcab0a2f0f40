package database

import (
	"encoding/json"
	"time"

	"github.com/tidwall/buntdb"
)

const SessionTable = "sessions"

// Session is one persisted scraping session.
type Session struct {
	Name       string            `json:"name"`
	Cookies    map[string]string `json:"cookies"`
	Identity   string            `json:"identity"`
	UserAgent  string            `json:"useragent"`
	CreateTime int64             `json:"create_time"`
	UpdateTime int64             `json:"update_time"`
}

func (d *Database) sessionsInit() {
	d.db.CreateIndex("sessions_name", SessionTable+":*", buntdb.IndexJSON("name"))
}

func (d *Database) genIndex(table string, name string) string {
	return table + ":" + name
}

func (d *Database) sessionsSave(name string, cookies map[string]string, identity string, useragent string) error {
	now := time.Now().UTC().Unix()

	s, err := d.sessionsGet(name)
	if err != nil {
		s = &Session{
			Name:       name,
			CreateTime: now,
		}
	}
	if cookies == nil {
		cookies = make(map[string]string)
	}
	s.Cookies = cookies
	s.Identity = identity
	s.UserAgent = useragent
	s.UpdateTime = now

	jf, err := json.Marshal(s)
	if err != nil {
		return err
	}

	return d.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(d.genIndex(SessionTable, name), string(jf), nil)
		return err
	})
}

func (d *Database) sessionsGet(name string) (*Session, error) {
	var s *Session
	err := d.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(d.genIndex(SessionTable, name))
		if err != nil {
			return err
		}
		s = &Session{}
		return json.Unmarshal([]byte(val), s)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (d *Database) sessionsDelete(name string) error {
	return d.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(d.genIndex(SessionTable, name))
		return err
	})
}

func (d *Database) sessionsList() ([]*Session, error) {
	sessions := []*Session{}
	err := d.db.View(func(tx *buntdb.Tx) error {
		tx.Ascend("sessions_name", func(key, val string) bool {
			s := &Session{}
			if err := json.Unmarshal([]byte(val), s); err == nil {
				sessions = append(sessions, s)
			}
			return true
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
