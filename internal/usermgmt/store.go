package usermgmt

import (
	"encoding/json"
	"os"
)

// load reads the JSON file into memory. Callers hold no lock; load only
// runs from Open before the database is shared.
func (db *DB) load() error {
	data, err := os.ReadFile(db.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &db.users)
}

// save writes the database to disk atomically: temp file first, then rename
// over the real one. Callers hold the write lock.
func (db *DB) save() error {
	data, err := json.MarshalIndent(db.users, "", "  ")
	if err != nil {
		return err
	}

	tmp := db.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmp, db.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
