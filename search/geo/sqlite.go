package geo

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore serves zip and city lookups from a sqlite database, for
// deployments that ship full gazetteer tables instead of the built-ins.
//
// Expected schema:
//
//	CREATE TABLE zip_codes (zip TEXT PRIMARY KEY, lat REAL NOT NULL, lng REAL NOT NULL);
//	CREATE TABLE cities (alias TEXT PRIMARY KEY, name TEXT NOT NULL, lat REAL NOT NULL, lng REAL NOT NULL);
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens the gazetteer database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open geo database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping geo database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ResolveZip implements ZipResolver.
func (s *SQLiteStore) ResolveZip(zip string) (Point, bool) {
	var p Point
	err := s.db.QueryRow(`SELECT lat, lng FROM zip_codes WHERE zip = ?`, zip).Scan(&p.Lat, &p.Lng)
	if err != nil {
		return Point{}, false
	}
	return p, true
}

// ResolveCity implements CityResolver. Falls back to the built-in table when
// the database has no row for the alias.
func (s *SQLiteStore) ResolveCity(name string) (Point, bool) {
	var p Point
	err := s.db.QueryRow(`SELECT lat, lng FROM cities WHERE alias = lower(?)`, name).Scan(&p.Lat, &p.Lng)
	if err == nil {
		return p, true
	}
	if c, ok := LookupCity(name); ok {
		return c.Point, true
	}
	return Point{}, false
}

// Seed populates the gazetteer tables, creating them if needed. Used by the
// importer command and by tests.
func (s *SQLiteStore) Seed(zips map[string]Point, cities map[string]City) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS zip_codes (zip TEXT PRIMARY KEY, lat REAL NOT NULL, lng REAL NOT NULL);
		CREATE TABLE IF NOT EXISTS cities (alias TEXT PRIMARY KEY, name TEXT NOT NULL, lat REAL NOT NULL, lng REAL NOT NULL);
	`)
	if err != nil {
		return fmt.Errorf("create geo tables: %w", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for zip, p := range zips {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO zip_codes (zip, lat, lng) VALUES (?, ?, ?)`, zip, p.Lat, p.Lng); err != nil {
			return fmt.Errorf("seed zip %s: %w", zip, err)
		}
	}
	for alias, c := range cities {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO cities (alias, name, lat, lng) VALUES (lower(?), ?, ?, ?)`, alias, c.Name, c.Point.Lat, c.Point.Lng); err != nil {
			return fmt.Errorf("seed city %s: %w", alias, err)
		}
	}
	return tx.Commit()
}
