package sync

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// Property keys of the persisted configuration.
const (
	PropertyJiraURL         = "jiraUrl"
	PropertyJiraEmail       = "jiraEmail"
	PropertyJiraAPIToken    = "jiraApiToken"
	PropertyTabSettings     = "tabSettings"
	PropertyColumnMapping   = "columnMapping"
	PropertyTicketTemplates = "ticketTemplates"
)

// PropertyStore is a flat key-value store of string properties.
type PropertyStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Keys() ([]string, error)
}

type MemoryPropertyStore struct {
	values map[string]string
}

func NewMemoryPropertyStore() *MemoryPropertyStore {
	return &MemoryPropertyStore{values: make(map[string]string)}
}

func (m *MemoryPropertyStore) Get(key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryPropertyStore) Set(key, value string) error {
	m.values[key] = value
	return nil
}

func (m *MemoryPropertyStore) Delete(key string) error {
	delete(m.values, key)
	return nil
}

func (m *MemoryPropertyStore) Keys() ([]string, error) {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// SQLitePropertyStore keeps properties in a single SQLite table.
type SQLitePropertyStore struct {
	db *sql.DB
}

const propertiesSchema = `
CREATE TABLE IF NOT EXISTS properties (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// OpenSQLitePropertyStore opens (and if needed creates) the property database at path.
func OpenSQLitePropertyStore(path string) (*SQLitePropertyStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open property store %w", err)
	}
	// a single writer at a time
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to property store %w", err)
	}
	if _, err := db.Exec(propertiesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create properties table %w", err)
	}
	return &SQLitePropertyStore{db: db}, nil
}

func (s *SQLitePropertyStore) Close() error {
	return s.db.Close()
}

func (s *SQLitePropertyStore) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM properties WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read property %s %w", key, err)
	}
	return value, true, nil
}

func (s *SQLitePropertyStore) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO properties (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write property %s %w", key, err)
	}
	return nil
}

func (s *SQLitePropertyStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM properties WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete property %s %w", key, err)
	}
	return nil
}

func (s *SQLitePropertyStore) Keys() ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM properties ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list properties %w", err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// SettingsStore translates between the property store and a Configuration.
type SettingsStore struct {
	Properties PropertyStore
}

// Load reads the whole configuration. Missing properties load as empty values; a column mapping
// with an unknown target fails with ErrInvalidMapping.
func (s SettingsStore) Load() (Configuration, error) {
	result := Configuration{
		Settings:  Settings{Tabs: make(map[string]TabSettings)},
		Mapping:   make(ColumnMapping),
		Templates: make(map[string]TicketTemplate),
	}
	get := func(key string) (string, error) {
		v, _, err := s.Properties.Get(key)
		return v, err
	}

	var err error
	conn := &result.Settings.Connection
	if conn.BaseURL, err = get(PropertyJiraURL); err != nil {
		return result, err
	}
	conn.BaseURL = strings.TrimRight(conn.BaseURL, "/")
	if conn.AccountEmail, err = get(PropertyJiraEmail); err != nil {
		return result, err
	}
	if conn.APIToken, err = get(PropertyJiraAPIToken); err != nil {
		return result, err
	}

	if raw, err := get(PropertyTabSettings); err != nil {
		return result, err
	} else if raw != "" {
		if err := json.Unmarshal([]byte(raw), &result.Settings.Tabs); err != nil {
			return result, fmt.Errorf("failed to read %s %w", PropertyTabSettings, err)
		}
	}

	if raw, err := get(PropertyColumnMapping); err != nil {
		return result, err
	} else if raw != "" {
		mapping, err := ParseColumnMapping([]byte(raw))
		if err != nil {
			return result, fmt.Errorf("failed to read %s %w", PropertyColumnMapping, err)
		}
		result.Mapping = mapping
	}

	if raw, err := get(PropertyTicketTemplates); err != nil {
		return result, err
	} else if raw != "" {
		if err := json.Unmarshal([]byte(raw), &result.Templates); err != nil {
			return result, fmt.Errorf("failed to read %s %w", PropertyTicketTemplates, err)
		}
	}

	// a stored "null" decodes to a nil map
	if result.Settings.Tabs == nil {
		result.Settings.Tabs = make(map[string]TabSettings)
	}
	if result.Templates == nil {
		result.Templates = make(map[string]TicketTemplate)
	}
	return result, nil
}

// Save overwrites every property with the configuration's values.
func (s SettingsStore) Save(c Configuration) error {
	conn := c.Settings.Connection
	values := map[string]interface{}{
		PropertyTabSettings:     c.Settings.Tabs,
		PropertyColumnMapping:   c.Mapping,
		PropertyTicketTemplates: c.Templates,
	}
	for _, kv := range [][2]string{
		{PropertyJiraURL, strings.TrimRight(conn.BaseURL, "/")},
		{PropertyJiraEmail, conn.AccountEmail},
		{PropertyJiraAPIToken, conn.APIToken},
	} {
		if err := s.Properties.Set(kv[0], kv[1]); err != nil {
			return err
		}
	}
	for key, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s %w", key, err)
		}
		if err := s.Properties.Set(key, string(b)); err != nil {
			return err
		}
	}
	return nil
}

// Update loads the configuration, applies fn and saves the result.
func (s SettingsStore) Update(fn func(c *Configuration) error) error {
	c, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(&c); err != nil {
		return err
	}
	return s.Save(c)
}
