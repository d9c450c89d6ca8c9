// Package prefs persists user preferences in a TOML file.
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Map base layers.
const (
	MapStyleOpenStreetMap = "OpenStreetMap"
	MapStyleCartoLight    = "CartoDB Light Gray"
)

var tileURLs = map[string]string{
	MapStyleOpenStreetMap: "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
	MapStyleCartoLight:    "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}.png",
}

// NormalizeMapStyle returns style if it is known, otherwise OpenStreetMap.
func NormalizeMapStyle(style string) string {
	if _, ok := tileURLs[style]; ok {
		return style
	}
	return MapStyleOpenStreetMap
}

// TileURL returns the tile URL template for a style.
func TileURL(style string) string {
	return tileURLs[NormalizeMapStyle(style)]
}

// Preferences are the persisted user choices.
type Preferences struct {
	MapStyle string `toml:"map_style"`
	UseCache bool   `toml:"use_cache"`
}

// Defaults returns the preferences used before anything is saved.
func Defaults() Preferences {
	return Preferences{MapStyle: MapStyleOpenStreetMap, UseCache: true}
}

// Store reads and writes Preferences at a file path.
type Store struct {
	mu    sync.RWMutex
	path  string
	prefs Preferences
}

// DefaultPath returns ~/.floodmap/prefs.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".floodmap", "prefs.toml"), nil
}

// Open loads the store at path, creating its directory. A missing file
// yields Defaults. An empty path means DefaultPath.
func Open(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve prefs path: %w", err)
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create prefs dir: %w", err)
	}

	s := &Store{path: path, prefs: Defaults()}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Load re-reads the file. Keys absent from the file keep their defaults.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.prefs = Defaults()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read prefs: %w", err)
	}

	loaded := Defaults()
	if err := toml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parse prefs %s: %w", s.path, err)
	}
	loaded.MapStyle = NormalizeMapStyle(loaded.MapStyle)
	s.prefs = loaded
	return nil
}

// Get returns the current preferences.
func (s *Store) Get() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prefs
}

// SetMapStyle stores a map style. Unknown names are saved as
// OpenStreetMap. It returns the stored name.
func (s *Store) SetMapStyle(style string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.MapStyle = NormalizeMapStyle(style)
	return s.prefs.MapStyle, s.save()
}

// SetUseCache stores the cache toggle.
func (s *Store) SetUseCache(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs.UseCache = enabled
	return s.save()
}

// save writes the file. Callers hold mu.
func (s *Store) save() error {
	data, err := toml.Marshal(s.prefs)
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}
