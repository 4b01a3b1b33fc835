// Package store persists profiles on disk and proxy bindings in buntdb.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stupside/facet/internal/fingerprint"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
	ErrInvalidName     = errors.New("invalid profile name")
)

const (
	configFile  = "config.json"
	userDataDir = "user-data"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]{0,63}$`)

// CustomSettings are per-profile overrides. Empty or "auto" values defer to
// the proxy geo data and then to the baseline.
type CustomSettings struct {
	Language         string `json:"language,omitempty"`
	UserAgent        string `json:"userAgent,omitempty"`
	Hardware         string `json:"hardware,omitempty"`
	ScreenResolution string `json:"screenResolution,omitempty"`
	TimezoneID       string `json:"timezoneId,omitempty"`
	Browser          string `json:"browser,omitempty"`
}

// Constraints turns the overrides into baseline generation constraints.
func (c CustomSettings) Constraints() fingerprint.Constraints {
	return fingerprint.Constraints{
		Hardware:         c.Hardware,
		ScreenResolution: c.ScreenResolution,
		Language:         c.Language,
		UserAgent:        c.UserAgent,
		TimezoneID:       c.TimezoneID,
	}
}

// Profile is the record kept in <dir>/<name>/config.json.
type Profile struct {
	ID             string                `json:"id" validate:"required"`
	Name           string                `json:"name" validate:"required"`
	CreatedAt      time.Time             `json:"createdAt"`
	ProxyName      *string               `json:"proxyName"`
	Fingerprint    *fingerprint.Baseline `json:"fingerprint"`
	CustomSettings CustomSettings        `json:"customSettings"`
}

// ProfileStore keeps one directory per profile.
type ProfileStore struct {
	dir      string
	validate *validator.Validate
}

// OpenProfileStore creates dir when needed.
func OpenProfileStore(dir string) (*ProfileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating profiles directory %s: %w", dir, err)
	}
	return &ProfileStore{dir: dir, validate: validator.New()}, nil
}

// Dir returns the root directory of the store.
func (s *ProfileStore) Dir() string { return s.dir }

// CheckName rejects names that cannot be used as a directory name.
func CheckName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// UserDataDir is the persistent browser storage of a profile, reused across
// launches.
func (s *ProfileStore) UserDataDir(name string) string {
	return filepath.Join(s.dir, name, userDataDir)
}

func (s *ProfileStore) configPath(name string) string {
	return filepath.Join(s.dir, name, configFile)
}

// Create generates the baseline from the custom settings and writes the new
// profile. The baseline is generated here and nowhere else.
func (s *ProfileStore) Create(name string, proxyName *string, custom CustomSettings) (*Profile, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	if _, err := os.Stat(s.configPath(name)); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileExists, name)
	}

	baseline, err := fingerprint.Generate(custom.Constraints())
	if err != nil {
		return nil, fmt.Errorf("generating fingerprint for %s: %w", name, err)
	}

	p := &Profile{
		ID:             uuid.NewString(),
		Name:           name,
		CreatedAt:      time.Now().UTC(),
		ProxyName:      proxyName,
		Fingerprint:    baseline,
		CustomSettings: custom,
	}

	if err := os.MkdirAll(s.UserDataDir(name), 0o755); err != nil {
		return nil, fmt.Errorf("creating profile directory: %w", err)
	}
	if err := s.write(p); err != nil {
		return nil, err
	}

	slog.Info("profile created",
		"profile", name,
		"id", p.ID,
		"hardware", baseline.Hardware.ID,
		"resolution", baseline.Screen.Resolution(),
	)
	return p, nil
}

// Get reads a profile. A missing config is ErrProfileNotFound; a config that
// does not parse or whose baseline is malformed wraps fingerprint.ErrInvalid.
func (s *ProfileStore) Get(name string) (*Profile, error) {
	if err := CheckName(name); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	data, err := os.ReadFile(s.configPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", name, err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: profile %s: %w", fingerprint.ErrInvalid, name, err)
	}
	if err := fingerprint.Validate(p.Fingerprint); err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, err)
	}
	// The directory name is authoritative.
	p.Name = name
	return &p, nil
}

// List returns the names of every directory holding a config, sorted.
func (s *ProfileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}

	names := []string{}
	for _, e := range entries {
		if !e.IsDir() || CheckName(e.Name()) != nil {
			continue
		}
		if _, err := os.Stat(s.configPath(e.Name())); err != nil {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// Update loads the profile, lets fn mutate it and writes it back. The id,
// name and creation time cannot be changed through fn.
func (s *ProfileStore) Update(name string, fn func(*Profile) error) (*Profile, error) {
	p, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	id, createdAt := p.ID, p.CreatedAt

	if err := fn(p); err != nil {
		return nil, err
	}
	p.ID, p.Name, p.CreatedAt = id, name, createdAt

	if err := fingerprint.Validate(p.Fingerprint); err != nil {
		return nil, err
	}
	if err := s.write(p); err != nil {
		return nil, err
	}
	slog.Info("profile updated", "profile", name)
	return p, nil
}

// Delete removes the profile directory, browser storage included.
func (s *ProfileStore) Delete(name string) error {
	if _, err := s.Get(name); err != nil && errors.Is(err, ErrProfileNotFound) {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("deleting profile %s: %w", name, err)
	}
	slog.Info("profile deleted", "profile", name)
	return nil
}

// write replaces config.json atomically.
func (s *ProfileStore) write(p *Profile) error {
	if err := s.validate.Struct(p); err != nil {
		return fmt.Errorf("validating profile: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling profile %s: %w", p.Name, err)
	}

	dir := filepath.Join(s.dir, p.Name)
	tmp, err := os.CreateTemp(dir, configFile+".*")
	if err != nil {
		return fmt.Errorf("writing profile %s: %w", p.Name, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing profile %s: %w", p.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing profile %s: %w", p.Name, err)
	}
	if err := os.Rename(tmp.Name(), s.configPath(p.Name)); err != nil {
		return fmt.Errorf("writing profile %s: %w", p.Name, err)
	}
	return nil
}
