package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const profileFileName = "profile.json"

// Profile is the persisted user profile.
type Profile struct {
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	RiskAppetite string    `json:"risk_appetite"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	SessionCount int       `json:"session_count"`
}

// Onboarded reports whether the user has completed onboarding.
func (p Profile) Onboarded() bool {
	return p.Name != ""
}

// Manager loads and saves the user profile. Writes go through a temp file
// followed by a rename so a crash never leaves a truncated profile.
type Manager struct {
	path  string
	mu    sync.RWMutex
	clock func() time.Time
}

type managerOptions struct {
	profilePath string
	clock       func() time.Time
}

type ManagerOption func(*managerOptions)

func NewManager(opts ...ManagerOption) (*Manager, error) {
	options := managerOptions{
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}

	profilePath := options.profilePath
	if profilePath == "" {
		profilePath = filepath.Join(".clarence", profileFileName)
	}

	if err := os.MkdirAll(filepath.Dir(profilePath), 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	return &Manager{
		path:  profilePath,
		clock: options.clock,
	}, nil
}

func (m *Manager) Path() string {
	return m.path
}

// NewProfile returns an unsaved profile with a fresh user id and the
// medium risk appetite.
func (m *Manager) NewProfile() Profile {
	now := m.clock()
	return Profile{
		UserID:       uuid.NewString(),
		RiskAppetite: "medium",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// LoadOrCreate reads the profile from disk. A missing file yields a fresh
// default profile that is not written until Save is called.
func (m *Manager) LoadOrCreate() (Profile, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var p Profile
	if err := loadProfileFromFile(m.path, &p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return m.NewProfile(), false, nil
		}
		return Profile{}, false, fmt.Errorf("load profile: %w", err)
	}
	if p.UserID == "" {
		p.UserID = uuid.NewString()
	}
	if p.RiskAppetite == "" {
		p.RiskAppetite = "medium"
	}
	return p, true, nil
}

// Save stamps UpdatedAt and persists the profile.
func (m *Manager) Save(p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.UpdatedAt = m.clock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}
	return writeProfileFile(m.path, *p)
}

func loadProfileFromFile(path string, p *Profile) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("parse profile json: %w", err)
	}
	return nil
}

func writeProfileFile(path string, p Profile) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), "profile-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp profile: %w", err)
	}
	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&p); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("flush profile: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpFile.Name())
		return fmt.Errorf("close temp profile: %w", err)
	}
	return os.Rename(tmpFile.Name(), path)
}

func WithProfileDir(dir string) ManagerOption {
	return func(o *managerOptions) {
		if dir == "" {
			return
		}
		o.profilePath = filepath.Join(dir, profileFileName)
	}
}

func WithProfilePath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.profilePath = path
		}
	}
}

func WithClock(clock func() time.Time) ManagerOption {
	return func(o *managerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}
