package persist

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"pkt.systems/kryptograf"
	"pkt.systems/kryptograf/keymgmt"
	"pkt.systems/promptdeck/schema"
	"pkt.systems/pslog"
)

const descriptorPrefix = "promptdeck:state:"

// TabSnapshot captures one tab for persistence.
type TabSnapshot struct {
	ID   schema.TabID   `json:"id"`
	Data schema.TabData `json:"data"`
}

// WindowSnapshot captures one window for persistence.
type WindowSnapshot struct {
	ID        schema.WindowID `json:"id"`
	ActiveTab schema.TabID    `json:"active_tab_id"`
	Tabs      []TabSnapshot   `json:"tabs"`
}

// WorkspaceSnapshot captures a project's workspace state for persistence.
type WorkspaceSnapshot struct {
	Windows      []WindowSnapshot `json:"windows"`
	ActiveWindow schema.WindowID  `json:"active_window_id,omitempty"`
}

// RunLogSnapshot captures a project's scenario-run history for persistence.
type RunLogSnapshot struct {
	Targets      map[schema.TargetID]string                 `json:"targets,omitempty"`
	ScenarioSets map[schema.BatchRunID]schema.ScenarioSetID `json:"scenario_sets,omitempty"`
	Runs         []schema.ScenarioRun                       `json:"runs"`
}

// Store persists one JSON record per key to disk. Keys are opaque strings
// composed by callers (for example "<project>:workspace"); they are
// sanitized into file names. When encryption is enabled, records are
// sealed at rest with a per-key DEK minted from a kryptograf root key.
type Store struct {
	dir          string
	log          pslog.Logger
	keyStorePath string
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// EnableEncryption turns on at-rest encryption backed by the key store at
// the given path, creating it (and its root key) when missing.
func (s *Store) EnableEncryption(keyStorePath string) error {
	if strings.TrimSpace(keyStorePath) == "" {
		return errors.New("key store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(keyStorePath), 0o700); err != nil {
		return err
	}
	store, err := keymgmt.LoadProto(keyStorePath)
	if err != nil {
		if s.log != nil {
			s.log.Warn("state keystore load failed", "err", err)
		}
		return err
	}
	if _, err := store.EnsureRootKey(); err != nil {
		return err
	}
	if err := store.Commit(); err != nil {
		return err
	}
	s.keyStorePath = keyStorePath
	if s.log != nil {
		s.log.Info("state encryption enabled", "key_store", keyStorePath)
	}
	return nil
}

// LoadWorkspace reads a workspace snapshot for the key.
func (s *Store) LoadWorkspace(key string) (WorkspaceSnapshot, bool, error) {
	var snapshot WorkspaceSnapshot
	ok, err := s.load(key, &snapshot)
	return snapshot, ok, err
}

// SaveWorkspace writes a workspace snapshot for the key.
func (s *Store) SaveWorkspace(key string, snapshot WorkspaceSnapshot) error {
	return s.save(key, snapshot, len(snapshot.Windows))
}

// LoadRunLog reads a run-log snapshot for the key.
func (s *Store) LoadRunLog(key string) (RunLogSnapshot, bool, error) {
	var snapshot RunLogSnapshot
	ok, err := s.load(key, &snapshot)
	return snapshot, ok, err
}

// SaveRunLog writes a run-log snapshot for the key.
func (s *Store) SaveRunLog(key string, snapshot RunLogSnapshot) error {
	return s.save(key, snapshot, len(snapshot.Runs))
}

// Delete removes the persisted record for the key. Missing records are
// not an error; corrupted records are discarded through this path.
func (s *Store) Delete(key string) error {
	path := s.pathForKey(key)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if s.log != nil {
			s.log.Warn("state delete failed", "key", key, "err", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Debug("state delete ok", "key", key)
	}
	return nil
}

func (s *Store) load(key string, out any) (bool, error) {
	path := s.pathForKey(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("state load miss", "key", key)
			}
			return false, nil
		}
		if s.log != nil {
			s.log.Warn("state load failed", "key", key, "err", err)
		}
		return false, err
	}
	if s.keyStorePath != "" {
		data, err = s.open(key, data)
		if err != nil {
			if s.log != nil {
				s.log.Warn("state load failed", "key", key, "err", err)
			}
			return false, err
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		if s.log != nil {
			s.log.Warn("state load failed", "key", key, "err", err)
		}
		return false, err
	}
	if s.log != nil {
		s.log.Debug("state load ok", "key", key)
	}
	return true, nil
}

func (s *Store) save(key string, record any, size int) error {
	path := s.pathForKey(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return s.saveFailed(key, err)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return s.saveFailed(key, err)
	}
	if s.keyStorePath != "" {
		data, err = s.seal(key, data)
		if err != nil {
			return s.saveFailed(key, err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		return s.saveFailed(key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return s.saveFailed(key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return s.saveFailed(key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return s.saveFailed(key, err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return s.saveFailed(key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return s.saveFailed(key, err)
	}
	if s.log != nil {
		s.log.Trace("state save ok", "key", key, "records", size)
	}
	return nil
}

func (s *Store) saveFailed(key string, err error) error {
	if s.log != nil {
		s.log.Warn("state save failed", "key", key, "err", err)
	}
	return err
}

func (s *Store) seal(key string, plain []byte) ([]byte, error) {
	material, root, err := s.material(key)
	if err != nil {
		return nil, err
	}
	kg := kryptograf.New(root)
	var sealed bytes.Buffer
	writer, err := kg.EncryptWriter(&sealed, material)
	if err != nil {
		return nil, err
	}
	if _, err := writer.Write(plain); err != nil {
		_ = writer.Close()
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return sealed.Bytes(), nil
}

func (s *Store) open(key string, sealed []byte) ([]byte, error) {
	material, root, err := s.material(key)
	if err != nil {
		return nil, err
	}
	kg := kryptograf.New(root)
	reader, err := kg.DecryptReader(bytes.NewReader(sealed), material)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()
	return io.ReadAll(reader)
}

func (s *Store) material(key string) (keymgmt.Material, keymgmt.RootKey, error) {
	store, err := keymgmt.LoadProto(s.keyStorePath)
	if err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	root, err := store.EnsureRootKey()
	if err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	descName := descriptorPrefix + sanitize(key)
	material, err := store.EnsureDescriptor(descName, root, []byte(descName))
	if err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	if err := store.Commit(); err != nil {
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	return material, root, nil
}

func (s *Store) pathForKey(key string) string {
	name := sanitize(key)
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(s.dir, name+".json")
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
