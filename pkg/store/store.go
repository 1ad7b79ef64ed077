// Package store persists the mapping file: the per-provider account
// collections and the mapping entries joining them.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/vpnda/akahu-sync/pkg/models"
)

var (
	// ErrMissingFile is returned by Load when the mapping file does not exist.
	ErrMissingFile = errors.New("mapping file not found")
	// ErrSchema is returned when the mapping file cannot be parsed or lacks a required key.
	ErrSchema = errors.New("invalid mapping file")
)

const seqKey = "seq"

// Store reads and writes the mapping file at a fixed path.
type Store struct {
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the mapping file.
func (s *Store) Load() (*models.State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, s.path)
		}
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}
	return Decode(data)
}

// Bootstrap returns an empty state, used when starting without a mapping file.
func (s *Store) Bootstrap() *models.State {
	log.Info().Str("path", s.path).Msg("starting with an empty mapping")
	return models.NewState()
}

// Save writes the state to disk. Errors are logged and reported as false; a
// failed save never leaves a partially written file behind.
func (s *Store) Save(state *models.State) bool {
	data, err := Encode(state)
	if err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("Refusing to save mapping")
		return false
	}
	if err := writeAtomic(s.path, data); err != nil {
		log.Error().Err(err).Str("path", s.path).Msg("Failed to save mapping")
		return false
	}
	log.Info().Str("path", s.path).Int("entries", len(state.Mapping)).Msg("Mapping saved")
	return true
}

// Decode parses a mapping file.
func Decode(data []byte) (*models.State, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if missing := missingKeys(raw); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing keys %v", ErrSchema, missing)
	}

	state := models.NewState()
	for _, p := range models.AllProviders {
		var as models.Accounts
		if err := json.Unmarshal(raw[p.AccountsKey()], &as); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSchema, p.AccountsKey(), err)
		}
		state.Accounts[p] = as
	}
	var mapping models.Mapping
	if err := json.Unmarshal(raw[models.MappingKey], &mapping); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSchema, models.MappingKey, err)
	}
	state.Mapping = mapping
	return state, nil
}

// Encode serializes the state with transient seq values stripped and the
// required keys checked, indented by four spaces.
func Encode(state *models.State) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("%w: nil state", ErrSchema)
	}
	doc := make(map[string]any, len(models.AllProviders)+1)
	for _, p := range models.AllProviders {
		doc[p.AccountsKey()] = state.For(p)
	}
	mapping := state.Mapping
	if mapping == nil {
		mapping = models.Mapping{}
	}
	doc[models.MappingKey] = mapping

	first, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode mapping: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(first))
	dec.UseNumber()
	var generic map[string]any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("failed to re-read encoded mapping: %w", err)
	}
	cleaned, _ := RemoveSeq(generic).(map[string]any)

	if missing := missingKeys(cleaned); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing keys %v", ErrSchema, missing)
	}
	out, err := json.MarshalIndent(cleaned, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode mapping: %w", err)
	}
	return append(out, '\n'), nil
}

// RemoveSeq returns a copy of v with every "seq" key removed at any depth.
func RemoveSeq(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if k == seqKey {
				continue
			}
			out[k] = RemoveSeq(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = RemoveSeq(val)
		}
		return out
	default:
		return v
	}
}

func missingKeys[V any](doc map[string]V) []string {
	var missing []string
	for _, k := range models.RequiredKeys() {
		if _, ok := doc[k]; !ok {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return missing
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace mapping file: %w", err)
	}
	return nil
}
