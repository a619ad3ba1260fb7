package main

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CanonicalJSON renders any value in the canonical report form: sorted
// keys, two-space indent, trailing LF. Reports and the split assignment
// are hashed over these bytes, so the form must never drift.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	// Round-trip through an untyped value so keys come out sorted
	// regardless of struct field order.
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	out, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("indent: %w", err)
	}
	return append(out, '\n'), nil
}

// WriteJSON writes a value to path in canonical form, creating parent
// directories as needed.
func WriteJSON(path string, v any) error {
	data, err := CanonicalJSON(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// WriteItemsJSONL writes items as line-delimited records, one compact
// JSON object per line.
func WriteItemsJSONL(path string, items []Item) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, it := range items {
		line, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("marshal item %s: %w", it.CandidateID, err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	return w.Flush()
}

func ReadItemsJSONL(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var items []Item
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var it Item
		if err := json.Unmarshal([]byte(line), &it); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		items = append(items, it)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return items, nil
}

// SHA256Hex digests content to lowercase fixed-width hex.
func SHA256Hex(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func FileSHA256(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return SHA256Hex(data), nil
}

// assignmentDigest hashes the canonical form of the split map. Re-runs
// over the same pool and caps reproduce this digest exactly.
func assignmentDigest(splits map[string][]string) string {
	data, err := CanonicalJSON(splits)
	if err != nil {
		// A map of string slices always marshals.
		panic(err)
	}
	return SHA256Hex(data)
}

// Lockfile is the release integrity manifest: one digest per shipped
// file, grouped by role.
type Lockfile struct {
	Reports   map[string]string `json:"reports"`
	Splits    map[string]string `json:"splits"`
	Artifacts map[string]string `json:"artifacts"`
}

// BuildLockfile digests the named files. Paths are grouped by role; map
// keys are base names.
func BuildLockfile(reports []string, splitsPath string, artifacts []string) (Lockfile, error) {
	lock := Lockfile{
		Reports:   make(map[string]string),
		Splits:    make(map[string]string),
		Artifacts: make(map[string]string),
	}
	for _, p := range reports {
		digest, err := FileSHA256(p)
		if err != nil {
			return Lockfile{}, err
		}
		lock.Reports[filepath.Base(p)] = digest
	}
	digest, err := FileSHA256(splitsPath)
	if err != nil {
		return Lockfile{}, err
	}
	lock.Splits[filepath.Base(splitsPath)] = digest
	for _, p := range artifacts {
		d, err := FileSHA256(p)
		if err != nil {
			return Lockfile{}, err
		}
		lock.Artifacts[filepath.Base(p)] = d
	}
	return lock, nil
}

// VerifyPoolIntegrity checks the packaged pool's global invariants:
// minimum total size, quota per present stratum, and presence of every
// declared stratum. Violations are returned as LOCK_ERR lines.
func VerifyPoolIntegrity(items []Item) []string {
	var problems []string
	if len(items) < 70 {
		problems = append(problems, fmt.Sprintf("LOCK_ERR: Expected at least 70 items, got %d", len(items)))
	}
	groups := GroupByStratum(items)
	for _, key := range SortedStratumKeys(groups) {
		if len(groups[key]) < stratumQuota {
			problems = append(problems, fmt.Sprintf("LOCK_ERR: Stratum %s has %d items, expected at least %d", key, len(groups[key]), stratumQuota))
		}
	}
	for _, st := range DeclaredStrata() {
		if _, ok := groups[st.Key()]; !ok {
			problems = append(problems, fmt.Sprintf("LOCK_ERR: Missing stratum %s", st.Key()))
		}
	}
	return problems
}
