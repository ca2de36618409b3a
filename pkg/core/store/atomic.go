// Package store provides the persistence primitives shared by the index,
// the progress ledger and the ticker cache: crash-safe JSON files and an
// optional Postgres mirror.
package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// WriteJSON writes v as indented JSON to path. The data goes to a temp
// file in the same directory which is fsynced and renamed over path, so a
// crash leaves either the old file or the new one, never a partial write.
func WriteJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	bw := bufio.NewWriter(tmp)
	enc := json.NewEncoder(bw)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	// Best effort: persist the rename itself.
	_ = syncDir(dir)
	return nil
}

// ReadJSON decodes path into v. A missing file is not an error: found is
// false and v is untouched. A file that fails to decode (left behind by an
// older, non-atomic writer) is run through json-repair before giving up;
// repaired reports that v came from the salvaged text and may be missing
// whatever the damaged tail held.
func ReadJSON(path string, v any) (found, repaired bool, err error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err == nil {
		return true, false, nil
	} else if fixed, rerr := jsonrepair.RepairJSON(string(data)); rerr == nil {
		if err := json.Unmarshal([]byte(fixed), v); err == nil {
			return true, true, nil
		}
	}
	return true, false, fmt.Errorf("failed to decode %s: not valid JSON", path)
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
