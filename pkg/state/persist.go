package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/meshwire/wgmesh/pkg/meshapi"
	"github.com/meshwire/wgmesh/pkg/model"
)

// atomicWrite serializes doc as pretty JSON and replaces path with it via
// write-temp → fsync → rename → best-effort directory fsync, so a reader
// never observes anything but the full prior document or the full new one.
func atomicWrite(path string, doc model.PersistedState) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return meshapi.Wrap(meshapi.KindInternal, "marshal state", err)
	}

	dir := filepath.Dir(path)
	tmpPath := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return meshapi.Wrap(meshapi.KindInternal, "create temp state file", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return meshapi.Wrap(meshapi.KindInternal, "write temp state file", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return meshapi.Wrap(meshapi.KindInternal, "fsync temp state file", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return meshapi.Wrap(meshapi.KindInternal, "close temp state file", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return meshapi.Wrap(meshapi.KindInternal, "rename temp state file into place", err)
	}

	if dirFile, err := os.Open(dir); err == nil {
		_ = dirFile.Sync()
		_ = dirFile.Close()
	}

	return nil
}
