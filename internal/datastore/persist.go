package datastore

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"gtd/internal/utils"
	"gtd/internal/xmlfile"
)

// tempSuffix marks the previous data file while a save is in progress.
const tempSuffix = "__"

// errEmptyFile is the cause reported when a save leaves an empty file.
var errEmptyFile = errors.New("file is empty after write")

// BackupDir returns the directory holding the backups of path.
func BackupDir(path string) string {
	return filepath.Join(filepath.Dir(path), "backup")
}

// BackupName returns the path of backup generation i of path.
func BackupName(path string, i int) string {
	return filepath.Join(BackupDir(path), fmt.Sprintf("%s.bak.%d", filepath.Base(path), i))
}

// DailyBackupName returns the path of the backup for the given day.
func DailyBackupName(path, day string) string {
	return filepath.Join(BackupDir(path), fmt.Sprintf("%s.%s.bak", filepath.Base(path), day))
}

// LoadFile parses path and replaces the in-memory stores. On any error the
// current stores are left untouched.
func (d *Datastore) LoadFile(path string) error {
	done := utils.Timed("Loaded %s", path)

	f, err := d.fs.Open(path)
	if err != nil {
		return utils.IOFailure("open", path, err)
	}
	defer f.Close()

	stores, err := xmlfile.Decode(f, d.tagOpts...)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	d.mu.Lock()
	d.tasks = stores.Tasks
	d.tags = stores.Tags
	d.searches = stores.Searches
	d.path = path
	d.mu.Unlock()

	done()
	return nil
}

// SaveFile writes the stores to path. The previous file is kept as
// path+"__" until the new one is verified; if writing fails it is moved
// back, or left in place when that is not possible. After a successful save
// the backups are rotated.
func (d *Datastore) SaveFile(path string) error {
	done := utils.Timed("Saved %s", path)

	var buf bytes.Buffer
	d.mu.RLock()
	err := xmlfile.Encode(&buf, d.tasks, d.tags, d.searches)
	d.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if err := d.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return utils.IOFailure("create directory for", path, err)
	}

	temp := path + tempSuffix
	hadPrevious, err := afero.Exists(d.fs, path)
	if err != nil {
		return utils.IOFailure("stat", path, err)
	}
	if err := d.keepStaleTemp(temp); err != nil {
		return err
	}
	if hadPrevious {
		if err := d.fs.Rename(path, temp); err != nil {
			return utils.IOFailure("move aside", path, err)
		}
	}

	if err := afero.WriteFile(d.fs, path, buf.Bytes(), 0o644); err != nil {
		utils.Errorf("Could not write data file at %s: %v", path, err)
		d.restoreTemp(path, hadPrevious)
		return utils.IOFailure("write", path, err)
	}

	if info, err := d.fs.Stat(path); err != nil || info.Size() == 0 {
		if err == nil {
			err = errEmptyFile
		}
		utils.Errorf("Data file at %s failed verification: %v", path, err)
		d.restoreTemp(path, hadPrevious)
		return utils.IOFailure("verify", path, err)
	}

	if hadPrevious {
		if err := d.fs.Remove(temp); err != nil && !errors.Is(err, fs.ErrNotExist) {
			utils.Warnf("Could not remove %s: %v", temp, err)
		}
	}

	d.mu.Lock()
	d.path = path
	d.mu.Unlock()

	if err := d.WriteBackups(path); err != nil {
		utils.Warnf("Backups of %s not written: %v", path, err)
	}
	done()
	return nil
}

// keepStaleTemp moves a temp file left by an earlier failed save to a
// timestamped name. It may hold the last good data, so it is never
// overwritten.
func (d *Datastore) keepStaleTemp(temp string) error {
	stale, err := afero.Exists(d.fs, temp)
	if err != nil {
		return utils.IOFailure("stat", temp, err)
	}
	if !stale {
		return nil
	}
	kept := temp + "." + d.clock().Format("20060102T150405")
	if err := d.fs.Rename(temp, kept); err != nil {
		return utils.IOFailure("move aside", temp, err)
	}
	utils.Warnf("Earlier data file %s kept as %s", temp, kept)
	return nil
}

// restoreTemp puts the previous file back after a failed save. The temp
// file is never deleted here.
func (d *Datastore) restoreTemp(path string, hadPrevious bool) {
	if !hadPrevious {
		return
	}
	if err := d.fs.Rename(path+tempSuffix, path); err != nil {
		utils.Errorf("Previous data file kept at %s: %v", path+tempSuffix, err)
	}
}

// WriteBackups rotates the numbered backups of path, copies path to
// generation 0 and writes the day's backup if there is none yet.
func (d *Datastore) WriteBackups(path string) error {
	if err := d.fs.MkdirAll(BackupDir(path), 0o755); err != nil {
		return utils.IOFailure("create backup directory for", path, err)
	}

	for i := d.backups - 1; i > 0; i-- {
		newer, older := BackupName(path, i-1), BackupName(path, i)
		ok, err := afero.Exists(d.fs, newer)
		if err != nil || !ok {
			continue
		}
		if err := d.fs.Remove(older); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return utils.IOFailure("remove", older, err)
		}
		if err := d.fs.Rename(newer, older); err != nil {
			return utils.IOFailure("rotate", newer, err)
		}
	}

	if err := d.copyFile(path, BackupName(path, 0)); err != nil {
		return err
	}

	daily := DailyBackupName(path, d.clock().Format("2006-01-02"))
	if ok, _ := afero.Exists(d.fs, daily); !ok {
		return d.copyFile(path, daily)
	}
	return nil
}

func (d *Datastore) copyFile(src, dst string) error {
	data, err := afero.ReadFile(d.fs, src)
	if err != nil {
		return utils.IOFailure("read", src, err)
	}
	if err := afero.WriteFile(d.fs, dst, data, 0o644); err != nil {
		return utils.IOFailure("write", dst, err)
	}
	return nil
}

// BackupInfo describes the backup a datastore was restored from.
type BackupInfo struct {
	Name string
	Time string // modification day, YYYY-MM-DD
}

// Candidates returns the files FindAndLoadFile tries, in order.
func (d *Datastore) Candidates(path string) []string {
	files := []string{path, path + tempSuffix}
	for i := 0; i < d.backups; i++ {
		files = append(files, BackupName(path, i))
	}
	return files
}

// FindAndLoadFile loads path, or failing that its temp file or the newest
// loadable backup. It returns a non-nil BackupInfo when a fallback was used.
// When nothing loads, a first-run file is written to path and loaded.
func (d *Datastore) FindAndLoadFile(path string) (*BackupInfo, error) {
	for i, candidate := range d.Candidates(path) {
		err := d.LoadFile(candidate)
		if err != nil {
			utils.Debugf("Skipping %s: %v", candidate, err)
			continue
		}
		if i == 0 {
			return nil, nil
		}

		info := &BackupInfo{Name: candidate}
		if st, err := d.fs.Stat(candidate); err == nil {
			info.Time = st.ModTime().Format("2006-01-02")
		}
		utils.Warnf("Loaded backup %s from %s", info.Name, info.Time)
		return info, nil
	}

	if err := d.FirstRun(path); err != nil {
		return nil, utils.ErrNoDataFile(path, err)
	}
	return nil, nil
}

// FirstRun writes the initial document to path and loads it.
func (d *Datastore) FirstRun(path string) error {
	var buf bytes.Buffer
	if err := d.firstRun(&buf); err != nil {
		return fmt.Errorf("generate first-run data: %w", err)
	}

	if err := d.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return utils.IOFailure("create directory for", path, err)
	}
	if err := afero.WriteFile(d.fs, path, buf.Bytes(), 0o644); err != nil {
		return utils.IOFailure("write", path, err)
	}
	if err := d.LoadFile(path); err != nil {
		return err
	}
	if err := d.WriteBackups(path); err != nil {
		utils.Warnf("Backups of %s not written: %v", path, err)
	}
	utils.Infof("Created new data file at %s", path)
	return nil
}
