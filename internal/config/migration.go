package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/ini.v1"
)

const (
	backupSuffix    = ".v120.backup"
	oldBackupSuffix = ".old"

	legacyGhost3Path  = `C:\Ghost3\Ghost3.exe`
	legacyGhost3Delay = "60"
)

// MigrationResult describes what Migrate changed
type MigrationResult struct {
	BackupPath string   `json:"backup_path"`
	Migrated   []string `json:"migrated"`
}

// NeedsMigration reports whether the file at path predates the auto-launch
// slots, i.e. it exists but carries no [AutoLaunch] Version. A missing file
// is a first run and needs nothing.
func NeedsMigration(path string) (bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	f, err := loadINI(path)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(f.Section(autoLaunchSection).Key(versionKey).String()) == "", nil
}

// Migrate upgrades a v1.20 configuration in place. The file is first copied to
// <path>.v120.backup first; an existing backup is kept as .v120.backup.old.
// The legacy single Ghost3 auto-launch becomes slot 1.
func Migrate(path string) (*MigrationResult, error) {
	backup, err := createBackup(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create configuration backup: %w", err)
	}
	result := &MigrationResult{BackupPath: backup}

	f, err := loadINI(path)
	if err != nil {
		return nil, err
	}

	bbs := f.Section("Paths").Key("BBSPath").MustString(`C:\BBSV10`)
	f.Section("Paths").Key("BBSPath").SetValue(bbs)
	result.Migrated = append(result.Migrated, "Paths.BBSPath = "+bbs)

	for _, name := range []string{"Window", "Settings", "Programs"} {
		if !f.HasSection(name) {
			continue
		}
		for _, key := range f.Section(name).Keys() {
			if key.Value() == "" || strings.HasPrefix(key.Name(), "Ghost3") {
				continue
			}
			result.Migrated = append(result.Migrated, fmt.Sprintf("%s.%s = %s", name, key.Name(), key.Value()))
		}
	}

	migrateGhost3(f, result)

	f.Section(autoLaunchSection).Key(versionKey).SetValue(ConfigVersion)
	result.Migrated = append(result.Migrated, "Version marker: "+ConfigVersion)

	if err := saveINI(f, path); err != nil {
		return nil, err
	}
	return result, nil
}

func migrateGhost3(f *ini.File, result *MigrationResult) {
	settings := f.Section("Settings")
	if !strings.EqualFold(strings.TrimSpace(settings.Key("Ghost3Enabled").String()), "true") {
		result.Migrated = append(result.Migrated, "Ghost3 was disabled (not migrated)")
		return
	}

	section := f.Section(autoLaunchSection)
	if strings.TrimSpace(section.Key(slotKey(1, "Path")).String()) != "" {
		result.Migrated = append(result.Migrated, "Ghost3 not migrated: AutoLaunch1 already configured")
		return
	}

	path := settings.Key("Ghost3Path").MustString(legacyGhost3Path)
	delay := settings.Key("Ghost3Delay").MustString(legacyGhost3Delay)

	section.Key(slotKey(1, "Name")).SetValue("Ghost3")
	section.Key(slotKey(1, "Path")).SetValue(path)
	section.Key(slotKey(1, "Args")).SetValue("")
	section.Key(slotKey(1, "Delay")).SetValue(delay)
	section.Key(slotKey(1, "Enabled")).SetValue("true")
	section.Key(slotKey(1, "Minimized")).SetValue("true")

	result.Migrated = append(result.Migrated, fmt.Sprintf("Ghost3 -> AutoLaunch1 (delay: %ss)", delay))
}

// createBackup copies path to path+".v120.backup", rotating an existing
// backup to ".old"
func createBackup(path string) (string, error) {
	backup := path + backupSuffix
	old := backup + oldBackupSuffix

	if _, err := os.Stat(backup); err == nil {
		if err := os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		if err := os.Rename(backup, old); err != nil {
			return "", err
		}
	}

	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(backup)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}
	return backup, nil
}
