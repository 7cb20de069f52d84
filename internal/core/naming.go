package core

import (
	"path"
	"time"
)

// BackupTimestampLayout is the timestamp embedded in backup names.
const BackupTimestampLayout = "20060102_150405"

// BackupName returns "{baseName}_{YYYYMMDD_HHMMSS}.{ext}" with t rendered in loc.
func BackupName(info DatasetInfo, t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return info.BaseName() + "_" + t.In(loc).Format(BackupTimestampLayout) + "." + info.Ext()
}

// Layout places primary artifacts, backups and the counter record.
type Layout struct {
	Folder       string // Folder holding the primary artifacts
	BackupFolder string // Backup folder name under Folder, one subfolder per dataset
}

// PrimaryPath returns the path of the dataset's primary artifact.
func (l Layout) PrimaryPath(info DatasetInfo) string {
	return path.Join(l.Folder, info.FileName)
}

// BackupDir returns the backup container of a dataset.
func (l Layout) BackupDir(info DatasetInfo) string {
	return path.Join(l.Folder, l.BackupFolder, info.Key)
}

// BackupPath returns the full path of a backup file.
func (l Layout) BackupPath(info DatasetInfo, name string) string {
	return path.Join(l.BackupDir(info), name)
}
