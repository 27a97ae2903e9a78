// Package monitor provides disk usage monitoring for preflight checks that
// want to know the host is in good enough shape before letting a
// downstream-heavy callback chain run. No other package in this module
// imports it.
package monitor

import (
	"github.com/shirou/gopsutil/v3/disk"
)

// DiskStats represents disk usage statistics.
type DiskStats struct {
	// Path is the mount point being monitored
	Path string
	// Total bytes on the disk
	Total uint64
	// Used bytes on the disk
	Used uint64
	// Free bytes on the disk
	Free uint64
	// UsedPercent is the percentage of disk used
	UsedPercent float64
	// FreePercent is the percentage of disk free
	FreePercent float64
	// FreeGB is free space in gigabytes
	FreeGB float64
}

// GetDiskStats returns disk statistics for the specified path.
func GetDiskStats(path string) (*DiskStats, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return nil, err
	}

	return &DiskStats{
		Path:        path,
		Total:       usage.Total,
		Used:        usage.Used,
		Free:        usage.Free,
		UsedPercent: usage.UsedPercent,
		FreePercent: 100.0 - usage.UsedPercent,
		FreeGB:      float64(usage.Free) / (1024 * 1024 * 1024),
	}, nil
}

// GetRootDiskStats returns disk statistics for the root filesystem.
func GetRootDiskStats() (*DiskStats, error) {
	return GetDiskStats("/")
}

// DiskMonitor provides disk monitoring with threshold detection. A plugin
// callback typically holds one instance for the lifetime of its worker
// process and calls Check before doing anything storage-heavy.
type DiskMonitor struct {
	// ThresholdWarning percentage for warning level
	ThresholdWarning float64
	// ThresholdModerate percentage for moderate level
	ThresholdModerate float64
	// ThresholdAggressive percentage for aggressive level
	ThresholdAggressive float64
	// ThresholdCritical percentage for critical level
	ThresholdCritical float64
}

// NewDiskMonitor creates a new disk monitor with the specified thresholds.
func NewDiskMonitor(warning, moderate, aggressive, critical int) *DiskMonitor {
	return &DiskMonitor{
		ThresholdWarning:    float64(warning),
		ThresholdModerate:   float64(moderate),
		ThresholdAggressive: float64(aggressive),
		ThresholdCritical:   float64(critical),
	}
}

// DiskSeverity represents how urgently a caller should react to disk
// pressure. Callers in this codebase only log at an escalating level; none
// of them trigger cleanup themselves.
type DiskSeverity int

const (
	// LevelNone means disk usage is unremarkable.
	LevelNone DiskSeverity = iota
	// LevelWarning means usage is elevated but not yet a concern.
	LevelWarning
	// LevelModerate means usage warrants attention soon.
	LevelModerate
	// LevelAggressive means usage is high enough that storage-heavy work may fail.
	LevelAggressive
	// LevelCritical means usage is at or past the point of near-certain failure.
	LevelCritical
)

// String returns the string representation of the severity level.
func (l DiskSeverity) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelWarning:
		return "warning"
	case LevelModerate:
		return "moderate"
	case LevelAggressive:
		return "aggressive"
	case LevelCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// CheckLevel determines the severity level implied by the given disk usage.
func (m *DiskMonitor) CheckLevel(stats *DiskStats) DiskSeverity {
	if stats.UsedPercent >= m.ThresholdCritical {
		return LevelCritical
	}
	if stats.UsedPercent >= m.ThresholdAggressive {
		return LevelAggressive
	}
	if stats.UsedPercent >= m.ThresholdModerate {
		return LevelModerate
	}
	if stats.UsedPercent >= m.ThresholdWarning {
		return LevelWarning
	}
	return LevelNone
}

// Check performs a disk check and returns the current stats and severity level.
func (m *DiskMonitor) Check(path string) (*DiskStats, DiskSeverity, error) {
	stats, err := GetDiskStats(path)
	if err != nil {
		return nil, LevelNone, err
	}
	return stats, m.CheckLevel(stats), nil
}
