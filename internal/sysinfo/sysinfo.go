package sysinfo

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

const bytesPerGB = 1024 * 1024 * 1024

// Metrics describes the host mediad runs on
type Metrics struct {
	CPUCount        int     `json:"cpu_count"`
	MemoryTotalGB   float64 `json:"memory_total_gb"`
	MemoryUsedGB    float64 `json:"memory_used_gb"`
	MemoryFreeGB    float64 `json:"memory_free_gb"`
	DiskTotalGB     float64 `json:"disk_total_gb,omitempty"`
	DiskUsedGB      float64 `json:"disk_used_gb,omitempty"`
	DiskAvailableGB float64 `json:"disk_available_gb,omitempty"`
	DiskUsedPercent float64 `json:"disk_used_percent,omitempty"`
}

// GetMetrics collects CPU and memory figures, plus disk usage of the
// filesystem holding diskPath when it is set.
func GetMetrics(ctx context.Context, diskPath string) (Metrics, error) {
	metrics := Metrics{
		CPUCount: runtime.NumCPU(),
	}

	if err := getMemoryInfo(ctx, &metrics); err != nil {
		return metrics, fmt.Errorf("failed to get memory info: %w", err)
	}

	if diskPath != "" {
		if err := getDiskInfo(ctx, diskPath, &metrics); err != nil {
			return metrics, fmt.Errorf("failed to get disk info: %w", err)
		}
	}

	return metrics, nil
}

func getMemoryInfo(ctx context.Context, metrics *Metrics) error {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return err
	}

	metrics.MemoryTotalGB = toGB(vm.Total)
	metrics.MemoryFreeGB = toGB(vm.Available)
	metrics.MemoryUsedGB = toGB(vm.Total - vm.Available)

	return nil
}

// getDiskInfo reports usage of the filesystem containing path
func getDiskInfo(ctx context.Context, path string, metrics *Metrics) error {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return err
	}

	metrics.DiskTotalGB = toGB(usage.Total)
	metrics.DiskUsedGB = toGB(usage.Used)
	metrics.DiskAvailableGB = toGB(usage.Free)
	metrics.DiskUsedPercent = usage.UsedPercent

	return nil
}

func toGB(b uint64) float64 {
	return float64(b) / bytesPerGB
}
