package infra

import (
	"context"
	"errors"
	"fmt"

	"github.com/minio/madmin-go/v3"
)

type StorageHealth struct {
	Online         bool   `json:"online"`
	Drives         int    `json:"drives"`
	DrivesOffline  int    `json:"drives_offline"`
	TotalSpace     uint64 `json:"total_space"`
	UsedSpace      uint64 `json:"used_space"`
	AvailableSpace uint64 `json:"available_space"`
}

type storageInfoSource interface {
	StorageInfo(ctx context.Context) (madmin.StorageInfo, error)
}

// StorageHealth asks the admin API for drive usage.
func (m *MinioClient) StorageHealth(ctx context.Context) (*StorageHealth, error) {
	if m.Admin == nil {
		return nil, errors.New("minio admin client is not configured")
	}
	return fetchStorageHealth(ctx, m.Admin)
}

func fetchStorageHealth(ctx context.Context, source storageInfoSource) (*StorageHealth, error) {
	info, err := source.StorageInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage info: %w", err)
	}
	health := summarizeStorage(info)
	return &health, nil
}

func summarizeStorage(info madmin.StorageInfo) StorageHealth {
	health := StorageHealth{Drives: len(info.Disks)}
	for _, disk := range info.Disks {
		if disk.State != madmin.DriveStateOk {
			health.DrivesOffline++
			continue
		}
		health.TotalSpace += disk.TotalSpace
		health.UsedSpace += disk.UsedSpace
		health.AvailableSpace += disk.AvailableSpace
	}
	health.Online = health.Drives > 0 && health.DrivesOffline < health.Drives
	return health
}
