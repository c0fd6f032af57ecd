package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/madmin-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorageInfo struct {
	info madmin.StorageInfo
	err  error
}

func (f fakeStorageInfo) StorageInfo(context.Context) (madmin.StorageInfo, error) {
	return f.info, f.err
}

func TestFetchStorageHealthSumsOnlineDrives(t *testing.T) {
	source := fakeStorageInfo{info: madmin.StorageInfo{Disks: []madmin.Disk{
		{State: madmin.DriveStateOk, TotalSpace: 100, UsedSpace: 40, AvailableSpace: 60},
		{State: madmin.DriveStateOk, TotalSpace: 100, UsedSpace: 10, AvailableSpace: 90},
		{State: "offline", TotalSpace: 100},
	}}}

	health, err := fetchStorageHealth(context.Background(), source)

	require.NoError(t, err)
	assert.True(t, health.Online)
	assert.Equal(t, 3, health.Drives)
	assert.Equal(t, 1, health.DrivesOffline)
	assert.Equal(t, uint64(200), health.TotalSpace)
	assert.Equal(t, uint64(50), health.UsedSpace)
	assert.Equal(t, uint64(150), health.AvailableSpace)
}

func TestFetchStorageHealthNoDrives(t *testing.T) {
	health, err := fetchStorageHealth(context.Background(), fakeStorageInfo{})

	require.NoError(t, err)
	assert.False(t, health.Online)
}

func TestFetchStorageHealthError(t *testing.T) {
	_, err := fetchStorageHealth(context.Background(), fakeStorageInfo{err: errors.New("unreachable")})

	assert.ErrorContains(t, err, "unreachable")
}

func TestStorageHealthWithoutAdmin(t *testing.T) {
	client := newTestMinioClient(newFakeBackend())

	_, err := client.StorageHealth(context.Background())

	assert.Error(t, err)
}
