// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package streamring

import (
	"fmt"
	"regexp"

	"golang.org/x/sys/unix"
)

// sessionIDPattern enforces "only lowercase hex allowed; 36-byte ASCII
// UUID" — a canonical lowercase UUID with dashes.
var sessionIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func validateSessionID(sessionID string) error {
	if len(sessionID) != sessionIDLen || !sessionIDPattern.MatchString(sessionID) {
		return ErrInvalidSessionID
	}
	return nil
}

// shmPath maps a session id to its backing posix shared-memory path. /dev/shm
// is the conventional tmpfs-backed shared memory mount on Linux; the region
// is named deterministically so a consumer can attach without coordination.
func shmPath(sessionID string) string {
	return fmt.Sprintf("/dev/shm/unbound-stream-%s", sessionID)
}

// region is a mapped shared-memory object plus the file descriptor that
// backs it, kept open for the lifetime of the mapping.
type region struct {
	fd   int
	data []byte
}

// createRegion creates (or truncates) and maps a region of the given size,
// owned by the producer.
func createRegion(sessionID string, size int) (*region, error) {
	path := shmPath(sessionID)
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("streamring: open %s: %w", path, err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("streamring: ftruncate %s: %w", path, err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("streamring: mmap %s: %w", path, err)
	}
	return &region{fd: fd, data: data}, nil
}

// openRegion attaches to an existing region created by a producer.
func openRegion(sessionID string, size int) (*region, error) {
	path := shmPath(sessionID)
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("streamring: open %s: %w", path, err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("streamring: mmap %s: %w", path, err)
	}
	return &region{fd: fd, data: data}, nil
}

func (r *region) close() error {
	err := unix.Munmap(r.data)
	if cerr := unix.Close(r.fd); err == nil {
		err = cerr
	}
	return err
}

func unlinkRegion(sessionID string) error {
	return unix.Unlink(shmPath(sessionID))
}
