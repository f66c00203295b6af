//go:build windows

package preflight

import (
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows"
)

// sameDevice reports whether both paths live on the same volume.
func sameDevice(a, b string) (bool, error) {
	va, err := volumeOf(a)
	if err != nil {
		return false, err
	}
	vb, err := volumeOf(b)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(va, vb), nil
}

func volumeOf(path string) (string, error) {
	p, err := windows.UTF16PtrFromString(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	buf := make([]uint16, windows.MAX_PATH+1)
	if err := windows.GetVolumePathName(p, &buf[0], uint32(len(buf))); err != nil {
		return filepath.VolumeName(path), nil
	}
	return windows.UTF16ToString(buf), nil
}
