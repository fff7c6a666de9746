package utils

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// GetDeviceFingerprints returns hardware identifiers for the current device.
// Mobile platforms must supply their own identifier.
func GetDeviceFingerprints() ([]string, error) {
	switch runtime.GOOS {
	case "darwin":
		return getMacOSUUID()
	case "linux":
		return getLinuxUUID()
	case "windows":
		return getWindowsUUID()
	default:
		return nil, errors.New("unsupported platform: " + runtime.GOOS)
	}
}

// DeviceLabel returns a stable, non-reversible label for this device, used to
// key pepper material. It falls back to the hostname, then to "default".
func DeviceLabel() string {
	ids, err := GetDeviceFingerprints()
	if err == nil && len(ids) > 0 {
		return labelFor(ids[0])
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return labelFor(host)
	}
	return "default"
}

func labelFor(id string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(id)))
	return "dev-" + hex.EncodeToString(sum[:8])
}

func getMacOSUUID() ([]string, error) {
	out, err := exec.Command("ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, line := range strings.Split(string(out), "\n") {
		if strings.Contains(line, "IOPlatformUUID") {
			parts := strings.Split(line, "\"")
			if len(parts) >= 4 {
				ids = append(ids, parts[3])
			}
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("no IOPlatformUUID found")
	}
	return ids, nil
}

func getLinuxUUID() ([]string, error) {
	// product_uuid is root-only on most distributions; machine-id is not.
	for _, path := range []string{"/sys/class/dmi/id/product_uuid", "/etc/machine-id"} {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(data)); id != "" {
			return []string{id}, nil
		}
	}
	cpuinfo, err := os.ReadFile("/proc/cpuinfo")
	if err == nil {
		for _, line := range strings.Split(string(cpuinfo), "\n") {
			if strings.HasPrefix(line, "Serial") {
				parts := strings.Split(line, ":")
				if len(parts) == 2 {
					if id := strings.TrimSpace(parts[1]); id != "" {
						return []string{id}, nil
					}
				}
			}
		}
	}
	return nil, errors.New("no hardware UUID found on Linux")
}

func getWindowsUUID() ([]string, error) {
	out, err := exec.Command("wmic", "csproduct", "get", "UUID").Output()
	if err == nil {
		for _, line := range bytes.Split(out, []byte("\n")) {
			str := strings.TrimSpace(string(line))
			if str != "" && !strings.EqualFold(str, "UUID") {
				return []string{str}, nil
			}
		}
	}
	return nil, errors.New("no hardware UUID found on Windows")
}
