package vault

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// LoadDeviceKey reads the per-installation key at path, generating and
// persisting a new random key the first time.
func LoadDeviceKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		key, err := randBytes(DeviceKeyLen)
		if err != nil {
			return nil, err
		}
		if err := atomicWriteFile(path, []byte(hex.EncodeToString(key)+"\n"), 0o600); err != nil {
			return nil, fmt.Errorf("write device key: %w", err)
		}
		return key, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read device key: %w", err)
	}

	key, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil || len(key) != DeviceKeyLen {
		return nil, fmt.Errorf("device key %s: %w", path, ErrCorrupt)
	}
	return key, nil
}
