package vault

import (
	"context"
	"errors"
)

const (
	MasterKeyLen = 32
	FEKLen       = 32
	NonceLen     = 24
	DeviceKeyLen = 32
	Magic        = "PGRD"
	Version      = 0x01

	kdfArgon2id = 0x01
)

var (
	ErrLocked     = errors.New("vault: locked")
	ErrCorrupt    = errors.New("vault: corrupt file")
	ErrAuthFailed = errors.New("vault: authentication failed")
	ErrExists     = errors.New("vault: file already exists")
)

// Store is a key/value secret store. Get reports ok=false for unset keys.
// Vault, SQLStore and Memory all implement it.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type KDFParams struct {
	Time, Memory uint32
	Threads      uint8
	Salt         []byte
}

// fixedHeader is the fixed-size prefix of a vault file, written big-endian.
// It is followed by a length-prefixed salt and a length-prefixed nonce.
type fixedHeader struct {
	Magic        [4]byte
	Version      uint8
	Flags        uint16
	KDFAlgo      uint8
	ArgonTime    uint32
	ArgonMemory  uint32
	ArgonThreads uint8
}

type fileHeader struct {
	fixedHeader
	Salt  []byte
	Nonce []byte
}
