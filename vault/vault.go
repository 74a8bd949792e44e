package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
)

var fekInfo = []byte("pinguard vault v1")

type plaintextVault struct {
	Secrets map[string]string `json:"secrets"`
}

// Vault is a single encrypted file of secrets. It must be created or opened
// with the device passphrase before use. Every Set and Delete rewrites the
// file atomically.
type Vault struct {
	Filename string
	KDF      *KDFParams

	mu   sync.Mutex
	fek  []byte
	data plaintextVault
}

var _ Store = (*Vault)(nil)

func NewVault(filename string, kdf *KDFParams) *Vault {
	if kdf == nil {
		kdf = DefaultKDFParams()
	}
	return &Vault{Filename: filename, KDF: kdf}
}

// OpenFile opens the vault at filename, creating it when missing.
func OpenFile(filename string, passphrase []byte, kdf *KDFParams) (*Vault, error) {
	v := NewVault(filename, kdf)
	err := v.Open(passphrase)
	if errors.Is(err, fs.ErrNotExist) {
		err = v.Create(passphrase)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Create writes a fresh, empty vault. It refuses to overwrite an existing
// file.
func (v *Vault) Create(passphrase []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, err := os.Stat(v.Filename); err == nil {
		return ErrExists
	}
	if len(v.KDF.Salt) == 0 {
		salt, err := randBytes(16)
		if err != nil {
			return err
		}
		v.KDF.Salt = salt
	}

	fek, err := DeriveFEKFromPassphrase(passphrase, v.KDF, fekInfo)
	if err != nil {
		return err
	}
	v.fek = fek
	v.data = plaintextVault{Secrets: map[string]string{}}
	return v.save()
}

func (v *Vault) Open(passphrase []byte) error {
	raw, err := os.ReadFile(v.Filename)
	if err != nil {
		return err
	}

	header, ct, err := decodeHeader(raw)
	if err != nil {
		return ErrCorrupt
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.KDF.Time = header.ArgonTime
	v.KDF.Memory = header.ArgonMemory
	v.KDF.Threads = header.ArgonThreads
	v.KDF.Salt = header.Salt

	fek, err := DeriveFEKFromPassphrase(passphrase, v.KDF, fekInfo)
	if err != nil {
		return err
	}

	pt, err := AEADOpen(fek, header.Nonce, []byte(Magic), ct)
	if err != nil {
		zero(fek)
		return ErrAuthFailed
	}
	defer zero(pt)

	var data plaintextVault
	if err := json.Unmarshal(pt, &data); err != nil {
		zero(fek)
		return ErrCorrupt
	}
	if data.Secrets == nil {
		data.Secrets = map[string]string{}
	}
	v.fek = fek
	v.data = data
	return nil
}

func (v *Vault) save() error {
	if v.fek == nil {
		return ErrLocked
	}
	pt, err := json.Marshal(v.data)
	if err != nil {
		return err
	}
	defer zero(pt)

	nonce, ct, err := AEADSeal(v.fek, pt, []byte(Magic))
	if err != nil {
		return err
	}

	hdrBytes, err := encodeHeader(fileHeader{
		fixedHeader: fixedHeader{
			KDFAlgo:      kdfArgon2id,
			ArgonTime:    v.KDF.Time,
			ArgonMemory:  v.KDF.Memory,
			ArgonThreads: v.KDF.Threads,
		},
		Salt:  v.KDF.Salt,
		Nonce: nonce,
	})
	if err != nil {
		return err
	}

	if err := atomicWriteFile(v.Filename, append(hdrBytes, ct...), 0o600); err != nil {
		return fmt.Errorf("write vault: %w", err)
	}
	return nil
}

func (v *Vault) Get(_ context.Context, key string) (string, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fek == nil {
		return "", false, ErrLocked
	}
	value, ok := v.data.Secrets[key]
	return value, ok, nil
}

func (v *Vault) Set(_ context.Context, key, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fek == nil {
		return ErrLocked
	}

	prev, had := v.data.Secrets[key]
	v.data.Secrets[key] = value
	if err := v.save(); err != nil {
		if had {
			v.data.Secrets[key] = prev
		} else {
			delete(v.data.Secrets, key)
		}
		return err
	}
	return nil
}

func (v *Vault) Delete(_ context.Context, key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.fek == nil {
		return ErrLocked
	}

	prev, had := v.data.Secrets[key]
	if !had {
		return nil
	}
	delete(v.data.Secrets, key)
	if err := v.save(); err != nil {
		v.data.Secrets[key] = prev
		return err
	}
	return nil
}

// Keys lists the stored secret names in order.
func (v *Vault) Keys() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	keys := make([]string, 0, len(v.data.Secrets))
	for k := range v.data.Secrets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close locks the vault and wipes the key from memory.
func (v *Vault) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	zero(v.fek)
	v.fek = nil
	v.data = plaintextVault{}
	return nil
}

// Zero securely wipes a byte slice from memory.
func Zero(b []byte) {
	zero(b)
}
