package vault

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func randBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

func DefaultKDFParams() *KDFParams { return &KDFParams{Time: 3, Memory: 64 * 1024, Threads: 1} }

// DeriveFEKFromPassphrase stretches passphrase with Argon2id and expands the
// result into a file encryption key. passphrase is wiped.
func DeriveFEKFromPassphrase(passphrase []byte, params *KDFParams, info []byte) ([]byte, error) {
	master := argon2.IDKey(passphrase, params.Salt, params.Time, params.Memory, params.Threads, MasterKeyLen)
	zero(passphrase)
	defer zero(master)
	return expand(master, info)
}

// DeriveSubkey expands an already uniform random key into a purpose-bound
// key without a password hash.
func DeriveSubkey(key, info []byte) ([]byte, error) {
	return expand(key, info)
}

func expand(secret, info []byte) ([]byte, error) {
	h := hkdf.New(sha256.New, secret, nil, info)
	out := make([]byte, FEKLen)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, err
	}
	return out, nil
}

func AEADSeal(key, plaintext, aad []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, err
	}
	nonce, err = randBytes(NonceLen)
	if err != nil {
		return nil, nil, err
	}
	return nonce, aead.Seal(nil, nonce, plaintext, aad), nil
}

func AEADOpen(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrCorrupt
	}
	return aead.Open(nil, nonce, ciphertext, aad)
}

func encodeHeader(h fileHeader) ([]byte, error) {
	if len(h.Salt) > 255 {
		return nil, errors.New("salt too long")
	}
	if len(h.Nonce) > 255 {
		return nil, errors.New("nonce too long")
	}

	buf := &bytes.Buffer{}
	h.fixedHeader.Magic = [4]byte([]byte(Magic))
	h.fixedHeader.Version = Version
	if err := binary.Write(buf, binary.BigEndian, h.fixedHeader); err != nil {
		return nil, err
	}
	for _, field := range [][]byte{h.Salt, h.Nonce} {
		buf.WriteByte(uint8(len(field)))
		buf.Write(field)
	}
	return buf.Bytes(), nil
}

// decodeHeader splits raw into its header and the trailing ciphertext.
func decodeHeader(raw []byte) (fileHeader, []byte, error) {
	var h fileHeader
	r := bytes.NewReader(raw)

	if err := binary.Read(r, binary.BigEndian, &h.fixedHeader); err != nil {
		return h, nil, ErrCorrupt
	}
	if string(h.Magic[:]) != Magic || h.Version != Version || h.KDFAlgo != kdfArgon2id {
		return h, nil, ErrCorrupt
	}

	for _, field := range []*[]byte{&h.Salt, &h.Nonce} {
		n, err := r.ReadByte()
		if err != nil {
			return h, nil, ErrCorrupt
		}
		*field = make([]byte, n)
		if _, err := io.ReadFull(r, *field); err != nil {
			return h, nil, ErrCorrupt
		}
	}

	return h, raw[len(raw)-r.Len():], nil
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".pgrd-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if err := tmpFile.Chmod(perm); err != nil {
		return err
	}
	if _, err := tmpFile.Write(data); err != nil {
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	_ = syncDir(dir)
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
