package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"hash"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// headerProtector produces the 5-byte mask applied to the low bits of the
// first header byte and the packet-number field (RFC 9001 Section 5.4).
type headerProtector interface {
	mask(sample []byte) [5]byte
}

type aesHeaderProtector struct {
	block cipher.Block
}

func (p *aesHeaderProtector) mask(sample []byte) [5]byte {
	var out [5]byte
	var block [16]byte
	p.block.Encrypt(block[:], sample)
	copy(out[:], block[:5])
	return out
}

type chachaHeaderProtector struct {
	key [chacha20.KeySize]byte
}

func (p *chachaHeaderProtector) mask(sample []byte) [5]byte {
	counter := getUint32(sample[:4])
	nonce := sample[4:16]
	c, err := chacha20.NewUnauthenticatedCipher(p.key[:], nonce)
	if err != nil {
		return [5]byte{}
	}
	c.SetCounter(counter)
	var out [5]byte
	c.XORKeyStream(out[:], out[:])
	return out
}

// keys bundles the AEAD and header-protection state for one direction
// (read or write) at one encryption level.
type keys struct {
	aead cipher.AEAD
	hp   headerProtector
	iv   []byte
}

// sealedOverhead reports the AEAD authentication tag length, i.e. how many
// bytes encryption adds beyond the plaintext payload.
func (k *keys) sealedOverhead() int {
	if k == nil || k.aead == nil {
		return 0
	}
	return k.aead.Overhead()
}

// nonceFor XORs the fixed IV with the packet number, per RFC 9001 Section 5.3.
func (k *keys) nonceFor(pn uint64) []byte {
	nonce := make([]byte, len(k.iv))
	copy(nonce, k.iv)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(pn >> (8 * i))
	}
	return nonce
}

// deriveKeys expands a TLS secret into an AEAD + header protector pair for
// the negotiated cipher suite, per RFC 9001 Section 5.1.
func deriveKeys(suite uint16, secret []byte) (*keys, error) {
	h := hashFor(suite)
	switch suite {
	case tls.TLS_AES_128_GCM_SHA256:
		return deriveAESGCMKeys(h, secret, 16)
	case tls.TLS_AES_256_GCM_SHA384:
		return deriveAESGCMKeys(h, secret, 32)
	case tls.TLS_CHACHA20_POLY1305_SHA256:
		return deriveChaChaKeys(h, secret)
	default:
		return nil, newError(InternalError, "unsupported cipher suite")
	}
}

func hashFor(suite uint16) func() hash.Hash {
	if suite == tls.TLS_AES_256_GCM_SHA384 {
		return sha512.New384
	}
	return sha256.New
}

func deriveAESGCMKeys(h func() hash.Hash, secret []byte, keyLen int) (*keys, error) {
	key := hkdfExpandLabel(h, secret, "quic key", nil, keyLen)
	iv := hkdfExpandLabel(h, secret, "quic iv", nil, 12)
	hpKey := hkdfExpandLabel(h, secret, "quic hp", nil, keyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	hpBlock, err := aes.NewCipher(hpKey)
	if err != nil {
		return nil, err
	}
	return &keys{aead: aead, hp: &aesHeaderProtector{block: hpBlock}, iv: iv}, nil
}

func deriveChaChaKeys(h func() hash.Hash, secret []byte) (*keys, error) {
	key := hkdfExpandLabel(h, secret, "quic key", nil, chacha20poly1305.KeySize)
	iv := hkdfExpandLabel(h, secret, "quic iv", nil, 12)
	hpKey := hkdfExpandLabel(h, secret, "quic hp", nil, chacha20.KeySize)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	hp := &chachaHeaderProtector{}
	copy(hp.key[:], hpKey)
	return &keys{aead: aead, hp: hp, iv: iv}, nil
}

// hkdfExpandLabel implements the TLS 1.3 HKDF-Expand-Label construction
// (RFC 8446 Section 7.1), used throughout RFC 9001 key derivation.
func hkdfExpandLabel(h func() hash.Hash, secret []byte, label string, context []byte, length int) []byte {
	fullLabel := "tls13 " + label
	info := make([]byte, 0, 2+1+len(fullLabel)+1+len(context))
	info = append(info, byte(length>>8), byte(length))
	info = append(info, byte(len(fullLabel)))
	info = append(info, fullLabel...)
	info = append(info, byte(len(context)))
	info = append(info, context...)
	out := make([]byte, length)
	r := hkdf.Expand(h, secret, info)
	if _, err := readFull(r, out); err != nil {
		panic(err) // HKDF-Expand only fails for absurd output lengths; a bug, not a runtime condition.
	}
	return out
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
