package cryptoutil

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Share is one operator's fragment of a Shamir-split secret: an x-coordinate
// and the corresponding y-value for every byte of the secret.
type Share struct {
	X byte
	Y []byte
}

// gf256Exp/gf256Log are precomputed GF(2^8) tables using the AES reduction
// polynomial x^8+x^4+x^3+x+1 (0x11b), the same field used by Shamir's
// original scheme and by every off-the-shelf implementation of it. No
// Shamir secret-sharing library appears anywhere in the retrieval pack
// (DESIGN.md), so this is a from-scratch, stdlib-only implementation of the
// minimal subset spec.md §5/§9 actually needs: splitting into exactly 5
// shares and reconstructing from any 3.
var (
	gf256Exp [512]byte
	gf256Log [256]byte
)

func init() {
	x := byte(1)
	for i := 0; i < 255; i++ {
		gf256Exp[i] = x
		gf256Log[x] = byte(i)
		x = gf256Mul(x, 3)
	}
	for i := 255; i < 512; i++ {
		gf256Exp[i] = gf256Exp[i-255]
	}
}

func gf256Mul(a, b byte) byte {
	var p byte
	for i := 0; i < 8; i++ {
		if b&1 != 0 {
			p ^= a
		}
		hiBitSet := a&0x80 != 0
		a <<= 1
		if hiBitSet {
			a ^= 0x1b
		}
		b >>= 1
	}
	return p
}

func gf256MulLog(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return gf256Exp[int(gf256Log[a])+int(gf256Log[b])]
}

func gf256Div(a, b byte) byte {
	if a == 0 {
		return 0
	}
	if b == 0 {
		panic("cryptoutil: division by zero in GF(256)")
	}
	return gf256Exp[(int(gf256Log[a])+255-int(gf256Log[b]))%255]
}

// String encodes a Share as a single hex token (X byte followed by Y),
// suitable for an operator to copy into a DB_ENCRYPTION_KEY_SHARES entry.
func (s Share) String() string {
	return hex.EncodeToString(append([]byte{s.X}, s.Y...))
}

// ParseShare decodes a Share previously produced by Share.String.
func ParseShare(encoded string) (Share, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return Share{}, fmt.Errorf("cryptoutil: share is not valid hex: %w", err)
	}
	if len(raw) < 2 {
		return Share{}, fmt.Errorf("cryptoutil: share too short")
	}
	return Share{X: raw[0], Y: raw[1:]}, nil
}

// SplitSecret splits secret into `shareCount` Shamir shares such that any
// `threshold` of them reconstruct it. Used to split the process-wide DB
// encryption key into 3-of-5 operator shares (spec.md §5, §9 note 3).
func SplitSecret(secret []byte, threshold, shareCount int) ([]Share, error) {
	if threshold < 1 || shareCount < threshold || shareCount > 254 {
		return nil, fmt.Errorf("cryptoutil: invalid threshold=%d shareCount=%d", threshold, shareCount)
	}

	shares := make([]Share, shareCount)
	for i := range shares {
		shares[i] = Share{X: byte(i + 1), Y: make([]byte, len(secret))}
	}

	coeffs := make([]byte, threshold)
	for byteIdx, secretByte := range secret {
		coeffs[0] = secretByte
		if _, err := rand.Read(coeffs[1:]); err != nil {
			return nil, fmt.Errorf("cryptoutil: failed to generate share randomness: %w", err)
		}

		for _, s := range shares {
			shares[s.X-1].Y[byteIdx] = evalPoly(coeffs, s.X)
		}
	}

	return shares, nil
}

func evalPoly(coeffs []byte, x byte) byte {
	// Horner's method, evaluated in GF(256).
	var result byte
	for i := len(coeffs) - 1; i >= 0; i-- {
		result = gf256MulLog(result, x) ^ coeffs[i]
	}
	return result
}

// CombineShares reconstructs the original secret from at least `threshold`
// shares via Lagrange interpolation at x=0.
func CombineShares(shares []Share) ([]byte, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("cryptoutil: no shares provided")
	}

	secretLen := len(shares[0].Y)
	for _, s := range shares {
		if len(s.Y) != secretLen {
			return nil, fmt.Errorf("cryptoutil: mismatched share lengths")
		}
	}

	secret := make([]byte, secretLen)
	for byteIdx := 0; byteIdx < secretLen; byteIdx++ {
		var acc byte
		for i, si := range shares {
			term := si.Y[byteIdx]
			for j, sj := range shares {
				if i == j {
					continue
				}
				// Lagrange basis factor: sj.X / (sj.X ^ si.X), evaluated at x=0.
				num := sj.X
				den := sj.X ^ si.X
				term = gf256MulLog(term, gf256Div(num, den))
			}
			acc ^= term
		}
		secret[byteIdx] = acc
	}

	return secret, nil
}
