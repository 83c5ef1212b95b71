package core

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeAlphabet is the character set of generated guest keys. It leaves out
// I, O, l, o, 0 and 1, which are easy to confuse on a printed ID card.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

// DefaultCodeLength is the length of generated guest keys.
const DefaultCodeLength = 6

// CodeExistsFunc reports whether a key is already taken.
type CodeExistsFunc func(ctx context.Context, code string) (bool, error)

// GenerateUniqueCode draws random keys from CodeAlphabet until exists reports
// one as free. Keys double as lookup secrets in QR codes, so the source is
// crypto/rand. There is no retry bound; cancel ctx to stop.
func GenerateUniqueCode(ctx context.Context, exists CodeExistsFunc, length int) (string, error) {
	if length <= 0 {
		length = DefaultCodeLength
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := randomCode(length)
		if err != nil {
			return "", err
		}

		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
}

var alphabetSize = big.NewInt(int64(len(CodeAlphabet)))

func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("random source: %w", err)
		}
		buf[i] = CodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
