package registrations

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// codeAlphabet drops 0/O and 1/I so codes survive being read aloud at the door.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 8

// CodeGenerator mints a candidate registration code. Uniqueness is enforced by the store.
type CodeGenerator func() (string, error)

func NewCodeGenerator(prefix string) CodeGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "SEM"
	}

	return func() (string, error) {
		max := big.NewInt(int64(len(codeAlphabet)))
		buf := make([]byte, codeLength)
		for i := range buf {
			n, err := rand.Int(rand.Reader, max)
			if err != nil {
				return "", fmt.Errorf("generate registration code: %w", err)
			}
			buf[i] = codeAlphabet[n.Int64()]
		}
		return prefix + "-" + string(buf), nil
	}
}
