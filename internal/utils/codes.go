package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateOTP returns a random six digit code.
func GenerateOTP() (string, error) {
	n, err := randomInt(1000000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n), nil
}

// GenerateOrderCode returns a code like ORD20260301042137 for an order placed at t.
func GenerateOrderCode(t time.Time) (string, error) {
	n, err := randomInt(1000000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD%s%06d", t.Format("20060102"), n), nil
}

func randomInt(max int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		return 0, err
	}
	return n.Int64(), nil
}
