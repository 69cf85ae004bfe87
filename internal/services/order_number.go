package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	orderNumberPrefix      = "GAY"
	orderNumberSuffixLen   = 4
	maxOrderNumberAttempts = 5
	orderNumberAlphabet    = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var orderNumberAlphabetSize = big.NewInt(int64(len(orderNumberAlphabet)))

// formatOrderNumber renders GAY-<last 6 digits of the millisecond clock>-<suffix>.
func formatOrderNumber(now time.Time, suffix string) string {
	return fmt.Sprintf("%s-%06d-%s", orderNumberPrefix, now.UnixMilli()%1_000_000, suffix)
}

// randomOrderSuffix returns four uppercase base36 characters.
func randomOrderSuffix() string {
	buf := make([]byte, orderNumberSuffixLen)
	for i := range buf {
		n, err := rand.Int(rand.Reader, orderNumberAlphabetSize)
		if err != nil {
			// crypto/rand does not fail on supported platforms; fall back to the clock.
			n = big.NewInt(time.Now().UnixNano() % int64(len(orderNumberAlphabet)))
		}
		buf[i] = orderNumberAlphabet[n.Int64()]
	}
	return string(buf)
}
