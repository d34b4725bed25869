package licensing

import (
	"math/rand"
	"strings"
)

const (
	keyAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	keyGroupLen   = 4
	trialKeyStem  = "ERB-TRIAL"
	paidKeyStem   = "ERB-PAID"
	keySeparator  = "-"
)

// keyGroup returns one block of uppercase alphanumeric characters.
// Uniqueness of full keys is probabilistic, not guaranteed; the key column
// is unique in the store, which surfaces the (negligible) collision case.
func keyGroup() string {
	var b strings.Builder
	b.Grow(keyGroupLen)
	for i := 0; i < keyGroupLen; i++ {
		b.WriteByte(keyAlphabet[rand.Intn(len(keyAlphabet))])
	}
	return b.String()
}

func buildKey(stem string) string {
	return stem + keySeparator + keyGroup() + keySeparator + keyGroup()
}

// NewTrialKey generates a key of the form ERB-TRIAL-XXXX-YYYY.
func NewTrialKey() string {
	return buildKey(trialKeyStem)
}

// NewPaidKey generates a key of the form ERB-PAID-XXXX-YYYY.
func NewPaidKey() string {
	return buildKey(paidKeyStem)
}
