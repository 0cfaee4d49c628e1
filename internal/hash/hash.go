// Package hash computes the 64-bit identifiers used to key subscriptions.
package hash

import "github.com/cespare/xxhash/v2"

// ID computes the xxHash64 of the given string.
func ID(data string) uint64 {
	return xxhash.Sum64String(data)
}

// SubscriptionID computes the identifier for a (message name, multi ID)
// pair. The name is separated from the multi ID by a NUL byte, which cannot
// appear in a message name, so distinct pairs hash distinct inputs.
func SubscriptionID(name string, multiID uint8) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(name)
	_, _ = d.Write([]byte{0, multiID})

	return d.Sum64()
}
