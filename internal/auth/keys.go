package auth

// KeySet holds the HMAC secrets for the two token kinds. Access and refresh
// tokens must never share a key.
type KeySet struct {
	Access  []byte
	Refresh []byte
}

// KeySource yields the current signing keys. Implementations must be safe for
// concurrent use.
type KeySource interface {
	Keys() KeySet
}

// StaticKeys is a KeySource that never changes.
type StaticKeys KeySet

func (k StaticKeys) Keys() KeySet { return KeySet(k) }
