// Package secret provides immutable, opaque wrappers for secret byte
// material. Values compare by content, never print their bytes through fmt,
// JSON or text encoding, and expose them only through explicit accessors.
package secret

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
)

// Redacted is what every implicit text conversion of a secret yields.
const Redacted = "[REDACTED]"

// Equaler is implemented by values that compare by content.
type Equaler[T any] interface {
	Equal(other T) bool
}

// Salt is an immutable opaque byte value. The zero value is the empty salt.
type Salt struct {
	// data is a string so that the bytes cannot be changed through an alias.
	data string
}

var _ Equaler[Salt] = Salt{}

// NewSalt copies b into a new Salt.
func NewSalt(b []byte) Salt {
	return Salt{data: string(b)}
}

// EmptySalt returns the empty Salt.
func EmptySalt() Salt { return Salt{} }

// IsEmpty reports whether the salt holds no bytes.
func (s Salt) IsEmpty() bool { return len(s.data) == 0 }

// Len returns the number of bytes.
func (s Salt) Len() int { return len(s.data) }

// Equal reports whether s and other hold the same bytes. The comparison
// runs in constant time for equal lengths.
func (s Salt) Equal(other Salt) bool {
	return subtle.ConstantTimeCompare([]byte(s.data), []byte(other.data)) == 1
}

// Fingerprint returns a SHA-256 digest of the content, suitable as a map key.
func (s Salt) Fingerprint() [sha256.Size]byte {
	return sha256.Sum256([]byte(s.data))
}

// Hex is the explicit, intentional encoding of the bytes for audit or display.
func (s Salt) Hex() string { return hex.EncodeToString([]byte(s.data)) }

// Bytes returns a copy of the bytes.
func (s Salt) Bytes() []byte { return []byte(s.data) }

func (s Salt) String() string   { return Redacted }
func (s Salt) GoString() string { return "secret.Salt{" + Redacted + "}" }

// Format redacts every verb, including %x and %#v.
func (s Salt) Format(f fmt.State, _ rune) { _, _ = io.WriteString(f, Redacted) }

func (s Salt) MarshalJSON() ([]byte, error) { return json.Marshal(Redacted) }
func (s Salt) MarshalText() ([]byte, error) { return []byte(Redacted), nil }

// SaltedSecret pairs secret material with the salt used to derive keys from
// it. It is a handle for a Crypto collaborator and has no textual form.
type SaltedSecret struct {
	material Salt
	salt     Salt
}

var _ Equaler[SaltedSecret] = SaltedSecret{}

// NewSaltedSecret copies material and associates it with salt.
func NewSaltedSecret(material []byte, salt Salt) SaltedSecret {
	return SaltedSecret{material: NewSalt(material), salt: salt}
}

// Salt returns the associated salt.
func (s SaltedSecret) Salt() Salt { return s.salt }

// IsEmpty reports whether there is no secret material.
func (s SaltedSecret) IsEmpty() bool { return s.material.IsEmpty() }

// Equal reports whether both material and salt are equal.
func (s SaltedSecret) Equal(other SaltedSecret) bool {
	// evaluate both sides so timing does not depend on which one differs
	m := s.material.Equal(other.material)
	k := s.salt.Equal(other.salt)
	return m && k
}

// Use calls fn with a copy of the material. The copy is zeroed afterwards.
func (s SaltedSecret) Use(fn func(material, salt []byte) error) error {
	m, k := s.material.Bytes(), s.salt.Bytes()
	defer func() {
		clear(m)
		clear(k)
	}()
	return fn(m, k)
}

func (s SaltedSecret) String() string   { return Redacted }
func (s SaltedSecret) GoString() string { return "secret.SaltedSecret{" + Redacted + "}" }

// Format redacts every verb.
func (s SaltedSecret) Format(f fmt.State, _ rune) { _, _ = io.WriteString(f, Redacted) }

func (s SaltedSecret) MarshalJSON() ([]byte, error) { return json.Marshal(Redacted) }
func (s SaltedSecret) MarshalText() ([]byte, error) { return []byte(Redacted), nil }

// Crypto derives key material from a salted secret. Implementations live
// outside this module; callers inject them.
type Crypto interface {
	Derive(ctx context.Context, s SaltedSecret) ([]byte, error)
}
