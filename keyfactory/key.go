// Package keyfactory provides utilities for constructing structured keys with optional namespacing.
//
// Voxel data of a location lives under the location's namespace:
//
//	__<location>__:block:<x>:<y>:<z>   symbol of a written cell
//	__<location>__:chunk:<cx>:<cz>     marker of a provisioned chunk
//	__<location>__:lock                id of the session holding the location
package keyfactory

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/holmberd/go-voxelfile/keyfactory/internal/rediskey"
)

const (
	WildcardAnyChar            = rediskey.WildcardAnyChar   // Matches exactly one character.
	WildcardAnyString          = rediskey.WildcardAnyString // Matches zero or more characters.
	ReservedNamespaceDelimiter = "__"                       // Delimiter placed before and after each namespace key.
	locationMaxLength          = 128
)

// Kind is the first fragment of a key below the namespace.
type Kind string

const (
	KindBlock Kind = "block"
	KindChunk Kind = "chunk"
	KindLock  Kind = "lock"
)

// Underscores may only separate other characters so the namespace delimiter stays unambiguous.
var locationRegex = regexp.MustCompile(`^[a-zA-Z0-9\-]+(_[a-zA-Z0-9\-]+)*$`)

func keyNamespace(ns string) string {
	if ns == "" {
		return ""
	}
	return ReservedNamespaceDelimiter + ns + ReservedNamespaceDelimiter
}

// ValidateLocation validates that the location name can be used as a key namespace.
func ValidateLocation(location string) error {
	if len(location) > locationMaxLength {
		return fmt.Errorf("keyfactory: location '%s' exceeds %d characters", location, locationMaxLength)
	}
	if !locationRegex.MatchString(location) {
		return fmt.Errorf(
			"keyfactory: location '%s' must consist of letters, digits, '-' and single inner '_'",
			location,
		)
	}
	return nil
}

// Key represent a fully qualified datastore key.
type Key struct {
	key       string // Logical key.
	namespace string // Key namespace.
}

func NewKey(key string, namespace string) *Key {
	if !strings.HasPrefix(namespace, ReservedNamespaceDelimiter) {
		namespace = keyNamespace(namespace)
	}
	return &Key{key: key, namespace: namespace}
}

func (k *Key) Key() string {
	return k.key
}

func (k *Key) Namespace() string {
	return k.namespace
}

// Location returns the namespace without its delimiters.
func (k *Key) Location() string {
	return strings.TrimSuffix(
		strings.TrimPrefix(k.namespace, ReservedNamespaceDelimiter),
		ReservedNamespaceDelimiter,
	)
}

// RedisKey converts a key to a valid Redis key string.
func (k *Key) RedisKey() string {
	return rediskey.Build(k.namespace, k.key)
}

// marshal marshals the key's string representation to the buffer.
func (k *Key) marshal(b *bytes.Buffer) {
	b.WriteString(k.key)
}

// String returns a string representation of the key. It does not include the namespace.
func (k *Key) String() string {
	if k == nil {
		return ""
	}
	b := bytes.NewBuffer(make([]byte, 0, 64))
	k.marshal(b)
	return b.String()
}

// KeyBuilder build a fully qualified application storage redis key.
//   - Either parent key or wildcard must be set.
//
// Key structure: "<__namespace__>:<parentKey>:<wildcard>"
type KeyBuilder struct {
	parentKey string                // Must be a valid Redis key fragment.
	wildcard  rediskey.GlobWildcard // For wildcard key matching.
	namespace string                // Optional key namespace.
}

func NewKeyBuilder() *KeyBuilder {
	return &KeyBuilder{}
}

func (b *KeyBuilder) WithParentKey(key string) {
	b.parentKey = key
}

func (b *KeyBuilder) WithWildcard(wc rediskey.GlobWildcard) {
	b.wildcard = wc
}

func (b *KeyBuilder) WithNamespace(ns string) {
	b.namespace = ns
}

// Build compiles the new key.
func (b *KeyBuilder) Build() (*Key, error) {
	if err := validateKeyFragments(b.parentKey); err != nil {
		return nil, fmt.Errorf("keyfactory: %w", err)
	}
	if b.namespace != "" {
		if err := ValidateLocation(b.namespace); err != nil {
			return nil, err
		}
	}
	key, err := rediskey.New(b.parentKey, string(b.wildcard))
	if err != nil {
		return nil, fmt.Errorf("keyfactory: %w", err)
	}
	return NewKey(key, b.namespace), nil
}

func validateKeyFragments(keyFragments ...string) error {
	for _, keyFragment := range keyFragments {
		if keyFragment == "" {
			continue // Skip empty fragments.
		}
		if strings.HasPrefix(keyFragment, ReservedNamespaceDelimiter) {
			return fmt.Errorf(
				"key fragment '%s' must not contain reserved namespace key prefix '%s'",
				keyFragment,
				ReservedNamespaceDelimiter,
			)
		}
	}
	return nil
}
