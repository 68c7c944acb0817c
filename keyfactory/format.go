package keyfactory

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/holmberd/go-voxelfile/keyfactory/internal/rediskey"
)

var namespacePattern = regexp.MustCompile(`^(?P<namespace>__[a-zA-Z0-9_\-]+?__)(:|$)`)

// ParseRedisKey parses a Redis key into a Key.
//
// Example:
//
//	key, _ := ParseRedisKey("__world-1__:block:-3:64:12")
//	// key  => *Key{key: "block:-3:64:12", namespace: "__world-1__"}
func ParseRedisKey(key string) (*Key, error) {
	if err := rediskey.Validate(key); err != nil {
		return nil, fmt.Errorf("keyfactory: failed to parse redis key '%s': %w", key, err)
	}
	var namespace string

	// Extract namespace if present.
	if matches := namespacePattern.FindStringSubmatch(key); len(matches) > 0 {
		full := matches[0]
		namespace = matches[1]

		// Trim suffix/prefix since NewKey() applies them.
		namespace = strings.TrimSuffix(
			strings.TrimPrefix(namespace, ReservedNamespaceDelimiter),
			ReservedNamespaceDelimiter,
		)
		key = strings.TrimPrefix(key, full)
	}
	return NewKey(key, namespace), nil
}
