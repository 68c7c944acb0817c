package keyfactory

import (
	"fmt"
	"log"
	"strconv"

	"github.com/holmberd/go-voxelfile/keyfactory/internal/rediskey"
	"github.com/holmberd/go-voxelfile/voxel"
)

// LocationKeys builds the keys of a single location.
// Integer fragments are always valid, so key construction cannot fail once
// the location is validated.
type LocationKeys struct {
	location  string
	namespace string
}

func ForLocation(location string) (*LocationKeys, error) {
	if err := ValidateLocation(location); err != nil {
		return nil, err
	}
	return &LocationKeys{location: location, namespace: keyNamespace(location)}, nil
}

func (l *LocationKeys) Location() string {
	return l.location
}

// Block returns the key holding the symbol of cell c.
func (l *LocationKeys) Block(c voxel.Coordinate) *Key {
	return l.key(KindBlock, rediskey.Ints(c.X, c.Y, c.Z)...)
}

// Chunk returns the marker key of a provisioned chunk.
func (l *LocationKeys) Chunk(c voxel.ChunkCoord) *Key {
	return l.key(KindChunk, rediskey.Ints(c.X, c.Z)...)
}

// Lock returns the key holding the id of the session owning the location.
func (l *LocationKeys) Lock() *Key {
	return l.key(KindLock)
}

// Match returns a glob pattern key over all keys of the kind, or over the
// whole location if kind is empty.
func (l *LocationKeys) Match(kind Kind) *Key {
	kb := NewKeyBuilder()
	kb.WithNamespace(l.location)
	kb.WithParentKey(string(kind))
	kb.WithWildcard(WildcardAnyString)
	key, err := kb.Build()
	if err != nil {
		log.Panicf("keyfactory: invalid match key for validated location: %v", err)
	}
	return key
}

func (l *LocationKeys) key(kind Kind, fragments ...string) *Key {
	return &Key{
		key:       rediskey.Build(append([]string{string(kind)}, fragments...)...),
		namespace: l.namespace,
	}
}

// ParseBlockKey extracts the cell coordinate from a block key.
func ParseBlockKey(k *Key) (voxel.Coordinate, error) {
	fragments := rediskey.Parse(k.Key())
	if len(fragments) != 4 || Kind(fragments[0]) != KindBlock {
		return voxel.Coordinate{}, fmt.Errorf("keyfactory: '%s' is not a block key", k.RedisKey())
	}
	var xyz [3]int
	for i, f := range fragments[1:] {
		n, err := strconv.Atoi(f)
		if err != nil {
			return voxel.Coordinate{}, fmt.Errorf("keyfactory: invalid block key '%s': %w", k.RedisKey(), err)
		}
		xyz[i] = n
	}
	return voxel.Coordinate{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
}
