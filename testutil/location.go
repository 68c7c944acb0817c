package testutil

import "math/rand"

// RandomLocation returns a random 10-character location name.
// Tests sharing a server use it to keep their keys apart.
func RandomLocation() string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	loc := make([]byte, 10)
	for i := range loc {
		loc[i] = letters[rand.Intn(len(letters))]
	}
	return string(loc)
}
