package domain

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"
)

// RoomCode identifies a room. Codes are stored and compared upper-cased.
type RoomCode string

const (
	RoomCodeLength   = 6
	RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type Room struct {
	Code      RoomCode  `json:"code"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	Active    bool      `json:"active"`
}

// NormalizeRoomCode trims and upper-cases user input.
func NormalizeRoomCode(code string) RoomCode {
	return RoomCode(strings.ToUpper(strings.TrimSpace(code)))
}

// Valid reports whether the code is exactly six characters from A-Z0-9.
func (c RoomCode) Valid() bool {
	if len(c) != RoomCodeLength {
		return false
	}
	for _, r := range string(c) {
		if !strings.ContainsRune(RoomCodeAlphabet, r) {
			return false
		}
	}
	return true
}

func (c RoomCode) String() string { return string(c) }

func (c RoomCode) Normalize() RoomCode { return NormalizeRoomCode(string(c)) }

// GenerateRoomCode returns a fresh random code. It does not check for
// collisions; the room service does that against the store.
func GenerateRoomCode() (RoomCode, error) {
	var b strings.Builder
	b.Grow(RoomCodeLength)
	max := big.NewInt(int64(len(RoomCodeAlphabet)))
	for i := 0; i < RoomCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(RoomCodeAlphabet[n.Int64()])
	}
	return RoomCode(b.String()), nil
}
