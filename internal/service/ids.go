package service

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// KSUIDGenerator produces k-sortable ids for chat turns. They give a
// stable tiebreak when two turns share a timestamp.
type KSUIDGenerator struct{}

func (g *KSUIDGenerator) NewString() string {
	return ksuid.New().String()
}
