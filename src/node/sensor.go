package node

import (
	"math/rand"
)

// Sensor produces the local readings a node reports.
type Sensor interface {
	Sample() (temperature int8, illumination uint8)
}

// RandomSensor stands in for real hardware with uniformly random readings.
type RandomSensor struct {
	rng *rand.Rand
}

// NewRandomSensor returns a RandomSensor seeded with seed.
func NewRandomSensor(seed int64) *RandomSensor {
	return &RandomSensor{rng: rand.New(rand.NewSource(seed))}
}

// Sample implements Sensor.
func (s *RandomSensor) Sample() (int8, uint8) {
	v := s.rng.Uint32()
	return int8(v), uint8(v >> 8)
}
