package ledger

import (
	"fmt"

	"github.com/screwyprof/hivestake/pkg/registry"
)

// Class is the reward tier of a staked asset
type Class int

const (
	ClassDrone Class = iota
	ClassWorker
	ClassQueen
)

func (c Class) String() string {
	switch c {
	case ClassQueen:
		return "queen"
	case ClassWorker:
		return "worker"
	default:
		return "drone"
	}
}

// ParseClass is the inverse of Class.String
func ParseClass(s string) (Class, error) {
	switch s {
	case "queen":
		return ClassQueen, nil
	case "worker":
		return ClassWorker, nil
	case "drone":
		return ClassDrone, nil
	}
	return ClassDrone, fmt.Errorf("%w: unknown asset class %q", ErrValidation, s)
}

// Weights maps each class to its reward weight
type Weights struct {
	Queen  uint64
	Worker uint64
	Drone  uint64
}

// DefaultWeights is the stock class table
var DefaultWeights = Weights{Queen: 50, Worker: 30, Drone: 20}

// Of returns the weight of class c
func (w Weights) Of(c Class) uint64 {
	switch c {
	case ClassQueen:
		return w.Queen
	case ClassWorker:
		return w.Worker
	default:
		return w.Drone
	}
}

// Validate rejects zero weights; every record must add to the pool's total
func (w Weights) Validate() error {
	for _, c := range []Class{ClassQueen, ClassWorker, ClassDrone} {
		if w.Of(c) == 0 {
			return fmt.Errorf("%w: weight of %s must be positive", ErrValidation, c)
		}
	}
	return nil
}

type rule struct {
	traitType string
	value     string
	class     Class
}

// rules are evaluated in order; the first match wins.
var rules = []rule{
	{traitType: "Body", value: "Queen", class: ClassQueen},
	{traitType: "Wings", value: "Diamond", class: ClassWorker},
}

// Classify maps registry metadata to a class. Assets matching no rule are drones.
func Classify(md registry.Metadata) Class {
	for _, r := range rules {
		for _, attr := range md.ReferenceBlob.Attributes {
			if attr.TraitType == r.traitType && attr.Value == r.value {
				return r.class
			}
		}
	}
	return ClassDrone
}
