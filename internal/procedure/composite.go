package procedure

import (
	"context"
	"fmt"
	"strconv"

	"gitlab.com/autoserver-2025.net/internal/domain"
)

// sequence succeeds when all children succeed in order.
type sequence struct{}

func (sequence) execute(ctx context.Context, ex *execution, self *Instruction) domain.ExecutionStatus {
	child := self.next()
	if child == nil {
		return domain.StatusSuccess
	}
	switch child.tick(ctx, ex) {
	case domain.StatusSuccess:
		self.cursor++
		if self.cursor == len(self.children) {
			return domain.StatusSuccess
		}
		return domain.StatusNotFinished
	case domain.StatusFailure:
		return domain.StatusFailure
	default:
		return domain.StatusNotFinished
	}
}

// fallback succeeds with the first child that succeeds.
type fallback struct{}

func (fallback) execute(ctx context.Context, ex *execution, self *Instruction) domain.ExecutionStatus {
	child := self.next()
	if child == nil {
		return domain.StatusFailure
	}
	switch child.tick(ctx, ex) {
	case domain.StatusFailure:
		self.cursor++
		if self.cursor == len(self.children) {
			return domain.StatusFailure
		}
		return domain.StatusNotFinished
	case domain.StatusSuccess:
		return domain.StatusSuccess
	default:
		return domain.StatusNotFinished
	}
}

// repeat runs its child maxCount times, or forever when maxCount is negative.
type repeat struct {
	maxCount int
}

func newRepeat(attrs attributes) (behavior, error) {
	raw, err := attrs.require("maxCount")
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("maxCount: %w", err)
	}
	return repeat{maxCount: n}, nil
}

func (r repeat) execute(ctx context.Context, ex *execution, self *Instruction) domain.ExecutionStatus {
	if r.maxCount == 0 {
		return domain.StatusSuccess
	}
	child := self.children[0]
	switch child.tick(ctx, ex) {
	case domain.StatusSuccess:
		self.count++
		if r.maxCount > 0 && self.count >= r.maxCount {
			return domain.StatusSuccess
		}
		child.reset(ex.ui)
		return domain.StatusNotFinished
	case domain.StatusFailure:
		return domain.StatusFailure
	default:
		return domain.StatusNotFinished
	}
}

// inverter swaps success and failure of its child.
type inverter struct{}

func (inverter) execute(ctx context.Context, ex *execution, self *Instruction) domain.ExecutionStatus {
	switch self.children[0].tick(ctx, ex) {
	case domain.StatusSuccess:
		return domain.StatusFailure
	case domain.StatusFailure:
		return domain.StatusSuccess
	default:
		return domain.StatusNotFinished
	}
}
