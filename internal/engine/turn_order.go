package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Slot names a captain by seat so ban orders can be configured before
// captains are known.
type Slot string

const (
	SlotCaptain1 Slot = "captain1"
	SlotCaptain2 Slot = "captain2"
)

type BanStage struct {
	Captain Slot `json:"captain"`
	Bans    int  `json:"bans"`
}

// DefaultBanOrder alternates single bans, captain2 first, until one map is
// left.
func DefaultBanOrder(poolSize int) []BanStage {
	order := make([]BanStage, 0, max(poolSize-1, 0))
	for i := 0; i < poolSize-1; i++ {
		slot := SlotCaptain2
		if i%2 == 1 {
			slot = SlotCaptain1
		}
		order = append(order, BanStage{Captain: slot, Bans: 1})
	}
	return order
}

// ParseBanOrder reads "captain2:2,captain1:3,captain2:1". An empty string
// yields a nil order.
func ParseBanOrder(s string) ([]BanStage, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var order []BanStage
	for _, part := range strings.Split(s, ",") {
		slot, count, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("ban stage %q: want captain:count", part)
		}
		n, err := strconv.Atoi(count)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("ban stage %q: count must be a positive integer", part)
		}
		st := BanStage{Captain: Slot(strings.ToLower(slot)), Bans: n}
		if st.Captain != SlotCaptain1 && st.Captain != SlotCaptain2 {
			return nil, fmt.Errorf("ban stage %q: unknown captain %q", part, slot)
		}
		order = append(order, st)
	}
	return order, nil
}

// ValidateBanOrder checks that captain2 opens the veto and that consecutive
// stages alternate captains. A total that does not leave exactly one map is
// allowed and surfaces as a veto anomaly at runtime.
func ValidateBanOrder(order []BanStage) error {
	if len(order) > 0 && order[0].Captain != SlotCaptain2 {
		return fmt.Errorf("ban order must start with %s", SlotCaptain2)
	}
	for i := 1; i < len(order); i++ {
		if order[i].Captain == order[i-1].Captain {
			return fmt.Errorf("ban stages %d and %d both belong to %s; merge them", i, i+1, order[i].Captain)
		}
	}
	return nil
}

func TotalBans(order []BanStage) int {
	total := 0
	for _, st := range order {
		total += st.Bans
	}
	return total
}
