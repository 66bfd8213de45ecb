package engine

import (
	"math"
	"slices"
	"sort"
)

type rated struct {
	id     string
	rating float64
}

// Balance splits members into two teams of ceil(n/2) and floor(n/2) players
// by greedy rating sums. Unrated members count as the median of the known
// ratings. Each assignment is flipped to the other team with probability
// flip. The first player placed on a team is its captain.
func Balance(members []Member, flip float64, rng Rand) Teams {
	median := medianRating(members)
	players := make([]rated, 0, len(members))
	for _, m := range members {
		r := median
		if m.Rating != nil {
			r = *m.Rating
		}
		players = append(players, rated{id: m.PlayerID, rating: r})
	}
	sort.SliceStable(players, func(i, j int) bool { return players[i].rating > players[j].rating })

	n := len(players)
	target := [2]int{(n + 1) / 2, n / 2}
	var teams [2][]rated
	var sums [2]float64

	for _, p := range players {
		side := 0
		if sums[1] < sums[0] {
			side = 1
		}
		if len(teams[side]) >= target[side] {
			side = 1 - side
		}
		if flip > 0 && rng.Float64() < flip {
			side = 1 - side
		}
		teams[side] = append(teams[side], p)
		sums[side] += p.rating
	}

	// Flips can overfill a side; shed its weakest non-captain.
	for side := range 2 {
		for len(teams[side]) > target[side] {
			idx := lowestRated(teams[side])
			moved := teams[side][idx]
			teams[side] = slices.Delete(teams[side], idx, idx+1)
			teams[1-side] = append(teams[1-side], moved)
		}
	}

	out := Teams{Team1: ids(teams[0]), Team2: ids(teams[1])}
	if len(out.Team1) > 0 {
		out.Captain1 = out.Team1[0]
	}
	if len(out.Team2) > 0 {
		out.Captain2 = out.Team2[0]
	}
	return out
}

func medianRating(members []Member) float64 {
	known := make([]float64, 0, len(members))
	for _, m := range members {
		if m.Rating != nil {
			known = append(known, *m.Rating)
		}
	}
	if len(known) == 0 {
		return 0
	}
	slices.Sort(known)
	mid := len(known) / 2
	if len(known)%2 == 1 {
		return known[mid]
	}
	return (known[mid-1] + known[mid]) / 2
}

// lowestRated skips index 0 so the captain never moves.
func lowestRated(team []rated) int {
	idx, low := -1, math.Inf(1)
	for i := 1; i < len(team); i++ {
		if team[i].rating <= low {
			idx, low = i, team[i].rating
		}
	}
	if idx < 0 {
		return 0
	}
	return idx
}

func ids(team []rated) []string {
	out := make([]string, len(team))
	for i, p := range team {
		out[i] = p.id
	}
	return out
}
