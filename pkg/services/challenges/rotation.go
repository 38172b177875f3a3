package challenges

import (
	"hash/fnv"
	"sort"

	"github.com/fadedpez/ebucks/pkg/entities"
)

// Rotation decides which catalog entries are offered on a day
type Rotation interface {
	Today(all []entities.Challenge, day entities.Day) []entities.Challenge
}

// FullCatalog offers every challenge every day
type FullCatalog struct{}

func (FullCatalog) Today(all []entities.Challenge, _ entities.Day) []entities.Challenge {
	out := make([]entities.Challenge, len(all))
	copy(out, all)
	return out
}

// DailySubset offers Size challenges picked deterministically per day, in catalog order
type DailySubset struct {
	Size int
}

func (r DailySubset) Today(all []entities.Challenge, day entities.Day) []entities.Challenge {
	if r.Size <= 0 || r.Size >= len(all) {
		return FullCatalog{}.Today(all, day)
	}

	type ranked struct {
		index int
		score uint64
	}
	ranks := make([]ranked, len(all))
	for i, c := range all {
		h := fnv.New64a()
		h.Write([]byte(day))
		h.Write([]byte{0})
		h.Write([]byte(c.ID))
		ranks[i] = ranked{index: i, score: h.Sum64()}
	}
	sort.Slice(ranks, func(a, b int) bool {
		if ranks[a].score == ranks[b].score {
			return ranks[a].index < ranks[b].index
		}
		return ranks[a].score < ranks[b].score
	})

	picked := ranks[:r.Size]
	sort.Slice(picked, func(a, b int) bool { return picked[a].index < picked[b].index })

	out := make([]entities.Challenge, 0, r.Size)
	for _, p := range picked {
		out = append(out, all[p.index])
	}
	return out
}

// RotationFor returns DailySubset when size is positive, FullCatalog otherwise
func RotationFor(size int) Rotation {
	if size > 0 {
		return DailySubset{Size: size}
	}
	return FullCatalog{}
}
