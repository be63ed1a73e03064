// Package packer groups an ordered asset stream into capacity-bounded
// disc chunks.
package packer

import (
	"github.com/docker/go-units"
	"github.com/rs/zerolog"

	"github.com/immich-tools/discburn/asset"
)

// Chunk is one disc's worth of assets. Chunks are created in a single
// pass over the input and never mutated afterwards.
type Chunk struct {
	Number int // 1-based, sequential
	Assets []asset.Asset
	Size   int64
	Start  string // creation date of the first member
	End    string // creation date of the last member
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (c Chunk) MarshalZerologObject(e *zerolog.Event) {
	e.Int("disc", c.Number)
	e.Int("assets", len(c.Assets))
	e.Str("size", units.HumanSize(float64(c.Size)))
	e.Str("start", c.Start)
	e.Str("end", c.End)
}

// Pack splits assets into chunks whose cumulative size stays within
// capacity. The input order is preserved and every asset lands in exactly
// one chunk. An asset larger than capacity is never rejected or split:
// it becomes a chunk of its own. Callers must supply assets in
// creation-time ascending order; Pack does not re-sort.
func Pack(assets []asset.Asset, capacity int64) []Chunk {
	var chunks []Chunk
	var current []asset.Asset
	var size int64
	number := 1

	for _, a := range assets {
		if size+a.SizeBytes > capacity && len(current) > 0 {
			chunks = append(chunks, seal(number, current, size))
			number++
			current = nil
			size = 0
		}
		current = append(current, a)
		size += a.SizeBytes
	}
	if len(current) > 0 {
		chunks = append(chunks, seal(number, current, size))
	}

	return chunks
}

func seal(number int, members []asset.Asset, size int64) Chunk {
	return Chunk{
		Number: number,
		Assets: members,
		Size:   size,
		Start:  members[0].Date(),
		End:    members[len(members)-1].Date(),
	}
}
