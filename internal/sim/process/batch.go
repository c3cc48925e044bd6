package process

import (
	"slices"

	"github.com/google/uuid"

	"github.com/Syrchalis/ProcessorFramework/internal/sim/process/quality"
)

// Batch is a counted stack of one item. Tags carry provenance (for example
// the ingredients a product was made from) and pass through extraction.
type Batch struct {
	ID      string        `json:"id"`
	Item    string        `json:"item"`
	Count   int           `json:"count"`
	Tags    []string      `json:"tags,omitempty"`
	Quality *quality.Tier `json:"quality,omitempty"`
}

func NewBatch(item string, count int, tags ...string) Batch {
	return Batch{ID: uuid.NewString(), Item: item, Count: count, Tags: tags}
}

// StacksWith reports whether two batches are interchangeable.
func (b Batch) StacksWith(o Batch) bool {
	if b.Item != o.Item || !slices.Equal(b.Tags, o.Tags) {
		return false
	}
	if (b.Quality == nil) != (o.Quality == nil) {
		return false
	}
	return b.Quality == nil || *b.Quality == *o.Quality
}

// split returns a batch of n taken from b and what remains.
func (b Batch) split(n int) (taken, rest Batch) {
	if n >= b.Count {
		return b, Batch{}
	}
	if n <= 0 {
		return Batch{}, b
	}
	taken = b
	taken.Count = n
	rest = b
	rest.ID = uuid.NewString()
	rest.Count = b.Count - n
	rest.Tags = slices.Clone(b.Tags)
	return taken, rest
}

func (b Batch) Empty() bool { return b.Count <= 0 }
