// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package dataset

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tomtom215/cclsrec/internal/recommend"
)

// PadToken is the external id reported for the pad item.
const PadToken = "[PAD]"

// ErrEmptyDataset is returned when filtering leaves no usable sequence.
var ErrEmptyDataset = errors.New("dataset has no usable sequences")

// Options controls dataset construction.
type Options struct {
	// MaxSeqLength is the width of every history.
	MaxSeqLength int `koanf:"max_seq_length" json:"max_seq_length" validate:"min=1"`

	// MinUserInteractions drops users with fewer interactions.
	MinUserInteractions int `koanf:"min_user_interactions" json:"min_user_interactions" validate:"min=0"`

	// MinItemInteractions drops items with fewer interactions.
	MinItemInteractions int `koanf:"min_item_interactions" json:"min_item_interactions" validate:"min=0"`
}

// DefaultOptions returns the construction defaults.
func DefaultOptions() Options {
	return Options{MaxSeqLength: 50, MinUserInteractions: 5, MinItemInteractions: 5}
}

// Vocabulary maps external item ids to internal ids. Id 0 is the pad.
type Vocabulary struct {
	items []string
	index map[string]int
}

// NewVocabulary builds a vocabulary from external ids in internal order;
// items[0] must be the pad token.
func NewVocabulary(items []string) (*Vocabulary, error) {
	if len(items) == 0 || items[0] != PadToken {
		return nil, fmt.Errorf("vocabulary must start with %q", PadToken)
	}
	v := &Vocabulary{items: items, index: make(map[string]int, len(items))}
	for id := 1; id < len(items); id++ {
		if _, dup := v.index[items[id]]; dup {
			return nil, fmt.Errorf("duplicate item %q in vocabulary", items[id])
		}
		v.index[items[id]] = id
	}
	return v, nil
}

// Len returns the vocabulary size including the pad.
func (v *Vocabulary) Len() int { return len(v.items) }

// ID returns the internal id of an external item.
func (v *Vocabulary) ID(item string) (int, bool) {
	id, ok := v.index[item]
	return id, ok
}

// External returns the external id of an internal item.
func (v *Vocabulary) External(id int) string { return v.items[id] }

// Items returns the external ids in internal order. The slice must not be
// modified.
func (v *Vocabulary) Items() []string { return v.items }

// Example is one next-item prediction target.
type Example struct {
	User    string
	History []int
	Target  int
}

// Dataset is a processed interaction log.
type Dataset struct {
	Vocab *Vocabulary
	Info  recommend.DataInfo

	// Sequences holds every kept user's full chronological item sequence.
	Sequences map[string][]int

	Train []Example
	Valid []Example
	Test  []Example

	users []string
}

// Load reads src and builds the dataset.
func Load(ctx context.Context, src Source, opts Options) (*Dataset, error) {
	interactions, err := src.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read interactions: %w", err)
	}
	return Build(interactions, opts)
}

// Build filters, remaps and splits interactions.
func Build(interactions []Interaction, opts Options) (*Dataset, error) {
	if opts.MaxSeqLength < 1 {
		return nil, fmt.Errorf("max_seq_length must be positive, got %d", opts.MaxSeqLength)
	}
	kept := kCore(interactions, opts.MinUserInteractions, opts.MinItemInteractions)

	byUser := make(map[string][]Interaction)
	itemSet := make(map[string]struct{})
	for _, in := range kept {
		byUser[in.UserID] = append(byUser[in.UserID], in)
		itemSet[in.ItemID] = struct{}{}
	}
	if len(itemSet) == 0 {
		return nil, ErrEmptyDataset
	}

	items := make([]string, 0, len(itemSet)+1)
	items = append(items, PadToken)
	for it := range itemSet {
		items = append(items, it)
	}
	sort.Strings(items[1:])
	vocab, err := NewVocabulary(items)
	if err != nil {
		return nil, err
	}

	d := &Dataset{
		Vocab:     vocab,
		Info:      recommend.DataInfo{NItems: vocab.Len(), MaxSeqLength: opts.MaxSeqLength},
		Sequences: make(map[string][]int, len(byUser)),
	}
	for user := range byUser {
		d.users = append(d.users, user)
	}
	sort.Strings(d.users)

	for _, user := range d.users {
		events := byUser[user]
		sort.SliceStable(events, func(a, b int) bool { return events[a].Timestamp < events[b].Timestamp })
		seq := make([]int, len(events))
		for i, in := range events {
			seq[i], _ = vocab.ID(in.ItemID)
		}
		d.Sequences[user] = seq
		d.split(user, seq)
	}
	if len(d.Train)+len(d.Valid)+len(d.Test) == 0 {
		return nil, ErrEmptyDataset
	}
	return d, nil
}

// kCore repeatedly drops users and items below their thresholds until every
// remaining user and item meets them.
func kCore(in []Interaction, minUser, minItem int) []Interaction {
	cur := in
	for {
		users := make(map[string]int)
		items := make(map[string]int)
		for _, x := range cur {
			users[x.UserID]++
			items[x.ItemID]++
		}
		next := cur[:0:0]
		for _, x := range cur {
			if users[x.UserID] >= minUser && items[x.ItemID] >= minItem {
				next = append(next, x)
			}
		}
		if len(next) == len(cur) {
			return next
		}
		cur = next
	}
}

func (d *Dataset) split(user string, seq []int) {
	n := len(seq)
	example := func(target int) Example {
		return Example{User: user, History: d.truncate(seq[:target]), Target: seq[target]}
	}
	if n >= 2 {
		d.Test = append(d.Test, example(n-1))
	}
	if n >= 3 {
		d.Valid = append(d.Valid, example(n-2))
	}
	for t := 1; t <= n-3; t++ {
		d.Train = append(d.Train, example(t))
	}
}

func (d *Dataset) truncate(history []int) []int {
	if len(history) > d.Info.MaxSeqLength {
		history = history[len(history)-d.Info.MaxSeqLength:]
	}
	out := make([]int, len(history))
	copy(out, history)
	return out
}

// Users returns the kept users in sorted order.
func (d *Dataset) Users() []string { return d.users }

// RecentItems returns each user's most recent MaxSeqLength items as external
// ids, oldest first.
func (d *Dataset) RecentItems() map[string][]string {
	out := make(map[string][]string, len(d.Sequences))
	for user, seq := range d.Sequences {
		recent := d.truncate(seq)
		ext := make([]string, len(recent))
		for i, id := range recent {
			ext[i] = d.Vocab.External(id)
		}
		out[user] = ext
	}
	return out
}

// Stats summarizes a dataset for logging.
type Stats struct {
	Users        int `json:"users"`
	Items        int `json:"items"`
	Interactions int `json:"interactions"`
	Train        int `json:"train"`
	Valid        int `json:"valid"`
	Test         int `json:"test"`
}

// Stats returns dataset counts.
func (d *Dataset) Stats() Stats {
	s := Stats{Users: len(d.users), Items: d.Vocab.Len() - 1, Train: len(d.Train), Valid: len(d.Valid), Test: len(d.Test)}
	for _, seq := range d.Sequences {
		s.Interactions += len(seq)
	}
	return s
}
