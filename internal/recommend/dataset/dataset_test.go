// CCLSRec - Contrastive Sequential Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cclsrec

package dataset

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/cclsrec/internal/recommend"
)

// log builds interactions for one user from items in chronological order,
// listed out of order to exercise sorting.
func userLog(user string, items ...string) []Interaction {
	out := make([]Interaction, len(items))
	for i, it := range items {
		out[len(items)-1-i] = Interaction{UserID: user, ItemID: it, Timestamp: float64(i)}
	}
	return out
}

func TestBuildSplits(t *testing.T) {
	var in []Interaction
	in = append(in, userLog("u1", "a", "b", "c", "d", "e")...)
	in = append(in, userLog("u2", "c", "a")...)

	d, err := Build(in, Options{MaxSeqLength: 3})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if diff := cmp.Diff([]string{PadToken, "a", "b", "c", "d", "e"}, d.Vocab.Items()); diff != "" {
		t.Errorf("vocabulary mismatch (-want +got):\n%s", diff)
	}
	if d.Info != (recommend.DataInfo{NItems: 6, MaxSeqLength: 3}) {
		t.Errorf("Info = %+v", d.Info)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4, 5}, d.Sequences["u1"]); diff != "" {
		t.Errorf("u1 sequence mismatch (-want +got):\n%s", diff)
	}

	wantTrain := []Example{
		{User: "u1", History: []int{1}, Target: 2},
		{User: "u1", History: []int{1, 2}, Target: 3},
	}
	wantValid := []Example{{User: "u1", History: []int{1, 2, 3}, Target: 4}}
	wantTest := []Example{
		{User: "u1", History: []int{2, 3, 4}, Target: 5},
		{User: "u2", History: []int{3}, Target: 1},
	}
	if diff := cmp.Diff(wantTrain, d.Train); diff != "" {
		t.Errorf("Train mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantValid, d.Valid); diff != "" {
		t.Errorf("Valid mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantTest, d.Test); diff != "" {
		t.Errorf("Test mismatch (-want +got):\n%s", diff)
	}

	recent := d.RecentItems()
	if diff := cmp.Diff([]string{"c", "d", "e"}, recent["u1"]); diff != "" {
		t.Errorf("RecentItems mismatch (-want +got):\n%s", diff)
	}
	if s := d.Stats(); s.Users != 2 || s.Items != 5 || s.Interactions != 7 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestBuildKCore(t *testing.T) {
	var in []Interaction
	in = append(in, userLog("u1", "a", "b", "c")...)
	in = append(in, userLog("u2", "a", "b", "c")...)
	// u3 has enough interactions only while item z survives; z is rare.
	in = append(in, userLog("u3", "a", "z", "b")...)

	d, err := Build(in, Options{MaxSeqLength: 5, MinUserInteractions: 3, MinItemInteractions: 2})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	users := d.Users()
	sort.Strings(users)
	if diff := cmp.Diff([]string{"u1", "u2"}, users); diff != "" {
		t.Errorf("kept users mismatch (-want +got):\n%s", diff)
	}
	if _, ok := d.Vocab.ID("z"); ok {
		t.Error("rare item z kept")
	}

	if _, err := Build(in, Options{MaxSeqLength: 5, MinUserInteractions: 10}); !errors.Is(err, ErrEmptyDataset) {
		t.Errorf("Build() error = %v, want ErrEmptyDataset", err)
	}
	if _, err := Build(in, Options{}); err == nil {
		t.Error("Build() with zero max_seq_length should fail")
	}
}

func TestVocabulary(t *testing.T) {
	if _, err := NewVocabulary([]string{"a"}); err == nil {
		t.Error("NewVocabulary() without pad should fail")
	}
	if _, err := NewVocabulary([]string{PadToken, "a", "a"}); err == nil {
		t.Error("NewVocabulary() with duplicates should fail")
	}
	v, err := NewVocabulary([]string{PadToken, "x", "y"})
	if err != nil {
		t.Fatalf("NewVocabulary() error = %v", err)
	}
	if id, ok := v.ID("y"); !ok || id != 2 {
		t.Errorf("ID(y) = %d, %v", id, ok)
	}
	if _, ok := v.ID(PadToken); ok {
		t.Error("pad token resolves to an item id")
	}
	if v.External(1) != "x" || v.Len() != 3 {
		t.Errorf("External(1) = %q, Len() = %d", v.External(1), v.Len())
	}
}

func TestMakeBatch(t *testing.T) {
	info := recommend.DataInfo{NItems: 10, MaxSeqLength: 3}
	b := MakeBatch([]Example{
		{History: []int{4}, Target: 5},
		{History: []int{1, 2, 3, 4}, Target: 9},
	}, info)
	if diff := cmp.Diff([][]int{{4, 0, 0}, {2, 3, 4}}, b.ItemSeq); diff != "" {
		t.Errorf("ItemSeq mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 3}, b.ItemSeqLen); diff != "" {
		t.Errorf("ItemSeqLen mismatch (-want +got):\n%s", diff)
	}
	if err := b.Validate(info); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestIterator(t *testing.T) {
	info := recommend.DataInfo{NItems: 4, MaxSeqLength: 2}
	examples := make([]Example, 10)
	for i := range examples {
		examples[i] = Example{History: []int{1 + i%3}, Target: 1 + (i+1)%3}
	}

	epoch := func(seed int64) [][]int {
		it, err := NewIterator(examples, info, 4, true, rand.New(rand.NewSource(seed)))
		if err != nil {
			t.Fatalf("NewIterator() error = %v", err)
		}
		if it.NumBatches() != 3 {
			t.Fatalf("NumBatches() = %d, want 3", it.NumBatches())
		}
		it.Reset()
		var seqs [][]int
		var sizes []int
		for {
			b, ok := it.Next()
			if !ok {
				break
			}
			sizes = append(sizes, b.Size())
			for i := range b.NegItems {
				if b.NegItems[i] == b.PosItems[i] || b.NegItems[i] < 1 || b.NegItems[i] >= info.NItems {
					t.Errorf("negative %d invalid for positive %d", b.NegItems[i], b.PosItems[i])
				}
			}
			seqs = append(seqs, b.ItemSeq...)
		}
		if diff := cmp.Diff([]int{4, 4, 2}, sizes); diff != "" {
			t.Errorf("batch sizes mismatch (-want +got):\n%s", diff)
		}
		return seqs
	}

	if diff := cmp.Diff(epoch(1), epoch(1)); diff != "" {
		t.Errorf("same seed produced different epochs:\n%s", diff)
	}
	if len(epoch(2)) != 10 {
		t.Error("epoch did not visit every example")
	}

	if _, err := NewIterator(examples, info, 0, false, rand.New(rand.NewSource(1))); err == nil {
		t.Error("NewIterator() with zero batch size should fail")
	}
	if _, err := NewIterator(examples, info, 2, false, nil); !errors.Is(err, recommend.ErrNoRandomSource) {
		t.Errorf("NewIterator() error = %v, want ErrNoRandomSource", err)
	}
}

func TestBatches(t *testing.T) {
	info := recommend.DataInfo{NItems: 4, MaxSeqLength: 2}
	examples := []Example{{History: []int{1}, Target: 2}, {History: []int{2}, Target: 3}, {History: []int{3}, Target: 1}}
	batches := Batches(examples, info, 2)
	if len(batches) != 2 || batches[0].Size() != 2 || batches[1].Size() != 1 {
		t.Fatalf("Batches() sizes wrong: %d batches", len(batches))
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestFileSource(t *testing.T) {
	want := []Interaction{
		{UserID: "u1", ItemID: "i1", Timestamp: 10},
		{UserID: "7", ItemID: "42", Timestamp: 11.5},
	}
	tests := []struct {
		name    string
		format  Format
		fields  Fields
		content string
	}{
		{
			name:    "jsonl",
			format:  FormatJSONL,
			content: `{"user_id":"u1","item_id":"i1","timestamp":10}` + "\n\n" + `{"user_id":7,"item_id":42,"timestamp":"11.5","extra":true}` + "\n",
		},
		{
			name:    "csv",
			format:  FormatCSV,
			content: "user_id,item_id,timestamp\nu1,i1,10\n7,42,11.5\n",
		},
		{
			name:    "tsv custom fields",
			format:  FormatTSV,
			fields:  Fields{User: "user", Item: "movie", Timestamp: "ts"},
			content: "ts\tmovie\tuser\n10\ti1\tu1\n11.5\t42\t7\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &FileSource{Path: writeFile(t, "data."+string(tt.format), tt.content), Format: tt.format, Fields: tt.fields}
			got, err := src.Read(context.Background())
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Read() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFileSourceErrors(t *testing.T) {
	tests := []struct {
		name     string
		format   Format
		content  string
		contains string
	}{
		{"bad json", FormatJSONL, "{\"user_id\":\"u\"\n", "data:1"},
		{"missing key", FormatJSONL, `{"user_id":"u","timestamp":1}` + "\n", "item_id"},
		{"missing column", FormatCSV, "user_id,timestamp\nu,1\n", "item_id"},
		{"bad timestamp", FormatCSV, "user_id,item_id,timestamp\nu,i,1\nu,i,x\n", "data:3"},
		{"unknown format", "xml", "", "unsupported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &FileSource{Path: writeFile(t, "data", tt.content), Format: tt.format}
			_, err := src.Read(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("Read() error = %v, want it to contain %q", err, tt.contains)
			}
		})
	}

	if _, err := (&FileSource{Path: filepath.Join(t.TempDir(), "missing"), Format: FormatCSV}).Read(context.Background()); err == nil {
		t.Error("Read() of a missing file should fail")
	}
}

func TestLoad(t *testing.T) {
	src := SliceSource(userLog("u", "a", "b", "c"))
	d, err := Load(context.Background(), src, Options{MaxSeqLength: 4})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(d.Test) != 1 || len(d.Valid) != 1 || len(d.Train) != 0 {
		t.Errorf("splits = %d/%d/%d, want 0/1/1", len(d.Train), len(d.Valid), len(d.Test))
	}
}
