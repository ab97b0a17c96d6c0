package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/corpus"
)

var benchWords = []string{
	"simulator", "rollout", "history", "recorder", "policy", "belief",
	"updater", "reward", "discount", "state", "action", "observation",
	"solver", "planner", "pomdp", "mdp", "step", "transition", "sample",
	"parallel", "display", "tree", "search", "value", "iteration",
}

func syntheticRecords(n int) []corpus.Record {
	categories := []string{"page", "section", "function", "type", "module"}
	records := make([]corpus.Record, n)
	for i := range records {
		text := ""
		for j := 0; j < 40; j++ {
			text += benchWords[(i*7+j*3)%len(benchWords)] + " "
		}
		records[i] = corpus.Record{
			Location: fmt.Sprintf("api/%d/#sym-%d", i/20, i),
			Page:     fmt.Sprintf("Page %d", i/20),
			Title:    benchWords[i%len(benchWords)] + " " + benchWords[(i/3)%len(benchWords)],
			Category: categories[i%len(categories)],
			Text:     text,
		}
	}
	return records
}

func BenchmarkBuild(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		records := syntheticRecords(n)
		b.Run(fmt.Sprintf("records_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, _, err := Build(context.Background(), records, BuildOptions{}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkBuildWorkers(b *testing.B) {
	records := syntheticRecords(5000)
	for _, workers := range []int{1, 4, 8} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, _, err := Build(context.Background(), records, BuildOptions{Workers: workers}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkBuildPayload(b *testing.B) {
	f, err := os.Open(filepath.Join("..", "corpus", "testdata", "search_index.js"))
	if err != nil {
		b.Fatal(err)
	}
	records, err := corpus.ParseDocumenter(f)
	f.Close()
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Build(context.Background(), records, BuildOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEngineSnapshotParallel(b *testing.B) {
	e := NewEngine(BuildOptions{})
	if _, err := e.Rebuild(context.Background(), syntheticRecords(1000)); err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = e.Snapshot().Index.TotalDocs()
		}
	})
}
