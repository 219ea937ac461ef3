package cache

import (
	"context"
	"strconv"
	"testing"
	"time"
)

func BenchmarkQueryKey(b *testing.B) {
	vector := make([]float32, 384)
	for i := range vector {
		vector[i] = float32(i) * 0.01
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = QueryKey("docs", "benchmark query", vector, 10)
	}
}

func BenchmarkMemoryCache_Get(b *testing.B) {
	c := NewMemoryCache(10000)
	ctx := context.Background()
	value := make([]byte, 1024)
	for i := 0; i < 1000; i++ {
		_ = c.Set(ctx, "key-"+strconv.Itoa(i), value, time.Hour)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Get(ctx, "key-"+strconv.Itoa(i%1000))
	}
}

func BenchmarkMemoryCache_Set(b *testing.B) {
	c := NewMemoryCache(10000)
	ctx := context.Background()
	value := make([]byte, 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Set(ctx, "key-"+strconv.Itoa(i%5000), value, time.Hour)
	}
}
