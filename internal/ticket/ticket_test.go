package ticket

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate_Format(t *testing.T) {
	code := Generate("DP")
	assert.Len(t, code, 10)
	assert.True(t, Valid("DP", code), code)
	assert.Regexp(t, `^DP[0-9A-F]{8}$`, code)
}

func TestGenerator_DefaultPrefix(t *testing.T) {
	gen := Generator("")
	assert.True(t, Valid(DefaultPrefix, gen()))

	gen = Generator("RH")
	assert.True(t, Valid("RH", gen()))
}

func TestValid(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"DP1A2B3C4D", true},
		{"DP00000000", true},
		{"dp1a2b3c4d", false},
		{"DP1A2B3C4", false},
		{"DP1A2B3C4DE", false},
		{"XX1A2B3C4D", false},
		{"DPZZZZZZZZ", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid("DP", tt.code))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "DP1A2B3C4D", Normalize("  dp1a2b3c4d \n"))
}

func TestGenerate_ConcurrentUnique(t *testing.T) {
	const n = 500
	var (
		mu    sync.Mutex
		seen  = make(map[string]bool, n)
		wg    sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code := Generate("DP")
			mu.Lock()
			seen[code] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	// 32 random bits: a collision among 500 codes is vanishingly unlikely.
	assert.Len(t, seen, n)
}
