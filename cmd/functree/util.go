package main

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func percentileMillis(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 1 {
		return samples[len(samples)-1]
	}
	idx := int(float64(len(samples)-1) * p)
	return samples[idx]
}

func percentiles(samples []float64) (float64, float64, float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)
	return percentileMillis(cp, 0.50), percentileMillis(cp, 0.95), percentileMillis(cp, 0.99)
}

func ensureDir(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("output path is required")
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
