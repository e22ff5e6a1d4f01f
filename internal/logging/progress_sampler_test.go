package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		want       float64
	}{
		{"zero uses default", 0, 10},
		{"negative uses default", -1, 10},
		{"custom", 5, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize)
			if s.bucketSize != tt.want {
				t.Fatalf("bucketSize = %v, want %v", s.bucketSize, tt.want)
			}
		})
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "images") {
		t.Fatal("nil sampler should always log")
	}
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)
	steps := []struct {
		percent float64
		stage   string
		want    bool
	}{
		{10, "images", true},
		{12, "images", false},
		{19, "images", false},
		{20, "images", true},
		{20, "images", false},
		{65, "script", true},
		{150, "script", true},
		{100, "script", false},
		{-1, "script", false},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.percent, step.stage); got != step.want {
			t.Fatalf("step %d (%v %s): got %v want %v", i, step.percent, step.stage, got, step.want)
		}
	}
}
