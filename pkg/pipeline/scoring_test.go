package pipeline

import (
	"math"
	"testing"
)

func TestContentMetrics(t *testing.T) {
	tests := []struct {
		name   string
		target int
		orbit1 int
		orbit2 int
		wantC  float64
		wantD  float64
		wantOK bool
	}{
		{
			name:   "strong target weak orbits",
			target: 6, orbit1: 2, orbit2: 2,
			wantC: 1.0, wantD: 0.6667, wantOK: true,
		},
		{
			name:   "high target but orbits too close",
			target: 5, orbit1: 4, orbit2: 4,
			wantC: 0.8333, wantD: 0.1667, wantOK: false,
		},
		{
			name:   "target below threshold",
			target: 4, orbit1: 1, orbit2: 1,
			wantC: 0.6667, wantD: 0.5, wantOK: false,
		},
		{
			name:   "orbits above target clamp d at floor direction",
			target: 2, orbit1: 7, orbit2: 7,
			wantC: 0.3333, wantD: -0.8333, wantOK: false,
		},
		{
			name:   "maximum separation",
			target: 7, orbit1: 1, orbit2: 1,
			wantC: 1.0, wantD: 1.0, wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, d, ok := ContentMetrics(tt.target, tt.orbit1, tt.orbit2)
			if math.Abs(c-tt.wantC) > 0.001 {
				t.Errorf("c = %.4f, want %.4f", c, tt.wantC)
			}
			if math.Abs(d-tt.wantD) > 0.001 {
				t.Errorf("d = %.4f, want %.4f", d, tt.wantD)
			}
			if ok != tt.wantOK {
				t.Errorf("ok = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}

func TestDecide(t *testing.T) {
	perfectLing := LinguisticRating{Grammar: 5, Ease: 5, NegFree: 5, Clarity: 5}

	tests := []struct {
		name string
		b    RatingBundle
		want Decision
	}{
		{
			name: "keep when content ok and no defects",
			b: RatingBundle{
				Content:    ContentRating{Target: 6, Orbit1: 2, Orbit2: 2},
				Linguistic: perfectLing,
				Bias:       5,
			},
			want: DecisionKeep,
		},
		{
			name: "revise when content misses thresholds",
			b: RatingBundle{
				Content:    ContentRating{Target: 5, Orbit1: 4, Orbit2: 4},
				Linguistic: perfectLing,
				Bias:       5,
			},
			want: DecisionRevise,
		},
		{
			name: "discard on severe bias",
			b: RatingBundle{
				Content:    ContentRating{Target: 6, Orbit1: 2, Orbit2: 2},
				Linguistic: perfectLing,
				Bias:       2,
			},
			want: DecisionDiscard,
		},
		{
			name: "discard on severe linguistic defect",
			b: RatingBundle{
				Content:    ContentRating{Target: 6, Orbit1: 2, Orbit2: 2},
				Linguistic: LinguisticRating{Grammar: 5, Ease: 2, NegFree: 5, Clarity: 5},
				Bias:       5,
			},
			want: DecisionDiscard,
		},
		{
			name: "revise with moderate bias and moderate linguistic",
			b: RatingBundle{
				Content:    ContentRating{Target: 6, Orbit1: 2, Orbit2: 2},
				Linguistic: LinguisticRating{Grammar: 4, Ease: 3, NegFree: 4, Clarity: 4},
				Bias:       4,
			},
			want: DecisionRevise,
		},
		{
			name: "keep requires bias at least 4",
			b: RatingBundle{
				Content:    ContentRating{Target: 6, Orbit1: 2, Orbit2: 2},
				Linguistic: perfectLing,
				Bias:       3,
			},
			want: DecisionRevise,
		},
		{
			name: "keep at exact linguistic floor",
			b: RatingBundle{
				Content:    ContentRating{Target: 6, Orbit1: 2, Orbit2: 2},
				Linguistic: LinguisticRating{Grammar: 4, Ease: 4, NegFree: 4, Clarity: 4},
				Bias:       4,
			},
			want: DecisionKeep,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.b)
			if got != tt.want {
				t.Errorf("Decide() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDecideDeterministic(t *testing.T) {
	b := RatingBundle{
		Content:    ContentRating{Target: 5, Orbit1: 3, Orbit2: 2},
		Linguistic: LinguisticRating{Grammar: 4, Ease: 4, NegFree: 3, Clarity: 4},
		Bias:       4,
	}
	first := Decide(b)
	for i := 0; i < 100; i++ {
		if got := Decide(b); got != first {
			t.Fatalf("Decide() not deterministic: got %s then %s", first, got)
		}
	}
}
