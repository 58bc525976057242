package workout

import (
	"errors"
	"reflect"
	"testing"
)

func TestNormalizeExerciseName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"trims and capitalizes", "  penkkipunnerrus ", "Penkkipunnerrus"},
		{"collapses internal whitespace", "leg   press", "Leg press"},
		{"tabs and newlines", "leg\t\npress", "Leg press"},
		{"already canonical", "Kyykky", "Kyykky"},
		{"non-ascii first rune", "äärirutistus", "Äärirutistus"},
		{"whitespace only", "   ", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeExerciseName(tt.in)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
			// Normalization is idempotent.
			if again := NormalizeExerciseName(got); again != got {
				t.Errorf("not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestNormalizeEntryInputValid(t *testing.T) {
	ne, err := NormalizeEntryInput(EntryInput{
		Exercise: " penkki punnerrus ",
		Sets:     "3",
		Reps:     " 8 ",
		Weights:  "80,5; 82,5",
		Failure:  true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ne.Exercise != "Penkki punnerrus" {
		t.Errorf("exercise = %q", ne.Exercise)
	}
	if ne.ExerciseKey != "penkki punnerrus" {
		t.Errorf("key = %q", ne.ExerciseKey)
	}
	if ne.Sets != 3 || ne.Reps != 8 {
		t.Errorf("sets/reps = %d/%d", ne.Sets, ne.Reps)
	}
	if ne.WeightsRaw != "80.5;82.5" {
		t.Errorf("raw weights = %q", ne.WeightsRaw)
	}
	if !reflect.DeepEqual(ne.Weights, []float64{80.5, 82.5}) {
		t.Errorf("weights = %v", ne.Weights)
	}
	if !ne.Failure {
		t.Error("failure flag dropped")
	}
}

func TestNormalizeEntryInputErrors(t *testing.T) {
	valid := EntryInput{Exercise: "Kyykky", Sets: "3", Reps: "5", Weights: "100"}

	tests := []struct {
		name    string
		mutate  func(*EntryInput)
		wantErr error
	}{
		{"empty exercise", func(in *EntryInput) { in.Exercise = "  " }, ErrEmptyExerciseName},
		{"non-numeric sets", func(in *EntryInput) { in.Sets = "three" }, ErrInvalidSets},
		{"zero sets", func(in *EntryInput) { in.Sets = "0" }, ErrInvalidSets},
		{"negative reps", func(in *EntryInput) { in.Reps = "-5" }, ErrInvalidReps},
		{"fractional reps", func(in *EntryInput) { in.Reps = "5.5" }, ErrInvalidReps},
		{"empty weights", func(in *EntryInput) { in.Weights = "" }, ErrInvalidWeights},
		{"garbage weights", func(in *EntryInput) { in.Weights = "abc;def" }, ErrInvalidWeights},
		{"zero weight only", func(in *EntryInput) { in.Weights = "0" }, ErrInvalidWeights},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := NormalizeEntryInput(in)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseWeights(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []float64
	}{
		{"single", "100", []float64{100}},
		{"multiple", "80.5;82.5;85", []float64{80.5, 82.5, 85}},
		{"skips bad tokens", "80;;abc;85", []float64{80, 85}},
		{"skips non-positive", "-5;0;60", []float64{60}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseWeights(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLegacyWeights(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []float64
	}{
		{"old comma-delimited", "80, 85, 90", []float64{80, 85, 90}},
		{"semicolon wins when present", "80,5;82,5", []float64{80.5, 82.5}},
		{"single value", "100", []float64{100}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseLegacyWeights(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatWeightsRoundTrip(t *testing.T) {
	in := []float64{80.5, 82.5, 100}
	s := FormatWeights(in)
	if s != "80.5;82.5;100" {
		t.Errorf("formatted = %q", s)
	}
	if got := ParseWeights(s); !reflect.DeepEqual(got, in) {
		t.Errorf("round trip = %v, want %v", got, in)
	}
}

func TestFormatWeightsRounds(t *testing.T) {
	if got := FormatWeights([]float64{80.4999, 82.56}); got != "80.5;82.6" {
		t.Errorf("got %q", got)
	}
}
