package core

import (
	"reflect"
	"testing"
)

// ----------------------------------------------------------------------------
// Test Helpers
// ----------------------------------------------------------------------------

func positive() Rule[int] {
	return RowRule("nums", "POSITIVE", "n <= 0", func(n int) bool { return n > 0 })
}

func even() Rule[int] {
	return RowRule("nums", "EVEN", "n is odd", func(n int) bool { return n%2 == 0 })
}

func unique() Rule[int] {
	return TableRule("nums", "UNIQUE", "n repeats", func(rows []int) func(int) bool {
		counts := make(map[int]int)
		for _, n := range rows {
			counts[n]++
		}
		return func(n int) bool { return counts[n] == 1 }
	})
}

// ----------------------------------------------------------------------------
// ApplyRule Tests
// ----------------------------------------------------------------------------

func TestApplyRule(t *testing.T) {
	kept, rejected, name := ApplyRule([]int{3, -1, 4, 0, 5}, positive())

	if name != "POSITIVE" {
		t.Errorf("rule name = %q, want POSITIVE", name)
	}
	if want := []int{3, 4, 5}; !reflect.DeepEqual(kept, want) {
		t.Errorf("kept = %v, want %v", kept, want)
	}
	if want := []int{-1, 0}; !reflect.DeepEqual(rejected, want) {
		t.Errorf("rejected = %v, want %v", rejected, want)
	}
}

func TestApplyRule_EmptyInput(t *testing.T) {
	kept, rejected, _ := ApplyRule(nil, positive())
	if len(kept) != 0 || len(rejected) != 0 {
		t.Errorf("ApplyRule(nil) = %v, %v, want empty", kept, rejected)
	}
}

func TestApplyRule_Partition(t *testing.T) {
	rows := []int{5, -2, 8, 8, 1, -9, 0, 3}
	for _, rule := range []Rule[int]{positive(), even(), unique()} {
		kept, rejected, _ := ApplyRule(rows, rule)
		if len(kept)+len(rejected) != len(rows) {
			t.Errorf("%s: %d kept + %d rejected != %d input", rule.Name, len(kept), len(rejected), len(rows))
		}
	}
}

// ----------------------------------------------------------------------------
// ApplyRules Tests
// ----------------------------------------------------------------------------

func TestApplyRules_FirstFailure(t *testing.T) {
	rows := []int{2, -3, 3, 4, -4}
	kept, rejections := ApplyRules(rows, []Rule[int]{positive(), even()}, PolicyFirstFailure)

	if want := []int{2, 4}; !reflect.DeepEqual(kept, want) {
		t.Errorf("kept = %v, want %v", kept, want)
	}

	// -3 is both non-positive and odd but is attributed to POSITIVE only.
	got := make(map[int][]string)
	for _, r := range rejections {
		got[r.Row] = append(got[r.Row], r.Rule)
	}
	want := map[int][]string{
		-3: {"POSITIVE"},
		-4: {"POSITIVE"},
		3:  {"EVEN"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rejections = %v, want %v", got, want)
	}
}

func TestApplyRules_ThreadsKeptRows(t *testing.T) {
	// UNIQUE only sees rows POSITIVE kept, so -1 does not make 1 a duplicate
	// and the pair of 7s is caught.
	rows := []int{1, -1, 7, 7}
	kept, rejections := ApplyRules(rows, []Rule[int]{positive(), unique()}, PolicyFirstFailure)

	if want := []int{1}; !reflect.DeepEqual(kept, want) {
		t.Errorf("kept = %v, want %v", kept, want)
	}
	if len(rejections) != 3 {
		t.Fatalf("got %d rejections, want 3", len(rejections))
	}
	if rejections[0].Rule != "POSITIVE" || rejections[1].Rule != "UNIQUE" || rejections[2].Rule != "UNIQUE" {
		t.Errorf("rejection order = %v", rejections)
	}
}

func TestApplyRules_Exhaustive(t *testing.T) {
	rows := []int{2, -3, 3, 4}
	kept, rejections := ApplyRules(rows, []Rule[int]{positive(), even()}, PolicyExhaustive)

	if want := []int{2, 4}; !reflect.DeepEqual(kept, want) {
		t.Errorf("kept = %v, want %v", kept, want)
	}

	got := make(map[int][]string)
	for _, r := range rejections {
		got[r.Row] = append(got[r.Row], r.Rule)
	}
	want := map[int][]string{
		-3: {"POSITIVE", "EVEN"},
		3:  {"EVEN"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("rejections = %v, want %v", got, want)
	}
}

func TestApplyRules_ReasonIsCarried(t *testing.T) {
	_, rejections := ApplyRules([]int{-1}, []Rule[int]{positive()}, PolicyFirstFailure)
	if len(rejections) != 1 || rejections[0].Reason != "n <= 0" {
		t.Errorf("rejections = %+v", rejections)
	}
}

func TestApplyRules_NoRules(t *testing.T) {
	rows := []int{1, 2}
	kept, rejections := ApplyRules(rows, nil, PolicyFirstFailure)
	if !reflect.DeepEqual(kept, rows) || len(rejections) != 0 {
		t.Errorf("ApplyRules with no rules = %v, %v", kept, rejections)
	}
}

// ----------------------------------------------------------------------------
// Policy Tests
// ----------------------------------------------------------------------------

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    Policy
		wantErr bool
	}{
		{"", PolicyFirstFailure, false},
		{"first", PolicyFirstFailure, false},
		{"FIRST_FAILURE", PolicyFirstFailure, false},
		{" exhaustive ", PolicyExhaustive, false},
		{"all", PolicyExhaustive, false},
		{"every", PolicyFirstFailure, true},
	}

	for _, tt := range tests {
		got, err := ParsePolicy(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
