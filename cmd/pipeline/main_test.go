package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/JonMunkholm/medallion/internal/core"
	"github.com/JonMunkholm/medallion/internal/pipeline"
	"github.com/google/uuid"
)

func TestPrintFailure(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    []string
		wantNot []string
	}{
		{
			name: "contract error lists faults",
			err: &core.ContractError{
				Faults:  []core.StructuralFault{{Table: core.TableOrders, Column: "total_amount"}},
				Blocked: []core.TableName{core.TablePayments},
			},
			want:    []string{"(Code: SCH002)", "fault: "},
			wantNot: []string{"error: "},
		},
		{
			name:    "known error has no raw line",
			err:     errors.New("dial tcp: connection refused"),
			want:    []string{"(Code: DB001)"},
			wantNot: []string{"error: ", "fault: "},
		},
		{
			name: "unknown error keeps raw text",
			err:  errors.New("boom"),
			want: []string{"(Code: ERR000)", "error: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printFailure(&buf, tt.err)
			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.wantNot {
				if strings.Contains(out, w) {
					t.Errorf("output should not contain %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestPrintReport(t *testing.T) {
	res := &pipeline.RunResult{
		RunID:  uuid.MustParse("3d8c2b1a-7e4f-4a9b-8c6d-1f2e3a4b5c6d"),
		Status: pipeline.StatusSucceeded,
		Report: &core.Report{
			Policy: "first_failure",
			Tables: []core.TableReport{{
				Table: core.TableOrders, Input: 3, Accepted: 2, Rejected: 1,
				Rules: []core.RuleCount{{Rule: "TOTAL_AMT", Reason: "total_amount must be positive", Rows: 1}},
			}},
		},
		GoldRows: map[string]int{"product_agg": 4, "customer_agg": 2},
	}

	var buf bytes.Buffer
	printReport(&buf, res)
	out := buf.String()

	for _, want := range []string{"3d8c2b1a", "TOTAL_AMT", "TOTAL"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "gold customer_agg") > strings.Index(out, "gold product_agg") {
		t.Errorf("gold tables not sorted:\n%s", out)
	}
}
