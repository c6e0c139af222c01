package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/kgops/pkg/migration"
	"github.com/OFFIS-RIT/kgops/pkg/store"
	"github.com/OFFIS-RIT/kgops/pkg/validation"
)

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, migration.Summary{
		Operation:   migration.OperationMigrate,
		Total:       3,
		Succeeded:   2,
		Failed:      1,
		SuccessRate: 66.666,
		Failures:    []migration.Failure{{DocumentID: "d3", SourceID: "s3", Error: "extraction failed"}},
	})
	out := buf.String()
	for _, want := range []string{"migrate (all users)", "succeeded:   2", "success:     66.7%", "! d3 (s3): extraction failed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintValidation(t *testing.T) {
	tests := []struct {
		name string
		rep  validation.Report
		want string
	}{
		{"consistent", validation.Report{UserID: "u1", Issues: []validation.Issue{}}, "consistent"},
		{"issues", validation.Report{
			UserID: "u1",
			Counts: store.StatusCounts{Total: 3, Completed: 3, WithoutGraph: 3},
			Issues: []validation.Issue{{Code: validation.IssueMissingGraph, Severity: validation.SeverityError, Count: 3, Message: "3 documents missing knowledge graph"}},
		}, "[error] 3 documents missing knowledge graph"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printValidation(&buf, tt.rep)
			if !strings.Contains(buf.String(), tt.want) {
				t.Fatalf("output missing %q:\n%s", tt.want, buf.String())
			}
		})
	}
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"migrate"}, {"rebuild"}, {"export"}, {"import"}, {"validate"}, {"analytics"},
		{"collect"}, {"cleanup"}, {"train", "submit"}, {"train", "status"}, {"train", "jobs"},
		{"train", "refresh"}, {"train", "evaluate"}, {"train", "pipeline"}, {"db", "migrate"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd == rootCmd {
			t.Fatalf("command %v not registered: %v", path, err)
		}
	}
}
