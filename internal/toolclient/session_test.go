package toolclient

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jkaninda/mikopo/internal/domain"
)

func TestOpenRequiresCommand(t *testing.T) {
	_, err := Open(context.Background(), Config{}, nil)
	if !errors.Is(err, ErrToolUnreachable) {
		t.Errorf("Open() = %v, want ErrToolUnreachable", err)
	}
}

func TestMapCallErr(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"deadline maps to timeout", context.DeadlineExceeded, ErrToolTimeout},
		{"wrapped deadline maps to timeout", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrToolTimeout},
		{"generic maps to unreachable", errors.New("broken pipe"), ErrToolUnreachable},
		{"timeout passes through", ErrToolTimeout, ErrToolTimeout},
		{"unreachable passes through", ErrToolUnreachable, ErrToolUnreachable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := mapCallErr(tc.in); !errors.Is(got, tc.want) {
				t.Errorf("mapCallErr(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestConvertInputSchema(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"applicant_name": map[string]any{"type": "string"},
		},
		Required: []string{"applicant_name"},
	}

	got := convertInputSchema(schema)
	want := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"applicant_name": map[string]any{"type": "string"},
		},
		"required": []any{"applicant_name"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("convertInputSchema() = %v, want %v", got, want)
	}
}

func TestConvertInputSchemaMinimal(t *testing.T) {
	got := convertInputSchema(mcp.ToolInputSchema{Type: "object"})
	if _, ok := got["properties"]; ok {
		t.Error("empty properties should be omitted")
	}
	if _, ok := got["required"]; ok {
		t.Error("empty required should be omitted")
	}
}

func TestSnapshotArgsOmitsAbsentFields(t *testing.T) {
	args := snapshotArgs(domain.ApplicantSnapshot{Name: "Alice", AnnualIncome: 90000})
	if args["applicant_name"] != "Alice" {
		t.Errorf("applicant_name = %v, want Alice", args["applicant_name"])
	}
	if args["annual_income"] != 90000.0 {
		t.Errorf("annual_income = %v, want 90000", args["annual_income"])
	}
	for _, key := range []string{"loan_amount", "property_value", "monthly_debt"} {
		if _, ok := args[key]; ok {
			t.Errorf("%s should be absent when zero", key)
		}
	}
}

func TestTextContentJoinsItems(t *testing.T) {
	content := []mcp.Content{
		mcp.NewTextContent("first"),
		mcp.NewTextContent("second"),
	}
	if got := textContent(content); got != "first\nsecond" {
		t.Errorf("textContent() = %q, want %q", got, "first\nsecond")
	}
}
