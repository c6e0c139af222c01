package ai

import (
	"strings"
	"testing"
)

type extracted struct {
	Name  string   `json:"name"`
	Terms []string `json:"terms,omitempty"`
}

func TestUnmarshalFlexible_Variants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "valid json object", input: `{"name":"ACME"}`, want: "ACME"},
		{name: "unquoted key and single quotes", input: `{name: 'ACME'}`, want: "ACME"},
		{name: "trailing comma", input: `{"name":"ACME",}`, want: "ACME"},
		{name: "missing end bracket", input: `{"name":"ACME`, want: "ACME"},
		{name: "stringified invalid object", input: `"{name: 'ACME'}"`, want: "ACME"},
		{name: "duplicate leading brace", input: "{\n{\n  \"name\": \"ACME\"\n}\n", want: "ACME"},
		{name: "code fence", input: "```json\n{\"name\": \"ACME\"}\n```", want: "ACME"},
		{name: "bare code fence", input: "```\n{\"name\": \"ACME\"}\n```", want: "ACME"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got extracted
			if err := UnmarshalFlexible(tc.input, &got); err != nil {
				t.Fatalf("UnmarshalFlexible() error = %v", err)
			}
			if got.Name != tc.want {
				t.Fatalf("UnmarshalFlexible() name = %q, want %q", got.Name, tc.want)
			}
		})
	}
}

func TestUnmarshalFlexible_Array(t *testing.T) {
	var got []extracted
	if err := UnmarshalFlexible(`[{name:'A', terms: ['pricing']},{name:'B',}]`, &got); err != nil {
		t.Fatalf("UnmarshalFlexible() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "A" || got[1].Name != "B" {
		t.Fatalf("UnmarshalFlexible() got = %+v", got)
	}
	if len(got[0].Terms) != 1 || got[0].Terms[0] != "pricing" {
		t.Fatalf("terms = %v", got[0].Terms)
	}
}

func TestUnmarshalFlexible_Unrecoverable(t *testing.T) {
	var got extracted
	if err := UnmarshalFlexible("hello", &got); err == nil {
		t.Fatal("expected error for unrecoverable input")
	}
}

func TestGenerateSchema_UsesJSONNames(t *testing.T) {
	schema := GenerateSchema(&extracted{})
	raw, ok := schema.(interface{ MarshalJSON() ([]byte, error) })
	if !ok {
		t.Fatalf("schema %T does not marshal", schema)
	}
	b, err := raw.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal schema: %v", err)
	}
	if !strings.Contains(string(b), `"name"`) || !strings.Contains(string(b), `"terms"`) {
		t.Fatalf("schema misses properties: %s", b)
	}
}
