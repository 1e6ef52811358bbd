package policy

import (
	"context"
	"testing"
)

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	cases := []struct {
		name  string
		input map[string]interface{}
		want  string
	}{
		{
			name:  "single mode allows",
			input: map[string]interface{}{"mode": "single", "caller": "", "target_user": ""},
			want:  "allow",
		},
		{
			name:  "multi mode self target allows",
			input: map[string]interface{}{"mode": "multi", "caller": "alice", "target_user": "alice"},
			want:  "allow",
		},
		{
			name:  "multi mode mismatch denies",
			input: map[string]interface{}{"mode": "multi", "caller": "alice", "target_user": "bob"},
			want:  "deny",
		},
		{
			name:  "multi mode empty caller denies",
			input: map[string]interface{}{"mode": "multi", "caller": "", "target_user": "bob"},
			want:  "deny",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			decision, err := engine.Evaluate(ctx, tc.input)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if decision != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, decision)
			}
		})
	}
}
