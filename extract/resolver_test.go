// ABOUTME: Tests for the expression resolver's intrinsic handling, string checks, and depth bound.
package extract

import (
	"testing"

	"github.com/2389-research/trunkline/cfn"
)

func resolveDoc(t *testing.T, doc string, known ...string) []string {
	t.Helper()
	v, err := cfn.DecodeValue([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	set := make(map[string]bool, len(known))
	for _, id := range known {
		set[id] = true
	}
	ids, err := NewResolver(0).ResolveSorted(v, set)
	if err != nil {
		t.Fatalf("ResolveSorted: %v", err)
	}
	return ids
}

func TestResolverExpressions(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		known []string
		want  []string
	}{
		{
			name:  "ref to known identifier",
			doc:   "Ref: MyFn",
			known: []string{"MyFn"},
			want:  []string{"MyFn"},
		},
		{
			name:  "ref to unknown identifier yields nothing",
			doc:   "Ref: Ghost",
			known: []string{"MyFn"},
			want:  []string{},
		},
		{
			name:  "recognized ref short-circuits sibling keys",
			doc:   "Ref: MyFn\nOther:\n    Ref: Second\n",
			known: []string{"MyFn", "Second"},
			want:  []string{"MyFn"},
		},
		{
			name:  "unrecognized ref falls through to recursion",
			doc:   "Ref: Ghost\nOther:\n    Ref: Second\n",
			known: []string{"Second"},
			want:  []string{"Second"},
		},
		{
			name:  "getatt sequence head",
			doc:   "Fn::GetAtt:\n    - MyFn\n    - Arn\n",
			known: []string{"MyFn"},
			want:  []string{"MyFn"},
		},
		{
			name:  "getatt with unknown head yields nothing",
			doc:   "Fn::GetAtt:\n    - Ghost\n    - Arn\n",
			known: []string{"MyFn"},
			want:  []string{},
		},
		{
			name:  "sub placeholder with attribute",
			doc:   `Fn::Sub: "https://${MyFn.Arn}/prod"`,
			known: []string{"MyFn"},
			want:  []string{"MyFn"},
		},
		{
			name:  "sub whole string identifier",
			doc:   "Fn::Sub: MyFn",
			known: []string{"MyFn"},
			want:  []string{"MyFn"},
		},
		{
			name:  "sub list form scans only the template string",
			doc:   "Fn::Sub:\n    - \"${MyFn}-${Stage}\"\n    - Stage: prod\n",
			known: []string{"MyFn", "Stage"},
			want:  []string{"MyFn", "Stage"},
		},
		{
			name:  "short sub tag",
			doc:   `!Sub "${MyFn}-handler"`,
			known: []string{"MyFn"},
			want:  []string{"MyFn"},
		},
		{
			name:  "short ref tag flattens to a direct match",
			doc:   "!Ref MyFn",
			known: []string{"MyFn"},
			want:  []string{"MyFn"},
		},
		{
			name:  "short getatt tag flattens to a dotted string",
			doc:   "!GetAtt MyFn.Arn",
			known: []string{"MyFn"},
			want:  []string{"MyFn"},
		},
		{
			name:  "scalar dotted prefix",
			doc:   "MyTable.StreamArn",
			known: []string{"MyTable"},
			want:  []string{"MyTable"},
		},
		{
			name:  "scalar embedded placeholder",
			doc:   `"arn:aws:lambda:us-east-1:123:function:${MyFn}"`,
			known: []string{"MyFn"},
			want:  []string{"MyFn"},
		},
		{
			name:  "scalar direct match",
			doc:   "MyFn",
			known: []string{"MyFn"},
			want:  []string{"MyFn"},
		},
		{
			name:  "nested structures union all references",
			doc:   "Outer:\n    - Ref: First\n    - Inner:\n          Fn::GetAtt:\n              - Second\n              - Arn\n",
			known: []string{"First", "Second"},
			want:  []string{"First", "Second"},
		},
		{
			name:  "unknown candidates dropped everywhere",
			doc:   "Outer:\n    - Ref: Ghost\n    - \"${Phantom}\"\n    - Missing.Arn\n",
			known: []string{"MyFn"},
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveDoc(t, tt.doc, tt.known...)
			if len(got) != len(tt.want) {
				t.Fatalf("resolved %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("resolved %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestResolverPlaceholderGrammar(t *testing.T) {
	// Identifiers are alphanumeric; one optional dotted attribute is allowed
	// and discarded.
	got := resolveDoc(t, `"${FnOne.Arn} ${FnTwo} ${not-an-id} ${Fn.Three.Arn}"`, "FnOne", "FnTwo", "Fn")
	want := []string{"FnOne", "FnTwo"}
	if len(got) != len(want) {
		t.Fatalf("resolved %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("resolved %v, want %v", got, want)
		}
	}
}

func TestResolverDepthBound(t *testing.T) {
	known := map[string]bool{"MyFn": true}
	v := cfn.Scalar("MyFn")
	for i := 0; i < maxResolveDepth+10; i++ {
		v = cfn.Sequence(v)
	}
	_, err := NewResolver(0).Resolve(v, known)
	if err == nil {
		t.Fatal("Resolve: expected error for deeply nested value")
	}
	if !cfn.IsMalformedInput(err) {
		t.Fatalf("Resolve: error = %v, want malformed input", err)
	}
}

func TestResolverCustomDepth(t *testing.T) {
	known := map[string]bool{"MyFn": true}
	v := cfn.Sequence(cfn.Sequence(cfn.Sequence(cfn.Scalar("MyFn"))))
	if _, err := NewResolver(2).Resolve(v, known); err == nil {
		t.Fatal("Resolve: expected depth error with limit 2")
	}
	ids, err := NewResolver(10).ResolveSorted(v, known)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(ids) != 1 || ids[0] != "MyFn" {
		t.Fatalf("resolved %v, want [MyFn]", ids)
	}
}
