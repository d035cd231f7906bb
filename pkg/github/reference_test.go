package github

import "testing"

func TestParseRepository(t *testing.T) {
	tests := []struct {
		input     string
		wantOwner string
		wantName  string
		wantErr   bool
	}{
		{"holon-run/merge-release", "holon-run", "merge-release", false},
		{"  octo.org/repo_name  ", "octo.org", "repo_name", false},
		{"holon-run", "", "", true},
		{"a/b/c", "", "", true},
		{"", "", "", true},
		{"owner/repo#12", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRepository(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRepository() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.Owner != tt.wantOwner || got.Name != tt.wantName {
				t.Errorf("ParseRepository() = %+v", got)
			}
			if got.String() != tt.wantOwner+"/"+tt.wantName {
				t.Errorf("String() = %q", got.String())
			}
		})
	}
}
