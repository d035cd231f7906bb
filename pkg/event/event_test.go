package event

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []Commit
		wantErr bool
	}{
		{
			name: "push event",
			payload: `{
  "ref": "refs/heads/main",
  "commits": [
    {"id": "a1", "message": "feat: add X", "author": {"name": "dev"}},
    {"id": "b2", "message": "fix: y", "body": "details"}
  ]
}`,
			want: []Commit{
				{ID: "a1", Message: "feat: add X"},
				{ID: "b2", Message: "fix: y", Body: "details"},
			},
		},
		{
			name:    "no commits key",
			payload: `{"action": "closed"}`,
			want:    []Commit{},
		},
		{
			name:    "malformed",
			payload: `{"commits": [`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Parse([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(ev.Commits) != len(tt.want) {
				t.Fatalf("got %d commits, want %d", len(ev.Commits), len(tt.want))
			}
			for i := range tt.want {
				if ev.Commits[i] != tt.want[i] {
					t.Errorf("commit %d = %+v, want %+v", i, ev.Commits[i], tt.want[i])
				}
			}
		})
	}
}

func TestCommit_Text(t *testing.T) {
	tests := []struct {
		name   string
		commit Commit
		want   string
	}{
		{"with body", Commit{Message: "feat: x", Body: "BREAKING CHANGE: y"}, "feat: x\nBREAKING CHANGE: y"},
		{"push payload without body", Commit{Message: "fix: typo"}, "fix: typo\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.commit.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFile_Commits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.json")
	if err := os.WriteFile(path, []byte(`{"commits":[{"id":"1","message":"feat: a"}]}`), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewFile(path)
	commits, err := f.Commits()
	if err != nil {
		t.Fatalf("Commits() error = %v", err)
	}
	if len(commits) != 1 || commits[0].Message != "feat: a" {
		t.Errorf("unexpected commits %+v", commits)
	}

	// Cached: removing the file does not change the result.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if again, err := f.Commits(); err != nil || len(again) != 1 {
		t.Errorf("second Commits() = %v, %v", again, err)
	}
}

func TestFile_Missing(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "missing.json"))
	if _, err := f.Commits(); err == nil {
		t.Error("expected error for missing event file")
	}
	if _, err := NewFile("").Commits(); err == nil {
		t.Error("expected error for empty path")
	}
}
