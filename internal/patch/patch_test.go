package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codenav/codenav/pkg/types"
)

const goodDiff = `--- a/auth/login.go
+++ b/auth/login.go
@@ -10,7 +10,7 @@ func Login(user, password string) error {
 	if password == "" {
-		return nil
+		return errors.New("empty password")
 	}
 	return validate(user, password)
`

const gitStyleDiff = `diff --git a/auth/login.go b/auth/login.go
index 3f1a2b..9c4d5e 100644
--- a/auth/login.go
+++ b/auth/login.go
@@ -1,3 +1,4 @@
 package auth
+
+import "errors"
`

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		diff string
		want bool
	}{
		{"plain unified diff", goodDiff, true},
		{"git style with preamble", gitStyleDiff, true},
		{"empty", "", false},
		{"prose not a diff", "You should change line 10 to return an error.", false},
		{"header without hunk", "--- a/x.go\n+++ b/x.go\n", false},
		{"hunk without header", "@@ -1,2 +1,2 @@\n-a\n+b\n", false},
		{"missing +++ line", "--- a/x.go\n@@ -1 +1 @@\n-a\n+b\n", false},
		{"malformed hunk header", "--- a/x.go\n+++ b/x.go\n@@ bogus @@\n-a\n+b\n", false},
		{"bad body prefix", "--- a/x.go\n+++ b/x.go\n@@ -1,2 +1,2 @@\n-a\nxb\n", false},
		{"no newline marker", "--- a/x.go\n+++ b/x.go\n@@ -1 +1 @@\n-a\n+b\n\\ No newline at end of file\n", true},
		{"multi-file git diff", gitStyleDiff + goodDiff, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.diff))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.Nil(t, Classify(""))
	assert.Nil(t, Classify("  \n "))

	p := Classify(goodDiff)
	require.NotNil(t, p)
	assert.Equal(t, types.PatchFinal, p.Status)
	assert.Equal(t, goodDiff, p.Diff)

	p = Classify("change the function to return an error")
	require.NotNil(t, p)
	assert.Equal(t, types.PatchDraft, p.Status)
}
