package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.go", `package tmp
import (
	"fmt"
	"curetrack/internal/infra/blob/fs"
	"github.com/google/uuid"
)
`)
	writeSource(t, dir, "a_test.go", `package tmp
import "curetrack/internal/core"
`)
	writeSource(t, dir, "notes.txt", "import \"curetrack/internal/core\"")

	viols, err := importViolations(dir, Any(InternalImport, ThirdPartyImport))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []string{"curetrack/internal/infra/blob/fs (in a.go)", "github.com/google/uuid (in a.go)"}
	if fmt.Sprint(viols) != fmt.Sprint(want) {
		t.Fatalf("unexpected violations %v", viols)
	}

	if _, err := importViolations(filepath.Join(dir, "missing"), InternalImport); err == nil {
		t.Fatalf("expected error for missing dir")
	}
	writeSource(t, dir, "broken.go", "package tmp\nimport (")
	if _, err := importViolations(dir, InternalImport); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestPredicates(t *testing.T) {
	cases := []struct {
		path                       string
		internal, infra, thirdPart bool
	}{
		{"fmt", false, false, false},
		{"net/http", false, false, false},
		{"curetrack/pkg/domain", false, false, false},
		{"curetrack/internal/temporal", true, false, false},
		{"curetrack/internal/infra/persistence/kv", true, true, false},
		{"github.com/rs/zerolog", false, false, true},
		{"modernc.org/sqlite", false, false, true},
	}
	for _, tc := range cases {
		if InternalImport(tc.path) != tc.internal || InfraImport(tc.path) != tc.infra || ThirdPartyImport(tc.path) != tc.thirdPart {
			t.Fatalf("predicates disagree for %s", tc.path)
		}
	}
}

type recorder struct{ msg string }

func (r *recorder) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func TestFailIfViolations(t *testing.T) {
	var r recorder
	failIfViolations(&r, "domain stays pure", nil)
	if r.msg != "" {
		t.Fatalf("no violations should not fail")
	}
	failIfViolations(&r, "domain stays pure", []string{"x (in a.go)"})
	if !strings.Contains(r.msg, "domain stays pure") || !strings.Contains(r.msg, "x (in a.go)") {
		t.Fatalf("unexpected message %q", r.msg)
	}
}
