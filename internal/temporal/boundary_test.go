package temporal_test

import (
	"strings"
	"testing"

	"curetrack/testutil"
)

func TestTemporalStaysPure(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		func(ip string) bool {
			return strings.HasPrefix(ip, testutil.ModulePath+"/") || testutil.ThirdPartyImport(ip)
		},
		"due-date arithmetic must not depend on storage, logging or other packages")
}
