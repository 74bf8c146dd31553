package domain_test

import (
	"testing"

	"curetrack/testutil"
)

func TestDomainImportsStandardLibraryOnly(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".",
		testutil.Any(testutil.InternalImport, testutil.ThirdPartyImport),
		"pkg/domain is shared by every layer and must stay dependency free")
}
