package calendar_test

import (
	"testing"

	"curetrack/testutil"
)

func TestCoordinatorDoesNotImportAdapters(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfraImport,
		"the coordinator talks to adapters through its own ports")
}
