package schedule

import (
	"os"
	"testing"

	"github.com/pulsefeed-io/platform/pkg/common/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}
