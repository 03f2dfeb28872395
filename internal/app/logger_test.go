package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/cmsauth/pkg/logger"
)

func TestConfigureLogging(t *testing.T) {
	t.Cleanup(logger.Replace(nil))

	require.NoError(t, ConfigureLogging(ServerConfig{LogLevel: "debug", LogEncoding: "console"}))
	require.NoError(t, ConfigureLogging(ServerConfig{}))
}
