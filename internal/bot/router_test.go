package bot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hvnguyen/popmart-registrar/internal/config"
)

func TestIsAdminAllowsEveryoneWithoutAllowList(t *testing.T) {
	t.Parallel()
	r := NewRouter(nil, nil, nil, nil, nil, nil, config.Config{}, nil)
	require.True(t, r.isAdmin(1))
	require.True(t, r.isAdmin(99999))
}

func TestIsAdminEnforcesAllowList(t *testing.T) {
	t.Parallel()
	cfg := config.Config{Bot: config.BotConfig{Admins: []int64{11, 22}}}
	r := NewRouter(nil, nil, nil, nil, nil, nil, cfg, nil)
	require.True(t, r.isAdmin(11))
	require.True(t, r.isAdmin(22))
	require.False(t, r.isAdmin(33))
}
