package database

import (
	"database/sql"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/tests"
)

func Test_dsn(t *testing.T) {
	conf := testutil.NewConfig(t)
	conf.Database.Host = "db.internal"
	conf.Database.Port = "5433"
	conf.Database.User = "app"
	conf.Database.Password = "p@ss word"
	conf.Database.AdminUser = "root"
	conf.Database.AdminPassword = "toor"

	tests := []struct {
		name       string
		admin      bool
		disableTLS bool
		wantUser   string
		wantSSL    string
	}{
		{name: "app user", wantUser: "app", wantSSL: "require"},
		{name: "admin user", admin: true, wantUser: "root", wantSSL: "require"},
		{name: "no tls", disableTLS: true, wantUser: "app", wantSSL: "disable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf.Database.DisableTLS = tt.disableTLS
			u, err := url.Parse(dsn("lasalumni", tt.admin, conf))
			require.NoError(t, err)
			assert.Equal(t, "postgres", u.Scheme)
			assert.Equal(t, "db.internal:5433", u.Host)
			assert.Equal(t, "/lasalumni", u.Path)
			assert.Equal(t, tt.wantUser, u.User.Username())
			assert.Equal(t, tt.wantSSL, u.Query().Get("sslmode"))
			assert.Equal(t, "utc", u.Query().Get("timezone"))
		})
	}
}

func TestMigrate(t *testing.T) {
	var gotCommand, gotDir string
	var gotArgs []string
	origRun := gooseRunFunc
	defer func() { gooseRunFunc = origRun }()
	gooseRunFunc = func(command string, _ *sql.DB, dir string, args ...string) error {
		gotCommand, gotDir, gotArgs = command, dir, args
		return nil
	}

	require.NoError(t, Migrate(nil, "up-to", "2"))
	assert.Equal(t, "up-to", gotCommand)
	assert.Equal(t, migrationsDir, gotDir)
	assert.Equal(t, []string{"2"}, gotArgs)
}
