package sqlxrepos

import (
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
)

func Test_buildUserQuery(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := `SELECT ` + userColumns + ` FROM "user"`

	tests := []struct {
		name     string
		filter   *user.QueryFilter
		ordering []core.DBOrdering
		wantSQL  string
		wantArgs []interface{}
	}{
		{
			name:    "no filter",
			wantSQL: base + " ORDER BY created_at DESC",
		},
		{
			name:     "search and role",
			filter:   &user.QueryFilter{Search: "ana", Roles: []string{"alumni"}},
			wantSQL:  base + " WHERE (name ILIKE $1 OR username ILIKE $1 OR email ILIKE $1) AND role = ANY($2) ORDER BY created_at DESC",
			wantArgs: []interface{}{"%ana%", pq.Array([]string{"alumni"})},
		},
		{
			name:     "active and created range",
			filter:   &user.QueryFilter{IsActive: core.BoolPtr(true), CreatedFrom: from, CreatedTo: from.AddDate(0, 1, 0)},
			wantSQL:  base + " WHERE is_active = $1 AND created_at >= $2 AND created_at <= $3 ORDER BY created_at DESC",
			wantArgs: []interface{}{true, from, from.AddDate(0, 1, 0)},
		},
		{
			name:     "ordering whitelist",
			ordering: core.ParseOrdering("name,-last_login,password_hash; DROP TABLE x"),
			wantSQL:  base + " ORDER BY name ASC, last_login DESC",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSQL, gotArgs := buildUserQuery(tt.filter, tt.ordering)
			assert.Equal(t, tt.wantSQL, gotSQL)
			assert.Equal(t, tt.wantArgs, gotArgs)
		})
	}
}

func Test_rows(t *testing.T) {
	usr := user.User{
		ID:        "6b1c1a0e-7dc1-4a4f-8b6e-1f3a4f1f2b10",
		Name:      "Ana",
		IsActive:  true,
		Role:      user.RoleAlumni,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	row := toUserRow(usr)
	assert.False(t, row.Username.Valid, "empty username is NULL")
	assert.False(t, row.LastLogin.Valid, "zero last login is NULL")
	assert.Equal(t, usr.LastLogin.IsZero(), row.toUser().LastLogin.IsZero())

	t.Run("inactive without profile", func(t *testing.T) {
		iu := inactiveRow{userRow: row}.toInactiveUser()
		assert.Nil(t, iu.Profile)
		assert.Equal(t, usr.ID, iu.User.ID)
	})
	t.Run("inactive with profile", func(t *testing.T) {
		r := inactiveRow{userRow: row}
		r.ProfileUserID.SetValid(usr.ID)
		r.EmailAddress.SetValid("ana@mail.ph")
		iu := r.toInactiveUser()
		if assert.NotNil(t, iu.Profile) {
			assert.Equal(t, "ana@mail.ph", iu.Recipient())
		}
	})
}

func Test_inactiveUsersQuery(t *testing.T) {
	normalized := strings.Join(strings.Fields(inactiveUsersQuery), " ")

	assert.Contains(t, normalized, `FROM "user" u LEFT JOIN alumni_profile p ON p.user_id = u.id`)
	assert.Contains(t, normalized, "WHERE u.is_active AND u.last_login IS NOT NULL AND u.last_login <= $1")
	assert.True(t, strings.HasSuffix(normalized, "ORDER BY u.last_login, u.id"), normalized)
	assert.NotContains(t, normalized, "last_login < $1")

	// every selected column must land in a field of inactiveRow
	selectList := normalized[len("SELECT "):strings.Index(normalized, " FROM ")]
	aliasRe := regexp.MustCompile(`(?:AS (\w+)|^[up]\.(\w+))$`)
	var selected []string
	for _, col := range strings.Split(selectList, ",") {
		m := aliasRe.FindStringSubmatch(strings.TrimSpace(col))
		if !assert.NotNil(t, m, "column %q", col) {
			continue
		}
		selected = append(selected, m[1]+m[2])
	}

	var tags []string
	var collect func(reflect.Type)
	collect = func(typ reflect.Type) {
		for i := 0; i < typ.NumField(); i++ {
			fld := typ.Field(i)
			if fld.Anonymous {
				collect(fld.Type)
				continue
			}
			tags = append(tags, fld.Tag.Get("db"))
		}
	}
	collect(reflect.TypeOf(inactiveRow{}))

	assert.ElementsMatch(t, tags, selected)
}
