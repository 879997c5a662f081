package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
)

const (
	userColumns = `id, name, username, email, is_active, role, password_hash,
	created_at, updated_at, last_login, last_reminded_at`
	profileColumns = `user_id, first_name, last_name, email_address, mobile_number,
	program, graduation_year, updated_at`

	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// orderable maps ordering fields to columns. Anything else is ignored.
var orderable = map[string]string{
	"name":       "name",
	"username":   "username",
	"email":      "email",
	"role":       "role",
	"is_active":  "is_active",
	"created_at": "created_at",
	"updated_at": "updated_at",
	"last_login": "last_login",
}

type userRow struct {
	ID             string      `db:"id"`
	Name           null.String `db:"name"`
	Username       null.String `db:"username"`
	Email          null.String `db:"email"`
	IsActive       bool        `db:"is_active"`
	Role           string      `db:"role"`
	PasswordHash   null.Bytes  `db:"password_hash"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
	LastLogin      null.Time   `db:"last_login"`
	LastRemindedAt null.Time   `db:"last_reminded_at"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:             usr.ID,
		Name:           null.NewString(usr.Name, usr.Name != ""),
		Username:       null.NewString(usr.Username, usr.Username != ""),
		Email:          null.NewString(usr.Email, usr.Email != ""),
		IsActive:       usr.IsActive,
		Role:           usr.Role,
		PasswordHash:   null.NewBytes(usr.PasswordHash, usr.PasswordHash != nil),
		CreatedAt:      usr.CreatedAt.UTC(),
		UpdatedAt:      usr.UpdatedAt.UTC(),
		LastLogin:      null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
		LastRemindedAt: null.NewTime(usr.LastRemindedAt.UTC(), !usr.LastRemindedAt.IsZero()),
	}
}

func (r userRow) toUser() user.User {
	return user.User{
		ID:             r.ID,
		Name:           r.Name.String,
		Username:       r.Username.String,
		Email:          r.Email.String,
		IsActive:       r.IsActive,
		Role:           r.Role,
		PasswordHash:   r.PasswordHash.Bytes,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
		LastLogin:      r.LastLogin.Time.UTC(),
		LastRemindedAt: r.LastRemindedAt.Time.UTC(),
	}
}

type profileRow struct {
	UserID         string      `db:"user_id"`
	FirstName      string      `db:"first_name"`
	LastName       string      `db:"last_name"`
	EmailAddress   null.String `db:"email_address"`
	MobileNumber   null.String `db:"mobile_number"`
	Program        string      `db:"program"`
	GraduationYear null.Int    `db:"graduation_year"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func toProfileRow(p user.AlumniProfile) profileRow {
	return profileRow{
		UserID:         p.UserID,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		EmailAddress:   null.NewString(p.EmailAddress, p.EmailAddress != ""),
		MobileNumber:   null.NewString(p.MobileNumber, p.MobileNumber != ""),
		Program:        p.Program,
		GraduationYear: null.NewInt(p.GraduationYear, p.GraduationYear != 0),
		UpdatedAt:      p.UpdatedAt.UTC(),
	}
}

func (r profileRow) toProfile() user.AlumniProfile {
	return user.AlumniProfile{
		UserID:         r.UserID,
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		EmailAddress:   r.EmailAddress.String,
		MobileNumber:   r.MobileNumber.String,
		Program:        r.Program,
		GraduationYear: r.GraduationYear.Int,
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

// inactiveRow is a user left joined with its profile, so profile columns may be NULL.
type inactiveRow struct {
	userRow
	ProfileUserID  null.String `db:"p_user_id"`
	FirstName      null.String `db:"p_first_name"`
	LastName       null.String `db:"p_last_name"`
	EmailAddress   null.String `db:"p_email_address"`
	MobileNumber   null.String `db:"p_mobile_number"`
	Program        null.String `db:"p_program"`
	GraduationYear null.Int    `db:"p_graduation_year"`
	UpdatedAt      null.Time   `db:"p_updated_at"`
}

func (r inactiveRow) toInactiveUser() user.InactiveUser {
	iu := user.InactiveUser{User: r.userRow.toUser()}
	if r.ProfileUserID.Valid {
		iu.Profile = &user.AlumniProfile{
			UserID:         r.ProfileUserID.String,
			FirstName:      r.FirstName.String,
			LastName:       r.LastName.String,
			EmailAddress:   r.EmailAddress.String,
			MobileNumber:   r.MobileNumber.String,
			Program:        r.Program.String,
			GraduationYear: r.GraduationYear.Int,
			UpdatedAt:      r.UpdatedAt.Time.UTC(),
		}
	}
	return iu
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps "no rows" to notFound.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func pqCode(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return string(pqErr.Code)
	}
	return ""
}

func validIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	excl := make([]string, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		excl = append(excl, u.ID)
	}

	var found struct {
		Username null.String `db:"username"`
		Email    null.String `db:"email"`
	}
	q := `SELECT username, email FROM "user"
	WHERE (username = $1 OR email = $2) AND NOT (id::text = ANY($3))
	LIMIT 1`
	err := repo.db.GetContext(ctx, &found, q, username, email, pq.Array(excl))
	switch {
	case errors.Cause(err) == sql.ErrNoRows:
		return nil
	case err != nil:
		return errors.Wrap(err, "checking user uniqueness")
	case username != "" && found.Username.String == username:
		return user.ErrUsernameExists
	case email != "" && found.Email.String == email:
		return user.ErrEmailExists
	}
	return user.ErrUserExists
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	q := `INSERT INTO "user" (` + userColumns + `) VALUES (
	:id, :name, :username, :email, :is_active, :role, :password_hash,
	:created_at, :updated_at, :last_login, :last_reminded_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toUserRow(usr)); err != nil {
		if pqCode(err) == pgUniqueViolation {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

// buildUserQuery renders the SELECT for QueryUsers with positional arguments.
func buildUserQuery(filter *user.QueryFilter, ordering []core.DBOrdering) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			p := arg("%" + filter.Search + "%")
			where = append(where, fmt.Sprintf("(name ILIKE %s OR username ILIKE %s OR email ILIKE %s)", p, p, p))
		}
		if len(filter.Roles) > 0 {
			where = append(where, "role = ANY("+arg(pq.Array(filter.Roles))+")")
		}
		if filter.IsActive != nil {
			where = append(where, "is_active = "+arg(*filter.IsActive))
		}
		if !filter.CreatedFrom.IsZero() {
			where = append(where, "created_at >= "+arg(filter.CreatedFrom.UTC()))
		}
		if !filter.CreatedTo.IsZero() {
			where = append(where, "created_at <= "+arg(filter.CreatedTo.UTC()))
		}
	}

	q := new(strings.Builder)
	q.WriteString(`SELECT ` + userColumns + ` FROM "user"`)
	if len(where) > 0 {
		q.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := orderable[ord.Field]; ok {
			orderList = append(orderList, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(orderList) == 0 {
		orderList = append(orderList, "created_at DESC")
	}
	q.WriteString(" ORDER BY " + strings.Join(orderList, ", "))
	return q.String(), args
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	q, args := buildUserQuery(filter, ordering)
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.toUser())
	}
	return users, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		cond string
		args []interface{}
	)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		cond, args = "id = $1", []interface{}{filter.ID}
	case filter.Username != "":
		cond, args = "username = $1", []interface{}{filter.Username}
	case filter.Email != "":
		cond, args = "email = $1", []interface{}{filter.Email}
	case filter.UsernameOrEmail != "":
		cond, args = "(username = $1 OR email = $1)", []interface{}{filter.UsernameOrEmail}
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := `SELECT ` + userColumns + ` FROM "user" WHERE ` + cond + ` LIMIT 1`
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "getting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE "user" SET
	name = :name, username = :username, email = :email, is_active = :is_active,
	role = :role, password_hash = :password_hash, updated_at = :updated_at,
	last_login = :last_login, last_reminded_at = :last_reminded_at
	WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toUserRow(usr))
	if err != nil {
		if pqCode(err) == pgUniqueViolation {
			return user.User{}, user.ErrUserExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr)
	}
	return repo.UpdateUser(ctx, usr)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	ids = validIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM "user" WHERE id::text = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting users")
	}
	return int(n), nil
}

// inactiveUsersQuery lists active users whose last login is at or before $1, with
// their profile when they have one. Deactivated accounts cannot log in, so they
// are never reminded. Users who never logged in do not qualify.
const inactiveUsersQuery = `SELECT u.id, u.name, u.username, u.email, u.is_active, u.role, u.password_hash,
	u.created_at, u.updated_at, u.last_login, u.last_reminded_at,
	p.user_id AS p_user_id, p.first_name AS p_first_name, p.last_name AS p_last_name,
	p.email_address AS p_email_address, p.mobile_number AS p_mobile_number,
	p.program AS p_program, p.graduation_year AS p_graduation_year, p.updated_at AS p_updated_at
	FROM "user" u
	LEFT JOIN alumni_profile p ON p.user_id = u.id
	WHERE u.is_active AND u.last_login IS NOT NULL AND u.last_login <= $1
	ORDER BY u.last_login, u.id`

func (repo *userRepository) QueryInactiveUsers(ctx context.Context, cutoff time.Time) ([]user.InactiveUser, error) {
	var rows []inactiveRow
	if err := repo.db.SelectContext(ctx, &rows, inactiveUsersQuery, cutoff.UTC()); err != nil {
		return nil, errors.Wrap(err, "querying inactive users")
	}
	inactive := make([]user.InactiveUser, 0, len(rows))
	for _, r := range rows {
		inactive = append(inactive, r.toInactiveUser())
	}
	return inactive, nil
}

func (repo *userRepository) SetLastReminded(ctx context.Context, id string, at time.Time) error {
	if _, err := uuid.Parse(id); err != nil {
		return user.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `UPDATE "user" SET last_reminded_at = $1 WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "setting last reminded")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *userRepository) GetProfile(ctx context.Context, userID string) (user.AlumniProfile, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return user.AlumniProfile{}, user.ErrProfileNotFound
	}
	var row profileRow
	q := `SELECT ` + profileColumns + ` FROM alumni_profile WHERE user_id = $1`
	if err := repo.db.GetContext(ctx, &row, q, userID); err != nil {
		return user.AlumniProfile{}, trapNoRowsErr(err, user.ErrProfileNotFound, "getting profile")
	}
	return row.toProfile(), nil
}

func (repo *userRepository) SaveProfile(ctx context.Context, profile user.AlumniProfile) (user.AlumniProfile, error) {
	if _, err := uuid.Parse(profile.UserID); err != nil {
		return user.AlumniProfile{}, user.ErrNotFound
	}
	q := `INSERT INTO alumni_profile (` + profileColumns + `) VALUES (
	:user_id, :first_name, :last_name, :email_address, :mobile_number,
	:program, :graduation_year, :updated_at)
	ON CONFLICT (user_id) DO UPDATE SET
	first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
	email_address = EXCLUDED.email_address, mobile_number = EXCLUDED.mobile_number,
	program = EXCLUDED.program, graduation_year = EXCLUDED.graduation_year,
	updated_at = EXCLUDED.updated_at`
	if _, err := repo.db.NamedExecContext(ctx, q, toProfileRow(profile)); err != nil {
		if pqCode(err) == pgForeignKeyViolation {
			return user.AlumniProfile{}, user.ErrNotFound
		}
		return user.AlumniProfile{}, errors.Wrap(err, "saving profile")
	}
	return profile, nil
}
