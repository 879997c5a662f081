package user

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/secret"
)

var (
	// errors
	ErrNotFound        = errors.New("user not found")
	ErrProfileNotFound = errors.New("alumni profile not found")
	ErrEmailExists     = errors.New("a user with this email already exists")
	ErrUsernameExists  = errors.New("a user with this username already exists")
	ErrUserExists      = errors.New("a user with this username or email already exists")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) (int, error)

		// QueryInactiveUsers returns active users whose last login is at or before cutoff,
		// left joined with their profile, ordered by last login. Users that never
		// logged in are not returned.
		QueryInactiveUsers(ctx context.Context, cutoff time.Time) ([]InactiveUser, error)
		SetLastReminded(ctx context.Context, id string, at time.Time) error

		GetProfile(ctx context.Context, userID string) (AlumniProfile, error)
		SaveProfile(ctx context.Context, profile AlumniProfile) (AlumniProfile, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Update(ctx context.Context, usr User, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		Delete(ctx context.Context, ids ...string) (int, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) (User, error)

		GetProfile(ctx context.Context, userID string) (AlumniProfile, error)
		SaveProfile(ctx context.Context, userID string, up UpdateProfile) (AlumniProfile, error)

		QueryInactive(ctx context.Context, cutoff time.Time) ([]InactiveUser, error)
		MarkReminded(ctx context.Context, id string, at time.Time) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		codec   secret.Codec
		tokens  tokenGenerator
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, codec secret.Codec, conf *core.Config) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(codec, "codec"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		codec:   codec,
		tokens:  tokenGenerator{secretKey: []byte(conf.SecretKey), timeout: conf.PasswordResetTimeoutDelta},
		conf:    conf,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		case ErrUserExists:
			return core.NewValidationError(ErrUserExists)
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	usr.Role = uu.Role
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) (int, error) {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *service) sendPasswordResetMail(usr User) {
	q := make(url.Values)
	q.Set("uid", EncodeUID(usr))
	q.Set("token", svc.tokens.makeToken(usr))
	link := svc.conf.FrontendBaseURL + "/password-reset?" + q.Encode()

	name := usr.Name
	if name == "" {
		name = usr.Username
	}
	text := fmt.Sprintf(
		"Hi %s,\n\nWe received a request to reset your %s password.\n"+
			"Follow this link to choose a new one:\n\n%s\n\n"+
			"If you did not request a password reset, you can safely ignore this email.\n",
		name, svc.conf.AppName, link,
	)
	svc.mailSvc.SendMessages(core.NewTextMessage(usr.Email, "Password Reset", text))
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) (User, error) {
	invalidErr := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})

	id, err := decodeUID(data.UID)
	if err != nil {
		return User{}, invalidErr
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, invalidErr
		}
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	if err := svc.tokens.verifyToken(usr, data.Token); err != nil {
		return User{}, core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	if tag := passwordPolicyViolation(data.Password, usr.Name, usr.Username, usr.Email); tag != "" {
		return User{}, core.NewFieldError("password", policyTexts[tag])
	}

	if err := usr.SetPassword(data.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// profiles

func (svc *service) GetProfile(ctx context.Context, userID string) (AlumniProfile, error) {
	p, err := svc.repo.GetProfile(ctx, userID)
	if err != nil {
		return AlumniProfile{}, err
	}
	return svc.openProfile(p)
}

func (svc *service) SaveProfile(ctx context.Context, userID string, up UpdateProfile) (AlumniProfile, error) {
	p := AlumniProfile{
		UserID:         userID,
		FirstName:      up.FirstName,
		LastName:       up.LastName,
		EmailAddress:   up.EmailAddress,
		Program:        up.Program,
		GraduationYear: up.GraduationYear,
		UpdatedAt:      time.Now().UTC(),
	}
	if up.MobileNumber != "" {
		token, err := svc.codec.Encrypt(up.MobileNumber)
		if err != nil {
			return AlumniProfile{}, errors.Wrap(err, "encrypting mobile number")
		}
		p.MobileNumber = token
	}
	p, err := svc.repo.SaveProfile(ctx, p)
	if err != nil {
		return AlumniProfile{}, errors.Wrap(err, "saving profile")
	}
	return svc.openProfile(p)
}

func (svc *service) openProfile(p AlumniProfile) (AlumniProfile, error) {
	if p.MobileNumber == "" {
		return p, nil
	}
	num, err := svc.codec.Decrypt(p.MobileNumber)
	if err != nil {
		return AlumniProfile{}, errors.Wrap(err, "decrypting mobile number")
	}
	p.MobileNumber = num
	return p, nil
}

// reminders

func (svc *service) QueryInactive(ctx context.Context, cutoff time.Time) ([]InactiveUser, error) {
	users, err := svc.repo.QueryInactiveUsers(ctx, cutoff)
	if err != nil {
		return nil, errors.Wrap(err, "querying inactive users")
	}
	return users, nil
}

func (svc *service) MarkReminded(ctx context.Context, id string, at time.Time) error {
	return svc.repo.SetLastReminded(ctx, id, at.UTC())
}
