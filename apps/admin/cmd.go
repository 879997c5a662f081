package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/reminder"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/secret"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	migrateFunc      = database.Migrate  // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	usrRepo user.Repository
	codec   secret.Codec
	job     *reminder.Job
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  createuser -username USERNAME -email EMAIL [-name NAME] [-role ROLE] - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a database migration command")
	fmt.Fprintln(cli.out, "  remind [-mode fail-fast|best-effort] - remind inactive users now")
	fmt.Fprintln(cli.out, "  encrypt TEXT - encrypt with ENCRYPTION_SECRET_KEY")
	fmt.Fprintln(cli.out, "  decrypt TOKEN - decrypt with ENCRYPTION_SECRET_KEY")
	fmt.Fprintln(cli.out, "  genkey - print a new random encryption key")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createUserCmd := flag.NewFlagSet("createuser", flag.ContinueOnError)
	createUserName := createUserCmd.String("name", "", "The user's full name.")
	createUserUname := createUserCmd.String("username", "", "The user's username.")
	createUserEmail := createUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	createUserRole := createUserCmd.String("role", user.RoleAdmin, "One of admin, partner or alumni.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	remindCmd := flag.NewFlagSet("remind", flag.ContinueOnError)
	remindMode := remindCmd.String("mode", string(reminder.ModeFailFast), "fail-fast or best-effort.")

	for _, fs := range []*flag.FlagSet{createUserCmd, resetPasswordCmd, remindCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "createuser":
		if err := createUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *createUserUname == "" && *createUserEmail == "" {
			createUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			createUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*createUserName, *createUserUname, *createUserEmail, pwd, *createUserRole)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "remind":
		if err := remindCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		mode, err := reminder.ParseMode(*remindMode)
		if err != nil {
			return err
		}
		return cli.remind(context.Background(), mode)

	case "encrypt", "decrypt":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.crypt(args[1], args[2])

	case "genkey":
		return cli.genKey()

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	return string(pwd), nil
}

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errors.New("migrate: no database connection")
	}
	return migrateFunc(cli.db, args[0], args[1:]...)
}
