package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/channel"
	"github.com/DexterJames00/EduTrack360/core/credential"
	"github.com/DexterJames00/EduTrack360/core/school"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf     *core.Config
	db       *sqlx.DB
	out      io.Writer
	schools  *school.Service
	channels *channel.Service
	creds    *credential.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run database migrations (up, down, status, version, redo, reset, up-to N, down-to N)")
	fmt.Fprintln(cli.out, "  addschool -code CODE -name NAME - register a school")
	fmt.Fprintln(cli.out, "  addstudent -school CODE -first NAME -last NAME [-grade GRADE] - add a student and print their code")
	fmt.Fprintln(cli.out, "  invite -student ID - print a student's registration link")
	fmt.Fprintln(cli.out, "  unlink -student ID - remove a student's linked channel")
	fmt.Fprintln(cli.out, "  activatecredential - verify and activate a bot token. The token will be prompted next.")
	fmt.Fprintln(cli.out, "  setwebhook -url PUBLIC_URL - register the webhook with the messaging provider")
	fmt.Fprintln(cli.out, "  token -subject ID -name NAME -role admin|instructor - issue an API token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addSchoolCmd := flag.NewFlagSet("addschool", flag.ContinueOnError)
	addSchoolCode := addSchoolCmd.String("code", "", "The school code, a single word.")
	addSchoolName := addSchoolCmd.String("name", "", "The school's name.")

	addStudentCmd := flag.NewFlagSet("addstudent", flag.ContinueOnError)
	addStudentSchool := addStudentCmd.String("school", "", "The school code.")
	addStudentFirst := addStudentCmd.String("first", "", "The student's first name.")
	addStudentLast := addStudentCmd.String("last", "", "The student's last name.")
	addStudentGrade := addStudentCmd.String("grade", "", "The student's grade level.")

	inviteCmd := flag.NewFlagSet("invite", flag.ContinueOnError)
	inviteStudent := inviteCmd.String("student", "", "The student's id.")

	unlinkCmd := flag.NewFlagSet("unlink", flag.ContinueOnError)
	unlinkStudent := unlinkCmd.String("student", "", "The student's id.")

	activateCmd := flag.NewFlagSet("activatecredential", flag.ContinueOnError)

	webhookCmd := flag.NewFlagSet("setwebhook", flag.ContinueOnError)
	webhookURL := webhookCmd.String("url", "", "The public https base url of the API.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenSubject := tokenCmd.String("subject", "", "The subject (staff id) of the token.")
	tokenName := tokenCmd.String("name", "", "The staff member's name.")
	tokenRole := tokenCmd.String("role", "", "admin or instructor; repeat with commas for several.")

	for _, fs := range []*flag.FlagSet{addSchoolCmd, addStudentCmd, inviteCmd, unlinkCmd, activateCmd, webhookCmd, tokenCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "addschool":
		if err := addSchoolCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addSchoolCode == "" || *addSchoolName == "" {
			addSchoolCmd.Usage()
			return errHelp
		}
		return cli.addSchool(*addSchoolCode, *addSchoolName)

	case "addstudent":
		if err := addStudentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addStudentSchool == "" || *addStudentFirst == "" || *addStudentLast == "" {
			addStudentCmd.Usage()
			return errHelp
		}
		return cli.addStudent(school.NewStudent{
			SchoolCode: *addStudentSchool,
			FirstName:  *addStudentFirst,
			LastName:   *addStudentLast,
			GradeLevel: *addStudentGrade,
		})

	case "invite":
		if err := inviteCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *inviteStudent == "" {
			inviteCmd.Usage()
			return errHelp
		}
		return cli.invite(*inviteStudent)

	case "unlink":
		if err := unlinkCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *unlinkStudent == "" {
			unlinkCmd.Usage()
			return errHelp
		}
		return cli.unlink(*unlinkStudent)

	case "activatecredential":
		if err := activateCmd.Parse(args[2:]); err != nil {
			return err
		}
		fmt.Fprint(cli.out, "Enter bot token:")
		tok, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(tok) == 0 {
			activateCmd.Usage()
			return errHelp
		}
		return cli.activateCredential(string(tok))

	case "setwebhook":
		if err := webhookCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *webhookURL == "" {
			webhookCmd.Usage()
			return errHelp
		}
		return cli.setWebhook(*webhookURL)

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenSubject == "" || *tokenRole == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.issueToken(*tokenSubject, *tokenName, strings.Split(*tokenRole, ","))

	default:
		cli.printUsage()
		return errHelp
	}
}
