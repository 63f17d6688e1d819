// Command docuscan is the operator front end for the document-ingestion
// service: login, document upload from a file or a camera capture, and
// record listing, editing, export, and statistics. All remote access
// goes through the gateway; this command only renders what the core
// returns.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"docuscan/internal/capture"
	"docuscan/internal/config"
	"docuscan/internal/gateway"
	"docuscan/internal/model"
	"docuscan/internal/records"
	"docuscan/internal/session"
	"docuscan/internal/upload"
)

const usage = `usage: docuscan [flags] <command> [args]

commands:
  login [username]        authenticate and store the credential
  logout                  clear the stored credential
  whoami                  show the authenticated operator
  upload <image>          upload a document image file
  capture                 capture from the configured camera and upload
  list [query]            list or search records (--page)
  get <id>                show one record
  update <id> [flags]     edit record fields
  delete <id>             delete a record
  export [query]          download the spreadsheet export (--out)
  stats                   show aggregate statistics
`

func main() {
	log.SetFlags(0)

	flags := pflag.NewFlagSet("docuscan", pflag.ExitOnError)
	apiURL := flags.String("api", "", "API base URL (overrides API_BASE_URL)")
	cameraURL := flags.String("camera", "", "camera stream URL (overrides CAMERA_URL)")
	flags.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flags.SetInterspersed(false) // leave flags after the command to the command
	_ = flags.Parse(os.Args[1:])

	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	if *apiURL != "" {
		cfg.APIBaseURL = *apiURL
	}
	if *cameraURL != "" {
		cfg.CameraURL = *cameraURL
	}

	store := session.New(newSessionKV(cfg))
	gw := gateway.New(cfg.APIBaseURL, store, cfg.RequestTimeout)
	facade := records.New(gw, cfg.PageSize)
	ctx := context.Background()

	var err error
	switch args[0] {
	case "login":
		err = runLogin(ctx, gw, args[1:])
	case "logout":
		err = store.Logout(ctx)
		if err == nil {
			fmt.Println("logged out")
		}
	case "whoami":
		err = runWhoami(ctx, gw)
	case "upload":
		err = runUpload(ctx, cfg, gw, args[1:])
	case "capture":
		err = runCapture(ctx, cfg, gw)
	case "list":
		err = runList(ctx, facade, args[1:])
	case "get":
		err = runGet(ctx, facade, args[1:])
	case "update":
		err = runUpdate(ctx, facade, args[1:])
	case "delete":
		err = runDelete(ctx, facade, args[1:])
	case "export":
		err = runExport(ctx, facade, args[1:])
	case "stats":
		err = runStats(ctx, facade)
	default:
		flags.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal(describe(err))
	}
}

// newSessionKV picks the durable credential backend from config.
func newSessionKV(cfg config.App) session.KV {
	if cfg.SessionBackend == "redis" {
		return session.NewRedisKV(cfg.RedisAddr)
	}
	return session.NewFileKV(cfg.SessionFile)
}

// describe turns classified gateway failures into operator-facing
// messages. Server-provided reasons pass through verbatim.
func describe(err error) string {
	var rejected *gateway.RejectedError
	switch {
	case errors.Is(err, gateway.ErrAuthenticationRequired):
		return "not logged in (run: docuscan login)"
	case gateway.IsUnreachable(err):
		return "cannot reach the service; check API_BASE_URL and try again"
	case errors.As(err, &rejected):
		return rejected.Message
	}
	return err.Error()
}

func runLogin(ctx context.Context, gw *gateway.Client, args []string) error {
	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Print("username: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		username = strings.TrimSpace(line)
	}

	fmt.Print("password: ")
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	resp, err := gw.Login(ctx, username, string(secret))
	if err != nil {
		return err
	}
	fmt.Printf("logged in; token valid for %s\n", time.Duration(resp.ExpiresIn)*time.Second)
	return nil
}

func runWhoami(ctx context.Context, gw *gateway.Client) error {
	user, err := gw.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", user.Username, user.Role)
	return nil
}

func runUpload(ctx context.Context, cfg config.App, gw *gateway.Client, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: docuscan upload <image>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	controller := capture.NewController(nil)
	if err := controller.SelectFile(filepath.Base(args[0]), data); err != nil {
		return err
	}
	return submit(ctx, cfg, gw, controller)
}

func runCapture(ctx context.Context, cfg config.App, gw *gateway.Client) error {
	if cfg.CameraURL == "" {
		return errors.New("no camera configured (set CAMERA_URL or --camera)")
	}
	controller := capture.NewController(capture.NewHTTPCamera(cfg.CameraURL))
	if err := controller.StartCamera(ctx); err != nil {
		return err
	}
	// Release the stream on any error path below.
	defer controller.Reset()

	source, err := controller.CaptureFrame(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("captured %s (%d bytes)\n", source.Name, len(source.Data))
	return submit(ctx, cfg, gw, controller)
}

func submit(ctx context.Context, cfg config.App, gw *gateway.Client, controller *capture.Controller) error {
	flow := upload.NewFlow(gw, controller, cfg.ResultDelay)
	resp, err := flow.Submit(ctx)
	if err != nil {
		return err
	}
	fmt.Println(resp.Message)
	if resp.Student != nil {
		printStudent(*resp.Student)
	}
	if resp.OCRResult != nil && resp.OCRResult.ExtractedText != "" {
		fmt.Println("--- extracted text ---")
		fmt.Println(resp.OCRResult.ExtractedText)
	}
	return nil
}

func runList(ctx context.Context, facade *records.Facade, args []string) error {
	flags := pflag.NewFlagSet("list", pflag.ExitOnError)
	page := flags.Int("page", 1, "result page")
	_ = flags.Parse(args)

	query := ""
	if rest := flags.Args(); len(rest) > 0 {
		query = rest[0]
	}
	resp, err := facade.Search(ctx, query, *page)
	if err != nil {
		return err
	}
	fmt.Printf("%d record(s), page %d (size %d)\n", resp.Total, resp.Page, resp.PageSize)
	for _, student := range resp.Students {
		fmt.Printf("%6d  %-12s  %-24s  %s\n", student.ID, student.StudentID, student.FullName, student.Department)
	}
	return nil
}

func runGet(ctx context.Context, facade *records.Facade, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	student, err := facade.Get(ctx, id)
	if err != nil {
		return err
	}
	printStudent(student)
	return nil
}

func runUpdate(ctx context.Context, facade *records.Facade, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: docuscan update <id> [--name ...] [--email ...]")
	}
	id, err := parseID(args[:1])
	if err != nil {
		return err
	}

	flags := pflag.NewFlagSet("update", pflag.ExitOnError)
	name := flags.String("name", "", "full name")
	email := flags.String("email", "", "email")
	phone := flags.String("phone", "", "phone")
	department := flags.String("department", "", "department")
	program := flags.String("program", "", "program")
	year := flags.String("year", "", "year of study")
	studentID := flags.String("student-id", "", "external student identifier")
	_ = flags.Parse(args[1:])

	var update model.StudentUpdate
	set := func(dst **string, flagName string, value *string) {
		if flags.Changed(flagName) {
			*dst = value
		}
	}
	set(&update.FullName, "name", name)
	set(&update.Email, "email", email)
	set(&update.Phone, "phone", phone)
	set(&update.Department, "department", department)
	set(&update.Program, "program", program)
	set(&update.YearOfStudy, "year", year)
	set(&update.StudentID, "student-id", studentID)

	student, err := facade.Update(ctx, id, update)
	if err != nil {
		return err
	}
	printStudent(student)
	return nil
}

func runDelete(ctx context.Context, facade *records.Facade, args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}
	if err := facade.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Printf("deleted record %d\n", id)
	return nil
}

func runExport(ctx context.Context, facade *records.Facade, args []string) error {
	flags := pflag.NewFlagSet("export", pflag.ExitOnError)
	out := flags.String("out", "", "output path")
	_ = flags.Parse(args)

	query := ""
	if rest := flags.Args(); len(rest) > 0 {
		query = rest[0]
	}
	data, err := facade.Export(ctx, query)
	if err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = "students_export_" + time.Now().Format("2006-01-02") + ".xlsx"
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", path, len(data))
	return nil
}

func runStats(ctx context.Context, facade *records.Facade) error {
	stats, err := facade.Statistics(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("total students:  %d\n", stats.TotalStudents)
	fmt.Printf("recent uploads:  %d\n", stats.RecentUploads)
	for _, dept := range stats.Departments {
		fmt.Printf("  %-24s %d\n", dept.Name, dept.Count)
	}
	return nil
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("record id required")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid record id %q", args[0])
	}
	return id, nil
}

func printStudent(student model.Student) {
	fmt.Printf("id:          %d\n", student.ID)
	fmt.Printf("student id:  %s\n", student.StudentID)
	fmt.Printf("name:        %s\n", student.FullName)
	if student.Email != "" {
		fmt.Printf("email:       %s\n", student.Email)
	}
	if student.Phone != "" {
		fmt.Printf("phone:       %s\n", student.Phone)
	}
	if student.Department != "" {
		fmt.Printf("department:  %s\n", student.Department)
	}
	if student.Program != "" {
		fmt.Printf("program:     %s\n", student.Program)
	}
	if student.YearOfStudy != "" {
		fmt.Printf("year:        %s\n", student.YearOfStudy)
	}
	fmt.Printf("updated:     %s\n", student.UpdatedAt)
}
