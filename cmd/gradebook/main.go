package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"edupanel/internal/backend"
	"edupanel/internal/config"
	"edupanel/internal/database"
	"edupanel/internal/grading"
	"edupanel/internal/models"
	"edupanel/internal/repository"
	"edupanel/internal/service"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

const exportSessionTTL = 15 * time.Minute

type commandLine struct {
	client  *backend.Client
	journal *repository.JournalRepository
	out     io.Writer
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Load configuration
	cfg := config.Load()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Run migrations to ensure schema is up to date
	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	cli := &commandLine{
		client:  backend.NewClient(cfg.BackendURL, backend.WithTimeout(cfg.BackendTimeout), backend.WithDebug(cfg.Debug)),
		journal: repository.NewJournalRepository(db),
		out:     os.Stdout,
	}
	if err := cli.run(context.Background(), os.Args); err != nil {
		if errors.Is(err, errHelp) {
			os.Exit(1)
		}
		log.Fatalf("gradebook: %v", err)
	}
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		printUsage()
		return errHelp
	}

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportList := exportCmd.String("list", "", "Exercise list ID (required)")
	exportFormat := exportCmd.String("format", "pdf", "Output format: pdf or json")
	exportOutput := exportCmd.String("output", "", "Output file path (default: gradebook_<list>_YYYYMMDD_HHMMSS.<format>)")
	exportEmail := exportCmd.String("email", "", "Teacher email (required). The password is prompted next.")

	journalCmd := flag.NewFlagSet("journal", flag.ContinueOnError)
	journalTarget := journalCmd.String("target", "", "Exercise or exercise list ID (required)")
	journalFailed := journalCmd.Bool("failed", false, "Only show writes the backend rejected")

	switch args[1] {
	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exportList == "" || *exportEmail == "" {
			exportCmd.Usage()
			return errHelp
		}
		if *exportFormat != "pdf" && *exportFormat != "json" {
			return fmt.Errorf("unknown format %q, use pdf or json", *exportFormat)
		}

		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			exportCmd.Usage()
			return errHelp
		}
		return cli.export(ctx, *exportEmail, string(pwd), *exportList, *exportFormat, *exportOutput)

	case "journal":
		if err := journalCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *journalTarget == "" {
			journalCmd.Usage()
			return errHelp
		}
		return cli.printJournal(ctx, *journalTarget, *journalFailed)

	default:
		printUsage()
		return errHelp
	}
}

func (cli *commandLine) export(ctx context.Context, email, password, listID, format, outputPath string) error {
	resp, err := cli.client.Login(ctx, strings.ToLower(strings.TrimSpace(email)), password)
	if err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}
	if !resp.User.IsTeacher() {
		return errors.New("only teachers can export gradebooks")
	}
	// the session only lives for this run
	session := &models.Session{User: resp.User, Token: resp.Token, ExpiresAt: time.Now().Add(exportSessionTTL)}

	gb, err := service.NewReportService(cli.client).Gradebook(ctx, session, listID)
	if err != nil {
		return err
	}

	// Generate default filename if not provided
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("gradebook_%s_%s.%s", filepath.Base(listID), timestamp, format)
	}

	// Ensure directory exists
	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if format == "json" {
		err = gb.WriteJSON(f)
	} else {
		err = gb.WritePDF(f)
	}
	if err != nil {
		return fmt.Errorf("failed to write gradebook: %w", err)
	}

	log.Printf("Gradebook for %q written to %s (%d students)", gb.ListName, outputPath, len(gb.Rows))
	return nil
}

func (cli *commandLine) printJournal(ctx context.Context, targetID string, failedOnly bool) error {
	var entries []models.JournalEntry
	var err error
	if failedOnly {
		entries, err = cli.journal.ListFailed(ctx, targetID)
	} else {
		entries, err = cli.journal.ListByScope(ctx, targetID)
	}
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintf(cli.out, "No grades recorded for %s\n", targetID)
		return nil
	}

	tw := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tTEACHER\tSTUDENT\tTARGET\tGRADE\tSTATUS")
	for _, e := range entries {
		status := string(e.Status)
		if e.Error != "" {
			status += ": " + e.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\t%s\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.TeacherID,
			e.StudentID,
			e.TargetType,
			e.TargetID,
			grading.FormatGrade(e.Grade),
			status,
		)
	}
	return tw.Flush()
}

func printUsage() {
	fmt.Println("EduPanel Gradebook Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gradebook export [options]     Export a list's grades as PDF or JSON")
	fmt.Println("  gradebook journal [options]    Print the grade history of an exercise or list")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -list <id>        Exercise list ID (required)")
	fmt.Println("  -email <email>    Teacher email (required, password is prompted)")
	fmt.Println("  -format pdf|json  Output format (default: pdf)")
	fmt.Println("  -output <file>    Output file path")
	fmt.Println()
	fmt.Println("Journal Options:")
	fmt.Println("  -target <id>      Exercise or exercise list ID (required)")
	fmt.Println("  -failed           Only show failed writes")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  BACKEND_URL      REST backend base URL (default: http://localhost:3001)")
	fmt.Println("  DATABASE_TYPE    Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./edupanel.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
}
