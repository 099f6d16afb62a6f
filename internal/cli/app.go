package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/FACorreiaa/bankconnect-go/pkg/bankconnect"
	"github.com/FACorreiaa/bankconnect-go/pkg/export"
	"github.com/FACorreiaa/bankconnect-go/pkg/model"
	"github.com/FACorreiaa/bankconnect-go/pkg/storage"
)

// ErrUsage is returned for malformed command lines.
var ErrUsage = errors.New("usage error")

const usage = `usage: bankconnect [-env file] <command> [flags]

commands:
  create   register an entity for a link id and print its entity id
  link     print the link id of an entity
  upload   upload a PDF statement
  fetch    read one category of an entity
  exports  list archived exports of an entity
  watch    periodically refresh entities into the export archive
`

// App runs bankconnect commands against initialized dependencies.
type App struct {
	deps   *Dependencies
	stdout io.Writer
}

func NewApp(deps *Dependencies, stdout io.Writer) *App {
	return &App{deps: deps, stdout: stdout}
}

// Usage returns the top-level help text.
func Usage() string { return usage }

// Execute runs the command named by args[0].
func (a *App) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command\n%s", ErrUsage, usage)
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "create":
		return a.create(ctx, rest)
	case "link":
		return a.link(ctx, rest)
	case "upload":
		return a.upload(ctx, rest)
	case "fetch":
		return a.fetch(ctx, rest)
	case "exports":
		return a.exports(ctx, rest)
	case "watch":
		return a.watch(ctx, rest)
	default:
		return fmt.Errorf("%w: unknown command %q\n%s", ErrUsage, cmd, usage)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUsage, fs.Name(), err)
	}
	return nil
}

// entityFrom resolves -entity or -link into a handle. An entity id wins.
func (a *App) entityFrom(entityID, linkID string) (*bankconnect.Entity, error) {
	if entityID != "" {
		return a.deps.Client.Get(entityID)
	}
	return a.deps.Client.Create(linkID), nil
}

func (a *App) create(ctx context.Context, args []string) error {
	fs := newFlagSet("create")
	linkID := fs.String("link", "", "link id to register (required)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if *linkID == "" {
		return fmt.Errorf("%w: create: -link is required", ErrUsage)
	}

	entityID, err := a.deps.Client.Create(*linkID).EntityID(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(map[string]string{"entity_id": entityID, "link_id": *linkID})
}

func (a *App) link(ctx context.Context, args []string) error {
	fs := newFlagSet("link")
	entityID := fs.String("entity", "", "entity id (required)")
	if err := parse(fs, args); err != nil {
		return err
	}

	entity, err := a.deps.Client.Get(*entityID)
	if err != nil {
		return err
	}
	linkID, err := entity.LinkID(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(map[string]string{"entity_id": *entityID, "link_id": linkID})
}

func (a *App) upload(ctx context.Context, args []string) error {
	fs := newFlagSet("upload")
	entityID := fs.String("entity", "", "existing entity id")
	linkID := fs.String("link", "", "link id for a new entity")
	file := fs.String("file", "", "path of the PDF statement (required)")
	password := fs.String("password", "", "PDF password")
	bank := fs.String("bank", "", "bank name; empty lets the service detect it")
	if err := parse(fs, args); err != nil {
		return err
	}

	entity, err := a.entityFrom(*entityID, *linkID)
	if err != nil {
		return err
	}
	authentic, err := entity.UploadStatement(ctx, *file, bankconnect.UploadOptions{Password: *password, BankName: *bank})
	if err != nil {
		return err
	}
	id, err := entity.EntityID(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(struct {
		EntityID    string `json:"entity_id"`
		IsAuthentic bool   `json:"is_authentic"`
	}{id, authentic})
}

func (a *App) fetch(ctx context.Context, args []string) error {
	fs := newFlagSet("fetch")
	entityID := fs.String("entity", "", "entity id")
	linkID := fs.String("link", "", "link id, used when -entity is empty")
	categoryName := fs.String("category", "transactions", "category to read")
	accountID := fs.String("account", "", "narrow to one account id")
	fromStr := fs.String("from", "", "from date YYYY-MM-DD")
	toStr := fs.String("to", "", "to date YYYY-MM-DD")
	format := fs.String("format", "json", "json, csv or xlsx")
	out := fs.String("out", "", "output file; xlsx without -out goes to the export archive")
	if err := parse(fs, args); err != nil {
		return err
	}

	category, ok := model.ParseCategory(*categoryName)
	if !ok {
		return fmt.Errorf("%w: fetch: unknown category %q", ErrUsage, *categoryName)
	}
	q := bankconnect.Query{AccountID: *accountID}
	var err error
	if q.From, err = parseDate("from", *fromStr); err != nil {
		return err
	}
	if q.To, err = parseDate("to", *toStr); err != nil {
		return err
	}

	entity, err := a.entityFrom(*entityID, *linkID)
	if err != nil {
		return err
	}
	snapshot, err := export.Collect(ctx, entity, category, q)
	if err != nil {
		return err
	}

	switch *format {
	case "json":
		return a.writeOut(*out, func(w io.Writer) error { return encodeJSON(w, categoryRecords(snapshot, category)) })
	case "csv":
		return a.writeOut(*out, func(w io.Writer) error { return writeCategoryCSV(w, snapshot, category) })
	case "xlsx":
		if *out != "" {
			return a.writeOut(*out, func(w io.Writer) error { return export.WriteXLSX(w, snapshot) })
		}
		var buf bytes.Buffer
		if err := export.WriteXLSX(&buf, snapshot); err != nil {
			return err
		}
		name := fmt.Sprintf("%s_%s.xlsx", category, snapshot.TakenAt.Format("20060102T150405"))
		info, err := a.deps.Archive.Save(ctx, snapshot.EntityID, name, storage.ContentTypeXLSX, &buf)
		if err != nil {
			return err
		}
		return a.printJSON(info)
	default:
		return fmt.Errorf("%w: fetch: unknown format %q", ErrUsage, *format)
	}
}

func (a *App) exports(ctx context.Context, args []string) error {
	fs := newFlagSet("exports")
	entityID := fs.String("entity", "", "entity id (required)")
	if err := parse(fs, args); err != nil {
		return err
	}
	files, err := a.deps.Archive.List(ctx, *entityID)
	if err != nil {
		return err
	}
	return a.printJSON(files)
}

func (a *App) watch(ctx context.Context, args []string) error {
	fs := newFlagSet("watch")
	entities := fs.String("entity", "", "comma separated entity ids (required)")
	schedule := fs.String("schedule", a.deps.Config.Export.RefreshSchedule, "cron spec")
	categoriesFlag := fs.String("categories", "accounts,transactions", "comma separated categories")
	once := fs.Bool("once", false, "refresh once and exit")
	if err := parse(fs, args); err != nil {
		return err
	}

	categories, err := parseCategories(*categoriesFlag)
	if err != nil {
		return err
	}
	if *entities == "" {
		return fmt.Errorf("%w: watch: -entity is required", ErrUsage)
	}

	scheduler := a.deps.NewScheduler(*schedule, categories)
	for _, id := range strings.Split(*entities, ",") {
		entity, err := a.deps.Client.Get(strings.TrimSpace(id))
		if err != nil {
			return err
		}
		scheduler.Watch(entity)
	}

	if *once {
		results := scheduler.RunNow(ctx)
		type row struct {
			EntityID string            `json:"entity_id"`
			File     *storage.FileInfo `json:"file,omitempty"`
			Pruned   int               `json:"pruned"`
			Error    string            `json:"error,omitempty"`
		}
		rows := make([]row, 0, len(results))
		var firstErr error
		for _, r := range results {
			rr := row{EntityID: r.EntityID, File: r.File, Pruned: r.Pruned}
			if r.Err != nil {
				rr.Error = r.Err.Error()
				if firstErr == nil {
					firstErr = r.Err
				}
			}
			rows = append(rows, rr)
		}
		if err := a.printJSON(rows); err != nil {
			return err
		}
		return firstErr
	}

	if err := scheduler.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	<-scheduler.Stop().Done()
	return nil
}

func parseDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid -%s date, use YYYY-MM-DD: %v", ErrUsage, name, err)
	}
	return t, nil
}

func parseCategories(value string) (model.Category, error) {
	var out model.Category
	for _, name := range strings.Split(value, ",") {
		c, ok := model.ParseCategory(name)
		if !ok {
			return 0, fmt.Errorf("%w: unknown category %q", ErrUsage, name)
		}
		out |= c
	}
	return out, nil
}

func categoryRecords(s *export.Snapshot, c model.Category) any {
	switch c {
	case model.CategoryAccounts:
		return s.Accounts
	case model.CategoryFraudInfo:
		return s.FraudInfo
	case model.CategoryIdentity:
		return s.Identity
	case model.CategoryTransactions:
		return s.Transactions
	case model.CategoryCreditRecurring:
		return s.CreditRecurring
	case model.CategoryDebitRecurring:
		return s.DebitRecurring
	case model.CategorySalary:
		return s.Salary
	default:
		return s.LenderTransactions
	}
}

// writeCategoryCSV writes one row per record; recurring groups are flattened to their transactions.
func writeCategoryCSV(w io.Writer, s *export.Snapshot, c model.Category) error {
	switch c {
	case model.CategoryAccounts:
		return export.WriteCSV(w, s.Accounts)
	case model.CategoryFraudInfo:
		return export.WriteCSV(w, s.FraudInfo)
	case model.CategoryIdentity:
		return export.WriteCSV(w, []model.Identity{s.Identity})
	case model.CategoryTransactions:
		return export.WriteCSV(w, s.Transactions)
	case model.CategoryCreditRecurring:
		return export.WriteCSV(w, flatten(s.CreditRecurring))
	case model.CategoryDebitRecurring:
		return export.WriteCSV(w, flatten(s.DebitRecurring))
	case model.CategorySalary:
		return export.WriteCSV(w, s.Salary)
	default:
		return export.WriteCSV(w, s.LenderTransactions)
	}
}

func flatten(groups []model.RecurringGroup) []model.Transaction {
	var out []model.Transaction
	for _, g := range groups {
		out = append(out, g.Transactions...)
	}
	return out
}

func (a *App) writeOut(path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(a.stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (a *App) printJSON(v any) error {
	return encodeJSON(a.stdout, v)
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
