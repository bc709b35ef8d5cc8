package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pydea-rs/omen-creator-panel/internal/category"
	"github.com/pydea-rs/omen-creator-panel/internal/domain"
	"github.com/pydea-rs/omen-creator-panel/internal/form"
)

// ErrHistoryDisabled is returned by PrintHistory when no history store is
// configured.
var ErrHistoryDisabled = errors.New("history is disabled (history.driver = none)")

// DraftFile is the TOML layout read by the create command. Image is
// resolved relative to the draft file.
type DraftFile struct {
	Title            string     `toml:"title"`
	Description      string     `toml:"description"`
	Category         int64      `toml:"category"`
	Deadline         *time.Time `toml:"deadline"`
	StartAt          *time.Time `toml:"start_at"`
	Outcomes         []string   `toml:"outcomes"`
	Image            string     `toml:"image"`
	Reference        string     `toml:"reference"`
	InitialLiquidity *float64   `toml:"initial_liquidity"`
	Oracle           int64      `toml:"oracle"`
	Fee              *float64   `toml:"fee"`

	dir string
}

// LoadDraft reads a draft file. Unknown keys are an error.
func LoadDraft(path string) (DraftFile, error) {
	var df DraftFile
	md, err := toml.DecodeFile(path, &df)
	if err != nil {
		return DraftFile{}, fmt.Errorf("draft: decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return DraftFile{}, fmt.Errorf("draft: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	df.dir = filepath.Dir(path)
	return df, nil
}

// Login authenticates against the active endpoint.
func Login(ctx context.Context, deps *Dependencies, username, password string) error {
	if strings.TrimSpace(username) == "" || password == "" {
		return &domain.ValidationError{Field: "credentials", Message: "username and password are required"}
	}
	return deps.Workspace.Login(ctx, username, password)
}

// Logout drops the active endpoint's session.
func Logout(ctx context.Context, deps *Dependencies) error {
	return deps.Workspace.Logout(ctx)
}

// PrintCategories writes the category forest as an indented tree. Leaves
// carry their id since only they can be chosen.
func PrintCategories(w io.Writer, deps *Dependencies) error {
	if err := deps.Workspace.LoadErrors()["categories"]; err != nil {
		return fmt.Errorf("categories: %w", err)
	}
	roots := deps.Workspace.Categories()
	if len(roots) == 0 {
		_, err := fmt.Fprintln(w, "no categories")
		return err
	}
	var err error
	category.Walk(roots, func(c domain.Category, depth int) bool {
		line := strings.Repeat("  ", depth) + c.Name
		if c.IsLeaf() {
			line += fmt.Sprintf("  [%d]", c.ID)
		}
		_, err = fmt.Fprintln(w, line)
		return err == nil
	})
	return err
}

// PrintOracles writes one oracle per line.
func PrintOracles(w io.Writer, deps *Dependencies) error {
	if err := deps.Workspace.LoadErrors()["oracles"]; err != nil {
		return fmt.Errorf("oracles: %w", err)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tADDRESS")
	for _, o := range deps.Workspace.Oracles() {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", o.ID, o.Name, o.Address)
	}
	return tw.Flush()
}

// PrintHistory writes the most recent finished submissions.
func PrintHistory(ctx context.Context, w io.Writer, deps *Dependencies, limit int) error {
	if deps.History == nil {
		return ErrHistoryDisabled
	}
	recs, err := deps.History.Recent(ctx, domain.ListOpts{Limit: limit})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tOUTCOME\tTITLE\tENDPOINT\tMESSAGE")
	for _, r := range recs {
		msg := ""
		if len(r.Messages) > 0 {
			msg = r.Messages[0]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.FinishedAt.Local().Format("2006-01-02 15:04:05"), r.Outcome, r.Title, r.Endpoint, msg)
	}
	return tw.Flush()
}

// Create runs one draft through the same form and pipeline the TUI uses.
func Create(ctx context.Context, deps *Dependencies, df DraftFile) (domain.SubmissionResult, error) {
	if !deps.Workspace.Session().IsAuthenticated() {
		return domain.SubmissionResult{}, fmt.Errorf("create: %w: log in to %s first", domain.ErrUnauthorized, deps.Workspace.Endpoint().Name)
	}
	f := form.New(deps.Orchestrator,
		form.WithDisabled(deps.Workspace.Disabled),
		form.WithCategories(deps.Workspace.Categories),
	)
	if err := fillForm(f, df); err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("create: %w", err)
	}

	out := f.Submit(ctx)
	switch out.Action {
	case form.ActionNudge:
		return domain.SubmissionResult{}, fmt.Errorf("create: %w", domain.ErrUnauthorized)
	case form.ActionRejected:
		return domain.SubmissionResult{}, out.Err
	}
	return out.Result, out.Err
}

func fillForm(f *form.Form, df DraftFile) error {
	id := func(v int64) *int64 {
		if v == 0 {
			return nil
		}
		return &v
	}
	edits := []func() error{
		func() error { return f.SetTitle(df.Title) },
		func() error { return f.SetDescription(df.Description) },
		func() error {
			if err := f.SetCategory(id(df.Category)); err != nil {
				return fmt.Errorf("category %d: %w", df.Category, err)
			}
			return nil
		},
		func() error { return f.SetDeadline(df.Deadline) },
		func() error { return f.SetReference(df.Reference) },
		func() error { return f.SetInitialLiquidity(df.InitialLiquidity) },
		func() error { return f.SetOracle(id(df.Oracle)) },
		func() error { return f.SetFee(df.Fee) },
	}
	for _, edit := range edits {
		if err := edit(); err != nil {
			return err
		}
	}

	if df.StartAt != nil {
		f.ToggleStartAt()
		if err := f.SetStartAt(df.StartAt); err != nil {
			return err
		}
	}

	for i, o := range df.Outcomes {
		if i >= len(f.Draft().Outcomes) {
			if err := f.AddOutcome(); err != nil {
				return err
			}
		}
		if err := f.SetOutcome(i, o); err != nil {
			return err
		}
	}

	if df.Image != "" {
		path := df.Image
		if !filepath.IsAbs(path) {
			path = filepath.Join(df.dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		if out := f.AttachImage(domain.Image{Name: filepath.Base(path), Data: data}); out.Action == form.ActionNudge {
			return domain.ErrUnauthorized
		}
	}
	return nil
}
