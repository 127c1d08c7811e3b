package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finanzen/internal/cli"
	"finanzen/internal/config"
	"finanzen/internal/dates"
	"finanzen/internal/engine"
	"finanzen/internal/insights"
	"finanzen/internal/sheets"
	"finanzen/internal/worker"
)

type app struct {
	cfg     *config.Config
	stores  *cli.Stores
	engine  *engine.Engine
	out     io.Writer
	newSink func(context.Context, *config.Config) (sheets.LedgerWriter, error)
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	switch cmd {
	case "summary":
		return a.summary()

	case "week":
		offset := fs.Int("offset", 0, "weeks back from the current week")
		if err := fs.Parse(args); err != nil {
			return err
		}
		a.engine.SetWeekOffset(*offset)
		return a.print(a.engine.WeeklySpending())

	case "add-income", "add-fixed":
		typ := fs.String("type", "", "entry name")
		amount := fs.String("amount", "", "monthly amount")
		if err := fs.Parse(args); err != nil {
			return err
		}
		n, err := parseAmount(*amount)
		if err != nil {
			return err
		}
		if cmd == "add-income" {
			entry, err := a.engine.AddIncome(ctx, *typ, n)
			if err != nil {
				return err
			}
			return a.print(entry)
		}
		entry, err := a.engine.AddFixedExpense(ctx, *typ, n)
		if err != nil {
			return err
		}
		return a.print(entry)

	case "add-transaction":
		name := fs.String("name", "", "description")
		amount := fs.String("amount", "", "signed amount, negative for expenses")
		category := fs.String("category", "", "category name")
		icon := fs.String("icon", "", "icon name")
		date := fs.String("date", "", "date such as 'Today, 14:30' or '05.03.2025'")
		if err := fs.Parse(args); err != nil {
			return err
		}
		n, err := parseAmount(*amount)
		if err != nil {
			return err
		}
		at, err := a.parseDate(*date)
		if err != nil {
			return err
		}
		tx, err := a.engine.AddTransaction(ctx, engine.TransactionInput{
			Name: *name, Category: *category, Icon: *icon, Amount: n, At: at,
		})
		if err != nil {
			return err
		}
		return a.print(tx)

	case "delete-transaction":
		id := fs.String("id", "", "transaction id")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return a.engine.DeleteTransaction(ctx, *id)

	case "add-budget":
		name := fs.String("name", "", "budget name")
		limit := fs.String("limit", "", "monthly limit")
		icon := fs.String("icon", "", "icon name")
		color := fs.String("color", "", "icon color")
		if err := fs.Parse(args); err != nil {
			return err
		}
		n, err := parseAmount(*limit)
		if err != nil {
			return err
		}
		b, err := a.engine.AddBudget(ctx, engine.BudgetInput{Name: *name, Limit: n, Icon: *icon, IconColor: *color})
		if err != nil {
			return err
		}
		return a.print(b)

	case "add-budget-expense":
		budget := fs.String("budget", "", "budget id or name")
		name := fs.String("name", "", "description")
		amount := fs.String("amount", "", "amount spent")
		date := fs.String("date", "", "date")
		if err := fs.Parse(args); err != nil {
			return err
		}
		id, err := a.budgetID(*budget)
		if err != nil {
			return err
		}
		n, err := parseAmount(*amount)
		if err != nil {
			return err
		}
		at, err := a.parseDate(*date)
		if err != nil {
			return err
		}
		exp, err := a.engine.AddBudgetExpense(ctx, id, engine.ExpenseInput{Name: *name, Amount: n, At: at})
		if err != nil {
			return err
		}
		return a.print(exp)

	case "add-goal":
		name := fs.String("name", "", "goal name")
		target := fs.String("target", "", "target amount")
		icon := fs.String("icon", "", "icon name")
		if err := fs.Parse(args); err != nil {
			return err
		}
		n, err := parseAmount(*target)
		if err != nil {
			return err
		}
		g, err := a.engine.AddGoal(ctx, engine.GoalInput{Name: *name, Target: n, Icon: *icon})
		if err != nil {
			return err
		}
		return a.print(g)

	case "deposit":
		goal := fs.String("goal", "", "goal id or name")
		amount := fs.String("amount", "", "deposit amount")
		date := fs.String("date", "", "date")
		if err := fs.Parse(args); err != nil {
			return err
		}
		id, err := a.goalID(*goal)
		if err != nil {
			return err
		}
		n, err := parseAmount(*amount)
		if err != nil {
			return err
		}
		at, err := a.parseDate(*date)
		if err != nil {
			return err
		}
		d, err := a.engine.AddGoalDeposit(ctx, id, n, at)
		if err != nil {
			return err
		}
		return a.print(d)

	case "currency":
		code := fs.String("code", "", "ISO 4217 code")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return a.engine.SetCurrency(ctx, strings.ToUpper(*code))

	case "complete-onboarding":
		a.engine.CompleteOnboarding(ctx)
		return nil

	case "reset-month":
		a.engine.ResetMonthlyBudgets(ctx)
		return a.summary()

	case "reset-all":
		a.engine.ResetAllData(ctx)
		return nil

	case "export":
		return a.export(ctx)
	}
	usage()
	return fmt.Errorf("unknown command %q", cmd)
}

type summary struct {
	Currency   string                    `json:"currency"`
	Totals     insights.Totals           `json:"totals"`
	Categories []insights.CategoryAmount `json:"categories"`
	Trend      []insights.TrendPoint     `json:"trend"`
	Synced     bool                      `json:"synced"`
	LastError  string                    `json:"lastError,omitempty"`
}

func (a *app) summary() error {
	s := summary{
		Currency:   a.engine.Snapshot().Currency,
		Totals:     a.engine.Totals(),
		Categories: a.engine.CategoryBreakdown(),
		Trend:      a.engine.MonthlyTrend(),
		Synced:     a.engine.RemoteUsable(),
	}
	if err := a.engine.LastError(); err != nil {
		s.LastError = err.Error()
	}
	return a.print(s)
}

func (a *app) export(ctx context.Context) error {
	if a.stores.Remote == nil {
		return errors.New("export needs a remote database")
	}
	if a.cfg.UserID == "" {
		return errors.New("export needs FINANZEN_USER_ID")
	}
	sink, err := a.newSink(ctx, a.cfg)
	if err != nil {
		return err
	}
	n, err := worker.NewExportWorker(a.stores.Remote, sink, a.cfg.CategoryCacheTTL).ExportAll(ctx, a.cfg.UserID)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "exported %d transactions\n", n)
	return nil
}

func (a *app) budgetID(ref string) (string, error) {
	for _, b := range a.engine.Snapshot().Budgets {
		if b.ID == ref || strings.EqualFold(b.Name, ref) {
			return b.ID, nil
		}
	}
	return "", fmt.Errorf("budget %q not found", ref)
}

func (a *app) goalID(ref string) (string, error) {
	for _, g := range a.engine.Snapshot().Goals {
		if g.ID == ref || strings.EqualFold(g.Name, ref) {
			return g.ID, nil
		}
	}
	return "", fmt.Errorf("goal %q not found", ref)
}

// parseDate accepts every display format; empty means now.
func (a *app) parseDate(s string) (time.Time, error) {
	now := time.Now()
	if strings.TrimSpace(s) == "" {
		return now, nil
	}
	t, ok := dates.ParseStrict(s, now)
	if !ok {
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
	return t, nil
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseAmount reads a signed decimal with either separator.
func parseAmount(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return d.Round(2).InexactFloat64(), nil
}
