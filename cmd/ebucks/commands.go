package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/fadedpez/ebucks/pkg/ebucks"
	"github.com/fadedpez/ebucks/pkg/entities"
)

// command runs one CLI verb against a user's engine
type command struct {
	usage string
	run   func(ctx context.Context, e *ebucks.Engine, args []string, out io.Writer) error
}

var commands = map[string]command{
	"balance":          {"Show the balance and today's multiplier", runBalance},
	"history":          {"List transactions, newest first [-limit N]", runHistory},
	"award":            {"Award eBucks -amount N -reason TEXT [-category C]", runAward},
	"spend":            {"Spend eBucks -amount N -reason TEXT", runSpend},
	"challenges":       {"List today's challenges", runChallenges},
	"complete":         {"Complete a challenge -id ID [-reward N] [-note TEXT]", runComplete},
	"spin":             {"Spin the fortune wheel [-double]", runSpin},
	"extra-spin":       {"Buy and spin an extra spin", runExtraSpin},
	"streak":           {"Show the login streak", runStreak},
	"stats":            {"Summarize the transaction log", runStats},
	"reset-challenges": {"Clear today's completions (debug)", runResetChallenges},
	"reset-wheel":      {"Reopen today's free spin (debug)", runResetWheel},
	"watch":            {"Print the snapshot whenever it changes [-interval D]", runWatch},
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parse(name string, args []string, define func(fs *flag.FlagSet)) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	define(fs)
	return fs.Parse(args)
}

func runBalance(ctx context.Context, e *ebucks.Engine, _ []string, out io.Writer) error {
	balance, err := e.GetBalance(ctx)
	if err != nil {
		return err
	}
	multiplier, err := e.Multiplier(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, map[string]int64{"balance": balance, "multiplier": multiplier})
}

func runHistory(ctx context.Context, e *ebucks.Engine, args []string, out io.Writer) error {
	var limit int
	if err := parse("history", args, func(fs *flag.FlagSet) {
		fs.IntVar(&limit, "limit", 0, "Maximum number of transactions (0 for all)")
	}); err != nil {
		return err
	}
	var (
		txs []entities.Transaction
		err error
	)
	if limit > 0 {
		txs, err = e.GetRecentHistory(ctx, limit)
	} else {
		txs, err = e.GetHistory(ctx)
	}
	if err != nil {
		return err
	}
	return printJSON(out, txs)
}

func runAward(ctx context.Context, e *ebucks.Engine, args []string, out io.Writer) error {
	var (
		amount   int64
		reason   string
		category string
	)
	if err := parse("award", args, func(fs *flag.FlagSet) {
		fs.Int64Var(&amount, "amount", 0, "Amount to award")
		fs.StringVar(&reason, "reason", "", "Ledger reason")
		fs.StringVar(&category, "category", "", "Ledger category")
	}); err != nil {
		return err
	}
	if reason == "" {
		return fmt.Errorf("award: -reason is required")
	}
	txID, err := e.AwardBucks(ctx, amount, reason, nil, entities.Category(category))
	if err != nil {
		return err
	}
	return printJSON(out, map[string]string{"transaction_id": txID})
}

func runSpend(ctx context.Context, e *ebucks.Engine, args []string, out io.Writer) error {
	var (
		amount int64
		reason string
	)
	if err := parse("spend", args, func(fs *flag.FlagSet) {
		fs.Int64Var(&amount, "amount", 0, "Amount to spend")
		fs.StringVar(&reason, "reason", "", "Ledger reason")
	}); err != nil {
		return err
	}
	if reason == "" {
		return fmt.Errorf("spend: -reason is required")
	}
	ok, err := e.SpendBucks(ctx, amount, reason)
	if err != nil {
		return err
	}
	return printJSON(out, map[string]bool{"success": ok})
}

func runChallenges(ctx context.Context, e *ebucks.Engine, _ []string, out io.Writer) error {
	list, err := e.GetDailyChallenges(ctx)
	if err != nil {
		return err
	}
	done, err := e.GetTodaysChallengesCompleted(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, map[string]any{"challenges": list, "completed": done})
}

func runComplete(ctx context.Context, e *ebucks.Engine, args []string, out io.Writer) error {
	var (
		id     string
		reward int64
		note   string
	)
	if err := parse("complete", args, func(fs *flag.FlagSet) {
		fs.StringVar(&id, "id", "", "Challenge id")
		fs.Int64Var(&reward, "reward", 0, "Reward override (0 uses the catalog reward)")
		fs.StringVar(&note, "note", "", "Note kept on the transaction")
	}); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("complete: -id is required")
	}
	var override *int64
	if reward != 0 {
		override = &reward
	}
	ok, err := e.CompleteDailyChallenge(ctx, id, override, note)
	if err != nil {
		return err
	}
	return printJSON(out, map[string]any{"challenge_id": id, "success": ok})
}

func runSpin(ctx context.Context, e *ebucks.Engine, args []string, out io.Writer) error {
	var double bool
	if err := parse("spin", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&double, "double", false, "Gamble the win right away")
	}); err != nil {
		return err
	}
	result, err := e.SpinWheel(ctx)
	if err != nil {
		return err
	}
	if !double {
		return printJSON(out, result)
	}
	settlement, err := e.DoubleOrNothing(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, map[string]any{"result": result, "settlement": settlement})
}

func runExtraSpin(ctx context.Context, e *ebucks.Engine, _ []string, out io.Writer) error {
	settlement, result, err := e.PaidExtraSpin(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, map[string]any{"settlement": settlement, "result": result})
}

func runStreak(ctx context.Context, e *ebucks.Engine, _ []string, out io.Writer) error {
	st, err := e.LoginStreak(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, st)
}

func runStats(ctx context.Context, e *ebucks.Engine, _ []string, out io.Writer) error {
	stats, err := e.Statistics(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, stats)
}

func runResetChallenges(ctx context.Context, e *ebucks.Engine, _ []string, out io.Writer) error {
	removed, err := e.ResetChallengeCompletion(ctx)
	if err != nil {
		return err
	}
	return printJSON(out, map[string]int{"removed": removed})
}

func runResetWheel(ctx context.Context, e *ebucks.Engine, _ []string, out io.Writer) error {
	if err := e.ResetWheelForToday(ctx); err != nil {
		return err
	}
	return printJSON(out, map[string]bool{"success": true})
}

func runWatch(ctx context.Context, e *ebucks.Engine, args []string, out io.Writer) error {
	var interval time.Duration
	if err := parse("watch", args, func(fs *flag.FlagSet) {
		fs.DurationVar(&interval, "interval", time.Minute, "How often to check for a new day")
	}); err != nil {
		return err
	}

	cancel := e.Subscribe(func(s ebucks.Snapshot) {
		_ = printJSON(out, s)
	})
	defer cancel()

	if err := printJSON(out, e.Snapshot()); err != nil {
		return err
	}
	e.WatchDayRollover(ctx, interval)
	<-ctx.Done()
	return nil
}
