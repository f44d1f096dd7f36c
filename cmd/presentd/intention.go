package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KanishkKundu05/bepresent-android-sub000/internal/config"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/domain"
	"github.com/KanishkKundu05/bepresent-android-sub000/internal/usecase"
)

var intentionCmd = &cobra.Command{
	Use:     "intention",
	Aliases: []string{"intentions"},
	Short:   "Limit how often you open an app each day",
}

var intentionAddCmd = &cobra.Command{
	Use:     "add",
	Short:   "Add an intention for an app",
	Example: "  presentd intention add --package com.valvesoftware.steam --app Steam --opens 2 --minutes 15",
	RunE:    runIntentionAdd,
}

var intentionUpdateCmd = &cobra.Command{
	Use:   "update <id|package>",
	Short: "Change an intention's limits",
	Args:  cobra.ExactArgs(1),
	RunE:  runIntentionUpdate,
}

var intentionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List intentions and today's usage",
	RunE:  runIntentionList,
}

var intentionDeleteCmd = &cobra.Command{
	Use:   "delete <id|package>",
	Short: "Delete an intention",
	Args:  cobra.ExactArgs(1),
	RunE:  runIntentionDelete,
}

var intentionOpenCmd = &cobra.Command{
	Use:   "open <id|package>",
	Short: "Spend an open and unblock the app for its window",
	Args:  cobra.ExactArgs(1),
	RunE:  runIntentionOpen,
}

var intentionImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create or update intentions from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE:  runIntentionImport,
}

var (
	intentionPackage string
	intentionApp     string
	intentionOpens   int
	intentionMinutes int
)

func init() {
	for _, c := range []*cobra.Command{intentionAddCmd, intentionUpdateCmd} {
		c.Flags().StringVar(&intentionApp, "app", "", "Display name")
		c.Flags().IntVar(&intentionOpens, "opens", 3, "Allowed opens per day")
		c.Flags().IntVar(&intentionMinutes, "minutes", 5, "Minutes per open")
	}
	intentionAddCmd.Flags().StringVarP(&intentionPackage, "package", "p", "", "App package/bundle id")
	_ = intentionAddCmd.MarkFlagRequired("package")

	intentionCmd.AddCommand(intentionAddCmd)
	intentionCmd.AddCommand(intentionUpdateCmd)
	intentionCmd.AddCommand(intentionListCmd)
	intentionCmd.AddCommand(intentionDeleteCmd)
	intentionCmd.AddCommand(intentionOpenCmd)
	intentionCmd.AddCommand(intentionImportCmd)
}

func runIntentionAdd(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		a.catchUp(ctx)
		in, err := a.intentions.Create(ctx, usecase.IntentionInput{
			PackageName:        intentionPackage,
			AppName:            appNameFor(a, intentionPackage, intentionApp),
			AllowedOpensPerDay: intentionOpens,
			TimePerOpenMinutes: intentionMinutes,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Intention for %s added: %d open(s) a day, %d min each (id %s)\n",
			in.AppName, in.AllowedOpensPerDay, in.TimePerOpenMinutes, in.ID)
		return nil
	})
}

func runIntentionUpdate(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		a.catchUp(ctx)
		cur, err := resolveIntention(ctx, a, args[0])
		if err != nil {
			return err
		}
		input := usecase.IntentionInput{
			PackageName:        cur.PackageName,
			AppName:            cur.AppName,
			AllowedOpensPerDay: cur.AllowedOpensPerDay,
			TimePerOpenMinutes: cur.TimePerOpenMinutes,
		}
		if cmd.Flags().Changed("app") {
			input.AppName = intentionApp
		}
		if cmd.Flags().Changed("opens") {
			input.AllowedOpensPerDay = intentionOpens
		}
		if cmd.Flags().Changed("minutes") {
			input.TimePerOpenMinutes = intentionMinutes
		}
		in, err := a.intentions.Update(ctx, cur.ID, input)
		if err != nil {
			return err
		}
		fmt.Printf("Intention for %s updated: %d open(s) a day, %d min each\n",
			in.AppName, in.AllowedOpensPerDay, in.TimePerOpenMinutes)
		return nil
	})
}

func runIntentionList(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		a.catchUp(ctx)
		list, err := a.intentions.List(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Println("No intentions. Add one with 'presentd intention add'.")
			return nil
		}
		for _, in := range list {
			printIntention(in)
		}
		return nil
	})
}

func runIntentionDelete(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		in, err := resolveIntention(ctx, a, args[0])
		if err != nil {
			return err
		}
		if err := a.intentions.Delete(ctx, in.ID); err != nil {
			return err
		}
		fmt.Printf("Intention for %s deleted\n", in.AppName)
		return nil
	})
}

func runIntentionOpen(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app) error {
		a.catchUp(ctx)
		cur, err := resolveIntention(ctx, a, args[0])
		if err != nil {
			return err
		}
		in, err := a.intentions.OpenApp(ctx, cur.ID)
		if err != nil {
			return err
		}
		until := in.OpenedAt.Add(in.OpenWindow())
		fmt.Printf("%s unblocked until %s (open %d of %d today)\n",
			in.AppName, until.Format(time.Kitchen), in.TotalOpensToday, in.AllowedOpensPerDay)
		if in.OverLimit() {
			fmt.Println(color.YellowString("Over today's limit: your streak breaks at midnight unless a freeze covers it."))
		}
		return nil
	})
}

func runIntentionImport(cmd *cobra.Command, args []string) error {
	inputs, err := config.LoadIntentionFile(args[0])
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, a *app) error {
		a.catchUp(ctx)
		for _, input := range inputs {
			input.AppName = appNameFor(a, input.PackageName, input.AppName)
			in, err := a.intentions.Upsert(ctx, input)
			if err != nil {
				return fmt.Errorf("%s: %w", input.PackageName, err)
			}
			fmt.Printf("  %s %s\n", color.GreenString("✓"), in.AppName)
		}
		fmt.Printf("Imported %d intention(s)\n", len(inputs))
		return nil
	})
}

// resolveIntention accepts an intention id or package name.
func resolveIntention(ctx context.Context, a *app, ref string) (*domain.Intention, error) {
	in, err := a.intentions.Get(ctx, ref)
	if err == nil {
		return in, nil
	}
	if !errors.Is(err, usecase.ErrIntentionNotFound) {
		return nil, err
	}
	return a.intentions.GetByPackage(ctx, ref)
}

func appNameFor(a *app, pkg, name string) string {
	if name != "" {
		return name
	}
	return a.catalog.DisplayName(pkg)
}

func printIntention(in domain.Intention) {
	status := color.RedString("blocked")
	if in.CurrentlyOpen && in.OpenedAt != nil {
		left := time.Until(in.OpenedAt.Add(in.OpenWindow())).Round(time.Second)
		status = color.GreenString("open, %s left", left)
	}
	opens := fmt.Sprintf("%d/%d", in.TotalOpensToday, in.AllowedOpensPerDay)
	if in.OverLimit() {
		opens = color.YellowString(opens)
	}
	fmt.Printf("  %-20s %-8s opens %-5s streak %-3d %s\n", in.AppName, status, opens, in.Streak, color.HiBlackString(in.ID))
}
