package main

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
)

var exerciseCmd = &cobra.Command{
	Use:     "exercise",
	Short:   "Manage the exercise rules file",
	GroupID: groupAdmin,
}

var exerciseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List exercises and their path patterns",
	RunE:  runExerciseList,
}

var exerciseAddCmd = &cobra.Command{
	Use:   "add <name> <pattern...>",
	Short: "Add an exercise or replace its path patterns",
	Long: `Add an exercise or replace its path patterns.

Patterns use doublestar syntax and are matched against corpus file paths:
  hintgraph exercise add sum 'week1/sum/**' 'legacy/sum_*.jsonl'`,
	Args: cobra.MinimumNArgs(2),
	RunE: runExerciseAdd,
}

var exerciseRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an exercise",
	Args:  cobra.ExactArgs(1),
	RunE:  runExerciseRemove,
}

func init() {
	exerciseCmd.AddCommand(exerciseListCmd, exerciseAddCmd, exerciseRemoveCmd)
	rootCmd.AddCommand(exerciseCmd)
}

func runExerciseList(cmd *cobra.Command, args []string) error {
	rules, err := loadRules()
	if err != nil {
		return err
	}
	names := rules.Exercises()
	if len(names) == 0 {
		fmt.Printf("No exercises in %s\n", rulesPath())
		return nil
	}
	for _, name := range names {
		fmt.Printf("%-20s %s\n", name, strings.Join(rules.Rule(name).Paths, " "))
	}
	return nil
}

func runExerciseAdd(cmd *cobra.Command, args []string) error {
	rules, err := loadRules()
	if err != nil {
		return err
	}
	for _, p := range args[1:] {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid pattern %q", p)
		}
	}
	rules.AddExercise(args[0], args[1:])
	if err := rules.SaveRules(rulesPath()); err != nil {
		return err
	}
	fmt.Printf("Saved %s to %s\n", args[0], rulesPath())
	return nil
}

func runExerciseRemove(cmd *cobra.Command, args []string) error {
	rules, err := loadRules()
	if err != nil {
		return err
	}
	if !rules.RemoveExercise(args[0]) {
		return fmt.Errorf("exercise %q not found", args[0])
	}
	if err := rules.SaveRules(rulesPath()); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}
