package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"hintgraph/parse"
	"hintgraph/pathfind"
	"hintgraph/proto"
	"hintgraph/tree"
)

var hintCmd = &cobra.Command{
	Use:   "hint <exercise> <file>",
	Short: "Propose the next code state for a partial program",
	Long: `Propose the next code state for a partial program.

The program is read from <file>, or from stdin when <file> is "-". The
hint is either a full solution (when the program is already close to one)
or the best observed intermediate state, rewritten with the student's own
names.

Examples:
  hintgraph hint sum attempt.py
  hintgraph hint sum - --json < attempt.py
  hintgraph hint sum attempt.py --pack sum.hgpack --scorer distance
  hintgraph hint sum attempt.py --script`,
	Args:    cobra.ExactArgs(2),
	GroupID: groupHint,
	RunE:    runHint,
}

var canonCmd = &cobra.Command{
	Use:     "canon <file>",
	Short:   "Print the canonical form and structural key of a program",
	Args:    cobra.ExactArgs(1),
	GroupID: groupHint,
	RunE:    runCanon,
}

var (
	hintPack       string
	hintScorer     string
	hintJSON       bool
	hintScript     bool
	hintSubmitter  string
	hintAge        int
	hintExperience int

	canonExercise string
	canonAnon     bool
)

func init() {
	hintCmd.Flags().StringVar(&hintPack, "pack", "", "Read the graph from a pack file instead of the database")
	hintCmd.Flags().StringVar(&hintScorer, "scorer", "", "Scoring strategy: "+strings.Join(pathfind.ScorerNames(), ", "))
	hintCmd.Flags().BoolVar(&hintJSON, "json", false, "Output as JSON")
	hintCmd.Flags().BoolVar(&hintScript, "script", false, "Also print the edit script applied to the program")
	hintCmd.Flags().StringVar(&hintSubmitter, "submitter", "", "Submitter ID of the requesting student")
	hintCmd.Flags().IntVar(&hintAge, "age", -1, "Age bucket of the requesting student")
	hintCmd.Flags().IntVar(&hintExperience, "experience", -1, "Experience bucket of the requesting student")

	canonCmd.Flags().StringVar(&canonExercise, "exercise", "", "Apply the given and import names of this exercise")
	canonCmd.Flags().BoolVar(&canonAnon, "anon", false, "Print the anonymized form instead")

	rootCmd.AddCommand(hintCmd, canonCmd)
}

func runHint(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	exercise, file := args[0], args[1]

	rules, err := loadRules()
	if err != nil {
		return err
	}
	g, err := loadGraph(ctx, exercise, hintPack)
	if err != nil {
		return err
	}
	g.Freeze()

	src, err := readSource(file)
	if err != nil {
		return err
	}
	prog, err := parse.NewParser().ParseCtx(ctx, src)
	if err != nil {
		return err
	}

	finder, err := newFinder(g, newCanonicalizer(rules, exercise), hintScorer)
	if err != nil {
		return err
	}
	h, err := finder.FindHint(ctx, pathfind.Request{Tree: prog.Root, Provenance: requestProvenance()})
	if err != nil {
		return err
	}

	if hintJSON {
		return printJSON(h)
	}
	writeHint(os.Stdout, h, hintScript)
	return nil
}

func writeHint(w io.Writer, h *pathfind.Hint, script bool) {
	fmt.Fprintf(w, "Hint %s\n", shortID(h.RequestID))
	fmt.Fprintf(w, "Target: #%d (%s, distance %d)\n", h.Target, h.Kind, h.Distance)
	fmt.Fprintf(w, "Intent: %s\n", h.Explanation)
	if script {
		fmt.Fprintf(w, "Script: %s\n%s", h.Script.FormatStats(), h.Script.FormatText())
	}
	fmt.Fprintln(w)
	if h.Patch != "" {
		fmt.Fprint(w, h.Patch)
	} else {
		fmt.Fprint(w, h.Source)
	}
}

func requestProvenance() proto.Provenance {
	p := proto.Provenance{SubmitterID: hintSubmitter}
	if hintAge >= 0 {
		age := hintAge
		p.AgeBucket = &age
	}
	if hintExperience >= 0 {
		exp := hintExperience
		p.ExperienceBucket = &exp
	}
	return p
}

func runCanon(cmd *cobra.Command, args []string) error {
	rules, err := loadRules()
	if err != nil {
		return err
	}
	src, err := readSource(args[0])
	if err != nil {
		return err
	}
	prog, err := parse.NewParser().ParseCtx(cmd.Context(), src)
	if err != nil {
		return err
	}
	prep, err := newCanonicalizer(rules, canonExercise).Prepare(prog.Root)
	if err != nil {
		return err
	}
	out := prep.Canonical
	if canonAnon {
		out = prep.Form.Tree
	}
	fmt.Printf("# key %s  nodes %d\n", prep.Form.Key, prep.Size())
	fmt.Print(tree.Render(out))
	return nil
}
