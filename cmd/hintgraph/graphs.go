package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"hintgraph/graph"
	"hintgraph/store"
)

const packExt = ".hgpack"

var dotCmd = &cobra.Command{
	Use:     "dot <exercise>",
	Short:   "Render a solution graph in Graphviz DOT",
	Args:    cobra.ExactArgs(1),
	GroupID: groupGraph,
	RunE:    runDot,
}

var statsCmd = &cobra.Command{
	Use:   "stats [exercise]",
	Short: "Show stored graphs or the statistics of one graph",
	Long: `Without an argument, list every stored graph. With an exercise name,
print its vertex, edge, goal and observation counts.`,
	Args:    cobra.MaximumNArgs(1),
	GroupID: groupGraph,
	RunE:    runStats,
}

var checkCmd = &cobra.Command{
	Use:     "check [exercise...]",
	Short:   "Verify the invariants of stored graphs",
	GroupID: groupAdmin,
	RunE:    runCheck,
}

var deleteCmd = &cobra.Command{
	Use:     "delete <exercise>",
	Short:   "Delete a stored graph",
	Args:    cobra.ExactArgs(1),
	GroupID: groupAdmin,
	RunE:    runDelete,
}

var exportCmd = &cobra.Command{
	Use:     "export <exercise> <file>",
	Short:   "Write a stored graph to a pack file",
	Args:    cobra.ExactArgs(2),
	GroupID: groupAdmin,
	RunE:    runExport,
}

var importCmd = &cobra.Command{
	Use:     "import <file...>",
	Short:   "Store the graphs held in pack files",
	Args:    cobra.MinimumNArgs(1),
	GroupID: groupAdmin,
	RunE:    runImport,
}

var inspectCmd = &cobra.Command{
	Use:     "inspect <file>",
	Short:   "Show the header of a pack file",
	Args:    cobra.ExactArgs(1),
	GroupID: groupAdmin,
	RunE:    runInspect,
}

var (
	dotOutput string
	dotPack   string
	statsJSON bool
)

func init() {
	dotCmd.Flags().StringVarP(&dotOutput, "output", "o", "", "Write to a file instead of stdout")
	dotCmd.Flags().StringVar(&dotPack, "pack", "", "Read the graph from a pack file instead of the database")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")

	rootCmd.AddCommand(dotCmd, statsCmd, checkCmd, deleteCmd, exportCmd, importCmd, inspectCmd)
}

// loadGraph reads a graph from a pack file when pack is set, else from the
// database.
func loadGraph(ctx context.Context, exercise, pack string) (*graph.Graph, error) {
	if pack != "" {
		g, err := readPackFile(pack)
		if err != nil {
			return nil, err
		}
		if exercise != "" && g.Exercise != exercise {
			return nil, fmt.Errorf("pack %s holds exercise %q, not %q", pack, g.Exercise, exercise)
		}
		return g, nil
	}
	db, err := openDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return db.LoadGraph(ctx, exercise)
}

func readPackFile(path string) (*graph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pack: %w", err)
	}
	defer f.Close()
	return store.ReadPack(f, logger)
}

func writePackFile(path string, g *graph.Graph) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating pack directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating pack: %w", err)
	}
	if err := store.WritePack(f, g); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runDot(cmd *cobra.Command, args []string) error {
	g, err := loadGraph(cmd.Context(), args[0], dotPack)
	if err != nil {
		return err
	}
	if dotOutput == "" {
		return g.WriteDOT(os.Stdout)
	}
	f, err := os.Create(dotOutput)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := g.WriteDOT(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if len(args) == 1 {
		g, err := loadGraph(ctx, args[0], "")
		if err != nil {
			return err
		}
		s := g.Stats()
		if statsJSON {
			return printJSON(s)
		}
		fmt.Printf("Exercise:     %s\n", g.Exercise)
		fmt.Printf("Vertices:     %d\n", s.Vertices)
		fmt.Printf("Edges:        %d\n", s.Edges)
		fmt.Printf("Goals:        %d\n", s.Goals)
		fmt.Printf("Variants:     %d\n", s.Variants)
		fmt.Printf("Observations: %d\n", s.Observations)
		fmt.Printf("Node counts:  %d..%d\n", s.MinSize, s.MaxSize)
		return nil
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	infos, err := db.ListGraphs(ctx)
	if err != nil {
		return err
	}
	if statsJSON {
		return printJSON(infos)
	}
	if len(infos) == 0 {
		fmt.Println("No graphs stored.")
		return nil
	}
	for _, gi := range infos {
		fmt.Printf("%-20s %6d vertices  saved %s  %s\n",
			gi.Exercise, gi.Vertices,
			time.UnixMilli(gi.SavedAt).UTC().Format(time.RFC3339), shortID(gi.Checksum))
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	names := args
	if len(names) == 0 {
		infos, err := db.ListGraphs(ctx)
		if err != nil {
			return err
		}
		for _, gi := range infos {
			names = append(names, gi.Exercise)
		}
	}

	failed := 0
	for _, name := range names {
		g, err := db.LoadGraph(ctx, name)
		if err == nil {
			err = g.Check()
		}
		if err != nil {
			failed++
			fmt.Printf("FAIL %s: %v\n", name, err)
			continue
		}
		fmt.Printf("ok   %s\n", name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d graphs failed", failed, len(names))
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.DeleteGraph(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	g, err := loadGraph(cmd.Context(), args[0], "")
	if err != nil {
		return err
	}
	if err := writePackFile(args[1], g); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d vertices)\n", args[1], g.Len())
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	for _, path := range args {
		g, err := readPackFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := db.SaveGraph(cmd.Context(), g); err != nil {
			return err
		}
		fmt.Printf("Imported %s from %s\n", g.Exercise, path)
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening pack: %w", err)
	}
	defer f.Close()
	header, _, err := store.ReadPackHeader(f)
	if err != nil {
		return err
	}
	return printJSON(header)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// shortID safely truncates an ID string to 12 characters.
func shortID(s string) string {
	if len(s) >= 12 {
		return s[:12]
	}
	return s
}
