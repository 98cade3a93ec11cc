// dochelperctl runs document inspection and correction against local files,
// without the service.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dochelper/internal/docx"
	"dochelper/internal/edit"
	"dochelper/internal/storage"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

func main() {
	root := &cobra.Command{
		Use:           "dochelperctl",
		Short:         "Inspect and correct DOCX documents from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(inspectCmd(), findCmd(), replaceCmd(), applyCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("error:"), err)
		os.Exit(1)
	}
}

func inspectCmd() *cobra.Command {
	var showText bool
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the container and run census of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			doc, err := docx.Open(args[0])
			if err != nil {
				return err
			}
			byKind := map[docx.Kind]int{}
			runs := 0
			for _, c := range doc.Containers() {
				byKind[c.Kind()]++
				runs += len(c.Runs())
			}
			fmt.Printf("%s %d containers, %d runs\n", green("ok:"), len(doc.Containers()), runs)
			for kind := docx.KindBody; kind <= docx.KindEvenPageFooter; kind++ {
				if n := byKind[kind]; n > 0 {
					fmt.Printf("  %-18s %d\n", kind.String(), n)
				}
			}
			if showText {
				fmt.Println(faint("---"))
				fmt.Println(doc.FullText())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showText, "text", false, "print the extracted text")
	return cmd
}

func findCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find <file> <text>",
		Short: "List every occurrence of a text with its sentence",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			doc, err := docx.Open(args[0])
			if err != nil {
				return err
			}
			occs := edit.Locate(doc, args[1])
			if len(occs) == 0 {
				fmt.Println(yellow("not found"))
				return nil
			}
			for _, occ := range occs {
				fmt.Printf("%s %s %s\n",
					green(fmt.Sprintf("#%d", occ.Index)),
					faint(fmt.Sprintf("[container %d]", occ.ContainerIndex)),
					occ.Sentence)
			}
			fmt.Printf("%d occurrence(s)\n", len(occs))
			return nil
		},
	}
}

func replaceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replace <file> <search> <replace>",
		Short: "Replace text across the document, writing a revised copy",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			path, search, replace := args[0], args[1], args[2]
			if search == "" || search == replace {
				fmt.Println(yellow("nothing to replace, nothing written"))
				return nil
			}
			doc, err := docx.Open(path)
			if err != nil {
				return err
			}
			count := 0
			for _, c := range doc.Containers() {
				count += edit.Substitute(c, search, replace)
			}
			if count == 0 {
				fmt.Println(yellow("not found, nothing written"))
				return nil
			}
			out := storage.RevisedPath(path)
			if err := doc.SaveTo(out); err != nil {
				return err
			}
			fmt.Printf("%s %d replacement(s) -> %s\n", green("ok:"), count, out)
			return nil
		},
	}
}

func applyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <file> <fixes.json>",
		Short: "Apply a JSON list of {search, replace} fixes",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var fixes []edit.Fix
			if err := json.Unmarshal(data, &fixes); err != nil {
				return fmt.Errorf("parse %s: %w", args[1], err)
			}
			doc, err := docx.Open(args[0])
			if err != nil {
				return err
			}
			res := edit.ApplyAll(doc, fixes)
			for _, fix := range res.Applied {
				fmt.Printf("%s %q -> %q\n", green("applied:"), fix.Search, fix.Replace)
			}
			for _, fix := range res.Skipped {
				fmt.Printf("%s %q -> %q\n", yellow("skipped:"), fix.Search, fix.Replace)
			}
			if res.AppliedCount == 0 {
				fmt.Println(yellow("no fixes applied, nothing written"))
				return nil
			}
			out := storage.RevisedPath(args[0])
			if err := doc.SaveTo(out); err != nil {
				return err
			}
			fmt.Printf("%s %d applied, %d skipped -> %s\n", green("ok:"), res.AppliedCount, res.SkippedCount, out)
			return nil
		},
	}
}
