// Command microscheme runs the micro-eval interpreter. Any file
// arguments are loaded in order, then it drops into an interactive
// REPL reading from standard input.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	microscheme "github.com/clarete/microscheme"
)

func main() {
	root := &cobra.Command{
		Use:   "microscheme [file...]",
		Short: "A small register-machine Scheme interpreter",
		Args:  cobra.ArbitraryArgs,
		RunE:  run,
	}

	root.Flags().Int("cons-words", 16382, "words budgeted to the cons arena")
	root.Flags().Int("storage-words", 16382, "words budgeted to the storage arena")
	root.Flags().Bool("no-syntax-check", false, "disable special-form syntax checking")

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(cmd *cobra.Command, args []string) error {
	consWords, _ := cmd.Flags().GetInt("cons-words")
	storageWords, _ := cmd.Flags().GetInt("storage-words")
	noSyntaxCheck, _ := cmd.Flags().GetBool("no-syntax-check")

	cfg := microscheme.NewConfig()
	cfg.SetInt("heap.cons_words", consWords)
	cfg.SetInt("heap.storage_words", storageWords)
	if noSyntaxCheck {
		cfg.SetBool("eval.syntaxcheck", false)
	}

	in := microscheme.NewInterpreter(cfg)

	for _, path := range args {
		if err := in.LoadFile(path); err != nil {
			log.Println(err)
		}
	}

	if err := in.REPL(os.Stdin, os.Stdout); err != nil {
		log.Fatalf("Can't start REPL: %s", err.Error())
	}
	return nil
}
