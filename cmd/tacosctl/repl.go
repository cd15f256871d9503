package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/tacossynth/tacos/internal/search"
)

// explore drops into a small readline-driven REPL over the finished
// search DAG, for poking at why a node got its label.
func explore(res *search.Result) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: "tacos> ",
	})
	if err != nil {
		return fmt.Errorf("create readline config: %w", err)
	}
	defer rl.Close()

	cur := res.Root
	printNode(cur)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt || err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		fields := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "quit", "exit":
			return nil
		case "help":
			fmt.Println("commands: goto ID, root, children, parents, word, label, quit")
		case "root":
			cur = res.Root
			printNode(cur)
		case "goto":
			if len(fields) != 2 {
				fmt.Println("usage: goto ID")
				continue
			}
			id, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				fmt.Printf("bad node ID %q\n", fields[1])
				continue
			}
			n := res.Context.Node(search.NodeID(id))
			if n == nil {
				fmt.Printf("no node %d\n", id)
				continue
			}
			cur = n
			printNode(cur)
		case "children":
			for _, a := range cur.Actions() {
				combined := res.Context.CombinedLabel(cur, a)
				for _, id := range cur.ChildrenFor(a) {
					child := res.Context.Node(id)
					fmt.Printf("  (%d, %s) -> #%d %s (combined %s)\n",
						a.Increment, a.Symbol, child.ID(), child.Label(), combined)
				}
			}
		case "parents":
			for _, id := range cur.Parents() {
				p := res.Context.Node(id)
				fmt.Printf("  #%d %s\n", p.ID(), p.Label())
			}
		case "word":
			for _, w := range cur.Words() {
				fmt.Printf("  %s\n", w)
			}
		case "label":
			fmt.Printf("  %s (state %s)\n", cur.Label(), cur.State())
		default:
			fmt.Printf("unknown command %q; try help\n", fields[0])
		}
	}
}

func printNode(n *search.Node) {
	fmt.Printf("node #%d: state %s, label %s, %d words, %d actions\n",
		n.ID(), n.State(), n.Label(), len(n.Words()), len(n.Actions()))
}
