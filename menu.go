package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/docker/go-units"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/immich-tools/discburn/packer"
)

var errInvalidSelection = fmt.Errorf("invalid selection")

// renderChunkTable lays out the packed discs for the selection menu and
// the plan command. archived may be nil when no catalog is in use.
func renderChunkTable(chunks []packer.Chunk, archived map[int]bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := table.Row{"DISC", "DATE RANGE", "SIZE", "ASSETS"}
	if archived != nil {
		header = append(header, "ARCHIVED")
	}
	tw.AppendHeader(header)

	for _, chunk := range chunks {
		row := table.Row{
			chunk.Number,
			fmt.Sprintf("%s to %s", chunk.Start, chunk.End),
			units.HumanSize(float64(chunk.Size)),
			len(chunk.Assets),
		}
		if archived != nil {
			if archived[chunk.Number] {
				row = append(row, "yes")
			} else {
				row = append(row, "")
			}
		}
		tw.AppendRow(row)
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	return tw.Render()
}

// selectChunks resolves the user's selection to the chunks to process. An
// empty selection string triggers the interactive menu; anything invalid
// aborts the run. A nil result with nil error means the user quit.
func selectChunks(selection string, chunks []packer.Chunk) ([]packer.Chunk, error) {
	if selection == "" {
		return promptSelection(chunks)
	}
	return parseSelection(selection, chunks)
}

func promptSelection(chunks []packer.Chunk) ([]packer.Chunk, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return nil, fmt.Errorf("stdin is not a terminal; use --select to choose discs non-interactively")
	}

	fmt.Println("\nAvailable discs for backup:")
	fmt.Println(renderChunkTable(chunks, nil))
	fmt.Println("\nOptions:")
	fmt.Println("  [number]  - Backup a specific disc")
	fmt.Println("  all       - Backup all discs")
	fmt.Println("  q         - Quit")
	fmt.Print("\nSelect an option: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("could not read selection: %w", err)
	}

	return parseSelection(line, chunks)
}

func parseSelection(choice string, chunks []packer.Chunk) ([]packer.Chunk, error) {
	switch choice = strings.ToLower(strings.TrimSpace(choice)); choice {
	case "q", "quit":
		return nil, nil
	case "all":
		return chunks, nil
	default:
		number, err := strconv.Atoi(choice)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", errInvalidSelection, choice)
		}
		if number < 1 || number > len(chunks) {
			return nil, fmt.Errorf("%w: disc %d does not exist", errInvalidSelection, number)
		}
		return chunks[number-1 : number], nil
	}
}
