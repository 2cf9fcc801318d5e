package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"anywhere-shell/pkg/client"
	"anywhere-shell/pkg/output"
)

var consolesCmd = &cobra.Command{
	Use:   "consoles",
	Short: "Console management commands",
	Long:  "List and create consoles through the consoles API",
}

var consolesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List consoles",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.GetFormatFromCmd(cmd)
		if err != nil {
			return err
		}

		browser, err := client.New(GetConfig())
		if err != nil {
			return err
		}
		consoles, err := browser.ListConsoles(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list consoles: %w", err)
		}

		formatter := output.New(format)
		if formatter.IsStructured() {
			return formatter.Output(consoles)
		}

		if len(consoles) == 0 {
			fmt.Println("No consoles found.")
			return nil
		}
		return writeConsoleTable(os.Stdout, browser, consoles)
	},
}

var consolesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a console",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.GetFormatFromCmd(cmd)
		if err != nil {
			return err
		}
		executable, _ := cmd.Flags().GetString("executable")

		browser, err := client.New(GetConfig())
		if err != nil {
			return err
		}
		created, err := browser.CreateConsole(cmd.Context(), executable)
		if err != nil {
			return fmt.Errorf("failed to create console: %w", err)
		}

		formatter := output.New(format)
		if formatter.IsStructured() {
			return formatter.Output(created)
		}

		fmt.Printf("Console %d created.\n", created.ID)
		fmt.Printf("Open it once in a browser to start it: %s\n", browser.URL(created.URL))
		return nil
	},
}

// writeConsoleTable renders consoles as an aligned table.
func writeConsoleTable(out io.Writer, urls interface{ URL(string) string }, consoles []client.Console) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEXECUTABLE\tURL")
	for _, c := range consoles {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, c.Name, c.Executable, urls.URL(c.URL))
	}
	return w.Flush()
}

func init() {
	output.AddFormatFlag(consolesListCmd)
	output.AddFormatFlag(consolesCreateCmd)
	consolesCreateCmd.Flags().String("executable", client.DefaultExecutable, "Executable the console runs")

	consolesCmd.AddCommand(consolesListCmd)
	consolesCmd.AddCommand(consolesCreateCmd)
	rootCmd.AddCommand(consolesCmd)
}
