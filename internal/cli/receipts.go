package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yolodolo42/greeter/internal/store"
)

var receiptsCmd = &cobra.Command{
	Use:   "receipts",
	Short: "List receipts of greetings sent from this machine",
	Args:  cobra.NoArgs,
	RunE:  runReceipts,
}

func init() {
	rootCmd.AddCommand(receiptsCmd)

	receiptsCmd.Flags().Int("limit", 20, "Maximum number of receipts to show")
}

func runReceipts(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := loadSettings(viper.GetViper())
	if err != nil {
		return err
	}

	client := s.newChainClient()
	defer client.Close()

	chainName, err := resolveChain(s, client, false)
	if err != nil {
		return err
	}
	if err := s.checkChain(client, chainName); err != nil {
		return err
	}

	receipts, err := store.OpenReceiptStore(s.DataDir)
	if err != nil {
		return err
	}
	defer receipts.Close()

	list, err := receipts.List(chainName, limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintf(out, "No receipts stored for %s.\n", chainName)
		return nil
	}

	writeReceiptTable(out, list)
	return nil
}

func writeReceiptTable(w io.Writer, list []*store.StoredReceipt) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "TX", "Block", "Status", "Greeting"})
	table.SetBorders(tablewriter.Border{
		Left:   false,
		Right:  false,
		Top:    true,
		Bottom: true,
	})
	table.SetAutoWrapText(false)
	for _, r := range list {
		status := "ok"
		if r.Status == 0 {
			status = "reverted"
		}
		table.Append([]string{
			r.CreatedAt.Local().Format(time.DateTime),
			r.TxHash,
			strconv.FormatUint(r.BlockNumber, 10),
			status,
			strconv.Quote(r.Greeting),
		})
	}
	table.Render()
}
