package cli

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yolodolo42/greeter/internal/chain"
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List chain profiles",
	Args:  cobra.NoArgs,
	RunE:  runChains,
}

func init() {
	rootCmd.AddCommand(chainsCmd)
}

func runChains(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(viper.GetViper())
	if err != nil {
		return err
	}

	client := s.newChainClient()
	defer client.Close()

	return writeChainTable(cmd.OutOrStdout(), client)
}

func writeChainTable(w io.Writer, client *chain.Client) error {
	rows := make([][]string, 0, len(client.ListChains()))
	for _, name := range client.ListChains() {
		cfg, err := client.GetChainConfig(name)
		if err != nil {
			return err
		}

		network := "mainnet"
		if cfg.IsTestnet {
			network = "testnet"
		}
		rpc := ""
		if len(cfg.RPCURLs) > 0 {
			rpc = cfg.RPCURLs[0]
		}
		rows = append(rows, []string{name, strconv.FormatInt(cfg.ChainIDInt, 10), cfg.NativeCurrency, network, rpc})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Chain ID", "Currency", "Network", "RPC"})
	table.SetBorders(tablewriter.Border{
		Left:   false,
		Right:  false,
		Top:    true,
		Bottom: true,
	})
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
	return nil
}
