package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yolodolo42/greeter/internal/wallet"
)

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage the accounts greeter can connect",
	Long:  `Create, import and list the encrypted keystore accounts used to sign greetings.`,
}

var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new account",
	Args:  cobra.NoArgs,
	RunE:  runWalletCreate,
}

var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an account from a private key",
	Args:  cobra.NoArgs,
	RunE:  runWalletImport,
}

var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keystore accounts",
	Args:  cobra.NoArgs,
	RunE:  runWalletList,
}

func init() {
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletCreateCmd)
	walletCmd.AddCommand(walletImportCmd)
	walletCmd.AddCommand(walletListCmd)

	walletImportCmd.Flags().String("key", "", "Private key to import (hex, with or without 0x prefix)")
}

func keystoreManager() (*wallet.KeystoreManager, error) {
	s, err := loadSettings(viper.GetViper())
	if err != nil {
		return nil, err
	}
	km, err := wallet.NewKeystoreManager(s.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keystore: %w", err)
	}
	return km, nil
}

// newPassword asks for a password twice.
func newPassword(prompt string) (string, error) {
	password, err := readPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) < 8 {
		return "", fmt.Errorf("password must be at least 8 characters")
	}

	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("failed to read password confirmation: %w", err)
	}
	if password != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return password, nil
}

func runWalletCreate(cmd *cobra.Command, _ []string) error {
	km, err := keystoreManager()
	if err != nil {
		return err
	}

	password, err := newPassword("Enter password for new account: ")
	if err != nil {
		return err
	}

	account, err := km.CreateAccount(password)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nAccount created successfully!")
	fmt.Fprintf(out, "Address:  %s\n", account.Address.Hex())
	fmt.Fprintf(out, "Keystore: %s\n", account.URL.Path)
	fmt.Fprintln(out, "\nIMPORTANT: Back up your keystore file and remember your password!")
	return nil
}

func runWalletImport(cmd *cobra.Command, _ []string) error {
	privateKey, _ := cmd.Flags().GetString("key")

	if privateKey == "" {
		fmt.Fprint(os.Stderr, "Enter private key (hex): ")
		line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		privateKey = strings.TrimSpace(line)
	}
	if privateKey == "" {
		return fmt.Errorf("private key is required")
	}

	km, err := keystoreManager()
	if err != nil {
		return err
	}

	password, err := newPassword("Enter password to encrypt the key: ")
	if err != nil {
		return err
	}

	account, err := km.ImportKey(privateKey, password)
	if err != nil {
		return fmt.Errorf("failed to import key: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "\nAccount imported successfully!")
	fmt.Fprintf(out, "Address:  %s\n", account.Address.Hex())
	fmt.Fprintf(out, "Keystore: %s\n", account.URL.Path)
	return nil
}

func runWalletList(cmd *cobra.Command, _ []string) error {
	km, err := keystoreManager()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	accounts := km.ListAccounts()
	if len(accounts) == 0 {
		fmt.Fprintln(out, "No accounts found.")
		fmt.Fprintln(out, "Use 'greeter wallet create' to create one.")
		return nil
	}

	fmt.Fprintf(out, "Found %d account(s):\n\n", len(accounts))
	for i, acc := range accounts {
		marker := ""
		if i == 0 {
			marker = "  (default)"
		}
		fmt.Fprintf(out, "%d. %s%s\n", i+1, acc.Address.Hex(), marker)
	}
	return nil
}
