package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pinrunner/pkg/auth"
	"pinrunner/pkg/ui"
)

var logoutAll bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored account credentials",
	Long: `Manage the email and password used when the saved cookies no longer
authenticate.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

Never share your credentials or config files!`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Store account credentials securely",
	Example: `  # Interactive
  pinrunner auth login

  # With the email given
  pinrunner auth login me@example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout [email]",
	Short: "Remove stored credentials",
	Example: `  pinrunner auth logout me@example.com
  pinrunner auth logout --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which account would be used",
	RunE:  runAuthStatus,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	RunE:  runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authStatusCmd, authListCmd)
	authLogoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every stored account")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	out := ui.Stdout()
	reader := bufio.NewReader(os.Stdin)

	var email string
	if len(args) > 0 {
		email = strings.TrimSpace(args[0])
	} else {
		fmt.Print("Email: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(input)
	}
	if email == "" {
		return errors.New("email is required")
	}

	if existing, _ := manager.Retrieve(email); existing != nil {
		fmt.Printf("Account '%s' already exists. Update credentials? (y/N): ", email)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("Password: ")
	password, err := readPassword(reader)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	if err := manager.Store(&auth.Account{Email: email, Password: password}); err != nil {
		return err
	}
	out.Success("Credentials stored for " + email)
	fmt.Println("\nRun 'pinrunner login' to sign in and save the session cookies.")
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	out := ui.Stdout()

	if logoutAll {
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("failed to remove all accounts: %w", err)
		}
		out.Success("All accounts removed")
		return nil
	}

	email := account
	if len(args) > 0 {
		email = args[0]
	}
	if email == "" {
		accounts, err := manager.List()
		if err != nil {
			return err
		}
		if len(accounts) != 1 {
			return errors.New("specify which account to remove, or use --all")
		}
		email = accounts[0].Email
	}

	if err := manager.Delete(email); err != nil {
		return err
	}
	out.Success("Account removed: " + email)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	out := ui.Stdout()

	var acc *auth.Account
	if account != "" {
		acc, err = manager.Retrieve(account)
	} else {
		acc, err = manager.RetrieveDefault()
	}
	if errors.Is(err, auth.ErrCredentialsNotFound) {
		out.Warning("No stored credentials; only saved cookies can authenticate")
		return nil
	}
	if err != nil {
		return err
	}

	sanitized := auth.SanitizeAccount(acc)
	out.Info("Account", sanitized.Email)
	out.Info("Password", sanitized.Password)
	out.Info("Last modified", sanitized.LastModified.Format("2006-01-02 15:04:05"))
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	out := ui.Stdout()

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		out.Info("No stored accounts", "use 'pinrunner auth login' to add one")
		return nil
	}

	for i, acc := range accounts {
		sanitized := auth.SanitizeAccount(acc)
		fmt.Printf("%d. %s (modified %s)\n", i+1, sanitized.Email, sanitized.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

// readPassword reads without echo when stdin is a terminal
func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
