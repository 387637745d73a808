package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"autopost-go/internal/app"
	"autopost-go/internal/config"
	"autopost-go/internal/vault"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "AgentCreate").
// withVault controls whether the vault master secret is collected; commands
// that never touch credentials pass false.
func newApp(operation string, withVault bool) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	secret := ""
	if withVault {
		secret, err = app.PromptSecret(cfg.Vault.MinSecretLength)
		if err != nil {
			return nil, err
		}
	}

	a, err := app.NewApp(cfg, operation, secret)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "autopost",
	Short: "Cross-post videos from chat groups to social platforms",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Agents Dir:   %s\n", cfg.AgentsDir)
		fmt.Printf("Download Dir: %s\n", cfg.DownloadDir)
		fmt.Printf("Vault:        %s\n", cfg.Vault.Type)
		fmt.Printf("History:      %s\n", cfg.History.Type)
		fmt.Printf("Archive:      %s\n", cfg.Archive.Type)
		return nil
	},
}

// vault command
var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage the credential vault",
}

var vaultInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Verify the vault master secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		secret, err := app.PromptSecret(cfg.Vault.MinSecretLength)
		if err != nil {
			return err
		}
		cipher, err := vault.NewCipherFromConfig(cfg.Vault, secret)
		if err != nil {
			return fmt.Errorf("creating vault cipher: %w", err)
		}

		// Round-trip a known value so key derivation is exercised end to end.
		token, err := cipher.Encrypt("vault-check")
		if err != nil {
			return fmt.Errorf("vault self-test encrypt: %w", err)
		}
		plain, err := cipher.Decrypt(token)
		if err != nil || plain != "vault-check" {
			return fmt.Errorf("vault self-test decrypt failed: %v", err)
		}

		fmt.Println("Vault secret verified.")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

// version is set at build time via -ldflags.
var version = "dev"

// agent command
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage agents",
}

var agentCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		chatAccount, _ := cmd.Flags().GetString("chat-account")
		groups, _ := cmd.Flags().GetStringSlice("group")
		hashtags, _ := cmd.Flags().GetStringSlice("hashtag")

		a, err := newApp("AgentCreate", false)
		if err != nil {
			return err
		}
		defer a.Close()

		record, err := a.CreateAgent(args[0], description, chatAccount, groups, hashtags)
		if err != nil {
			return fmt.Errorf("creating agent: %w", err)
		}

		fmt.Printf("Agent created: %s\n", record.Name())
		return nil
	},
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AgentList", false)
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.Registry().List()
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Println("No agents.")
			return nil
		}

		for _, r := range records {
			fmt.Printf("%-30s  %-8s  posts:%d  platforms:%s\n",
				r.Name(),
				r.Status(),
				r.TotalPosts(),
				strings.Join(r.Platforms(), ","),
			)
		}
		return nil
	},
}

var agentShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Show an agent as JSON (credentials stripped to usernames)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AgentShow", false)
		if err != nil {
			return err
		}
		defer a.Close()

		record, err := a.Registry().Get(args[0])
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("agent not found: %s", args[0])
		}

		doc := record.ToDocument(false)
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var agentSetCredentialsCmd = &cobra.Command{
	Use:   "set-credentials NAME PLATFORM USERNAME",
	Short: "Store platform credentials for an agent",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AgentSetCredentials", true)
		if err != nil {
			return err
		}
		defer a.Close()

		password := os.Getenv("AUTOPOST_PLATFORM_PASSWORD")
		if password == "" {
			return fmt.Errorf("set AUTOPOST_PLATFORM_PASSWORD with the platform password")
		}

		if err := a.SetCredentials(args[0], args[1], args[2], password); err != nil {
			return fmt.Errorf("setting credentials: %w", err)
		}

		fmt.Printf("Credentials stored for %s on %s\n", args[0], args[1])
		return nil
	},
}

var agentDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AgentDelete", false)
		if err != nil {
			return err
		}
		defer a.Close()

		deleted, err := a.Registry().Delete(args[0])
		if err != nil {
			return fmt.Errorf("deleting agent: %w", err)
		}

		if deleted {
			fmt.Printf("Agent deleted: %s\n", args[0])
		} else {
			fmt.Printf("No such agent: %s\n", args[0])
		}
		return nil
	},
}

var agentStatusCmd = &cobra.Command{
	Use:   "status NAME",
	Short: "View an agent's status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AgentStatus", false)
		if err != nil {
			return err
		}
		defer a.Close()

		record, err := a.Registry().Get(args[0])
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("agent not found: %s", args[0])
		}

		fmt.Printf("Name:        %s\n", record.Name())
		fmt.Printf("Status:      %s\n", record.Status())
		fmt.Printf("Total posts: %d\n", record.TotalPosts())
		if t := record.LastCheck(); t != nil {
			fmt.Printf("Last check:  %s\n", t.Format("2006-01-02 15:04:05"))
		}
		if t := record.LastPost(); t != nil {
			fmt.Printf("Last post:   %s\n", t.Format("2006-01-02 15:04:05"))
		}
		if errs := record.Errors(); len(errs) > 0 {
			fmt.Printf("Recent errors:\n")
			for _, e := range errs {
				fmt.Printf("  %s\n", e)
			}
		}
		return nil
	},
}

var agentHistoryCmd = &cobra.Command{
	Use:   "history NAME",
	Short: "View an agent's post history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("AgentHistory", false)
		if err != nil {
			return err
		}
		defer a.Close()

		posts, err := a.RecentHistory(args[0], limit)
		if err != nil {
			return err
		}

		if len(posts) == 0 {
			fmt.Println("No posts recorded.")
			return nil
		}

		for _, p := range posts {
			outcome := "ok"
			if !p.Success {
				outcome = "failed: " + p.Error
			}
			fmt.Printf("%s  %-10s  %s  %s\n",
				p.CreatedAt.Format("2006-01-02 15:04:05"),
				p.Platform,
				p.VideoURL,
				outcome,
			)
		}
		return nil
	},
}

var agentRunCmd = &cobra.Command{
	Use:   "run NAME",
	Short: "Run an agent in the foreground until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("AgentRun", true)
		if err != nil {
			return err
		}
		defer a.Close()

		orch, record, err := a.Orchestrator(args[0])
		if err != nil {
			return err
		}

		if !orch.Start() {
			return fmt.Errorf("agent %s failed to start: %s", record.Name(), strings.Join(record.Errors(), "; "))
		}
		pid := os.Getpid()
		record.SetPID(&pid)
		if err := a.Registry().Save(record); err != nil {
			a.Logger().Warn("failed to persist agent state", "agent", record.Name(), "error", err)
		}

		fmt.Printf("Agent %s running (pid %d). Ctrl-C to stop.\n", record.Name(), pid)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		sig := <-sigCh

		fmt.Printf("Received %s, stopping...\n", sig)
		orch.Stop()
		record.SetPID(nil)
		if err := a.Registry().Save(record); err != nil {
			a.Logger().Warn("failed to persist agent state", "agent", record.Name(), "error", err)
		}

		if sig == os.Interrupt {
			a.Close()
			os.Exit(130)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// agent subcommands
	agentCmd.AddCommand(agentCreateCmd)
	agentCreateCmd.Flags().String("description", "", "Agent description")
	agentCreateCmd.Flags().String("chat-account", "", "Chat account to monitor")
	agentCreateCmd.Flags().StringSlice("group", nil, "Group to monitor (repeatable)")
	agentCreateCmd.Flags().StringSlice("hashtag", nil, "Hashtag for captions (repeatable)")
	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentShowCmd)
	agentCmd.AddCommand(agentSetCredentialsCmd)
	agentCmd.AddCommand(agentDeleteCmd)
	agentCmd.AddCommand(agentStatusCmd)
	agentCmd.AddCommand(agentHistoryCmd)
	agentHistoryCmd.Flags().IntP("limit", "n", 50, "Maximum number of posts to show")
	agentCmd.AddCommand(agentRunCmd)

	// vault subcommands
	vaultCmd.AddCommand(vaultInitCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(vaultCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(versionCmd)
}
