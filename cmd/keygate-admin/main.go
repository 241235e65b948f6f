// ABOUTME: Admin CLI for managing keygate developer accounts and applications
// ABOUTME: Talks to the management HTTP API with JWT authentication

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

const banner = `
  _                            _                        _           _
 | | _____ _   _  __ _  __ _| |_ ___        __ _  __| |_ __ ___ (_)_ __
 | |/ / _ \ | | |/ _' |/ _' | __/ _ \_____ / _' |/ _' | '_ ' _ \| | '_ \
 |   <  __/ |_| | (_| | (_| | ||  __/_____| (_| | (_| | | | | | | | | | |
 |_|\_\___|\__, |\__, |\__,_|\__\___|      \__,_|\__,_|_| |_| |_|_|_| |_|
           |___/ |___/
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	baseURL := os.Getenv("KEYGATE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	ac := &adminClient{
		baseURL:    baseURL,
		token:      getToken(),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "register":
		err = cmdRegister(ac, args)
	case "login":
		err = cmdLogin(ac, args)
	case "apps":
		err = cmdApps(ac, args)
	case "status":
		err = cmdStatus(ac)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: keygate-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  register --email EMAIL        Create a developer account")
	fmt.Println("  login --email EMAIL           Log in and cache a management token")
	fmt.Println("  apps                          List your applications")
	fmt.Println("  apps list                     List your applications")
	fmt.Println("  apps create --name NAME       Create an application (shows keys once)")
	fmt.Println("  apps delete <id>              Delete an application")
	fmt.Println("  apps rotate-secret <id>       Issue a new secret key (shows it once)")
	fmt.Println("  apps users <id>               List an application's users")
	fmt.Println("  status                        Check server reachability")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  KEYGATE_URL     Server base URL (default: http://localhost:8080)")
	fmt.Println("  KEYGATE_TOKEN   Management token (overrides the cached one)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  keygate-admin login --email you@example.com")
	fmt.Println("  keygate-admin apps create --name 'My App' --domain app.example.com")
	fmt.Println()
}

// tokenPath is where login caches the management token.
func tokenPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "token"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "keygate", "token")
}

// getToken resolves the management token: env var first, then the cache file.
func getToken() string {
	if token := os.Getenv("KEYGATE_TOKEN"); token != "" {
		return token
	}
	raw, err := os.ReadFile(tokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func saveToken(token string) error {
	path := tokenPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// adminClient is a minimal HTTP client for the management endpoints.
type adminClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// call performs a JSON request and decodes the envelope's data into out.
func (c *adminClient) call(ctx context.Context, method, path string, reqBody any, out any) error {
	var reader io.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("unexpected response (status %d)", resp.StatusCode)
	}
	if !env.Success {
		if env.Error != "" {
			return fmt.Errorf("%s", env.Error)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func (c *adminClient) requireToken() error {
	if c.token == "" {
		return fmt.Errorf("not logged in: run 'keygate-admin login' or set KEYGATE_TOKEN")
	}
	return nil
}

// application mirrors the management API's application payload.
type application struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Domain    string `json:"domain"`
	PublicKey string `json:"publicKey"`
	SecretKey string `json:"secretKey"`
	CreatedAt string `json:"createdAt"`
}

type appUser struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}

// parseFlags extracts "--flag value" and "--flag=value" pairs; remaining
// positional args are returned in order.
func parseFlags(args []string, known ...string) (map[string]string, []string, error) {
	flags := make(map[string]string)
	var positional []string

	isKnown := func(name string) bool {
		for _, k := range known {
			if k == name {
				return true
			}
		}
		return false
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case strings.HasPrefix(arg, "--"):
			name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
			if !isKnown(name) {
				return nil, nil, fmt.Errorf("unknown flag: --%s", name)
			}
			if !hasValue {
				if i+1 >= len(args) {
					return nil, nil, fmt.Errorf("--%s requires a value", name)
				}
				value = args[i+1]
				i++
			}
			flags[name] = value
		case strings.HasPrefix(arg, "-"):
			return nil, nil, fmt.Errorf("unknown flag: %s", arg)
		default:
			positional = append(positional, arg)
		}
	}
	return flags, positional, nil
}

// promptPassword reads a password without echoing when stdin is a TTY.
func promptPassword(label string) (string, error) {
	fmt.Printf("%s: ", label)
	if term.IsTerminal(int(syscall.Stdin)) {
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(raw), nil
	}

	var input string
	if _, err := fmt.Scanln(&input); err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return input, nil
}

func cmdRegister(c *adminClient, args []string) error {
	flags, _, err := parseFlags(args, "email", "password", "first-name", "last-name")
	if err != nil {
		return err
	}
	email := flags["email"]
	if email == "" {
		return fmt.Errorf("--email flag is required")
	}
	password := flags["password"]
	if password == "" {
		if password, err = promptPassword("Password"); err != nil {
			return err
		}
	}

	var data struct {
		Token string `json:"token"`
	}
	body := map[string]string{
		"email":     email,
		"password":  password,
		"firstName": flags["first-name"],
		"lastName":  flags["last-name"],
	}
	if err := c.call(context.Background(), http.MethodPost, "/api/auth/register", body, &data); err != nil {
		return err
	}

	if err := saveToken(data.Token); err != nil {
		return err
	}

	color.Green("✓ Account created for %s\n", email)
	fmt.Printf("Token cached at %s\n", tokenPath())
	return nil
}

func cmdLogin(c *adminClient, args []string) error {
	flags, _, err := parseFlags(args, "email", "password")
	if err != nil {
		return err
	}
	email := flags["email"]
	if email == "" {
		return fmt.Errorf("--email flag is required")
	}
	password := flags["password"]
	if password == "" {
		if password, err = promptPassword("Password"); err != nil {
			return err
		}
	}

	var data struct {
		Token string `json:"token"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.call(context.Background(), http.MethodPost, "/api/auth/login", body, &data); err != nil {
		return err
	}

	if err := saveToken(data.Token); err != nil {
		return err
	}

	color.Green("✓ Logged in as %s\n", email)
	fmt.Printf("Token cached at %s\n", tokenPath())
	return nil
}

func cmdApps(c *adminClient, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
		args = args[1:]
	}

	switch sub {
	case "list":
		return cmdAppsList(c)
	case "create":
		return cmdAppsCreate(c, args)
	case "delete":
		return cmdAppsDelete(c, args)
	case "rotate-secret":
		return cmdAppsRotateSecret(c, args)
	case "users":
		return cmdAppsUsers(c, args)
	default:
		return fmt.Errorf("unknown apps subcommand: %s", sub)
	}
}

func cmdAppsList(c *adminClient) error {
	if err := c.requireToken(); err != nil {
		return err
	}

	var data struct {
		Applications []application `json:"applications"`
		Count        int           `json:"count"`
	}
	if err := c.call(context.Background(), http.MethodGet, "/api/applications", nil, &data); err != nil {
		return err
	}

	if data.Count == 0 {
		fmt.Println("No applications. Create one with: keygate-admin apps create --name 'My App'")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDOMAIN\tPUBLIC KEY\tCREATED")
	for _, app := range data.Applications {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", app.ID, app.Name, app.Domain, app.PublicKey, app.CreatedAt)
	}
	return w.Flush()
}

func cmdAppsCreate(c *adminClient, args []string) error {
	if err := c.requireToken(); err != nil {
		return err
	}

	flags, _, err := parseFlags(args, "name", "domain")
	if err != nil {
		return err
	}
	if flags["name"] == "" {
		return fmt.Errorf("--name flag is required")
	}

	var app application
	body := map[string]string{"name": flags["name"], "domain": flags["domain"]}
	if err := c.call(context.Background(), http.MethodPost, "/api/applications", body, &app); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	green.Printf("✓ Created application: %s\n", app.Name)
	fmt.Println()
	cyan.Println("  Credentials")
	cyan.Println("  -----------")
	fmt.Printf("  ID:         %s\n", app.ID)
	fmt.Printf("  Public key: %s\n", app.PublicKey)
	fmt.Printf("  Secret key: %s\n", app.SecretKey)
	fmt.Println()
	yellow.Println("  The secret key is shown only this once. Store it in your")
	yellow.Println("  backend's secret manager; it cannot be retrieved again.")
	fmt.Println()
	return nil
}

func cmdAppsDelete(c *adminClient, args []string) error {
	if err := c.requireToken(); err != nil {
		return err
	}

	_, positional, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("usage: keygate-admin apps delete <id>")
	}

	if err := c.call(context.Background(), http.MethodDelete, "/api/applications/"+positional[0], nil, nil); err != nil {
		return err
	}
	color.Green("✓ Deleted application %s\n", positional[0])
	return nil
}

func cmdAppsRotateSecret(c *adminClient, args []string) error {
	if err := c.requireToken(); err != nil {
		return err
	}

	_, positional, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("usage: keygate-admin apps rotate-secret <id>")
	}

	var app application
	if err := c.call(context.Background(), http.MethodPost,
		"/api/applications/"+positional[0]+"/rotate-secret", nil, &app); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	green.Printf("✓ Rotated secret for %s\n", app.Name)
	fmt.Printf("  New secret key: %s\n", app.SecretKey)
	fmt.Println()
	yellow.Println("  The old key stopped verifying immediately. Update your")
	yellow.Println("  backend before its next signed request.")
	fmt.Println()
	return nil
}

func cmdAppsUsers(c *adminClient, args []string) error {
	if err := c.requireToken(); err != nil {
		return err
	}

	_, positional, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("usage: keygate-admin apps users <id>")
	}

	var data struct {
		Users []appUser `json:"users"`
		Count int       `json:"count"`
	}
	if err := c.call(context.Background(), http.MethodGet,
		"/api/applications/"+positional[0]+"/users", nil, &data); err != nil {
		return err
	}

	if data.Count == 0 {
		fmt.Println("No users yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tCREATED")
	for _, u := range data.Users {
		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Email, name, u.CreatedAt)
	}
	return w.Flush()
}

func cmdStatus(c *adminClient) error {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()

	var data struct {
		Status string `json:"status"`
	}
	if err := c.call(context.Background(), http.MethodGet, "/health", nil, &data); err != nil {
		yellow.Printf("  Server:  ")
		color.Red("UNREACHABLE (%v)\n", err)
		return nil
	}

	green.Printf("  Server:  ")
	fmt.Printf("%s (%s)\n", data.Status, c.baseURL)

	if c.token == "" {
		yellow.Println("  Token:   none (run 'keygate-admin login')")
	} else {
		green.Printf("  Token:   ")
		fmt.Println("cached")
	}
	fmt.Println()
	return nil
}
