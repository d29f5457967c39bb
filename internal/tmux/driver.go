package tmux

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// SessionPrefix namespaces every mux session this service owns. Reconciliation
// only ever touches sessions carrying it.
const SessionPrefix = "summitflow-"

var sessionNameRe = regexp.MustCompile(`^[A-Za-z0-9_\-:]+$`)

// secretEnvVars are unset at session scope on create so child shells cannot
// inherit them from the daemon's environment.
var secretEnvVars = []string{
	"DATABASE_URL",
	"CF_ACCESS_CLIENT_ID",
	"CF_ACCESS_CLIENT_SECRET",
	"ANTHROPIC_API_KEY",
	"OPENAI_API_KEY",
	"GOOGLE_API_KEY",
	"GEMINI_API_KEY",
	"SECRET_KEY",
	"JWT_SECRET",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"GITHUB_TOKEN",
	"GITLAB_TOKEN",
	"SLACK_TOKEN",
	"DISCORD_TOKEN",
}

var ErrSessionNotFound = errors.New("tmux session not found")

// ValidName gates every externally supplied session name before it reaches a
// command line.
func ValidName(name string) bool {
	return name != "" && len(name) < 256 && sessionNameRe.MatchString(name)
}

type Options struct {
	Socket      string
	DefaultCols int
	DefaultRows int
	AuxCommand  string
}

// Driver is the adapter over the tmux CLI. All subprocess composition,
// timeout handling, and session-option policy lives here.
type Driver struct {
	exec        Exec
	socket      string
	defaultCols int
	defaultRows int
	auxCommand  string
}

func NewDriver(e Exec, opts Options) *Driver {
	cols := opts.DefaultCols
	if cols <= 0 {
		cols = 120
	}
	rows := opts.DefaultRows
	if rows <= 0 {
		rows = 30
	}
	aux := strings.TrimSpace(opts.AuxCommand)
	if aux == "" {
		aux = "claude"
	}
	return &Driver{
		exec:        e,
		socket:      strings.TrimSpace(opts.Socket),
		defaultCols: cols,
		defaultRows: rows,
		auxCommand:  aux,
	}
}

func (d *Driver) SocketName() string {
	if d == nil {
		return ""
	}
	return d.socket
}

func (d *Driver) DefaultSize() (cols, rows int) {
	return d.defaultCols, d.defaultRows
}

func (d *Driver) AuxCommand() string {
	return d.auxCommand
}

// SessionName maps a store id to its mux session name.
func (d *Driver) SessionName(id string) string {
	return SessionPrefix + id
}

// StripPrefix returns the store id for a prefixed mux session name, or
// ("", false) when the name is not service-owned.
func StripPrefix(name string) (string, bool) {
	if !strings.HasPrefix(name, SessionPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(name, SessionPrefix)
	if id == "" {
		return "", false
	}
	return id, true
}

// Exists reports whether a mux session with exactly this name exists. The
// "=" sigil disables tmux's prefix matching.
func (d *Driver) Exists(name string) (bool, error) {
	if !ValidName(name) {
		return false, fmt.Errorf("invalid session name %q", name)
	}
	err := d.exec.Run("tmux", d.withSocket("has-session", "-t", "="+name)...)
	if err != nil {
		if isMissingSession(err) || isNoServer(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *Driver) ExistsByID(id string) (bool, error) {
	return d.Exists(d.SessionName(id))
}

// Create makes the base session for id, or re-applies session options when it
// already exists. workingDir falls back to the user home.
func (d *Driver) Create(id, workingDir string) error {
	name := d.SessionName(id)
	if !ValidName(name) {
		return fmt.Errorf("invalid session name %q", name)
	}

	exists, err := d.Exists(name)
	if err != nil {
		return fmt.Errorf("check session %s: %w", name, err)
	}
	if exists {
		d.applySessionOptions(name)
		return nil
	}

	dir := strings.TrimSpace(workingDir)
	if dir == "" {
		if home, herr := os.UserHomeDir(); herr == nil {
			dir = home
		}
	}
	args := []string{
		"new-session", "-d",
		"-s", name,
		"-x", strconv.Itoa(d.defaultCols),
		"-y", strconv.Itoa(d.defaultRows),
	}
	if dir != "" {
		args = append(args, "-c", dir)
	}
	if err := d.exec.Run("tmux", d.withSocket(args...)...); err != nil {
		return fmt.Errorf("create session %s: %w", name, err)
	}
	d.applySessionOptions(name)
	return nil
}

// applySessionOptions disables mouse capture and the status bar and unsets
// the secret env deny-list at session scope. Option failures are tolerated;
// the session is usable without them.
func (d *Driver) applySessionOptions(name string) {
	_ = d.exec.Run("tmux", d.withSocket("set-option", "-t", name, "mouse", "off")...)
	_ = d.exec.Run("tmux", d.withSocket("set-option", "-t", name, "status", "off")...)
	for _, envVar := range secretEnvVars {
		_ = d.exec.Run("tmux", d.withSocket("set-environment", "-t", name, "-u", envVar)...)
	}
}

// Kill kills the base session for id. Returns true iff a session was killed;
// a missing session is not an error when ignoreMissing is set.
func (d *Driver) Kill(id string, ignoreMissing bool) (bool, error) {
	name := d.SessionName(id)
	if !ValidName(name) {
		return false, fmt.Errorf("invalid session name %q", name)
	}
	err := d.exec.Run("tmux", d.withSocket("kill-session", "-t", "="+name)...)
	if err != nil {
		if isMissingSession(err) || isNoServer(err) {
			if ignoreMissing {
				return false, nil
			}
			return false, ErrSessionNotFound
		}
		if !ignoreMissing {
			return false, fmt.Errorf("kill session %s: %w", name, err)
		}
		return false, nil
	}
	return true, nil
}

// ListPrefixed returns the ids of all service-owned mux sessions.
func (d *Driver) ListPrefixed() ([]string, error) {
	out, err := d.exec.Output("tmux", d.withSocket("list-sessions", "-F", "#{session_name}")...)
	if err != nil {
		if isNoServer(err) {
			return []string{}, nil
		}
		return nil, err
	}
	ids := make([]string, 0)
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if id, ok := StripPrefix(strings.TrimSpace(line)); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// CaptureScrollback captures the full pane history including escape
// sequences, with wrapped lines joined.
func (d *Driver) CaptureScrollback(name string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("invalid session name %q", name)
	}
	out, err := d.exec.Output("tmux", d.withSocket("capture-pane", "-t", name, "-S", "-", "-e", "-J", "-p")...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (d *Driver) ResizeWindow(name string, cols, rows int) error {
	if !ValidName(name) {
		return fmt.Errorf("invalid session name %q", name)
	}
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("invalid window size %dx%d", cols, rows)
	}
	return d.exec.Run("tmux", d.withSocket("resize-window", "-t", name, "-x", strconv.Itoa(cols), "-y", strconv.Itoa(rows))...)
}

// IsAuxiliaryRunning reports whether any pane in the session is currently
// running the auxiliary command. The process check is authoritative; pane
// content is never inspected.
func (d *Driver) IsAuxiliaryRunning(name string) (bool, error) {
	if !ValidName(name) {
		return false, fmt.Errorf("invalid session name %q", name)
	}
	out, err := d.exec.Output("tmux", d.withSocket("list-panes", "-t", name, "-F", "#{pane_current_command}")...)
	if err != nil {
		if isMissingSession(err) || isNoServer(err) {
			return false, nil
		}
		return false, err
	}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if strings.TrimSpace(line) == d.auxCommand {
			return true, nil
		}
	}
	return false, nil
}

// ClientSession returns the session the first attached client is viewing, or
// "" when no client is attached.
func (d *Driver) ClientSession(name string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("invalid session name %q", name)
	}
	out, err := d.exec.Output("tmux", d.withSocket("list-clients", "-t", name, "-F", "#{client_session}")...)
	if err != nil {
		if isMissingSession(err) || isNoServer(err) {
			return "", nil
		}
		return "", err
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return "", nil
	}
	return strings.TrimSpace(lines[0]), nil
}

// SendKeys types text into the session, optionally followed by Enter.
func (d *Driver) SendKeys(name, text string, enter bool) error {
	if !ValidName(name) {
		return fmt.Errorf("invalid session name %q", name)
	}
	args := []string{"send-keys", "-t", name, text}
	if enter {
		args = append(args, "Enter")
	}
	return d.exec.Run("tmux", d.withSocket(args...)...)
}

// RegisterSwitchHook installs a global client-session-changed hook that
// reports switches to hookURL in the background. tmux expands the client
// formats when the hook fires.
func (d *Driver) RegisterSwitchHook(hookURL string) error {
	cmd := fmt.Sprintf(
		`run-shell -b "curl -s '%s?from=#{client_last_session}&to=#{client_session}' >/dev/null 2>&1 || true"`,
		hookURL,
	)
	return d.exec.Run("tmux", d.withSocket("set-hook", "-g", "client-session-changed", cmd)...)
}

func (d *Driver) UnregisterSwitchHook() error {
	return d.exec.Run("tmux", d.withSocket("set-hook", "-gu", "client-session-changed")...)
}

// AttachCommand builds the argv for a PTY child attaching to the base
// session. With a live target session the child runs a shell that attaches
// and immediately switches the client; names are quote-wrapped because that
// path goes through bash.
func (d *Driver) AttachCommand(baseName, targetName string) (string, []string) {
	sockArgs := ""
	if d.socket != "" {
		sockArgs = "-L " + shellSingleQuote(d.socket) + " "
	}
	if targetName != "" {
		script := fmt.Sprintf(
			"exec tmux %sattach-session -t %s \\; switch-client -t %s",
			sockArgs, shellSingleQuote(baseName), shellSingleQuote(targetName),
		)
		return "bash", []string{"-c", script}
	}
	args := make([]string, 0, 5)
	if d.socket != "" {
		args = append(args, "-L", d.socket)
	}
	args = append(args, "attach-session", "-t", baseName)
	return "tmux", args
}

func (d *Driver) withSocket(args ...string) []string {
	if d.socket == "" {
		return args
	}
	return append([]string{"-L", d.socket}, args...)
}

func shellSingleQuote(input string) string {
	if input == "" {
		return "''"
	}
	return "'" + strings.ReplaceAll(input, "'", `'"'"'`) + "'"
}

func isMissingSession(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "session not found") || strings.Contains(msg, "can't find session")
}

func isNoServer(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "no server running")
}
