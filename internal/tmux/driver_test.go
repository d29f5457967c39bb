package tmux

import (
	"errors"
	"strings"
	"testing"
)

type fakeExec struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func newFakeExec() *fakeExec {
	return &fakeExec{outputs: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeExec) record(name string, args ...string) string {
	call := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, call)
	return call
}

func (f *fakeExec) Output(name string, args ...string) ([]byte, error) {
	call := f.record(name, args...)
	if err, ok := f.errs[call]; ok {
		return nil, err
	}
	return []byte(f.outputs[call]), nil
}

func (f *fakeExec) Run(name string, args ...string) error {
	call := f.record(name, args...)
	return f.errs[call]
}

func (f *fakeExec) hasCall(t *testing.T, want string) {
	t.Helper()
	for _, call := range f.calls {
		if call == want {
			return
		}
	}
	t.Fatalf("expected call %q, got %v", want, f.calls)
}

func (f *fakeExec) hasCallPrefix(t *testing.T, prefix string) string {
	t.Helper()
	for _, call := range f.calls {
		if strings.HasPrefix(call, prefix) {
			return call
		}
	}
	t.Fatalf("expected call with prefix %q, got %v", prefix, f.calls)
	return ""
}

func newTestDriver(f *fakeExec) *Driver {
	return NewDriver(f, Options{DefaultCols: 120, DefaultRows: 30, AuxCommand: "claude"})
}

func TestSessionName_AddsServicePrefix(t *testing.T) {
	d := newTestDriver(newFakeExec())
	if got := d.SessionName("abc123"); got != "summitflow-abc123" {
		t.Fatalf("unexpected session name %q", got)
	}
}

func TestStripPrefix(t *testing.T) {
	if id, ok := StripPrefix("summitflow-xyz"); !ok || id != "xyz" {
		t.Fatalf("expected (xyz, true), got (%q, %v)", id, ok)
	}
	if _, ok := StripPrefix("other-session"); ok {
		t.Fatal("foreign session name should not strip")
	}
	if _, ok := StripPrefix("summitflow-"); ok {
		t.Fatal("bare prefix should not strip")
	}
}

func TestValidName(t *testing.T) {
	valid := []string{"summitflow-abc", "a", "A-b_c:0"}
	for _, name := range valid {
		if !ValidName(name) {
			t.Fatalf("expected %q to be valid", name)
		}
	}
	invalid := []string{"", "has space", "semi;colon", "dollar$", "dot.name", strings.Repeat("a", 256)}
	for _, name := range invalid {
		if ValidName(name) {
			t.Fatalf("expected %q to be invalid", name)
		}
	}
}

func TestExists_UsesExactMatchTarget(t *testing.T) {
	fake := newFakeExec()
	d := newTestDriver(fake)

	ok, err := d.Exists("summitflow-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected session to exist")
	}
	fake.hasCall(t, "tmux has-session -t =summitflow-abc")
}

func TestExists_MissingSessionIsNotError(t *testing.T) {
	fake := newFakeExec()
	fake.errs["tmux has-session -t =summitflow-abc"] = errors.New("can't find session: summitflow-abc")
	d := newTestDriver(fake)

	ok, err := d.Exists("summitflow-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected session to be missing")
	}
}

func TestExists_NoServerIsNotError(t *testing.T) {
	fake := newFakeExec()
	fake.errs["tmux has-session -t =summitflow-abc"] = errors.New("no server running on /tmp/tmux-0/default")
	d := newTestDriver(fake)

	ok, err := d.Exists("summitflow-abc")
	if err != nil || ok {
		t.Fatalf("expected (false, nil), got (%v, %v)", ok, err)
	}
}

func TestExists_RejectsInvalidName(t *testing.T) {
	d := newTestDriver(newFakeExec())
	if _, err := d.Exists("bad name"); err == nil {
		t.Fatal("expected error for invalid name")
	}
}

func TestCreate_NewSessionAppliesOptionsAndScrubsEnv(t *testing.T) {
	fake := newFakeExec()
	fake.errs["tmux has-session -t =summitflow-abc"] = errors.New("can't find session: summitflow-abc")
	d := newTestDriver(fake)

	if err := d.Create("abc", "/srv/project"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fake.hasCall(t, "tmux new-session -d -s summitflow-abc -x 120 -y 30 -c /srv/project")
	fake.hasCall(t, "tmux set-option -t summitflow-abc mouse off")
	fake.hasCall(t, "tmux set-option -t summitflow-abc status off")

	unsets := 0
	for _, call := range fake.calls {
		if strings.HasPrefix(call, "tmux set-environment -t summitflow-abc -u ") {
			unsets++
		}
	}
	if unsets != len(secretEnvVars) {
		t.Fatalf("expected %d env unsets, got %d", len(secretEnvVars), unsets)
	}
	fake.hasCall(t, "tmux set-environment -t summitflow-abc -u ANTHROPIC_API_KEY")
	fake.hasCall(t, "tmux set-environment -t summitflow-abc -u DATABASE_URL")
}

func TestCreate_ExistingSessionOnlyReappliesOptions(t *testing.T) {
	fake := newFakeExec()
	d := newTestDriver(fake)

	if err := d.Create("abc", "/srv/project"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, call := range fake.calls {
		if strings.HasPrefix(call, "tmux new-session") {
			t.Fatalf("should not create a second session, got %v", fake.calls)
		}
	}
	fake.hasCall(t, "tmux set-option -t summitflow-abc mouse off")
}

func TestKill_ReportsKilled(t *testing.T) {
	fake := newFakeExec()
	d := newTestDriver(fake)

	killed, err := d.Kill("abc", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !killed {
		t.Fatal("expected killed=true")
	}
	fake.hasCall(t, "tmux kill-session -t =summitflow-abc")
}

func TestKill_MissingSession(t *testing.T) {
	fake := newFakeExec()
	fake.errs["tmux kill-session -t =summitflow-abc"] = errors.New("can't find session: summitflow-abc")
	d := newTestDriver(fake)

	killed, err := d.Kill("abc", true)
	if err != nil || killed {
		t.Fatalf("expected (false, nil) with ignoreMissing, got (%v, %v)", killed, err)
	}

	_, err = d.Kill("abc", false)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestListPrefixed_FiltersForeignSessions(t *testing.T) {
	fake := newFakeExec()
	fake.outputs["tmux list-sessions -F #{session_name}"] = "summitflow-a\nuser-own\nsummitflow-b\n"
	d := newTestDriver(fake)

	ids, err := d.ListPrefixed()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestListPrefixed_NoServerMeansEmpty(t *testing.T) {
	fake := newFakeExec()
	fake.errs["tmux list-sessions -F #{session_name}"] = errors.New("no server running on /tmp/tmux-0/default")
	d := newTestDriver(fake)

	ids, err := d.ListPrefixed()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no ids, got %v", ids)
	}
}

func TestCaptureScrollback_RequestsFullHistoryWithEscapes(t *testing.T) {
	fake := newFakeExec()
	fake.outputs["tmux capture-pane -t summitflow-abc -S - -e -J -p"] = "line1\nline2"
	d := newTestDriver(fake)

	out, err := d.CaptureScrollback("summitflow-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "line1\nline2" {
		t.Fatalf("unexpected capture %q", out)
	}
}

func TestResizeWindow(t *testing.T) {
	fake := newFakeExec()
	d := newTestDriver(fake)

	if err := d.ResizeWindow("summitflow-abc", 200, 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fake.hasCall(t, "tmux resize-window -t summitflow-abc -x 200 -y 50")

	if err := d.ResizeWindow("summitflow-abc", 0, 50); err == nil {
		t.Fatal("expected error for zero cols")
	}
}

func TestIsAuxiliaryRunning_MatchesPaneCommand(t *testing.T) {
	fake := newFakeExec()
	fake.outputs["tmux list-panes -t summitflow-abc -F #{pane_current_command}"] = "bash\nclaude\n"
	d := newTestDriver(fake)

	running, err := d.IsAuxiliaryRunning("summitflow-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !running {
		t.Fatal("expected auxiliary to be running")
	}
}

func TestIsAuxiliaryRunning_IgnoresOtherCommands(t *testing.T) {
	fake := newFakeExec()
	fake.outputs["tmux list-panes -t summitflow-abc -F #{pane_current_command}"] = "bash\nvim\n"
	d := newTestDriver(fake)

	running, err := d.IsAuxiliaryRunning("summitflow-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if running {
		t.Fatal("expected auxiliary to not be running")
	}
}

func TestIsAuxiliaryRunning_MissingSessionIsFalse(t *testing.T) {
	fake := newFakeExec()
	fake.errs["tmux list-panes -t summitflow-abc -F #{pane_current_command}"] = errors.New("can't find session: summitflow-abc")
	d := newTestDriver(fake)

	running, err := d.IsAuxiliaryRunning("summitflow-abc")
	if err != nil || running {
		t.Fatalf("expected (false, nil), got (%v, %v)", running, err)
	}
}

func TestClientSession_ReturnsFirstClient(t *testing.T) {
	fake := newFakeExec()
	fake.outputs["tmux list-clients -t summitflow-abc -F #{client_session}"] = "summitflow-abc-claude\nsummitflow-abc\n"
	d := newTestDriver(fake)

	got, err := d.ClientSession("summitflow-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "summitflow-abc-claude" {
		t.Fatalf("unexpected client session %q", got)
	}
}

func TestClientSession_NoClients(t *testing.T) {
	fake := newFakeExec()
	d := newTestDriver(fake)

	got, err := d.ClientSession("summitflow-abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty client session, got %q", got)
	}
}

func TestSendKeys(t *testing.T) {
	fake := newFakeExec()
	d := newTestDriver(fake)

	if err := d.SendKeys("summitflow-abc", "claude --dangerously-skip-permissions", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fake.hasCall(t, "tmux send-keys -t summitflow-abc claude --dangerously-skip-permissions Enter")

	if err := d.SendKeys("summitflow-abc", "ls", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fake.hasCall(t, "tmux send-keys -t summitflow-abc ls")
}

func TestRegisterSwitchHook_ExpandsClientFormats(t *testing.T) {
	fake := newFakeExec()
	d := newTestDriver(fake)

	if err := d.RegisterSwitchHook("http://127.0.0.1:8002/api/internal/session-switch"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	call := fake.hasCallPrefix(t, "tmux set-hook -g client-session-changed ")
	if !strings.Contains(call, "run-shell -b") {
		t.Fatalf("hook should run in background, got %q", call)
	}
	if !strings.Contains(call, "from=#{client_last_session}") || !strings.Contains(call, "to=#{client_session}") {
		t.Fatalf("hook should pass both client formats, got %q", call)
	}
}

func TestUnregisterSwitchHook(t *testing.T) {
	fake := newFakeExec()
	d := newTestDriver(fake)

	if err := d.UnregisterSwitchHook(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fake.hasCall(t, "tmux set-hook -gu client-session-changed")
}

func TestAttachCommand_PlainAttach(t *testing.T) {
	d := newTestDriver(newFakeExec())

	name, args := d.AttachCommand("summitflow-abc", "")
	if name != "tmux" {
		t.Fatalf("unexpected command %q", name)
	}
	if strings.Join(args, " ") != "attach-session -t summitflow-abc" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestAttachCommand_SwitchesToTarget(t *testing.T) {
	d := newTestDriver(newFakeExec())

	name, args := d.AttachCommand("summitflow-abc", "summitflow-abc-claude")
	if name != "bash" {
		t.Fatalf("unexpected command %q", name)
	}
	if len(args) != 2 || args[0] != "-c" {
		t.Fatalf("unexpected args %v", args)
	}
	script := args[1]
	if !strings.Contains(script, "attach-session -t 'summitflow-abc'") {
		t.Fatalf("script should attach base session, got %q", script)
	}
	if !strings.Contains(script, "switch-client -t 'summitflow-abc-claude'") {
		t.Fatalf("script should switch to target, got %q", script)
	}
}

func TestAttachCommand_CarriesSocket(t *testing.T) {
	d := NewDriver(newFakeExec(), Options{Socket: "summitflow", DefaultCols: 120, DefaultRows: 30})

	name, args := d.AttachCommand("summitflow-abc", "")
	if name != "tmux" {
		t.Fatalf("unexpected command %q", name)
	}
	if strings.Join(args, " ") != "-L summitflow attach-session -t summitflow-abc" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestWithSocket_PrependsSocketFlag(t *testing.T) {
	fake := newFakeExec()
	d := NewDriver(fake, Options{Socket: "summitflow", DefaultCols: 120, DefaultRows: 30})

	if _, err := d.Exists("summitflow-abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fake.hasCall(t, "tmux -L summitflow has-session -t =summitflow-abc")
}

func TestShellSingleQuote(t *testing.T) {
	if got := shellSingleQuote("plain"); got != "'plain'" {
		t.Fatalf("unexpected quoting %q", got)
	}
	if got := shellSingleQuote("it's"); got != `'it'"'"'s'` {
		t.Fatalf("unexpected quoting %q", got)
	}
	if got := shellSingleQuote(""); got != "''" {
		t.Fatalf("unexpected quoting %q", got)
	}
}
