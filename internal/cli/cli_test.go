package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/soyeahso/attendant/internal/config"
	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/logging"
	"github.com/soyeahso/attendant/internal/registry"
	"github.com/soyeahso/attendant/internal/report"
	"github.com/soyeahso/attendant/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	log = logging.New(nil, "silent")
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Session.Store = "memory"
	cfg.Report.Path = filepath.Join(dir, "atendimentos.csv")
	return cfg
}

func TestSimulate_FullIntake(t *testing.T) {
	cfg := testConfig(t)
	in := strings.NewReader(strings.Join([]string{
		"1", "Alice Silva", "012345", "3", "Tudo ótimo", "1", "5",
	}, "\n") + "\n")
	var out bytes.Buffer

	open := func(ctx context.Context) (*service, error) {
		return openService(ctx, cfg, log)
	}
	require.NoError(t, simulate(context.Background(), in, &out, "alice", open))

	text := out.String()
	assert.Contains(t, text, "bot> ")
	assert.Contains(t, text, "IADP")
	assert.Contains(t, text, "7 message(s) sent")

	lg, err := report.OpenLog(cfg.Report.Path, log)
	require.NoError(t, err)
	recs, err := lg.Records()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "console:alice", recs[0].CorrespondentID)
	assert.Equal(t, "Alice Silva", recs[0].Name)
	assert.Equal(t, domain.StatusCompleted, recs[0].Status)
	assert.Contains(t, text, recs[0].TicketCode)
}

func TestSimulate_EmptyInput(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	open := func(ctx context.Context) (*service, error) {
		return openService(ctx, cfg, log)
	}
	require.NoError(t, simulate(context.Background(), strings.NewReader(""), &out, "bob", open))
	assert.Contains(t, out.String(), "0 message(s) sent")
}

func TestOpenService_BadStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Session.Store = "redis"

	_, err := openService(context.Background(), cfg, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session store")
}

func TestEnableReports_None(t *testing.T) {
	cfg := testConfig(t)
	svc, err := openService(context.Background(), cfg, log)
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.enableReports(context.Background()))
	assert.Zero(t, len(svc.plugins.List()))
}

func TestEnableReports_SMTP(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report.Notifier = "smtp"
	cfg.Report.SMTP.Host = "mail.example.com"
	cfg.Report.To = []string{"rh@example.com"}

	svc, err := openService(context.Background(), cfg, log)
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.enableReports(context.Background()))
	assert.Equal(t, []string{"report"}, svc.plugins.List())
}

func TestIdleConfig(t *testing.T) {
	got := idleConfig(config.IdleConfig{ShortMinutes: 2, LongMinutes: 10, ShortAfterInvalid: 2})
	assert.Equal(t, 2*time.Minute, got.Short)
	assert.Equal(t, 10*time.Minute, got.Long)
	assert.Equal(t, 2, got.ShortAfter)
}

func TestListAndShowSessions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()

	var out bytes.Buffer
	require.NoError(t, listSessions(ctx, st, &out))
	assert.Equal(t, "No sessions.\n", out.String())

	sess := domain.NewSession("irc:ana", "pt", time.Date(2026, 3, 9, 14, 5, 0, 0, time.UTC))
	sess.State = domain.StateNameCollection
	require.NoError(t, st.Put(ctx, sess))

	out.Reset()
	require.NoError(t, listSessions(ctx, st, &out))
	assert.Contains(t, out.String(), "irc:ana")
	assert.Contains(t, out.String(), string(domain.StateNameCollection))

	out.Reset()
	require.NoError(t, showSession(ctx, st, "irc:ana", &out))
	assert.Contains(t, out.String(), `"id": "irc:ana"`)

	assert.Error(t, showSession(ctx, st, "irc:nobody", &out))
}

func TestShowReport(t *testing.T) {
	cfg := testConfig(t)
	lg, err := report.OpenLog(cfg.Report.Path, log)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, showReport(lg, "", &out))
	assert.Contains(t, out.String(), "No completions")

	rating := 4
	require.NoError(t, lg.Append(domain.CompletionRecord{
		CorrespondentID: "irc:ana",
		Name:            "Ana",
		Rating:          &rating,
		Timestamp:       time.Now(),
		TicketCode:      "AB12CD",
		Status:          domain.StatusCompleted,
	}))

	out.Reset()
	require.NoError(t, showReport(lg, "", &out))
	assert.Contains(t, out.String(), "AB12CD")
	assert.Contains(t, out.String(), "Ana")

	out.Reset()
	require.NoError(t, showReport(lg, "ab12cd", &out))
	assert.Contains(t, out.String(), "AB12CD")

	assert.Error(t, showReport(lg, "ZZZZZZ", &out))
}

func TestLookup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "funcionarios.csv")
	require.NoError(t, os.WriteFile(path, []byte("Matricula,Nome,Setor\n012345,Alice Silva,RH\n"), 0o600))

	ctx := context.Background()
	src, closer, err := registry.New(ctx, config.RegistryConfig{Source: "csv", Path: path, IDColumn: "Matricula"}, logging.New(nil, "silent"))
	require.NoError(t, err)
	defer closer.Close()

	var out bytes.Buffer
	require.NoError(t, lookup(ctx, src, "012345", &out))
	assert.Contains(t, out.String(), "Nome: Alice Silva")
	assert.Contains(t, out.String(), "Setor: RH")

	assert.Error(t, lookup(ctx, src, "999999", &out))

	out.Reset()
	require.NoError(t, lookup(ctx, registry.None{}, "42", &out))
	assert.Contains(t, out.String(), "accepted")
}

func TestPrintStatus(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Enabled = true

	var out bytes.Buffer
	printStatus(&out, cfg)

	text := out.String()
	assert.Contains(t, text, "store=memory")
	assert.Contains(t, text, "completions=0")
	assert.Contains(t, text, "IRC:      (not configured)")
	assert.Contains(t, text, "Metrics:  /metrics")
	assert.NotContains(t, text, "Validation issues")
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("true"))
	assert.Equal(t, false, parseValue("FALSE"))
	assert.Equal(t, 42, parseValue("42"))
	assert.Equal(t, 1.5, parseValue("1.5"))
	assert.Equal(t, "pt", parseValue("pt"))
	assert.Equal(t, []any{"https://rh.example", "https://portal.example"}, parseValue("[https://rh.example, https://portal.example]"))
	assert.Equal(t, "nome: valor", parseValue("nome: valor"))
	assert.Equal(t, "", parseValue(""))
}

func runConfig(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigSetGetUnset(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("ATTENDANT_HOME", t.TempDir())

	out, err := runConfig(t, "--config", file, "config", "set", "idle.longMinutes", "15")
	require.NoError(t, err)
	assert.Equal(t, "idle.longMinutes = 15\n", out)

	out, err = runConfig(t, "--config", file, "config", "get", "idle.longMinutes")
	require.NoError(t, err)
	assert.Equal(t, "15\n", out)

	cfg, err := config.Load(file)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Idle.LongMinutes)

	_, err = runConfig(t, "--config", file, "config", "unset", "idle.longMinutes")
	require.NoError(t, err)
	_, err = runConfig(t, "--config", file, "config", "get", "idle.longMinutes")
	assert.ErrorContains(t, err, "is not set")
}

func TestConfigSetRejectsInvalidValue(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("ATTENDANT_HOME", t.TempDir())
	require.NoError(t, os.WriteFile(file, []byte("idle:\n  longMinutes: 10\n"), 0o600))

	_, err := runConfig(t, "--config", file, "config", "set", "gateway.port", "70000")
	require.ErrorContains(t, err, "gateway.port")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "idle:\n  longMinutes: 10\n", string(data), "file left as it was")
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"gateway", "simulate", "sessions", "report", "registry", "config", "status", "version"} {
		assert.Contains(t, names, want)
	}
}
