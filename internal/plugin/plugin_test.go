package plugin

import (
	"context"
	"testing"

	"github.com/soyeahso/attendant/internal/hooks"
	"github.com/soyeahso/attendant/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder appends "<id>.init" and "<id>.close" to a shared journal.
type recorder struct {
	id       string
	journal  *[]string
	initErr  error
	closeErr error
	api      API
}

func (p *recorder) ID() string   { return p.id }
func (p *recorder) Name() string { return "recorder " + p.id }

func (p *recorder) Init(_ context.Context, api API) error {
	*p.journal = append(*p.journal, p.id+".init")
	p.api = api
	return p.initErr
}

func (p *recorder) Close() error {
	*p.journal = append(*p.journal, p.id+".close")
	return p.closeErr
}

func newTestRegistry() (*Registry, *hooks.Manager) {
	log := logging.New(nil, "silent")
	hm := hooks.NewManager(log)
	return NewRegistry(hm, log), hm
}

func TestRegisterRejectsDuplicateID(t *testing.T) {
	reg, _ := newTestRegistry()
	var journal []string

	require.NoError(t, reg.Register(&recorder{id: "report", journal: &journal}))
	err := reg.Register(&recorder{id: "report", journal: &journal})
	assert.ErrorContains(t, err, `"report" is already registered`)
	assert.Equal(t, []string{"report"}, reg.List())
}

func TestLifecycleOrder(t *testing.T) {
	reg, hm := newTestRegistry()
	var journal []string
	digest := &recorder{id: "digest", journal: &journal}
	require.NoError(t, reg.Register(&recorder{id: "report", journal: &journal}))
	require.NoError(t, reg.Register(digest))

	require.NoError(t, reg.InitAll(context.Background()))
	assert.Equal(t, []string{"report", "digest"}, reg.Started())
	assert.Same(t, hm, digest.api.Hooks)
	assert.NotNil(t, digest.api.Log)

	// A second InitAll only starts what is new.
	require.NoError(t, reg.Register(&recorder{id: "audit", journal: &journal}))
	require.NoError(t, reg.InitAll(context.Background()))

	reg.CloseAll()
	reg.CloseAll()
	assert.Equal(t, []string{
		"report.init", "digest.init", "audit.init",
		"audit.close", "digest.close", "report.close",
	}, journal)
	assert.Empty(t, reg.Started())
	assert.Equal(t, []string{"report", "digest", "audit"}, reg.List())
}

func TestInitFailureClosesStartedPlugins(t *testing.T) {
	reg, _ := newTestRegistry()
	var journal []string
	require.NoError(t, reg.Register(&recorder{id: "report", journal: &journal}))
	require.NoError(t, reg.Register(&recorder{id: "s3", journal: &journal, initErr: assert.AnError}))
	require.NoError(t, reg.Register(&recorder{id: "late", journal: &journal}))

	err := reg.InitAll(context.Background())
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "plugin s3")

	assert.Equal(t, []string{"report.init", "s3.init", "report.close"}, journal)
	assert.Empty(t, reg.Started())
}

func TestCloseErrorDoesNotStopOthers(t *testing.T) {
	reg, _ := newTestRegistry()
	var journal []string
	require.NoError(t, reg.Register(&recorder{id: "report", journal: &journal}))
	require.NoError(t, reg.Register(&recorder{id: "digest", journal: &journal, closeErr: assert.AnError}))
	require.NoError(t, reg.InitAll(context.Background()))

	reg.CloseAll()
	assert.Equal(t, []string{"report.init", "digest.init", "digest.close", "report.close"}, journal)
}

// A plugin may call back into the registry from Close.
func TestCloseWithoutRegistryLock(t *testing.T) {
	reg, _ := newTestRegistry()
	var journal []string
	p := &reentrant{recorder: recorder{id: "report", journal: &journal}, reg: reg}
	require.NoError(t, reg.Register(p))
	require.NoError(t, reg.InitAll(context.Background()))

	reg.CloseAll()
	assert.Equal(t, []string{"report"}, p.seen)
}

type reentrant struct {
	recorder
	reg  *Registry
	seen []string
}

func (p *reentrant) Close() error {
	p.seen = p.reg.List()
	return p.recorder.Close()
}
