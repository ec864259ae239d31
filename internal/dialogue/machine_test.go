package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/soyeahso/attendant/internal/domain"
	"github.com/soyeahso/attendant/internal/ticket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

type fakeLookups struct {
	registry   map[string]map[string]string
	records    map[string]*domain.CompletionRecord
	regErr     error
	regQueries []string
}

func (f *fakeLookups) FindRegistration(_ context.Context, id string) (map[string]string, bool, error) {
	f.regQueries = append(f.regQueries, id)
	if f.regErr != nil {
		return nil, false, f.regErr
	}
	p, ok := f.registry[id]
	return p, ok, nil
}

func (f *fakeLookups) FindTicket(_ context.Context, code string) (*domain.CompletionRecord, bool, error) {
	r, ok := f.records[code]
	return r, ok, nil
}

func newLookups() *fakeLookups {
	return &fakeLookups{
		registry: map[string]map[string]string{
			"012345": {"NOME": "Jane Doe", "CARGO": "Analista", "SETOR": "RH"},
		},
		records: map[string]*domain.CompletionRecord{},
	}
}

func testMachine() *Machine {
	n := 0
	return New(Config{Locale: "pt", InvalidThreshold: 3, TicketPrefix: "DP", AssistantName: "IADP"},
		WithClock(func() time.Time { return fixedNow }),
		WithTicketGenerator(func() string {
			n++
			return fmt.Sprintf("DP%08X", n)
		}),
	)
}

type harness struct {
	t    *testing.T
	m    *Machine
	lk   *fakeLookups
	sess *domain.Session
	last Outcome
	all  []Effect
}

func newHarness(t *testing.T) *harness {
	m := testMachine()
	return &harness{t: t, m: m, lk: newLookups(), sess: m.NewSession("irc:jane")}
}

func (h *harness) send(text string) Outcome {
	h.t.Helper()
	out, err := h.m.Step(context.Background(), h.sess, text, h.lk)
	require.NoError(h.t, err)
	require.True(h.t, h.sess.State.Valid(), "state %q must be defined", h.sess.State)
	assertTicketInvariant(h.t, h.sess)
	h.last = out
	h.all = append(h.all, out.Effects...)
	return out
}

func (h *harness) text() string { return strings.Join(h.last.Outbound, "\n") }

func assertTicketInvariant(t *testing.T, sess *domain.Session) {
	t.Helper()
	rating := sess.State.RatingStage() ||
		(sess.State == domain.StateHumanHandoff && sess.Fields.ResumeState.RatingStage())
	if rating {
		assert.NotEmpty(t, sess.Fields.TicketCode, "rating stage without ticket")
	} else {
		assert.Empty(t, sess.Fields.TicketCode, "ticket outside rating stage in %s", sess.State)
	}
}

func completes(effects []Effect) []domain.CompletionRecord {
	var out []domain.CompletionRecord
	for _, e := range effects {
		if c, ok := e.(Complete); ok {
			out = append(out, c.Record)
		}
	}
	return out
}

func handoffs(effects []Effect) int {
	n := 0
	for _, e := range effects {
		if _, ok := e.(Handoff); ok {
			n++
		}
	}
	return n
}

// --- scenarios ---

func TestScenario_StartCollectsNameThenAsksRegistration(t *testing.T) {
	h := newHarness(t)

	h.send("1")
	assert.Equal(t, domain.StateNameCollection, h.sess.State)
	assert.Contains(t, h.text(), "Bom dia! Sou a IADP")
	assert.Contains(t, h.text(), "1️⃣ - Iniciar atendimento")
	assert.Contains(t, h.text(), "Informe seu nome completo")

	h.send("Jane Doe")
	assert.Equal(t, domain.StateRegistrationIDCollection, h.sess.State)
	assert.Equal(t, "Jane Doe", h.sess.Fields.Name)
	assert.Contains(t, h.text(), "Perfeito, Jane!")
	assert.Contains(t, h.text(), "matrícula")
}

func TestScenario_RegistrationMatchAndFormatMismatch(t *testing.T) {
	h := newHarness(t)
	h.send("1")
	h.send("Jane Doe")

	h.send("999999")
	assert.Equal(t, domain.StateRegistrationIDCollection, h.sess.State)
	assert.Equal(t, 1, h.sess.Fields.InvalidResponseCount)
	assert.True(t, h.last.Invalid)
	assert.Contains(t, h.text(), "6 dígitos e começar com 0")
	assert.Empty(t, h.lk.regQueries, "malformed ids never reach the registry")

	h.send("012345")
	assert.Equal(t, domain.StateOptionSelection, h.sess.State)
	assert.Equal(t, 0, h.sess.Fields.InvalidResponseCount)
	assert.Equal(t, "012345", h.sess.Fields.RegistrationID)
	assert.Equal(t, "Analista", h.sess.Fields.Profile["CARGO"])
	assert.Contains(t, h.text(), "Olá Jane, como posso ajudá-lo?")
}

func TestScenario_RatedCompletionResetsSession(t *testing.T) {
	h := newHarness(t)
	for _, in := range []string{"1", "Jane Doe", "012345", "3", "Ótimo atendimento"} {
		h.send(in)
	}
	require.Equal(t, domain.StateRatingPrompt, h.sess.State)
	code := h.sess.Fields.TicketCode
	assert.Contains(t, h.text(), code)
	assert.Contains(t, h.text(), "(1 - Sim, 2 - Não)")

	h.send("sim")
	require.Equal(t, domain.StateRatingValueCollection, h.sess.State)
	assert.Contains(t, h.text(), "(1 a 5)")

	out := h.send("4")
	recs := completes(out.Effects)
	require.Len(t, recs, 1)
	rec := recs[0]
	require.NotNil(t, rec.Rating)
	assert.Equal(t, 4, *rec.Rating)
	assert.Equal(t, domain.StatusCompleted, rec.Status)
	assert.Equal(t, code, rec.TicketCode)
	assert.True(t, ticket.Valid("DP", rec.TicketCode))
	assert.Equal(t, "irc:jane", rec.CorrespondentID)
	assert.Equal(t, "Jane Doe", rec.Name)
	assert.Equal(t, "012345", rec.RegistrationID)
	assert.Equal(t, "Sugestão ou elogio", rec.Option)
	assert.Equal(t, "Ótimo atendimento", rec.Details)
	assert.Equal(t, fixedNow, rec.Timestamp)

	assert.Equal(t, domain.StateInitial, h.sess.State)
	assert.Equal(t, domain.Fields{Language: "pt"}, h.sess.Fields)
	assert.Contains(t, h.text(), "Resumo do Atendimento")
	assert.Contains(t, h.text(), "Avaliação: 4")
	assert.Contains(t, h.text(), "Agradecemos pela sua avaliação")
}

func TestScenario_ThreeInvalidOptionsEscalate(t *testing.T) {
	h := newHarness(t)
	for _, in := range []string{"1", "Jane Doe", "012345"} {
		h.send(in)
	}
	require.Equal(t, domain.StateOptionSelection, h.sess.State)

	h.send("banana")
	assert.Equal(t, domain.StateOptionSelection, h.sess.State)
	assert.Contains(t, h.text(), "Opção inválida")
	h.send("9")
	assert.Equal(t, domain.StateOptionSelection, h.sess.State)

	h.send("??")
	assert.Equal(t, domain.StateHumanHandoff, h.sess.State)
	assert.Equal(t, domain.StateOptionSelection, h.sess.Fields.ResumeState)
	assert.Contains(t, h.text(), "falar com um humano")
}

// --- properties ---

func TestHandoffPromptedExactlyOnce(t *testing.T) {
	h := newHarness(t)
	for _, in := range []string{"1", "Jane Doe", "012345"} {
		h.send(in)
	}

	prompts := 0
	for i := 0; i < 7; i++ {
		h.send(fmt.Sprintf("lixo %d", i))
		if strings.Contains(h.text(), "Não consegui entender suas mensagens") {
			prompts++
		}
	}
	assert.Equal(t, 1, prompts)
	assert.Equal(t, domain.StateHumanHandoff, h.sess.State)
	assert.Zero(t, handoffs(h.all), "handoff effect only on acceptance")
}

func TestHandoff_AcceptEmitsEffectAndResets(t *testing.T) {
	h := newHarness(t)
	for _, in := range []string{"1", "Jane Doe", "012345", "x", "y", "z"} {
		h.send(in)
	}
	require.Equal(t, domain.StateHumanHandoff, h.sess.State)

	out := h.send("Sim")
	require.Equal(t, 1, handoffs(out.Effects))
	hf := out.Effects[0].(Handoff)
	assert.Equal(t, "irc:jane", hf.CorrespondentID)
	assert.Equal(t, domain.StateOptionSelection, hf.ResumeState)
	assert.Equal(t, "Jane Doe", hf.Fields.Name)
	assert.Equal(t, domain.StateInitial, h.sess.State)
	assert.Contains(t, h.text(), "atendente humano")
}

func TestHandoff_DeclineResumes(t *testing.T) {
	h := newHarness(t)
	for _, in := range []string{"1", "Jane Doe", "012345", "x", "y", "z"} {
		h.send(in)
	}
	h.send("não")
	assert.Equal(t, domain.StateOptionSelection, h.sess.State)
	assert.Equal(t, 0, h.sess.Fields.InvalidResponseCount)
	assert.Empty(t, h.sess.Fields.ResumeState)
	assert.Contains(t, h.text(), "como posso ajudá-lo")
}

func TestSuccessResetsInvalidCounter(t *testing.T) {
	h := newHarness(t)
	h.send("1")
	h.send("Jane")
	h.send("123")
	h.send("abc")
	require.Equal(t, 2, h.sess.Fields.InvalidResponseCount)
	h.send("012345")
	assert.Equal(t, 0, h.sess.Fields.InvalidResponseCount)
	h.send("x")
	h.send("y")
	assert.Equal(t, domain.StateOptionSelection, h.sess.State, "counter restarted, no escalation yet")
}

// --- individual states ---

func TestInitial_FirstContactGreets(t *testing.T) {
	h := newHarness(t)
	h.send("oi")
	assert.Equal(t, domain.StateInitial, h.sess.State)
	assert.True(t, h.sess.Fields.Greeted)
	assert.False(t, h.last.Invalid)
	assert.Contains(t, h.text(), "Bom dia!")

	h.send("oi de novo")
	assert.True(t, h.last.Invalid)
	assert.Contains(t, h.text(), "Menu de ajuda")
}

func TestInitial_GreetingByHour(t *testing.T) {
	for hour, want := range map[int]string{8: "Bom dia", 13: "Boa tarde", 20: "Boa noite"} {
		at := time.Date(2026, 1, 1, hour, 0, 0, 0, time.UTC)
		m := New(Config{}, WithClock(func() time.Time { return at }))
		res := m.Transition(*m.NewSession("x"), "olá")
		require.NotEmpty(t, res.Outbound)
		assert.True(t, strings.HasPrefix(res.Outbound[0], want), "hour %d", hour)
	}
}

func TestInitial_HelpDoesNotCount(t *testing.T) {
	h := newHarness(t)
	h.send("ajuda")
	assert.Contains(t, h.text(), "Menu de ajuda")
	h.send("5")
	assert.Equal(t, 0, h.sess.Fields.InvalidResponseCount)
}

func TestInitial_LanguageSwitch(t *testing.T) {
	h := newHarness(t)
	h.send("en")
	assert.Equal(t, "en", h.sess.Fields.Language)
	assert.Contains(t, h.text(), "Language switched to English")

	h.send("1")
	assert.Contains(t, h.text(), "Please enter your full name")
}

func TestHelpKeywordMidIntake(t *testing.T) {
	h := newHarness(t)
	h.send("1")
	h.send("Jane")
	h.send("AJUDA")
	assert.Equal(t, domain.StateRegistrationIDCollection, h.sess.State)
	assert.Equal(t, 0, h.sess.Fields.InvalidResponseCount)
	assert.False(t, h.last.Invalid)
	assert.Contains(t, h.text(), "informe sua matrícula")
}

func TestRegistration_LookupMissCountsAsInvalid(t *testing.T) {
	h := newHarness(t)
	h.send("1")
	h.send("Jane")
	h.send("054321")
	assert.Equal(t, domain.StateRegistrationIDCollection, h.sess.State)
	assert.Equal(t, 1, h.sess.Fields.InvalidResponseCount)
	assert.Empty(t, h.sess.Fields.RegistrationID)
	assert.Contains(t, h.text(), "Colaborador não encontrado")
}

func TestRegistration_RegistryErrorDoesNotCount(t *testing.T) {
	h := newHarness(t)
	h.send("1")
	h.send("Jane")
	h.lk.regErr = errors.New("disk unplugged")

	out, err := h.m.Step(context.Background(), h.sess, "012345", h.lk)
	require.Error(t, err)
	assert.Equal(t, domain.StateRegistrationIDCollection, h.sess.State)
	assert.Equal(t, 0, h.sess.Fields.InvalidResponseCount)
	assert.Contains(t, strings.Join(out.Outbound, "\n"), "Não foi possível consultar")
}

func TestInfoLookupFlow(t *testing.T) {
	h := newHarness(t)
	for _, in := range []string{"1", "Jane Doe", "012345", "1"} {
		h.send(in)
	}
	require.Equal(t, domain.StateInfoLookup, h.sess.State)
	assert.Contains(t, h.text(), "1 - CARGO\n2 - NOME\n3 - SETOR")

	h.send("7")
	assert.Equal(t, domain.StateInfoLookup, h.sess.State)
	assert.Equal(t, 1, h.sess.Fields.InvalidResponseCount)

	h.send("1")
	assert.Equal(t, domain.StateMoreInfoOrFinish, h.sess.State)
	assert.Contains(t, h.text(), "CARGO: Analista")

	h.send("1")
	require.Equal(t, domain.StateOptionSelection, h.sess.State)
	h.send("1")
	h.send("3")
	h.send("2")
	require.Equal(t, domain.StateRatingPrompt, h.sess.State)
	assert.Equal(t, "Consulta: SETOR", h.sess.Fields.Details)

	out := h.send("2")
	recs := completes(out.Effects)
	require.Len(t, recs, 1)
	assert.Nil(t, recs[0].Rating)
	assert.Equal(t, "Consultar informações", recs[0].Option)
	assert.Contains(t, h.text(), "Avaliação: N/A")
	assert.Contains(t, h.text(), "Agradecemos pelo feedback")
}

func TestInfoLookup_EmptyProfile(t *testing.T) {
	h := newHarness(t)
	h.lk.registry["000001"] = map[string]string{}
	for _, in := range []string{"1", "Jane", "000001", "1"} {
		h.send(in)
	}
	assert.Equal(t, domain.StateOptionSelection, h.sess.State)
	assert.Contains(t, h.text(), "Não há informações")
}

func TestBenefitFlow(t *testing.T) {
	h := newHarness(t)
	for _, in := range []string{"1", "Jane", "012345", "2", "4"} {
		h.send(in)
	}
	assert.Equal(t, domain.StateDetailCollection, h.sess.State)
	assert.Equal(t, "Benefícios - Férias", h.sess.Fields.SelectedOption)
	assert.Contains(t, h.text(), "Você selecionou: Férias")

	h.send("   ")
	assert.Equal(t, domain.StateDetailCollection, h.sess.State)
	assert.Equal(t, 1, h.sess.Fields.InvalidResponseCount)

	h.send("quando posso marcar?")
	assert.Equal(t, domain.StateRatingPrompt, h.sess.State)
}

func TestCancelWithReasonRecordsCancelled(t *testing.T) {
	h := newHarness(t)
	for _, in := range []string{"1", "Jane", "012345", "4", "mudei de ideia"} {
		h.send(in)
	}
	require.Equal(t, domain.StateRatingPrompt, h.sess.State)
	assert.Contains(t, h.text(), "Cancelamento registrado")

	h.send("1")
	out := h.send("2")
	recs := completes(out.Effects)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.StatusCancelled, recs[0].Status)
	assert.Equal(t, 2, *recs[0].Rating)
}

func TestRatingValue_OutOfRangeDoesNotCount(t *testing.T) {
	h := newHarness(t)
	for _, in := range []string{"1", "Jane", "012345", "3", "ok", "1"} {
		h.send(in)
	}
	h.send("9")
	assert.Equal(t, domain.StateRatingValueCollection, h.sess.State)
	assert.Equal(t, 0, h.sess.Fields.InvalidResponseCount)
	assert.Contains(t, h.text(), "entre 1 e 5")

	h.send("cinco")
	assert.Equal(t, 1, h.sess.Fields.InvalidResponseCount)
}

func TestCancelKeyword_ConfirmAfterIntakeStarted(t *testing.T) {
	h := newHarness(t)
	for _, in := range []string{"1", "Jane", "012345", "2"} {
		h.send(in)
	}
	h.send("Cancelar")
	require.Equal(t, domain.StateCancelConfirmation, h.sess.State)
	assert.Equal(t, domain.StateBenefitSelection, h.sess.Fields.ResumeState)

	out := h.send("sim")
	recs := completes(out.Effects)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.StatusCancelled, recs[0].Status)
	assert.True(t, ticket.Valid("DP", recs[0].TicketCode))
	assert.Equal(t, domain.StateInitial, h.sess.State)
}

func TestCancelKeyword_DeclineResumes(t *testing.T) {
	h := newHarness(t)
	for _, in := range []string{"1", "Jane", "012345", "2", "cancel"} {
		h.send(in)
	}
	h.send("nao")
	assert.Equal(t, domain.StateBenefitSelection, h.sess.State)
	assert.Contains(t, h.text(), "Plano de saúde")
}

func TestCancelFromInitial_NothingStarted(t *testing.T) {
	h := newHarness(t)
	h.send("3")
	require.Equal(t, domain.StateCancelConfirmation, h.sess.State)
	out := h.send("s")
	assert.Empty(t, completes(out.Effects))
	assert.Equal(t, domain.StateInitial, h.sess.State)
	assert.Contains(t, h.text(), "nenhum atendimento em andamento")
}

func TestHumanFromInitialMenu(t *testing.T) {
	h := newHarness(t)
	h.send("4")
	require.Equal(t, domain.StateHumanHandoff, h.sess.State)
	h.send("talvez")
	assert.Equal(t, domain.StateHumanHandoff, h.sess.State)
	assert.Contains(t, h.text(), "Responda \"sim\"")
	out := h.send("yes")
	assert.Equal(t, 1, handoffs(out.Effects))
}

func TestEscalationFromRatingKeepsAnnouncedTicket(t *testing.T) {
	h := newHarness(t)
	for _, in := range []string{"1", "Jane", "012345", "3", "ok"} {
		h.send(in)
	}
	require.Equal(t, domain.StateRatingPrompt, h.sess.State)
	announced := h.sess.Fields.TicketCode
	require.Contains(t, h.text(), announced)

	for _, in := range []string{"1", "a", "b", "c"} {
		h.send(in)
	}
	require.Equal(t, domain.StateHumanHandoff, h.sess.State)
	assert.Equal(t, announced, h.sess.Fields.TicketCode)

	h.send("não")
	require.Equal(t, domain.StateRatingValueCollection, h.sess.State)
	assert.Equal(t, announced, h.sess.Fields.TicketCode)

	out := h.send("4")
	recs := completes(out.Effects)
	require.Len(t, recs, 1)
	assert.Equal(t, announced, recs[0].TicketCode)
	assert.Equal(t, domain.StateInitial, h.sess.State)
}

func TestEscalationFromRatingAcceptedDropsTicket(t *testing.T) {
	h := newHarness(t)
	for _, in := range []string{"1", "Jane", "012345", "3", "ok", "1", "a", "b", "c"} {
		h.send(in)
	}
	out := h.send("sim")
	require.Equal(t, 1, handoffs(out.Effects))
	assert.Empty(t, out.Effects[0].(Handoff).Fields.TicketCode)
	assert.Empty(t, h.sess.Fields.TicketCode)
}

func TestProtocolLookup(t *testing.T) {
	h := newHarness(t)
	h.lk.records["DPABCDEF01"] = &domain.CompletionRecord{
		TicketCode: "DPABCDEF01",
		Status:     domain.StatusCompleted,
		Option:     "Sugestão ou elogio",
		Timestamp:  fixedNow,
	}

	h.send("2")
	require.Equal(t, domain.StateProtocolStatusLookup, h.sess.State)

	h.send("dpabcdef02")
	assert.Equal(t, domain.StateProtocolStatusLookup, h.sess.State)
	assert.Equal(t, 1, h.sess.Fields.InvalidResponseCount)
	assert.Contains(t, h.text(), "Protocolo não encontrado")

	h.send("nope")
	assert.Equal(t, 2, h.sess.Fields.InvalidResponseCount)

	h.send(" dpabcdef01 ")
	assert.Equal(t, domain.StateInitial, h.sess.State)
	assert.Contains(t, h.text(), "Protocolo DPABCDEF01: Concluído em 04/05/2026 09:30")
}

func TestProtocolLookup_Back(t *testing.T) {
	h := newHarness(t)
	h.send("2")
	h.send("voltar")
	assert.Equal(t, domain.StateInitial, h.sess.State)
	assert.Contains(t, h.text(), "Voltando ao menu inicial")
}

func TestTransition_UnknownStateTreatedAsInitial(t *testing.T) {
	m := testMachine()
	sess := m.NewSession("x")
	sess.State = domain.State("corrupted")
	res := m.Transition(*sess, "1")
	assert.Equal(t, domain.StateNameCollection, res.Next)
}

func TestTransition_DoesNotAliasInput(t *testing.T) {
	m := testMachine()
	sess := m.NewSession("x")
	sess.State = domain.StateOptionSelection
	sess.Fields.Profile = map[string]string{"A": "1"}

	res := m.Transition(*sess, "2")
	res.Fields.Profile["A"] = "changed"
	assert.Equal(t, "1", sess.Fields.Profile["A"])
	assert.Equal(t, domain.StateOptionSelection, sess.State)
}

func TestFold(t *testing.T) {
	assert.Equal(t, "nao", fold("  Não! "))
	assert.Equal(t, "sim", fold("SIM."))
	assert.Equal(t, "cancelar", fold("Cancelar"))
}
