package selection

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"slippidex/lang"
	"slippidex/metrics"
	"slippidex/roster"
)

type mainsCall struct {
	guildID  string
	memberID string
	entries  []string
}

type recordingMutator struct {
	mu    sync.Mutex
	calls []mainsCall
	err   error
}

func (m *recordingMutator) SetMains(_ context.Context, guildID, memberID string, entries []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mainsCall{guildID, memberID, entries})
	return m.err
}

func testCatalog() *roster.Catalog {
	return roster.MustNew([]roster.Entry{
		{Name: "Mario", Color: 0xE52521},
		{Name: "Luigi", Color: 0x2FA84F},
		{Name: "Zelda", Color: 0xE6A8D7, AliasGroup: "zs", AliasLead: true},
		{Name: "Sheik", Color: 0x4169E1, AliasGroup: "zs"},
	})
}

func names(entries []roster.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

type ControllerSuite struct {
	suite.Suite
	ctx     context.Context
	clock   time.Time
	store   *MemoryStore
	mutator *recordingMutator
	metrics *metrics.Metrics
	ctrl    *Controller
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = time.Now()
	s.store = NewMemoryStore()
	s.store.now = func() time.Time { return s.clock }
	s.mutator = &recordingMutator{}
	s.metrics = metrics.New()

	s.ctrl = NewController(Config{
		Catalog: testCatalog(),
		Store:   s.store,
		Mutator: s.mutator,
		TTL:     time.Minute,
		Lang:    lang.MustNew(),
		Metrics: s.metrics,
		Log:     zaptest.NewLogger(s.T()).Sugar(),
	})
	s.ctrl.now = func() time.Time { return s.clock }
}

func (s *ControllerSuite) start() *Menu {
	menu, err := s.ctrl.Start(s.ctx, "guild-1", "member-1")
	s.Require().NoError(err)
	return menu
}

func (s *ControllerSuite) submit(menu *Menu, values ...string) (Outcome, error) {
	return s.ctrl.Submit(s.ctx, Submission{
		SessionID: menu.SessionID,
		Step:      menu.Step,
		MemberID:  "member-1",
		Values:    values,
	})
}

func (s *ControllerSuite) TestPrimaryMenuHidesSecondary() {
	menu := s.start()
	s.Equal(AwaitingPrimarySelection, menu.Step)
	s.Equal([]string{"Mario", "Luigi", "Zelda"}, names(menu.Options))
	s.Equal(1, menu.MinValues)
	s.Equal(3, menu.MaxValues)
	s.Contains(menu.Content, "Sheik mains should select Zelda")
	s.Contains(menu.Content, "up to 2 main characters")
}

func (s *ControllerSuite) TestPrimaryResolvesWithoutAlias() {
	out, err := s.submit(s.start(), "Luigi", "Mario")
	s.Require().NoError(err)
	s.Equal(Resolved, out.State)
	s.Equal([]string{"Luigi", "Mario"}, out.Mains)

	s.Require().Len(s.mutator.calls, 1)
	s.Equal(mainsCall{"guild-1", "member-1", []string{"Luigi", "Mario"}}, s.mutator.calls[0])
	s.Equal(0, s.store.Len())
}

func (s *ControllerSuite) TestAliasGoesThroughDisambiguation() {
	out, err := s.submit(s.start(), "Mario", "Zelda")
	s.Require().NoError(err)
	s.Equal(AwaitingDisambiguation, out.State)
	s.Require().NotNil(out.Next)
	s.Equal([]string{"Zelda", "Sheik"}, names(out.Next.Options))
	s.Equal(1, out.Next.MaxValues)
	s.Empty(s.mutator.calls)

	out, err = s.submit(out.Next, "Sheik")
	s.Require().NoError(err)
	s.Equal(Resolved, out.State)
	s.Equal([]string{"Mario", "Sheik"}, out.Mains)
	s.Require().Len(s.mutator.calls, 1)
	s.Equal([]string{"Mario", "Sheik"}, s.mutator.calls[0].entries)
}

func (s *ControllerSuite) TestAliasAloneAllowsBoth() {
	out, err := s.submit(s.start(), "Zelda")
	s.Require().NoError(err)
	s.Equal(2, out.Next.MaxValues)

	out, err = s.submit(out.Next, "Zelda", "Sheik")
	s.Require().NoError(err)
	s.Equal([]string{"Zelda", "Sheik"}, out.Mains)
}

func (s *ControllerSuite) TestResolvedSetNeverExceedsTwo() {
	menu := s.start()

	// two others leave no room for the alias pair
	_, err := s.submit(menu, "Mario", "Luigi", "Zelda")
	s.ErrorIs(err, ErrTooManyMains)

	_, err = s.submit(menu, "Mario", "Luigi")
	s.Require().NoError(err)

	menu = s.start()
	out, err := s.submit(menu, "Mario", "Zelda")
	s.Require().NoError(err)
	_, err = s.submit(out.Next, "Zelda", "Sheik")
	s.ErrorIs(err, ErrTooManyMains)

	for _, call := range s.mutator.calls {
		s.LessOrEqual(len(call.entries), MaxMains)
	}
}

func (s *ControllerSuite) TestRejectionKeepsSession() {
	menu := s.start()
	_, err := s.submit(menu)
	s.ErrorIs(err, ErrInvalidSelection)
	_, err = s.submit(menu, "Sheik")
	s.ErrorIs(err, ErrInvalidSelection)
	_, err = s.submit(menu, "Mario", "Mario")
	s.ErrorIs(err, ErrInvalidSelection)

	out, err := s.submit(menu, "Mario")
	s.Require().NoError(err)
	s.Equal(Resolved, out.State)
	s.Equal(3.0, testutil.ToFloat64(s.metrics.Selections.WithLabelValues("rejected")))
}

func (s *ControllerSuite) TestStaleMenuIsWrongStep() {
	menu := s.start()
	_, err := s.submit(menu, "Zelda")
	s.Require().NoError(err)

	_, err = s.submit(menu, "Mario")
	s.ErrorIs(err, ErrWrongStep)
}

func (s *ControllerSuite) TestOtherMemberCannotSubmit() {
	menu := s.start()
	_, err := s.ctrl.Submit(s.ctx, Submission{
		SessionID: menu.SessionID,
		Step:      menu.Step,
		MemberID:  "member-2",
		Values:    []string{"Mario"},
	})
	s.ErrorIs(err, ErrInvalidSelection)
	s.Empty(s.mutator.calls)
}

func (s *ControllerSuite) TestExpiredSessionIsAbandoned() {
	menu := s.start()
	s.clock = s.clock.Add(2 * time.Minute)

	_, err := s.submit(menu, "Mario")
	s.ErrorIs(err, ErrSessionNotFound)
	s.Empty(s.mutator.calls)
}

func (s *ControllerSuite) TestResolvedSessionIsClosed() {
	menu := s.start()
	_, err := s.submit(menu, "Mario")
	s.Require().NoError(err)

	_, err = s.submit(menu, "Luigi")
	s.ErrorIs(err, ErrSessionNotFound)
	s.Len(s.mutator.calls, 1)
}

func (s *ControllerSuite) TestSessionsAreIndependent() {
	first := s.start()
	second := s.start()
	s.NotEqual(first.SessionID, second.SessionID)

	_, err := s.submit(second, "Luigi")
	s.Require().NoError(err)
	_, err = s.submit(first, "Mario")
	s.Require().NoError(err)

	s.Require().Len(s.mutator.calls, 2)
	s.Equal([]string{"Mario"}, s.mutator.calls[1].entries)
}

func (s *ControllerSuite) TestMutatorErrorIsReturned() {
	s.mutator.err = errors.New("db down")
	out, err := s.submit(s.start(), "Mario")
	s.Error(err)
	s.Equal([]string{"Mario"}, out.Mains)
}

func (s *ControllerSuite) TestCustomIDRoundTrip() {
	menu := s.start()
	step, id, err := ParseCustomID(menu.CustomID())
	s.Require().NoError(err)
	s.Equal(AwaitingPrimarySelection, step)
	s.Equal(menu.SessionID, id)

	for _, bad := range []string{"other:primary:x", "mains:primary:", "mains:resolved:x", "mains:"} {
		_, _, err := ParseCustomID(bad)
		s.ErrorIs(err, ErrInvalidSelection, bad)
	}
}

func (s *ControllerSuite) TestComponentsCarryBadges() {
	menu := s.start()
	badges := roster.NewIndex(testCatalog(), [][2]string{{"Mario", "55"}})

	components := menu.Components(badges)
	s.Require().Len(components, 1)
	row, ok := components[0].(discordgo.ActionsRow)
	s.Require().True(ok)
	s.Require().Len(row.Components, 1)
	selectMenu, ok := row.Components[0].(discordgo.SelectMenu)
	s.Require().True(ok)

	s.Equal(menu.CustomID(), selectMenu.CustomID)
	s.Equal(3, selectMenu.MaxValues)
	s.Require().NotNil(selectMenu.MinValues)
	s.Equal(1, *selectMenu.MinValues)
	s.Require().Len(selectMenu.Options, 3)
	s.Require().NotNil(selectMenu.Options[0].Emoji)
	s.Equal("55", selectMenu.Options[0].Emoji.ID)
	s.Nil(selectMenu.Options[1].Emoji)
}
