package selection

import (
	"context"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"slippidex/lang"
	"slippidex/metrics"
	"slippidex/roster"
)

// Menu limits.
const (
	DefaultTTL = time.Hour
	MaxPrimary = 3
	MaxMains   = 2
)

// Mutator applies a resolved selection.
type Mutator interface {
	SetMains(ctx context.Context, guildID, memberID string, entries []string) error
}

// Config holds the controller's collaborators.
type Config struct {
	Catalog *roster.Catalog
	Store   Store
	Mutator Mutator
	TTL     time.Duration
	Lang    *lang.Lang
	Metrics *metrics.Metrics
	Log     *zap.SugaredLogger
}

// Controller moves sessions between states.
type Controller struct {
	Config
	now func() time.Time
}

// NewController creates a controller.
func NewController(config Config) *Controller {
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	return &Controller{Config: config, now: time.Now}
}

// Menu describes a select menu to show the member.
type Menu struct {
	SessionID   string
	Step        State
	Content     string
	Placeholder string
	Options     []roster.Entry
	MinValues   int
	MaxValues   int
}

// CustomID is the menu's component id.
func (m *Menu) CustomID() string {
	return CustomID(m.Step, m.SessionID)
}

// Outcome is the result of a submitted menu: either the next menu or the
// resolved mains.
type Outcome struct {
	State State
	Next  *Menu
	Mains []string
}

// Submission is a member's answer to a menu.
type Submission struct {
	SessionID string
	Step      State
	MemberID  string
	Values    []string
}

// Start opens a session for the member and returns the primary menu.
func (c *Controller) Start(ctx context.Context, guildID, memberID string) (*Menu, error) {
	session := &Session{
		ID:        xid.New().String(),
		GuildID:   guildID,
		MemberID:  memberID,
		State:     AwaitingPrimarySelection,
		ExpiresAt: c.now().Add(c.TTL),
	}
	if err := c.Store.Save(ctx, session, c.TTL); err != nil {
		return nil, err
	}
	c.Metrics.Selections.WithLabelValues("started").Inc()

	choices := c.Catalog.PrimaryChoices()
	content := c.Lang.Get(lang.MainsPromptPlain, lang.Data{
		"Max":    MaxMains,
		"Expiry": humanize.Time(session.ExpiresAt),
	})
	if c.Catalog.HasAlias() {
		pair := c.Catalog.AliasPair()
		content = c.Lang.Get(lang.MainsPrompt, lang.Data{
			"Secondary":      pair[1],
			"Representative": pair[0],
			"Max":            MaxMains,
			"Expiry":         humanize.Time(session.ExpiresAt),
		})
	}

	return &Menu{
		SessionID:   session.ID,
		Step:        AwaitingPrimarySelection,
		Content:     content,
		Placeholder: c.Lang.Get(lang.MainsPlaceholder, nil),
		Options:     choices,
		MinValues:   1,
		MaxValues:   min(MaxPrimary, len(choices)),
	}, nil
}

// Submit applies a menu answer. Validation errors leave the session where it
// was, so the member can answer the same menu again.
func (c *Controller) Submit(ctx context.Context, sub Submission) (Outcome, error) {
	session, err := c.Store.Load(ctx, sub.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			c.Metrics.Selections.WithLabelValues("expired").Inc()
		}
		return Outcome{}, err
	}
	if session.MemberID != sub.MemberID {
		return c.reject(errors.Wrap(ErrInvalidSelection, "session belongs to another member"))
	}
	if session.State != sub.Step {
		return c.reject(errors.Wrapf(ErrWrongStep, "session is at %v, got %v", session.State, sub.Step))
	}

	switch session.State {
	case AwaitingPrimarySelection:
		return c.submitPrimary(ctx, session, sub.Values)
	case AwaitingDisambiguation:
		return c.submitDisambiguation(ctx, session, sub.Values)
	default:
		return c.reject(errors.Wrapf(ErrWrongStep, "session is %v", session.State))
	}
}

func (c *Controller) reject(err error) (Outcome, error) {
	c.Metrics.Selections.WithLabelValues("rejected").Inc()
	c.Log.Debugw("rejected selection", "error", err)
	return Outcome{}, err
}

func (c *Controller) submitPrimary(ctx context.Context, session *Session, values []string) (Outcome, error) {
	allowed := make(map[string]bool)
	for _, entry := range c.Catalog.PrimaryChoices() {
		allowed[entry.Name] = true
	}
	if err := checkValues(values, allowed, MaxPrimary); err != nil {
		return c.reject(err)
	}

	rep := c.Catalog.AliasRepresentative()
	others := values
	if rep != "" {
		others = roster.Difference(values, []string{rep})
	}

	if len(others) == len(values) {
		if len(values) > MaxMains {
			return c.reject(errors.Wrapf(ErrTooManyMains, "%d chosen", len(values)))
		}
		return c.resolve(ctx, session, values)
	}

	room := MaxMains - len(others)
	if room < 1 {
		return c.reject(errors.Wrapf(ErrTooManyMains, "no room to tell %v apart", rep))
	}

	session.State = AwaitingDisambiguation
	session.Accepted = append([]string(nil), others...)
	ttl := session.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		c.Metrics.Selections.WithLabelValues("expired").Inc()
		return Outcome{}, ErrSessionNotFound
	}
	if err := c.Store.Save(ctx, session, ttl); err != nil {
		return Outcome{}, err
	}
	c.Metrics.Selections.WithLabelValues("disambiguation").Inc()

	pair := c.Catalog.AliasPair()
	options := make([]roster.Entry, 0, len(pair))
	for _, name := range pair {
		entry, _ := c.Catalog.Get(name)
		options = append(options, entry)
	}

	return Outcome{
		State: AwaitingDisambiguation,
		Next: &Menu{
			SessionID: session.ID,
			Step:      AwaitingDisambiguation,
			Content: c.Lang.Get(lang.DisambiguationPrompt, lang.Data{
				"Pair": strings.Join(pair, " or "),
			}),
			Placeholder: c.Lang.Get(lang.DisambiguationPlaceholder, nil),
			Options:     options,
			MinValues:   1,
			MaxValues:   min(room, len(options)),
		},
	}, nil
}

func (c *Controller) submitDisambiguation(ctx context.Context, session *Session, values []string) (Outcome, error) {
	allowed := make(map[string]bool)
	for _, name := range c.Catalog.AliasPair() {
		allowed[name] = true
	}
	if err := checkValues(values, allowed, len(allowed)); err != nil {
		return c.reject(err)
	}
	if len(session.Accepted)+len(values) > MaxMains {
		return c.reject(errors.Wrapf(ErrTooManyMains, "%d chosen", len(session.Accepted)+len(values)))
	}

	resolved := append(append([]string(nil), session.Accepted...), values...)
	return c.resolve(ctx, session, resolved)
}

// resolve ends the session and hands the final set to the mutator.
func (c *Controller) resolve(ctx context.Context, session *Session, mains []string) (Outcome, error) {
	if err := c.Store.Delete(ctx, session.ID); err != nil {
		c.Log.Warnw("failed to delete resolved session", "session", session.ID, "error", err)
	}
	c.Metrics.Selections.WithLabelValues("resolved").Inc()

	if err := c.Mutator.SetMains(ctx, session.GuildID, session.MemberID, mains); err != nil {
		return Outcome{State: Resolved, Mains: mains}, err
	}
	return Outcome{State: Resolved, Mains: mains}, nil
}

func checkValues(values []string, allowed map[string]bool, limit int) error {
	if len(values) == 0 {
		return errors.Wrap(ErrInvalidSelection, "nothing chosen")
	}
	if len(values) > limit {
		return errors.Wrapf(ErrTooManyMains, "%d chosen", len(values))
	}
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if !allowed[v] {
			return errors.Wrapf(ErrInvalidSelection, "%q is not on this menu", v)
		}
		if seen[v] {
			return errors.Wrapf(ErrInvalidSelection, "%q chosen twice", v)
		}
		seen[v] = true
	}
	return nil
}
