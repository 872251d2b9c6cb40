package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	apperrors "github.com/alexjbarnes/ioco/internal/errors"
	"github.com/alexjbarnes/ioco/internal/models"
	"github.com/alexjbarnes/ioco/internal/render"
	"golang.org/x/sync/errgroup"
)

var (
	errUsage       = errors.New("usage")
	errNotLoggedIn = fmt.Errorf("%w, run `ioco login` first", apperrors.ErrNotLoggedIn)
)

const (
	dayLayout         = "2006-01-02"
	defaultWindow     = 7 * 24 * time.Hour
	defaultSlotLength = 30 * time.Minute
)

type command struct {
	args string
	help string
	auth bool
	run  func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":           {args: "[email] [password]", help: "log in and store the session", run: cmdLogin},
	"logout":          {help: "end the session", run: cmdLogout},
	"whoami":          {help: "show the logged-in user", auth: true, run: cmdWhoami},
	"register":        {args: "-first NAME -last NAME -email EMAIL -password PASSWORD", help: "create an account", run: cmdRegister},
	"forgot-password": {args: "<email>", help: "request a password reset", run: cmdForgotPassword},
	"reset-password":  {args: "<token> <new-password>", help: "set a new password with a reset token", run: cmdResetPassword},

	"orgs":          {args: "[-all]", help: "list your organizations", auth: true, run: cmdOrgs},
	"org":           {args: "<id>", help: "show an organization", auth: true, run: cmdOrg},
	"org-create":    {args: "-name NAME [-description TEXT]", help: "create an organization", auth: true, run: cmdOrgCreate},
	"org-update":    {args: "<id> [-name NAME] [-description TEXT]", help: "update an organization", auth: true, run: cmdOrgUpdate},
	"org-delete":    {args: "<id>", help: "delete an organization", auth: true, run: cmdOrgDelete},
	"members":       {args: "<org-id>", help: "list organization members", auth: true, run: cmdMembers},
	"add-member":    {args: "<org-id> <user-id>", help: "add a member", auth: true, run: cmdAddMember},
	"remove-member": {args: "<org-id> <user-id>", help: "remove a member", auth: true, run: cmdRemoveMember},
	"invite":        {args: "<org-id>", help: "create an invite code", auth: true, run: cmdInvite},
	"join":          {args: "<code>", help: "join an organization with an invite code", auth: true, run: cmdJoin},

	"events":       {args: "<org-id> [-from DATE -to DATE]", help: "list organization events", auth: true, run: cmdEvents},
	"my-events":    {help: "list your events", auth: true, run: cmdMyEvents},
	"event":        {args: "<id>", help: "show an event", auth: true, run: cmdEvent},
	"event-create": {args: "-org ID -title TEXT -start TIME -end TIME [-type T] [-availability A] [-hidden]", help: "create an event", auth: true, run: cmdEventCreate},
	"event-delete": {args: "<id>", help: "delete an event", auth: true, run: cmdEventDelete},
	"availability": {args: "[-from DATE -to DATE]", help: "show your busy slots", auth: true, run: cmdAvailability},
	"calendar":     {args: "<org-id> [-from DATE -to DATE]", help: "show the organization calendar", auth: true, run: cmdCalendar},
	"all-members":  {args: "<org-id> [-from DATE -to DATE]", help: "show every member's events", auth: true, run: cmdAllMembers},
	"free-slots":   {args: "<org-id> [-duration 30m] [-from DATE -to DATE]", help: "find free time across members", auth: true, run: cmdFreeSlots},

	"dashboard":  {help: "show your organizations and events", auth: true, run: cmdDashboard},
	"onboarding": {args: "[done]", help: "show or dismiss the onboarding intro", run: cmdOnboarding},
}

func usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "usage: ioco <command> [arguments]")
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", name, commands[name].help)
	}
	tw.Flush()
}

// --- Flag and argument helpers ---

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseFlags parses args and returns the positional arguments. Flags may
// follow positionals, as in `ioco events 3 -from 2025-01-01`.
func parseFlags(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string

	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%v: %w", err, errUsage)
		}

		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}

		positional = append(positional, args[0])
		args = args[1:]
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}

	return id, nil
}

// parseTime accepts RFC 3339 timestamps and plain dates.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}

	t, err := time.ParseInLocation(dayLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q, want YYYY-MM-DD or RFC 3339", s)
	}

	return t, nil
}

// window resolves -from/-to flags. A missing start is now, a missing end
// is span after the start.
func window(from, to string, span time.Duration) (time.Time, time.Time, error) {
	start := time.Now().Truncate(time.Minute)
	if from != "" {
		t, err := parseTime(from)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}

	end := start.Add(span)
	if to != "" {
		t, err := parseTime(to)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}

	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s is not after start %s", render.Time(end), render.Time(start))
	}

	return start, end, nil
}

func windowFlags(fs *flag.FlagSet) (from, to *string) {
	return fs.String("from", "", "start date"), fs.String("to", "", "end date")
}

// oneID handles commands whose only argument is an id.
func oneID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errUsage
	}

	return parseID(args[0])
}

func twoIDs(args []string) (int64, int64, error) {
	if len(args) != 2 {
		return 0, 0, errUsage
	}

	first, err := parseID(args[0])
	if err != nil {
		return 0, 0, err
	}

	second, err := parseID(args[1])
	if err != nil {
		return 0, 0, err
	}

	return first, second, nil
}

func (a *app) prompt(label string) (string, error) {
	fmt.Fprint(a.stderr, label)

	if !a.input.Scan() {
		if err := a.input.Err(); err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return "", errors.New("no input")
	}

	return strings.TrimSpace(a.input.Text()), nil
}

// --- Auth ---

func cmdLogin(ctx context.Context, a *app, args []string) error {
	if len(args) > 2 {
		return errUsage
	}

	email, password := a.cfg.Email, a.cfg.Password
	if len(args) > 0 {
		email = args[0]
	}
	if len(args) > 1 {
		password = args[1]
	}

	var err error
	if email == "" {
		if email, err = a.prompt("Email: "); err != nil {
			return err
		}
	}
	if password == "" {
		if password, err = a.prompt("Password: "); err != nil {
			return err
		}
	}

	u, err := a.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}

	return a.out.Message("logged in as %s", u.Email)
}

func cmdLogout(ctx context.Context, a *app, _ []string) error {
	if err := a.auth.Logout(ctx); err != nil {
		if errors.Is(err, apperrors.ErrNotLoggedIn) {
			return a.out.Message("not logged in")
		}
		return err
	}

	return a.out.Message("logged out")
}

func cmdWhoami(_ context.Context, a *app, _ []string) error {
	u := a.coord.Session().User()
	if u == nil {
		return a.out.Message("logged in, profile unavailable")
	}

	return a.out.Render(u, func() render.Table { return userTable([]models.User{*u}) })
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("register")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")

	if _, err := parseFlags(fs, args); err != nil {
		return err
	}

	if *first == "" || *email == "" || *password == "" {
		return errUsage
	}

	resp, err := a.api.Register(ctx, *first, *last, *email, *password)
	if err != nil {
		return err
	}

	return a.out.Message("registered %s, run `ioco login` to sign in", resp.User.Email)
}

func cmdForgotPassword(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}

	msg, err := a.api.ForgotPassword(ctx, args[0])
	if err != nil {
		return err
	}

	return a.out.Message("%s", render.Or(msg))
}

func cmdResetPassword(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}

	msg, err := a.api.ResetPassword(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	return a.out.Message("%s", render.Or(msg))
}

// --- Organizations ---

func cmdOrgs(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("orgs")
	all := fs.Bool("all", false, "list every organization")

	if _, err := parseFlags(fs, args); err != nil {
		return err
	}

	list := a.api.MyOrganizations
	if *all {
		list = a.api.ListOrganizations
	}

	orgs, err := list(ctx)
	if err != nil {
		return err
	}

	return a.out.Render(orgs, func() render.Table { return orgTable(orgs) })
}

func cmdOrg(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}

	org, err := a.api.GetOrganization(ctx, id)
	if err != nil {
		return err
	}

	return a.out.Render(org, func() render.Table { return orgTable([]models.Organization{*org}) })
}

func cmdOrgCreate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("org-create")
	name := fs.String("name", "", "organization name")
	description := fs.String("description", "", "description")

	if _, err := parseFlags(fs, args); err != nil {
		return err
	}

	if *name == "" {
		return errUsage
	}

	org, err := a.api.CreateOrganization(ctx, models.CreateOrganizationRequest{
		Name:        *name,
		Description: *description,
	})
	if err != nil {
		return err
	}

	return a.out.Render(org, func() render.Table { return orgTable([]models.Organization{*org}) })
}

func cmdOrgUpdate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("org-update")
	name := fs.String("name", "", "organization name")
	description := fs.String("description", "", "description")

	positional, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	id, err := oneID(positional)
	if err != nil {
		return err
	}

	var req models.UpdateOrganizationRequest
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			req.Name = name
		case "description":
			req.Description = description
		}
	})

	if req.Name == nil && req.Description == nil {
		return errUsage
	}

	org, err := a.api.UpdateOrganization(ctx, id, req)
	if err != nil {
		return err
	}

	return a.out.Render(org, func() render.Table { return orgTable([]models.Organization{*org}) })
}

func cmdOrgDelete(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}

	if err := a.api.DeleteOrganization(ctx, id); err != nil {
		return err
	}

	return a.out.Message("deleted organization %d", id)
}

func cmdMembers(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}

	org, err := a.api.GetOrganization(ctx, id)
	if err != nil {
		return err
	}

	return a.out.Render(org.Members, func() render.Table { return userTable(org.Members) })
}

func cmdAddMember(ctx context.Context, a *app, args []string) error {
	orgID, userID, err := twoIDs(args)
	if err != nil {
		return err
	}

	org, err := a.api.AddMember(ctx, orgID, userID)
	if err != nil {
		return err
	}

	return a.out.Render(org.Members, func() render.Table { return userTable(org.Members) })
}

func cmdRemoveMember(ctx context.Context, a *app, args []string) error {
	orgID, userID, err := twoIDs(args)
	if err != nil {
		return err
	}

	if err := a.api.RemoveMember(ctx, orgID, userID); err != nil {
		return err
	}

	return a.out.Message("removed user %d from organization %d", userID, orgID)
}

func cmdInvite(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}

	inv, err := a.api.CreateInvite(ctx, id)
	if err != nil {
		return err
	}

	return a.out.Render(inv, func() render.Table {
		return render.Table{
			Header: []string{"CODE", "ORGANIZATION", "EXPIRES", "USES"},
			Rows: [][]string{{
				inv.InviteCode,
				strconv.FormatInt(inv.OrganizationID, 10),
				render.Time(inv.ExpiresAt),
				fmt.Sprintf("%d/%d", inv.UsageCount, inv.MaxUsage),
			}},
		}
	})
}

func cmdJoin(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}

	org, err := a.api.JoinInvite(ctx, args[0])
	if err != nil {
		return err
	}

	return a.out.Render(org, func() render.Table { return orgTable([]models.Organization{*org}) })
}

// --- Calendar ---

func cmdEvents(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("events")
	from, to := windowFlags(fs)

	positional, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	id, err := oneID(positional)
	if err != nil {
		return err
	}

	var events []models.CalendarEvent
	if *from == "" && *to == "" {
		events, err = a.api.OrganizationEvents(ctx, id)
	} else {
		start, end, werr := window(*from, *to, defaultWindow)
		if werr != nil {
			return werr
		}
		events, err = a.api.EventsInRange(ctx, id, start, end)
	}
	if err != nil {
		return err
	}

	return a.out.Render(events, func() render.Table { return eventTable(events) })
}

func cmdMyEvents(ctx context.Context, a *app, _ []string) error {
	events, err := a.api.MyEvents(ctx)
	if err != nil {
		return err
	}

	return a.out.Render(events, func() render.Table { return eventTable(events) })
}

func cmdEvent(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}

	ev, err := a.api.GetEvent(ctx, id)
	if err != nil {
		return err
	}

	return a.out.Render(ev, func() render.Table { return eventTable([]models.CalendarEvent{*ev}) })
}

func cmdEventCreate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("event-create")
	orgID := fs.Int64("org", 0, "organization id")
	title := fs.String("title", "", "title")
	description := fs.String("description", "", "description")
	start := fs.String("start", "", "start time")
	end := fs.String("end", "", "end time")
	eventType := fs.String("type", string(models.EventTypeEvent), "personal, meeting or event")
	availability := fs.String("availability", string(models.AvailabilityBusy), "busy, free or tentative")
	hidden := fs.Bool("hidden", false, "hide the event from other members")

	if _, err := parseFlags(fs, args); err != nil {
		return err
	}

	if *orgID <= 0 || *title == "" || *start == "" || *end == "" {
		return errUsage
	}

	startAt, err := parseTime(*start)
	if err != nil {
		return err
	}

	endAt, err := parseTime(*end)
	if err != nil {
		return err
	}

	visible := !*hidden

	ev, err := a.api.CreateEvent(ctx, models.CreateCalendarEventRequest{
		Title:          *title,
		Description:    *description,
		StartDate:      startAt,
		EndDate:        endAt,
		OrganizationID: *orgID,
		EventType:      models.EventType(*eventType),
		Availability:   models.Availability(*availability),
		IsVisible:      &visible,
	})
	if err != nil {
		return err
	}

	return a.out.Render(ev, func() render.Table { return eventTable([]models.CalendarEvent{*ev}) })
}

func cmdEventDelete(ctx context.Context, a *app, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}

	if err := a.api.DeleteEvent(ctx, id); err != nil {
		return err
	}

	return a.out.Message("deleted event %d", id)
}

func cmdAvailability(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("availability")
	from, to := windowFlags(fs)

	if _, err := parseFlags(fs, args); err != nil {
		return err
	}

	start, end, err := window(*from, *to, defaultWindow)
	if err != nil {
		return err
	}

	avail, err := a.api.MyAvailability(ctx, start, end)
	if err != nil {
		return err
	}

	return a.out.Render(avail, func() render.Table { return eventTable(avail.BusySlots) })
}

func cmdCalendar(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("calendar")
	from, to := windowFlags(fs)

	positional, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	id, err := oneID(positional)
	if err != nil {
		return err
	}

	start, end, err := window(*from, *to, defaultWindow)
	if err != nil {
		return err
	}

	events, err := a.api.CalendarView(ctx, id, start, end)
	if err != nil {
		return err
	}

	return a.out.Render(events, func() render.Table { return eventTable(events) })
}

func cmdAllMembers(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("all-members")
	from, to := windowFlags(fs)

	positional, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	id, err := oneID(positional)
	if err != nil {
		return err
	}

	start, end, err := window(*from, *to, defaultWindow)
	if err != nil {
		return err
	}

	byMember, err := a.api.AllMembersEvents(ctx, id, start, end)
	if err != nil {
		return err
	}

	return a.out.Render(byMember, func() render.Table { return memberEventsTable(byMember) })
}

func cmdFreeSlots(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("free-slots")
	from, to := windowFlags(fs)
	duration := fs.Duration("duration", defaultSlotLength, "slot length")

	positional, err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	id, err := oneID(positional)
	if err != nil {
		return err
	}

	start, end, err := window(*from, *to, defaultWindow)
	if err != nil {
		return err
	}

	slots, err := a.api.FreeSlots(ctx, id, *duration, start, end)
	if err != nil {
		return err
	}

	return a.out.Render(slots, func() render.Table {
		t := render.Table{Header: []string{"START", "END"}}
		for _, s := range slots.FreeSlots {
			t.Rows = append(t.Rows, []string{render.Time(s.Start), render.Time(s.End)})
		}
		return t
	})
}

// --- Misc ---

type dashboard struct {
	User          *models.User           `json:"user,omitempty"`
	Organizations []models.Organization  `json:"organizations"`
	Events        []models.CalendarEvent `json:"events"`
}

// cmdDashboard loads organizations and events concurrently. Both calls
// share the session, so an expiring token is refreshed once.
func cmdDashboard(ctx context.Context, a *app, _ []string) error {
	d := dashboard{User: a.coord.Session().User()}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		orgs, err := a.api.MyOrganizations(gctx)
		if err != nil {
			return fmt.Errorf("loading organizations: %w", err)
		}
		d.Organizations = orgs
		return nil
	})

	g.Go(func() error {
		events, err := a.api.MyEvents(gctx)
		if err != nil {
			return fmt.Errorf("loading events: %w", err)
		}
		d.Events = events
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	if a.out.Format() != render.FormatTable {
		return a.out.Render(d, nil)
	}

	if d.User != nil {
		if err := a.out.Message("%s <%s>\n", d.User.FullName(), d.User.Email); err != nil {
			return err
		}
	}

	if err := a.out.Render(d.Organizations, func() render.Table { return orgTable(d.Organizations) }); err != nil {
		return err
	}

	fmt.Fprintln(a.stdout)

	return a.out.Render(d.Events, func() render.Table { return eventTable(d.Events) })
}

func cmdOnboarding(_ context.Context, a *app, args []string) error {
	switch {
	case len(args) == 0:
		show, err := a.state.ShowOnboarding()
		if err != nil {
			return fmt.Errorf("reading onboarding flag: %w", err)
		}

		if !show {
			return a.out.Message("onboarding dismissed")
		}

		return a.out.Message("Welcome to ioco. Create an organization with `ioco org-create` " +
			"or join one with `ioco join <code>`, then schedule events with `ioco event-create`. " +
			"Run `ioco onboarding done` to hide this message.")
	case len(args) == 1 && args[0] == "done":
		if err := a.state.SetShowOnboarding(false); err != nil {
			return fmt.Errorf("saving onboarding flag: %w", err)
		}

		return a.out.Message("onboarding dismissed")
	}

	return errUsage
}
