package main

import (
	"sort"
	"strconv"

	"github.com/alexjbarnes/ioco/internal/models"
	"github.com/alexjbarnes/ioco/internal/render"
)

func orgTable(orgs []models.Organization) render.Table {
	t := render.Table{Header: []string{"ID", "NAME", "MEMBERS", "DESCRIPTION"}}

	for _, o := range orgs {
		t.Rows = append(t.Rows, []string{
			strconv.FormatInt(o.ID, 10),
			o.Name,
			strconv.Itoa(len(o.Members)),
			render.Or(o.Description),
		})
	}

	return t
}

func userTable(users []models.User) render.Table {
	t := render.Table{Header: []string{"ID", "NAME", "EMAIL", "ROLE"}}

	for _, u := range users {
		role := ""
		if u.Role != nil {
			role = u.Role.Name
		}

		t.Rows = append(t.Rows, []string{
			strconv.FormatInt(u.ID, 10),
			render.Or(u.FullName()),
			u.Email,
			render.Or(role),
		})
	}

	return t
}

func eventTable(events []models.CalendarEvent) render.Table {
	t := render.Table{Header: []string{"ID", "TITLE", "START", "END", "TYPE", "AVAILABILITY", "ORG"}}

	for _, e := range events {
		t.Rows = append(t.Rows, eventRow(e))
	}

	return t
}

func eventRow(e models.CalendarEvent) []string {
	return []string{
		strconv.FormatInt(e.ID, 10),
		e.Title,
		render.Time(e.StartDate),
		render.Time(e.EndDate),
		render.Or(string(e.EventType)),
		render.Or(string(e.Availability)),
		strconv.FormatInt(e.OrganizationID, 10),
	}
}

// memberEventsTable flattens the per-member map, sorted by member then
// start time.
func memberEventsTable(byMember map[string][]models.CalendarEvent) render.Table {
	members := make([]string, 0, len(byMember))
	for m := range byMember {
		members = append(members, m)
	}
	sort.Strings(members)

	t := render.Table{Header: []string{"MEMBER", "ID", "TITLE", "START", "END", "AVAILABILITY"}}

	for _, m := range members {
		events := byMember[m]
		sort.SliceStable(events, func(i, j int) bool {
			return events[i].StartDate.Before(events[j].StartDate)
		})

		for _, e := range events {
			t.Rows = append(t.Rows, []string{
				m,
				strconv.FormatInt(e.ID, 10),
				e.Title,
				render.Time(e.StartDate),
				render.Time(e.EndDate),
				render.Or(string(e.Availability)),
			})
		}
	}

	return t
}
